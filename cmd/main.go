package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"booking-service/internal/auth"
	"booking-service/internal/bookings"
	"booking-service/internal/catalog"
	"booking-service/internal/config"
	"booking-service/internal/customers"
	"booking-service/internal/matching"
	"booking-service/internal/notify"
	"booking-service/internal/technicians"
	"booking-service/migrations"
	"booking-service/pkg/db"
	"booking-service/pkg/jwt"
	"booking-service/pkg/kafka"
	"booking-service/pkg/logger"
	"booking-service/pkg/rabbitmq"
	"booking-service/pkg/ratelimit"
	rredis "booking-service/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("booking-service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── 1. JWT secret ──
	if err := jwt.Init(cfg.JWTSecret); err != nil {
		return err
	}

	// ── 2. Catalog ──
	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return err
	}
	log.Info("catalog loaded", zap.Int("services", len(cat.List())))

	// ── 3. PostgreSQL, or memory stores ──
	var (
		customerStore   customers.Store   = customers.NewMemoryStore()
		technicianStore technicians.Store = technicians.NewMemoryStore()
		bookingStore    bookings.Store    = bookings.NewMemoryStore()
	)
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.RunMigrations(ctx, migrations.FS); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		customerStore = customers.NewPostgresStore(database.Pool)
		technicianStore = technicians.NewPostgresStore(database.Pool)
		bookingStore = bookings.NewPostgresStore(database.Pool)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// ── 4. Redis: slots, geo index, catalog cache ──
	var (
		slots    bookings.SlotStore = bookings.NewMemorySlots()
		geoIndex technicians.GeoIndex
		cache    catalog.Cache
	)
	if cfg.RedisAddr != "" {
		redisClient, err := rredis.NewClient(cfg.RedisAddr, log)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		slots = bookings.NewRedisSlots(redisClient)
		geoIndex = redisClient
		cache = redisClient
	} else {
		log.Warn("REDIS_ADDR not set, technician slots are local to this instance")
	}

	// ── 5. Notifications ──
	hub := notify.NewHub(32, log)
	var notifiers notify.Fanout

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kafkaClient := kafka.NewClient(brokers, log)
		defer kafkaClient.Close()
		if err := kafkaClient.EnsureTopics(ctx, kafka.TopicBookingStatus); err != nil {
			return err
		}
		bridge := notify.NewKafkaBridge(kafkaClient, log)
		go bridge.Run(ctx)
		// The hub is fed from the topic so every instance sees every event.
		bridge.Relay(ctx, hub, "booking-notify-"+uuid.NewString())
		notifiers = append(notifiers, bridge)
	} else {
		notifiers = append(notifiers, hub)
	}

	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, notify.RabbitExchange)
		if err != nil {
			return err
		}
		defer pub.Close()
		bridge := notify.NewRabbitBridge(pub, log)
		go bridge.Run(ctx)
		notifiers = append(notifiers, bridge)
	}

	// ── 6. Services ──
	customerSvc := customers.NewService(customerStore, log)
	registry := technicians.NewRegistry(technicianStore, geoIndex, cat, log)
	ledger := bookings.NewLedger(bookingStore, slots, cat, notifiers, log)

	selector, err := matching.SelectorByName(cfg.MatchPolicy)
	if err != nil {
		return err
	}
	matcher := matching.NewMatcher(registry, ledger, cat, matching.Options{
		Timeout:       cfg.MatchTimeout,
		RetryInterval: cfg.MatchRetryInterval,
		MaxAttempts:   cfg.MatchMaxAttempts,
		Selector:      selector,
	}, log)

	// ── 7. HTTP router ──
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(logger.Middleware(log))
	limiter := ratelimit.New(cfg.RateLimitPerMin, log)
	go limiter.Run(ctx, time.Minute)
	r.Use(limiter.Middleware)
	r.Use(jwt.OptionalAuth)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"booking-service"}`))
	})

	auth.NewHandler(customerSvc, registry, log).Mount(r)
	matching.NewHandler(matcher, log).Mount(r)
	r.Mount("/users", customers.NewHandler(customerSvc).Routes())
	r.Mount("/technicians", technicians.NewHandler(registry, log).Routes())
	r.Mount("/services", catalog.NewHandler(cat, cache, log).Routes())
	r.Mount("/bookings", bookings.NewHandler(ledger, matcher.RematchInBackground, log).Routes())
	r.Mount("/ws", notify.NewWSHandler(hub, matcher, ledger, registry, log).Routes())

	// ── 8. Start server ──
	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("booking-service listening", zap.String("port", cfg.AppPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	// ── 9. Graceful shutdown ──
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errc:
		return err
	}
	log.Info("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
	cancel() // stop consumers and bridges
	return nil
}
