package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppPort != "8000" || cfg.MatchPolicy != "nearest" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MatchTimeout != 30*time.Second || cfg.MatchRetryInterval != 2*time.Second {
		t.Fatalf("match durations = %v / %v", cfg.MatchTimeout, cfg.MatchRetryInterval)
	}
	if cfg.MatchMaxAttempts != 5 {
		t.Fatalf("max attempts = %d", cfg.MatchMaxAttempts)
	}
	if cfg.Brokers() != nil {
		t.Fatalf("brokers = %v", cfg.Brokers())
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MATCH_TIMEOUT", "5s")
	t.Setenv("MATCH_POLICY", "first")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MatchTimeout != 5*time.Second || cfg.MatchPolicy != "first" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if want := []string{"k1:9092", "k2:9092"}; !reflect.DeepEqual(cfg.Brokers(), want) {
		t.Fatalf("brokers = %v, want %v", cfg.Brokers(), want)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production")
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}
