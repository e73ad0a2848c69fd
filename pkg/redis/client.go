package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	locationsKey = "technicians:locations"
	slotPrefix   = "technician:slot:"
)

// releaseScript deletes the slot only if it still holds the given booking.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client serves the GEO index, technician slots and the catalog cache.
type Client struct {
	rdb *goredis.Client
}

// NewClient pings addr until Redis answers.
func NewClient(addr string, log *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(ctx).Err(); err == nil {
			cancel()
			log.Info("connected to redis", zap.String("addr", addr))
			return &Client{rdb: rdb}, nil
		}
		cancel()
		log.Info("waiting for redis", zap.Int("attempt", i+1))
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("redis: failed to connect after 20 attempts")
}

// SetTechnicianLocation stores a technician's position in the GEO set.
func (c *Client) SetTechnicianLocation(ctx context.Context, technicianID string, lat, lng float64) error {
	return c.rdb.GeoAdd(ctx, locationsKey, &goredis.GeoLocation{
		Name:      technicianID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// NearbyTechnicians returns technician IDs within radiusKm of (lat,lng), nearest first.
func (c *Client) NearbyTechnicians(ctx context.Context, lat, lng, radiusKm float64, count int) ([]string, error) {
	return c.rdb.GeoSearch(ctx, locationsKey, &goredis.GeoSearchQuery{
		Longitude:  lng,
		Latitude:   lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Count:      count,
		Sort:       "ASC",
	}).Result()
}

// RemoveTechnicianLocation drops a technician from the GEO set.
func (c *Client) RemoveTechnicianLocation(ctx context.Context, technicianID string) error {
	return c.rdb.ZRem(ctx, locationsKey, technicianID).Err()
}

// ClaimSlot sets the technician's active booking slot if it is empty.
// Exactly one concurrent caller gets true.
func (c *Client) ClaimSlot(ctx context.Context, technicianID, bookingID string) (bool, error) {
	return c.rdb.SetNX(ctx, slotPrefix+technicianID, bookingID, 0).Result()
}

// ReleaseSlot empties the slot if it still holds bookingID.
func (c *Client) ReleaseSlot(ctx context.Context, technicianID, bookingID string) error {
	return releaseScript.Run(ctx, c.rdb, []string{slotPrefix + technicianID}, bookingID).Err()
}

// SlotHolder returns the booking holding the technician's slot, "" if free.
func (c *Client) SlotHolder(ctx context.Context, technicianID string) (string, error) {
	v, err := c.rdb.Get(ctx, slotPrefix+technicianID).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return v, err
}

// CacheGet reads a cached blob. ok is false on a miss.
func (c *Client) CacheGet(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// CacheSet stores a blob with TTL.
func (c *Client) CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Close() error { return c.rdb.Close() }
