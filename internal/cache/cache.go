// Package cache keeps the last known live state of every rack in
// Redis so reads do not hit Postgres for data that changes every few
// seconds.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"growrack/internal/logging"
	"growrack/internal/models"
)

// Entries expire on their own so a removed rack does not linger.
const liveStateTTL = time.Hour

// Cache wraps the shared Redis client.
type Cache struct {
	rdb *redis.Client
	log zerolog.Logger
}

// New creates the Redis client and the cache around it.
func New(addr, password string, db int) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Cache{
		rdb: rdb,
		log: logging.WithComponent("cache"),
	}
}

// Ping verifies the connection at startup.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Client exposes the underlying Redis client for collaborators that
// share the connection (session store).
func (c *Cache) Client() *redis.Client {
	return c.rdb
}

// LiveState is the cached snapshot of one rack: latest reading plus
// the most recent status-report fields.
type LiveState struct {
	RackID    int64               `json:"rack_id"`
	Status    models.DeviceStatus `json:"status"`
	Reading   *models.Reading     `json:"reading,omitempty"`
	RSSI      *int                `json:"rssi,omitempty"`
	Firmware  string              `json:"firmware,omitempty"`
	IP        string              `json:"ip,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func liveKey(hardwareAddr string) string {
	return fmt.Sprintf("rack:%s:live", hardwareAddr)
}

// SetLiveState stores a rack's snapshot, replacing any previous one.
func (c *Cache) SetLiveState(ctx context.Context, hardwareAddr string, st LiveState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal live state: %w", err)
	}
	return c.rdb.Set(ctx, liveKey(hardwareAddr), raw, liveStateTTL).Err()
}

// GetLiveState fetches a rack's snapshot. A cache miss returns
// (nil, nil).
func (c *Cache) GetLiveState(ctx context.Context, hardwareAddr string) (*LiveState, error) {
	raw, err := c.rdb.Get(ctx, liveKey(hardwareAddr)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var st LiveState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		c.log.Warn().Str("rack", hardwareAddr).Err(err).Msg("dropping corrupt live-state entry")
		c.rdb.Del(ctx, liveKey(hardwareAddr))
		return nil, nil
	}
	return &st, nil
}

// UpdateLiveState reads the current snapshot, applies fn to it, and
// writes it back. fn receives a zero-value state on a miss.
func (c *Cache) UpdateLiveState(ctx context.Context, hardwareAddr string, fn func(*LiveState)) error {
	st, err := c.GetLiveState(ctx, hardwareAddr)
	if err != nil {
		return err
	}
	if st == nil {
		st = &LiveState{}
	}
	fn(st)
	st.UpdatedAt = time.Now().UTC()
	return c.SetLiveState(ctx, hardwareAddr, *st)
}

// InvalidateLiveState removes a rack's snapshot.
func (c *Cache) InvalidateLiveState(ctx context.Context, hardwareAddr string) error {
	return c.rdb.Del(ctx, liveKey(hardwareAddr)).Err()
}
