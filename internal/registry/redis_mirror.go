package registry

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/emergency-dispatch/internal/models"
)

// RedisMirror maintains a Redis GEO index plus per-unit metadata hashes so
// external consumers (ops dashboards, the location consumer) can query the
// fleet without touching the in-process registry. Writes are best-effort.
type RedisMirror struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

func NewRedisMirror(addr, password, key string, logger *slog.Logger) *RedisMirror {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisMirror{client: c, key: key, logger: logger}
}

func (m *RedisMirror) Upsert(u models.Unit) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := m.client.GeoAdd(ctx, m.key, &redis.GeoLocation{
		Longitude: u.Pos.Lng,
		Latitude:  u.Pos.Lat,
		Name:      u.ID,
	}).Result(); err != nil {
		m.logger.Warn("redis geoadd failed", "unit_id", u.ID, "error", err)
		return
	}
	if err := m.client.HSet(ctx, metaKey(u.ID), map[string]interface{}{
		"status":     string(u.Status),
		"booking_id": u.BookingID,
		"busy":       strconv.FormatBool(u.Status != models.UnitAvailable),
		"updated":    u.Updated.Format(time.RFC3339),
	}).Err(); err != nil {
		m.logger.Warn("redis hset failed", "unit_id", u.ID, "error", err)
	}
}

func (m *RedisMirror) Close() error { return m.client.Close() }

func metaKey(id string) string { return "unit:meta:" + id }
