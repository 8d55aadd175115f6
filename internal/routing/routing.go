package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/emergency-dispatch/internal/models"
)

// Route is a road-network estimate between two points.
type Route struct {
	DistanceKm float64
	ETAMinutes int
}

// Provider is the external routing collaborator. The core never computes
// road routes itself.
type Provider interface {
	Route(ctx context.Context, origin, destination models.Coord) (Route, error)
}

// Cache is a small TTL cache for route lookups keyed by coordinate pair.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	r  Route
	ts time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func keyFor(a, b models.Coord) string {
	return fmt.Sprintf("%.6f,%.6f->%.6f,%.6f", a.Lat, a.Lng, b.Lat, b.Lng)
}

func (c *Cache) Get(a, b models.Coord) (Route, bool) {
	k := keyFor(a, b)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return Route{}, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return Route{}, false
	}
	return e.r, true
}

func (c *Cache) Set(a, b models.Coord, r Route) {
	k := keyFor(a, b)
	c.mu.Lock()
	c.store[k] = cacheEntry{r: r, ts: time.Now()}
	c.mu.Unlock()
}

// Cached wraps a Provider with a TTL cache.
type Cached struct {
	Provider Provider
	Cache    *Cache
}

func (c *Cached) Route(ctx context.Context, origin, destination models.Coord) (Route, error) {
	if r, ok := c.Cache.Get(origin, destination); ok {
		return r, nil
	}
	r, err := c.Provider.Route(ctx, origin, destination)
	if err != nil {
		return Route{}, err
	}
	c.Cache.Set(origin, destination, r)
	return r, nil
}
