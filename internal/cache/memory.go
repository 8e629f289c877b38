package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process fallback used when Redis is not configured.
type MemoryCache struct {
	cache *gocache.Cache

	mu       sync.Mutex
	versions map[string]int64
}

func NewMemoryCache(flightsTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		cache:    gocache.New(flightsTTL, 2*flightsTTL),
		versions: make(map[string]int64),
	}
}

func (c *MemoryCache) GetFlightView(_ context.Context, code string) (*domain.FlightView, bool, error) {
	v, ok := c.cache.Get(flightKey(code))
	if !ok {
		return nil, false, nil
	}
	view := v.(domain.FlightView)
	return &view, true, nil
}

func (c *MemoryCache) FlightVersion(_ context.Context, code string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[code], nil
}

func (c *MemoryCache) SetFlightView(_ context.Context, view *domain.FlightView, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[view.Code] != version {
		return nil
	}
	c.cache.SetDefault(flightKey(view.Code), *view)
	return nil
}

func (c *MemoryCache) InvalidateFlight(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[code]++
	c.cache.Delete(flightKey(code))
	return nil
}

func (c *MemoryCache) Ping(context.Context) error {
	return nil
}

func (c *MemoryCache) Close() error {
	c.cache.Flush()
	return nil
}
