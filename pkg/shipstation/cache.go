package shipstation

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL bounds how long carrier and service lookup tables are
// memoized. Rates themselves are never cached.
const DefaultCacheTTL = 5 * time.Minute

const carriersKey = "carriers"

// CachedClient memoizes ListCarriers and ListServices results with a
// bounded TTL. Empty results are never retained, so a transient outage
// or empty answer is re-fetched on the next call rather than being
// stuck for the full TTL. GetRates always passes through uncached,
// since rates depend on address and weight.
//
// Concurrent callers for the same uncached key share a single in-flight
// fetch (singleflight), satisfying the at-most-one-fetch-per-key
// discipline.
type CachedClient struct {
	api APIClient
	ttl time.Duration

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// NewCachedClient wraps api with carrier/service memoization.
// A non-positive ttl falls back to DefaultCacheTTL.
func NewCachedClient(api APIClient, ttl time.Duration) *CachedClient {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedClient{
		api:     api,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// ListCarriers returns the cached carrier list, fetching on miss.
func (c *CachedClient) ListCarriers(ctx context.Context) ([]Carrier, error) {
	if v, ok := c.lookup(carriersKey); ok {
		return v.([]Carrier), nil
	}

	v, err, _ := c.group.Do(carriersKey, func() (interface{}, error) {
		carriers, err := c.api.ListCarriers(ctx)
		if err != nil {
			return nil, err
		}
		if len(carriers) > 0 {
			c.store(carriersKey, carriers)
		}
		return carriers, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Carrier), nil
}

// ListServices returns the cached service list for one carrier,
// fetching on miss.
func (c *CachedClient) ListServices(ctx context.Context, carrierCode string) ([]Service, error) {
	key := "services:" + carrierCode
	if v, ok := c.lookup(key); ok {
		return v.([]Service), nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		services, err := c.api.ListServices(ctx, carrierCode)
		if err != nil {
			return nil, err
		}
		if len(services) > 0 {
			c.store(key, services)
		}
		return services, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Service), nil
}

// GetRates passes through to the underlying client; rate quotes are
// never cached.
func (c *CachedClient) GetRates(ctx context.Context, req *RatesRequest) ([]Rate, error) {
	return c.api.GetRates(ctx, req)
}

// Invalidate drops all cached entries.
func (c *CachedClient) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *CachedClient) lookup(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (c *CachedClient) store(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
}

// Ensure CachedClient implements APIClient interface
var _ APIClient = (*CachedClient)(nil)
