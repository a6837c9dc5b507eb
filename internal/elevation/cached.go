package elevation

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/planbiir/trackconv/internal/cache"
)

// cacheKey rounds to 1e-6 degrees, the precision coordinates are compared at.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.6f,%.6f", lat, lon)
}

// DefaultCacheEntries bounds the in-process cache of NewCached.
const DefaultCacheEntries = 100_000

// cell is a coordinate rounded to 1e-6 degrees.
type cell struct {
	lat, lon int64
}

func cellOf(lat, lon float64) cell {
	return cell{int64(math.Round(lat * 1e6)), int64(math.Round(lon * 1e6))}
}

// Cached memoises successful lookups of Inner in process memory.
// Failures are not cached.
type Cached struct {
	Inner Source
	cache *cache.Cache[cell, float64]
}

// NewCached wraps inner with an in-process cache of the given TTL. A
// non-positive ttl uses DefaultCacheTTL.
func NewCached(inner Source, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{Inner: inner, cache: cache.New[cell, float64](ttl, DefaultCacheEntries)}
}

// Lookup implements Source.
func (c *Cached) Lookup(ctx context.Context, lat, lon float64) (float64, error) {
	key := cellOf(lat, lon)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.Inner.Lookup(ctx, lat, lon)
	if err != nil {
		return 0, err
	}
	c.cache.Set(key, v)
	return v, nil
}

// Close stops the cache sweeper.
func (c *Cached) Close() {
	c.cache.Close()
}

// Store is the shared key/value store behind ValkeyCached.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// ValkeyCached shares lookups of Inner between processes through a Store.
// Store errors fall through to Inner.
type ValkeyCached struct {
	Inner  Source
	Store  Store
	TTL    time.Duration
	Prefix string
}

// Lookup implements Source.
func (c *ValkeyCached) Lookup(ctx context.Context, lat, lon float64) (float64, error) {
	key := c.Prefix + cacheKey(lat, lon)
	if s, found, err := c.Store.Get(ctx, key); err == nil && found {
		if v, perr := strconv.ParseFloat(s, 64); perr == nil {
			return v, nil
		}
	}

	v, err := c.Inner.Lookup(ctx, lat, lon)
	if err != nil {
		return 0, err
	}
	_ = c.Store.Set(ctx, key, strconv.FormatFloat(v, 'f', -1, 64), c.TTL)
	return v, nil
}

// ValkeyStore implements Store on a Valkey (Redis-compatible) server.
type ValkeyStore struct {
	client valkey.Client
}

// NewValkeyStore connects to addr.
func NewValkeyStore(addr string) (*ValkeyStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &ValkeyStore{client: client}, nil
}

// Get implements Store.
func (s *ValkeyStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set implements Store.
func (s *ValkeyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	cmd := s.client.B().Set().Key(key).Value(value).Ex(ttl).Build()
	return s.client.Do(ctx, cmd).Error()
}

// Close releases the client.
func (s *ValkeyStore) Close() {
	s.client.Close()
}
