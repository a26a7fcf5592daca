// Package cache provides TTL-bounded key/value caches for oracle quotes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache closed")

// Service is a TTL-capable key/value store. A zero ttl means the entry
// does not expire. Get reports a miss with ok == false and a nil error.
type Service interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Dir is the badger data directory. Empty runs badger in memory.
	Dir string
	// RedisURL is a redis:// URL.
	RedisURL string
}

// Open creates the cache named by opts.Backend.
func Open(opts Options) (Service, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendMemory:
		return NewMemory()
	case BackendBadger:
		return NewBadger(opts.Dir)
	case BackendRedis:
		return NewRedis(opts.RedisURL)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

// backendName returns the metrics label for svc.
func backendName(svc Service) string {
	if n, ok := svc.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "custom"
}
