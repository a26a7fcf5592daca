package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	klog "github.com/stampchain-io/BTCStampsExplorer-sub010/internal/log"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/metrics"
)

// DefaultLoadTimeout bounds a shared load once it is detached from the
// caller that started it.
const DefaultLoadTimeout = 30 * time.Second

// LoadFunc produces a value on a cache miss. cacheable reports whether the
// value may be stored.
type LoadFunc func(ctx context.Context) (value []byte, cacheable bool, err error)

// Loader reads through a Service, coalescing concurrent misses on the
// same key into one call of the load function.
type Loader struct {
	svc         Service
	backend     string
	group       singleflight.Group
	loadTimeout time.Duration
	logger      zerolog.Logger
}

// NewLoader wraps svc.
func NewLoader(svc Service) *Loader {
	return &Loader{
		svc:         svc,
		backend:     backendName(svc),
		loadTimeout: DefaultLoadTimeout,
		logger:      klog.Cache,
	}
}

// Service returns the wrapped cache.
func (l *Loader) Service() Service {
	return l.svc
}

// GetOrLoad returns the cached value for key, or calls fn and stores its
// result for ttl when fn marks it cacheable. Backend errors are logged and
// treated as misses.
//
// A shared load is detached from the caller that started it and bounded by
// the load timeout. Each caller stops waiting when its own ctx is done.
func (l *Loader) GetOrLoad(ctx context.Context, key string, ttl time.Duration, fn LoadFunc) ([]byte, error) {
	if val, ok := l.lookup(ctx, key); ok {
		return val, nil
	}

	ch := l.group.DoChan(key, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.loadTimeout)
		defer cancel()

		// A concurrent flight may have filled the key already.
		if val, ok := l.lookup(lctx, key); ok {
			return val, nil
		}
		val, cacheable, err := fn(lctx)
		if err != nil {
			return nil, err
		}
		if cacheable {
			if err := l.svc.Set(lctx, key, val, ttl); err != nil {
				l.logger.Warn().Str("key", key).Err(err).Msg("Cache write failed")
			}
		}
		return val, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			l.logger.Trace().Str("key", key).Msg("Coalesced cache load")
		}
		return res.Val.([]byte), nil
	}
}

// Invalidate removes key from the cache.
func (l *Loader) Invalidate(ctx context.Context, key string) error {
	return l.svc.Delete(ctx, key)
}

func (l *Loader) lookup(ctx context.Context, key string) ([]byte, bool) {
	val, ok, err := l.svc.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheLookup(l.backend, "error")
		l.logger.Warn().Str("key", key).Err(err).Msg("Cache read failed")
		return nil, false
	case ok:
		metrics.CacheLookup(l.backend, "hit")
		return val, true
	default:
		metrics.CacheLookup(l.backend, "miss")
		return nil, false
	}
}
