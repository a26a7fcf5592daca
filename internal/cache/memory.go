package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"
)

// expiryHeaderSize prefixes every stored value with its expiry time in
// unix nanoseconds. Zero means no expiry.
const expiryHeaderSize = 8

// maxLifeWindow bounds entries stored without a TTL.
const maxLifeWindow = 24 * time.Hour

// Memory is an in-process cache on bigcache. bigcache has a single
// eviction window, so per-entry TTLs are enforced on read.
type Memory struct {
	cache  *bigcache.BigCache
	now    func() time.Time
	closed atomic.Bool
}

// NewMemory creates an in-process cache.
func NewMemory() (*Memory, error) {
	cfg := bigcache.DefaultConfig(maxLifeWindow)
	cfg.Shards = 64
	cfg.CleanWindow = time.Minute
	cfg.Verbose = false

	c, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("create bigcache: %w", err)
	}
	return &Memory{cache: c, now: time.Now}, nil
}

// Name returns the backend name.
func (m *Memory) Name() string { return BackendMemory }

// Get returns the value stored under key if it has not expired.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m.closed.Load() {
		return nil, false, ErrClosed
	}
	raw, err := m.cache.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("bigcache get: %w", err)
	}
	if len(raw) < expiryHeaderSize {
		_ = m.cache.Delete(key)
		return nil, false, nil
	}

	expiry := int64(binary.BigEndian.Uint64(raw[:expiryHeaderSize]))
	if expiry != 0 && m.now().UnixNano() >= expiry {
		_ = m.cache.Delete(key)
		return nil, false, nil
	}
	val := make([]byte, len(raw)-expiryHeaderSize)
	copy(val, raw[expiryHeaderSize:])
	return val, true, nil
}

// Set stores value under key for ttl.
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.closed.Load() {
		return ErrClosed
	}
	var expiry int64
	if ttl > 0 {
		expiry = m.now().Add(ttl).UnixNano()
	}
	buf := make([]byte, expiryHeaderSize+len(value))
	binary.BigEndian.PutUint64(buf, uint64(expiry))
	copy(buf[expiryHeaderSize:], value)

	if err := m.cache.Set(key, buf); err != nil {
		return fmt.Errorf("bigcache set: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *Memory) Delete(ctx context.Context, key string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	err := m.cache.Delete(key)
	if err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return fmt.Errorf("bigcache delete: %w", err)
	}
	return nil
}

// Close releases the cache.
func (m *Memory) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	return m.cache.Close()
}
