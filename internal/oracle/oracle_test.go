package oracle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/cache"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/retry"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/types"
)

// stubProvider returns value, or err when set. Value can change between
// calls to emulate a live feed.
type stubProvider struct {
	name  string
	value atomic.Value // float64
	err   error
	calls atomic.Int32
}

func newStub(name string, value float64, err error) *stubProvider {
	p := &stubProvider{name: name, err: err}
	p.value.Store(value)
	return p
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Fetch(ctx context.Context) (Result, error) {
	p.calls.Add(1)
	if p.err != nil {
		return Result{}, p.err
	}
	return Result{Value: p.value.Load().(float64), Confidence: types.ConfidenceHigh}, nil
}

func newLoader(t *testing.T) *cache.Loader {
	t.Helper()
	m, err := cache.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return cache.NewLoader(m)
}

func TestQuote_FirstProvider(t *testing.T) {
	a := newStub("a", 65000, nil)
	b := newStub("b", 64000, nil)
	o := New(Config{Name: "price", Providers: []Provider{a, b}})

	q := o.Quote(context.Background(), QuoteOptions{})
	assert.Equal(t, 65000.0, q.Price)
	assert.Equal(t, "a", q.Source)
	assert.Equal(t, types.ConfidenceHigh, q.Confidence)
	assert.False(t, q.FallbackUsed)
	assert.Empty(t, q.Errors)
	assert.NotZero(t, q.TimestampMs)
	assert.Equal(t, int32(0), b.calls.Load())
}

func TestQuote_FallsBackToSecondProvider(t *testing.T) {
	a := newStub("a", 0, errors.New("http 503"))
	b := newStub("b", 64000, nil)
	o := New(Config{Providers: []Provider{a, b}})

	q := o.Quote(context.Background(), QuoteOptions{})
	assert.Equal(t, "b", q.Source)
	assert.Equal(t, 64000.0, q.Price)
	assert.True(t, q.FallbackUsed)
	require.Len(t, q.Errors, 1)
	assert.Contains(t, q.Errors[0], "a: http 503")
}

func TestQuote_AllProvidersFail(t *testing.T) {
	a := newStub("a", 0, errors.New("down"))
	b := newStub("b", 0, errors.New("down"))
	o := New(Config{Providers: []Provider{a, b}})

	q := o.Quote(context.Background(), QuoteOptions{})
	assert.Equal(t, types.DefaultSource, q.Source)
	assert.Equal(t, types.ConfidenceLow, q.Confidence)
	assert.Equal(t, 0.0, q.Price)
	assert.True(t, q.FallbackUsed)
	assert.Len(t, q.Errors, 2)
	assert.True(t, q.IsStaticFallback())
}

func TestQuote_ConfiguredStaticFallback(t *testing.T) {
	o := New(Config{
		Providers:      []Provider{newStub("a", 0, errors.New("down"))},
		StaticFallback: 10,
	})
	q := o.Quote(context.Background(), QuoteOptions{})
	assert.Equal(t, 10.0, q.Price)
	assert.Equal(t, types.DefaultSource, q.Source)
}

func TestQuote_NoProviders(t *testing.T) {
	q := New(Config{}).Quote(context.Background(), QuoteOptions{})
	assert.Equal(t, types.DefaultSource, q.Source)
	assert.Empty(t, q.Errors)
}

func TestQuote_NonPositiveValueIsFailure(t *testing.T) {
	for _, v := range []float64{0, -1} {
		a := newStub("a", v, nil)
		b := newStub("b", 42, nil)
		q := New(Config{Providers: []Provider{a, b}}).Quote(context.Background(), QuoteOptions{})
		assert.Equal(t, "b", q.Source, "value %v", v)
		assert.True(t, q.FallbackUsed)
		require.Len(t, q.Errors, 1)
		assert.Contains(t, q.Errors[0], "invalid value")
	}
}

func TestQuote_PreferredSource(t *testing.T) {
	a := newStub("a", 1, nil)
	b := newStub("b", 2, nil)
	c := newStub("c", 3, nil)
	o := New(Config{Providers: []Provider{a, b, c}, Rotation: true})

	q := o.Quote(context.Background(), QuoteOptions{PreferredSource: "c"})
	assert.Equal(t, "c", q.Source)
	assert.False(t, q.FallbackUsed)

	// Preferred calls do not advance rotation.
	q = o.Quote(context.Background(), QuoteOptions{})
	assert.Equal(t, "a", q.Source)
}

func TestQuote_PreferredSourceFails(t *testing.T) {
	a := newStub("a", 1, nil)
	b := newStub("b", 0, errors.New("down"))
	o := New(Config{Providers: []Provider{a, b}})

	q := o.Quote(context.Background(), QuoteOptions{PreferredSource: "b"})
	assert.Equal(t, "a", q.Source)
	assert.True(t, q.FallbackUsed)
	assert.Len(t, q.Errors, 1)
}

func TestQuote_UnknownPreferredSourceIgnored(t *testing.T) {
	a := newStub("a", 1, nil)
	q := New(Config{Providers: []Provider{a}}).Quote(context.Background(), QuoteOptions{PreferredSource: "zzz"})
	assert.Equal(t, "a", q.Source)
	assert.False(t, q.FallbackUsed)
}

func TestQuote_Rotation(t *testing.T) {
	a := newStub("a", 1, nil)
	b := newStub("b", 2, nil)
	c := newStub("c", 3, nil)
	o := New(Config{Providers: []Provider{a, b, c}, Rotation: true, Cache: newLoader(t), CacheTTL: time.Minute})
	ctx := context.Background()

	var got []string
	for i := 0; i < 5; i++ {
		require.NoError(t, o.Invalidate(ctx))
		got = append(got, o.Quote(ctx, QuoteOptions{}).Source)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b"}, got)
}

func TestQuote_RotationDisabledStartsAtFirst(t *testing.T) {
	a := newStub("a", 1, nil)
	b := newStub("b", 2, nil)
	o := New(Config{Providers: []Provider{a, b}})
	for i := 0; i < 3; i++ {
		assert.Equal(t, "a", o.Quote(context.Background(), QuoteOptions{}).Source)
	}
}

func TestQuote_CacheHoldsValueUntilInvalidate(t *testing.T) {
	a := newStub("a", 100, nil)
	o := New(Config{Providers: []Provider{a}, Cache: newLoader(t), CacheTTL: time.Minute})
	ctx := context.Background()

	first := o.Quote(ctx, QuoteOptions{})
	a.value.Store(200.0)
	second := o.Quote(ctx, QuoteOptions{})

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), a.calls.Load())

	require.NoError(t, o.Invalidate(ctx))
	third := o.Quote(ctx, QuoteOptions{})
	assert.Equal(t, 200.0, third.Price)
	assert.Equal(t, int32(2), a.calls.Load())
}

func TestQuote_StaticFallbackNotCached(t *testing.T) {
	a := newStub("a", 0, errors.New("down"))
	o := New(Config{Providers: []Provider{a}, Cache: newLoader(t), CacheTTL: time.Minute})
	ctx := context.Background()

	assert.True(t, o.Quote(ctx, QuoteOptions{}).IsStaticFallback())
	a.err = nil
	a.value.Store(5.0)
	q := o.Quote(ctx, QuoteOptions{})
	assert.Equal(t, "a", q.Source)
	assert.Equal(t, 5.0, q.Price)
}

func TestQuote_PreferredSourceCachedSeparately(t *testing.T) {
	a := newStub("a", 1, nil)
	b := newStub("b", 2, nil)
	o := New(Config{Providers: []Provider{a, b}, Cache: newLoader(t), CacheTTL: time.Minute})
	ctx := context.Background()

	assert.Equal(t, "a", o.Quote(ctx, QuoteOptions{}).Source)
	assert.Equal(t, "b", o.Quote(ctx, QuoteOptions{PreferredSource: "b"}).Source)
	assert.Equal(t, "a", o.Quote(ctx, QuoteOptions{}).Source)
}

func TestQuote_UnknownPreferredSourceClearedByInvalidate(t *testing.T) {
	a := newStub("a", 100, nil)
	o := New(Config{Providers: []Provider{a}, Cache: newLoader(t), CacheTTL: time.Minute})
	ctx := context.Background()

	first := o.Quote(ctx, QuoteOptions{PreferredSource: "zzz"})
	assert.Equal(t, 100.0, first.Price)

	a.value.Store(200.0)
	require.NoError(t, o.Invalidate(ctx))

	second := o.Quote(ctx, QuoteOptions{PreferredSource: "zzz"})
	assert.Equal(t, 200.0, second.Price)
	assert.Equal(t, int32(2), a.calls.Load())

	// Unknown names share the default entry.
	third := o.Quote(ctx, QuoteOptions{})
	assert.Equal(t, 200.0, third.Price)
	assert.Equal(t, int32(2), a.calls.Load())
}

func TestQuote_PreferredSourceCaseInsensitive(t *testing.T) {
	a := newStub("a", 1, nil)
	b := newStub("b", 2, nil)
	o := New(Config{Providers: []Provider{a, b}, Cache: newLoader(t), CacheTTL: time.Minute})
	ctx := context.Background()

	q := o.Quote(ctx, QuoteOptions{PreferredSource: "B"})
	assert.Equal(t, "b", q.Source)
	assert.Equal(t, 2.0, q.Price)

	b.value.Store(3.0)
	require.NoError(t, o.Invalidate(ctx))

	q = o.Quote(ctx, QuoteOptions{PreferredSource: "B"})
	assert.Equal(t, 3.0, q.Price)
	assert.Equal(t, int32(2), b.calls.Load())
}

// slowProvider answers after delay unless its context ends first.
type slowProvider struct {
	delay time.Duration
	value float64
}

func (p slowProvider) Name() string { return "slow" }

func (p slowProvider) Fetch(ctx context.Context) (Result, error) {
	select {
	case <-time.After(p.delay):
		return Result{Value: p.value}, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func TestQuote_CanceledCallerDoesNotFailOthers(t *testing.T) {
	o := New(Config{
		Providers: []Provider{slowProvider{delay: 200 * time.Millisecond, value: 42}},
		Cache:     newLoader(t),
		CacheTTL:  time.Minute,
	})

	firstCtx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan types.PriceQuote, 1)
	go func() { firstDone <- o.Quote(firstCtx, QuoteOptions{}) }()

	time.Sleep(5 * time.Millisecond)
	secondDone := make(chan types.PriceQuote, 1)
	go func() { secondDone <- o.Quote(context.Background(), QuoteOptions{}) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	first := <-firstDone
	assert.True(t, first.IsStaticFallback())

	second := <-secondDone
	assert.Equal(t, 42.0, second.Price)
	assert.Equal(t, "slow", second.Source)
}

func TestQuote_ConcurrentCallsAgree(t *testing.T) {
	var n atomic.Int32
	p := &countingProvider{n: &n}
	o := New(Config{Providers: []Provider{p}, Cache: newLoader(t), CacheTTL: time.Minute})

	const callers = 20
	quotes := make([]types.PriceQuote, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			quotes[i] = o.Quote(context.Background(), QuoteOptions{})
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Equal(t, quotes[0].Price, quotes[i].Price)
	}
}

// countingProvider returns a different value on every call.
type countingProvider struct{ n *atomic.Int32 }

func (p *countingProvider) Name() string { return "counter" }

func (p *countingProvider) Fetch(ctx context.Context) (Result, error) {
	time.Sleep(10 * time.Millisecond)
	return Result{Value: float64(p.n.Add(1))}, nil
}

func TestQuote_ProviderRetry(t *testing.T) {
	f := &flakyProvider{failures: 2}
	o := New(Config{
		Providers: []Provider{f},
		Retry:     retry.Policy{MaxAttempts: 3, Delay: time.Millisecond},
	})
	q := o.Quote(context.Background(), QuoteOptions{})
	assert.Equal(t, "flaky", q.Source)
	assert.False(t, q.FallbackUsed)
	assert.Equal(t, 3, f.calls)
}

type flakyProvider struct {
	failures int
	calls    int
}

func (p *flakyProvider) Name() string { return "flaky" }

func (p *flakyProvider) Fetch(ctx context.Context) (Result, error) {
	p.calls++
	if p.calls <= p.failures {
		return Result{}, errors.New("timeout")
	}
	return Result{Value: 7}, nil
}

func TestQuote_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := newStub("a", 1, nil)

	q := New(Config{Providers: []Provider{a}}).Quote(ctx, QuoteOptions{})
	assert.True(t, q.IsStaticFallback())
	assert.Equal(t, int32(0), a.calls.Load())
}

func TestRotation_StaysInRange(t *testing.T) {
	var r rotation
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if idx := r.start(3); idx < 0 || idx >= 3 {
					t.Errorf("start() = %d, out of range", idx)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, r.start(0))
}
