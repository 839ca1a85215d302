package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dailyyoga/studysync/logger"
	"github.com/dailyyoga/studysync/querykey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fetchErr struct {
	msg   string
	retry bool
}

func (e fetchErr) Error() string   { return e.msg }
func (e fetchErr) Retryable() bool { return e.retry }

func newTestCache(t *testing.T, clock *fakeClock, mutate ...func(*Config)) QueryCache {
	t.Helper()
	cfg := &Config{RetryDelay: time.Millisecond, MaxRetryDelay: 5 * time.Millisecond}
	for _, m := range mutate {
		m(cfg)
	}
	c, err := New(logger.Nop(), cfg, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func counting(calls *atomic.Int32, value any) Fetcher {
	return func(ctx context.Context) (any, error) {
		calls.Add(1)
		return value, nil
	}
}

func nextEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

var (
	expenses = querykey.For("expenses")
	budgets  = querykey.For("budgets")
)

func TestFetch_FreshEntryServedFromCache(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	var calls atomic.Int32
	key := expenses.List(nil)

	snap, err := c.Fetch(context.Background(), key, counting(&calls, []string{"rent"}))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, []string{"rent"}, snap.Data)
	assert.False(t, snap.Stale)

	clock.Advance(59 * time.Second)
	snap, err = c.Fetch(context.Background(), key, counting(&calls, []string{"other"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"rent"}, snap.Data)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_StaleEntryRefetched(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	var calls atomic.Int32
	key := expenses.Detail("e1")

	_, err := c.Fetch(context.Background(), key, counting(&calls, "v1"))
	require.NoError(t, err)

	clock.Advance(60 * time.Second)
	peek, ok := c.Peek(key)
	require.True(t, ok)
	assert.True(t, peek.Stale)

	snap, err := c.Fetch(context.Background(), key, counting(&calls, "v2"))
	require.NoError(t, err)
	assert.Equal(t, "v2", snap.Data)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_AlwaysStaleFetchesEveryRead(t *testing.T) {
	c := newTestCache(t, newFakeClock(), func(cfg *Config) { cfg.StaleTime = AlwaysStale })
	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), budgets.List(nil), counting(&calls, "v"))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_PerQueryStaleTimeAndForce(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	var calls atomic.Int32
	key := budgets.List(nil)

	_, err := c.Fetch(context.Background(), key, counting(&calls, 1), WithStaleTime(5*time.Minute))
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)
	_, err = c.Fetch(context.Background(), key, counting(&calls, 2))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	snap, err := c.Fetch(context.Background(), key, counting(&calls, 3), Force())
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Data)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_ConcurrentReadsShareOneFetch(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := expenses.List(map[string]any{"month": 5})

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := c.Fetch(context.Background(), key, fetch)
			assert.NoError(t, err)
			results[i] = snap.Data
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestFetch_CallerCancelDoesNotCancelSharedFetch(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := budgets.Detail("b1")

	release := make(chan struct{})
	var fetchCtxErr atomic.Value
	fetch := func(ctx context.Context) (any, error) {
		<-release
		fetchCtxErr.Store(ctx.Err() == nil)
		return "done", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx, key, fetch)
		errc <- err
	}()
	require.Eventually(t, func() bool {
		snap, _ := c.Peek(key)
		return snap.Fetching
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	done := make(chan Snapshot, 1)
	go func() {
		snap, err := c.Fetch(context.Background(), key, fetch)
		assert.NoError(t, err)
		done <- snap
	}()
	close(release)

	snap := <-done
	assert.Equal(t, "done", snap.Data)
	assert.Equal(t, true, fetchCtxErr.Load())
}

func TestFetch_InvalidationDuringFlightLeavesResultStale(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := expenses.List(nil)

	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return "old", nil
	}

	res := make(chan Snapshot, 1)
	go func() {
		snap, _ := c.Fetch(context.Background(), key, fetch)
		res <- snap
	}()
	<-started
	assert.Equal(t, 1, c.Invalidate(expenses.Lists()))
	close(release)

	snap := <-res
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, "old", snap.Data)
	assert.True(t, snap.Stale)

	var calls atomic.Int32
	snap, err := c.Fetch(context.Background(), key, counting(&calls, "new"))
	require.NoError(t, err)
	assert.Equal(t, "new", snap.Data)
	assert.False(t, snap.Stale)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_ErrorRetainsPreviousValue(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	key := expenses.Detail("e1")

	_, err := c.Fetch(context.Background(), key, counting(new(atomic.Int32), "kept"))
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	boom := fetchErr{msg: "Expense not found", retry: false}
	snap, err := c.Fetch(context.Background(), key, func(ctx context.Context) (any, error) {
		return nil, boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, "kept", snap.Data)
	assert.True(t, snap.HasData)
	assert.Equal(t, boom, snap.Err)
	assert.False(t, snap.Stale, "a failure ages from when it happened")

	clock.Advance(2 * time.Minute)
	snap, _ = c.Peek(key)
	assert.True(t, snap.Stale)
}

func TestFetch_FreshErrorServedFromCache(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	key := expenses.Detail("missing")
	var calls atomic.Int32
	notFound := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, fetchErr{msg: "Expense not found"}
	}

	_, err := c.Fetch(context.Background(), key, notFound)
	require.Error(t, err)
	snap, err := c.Fetch(context.Background(), key, notFound)
	assert.EqualError(t, err, "Expense not found")
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, int32(1), calls.Load(), "second read resolves from cache")

	c.Invalidate(key)
	_, _ = c.Fetch(context.Background(), key, notFound)
	assert.Equal(t, int32(2), calls.Load(), "invalidation forces a new call")
	_, _ = c.Fetch(context.Background(), key, notFound)
	assert.Equal(t, int32(2), calls.Load(), "a failed refetch answers the invalidation")

	clock.Advance(time.Minute)
	_, _ = c.Fetch(context.Background(), key, notFound)
	assert.Equal(t, int32(3), calls.Load(), "stale error refetches")

	_, _ = c.Fetch(context.Background(), key, notFound, Force())
	assert.Equal(t, int32(4), calls.Load())
}

func TestFetch_FailedRevalidationNotRepeated(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	key := expenses.Detail("e1")
	var calls atomic.Int32

	_, err := c.Fetch(context.Background(), key, counting(&calls, "kept"))
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	failing := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, fetchErr{msg: "Network Error", retry: true}
	}
	_, err = c.Fetch(context.Background(), key, failing)
	require.Error(t, err)
	before := calls.Load()

	snap, err := c.Fetch(context.Background(), key, failing)
	require.Error(t, err)
	assert.Equal(t, before, calls.Load())
	assert.Equal(t, "kept", snap.Data)
}

func TestFetch_RetriesOnlyRetryableErrors(t *testing.T) {
	tests := []struct {
		name      string
		retry     bool
		opts      []FetchOption
		wantCalls int32
	}{
		{"retryable uses two retries", true, nil, 3},
		{"not retryable", false, nil, 1},
		{"retry disabled per query", true, []FetchOption{WithRetry(0)}, 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache(t, newFakeClock())
			var calls atomic.Int32
			_, err := c.Fetch(context.Background(), expenses.List(nil), func(ctx context.Context) (any, error) {
				calls.Add(1)
				return nil, fetchErr{msg: "Network Error", retry: tt.retry}
			}, tt.opts...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestFetch_RecoversFromRetry(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	var calls atomic.Int32
	snap, err := c.Fetch(context.Background(), budgets.List(nil), func(ctx context.Context) (any, error) {
		if calls.Add(1) < 3 {
			return nil, fetchErr{msg: "timeout", retry: true}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", snap.Data)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_PanickingFetcherFails(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	snap, err := c.Fetch(context.Background(), budgets.Detail("x"), func(ctx context.Context) (any, error) {
		panic("boom")
	})
	require.Error(t, err)
	assert.Equal(t, StatusError, snap.Status)
}

func TestFetch_NilFetcher(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	_, err := c.Fetch(context.Background(), budgets.All(), nil)
	assert.ErrorIs(t, err, ErrNilFetcher)
}

func TestInvalidate_PrefixHierarchy(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	ctx := context.Background()
	for _, key := range []querykey.Key{
		expenses.List(nil),
		expenses.List(map[string]any{"month": 5}),
		expenses.Detail("e1"),
		budgets.List(nil),
	} {
		_, err := c.Fetch(ctx, key, counting(new(atomic.Int32), "v"))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.Invalidate(expenses.Lists()))

	stale := func(k querykey.Key) bool {
		snap, ok := c.Peek(k)
		require.True(t, ok)
		return snap.Stale
	}
	assert.True(t, stale(expenses.List(nil)))
	assert.True(t, stale(expenses.List(map[string]any{"month": 5})))
	assert.False(t, stale(expenses.Detail("e1")))
	assert.False(t, stale(budgets.List(nil)))

	assert.Equal(t, 3, c.Invalidate(expenses.All()))
	assert.Equal(t, 0, c.Invalidate(querykey.For("jobs").All()))
}

func TestSetData_MarksFresh(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := expenses.Detail("e9")
	c.Invalidate(expenses.All())

	snap := c.SetData(key, map[string]string{"title": "Books"})
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.False(t, snap.Stale)

	var calls atomic.Int32
	got, err := c.Fetch(context.Background(), key, counting(&calls, nil))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"title": "Books"}, got.Data)
	assert.Equal(t, int32(0), calls.Load())
}

func TestSubscribe_ReceivesEvents(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := budgets.Detail("b1")
	sub := c.Subscribe(key)
	defer sub.Close()

	_, err := c.Fetch(context.Background(), key, counting(new(atomic.Int32), 42))
	require.NoError(t, err)

	ev := nextEvent(t, sub)
	assert.Equal(t, EventUpdated, ev.Type)
	assert.Equal(t, StatusLoading, ev.Snapshot.Status)

	ev = nextEvent(t, sub)
	assert.Equal(t, EventUpdated, ev.Type)
	assert.Equal(t, StatusSuccess, ev.Snapshot.Status)
	assert.Equal(t, 42, ev.Snapshot.Data)
	assert.Equal(t, 1, ev.Snapshot.Observers)

	c.Invalidate(budgets.Details())
	ev = nextEvent(t, sub)
	assert.Equal(t, EventInvalidated, ev.Type)
	assert.True(t, ev.Snapshot.Stale)

	assert.Equal(t, 1, c.Remove(budgets.All()))
	ev = nextEvent(t, sub)
	assert.Equal(t, EventRemoved, ev.Type)
	assert.Equal(t, 0, c.Len())
}

func TestSubscribe_CloseEndsStream(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	sub := c.Subscribe(expenses.All())
	sub.Close()
	sub.Close()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel not closed")
	}
}

func TestGC_RemovesOnlyInactiveUnsubscribed(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	ctx := context.Background()
	kept, dropped := expenses.List(nil), budgets.List(nil)

	_, err := c.Fetch(ctx, kept, counting(new(atomic.Int32), "a"))
	require.NoError(t, err)
	_, err = c.Fetch(ctx, dropped, counting(new(atomic.Int32), "b"))
	require.NoError(t, err)

	sub := c.Subscribe(kept)
	defer sub.Close()

	clock.Advance(4 * time.Minute)
	assert.Equal(t, 0, c.GC())

	clock.Advance(time.Minute)
	assert.Equal(t, 1, c.GC())
	_, ok := c.Peek(kept)
	assert.True(t, ok)
	_, ok = c.Peek(dropped)
	assert.False(t, ok)

	sub.Close()
	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, c.GC())
	assert.Equal(t, 0, c.Len())
}

func TestRefetchStale(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	ctx := context.Background()
	active, idle := expenses.List(nil), budgets.List(nil)
	var activeCalls, idleCalls atomic.Int32

	_, err := c.Fetch(ctx, active, counting(&activeCalls, "a"))
	require.NoError(t, err)
	_, err = c.Fetch(ctx, idle, counting(&idleCalls, "b"))
	require.NoError(t, err)
	sub := c.Subscribe(active)
	defer sub.Close()

	n, err := c.RefetchStale(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	clock.Advance(time.Minute)
	n, err = c.Refocus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(2), activeCalls.Load())
	assert.Equal(t, int32(1), idleCalls.Load())

	n, err = c.RefetchStale(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(2), idleCalls.Load())
}

func TestRefocus_Disabled(t *testing.T) {
	clock := newFakeClock()
	off := false
	c := newTestCache(t, clock, func(cfg *Config) { cfg.RefetchOnFocus = &off })
	var calls atomic.Int32
	key := expenses.List(nil)
	_, err := c.Fetch(context.Background(), key, counting(&calls, "a"))
	require.NoError(t, err)
	sub := c.Subscribe(key)
	defer sub.Close()

	clock.Advance(time.Hour)
	n, err := c.Refocus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDehydrateHydrate(t *testing.T) {
	clock := newFakeClock()
	src := newTestCache(t, clock)
	ctx := context.Background()
	key := expenses.List(map[string]any{"category": "food"})

	_, err := src.Fetch(ctx, key, counting(new(atomic.Int32), []map[string]any{{"_id": "e1"}}))
	require.NoError(t, err)
	_, err = src.Fetch(ctx, budgets.Detail("b1"), func(ctx context.Context) (any, error) {
		return nil, fetchErr{msg: "nope"}
	})
	require.Error(t, err)

	items, err := src.Dehydrate()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, key.Equal(items[0].Key))
	assert.JSONEq(t, `[{"_id":"e1"}]`, string(items[0].Data))

	clock.Advance(10 * time.Minute)
	dst := newTestCache(t, clock)
	assert.Equal(t, 1, dst.Hydrate(items))
	assert.Equal(t, 0, dst.Hydrate(items))

	snap, ok := dst.Peek(key)
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.True(t, snap.Stale)
	assert.Equal(t, json.RawMessage(`[{"_id":"e1"}]`), snap.Data)
}

func TestClear(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	c.SetData(expenses.Detail("1"), 1)
	c.SetData(budgets.Detail("2"), 2)
	assert.Len(t, c.Keys(), 2)
	assert.Equal(t, 2, c.Clear())
	assert.Equal(t, 0, c.Len())
}

func TestClose(t *testing.T) {
	c, err := New(logger.Nop(), nil)
	require.NoError(t, err)
	sub := c.Subscribe(expenses.All())
	c.Close()
	c.Close()

	_, err = c.Fetch(context.Background(), expenses.All(), counting(new(atomic.Int32), 1))
	assert.ErrorIs(t, err, ErrCacheClosed)
	_, ok := <-sub.Events()
	assert.False(t, ok)
	sub.Close()
}

func TestRemovedDuringFlightIsNotResurrected(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := expenses.Detail("e1")
	started := make(chan struct{})
	release := make(chan struct{})

	res := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), key, func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return "late", nil
		})
		res <- err
	}()
	<-started
	c.Clear()
	close(release)
	require.NoError(t, <-res)

	_, ok := c.Peek(key)
	assert.False(t, ok)
}

func TestConfig(t *testing.T) {
	cfg := (&Config{}).MergeDefaults()
	assert.Equal(t, 60*time.Second, cfg.StaleTime)
	assert.Equal(t, 2, cfg.Retry)
	assert.True(t, cfg.RefetchOnFocusEnabled())
	assert.NoError(t, cfg.Validate())

	always := (&Config{StaleTime: AlwaysStale, Retry: -1}).MergeDefaults()
	assert.Equal(t, AlwaysStale, always.StaleTime)
	assert.Equal(t, -1, always.Retry)
	assert.NoError(t, always.Validate())

	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative stale", Config{StaleTime: -time.Second, GCTime: time.Minute}},
		{"zero gc", Config{}},
		{"bad retry", Config{GCTime: time.Minute, Retry: -2}},
		{"max below delay", Config{GCTime: time.Minute, RetryDelay: time.Second, MaxRetryDelay: time.Millisecond}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{Retries: 5, Delay: time.Second, MaxDelay: 30 * time.Second}
	assert.Equal(t, time.Duration(0), p.Backoff(0))
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 30*time.Second, p.Backoff(10))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(fetchErr{retry: true}))
	assert.False(t, IsRetryable(fetchErr{retry: false}))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(errors.New("dial tcp: connection refused")))
	assert.False(t, IsRetryable(errors.New("validation failed")))
}
