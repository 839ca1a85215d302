package cache

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/dailyyoga/studysync/logger"
	"github.com/dailyyoga/studysync/metrics"
	"github.com/dailyyoga/studysync/querykey"
	"github.com/dailyyoga/studysync/routine"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// refetchConcurrency bounds parallel revalidation fetches
const refetchConcurrency = 4

type entry struct {
	key querykey.Key

	data      any
	hasData   bool
	err       error
	status    Status
	updatedAt time.Time
	errorAt   time.Time

	// invalidated forces the next read to fetch; generation tells an
	// in-flight fetch that an invalidation happened after it started
	invalidated bool
	generation  uint64
	fetching    bool

	staleTime  time.Duration
	fetcher    Fetcher
	lastAccess time.Time
}

// Option configures the cache
type Option func(*queryCache)

// WithClock overrides the time source used for staleness and GC
func WithClock(now func() time.Time) Option {
	return func(c *queryCache) { c.now = now }
}

type queryCache struct {
	log    logger.Logger
	cfg    Config
	policy RetryPolicy
	now    func() time.Time
	flight singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry
	subs    map[string]map[*Subscription]struct{}
	closed  bool
}

// New creates a query cache.
// It returns an error if the configuration is invalid.
func New(log logger.Logger, cfg *Config, opts ...Option) (QueryCache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &queryCache{
		log:     logger.Named(log, "cache"),
		cfg:     *cfg,
		policy:  cfg.retryPolicy(),
		now:     time.Now,
		entries: make(map[string]*entry),
		subs:    make(map[string]map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.log.Info("query cache created",
		zap.Duration("stale_time", cfg.StaleTime),
		zap.Duration("gc_time", cfg.GCTime),
		zap.Int("retry", cfg.Retry),
		zap.Bool("refetch_on_focus", cfg.RefetchOnFocusEnabled()),
	)
	return c, nil
}

func (c *queryCache) Fetch(ctx context.Context, key querykey.Key, fetch Fetcher, opts ...FetchOption) (Snapshot, error) {
	if fetch == nil {
		return Snapshot{Key: key}, ErrNilFetcher
	}
	o := fetchOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	k := key.String()
	resource := key.Resource()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{Key: key}, ErrCacheClosed
	}
	e := c.entryLocked(key)
	now := c.now()
	e.lastAccess = now
	e.fetcher = fetch
	if o.staleTime != nil {
		e.staleTime = *o.staleTime
	}
	if !o.force && !c.staleLocked(e, now) {
		snap := c.snapshotLocked(e, now)
		c.mu.Unlock()
		metrics.ObserveLookup(resource, metrics.LookupHit)
		return snap, snap.Err
	}
	joined := e.fetching
	if e.hasData {
		metrics.ObserveLookup(resource, metrics.LookupStale)
	} else {
		metrics.ObserveLookup(resource, metrics.LookupMiss)
	}
	c.mu.Unlock()

	if joined {
		metrics.ObserveDeduplicated(resource)
	}

	policy := c.policy
	if o.retry != nil {
		policy.Retries = *o.retry
	}

	// the shared fetch outlives any single reader
	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(k, func() (any, error) {
		return c.run(detached, key, fetch, policy)
	})

	select {
	case res := <-ch:
		snap, _ := res.Val.(Snapshot)
		return snap, res.Err
	case <-ctx.Done():
		snap, _ := c.Peek(key)
		return snap, ctx.Err()
	}
}

// run executes one shared fetch and writes its outcome
func (c *queryCache) run(ctx context.Context, key querykey.Key, fetch Fetcher, policy RetryPolicy) (any, error) {
	k := key.String()

	c.mu.Lock()
	e := c.entryLocked(key)
	e.fetching = true
	e.status = StatusLoading
	gen := e.generation
	c.emitLocked(k, EventUpdated, e)
	c.mu.Unlock()

	fctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	data, err := runWithRetry(fctx, c.log, k, policy, c.guard(fetch))
	metrics.ObserveFetch(key.Resource(), err)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if cur, ok := c.entries[k]; !ok || cur != e {
		// removed while in flight; the result must not resurrect it
		snap := c.snapshotLocked(e, now)
		snap.Fetching = false
		return snap, err
	}

	e.fetching = false
	if err != nil {
		e.err = err
		e.errorAt = now
		e.status = StatusError
		e.invalidated = e.generation != gen
	} else {
		e.data = data
		e.hasData = true
		e.err = nil
		e.status = StatusSuccess
		e.updatedAt = now
		e.invalidated = e.generation != gen
	}
	c.emitLocked(k, EventUpdated, e)
	return c.snapshotLocked(e, now), err
}

// guard turns a panicking fetcher into a failed read
func (c *queryCache) guard(fetch Fetcher) Fetcher {
	return func(ctx context.Context) (data any, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = routine.ErrPanic(rec)
				c.log.Error("fetcher panicked", zap.Error(err))
			}
		}()
		return fetch(ctx)
	}
}

func (c *queryCache) Peek(key querykey.Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return Snapshot{Key: key, Stale: true}, false
	}
	return c.snapshotLocked(e, c.now()), true
}

func (c *queryCache) SetData(key querykey.Key, data any) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e := c.entryLocked(key)
	e.data = data
	e.hasData = true
	e.err = nil
	if !e.fetching {
		e.status = StatusSuccess
	}
	e.updatedAt = now
	e.lastAccess = now
	e.invalidated = false
	// an older fetch still in flight must not look fresh when it lands
	e.generation++
	c.emitLocked(key.String(), EventUpdated, e)
	return c.snapshotLocked(e, now)
}

func (c *queryCache) Invalidate(prefix querykey.Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.invalidated = true
		e.generation++
		c.emitLocked(k, EventInvalidated, e)
		n++
	}
	if n > 0 {
		metrics.ObserveInvalidation(prefix.Resource(), n)
	}
	c.log.Debug("invalidated", zap.Stringer("prefix", prefix), zap.Int("entries", n))
	return n
}

func (c *queryCache) Remove(prefix querykey.Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.removeLocked(func(e *entry) bool { return e.key.HasPrefix(prefix) })
	c.log.Debug("removed", zap.Stringer("prefix", prefix), zap.Int("entries", n))
	return n
}

func (c *queryCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.removeLocked(func(*entry) bool { return true })
	c.log.Info("cache cleared", zap.Int("entries", n))
	return n
}

func (c *queryCache) Subscribe(key querykey.Key) *Subscription {
	s := newSubscription(key, c.detach)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		s.closeIn()
		return s
	}
	k := key.String()
	set, ok := c.subs[k]
	if !ok {
		set = make(map[*Subscription]struct{})
		c.subs[k] = set
	}
	set[s] = struct{}{}
	return s
}

func (c *queryCache) detach(s *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := s.key.String()
	set, ok := c.subs[k]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(c.subs, k)
	}
	s.closeIn()
	// the GC window starts when the last observer leaves
	if e, ok := c.entries[k]; ok {
		e.lastAccess = c.now()
	}
}

func (c *queryCache) GC() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.entries {
		if len(c.subs[k]) > 0 || e.fetching {
			continue
		}
		if now.Sub(e.lastAccess) < c.cfg.GCTime {
			continue
		}
		delete(c.entries, k)
		n++
	}
	if n > 0 {
		metrics.ObserveCollected(n)
		metrics.SetEntries(len(c.entries))
		c.log.Debug("collected inactive entries", zap.Int("entries", n), zap.Int("remaining", len(c.entries)))
	}
	return n
}

type refetchTarget struct {
	key   querykey.Key
	fetch Fetcher
}

func (c *queryCache) RefetchStale(ctx context.Context, onlyActive bool) (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrCacheClosed
	}
	now := c.now()
	var targets []refetchTarget
	for k, e := range c.entries {
		if e.fetcher == nil || e.fetching || !c.staleLocked(e, now) {
			continue
		}
		if onlyActive && len(c.subs[k]) == 0 {
			continue
		}
		targets = append(targets, refetchTarget{key: e.key, fetch: e.fetcher})
	}
	c.mu.Unlock()

	if len(targets) == 0 {
		return 0, nil
	}
	c.log.Debug("revalidating stale entries", zap.Int("entries", len(targets)), zap.Bool("only_active", onlyActive))

	g := errgroup.Group{}
	g.SetLimit(refetchConcurrency)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			_, err := c.Fetch(ctx, t.key, t.fetch)
			return err
		})
	}
	return len(targets), g.Wait()
}

func (c *queryCache) Refocus(ctx context.Context) (int, error) {
	if !c.cfg.RefetchOnFocusEnabled() {
		return 0, nil
	}
	return c.RefetchStale(ctx, true)
}

func (c *queryCache) Dehydrate() ([]Dehydrated, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Dehydrated, 0, len(c.entries))
	for k, e := range c.entries {
		if !e.hasData {
			continue
		}
		raw, err := json.Marshal(e.data)
		if err != nil {
			return nil, ErrEncodeSnapshot(k, err)
		}
		out = append(out, Dehydrated{Key: e.key, Data: raw, UpdatedAt: e.updatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out, nil
}

func (c *queryCache) Hydrate(items []Dehydrated) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for _, item := range items {
		k := item.Key.String()
		if e, ok := c.entries[k]; ok && e.hasData && !e.updatedAt.Before(item.UpdatedAt) {
			continue
		}
		e := c.entryLocked(item.Key)
		e.data = item.Data
		e.hasData = true
		e.err = nil
		e.status = StatusSuccess
		e.updatedAt = item.UpdatedAt
		e.lastAccess = now
		c.emitLocked(k, EventUpdated, e)
		n++
	}
	c.log.Info("cache hydrated", zap.Int("entries", n), zap.Int("offered", len(items)))
	return n
}

func (c *queryCache) Keys() []querykey.Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]querykey.Key, 0, len(c.entries))
	for _, e := range c.entries {
		keys = append(keys, e.key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func (c *queryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *queryCache) Config() Config {
	return c.cfg
}

func (c *queryCache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for k, set := range c.subs {
		for s := range set {
			s.closeIn()
		}
		delete(c.subs, k)
	}
	c.mu.Unlock()

	c.cancel()
	c.log.Info("query cache closed")
}

func (c *queryCache) entryLocked(key querykey.Key) *entry {
	k := key.String()
	e, ok := c.entries[k]
	if !ok {
		e = &entry{
			key:        key,
			status:     StatusIdle,
			staleTime:  c.cfg.StaleTime,
			lastAccess: c.now(),
		}
		c.entries[k] = e
		metrics.SetEntries(len(c.entries))
	}
	return e
}

// staleLocked reports whether a read must fetch. A failed entry ages from
// its last failure, so it is served from cache like a successful one.
func (c *queryCache) staleLocked(e *entry, now time.Time) bool {
	if e.invalidated {
		return true
	}
	if e.status == StatusError {
		return now.Sub(e.errorAt) >= e.staleTime
	}
	if !e.hasData {
		return true
	}
	return now.Sub(e.updatedAt) >= e.staleTime
}

func (c *queryCache) removeLocked(match func(*entry) bool) int {
	n := 0
	for k, e := range c.entries {
		if !match(e) {
			continue
		}
		delete(c.entries, k)
		c.emitLocked(k, EventRemoved, e)
		n++
	}
	metrics.SetEntries(len(c.entries))
	return n
}

func (c *queryCache) snapshotLocked(e *entry, now time.Time) Snapshot {
	return Snapshot{
		Key:       e.key,
		Data:      e.data,
		Err:       e.err,
		Status:    e.status,
		HasData:   e.hasData,
		UpdatedAt: e.updatedAt,
		ErrorAt:   e.errorAt,
		Stale:     c.staleLocked(e, now),
		Fetching:  e.fetching,
		Observers: len(c.subs[e.key.String()]),
	}
}

func (c *queryCache) emitLocked(k string, t EventType, e *entry) {
	set := c.subs[k]
	if len(set) == 0 {
		return
	}
	ev := Event{Type: t, Snapshot: c.snapshotLocked(e, c.now())}
	for s := range set {
		s.send(ev)
	}
}
