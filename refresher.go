package rollcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/rollcache/internal/flight"
)

// RefresherOptions configure NewRefresher.
type RefresherOptions struct {
	// Interval between periodic cycles. 0 means DefaultRefreshInterval.
	Interval time.Duration
	// Lazy suppresses the immediate first cycle: by default Start kicks
	// off a cycle right away and the ticker takes over from there.
	Lazy bool
	// MaxConcurrent bounds how many caches repopulate at once within a
	// cycle. 0 means no bound.
	MaxConcurrent int
	// Logger. nil disables logging.
	Logger Logger
	// Hooks for cycle outcomes. nil installs NopHooks.
	Hooks Hooks
}

// Refresher periodically rebuilds every cache registered in a Collection
// from its populator. Cycles are single-flight: a tick landing while a
// cycle runs is skipped outright. Within a cycle caches refresh
// concurrently and independently; one cache failing never stops the rest.
type Refresher[V any] struct {
	coll     *Collection[V]
	interval time.Duration
	lazy     bool
	maxConc  int
	log      Logger
	hooks    Hooks

	gate flight.Gate

	mu      sync.Mutex
	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

var _ RefreshState = (*Refresher[struct{}])(nil)

// NewRefresher validates opts, builds a Refresher and binds it as coll's
// refresh state, so the collection drops source events while a cycle runs.
func NewRefresher[V any](coll *Collection[V], opts RefresherOptions) (*Refresher[V], error) {
	if coll == nil {
		return nil, fmt.Errorf("rollcache: collection is required")
	}
	if opts.Interval < 0 {
		return nil, fmt.Errorf("rollcache: interval must not be negative")
	}
	if opts.MaxConcurrent < 0 {
		return nil, fmt.Errorf("rollcache: max concurrent must not be negative")
	}
	r := &Refresher[V]{
		coll:     coll,
		interval: coalesce(opts.Interval, DefaultRefreshInterval),
		lazy:     opts.Lazy,
		maxConc:  opts.MaxConcurrent,
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:    coalesce[Hooks](opts.Hooks, NopHooks{}),
	}
	coll.bindRefreshState(r)
	return r, nil
}

// Start arms the periodic ticker (and, unless Lazy, kicks off an immediate
// first cycle). Calling Start on a running refresher is a no-op.
func (r *Refresher[V]) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.stopCh = make(chan struct{})
	r.ticker = time.NewTicker(r.interval)

	if !r.lazy {
		r.runAsync()
	}
	r.wg.Add(1)
	go r.loop()
}

// Stop disarms the ticker. An in-flight cycle is NOT cancelled; it runs to
// completion in the background. Calling Stop on a stopped refresher is a
// no-op.
func (r *Refresher[V]) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	r.started = false
	close(r.stopCh)
	r.ticker.Stop()
	r.wg.Wait()
	r.ticker = nil
}

// Refreshing reports whether a cycle is in flight.
func (r *Refresher[V]) Refreshing() bool { return r.gate.Busy() }

// Refresh runs one cycle synchronously. Unlike ticks, which skip silently,
// an explicit call while a cycle is in flight returns ErrRefreshing.
// Per-cache failures aggregate into a *CycleError; nil means every cache
// repopulated.
func (r *Refresher[V]) Refresh(ctx context.Context) error {
	if !r.gate.TryAcquire() {
		return ErrRefreshing
	}
	defer r.gate.Release()
	return r.cycle(ctx)
}

func (r *Refresher[V]) loop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ticker.C:
			r.runAsync()
		case <-r.stopCh:
			return
		}
	}
}

// runAsync starts one background cycle if none is in flight. Periodic
// cycles outlive Stop, so they run under context.Background.
func (r *Refresher[V]) runAsync() {
	if !r.gate.TryAcquire() {
		r.log.Debug("refresh skipped, cycle in flight", nil)
		r.hooks.RefreshSkipped()
		return
	}
	go func() {
		defer r.gate.Release()
		_ = r.cycle(context.Background()) // outcomes already logged + hooked
	}()
}

func (r *Refresher[V]) cycle(ctx context.Context) error {
	entries := r.coll.entries()
	start := time.Now()
	r.log.Debug("refresh cycle start", Fields{"caches": len(entries)})

	var (
		mu       sync.Mutex
		failures map[string]error
	)
	var g errgroup.Group
	if r.maxConc > 0 {
		g.SetLimit(r.maxConc)
	}
	for _, e := range entries {
		g.Go(func() error {
			if err := r.refreshOne(ctx, e); err != nil {
				mu.Lock()
				if failures == nil {
					failures = make(map[string]error)
				}
				failures[e.id] = err
				mu.Unlock()
				r.log.Error("cache refresh failed", Fields{"cache": e.id, "err": err.Error()})
				r.hooks.CacheRefreshFailed(e.id, err)
			}
			// Never fail the group: caches refresh independently.
			return nil
		})
	}
	_ = g.Wait()

	r.log.Debug("refresh cycle done", Fields{
		"caches":  len(entries),
		"failed":  len(failures),
		"elapsed": time.Since(start).String(),
	})
	if len(failures) > 0 {
		return &CycleError{Failures: failures}
	}
	return nil
}

// refreshOne rebuilds a single cache: populate, clear, insert. Populate
// runs first so a failing source of record leaves the old contents intact.
// Between clear and insert the cache is briefly empty; readers see that
// window.
func (r *Refresher[V]) refreshOne(ctx context.Context, e cacheEntry[V]) error {
	if e.populate == nil {
		r.log.Debug("cache has no populator, skipped", Fields{"cache": e.id})
		return nil
	}
	items, err := e.populate.Populate(ctx)
	if err != nil {
		return fmt.Errorf("populate: %w", err)
	}
	if err := e.writer.Clear(ctx); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if err := e.writer.InsertMany(ctx, items); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	r.hooks.CacheRefreshed(e.id, len(items))
	return nil
}
