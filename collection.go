package rollcache

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// RefreshState reports whether a refresh cycle is in flight. While one is,
// the Collection drops every inbound source event: refresh rebuilds caches
// from the system of record, so concurrent source writes would only be
// overwritten or interleave with the clear.
type RefreshState interface {
	Refreshing() bool
}

// CollectionOptions configure NewCollection.
type CollectionOptions struct {
	// Logger. nil disables logging.
	Logger Logger
	// Hooks for drop accounting. nil installs NopHooks.
	Hooks Hooks
}

// Collection is a registry of named caches fed by sources. Messages flow
// source -> router -> writer; anything that cannot complete that path is
// dropped silently (counted through Hooks, detailed at debug level).
type Collection[V any] struct {
	caches *xsync.MapOf[string, cacheEntry[V]]
	log    Logger
	hooks  Hooks

	mu      sync.RWMutex
	router  Router[V]
	refresh RefreshState

	stopCh    chan struct{}
	pumps     sync.WaitGroup
	closeOnce sync.Once
}

type cacheEntry[V any] struct {
	id       string
	writer   *Writer[V]
	populate Populator[V]
}

// NewCollection builds an empty Collection.
func NewCollection[V any](opts CollectionOptions) *Collection[V] {
	return &Collection[V]{
		caches: xsync.NewMapOf[string, cacheEntry[V]](),
		log:    coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:  coalesce[Hooks](opts.Hooks, NopHooks{}),
		stopCh: make(chan struct{}),
	}
}

// AddCache registers a cache under id, overwriting any previous entry.
// populate may be nil for caches fed by sources only; the refresher skips
// them.
func (c *Collection[V]) AddCache(id string, w *Writer[V], populate Populator[V]) {
	c.caches.Store(id, cacheEntry[V]{id: id, writer: w, populate: populate})
}

// Cache returns the writer registered under id.
func (c *Collection[V]) Cache(id string) (*Writer[V], bool) {
	e, ok := c.caches.Load(id)
	if !ok {
		return nil, false
	}
	return e.writer, true
}

// SetRouter installs the routing function. Routing a message while no
// router is installed panics: sources were wired before routing was, which
// is a bug in the caller's setup, not a runtime condition to tolerate.
func (c *Collection[V]) SetRouter(r Router[V]) {
	c.mu.Lock()
	c.router = r
	c.mu.Unlock()
}

// bindRefreshState attaches the refresh gate consulted on every event.
// NewRefresher calls this; the collection only ever reads Refreshing().
func (c *Collection[V]) bindRefreshState(rs RefreshState) {
	c.mu.Lock()
	c.refresh = rs
	c.mu.Unlock()
}

// AddSource starts consuming events from src. The pump stops when the
// source closes its channel or when the collection is closed.
func (c *Collection[V]) AddSource(src Source) {
	c.pumps.Add(1)
	go c.pump(src.Events())
}

// Close stops consuming all sources and waits for the pumps to exit.
// It does not touch the stores; registered writers stay usable.
func (c *Collection[V]) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCh)
	})
	c.pumps.Wait()
}

func (c *Collection[V]) pump(events <-chan Event) {
	defer c.pumps.Done()
	for {
		select {
		case <-c.stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.dispatch(ev)
		}
	}
}

func (c *Collection[V]) dispatch(ev Event) {
	if len(ev.Messages) == 0 {
		return
	}

	c.mu.RLock()
	rs := c.refresh
	c.mu.RUnlock()
	if rs != nil && rs.Refreshing() {
		c.log.Debug("event dropped, refresh in flight", Fields{"messages": len(ev.Messages)})
		c.hooks.MessagesDropped("refreshing", len(ev.Messages))
		return
	}

	for _, m := range ev.Messages {
		c.route(m)
	}
}

func (c *Collection[V]) route(m Message) {
	v, err := m.resolve()
	if err != nil {
		c.log.Debug("message dropped, undecodable", Fields{"err": err.Error()})
		c.hooks.MessagesDropped("decode_error", 1)
		return
	}

	c.mu.RLock()
	r := c.router
	c.mu.RUnlock()
	if r == nil {
		panic("rollcache: no router installed")
	}

	rt, ok := r.Route(v)
	if !ok {
		c.hooks.MessagesDropped("no_route", 1)
		return
	}
	e, ok := c.caches.Load(rt.CacheID)
	if !ok {
		c.log.Debug("message dropped, unknown cache", Fields{"cache": rt.CacheID})
		c.hooks.MessagesDropped("unknown_cache", 1)
		return
	}
	if err := e.writer.Insert(context.Background(), rt.Item); err != nil {
		c.log.Debug("message dropped, insert failed", Fields{"cache": rt.CacheID, "err": err.Error()})
		c.hooks.MessagesDropped("insert_error", 1)
	}
}

// entries snapshots the registry for a refresh cycle. Caches added after
// the snapshot join the next cycle.
func (c *Collection[V]) entries() []cacheEntry[V] {
	out := make([]cacheEntry[V], 0, c.caches.Size())
	c.caches.Range(func(_ string, e cacheEntry[V]) bool {
		out = append(out, e)
		return true
	})
	return out
}
