// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/rollcache"
//	"github.com/unkn0wn-root/rollcache/hooks/async"
//	"github.com/unkn0wn-root/rollcache/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    DropEvery:   10, // sample logs: ~every 10th dropped message
//	    ReduceEvery: 1,  // log every reduction
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	w, _ := rollcache.NewWriter[Score](rollcache.WriterOptions[Score]{
//	    Store:   st,
//	    Key:     "scores:global",
//	    MinSize: 500,
//	    MaxSize: 1000,
//	    Codec:   codec.JSON[Score]{},
//	    Hooks:   hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/rollcache"
)

type Hooks struct {
	inner rollcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ rollcache.Hooks = (*Hooks)(nil)

func New(inner rollcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) MessagesDropped(reason string, n int) {
	h.try(func() { h.inner.MessagesDropped(reason, n) })
}
func (h *Hooks) Reduced(k string, kept int64)      { h.try(func() { h.inner.Reduced(k, kept) }) }
func (h *Hooks) ReduceFailed(k string, err error)  { h.try(func() { h.inner.ReduceFailed(k, err) }) }
func (h *Hooks) RefreshSkipped()                   { h.try(func() { h.inner.RefreshSkipped() }) }
func (h *Hooks) CacheRefreshed(id string, n int)   { h.try(func() { h.inner.CacheRefreshed(id, n) }) }
func (h *Hooks) CacheRefreshFailed(id string, err error) {
	h.try(func() { h.inner.CacheRefreshFailed(id, err) })
}
