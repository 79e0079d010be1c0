package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/rollcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	// Drops and reductions are the only events that can be hot: drops
	// arrive per message during refresh windows, reductions per overflow.
	DropEvery   uint64
	ReduceEvery uint64
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	dropCtr   atomic.Uint64
	reduceCtr atomic.Uint64
}

var _ rollcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) MessagesDropped(reason string, count int) {
	if h.l == nil || !sample(h.opts.DropEvery, &h.dropCtr) {
		return
	}
	h.l.Debug("rollcache.messages_dropped",
		"reason", reason,
		"count", count)
}

func (h *Hooks) Reduced(key string, kept int64) {
	if h.l == nil || !sample(h.opts.ReduceEvery, &h.reduceCtr) {
		return
	}
	h.l.Debug("rollcache.reduced",
		"key", key,
		"kept", kept)
}

func (h *Hooks) ReduceFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("rollcache.reduce_failed",
		"key", key,
		"err", err)
}

func (h *Hooks) RefreshSkipped() {
	if h.l == nil {
		return
	}
	h.l.Info("rollcache.refresh_skipped",
		"msg", "tick arrived while a cycle was in flight; consider a longer interval")
}

func (h *Hooks) CacheRefreshed(cacheID string, items int) {
	if h.l == nil {
		return
	}
	h.l.Debug("rollcache.cache_refreshed",
		"cache", cacheID,
		"items", items)
}

func (h *Hooks) CacheRefreshFailed(cacheID string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("rollcache.cache_refresh_failed",
		"cache", cacheID,
		"err", err)
}
