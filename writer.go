package rollcache

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/rollcache/codec"
	"github.com/unkn0wn-root/rollcache/internal/flight"
	"github.com/unkn0wn-root/rollcache/internal/wire"
	"github.com/unkn0wn-root/rollcache/store"
)

// WriterOptions configure NewWriter.
type WriterOptions[V any] struct {
	// Store is the ordered store backing the cache. Required.
	Store store.Store
	// Key is the sorted-set key this writer owns. Required.
	Key string
	// MinSize is the item count a reduction shrinks the cache down to.
	MinSize int64
	// MaxSize is the size bound. Once the cache reaches MaxSize items, the
	// next reduction pass trims it to the MinSize highest IDs.
	// 0 means unbounded: the writer never reduces.
	MaxSize int64
	// Unique makes the item ID an identity: writing an ID that already
	// exists replaces the old value (last write wins). Without it the store
	// keeps every distinct encoded value, however many share an ID.
	Unique bool
	// Codec encodes values into member payloads. It must be deterministic
	// (see the codec package); a drifting codec breaks Unique replacement.
	// Required.
	Codec codec.Codec[V]
	// Logger. nil disables logging.
	Logger Logger
	// Hooks for reduction outcomes. nil installs NopHooks.
	Hooks Hooks
}

// Writer maintains one bounded, ordered cache key. Write operations return
// store errors unchanged; the size bound is enforced by an asynchronous
// reduction pass that never blocks or fails the write path.
type Writer[V any] struct {
	st     store.Store
	key    string
	min    int64
	max    int64
	unique bool
	codec  codec.Codec[V]
	log    Logger
	hooks  Hooks
	gate   flight.Gate
}

// NewWriter validates opts and builds a Writer.
func NewWriter[V any](opts WriterOptions[V]) (*Writer[V], error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("rollcache: store is required")
	}
	if opts.Key == "" {
		return nil, fmt.Errorf("rollcache: key is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("rollcache: codec is required")
	}
	if opts.MinSize < 0 || opts.MaxSize < 0 {
		return nil, fmt.Errorf("rollcache: sizes must not be negative")
	}
	if opts.MaxSize > 0 && opts.MinSize > opts.MaxSize {
		return nil, fmt.Errorf("rollcache: min size %d exceeds max size %d", opts.MinSize, opts.MaxSize)
	}
	return &Writer[V]{
		st:     opts.Store,
		key:    opts.Key,
		min:    opts.MinSize,
		max:    opts.MaxSize,
		unique: opts.Unique,
		codec:  opts.Codec,
		log:    coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:  coalesce[Hooks](opts.Hooks, NopHooks{}),
	}, nil
}

// Key returns the sorted-set key this writer owns.
func (w *Writer[V]) Key() string { return w.key }

// Insert writes one item and triggers a reduction pass. The pass is
// triggered even when the write failed: the cache may have grown past its
// bound before the failure.
func (w *Writer[V]) Insert(ctx context.Context, item Item[V]) error {
	err := w.insert(ctx, []Item[V]{item})
	w.triggerReduce()
	return err
}

// InsertMany writes a batch and triggers one reduction pass. An empty batch
// is a no-op and triggers nothing. Under Unique, the last occurrence of
// each ID within the batch wins.
func (w *Writer[V]) InsertMany(ctx context.Context, items []Item[V]) error {
	if len(items) == 0 {
		return nil
	}
	err := w.insert(ctx, items)
	w.triggerReduce()
	return err
}

// Remove deletes every member with the given ID. A missing ID is not an
// error. Removal counts as a write and triggers a reduction pass like any
// other.
func (w *Writer[V]) Remove(ctx context.Context, id int64) error {
	err := w.st.RemoveByScore(ctx, w.key, id, id)
	w.triggerReduce()
	return err
}

// Size reports the current item count straight from the store. The writer
// keeps no local count.
func (w *Writer[V]) Size(ctx context.Context) (int64, error) {
	return w.st.Card(ctx, w.key)
}

// Clear deletes the whole cache key. No reduction (the result is empty by
// definition).
func (w *Writer[V]) Clear(ctx context.Context) error {
	return w.st.Delete(ctx, w.key)
}

func (w *Writer[V]) insert(ctx context.Context, items []Item[V]) error {
	if w.unique {
		items = dedupeLastWins(items)
	}

	// Encode everything first so a bad value fails before any store mutation.
	members := make([]store.Member, 0, len(items))
	for _, it := range items {
		b, err := w.codec.Encode(it.Value)
		if err != nil {
			return fmt.Errorf("rollcache: encode item id=%d: %w", it.ID, err)
		}
		// The ID is framed into the member so byte-equal values under
		// different IDs stay distinct.
		members = append(members, store.Member{Score: it.ID, Value: wire.EncodeMember(it.ID, b)})
	}

	if w.unique {
		// Drop any previous member carrying one of the incoming IDs, then
		// write the batch in one call.
		for _, it := range items {
			if err := w.st.RemoveByScore(ctx, w.key, it.ID, it.ID); err != nil {
				return err
			}
		}
	}
	return w.st.Upsert(ctx, w.key, members)
}

// dedupeLastWins collapses duplicate IDs within a batch, keeping each ID's
// last occurrence in its original position.
func dedupeLastWins[V any](items []Item[V]) []Item[V] {
	last := make(map[int64]int, len(items))
	for i, it := range items {
		last[it.ID] = i
	}
	if len(last) == len(items) {
		return items
	}
	out := make([]Item[V], 0, len(last))
	for i, it := range items {
		if last[it.ID] == i {
			out = append(out, it)
		}
	}
	return out
}

// triggerReduce schedules a background reduction pass. Triggers landing
// while a pass is in flight fold into one deferred rerun, so the finishing
// pass always re-checks the newest size.
func (w *Writer[V]) triggerReduce() {
	if w.max == 0 {
		return
	}
	if !w.gate.AcquireOrDefer() {
		return
	}
	go func() {
		for {
			w.reduce(context.Background())
			if !w.gate.Release() {
				return
			}
		}
	}()
}

// reduce runs one shrink pass: if the cache has reached MaxSize items it
// keeps the MinSize highest IDs and removes the rest. Errors are logged and
// hooked, never surfaced to the write that triggered the pass; the next
// write triggers another attempt.
func (w *Writer[V]) reduce(ctx context.Context) {
	n, err := w.st.Card(ctx, w.key)
	if err != nil {
		w.log.Error("reduce: card failed", Fields{"key": w.key, "err": err.Error()})
		w.hooks.ReduceFailed(w.key, err)
		return
	}
	if n < w.max {
		return
	}
	// Members sort by ID ascending, so ranks 0..-(min+1) are everything but
	// the min highest.
	if err := w.st.RemoveByRank(ctx, w.key, 0, -(w.min + 1)); err != nil {
		w.log.Error("reduce: remove failed", Fields{"key": w.key, "err": err.Error()})
		w.hooks.ReduceFailed(w.key, err)
		return
	}
	w.log.Debug("reduced", Fields{"key": w.key, "from": n, "to": w.min})
	w.hooks.Reduced(w.key, w.min)
}
