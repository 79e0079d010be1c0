package rollcache

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/rollcache/codec"
	"github.com/unkn0wn-root/rollcache/internal/wire"
	"github.com/unkn0wn-root/rollcache/store"
)

// Direction selects which side of a Fetch anchor to walk.
type Direction int

const (
	// Forward returns every item with ID >= the anchor, uncapped.
	Forward Direction = iota
	// Backward returns a bounded window of items with ID <= the anchor.
	Backward
)

// Query describes one Fetch.
type Query struct {
	// From anchors the scan at an item ID. nil means "newest items":
	// Fetch behaves like Latest.
	From *int64
	// Direction picks the side of the anchor. The zero value is Forward.
	Direction Direction
	// Limit caps Backward results (and the Latest fallback); <= 0 uses
	// the reader default. Forward scans ignore it.
	Limit int64
}

// ReaderOptions configure NewReader.
type ReaderOptions[V any] struct {
	// Store is the ordered store backing the cache. Required.
	Store store.Store
	// Key is the sorted-set key this reader serves. Required.
	Key string
	// Codec decodes member payloads back into values. Required.
	Codec codec.Codec[V]
	// Limit is the default window size for Latest and backward fetches.
	// 0 means DefaultReadLimit.
	Limit int64
	// Logger for decode failures and the like. nil disables logging.
	Logger Logger
}

// Reader serves ordered reads over one cache key. Results are always
// ascending by ID. Store, framing and decode errors surface unchanged; the
// reader never retries or repairs.
type Reader[V any] struct {
	st    store.Store
	key   string
	codec codec.Codec[V]
	limit int64
	log   Logger
}

// NewReader validates opts and builds a Reader.
func NewReader[V any](opts ReaderOptions[V]) (*Reader[V], error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("rollcache: store is required")
	}
	if opts.Key == "" {
		return nil, fmt.Errorf("rollcache: key is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("rollcache: codec is required")
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("rollcache: limit must not be negative")
	}
	return &Reader[V]{
		st:    opts.Store,
		key:   opts.Key,
		codec: opts.Codec,
		limit: coalesce(opts.Limit, DefaultReadLimit),
		log:   coalesce[Logger](opts.Logger, NopLogger{}),
	}, nil
}

// Latest returns the newest limit items, ascending by ID. limit <= 0 uses
// the reader default. Fewer (or zero) items than limit is not an error.
func (r *Reader[V]) Latest(ctx context.Context, limit int64) ([]Item[V], error) {
	if limit <= 0 {
		limit = r.limit
	}
	ms, err := r.st.RangeByRank(ctx, r.key, -limit, -1)
	if err != nil {
		return nil, err
	}
	return r.decode(ms)
}

// Fetch returns items around q.From per q.Direction. See Query for the
// window semantics.
func (r *Reader[V]) Fetch(ctx context.Context, q Query) ([]Item[V], error) {
	if q.From == nil {
		return r.Latest(ctx, q.Limit)
	}

	from := *q.From
	var ms []store.Member
	var err error
	switch q.Direction {
	case Forward:
		ms, err = r.st.RangeByScore(ctx, r.key, from, store.ScoreMax)
	case Backward:
		limit := q.Limit
		if limit <= 0 {
			limit = r.limit
		}
		// At most limit items ending at and including the anchor. IDs may
		// be sparse, so this is a count cap over everything <= from, not a
		// numeric score window.
		ms, err = r.st.RangeByScore(ctx, r.key, store.ScoreMin, from)
		if err == nil && int64(len(ms)) > limit {
			ms = ms[int64(len(ms))-limit:]
		}
	default:
		return nil, fmt.Errorf("rollcache: unknown direction %d", q.Direction)
	}
	if err != nil {
		return nil, err
	}
	return r.decode(ms)
}

func (r *Reader[V]) decode(ms []store.Member) ([]Item[V], error) {
	items := make([]Item[V], 0, len(ms))
	for _, m := range ms {
		// The frame carries the exact ID; the score only orders. Float
		// score backends round past ±2^53, the frame never does.
		id, payload, err := wire.DecodeMember(m.Value)
		if err != nil {
			r.log.Error("corrupt member", Fields{"key": r.key, "score": m.Score, "err": err.Error()})
			return nil, fmt.Errorf("rollcache: member at score %d: %w", m.Score, err)
		}
		v, err := r.codec.Decode(payload)
		if err != nil {
			r.log.Error("decode member", Fields{"key": r.key, "id": id, "err": err.Error()})
			return nil, fmt.Errorf("rollcache: decode member id=%d: %w", id, err)
		}
		items = append(items, Item[V]{ID: id, Value: v})
	}
	return items, nil
}
