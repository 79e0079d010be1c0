// Package store defines the ordered-store abstraction used by rollcache.
//
// A Store is a remote (or in-process) collection of sorted sets: each key
// holds members ordered by an int64 score, lowest first. Implementations
// MUST be value-transparent: RangeByRank/RangeByScore must return exactly
// the []byte previously passed to Upsert for a member (no metadata, no
// re-encoding). Members with equal scores must be returned in a stable
// order.
//
// Score bounds are inclusive everywhere. ScoreMin and ScoreMax cover the
// whole score domain and double as open-bound sentinels: adapters backed by
// stores with explicit infinities (e.g. Redis "-inf"/"+inf") should map them
// accordingly.
package store

import (
	"context"
	"math"
)

const (
	// ScoreMin is the lowest representable score (open lower bound).
	ScoreMin int64 = math.MinInt64
	// ScoreMax is the highest representable score (open upper bound).
	ScoreMax int64 = math.MaxInt64
)

// Member is one scored entry of a sorted set.
type Member struct {
	Score int64
	Value []byte
}

// Store is the minimal sorted-set surface rollcache builds on.
// Must be safe for concurrent use. All ranges are inclusive on both ends.
// Rank 0 is the lowest-scored member; negative ranks count from the end
// (-1 is the highest-scored member).
type Store interface {
	// Upsert adds or updates members under key. An existing identical value
	// has its score updated in place.
	Upsert(ctx context.Context, key string, members []Member) error

	// RemoveByScore removes every member with score in [min, max].
	// Removing from a missing key or an empty range is not an error.
	RemoveByScore(ctx context.Context, key string, min, max int64) error

	// RemoveByRank removes every member with rank in [start, stop].
	RemoveByRank(ctx context.Context, key string, start, stop int64) error

	// RangeByRank returns members with rank in [start, stop], ascending by
	// score. A missing key yields an empty result.
	RangeByRank(ctx context.Context, key string, start, stop int64) ([]Member, error)

	// RangeByScore returns members with score in [min, max], ascending by
	// score. A missing key yields an empty result.
	RangeByScore(ctx context.Context, key string, min, max int64) ([]Member, error)

	// Card returns the number of members stored under key (0 if missing).
	Card(ctx context.Context, key string) (int64, error)

	// Delete removes the whole key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
