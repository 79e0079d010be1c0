package rollcache

// Item is one cache entry: a value ordered by its ID.
//
// The ID becomes the store score, so the store keeps items sorted by ID
// ascending; under a unique writer it is also the identity for
// last-write-wins replacement. Items are treated as immutable once written.
//
// IDs are signed 64-bit integers, carried exactly inside the member frame.
// Backends with float64 scores (Redis) lose score precision beyond ±2^53,
// which affects ordering and score-ranged operations at that magnitude.
type Item[V any] struct {
	ID    int64
	Value V
}
