// Package rollcache maintains size-bounded, ordered caches in a remote
// sorted-set store (Redis ZSETs in production). Items carry an int64 ID that
// becomes the store score, so every cache stays sorted by ID and range reads
// are cheap.
//
// Components:
//   - store.Store: the ordered-store contract (store/redis, store/memory).
//   - codec.Codec[V]: deterministic (de)serialization of V <-> []byte.
//   - Writer[V]: inserts/removes with an asynchronous size bound - when a
//     cache reaches MaxSize items, a background pass trims it to the
//     MinSize highest IDs.
//   - Reader[V]: Latest and anchored range reads, ascending by ID.
//   - Collection[V]: registry of named caches fed by Sources through a
//     Router; unroutable or undecodable messages drop silently.
//   - Refresher[V]: periodically rebuilds every registered cache from its
//     Populator. Cycles are single-flight and per-cache failures are
//     isolated; while a cycle runs, the collection drops source events.
//
// Order and identity:
//
//	score  = Item.ID                      - store orders ascending
//	member = frame(ID, Codec.Encode(val)) - the ID rides in the member, so
//	         distinct IDs never collide; byte-identical frames collapse
//
// A refresh clears a cache before reinserting, so readers can observe a
// brief empty window per cache per cycle.
package rollcache
