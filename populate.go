package rollcache

import "context"

// Populator produces the full desired contents of one cache for a refresh
// cycle, typically by querying the system of record. A nil slice is a valid
// empty result.
type Populator[V any] interface {
	Populate(ctx context.Context) ([]Item[V], error)
}

// PopulateFunc adapts a plain function to the Populator interface.
type PopulateFunc[V any] func(ctx context.Context) ([]Item[V], error)

func (f PopulateFunc[V]) Populate(ctx context.Context) ([]Item[V], error) { return f(ctx) }
