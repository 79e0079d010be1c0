package rollcache

// Route is a routing decision: which cache receives which item.
type Route[V any] struct {
	CacheID string
	Item    Item[V]
}

// Router turns decoded source values into routing decisions. Returning
// ok=false drops the message silently; routing is expected to be lossy.
//
// Raw messages are decoded by the collection first, so msg is always the
// structured form (for raw JSON: the usual map[string]any / []any shapes).
type Router[V any] interface {
	Route(msg any) (Route[V], bool)
}

// RouterFunc adapts a plain function to the Router interface.
type RouterFunc[V any] func(msg any) (Route[V], bool)

func (f RouterFunc[V]) Route(msg any) (Route[V], bool) { return f(msg) }
