package rollcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// Writers, collections and refreshers call them from maintenance paths.
type Hooks interface {
	// Source messages were dropped before reaching any writer.
	// reason ∈ {"refreshing", "decode_error", "no_route", "unknown_cache", "insert_error"}
	MessagesDropped(reason string, count int)

	// A reduction pass trimmed key down to kept items.
	Reduced(key string, kept int64)

	// A reduction pass failed. The cache may stay over its bound until the
	// next write triggers another pass.
	ReduceFailed(key string, err error)

	// A periodic tick found a refresh cycle still in flight and skipped.
	RefreshSkipped()

	// One cache repopulated during a refresh cycle.
	CacheRefreshed(cacheID string, items int)

	// One cache failed to repopulate. Other caches are unaffected.
	CacheRefreshFailed(cacheID string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) MessagesDropped(string, int)      {}
func (NopHooks) Reduced(string, int64)            {}
func (NopHooks) ReduceFailed(string, error)       {}
func (NopHooks) RefreshSkipped()                  {}
func (NopHooks) CacheRefreshed(string, int)       {}
func (NopHooks) CacheRefreshFailed(string, error) {}
