package rollcache

import "time"

const (
	// DefaultReadLimit caps Latest and backward Fetch windows when the
	// caller does not provide one.
	DefaultReadLimit int64 = 100

	// DefaultRefreshInterval is the refresher tick period when
	// RefresherOptions.Interval is zero.
	DefaultRefreshInterval = 60 * time.Second
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
