package rollcache

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrRefreshing is returned by Refresher.Refresh when a cycle is already in
// flight. Periodic ticks never surface it; they skip silently.
var ErrRefreshing = errors.New("rollcache: refresh already in progress")

// CycleError reports the caches that failed during one refresh cycle.
// Caches absent from Failures repopulated successfully; one cache failing
// never aborts the others.
type CycleError struct {
	// Failures maps cache ID to the error that stopped its repopulation.
	Failures map[string]error
}

func (e *CycleError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "refresh cycle: %d cache(s) failed:", len(ids))
	for _, id := range ids {
		fmt.Fprintf(&b, " %s: %v;", id, e.Failures[id])
	}
	return strings.TrimSuffix(b.String(), ";")
}

func (e *CycleError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		errs = append(errs, err)
	}
	return errs
}
