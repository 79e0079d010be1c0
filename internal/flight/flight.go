// Package flight provides a minimal trigger-coalescing gate for single-flight
// background work.
//
// Unlike golang.org/x/sync/singleflight, callers never join an in-flight run
// or share its result: a trigger that finds the gate busy is either dropped
// or folded into one deferred rerun. That matches maintenance work where
// triggers carry no payload and the latest run supersedes earlier ones.
package flight

import "sync"

// Gate coalesces triggers for one background task. At most one run is in
// flight at a time.
//
// A Gate should be driven by a single acquisition style: TryAcquire (busy
// triggers are dropped) or AcquireOrDefer (busy triggers fold into one
// deferred rerun). Mixing styles on the same gate can leave a deferred
// rerun that no holder consumes.
//
// The zero value is ready to use.
type Gate struct {
	mu    sync.Mutex
	cond  *sync.Cond
	busy  bool
	again bool
}

// TryAcquire attempts to start a run. It returns true if the gate was idle
// and is now held. If a run is already in flight it returns false and the
// trigger is dropped.
func (g *Gate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return false
	}
	g.busy = true
	return true
}

// AcquireOrDefer attempts to start a run. It returns true if the gate was
// idle and is now held. If a run is already in flight it marks the gate for
// one deferred rerun and returns false; the current holder picks the rerun
// up through Release.
func (g *Gate) AcquireOrDefer() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		g.again = true
		return false
	}
	g.busy = true
	return true
}

// Release finishes a run. If a rerun was deferred while the run was in
// flight, Release consumes it and returns true with the gate still held:
// the caller must run again and then call Release again. Otherwise the gate
// becomes idle and Release returns false.
func (g *Gate) Release() (rerun bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.again {
		g.again = false
		return true
	}
	g.busy = false
	if g.cond != nil {
		g.cond.Broadcast()
	}
	return false
}

// Busy reports whether a run is in flight.
func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// WaitIdle blocks until no run is in flight and no rerun is pending.
// It exists for tests that need to observe the result of asynchronous work.
func (g *Gate) WaitIdle() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.busy || g.again {
		if g.cond == nil {
			g.cond = sync.NewCond(&g.mu)
		}
		g.cond.Wait()
	}
}
