package rollcache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/unkn0wn-root/rollcache/codec"
	"github.com/unkn0wn-root/rollcache/internal/wire"
	"github.com/unkn0wn-root/rollcache/store"
	"github.com/unkn0wn-root/rollcache/store/memory"
)

// testStore wraps the in-memory backend with call counting and per-op error
// injection. Injected errors may only be changed while no reduction pass is
// in flight (use gate WaitIdle first).
type testStore struct {
	*memory.Memory
	mu    sync.Mutex
	calls map[string]int
	errs  map[string]error
}

var _ store.Store = (*testStore)(nil)

func newTestStore() *testStore {
	return &testStore{
		Memory: memory.New(),
		calls:  make(map[string]int),
		errs:   make(map[string]error),
	}
}

func (s *testStore) op(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
	return s.errs[name]
}

func (s *testStore) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *testStore) fail(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[name] = err
}

func (s *testStore) Upsert(ctx context.Context, key string, ms []store.Member) error {
	if err := s.op("upsert"); err != nil {
		return err
	}
	return s.Memory.Upsert(ctx, key, ms)
}

func (s *testStore) RemoveByScore(ctx context.Context, key string, min, max int64) error {
	if err := s.op("removeByScore"); err != nil {
		return err
	}
	return s.Memory.RemoveByScore(ctx, key, min, max)
}

func (s *testStore) RemoveByRank(ctx context.Context, key string, start, stop int64) error {
	if err := s.op("removeByRank"); err != nil {
		return err
	}
	return s.Memory.RemoveByRank(ctx, key, start, stop)
}

func (s *testStore) RangeByRank(ctx context.Context, key string, start, stop int64) ([]store.Member, error) {
	if err := s.op("rangeByRank"); err != nil {
		return nil, err
	}
	return s.Memory.RangeByRank(ctx, key, start, stop)
}

func (s *testStore) RangeByScore(ctx context.Context, key string, min, max int64) ([]store.Member, error) {
	if err := s.op("rangeByScore"); err != nil {
		return nil, err
	}
	return s.Memory.RangeByScore(ctx, key, min, max)
}

func (s *testStore) Card(ctx context.Context, key string) (int64, error) {
	if err := s.op("card"); err != nil {
		return 0, err
	}
	return s.Memory.Card(ctx, key)
}

func (s *testStore) Delete(ctx context.Context, key string) error {
	if err := s.op("delete"); err != nil {
		return err
	}
	return s.Memory.Delete(ctx, key)
}

// hookRec records every hook invocation for assertions.
type hookRec struct {
	mu           sync.Mutex
	dropped      map[string]int
	reduced      int
	reduceFailed int
	skipped      int
	refreshed    map[string]int
	refreshErrs  map[string]error
}

var _ Hooks = (*hookRec)(nil)

func newHookRec() *hookRec {
	return &hookRec{
		dropped:     make(map[string]int),
		refreshed:   make(map[string]int),
		refreshErrs: make(map[string]error),
	}
}

func (h *hookRec) MessagesDropped(reason string, n int) {
	h.mu.Lock()
	h.dropped[reason] += n
	h.mu.Unlock()
}
func (h *hookRec) Reduced(string, int64)      { h.mu.Lock(); h.reduced++; h.mu.Unlock() }
func (h *hookRec) ReduceFailed(string, error) { h.mu.Lock(); h.reduceFailed++; h.mu.Unlock() }
func (h *hookRec) RefreshSkipped()            { h.mu.Lock(); h.skipped++; h.mu.Unlock() }
func (h *hookRec) CacheRefreshed(id string, n int) {
	h.mu.Lock()
	h.refreshed[id] = n
	h.mu.Unlock()
}
func (h *hookRec) CacheRefreshFailed(id string, err error) {
	h.mu.Lock()
	h.refreshErrs[id] = err
	h.mu.Unlock()
}

func (h *hookRec) droppedCount(reason string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped[reason]
}

func (h *hookRec) counts() (reduced, reduceFailed, skipped int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reduced, h.reduceFailed, h.skipped
}

// post is the value type used across the package tests.
type post struct {
	Body string `json:"body"`
}

func newTestWriter(t *testing.T, st store.Store, min, max int64, mod func(*WriterOptions[post])) *Writer[post] {
	t.Helper()
	opts := WriterOptions[post]{
		Store:   st,
		Key:     "posts",
		MinSize: min,
		MaxSize: max,
		Codec:   codec.JSON[post]{},
	}
	if mod != nil {
		mod(&opts)
	}
	w, err := NewWriter[post](opts)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return w
}

func ids(items []Item[post]) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func wantIDs(t *testing.T, items []Item[post], want ...int64) {
	t.Helper()
	got := ids(items)
	if len(got) != len(want) {
		t.Fatalf("got ids %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got ids %v, want %v", got, want)
		}
	}
}

func readAll(t *testing.T, st store.Store, key string) []Item[post] {
	t.Helper()
	r, err := NewReader[post](ReaderOptions[post]{Store: st, Key: key, Codec: codec.JSON[post]{}})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	items, err := r.Fetch(context.Background(), Query{From: ptr(int64(store.ScoreMin)), Direction: Forward})
	if err != nil {
		t.Fatalf("Fetch all: %v", err)
	}
	return items
}

func ptr(v int64) *int64 { return &v }

// ==============================
// Construction
// ==============================

func TestNewWriterValidation(t *testing.T) {
	st := newTestStore()
	base := func() WriterOptions[post] {
		return WriterOptions[post]{Store: st, Key: "k", Codec: codec.JSON[post]{}}
	}

	cases := []struct {
		name string
		mod  func(*WriterOptions[post])
	}{
		{"missing store", func(o *WriterOptions[post]) { o.Store = nil }},
		{"missing key", func(o *WriterOptions[post]) { o.Key = "" }},
		{"missing codec", func(o *WriterOptions[post]) { o.Codec = nil }},
		{"negative min", func(o *WriterOptions[post]) { o.MinSize = -1 }},
		{"negative max", func(o *WriterOptions[post]) { o.MaxSize = -1 }},
		{"min above max", func(o *WriterOptions[post]) { o.MinSize = 5; o.MaxSize = 3 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := base()
			tc.mod(&opts)
			if _, err := NewWriter[post](opts); err == nil {
				t.Fatal("expected constructor error")
			}
		})
	}

	// Unbounded writer with zero sizes is fine.
	if _, err := NewWriter[post](base()); err != nil {
		t.Fatalf("unbounded writer: %v", err)
	}
}

// ==============================
// Bounded reduction
// ==============================

// TestReductionTrimsToMinKeepingHighest walks a writer up to its bound and
// verifies the reduction leaves exactly MinSize items, the highest IDs.
func TestReductionTrimsToMinKeepingHighest(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	w := newTestWriter(t, st, 2, 5, nil)

	for i := int64(1); i <= 4; i++ {
		if err := w.Insert(ctx, Item[post]{ID: i, Value: post{Body: "b"}}); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	w.gate.WaitIdle()
	if n, _ := w.Size(ctx); n != 4 {
		t.Fatalf("below the bound nothing reduces: size %d", n)
	}

	// Fifth insert reaches MaxSize and arms the trim.
	if err := w.Insert(ctx, Item[post]{ID: 5, Value: post{Body: "b"}}); err != nil {
		t.Fatalf("Insert 5: %v", err)
	}
	w.gate.WaitIdle()

	if n, _ := w.Size(ctx); n != 2 {
		t.Fatalf("post-reduction size %d, want exactly MinSize=2", n)
	}
	wantIDs(t, readAll(t, st, "posts"), 4, 5)
}

// TestReductionSettlesUnderBurst fires concurrent inserts and checks the
// settled cache respects the bound with the newest items intact.
func TestReductionSettlesUnderBurst(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	w := newTestWriter(t, st, 3, 10, nil)

	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = w.Insert(ctx, Item[post]{ID: id, Value: post{Body: "b"}})
		}(i)
	}
	wg.Wait()
	w.gate.WaitIdle()

	n, err := w.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if n >= 10 {
		t.Fatalf("settled size %d, want < MaxSize", n)
	}
	// The three highest IDs survive every trim once written.
	got := map[int64]bool{}
	for _, it := range readAll(t, st, "posts") {
		got[it.ID] = true
	}
	for _, id := range []int64{18, 19, 20} {
		if !got[id] {
			t.Fatalf("highest id %d missing from settled cache", id)
		}
	}
}

func TestUnboundedWriterNeverReduces(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	w := newTestWriter(t, st, 0, 0, nil)

	for i := int64(1); i <= 50; i++ {
		if err := w.Insert(ctx, Item[post]{ID: i, Value: post{Body: "b"}}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	w.gate.WaitIdle()

	if n, _ := w.Size(ctx); n != 50 {
		t.Fatalf("size %d, want 50", n)
	}
	// Size is the only caller of card: reduction never even sized the key.
	if c := st.count("card"); c != 1 {
		t.Fatalf("card called %d times, want 1", c)
	}
	if c := st.count("removeByRank"); c != 0 {
		t.Fatalf("unbounded writer ran %d reductions", c)
	}
}

// TestReductionRerunObservesLatestState pins the debounce contract: triggers
// landing during a pass fold into one rerun, and the rerun sees the final
// size. Injected card errors park the first pass while more writes land.
func TestReductionRerunObservesLatestState(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	hooks := newHookRec()
	w := newTestWriter(t, st, 1, 3, func(o *WriterOptions[post]) { o.Hooks = hooks })

	// Fail the size query so the first passes do nothing while the cache
	// grows past its bound.
	st.fail("card", errors.New("transient"))
	for i := int64(1); i <= 5; i++ {
		if err := w.Insert(ctx, Item[post]{ID: i, Value: post{Body: "b"}}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	w.gate.WaitIdle()
	if n := len(readAll(t, st, "posts")); n != 5 {
		t.Fatalf("failed passes must not trim: %d items", n)
	}

	// Heal the store; the next write's pass sees all five and trims.
	st.fail("card", nil)
	if err := w.Insert(ctx, Item[post]{ID: 6, Value: post{Body: "b"}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	w.gate.WaitIdle()
	wantIDs(t, readAll(t, st, "posts"), 6)

	if _, failed, _ := hooks.counts(); failed == 0 {
		t.Fatal("failed passes should report through hooks")
	}
}

func TestReductionErrorsNeverSurface(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	hooks := newHookRec()
	w := newTestWriter(t, st, 1, 2, func(o *WriterOptions[post]) { o.Hooks = hooks })

	st.fail("removeByRank", errors.New("remove broken"))
	if err := w.Insert(ctx, Item[post]{ID: 1, Value: post{Body: "b"}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := w.Insert(ctx, Item[post]{ID: 2, Value: post{Body: "b"}}); err != nil {
		t.Fatalf("Insert must not see reduction failures: %v", err)
	}
	w.gate.WaitIdle()

	if _, failed, _ := hooks.counts(); failed == 0 {
		t.Fatal("reduction failure not hooked")
	}
	if n, _ := w.Size(ctx); n != 2 {
		t.Fatalf("size %d, want 2 (trim failed)", n)
	}
}

type encodeBomb struct{}

func (encodeBomb) Encode(post) ([]byte, error) { return nil, errors.New("boom") }
func (encodeBomb) Decode([]byte) (post, error) { return post{}, errors.New("boom") }

// TestFailedWriteStillTriggersReduction: the pass runs even when the insert
// itself failed, because the cache may already sit at its bound.
func TestFailedWriteStillTriggersReduction(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()

	// Pre-fill to the bound without triggering anything.
	seed := make([]store.Member, 0, 3)
	for i := int64(1); i <= 3; i++ {
		payload := []byte(`{"body":"` + string(rune('a'+i)) + `"}`)
		seed = append(seed, store.Member{Score: i, Value: wire.EncodeMember(i, payload)})
	}
	if err := st.Upsert(ctx, "posts", seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := newTestWriter(t, st, 1, 3, func(o *WriterOptions[post]) { o.Codec = encodeBomb{} })
	if err := w.Insert(ctx, Item[post]{ID: 4, Value: post{}}); err == nil {
		t.Fatal("expected encode error")
	}
	w.gate.WaitIdle()

	if n, _ := w.Size(ctx); n != 1 {
		t.Fatalf("size %d, want 1 (reduction after failed write)", n)
	}
}

// ==============================
// Unique mode
// ==============================

func TestUniqueInsertLastWriteWins(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	w := newTestWriter(t, st, 0, 0, func(o *WriterOptions[post]) { o.Unique = true })

	if err := w.Insert(ctx, Item[post]{ID: 1, Value: post{Body: "a"}}); err != nil {
		t.Fatalf("Insert a: %v", err)
	}
	if err := w.Insert(ctx, Item[post]{ID: 1, Value: post{Body: "b"}}); err != nil {
		t.Fatalf("Insert b: %v", err)
	}
	w.gate.WaitIdle()

	items := readAll(t, st, "posts")
	if len(items) != 1 || items[0].ID != 1 || items[0].Value.Body != "b" {
		t.Fatalf("unique id 1: got %+v, want single item with body b", items)
	}
}

func TestUniqueBatchLastOccurrenceWins(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	w := newTestWriter(t, st, 0, 0, func(o *WriterOptions[post]) { o.Unique = true })

	err := w.InsertMany(ctx, []Item[post]{
		{ID: 1, Value: post{Body: "a"}},
		{ID: 2, Value: post{Body: "x"}},
		{ID: 1, Value: post{Body: "b"}},
	})
	if err != nil {
		t.Fatalf("InsertMany: %v", err)
	}
	w.gate.WaitIdle()

	items := readAll(t, st, "posts")
	wantIDs(t, items, 1, 2)
	if items[0].Value.Body != "b" {
		t.Fatalf("id 1 body %q, want b (last occurrence)", items[0].Value.Body)
	}
	// One batched store write for the whole batch.
	if c := st.count("upsert"); c != 1 {
		t.Fatalf("upsert called %d times, want 1", c)
	}
}

func TestNonUniqueKeepsDistinctValuesPerID(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	w := newTestWriter(t, st, 0, 0, nil)

	_ = w.Insert(ctx, Item[post]{ID: 1, Value: post{Body: "a"}})
	_ = w.Insert(ctx, Item[post]{ID: 1, Value: post{Body: "b"}})
	w.gate.WaitIdle()

	if n, _ := w.Size(ctx); n != 2 {
		t.Fatalf("size %d, want 2 distinct members under one id", n)
	}
}

// TestDistinctIDsWithEqualValuesStayDistinct: the member frame carries the
// ID, so items whose values encode to the same bytes must not collapse
// across IDs.
func TestDistinctIDsWithEqualValuesStayDistinct(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	w := newTestWriter(t, st, 0, 0, nil)

	// Zero values encode identically; the ids alone keep them apart.
	err := w.InsertMany(ctx, []Item[post]{{ID: 1}, {ID: 2}, {ID: 3}})
	if err != nil {
		t.Fatalf("InsertMany: %v", err)
	}
	w.gate.WaitIdle()

	if n, _ := w.Size(ctx); n != 3 {
		t.Fatalf("size %d, want 3 (one member per id)", n)
	}
	wantIDs(t, readAll(t, st, "posts"), 1, 2, 3)
}

// ==============================
// Remaining operations
// ==============================

func TestInsertManyEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	w := newTestWriter(t, st, 1, 2, nil)

	if err := w.InsertMany(ctx, nil); err != nil {
		t.Fatalf("InsertMany(nil): %v", err)
	}
	w.gate.WaitIdle()

	if c := st.count("upsert"); c != 0 {
		t.Fatalf("empty batch wrote to the store (%d upserts)", c)
	}
	if c := st.count("card"); c != 0 {
		t.Fatalf("empty batch triggered reduction (%d card calls)", c)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	w := newTestWriter(t, st, 0, 0, nil)

	_ = w.Insert(ctx, Item[post]{ID: 1, Value: post{Body: "a"}})
	_ = w.Insert(ctx, Item[post]{ID: 1, Value: post{Body: "b"}})
	_ = w.Insert(ctx, Item[post]{ID: 2, Value: post{Body: "c"}})
	w.gate.WaitIdle()

	// Removes every member at the id.
	if err := w.Remove(ctx, 1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	w.gate.WaitIdle()
	wantIDs(t, readAll(t, st, "posts"), 2)

	// Missing id is fine.
	if err := w.Remove(ctx, 99); err != nil {
		t.Fatalf("Remove missing id: %v", err)
	}
}

// TestRemoveTriggersReductionPass: removal counts as a write, so it
// schedules a pass like an insert does. Below the bound the pass sizes the
// key and stops without trimming.
func TestRemoveTriggersReductionPass(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	w := newTestWriter(t, st, 1, 10, nil)

	err := w.InsertMany(ctx, []Item[post]{
		{ID: 1, Value: post{Body: "a"}},
		{ID: 2, Value: post{Body: "b"}},
	})
	if err != nil {
		t.Fatalf("InsertMany: %v", err)
	}
	w.gate.WaitIdle()
	cardBefore := st.count("card")

	if err := w.Remove(ctx, 1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	w.gate.WaitIdle()

	if c := st.count("card"); c != cardBefore+1 {
		t.Fatalf("Remove did not schedule a pass (card calls %d -> %d)", cardBefore, c)
	}
	if c := st.count("removeByRank"); c != 0 {
		t.Fatalf("below-bound pass trimmed (%d removeByRank calls)", c)
	}
	wantIDs(t, readAll(t, st, "posts"), 2)
}

func TestSizeAlwaysQueriesStore(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	w := newTestWriter(t, st, 0, 0, nil)

	// A second writer on the same key simulates another instance.
	other := newTestWriter(t, st, 0, 0, nil)
	_ = other.Insert(ctx, Item[post]{ID: 7, Value: post{Body: "x"}})
	other.gate.WaitIdle()

	if n, err := w.Size(ctx); err != nil || n != 1 {
		t.Fatalf("Size must reflect foreign writes: n=%d err=%v", n, err)
	}
}

func TestClearDeletesKeyWithoutReduction(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	w := newTestWriter(t, st, 1, 2, nil)

	_ = w.Insert(ctx, Item[post]{ID: 1, Value: post{Body: "a"}})
	w.gate.WaitIdle()
	cardBefore := st.count("card")

	if err := w.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	w.gate.WaitIdle()

	if n, _ := w.Size(ctx); n != 0 {
		t.Fatalf("size %d after Clear", n)
	}
	// Size above accounts for one card call; Clear itself adds none.
	if c := st.count("card"); c != cardBefore+1 {
		t.Fatalf("Clear triggered reduction (card calls %d -> %d)", cardBefore, c)
	}
}

func TestWriteErrorsSurfaceToCaller(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	w := newTestWriter(t, st, 0, 0, nil)

	boom := errors.New("store down")
	st.fail("upsert", boom)
	if err := w.Insert(ctx, Item[post]{ID: 1, Value: post{Body: "a"}}); !errors.Is(err, boom) {
		t.Fatalf("Insert error = %v, want %v", err, boom)
	}
	st.fail("removeByScore", boom)
	if err := w.Remove(ctx, 1); !errors.Is(err, boom) {
		t.Fatalf("Remove error = %v, want %v", err, boom)
	}
}
