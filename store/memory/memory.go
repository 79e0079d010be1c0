// Package memory implements the rollcache store contract in process memory.
//
// It mirrors the Redis backend's semantics: member identity is the value
// bytes, upserting an existing value moves its score, and equal scores
// order lexicographically by value. Intended for embedding, development
// and tests. Data does not survive process restart.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/unkn0wn-root/rollcache/store"
)

type zset map[string]int64 // member value -> score

type Memory struct {
	mu   sync.RWMutex
	sets map[string]zset
}

var _ store.Store = (*Memory)(nil)

func New() *Memory {
	return &Memory{sets: make(map[string]zset)}
}

func (s *Memory) Upsert(_ context.Context, key string, members []store.Member) error {
	if len(members) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = make(zset, len(members))
		s.sets[key] = set
	}
	for _, m := range members {
		set[string(m.Value)] = m.Score
	}
	return nil
}

func (s *Memory) RemoveByScore(_ context.Context, key string, min, max int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.sets[key]
	for v, sc := range set {
		if sc >= min && sc <= max {
			delete(set, v)
		}
	}
	s.dropIfEmpty(key)
	return nil
}

func (s *Memory) RemoveByRank(_ context.Context, key string, start, stop int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := s.sorted(key)
	lo, hi, ok := normalizeRanks(start, stop, int64(len(ms)))
	if !ok {
		return nil
	}
	set := s.sets[key]
	for _, m := range ms[lo : hi+1] {
		delete(set, string(m.Value))
	}
	s.dropIfEmpty(key)
	return nil
}

func (s *Memory) RangeByRank(_ context.Context, key string, start, stop int64) ([]store.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ms := s.sorted(key)
	lo, hi, ok := normalizeRanks(start, stop, int64(len(ms)))
	if !ok {
		return nil, nil
	}
	return append([]store.Member(nil), ms[lo:hi+1]...), nil
}

func (s *Memory) RangeByScore(_ context.Context, key string, min, max int64) ([]store.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Member
	for _, m := range s.sorted(key) {
		if m.Score >= min && m.Score <= max {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Memory) Card(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.sets[key])), nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, key)
	return nil
}

func (s *Memory) Close(context.Context) error { return nil }

// sorted materializes key's members ordered by (score, value).
// Callers must hold at least the read lock.
func (s *Memory) sorted(key string) []store.Member {
	set := s.sets[key]
	if len(set) == 0 {
		return nil
	}
	ms := make([]store.Member, 0, len(set))
	for v, sc := range set {
		ms = append(ms, store.Member{Score: sc, Value: []byte(v)})
	}
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Score != ms[j].Score {
			return ms[i].Score < ms[j].Score
		}
		return bytes.Compare(ms[i].Value, ms[j].Value) < 0
	})
	return ms
}

// dropIfEmpty removes fully-emptied keys so Card and Delete agree with a
// backend that forgets empty sets. Callers must hold the write lock.
func (s *Memory) dropIfEmpty(key string) {
	if set, ok := s.sets[key]; ok && len(set) == 0 {
		delete(s.sets, key)
	}
}

// normalizeRanks resolves possibly-negative [start, stop] against n members
// the way Redis does: negatives count from the end, results clamp into
// [0, n-1]. ok is false when the window is empty.
func normalizeRanks(start, stop, n int64) (lo, hi int64, ok bool) {
	if n == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n || stop < 0 {
		return 0, 0, false
	}
	return start, stop, true
}
