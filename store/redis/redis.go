// Package redis implements the rollcache store contract on top of Redis
// sorted sets via github.com/redis/go-redis.
//
// Scores travel as Redis doubles: IDs with magnitude above 2^53 lose
// precision on this backend. ScoreMin/ScoreMax map to "-inf"/"+inf".
package redis

import (
	"context"
	"errors"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/rollcache/store"
)

var ErrNilClient = errors.New("redis store: nil client")

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ store.Store = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this store exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (s *Redis) Upsert(ctx context.Context, key string, members []store.Member) error {
	if len(members) == 0 {
		return nil
	}
	zs := make([]goredis.Z, len(members))
	for i, m := range members {
		zs[i] = goredis.Z{Score: float64(m.Score), Member: m.Value}
	}
	return s.rdb.ZAdd(ctx, key, zs...).Err()
}

func (s *Redis) RemoveByScore(ctx context.Context, key string, min, max int64) error {
	return s.rdb.ZRemRangeByScore(ctx, key, formatScore(min), formatScore(max)).Err()
}

func (s *Redis) RemoveByRank(ctx context.Context, key string, start, stop int64) error {
	return s.rdb.ZRemRangeByRank(ctx, key, start, stop).Err()
}

func (s *Redis) RangeByRank(ctx context.Context, key string, start, stop int64) ([]store.Member, error) {
	zs, err := s.rdb.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	return toMembers(zs)
}

func (s *Redis) RangeByScore(ctx context.Context, key string, min, max int64) ([]store.Member, error) {
	zs, err := s.rdb.ZRangeByScoreWithScores(ctx, key, &goredis.ZRangeBy{
		Min: formatScore(min),
		Max: formatScore(max),
	}).Result()
	if err != nil {
		return nil, err
	}
	return toMembers(zs)
}

func (s *Redis) Card(ctx context.Context, key string) (int64, error) {
	return s.rdb.ZCard(ctx, key).Result()
}

func (s *Redis) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Redis) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func formatScore(v int64) string {
	switch v {
	case store.ScoreMin:
		return "-inf"
	case store.ScoreMax:
		return "+inf"
	default:
		return strconv.FormatInt(v, 10)
	}
}

func toMembers(zs []goredis.Z) ([]store.Member, error) {
	out := make([]store.Member, 0, len(zs))
	for _, z := range zs {
		var val []byte
		switch m := z.Member.(type) {
		case string:
			val = []byte(m)
		case []byte:
			val = m
		default:
			return nil, errors.New("redis store: unexpected member type")
		}
		out = append(out, store.Member{Score: int64(z.Score), Value: val})
	}
	return out, nil
}
