package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/park285/uci-puzzle-harness/internal/domain"
	"github.com/redis/go-redis/v9"
)

const defaultRedisTTL = 30 * 24 * time.Hour

// RedisIndex keeps a compact summary of every run plus the ids of the puzzles
// it failed, so recent results can be compared without a database.
type RedisIndex struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

type runSummary struct {
	ID            string    `json:"id"`
	EnginePath    string    `json:"engine_path"`
	Seed          int64     `json:"seed"`
	MinPopularity int       `json:"min_popularity"`
	MinRating     int       `json:"min_rating"`
	Requested     int       `json:"requested"`
	Solved        int       `json:"solved"`
	Total         int       `json:"total"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

func NewRedisIndex(rdb *redis.Client, prefix string, ttl time.Duration) *RedisIndex {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "puzzles"
	}
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisIndex{rdb: rdb, prefix: prefix, ttl: ttl}
}

// DialRedis parses a redis:// URL and pings the server.
func DialRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *RedisIndex) keyRuns() string              { return s.prefix + ":runs" }
func (s *RedisIndex) keyRun(id string) string      { return s.prefix + ":run:" + id }
func (s *RedisIndex) keyFailures(id string) string { return s.keyRun(id) + ":failed" }

func (s *RedisIndex) Record(ctx context.Context, run domain.Run) error {
	raw, err := json.Marshal(runSummary{
		ID:            run.ID,
		EnginePath:    run.EnginePath,
		Seed:          run.Seed,
		MinPopularity: run.MinPopularity,
		MinRating:     run.MinRating,
		Requested:     run.Requested,
		Solved:        run.Solved,
		Total:         run.Total,
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
	})
	if err != nil {
		return err
	}

	var failed []any
	for _, res := range run.Results {
		if !res.Success {
			id := res.Puzzle.ID
			if id == "" {
				id = res.Puzzle.FEN
			}
			failed = append(failed, id)
		}
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.keyRun(run.ID), raw, s.ttl)
		pipe.Del(ctx, s.keyFailures(run.ID))
		if len(failed) > 0 {
			pipe.RPush(ctx, s.keyFailures(run.ID), failed...)
			pipe.Expire(ctx, s.keyFailures(run.ID), s.ttl)
		}
		pipe.ZAdd(ctx, s.keyRuns(), redis.Z{Score: float64(run.StartedAt.UnixNano()), Member: run.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis record run %s: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns up to limit summaries, newest first. Expired entries are
// dropped from the index as they are found.
func (s *RedisIndex) RecentRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 10
	}
	ids, err := s.rdb.ZRevRange(ctx, s.keyRuns(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	runs := make([]domain.Run, 0, len(ids))
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, s.keyRun(id)).Bytes()
		if err == redis.Nil {
			_ = s.rdb.ZRem(ctx, s.keyRuns(), id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		var sum runSummary
		if err := json.Unmarshal(raw, &sum); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", id, err)
		}
		runs = append(runs, domain.Run{
			ID:            sum.ID,
			EnginePath:    sum.EnginePath,
			Seed:          sum.Seed,
			MinPopularity: sum.MinPopularity,
			MinRating:     sum.MinRating,
			Requested:     sum.Requested,
			Solved:        sum.Solved,
			Total:         sum.Total,
			StartedAt:     sum.StartedAt,
			FinishedAt:    sum.FinishedAt,
		})
	}
	return runs, nil
}

// FailedPuzzles lists the puzzles a run did not solve, in play order.
func (s *RedisIndex) FailedPuzzles(ctx context.Context, runID string) ([]string, error) {
	return s.rdb.LRange(ctx, s.keyFailures(runID), 0, -1).Result()
}
