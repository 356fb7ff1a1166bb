// Package persistence checkpoints credential-store profiles into Redis so
// accounts survive a relay restart.
//
// The relay is fully functional without it: a nil *Store skips every
// operation, and an open circuit breaker degrades to in-memory-only
// operation instead of failing callers. Room, voice, and matchmaking state
// are deliberately never persisted.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/accounts"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/logging"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/metrics"
)

// Profiles live one per key so a checkpoint only grows keyspace, never
// clobbers records written by a newer instance during rollout.
const profileKeyPrefix = "driftspace:profile:"

// Store wraps the Redis connection behind a circuit breaker.
type Store struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// NewStore connects to Redis and verifies the connection immediately.
func NewStore(addr, password string) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "snapshot-redis",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateHalfOpen:
				stateVal = 1
			case gobreaker.StateOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.Set(stateVal)
		},
	}

	logging.Info(ctx, "connected to snapshot redis", zap.String("addr", addr))
	return &Store{
		client: rdb,
		cb:     gobreaker.NewCircuitBreaker(st),
	}, nil
}

// SaveProfiles checkpoints every profile under its own key in one pipeline.
// An open breaker skips the checkpoint and returns nil so the caller's loop
// keeps running; in-memory state stays authoritative either way.
func (s *Store) SaveProfiles(ctx context.Context, players []accounts.Player) error {
	if s == nil || s.client == nil {
		return nil // Persistence disabled, in-memory only
	}
	if len(players) == 0 {
		return nil
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		pipe := s.client.Pipeline()
		for i := range players {
			data, err := json.Marshal(players[i])
			if err != nil {
				return nil, fmt.Errorf("failed to marshal profile %s: %w", players[i].ID, err)
			}
			pipe.Set(ctx, profileKeyPrefix+players[i].ID, data, 0)
		}
		_, err := pipe.Exec(ctx)
		return nil, err
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.SnapshotOperations.WithLabelValues("save", "skipped").Inc()
			logging.Warn(ctx, "snapshot breaker open, skipping checkpoint",
				zap.Int("profiles", len(players)),
			)
			return nil
		}
		metrics.SnapshotOperations.WithLabelValues("save", "failure").Inc()
		logging.Error(ctx, "profile checkpoint failed", zap.Error(err))
		return err
	}

	metrics.SnapshotOperations.WithLabelValues("save", "success").Inc()
	logging.Debug(ctx, "profiles checkpointed", zap.Int("profiles", len(players)))
	return nil
}

// LoadProfiles reads every checkpointed profile back. Records that fail to
// decode are skipped with a log line rather than poisoning the whole
// restore. An open breaker returns an empty set so boot proceeds.
func (s *Store) LoadProfiles(ctx context.Context) ([]accounts.Player, error) {
	if s == nil || s.client == nil {
		return nil, nil // Persistence disabled, in-memory only
	}

	res, err := s.cb.Execute(func() (interface{}, error) {
		var keys []string
		iter := s.client.Scan(ctx, 0, profileKeyPrefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan profile keys: %w", err)
		}
		if len(keys) == 0 {
			return []accounts.Player(nil), nil
		}

		values, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch profiles: %w", err)
		}

		players := make([]accounts.Player, 0, len(values))
		for i, raw := range values {
			text, ok := raw.(string)
			if !ok {
				continue // key expired between scan and fetch
			}
			var p accounts.Player
			if err := json.Unmarshal([]byte(text), &p); err != nil {
				logging.Warn(ctx, "skipping undecodable profile record",
					zap.String("key", keys[i]),
					zap.Error(err),
				)
				continue
			}
			players = append(players, p)
		}
		return players, nil
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.SnapshotOperations.WithLabelValues("restore", "skipped").Inc()
			logging.Warn(ctx, "snapshot breaker open, restoring nothing")
			return nil, nil
		}
		metrics.SnapshotOperations.WithLabelValues("restore", "failure").Inc()
		return nil, err
	}

	players := res.([]accounts.Player)
	metrics.SnapshotOperations.WithLabelValues("restore", "success").Inc()
	logging.Info(ctx, "profiles restored", zap.Int("profiles", len(players)))
	return players, nil
}

// StartCheckpointLoop snapshots profiles every interval until ctx is
// cancelled, then writes one final checkpoint so the newest mutations are
// not lost on shutdown.
func (s *Store) StartCheckpointLoop(ctx context.Context, wg *sync.WaitGroup, interval time.Duration, snapshot func() []accounts.Player) {
	if s == nil || s.client == nil {
		return
	}

	if wg != nil {
		wg.Add(1)
	}
	go func() {
		if wg != nil {
			defer wg.Done()
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				// The loop's context is gone; flush on a fresh one.
				flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				_ = s.SaveProfiles(flushCtx, snapshot())
				cancel()
				return
			case <-ticker.C:
				_ = s.SaveProfiles(ctx, snapshot())
			}
		}
	}()
}

// Client exposes the underlying connection so other components (the rate
// limiter's counters) can share it instead of dialing their own.
func (s *Store) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// Ping checks Redis connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil // Persistence disabled, always ready
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	return err
}

// Close shuts the Redis connection down.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
