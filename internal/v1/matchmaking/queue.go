// Package matchmaking keeps a per-game FIFO of waiting players and forms
// fixed-size cohorts from the head of the line.
//
// The queue hands cohorts back to the caller; it never creates rooms or
// places players itself. One mutex guards all game queues, so a cohort pop
// is atomic: concurrent TryMatch callers can never receive overlapping
// cohorts.
package matchmaking

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/logging"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/metrics"
)

type Queue struct {
	mu     sync.Mutex
	queues map[string][]string // game id -> waiting player ids, oldest first
}

func New() *Queue {
	return &Queue{queues: make(map[string][]string)}
}

// Enqueue appends the player to the game's queue, creating the queue on
// first use, and returns the queue depth after insertion. Duplicate entries
// are not rejected; Dequeue clears all of them at once.
func (q *Queue) Enqueue(ctx context.Context, gameID, playerID string) int {
	q.mu.Lock()
	q.queues[gameID] = append(q.queues[gameID], playerID)
	depth := len(q.queues[gameID])
	q.mu.Unlock()

	metrics.MatchmakingQueueDepth.WithLabelValues(gameID).Set(float64(depth))
	logging.Info(ctx, "player queued",
		zap.String("game_id", gameID),
		zap.String("player_id", playerID),
		zap.Int("queue_depth", depth),
	)
	return depth
}

// Dequeue removes every occurrence of the player from the game's queue and
// returns how many were removed. Unknown games and absent players are
// no-ops.
func (q *Queue) Dequeue(ctx context.Context, gameID, playerID string) int {
	q.mu.Lock()
	waiting, ok := q.queues[gameID]
	if !ok {
		q.mu.Unlock()
		return 0
	}
	kept := waiting[:0]
	for _, id := range waiting {
		if id != playerID {
			kept = append(kept, id)
		}
	}
	removed := len(waiting) - len(kept)
	depth := len(kept)
	if depth == 0 {
		delete(q.queues, gameID)
	} else {
		q.queues[gameID] = kept
	}
	q.mu.Unlock()

	if removed == 0 {
		return 0
	}
	q.reportDepth(gameID, depth)
	logging.Info(ctx, "player dequeued",
		zap.String("game_id", gameID),
		zap.String("player_id", playerID),
		zap.Int("entries_removed", removed),
		zap.Int("queue_depth", depth),
	)
	return removed
}

// TryMatch pops the oldest n players from the game's queue as an ordered
// cohort. It returns false when the queue holds fewer than n players or n is
// not positive; the queue is left untouched in that case.
func (q *Queue) TryMatch(ctx context.Context, gameID string, n int) ([]string, bool) {
	if n <= 0 {
		return nil, false
	}

	q.mu.Lock()
	waiting, ok := q.queues[gameID]
	if !ok || len(waiting) < n {
		q.mu.Unlock()
		return nil, false
	}
	cohort := make([]string, n)
	copy(cohort, waiting[:n])
	remainder := waiting[n:]
	depth := len(remainder)
	if depth == 0 {
		delete(q.queues, gameID)
	} else {
		q.queues[gameID] = remainder
	}
	q.mu.Unlock()

	q.reportDepth(gameID, depth)
	metrics.MatchmakingCohorts.WithLabelValues(gameID).Inc()
	logging.Info(ctx, "cohort formed",
		zap.String("game_id", gameID),
		zap.Int("cohort_size", n),
		zap.Int("queue_depth", depth),
	)
	return cohort, true
}

// Depth reports the number of players currently waiting for a game.
func (q *Queue) Depth(gameID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[gameID])
}

func (q *Queue) reportDepth(gameID string, depth int) {
	if depth == 0 {
		metrics.MatchmakingQueueDepth.DeleteLabelValues(gameID)
		return
	}
	metrics.MatchmakingQueueDepth.WithLabelValues(gameID).Set(float64(depth))
}
