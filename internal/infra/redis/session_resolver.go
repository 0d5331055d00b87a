package redis

import (
	"context"
	"strconv"
	"time"

	"classroom-analytics/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// SessionResolver caches quiz-to-session lookups in a Redis hash and falls
// back to a loader on cache miss. The mapping is stored as:
// HSET analytics:quiz-sessions {quizID} {sessionID}
type SessionResolver struct {
	client *redis.Client
	loader memory.SessionLoader
	ttl    time.Duration
	sf     singleflight.Group
}

func NewSessionResolver(client *redis.Client, loader memory.SessionLoader, ttl time.Duration) *SessionResolver {
	return &SessionResolver{client: client, loader: loader, ttl: ttl}
}

func (r *SessionResolver) ResolveQuizSession(ctx context.Context, quizID int64) (int64, error) {
	field := strconv.FormatInt(quizID, 10)

	raw, err := r.client.HGet(ctx, r.key(), field).Result()
	if err == nil {
		if sessionID, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			return sessionID, nil
		}
	}

	result, err, _ := r.sf.Do(field, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		raw, err := r.client.HGet(ctx, r.key(), field).Result()
		if err == nil {
			if sessionID, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
				return sessionID, nil
			}
		}

		sessionID, err := r.loader.LoadQuizSession(ctx, quizID)
		if err != nil {
			return int64(0), err
		}

		pipe := r.client.Pipeline()
		pipe.HSet(ctx, r.key(), field, sessionID)
		if r.ttl > 0 {
			pipe.Expire(ctx, r.key(), r.ttl)
		}
		_, _ = pipe.Exec(ctx)

		return sessionID, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

func (r *SessionResolver) key() string {
	return "analytics:quiz-sessions"
}
