package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"classroom-analytics/internal/domain"
	"golang.org/x/sync/singleflight"
)

// SessionLoader fetches the owning session for a quiz from a backing store.
type SessionLoader interface {
	LoadQuizSession(ctx context.Context, quizID int64) (int64, error)
}

// SessionResolver caches quiz-to-session lookups with TTL to avoid repeated
// DB hits; the mapping never changes while a session is live, so staleness
// is bounded by the TTL.
type SessionResolver struct {
	loader SessionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[int64]cachedSession
}

type cachedSession struct {
	sessionID int64
	expiresAt time.Time
}

func NewSessionResolver(loader SessionLoader, ttl time.Duration) *SessionResolver {
	return &SessionResolver{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedSession),
	}
}

func (r *SessionResolver) ResolveQuizSession(ctx context.Context, quizID int64) (int64, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.sessionID, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(sfKey(quizID), func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.sessionID, nil
		}
		r.mu.RUnlock()

		sessionID, err := r.loader.LoadQuizSession(ctx, quizID)
		if err != nil {
			return int64(0), err
		}

		r.mu.Lock()
		r.cache[quizID] = cachedSession{
			sessionID: sessionID,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return sessionID, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

func (r *SessionResolver) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func sfKey(quizID int64) string {
	return strconv.FormatInt(quizID, 10)
}

// StaticSessionLoader is a loader backed by an in-memory map (useful for
// tests/demos).
type StaticSessionLoader struct {
	sessions map[int64]int64
}

func NewStaticSessionLoader(sessions map[int64]int64) *StaticSessionLoader {
	return &StaticSessionLoader{sessions: sessions}
}

func (l *StaticSessionLoader) LoadQuizSession(_ context.Context, quizID int64) (int64, error) {
	if sessionID, ok := l.sessions[quizID]; ok {
		return sessionID, nil
	}
	return 0, domain.ErrQuizNotFound
}
