package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence mirrors session liveness into Redis so operators (or sibling
// instances) can see which sessions currently hold analytics state.
// Best effort: the registry ignores marker failures, and the keys carry a
// TTL as a safety net in case a process dies before Cleanup.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresence(client *redis.Client, ttl time.Duration) *Presence {
	return &Presence{client: client, ttl: ttl}
}

func (p *Presence) MarkActive(sessionID int64) {
	_ = p.client.Set(context.Background(), p.key(sessionID), "1", p.ttl).Err()
}

func (p *Presence) Clear(sessionID int64) {
	_ = p.client.Del(context.Background(), p.key(sessionID)).Err()
}

func (p *Presence) key(sessionID int64) string {
	return "analytics:session:" + strconv.FormatInt(sessionID, 10)
}
