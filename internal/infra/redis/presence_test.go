package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestPresenceSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	presence := NewPresence(client, time.Minute)

	presence.MarkActive(42)
	if !mr.Exists("analytics:session:42") {
		t.Fatalf("expected presence key to be set")
	}

	presence.Clear(42)
	if mr.Exists("analytics:session:42") {
		t.Fatalf("expected presence key to be removed")
	}
}
