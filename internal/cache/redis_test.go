package cache

import (
	"strings"
	"testing"
)

// TestRedisKeyIsModelScopedAndStable checks key derivation properties.
func TestRedisKeyIsModelScopedAndStable(t *testing.T) {
	c := &RedisCache{prefix: "transcript:model-x"}

	first := c.redisKey("/media/talk.mp4|600|400")
	second := c.redisKey("/media/talk.mp4|600|400")
	if first != second {
		t.Fatalf("key not stable: %q vs %q", first, second)
	}
	if !strings.HasPrefix(first, "transcript:model-x:") {
		t.Fatalf("key missing model scope: %q", first)
	}
	if strings.Contains(strings.TrimPrefix(first, "transcript:model-x:"), "/") {
		t.Fatalf("key leaks raw media path: %q", first)
	}
}

// TestRedisKeyDistinguishesSegments checks neighboring segments collide
// neither with each other nor across models.
func TestRedisKeyDistinguishesSegments(t *testing.T) {
	a := &RedisCache{prefix: "transcript:model-x"}
	b := &RedisCache{prefix: "transcript:model-y"}

	if a.redisKey("/m.mp4|0|600") == a.redisKey("/m.mp4|600|400") {
		t.Fatal("adjacent segments share a key")
	}
	if a.redisKey("/m.mp4|0|600") == b.redisKey("/m.mp4|0|600") {
		t.Fatal("models share a key")
	}
}
