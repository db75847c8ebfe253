package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type countingResolver struct {
	result string
	calls  int
}

func (r *countingResolver) Resolve(ctx context.Context, handle string) string {
	r.calls++
	return r.result
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func isFallback(s string) bool {
	return strings.HasPrefix(s, "https://drive.usercontent.google.com/")
}

func TestCachingResolver_CachesResolvedLinks(t *testing.T) {
	mr, client := newTestRedis(t)
	next := &countingResolver{result: "https://lh3.googleusercontent.com/d/abc"}
	c := NewCachingResolver(next, client, time.Hour, isFallback, nil)

	for i := 0; i < 3; i++ {
		if got := c.Resolve(context.Background(), "abc"); got != next.result {
			t.Fatalf("Resolve() = %q", got)
		}
	}
	if next.calls != 1 {
		t.Errorf("underlying resolver calls = %d, want 1", next.calls)
	}

	if ttl := mr.TTL(keyPrefix + "abc"); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	c.Resolve(context.Background(), "abc")
	if next.calls != 2 {
		t.Errorf("expired entry should be resolved again, calls = %d", next.calls)
	}
}

func TestCachingResolver_SkipsFallbackURLs(t *testing.T) {
	mr, client := newTestRedis(t)
	next := &countingResolver{result: "https://drive.usercontent.google.com/download?id=abc&export=view"}
	c := NewCachingResolver(next, client, 0, isFallback, nil)

	c.Resolve(context.Background(), "abc")
	c.Resolve(context.Background(), "abc")

	if next.calls != 2 {
		t.Errorf("fallback results must not be cached, calls = %d", next.calls)
	}
	if mr.Exists(keyPrefix + "abc") {
		t.Error("fallback URL was stored")
	}
}

func TestCachingResolver_RedisDownStillResolves(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	next := &countingResolver{result: "https://lh3.googleusercontent.com/d/abc"}
	c := NewCachingResolver(next, client, time.Hour, nil, nil)

	if got := c.Resolve(context.Background(), "abc"); got != next.result {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestCachingResolver_Forget(t *testing.T) {
	_, client := newTestRedis(t)
	next := &countingResolver{result: "https://lh3.googleusercontent.com/d/abc"}
	c := NewCachingResolver(next, client, time.Hour, nil, nil)

	c.Resolve(context.Background(), "abc")
	if err := c.Forget(context.Background(), "abc"); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	c.Resolve(context.Background(), "abc")
	if next.calls != 2 {
		t.Errorf("calls = %d, want 2 after Forget", next.calls)
	}
}
