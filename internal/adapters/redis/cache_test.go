package redisad

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type page struct {
	Names []string `json:"names"`
	Total int64    `json:"total"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var got page
	if ok, err := c.Get(ctx, "k", &got); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, "k", page{Names: []string{"a", "b"}, Total: 2}, 60); err != nil {
		t.Fatal(err)
	}
	if ok, err := c.Get(ctx, "k", &got); !ok || err != nil || got.Total != 2 || len(got.Names) != 2 {
		t.Fatalf("get: ok=%v err=%v got=%+v", ok, err, got)
	}

	mr.FastForward(61 * time.Second)
	if ok, _ := c.Get(ctx, "k", &got); ok {
		t.Fatalf("entry survived its ttl")
	}
}

func TestCacheDelAndIncr(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "k", 1, 60)
	if err := c.Del(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	var n int
	if ok, _ := c.Get(ctx, "k", &n); ok {
		t.Fatalf("deleted key still present")
	}

	for want := int64(1); want <= 3; want++ {
		got, err := c.Incr(ctx, "gen")
		if err != nil || got != want {
			t.Fatalf("incr = %d, %v; want %d", got, err, want)
		}
	}
}

func TestCacheUnavailable(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()
	var n int
	if _, err := c.Get(context.Background(), "k", &n); err == nil {
		t.Fatalf("expected an error from a closed server")
	}
}
