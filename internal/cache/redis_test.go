package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/joseph-ayodele/missing-persons-intake/internal/entity"
)

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), "redis://"+mr.Addr(), ttl, nil)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, time.Hour)

	if _, ok, err := c.Get(ctx, "Bairro Zimpeto"); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}
	want := entity.Coordinate{Latitude: -25.82, Longitude: 32.565}
	if err := c.Set(ctx, "Bairro Zimpeto", want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("geocode:bairro zimpeto") {
		t.Fatalf("keys = %v", mr.Keys())
	}
	got, ok, err := c.Get(ctx, "  BAIRRO zimpeto ")
	if err != nil || !ok || got != want {
		t.Fatalf("Get = %+v, %v, %v", got, ok, err)
	}

	mr.FastForward(2 * time.Hour)
	if _, ok, _ := c.Get(ctx, "Bairro Zimpeto"); ok {
		t.Error("entry survived its ttl")
	}
}

func TestRedisCacheNoTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, 0)
	if err := c.Set(ctx, "Xai-Xai", entity.Coordinate{Latitude: -25.05, Longitude: 33.64}); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("geocode:xai-xai"); ttl != 0 {
		t.Errorf("ttl = %v, want none", ttl)
	}
}

func TestRedisCacheCorruptValue(t *testing.T) {
	c, mr := newRedisCache(t, time.Hour)
	if err := mr.Set("geocode:beira", "not json"); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(context.Background(), "Beira"); ok || err == nil {
		t.Errorf("want decode error, got ok=%v err=%v", ok, err)
	}
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	addr := mr.Addr()
	mr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := NewRedisCache(ctx, "redis://"+addr, time.Hour, nil); err == nil {
		t.Error("want ping error")
	}
}
