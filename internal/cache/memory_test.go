package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryProviderTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryProvider()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("expected hit, got %q %v", got, err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestMemoryProviderSetNXAndDel(t *testing.T) {
	c := NewMemoryProvider()
	ctx := context.Background()

	ok, _ := c.SetNX(ctx, "lock", []byte("1"), 0)
	if !ok {
		t.Fatalf("expected first SetNX to succeed")
	}
	ok, _ = c.SetNX(ctx, "lock", []byte("2"), 0)
	if ok {
		t.Fatalf("expected second SetNX to fail")
	}
	_ = c.Del(ctx, "lock")
	if _, err := c.Get(ctx, "lock"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestMemoryProviderCopiesValues(t *testing.T) {
	c := NewMemoryProvider()
	ctx := context.Background()
	buf := []byte("abc")
	_ = c.Set(ctx, "k", buf, 0)
	buf[0] = 'x'
	got, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("cache aliases caller buffer: %q", got)
	}
}

func TestNewValkeyProviderRequiresAddr(t *testing.T) {
	if _, err := NewValkeyProvider(ValkeyConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestKey(t *testing.T) {
	if got := Key("engagement", "", "payload", "http://x"); got != "engagement:payload:http://x" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()
	type entry struct {
		Status string `json:"status"`
	}
	if _, ok := GetJSON[entry](ctx, p, "k"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	if err := SetJSON(ctx, p, "k", entry{Status: "ok"}, time.Minute); err != nil {
		t.Fatalf("set json: %v", err)
	}
	got, ok := GetJSON[entry](ctx, p, "k")
	if !ok || got.Status != "ok" {
		t.Fatalf("unexpected cached value %+v %v", got, ok)
	}
	if err := p.Set(ctx, "bad", []byte("{"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok := GetJSON[entry](ctx, p, "bad"); ok {
		t.Fatalf("undecodable entry should be a miss")
	}
	if _, ok := GetJSON[entry](ctx, NoopProvider{}, "k"); ok {
		t.Fatalf("noop provider never hits")
	}
}
