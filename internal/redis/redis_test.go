package redis

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"geminichat/internal/config"
)

func TestAddrDefaults(t *testing.T) {
	if got := Addr(config.RedisConfig{}); got != "127.0.0.1:6379" {
		t.Fatalf("unexpected default addr %q", got)
	}
	if got := Addr(config.RedisConfig{Host: "cache", Port: 7000}); got != "cache:7000" {
		t.Fatalf("unexpected addr %q", got)
	}
}

func TestNilClientFailsSoftly(t *testing.T) {
	var c *Client
	ctx := context.Background()
	if err := c.Set(ctx, "k", "v", time.Second); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Publish(ctx, "ch", "x"); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
	if c.Raw() != nil {
		t.Fatalf("nil client should expose nil raw client")
	}
}

func TestClientRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	ctx := context.Background()
	c, err := NewClient(ctx, config.RedisConfig{Host: host, Port: port})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()

	if err := c.Set(ctx, "geminichat:test", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, err := c.Get(ctx, "geminichat:test"); err != nil || got != "v" {
		t.Fatalf("get: %q %v", got, err)
	}
	if ttl, err := c.TTL(ctx, "geminichat:test"); err != nil || ttl <= 0 {
		t.Fatalf("ttl: %s %v", ttl, err)
	}
	if err := c.Del(ctx, "geminichat:test"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := c.Get(ctx, "geminichat:test"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}
}
