package worker

import (
	"context"
	"net"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"geminichat/internal/config"
	"geminichat/internal/redis"
)

func TestNilStateCacheIsNoop(t *testing.T) {
	var sc *stateRedis
	sc.publishInvalidation(context.Background(), invalidateMessage{UserID: 1, Scope: scopeUser})
	var wg sync.WaitGroup
	sc.startListener(context.Background(), make(chan struct{}), &wg, func(invalidateMessage) {
		t.Fatalf("handler should not run")
	})
	wg.Wait()
}

func TestStateCachePubSub(t *testing.T) {
	client := newTestRedis(t)
	sc := newStateCache(client)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	ch := make(chan invalidateMessage, 1)
	sc.startListener(context.Background(), stop, &wg, func(msg invalidateMessage) {
		ch <- msg
	})
	defer func() {
		close(stop)
		wg.Wait()
	}()

	msg := invalidateMessage{UserID: 5, Scope: scopeUser}
	sc.publishInvalidation(context.Background(), msg)
	select {
	case got := <-ch:
		if got != msg {
			t.Fatalf("unexpected message %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("did not receive pubsub message")
	}
}

func TestManagerDropPropagatesAcrossInstances(t *testing.T) {
	client := newTestRedis(t)
	a := NewManager(echoResponder(), WithRedis(client))
	b := NewManager(echoResponder(), WithRedis(client))
	ctx := context.Background()
	a.Start(ctx)
	b.Start(ctx)
	defer a.Close()
	defer b.Close()

	a.Conversation(9)
	b.Conversation(9)
	a.Drop(ctx, 9)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := b.Lookup(9); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("conversation on second instance was not dropped")
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed worker tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	client, err := redis.NewClient(context.Background(), config.RedisConfig{Host: host, Port: port, DB: db})
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}
