package worker

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"geminichat/internal/redis"
)

const redisInvalidateChannel = "geminichat:conversation:invalidate"

const scopeUser = "user"

type invalidateMessage struct {
	UserID int64  `json:"user_id"`
	Scope  string `json:"scope"`
}

// stateRedis carries conversation drops between instances. A nil receiver
// does nothing.
type stateRedis struct {
	client *redis.Client
}

func newStateCache(client *redis.Client) *stateRedis {
	return &stateRedis{client: client}
}

// startListener feeds invalidations to handler until stop is closed.
func (r *stateRedis) startListener(ctx context.Context, stop <-chan struct{}, wg *sync.WaitGroup, handler func(invalidateMessage)) {
	if r == nil || r.client == nil || handler == nil {
		return
	}
	pubsub, err := r.client.Subscribe(ctx, redisInvalidateChannel)
	if err != nil {
		log.Error().Err(err).Msg("conversation invalidation subscribe failed")
		return
	}
	// wait for the subscription to be confirmed so no publish is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		log.Error().Err(err).Msg("conversation invalidation subscribe failed")
		return
	}
	ch := pubsub.Channel()
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer pubsub.Close()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var inv invalidateMessage
				if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
					log.Warn().Err(err).Msg("conversation invalidation decode failed")
					continue
				}
				if inv.Scope == scopeUser {
					handler(inv)
				}
			}
		}
	}()
}

// publishInvalidation broadcasts msg to every listening instance.
func (r *stateRedis) publishInvalidation(ctx context.Context, msg invalidateMessage) {
	if r == nil || r.client == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("conversation invalidation marshal failed")
		return
	}
	if err := r.client.Publish(ctx, redisInvalidateChannel, payload); err != nil {
		log.Error().Err(err).Int64("user_id", msg.UserID).Msg("conversation invalidation publish failed")
	}
}
