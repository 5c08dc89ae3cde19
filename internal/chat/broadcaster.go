package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"geminichat/internal/models"
)

// subscriberBufferSize is the channel buffer for each observer.
const subscriberBufferSize = 16

// broadcaster fans conversation snapshots out to read-only observers.
// Publishing never blocks: a full subscriber loses its oldest pending
// snapshot so the newest state always gets through.
type broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan models.Snapshot
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subscribers: make(map[string]chan models.Snapshot)}
}

func (b *broadcaster) subscribe(ctx context.Context) (<-chan models.Snapshot, string) {
	subID := uuid.NewString()
	ch := make(chan models.Snapshot, subscriberBufferSize)

	b.mu.Lock()
	b.subscribers[subID] = ch
	b.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			b.unsubscribe(subID)
		}()
	}
	return ch, subID
}

func (b *broadcaster) unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)
}

func (b *broadcaster) publish(snap models.Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- snap:
			continue
		default:
		}
		// drop the stale snapshot and retry once
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
			log.Debug().Str("sub_id", id).Msg("dropped snapshot for slow subscriber")
		}
	}
}

func (b *broadcaster) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
