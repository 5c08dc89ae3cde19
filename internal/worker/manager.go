package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"geminichat/internal/chat"
	"geminichat/internal/metrics"
	"geminichat/internal/redis"
)

const defaultIdleTTL = 30 * time.Minute

// Manager keeps one conversation per signed-in user. Conversations are created
// on first use and live until the user logs out, the account is deleted, or
// the idle reaper collects them.
type Manager struct {
	responder chat.Responder
	idleTTL   time.Duration
	now       func() time.Time
	cache     *stateRedis

	mu            sync.Mutex
	conversations map[int64]*conversationState

	stopOnce sync.Once
	stopCh   chan struct{}
	done     sync.WaitGroup
}

type Option func(*Manager)

// WithIdleTTL sets how long an untouched conversation survives.
func WithIdleTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idleTTL = d
		}
	}
}

// WithRedis broadcasts conversation drops to other instances sharing client.
func WithRedis(client *redis.Client) Option {
	return func(m *Manager) {
		if client != nil {
			m.cache = newStateCache(client)
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(responder chat.Responder, opts ...Option) *Manager {
	m := &Manager{
		responder:     responder,
		idleTTL:       defaultIdleTTL,
		now:           time.Now,
		conversations: make(map[int64]*conversationState),
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the idle reaper and, when redis is configured, the listener
// for drops issued by other instances.
func (m *Manager) Start(ctx context.Context) {
	m.done.Add(1)
	go func() {
		defer m.done.Done()
		m.purgeStaleConversations()
	}()
	if m.cache != nil {
		m.cache.startListener(ctx, m.stopCh, &m.done, func(msg invalidateMessage) {
			m.dropLocal(msg.UserID)
		})
	}
}

// Conversation returns the user's sequencer, creating the conversation if
// needed, and marks it as used.
func (m *Manager) Conversation(userID int64) *chat.Sequencer {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.conversations[userID]; ok {
		state.touch(now)
		return state.seq
	}
	seq := chat.NewSequencer(chat.NewStore(), m.responder)
	m.conversations[userID] = newConversationState(seq, now)
	metrics.Conversations.Inc()
	log.Debug().Int64("user_id", userID).Msg("conversation created")
	return seq
}

// Lookup returns the user's sequencer without creating one.
func (m *Manager) Lookup(userID int64) (*chat.Sequencer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.conversations[userID]
	if !ok {
		return nil, false
	}
	return state.seq, true
}

// Drop discards the user's conversation here and on every instance listening
// on the same redis.
func (m *Manager) Drop(ctx context.Context, userID int64) {
	m.dropLocal(userID)
	m.cache.publishInvalidation(ctx, invalidateMessage{UserID: userID, Scope: scopeUser})
}

func (m *Manager) dropLocal(userID int64) bool {
	m.mu.Lock()
	state, ok := m.conversations[userID]
	if ok {
		delete(m.conversations, userID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	state.close()
	metrics.Conversations.Dec()
	log.Debug().Int64("user_id", userID).Msg("conversation dropped")
	return true
}

// Len returns the number of live conversations.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conversations)
}

// Close stops background work, waits for in-flight exchanges and ends every
// subscription.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.done.Wait()

	m.mu.Lock()
	states := make([]*conversationState, 0, len(m.conversations))
	for id, state := range m.conversations {
		states = append(states, state)
		delete(m.conversations, id)
	}
	m.mu.Unlock()

	for _, state := range states {
		state.seq.Wait()
		state.close()
		metrics.Conversations.Dec()
	}
}
