package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"geminichat/internal/models"
)

const (
	// GreetingText seeds every new or reset conversation.
	GreetingText = "Hello! I'm your AI assistant. How can I help you today?"
	// LocalErrorText answers an exchange whose sequencing failed.
	LocalErrorText = "Sorry, I'm having trouble responding right now. Please try again."
)

// Store owns one conversation: the ordered message log and the typing flag.
// The log only grows, except for Reset which replaces it wholesale. Typing is
// true exactly while a user message is waiting for its reply.
//
// Every accessor returns copies, so observers on other goroutines can read
// freely; mutation happens only through the Append* and Reset operations.
type Store struct {
	mu       sync.RWMutex
	messages []models.Message
	typing   bool
	// epoch counts resets; replies carry the epoch they were started in.
	epoch uint64

	now    func() time.Time
	newID  func() string
	events *broadcaster
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithClock replaces time.Now as the timestamp source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the uuid message id source.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewStore creates a conversation seeded with the greeting.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		now:    time.Now,
		newID:  uuid.NewString,
		events: newBroadcaster(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.messages = []models.Message{s.newMessageLocked(models.RoleAssistant, GreetingText)}
	return s
}

// AppendUserMessage appends a user message and marks a reply as pending.
func (s *Store) AppendUserMessage(text string) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendUserLocked(text)
}

// TryAppendUserMessage is AppendUserMessage guarded by the typing flag: when a
// reply is already pending nothing changes and ok is false.
func (s *Store) TryAppendUserMessage(text string) (models.Message, bool) {
	msg, _, ok := s.tryBegin(text)
	return msg, ok
}

func (s *Store) tryBegin(text string) (models.Message, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.typing {
		return models.Message{}, s.epoch, false
	}
	return s.appendUserLocked(text), s.epoch, true
}

// AppendAssistantMessage appends an assistant message and clears the typing flag.
func (s *Store) AppendAssistantMessage(text string) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendAssistantLocked(text)
}

// appendReply appends text only if no Reset happened since epoch.
func (s *Store) appendReply(epoch uint64, text string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return models.Message{}, false
	}
	return s.appendAssistantLocked(text), true
}

// Reset replaces the log with a fresh greeting and clears the typing flag.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.messages = []models.Message{s.newMessageLocked(models.RoleAssistant, GreetingText)}
	s.typing = false
	s.epoch++
	s.publishLocked()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Messages returns a copy of the log.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Typing reports whether a reply is pending.
func (s *Store) Typing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing
}

// Len returns the number of messages in the log.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Subscribe streams a snapshot after every mutation until ctx is done or
// Unsubscribe is called. The channel is closed on unsubscription.
func (s *Store) Subscribe(ctx context.Context) (<-chan models.Snapshot, string) {
	return s.events.subscribe(ctx)
}

// Unsubscribe stops a subscription started with Subscribe.
func (s *Store) Unsubscribe(subID string) {
	s.events.unsubscribe(subID)
}

// Close ends every subscription.
func (s *Store) Close() {
	s.events.closeAll()
}

func (s *Store) appendAssistantLocked(text string) models.Message {
	msg := s.newMessageLocked(models.RoleAssistant, text)
	s.messages = append(s.messages, msg)
	s.typing = false
	s.publishLocked()
	return msg
}

func (s *Store) appendUserLocked(text string) models.Message {
	msg := s.newMessageLocked(models.RoleUser, text)
	s.messages = append(s.messages, msg)
	s.typing = true
	s.publishLocked()
	return msg
}

// newMessageLocked builds a message stamped no earlier than the newest entry,
// which keeps the log non-decreasing in time even if the clock steps back.
func (s *Store) newMessageLocked(role models.Role, text string) models.Message {
	ts := s.now()
	if n := len(s.messages); n > 0 && ts.Before(s.messages[n-1].Timestamp) {
		ts = s.messages[n-1].Timestamp
	}
	sender := models.AssistantSender
	if role == models.RoleUser {
		sender = models.UserSender
	}
	return models.Message{
		ID:        s.newID(),
		Text:      text,
		Timestamp: ts,
		Role:      role,
		Sender:    sender,
	}
}

func (s *Store) snapshotLocked() models.Snapshot {
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return models.Snapshot{Messages: out, Typing: s.typing}
}

func (s *Store) publishLocked() {
	s.events.publish(s.snapshotLocked())
}
