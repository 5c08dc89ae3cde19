package worker

import (
	"sync"
	"time"

	"geminichat/internal/chat"
)

// conversationState is one user's live conversation plus bookkeeping for the
// idle reaper.
type conversationState struct {
	seq *chat.Sequencer

	mu       sync.Mutex
	lastUsed time.Time
}

func newConversationState(seq *chat.Sequencer, now time.Time) *conversationState {
	return &conversationState{seq: seq, lastUsed: now}
}

func (s *conversationState) touch(now time.Time) {
	s.mu.Lock()
	if now.After(s.lastUsed) {
		s.lastUsed = now
	}
	s.mu.Unlock()
}

func (s *conversationState) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// expired reports whether the conversation may be reaped. A conversation
// waiting on a reply is never expired.
func (s *conversationState) expired(now time.Time, ttl time.Duration) bool {
	if s.seq.Store().Typing() {
		return false
	}
	return now.Sub(s.idleSince()) >= ttl
}

func (s *conversationState) close() {
	s.seq.Store().Close()
}
