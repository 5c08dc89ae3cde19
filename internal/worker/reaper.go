package worker

import (
	"time"

	"github.com/rs/zerolog/log"

	"geminichat/internal/metrics"
)

const minReapInterval = time.Second

// purgeStaleConversations runs reapIdle until the manager stops.
func (m *Manager) purgeStaleConversations() {
	interval := m.idleTTL / 2
	if interval < minReapInterval {
		interval = minReapInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if n := m.reapIdle(m.now()); n > 0 {
				log.Info().Int("count", n).Msg("reaped idle conversations")
			}
		}
	}
}

// reapIdle drops every expired conversation and returns how many went.
func (m *Manager) reapIdle(now time.Time) int {
	m.mu.Lock()
	var stale []*conversationState
	for userID, state := range m.conversations {
		if state.expired(now, m.idleTTL) {
			delete(m.conversations, userID)
			stale = append(stale, state)
		}
	}
	m.mu.Unlock()

	for _, state := range stale {
		state.close()
		metrics.Conversations.Dec()
	}
	return len(stale)
}
