package models

// Snapshot is a read-only view of a conversation handed to observers.
type Snapshot struct {
	Messages []Message `json:"messages"`
	Typing   bool      `json:"typing"`
}

// Last returns the newest message in the snapshot.
func (s Snapshot) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
