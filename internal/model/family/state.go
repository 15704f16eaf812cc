package family

import "time"

// ConversationState is the single shared document per family identifier.
// The family identifier is an opaque namespace key chosen by the
// participants; it provides no access control. Anyone who knows the
// string reads and writes the same document.
type ConversationState struct {
	BabyProfile BabyProfile `json:"babyProfile"`
	Messages    []Message   `json:"messages"`
	LastUpdated string      `json:"lastUpdated"`
}

// Stamp returns now formatted the way LastUpdated is stored.
func Stamp(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}

// Clone returns a deep copy so callers can hand the state across
// goroutine boundaries without sharing the message slice.
func (s ConversationState) Clone() ConversationState {
	out := s
	if s.Messages != nil {
		out.Messages = make([]Message, len(s.Messages))
		copy(out.Messages, s.Messages)
	}
	return out
}
