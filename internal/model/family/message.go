package family

import (
	"errors"
	"fmt"
)

// ErrInvalidFeedingType signals a feeding type outside the known enum.
var ErrInvalidFeedingType = errors.New("invalid feeding type")

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one shared conversation turn. Messages are append-only;
// ordering is insertion order and there are no per-message timestamps.
type Message struct {
	Role    Role   `json:"role"`
	Text    string `json:"text"`
	IsError bool   `json:"isError,omitempty"`
}

// WelcomeOnCreate is the message seeded when a family room is opened for
// the first time and no shared document exists yet.
func WelcomeOnCreate(familyID string) Message {
	return Message{
		Role: RoleAssistant,
		Text: fmt.Sprintf("반가워요! '%s' 가족방이 새로 생성되었습니다. 🎉\n아기 생일만 설정하면 바로 시작할 수 있어요.", familyID),
	}
}

// WelcomeOnReturn is shown when the document exists but holds no
// messages, so the conversation never renders truly empty.
func WelcomeOnReturn(familyID string) Message {
	return Message{
		Role: RoleAssistant,
		Text: fmt.Sprintf("안녕하세요, 홍이님! %s 가족방에 오신 것을 환영해요. 🍼\n우리 아기의 상태를 기록하고 궁금한 점을 물어보세요.", familyID),
	}
}
