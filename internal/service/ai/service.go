package ai

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/hongslab/aga-care/backend/internal/model/family"
)

// Service turns a family conversation into a model request: composed
// system prompt first, prior history next, the new user input last.
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
	now       func() time.Time
}

// NewService compiles the prompt/model chain around the injected chat
// model. The model is always constructor-injected so tests can swap in
// a double.
func NewService(ctx context.Context, chatModel model.ChatModel) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("ai: chat model must not be nil")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("ai: compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		chain:     runnable,
		now:       time.Now,
	}, nil
}

// GenerateReply runs one model round trip for the family conversation.
// A single attempt per submission; transport-level retries live inside
// the chat model implementation.
func (s *Service) GenerateReply(ctx context.Context, familyID string, profile family.BabyProfile, history []family.Message, userInput string) (string, error) {
	input := map[string]any{
		"system":  ComposeSystemPrompt(profile, s.now()),
		"history": historyMessages(history),
		"query":   userInput,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("ai: run chat chain: %w", err)
	}

	log.Printf("[ai] generated reply for family=%s, length=%d", familyID, len(response.Content))
	return response.Content, nil
}

// historyMessages maps every prior shared turn into the model's role
// vocabulary. Error bubbles are part of the shared history and are
// forwarded like any other assistant turn.
func historyMessages(messages []family.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case family.RoleUser:
			history = append(history, schema.UserMessage(msg.Text))
		case family.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}
	return history
}
