package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"story-assistant/internal/domain"
	"story-assistant/internal/llm"
)

// ConversationService envía la conversación completa al LLM sin enrutar.
type ConversationService struct {
	llmClient llm.Client
	logger    *zap.Logger
}

func NewConversationService(llmClient llm.Client, logger *zap.Logger) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{llmClient: llmClient, logger: logger}
}

// Complete agrega la transcripción como último mensaje y devuelve la respuesta.
func (s *ConversationService) Complete(ctx context.Context, req domain.ChatRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", domain.NewValidationError("messages are required")
	}
	conversation := req.Conversation()
	out, err := s.llmClient.Complete(ctx, llm.Request{Messages: conversation})
	if err != nil {
		return "", fmt.Errorf("llm complete: %w", err)
	}
	s.logger.Info("conversation completed", zap.Int("messages", len(conversation)))
	return out, nil
}
