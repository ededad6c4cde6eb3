package llm

import (
	"context"
	"iter"

	"story-assistant/internal/domain"
)

// Client define la interfaz para generar respuestas con un LLM.
type Client interface {
	// Complete devuelve el texto completo de la respuesta.
	Complete(ctx context.Context, req Request) (string, error)
	// Stream entrega fragmentos en orden de llegada. Cortar la iteración
	// cierra la conexión subyacente sin error.
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
}

// Request es una petición de chat completion. Temperature y MaxTokens
// sobreescriben los valores por defecto del cliente cuando no son cero.
type Request struct {
	SystemPrompt string
	Messages     []domain.ChatMessage
	Temperature  *float64
	MaxTokens    int
}

// Prompt arma una petición con un system prompt y un único mensaje de usuario.
func Prompt(systemPrompt, userInput string) Request {
	return Request{
		SystemPrompt: systemPrompt,
		Messages: []domain.ChatMessage{
			{Role: domain.RoleUser, Content: userInput},
		},
	}
}
