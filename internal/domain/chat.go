package domain

import "strings"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TranscriptPrefix encabeza el mensaje sintético que transporta la transcripción.
const TranscriptPrefix = "Here is the transcript:\n"

type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// ChatRequest es el cuerpo de POST /chat.
type ChatRequest struct {
	Messages   []ChatMessage `json:"messages" binding:"required,dive"`
	Transcript string        `json:"transcript,omitempty"`
}

// HasTranscript indica si la petición trae una transcripción no vacía.
func (r ChatRequest) HasTranscript() bool {
	return strings.TrimSpace(r.Transcript) != ""
}

// Conversation devuelve los mensajes con la transcripción añadida como
// mensaje de usuario final. No modifica r.Messages.
func (r ChatRequest) Conversation() []ChatMessage {
	out := make([]ChatMessage, 0, len(r.Messages)+1)
	out = append(out, r.Messages...)
	if r.HasTranscript() {
		out = append(out, ChatMessage{Role: RoleUser, Content: TranscriptPrefix + r.Transcript})
	}
	return out
}

// LatestUserMessage devuelve el contenido en minúsculas y sin espacios del
// último mensaje de usuario escrito por el cliente.
func (r ChatRequest) LatestUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return strings.ToLower(strings.TrimSpace(r.Messages[i].Content))
		}
	}
	return ""
}
