package relay

import (
	"OreChat/internal/backend"
	"OreChat/internal/prompt"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxMessageContentBytes caps a single message body
	MaxMessageContentBytes = prompt.MaxInputBytes
	// MaxHistoryMessages is how many of the most recent messages the relay
	// forwards; older ones are dropped before validation
	MaxHistoryMessages = 100
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("maxbytes", validateMaxBytes)
	return v
}

func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// Message is one conversation entry sent by a client. System messages are
// never accepted; the relay owns the instruction. Assistant history may be
// empty when an earlier reply was.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required_if=Role user,maxbytes"`
}

// ChatRequest is the body of POST /api/chat and of websocket request frames
type ChatRequest struct {
	Persona  string    `json:"persona,omitempty"`
	Messages []Message `json:"messages" validate:"required,min=1,max=100,dive"`
}

// CompletionRequest is the OpenAI-compatible body of POST /v1/chat/completions.
// Model and sampling sent by the client are ignored in favour of the
// persona's profile.
type CompletionRequest struct {
	Model       string    `json:"model,omitempty"`
	Persona     string    `json:"persona,omitempty"`
	Messages    []Message `json:"messages" validate:"required,min=1,max=100,dive"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// Frame is one websocket message sent by the relay
type Frame struct {
	Type         string         `json:"type"`
	Text         string         `json:"text,omitempty"`
	FinishReason string         `json:"finish_reason,omitempty"`
	Usage        *backend.Usage `json:"usage,omitempty"`
	Error        string         `json:"error,omitempty"`
}

const (
	FrameText   = "text"
	FrameFinish = "finish"
	FrameError  = "error"
)

// recentMessages keeps the newest limit messages. The new user turn is last
// and always survives.
func recentMessages(msgs []Message, limit int) []Message {
	if len(msgs) <= limit {
		return msgs
	}
	return msgs[len(msgs)-limit:]
}

func toConversation(msgs []Message) []backend.ChatMessage {
	out := make([]backend.ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = backend.ChatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
