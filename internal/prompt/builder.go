package prompt

import (
	"fmt"
	"strings"

	"OreChat/internal/backend"
	"OreChat/internal/chat"
)

// InvalidInputError is returned when the new user text is empty after trimming
type InvalidInputError struct {
	Input string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %q is empty after trimming whitespace", e.Input)
}

// MaxInputBytes caps the size of a new user turn
const MaxInputBytes = 32 * 1024

// InputTooLongError is returned when the new user text exceeds MaxInputBytes
type InputTooLongError struct {
	Size int
}

func (e *InputTooLongError) Error() string {
	return fmt.Sprintf("invalid input: %d bytes exceeds the %d byte limit", e.Size, MaxInputBytes)
}

// Request is one outbound completion request
type Request struct {
	Persona           Persona
	SystemInstruction string
	History           []chat.Turn
	NewUserTurn       string
	Sampling          Sampling
}

// Build assembles a Request from the history at send time, the new user text
// and the persona. History content is never inspected or rewritten.
func Build(history []chat.Turn, newUserText string, persona Persona) (*Request, error) {
	if strings.TrimSpace(newUserText) == "" {
		return nil, &InvalidInputError{Input: newUserText}
	}
	if len(newUserText) > MaxInputBytes {
		return nil, &InputTooLongError{Size: len(newUserText)}
	}

	profile, err := Lookup(persona)
	if err != nil {
		return nil, err
	}

	h := make([]chat.Turn, len(history))
	copy(h, history)

	return &Request{
		Persona:           persona,
		SystemInstruction: profile.Instruction,
		History:           h,
		NewUserTurn:       newUserText,
		Sampling:          profile.Sampling,
	}, nil
}

// Messages flattens the request into [system] + history + [user]
func (r *Request) Messages() []backend.ChatMessage {
	msgs := make([]backend.ChatMessage, 0, len(r.History)+2)
	if r.SystemInstruction != "" {
		msgs = append(msgs, backend.ChatMessage{Role: string(chat.RoleSystem), Content: r.SystemInstruction})
	}
	msgs = append(msgs, r.Conversation()...)
	return msgs
}

// Conversation returns history + [user] without the system instruction.
// This is what a client sends to the relay.
func (r *Request) Conversation() []backend.ChatMessage {
	msgs := make([]backend.ChatMessage, 0, len(r.History)+1)
	for _, turn := range r.History {
		msgs = append(msgs, backend.ChatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	msgs = append(msgs, backend.ChatMessage{Role: string(chat.RoleUser), Content: r.NewUserTurn})
	return msgs
}

// FromConversation rebuilds a Request from messages received by the relay.
// The last message must be the new user turn; earlier ones become history.
func FromConversation(msgs []backend.ChatMessage, persona Persona) (*Request, error) {
	if len(msgs) == 0 {
		return nil, &InvalidInputError{}
	}
	last := msgs[len(msgs)-1]
	if chat.Role(last.Role) != chat.RoleUser {
		return nil, fmt.Errorf("last message must have role %q, got %q", chat.RoleUser, last.Role)
	}

	history := make([]chat.Turn, 0, len(msgs)-1)
	for _, m := range msgs[:len(msgs)-1] {
		role := chat.Role(m.Role)
		if !role.Valid() {
			return nil, fmt.Errorf("role %q is not allowed in history", m.Role)
		}
		history = append(history, chat.Turn{Role: role, Content: m.Content})
	}

	return Build(history, last.Content, persona)
}
