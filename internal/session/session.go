package session

import (
	"time"

	"OreChat/internal/chat"
	"OreChat/internal/prompt"

	"github.com/google/uuid"
)

// Session represents a chat session held in memory for one UI lifetime
type Session struct {
	ID         string
	StartTime  time.Time
	Persona    prompt.Persona
	Transcript *chat.Transcript
}

// newSession creates a new session with an empty transcript
func newSession(persona prompt.Persona) *Session {
	return &Session{
		ID:         uuid.NewString(),
		StartTime:  time.Now(),
		Persona:    persona,
		Transcript: chat.NewTranscript(),
	}
}
