package cue

import (
	"io"
	"sync"

	"OreChat/internal/chat"
	"OreChat/internal/session"
)

// bell is the terminal BEL character
const bell = "\a"

// Bell rings the terminal bell when the user sends a message and when a
// reply arrives. The greeting and error placeholders stay silent. One Bell
// may follow several sessions in turn: the first turn of each transcript is
// its greeting and re-arms the silence until that session is ready.
type Bell struct {
	mu    sync.Mutex
	w     io.Writer
	ready bool
}

// NewBell creates a Bell that writes to w
func NewBell(w io.Writer) *Bell {
	return &Bell{w: w}
}

// Listener returns the session listener that drives the bell
func (b *Bell) Listener() session.Listener {
	return b.handle
}

func (b *Bell) handle(ev session.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Kind {
	case session.EventReady:
		b.ready = true
	case session.EventTurnAppended:
		if ev.Index == 0 {
			b.ready = false
			return
		}
		if !b.ready || !audible(ev.Turn) {
			return
		}
		_, _ = io.WriteString(b.w, bell)
	}
}

func audible(t chat.Turn) bool {
	switch t.Role {
	case chat.RoleUser:
		return true
	case chat.RoleAssistant:
		return !t.Failed
	default:
		return false
	}
}
