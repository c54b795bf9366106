package session

import "OreChat/internal/chat"

// ConnectionState is the one-time connecting -> ready transition
type ConnectionState int

const (
	Connecting ConnectionState = iota
	Ready
)

func (s ConnectionState) String() string {
	if s == Ready {
		return "ready"
	}
	return "connecting"
}

// EventKind identifies a domain event emitted by the Controller
type EventKind int

const (
	// EventReady fires once, after the greeting is seeded
	EventReady EventKind = iota
	// EventTurnAppended fires for every turn added to the transcript
	EventTurnAppended
	// EventPartial carries the accumulated text of a streamed reply
	EventPartial
	// EventRequestFailed fires before the error placeholder is appended
	EventRequestFailed
	// EventPendingChanged fires on both edges of the pending guard
	EventPendingChanged
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventTurnAppended:
		return "turn_appended"
	case EventPartial:
		return "partial"
	case EventRequestFailed:
		return "request_failed"
	case EventPendingChanged:
		return "pending_changed"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners. Only the fields relevant to Kind are set.
type Event struct {
	Kind    EventKind
	Turn    chat.Turn
	Index   int
	Partial string
	Pending bool
	Err     error
}

// Listener receives controller events. Listeners must not call Submit.
type Listener func(Event)

// Outcome reports what Submit did
type Outcome int

const (
	// OutcomeReplied means an assistant reply was appended
	OutcomeReplied Outcome = iota
	// OutcomeFailed means the error placeholder was appended
	OutcomeFailed
	// OutcomeRejected means the input was empty or too long; nothing was appended
	OutcomeRejected
	// OutcomeBusy means a completion was already pending; the submit was dropped
	OutcomeBusy
	// OutcomeNotReady means the session is still connecting; the submit was dropped
	OutcomeNotReady
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReplied:
		return "replied"
	case OutcomeFailed:
		return "failed"
	case OutcomeRejected:
		return "rejected"
	case OutcomeBusy:
		return "busy"
	case OutcomeNotReady:
		return "not_ready"
	default:
		return "unknown"
	}
}
