package chat

// Role identifies the speaker of a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem only appears in outbound requests, never in a transcript
	RoleSystem Role = "system"
)

// Valid reports whether r may appear in a transcript
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn represents a single chat message
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Failed marks an assistant turn that stands in for a failed completion
	Failed bool `json:"failed,omitempty"`
}

// UserTurn creates a turn spoken by the user
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn creates a turn spoken by the assistant
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// ErrorTurn creates the assistant placeholder shown when a completion fails
func ErrorTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content, Failed: true}
}
