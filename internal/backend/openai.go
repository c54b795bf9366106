package backend

// ChatMessage is one role/content pair in an OpenAI-compatible request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest represents the request body for OpenAI-compatible APIs.
// Persona is an extension understood by the relay; it selects the system
// instruction server-side so that clients never send instruction text.
type ChatCompletionRequest struct {
	Model       string        `json:"model,omitempty"`
	Persona     string        `json:"persona,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// ChatCompletionChoice is a single entry of ChatCompletionResponse.Choices
type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage reports token accounting for one completion
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse represents the response from OpenAI-compatible APIs
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   *Usage                 `json:"usage,omitempty"`
}

// ErrorResponse is the JSON body returned by the relay on failure
type ErrorResponse struct {
	Error string `json:"error"`
}
