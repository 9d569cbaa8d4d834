package llm

// Role is the author of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest asks for a single chat completion. Zero Model and
// MaxTokens fall back to the provider defaults.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Usage counts tokens spent on a completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// CompletionResponse is the first choice of a completion.
type CompletionResponse struct {
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
}
