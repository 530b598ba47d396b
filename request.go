package llmprovider

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GenerateRequest contains the parameters for an LLM generation request.
type GenerateRequest struct {
	// Messages contains the conversation history.
	Messages []Message

	// Model is the model identifier (e.g., "claude-haiku-4-5-20251001")
	Model string

	// Params contains request parameters (max tokens, thinking, tools, system prompt).
	// Provider adapters extract what they support from this unified struct.
	Params *RequestParams
}

// Message represents a single message in the conversation.
type Message struct {
	// Role is either "user" or "assistant"
	Role string

	// Blocks is the list of content blocks for this message
	Blocks []*Block
}

// NewUserTextMessage creates a user message holding a single text block.
func NewUserTextMessage(text string) Message {
	return Message{
		Role:   RoleUser,
		Blocks: []*Block{NewTextBlock(text)},
	}
}

// LastUserHasToolResults reports whether the final message is a user message
// carrying tool results, i.e. the model is being asked to continue after tools ran.
func LastUserHasToolResults(messages []Message) bool {
	if len(messages) == 0 {
		return false
	}
	last := messages[len(messages)-1]
	if last.Role != RoleUser {
		return false
	}
	for _, b := range last.Blocks {
		if b.IsToolResultBlock() {
			return true
		}
	}
	return false
}
