package llmprovider

// GenerateResponse contains the LLM provider's response.
type GenerateResponse struct {
	// Blocks is the list of content blocks returned by the provider
	Blocks []*Block

	// Model is the model that was used (may differ from request if aliased)
	Model string

	// InputTokens is the number of tokens in the input
	InputTokens int

	// OutputTokens is the number of tokens in the output
	OutputTokens int

	// StopReason indicates why generation stopped (e.g., "end_turn", "tool_use")
	StopReason string

	// ResponseMetadata contains provider-specific response data
	ResponseMetadata map[string]interface{}
}

// ToolUseBlocks returns the tool_use blocks of the response in order.
func (r *GenerateResponse) ToolUseBlocks() []*Block {
	var out []*Block
	for _, b := range r.Blocks {
		if b.IsToolUseBlock() {
			out = append(out, b)
		}
	}
	return out
}
