package llmprovider

// StreamEvent represents a single event in a streaming response.
// Each event carries exactly one of a delta, a completed block, final metadata
// or an error.
type StreamEvent struct {
	// Delta contains incremental block content for real-time display
	Delta *BlockDelta

	// Block contains a complete block when a block finishes streaming.
	// Emitted once per block; its content is authoritative over the deltas.
	Block *Block

	// Metadata contains final response data; it is the last event of a
	// successful stream.
	Metadata *StreamMetadata

	// Error contains any error that occurred during streaming
	Error error
}

// IsEmpty reports whether the event carries nothing (provider keep-alives).
func (e StreamEvent) IsEmpty() bool {
	return e.Delta == nil && e.Block == nil && e.Metadata == nil && e.Error == nil
}

// Stop reason values reported in StreamMetadata.StopReason
const (
	StopReasonEndTurn   = "end_turn"
	StopReasonToolUse   = "tool_use"
	StopReasonMaxTokens = "max_tokens"
	StopReasonStopSeq   = "stop_sequence"
)

// StreamMetadata contains completion information sent when streaming finishes.
type StreamMetadata struct {
	// Model is the model that was used (may differ from request if aliased)
	Model string

	// InputTokens is the number of tokens in the input
	InputTokens int

	// OutputTokens is the number of tokens in the output
	OutputTokens int

	// StopReason indicates why generation stopped (e.g., "end_turn", "max_tokens", "tool_use")
	StopReason string

	// ResponseMetadata contains provider-specific response data
	ResponseMetadata map[string]interface{}
}
