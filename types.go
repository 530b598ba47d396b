package llmprovider

import "encoding/json"

// Block type constants
const (
	BlockTypeText       = "text"
	BlockTypeThinking   = "thinking"    // Extended thinking / reasoning
	BlockTypeToolUse    = "tool_use"    // Tool call requested by the model
	BlockTypeToolResult = "tool_result" // Result sent back for a client-executed tool call
)

// Block represents a single content block of a message.
// This is a content-only type with no database fields.
//
// User blocks: text, tool_result
// Assistant blocks: thinking, text, tool_use
//
// The Content field stores block-type-specific structured data:
//   - text: empty (text in TextContent)
//   - thinking: empty (text in TextContent, signature in ProviderData)
//   - tool_use: {"tool_use_id": "toolu_...", "tool_name": "...", "input": {...}}
//   - tool_result: {"tool_use_id": "toolu_...", "is_error": false}
type Block struct {
	// BlockType indicates the type of block
	BlockType string `json:"block_type"`

	// Sequence indicates the position of this block in its message (0-indexed)
	Sequence int `json:"sequence"`

	// TextContent contains the text for text, thinking and tool_result blocks
	TextContent *string `json:"text_content,omitempty"`

	// Content contains type-specific structured data
	Content map[string]interface{} `json:"content,omitempty"`

	// Provider identifies which LLM provider generated this block
	Provider *string `json:"provider,omitempty"`

	// ProviderData stores provider-specific data that has no normalized field.
	// Thinking signatures live here as {"signature": "..."}.
	ProviderData json.RawMessage `json:"provider_data,omitempty"`
}

// NewTextBlock creates a text block.
func NewTextBlock(text string) *Block {
	return &Block{
		BlockType:   BlockTypeText,
		TextContent: &text,
	}
}

// NewThinkingBlock creates a thinking block. An empty signature leaves
// ProviderData unset, which marks the block as unverifiable.
func NewThinkingBlock(text, signature string) *Block {
	b := &Block{
		BlockType:   BlockTypeThinking,
		TextContent: &text,
	}
	if signature != "" {
		// Marshalling a single string field cannot fail
		b.ProviderData, _ = json.Marshal(map[string]string{"signature": signature})
	}
	return b
}

// NewToolUseBlock creates a tool_use block.
func NewToolUseBlock(id, name string, input map[string]interface{}) *Block {
	if input == nil {
		input = map[string]interface{}{}
	}
	return &Block{
		BlockType: BlockTypeToolUse,
		Content: map[string]interface{}{
			"tool_use_id": id,
			"tool_name":   name,
			"input":       input,
		},
	}
}

// NewToolResultBlock creates a tool_result block answering the tool call id.
func NewToolResultBlock(toolUseID, text string, isError bool) *Block {
	return &Block{
		BlockType:   BlockTypeToolResult,
		TextContent: &text,
		Content: map[string]interface{}{
			"tool_use_id": toolUseID,
			"is_error":    isError,
		},
	}
}

// Text returns the block's text content, or "" when unset.
func (b *Block) Text() string {
	if b.TextContent == nil {
		return ""
	}
	return *b.TextContent
}

// IsToolUseBlock returns true if this is a tool_use block
func (b *Block) IsToolUseBlock() bool {
	return b.BlockType == BlockTypeToolUse
}

// IsToolResultBlock returns true if this is a tool_result block
func (b *Block) IsToolResultBlock() bool {
	return b.BlockType == BlockTypeToolResult
}

// IsThinkingBlock returns true if this is a thinking block
func (b *Block) IsThinkingBlock() bool {
	return b.BlockType == BlockTypeThinking
}

// Signature returns the provider-issued thinking signature, or "" if the
// block carries none.
func (b *Block) Signature() string {
	if len(b.ProviderData) == 0 {
		return ""
	}
	var pd struct {
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal(b.ProviderData, &pd); err != nil {
		return ""
	}
	return pd.Signature
}

// IsSigned reports whether a thinking block can be replayed to the provider.
func (b *Block) IsSigned() bool {
	return b.IsThinkingBlock() && b.Signature() != ""
}

// GetToolUseID returns the tool_use_id from a tool_use or tool_result block
func (b *Block) GetToolUseID() (string, bool) {
	if !b.IsToolUseBlock() && !b.IsToolResultBlock() {
		return "", false
	}
	id, ok := b.Content["tool_use_id"].(string)
	return id, ok && id != ""
}

// GetToolName returns the tool_name from a tool_use block
func (b *Block) GetToolName() (string, bool) {
	if !b.IsToolUseBlock() {
		return "", false
	}
	name, ok := b.Content["tool_name"].(string)
	return name, ok
}

// GetToolInput returns the input from a tool_use block
func (b *Block) GetToolInput() (map[string]interface{}, bool) {
	if !b.IsToolUseBlock() {
		return nil, false
	}
	input, ok := b.Content["input"].(map[string]interface{})
	return input, ok
}

// IsErrorResult returns true if a tool_result block reports a failure
func (b *Block) IsErrorResult() bool {
	if !b.IsToolResultBlock() {
		return false
	}
	isErr, _ := b.Content["is_error"].(bool)
	return isErr
}

// IsFromProvider returns true if this block was created by the specified provider
func (b *Block) IsFromProvider(provider ProviderID) bool {
	return b.Provider != nil && *b.Provider == provider.String()
}

// Delta type constants for streaming events
const (
	DeltaTypeText          = "text_delta"      // Regular text content
	DeltaTypeThinking      = "thinking_delta"  // Thinking/reasoning text
	DeltaTypeSignature     = "signature_delta" // Thinking signature
	DeltaTypeToolCallStart = "tool_call_start" // Tool call initiated (name, id)
	DeltaTypeJSON          = "json_delta"      // Incremental tool input JSON
	DeltaTypeUsage         = "usage_delta"     // Token usage updates
)

// BlockDelta represents an incremental update to a block during streaming.
// Deltas are display material: the completed Block emitted at the end of each
// block is authoritative.
//
// BlockType is only set on the first delta for a block and acts as the
// block-start signal.
type BlockDelta struct {
	// BlockIndex identifies which block this delta belongs to (0-indexed)
	BlockIndex int `json:"block_index"`

	// BlockType is set on the first delta for a block
	BlockType *string `json:"block_type,omitempty"`

	// DeltaType indicates what kind of delta this is
	DeltaType string `json:"delta_type"`

	// TextDelta contains incremental text (text or thinking blocks)
	TextDelta *string `json:"text_delta,omitempty"`

	// SignatureDelta contains the thinking signature
	SignatureDelta *string `json:"signature_delta,omitempty"`

	// JSONDelta contains a fragment of tool input JSON
	JSONDelta *string `json:"json_delta,omitempty"`

	// ToolCallID and ToolCallName are set on tool_call_start
	ToolCallID   *string `json:"tool_call_id,omitempty"`
	ToolCallName *string `json:"tool_call_name,omitempty"`

	// InputTokens and OutputTokens carry usage updates
	InputTokens  *int `json:"input_tokens,omitempty"`
	OutputTokens *int `json:"output_tokens,omitempty"`
}

// IsBlockStart returns true if this delta signals the start of a new block
func (d *BlockDelta) IsBlockStart() bool {
	return d.BlockType != nil
}

// IsTextDelta returns true if this delta contains text content
func (d *BlockDelta) IsTextDelta() bool {
	return d.DeltaType == DeltaTypeText && d.TextDelta != nil
}

// IsThinkingDelta returns true if this delta contains reasoning text
func (d *BlockDelta) IsThinkingDelta() bool {
	return d.DeltaType == DeltaTypeThinking && d.TextDelta != nil
}

// IsJSONDelta returns true if this delta contains tool input JSON
func (d *BlockDelta) IsJSONDelta() bool {
	return d.DeltaType == DeltaTypeJSON && d.JSONDelta != nil
}

// IsSignatureDelta returns true if this delta contains signature content
func (d *BlockDelta) IsSignatureDelta() bool {
	return d.DeltaType == DeltaTypeSignature && d.SignatureDelta != nil
}
