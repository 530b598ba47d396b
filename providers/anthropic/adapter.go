package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	llmprovider "github.com/haowjy/meridian-agent-go"
)

// convertToAnthropicMessages converts library messages to Anthropic SDK format.
// Unsigned thinking blocks are dropped: the API rejects thinking it cannot verify.
func convertToAnthropicMessages(messages []llmprovider.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))

	for i, msg := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Blocks))

		for j, block := range msg.Blocks {
			switch block.BlockType {
			case llmprovider.BlockTypeText:
				if block.TextContent == nil {
					return nil, fmt.Errorf("message %d, block %d: text block missing text_content", i, j)
				}
				blocks = append(blocks, anthropic.NewTextBlock(*block.TextContent))

			case llmprovider.BlockTypeToolUse:
				toolUseID, ok := block.GetToolUseID()
				if !ok {
					return nil, fmt.Errorf("message %d, block %d: tool_use block missing tool_use_id", i, j)
				}
				toolName, ok := block.GetToolName()
				if !ok || toolName == "" {
					return nil, fmt.Errorf("message %d, block %d: tool_use block missing tool_name", i, j)
				}
				input, ok := block.Content["input"]
				if !ok {
					return nil, fmt.Errorf("message %d, block %d: tool_use block missing input", i, j)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(toolUseID, input, toolName))

			case llmprovider.BlockTypeToolResult:
				toolUseID, ok := block.GetToolUseID()
				if !ok {
					return nil, fmt.Errorf("message %d, block %d: tool_result block missing tool_use_id", i, j)
				}
				blocks = append(blocks, anthropic.NewToolResultBlock(toolUseID, block.Text(), block.IsErrorResult()))

			case llmprovider.BlockTypeThinking:
				if !block.IsSigned() {
					continue
				}
				blocks = append(blocks, anthropic.NewThinkingBlock(block.Signature(), block.Text()))

			default:
				// Skip unsupported block types
			}
		}

		var message anthropic.MessageParam
		switch msg.Role {
		case llmprovider.RoleUser:
			message = anthropic.NewUserMessage(blocks...)
		case llmprovider.RoleAssistant:
			message = anthropic.NewAssistantMessage(blocks...)
		default:
			return nil, fmt.Errorf("message %d: unsupported role '%s'", i, msg.Role)
		}

		result = append(result, message)
	}

	return result, nil
}

// convertAnthropicBlock converts a single Anthropic ContentBlockUnion to library Block format.
// Shared by the streaming and non-streaming paths. Returns nil for block types
// the orchestrator does not surface (redacted_thinking, server tool blocks).
func convertAnthropicBlock(content anthropic.ContentBlockUnion, sequence int) (*llmprovider.Block, error) {
	var block *llmprovider.Block

	switch content.Type {
	case "text":
		block = llmprovider.NewTextBlock(content.Text)

	case "thinking":
		// An empty signature yields an unsigned block that is shown but never replayed
		block = llmprovider.NewThinkingBlock(content.Thinking, content.Signature)

	case "tool_use":
		input, err := decodeToolInput(content.Input)
		if err != nil {
			return nil, fmt.Errorf("tool_use %s: %w", content.ID, err)
		}
		block = llmprovider.NewToolUseBlock(content.ID, content.Name, input)

	default:
		return nil, nil
	}

	providerID := llmprovider.ProviderAnthropic.String()
	block.Sequence = sequence
	block.Provider = &providerID
	return block, nil
}

func decodeToolInput(raw json.RawMessage) (map[string]interface{}, error) {
	input := map[string]interface{}{}
	if len(raw) == 0 || string(raw) == "null" {
		return input, nil
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return input, nil
}

// convertFromAnthropicResponse converts an Anthropic response to library format.
func convertFromAnthropicResponse(msg *anthropic.Message) (*llmprovider.GenerateResponse, error) {
	blocks := make([]*llmprovider.Block, 0, len(msg.Content))

	for i, content := range msg.Content {
		block, err := convertAnthropicBlock(content, i)
		if err != nil {
			return nil, err
		}
		if block != nil {
			blocks = append(blocks, block)
		}
	}

	meta := buildStreamMetadata(msg)
	return &llmprovider.GenerateResponse{
		Blocks:           blocks,
		Model:            meta.Model,
		InputTokens:      meta.InputTokens,
		OutputTokens:     meta.OutputTokens,
		StopReason:       meta.StopReason,
		ResponseMetadata: meta.ResponseMetadata,
	}, nil
}
