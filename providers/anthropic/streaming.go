package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	llmprovider "github.com/haowjy/meridian-agent-go"
)

// StreamResponse generates a streaming response from Claude.
// Returns a channel that emits deltas as they arrive, one completed Block per
// content block, and a final StreamMetadata event.
func (p *Provider) StreamResponse(ctx context.Context, req *llmprovider.GenerateRequest) (<-chan llmprovider.StreamEvent, error) {
	if err := p.checkModel(req.Model); err != nil {
		return nil, err
	}

	apiParams, err := buildMessageParams(req)
	if err != nil {
		return nil, err
	}

	eventChan := make(chan llmprovider.StreamEvent, 10)

	go func() {
		defer close(eventChan)

		send := func(ev llmprovider.StreamEvent) bool {
			select {
			case <-ctx.Done():
				return false
			case eventChan <- ev:
				return true
			}
		}

		stream := p.client.Messages.NewStreaming(ctx, apiParams)
		defer stream.Close()

		// Accumulator for completed blocks and final message metadata
		message := anthropic.Message{}

		for stream.Next() {
			event := stream.Current()

			if err := message.Accumulate(event); err != nil {
				send(llmprovider.StreamEvent{Error: fmt.Errorf("failed to accumulate message: %w", err)})
				return
			}

			streamEvent, err := transformAnthropicStreamEvent(event, &message)
			if err != nil {
				send(llmprovider.StreamEvent{Error: err})
				return
			}
			if streamEvent.IsEmpty() {
				continue
			}
			if !send(streamEvent) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			send(llmprovider.StreamEvent{Error: classifyError(err)})
			return
		}

		// The body closed before message_delta carried a stop reason.
		if message.StopReason == "" {
			send(llmprovider.StreamEvent{Error: llmprovider.ErrStreamInterrupted})
			return
		}

		send(llmprovider.StreamEvent{Metadata: buildStreamMetadata(&message)})
	}()

	return eventChan, nil
}

func buildStreamMetadata(message *anthropic.Message) *llmprovider.StreamMetadata {
	metadata := &llmprovider.StreamMetadata{
		Model:        string(message.Model),
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
		StopReason:   string(message.StopReason),
	}

	responseMetadata := make(map[string]interface{})
	if message.ID != "" {
		responseMetadata["message_id"] = message.ID
	}
	if message.StopSequence != "" {
		responseMetadata["stop_sequence"] = message.StopSequence
	}
	if message.Usage.CacheCreationInputTokens > 0 {
		responseMetadata["cache_creation_input_tokens"] = int(message.Usage.CacheCreationInputTokens)
	}
	if message.Usage.CacheReadInputTokens > 0 {
		responseMetadata["cache_read_input_tokens"] = int(message.Usage.CacheReadInputTokens)
	}
	metadata.ResponseMetadata = responseMetadata
	return metadata
}

// transformAnthropicStreamEvent converts an Anthropic streaming event to a library StreamEvent.
//
// Anthropic stream events include:
//   - MessageStart: message metadata (id, model, role)
//   - ContentBlockStart: new content block started (index, type)
//   - ContentBlockDelta: incremental content (text, thinking, signature, input_json)
//   - ContentBlockStop: block finished; the accumulated block is emitted whole
//   - MessageDelta / MessageStop: stop reason and usage, sent as final metadata
func transformAnthropicStreamEvent(event anthropic.MessageStreamEventUnion, message *anthropic.Message) (llmprovider.StreamEvent, error) {
	switch e := event.AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		blockType := string(e.ContentBlock.Type)
		delta := &llmprovider.BlockDelta{
			BlockIndex: int(e.Index),
			BlockType:  &blockType,
		}

		switch e.ContentBlock.Type {
		case "text":
			delta.DeltaType = llmprovider.DeltaTypeText
		case "thinking":
			// Anthropic sends signature:"" here; the real one arrives as signature_delta
			delta.DeltaType = llmprovider.DeltaTypeThinking
		case "tool_use":
			delta.DeltaType = llmprovider.DeltaTypeToolCallStart
			toolID := e.ContentBlock.ID
			toolName := e.ContentBlock.Name
			delta.ToolCallID = &toolID
			delta.ToolCallName = &toolName
		default:
			// redacted_thinking and server blocks are not surfaced
			return llmprovider.StreamEvent{}, nil
		}

		return llmprovider.StreamEvent{Delta: delta}, nil

	case anthropic.ContentBlockDeltaEvent:
		delta := &llmprovider.BlockDelta{
			BlockIndex: int(e.Index),
		}

		switch e.Delta.Type {
		case "text_delta":
			delta.DeltaType = llmprovider.DeltaTypeText
			text := e.Delta.Text
			delta.TextDelta = &text
		case "thinking_delta":
			delta.DeltaType = llmprovider.DeltaTypeThinking
			text := e.Delta.Thinking
			delta.TextDelta = &text
		case "signature_delta":
			delta.DeltaType = llmprovider.DeltaTypeSignature
			sig := e.Delta.Signature
			delta.SignatureDelta = &sig
		case "input_json_delta":
			delta.DeltaType = llmprovider.DeltaTypeJSON
			partial := e.Delta.PartialJSON
			delta.JSONDelta = &partial
		default:
			return llmprovider.StreamEvent{}, nil
		}

		return llmprovider.StreamEvent{Delta: delta}, nil

	case anthropic.ContentBlockStopEvent:
		idx := int(e.Index)
		if idx < 0 || idx >= len(message.Content) {
			return llmprovider.StreamEvent{}, fmt.Errorf("content_block_stop for unknown block %d", idx)
		}
		block, err := convertAnthropicBlock(message.Content[idx], idx)
		if err != nil {
			return llmprovider.StreamEvent{}, err
		}
		if block == nil {
			return llmprovider.StreamEvent{}, nil
		}
		return llmprovider.StreamEvent{Block: block}, nil

	default:
		// MessageStart, MessageDelta, MessageStop: folded into final metadata
		return llmprovider.StreamEvent{}, nil
	}
}
