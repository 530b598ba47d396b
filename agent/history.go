package agent

import (
	"encoding/json"
	"errors"
	"fmt"

	llmprovider "github.com/haowjy/meridian-agent-go"
)

var (
	// ErrUnmatchedToolResult indicates a tool result whose id matches no call of its turn.
	ErrUnmatchedToolResult = errors.New("agent: tool result does not match any tool call")

	// ErrMissingToolResult indicates a tool call of a turn without a result.
	ErrMissingToolResult = errors.New("agent: tool call has no result")
)

// ToContentBlocks renders a round as assistant content blocks in
// reasoning → text → tool-call order. Each reasoning block keeps its own
// signature; reasoning without a signature is omitted.
func ToContentBlocks(r RoundResult) []*llmprovider.Block {
	blocks := make([]*llmprovider.Block, 0, len(r.Reasoning)+1+len(r.ToolCalls))
	for _, th := range r.Reasoning {
		if th.Text != "" && th.Signature != "" {
			blocks = append(blocks, llmprovider.NewThinkingBlock(th.Text, th.Signature))
		}
	}
	if r.Text != "" {
		blocks = append(blocks, llmprovider.NewTextBlock(r.Text))
	}
	for _, call := range r.ToolCalls {
		blocks = append(blocks, llmprovider.NewToolUseBlock(call.ID, call.Name, call.Input))
	}
	return renumber(blocks)
}

// ToolResultBlocks renders tool results as tool_result blocks. Successful data
// is JSON encoded (strings are passed through); failures carry the error text.
func ToolResultBlocks(results []ToolResult) []*llmprovider.Block {
	blocks := make([]*llmprovider.Block, 0, len(results))
	for _, res := range results {
		if res.Success {
			blocks = append(blocks, llmprovider.NewToolResultBlock(res.ToolCallID, encodeData(res.Data), false))
			continue
		}
		msg := res.Error
		if msg == "" {
			msg = "tool failed"
		}
		blocks = append(blocks, llmprovider.NewToolResultBlock(res.ToolCallID, msg, true))
	}
	return renumber(blocks)
}

func encodeData(data any) string {
	switch v := data.(type) {
	case nil:
		return "ok"
	case string:
		return v
	case json.RawMessage:
		return string(v)
	}
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(b)
}

func renumber(blocks []*llmprovider.Block) []*llmprovider.Block {
	for i, b := range blocks {
		b.Sequence = i
	}
	return blocks
}

// NewConversationTurn pairs a round with its tool results. Every result must
// answer exactly one call of the round and every call must be answered.
func NewConversationTurn(r RoundResult, results []ToolResult) (ConversationTurn, error) {
	pending := make(map[string]bool, len(r.ToolCalls))
	for _, call := range r.ToolCalls {
		pending[call.ID] = true
	}
	for _, res := range results {
		if !pending[res.ToolCallID] {
			return ConversationTurn{}, fmt.Errorf("%w: %q", ErrUnmatchedToolResult, res.ToolCallID)
		}
		delete(pending, res.ToolCallID)
	}
	for _, call := range r.ToolCalls {
		if pending[call.ID] {
			return ConversationTurn{}, fmt.Errorf("%w: %q (%s)", ErrMissingToolResult, call.ID, call.Name)
		}
	}

	return ConversationTurn{
		AssistantBlocks: ToContentBlocks(r),
		ToolCalls:       append([]ToolCall(nil), r.ToolCalls...),
		ToolResults:     append([]ToolResult(nil), results...),
	}, nil
}

// ToMessages rebuilds the full history for the next round: the base messages
// followed, per turn, by an assistant message and a user message carrying the
// tool results. base is not modified.
func ToMessages(base []llmprovider.Message, turns []ConversationTurn) []llmprovider.Message {
	out := make([]llmprovider.Message, 0, len(base)+2*len(turns))
	out = append(out, base...)
	for _, turn := range turns {
		out = append(out,
			llmprovider.Message{Role: llmprovider.RoleAssistant, Blocks: copyBlocks(turn.AssistantBlocks)},
			llmprovider.Message{Role: llmprovider.RoleUser, Blocks: ToolResultBlocks(turn.ToolResults)},
		)
	}
	return out
}

func copyBlocks(blocks []*llmprovider.Block) []*llmprovider.Block {
	out := make([]*llmprovider.Block, len(blocks))
	for i, b := range blocks {
		c := *b
		c.Sequence = i
		out[i] = &c
	}
	return out
}
