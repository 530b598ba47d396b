package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmprovider "github.com/haowjy/meridian-agent-go"
)

func TestConvertToAnthropicMessages_Text(t *testing.T) {
	messages := []llmprovider.Message{llmprovider.NewUserTextMessage("Hello, world!")}

	result, err := convertToAnthropicMessages(messages)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, anthropic.MessageParamRoleUser, result[0].Role)
	require.Len(t, result[0].Content, 1)
	require.NotNil(t, result[0].Content[0].OfText)
	assert.Equal(t, "Hello, world!", result[0].Content[0].OfText.Text)
}

func TestConvertToAnthropicMessages_ToolRoundTrip(t *testing.T) {
	messages := []llmprovider.Message{
		llmprovider.NewUserTextMessage("make an idea"),
		{
			Role: llmprovider.RoleAssistant,
			Blocks: []*llmprovider.Block{
				llmprovider.NewThinkingBlock("plan", "sig_1"),
				llmprovider.NewTextBlock("creating"),
				llmprovider.NewToolUseBlock("toolu_1", "create_idea", map[string]interface{}{"title": "x"}),
			},
		},
		{
			Role:   llmprovider.RoleUser,
			Blocks: []*llmprovider.Block{llmprovider.NewToolResultBlock("toolu_1", `{"id":"i1"}`, false)},
		},
	}

	result, err := convertToAnthropicMessages(messages)
	require.NoError(t, err)
	require.Len(t, result, 3)

	assistant := result[1]
	assert.Equal(t, anthropic.MessageParamRoleAssistant, assistant.Role)
	require.Len(t, assistant.Content, 3)
	require.NotNil(t, assistant.Content[0].OfThinking)
	assert.Equal(t, "sig_1", assistant.Content[0].OfThinking.Signature)
	require.NotNil(t, assistant.Content[2].OfToolUse)
	assert.Equal(t, "toolu_1", assistant.Content[2].OfToolUse.ID)
	assert.Equal(t, "create_idea", assistant.Content[2].OfToolUse.Name)

	user := result[2]
	require.Len(t, user.Content, 1)
	require.NotNil(t, user.Content[0].OfToolResult)
	assert.Equal(t, "toolu_1", user.Content[0].OfToolResult.ToolUseID)
}

func TestConvertToAnthropicMessages_UnsignedThinkingDropped(t *testing.T) {
	messages := []llmprovider.Message{
		{
			Role: llmprovider.RoleAssistant,
			Blocks: []*llmprovider.Block{
				llmprovider.NewThinkingBlock("unverifiable", ""),
				llmprovider.NewTextBlock("answer"),
			},
		},
	}

	result, err := convertToAnthropicMessages(messages)
	require.NoError(t, err)
	require.Len(t, result[0].Content, 1)
	assert.NotNil(t, result[0].Content[0].OfText)
}

func TestConvertToAnthropicMessages_Errors(t *testing.T) {
	tests := []struct {
		name  string
		block *llmprovider.Block
		role  string
	}{
		{
			name:  "tool_use missing id",
			block: &llmprovider.Block{BlockType: llmprovider.BlockTypeToolUse, Content: map[string]interface{}{"tool_name": "x", "input": map[string]interface{}{}}},
			role:  llmprovider.RoleAssistant,
		},
		{
			name:  "tool_use missing input",
			block: &llmprovider.Block{BlockType: llmprovider.BlockTypeToolUse, Content: map[string]interface{}{"tool_use_id": "t", "tool_name": "x"}},
			role:  llmprovider.RoleAssistant,
		},
		{
			name:  "tool_result missing id",
			block: &llmprovider.Block{BlockType: llmprovider.BlockTypeToolResult, Content: map[string]interface{}{}},
			role:  llmprovider.RoleUser,
		},
		{
			name:  "text missing content",
			block: &llmprovider.Block{BlockType: llmprovider.BlockTypeText},
			role:  llmprovider.RoleUser,
		},
		{
			name:  "unsupported role",
			block: llmprovider.NewTextBlock("hi"),
			role:  "system",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := convertToAnthropicMessages([]llmprovider.Message{{Role: tt.role, Blocks: []*llmprovider.Block{tt.block}}})
			assert.Error(t, err)
		})
	}
}

func TestConvertAnthropicBlock(t *testing.T) {
	tests := []struct {
		name       string
		content    anthropic.ContentBlockUnion
		wantType   string
		wantSigned bool
		wantNil    bool
	}{
		{
			name:     "text",
			content:  anthropic.ContentBlockUnion{Type: "text", Text: "hi"},
			wantType: llmprovider.BlockTypeText,
		},
		{
			name:       "signed thinking",
			content:    anthropic.ContentBlockUnion{Type: "thinking", Thinking: "hmm", Signature: "sig"},
			wantType:   llmprovider.BlockTypeThinking,
			wantSigned: true,
		},
		{
			name:     "unsigned thinking stays thinking",
			content:  anthropic.ContentBlockUnion{Type: "thinking", Thinking: "hmm"},
			wantType: llmprovider.BlockTypeThinking,
		},
		{
			name:     "tool use",
			content:  anthropic.ContentBlockUnion{Type: "tool_use", ID: "toolu_1", Name: "read_file", Input: json.RawMessage(`{"path":"a.md"}`)},
			wantType: llmprovider.BlockTypeToolUse,
		},
		{
			name:    "redacted thinking skipped",
			content: anthropic.ContentBlockUnion{Type: "redacted_thinking"},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, err := convertAnthropicBlock(tt.content, 2)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, block)
				return
			}
			require.NotNil(t, block)
			assert.Equal(t, tt.wantType, block.BlockType)
			assert.Equal(t, 2, block.Sequence)
			assert.True(t, block.IsFromProvider(llmprovider.ProviderAnthropic))
			assert.Equal(t, tt.wantSigned, block.IsSigned())
		})
	}
}

func TestConvertAnthropicBlock_ToolInput(t *testing.T) {
	block, err := convertAnthropicBlock(anthropic.ContentBlockUnion{
		Type:  "tool_use",
		ID:    "toolu_1",
		Name:  "read_file",
		Input: json.RawMessage(`{"path":"a.md"}`),
	}, 0)
	require.NoError(t, err)

	input, ok := block.GetToolInput()
	require.True(t, ok)
	assert.Equal(t, "a.md", input["path"])

	empty, err := convertAnthropicBlock(anthropic.ContentBlockUnion{Type: "tool_use", ID: "toolu_2", Name: "list_ideas"}, 0)
	require.NoError(t, err)
	input, ok = empty.GetToolInput()
	require.True(t, ok)
	assert.Empty(t, input)

	_, err = convertAnthropicBlock(anthropic.ContentBlockUnion{Type: "tool_use", ID: "toolu_3", Input: json.RawMessage(`[1,2]`)}, 0)
	assert.Error(t, err)
}

func TestConvertToolsToAnthropicTools(t *testing.T) {
	tools := []llmprovider.Tool{
		llmprovider.NewFunctionTool("read_file", "Read a file", map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{"type": "string"},
			},
			"required":             []interface{}{"path"},
			"additionalProperties": false,
		}),
	}

	result, err := convertToolsToAnthropicTools(tools)
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.NotNil(t, result[0].OfTool)
	assert.Equal(t, "read_file", result[0].OfTool.Name)
	assert.Equal(t, []string{"path"}, result[0].OfTool.InputSchema.Required)
	assert.Equal(t, false, result[0].OfTool.InputSchema.ExtraFields["additionalProperties"])

	_, err = convertToolsToAnthropicTools([]llmprovider.Tool{llmprovider.NewFunctionTool("bad", "", nil)})
	assert.Error(t, err)
}

func TestConvertToolChoice(t *testing.T) {
	name := "read_file"

	auto, err := convertToolChoice(&llmprovider.ToolChoice{Mode: llmprovider.ToolChoiceModeAuto})
	require.NoError(t, err)
	assert.NotNil(t, auto.OfAuto)

	required, err := convertToolChoice(&llmprovider.ToolChoice{Mode: llmprovider.ToolChoiceModeRequired})
	require.NoError(t, err)
	assert.NotNil(t, required.OfAny)

	specific, err := convertToolChoice(&llmprovider.ToolChoice{Mode: llmprovider.ToolChoiceModeSpecific, ToolName: &name})
	require.NoError(t, err)
	require.NotNil(t, specific.OfTool)
	assert.Equal(t, name, specific.OfTool.Name)

	none, err := convertToolChoice(nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestBuildMessageParams(t *testing.T) {
	level := llmprovider.ThinkingLevelHigh
	maxTokens := 8000
	system := "be terse"
	req := &llmprovider.GenerateRequest{
		Model:    "claude-haiku-4-5-20251001",
		Messages: []llmprovider.Message{llmprovider.NewUserTextMessage("hi")},
		Params: &llmprovider.RequestParams{
			MaxTokens:     &maxTokens,
			ThinkingLevel: &level,
			System:        &system,
			Tools: []llmprovider.Tool{
				llmprovider.NewFunctionTool("list_ideas", "", map[string]interface{}{"type": "object"}),
			},
		},
	}

	params, err := buildMessageParams(req)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), params.MaxTokens)
	require.Len(t, params.System, 1)
	assert.Equal(t, system, params.System[0].Text)
	require.NotNil(t, params.Thinking.OfEnabled)
	// high = 12000, clamped below max_tokens
	assert.Equal(t, int64(7999), params.Thinking.OfEnabled.BudgetTokens)
	assert.Len(t, params.Tools, 1)
}

func TestBuildMessageParams_InvalidParams(t *testing.T) {
	temp := 3.0
	_, err := buildMessageParams(&llmprovider.GenerateRequest{
		Model:  "claude-haiku-4-5",
		Params: &llmprovider.RequestParams{Temperature: &temp},
	})
	assert.True(t, llmprovider.IsInvalidRequest(err))
}

func TestTransformAnthropicStreamEvent_BlockStop(t *testing.T) {
	message := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "thinking", Thinking: "hmm", Signature: "sig"},
		},
	}
	var event anthropic.MessageStreamEventUnion
	require.NoError(t, json.Unmarshal([]byte(`{"type":"content_block_stop","index":0}`), &event))

	ev, err := transformAnthropicStreamEvent(event, message)
	require.NoError(t, err)
	require.NotNil(t, ev.Block)
	assert.True(t, ev.Block.IsSigned())

	require.NoError(t, json.Unmarshal([]byte(`{"type":"content_block_stop","index":3}`), &event))
	_, err = transformAnthropicStreamEvent(event, message)
	assert.Error(t, err)
}

func TestTransformAnthropicStreamEvent_Deltas(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		deltaType string
	}{
		{"text", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hi"}}`, llmprovider.DeltaTypeText},
		{"thinking", `{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"hm"}}`, llmprovider.DeltaTypeThinking},
		{"signature", `{"type":"content_block_delta","index":0,"delta":{"type":"signature_delta","signature":"s"}}`, llmprovider.DeltaTypeSignature},
		{"json", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"a\""}}`, llmprovider.DeltaTypeJSON},
		{"tool start", `{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"x","input":{}}}`, llmprovider.DeltaTypeToolCallStart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var event anthropic.MessageStreamEventUnion
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &event))
			ev, err := transformAnthropicStreamEvent(event, &anthropic.Message{})
			require.NoError(t, err)
			require.NotNil(t, ev.Delta)
			assert.Equal(t, tt.deltaType, ev.Delta.DeltaType)
		})
	}
}
