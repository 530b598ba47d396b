package anthropic

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	llmprovider "github.com/haowjy/meridian-agent-go"
)

const defaultMaxTokens = 4096

// buildMessageParams constructs Anthropic API parameters from a GenerateRequest.
// Shared between GenerateResponse and StreamResponse.
func buildMessageParams(req *llmprovider.GenerateRequest) (anthropic.MessageNewParams, error) {
	params := req.Params
	if params == nil {
		params = &llmprovider.RequestParams{}
	}
	if err := params.Validate(); err != nil {
		return anthropic.MessageNewParams{}, err
	}

	messages, err := convertToAnthropicMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("failed to convert messages: %w", err)
	}

	maxTokens := params.GetMaxTokens(defaultMaxTokens)

	apiParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}

	if params.Temperature != nil {
		apiParams.Temperature = anthropic.Float(*params.Temperature)
	}

	if params.TopP != nil {
		apiParams.TopP = anthropic.Float(*params.TopP)
	}

	if params.TopK != nil {
		apiParams.TopK = anthropic.Int(int64(*params.TopK))
	}

	if len(params.Stop) > 0 {
		apiParams.StopSequences = params.Stop
	}

	if system := params.GetSystem(); system != "" {
		apiParams.System = []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: system,
			},
		}
	}

	// Thinking mode - convert user-friendly level to a budget the model accepts
	if params.IsThinkingEnabled() {
		registry := llmprovider.GetCapabilityRegistry()
		level := llmprovider.ThinkingLevelMedium
		if params.ThinkingLevel != nil {
			level = *params.ThinkingLevel
		}
		budget, err := registry.ConvertEffortToBudget(llmprovider.ProviderAnthropic.String(), req.Model, level)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("thinking budget: %w", err)
		}
		budget = registry.ClampThinkingBudget(llmprovider.ProviderAnthropic.String(), req.Model, budget, maxTokens)
		if budget > 0 {
			apiParams.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(budget))
		}
	}

	tools, err := convertToolsToAnthropicTools(params.Tools)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	apiParams.Tools = tools

	choice, err := convertToolChoice(params.ToolChoice)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	if choice != nil {
		apiParams.ToolChoice = *choice
	}

	return apiParams, nil
}
