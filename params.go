package llmprovider

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Thinking levels accepted by RequestParams.ThinkingLevel
const (
	ThinkingLevelLow    = "low"
	ThinkingLevelMedium = "medium"
	ThinkingLevelHigh   = "high"
)

// RequestParams represents the LLM request parameters the orchestrator uses.
// All scalar fields are optional pointers to distinguish "not set" from "set to zero value".
type RequestParams struct {
	// MaxTokens sets the maximum number of tokens to generate
	MaxTokens *int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0-1.0)
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// TopP (nucleus sampling) - cumulative probability cutoff (0.0-1.0)
	TopP *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`

	// TopK limits sampling to top K tokens
	TopK *int `json:"top_k,omitempty" yaml:"top_k,omitempty"`

	// Stop sequences - generation stops if any of these are generated
	Stop []string `json:"stop,omitempty" yaml:"stop,omitempty"`

	// ThinkingEnabled enables extended thinking mode
	ThinkingEnabled *bool `json:"thinking_enabled,omitempty" yaml:"thinking_enabled,omitempty"`

	// ThinkingLevel sets the thinking budget: "low", "medium", "high"
	ThinkingLevel *string `json:"thinking_level,omitempty" yaml:"thinking_level,omitempty"`

	// System prompt
	System *string `json:"system,omitempty" yaml:"system,omitempty"`

	// Tools available for the model to use
	Tools []Tool `json:"tools,omitempty" yaml:"-"`

	// ToolChoice controls whether/which tools to use
	ToolChoice *ToolChoice `json:"tool_choice,omitempty" yaml:"-"`
}

// Validate checks parameter ranges. Every failure wraps ErrInvalidRequest.
func (rp *RequestParams) Validate() error {
	if rp == nil {
		return nil // nil params is valid
	}

	if rp.Temperature != nil && (*rp.Temperature < 0.0 || *rp.Temperature > 1.0) {
		return invalidParam("temperature", *rp.Temperature, "must be between 0.0 and 1.0")
	}

	if rp.TopP != nil && (*rp.TopP < 0.0 || *rp.TopP > 1.0) {
		return invalidParam("top_p", *rp.TopP, "must be between 0.0 and 1.0")
	}

	if rp.TopK != nil && *rp.TopK < 0 {
		return invalidParam("top_k", *rp.TopK, "must be non-negative")
	}

	if rp.MaxTokens != nil && *rp.MaxTokens < 1 {
		return invalidParam("max_tokens", *rp.MaxTokens, "must be positive")
	}

	if rp.ThinkingLevel != nil {
		valid := []string{ThinkingLevelLow, ThinkingLevelMedium, ThinkingLevelHigh}
		if !slices.Contains(valid, *rp.ThinkingLevel) {
			return invalidParam("thinking_level", *rp.ThinkingLevel, "must be 'low', 'medium', or 'high'")
		}
	}

	seen := make(map[string]bool, len(rp.Tools))
	for i := range rp.Tools {
		if err := rp.Tools[i].Validate(); err != nil {
			return &ValidationError{Field: "tools", Value: rp.Tools[i].Function.Name, Reason: err.Error(), Err: ErrInvalidRequest}
		}
		name := rp.Tools[i].Function.Name
		if seen[name] {
			return invalidParam("tools", name, "duplicate tool name")
		}
		seen[name] = true
	}

	if rp.ToolChoice != nil {
		if err := rp.ToolChoice.Validate(); err != nil {
			return &ValidationError{Field: "tool_choice", Value: rp.ToolChoice.Mode, Reason: err.Error(), Err: ErrInvalidRequest}
		}
	}

	return nil
}

func invalidParam(field string, value any, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Err: ErrInvalidRequest}
}

// GetRequestParamStruct unmarshals a JSON-style map into a typed RequestParams struct
func GetRequestParamStruct(params map[string]interface{}) (*RequestParams, error) {
	if params == nil {
		return &RequestParams{}, nil
	}

	jsonBytes, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	var rp RequestParams
	if err := json.Unmarshal(jsonBytes, &rp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}

	return &rp, nil
}

// Clone returns a copy whose slices can be modified without touching rp.
func (rp *RequestParams) Clone() *RequestParams {
	if rp == nil {
		return &RequestParams{}
	}
	c := *rp
	c.Stop = slices.Clone(rp.Stop)
	c.Tools = slices.Clone(rp.Tools)
	return &c
}

// GetMaxTokens returns max_tokens with default fallback
func (rp *RequestParams) GetMaxTokens(defaultValue int) int {
	if rp != nil && rp.MaxTokens != nil {
		return *rp.MaxTokens
	}
	return defaultValue
}

// GetTemperature returns temperature with default fallback
func (rp *RequestParams) GetTemperature(defaultValue float64) float64 {
	if rp != nil && rp.Temperature != nil {
		return *rp.Temperature
	}
	return defaultValue
}

// GetSystem returns the system prompt, or "" when unset
func (rp *RequestParams) GetSystem() string {
	if rp != nil && rp.System != nil {
		return *rp.System
	}
	return ""
}

// IsThinkingEnabled reports whether extended thinking was requested, either
// explicitly or implicitly through a thinking level.
func (rp *RequestParams) IsThinkingEnabled() bool {
	if rp == nil {
		return false
	}
	if rp.ThinkingEnabled != nil {
		return *rp.ThinkingEnabled
	}
	return rp.ThinkingLevel != nil
}

// GetThinkingBudgetTokens converts thinking_level to token budget
// low = 2000, medium = 5000, high = 12000
func (rp *RequestParams) GetThinkingBudgetTokens() int {
	if rp == nil || rp.ThinkingLevel == nil {
		return 0 // Thinking not enabled
	}
	return defaultThinkingBudgets[*rp.ThinkingLevel]
}

var defaultThinkingBudgets = map[string]int{
	ThinkingLevelLow:    2000,
	ThinkingLevelMedium: 5000,
	ThinkingLevelHigh:   12000,
}
