package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmprovider "github.com/haowjy/meridian-agent-go"
)

func codes(warnings []Warning) []WarningCode {
	out := make([]WarningCode, len(warnings))
	for i, w := range warnings {
		out[i] = w.Code
	}
	return out
}

func TestValidator_Check(t *testing.T) {
	router := NewRouter()
	require.NoError(t, router.Register("list_ideas", FamilyGraph, nil))
	v := NewValidator(llmprovider.GetCapabilityRegistry(), router)

	listIdeas := llmprovider.NewFunctionTool("list_ideas", "", map[string]any{"type": "object"})
	orphan := llmprovider.NewFunctionTool("orphan", "", map[string]any{"type": "object"})
	thinking := true

	tests := []struct {
		name  string
		setup Setup
		want  []WarningCode
	}{
		{
			name:  "clean",
			setup: Setup{Provider: llmprovider.ProviderLorem, Model: "lorem-fast", Catalog: []llmprovider.Tool{listIdeas}, Mutating: []string{"list_ideas"}},
			want:  []WarningCode{},
		},
		{
			name:  "unknown model",
			setup: Setup{Provider: llmprovider.ProviderLorem, Model: "gpt-9"},
			want:  []WarningCode{WarningModelUnknown},
		},
		{
			name:  "tools unsupported",
			setup: Setup{Provider: llmprovider.ProviderLorem, Model: "lorem-chat", Catalog: []llmprovider.Tool{listIdeas}},
			want:  []WarningCode{WarningToolsUnsupported},
		},
		{
			name:  "thinking unsupported",
			setup: Setup{Provider: llmprovider.ProviderAnthropic, Model: "claude-3-5-haiku", Params: &llmprovider.RequestParams{ThinkingEnabled: &thinking}},
			want:  []WarningCode{WarningThinkingUnsupported},
		},
		{
			name:  "unrouted and duplicate",
			setup: Setup{Provider: llmprovider.ProviderLorem, Model: "lorem-fast", Catalog: []llmprovider.Tool{orphan, listIdeas, listIdeas}},
			want:  []WarningCode{WarningToolUnrouted, WarningToolDuplicate},
		},
		{
			name:  "mutating not offered",
			setup: Setup{Provider: llmprovider.ProviderLorem, Model: "lorem-fast", Mutating: []string{"delete_idea"}},
			want:  []WarningCode{WarningMutatingNotOffered},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(v.Check(tt.setup)))
		})
	}
}

type alwaysWarn struct{}

func (alwaysWarn) Name() string { return "always" }

func (alwaysWarn) Check(Setup) []Warning {
	return []Warning{{Code: "CUSTOM", Severity: SeverityInfo}}
}

func TestValidator_CustomRuleAndFilter(t *testing.T) {
	v := NewValidator(llmprovider.GetCapabilityRegistry(), NewRouter())
	v.AddRule(alwaysWarn{})

	warnings := v.Check(Setup{Provider: llmprovider.ProviderLorem, Model: "gpt-9"})
	assert.Equal(t, []WarningCode{WarningModelUnknown, "CUSTOM"}, codes(warnings))
	assert.Equal(t, []WarningCode{"CUSTOM"}, codes(FilterBySeverity(warnings, SeverityInfo)))
}
