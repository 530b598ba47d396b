package agent

import (
	"context"

	llmprovider "github.com/haowjy/meridian-agent-go"
)

// Feature configures the engine for one assistant. Optional behavior is
// declared by also implementing PreambleProvider, AuxiliaryRules,
// MutationPolicy or RoundLimiter.
type Feature interface {
	Name() string
	Catalog() []llmprovider.Tool
}

// PreambleProvider builds the system prompt for an exchange.
type PreambleProvider interface {
	Preamble(ctx context.Context, rc RequestContext) (string, error)
}

// AuxiliaryRules derive extra events around a tool execution.
type AuxiliaryRules interface {
	BeforeTool(call ToolCall) []Event
	AfterTool(call ToolCall, res ToolResult) []Event
}

// MutationPolicy names the tools whose success requires a snapshot.
type MutationPolicy interface {
	MutatingTools() []string
}

// RoundLimiter overrides the engine's round ceiling.
type RoundLimiter interface {
	MaxRounds() int
}

// StaticFeature is a Feature with a fixed catalog and no optional behavior.
type StaticFeature struct {
	FeatureName string
	Tools       []llmprovider.Tool
}

func (f StaticFeature) Name() string { return f.FeatureName }
func (f StaticFeature) Catalog() []llmprovider.Tool { return f.Tools }
