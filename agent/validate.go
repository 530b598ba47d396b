package agent

import (
	"fmt"
	"slices"

	llmprovider "github.com/haowjy/meridian-agent-go"
)

// Severity grades a catalog warning.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// WarningCode identifies a catalog warning.
type WarningCode string

const (
	WarningModelUnknown        WarningCode = "MODEL_UNKNOWN"
	WarningToolsUnsupported    WarningCode = "TOOLS_UNSUPPORTED"
	WarningThinkingUnsupported WarningCode = "THINKING_UNSUPPORTED"
	WarningToolUnrouted        WarningCode = "TOOL_UNROUTED"
	WarningToolDuplicate       WarningCode = "TOOL_DUPLICATE"
	WarningMutatingNotOffered  WarningCode = "MUTATING_NOT_OFFERED"
)

// Warning is an informational finding about an exchange setup. Warnings never
// block an exchange.
type Warning struct {
	Code     WarningCode
	Field    string
	Value    any
	Message  string
	Severity Severity
}

// Setup is what catalog rules inspect before round 1.
type Setup struct {
	Provider llmprovider.ProviderID
	Model    string
	Params   *llmprovider.RequestParams
	Catalog  []llmprovider.Tool
	Mutating []string
}

// Rule checks one aspect of a Setup.
type Rule interface {
	Name() string
	Check(s Setup) []Warning
}

// Validator runs a list of rules.
type Validator struct {
	rules []Rule
}

// NewValidator returns a validator with the default rules, backed by the
// capability registry and router.
func NewValidator(registry *llmprovider.CapabilityRegistry, router *Router) *Validator {
	return &Validator{rules: []Rule{
		modelRule{registry: registry},
		thinkingRule{registry: registry},
		routingRule{router: router},
		duplicateRule{},
		mutationRule{},
	}}
}

// AddRule appends a custom rule.
func (v *Validator) AddRule(r Rule) {
	v.rules = append(v.rules, r)
}

// Check runs every rule and concatenates their warnings.
func (v *Validator) Check(s Setup) []Warning {
	var out []Warning
	for _, r := range v.rules {
		out = append(out, r.Check(s)...)
	}
	return out
}

// FilterBySeverity returns the warnings with one of the given severities.
func FilterBySeverity(warnings []Warning, severities ...Severity) []Warning {
	var out []Warning
	for _, w := range warnings {
		if slices.Contains(severities, w.Severity) {
			out = append(out, w)
		}
	}
	return out
}

type modelRule struct {
	registry *llmprovider.CapabilityRegistry
}

func (modelRule) Name() string { return "model" }

func (r modelRule) Check(s Setup) []Warning {
	provider := s.Provider.String()
	if !r.registry.SupportsModel(provider, s.Model) {
		return []Warning{{
			Code:     WarningModelUnknown,
			Field:    "model",
			Value:    s.Model,
			Message:  fmt.Sprintf("model %s not found in %s capabilities", s.Model, provider),
			Severity: SeverityWarning,
		}}
	}
	if len(s.Catalog) > 0 && !r.registry.SupportsTools(provider, s.Model) {
		return []Warning{{
			Code:     WarningToolsUnsupported,
			Field:    "tools",
			Value:    len(s.Catalog),
			Message:  fmt.Sprintf("model %s might not support tools", s.Model),
			Severity: SeverityWarning,
		}}
	}
	return nil
}

type thinkingRule struct {
	registry *llmprovider.CapabilityRegistry
}

func (thinkingRule) Name() string { return "thinking" }

func (r thinkingRule) Check(s Setup) []Warning {
	if !s.Params.IsThinkingEnabled() {
		return nil
	}
	provider := s.Provider.String()
	if !r.registry.SupportsModel(provider, s.Model) || r.registry.SupportsThinking(provider, s.Model) {
		return nil
	}
	return []Warning{{
		Code:     WarningThinkingUnsupported,
		Field:    "thinking",
		Value:    true,
		Message:  fmt.Sprintf("model %s might not support extended thinking", s.Model),
		Severity: SeverityWarning,
	}}
}

type routingRule struct {
	router *Router
}

func (routingRule) Name() string { return "routing" }

func (r routingRule) Check(s Setup) []Warning {
	var out []Warning
	for _, t := range s.Catalog {
		if _, ok := r.router.FamilyOf(t.Name()); !ok {
			out = append(out, Warning{
				Code:     WarningToolUnrouted,
				Field:    "tools",
				Value:    t.Name(),
				Message:  fmt.Sprintf("tool %s has no family; calls will fail as unknown", t.Name()),
				Severity: SeverityWarning,
			})
		}
	}
	return out
}

type duplicateRule struct{}

func (duplicateRule) Name() string { return "duplicate" }

func (duplicateRule) Check(s Setup) []Warning {
	var out []Warning
	seen := make(map[string]bool, len(s.Catalog))
	for _, t := range s.Catalog {
		if seen[t.Name()] {
			out = append(out, Warning{
				Code:     WarningToolDuplicate,
				Field:    "tools",
				Value:    t.Name(),
				Message:  fmt.Sprintf("tool %s offered more than once", t.Name()),
				Severity: SeverityWarning,
			})
		}
		seen[t.Name()] = true
	}
	return out
}

type mutationRule struct{}

func (mutationRule) Name() string { return "mutation" }

func (mutationRule) Check(s Setup) []Warning {
	offered := make(map[string]bool, len(s.Catalog))
	for _, t := range s.Catalog {
		offered[t.Name()] = true
	}
	var out []Warning
	for _, name := range s.Mutating {
		if !offered[name] {
			out = append(out, Warning{
				Code:     WarningMutatingNotOffered,
				Field:    "mutating",
				Value:    name,
				Message:  fmt.Sprintf("mutating tool %s is not in the catalog", name),
				Severity: SeverityInfo,
			})
		}
	}
	return out
}
