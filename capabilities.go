package llmprovider

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/capabilities/models.yaml
var modelCapabilitiesYAML []byte

// Capabilities are MODEL METADATA used to shape requests (thinking budgets)
// and to warn about likely misconfiguration (tools on a model without tool
// support). They never reject a request: provider APIs are the source of truth.
//
// Embedded capabilities can be overridden with LoadCapabilitiesFromFile or
// RegisterProviderCapabilities.

// CapabilitiesFile is the on-disk layout of a capabilities YAML document.
type CapabilitiesFile struct {
	Version     string                           `yaml:"version"`
	LastUpdated string                           `yaml:"last_updated"`
	Providers   map[string]*ProviderCapabilities `yaml:"providers"`
}

// ProviderCapabilities represents the capability configuration for a provider
type ProviderCapabilities struct {
	Models      map[string]ModelCapability `yaml:"models"`
	Constraints ProviderConstraints        `yaml:"constraints"`
}

// ModelCapability represents the capabilities of a specific model
type ModelCapability struct {
	ContextWindow   int                `yaml:"context_window"`
	MaxOutputTokens int                `yaml:"max_output_tokens"`
	Features        ModelFeatures      `yaml:"features"`
	Thinking        ThinkingCapability `yaml:"thinking"`
	Pricing         PricingInfo        `yaml:"pricing"`
}

// ModelFeatures indicates which features a model supports
type ModelFeatures struct {
	Vision    bool `yaml:"vision"`
	Tools     bool `yaml:"tools"`
	Thinking  bool `yaml:"thinking"`
	Streaming bool `yaml:"streaming"`
}

// ThinkingCapability defines thinking/reasoning constraints
type ThinkingCapability struct {
	MinBudget      int            `yaml:"min_budget"`
	MaxBudget      int            `yaml:"max_budget"`
	EffortToBudget map[string]int `yaml:"effort_to_budget"` // "low" -> 2000, etc.
}

// PricingInfo contains model pricing information
type PricingInfo struct {
	InputPer1M  float64 `yaml:"input_per_1m"`
	OutputPer1M float64 `yaml:"output_per_1m"`
}

// ProviderConstraints defines provider-wide parameter limits
type ProviderConstraints struct {
	TemperatureMin float64 `yaml:"temperature_min"`
	TemperatureMax float64 `yaml:"temperature_max"`
	TopPMin        float64 `yaml:"top_p_min"`
	TopPMax        float64 `yaml:"top_p_max"`
	TopKMin        int     `yaml:"top_k_min"`
	TopKMax        int     `yaml:"top_k_max"`
}

// CapabilityRegistry manages provider capabilities
type CapabilityRegistry struct {
	capabilities map[string]*ProviderCapabilities
	mu           sync.RWMutex
}

var (
	globalRegistry     *CapabilityRegistry
	globalRegistryOnce sync.Once
)

// GetCapabilityRegistry returns the global capability registry (singleton)
// seeded from the embedded YAML.
func GetCapabilityRegistry() *CapabilityRegistry {
	globalRegistryOnce.Do(func() {
		globalRegistry = NewCapabilityRegistry()
		// The embedded document is validated by tests; a parse failure leaves
		// the registry empty and callers fall back to defaults.
		_ = globalRegistry.load(modelCapabilitiesYAML)
	})
	return globalRegistry
}

// NewCapabilityRegistry returns an empty registry.
func NewCapabilityRegistry() *CapabilityRegistry {
	return &CapabilityRegistry{capabilities: make(map[string]*ProviderCapabilities)}
}

func (r *CapabilityRegistry) load(data []byte) error {
	var file CapabilitiesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal capabilities: %w", err)
	}
	if len(file.Providers) == 0 {
		return fmt.Errorf("capabilities document declares no providers")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, caps := range file.Providers {
		r.capabilities[name] = caps
	}
	return nil
}

// GetProviderCapabilities returns capabilities for a provider
func (r *CapabilityRegistry) GetProviderCapabilities(provider string) (*ProviderCapabilities, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps, ok := r.capabilities[provider]
	if !ok {
		return nil, fmt.Errorf("no capabilities found for provider: %s", provider)
	}
	return caps, nil
}

// GetModelCapability returns capabilities for a specific model. Dated model
// ids ("claude-haiku-4-5-20251001") resolve to their undated family entry.
func (r *CapabilityRegistry) GetModelCapability(provider, model string) (*ModelCapability, error) {
	providerCaps, err := r.GetProviderCapabilities(provider)
	if err != nil {
		return nil, err
	}

	if modelCap, ok := providerCaps.Models[model]; ok {
		return &modelCap, nil
	}
	for name, modelCap := range providerCaps.Models {
		if strings.HasPrefix(model, name+"-") {
			return &modelCap, nil
		}
	}
	return nil, fmt.Errorf("model %s not found for provider %s", model, provider)
}

// SupportsModel checks if a provider supports a specific model
func (r *CapabilityRegistry) SupportsModel(provider, model string) bool {
	_, err := r.GetModelCapability(provider, model)
	return err == nil
}

// SupportsTools checks if a model supports tools
func (r *CapabilityRegistry) SupportsTools(provider, model string) bool {
	modelCap, err := r.GetModelCapability(provider, model)
	if err != nil {
		return false
	}
	return modelCap.Features.Tools
}

// SupportsThinking checks if a model supports extended thinking
func (r *CapabilityRegistry) SupportsThinking(provider, model string) bool {
	modelCap, err := r.GetModelCapability(provider, model)
	if err != nil {
		return false
	}
	return modelCap.Features.Thinking
}

// ConvertEffortToBudget converts effort level to token budget.
// Falls back to default budgets if the model or level is not in the registry.
func (r *CapabilityRegistry) ConvertEffortToBudget(provider, model, effort string) (int, error) {
	fallback, known := defaultThinkingBudgets[effort]
	if !known {
		return 0, fmt.Errorf("unknown effort level: %s (valid: low, medium, high)", effort)
	}

	modelCap, err := r.GetModelCapability(provider, model)
	if err != nil {
		return fallback, nil
	}
	if budget, ok := modelCap.Thinking.EffortToBudget[effort]; ok {
		return budget, nil
	}
	return fallback, nil
}

// ClampThinkingBudget bounds a budget to the model's declared range and keeps
// it below maxTokens, which the API requires.
func (r *CapabilityRegistry) ClampThinkingBudget(provider, model string, budget, maxTokens int) int {
	if modelCap, err := r.GetModelCapability(provider, model); err == nil {
		if modelCap.Thinking.MinBudget > 0 && budget < modelCap.Thinking.MinBudget {
			budget = modelCap.Thinking.MinBudget
		}
		if modelCap.Thinking.MaxBudget > 0 && budget > modelCap.Thinking.MaxBudget {
			budget = modelCap.Thinking.MaxBudget
		}
	}
	if maxTokens > 0 && budget >= maxTokens {
		budget = maxTokens - 1
	}
	return budget
}

// LoadCapabilitiesFromFile loads provider capabilities from a YAML file.
// Providers declared in the file replace the registered ones.
func (r *CapabilityRegistry) LoadCapabilitiesFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read capabilities file: %w", err)
	}
	return r.load(data)
}

// RegisterProviderCapabilities programmatically registers provider capabilities.
func (r *CapabilityRegistry) RegisterProviderCapabilities(provider string, caps *ProviderCapabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[provider] = caps
}

// LoadCapabilitiesFromFile is a convenience function that calls the global registry's LoadCapabilitiesFromFile.
func LoadCapabilitiesFromFile(path string) error {
	return GetCapabilityRegistry().LoadCapabilitiesFromFile(path)
}

// RegisterProviderCapabilities is a convenience function that calls the global registry's RegisterProviderCapabilities.
func RegisterProviderCapabilities(provider string, caps *ProviderCapabilities) {
	GetCapabilityRegistry().RegisterProviderCapabilities(provider, caps)
}
