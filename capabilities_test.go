package llmprovider

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedCapabilities_Load(t *testing.T) {
	r := NewCapabilityRegistry()
	if err := r.load(modelCapabilitiesYAML); err != nil {
		t.Fatalf("embedded capabilities do not parse: %v", err)
	}
	for _, provider := range []ProviderID{ProviderAnthropic, ProviderLorem} {
		if _, err := r.GetProviderCapabilities(provider.String()); err != nil {
			t.Errorf("missing provider %s: %v", provider, err)
		}
	}
}

func TestConvertEffortToBudget(t *testing.T) {
	registry := GetCapabilityRegistry()

	tests := []struct {
		name     string
		provider string
		model    string
		effort   string
		expected int
		wantErr  bool
	}{
		{"haiku low", "anthropic", "claude-haiku-4-5", "low", 2000, false},
		{"dated haiku resolves to family", "anthropic", "claude-haiku-4-5-20251001", "high", 12000, false},
		{"lorem medium", "lorem", "lorem-fast", "medium", 500, false},
		{"unknown model falls back", "anthropic", "claude-future-9", "medium", 5000, false},
		{"model without thinking table falls back", "lorem", "lorem-nosig", "low", 2000, false},
		{"unknown effort", "anthropic", "claude-haiku-4-5", "extreme", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			budget, err := registry.ConvertEffortToBudget(tt.provider, tt.model, tt.effort)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if budget != tt.expected {
				t.Errorf("expected budget %d, got %d", tt.expected, budget)
			}
		})
	}
}

func TestClampThinkingBudget(t *testing.T) {
	registry := GetCapabilityRegistry()

	tests := []struct {
		name      string
		model     string
		budget    int
		maxTokens int
		expected  int
	}{
		{"within range", "claude-haiku-4-5", 5000, 16000, 5000},
		{"raised to minimum", "claude-haiku-4-5", 500, 16000, 1024},
		{"lowered to maximum", "claude-opus-4-1", 30000, 64000, 16000},
		{"kept below max tokens", "claude-haiku-4-5", 12000, 8000, 7999},
		{"unknown model only respects max tokens", "claude-future-9", 50, 4096, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := registry.ClampThinkingBudget("anthropic", tt.model, tt.budget, tt.maxTokens)
			if got != tt.expected {
				t.Errorf("ClampThinkingBudget() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestSupportsToolsAndThinking(t *testing.T) {
	registry := GetCapabilityRegistry()

	if !registry.SupportsTools("anthropic", "claude-sonnet-4-5") {
		t.Error("sonnet should support tools")
	}
	if registry.SupportsTools("lorem", "lorem-chat") {
		t.Error("lorem-chat declares no tool support")
	}
	if registry.SupportsThinking("anthropic", "claude-3-5-haiku") {
		t.Error("claude-3-5-haiku declares no thinking support")
	}
	if registry.SupportsModel("anthropic", "gpt-4") {
		t.Error("unexpected model match")
	}
}

func TestLoadCapabilitiesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caps.yaml")
	doc := `version: "9.9.9"
providers:
  lorem:
    models:
      lorem-custom:
        features: {tools: true}
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewCapabilityRegistry()
	if err := r.LoadCapabilitiesFromFile(path); err != nil {
		t.Fatalf("LoadCapabilitiesFromFile() error = %v", err)
	}
	if !r.SupportsTools("lorem", "lorem-custom") {
		t.Error("expected custom model to be registered")
	}

	if err := r.LoadCapabilitiesFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRegisterProviderCapabilities(t *testing.T) {
	r := NewCapabilityRegistry()
	r.RegisterProviderCapabilities("lorem", &ProviderCapabilities{
		Models: map[string]ModelCapability{"lorem-x": {Features: ModelFeatures{Thinking: true}}},
	})
	if !r.SupportsThinking("lorem", "lorem-x") {
		t.Error("expected registered model to support thinking")
	}
}
