package llmprovider

import "fmt"

// ProviderID represents a unique provider identifier.
type ProviderID string

// Known provider identifiers
const (
	// ProviderAnthropic is Anthropic's Claude API
	ProviderAnthropic ProviderID = "anthropic"

	// ProviderLorem is the offline mock provider
	ProviderLorem ProviderID = "lorem"
)

// String returns the string representation of the provider ID
func (p ProviderID) String() string {
	return string(p)
}

// IsValid returns true if the provider ID is a known provider
func (p ProviderID) IsValid() bool {
	switch p {
	case ProviderAnthropic, ProviderLorem:
		return true
	default:
		return false
	}
}

// ParseProviderID converts a configuration value into a ProviderID.
func ParseProviderID(s string) (ProviderID, error) {
	id := ProviderID(s)
	if !id.IsValid() {
		return "", &ValidationError{
			Field:  "provider",
			Value:  s,
			Reason: fmt.Sprintf("unknown provider (valid: %s, %s)", ProviderAnthropic, ProviderLorem),
			Err:    ErrInvalidRequest,
		}
	}
	return id, nil
}
