package providers

import (
	"fmt"

	"github.com/voxbridge/voicecore/internal/credentials"
)

// Registry manages available LLM providers, keyed by provider ID.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(provider Provider) {
	r.providers[provider.ID()] = provider
}

// Get retrieves a provider by ID.
func (r *Registry) Get(id string) (Provider, bool) {
	provider, exists := r.providers[id]
	return provider, exists
}

// List returns all registered provider IDs.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	return ids
}

// Close closes all registered providers and cleans up their resources.
func (r *Registry) Close() error {
	for _, provider := range r.providers {
		if err := provider.Close(); err != nil {
			return err
		}
	}
	return nil
}

// ProviderSpec holds the configuration needed to create a provider instance.
type ProviderSpec struct {
	ID         string
	Type       string // "openai", "anthropic", "mock"
	Model      string
	BaseURL    string
	Credential credentials.Credential
}

// CreateProviderFromSpec creates a provider implementation from a spec.
// Returns an error if the provider type is unsupported.
func CreateProviderFromSpec(spec ProviderSpec) (Provider, error) {
	switch spec.Type {
	case "openai":
		baseURL := spec.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return NewOpenAIProvider(spec.ID, spec.Model, baseURL, spec.Credential), nil
	case "anthropic":
		baseURL := spec.BaseURL
		if baseURL == "" {
			baseURL = "https://api.anthropic.com"
		}
		return NewAnthropicProvider(spec.ID, spec.Model, baseURL, spec.Credential), nil
	case "mock":
		return NewMockProvider(spec.ID, spec.Model), nil
	default:
		return nil, &UnsupportedProviderError{ProviderType: spec.Type}
	}
}

// UnsupportedProviderError is returned when a provider type is not recognized.
type UnsupportedProviderError struct {
	ProviderType string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported LLM provider type: %s", e.ProviderType)
}
