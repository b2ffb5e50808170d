// Package providers describes the model providers kodit can talk to: how
// their API keys look, how to list their models, and how to build a model
// adapter for a chosen model.
package providers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/martinemde/kodit/unifiedllm"
)

// DefaultProviderID is used when no provider is configured.
const DefaultProviderID = "openrouter"

// Model is one selectable model of a provider.
type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Preset is the provider-specific behavior behind a provider id.
type Preset interface {
	ID() string
	Label() string
	// APIKeyHint is shown when a key does not look right.
	APIKeyHint() string
	ValidateAPIKey(key string) error
	// FetchModels lists the provider's models sorted by name.
	FetchModels(ctx context.Context, key string) ([]Model, error)
	CreateModel(key, modelID string) (unifiedllm.ProviderAdapter, error)
}

type modelFetcher func(ctx context.Context, p *preset, key string) ([]Model, error)

type preset struct {
	id            string
	label         string
	hint          string
	keyPattern    *regexp.Regexp
	gollmProvider string
	baseURL       string
	fetch         modelFetcher
}

func (p *preset) ID() string         { return p.id }
func (p *preset) Label() string      { return p.label }
func (p *preset) APIKeyHint() string { return p.hint }

func (p *preset) ValidateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("%s API key is required", p.label)
	}
	if !p.keyPattern.MatchString(key) {
		return errors.New(p.hint)
	}
	return nil
}

func (p *preset) FetchModels(ctx context.Context, key string) ([]Model, error) {
	if err := p.ValidateAPIKey(key); err != nil {
		return nil, err
	}
	models, err := p.fetch(ctx, p, key)
	if err != nil {
		return nil, fmt.Errorf("list %s models: %w", p.label, err)
	}
	sortModels(models)
	return models, nil
}

func (p *preset) CreateModel(key, modelID string) (unifiedllm.ProviderAdapter, error) {
	if err := p.ValidateAPIKey(key); err != nil {
		return nil, err
	}
	if modelID == "" {
		return nil, fmt.Errorf("a %s model id is required", p.label)
	}
	adapter, err := unifiedllm.NewGollmAdapter(p.gollmProvider, key, modelID)
	if err != nil {
		return nil, err
	}
	return adapter, nil
}

func sortModels(models []Model) {
	sort.SliceStable(models, func(i, j int) bool {
		if models[i].Name != models[j].Name {
			return models[i].Name < models[j].Name
		}
		return models[i].ID < models[j].ID
	})
}

// Registry looks presets up by id.
type Registry struct {
	presets map[string]Preset
	order   []string
}

// NewRegistry returns a registry holding presets in the given order.
func NewRegistry(presets ...Preset) *Registry {
	r := &Registry{presets: make(map[string]Preset)}
	for _, p := range presets {
		if _, dup := r.presets[p.ID()]; !dup {
			r.order = append(r.order, p.ID())
		}
		r.presets[p.ID()] = p
	}
	return r
}

// Get returns the preset for id, or the default preset when id is empty.
func (r *Registry) Get(id string) (Preset, error) {
	if id == "" {
		id = DefaultProviderID
	}
	p, ok := r.presets[id]
	if !ok {
		return nil, &unifiedllm.ConfigurationError{SDKError: unifiedllm.SDKError{
			Message: fmt.Sprintf("unknown provider %q", id),
		}}
	}
	return p, nil
}

// All returns every preset in registration order.
func (r *Registry) All() []Preset {
	out := make([]Preset, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.presets[id])
	}
	return out
}

// Default returns a registry of the built-in presets.
func Default() *Registry {
	return NewRegistry(OpenRouter(), OpenAI(), Gemini(), Anthropic())
}

// IDs lists the built-in provider ids.
func IDs() []string {
	return []string{"openrouter", "openai", "gemini", "anthropic"}
}
