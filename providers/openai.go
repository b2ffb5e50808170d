package providers

import (
	"context"
	"errors"
	"regexp"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/martinemde/kodit/unifiedllm"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1/"

// OpenRouter is the default preset. Its model list comes from the
// OpenAI-compatible /models endpoint.
func OpenRouter() Preset {
	return &preset{
		id:            "openrouter",
		label:         "OpenRouter",
		hint:          "OpenRouter API key must start with sk-or-v1-",
		keyPattern:    regexp.MustCompile(`^sk-or-v1-`),
		gollmProvider: "openrouter",
		baseURL:       openRouterBaseURL,
		fetch:         fetchOpenAICompatible,
	}
}

func OpenAI() Preset {
	return &preset{
		id:            "openai",
		label:         "OpenAI",
		hint:          "OpenAI API key must start with sk-",
		keyPattern:    regexp.MustCompile(`^sk-`),
		gollmProvider: "openai",
		fetch:         fetchOpenAICompatible,
	}
}

func fetchOpenAICompatible(ctx context.Context, p *preset, key string) ([]Model, error) {
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if p.baseURL != "" {
		opts = append(opts, option.WithBaseURL(p.baseURL))
	}
	client := openai.NewClient(opts...)

	page, err := client.Models.List(ctx)
	if err != nil {
		return nil, classifyOpenAIError(p.id, err)
	}
	models := make([]Model, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, Model{ID: m.ID, Name: m.ID})
	}
	return models, nil
}

func classifyOpenAIError(provider string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return unifiedllm.ErrorFromStatusCode(apiErr.StatusCode, apiErr.Message, provider, err)
	}
	return err
}
