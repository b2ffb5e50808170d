package providers

import (
	"context"
	"errors"
	"regexp"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/martinemde/kodit/unifiedllm"
)

func Anthropic() Preset {
	return &preset{
		id:            "anthropic",
		label:         "Anthropic",
		hint:          "Anthropic API key must start with sk-ant-",
		keyPattern:    regexp.MustCompile(`^sk-ant-`),
		gollmProvider: "anthropic",
		fetch:         fetchAnthropic,
	}
}

func fetchAnthropic(ctx context.Context, p *preset, key string) ([]Model, error) {
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if p.baseURL != "" {
		opts = append(opts, option.WithBaseURL(p.baseURL))
	}
	client := anthropic.NewClient(opts...)

	page, err := client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, unifiedllm.ErrorFromStatusCode(apiErr.StatusCode, apiErr.Error(), p.id, err)
		}
		return nil, err
	}
	models := make([]Model, 0, len(page.Data))
	for _, m := range page.Data {
		name := m.DisplayName
		if name == "" {
			name = m.ID
		}
		models = append(models, Model{ID: m.ID, Name: name})
	}
	return models, nil
}
