package providers

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"

	"google.golang.org/genai"
)

func Gemini() Preset {
	return &preset{
		id:            "gemini",
		label:         "Gemini",
		hint:          "Gemini API key should start with AIza...",
		keyPattern:    regexp.MustCompile(`^AIza[0-9A-Za-z_-]{20,}$`),
		gollmProvider: "google-openai",
		fetch:         fetchGemini,
	}
}

func fetchGemini(ctx context.Context, p *preset, key string) ([]Model, error) {
	cfg := &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI}
	if p.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var all []*genai.Model
	page, err := client.Models.List(ctx, &genai.ListModelsConfig{})
	for {
		if errors.Is(err, genai.ErrPageDone) {
			break
		}
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.NextPageToken == "" {
			break
		}
		page, err = page.Next(ctx)
	}
	return geminiChatModels(all), nil
}

// geminiChatModels keeps models that support generateContent and strips
// the "models/" resource prefix from their ids.
func geminiChatModels(models []*genai.Model) []Model {
	var out []Model
	for _, m := range models {
		if m == nil || !slices.Contains(m.SupportedActions, "generateContent") {
			continue
		}
		id := strings.TrimPrefix(m.Name, "models/")
		name := m.DisplayName
		if name == "" {
			name = id
		}
		out = append(out, Model{ID: id, Name: name})
	}
	return out
}
