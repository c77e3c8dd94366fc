package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, opt Options) (*Gemini, error) {
	cfg := &genai.ClientConfig{
		APIKey:     opt.GoogleAPIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opt.HTTPClient,
	}
	if opt.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opt.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	model := opt.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Reply(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", ErrEmptyReply
	}
	return out, nil
}
