// Package llm wraps the generative-text providers behind a single Reply call.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/openai/openai-go/v3"
)

var ErrEmptyReply = errors.New("empty reply")

type Replier interface {
	Reply(ctx context.Context, prompt string) (string, error)
}

type Options struct {
	Provider     string // "gemini" or "openai"
	Model        string
	GoogleAPIKey string
	OpenAIAPIKey string
	HTTPClient   *http.Client
	BaseURL      string // override for tests and gateways

	// OpenAIClient, when set, is shared instead of building a second client
	// from the key, proxy and base URL above.
	OpenAIClient *openai.Client
}

// New returns the replier for opt.Provider.
func New(ctx context.Context, opt Options) (Replier, error) {
	switch opt.Provider {
	case "", "gemini":
		if opt.GoogleAPIKey == "" {
			return nil, errors.New("GOOGLE_API_KEY not set")
		}
		return NewGemini(ctx, opt)
	case "openai":
		if opt.OpenAIClient != nil {
			return NewOpenAIFromClient(*opt.OpenAIClient, opt.Model), nil
		}
		if opt.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY not set")
		}
		return NewOpenAI(opt), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", opt.Provider)
	}
}
