package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(opt Options) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(opt.OpenAIAPIKey),
		option.WithMaxRetries(0),
	}
	if opt.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(opt.HTTPClient))
	}
	if opt.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(opt.BaseURL))
	}
	return NewOpenAIFromClient(openai.NewClient(opts...), opt.Model)
}

// NewOpenAIFromClient shares an already configured client.
func NewOpenAIFromClient(client openai.Client, model string) *OpenAI {
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	return &OpenAI{client: client, model: model}
}

// Reply sends the whole prompt as a single user message; the persona is part
// of the prompt.
func (o *OpenAI) Reply(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(o.model),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyReply
	}
	return content, nil
}
