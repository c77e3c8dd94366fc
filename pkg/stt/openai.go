package stt

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/openai/openai-go/v3"

	"jarvis/pkg/audioconv"
)

// OpenAI transcribes through the hosted audio API.
type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(client openai.Client, model string) *OpenAI {
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	return &OpenAI{client: client, model: model}
}

func (o *OpenAI) Transcribe(ctx context.Context, path string) ([]string, error) {
	if d, err := audioconv.Duration(path); err == nil && d == 0 {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	resp, err := o.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}
	return strings.Fields(resp.Text), nil
}
