package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient talks to the Gemini API through google.golang.org/genai.
type GeminiClient struct {
	model string
}

// NewGeminiClient creates a client bound to one model name.
func NewGeminiClient(model string) *GeminiClient {
	return &GeminiClient{model: model}
}

func (c *GeminiClient) newSDKClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return client, nil
}

// Complete runs a blocking completion.
func (c *GeminiClient) Complete(ctx context.Context, apiKey, prompt string) (string, error) {
	client, err := c.newSDKClient(ctx, apiKey)
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty response from model")
	}
	return text, nil
}

// CompleteStream starts a streaming completion. Chunks are forwarded in
// arrival order; a mid-stream provider error terminates the stream with
// that error.
func (c *GeminiClient) CompleteStream(ctx context.Context, apiKey, prompt string) (Stream, error) {
	client, err := c.newSDKClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	stream := newChanStream()
	go func() {
		for resp, iterErr := range client.Models.GenerateContentStream(ctx, c.model, genai.Text(prompt), nil) {
			if iterErr != nil {
				stream.fail(fmt.Errorf("gemini: stream: %w", iterErr))
				return
			}
			if text := resp.Text(); text != "" {
				if !stream.send(ctx, text) {
					return
				}
			}
		}
		stream.finish()
	}()
	return stream, nil
}
