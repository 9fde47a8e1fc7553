package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 8192

// AnthropicClient talks to the Claude Messages API.
type AnthropicClient struct {
	model string
}

// NewAnthropicClient creates a client bound to one model name.
func NewAnthropicClient(model string) *AnthropicClient {
	return &AnthropicClient{model: model}
}

func (c *AnthropicClient) params(prompt string) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
}

// Complete runs a blocking completion and concatenates the text blocks.
func (c *AnthropicClient) Complete(ctx context.Context, apiKey, prompt string) (string, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	message, err := client.Messages.New(ctx, c.params(prompt))
	if err != nil {
		return "", fmt.Errorf("anthropic: messages: %w", err)
	}
	if len(message.Content) == 0 {
		return "", fmt.Errorf("anthropic: empty response from model")
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("anthropic: no text content in response")
	}
	return text, nil
}

// CompleteStream starts a streaming completion, forwarding text deltas
// in arrival order.
func (c *AnthropicClient) CompleteStream(ctx context.Context, apiKey, prompt string) (Stream, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	sse := client.Messages.NewStreaming(ctx, c.params(prompt))

	stream := newChanStream()
	go func() {
		for sse.Next() {
			event := sse.Current()
			switch eventVariant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := eventVariant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if delta.Text != "" {
						if !stream.send(ctx, delta.Text) {
							return
						}
					}
				}
			}
		}
		if err := sse.Err(); err != nil {
			stream.fail(fmt.Errorf("anthropic: stream: %w", err))
			return
		}
		stream.finish()
	}()
	return stream, nil
}
