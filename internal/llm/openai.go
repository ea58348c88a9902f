package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// openAIBackend serves any OpenAI-compatible chat endpoint via langchaingo.
type openAIBackend struct {
	llm *openai.LLM
}

func newOpenAIBackend(cfg LLMConfig) (*openAIBackend, error) {
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	} else {
		// local OpenAI-compatible servers ignore the token but the client requires one
		opts = append(opts, openai.WithToken("unused"))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Endpoint))
	}
	l, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return &openAIBackend{llm: l}, nil
}

func (b *openAIBackend) complete(ctx context.Context, c completion) (string, error) {
	var messages []llms.MessageContent
	if c.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, c.SystemPrompt))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, c.UserPrompt))

	opts := []llms.CallOption{
		llms.WithModel(c.Model),
		llms.WithTemperature(c.Temperature),
	}
	if c.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.MaxTokens))
	}

	resp, err := b.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	choice := resp.Choices[0]
	if choice.StopReason == "content_filter" {
		return "", fmt.Errorf("%w: %s", ErrSafetyBlocked, choice.StopReason)
	}
	return choice.Content, nil
}

// ping issues a one-token completion; langchaingo has no model listing call.
func (b *openAIBackend) ping(ctx context.Context) bool {
	_, err := b.llm.Call(ctx, "ping", llms.WithMaxTokens(1))
	return err == nil
}
