package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// geminiBackend calls Google's Gemini models through the genai SDK.
type geminiBackend struct {
	client *genai.Client
}

func newGeminiBackend(ctx context.Context, cfg LLMConfig) (*geminiBackend, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &geminiBackend{client: client}, nil
}

// geminiSafety blocks medium-and-above harm in every category.
var geminiSafety = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
}

func (b *geminiBackend) complete(ctx context.Context, c completion) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.Temperature)),
		MaxOutputTokens: int32(c.MaxTokens),
		SafetySettings:  geminiSafety,
	}
	if c.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(c.SystemPrompt, genai.RoleUser)
	}
	if c.JSON {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := b.client.Models.GenerateContent(ctx, c.Model, genai.Text(c.UserPrompt), config)
	if err != nil {
		return "", err
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt %s", ErrSafetyBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: candidate finished with %s", ErrSafetyBlocked, resp.Candidates[0].FinishReason)
	}
	return resp.Text(), nil
}

func (b *geminiBackend) ping(ctx context.Context) bool {
	page, err := b.client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1})
	return err == nil && len(page.Items) > 0
}
