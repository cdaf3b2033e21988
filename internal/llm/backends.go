package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/genai"

	"github.com/tuannvm/devhub/internal/config"
)

// geminiBackend calls the Gemini API through the genai SDK.
type geminiBackend struct {
	client    *genai.Client
	model     string
	maxTokens int
	temp      float64
}

func newGeminiBackend(ctx context.Context, cfg config.LLMConfig) (*geminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &geminiBackend{client: client, model: model, maxTokens: cfg.MaxTokens, temp: cfg.Temperature}, nil
}

func (b *geminiBackend) generate(ctx context.Context, messages []Message) (string, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(b.temp)),
	}
	if b.maxTokens > 0 {
		genCfg.MaxOutputTokens = int32(b.maxTokens)
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("Gemini generation failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("Gemini returned an empty response")
	}
	return text, nil
}

// openAIBackend calls OpenAI or Azure OpenAI through langchaingo.
type openAIBackend struct {
	llm       llms.Model
	maxTokens int
	temp      float64
}

func newOpenAIBackend(cfg config.LLMConfig) (*openAIBackend, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.ServiceURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.ServiceURL))
	} else if cfg.Provider == "azure" {
		return nil, errors.New("azure provider requires a service URL")
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return &openAIBackend{llm: model, maxTokens: cfg.MaxTokens, temp: cfg.Temperature}, nil
}

func (b *openAIBackend) generate(ctx context.Context, messages []Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == RoleModel {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	callOpts := []llms.CallOption{llms.WithTemperature(b.temp)}
	if b.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(b.maxTokens))
	}

	resp, err := b.llm.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", fmt.Errorf("LLM generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("LLM returned no choices")
	}
	return resp.Choices[0].Content, nil
}
