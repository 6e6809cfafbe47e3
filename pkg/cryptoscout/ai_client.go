package cryptoscout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

const (
	defaultAIBaseURL = "https://api.openai.com/v1"

	// aiTemperature keeps model output near-deterministic so shortlists and
	// chat replies are reproducible for the same inputs.
	aiTemperature = 0.2
)

// AIConfig describes the chat-completion upstream.
type AIConfig struct {
	// APIKey is required.
	APIKey string
	// Model is the model identifier; models starting with "gemini" use the
	// native Gemini backend instead of the OpenAI-compatible endpoint.
	Model string
	// BaseURL overrides the OpenAI-compatible endpoint base.
	BaseURL string
}

// completionClient issues one chat-completion round trip.
type completionClient interface {
	Complete(ctx context.Context, system string, msgs []ChatMessage) (string, error)
}

// aiClient talks to an OpenAI-compatible chat-completion API, or natively
// to Gemini when the configured model calls for it.
type aiClient struct {
	cfg    AIConfig
	logger *slog.Logger
	openai openai.Client
}

func newAIClient(cfg AIConfig, logger *slog.Logger) (*aiClient, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.APIKey == "" {
		return nil, errors.New("ai api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("ai model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAIBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &aiClient{
		cfg:    cfg,
		logger: logger,
		openai: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
		),
	}, nil
}

// Complete implements completionClient.
func (a *aiClient) Complete(ctx context.Context, system string, msgs []ChatMessage) (string, error) {
	if isGeminiModel(a.cfg.Model) {
		return a.completeGemini(ctx, system, msgs)
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(a.cfg.Model),
		Temperature: openai.Float(aiTemperature),
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1),
	}
	params.Messages = append(params.Messages, openai.SystemMessage(system))
	for _, m := range msgs {
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
			continue
		}
		params.Messages = append(params.Messages, openai.UserMessage(m.Content))
	}

	completion, err := a.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func (a *aiClient) completeGemini(ctx context.Context, system string, msgs []ChatMessage) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  a.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("create gemini client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
		Temperature: genai.Ptr(float32(aiTemperature)),
	}
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	response, err := client.Models.GenerateContent(ctx, a.cfg.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := strings.TrimSpace(response.Text())
	if text == "" {
		return "", errors.New("gemini response content is empty")
	}
	return text, nil
}

func isGeminiModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gemini")
}
