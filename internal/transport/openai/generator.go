package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/groundkit/groundkit/internal/domain"
	"github.com/groundkit/groundkit/internal/metrics"
)

// Generator is a text-generation provider using the OpenAI-compatible
// chat completion API.
type Generator struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// GeneratorConfig holds the generation provider settings.
type GeneratorConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewGenerator creates an OpenAI-compatible generation provider.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Generator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// Generate produces text from a prompt with the given sampling parameters.
func (g *Generator) Generate(ctx context.Context, prompt string, p domain.GenParams) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:      p.Temperature,
		TopP:             p.TopP,
		FrequencyPenalty: p.RepeatPenalty,
		MaxTokens:        p.MaxTokens,
	}

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return "", parseAPIError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return "", fmt.Errorf("empty generation response: %w", domain.ErrGenerationFailed)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.model, "success").Inc()
	metrics.GenerationDuration.WithLabelValues(g.model).Observe(duration.Seconds())

	g.logger.Debug("Generation completed",
		zap.String("model", g.model),
		zap.Duration("duration", duration),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability by listing models.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("generation provider unreachable: %w", parseAPIError(err))
	}
	return nil
}
