// Package openai provides an OpenAI-compatible chat completion backend
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/gliderlab/relaybot/pkg/llm"
)

// Config selects the model endpoint
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // any OpenAI-compatible endpoint; empty means api.openai.com
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Provider implements llm.Client for OpenAI-compatible APIs
type Provider struct {
	client chatCompleter
	model  string
	logger *zap.Logger
}

// New creates an OpenAI-compatible client
func New(cfg Config, logger *zap.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	logger.Info("openai client ready", zap.String("model", cfg.Model), zap.String("base_url", cc.BaseURL))
	return &Provider{client: goopenai.NewClientWithConfig(cc), model: cfg.Model, logger: logger.Named("openai")}, nil
}

// Name returns the provider name
func (p *Provider) Name() string { return "openai" }

// Generate implements llm.Client. TopK has no OpenAI equivalent and is ignored.
func (p *Provider) Generate(ctx context.Context, req llm.Request) llm.Result {
	creq := goopenai.ChatCompletionRequest{
		Model: p.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: req.Config.Temperature,
		MaxTokens:   int(req.Config.MaxOutputTokens),
	}
	if req.Config.TopP != nil {
		creq.TopP = *req.Config.TopP
	}

	resp, err := p.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		res := classifyError(err)
		p.logger.Warn("generate failed", zap.String("kind", llm.Kind(res)), zap.Error(err))
		return res
	}
	return classifyResponse(resp)
}

func classifyResponse(resp goopenai.ChatCompletionResponse) llm.Result {
	if len(resp.Choices) == 0 {
		return llm.Blocked{Reason: llm.UnknownReason}
	}
	choice := resp.Choices[0]
	if choice.FinishReason == goopenai.FinishReasonContentFilter && choice.Message.Content == "" {
		return llm.Blocked{Reason: string(goopenai.FinishReasonContentFilter)}
	}
	return llm.Text{Content: choice.Message.Content}
}

func classifyError(err error) llm.Result {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.Type == "insufficient_quota" {
			return llm.APIError{Kind: llm.ErrorRateLimited, Detail: apiErr.Error()}
		}
		return llm.APIError{Kind: llm.ErrorProvider, Detail: apiErr.Error()}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return llm.APIError{Kind: llm.ErrorRateLimited, Detail: reqErr.Error()}
		}
		return llm.APIError{Kind: llm.ErrorProvider, Detail: reqErr.Error()}
	}
	return llm.APIError{Kind: llm.ErrorUnexpected, Detail: err.Error()}
}
