// Package google provides the Google Gemini backend built on google.golang.org/genai
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/gliderlab/relaybot/pkg/llm"
)

// Config selects the model endpoint
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional override of the Gemini API endpoint
}

// generator is the part of *genai.Models the provider uses
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider implements llm.Client for Google Gemini
type Provider struct {
	models generator
	model  string
	logger *zap.Logger
}

// New creates a Gemini client
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create client failed: %w", err)
	}

	logger.Info("gemini client ready", zap.String("model", cfg.Model))
	return &Provider{models: client.Models, model: cfg.Model, logger: logger.Named("gemini")}, nil
}

// Name returns the provider name
func (p *Provider) Name() string { return "google" }

// Generate implements llm.Client
func (p *Provider) Generate(ctx context.Context, req llm.Request) llm.Result {
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	resp, err := p.models.GenerateContent(ctx, p.model, contents, buildConfig(req.Config))
	if err != nil {
		res := classifyError(err)
		p.logger.Warn("generate failed", zap.String("kind", llm.Kind(res)), zap.Error(err))
		return res
	}
	res := classifyResponse(resp)
	if b, ok := res.(llm.Blocked); ok {
		p.logger.Warn("response blocked or empty", zap.String("reason", b.Reason))
	}
	return res
}

func buildConfig(c llm.GenerationConfig) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](c.Temperature),
		MaxOutputTokens: c.MaxOutputTokens,
	}
	if c.TopP != nil {
		cfg.TopP = genai.Ptr[float32](*c.TopP)
	}
	if c.TopK != nil {
		cfg.TopK = genai.Ptr[float32](float32(*c.TopK))
	}
	return cfg
}

// classifyResponse maps a response without candidates to Blocked, using the
// prompt feedback when the provider supplied one.
func classifyResponse(resp *genai.GenerateContentResponse) llm.Result {
	if resp == nil {
		return llm.APIError{Kind: llm.ErrorUnexpected, Detail: "empty response"}
	}
	if len(resp.Candidates) == 0 {
		return llm.Blocked{Reason: feedbackReason(resp.PromptFeedback)}
	}

	cand := resp.Candidates[0]
	text := candidateText(cand)
	if text == "" && isBlockFinish(cand.FinishReason) {
		reason := string(cand.FinishReason)
		if r := formatRatings(cand.SafetyRatings); r != "" {
			reason += " " + r
		}
		return llm.Blocked{Reason: reason}
	}
	return llm.Text{Content: text}
}

func feedbackReason(pf *genai.GenerateContentResponsePromptFeedback) string {
	if pf == nil {
		return llm.UnknownReason
	}
	reason := string(pf.BlockReason)
	if reason == "" {
		reason = llm.UnknownReason
	}
	if pf.BlockReasonMessage != "" {
		reason += ": " + pf.BlockReasonMessage
	}
	if r := formatRatings(pf.SafetyRatings); r != "" {
		reason += " " + r
	}
	return reason
}

func candidateText(c *genai.Candidate) string {
	if c == nil || c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range c.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

func isBlockFinish(r genai.FinishReason) bool {
	switch string(r) {
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII", "IMAGE_SAFETY":
		return true
	}
	return false
}

// formatRatings lists only the ratings that caused a block
func formatRatings(ratings []*genai.SafetyRating) string {
	var parts []string
	for _, r := range ratings {
		if r == nil || !r.Blocked {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", r.Category, r.Probability))
	}
	if len(parts) == 0 {
		return ""
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func classifyError(err error) llm.Result {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fromAPIError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return fromAPIError(*apiErrPtr)
	}
	return llm.APIError{Kind: llm.ErrorUnexpected, Detail: err.Error()}
}

func fromAPIError(e genai.APIError) llm.Result {
	if e.Code == 429 || e.Status == "RESOURCE_EXHAUSTED" {
		return llm.APIError{Kind: llm.ErrorRateLimited, Detail: e.Error()}
	}
	return llm.APIError{Kind: llm.ErrorProvider, Detail: e.Error()}
}
