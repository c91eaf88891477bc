// Package llmhealth probes the configured model endpoint with a tiny prompt
package llmhealth

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/gliderlab/relaybot/pkg/llm"
)

// Config holds probe configuration
type Config struct {
	TestPrompt string        // Test prompt (default "hello")
	Timeout    time.Duration // Request timeout (default 30s)
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		TestPrompt: "hello",
		Timeout:    30 * time.Second,
	}
}

// LoadConfigFromEnv loads probe config from environment variables
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("RELAYBOT_HEALTH_PROMPT"); v != "" {
		cfg.TestPrompt = v
	}
	if v := os.Getenv("RELAYBOT_HEALTH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	return cfg
}

// Status is the outcome of one probe
type Status struct {
	Healthy   bool
	Latency   time.Duration
	Result    string // llm.Kind of the probe result
	Error     string
	CheckedAt time.Time
}

// probeConfig keeps the probe cheap regardless of the primary generation settings
var probeConfig = llm.GenerationConfig{Temperature: 0, MaxOutputTokens: 10}

// Check sends cfg.TestPrompt once. A Blocked result still counts as healthy:
// the endpoint answered.
func Check(ctx context.Context, client llm.Client, cfg Config, logger *zap.Logger) Status {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TestPrompt == "" {
		cfg.TestPrompt = DefaultConfig().TestPrompt
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	start := time.Now()
	res := client.Generate(ctx, llm.Request{Prompt: cfg.TestPrompt, Config: probeConfig})
	st := Status{Latency: time.Since(start), Result: llm.Kind(res), CheckedAt: start}

	switch v := res.(type) {
	case llm.Text, llm.Blocked:
		st.Healthy = true
	case llm.APIError:
		st.Error = v.Detail
	default:
		st.Error = llm.UserMessage(res)
	}

	if st.Healthy {
		logger.Info("llm healthy", zap.String("result", st.Result), zap.Duration("latency", st.Latency))
	} else {
		logger.Warn("llm unhealthy", zap.String("result", st.Result), zap.Duration("latency", st.Latency), zap.String("error", st.Error))
	}
	return st
}
