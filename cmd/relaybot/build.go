package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gliderlab/relaybot/agent"
	"github.com/gliderlab/relaybot/memory"
	"github.com/gliderlab/relaybot/pkg/config"
	"github.com/gliderlab/relaybot/pkg/eventlog"
	"github.com/gliderlab/relaybot/pkg/llm"
	"github.com/gliderlab/relaybot/pkg/llm/providers/google"
	"github.com/gliderlab/relaybot/pkg/llm/providers/openai"
	"github.com/gliderlab/relaybot/pkg/logging"
	"github.com/gliderlab/relaybot/pkg/phrases"
	"github.com/gliderlab/relaybot/prompt"
	"github.com/gliderlab/relaybot/tools"
)

// app is everything a command needs, built once from the config directory.
type app struct {
	cfg    *config.Config
	agent  *agent.Agent
	llm    llm.Client
	memory memory.Store
}

func (a *app) Close() {
	if a.memory != nil {
		if err := a.memory.Close(); err != nil {
			logger.Warn("memory close failed", zap.Error(err))
		}
	}
}

// loadConfig loads and validates the config, then applies its logging section
// unless the level came from the command line.
func loadConfig(requireDiscord bool) (*config.Config, error) {
	load := config.LoadLocal
	if requireDiscord {
		load = config.Load
	}
	cfg, err := load(configDir)
	if err != nil {
		return nil, err
	}
	if logLevel == "" && (cfg.Logging.Level != "" || cfg.Logging.JSON) {
		l, err := logging.New(cfg.Logging.Level, cfg.Logging.JSON || jsonLogs)
		if err != nil {
			return nil, err
		}
		_ = logger.Sync()
		logger = l
	}
	return cfg, nil
}

func buildApp(ctx context.Context, requireDiscord bool) (*app, error) {
	cfg, err := loadConfig(requireDiscord)
	if err != nil {
		return nil, err
	}

	classifier := phrases.New(
		loadPhrases(cfg.Paths.TerminalCSV),
		loadPhrases(cfg.Paths.ManipulateCSV),
		loadPhrases(cfg.Paths.StrawberryCSV),
	)
	for _, r := range classifier.Rules() {
		logger.Info("phrase rule", zap.Stringer("mode", r.Mode), zap.Int("phrases", len(r.Phrases)))
	}

	client, err := buildLLM(ctx, cfg)
	if err != nil {
		return nil, err
	}

	runner, err := newRunner(cfg.Exec)
	if err != nil {
		return nil, err
	}

	store, err := memory.Open(cfg.Memory, logger)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}

	a := agent.New(agent.Config{
		Prompt:        cfg.Prompt.Content,
		Generation:    generation(cfg.LLM),
		MemoryLimit:   cfg.Memory.Limit,
		Shell:         runner.ShellName(),
		ExecTimeout:   runner.Timeout(),
		ThumbnailPath: cfg.Paths.Thumbnail,
		Classifier:    classifier,
		Memory:        store,
		LLM:           client,
		Runner:        runner,
		Events:        eventlog.New(cfg.Paths.LogDir, logger),
		Logger:        logger,
		CountTokens:   prompt.EstimateTokens,
	})

	logger.Info("relaybot ready",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
		zap.String("memory", cfg.Memory.Backend),
		zap.Int("memory_limit", cfg.Memory.Limit),
		zap.String("shell", cfg.Exec.Shell),
		zap.String("workdir", cfg.Exec.Workdir))
	return &app{cfg: cfg, agent: a, llm: client, memory: store}, nil
}

// loadPhrases treats a missing list as empty so the bot still answers in plain mode.
func loadPhrases(path string) []string {
	list, err := phrases.LoadCSV(path)
	if err != nil {
		if errors.Is(err, phrases.ErrListMissing) {
			logger.Warn("phrase list missing, treating as empty", zap.String("path", path))
		} else {
			logger.Error("phrase list unreadable, treating as empty", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	logger.Debug("phrase list loaded", zap.String("path", path), zap.Int("count", len(list)))
	return list
}

func newRunner(c config.ExecConfig) (*tools.Executor, error) {
	runner, err := tools.NewExecutor(c.Shell, c.Timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	if c.Workdir != "" {
		runner = runner.WithWorkdir(c.Workdir)
	}
	return runner, nil
}

func buildLLM(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		return openai.New(openai.Config{APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model, BaseURL: cfg.LLM.BaseURL}, logger)
	case config.ProviderGoogle:
		return google.New(ctx, google.Config{APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model, BaseURL: cfg.LLM.BaseURL}, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func generation(c config.LLMConfig) llm.GenerationConfig {
	return llm.GenerationConfig{
		Temperature:     c.Temperature,
		MaxOutputTokens: c.MaxTokens,
		TopP:            c.TopP,
		TopK:            c.TopK,
	}
}
