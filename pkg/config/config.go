package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfigMissing is returned when required settings are absent. It is fatal at startup.
var ErrConfigMissing = errors.New("required configuration missing")

// ErrConfigInvalid is returned when a setting is present but unusable.
var ErrConfigInvalid = errors.New("invalid configuration")

// Config is loaded once at process start and never mutated afterwards.
type Config struct {
	Discord DiscordConfig `yaml:"discord"`
	LLM     LLMConfig     `yaml:"llm"`
	Memory  MemoryConfig  `yaml:"memory"`
	Prompt  PromptConfig  `yaml:"prompt"`
	Paths   PathsConfig   `yaml:"paths"`
	Exec    ExecConfig    `yaml:"exec"`
	Logging LoggingConfig `yaml:"logging"`
}

// DiscordConfig holds bot credentials and slash command naming
type DiscordConfig struct {
	Token         string `yaml:"token"`
	ApplicationID string `yaml:"application_id"`
	CommandName   string `yaml:"command_name"` // must be lowercase
	DisplayName   string `yaml:"display_name"`
}

// LLMConfig holds the single model endpoint and its generation settings
type LLMConfig struct {
	Provider    string   `yaml:"provider"` // "google" or "openai"
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	Temperature float32  `yaml:"temperature"`
	MaxTokens   int32    `yaml:"max_tokens"`
	TopP        *float32 `yaml:"top_p"`
	TopK        *int32   `yaml:"top_k"`
}

// MemoryConfig selects the per-user memory backend and retention count
type MemoryConfig struct {
	Backend string `yaml:"backend"` // file, badger, sqlite
	Dir     string `yaml:"dir"`
	Limit   int    `yaml:"limit"`
}

// PromptConfig holds the base system instructions
type PromptConfig struct {
	Content string `yaml:"content"`
}

// PathsConfig holds on-disk locations
type PathsConfig struct {
	ConfigDir     string `yaml:"config_dir"`
	LogDir        string `yaml:"log_dir"`
	Thumbnail     string `yaml:"thumbnail"`
	TerminalCSV   string `yaml:"terminal_csv"`
	ManipulateCSV string `yaml:"manipulation_csv"`
	StrawberryCSV string `yaml:"strawberry_csv"`
}

// ExecConfig controls the generated-command subprocess
type ExecConfig struct {
	Shell   string        `yaml:"shell"`
	Timeout time.Duration `yaml:"timeout"`
	Workdir string        `yaml:"workdir"` // empty means the process working directory
}

// LoggingConfig controls the zap logger
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a configuration rooted at dir with every optional value filled in
func Default(dir string) *Config {
	return &Config{
		Discord: DiscordConfig{
			DisplayName: "RelayBot",
		},
		LLM: LLMConfig{
			Provider:    DefaultProvider,
			Model:       DefaultModel,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
		Memory: MemoryConfig{
			Backend: MemoryBackendFile,
			Limit:   DefaultMemoryLimit,
		},
		Paths: PathsConfig{
			ConfigDir: dir,
		},
		Exec: ExecConfig{
			Shell:   DefaultShell(),
			Timeout: DefaultExecTimeout,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads <dir>/config.yaml, applies env.config and process environment
// overrides, fills derived paths and validates the result.
func Load(dir string) (*Config, error) {
	return load(dir, true)
}

// LoadLocal is Load for commands that never talk to Discord; the Discord
// token is not required.
func LoadLocal(dir string) (*Config, error) {
	return load(dir, false)
}

func load(dir string, requireDiscord bool) (*Config, error) {
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := Default(dir)

	path := filepath.Join(dir, "config.yaml")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployments are allowed
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(envLookup{file: ReadEnvConfig(filepath.Join(dir, "env.config"))}); err != nil {
		return nil, err
	}
	cfg.fillPaths()

	if err := cfg.validate(requireDiscord); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(env envLookup) error {
	if v, ok := env.get("RELAYBOT_DISCORD_TOKEN", "DISCORD_BOT_TOKEN"); ok {
		c.Discord.Token = v
	}
	if v, ok := env.get("RELAYBOT_DISCORD_APP_ID"); ok {
		c.Discord.ApplicationID = v
	}
	if v, ok := env.get("RELAYBOT_COMMAND_NAME"); ok {
		c.Discord.CommandName = v
	}
	if v, ok := env.get("RELAYBOT_LLM_PROVIDER"); ok {
		c.LLM.Provider = v
	}
	if v, ok := env.get("RELAYBOT_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY"); ok {
		c.LLM.APIKey = v
	}
	if v, ok := env.get("RELAYBOT_MODEL"); ok {
		c.LLM.Model = v
	}
	if v, ok := env.get("RELAYBOT_BASE_URL"); ok {
		c.LLM.BaseURL = v
	}
	if v, ok := env.get("RELAYBOT_MEMORY_BACKEND"); ok {
		c.Memory.Backend = v
	}
	if v, ok := env.get("RELAYBOT_MEMORY_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: RELAYBOT_MEMORY_LIMIT=%q", ErrConfigInvalid, v)
		}
		c.Memory.Limit = n
	}
	if v, ok := env.get("RELAYBOT_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	return nil
}

func (c *Config) fillPaths() {
	dir := c.Paths.ConfigDir
	if c.Memory.Dir == "" {
		c.Memory.Dir = filepath.Join(dir, "gptmemory")
	}
	if c.Paths.LogDir == "" {
		c.Paths.LogDir = filepath.Join(dir, "logs")
	}
	if c.Paths.Thumbnail == "" {
		c.Paths.Thumbnail = filepath.Join(dir, "thumbnail.png")
	}
	if c.Paths.TerminalCSV == "" {
		c.Paths.TerminalCSV = filepath.Join(dir, "terminal.csv")
	}
	if c.Paths.ManipulateCSV == "" {
		c.Paths.ManipulateCSV = filepath.Join(dir, "man.csv")
	}
	if c.Paths.StrawberryCSV == "" {
		c.Paths.StrawberryCSV = filepath.Join(dir, "straw.csv")
	}
	if c.Exec.Timeout <= 0 {
		c.Exec.Timeout = DefaultExecTimeout
	}
	if strings.TrimSpace(c.Exec.Shell) == "" {
		c.Exec.Shell = DefaultShell()
	}
}

// Validate reports missing required settings (ErrConfigMissing) before invalid ones.
func (c *Config) Validate() error {
	return c.validate(true)
}

func (c *Config) validate(requireDiscord bool) error {
	var missing []string
	if requireDiscord && c.Discord.Token == "" {
		missing = append(missing, "discord.token")
	}
	if requireDiscord && c.Discord.CommandName == "" {
		missing = append(missing, "discord.command_name")
	}
	if c.LLM.APIKey == "" {
		missing = append(missing, "llm.api_key")
	}
	if strings.TrimSpace(c.Prompt.Content) == "" {
		missing = append(missing, "prompt.content")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigMissing, strings.Join(missing, ", "))
	}

	if c.Discord.CommandName != strings.ToLower(c.Discord.CommandName) {
		return fmt.Errorf("%w: discord.command_name must be lowercase, got %q", ErrConfigInvalid, c.Discord.CommandName)
	}
	switch c.LLM.Provider {
	case ProviderGoogle, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: llm.provider %q", ErrConfigInvalid, c.LLM.Provider)
	}
	switch c.Memory.Backend {
	case MemoryBackendFile, MemoryBackendBadger, MemoryBackendSQLite:
	default:
		return fmt.Errorf("%w: memory.backend %q", ErrConfigInvalid, c.Memory.Backend)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("%w: llm.model is empty", ErrConfigInvalid)
	}
	return nil
}
