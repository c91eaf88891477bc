// Package config provides configuration types and defaults for relaybot
// Centralized management of all constants and default values

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// ===== LLM =====

const (
	ProviderGoogle = "google"
	ProviderOpenAI = "openai"

	DefaultProvider    = ProviderGoogle
	DefaultModel       = "gemini-1.5-flash"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

// ===== Memory =====

const (
	MemoryBackendFile   = "file"
	MemoryBackendBadger = "badger"
	MemoryBackendSQLite = "sqlite"

	DefaultMemoryLimit = 10
)

// ===== Exec =====

const (
	// DefaultExecTimeout bounds a single generated command
	DefaultExecTimeout = 30 * time.Second
)

// ===== Discord =====

const (
	DiscordMaxMsgLen = 2000
	DiscordAPIBase   = "https://discord.com/api/v10"
	DiscordGateway   = "wss://gateway.discord.gg/?v=10&encoding=json"
)

// ===== Paths =====

// DefaultConfigDir returns the config directory (RELAYBOT_CONFIG_DIR or ./config)
func DefaultConfigDir() string {
	if d := os.Getenv("RELAYBOT_CONFIG_DIR"); d != "" {
		return d
	}
	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		cwd = "."
	}
	return filepath.Join(cwd, "config")
}

// DefaultShell returns the shell command line used to run generated commands
func DefaultShell() string {
	if runtime.GOOS == "windows" {
		return "powershell -NoProfile -ExecutionPolicy Bypass -Command"
	}
	return "/bin/sh -c"
}
