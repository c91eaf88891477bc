package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gliderlab/relaybot/pkg/config"
	"github.com/gliderlab/relaybot/pkg/logging"
)

var (
	// Global flags
	configDir string
	logLevel  string
	jsonLogs  bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "relaybot",
	Short: "Discord slash-command relay to a language model",
	Long: `relaybot answers one Discord slash command by forwarding the message to a
language model, with per-user memory and an optional terminal mode that turns
the request into a shell command, runs it and explains the result.

Configuration is read from <config-dir>/config.yaml and <config-dir>/env.config;
RELAYBOT_* environment variables override both.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logLevel
		if level == "" {
			level = os.Getenv("RELAYBOT_LOG_LEVEL")
		}
		var err error
		logger, err = logging.New(level, jsonLogs)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", config.DefaultConfigDir(), "Directory holding config.yaml, env.config and the phrase lists")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default info)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "Emit JSON logs")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
