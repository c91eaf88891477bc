package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gliderlab/relaybot/pkg/llmhealth"
)

// checkCmd probes the configured model endpoint
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Send a test prompt to the configured model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}
		client, err := buildLLM(ctx, cfg)
		if err != nil {
			return err
		}

		st := llmhealth.Check(ctx, client, llmhealth.LoadConfigFromEnv(), logger)
		cmd.Printf("%s %s: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model, st.Result, st.Latency.Round(time.Millisecond))
		if !st.Healthy {
			return fmt.Errorf("llm unhealthy: %s", st.Error)
		}
		return nil
	},
}
