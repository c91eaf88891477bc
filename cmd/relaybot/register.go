package main

import (
	"github.com/spf13/cobra"
)

// registerCmd overwrites the application's slash commands and exits
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the slash command with Discord",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(true)
		if err != nil {
			return err
		}
		ch, err := newDiscordChannel(cfg, nil)
		if err != nil {
			return err
		}
		if err := ch.RegisterCommand(cmd.Context()); err != nil {
			return err
		}
		cmd.Printf("registered /%s\n", cfg.Discord.CommandName)
		return nil
	},
}
