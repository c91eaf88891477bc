package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gliderlab/relaybot/gateway/channels/discord"
	"github.com/gliderlab/relaybot/gateway/channels/types"
	"github.com/gliderlab/relaybot/pkg/config"
)

var skipRegister bool

// runCmd connects to Discord and serves the slash command until interrupted
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Discord and answer the slash command",
	Long: `Registers the slash command, opens the gateway session and answers every
invocation until SIGINT or SIGTERM. In-flight turns are allowed to finish.`,
	Args: cobra.NoArgs,
	RunE: runBot,
}

func init() {
	runCmd.Flags().BoolVar(&skipRegister, "skip-register", false, "Do not overwrite the application's slash commands on startup")
}

func runBot(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ch, err := newDiscordChannel(a.cfg, a.agent)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ch.Start(gctx)
	})
	if !skipRegister {
		g.Go(func() error {
			// a failed registration leaves the previous command definition in place
			if err := ch.RegisterCommand(gctx); err != nil && gctx.Err() == nil {
				logger.Error("slash command registration failed", zap.Error(err))
			}
			return nil
		})
	}

	err = g.Wait()
	logger.Info("relaybot stopped", zap.Error(err))
	return err
}

func newDiscordChannel(cfg *config.Config, h types.Handler) (*discord.DiscordChannel, error) {
	return discord.NewDiscordChannel(discord.Config{
		Token:              cfg.Discord.Token,
		ApplicationID:      cfg.Discord.ApplicationID,
		CommandName:        cfg.Discord.CommandName,
		CommandDescription: commandDescription(cfg),
		APIBase:            config.DiscordAPIBase,
		GatewayURL:         config.DiscordGateway,
	}, h, logger)
}

func commandDescription(cfg *config.Config) string {
	name := cfg.Discord.DisplayName
	if name == "" {
		name = "the bot"
	}
	return "Send a message to " + name
}

