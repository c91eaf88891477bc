package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gliderlab/relaybot/gateway/channels/types"
	"github.com/gliderlab/relaybot/pkg/config"
)

var (
	askUser string
	askName string
)

// askCmd runs one turn locally and prints what would be sent to Discord
var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Run one turn from the terminal",
	Long: `Runs the full turn (classification, memory, generation, terminal mode and
chunking) for one message and prints each outgoing message to stdout.
The Discord token is not required.

Example:
  relaybot ask "run command list the files in /tmp"`,
	Args: cobra.MinimumNArgs(1),
	RunE: askOnce,
}

func init() {
	askCmd.Flags().StringVar(&askUser, "user", "", "User ID for memory (default: local account name)")
	askCmd.Flags().StringVar(&askName, "name", "", "Display name shown in the header (default: --user)")
}

func askOnce(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	in := localInteraction(a.cfg, strings.Join(args, " "))
	a.agent.HandleInteraction(ctx, in, &stdoutResponder{w: cmd.OutOrStdout()})
	return nil
}

func localInteraction(cfg *config.Config, message string) types.Interaction {
	uid := askUser
	if uid == "" {
		uid = "local"
		if u, err := user.Current(); err == nil && u.Username != "" {
			uid = u.Username
		}
	}
	name := askName
	if name == "" {
		name = uid
	}
	return types.Interaction{
		Channel:     types.ChannelLocal,
		ID:          "local",
		CommandName: cfg.Discord.CommandName,
		UserID:      uid,
		DisplayName: name,
		Message:     message,
	}
}

// stdoutResponder prints each message separated by a rule line.
type stdoutResponder struct {
	w    io.Writer
	sent int
}

func (r *stdoutResponder) Defer(context.Context) error { return nil }

func (r *stdoutResponder) Send(_ context.Context, content string, file *types.Attachment) error {
	if r.w == nil {
		r.w = os.Stdout
	}
	if r.sent > 0 {
		fmt.Fprintln(r.w, "-----")
	}
	r.sent++
	if file != nil {
		fmt.Fprintf(r.w, "[attachment: %s, %d bytes]\n", file.Name, len(file.Data))
	}
	_, err := fmt.Fprintln(r.w, content)
	return err
}
