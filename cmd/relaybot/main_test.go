package main

import (
	"bytes"
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gliderlab/relaybot/gateway/channels/types"
	"github.com/gliderlab/relaybot/pkg/config"
)

func TestLocalInteraction(t *testing.T) {
	askUser, askName = "u1", ""
	t.Cleanup(func() { askUser, askName = "", "" })

	cfg := config.Default(t.TempDir())
	cfg.Discord.CommandName = "ask"
	in := localInteraction(cfg, "hello there")

	assert.Equal(t, types.ChannelLocal, in.Channel)
	assert.Equal(t, "u1", in.UserID)
	assert.Equal(t, "u1", in.DisplayName)
	assert.Equal(t, "ask", in.CommandName)
	assert.Equal(t, "hello there", in.Message)
	assert.Empty(t, in.GuildID)
}

func TestStdoutResponder(t *testing.T) {
	var buf bytes.Buffer
	r := &stdoutResponder{w: &buf}
	ctx := context.Background()

	require.NoError(t, r.Defer(ctx))
	require.NoError(t, r.Send(ctx, "first", &types.Attachment{Name: "thumbnail.png", Data: []byte{1, 2}}))
	require.NoError(t, r.Send(ctx, "second", nil))

	assert.Equal(t, "[attachment: thumbnail.png, 2 bytes]\nfirst\n-----\nsecond\n", buf.String())
}

func TestCommandDescription(t *testing.T) {
	cfg := config.Default(t.TempDir())
	assert.Equal(t, "Send a message to RelayBot", commandDescription(cfg))
	cfg.Discord.DisplayName = ""
	assert.Equal(t, "Send a message to the bot", commandDescription(cfg))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "ask", "register", "check"} {
		assert.True(t, names[want], want)
	}
}

func TestNewRunnerUsesWorkdir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	logger = zap.NewNop()
	dir := t.TempDir()

	runner, err := newRunner(config.ExecConfig{Shell: "/bin/sh -c", Timeout: 5 * time.Second, Workdir: dir})
	require.NoError(t, err)
	res, err := runner.Run(context.Background(), "pwd")
	require.NoError(t, err)

	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(res.Stdout))
	assert.Equal(t, want, got)

	_, err = newRunner(config.ExecConfig{Shell: "", Timeout: time.Second})
	assert.Error(t, err)
}
