//go:build !windows

package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/gliderlab/relaybot/pkg/llm"
	"github.com/gliderlab/relaybot/tools"
)

func TestRealTimeoutClearsExecutedCommand(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec, err := tools.NewExecutor("/bin/sh -c", 200*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	client := &fakeLLM{script: []llm.Result{llm.Text{Content: "sleep 5"}}}
	a := newTestAgent(t, client, exec)

	start := time.Now()
	reply := a.Respond(context.Background(), ask("run command to wait a bit"))

	assert.Less(t, time.Since(start), 4*time.Second)
	require.NotNil(t, reply.Command)
	assert.Empty(t, reply.Command.Executed)
	assert.True(t, reply.Command.Result.TimedOut)
	assert.Contains(t, reply.Text, "took too long to execute")
	assert.NotContains(t, reply.Text, "# Executed Command:")
	assert.Len(t, client.requests, 1)
}

func TestRealCommandExplained(t *testing.T) {
	exec, err := tools.NewExecutor("/bin/sh -c", 5*time.Second, zap.NewNop())
	require.NoError(t, err)

	client := &fakeLLM{script: []llm.Result{llm.Text{Content: "echo relay"}, llm.Text{Content: "It printed relay."}}}
	a := newTestAgent(t, client, exec)

	reply := a.Respond(context.Background(), ask("run command echo"))
	assert.Equal(t, "```bash\n# Executed Command:\necho relay\n```\nIt printed relay.", reply.Text)
	assert.Contains(t, client.requests[1].Prompt, "```yaml\nrelay\n```")
}

func TestRealBackgroundCommandIsExplained(t *testing.T) {
	exec, err := tools.NewExecutor("/bin/sh -c", 10*time.Second, zap.NewNop())
	require.NoError(t, err)

	client := &fakeLLM{script: []llm.Result{llm.Text{Content: "sleep 20 & echo started"}, llm.Text{Content: "A background job started."}}}
	a := newTestAgent(t, client, exec)

	reply := a.Respond(context.Background(), ask("run command start a job"))
	require.NotNil(t, reply.Command)
	require.NoError(t, reply.Command.Err)
	assert.Equal(t, "sleep 20 & echo started", reply.Command.Executed)
	assert.Equal(t, "```bash\n# Executed Command:\nsleep 20 & echo started\n```\nA background job started.", reply.Text)
	assert.Contains(t, client.requests[1].Prompt, "```yaml\nstarted\n```")
}
