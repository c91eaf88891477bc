package llmhealth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gliderlab/relaybot/pkg/llm"
)

type stubClient struct {
	res llm.Result
	got llm.Request
}

func (s *stubClient) Generate(_ context.Context, req llm.Request) llm.Result {
	s.got = req
	return s.res
}

func TestCheckHealthy(t *testing.T) {
	c := &stubClient{res: llm.Text{Content: "hi"}}
	st := Check(context.Background(), c, DefaultConfig(), nil)

	assert.True(t, st.Healthy)
	assert.Equal(t, "text", st.Result)
	assert.Empty(t, st.Error)
	assert.Equal(t, "hello", c.got.Prompt)
	assert.Equal(t, int32(10), c.got.Config.MaxOutputTokens)
	assert.False(t, st.CheckedAt.IsZero())
}

func TestCheckBlockedCountsAsReachable(t *testing.T) {
	st := Check(context.Background(), &stubClient{res: llm.Blocked{Reason: "SAFETY"}}, DefaultConfig(), nil)
	assert.True(t, st.Healthy)
	assert.Equal(t, "blocked", st.Result)
}

func TestCheckAPIError(t *testing.T) {
	c := &stubClient{res: llm.APIError{Kind: llm.ErrorProvider, Detail: "bad key"}}
	st := Check(context.Background(), c, Config{}, nil)

	assert.False(t, st.Healthy)
	assert.Equal(t, "error:provider", st.Result)
	assert.Equal(t, "bad key", st.Error)
	assert.Equal(t, "hello", c.got.Prompt, "empty config falls back to defaults")
}

func TestCheckNilResult(t *testing.T) {
	st := Check(context.Background(), &stubClient{}, DefaultConfig(), nil)
	assert.False(t, st.Healthy)
	assert.NotEmpty(t, st.Error)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("RELAYBOT_HEALTH_PROMPT", "ping")
	t.Setenv("RELAYBOT_HEALTH_TIMEOUT", "5s")
	cfg := LoadConfigFromEnv()
	assert.Equal(t, "ping", cfg.TestPrompt)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	t.Setenv("RELAYBOT_HEALTH_TIMEOUT", "soon")
	assert.Equal(t, 30*time.Second, LoadConfigFromEnv().Timeout)
}
