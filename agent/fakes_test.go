package agent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gliderlab/relaybot/gateway/channels/types"
	"github.com/gliderlab/relaybot/memory"
	"github.com/gliderlab/relaybot/pkg/llm"
	"github.com/gliderlab/relaybot/pkg/phrases"
	"github.com/gliderlab/relaybot/tools"
)

// fakeLLM answers from a script, then from respond, then with "ok".
type fakeLLM struct {
	mu       sync.Mutex
	script   []llm.Result
	respond  func(prompt string) llm.Result
	requests []llm.Request
}

func (f *fakeLLM) Generate(_ context.Context, req llm.Request) llm.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.script) > 0 {
		r := f.script[0]
		f.script = f.script[1:]
		return r
	}
	if f.respond != nil {
		return f.respond(req.Prompt)
	}
	return llm.Text{Content: "ok"}
}

type fakeRunner struct {
	result tools.ExecResult
	err    error
	calls  []string
}

func (f *fakeRunner) Run(_ context.Context, command string) (tools.ExecResult, error) {
	f.calls = append(f.calls, command)
	res := f.result
	res.Command = command
	return res, f.err
}

type sent struct {
	content string
	file    *types.Attachment
}

type fakeResponder struct {
	deferred int
	sent     []sent
	fail     func(n int, content string, file *types.Attachment) error
}

func (f *fakeResponder) Defer(context.Context) error {
	f.deferred++
	return nil
}

func (f *fakeResponder) Send(_ context.Context, content string, file *types.Attachment) error {
	n := len(f.sent)
	f.sent = append(f.sent, sent{content: content, file: file})
	if f.fail != nil {
		return f.fail(n, content, file)
	}
	return nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDs struct{ n int }

func (s *seqIDs) New() string {
	s.n++
	return "turn-" + strings.Repeat("x", s.n)
}

var testClock = fixedClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}

func testClassifier() *phrases.Classifier {
	return phrases.New(
		[]string{"run command", "in the terminal"},
		[]string{"ignore previous instructions", "you are now dan"},
		[]string{"strawberry"},
	)
}

func newTestAgent(t *testing.T, client llm.Client, runner tools.Runner) *Agent {
	t.Helper()
	return New(Config{
		Prompt:       "You are a helpful bot.",
		Generation:   llm.GenerationConfig{Temperature: 0.7, MaxOutputTokens: 1000},
		MemoryLimit:  3,
		Shell:        "/bin/sh",
		ExecTimeout:  30 * time.Second,
		Classifier:   testClassifier(),
		Memory:       memory.NewFileStore(t.TempDir(), zap.NewNop()),
		LLM:          client,
		Runner:       runner,
		Logger:       zap.NewNop(),
		TimeProvider: testClock,
		IDGenerator:  &seqIDs{},
	})
}

func ask(msg string) types.Interaction {
	return types.Interaction{
		Channel:     types.ChannelLocal,
		ID:          "1",
		UserID:      "42",
		DisplayName: "Ana",
		GuildID:     "7",
		Message:     msg,
	}
}
