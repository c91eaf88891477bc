// Agent module - one slash-command turn from inbound message to delivered reply

package agent

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gliderlab/relaybot/gateway/channels/types"
	"github.com/gliderlab/relaybot/memory"
	"github.com/gliderlab/relaybot/pkg/chunker"
	"github.com/gliderlab/relaybot/pkg/eventlog"
	"github.com/gliderlab/relaybot/pkg/llm"
	"github.com/gliderlab/relaybot/pkg/phrases"
	"github.com/gliderlab/relaybot/prompt"
	"github.com/gliderlab/relaybot/tools"
)

const (
	refusalPrefix    = "AI refused to generate command: "
	emptyReply       = "I received your message, but didn't generate a specific response (it might have been empty or blocked)."
	emptyTerminal    = "Terminal mode activated, but no command was executed or explanation generated."
	deliveryFallback = "Sorry, there was an error sending the full response."

	// interaction tokens expire after 15 minutes
	turnBudget = 14 * time.Minute
)

// Config holds the agent's settings and collaborators. Settings are fixed for the process lifetime.
type Config struct {
	Prompt        string
	Generation    llm.GenerationConfig
	MemoryLimit   int
	Shell         string        // executor binary, shown in prompts
	ExecTimeout   time.Duration // shown in timeout messages
	ThumbnailPath string        // optional, attached to the first chunk of non-terminal replies
	ChunkLimit    int

	Classifier  *phrases.Classifier
	Memory      memory.Store
	LLM         llm.Client
	Runner      tools.Runner
	Events      *eventlog.Log
	Logger      *zap.Logger
	CountTokens func(string) int // optional, log field only

	TimeProvider TimeProvider
	IDGenerator  IDGenerator
}

// Agent runs turns. It is safe for concurrent use; turns for the same user
// are not serialized and may race on memory.
type Agent struct {
	cfg      Config
	pipeline *Pipeline
	logger   *zap.Logger
	clock    TimeProvider
	ids      IDGenerator
}

// Reply is the outcome of one turn before delivery.
type Reply struct {
	TurnID  string
	Mode    phrases.Mode
	Text    string
	Command *CommandRun // set only when the pipeline ran
}

// New creates an agent
func New(cfg Config) *Agent {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = phrases.New(nil, nil, nil)
	}
	if cfg.ChunkLimit <= 0 {
		cfg.ChunkLimit = chunker.DefaultLimit
	}
	if cfg.TimeProvider == nil {
		cfg.TimeProvider = NewDefaultTimeProvider()
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = NewDefaultIDGenerator()
	}
	logger := cfg.Logger.Named("agent")
	shellName := filepath.Base(cfg.Shell)
	return &Agent{
		cfg:      cfg,
		pipeline: NewPipeline(cfg.LLM, cfg.Runner, shellName, cfg.ExecTimeout, logger.Named("pipeline")),
		logger:   logger,
		clock:    cfg.TimeProvider,
		ids:      cfg.IDGenerator,
	}
}

// HandleInteraction implements types.Handler: defer, run the turn, deliver.
func (a *Agent) HandleInteraction(ctx context.Context, in types.Interaction, r types.Responder) {
	ctx, cancel := context.WithTimeout(ctx, turnBudget)
	defer cancel()

	if err := r.Defer(ctx); err != nil {
		a.logger.Warn("defer failed", zap.String("interaction", in.ID), zap.Error(err))
	}

	origin := originOf(in)
	a.cfg.Events.Received(origin, in.Message)

	reply := a.Respond(ctx, in)
	a.Deliver(ctx, in, r, reply)
}

// Respond runs classification, memory, prompt composition, generation and,
// in terminal mode, the command pipeline.
func (a *Agent) Respond(ctx context.Context, in types.Interaction) Reply {
	now := a.clock.Now()
	reply := Reply{TurnID: a.ids.New()}
	log := a.logger.With(zap.String("turn", reply.TurnID), zap.String("user", in.UserID))

	reply.Mode = a.cfg.Classifier.Classify(in.Message)

	// read before append: the current message is never part of its own context
	window := a.readMemory(ctx, in.UserID)
	a.appendMemory(ctx, in.UserID, memory.NewEntry(now, in.Message))

	text := prompt.Compose(prompt.Input{
		BasePrompt:  a.cfg.Prompt,
		DisplayName: in.DisplayName,
		Memory:      window,
		Mode:        reply.Mode,
		Message:     in.Message,
		Host:        prompt.SnapshotHost(a.cfg.Shell, now),
	})

	fields := []zap.Field{zap.Stringer("mode", reply.Mode), zap.Int("memory", len(window))}
	if a.cfg.CountTokens != nil {
		fields = append(fields, zap.Int("prompt_tokens", a.cfg.CountTokens(text)))
	}
	log.Info("generating", fields...)

	res := a.generate(ctx, llm.Request{Prompt: text, Config: a.cfg.Generation})
	log.Info("generated", zap.String("result", llm.Kind(res)))

	if reply.Mode != phrases.ModeTerminal {
		reply.Text = llm.UserMessage(res)
		if t, ok := res.(llm.Text); ok && strings.TrimSpace(t.Content) == "" {
			reply.Text = emptyReply
		}
		return reply
	}

	t, ok := res.(llm.Text)
	switch {
	case !ok:
		reply.Text = llm.UserMessage(res)
	case strings.HasPrefix(t.Content, prompt.RefusalPrefix):
		log.Info("command refused", zap.String("text", t.Content))
		reply.Text = refusalPrefix + "`" + t.Content + "`"
	case strings.TrimSpace(t.Content) == "":
		reply.Text = emptyTerminal
	default:
		reply.Command = a.pipeline.Run(ctx, in.Message, t.Content)
		reply.Text = reply.Command.Render(codeLang(a.cfg.Shell))
		log.Info("pipeline finished",
			zap.String("command", reply.Command.Command),
			zap.Bool("executed", reply.Command.Executed != ""),
			zap.Stringer("state", reply.Command.Path[len(reply.Command.Path)-2]))
	}
	return reply
}

// Deliver sends the header and chunked reply. The thumbnail rides on the first
// chunk of non-terminal replies. On a send failure one fallback message is
// attempted and its own failure is only logged.
func (a *Agent) Deliver(ctx context.Context, in types.Interaction, r types.Responder, reply Reply) {
	log := a.logger.With(zap.String("turn", reply.TurnID), zap.String("user", in.UserID))
	origin := originOf(in)

	if err := r.Send(ctx, chunker.Header(in.DisplayName, in.Message), nil); err != nil {
		log.Warn("header send failed", zap.Error(err))
		a.fallback(ctx, r, log)
		return
	}

	chunks := chunker.Split(reply.Text, a.cfg.ChunkLimit)
	if len(chunks) == 0 {
		log.Warn("empty reply")
		chunks = []string{emptyReply}
	}

	for i, chunk := range chunks {
		var file *types.Attachment
		if i == 0 && reply.Mode != phrases.ModeTerminal {
			file = a.thumbnail(log)
		}
		err := r.Send(ctx, chunk, file)
		if err != nil && file != nil {
			log.Warn("send with thumbnail failed, retrying text only", zap.Error(err))
			err = r.Send(ctx, chunk, nil)
		}
		if err != nil {
			log.Warn("chunk send failed", zap.Int("chunk", i+1), zap.Int("chunks", len(chunks)), zap.Error(err))
			a.fallback(ctx, r, log)
			return
		}
		a.cfg.Events.Sent(origin, i, len(chunks), chunk)
	}
}

func (a *Agent) fallback(ctx context.Context, r types.Responder, log *zap.Logger) {
	if err := r.Send(ctx, deliveryFallback, nil); err != nil {
		log.Error("fallback send failed", zap.Error(err))
	}
}

func (a *Agent) thumbnail(log *zap.Logger) *types.Attachment {
	if a.cfg.ThumbnailPath == "" {
		return nil
	}
	file, err := types.LoadAttachment(a.cfg.ThumbnailPath, "image/png")
	if err != nil {
		log.Warn("thumbnail unavailable, sending text only", zap.Error(err))
		return nil
	}
	return file
}

func (a *Agent) readMemory(ctx context.Context, userID string) []memory.Entry {
	if a.cfg.Memory == nil {
		return nil
	}
	return a.cfg.Memory.ReadWindow(ctx, userID, a.cfg.MemoryLimit)
}

func (a *Agent) appendMemory(ctx context.Context, userID string, e memory.Entry) {
	if a.cfg.Memory == nil {
		return
	}
	a.cfg.Memory.Append(ctx, userID, e, a.cfg.MemoryLimit)
}

func (a *Agent) generate(ctx context.Context, req llm.Request) llm.Result {
	if a.cfg.LLM == nil {
		return llm.APIError{Kind: llm.ErrorUnexpected, Detail: "no generation client configured"}
	}
	return a.cfg.LLM.Generate(ctx, req)
}

func originOf(in types.Interaction) eventlog.Origin {
	return eventlog.Origin{
		UserID:    in.UserID,
		UserName:  in.DisplayName,
		GuildID:   in.GuildID,
		GuildName: in.GuildName,
	}
}
