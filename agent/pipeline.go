package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gliderlab/relaybot/pkg/llm"
	"github.com/gliderlab/relaybot/prompt"
	"github.com/gliderlab/relaybot/tools"
)

// State is a step of the terminal-mode command pipeline.
type State int

const (
	StateCommandGenerated State = iota
	StateSafetyCheck
	StateSkipped
	StateExecuting
	StateExplaining
	StateFailed
	StateDone
)

func (s State) String() string {
	switch s {
	case StateCommandGenerated:
		return "command_generated"
	case StateSafetyCheck:
		return "safety_check"
	case StateSkipped:
		return "skipped"
	case StateExecuting:
		return "executing"
	case StateExplaining:
		return "explaining"
	case StateFailed:
		return "failed"
	default:
		return "done"
	}
}

const (
	skippedPrefix         = "Execution skipped: Potentially unsafe command generated: "
	explainErrorFallback  = "Failed to get an explanation for the error from the AI."
	explainOutputFallback = "Failed to get an explanation for the output from the AI."
	ansiRed               = "\u001b[1;31m"
	ansiReset             = "\u001b[0m"
)

// CommandRun is the per-turn execution record. It is never persisted.
type CommandRun struct {
	Request  string // the user's original message
	Command  string // the generated command
	Executed string // cleared whenever execution did not complete
	Matched  string // denylist pattern that caused a skip
	Result   tools.ExecResult
	Err      error
	Text     string // user-facing explanation
	Path     []State
}

// Render formats the run for the user. Only a completed execution shows the command.
func (r *CommandRun) Render(lang string) string {
	if r.Executed == "" {
		return r.Text
	}
	return fmt.Sprintf("```%s\n# Executed Command:\n%s\n```\n%s", lang, r.Executed, r.Text)
}

// Pipeline turns one generated command into an explained result.
type Pipeline struct {
	llm    llm.Client
	runner tools.Runner
	shell  string
	budget time.Duration
	logger *zap.Logger
}

// NewPipeline wires the generation client and executor. shell names the
// executor in prompts and messages; budget is only used in the timeout text.
func NewPipeline(client llm.Client, runner tools.Runner, shell string, budget time.Duration, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{llm: client, runner: runner, shell: shell, budget: budget, logger: logger}
}

type stateFn func(ctx context.Context, run *CommandRun) State

func (p *Pipeline) transition(s State) stateFn {
	switch s {
	case StateCommandGenerated:
		return p.commandGenerated
	case StateSafetyCheck:
		return p.safetyCheck
	case StateSkipped:
		return p.skipped
	case StateExecuting:
		return p.executing
	case StateExplaining:
		return p.explaining
	case StateFailed:
		return p.failed
	default:
		return nil
	}
}

// Run drives the state machine from CommandGenerated to Done. One command is
// executed at most once; nothing is retried.
func (p *Pipeline) Run(ctx context.Context, request, generated string) *CommandRun {
	run := &CommandRun{Request: request, Command: generated}
	for s := StateCommandGenerated; s != StateDone; {
		run.Path = append(run.Path, s)
		s = p.transition(s)(ctx, run)
	}
	run.Path = append(run.Path, StateDone)
	return run
}

func (p *Pipeline) commandGenerated(_ context.Context, run *CommandRun) State {
	run.Command = strings.TrimSpace(run.Command)
	return StateSafetyCheck
}

func (p *Pipeline) safetyCheck(_ context.Context, run *CommandRun) State {
	if pattern, bad := unsafePattern(run.Command); bad {
		run.Matched = pattern
		return StateSkipped
	}
	return StateExecuting
}

func (p *Pipeline) skipped(_ context.Context, run *CommandRun) State {
	p.logger.Warn("command skipped by denylist", zap.String("command", run.Command), zap.String("pattern", run.Matched))
	run.Executed = ""
	run.Text = skippedPrefix + "`" + run.Command + "`"
	return StateDone
}

func (p *Pipeline) executing(ctx context.Context, run *CommandRun) State {
	p.logger.Info("executing command", zap.String("command", run.Command))
	run.Executed = run.Command
	if p.runner == nil {
		run.Err = tools.ErrExecutorMissing
		return StateFailed
	}
	run.Result, run.Err = p.runner.Run(ctx, run.Command)
	if run.Err != nil {
		return StateFailed
	}
	return StateExplaining
}

func (p *Pipeline) explaining(ctx context.Context, run *CommandRun) State {
	res := run.Result
	if res.ExitCode != 0 {
		stderr := strings.TrimSpace(res.Stderr)
		if stderr == "" {
			stderr = fmt.Sprintf("exit status %d", res.ExitCode)
		}
		if res.StderrTruncated {
			stderr = prompt.MarkTruncated(stderr)
		}
		explanation := p.explain(ctx, prompt.ExplainErrorPrompt(p.shell, run.Command, run.Request, stderr), llm.ExplainErrorConfig, explainErrorFallback)
		run.Text = ansiBlock("Error Output:\n"+stderr) + "\n" + explanation
		return StateDone
	}
	stdout := res.Stdout
	if res.StdoutTruncated {
		stdout = prompt.MarkTruncated(stdout)
	}
	run.Text = p.explain(ctx, prompt.ExplainOutputPrompt(p.shell, run.Command, run.Request, stdout), llm.ExplainOutputConfig, explainOutputFallback)
	return StateDone
}

func (p *Pipeline) failed(_ context.Context, run *CommandRun) State {
	run.Executed = ""
	switch {
	case errors.Is(run.Err, tools.ErrTimeout):
		run.Text = fmt.Sprintf("The command `%s` took too long to execute and was stopped (timed out after %s).", run.Command, p.budget)
	case errors.Is(run.Err, tools.ErrExecutorMissing):
		run.Text = ansiBlock(fmt.Sprintf("Error:\n%s executable not found on the server.", p.shell)) +
			fmt.Sprintf("\nUnable to execute the command as %s is not available.", p.shell)
	default:
		run.Text = ansiBlock("Error:\nAn unexpected error occurred while trying to run the command: " + run.Err.Error())
	}
	p.logger.Warn("command failed", zap.String("command", run.Command), zap.Error(run.Err))
	return StateDone
}

// explain asks for a second generation. Any non-text outcome becomes fallback.
func (p *Pipeline) explain(ctx context.Context, text string, cfg llm.GenerationConfig, fallback string) string {
	res := p.llm.Generate(ctx, llm.Request{Prompt: text, Config: cfg})
	if t, ok := res.(llm.Text); ok && strings.TrimSpace(t.Content) != "" {
		return t.Content
	}
	p.logger.Warn("explanation failed", zap.String("result", llm.Kind(res)))
	return fallback
}

func ansiBlock(s string) string {
	return "```ansi\n" + ansiRed + s + ansiReset + "```"
}

// codeLang picks a fence language for the executed command.
func codeLang(shell string) string {
	name := strings.ToLower(strings.TrimSuffix(filepath.Base(shell), ".exe"))
	switch name {
	case "powershell", "pwsh":
		return "powershell"
	case "cmd":
		return "bat"
	default:
		return "bash"
	}
}
