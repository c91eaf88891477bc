// Package llm defines the generation contract shared by all model backends
package llm

import (
	"context"
	"fmt"
)

// GenerationConfig is fixed per call site; the primary config is loaded once at startup.
type GenerationConfig struct {
	Temperature     float32
	MaxOutputTokens int32
	TopP            *float32 // optional nucleus sampling
	TopK            *int32   // optional top-k sampling
}

// Request is immutable once built. One request per model call.
type Request struct {
	Prompt string
	Config GenerationConfig
}

// Explanation calls use their own fixed settings, independent of the primary config.
var (
	ExplainErrorConfig  = GenerationConfig{Temperature: 0.5, MaxOutputTokens: 300}
	ExplainOutputConfig = GenerationConfig{Temperature: 0.5, MaxOutputTokens: 450}
)

// Result is one of Text, Blocked or APIError. Consumers switch on the concrete type.
type Result interface {
	isResult()
}

// Text is a successful generation.
type Text struct {
	Content string
}

// Blocked means the provider returned no usable candidate, usually a safety block.
type Blocked struct {
	Reason string
}

// ErrorKind separates quota problems from other provider and local failures.
type ErrorKind int

const (
	ErrorUnexpected ErrorKind = iota
	ErrorRateLimited
	ErrorProvider
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorRateLimited:
		return "rate_limited"
	case ErrorProvider:
		return "provider"
	default:
		return "unexpected"
	}
}

// APIError is a failed call.
type APIError struct {
	Kind   ErrorKind
	Detail string
}

func (Text) isResult()     {}
func (Blocked) isResult()  {}
func (APIError) isResult() {}

// Client generates text for one request. Implementations never return a Go
// error: every failure is folded into a Result variant.
type Client interface {
	Generate(ctx context.Context, req Request) Result
}

// UnknownReason is used when the provider gives no block reason.
const UnknownReason = "Unknown"

// UserMessage renders any result as user-visible text.
func UserMessage(r Result) string {
	switch v := r.(type) {
	case Text:
		return v.Content
	case Blocked:
		reason := v.Reason
		if reason == "" {
			reason = UnknownReason
		}
		return fmt.Sprintf("Error: The response was blocked by safety filters (Reason: %s) or could not be generated.", reason)
	case APIError:
		switch v.Kind {
		case ErrorRateLimited:
			return "Error: The AI is currently busy due to rate limits or quota issues. Please try again later."
		case ErrorProvider:
			return "Error: Could not communicate with the AI API. Details: " + v.Detail
		default:
			return "An unexpected error occurred: " + v.Detail
		}
	case nil:
		return "An unexpected error occurred: no result"
	default:
		return fmt.Sprintf("An unexpected error occurred: unknown result %T", r)
	}
}

// Kind names the variant for log fields.
func Kind(r Result) string {
	switch v := r.(type) {
	case Text:
		return "text"
	case Blocked:
		return "blocked"
	case APIError:
		return "error:" + v.Kind.String()
	default:
		return "none"
	}
}
