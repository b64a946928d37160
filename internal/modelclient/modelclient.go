// Package modelclient defines the ModelClient contract the Agent Runtime
// consumes (§1 Non-goals: the core does not own the network stack or
// perform inference). A concrete Anthropic-backed implementation lives in
// the anthropic subpackage to prove the contract is drivable, the way the
// teacher's own internal/provider package does for its Provider interface.
package modelclient

import (
	"context"
	"encoding/json"

	"github.com/corehost/agentcore/internal/domain"
)

// Usage reports token accounting for one model call.
type Usage struct {
	InputTokens              int
	OutputTokens             int
	CacheCreationInputTokens int
	CacheReadInputTokens     int
}

// DeltaKind distinguishes a text delta from a thinking (reasoning) delta,
// matching the Agent Runtime's streaming-dispatch classification in §4.7.
type DeltaKind int

const (
	DeltaText DeltaKind = iota
	DeltaThinking
)

// OnDelta is invoked once per streamed chunk.
type OnDelta func(kind DeltaKind, text string)

// StopReason mirrors the provider's own terminal-state tag; the runtime
// only cares whether it implies more tool calls are coming.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// APIError is a structured error a ModelClient may return so the runtime's
// retry logic (internal/runtime/retry.go) can classify it without string
// matching.
type APIError struct {
	StatusCode   int
	ErrorType    string
	RetryAfterMs int64
	Message      string
}

func (e *APIError) Error() string { return e.Message }

// IsRetryable reports whether the error is a transient condition worth
// retrying with backoff (rate limit, overload, service unavailable).
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode == 503 || e.StatusCode == 529
}

// Client is the contract the Agent Runtime drives. A single call streams
// one model round: zero or more deltas via onDelta, ending in either a
// ToolCall-bearing response (StopToolUse) or a final text response
// (StopEndTurn).
type Client interface {
	Stream(ctx context.Context, model string, messages []domain.Message,
		tools []domain.ToolSpec, system string, onDelta OnDelta) ([]domain.Part, StopReason, Usage, error)
	Name() string
}

// MarshalArgs is a small helper for building ToolCall argument payloads.
func MarshalArgs(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
