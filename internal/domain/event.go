package domain

import "encoding/json"

// EventKind tags a StreamEvent's active variant.
type EventKind string

const (
	EventTextDelta          EventKind = "text_delta"
	EventThinkingDelta      EventKind = "thinking_delta"
	EventToolStarted        EventKind = "tool_started"
	EventToolFinished       EventKind = "tool_finished"
	EventNestedAgentStarted EventKind = "nested_agent_started"
	EventNestedAgentFinished EventKind = "nested_agent_finished"
	EventTurnFinished       EventKind = "turn_finished"
	// Supplemented variants (additive, do not alter the required union):
	EventRetrying  EventKind = "retrying"
	EventCompacted EventKind = "compacted"
	EventThroughput EventKind = "throughput"
)

// FinishReason classifies how a turn ended.
type FinishReason string

const (
	FinishComplete   FinishReason = "complete"
	FinishError      FinishReason = "error"
	FinishCancelled  FinishReason = "cancelled"
)

// StreamEvent is the bus payload, a tagged variant over the kinds in §3 of
// the data model. Only the fields relevant to Kind are populated.
type StreamEvent struct {
	Kind EventKind

	// TextDelta / ThinkingDelta
	Agent string
	Text  string

	// ToolStarted / ToolFinished
	ToolCallID    string
	ToolName      string
	ToolArgs      json.RawMessage
	ToolOK        bool
	OutputPreview string

	// NestedAgentStarted / NestedAgentFinished
	ParentAgent string
	ChildAgent  string
	SectionID   string

	// TurnFinished
	Reason   FinishReason
	ErrKind  string
	ErrMsg   string

	// Retrying (supplemented)
	RetryAttempt int
	RetryAfterMs int64
	RetryMessage string

	// Compacted (supplemented)
	DroppedCount int
	Summary      string

	// Throughput (supplemented)
	CharsPerSec float64
}

// TextDelta constructs a text-delta event.
func TextDelta(agent, text string) StreamEvent {
	return StreamEvent{Kind: EventTextDelta, Agent: agent, Text: text}
}

// ThinkingDelta constructs a thinking-delta event.
func ThinkingDelta(agent, text string) StreamEvent {
	return StreamEvent{Kind: EventThinkingDelta, Agent: agent, Text: text}
}

// ToolStarted constructs a tool-started event.
func ToolStarted(agent, callID, name string, args json.RawMessage) StreamEvent {
	return StreamEvent{Kind: EventToolStarted, Agent: agent, ToolCallID: callID, ToolName: name, ToolArgs: args}
}

// ToolFinished constructs a tool-finished event.
func ToolFinished(agent, callID string, ok bool, preview string) StreamEvent {
	return StreamEvent{Kind: EventToolFinished, Agent: agent, ToolCallID: callID, ToolOK: ok, OutputPreview: preview}
}

// TurnFinished constructs a turn-finished event.
func TurnFinished(reason FinishReason, errKind, errMsg string) StreamEvent {
	return StreamEvent{Kind: EventTurnFinished, Reason: reason, ErrKind: errKind, ErrMsg: errMsg}
}
