// Package domain holds the core's data model: Message and Part, agent and
// model descriptors, tool specs, MCP server entries/handles, session
// snapshots, setting rows, and the bus's StreamEvent union. All types here
// are plain data — behavior lives in the component packages that own them.
package domain

import "encoding/json"

// Role identifies who authored a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// PartKind tags the variant carried by a Part.
type PartKind string

const (
	PartText       PartKind = "text"
	PartImage      PartKind = "image"
	PartFileRef    PartKind = "file_ref"
	PartToolCall   PartKind = "tool_call"
	PartToolResult PartKind = "tool_result"
)

// Part is one element of a Message's content, a tagged union over the five
// kinds the spec's data model names. Only the fields relevant to Kind are
// populated; the rest are zero.
type Part struct {
	Kind PartKind `json:"kind"`

	// PartText
	Text string `json:"text,omitempty"`

	// PartImage
	ImageBytes []byte `json:"image_bytes,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`

	// PartFileRef
	Path string `json:"path,omitempty"`

	// PartToolCall
	ToolCallID   string          `json:"tool_call_id,omitempty"`
	ToolName     string          `json:"tool_name,omitempty"`
	ToolArgsJSON json.RawMessage `json:"tool_args_json,omitempty"`

	// PartToolResult
	ToolResultJSON json.RawMessage `json:"tool_result_json,omitempty"`
	ToolOK         bool            `json:"tool_ok,omitempty"`
}

// Text builds a text Part.
func Text(s string) Part { return Part{Kind: PartText, Text: s} }

// Image builds an image Part.
func Image(data []byte, mime string) Part {
	return Part{Kind: PartImage, ImageBytes: data, MimeType: mime}
}

// FileRef builds a file-reference Part.
func FileRef(path, mime string) Part {
	return Part{Kind: PartFileRef, Path: path, MimeType: mime}
}

// ToolCall builds a tool-call Part.
func ToolCall(id, name string, args json.RawMessage) Part {
	return Part{Kind: PartToolCall, ToolCallID: id, ToolName: name, ToolArgsJSON: args}
}

// ToolResult builds a tool-result Part referencing the call it answers.
func ToolResult(id string, value json.RawMessage, ok bool) Part {
	return Part{Kind: PartToolResult, ToolCallID: id, ToolResultJSON: value, ToolOK: ok}
}

// Message is one turn-element: a role plus an ordered sequence of Parts.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// TextContent concatenates all text parts, the way a caller that only wants
// the prose (e.g. for title generation or serialized-size estimation) needs.
func (m Message) TextContent() string {
	var out string
	for _, p := range m.Parts {
		if p.Kind == PartText {
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}

// ToolCallIDs returns the ids of every ToolCall part in the message.
func (m Message) ToolCallIDs() []string {
	var ids []string
	for _, p := range m.Parts {
		if p.Kind == PartToolCall {
			ids = append(ids, p.ToolCallID)
		}
	}
	return ids
}

// ToolResultIDs returns the ids every ToolResult part in the message answers.
func (m Message) ToolResultIDs() map[string]bool {
	ids := map[string]bool{}
	for _, p := range m.Parts {
		if p.Kind == PartToolResult {
			ids[p.ToolCallID] = true
		}
	}
	return ids
}

// ConversationState is an ordered sequence of Message, owned by the
// Controller and cloned into the Agent Runtime for each turn.
type ConversationState struct {
	Messages []Message
}

// Clone returns a deep-enough copy for the runtime to mutate independently
// of the Controller's retained state during a turn.
func (c ConversationState) Clone() ConversationState {
	out := make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		parts := make([]Part, len(m.Parts))
		copy(parts, m.Parts)
		out[i] = Message{Role: m.Role, Parts: parts}
	}
	return ConversationState{Messages: out}
}
