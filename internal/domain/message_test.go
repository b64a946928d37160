package domain

import "testing"

func TestMessage_TextContent(t *testing.T) {
	m := Message{Role: RoleAssistant, Parts: []Part{
		Text("hello"),
		ToolCall("c1", "grep", nil),
		Text("world"),
	}}
	if got, want := m.TextContent(), "hello\nworld"; got != want {
		t.Errorf("TextContent() = %q, want %q", got, want)
	}
}

func TestMessage_ToolCallAndResultIDs(t *testing.T) {
	m := Message{Role: RoleAssistant, Parts: []Part{
		ToolCall("c1", "grep", nil),
		ToolCall("c2", "ls", nil),
	}}
	ids := m.ToolCallIDs()
	if len(ids) != 2 || ids[0] != "c1" || ids[1] != "c2" {
		t.Fatalf("ToolCallIDs() = %v", ids)
	}

	res := Message{Role: RoleUser, Parts: []Part{
		ToolResult("c1", nil, true),
	}}
	rids := res.ToolResultIDs()
	if !rids["c1"] || rids["c2"] {
		t.Fatalf("ToolResultIDs() = %v", rids)
	}
}

func TestConversationState_Clone_isIndependent(t *testing.T) {
	cs := ConversationState{Messages: []Message{{Role: RoleUser, Parts: []Part{Text("a")}}}}
	clone := cs.Clone()
	clone.Messages[0].Parts[0] = Text("b")
	if cs.Messages[0].Parts[0].Text != "a" {
		t.Fatalf("Clone must not alias the original slice header, got %q", cs.Messages[0].Parts[0].Text)
	}
}
