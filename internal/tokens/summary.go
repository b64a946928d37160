package tokens

import "github.com/corehost/agentcore/internal/domain"

// Summarize is a caller-supplied function that turns the dropped middle
// section into a short prose summary, typically backed by a cheap model
// call through a ModelClient. It is injected rather than imported so this
// package has no dependency on any model client.
type Summarize func(dropped []domain.Message) string

// CompactWithSummary layers the teacher's richer behavior on top of the
// pure Compact: when a compaction actually drops messages, it inserts a
// synthetic assistant message carrying summarize's description of what was
// lost, between the retained first element and the retained tail. It never
// changes the result of Compact itself — callers that only need the exact
// spec behavior should call Compact directly.
func CompactWithSummary(messages []domain.Message, keepRecent int, summarize Summarize) CompactResult {
	tailStart := len(messages) - keepRecent
	if len(messages) <= keepRecent+1 || tailStart < 1 {
		return Compact(messages, keepRecent)
	}

	dropped := messages[1:tailStart]
	result := Compact(messages, keepRecent)
	if !result.DidCompact || summarize == nil {
		return result
	}

	notice := domain.Message{
		Role: domain.RoleAssistant,
		Parts: []domain.Part{domain.Text(
			"[conversation compacted — " + summarize(dropped) + "]",
		)},
	}
	out := make([]domain.Message, 0, len(result.Messages)+1)
	out = append(out, result.Messages[0], notice)
	out = append(out, result.Messages[1:]...)
	result.Messages = out
	result.Summary = notice.Parts[0].Text
	return result
}
