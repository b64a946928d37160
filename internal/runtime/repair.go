package runtime

import "github.com/corehost/agentcore/internal/domain"

// repairDanglingToolCalls drops any assistant message whose ToolCall parts
// are not fully answered by the immediately following user message, along
// with that following message if it holds a partial tool_result — the
// state a session lands in when the host process dies mid tool-call and
// the conversation is resumed. A model API rejects a history with an
// unanswered tool_use block, so the orphaned pair cannot simply be left in
// place. Grounded verbatim on the teacher's
// internal/agent.repairDanglingToolUseMessages, which drops the same pair
// rather than inserting a synthetic result.
func repairDanglingToolCalls(history []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(history))

	for i := 0; i < len(history); i++ {
		cur := history[i]
		if cur.Role != domain.RoleAssistant {
			out = append(out, cur)
			continue
		}

		pending := cur.ToolCallIDs()
		if len(pending) == 0 {
			out = append(out, cur)
			continue
		}

		if i+1 >= len(history) {
			continue
		}
		next := history[i+1]
		if next.Role != domain.RoleUser {
			continue
		}

		answered := next.ToolResultIDs()
		allMatched := true
		for _, id := range pending {
			if !answered[id] {
				allMatched = false
				break
			}
		}
		if !allMatched {
			if len(answered) > 0 {
				i++ // drop the adjacent partial tool_result message too
			}
			continue
		}

		out = append(out, cur)
	}

	return out
}
