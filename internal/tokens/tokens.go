// Package tokens implements the host's token approximation and history
// compaction. The core does not attempt exact token counting (§1
// Non-goals); the formula here is the documented approximation, grounded on
// the original source's src/tokens.rs: per-message cost is
// max(10, serialized_length/4).
package tokens

import (
	"encoding/json"

	"github.com/corehost/agentcore/internal/domain"
)

// EstimateTokens sums the per-message estimate over messages. An empty
// input yields 0.
func EstimateTokens(messages []domain.Message) int {
	total := 0
	for _, m := range messages {
		total += estimateMessage(m)
	}
	return total
}

func estimateMessage(m domain.Message) int {
	data, err := json.Marshal(m)
	if err != nil {
		return 10
	}
	n := len(data) / 4
	if n < 10 {
		return 10
	}
	return n
}

// ShouldCompact reports whether the current token count has crossed
// threshold of the context window. A zero window always returns false —
// there is nothing to ratio against.
func ShouldCompact(tokens, window int, threshold float64) bool {
	if window == 0 {
		return false
	}
	return float64(tokens)/float64(window) >= threshold
}

// CompactResult is the outcome of Compact.
type CompactResult struct {
	Messages   []domain.Message
	Dropped    int
	DidCompact bool
	Summary    string // supplemented: set only by CompactWithSummary
}

// Compact retains element 0 (the system prompt, by convention) plus the
// last keepRecent elements, preserving order. It is a no-op when
// len(messages) <= keepRecent+1, and idempotent: compacting an
// already-compacted sequence with the same keepRecent changes nothing,
// because the already-compacted sequence already satisfies the no-op
// length bound.
func Compact(messages []domain.Message, keepRecent int) CompactResult {
	if keepRecent < 0 {
		keepRecent = 0
	}
	if len(messages) <= keepRecent+1 {
		return CompactResult{Messages: messages, DidCompact: false}
	}

	tailStart := len(messages) - keepRecent
	out := make([]domain.Message, 0, keepRecent+1)
	out = append(out, messages[0])
	out = append(out, messages[tailStart:]...)

	return CompactResult{
		Messages:   out,
		Dropped:    tailStart - 1,
		DidCompact: true,
	}
}
