package tokens

import (
	"strconv"
	"testing"

	"github.com/corehost/agentcore/internal/domain"
)

func msgs(n int) []domain.Message {
	out := make([]domain.Message, n)
	for i := range out {
		out[i] = domain.Message{Role: domain.RoleUser, Parts: []domain.Part{domain.Text("m")}}
	}
	return out
}

func TestEstimateTokens_empty(t *testing.T) {
	if got := EstimateTokens(nil); got != 0 {
		t.Fatalf("EstimateTokens(nil) = %d, want 0", got)
	}
}

func TestShouldCompact_zeroWindow(t *testing.T) {
	if ShouldCompact(1000, 0, 0.8) {
		t.Fatal("ShouldCompact must be false when window == 0")
	}
}

func TestShouldCompact_threshold(t *testing.T) {
	if !ShouldCompact(80, 100, 0.8) {
		t.Fatal("80/100 >= 0.8 should compact")
	}
	if ShouldCompact(79, 100, 0.8) {
		t.Fatal("79/100 < 0.8 should not compact")
	}
}

func TestCompact_noopWhenShort(t *testing.T) {
	m := msgs(5)
	r := Compact(m, 5)
	if r.DidCompact {
		t.Fatal("expected no-op for len <= keepRecent+1")
	}
	if len(r.Messages) != 5 {
		t.Fatalf("len = %d, want 5", len(r.Messages))
	}
}

func TestCompact_literalScenario(t *testing.T) {
	// 20 messages m0..m19, compact(., 5) -> [m0, m15, m16, m17, m18, m19]
	m := make([]domain.Message, 20)
	for i := range m {
		m[i] = domain.Message{Role: domain.RoleUser, Parts: []domain.Part{domain.Text(label(i))}}
	}
	r := Compact(m, 5)
	if !r.DidCompact {
		t.Fatal("expected compaction")
	}
	if len(r.Messages) != 6 {
		t.Fatalf("len = %d, want 6", len(r.Messages))
	}
	want := []string{"m0", "m15", "m16", "m17", "m18", "m19"}
	for i, w := range want {
		if r.Messages[i].TextContent() != w {
			t.Fatalf("Messages[%d] = %q, want %q", i, r.Messages[i].TextContent(), w)
		}
	}

	// Idempotent: compacting again with the same keepRecent is a no-op.
	r2 := Compact(r.Messages, 5)
	if r2.DidCompact {
		t.Fatal("second compact() with same keepRecent must be a no-op")
	}
	if len(r2.Messages) != len(r.Messages) {
		t.Fatalf("re-compact changed length: %d vs %d", len(r2.Messages), len(r.Messages))
	}
}

func label(i int) string {
	return "m" + strconv.Itoa(i)
}
