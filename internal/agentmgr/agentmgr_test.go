package agentmgr

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/settings"
	"github.com/stretchr/testify/require"
)

func newTestSettings(t *testing.T) *settings.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := settings.NewFromDB(db)
	require.NoError(t, err)
	return s
}

func TestListFiltered_byVisibility(t *testing.T) {
	m, err := New(newTestSettings(t), "fallback-model", []domain.AgentDefinition{
		{Name: "a", Visibility: domain.VisibilityNormal},
		{Name: "b", Visibility: domain.VisibilityExpert},
		{Name: "c", Visibility: domain.VisibilityDeveloper},
	})
	require.NoError(t, err)

	names := func(defs []domain.AgentDefinition) []string {
		out := make([]string, len(defs))
		for i, d := range defs {
			out[i] = d.Name
		}
		return out
	}

	require.Equal(t, []string{"a"}, names(m.ListFiltered(domain.VisibilityNormal)))
	require.Equal(t, []string{"a", "b"}, names(m.ListFiltered(domain.VisibilityExpert)))
	require.Equal(t, []string{"a", "b", "c"}, names(m.ListFiltered(domain.VisibilityDeveloper)))
}

func TestEffectiveModel_pinBeatsDefaultBeatsFallback(t *testing.T) {
	st := newTestSettings(t)
	m, err := New(st, "fallback-model", []domain.AgentDefinition{
		{Name: "no-default"},
		{Name: "has-default", DefaultModel: "agent-default-model"},
	})
	require.NoError(t, err)

	model, err := m.EffectiveModel("no-default")
	require.NoError(t, err)
	require.Equal(t, "fallback-model", model)

	model, err = m.EffectiveModel("has-default")
	require.NoError(t, err)
	require.Equal(t, "agent-default-model", model)

	require.NoError(t, st.SetAgentPinnedModel("has-default", "pinned-model"))
	model, err = m.EffectiveModel("has-default")
	require.NoError(t, err)
	require.Equal(t, "pinned-model", model)
}

func TestSwitch_rejectsUnknownAgent(t *testing.T) {
	m, err := New(newTestSettings(t), "fallback-model", DefaultBuiltins())
	require.NoError(t, err)
	require.Error(t, m.Switch("does-not-exist"))
	require.NoError(t, m.Switch("coder"))
	require.Equal(t, "coder", m.CurrentName())
}

func TestLoadDir_rejectsDuplicateName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dup.json"), []byte(`{"name":"assistant"}`), 0o600))

	m, err := New(newTestSettings(t), "fallback-model", DefaultBuiltins())
	require.NoError(t, err)
	require.Error(t, m.LoadDir(dir))
}

func TestLoadDir_addsNewAgent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "researcher.json"), []byte(`{"name":"researcher","display_name":"Researcher","visibility":"developer"}`), 0o600))

	m, err := New(newTestSettings(t), "fallback-model", nil)
	require.NoError(t, err)
	require.NoError(t, m.LoadDir(dir))

	a, ok := m.Get("researcher")
	require.True(t, ok)
	require.Equal(t, domain.VisibilityDeveloper, a.Visibility)
}

func TestResolve_matchesRuntimeAgentResolverShape(t *testing.T) {
	m, err := New(newTestSettings(t), "fallback-model", DefaultBuiltins())
	require.NoError(t, err)

	a, model, ok := m.Resolve("coder")
	require.True(t, ok)
	require.Equal(t, "coder", a.Name)
	require.Equal(t, "fallback-model", model)

	_, _, ok = m.Resolve("nope")
	require.False(t, ok)
}
