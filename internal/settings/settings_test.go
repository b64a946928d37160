package settings

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := NewFromDB(db)
	require.NoError(t, err)
	return s
}

func TestSetGetDelete_roundTrip(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.Get("k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set("k", "v"))
	v, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	require.NoError(t, s.Delete("k"))
	_, ok, err = s.Get("k")
	require.NoError(t, err)
	require.False(t, ok)

	// Deleting a never-set key succeeds.
	require.NoError(t, s.Delete("never-set"))
}

func TestList_sortedByKey(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("b", "2"))
	require.NoError(t, s.Set("a", "1"))

	rows, err := s.List()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "a", rows[0].Key)
	require.Equal(t, "b", rows[1].Key)
}

func TestGetBool(t *testing.T) {
	s := newTestStore(t)
	for _, truthy := range []string{"true", "1", "yes", "on", "TRUE", "On"} {
		require.NoError(t, s.Set("flag", truthy))
		require.True(t, s.GetBool("flag"), truthy)
	}
	for _, falsy := range []string{"false", "0", "no", "off", "garbage", ""} {
		require.NoError(t, s.Set("flag", falsy))
		require.False(t, s.GetBool("flag"), falsy)
	}
	require.False(t, s.GetBool("missing"))
}

func TestAgentPins_lifecycle(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.GetAgentPinnedModel("planner")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetAgentPinnedModel("planner", "claude-3-opus"))
	v, ok, err := s.GetAgentPinnedModel("planner")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "claude-3-opus", v)

	all, err := s.GetAllAgentPins()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"planner": "claude-3-opus"}, all)

	require.NoError(t, s.ClearAgentPinnedModel("planner"))
	_, ok, err = s.GetAgentPinnedModel("planner")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAgentMCPs_parseAndClear(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set(mcpAttachPrefix+"coder", " fs , git ,, web "))
	got, err := s.GetAgentMCPs("coder")
	require.NoError(t, err)
	require.Equal(t, []string{"fs", "git", "web"}, got)

	require.NoError(t, s.SetAgentMCPs("coder", nil))
	all, err := s.GetAllAgentMCPs()
	require.NoError(t, err)
	require.Nil(t, all["coder"])
}

func TestAgentNameWithDots_staysValidKey(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetAgentPinnedModel("team.lead", "gpt-4o"))
	all, err := s.GetAllAgentPins()
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", all["team.lead"])
}
