package sessionstore

import (
	"database/sql"
	"testing"
	"time"

	"github.com/corehost/agentcore/internal/domain"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, maxSessions int) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := NewFromDB(db, maxSessions)
	require.NoError(t, err)
	return s
}

func sampleMessages() []domain.Message {
	return []domain.Message{
		{Role: domain.RoleUser, Parts: []domain.Part{domain.Text("hi")}},
		{Role: domain.RoleAssistant, Parts: []domain.Part{domain.Text("hello")}},
	}
}

func TestSaveLoad_roundTrip(t *testing.T) {
	s := newTestStore(t, 0)
	msgs := sampleMessages()
	require.NoError(t, s.Save("s1", msgs, "planner", "gpt-4o"))

	blob, err := s.Load("s1")
	require.NoError(t, err)
	require.Equal(t, "planner", blob.Meta.Agent)
	require.Equal(t, "gpt-4o", blob.Meta.Model)
	require.Len(t, blob.Messages, 2)
	require.Equal(t, "hi", blob.Messages[0].TextContent())
}

func TestLoad_notFound(t *testing.T) {
	s := newTestStore(t, 0)
	_, err := s.Load("missing")
	require.Error(t, err)
}

func TestDelete_rejectsPathSeparators(t *testing.T) {
	s := newTestStore(t, 0)
	require.Error(t, s.Delete("../etc/passwd"))
	require.Error(t, s.Delete("a/b"))
	require.NoError(t, s.Delete("never-existed")) // idempotent
}

func TestList_sortedByUpdatedDesc(t *testing.T) {
	s := newTestStore(t, 0)
	require.NoError(t, s.Save("s1", sampleMessages(), "a", "m"))
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, s.Save("s2", sampleMessages(), "a", "m"))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "s2", list[0].Name)
	require.Equal(t, "s1", list[1].Name)
}

func TestSave_prunesOverflowByOldestUpdated(t *testing.T) {
	s := newTestStore(t, 2)
	require.NoError(t, s.Save("s1", sampleMessages(), "a", "m"))
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, s.Save("s2", sampleMessages(), "a", "m"))
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, s.Save("s3", sampleMessages(), "a", "m"))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, m := range list {
		require.NotEqual(t, "s1", m.Name)
	}
}

func TestGenerateName_collisionSuffix(t *testing.T) {
	s := newTestStore(t, 0)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	n1, err := s.GenerateName("planner", now)
	require.NoError(t, err)
	require.NoError(t, s.Save(n1, sampleMessages(), "planner", "m"))

	n2, err := s.GenerateName("planner", now)
	require.NoError(t, err)
	require.NotEqual(t, n1, n2)
}

func TestAutosave_newSessionRequiresTwoMessages(t *testing.T) {
	s := newTestStore(t, 0)
	name, err := s.Autosave("", []domain.Message{{Role: domain.RoleUser, Parts: []domain.Part{domain.Text("hi")}}}, "a", "m", time.Now())
	require.NoError(t, err)
	require.Empty(t, name)

	name, err = s.Autosave("", sampleMessages(), "a", "m", time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, name)
	exists, err := s.Exists(name)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestAutosave_existingSessionOverwritesSilently(t *testing.T) {
	s := newTestStore(t, 0)
	require.NoError(t, s.Save("current", sampleMessages(), "a", "m"))
	name, err := s.Autosave("current", sampleMessages(), "a", "m", time.Now())
	require.NoError(t, err)
	require.Equal(t, "current", name)
}

func TestBranch_copiesUpToCutoff(t *testing.T) {
	s := newTestStore(t, 0)
	msgs := append(sampleMessages(), domain.Message{Role: domain.RoleUser, Parts: []domain.Part{domain.Text("third")}})
	require.NoError(t, s.Save("base", msgs, "a", "m"))

	meta, err := s.Branch("base", 2)
	require.NoError(t, err)
	require.Equal(t, "base", meta.ParentSession)
	require.Equal(t, 2, meta.BranchPoint)

	blob, err := s.Load(meta.Name)
	require.NoError(t, err)
	require.Len(t, blob.Messages, 2)
}
