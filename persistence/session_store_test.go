package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/rlshost/host"
)

func newStore(t *testing.T) *SessionStore {
	t.Helper()
	store, err := NewSessionStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordStartAndEnd(t *testing.T) {
	store := newStore(t)
	id := uuid.NewString()

	require.NoError(t, store.RecordStart(host.SessionRecord{
		ID:         id,
		Strategy:   host.StrategyToolchain,
		Executable: "rustup",
		Workspace:  "/work",
		StartedAt:  time.Now(),
	}))
	require.NoError(t, store.RecordEnd(id, 101, "signal: killed"))

	sessions, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	sess := sessions[0]
	require.Equal(t, id, sess.ID)
	require.Equal(t, string(host.StrategyToolchain), sess.Strategy)
	require.NotNil(t, sess.EndedAt)
	require.NotNil(t, sess.ExitCode)
	require.Equal(t, 101, *sess.ExitCode)
	require.Equal(t, "signal: killed", sess.Fault)
}

func TestRecordStartRequiresID(t *testing.T) {
	store := newStore(t)
	require.Error(t, store.RecordStart(host.SessionRecord{}))
}

func TestRecordEndUnknownSession(t *testing.T) {
	store := newStore(t)
	require.Error(t, store.RecordEnd("missing", 0, ""))
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	store := newStore(t)
	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		id := uuid.NewString()
		ids = append(ids, id)
		require.NoError(t, store.RecordStart(host.SessionRecord{
			ID:        id,
			Strategy:  host.StrategyPath,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	sessions, err := store.Recent(2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, ids[2], sessions[0].ID)
	require.Equal(t, ids[1], sessions[1].ID)
}
