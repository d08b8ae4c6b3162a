package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testRow(id string) SessionRow {
	now := time.Now().UTC()
	return SessionRow{
		ID:            id,
		ProjectID:     "proj-1",
		WorkspacePath: "/repo/.session-workspaces/session-" + id,
		BranchName:    "session-" + id,
		Status:        "running",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestCreateAndGetSession(t *testing.T) {
	st := newTestStore(t)
	row := testRow("test1")

	require.NoError(t, st.CreateSession(row))

	got, err := st.GetSession("test1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, row.ID, got.ID)
	assert.Equal(t, row.ProjectID, got.ProjectID)
	assert.Equal(t, row.WorkspacePath, got.WorkspacePath)
	assert.Equal(t, row.BranchName, got.BranchName)
	assert.Equal(t, row.Status, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestGetSessionNotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetSession("nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSessions(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.CreateSession(testRow("s1")))
	require.NoError(t, st.CreateSession(testRow("s2")))
	require.NoError(t, st.CreateSession(testRow("s3")))

	sessions, err := st.ListSessions()
	require.NoError(t, err)
	assert.Len(t, sessions, 3)
}

func TestListSessionsEmpty(t *testing.T) {
	st := newTestStore(t)

	sessions, err := st.ListSessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestUpdateStatus(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateSession(testRow("s1")))

	require.NoError(t, st.UpdateStatus("s1", "terminated"))

	got, err := st.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, "terminated", got.Status)
}

func TestUpdateStatusNotFound(t *testing.T) {
	st := newTestStore(t)

	err := st.UpdateStatus("nonexistent", "terminated")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAutoYes(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateSession(testRow("s1")))

	require.NoError(t, st.UpdateAutoYes("s1", true))

	got, err := st.GetSession("s1")
	require.NoError(t, err)
	assert.True(t, got.AutoYes)
}

func TestUpdateOutputLog(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateSession(testRow("s1")))

	require.NoError(t, st.UpdateOutputLog("s1", "line one\nline two"))

	got, err := st.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", got.OutputLog)
}

func TestUpdateErrorMessage(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateSession(testRow("s1")))

	require.NoError(t, st.UpdateErrorMessage("s1", "child process exited unexpectedly"))

	got, err := st.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, "child process exited unexpectedly", got.ErrorMessage)
}

func TestDeleteSession(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateSession(testRow("s1")))

	require.NoError(t, st.DeleteSession("s1"))

	_, err := st.GetSession("s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSessionNotFound(t *testing.T) {
	st := newTestStore(t)

	err := st.DeleteSession("nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDuplicateSessionID(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateSession(testRow("dup")))

	err := st.CreateSession(testRow("dup"))
	assert.Error(t, err)
}
