package session

import (
	"testing"

	"github.com/dairui1/claudia/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession() *Session {
	cfg := ResolveConfig(Config{MaxOutputBuffer: 3})
	return New("sess-1", "proj-1", "/repo/proj", cfg)
}

func TestNewSessionStartsInitializing(t *testing.T) {
	s := newTestSession()
	assert.Equal(t, protocol.StatusInitializing, s.Status())
	assert.Empty(t, s.WorkspacePath())
	assert.False(t, s.AutoYes())
}

func TestSetWorkspacePopulatesBeforeRegistration(t *testing.T) {
	s := newTestSession()
	s.SetWorkspace("/repo/.session-workspaces/session-abcd1234", "session-abcd1234")
	assert.Equal(t, "/repo/.session-workspaces/session-abcd1234", s.WorkspacePath())
	assert.Equal(t, "session-abcd1234", s.BranchName())
}

func TestAppendOutputRingBufferEvictsOldest(t *testing.T) {
	s := newTestSession()
	s.AppendOutput("one")
	s.AppendOutput("two")
	s.AppendOutput("three")
	s.AppendOutput("four")

	got := s.GetRecent(10)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"two", "three", "four"}, got)
}

func TestGetRecentFewerThanRequested(t *testing.T) {
	s := newTestSession()
	s.AppendOutput("only")
	assert.Equal(t, []string{"only"}, s.GetRecent(5))
}

func TestSetErrorMovesToErrorStatus(t *testing.T) {
	s := newTestSession()
	s.SetError("child process exited unexpectedly")
	assert.Equal(t, protocol.StatusError, s.Status())
	assert.Equal(t, "child process exited unexpectedly", s.ErrorMessage())
}

type fakeChild struct {
	terminated bool
	alive      bool
}

func (f *fakeChild) Terminate() error     { f.terminated = true; f.alive = false; return nil }
func (f *fakeChild) Alive() bool          { return f.alive }
func (f *fakeChild) SendInput(string) error { return nil }

func TestTerminateDropsChildAndSignalsIt(t *testing.T) {
	s := newTestSession()
	child := &fakeChild{alive: true}
	s.SetChild(child)

	require.NoError(t, s.Terminate())

	assert.True(t, child.terminated)
	assert.Equal(t, protocol.StatusTerminated, s.Status())
	_, ok := s.ChildHandle()
	assert.False(t, ok)
}

func TestSnapshotIncludesOutputPreview(t *testing.T) {
	s := newTestSession()
	s.AppendOutput("a")
	s.AppendOutput("b")
	info := s.Snapshot(nil)
	assert.Equal(t, "a\nb", info.OutputPreview)
	assert.Equal(t, "sess-1", info.ID)
}

func TestSetAutoYesIsIndependentlyMutable(t *testing.T) {
	s := newTestSession()
	s.SetAutoYes(true)
	assert.True(t, s.AutoYes())
}
