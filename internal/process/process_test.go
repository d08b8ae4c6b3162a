package process

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dairui1/claudia/internal/session"
	"github.com/dairui1/claudia/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectStatus(t *testing.T) {
	cases := []struct {
		line string
		want protocol.Status
		ok   bool
	}{
		{"Human: what next?", protocol.StatusReady, true},
		{"Working on it...", protocol.StatusLoading, true},
		{"Thinking hard", protocol.StatusLoading, true},
		{"Running tests", protocol.StatusRunning, true},
		{"Executing plan", protocol.StatusRunning, true},
		{"Task Complete", protocol.StatusCompleted, true},
		{"Done.", protocol.StatusCompleted, true},
		{"just some chatter", "", false},
	}
	for _, c := range cases {
		got, ok := DetectStatus(c.line)
		assert.Equal(t, c.ok, ok, c.line)
		assert.Equal(t, c.want, got, c.line)
	}
}

func TestIsCriticalError(t *testing.T) {
	assert.True(t, IsCriticalError("FATAL: disk full"))
	assert.True(t, IsCriticalError("CRITICAL failure"))
	assert.True(t, IsCriticalError("Failed to initialize runtime"))
	assert.True(t, IsCriticalError("Permission denied opening file"))
	assert.False(t, IsCriticalError("warning: deprecated flag"))
}

type fakeSink struct {
	mu     sync.Mutex
	events []protocol.Event
}

func (f *fakeSink) Publish(e protocol.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeSink) snapshot() []protocol.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Event, len(f.events))
	copy(out, f.events)
	return out
}

func newTestSession(t *testing.T, workdir string) *session.Session {
	t.Helper()
	cfg := session.ResolveConfig(session.Config{WorkingDirectory: workdir})
	return session.New("sess-proc", "proj", workdir, cfg)
}

func TestSpawnDetectsReadyStatusAndAppendsOutput(t *testing.T) {
	sess := newTestSession(t, t.TempDir())
	cfg := sess.Config()
	cfg.ChildArgs = []string{"-c", "echo 'Human: hello'"}
	sess = session.New(sess.ID(), sess.ProjectID(), sess.ProjectPath(), cfg)

	sp := NewSpawner("/bin/sh", nil)
	sink := &fakeSink{}
	handle, err := sp.Spawn(context.Background(), sess, sink)
	require.NoError(t, err)
	sess.SetChild(handle)

	require.Eventually(t, func() bool {
		return sess.Status() == protocol.StatusReady
	}, 2*time.Second, 10*time.Millisecond)

	found := false
	for _, e := range sink.snapshot() {
		if e.Kind == protocol.EventOutputAppended && e.Line == "Human: hello" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSpawnDetectsCriticalStderr(t *testing.T) {
	sess := newTestSession(t, t.TempDir())
	cfg := sess.Config()
	cfg.ChildArgs = []string{"-c", "echo 'FATAL: boom' 1>&2"}
	sess = session.New(sess.ID(), sess.ProjectID(), sess.ProjectPath(), cfg)

	sp := NewSpawner("/bin/sh", nil)
	sink := &fakeSink{}
	handle, err := sp.Spawn(context.Background(), sess, sink)
	require.NoError(t, err)
	sess.SetChild(handle)

	require.Eventually(t, func() bool {
		return sess.Status() == protocol.StatusError
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "FATAL: boom", sess.ErrorMessage())
}

func TestHandleAliveBecomesFalseAfterExit(t *testing.T) {
	sess := newTestSession(t, t.TempDir())
	cfg := sess.Config()
	cfg.ChildArgs = []string{"-c", "exit 0"}
	sess = session.New(sess.ID(), sess.ProjectID(), sess.ProjectPath(), cfg)

	sp := NewSpawner("/bin/sh", nil)
	handle, err := sp.Spawn(context.Background(), sess, &fakeSink{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !handle.Alive()
	}, 2*time.Second, 10*time.Millisecond)
}
