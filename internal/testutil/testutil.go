// Package testutil provides fakes for the Manager's collaborator
// interfaces (Isolator, IsolatorFactory, ChildSpawner) so
// internal/manager's tests can exercise create/pause/resume/terminate
// end to end without a real git checkout or a real child process.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/dairui1/claudia/internal/manager"
	"github.com/dairui1/claudia/internal/process"
	"github.com/dairui1/claudia/internal/session"
	"github.com/dairui1/claudia/protocol"
)

// FakeIsolator satisfies manager.Isolator without touching disk or git.
type FakeIsolator struct {
	mu sync.Mutex

	workspacePath string
	branchName    string

	CreateErr error
	RemoveErr error
	Diff      protocol.DiffStats

	Created bool
	Removed bool
	Commits []string
}

func NewFakeIsolator(workspacePath, branchName string) *FakeIsolator {
	return &FakeIsolator{workspacePath: workspacePath, branchName: branchName}
}

func (f *FakeIsolator) Create(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return f.CreateErr
	}
	f.Created = true
	return nil
}

func (f *FakeIsolator) Remove(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	f.Removed = true
	return nil
}

func (f *FakeIsolator) DiffStats(context.Context) protocol.DiffStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Diff
}

func (f *FakeIsolator) CommitPending(_ context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commits = append(f.Commits, message)
	return nil
}

func (f *FakeIsolator) WorkspacePath() string { return f.workspacePath }
func (f *FakeIsolator) BranchName() string    { return f.branchName }

// FakeIsolatorFactory derives a FakeIsolator per session, keyed off the
// same short-id scheme workspace.New uses, so callers can assert on
// unique paths without invoking git.
type FakeIsolatorFactory struct {
	mu   sync.Mutex
	Made []*FakeIsolator
}

func (f *FakeIsolatorFactory) New(repoPath, sessionID, branchPrefix string) manager.Isolator {
	f.mu.Lock()
	defer f.mu.Unlock()
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	iso := NewFakeIsolator(
		fmt.Sprintf("%s/.session-workspaces/session-%s", repoPath, short),
		fmt.Sprintf("%s-%s", branchPrefix, short),
	)
	f.Made = append(f.Made, iso)
	return iso
}

// FakeChildHandle satisfies session.ChildHandle for tests that never spawn
// a real process.
type FakeChildHandle struct {
	mu sync.Mutex

	alive   bool
	Sent    []string
	SendErr error
}

func NewFakeChildHandle() *FakeChildHandle {
	return &FakeChildHandle{alive: true}
}

func (f *FakeChildHandle) Terminate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = false
	return nil
}

func (f *FakeChildHandle) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *FakeChildHandle) SendInput(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.Sent = append(f.Sent, text)
	return nil
}

// FakeSpawner satisfies manager.ChildSpawner, handing out a fresh
// FakeChildHandle per call (or SpawnErr, if set) without ever forking a
// process.
type FakeSpawner struct {
	mu       sync.Mutex
	SpawnErr error
	Handles  []*FakeChildHandle
}

func (f *FakeSpawner) Spawn(_ context.Context, _ *session.Session, _ process.EventSink) (session.ChildHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SpawnErr != nil {
		return nil, f.SpawnErr
	}
	h := NewFakeChildHandle()
	f.Handles = append(f.Handles, h)
	return h, nil
}
