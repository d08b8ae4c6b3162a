package manager

import (
	"context"

	"github.com/dairui1/claudia/internal/autoresponder"
	"github.com/dairui1/claudia/internal/process"
	"github.com/dairui1/claudia/internal/reaper"
	"github.com/dairui1/claudia/internal/session"
	"github.com/dairui1/claudia/internal/store"
	"github.com/dairui1/claudia/protocol"
)

// Isolator is the Workspace Isolator's contract as the Manager sees it.
// Implemented by *workspace.Isolator.
type Isolator interface {
	Create(ctx context.Context) error
	Remove(ctx context.Context) error
	DiffStats(ctx context.Context) protocol.DiffStats
	CommitPending(ctx context.Context, message string) error
	WorkspacePath() string
	BranchName() string
}

// IsolatorFactory derives a fresh Isolator for a new session. Implemented
// by an adapter around workspace.New so tests can substitute a fake.
type IsolatorFactory interface {
	New(repoPath, sessionID, branchPrefix string) Isolator
}

// ChildSpawner is the Process Supervisor's contract as the Manager sees
// it. Implemented by an adapter around *process.Spawner.
type ChildSpawner interface {
	Spawn(ctx context.Context, sess *session.Session, sink process.EventSink) (session.ChildHandle, error)
}

// Persister is the persistence collaborator's contract.
type Persister interface {
	CreateSession(row store.SessionRow) error
	UpdateStatus(id string, status string) error
	UpdateAutoYes(id string, autoYes bool) error
	UpdateOutputLog(id string, log string) error
	UpdateErrorMessage(id string, message string) error
	DeleteSession(id string) error
}

var (
	_ reaper.SessionSource         = (*Manager)(nil)
	_ autoresponder.SessionSource = (*Manager)(nil)
)
