package manager

import (
	"context"

	"github.com/dairui1/claudia/internal/process"
	"github.com/dairui1/claudia/internal/session"
	"github.com/dairui1/claudia/internal/workspace"
)

// spawnerAdapter narrows *process.Spawner's Spawn (which returns the
// concrete *process.Handle) to the ChildSpawner interface (which returns
// session.ChildHandle). Go requires an exact method-signature match for
// interface satisfaction, so the concrete spawner cannot implement
// ChildSpawner directly even though *process.Handle implements
// session.ChildHandle.
type spawnerAdapter struct {
	spawner *process.Spawner
}

// NewSpawnerAdapter wraps a concrete process.Spawner as a ChildSpawner.
func NewSpawnerAdapter(spawner *process.Spawner) ChildSpawner {
	return spawnerAdapter{spawner: spawner}
}

func (a spawnerAdapter) Spawn(ctx context.Context, sess *session.Session, sink process.EventSink) (session.ChildHandle, error) {
	return a.spawner.Spawn(ctx, sess, sink)
}

// isolatorFactoryAdapter adapts workspace.New to IsolatorFactory for the
// same reason: workspace.New returns *workspace.Isolator, not the
// manager.Isolator interface.
type isolatorFactoryAdapter struct{}

// NewIsolatorFactory returns an IsolatorFactory backed by workspace.New.
func NewIsolatorFactory() IsolatorFactory {
	return isolatorFactoryAdapter{}
}

func (isolatorFactoryAdapter) New(repoPath, sessionID, branchPrefix string) Isolator {
	return workspace.New(repoPath, sessionID, branchPrefix)
}
