package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dairui1/claudia/internal/session"
	"github.com/dairui1/claudia/internal/store"
	"github.com/dairui1/claudia/protocol"
)

// CreateOpts configures a new session. ProjectPath must be a git
// repository (or a path under one); if empty, the Manager's RepoPath is
// used.
type CreateOpts struct {
	ProjectID   string
	ProjectPath string
	Config      session.Config
}

// Create isolates a workspace, persists the session row, spawns its
// child, and registers it — in that order, so the store reflects a
// session as running before its child is confirmed alive.
func (m *Manager) Create(ctx context.Context, opts CreateOpts) (session.Info, error) {
	ctx, span := withSpan(ctx, m.tracer, "Create")
	defer span.End()

	if m.count() >= m.maxConcurrent {
		return session.Info{}, fmt.Errorf("%w: %d", ErrAtCapacity, m.maxConcurrent)
	}

	projectPath := opts.ProjectPath
	if projectPath == "" {
		projectPath = m.repoPath
	}

	cfg := opts.Config
	if cfg.BranchPrefix == "" {
		cfg.BranchPrefix = m.branchPrefix
	}
	if cfg.MaxOutputBuffer <= 0 {
		cfg.MaxOutputBuffer = m.maxOutputBuffer
	}
	cfg = session.ResolveConfig(cfg)

	id := uuid.New().String()
	sess := session.New(id, opts.ProjectID, projectPath, cfg)

	isolator := m.isolatorFactory.New(projectPath, id, cfg.BranchPrefix)
	if err := isolator.Create(ctx); err != nil {
		return session.Info{}, fmt.Errorf("isolate workspace: %w", err)
	}
	sess.SetWorkspace(isolator.WorkspacePath(), isolator.BranchName())

	now := time.Now().UTC()
	row := store.SessionRow{
		ID:            id,
		ProjectID:     opts.ProjectID,
		WorkspacePath: isolator.WorkspacePath(),
		BranchName:    isolator.BranchName(),
		Status:        string(protocol.StatusRunning),
		AutoYes:       cfg.AutoYes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.persist.CreateSession(row); err != nil {
		_ = isolator.Remove(ctx)
		return session.Info{}, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	handle, err := m.spawner.Spawn(ctx, sess, m.spawnSink(sess))
	if err != nil {
		_ = isolator.Remove(ctx)
		sess.SetError(err.Error())
		m.persistStatus(id, protocol.StatusError, sess)
		return session.Info{}, fmt.Errorf("spawn child: %w", err)
	}
	sess.SetChild(handle)
	sess.SetStatus(protocol.StatusRunning)

	m.mu.Lock()
	m.sessions[id] = &registryEntry{session: sess, isolator: isolator}
	m.mu.Unlock()

	at := time.Now()
	m.publish(protocol.SessionCreated(id, at))
	m.publish(protocol.StatusChanged(id, protocol.StatusRunning, at))

	m.logger.Info("session created", "session_id", id, "project_id", opts.ProjectID, "branch", isolator.BranchName())

	return sess.Snapshot(nil), nil
}
