package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/dairui1/claudia/protocol"
)

// Terminate kills the session's child (if any), removes its workspace,
// drops it from the registry, and persists the Terminated status with a
// final output_log checkpoint. Safe to call on an already-terminal session.
func (m *Manager) Terminate(ctx context.Context, id string) error {
	ctx, span := withSpan(ctx, m.tracer, "Terminate")
	defer span.End()

	entry, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := entry.session.Terminate(); err != nil {
		m.logger.Warn("manager: terminate child", "session_id", id, "error", err)
	}
	if err := entry.isolator.Remove(ctx); err != nil {
		m.logger.Warn("manager: remove workspace", "session_id", id, "error", err)
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	m.persistStatus(id, protocol.StatusTerminated, entry.session)

	m.publish(protocol.SessionTerminated(id, time.Now()))
	m.logger.Info("session terminated", "session_id", id)
	return nil
}

// Pause commits any pending workspace changes (a no-op if there is
// nothing to commit), kills the child, and moves the session to Paused.
// A later Resume reattaches by spawning a fresh child in the same
// workspace.
func (m *Manager) Pause(ctx context.Context, id string) error {
	ctx, span := withSpan(ctx, m.tracer, "Pause")
	defer span.End()

	entry, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if entry.session.Status().IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, id)
	}

	if err := entry.isolator.CommitPending(ctx, "WIP: Pausing session"); err != nil {
		m.logger.Warn("manager: pause: commit pending changes", "session_id", id, "error", err)
	}

	if h, has := entry.session.ChildHandle(); has {
		if err := h.Terminate(); err != nil {
			m.logger.Warn("manager: pause: stop child", "session_id", id, "error", err)
		}
	}
	entry.session.ClearChild()
	entry.session.SetStatus(protocol.StatusPaused)
	m.persistStatus(id, protocol.StatusPaused, entry.session)

	m.publish(protocol.StatusChanged(id, protocol.StatusPaused, time.Now()))
	return nil
}

// Resume respawns the child for a paused session in its existing
// workspace.
func (m *Manager) Resume(ctx context.Context, id string) error {
	ctx, span := withSpan(ctx, m.tracer, "Resume")
	defer span.End()

	entry, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if entry.session.Status() != protocol.StatusPaused {
		return fmt.Errorf("%w: %s", ErrNotPaused, id)
	}

	handle, err := m.spawner.Spawn(ctx, entry.session, m.spawnSink(entry.session))
	if err != nil {
		return fmt.Errorf("resume: spawn child: %w", err)
	}
	entry.session.SetChild(handle)
	entry.session.SetStatus(protocol.StatusRunning)
	m.persistStatus(id, protocol.StatusRunning, entry.session)

	m.publish(protocol.StatusChanged(id, protocol.StatusRunning, time.Now()))
	return nil
}

// SendInput writes text to the session's child stdin. Also satisfies
// autoresponder.SessionSource.
func (m *Manager) SendInput(id string, text string) error {
	entry, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	h, has := entry.session.ChildHandle()
	if !has {
		return fmt.Errorf("%w: %s", ErrNotRunning, id)
	}
	return h.SendInput(text)
}

// UpdateAutoYes flips a session's auto-respond opt-in, persisting the
// change. Any other field named in an update request that this Manager
// does not model is accepted and ignored, returning success with no
// effect.
func (m *Manager) UpdateAutoYes(id string, autoYes bool) error {
	entry, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	entry.session.SetAutoYes(autoYes)
	if err := m.persist.UpdateAutoYes(id, autoYes); err != nil {
		m.logger.Error("manager: persist auto_yes", "session_id", id, "error", err)
	}
	return nil
}
