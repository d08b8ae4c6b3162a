package manager

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dairui1/claudia/internal/autoresponder"
	"github.com/dairui1/claudia/internal/reaper"
	"github.com/dairui1/claudia/internal/session"
	"github.com/dairui1/claudia/protocol"
)

// Get returns a point-in-time snapshot of one session, including a
// freshly computed diff against its branch base.
func (m *Manager) Get(ctx context.Context, id string) (session.Info, error) {
	entry, ok := m.lookup(id)
	if !ok {
		return session.Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	diff := entry.isolator.DiffStats(ctx)
	m.publish(protocol.DiffUpdated(id, diff, time.Now()))
	return entry.session.Snapshot(&diff), nil
}

// GetOutput returns up to n of the most recent output lines.
func (m *Manager) GetOutput(id string, n int) ([]string, error) {
	entry, ok := m.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entry.session.GetRecent(n), nil
}

// GetDiff returns the session workspace's diff stats against its branch
// base.
func (m *Manager) GetDiff(ctx context.Context, id string) (protocol.DiffStats, error) {
	entry, ok := m.lookup(id)
	if !ok {
		return protocol.DiffStats{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	diff := entry.isolator.DiffStats(ctx)
	m.publish(protocol.DiffUpdated(id, diff, time.Now()))
	return diff, nil
}

// ListActive returns a snapshot of every session currently in the
// registry, each carrying a best-effort diff (a failed or slow git
// invocation yields zero stats rather than aborting the whole list), sorted
// by created_at descending.
func (m *Manager) ListActive(ctx context.Context) []session.Info {
	m.mu.RLock()
	entries := make([]*registryEntry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	infos := make([]session.Info, 0, len(entries))
	for _, e := range entries {
		diff := e.isolator.DiffStats(ctx)
		infos = append(infos, e.session.Snapshot(&diff))
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos
}

// HealthSnapshot satisfies reaper.SessionSource: a point-in-time liveness
// report for the health sweeper.
func (m *Manager) HealthSnapshot() []reaper.HealthEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]reaper.HealthEntry, 0, len(m.sessions))
	for id, e := range m.sessions {
		alive := true
		if h, has := e.session.ChildHandle(); has {
			alive = h.Alive()
		}
		entries = append(entries, reaper.HealthEntry{
			ID:     id,
			Status: e.session.Status(),
			Alive:  alive,
		})
	}
	return entries
}

// MarkCrashed satisfies reaper.SessionSource: moves a session whose child
// died without a terminal status token to Error.
func (m *Manager) MarkCrashed(id string, message string) error {
	entry, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	entry.session.ClearChild()
	entry.session.SetError(message)
	m.persistStatus(id, protocol.StatusError, entry.session)
	if err := m.persist.UpdateErrorMessage(id, message); err != nil {
		m.logger.Error("manager: persist error message failed", "session_id", id, "error", err)
	}

	at := entry.session.UpdatedAt()
	m.publish(protocol.StatusChanged(id, protocol.StatusError, at))
	m.publish(protocol.ErrorEvent(id, message, at))
	return nil
}

// ListEligible satisfies autoresponder.SessionSource: every session
// opted into auto-respond and currently Ready, with its recent output.
func (m *Manager) ListEligible() []autoresponder.EligibleSession {
	m.mu.RLock()
	entries := make([]*registryEntry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	var eligible []autoresponder.EligibleSession
	for _, e := range entries {
		if !e.session.AutoYes() || e.session.Status() != protocol.StatusReady {
			continue
		}
		eligible = append(eligible, autoresponder.EligibleSession{
			ID:          e.session.ID(),
			RecentLines: e.session.GetRecent(5),
		})
	}
	return eligible
}
