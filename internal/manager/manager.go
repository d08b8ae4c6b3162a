// Package manager implements the Session Manager: the single façade that
// owns the live registry, enforces the concurrency cap, and wires
// together the Workspace Isolator, Process Supervisor, and event bus for
// every other component. Split across
// manager.go/create.go/query.go/ops.go.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dairui1/claudia/internal/eventbus"
	"github.com/dairui1/claudia/internal/session"
	"github.com/dairui1/claudia/protocol"
)

// registryEntry bundles a live Session with the isolator that owns its
// workspace, so Terminate can tear down the worktree without a second
// lookup.
type registryEntry struct {
	session  *session.Session
	isolator Isolator
}

// Manager is safe for concurrent use.
type Manager struct {
	repoPath        string
	maxConcurrent   int
	branchPrefix    string
	maxOutputBuffer int

	persist         Persister
	isolatorFactory IsolatorFactory
	spawner         ChildSpawner
	bus             *eventbus.Bus
	logger          *slog.Logger
	tracer          trace.Tracer

	mu       sync.RWMutex
	sessions map[string]*registryEntry
}

// Options configures a new Manager. RepoPath is the git repository every
// session's workspace is isolated from.
type Options struct {
	RepoPath              string
	MaxConcurrentSessions int
	DefaultBranchPrefix   string
	DefaultMaxOutputBuffer int
	Persist               Persister
	IsolatorFactory       IsolatorFactory
	Spawner               ChildSpawner
	Bus                   *eventbus.Bus
	Logger                *slog.Logger
	Tracer                trace.Tracer
}

func New(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("manager")
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.New(0)
	}
	if opts.MaxConcurrentSessions <= 0 {
		opts.MaxConcurrentSessions = 8
	}
	return &Manager{
		repoPath:               opts.RepoPath,
		maxConcurrent:          opts.MaxConcurrentSessions,
		branchPrefix:           opts.DefaultBranchPrefix,
		maxOutputBuffer:        opts.DefaultMaxOutputBuffer,
		persist:                opts.Persist,
		isolatorFactory:        opts.IsolatorFactory,
		spawner:                opts.Spawner,
		bus:                    opts.Bus,
		logger:                 opts.Logger,
		tracer:                 opts.Tracer,
		sessions:               make(map[string]*registryEntry),
	}
}

// Subscribe returns a fresh cursor onto the Manager's event stream.
func (m *Manager) Subscribe() *eventbus.Subscription {
	return m.bus.Subscribe()
}

func (m *Manager) publish(evt protocol.Event) {
	m.bus.Publish(evt)
}

func (m *Manager) lookup(id string) (*registryEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	return e, ok
}

func (m *Manager) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// persistStatus mirrors a status transition to the store, logging but not
// failing the caller's operation on a write error — persistence is a
// mirror of the live registry, never its source of truth. It also
// refreshes the persisted output_log snapshot, since SPEC_FULL.md commits
// to checkpointing output on status transitions rather than per line.
func (m *Manager) persistStatus(id string, status protocol.Status, sess *session.Session) {
	if err := m.persist.UpdateStatus(id, string(status)); err != nil {
		m.logger.Error("manager: persist status failed", "session_id", id, "error", err)
	}
	m.persistOutputLog(id, sess)
}

// persistOutputLog checkpoints a session's full output buffer to the
// store. Best-effort: a write failure is logged, never surfaced.
func (m *Manager) persistOutputLog(id string, sess *session.Session) {
	if sess == nil {
		return
	}
	log := strings.Join(sess.AllOutput(), "\n")
	if err := m.persist.UpdateOutputLog(id, log); err != nil {
		m.logger.Error("manager: persist output log failed", "session_id", id, "error", err)
	}
}

// persistingSink wraps the event bus so that every StatusChanged or Error
// event broadcast to subscribers is also mirrored to the persistence
// layer as it happens — the output_log and error_message checkpoints this
// Manager owns, applied at the one place (the Process Supervisor's
// pumps) that drives most of a session's status transitions.
type persistingSink struct {
	bus     *eventbus.Bus
	persist Persister
	session *session.Session
	logger  *slog.Logger
}

func (s persistingSink) Publish(evt protocol.Event) {
	s.bus.Publish(evt)
	switch evt.Kind {
	case protocol.EventStatusChanged:
		if err := s.persist.UpdateStatus(evt.SessionID, string(evt.Status)); err != nil {
			s.logger.Error("manager: persist status failed", "session_id", evt.SessionID, "error", err)
		}
		log := strings.Join(s.session.AllOutput(), "\n")
		if err := s.persist.UpdateOutputLog(evt.SessionID, log); err != nil {
			s.logger.Error("manager: persist output log failed", "session_id", evt.SessionID, "error", err)
		}
	case protocol.EventError:
		if err := s.persist.UpdateErrorMessage(evt.SessionID, evt.Message); err != nil {
			s.logger.Error("manager: persist error message failed", "session_id", evt.SessionID, "error", err)
		}
	}
}

func (m *Manager) spawnSink(sess *session.Session) persistingSink {
	return persistingSink{bus: m.bus, persist: m.persist, session: sess, logger: m.logger}
}

func withSpan(ctx context.Context, tracer trace.Tracer, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, fmt.Sprintf("manager.%s", name))
}
