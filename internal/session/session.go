// Package session holds a live session's identity, buffered output,
// status, and error state. A Session never talks to git, a child
// process, or the event bus directly — it is a guarded bag of state that
// the Manager and Process Supervisor read and mutate through its exported
// methods.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dairui1/claudia/protocol"
)

// ChildHandle is the subset of a spawned child process a Session needs to
// hold: enough to terminate it, check liveness, and forward stdin. The
// concrete implementation lives in internal/process and is never imported
// here, avoiding a session <-> process package cycle.
type ChildHandle interface {
	Terminate() error
	Alive() bool
	SendInput(text string) error
}

// Session is safe for concurrent use. Each mutable field is guarded by its
// own mutex so a slow caller on one field (e.g. draining output) never
// blocks an unrelated one (e.g. a status read).
type Session struct {
	id          string
	projectID   string
	projectPath string
	createdAt   time.Time
	config      Config

	wsMu          sync.RWMutex
	workspacePath string
	branchName    string

	statusMu sync.RWMutex
	status   protocol.Status

	errMu        sync.RWMutex
	errorMessage string

	bufMu  sync.Mutex
	buffer *ringBuffer

	childMu sync.Mutex
	child   ChildHandle

	autoYesMu sync.RWMutex
	autoYes   bool

	updatedMu sync.RWMutex
	updatedAt time.Time
}

// New constructs a Session in Initializing status with no workspace yet.
// cfg should already have passed through ResolveConfig.
func New(id, projectID, projectPath string, cfg Config) *Session {
	now := time.Now()
	return &Session{
		id:          id,
		projectID:   projectID,
		projectPath: projectPath,
		createdAt:   now,
		updatedAt:   now,
		config:      cfg,
		status:      protocol.StatusInitializing,
		buffer:      newRingBuffer(cfg.MaxOutputBuffer),
		autoYes:     cfg.AutoYes,
	}
}

func (s *Session) ID() string          { return s.id }
func (s *Session) ProjectID() string   { return s.projectID }
func (s *Session) ProjectPath() string { return s.projectPath }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) Config() Config      { return s.config }

func (s *Session) UpdatedAt() time.Time {
	s.updatedMu.RLock()
	defer s.updatedMu.RUnlock()
	return s.updatedAt
}

func (s *Session) touch() {
	s.updatedMu.Lock()
	s.updatedAt = time.Now()
	s.updatedMu.Unlock()
}

// SetWorkspace records the resolved workspace path and branch name once
// the Workspace Isolator has created them. Must be called before the
// Session is installed in the Manager's registry.
func (s *Session) SetWorkspace(path, branch string) {
	s.wsMu.Lock()
	s.workspacePath = path
	s.branchName = branch
	s.wsMu.Unlock()
	s.touch()
}

func (s *Session) WorkspacePath() string {
	s.wsMu.RLock()
	defer s.wsMu.RUnlock()
	return s.workspacePath
}

func (s *Session) BranchName() string {
	s.wsMu.RLock()
	defer s.wsMu.RUnlock()
	return s.branchName
}

func (s *Session) Status() protocol.Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// SetStatus records a new status. It does not publish an event — callers
// (Manager, the process pumps) own the event bus and must publish a
// StatusChanged event themselves, so that the one-event-per-transition
// invariant is visible at the call site.
func (s *Session) SetStatus(status protocol.Status) {
	s.statusMu.Lock()
	s.status = status
	s.statusMu.Unlock()
	s.touch()
}

// SetError records an error message and moves status to Error in one
// atomic-from-the-caller's-view step.
func (s *Session) SetError(message string) {
	s.errMu.Lock()
	s.errorMessage = message
	s.errMu.Unlock()
	s.SetStatus(protocol.StatusError)
}

func (s *Session) ErrorMessage() string {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	return s.errorMessage
}

func (s *Session) AppendOutput(line string) {
	s.bufMu.Lock()
	s.buffer.push(line)
	s.bufMu.Unlock()
	s.touch()
}

// GetRecent returns up to n of the most recently appended lines, oldest
// first, without ever tearing a line across a concurrent append.
func (s *Session) GetRecent(n int) []string {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	return s.buffer.recent(n)
}

func (s *Session) AllOutput() []string {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	return s.buffer.all()
}

func (s *Session) SetChild(h ChildHandle) {
	s.childMu.Lock()
	s.child = h
	s.childMu.Unlock()
}

func (s *Session) ClearChild() {
	s.childMu.Lock()
	s.child = nil
	s.childMu.Unlock()
}

func (s *Session) ChildHandle() (ChildHandle, bool) {
	s.childMu.Lock()
	defer s.childMu.Unlock()
	return s.child, s.child != nil
}

// Terminate drops and signals the child, if any, and moves status to
// Terminated. It does not touch the workspace or persistence — those are
// the Manager's job.
func (s *Session) Terminate() error {
	s.childMu.Lock()
	h := s.child
	s.child = nil
	s.childMu.Unlock()

	var err error
	if h != nil {
		if tErr := h.Terminate(); tErr != nil {
			err = fmt.Errorf("terminate child: %w", tErr)
		}
	}
	s.SetStatus(protocol.StatusTerminated)
	return err
}

func (s *Session) AutoYes() bool {
	s.autoYesMu.RLock()
	defer s.autoYesMu.RUnlock()
	return s.autoYes
}

func (s *Session) SetAutoYes(v bool) {
	s.autoYesMu.Lock()
	s.autoYes = v
	s.autoYesMu.Unlock()
	s.touch()
}

// Info is an immutable snapshot suitable for handing to a caller outside
// the package without leaking internal locks.
type Info struct {
	ID            string
	ProjectID     string
	ProjectPath   string
	WorkspacePath string
	BranchName    string
	Status        protocol.Status
	ErrorMessage  string
	AutoYes       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	OutputPreview string
	Diff          *protocol.DiffStats
}

// Snapshot takes an optional diff computed by the caller (the Workspace
// Isolator call happens outside this package, which knows nothing of git)
// and returns a point-in-time Info.
func (s *Session) Snapshot(diff *protocol.DiffStats) Info {
	preview := s.GetRecent(5)
	return Info{
		ID:            s.id,
		ProjectID:     s.projectID,
		ProjectPath:   s.projectPath,
		WorkspacePath: s.WorkspacePath(),
		BranchName:    s.BranchName(),
		Status:        s.Status(),
		ErrorMessage:  s.ErrorMessage(),
		AutoYes:       s.AutoYes(),
		CreatedAt:     s.createdAt,
		UpdatedAt:     s.UpdatedAt(),
		OutputPreview: strings.Join(preview, "\n"),
		Diff:          diff,
	}
}
