// Package process implements the Process Supervisor: it spawns a
// session's child, pumps its stdout/stderr into the Session's buffer,
// detects status and critical-error tokens, and forwards stdin writes.
// Modeled on a ProcessManager: spawn, pump stdout/stderr, detect tokens.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dairui1/claudia/internal/session"
	"github.com/dairui1/claudia/protocol"
)

var (
	ErrSpawnFailed = errors.New("process: failed to spawn child")
	ErrInputFailed = errors.New("process: failed to write to child stdin")
)

// EventSink is the subset of the event bus the supervisor needs. Satisfied
// structurally by *eventbus.Bus.
type EventSink interface {
	Publish(protocol.Event)
}

// Spawner creates children for a fixed assistant binary.
type Spawner struct {
	bin    string
	logger *slog.Logger
}

func NewSpawner(bin string, logger *slog.Logger) *Spawner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Spawner{bin: bin, logger: logger}
}

// Handle is a live child process. It implements session.ChildHandle.
type Handle struct {
	cmd *exec.Cmd

	stdinMu sync.Mutex
	stdin   *bufio.Writer
	stdinWC io.WriteCloser

	exited atomic.Bool
}

// Spawn starts the session's child, wires its CWD/env/args from
// sess.Config(), and launches the stdout/stderr pumps. The returned
// Handle is not yet attached to sess; the caller (Manager) does that via
// sess.SetChild once spawn succeeds.
func (s *Spawner) Spawn(ctx context.Context, sess *session.Session, sink EventSink) (*Handle, error) {
	cfg := sess.Config()

	workdir := cfg.WorkingDirectory
	if workdir == "" {
		workdir = sess.WorkspacePath()
	}

	cmd := exec.Command(s.bin, cfg.ChildArgs...)
	cmd.Dir = workdir

	env := os.Environ()
	for _, kv := range cfg.EnvironmentVars {
		env = append(env, kv.Key+"="+kv.Value)
	}
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrSpawnFailed, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrSpawnFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrSpawnFailed, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	h := &Handle{
		cmd:     cmd,
		stdin:   bufio.NewWriter(stdin),
		stdinWC: stdin,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pumpStdout(sess, sink, stdout)
	}()
	go func() {
		defer wg.Done()
		pumpStderr(sess, sink, stderr, s.logger)
	}()

	go func() {
		wg.Wait()
		if err := cmd.Wait(); err != nil {
			s.logger.Debug("process exited", "session_id", sess.ID(), "error", err)
		}
		h.exited.Store(true)
	}()

	return h, nil
}

func pumpStdout(sess *session.Session, sink EventSink, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		sess.AppendOutput(line)

		if status, ok := DetectStatus(line); ok {
			sess.SetStatus(status)
			sink.Publish(protocol.StatusChanged(sess.ID(), status, time.Now()))
		}
		sink.Publish(protocol.OutputAppended(sess.ID(), line, time.Now()))
	}
}

func pumpStderr(sess *session.Session, sink EventSink, r io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		sess.AppendOutput("[ERROR] " + line)

		if IsCriticalError(line) {
			sess.SetError(line)
			sink.Publish(protocol.ErrorEvent(sess.ID(), line, time.Now()))
			logger.Warn("critical child error", "session_id", sess.ID(), "line", line)
		}
	}
}

// DetectStatus maps a line of child output to a status transition using
// the recognized token table below.
func DetectStatus(line string) (protocol.Status, bool) {
	switch {
	case strings.Contains(line, "Ready") || strings.Contains(line, "Human:"):
		return protocol.StatusReady, true
	case strings.Contains(line, "Working") || strings.Contains(line, "Thinking"):
		return protocol.StatusLoading, true
	case strings.Contains(line, "Running") || strings.Contains(line, "Executing"):
		return protocol.StatusRunning, true
	case strings.Contains(line, "Complete") || strings.Contains(line, "Done"):
		return protocol.StatusCompleted, true
	default:
		return "", false
	}
}

// IsCriticalError reports whether a stderr line should move the session
// to Error.
func IsCriticalError(line string) bool {
	return strings.Contains(line, "FATAL") ||
		strings.Contains(line, "CRITICAL") ||
		strings.Contains(line, "Failed to initialize") ||
		strings.Contains(line, "Permission denied")
}

// SendInput writes text followed by a newline to the child's stdin.
func (h *Handle) SendInput(text string) error {
	h.stdinMu.Lock()
	defer h.stdinMu.Unlock()

	if _, err := h.stdin.WriteString(text); err != nil {
		return fmt.Errorf("%w: %v", ErrInputFailed, err)
	}
	if err := h.stdin.WriteByte('\n'); err != nil {
		return fmt.Errorf("%w: %v", ErrInputFailed, err)
	}
	if err := h.stdin.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrInputFailed, err)
	}
	return nil
}

// Terminate kills the child. Safe to call more than once.
func (h *Handle) Terminate() error {
	if h.cmd.Process == nil {
		return nil
	}
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	h.stdinMu.Lock()
	_ = h.stdinWC.Close()
	h.stdinMu.Unlock()
	return nil
}

// Alive reports whether the child has not yet exited. Non-blocking: it
// reads a flag set once by the goroutine that reaps the process after
// both output pumps hit EOF.
func (h *Handle) Alive() bool {
	return !h.exited.Load()
}
