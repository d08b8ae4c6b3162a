// Package workspace implements the Workspace Isolator: each session gets
// its own git worktree on a dedicated branch so file mutations from one
// session cannot collide with another.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/dairui1/claudia/protocol"
)

var (
	ErrNotARepo       = errors.New("workspace: not a git repository")
	ErrVcsCreateFailed = errors.New("workspace: git worktree add failed")
	ErrVcsRemoveFailed = errors.New("workspace: git worktree remove failed")
)

const worktreesDirName = ".session-workspaces"

// Isolator owns one session's worktree and branch.
type Isolator struct {
	repoPath      string
	workspacePath string
	branchName    string
}

// New derives the workspace path and branch name for sessionID under
// repoPath. Neither is created on disk yet; call Create for that.
func New(repoPath, sessionID, branchPrefix string) *Isolator {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	parent := filepath.Dir(repoPath)
	return &Isolator{
		repoPath:      repoPath,
		workspacePath: filepath.Join(parent, worktreesDirName, "session-"+short),
		branchName:    fmt.Sprintf("%s-%s", branchPrefix, short),
	}
}

func (w *Isolator) WorkspacePath() string { return w.workspacePath }
func (w *Isolator) BranchName() string    { return w.branchName }

// Create verifies repoPath is a git repository, then adds a worktree at
// the derived path on a new branch based off the repo's current HEAD.
func (w *Isolator) Create(ctx context.Context) error {
	ok, err := w.isRepo(ctx)
	if err != nil {
		return fmt.Errorf("workspace: check repo: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotARepo, w.repoPath)
	}

	base, err := w.currentBranch(ctx)
	if err != nil {
		return fmt.Errorf("%w: resolve base branch: %v", ErrVcsCreateFailed, err)
	}

	if err := os.MkdirAll(filepath.Dir(w.workspacePath), 0o755); err != nil {
		return fmt.Errorf("workspace: create parent dir: %w", err)
	}

	out, err := w.git(ctx, w.repoPath, "worktree", "add", "-b", w.branchName, w.workspacePath, base)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrVcsCreateFailed, strings.TrimSpace(out))
	}
	return nil
}

// Remove tears down the worktree and deletes its branch. Removing a
// worktree that no longer exists is not an error.
func (w *Isolator) Remove(ctx context.Context) error {
	out, err := w.git(ctx, w.repoPath, "worktree", "remove", "--force", w.workspacePath)
	if err != nil && !strings.Contains(out, "not a working tree") {
		return fmt.Errorf("%w: %s", ErrVcsRemoveFailed, strings.TrimSpace(out))
	}
	// Best effort: branch deletion failure is not fatal to teardown.
	_, _ = w.git(ctx, w.repoPath, "branch", "-D", w.branchName)
	return nil
}

// DiffStats returns the worktree's diff against its base. Any failure
// (including the worktree no longer existing) yields zero stats rather
// than an error.
func (w *Isolator) DiffStats(ctx context.Context) protocol.DiffStats {
	out, err := w.git(ctx, w.workspacePath, "diff", "--stat", "--no-color")
	if err != nil {
		return protocol.DiffStats{}
	}
	return parseDiffStats(out)
}

// CommitPending stages and commits any pending changes in the worktree,
// treating "nothing to commit" as success.
func (w *Isolator) CommitPending(ctx context.Context, message string) error {
	_, _ = w.git(ctx, w.workspacePath, "add", "-A")
	out, err := w.git(ctx, w.workspacePath, "commit", "-m", message)
	if err != nil && !strings.Contains(out, "nothing to commit") {
		return fmt.Errorf("workspace: commit pending changes: %s", strings.TrimSpace(out))
	}
	return nil
}

func (w *Isolator) isRepo(ctx context.Context) (bool, error) {
	_, err := w.git(ctx, w.repoPath, "rev-parse", "--git-dir")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (w *Isolator) currentBranch(ctx context.Context) (string, error) {
	out, err := w.git(ctx, w.repoPath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// git runs a git subcommand with dir as its working directory and returns
// combined stdout+stderr regardless of exit status, so callers can inspect
// the message on failure.
func (w *Isolator) git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

var diffStatRe = regexp.MustCompile(`(\d+) files? changed(?:, (\d+) insertions?\(\+\))?(?:, (\d+) deletions?\(-\))?`)

func parseDiffStats(output string) protocol.DiffStats {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		m := diffStatRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		var stats protocol.DiffStats
		stats.FilesChanged, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			stats.Insertions, _ = strconv.Atoi(m[2])
		}
		if m[3] != "" {
			stats.Deletions, _ = strconv.Atoi(m[3])
		}
		return stats
	}
	return protocol.DiffStats{}
}
