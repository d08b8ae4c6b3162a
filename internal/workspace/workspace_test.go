package workspace

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	require.NoError(t, os.MkdirAll(repo, 0o755))

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = repo
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "README.md"), []byte("hello\n"), 0o644))
	run("add", "-A")
	run("commit", "-m", "initial")
	return repo
}

func TestNewDerivesWorkspacePathAndBranch(t *testing.T) {
	iso := New("/home/user/repo", "0123456789abcdef", "session")
	require.Equal(t, "session-01234567", iso.BranchName())
	require.Equal(t, filepath.Join("/home/user", worktreesDirName, "session-01234567"), iso.WorkspacePath())
}

func TestCreateAndRemove(t *testing.T) {
	requireGit(t)
	repo := initRepo(t)
	ctx := context.Background()

	iso := New(repo, "0123456789abcdef", "session")
	require.NoError(t, iso.Create(ctx))

	info, err := os.Stat(iso.WorkspacePath())
	require.NoError(t, err)
	require.True(t, info.IsDir())

	require.NoError(t, iso.Remove(ctx))
	_, err = os.Stat(iso.WorkspacePath())
	require.True(t, os.IsNotExist(err))
}

func TestCreateFailsOnNonRepo(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	iso := New(dir, "0123456789abcdef", "session")
	err := iso.Create(context.Background())
	require.ErrorIs(t, err, ErrNotARepo)
}

func TestDiffStatsAfterEdit(t *testing.T) {
	requireGit(t)
	repo := initRepo(t)
	ctx := context.Background()

	iso := New(repo, "0123456789abcdef", "session")
	require.NoError(t, iso.Create(ctx))
	defer iso.Remove(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(iso.WorkspacePath(), "README.md"), []byte("hello\nworld\n"), 0o644))
	stats := iso.DiffStats(ctx)
	require.Equal(t, 1, stats.FilesChanged)
	require.Equal(t, 1, stats.Insertions)
}

func TestParseDiffStats(t *testing.T) {
	out := " README.md | 2 +-\n 1 file changed, 1 insertion(+), 1 deletion(-)\n"
	stats := parseDiffStats(out)
	require.Equal(t, 1, stats.FilesChanged)
	require.Equal(t, 1, stats.Insertions)
	require.Equal(t, 1, stats.Deletions)
}
