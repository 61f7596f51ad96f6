package git

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const initialContent = "Lorem ipsum dolor sit amet\n"

// setupGitEnv pins the identity and config git sees during a test.
func setupGitEnv(t *testing.T) {
	t.Helper()

	t.Setenv("GIT_AUTHOR_NAME", "Test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@test.com")
	t.Setenv("GIT_COMMITTER_NAME", "Test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@test.com")
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
}

// gitRun runs git in dir and returns trimmed stdout.
func gitRun(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.CommandContext(context.Background(), "git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		var stderr string
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = string(exitErr.Stderr)
		}
		require.NoError(t, err, "git %s: %s", strings.Join(args, " "), stderr)
	}
	return strings.TrimSpace(string(out))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

// commitFile writes a file and commits it on the current branch.
func commitFile(t *testing.T, dir, name, content, msg string) string {
	t.Helper()

	writeFile(t, dir, name, content)
	gitRun(t, dir, "add", "--", name)
	gitRun(t, dir, "commit", "-q", "-m", msg)
	return gitRun(t, dir, "rev-parse", "HEAD")
}

// setupUpstream creates a repository on master with file.txt committed, and a
// feature branch one commit ahead of it.
func setupUpstream(t *testing.T) string {
	t.Helper()
	setupGitEnv(t)

	upstream := filepath.Join(t.TempDir(), "upstream")
	require.NoError(t, os.MkdirAll(upstream, 0755))
	gitRun(t, upstream, "init", "-q", "-b", "master")
	commitFile(t, upstream, "file.txt", initialContent, "Initial commit")

	gitRun(t, upstream, "checkout", "-q", "-b", "feature")
	commitFile(t, upstream, "feature.txt", "feature\n", "Add feature")
	gitRun(t, upstream, "checkout", "-q", "master")

	return upstream
}

// setupTestRepo clones a fresh upstream and returns a Manager for the clone.
func setupTestRepo(t *testing.T) (*Manager, string) {
	t.Helper()

	upstream := setupUpstream(t)
	repoPath := filepath.Join(t.TempDir(), "repo")
	gitRun(t, filepath.Dir(repoPath), "clone", "-q", upstream, repoPath)

	return NewManager(repoPath, WithStderr(io.Discard)), upstream
}

// repoSnapshot captures refs, HEAD and the working tree status.
func repoSnapshot(t *testing.T, dir string) string {
	t.Helper()

	return strings.Join([]string{
		gitRun(t, dir, "for-each-ref"),
		gitRun(t, dir, "symbolic-ref", "-q", "--short", "HEAD"),
		gitRun(t, dir, "rev-parse", "HEAD"),
		gitRun(t, dir, "status", "--porcelain=v1", "--untracked-files=all"),
	}, "\n")
}
