package git

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/jayteealao/colab/internal/errors"
	"github.com/jayteealao/colab/internal/hook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Clone(t *testing.T) {
	upstream := setupUpstream(t)
	ctx := context.Background()

	t.Run("default branch", func(t *testing.T) {
		repoPath := filepath.Join(t.TempDir(), "repo")
		manager := NewManager(repoPath, WithStderr(io.Discard))

		result, err := manager.Clone(ctx, CloneOptions{URL: upstream})
		require.NoError(t, err)
		assert.Equal(t, "master", result.Branch)
		assert.Equal(t, gitRun(t, upstream, "rev-parse", "master"), result.Head)
		assert.Equal(t, initialContent, readFile(t, repoPath, "file.txt"))
		assert.True(t, manager.IsCloned())
	})

	t.Run("named branch", func(t *testing.T) {
		repoPath := filepath.Join(t.TempDir(), "repo")
		manager := NewManager(repoPath, WithStderr(io.Discard))

		result, err := manager.Clone(ctx, CloneOptions{URL: upstream, Branch: "feature"})
		require.NoError(t, err)
		assert.Equal(t, "feature", result.Branch)
		assert.Equal(t, gitRun(t, upstream, "rev-parse", "feature"), result.Head)
		assert.Equal(t, "feature\n", readFile(t, repoPath, "feature.txt"))
	})

	t.Run("empty destination directory", func(t *testing.T) {
		repoPath := filepath.Join(t.TempDir(), "repo")
		require.NoError(t, os.MkdirAll(repoPath, 0755))
		manager := NewManager(repoPath, WithStderr(io.Discard))

		_, err := manager.Clone(ctx, CloneOptions{URL: upstream})
		require.NoError(t, err)
		assert.True(t, manager.IsCloned())
	})
}

func TestManager_CloneIntoExistingRepo(t *testing.T) {
	manager, upstream := setupTestRepo(t)
	ctx := context.Background()
	repo := manager.RepoPath()

	commitFile(t, repo, "local.txt", "local\n", "Local commit")
	writeFile(t, repo, "untracked.txt", "keep me\n")
	before := repoSnapshot(t, repo)

	_, err := manager.Clone(ctx, CloneOptions{URL: upstream, Branch: "feature"})
	assert.ErrorIs(t, err, apperrors.ErrCloneFailed)
	assert.ErrorIs(t, err, apperrors.ErrRepoExists)

	assert.Equal(t, before, repoSnapshot(t, repo))
	assert.Equal(t, "keep me\n", readFile(t, repo, "untracked.txt"))
}

func TestManager_CloneFailures(t *testing.T) {
	upstream := setupUpstream(t)
	ctx := context.Background()

	t.Run("non-empty destination", func(t *testing.T) {
		repoPath := filepath.Join(t.TempDir(), "repo")
		writeFile(t, repoPath, "stray.txt", "x")
		manager := NewManager(repoPath, WithStderr(io.Discard))

		_, err := manager.Clone(ctx, CloneOptions{URL: upstream})
		assert.ErrorIs(t, err, apperrors.ErrCloneFailed)
		assert.ErrorIs(t, err, apperrors.ErrRepoNotEmpty)
	})

	t.Run("unreachable remote", func(t *testing.T) {
		parent := t.TempDir()
		repoPath := filepath.Join(parent, "repo")
		manager := NewManager(repoPath, WithStderr(io.Discard))

		_, err := manager.Clone(ctx, CloneOptions{URL: filepath.Join(parent, "missing")})
		assert.ErrorIs(t, err, apperrors.ErrCloneFailed)
		assert.ErrorIs(t, err, apperrors.ErrTransport)
		assert.False(t, manager.IsCloned())

		// The temp clone directory is gone.
		entries, err := os.ReadDir(parent)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("unknown branch", func(t *testing.T) {
		repoPath := filepath.Join(t.TempDir(), "repo")
		manager := NewManager(repoPath, WithStderr(io.Discard))

		_, err := manager.Clone(ctx, CloneOptions{URL: upstream, Branch: "nope"})
		assert.ErrorIs(t, err, apperrors.ErrCloneFailed)
		assert.False(t, manager.IsCloned())
	})
}

func TestManager_ClonePostCloneHook(t *testing.T) {
	upstream := setupUpstream(t)
	ctx := context.Background()

	t.Run("runs in the checkout", func(t *testing.T) {
		repoPath := filepath.Join(t.TempDir(), "repo")
		manager := NewManager(repoPath, WithStderr(io.Discard))

		_, err := manager.Clone(ctx, CloneOptions{URL: upstream, PostCloneCmd: "touch hooked"})
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(repoPath, "hooked"))
	})

	t.Run("ignored failure", func(t *testing.T) {
		repoPath := filepath.Join(t.TempDir(), "repo")
		manager := NewManager(repoPath, WithStderr(io.Discard))

		result, err := manager.Clone(ctx, CloneOptions{URL: upstream, PostCloneCmd: "exit 1"})
		require.NoError(t, err)
		assert.NotNil(t, result)
	})

	t.Run("aborting failure keeps the clone", func(t *testing.T) {
		repoPath := filepath.Join(t.TempDir(), "repo")
		manager := NewManager(repoPath, WithStderr(io.Discard))

		result, err := manager.Clone(ctx, CloneOptions{
			URL:          upstream,
			PostCloneCmd: "exit 2",
			Hooks:        hook.NewRunner(hook.PolicyAbort, io.Discard, nil),
		})
		assert.ErrorIs(t, err, apperrors.ErrHookFailed)
		require.NotNil(t, result)
		assert.Equal(t, "master", result.Branch)
		assert.True(t, manager.IsCloned())
	})
}

func TestCheckAuth(t *testing.T) {
	upstream := setupUpstream(t)
	ctx := context.Background()

	assert.NoError(t, CheckAuth(ctx, upstream))

	err := CheckAuth(ctx, filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, apperrors.ErrTransport)
}
