package git

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/jayteealao/colab/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_IsCloned(t *testing.T) {
	manager, _ := setupTestRepo(t)

	t.Run("cloned repo", func(t *testing.T) {
		assert.True(t, manager.IsCloned())
	})

	t.Run("empty directory", func(t *testing.T) {
		assert.False(t, NewManager(t.TempDir()).IsCloned())
	})

	t.Run("invalid path", func(t *testing.T) {
		assert.False(t, NewManager("/nonexistent/path").IsCloned())
	})
}

func TestManager_Head(t *testing.T) {
	manager, upstream := setupTestRepo(t)
	ctx := context.Background()

	head, err := manager.Head(ctx)
	require.NoError(t, err)
	assert.Len(t, head, 40)
	assert.Equal(t, gitRun(t, upstream, "rev-parse", "master"), head)
}

func TestManager_NotCloned(t *testing.T) {
	setupGitEnv(t)
	manager := NewManager(t.TempDir())
	ctx := context.Background()

	_, err := manager.Head(ctx)
	assert.ErrorIs(t, err, apperrors.ErrNotCloned)

	_, err = manager.Resolve(ctx, "master")
	assert.ErrorIs(t, err, apperrors.ErrNotCloned)

	_, err = manager.Fetch(ctx, FetchOptions{})
	assert.ErrorIs(t, err, apperrors.ErrNotCloned)

	_, err = manager.Pull(ctx)
	assert.ErrorIs(t, err, apperrors.ErrNotCloned)

	_, err = manager.Checkout(ctx, "master")
	assert.ErrorIs(t, err, apperrors.ErrNotCloned)

	assert.ErrorIs(t, manager.Stage(ctx), apperrors.ErrNotCloned)
	assert.ErrorIs(t, manager.HardReset(ctx), apperrors.ErrNotCloned)

	_, err = manager.Diff(ctx)
	assert.ErrorIs(t, err, apperrors.ErrNotCloned)

	_, err = manager.Clean(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrNotCloned)
}

func TestManager_CurrentBranch(t *testing.T) {
	manager, _ := setupTestRepo(t)
	ctx := context.Background()

	branch, err := manager.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", branch)

	gitRun(t, manager.RepoPath(), "checkout", "-q", "--detach")
	_, err = manager.CurrentBranch(ctx)
	assert.ErrorIs(t, err, apperrors.ErrNotOnBranch)
}

func TestManager_RemotesAndBranches(t *testing.T) {
	manager, upstream := setupTestRepo(t)
	ctx := context.Background()

	remotes, err := manager.Remotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"origin"}, remotes)

	url, err := manager.RemoteURL(ctx, "origin")
	require.NoError(t, err)
	assert.Equal(t, upstream, url)

	local, err := manager.Branches(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"master"}, local)

	remote, err := manager.Branches(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"origin/feature", "origin/master"}, remote)
}

func TestGitError(t *testing.T) {
	manager, _ := setupTestRepo(t)

	_, err := manager.run(context.Background(), "rev-parse", "--verify", "does-not-exist")
	require.Error(t, err)

	var gitErr *GitError
	require.True(t, errors.As(err, &gitErr))
	assert.Equal(t, 128, gitErr.ExitCode)
	assert.Contains(t, gitErr.Error(), "git rev-parse --verify does-not-exist")
	assert.ErrorIs(t, err, apperrors.ErrRepository)
	assert.Equal(t, 128, exitCode(err))
	assert.NotEmpty(t, stderrOf(err))
}

func TestShortSHA(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"abc123def456789012345678901234567890abcd", "abc123d"},
		{"abc123", "abc123"},
		{"abc", "abc"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShortSHA(tt.input))
		})
	}
}
