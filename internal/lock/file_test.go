package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/jayteealao/colab/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestManager(t *testing.T) *Manager {
	t.Helper()

	manager, err := NewManager(t.TempDir())
	require.NoError(t, err)
	return manager
}

func TestManager_AcquireAndRelease(t *testing.T) {
	manager := setupTestManager(t)
	ctx := context.Background()

	t.Run("acquire and release lock", func(t *testing.T) {
		lock, err := manager.Acquire(ctx, RepoLock)
		require.NoError(t, err)
		require.NotNil(t, lock)
		assert.Equal(t, RepoLock, lock.Name())

		locked, _, err := manager.IsLocked(RepoLock)
		require.NoError(t, err)
		assert.True(t, locked)

		require.NoError(t, lock.Release())

		locked, _, err = manager.IsLocked(RepoLock)
		require.NoError(t, err)
		assert.False(t, locked)
	})

	t.Run("independent names", func(t *testing.T) {
		lock1, err := manager.Acquire(ctx, "a")
		require.NoError(t, err)
		defer lock1.Release()

		lock2, err := manager.Acquire(ctx, "b")
		require.NoError(t, err)
		defer lock2.Release()

		locked1, _, _ := manager.IsLocked("a")
		locked2, _, _ := manager.IsLocked("b")
		assert.True(t, locked1)
		assert.True(t, locked2)
	})
}

func TestManager_TryAcquire(t *testing.T) {
	manager := setupTestManager(t)

	t.Run("succeeds when not locked", func(t *testing.T) {
		lock, err := manager.TryAcquire(RepoLock)
		require.NoError(t, err)
		require.NotNil(t, lock)
		lock.Release()
	})

	t.Run("returns nil when locked", func(t *testing.T) {
		lock1, err := manager.Acquire(context.Background(), RepoLock)
		require.NoError(t, err)
		defer lock1.Release()

		lock2, err := manager.TryAcquire(RepoLock)
		require.NoError(t, err)
		assert.Nil(t, lock2)
	})
}

func TestManager_IsLocked(t *testing.T) {
	manager := setupTestManager(t)

	t.Run("not locked initially", func(t *testing.T) {
		locked, pid, err := manager.IsLocked("nonexistent")
		require.NoError(t, err)
		assert.False(t, locked)
		assert.Equal(t, 0, pid)
	})

	t.Run("locked returns current pid", func(t *testing.T) {
		lock, err := manager.Acquire(context.Background(), RepoLock)
		require.NoError(t, err)
		defer lock.Release()

		locked, pid, err := manager.IsLocked(RepoLock)
		require.NoError(t, err)
		assert.True(t, locked)
		assert.Equal(t, os.Getpid(), pid)
	})
}

func TestManager_Timeout(t *testing.T) {
	manager := setupTestManager(t)

	held, err := manager.TryAcquire(RepoLock)
	require.NoError(t, err)
	require.NotNil(t, held)
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	lock, err := manager.Acquire(ctx, RepoLock)
	assert.Nil(t, lock)
	assert.ErrorIs(t, err, apperrors.ErrRepoLocked)
	assert.Contains(t, err.Error(), "held by PID")
}

func TestManager_WithLock(t *testing.T) {
	manager := setupTestManager(t)
	ctx := context.Background()

	t.Run("returns fn error and releases", func(t *testing.T) {
		boom := errors.New("boom")
		err := manager.WithLock(ctx, RepoLock, func() error {
			locked, _, err := manager.IsLocked(RepoLock)
			require.NoError(t, err)
			assert.True(t, locked)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		locked, _, err := manager.IsLocked(RepoLock)
		require.NoError(t, err)
		assert.False(t, locked)
	})

	t.Run("serializes critical sections", func(t *testing.T) {
		var inside, overlaps, runs atomic.Int32
		var wg sync.WaitGroup

		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := manager.WithLock(ctx, RepoLock, func() error {
					if inside.Add(1) > 1 {
						overlaps.Add(1)
					}
					time.Sleep(5 * time.Millisecond)
					inside.Add(-1)
					runs.Add(1)
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(8), runs.Load())
		assert.Zero(t, overlaps.Load())
	})
}

func TestManager_StaleLockDetection(t *testing.T) {
	manager := setupTestManager(t)
	lockPath, pidFile := manager.paths(RepoLock)

	require.NoError(t, os.WriteFile(lockPath, []byte{}, 0644))
	require.NoError(t, os.WriteFile(pidFile, []byte("999999999"), 0644))

	lock, err := manager.Acquire(context.Background(), RepoLock)
	require.NoError(t, err)
	require.NotNil(t, lock)
	defer lock.Release()

	pid, err := readPIDFile(pidFile)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestIsProcessRunning(t *testing.T) {
	assert.True(t, IsProcessRunning(os.Getpid()))
	assert.False(t, IsProcessRunning(999999999))
	assert.False(t, IsProcessRunning(0))
}

func TestReadWritePIDFile(t *testing.T) {
	tmpDir := t.TempDir()
	pidFile := filepath.Join(tmpDir, "test.pid")

	t.Run("write and read pid", func(t *testing.T) {
		require.NoError(t, writePIDFile(pidFile))

		pid, err := readPIDFile(pidFile)
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	})

	t.Run("read non-existent file", func(t *testing.T) {
		_, err := readPIDFile(filepath.Join(tmpDir, "nonexistent.pid"))
		assert.Error(t, err)
	})
}
