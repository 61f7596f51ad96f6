// Package lock provides named file locks with PID-based stale detection.
//
// Locks are advisory flock(2) locks under <data-dir>/locks, so they serialize
// goroutines and separate colab processes alike.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	apperrors "github.com/jayteealao/colab/internal/errors"
)

// RepoLock is the global critical section around the shared repository.
const RepoLock = "repo"

const retryDelay = 100 * time.Millisecond

// Lock is a held named lock.
type Lock struct {
	flock   *flock.Flock
	pidFile string
	name    string
}

// Manager manages named locks.
type Manager struct {
	lockDir string
}

// NewManager creates a new lock manager.
func NewManager(dataDir string) (*Manager, error) {
	lockDir := filepath.Join(dataDir, "locks")
	if err := os.MkdirAll(lockDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &Manager{lockDir: lockDir}, nil
}

func (m *Manager) paths(name string) (lockPath, pidFile string) {
	return filepath.Join(m.lockDir, name+".lock"), filepath.Join(m.lockDir, name+".pid")
}

// Acquire waits for the named lock until ctx is done. A lock still held when
// ctx expires fails with ErrRepoLocked and the holder's PID when known.
func (m *Manager) Acquire(ctx context.Context, name string) (*Lock, error) {
	lockPath, pidFile := m.paths(name)
	m.cleanStaleLock(pidFile)

	fl := flock.New(lockPath)

	locked, err := fl.TryLockContext(ctx, retryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		if pid, err := readPIDFile(pidFile); err == nil {
			return nil, fmt.Errorf("%w: %s held by PID %d", apperrors.ErrRepoLocked, name, pid)
		}
		return nil, fmt.Errorf("%w: %s", apperrors.ErrRepoLocked, name)
	}

	if err := writePIDFile(pidFile); err != nil {
		fl.Unlock()
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}

	return &Lock{flock: fl, pidFile: pidFile, name: name}, nil
}

// TryAcquire attempts to acquire a lock without waiting.
// Returns nil if lock cannot be acquired immediately.
func (m *Manager) TryAcquire(name string) (*Lock, error) {
	lockPath, pidFile := m.paths(name)
	m.cleanStaleLock(pidFile)

	fl := flock.New(lockPath)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to try lock: %w", err)
	}
	if !locked {
		return nil, nil
	}

	if err := writePIDFile(pidFile); err != nil {
		fl.Unlock()
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}

	return &Lock{flock: fl, pidFile: pidFile, name: name}, nil
}

// WithLock runs fn while holding the named lock.
func (m *Manager) WithLock(ctx context.Context, name string, fn func() error) error {
	l, err := m.Acquire(ctx, name)
	if err != nil {
		return err
	}
	defer l.Release()

	return fn()
}

// IsLocked reports whether the named lock is held, and by which PID if known.
func (m *Manager) IsLocked(name string) (bool, int, error) {
	lockPath, pidFile := m.paths(name)

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return false, 0, fmt.Errorf("failed to check lock: %w", err)
	}
	if locked {
		fl.Unlock()
		return false, 0, nil
	}

	pid, err := readPIDFile(pidFile)
	if err != nil {
		return true, 0, nil
	}
	return true, pid, nil
}

// cleanStaleLock drops a PID file left behind by a dead process. The flock
// itself dies with its holder, and the lock file is never removed so that
// every waiter contends on the same inode.
func (m *Manager) cleanStaleLock(pidFile string) {
	pid, err := readPIDFile(pidFile)
	if err != nil {
		return
	}
	if !IsProcessRunning(pid) {
		os.Remove(pidFile)
	}
}

// Release releases the lock.
func (l *Lock) Release() error {
	os.Remove(l.pidFile)

	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Name returns the lock name.
func (l *Lock) Name() string {
	return l.name
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// IsProcessRunning checks if a process with the given PID is alive.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 probes for existence without delivering anything.
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
		return false
	}

	// EPERM: alive but owned by someone else.
	return true
}
