// Package session runs time-boxed editing sessions against the shared checkout.
//
// A session launches the mapping editor on the current HEAD. Finishing it
// captures every change under the mappings path as a patch and restores the
// checkout to HEAD, so the next session starts from a clean tree.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jayteealao/colab/internal/config"
	apperrors "github.com/jayteealao/colab/internal/errors"
	"github.com/jayteealao/colab/internal/git"
	"github.com/jayteealao/colab/internal/hook"
	"github.com/jayteealao/colab/internal/lock"
	"github.com/jayteealao/colab/internal/logging"
	"github.com/jayteealao/colab/internal/notify"
	"github.com/jayteealao/colab/internal/state"
)

// PatchFile is the patch artifact name inside a session directory.
const PatchFile = "session.patch"

// ErrNoPatch is returned by Patch for sessions that never finished.
var ErrNoPatch = errors.New("session has no patch")

// stopTimeout bounds how long Finish waits for the editor to exit.
var stopTimeout = 10 * time.Second

// StartOptions contains options for starting a session.
type StartOptions struct {
	Password string
}

// Manager starts and finishes sessions.
type Manager struct {
	repo     git.Repository
	store    state.StateStore
	locks    lock.LockOperations
	settings *config.Settings
	notifier notify.Sender
	hooks    *hook.Runner
	launcher Launcher
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets where session events are sent.
func WithNotifier(n notify.Sender) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithLauncher replaces the process launcher.
func WithLauncher(l Launcher) Option {
	return func(m *Manager) { m.launcher = l }
}

// WithHooks sets the hook runner for pre_cmd and post_cmd.
func WithHooks(r *hook.Runner) Option {
	return func(m *Manager) { m.hooks = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a session manager.
func NewManager(repo git.Repository, store state.StateStore, locks lock.LockOperations, settings *config.Settings, opts ...Option) *Manager {
	m := &Manager{
		repo:     repo,
		store:    store,
		locks:    locks,
		settings: settings,
		notifier: notify.NewManager(),
		launcher: ProcessLauncher{},
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.hooks == nil {
		policy, err := hook.ParsePolicy(settings.HookFailurePolicy)
		if err != nil {
			policy = hook.PolicyIgnore
		}
		m.hooks = hook.NewRunner(policy, nil, m.logger)
	}
	return m
}

// Dir returns the directory holding a session's logs and patch.
func (m *Manager) Dir(id string) string {
	return filepath.Join(m.store.DataDir(), "sessions", id)
}

// withRepoLock runs fn holding the repository lock. The lock timeout only
// bounds acquisition.
func (m *Manager) withRepoLock(ctx context.Context, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, m.settings.LockTimeout)
	defer cancel()
	return m.locks.WithLock(lockCtx, lock.RepoLock, fn)
}

// Start launches a new session on the current HEAD.
func (m *Manager) Start(ctx context.Context, opts StartOptions) (*state.Session, error) {
	var sess *state.Session
	err := m.withRepoLock(ctx, func() error {
		var err error
		sess, err = m.start(ctx, opts)
		return err
	})
	return sess, err
}

func (m *Manager) start(ctx context.Context, opts StartOptions) (*state.Session, error) {
	if !m.repo.IsCloned() {
		return nil, apperrors.ErrNotCloned
	}

	active, err := m.store.GetActiveSession(ctx)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSessionActive, active.ID)
	case !errors.Is(err, apperrors.ErrNoActiveSession):
		return nil, err
	}

	rev, err := m.repo.Head(ctx)
	if err != nil {
		return nil, err
	}
	branch, err := m.repo.CurrentBranch(ctx)
	if err != nil && !errors.Is(err, apperrors.ErrNotOnBranch) {
		return nil, err
	}

	repoPath := m.repo.RepoPath()
	jar, err := readJarInfo(filepath.Join(repoPath, m.settings.Session.JarFile))
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	sess := &state.Session{
		ID:        id,
		Rev:       rev,
		Branch:    branch,
		JarName:   jar.Name,
		JarSHA256: jar.SHA256,
		Dir:       m.Dir(id),
	}
	if err := os.MkdirAll(sess.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	logger := m.logger.With("session", id)

	// Mark the session failed unless it reaches running.
	success := false
	defer func() {
		if success {
			return
		}
		cleanupCtx := context.WithoutCancel(ctx)
		msg := "session start interrupted"
		if err != nil {
			msg = err.Error()
		}
		if uerr := m.store.UpdateSessionStatus(cleanupCtx, id, state.SessionFailed, &msg); uerr != nil {
			logger.Warn("failed to mark session failed", "error", uerr)
		}
		m.notify(cleanupCtx, notify.Event{
			Type:      notify.EventSessionFailed,
			SessionID: id,
			Branch:    branch,
			Commit:    rev,
			Status:    state.SessionFailed,
			Message:   msg,
		})
	}()

	if err = m.hooks.Run(ctx, hook.Hook{Name: "pre_cmd", Command: m.settings.Session.PreCmd, Dir: repoPath}); err != nil {
		return nil, err
	}

	spec := LaunchSpec{
		Java:      m.settings.Session.Java,
		MainClass: m.settings.Session.MainClass,
		Classpath: m.settings.Session.Classpath,
		Jar:       m.settings.Session.JarFile,
		Mappings:  m.settings.Session.MappingsPath,
		Password:  opts.Password,
		Args:      splitArgs(m.settings.Session.Args),
		Dir:       repoPath,
		LogDir:    sess.Dir,
	}
	logger.Debug("launching editor", "java", spec.Java, "main_class", spec.MainClass, "jar", spec.Jar)

	var pid int
	pid, err = m.launcher.Launch(ctx, spec)
	if err != nil {
		err = fmt.Errorf("failed to launch editor: %w", err)
		return nil, err
	}

	if err = m.store.MarkSessionRunning(ctx, id, pid); err != nil {
		return nil, err
	}
	success = true

	logger.Info("session started", "pid", pid, "rev", git.ShortSHA(rev), "jar", jar.Name)
	m.notify(ctx, notify.Event{
		Type:      notify.EventSessionStarted,
		SessionID: id,
		Branch:    branch,
		Commit:    rev,
		Status:    state.SessionRunning,
		Details:   map[string]string{"jar": jar.Name},
	})

	return m.store.GetSession(ctx, id)
}

// Finish stops the editor, saves the session's changes as a patch and
// restores the checkout to HEAD.
func (m *Manager) Finish(ctx context.Context, id string) (*state.Session, error) {
	var sess *state.Session
	err := m.withRepoLock(ctx, func() error {
		var err error
		sess, err = m.finish(ctx, id)
		return err
	})
	return sess, err
}

func (m *Manager) finish(ctx context.Context, id string) (*state.Session, error) {
	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != state.SessionRunning && sess.Status != state.SessionStopped {
		return nil, fmt.Errorf("%w: %s is %s", apperrors.ErrSessionNotRunning, id, sess.Status)
	}

	logger := m.logger.With("session", id)

	if sess.Status == state.SessionRunning {
		if err := m.stop(ctx, sess.PID); err != nil {
			return nil, err
		}
		if err := m.store.UpdateSessionStatus(ctx, id, state.SessionStopped, nil); err != nil {
			return nil, err
		}
		logger.Info("editor stopped", "pid", sess.PID)
	}

	scope := m.settings.MappingsScope()
	if err := m.repo.Stage(ctx, scope); err != nil {
		return nil, fmt.Errorf("failed to stage changes: %w", err)
	}
	patch, err := m.repo.Diff(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create patch: %w", err)
	}

	// The patch must be on disk before the tree is reset.
	patchPath := filepath.Join(m.Dir(id), PatchFile)
	if err := os.MkdirAll(filepath.Dir(patchPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(patchPath, patch, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write patch: %w", err)
	}

	if err := m.repo.HardReset(ctx); err != nil {
		return nil, err
	}
	removed, err := m.repo.Clean(ctx, scope)
	if err != nil {
		return nil, err
	}

	size := int64(len(patch))
	if err := m.store.CompleteSession(ctx, id, patchPath, size); err != nil {
		return nil, err
	}
	if err := m.store.RecordSyncEvent(ctx, &state.SyncEvent{
		Kind:      state.EventReset,
		Target:    scope,
		Commit:    sess.Rev,
		Outcome:   state.OutcomeOK,
		SessionID: id,
		Details:   map[string]any{"removed": len(removed), "patch_size": size},
	}); err != nil {
		logger.Warn("failed to record reset", "error", err)
	}

	logger.Info("session finished", "patch", patchPath, "size", size, "removed", len(removed))

	hookErr := m.hooks.Run(ctx, hook.Hook{Name: "post_cmd", Command: m.settings.Session.PostCmd, Dir: m.repo.RepoPath()})

	m.notify(ctx, notify.Event{
		Type:      notify.EventSessionFinished,
		SessionID: id,
		Branch:    sess.Branch,
		Commit:    sess.Rev,
		Status:    state.SessionFinished,
		Message:   "patch is " + humanize.IBytes(uint64(size)),
		Details:   map[string]string{"removed": fmt.Sprint(len(removed))},
	})

	finished, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return finished, hookErr
}

// stop terminates the editor and waits for it to exit.
func (m *Manager) stop(ctx context.Context, pid int) error {
	if pid <= 0 || !m.launcher.Alive(pid) {
		return nil
	}
	if err := m.launcher.Stop(pid); err != nil {
		return err
	}

	deadline := time.After(stopTimeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for m.launcher.Alive(pid) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("editor (PID %d) did not exit within %s", pid, stopTimeout)
		case <-ticker.C:
		}
	}
	return nil
}

// Refresh marks running sessions whose editor has exited as stopped. It
// returns the number of sessions changed.
func (m *Manager) Refresh(ctx context.Context) (int, error) {
	sess, err := m.store.GetActiveSession(ctx)
	if errors.Is(err, apperrors.ErrNoActiveSession) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if sess.Status != state.SessionRunning || m.launcher.Alive(sess.PID) {
		return 0, nil
	}

	m.logger.Info("editor exited", "session", sess.ID, "pid", sess.PID)
	if err := m.store.UpdateSessionStatus(ctx, sess.ID, state.SessionStopped, nil); err != nil {
		return 0, err
	}
	return 1, nil
}

// List returns the most recent sessions, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]*state.Session, error) {
	if _, err := m.Refresh(ctx); err != nil {
		return nil, err
	}
	return m.store.ListSessions(ctx, limit)
}

// Get returns one session.
func (m *Manager) Get(ctx context.Context, id string) (*state.Session, error) {
	if _, err := m.Refresh(ctx); err != nil {
		return nil, err
	}
	return m.store.GetSession(ctx, id)
}

// Active returns the session currently holding the checkout.
func (m *Manager) Active(ctx context.Context) (*state.Session, error) {
	if _, err := m.Refresh(ctx); err != nil {
		return nil, err
	}
	return m.store.GetActiveSession(ctx)
}

// Patch returns the patch a finished session produced.
func (m *Manager) Patch(ctx context.Context, id string) ([]byte, error) {
	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.PatchPath == "" {
		return nil, fmt.Errorf("%w: %s is %s", ErrNoPatch, id, sess.Status)
	}
	data, err := os.ReadFile(sess.PatchPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read patch: %w", err)
	}
	return data, nil
}

func (m *Manager) notify(ctx context.Context, event notify.Event) {
	if err := m.notifier.Notify(ctx, event); err != nil {
		m.logger.Warn("notification failed", "event", event.Type, "error", err)
	}
}
