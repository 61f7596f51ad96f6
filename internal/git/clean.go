package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HardReset restores every tracked file and the index to HEAD. Untracked
// files are left alone.
func (m *Manager) HardReset(ctx context.Context) error {
	if err := m.requireCloned(); err != nil {
		return err
	}
	if _, err := m.run(ctx, "reset", "--hard", "--quiet", "HEAD"); err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}
	m.logger.Info("reset working tree to HEAD")
	return nil
}

// Clean deletes untracked entries and entries new in the index, limited to
// scope when it is non-empty. Entries new in the index are dropped from the
// index as well, so no HardReset is needed first. Untracked directories are
// removed recursively. Tracked files and ignored files are never touched. It
// returns the removed repository-relative paths in status order.
func (m *Manager) Clean(ctx context.Context, scope string) ([]string, error) {
	if err := m.requireCloned(); err != nil {
		return nil, err
	}

	args := []string{"status", "--porcelain=v1", "-z", "--untracked-files=normal", "--no-renames"}
	if scope != "" {
		args = append(args, "--", scope)
	}
	out, err := m.run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read status: %w", err)
	}

	var paths, staged []string
	for _, entry := range strings.Split(string(out), "\x00") {
		// "XY path"
		if len(entry) < 4 {
			continue
		}
		x, y, path := entry[0], entry[1], entry[3:]
		switch {
		case x == '?' && y == '?':
			paths = append(paths, path)
		case x == 'A':
			paths = append(paths, path)
			staged = append(staged, path)
		}
	}

	if len(staged) > 0 {
		rmArgs := append([]string{"--literal-pathspecs", "rm", "--cached", "-q", "--ignore-unmatch", "--"}, staged...)
		if _, err := m.run(ctx, rmArgs...); err != nil {
			return nil, fmt.Errorf("failed to unstage new entries: %w", err)
		}
	}

	var removed []string
	for _, path := range paths {
		if err := os.RemoveAll(filepath.Join(m.repoPath, filepath.FromSlash(path))); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed = append(removed, path)
	}

	m.logger.Info("cleaned working tree", "scope", scope, "removed", len(removed))
	return removed, nil
}
