// Package validate checks user input before it reaches git or the store.
package validate

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/jayteealao/colab/internal/errors"
)

// Target validates a checkout target. Revision syntax such as HEAD~1 or v1^{}
// is allowed; ranges, globs and option-like strings are not.
func Target(target string) error {
	if target == "" {
		return fmt.Errorf("%w: empty", errors.ErrInvalidTarget)
	}

	// A leading dash would be read as an option by git.
	if strings.HasPrefix(target, "-") {
		return fmt.Errorf("%w: %q starts with '-'", errors.ErrInvalidTarget, target)
	}

	for _, r := range target {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains whitespace or control characters", errors.ErrInvalidTarget, target)
		}
	}

	for _, s := range []string{"?", "*", "[", "\\"} {
		if strings.Contains(target, s) {
			return fmt.Errorf("%w: %q contains %q", errors.ErrInvalidTarget, target, s)
		}
	}

	if strings.Contains(target, "..") {
		return fmt.Errorf("%w: ranges are not checkout targets", errors.ErrInvalidTarget)
	}

	return nil
}

// RepoURL validates a git remote. Accepted forms are http(s), git, ssh and
// file URLs, scp-like user@host:path, and an existing local repository path.
func RepoURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: empty", errors.ErrInvalidRepoURL)
	}
	if strings.HasPrefix(rawURL, "-") {
		return fmt.Errorf("%w: %q starts with '-'", errors.ErrInvalidRepoURL, rawURL)
	}

	if isSCPLike(rawURL) {
		parts := strings.SplitN(rawURL, ":", 2)
		if len(parts) != 2 || parts[1] == "" {
			return fmt.Errorf("%w: missing path in %q", errors.ErrInvalidRepoURL, rawURL)
		}
		return nil
	}

	if strings.Contains(rawURL, "://") {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("%w: %w", errors.ErrInvalidRepoURL, err)
		}

		switch u.Scheme {
		case "http", "https", "git", "ssh":
			if u.Host == "" {
				return fmt.Errorf("%w: URL missing host", errors.ErrInvalidRepoURL)
			}
		case "file":
			if u.Path == "" {
				return fmt.Errorf("%w: file URL missing path", errors.ErrInvalidRepoURL)
			}
		default:
			return fmt.Errorf("%w: unsupported scheme %q (use http, https, git, ssh, file or user@host:path)", errors.ErrInvalidRepoURL, u.Scheme)
		}
		return nil
	}

	return localRepo(rawURL)
}

// isSCPLike reports whether s has the user@host:path form.
func isSCPLike(s string) bool {
	at := strings.Index(s, "@")
	if at <= 0 || strings.Contains(s, "://") {
		return false
	}
	return !strings.ContainsAny(s[:at], "/:")
}

// localRepo checks that p is a directory holding a git repository.
func localRepo(p string) error {
	expanded, err := expandPath(p)
	if err != nil {
		return fmt.Errorf("failed to expand path: %w", err)
	}

	info, err := os.Stat(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s is neither a URL nor an existing path", errors.ErrInvalidRepoURL, p)
		}
		return fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", errors.ErrInvalidRepoURL, p)
	}

	// Work tree or bare repository.
	if _, err := os.Stat(filepath.Join(expanded, ".git")); err == nil {
		return nil
	}
	if _, err := os.Stat(filepath.Join(expanded, "HEAD")); err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s is not a git repository", errors.ErrInvalidRepoURL, p)
}

// IsURL returns true if the input looks like a URL rather than a local path.
func IsURL(input string) bool {
	if isSCPLike(input) {
		return true
	}
	for _, scheme := range []string{"http://", "https://", "git://", "ssh://", "file://"} {
		if strings.HasPrefix(input, scheme) {
			return true
		}
	}
	return false
}

// SessionID validates a session identifier.
func SessionID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid session id %q: %w", id, err)
	}
	return nil
}

// PathPattern validates a repository-relative path used as a stage or
// clean scope. Empty means the whole repository.
func PathPattern(p string) error {
	if p == "" {
		return nil
	}
	if strings.HasPrefix(p, "-") {
		return fmt.Errorf("path %q starts with '-'", p)
	}
	if filepath.IsAbs(p) || path.IsAbs(filepath.ToSlash(p)) {
		return fmt.Errorf("path %q must be relative to the repository", p)
	}

	clean := path.Clean(filepath.ToSlash(p))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("path %q escapes the repository", p)
	}
	if clean == ".git" || strings.HasPrefix(clean, ".git/") {
		return fmt.Errorf("path %q is inside .git", p)
	}
	return nil
}

// AbsPath expands ~ and returns p as an absolute path.
func AbsPath(p string) (string, error) {
	expanded, err := expandPath(p)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

// expandPath expands ~ to the user's home directory.
func expandPath(p string) (string, error) {
	if strings.HasPrefix(p, "~/") || p == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if p == "~" {
			return home, nil
		}
		return filepath.Join(home, p[2:]), nil
	}
	return p, nil
}
