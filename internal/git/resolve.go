package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/jayteealao/colab/internal/errors"
)

// Resolution is the commit a target string denotes.
type Resolution struct {
	Commit string
	// RefName is the full refname the target matched, empty for revision expressions.
	RefName string
}

// IsRemote reports whether the resolution came from a remote-tracking ref.
func (r *Resolution) IsRemote() bool {
	return strings.HasPrefix(r.RefName, "refs/remotes/")
}

// IsLocalBranch reports whether the resolution is a local branch.
func (r *Resolution) IsLocalBranch() bool {
	return strings.HasPrefix(r.RefName, "refs/heads/")
}

// LocalBranchName returns the local branch name a remote-tracking ref maps to:
// refs/remotes/<remote>/<name> becomes <name>. The longest matching remote wins.
func (r *Resolution) LocalBranchName(remotes []string) string {
	rest := strings.TrimPrefix(r.RefName, "refs/remotes/")
	best := ""
	for _, remote := range remotes {
		if strings.HasPrefix(rest, remote+"/") && len(remote) > len(best) {
			best = remote
		}
	}
	if best != "" {
		return strings.TrimPrefix(rest, best+"/")
	}
	if _, name, ok := strings.Cut(rest, "/"); ok {
		return name
	}
	return rest
}

// Strategy resolves a target string to a commit. A miss is reported with an
// error wrapping ErrRefNotFound; any other error stops resolution.
type Strategy func(ctx context.Context, m *Manager, target string) (*Resolution, error)

// DefaultStrategies returns the resolution chain in tie-break order:
// local short refs, then revision expressions, then per-remote guesses.
func DefaultStrategies() []Strategy {
	return []Strategy{ResolveShortRef, ResolveRevision, ResolveRemoteGuess}
}

// Resolve turns a branch name, tag, hash or revision expression into a commit.
// It never writes to the repository.
func (m *Manager) Resolve(ctx context.Context, target string) (*Resolution, error) {
	if err := m.requireCloned(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("%w: empty target", apperrors.ErrRefNotFound)
	}

	for _, strategy := range m.strategies {
		res, err := strategy(ctx, m, target)
		if err == nil {
			m.logger.Debug("resolved ref", "target", target, "commit", res.Commit, "ref", res.RefName)
			return res, nil
		}
		if !errors.Is(err, apperrors.ErrRefNotFound) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %s", apperrors.ErrRefNotFound, target)
}

// shortRefRules are git's rules for expanding a short ref name, in priority order.
var shortRefRules = []string{
	"%s",
	"refs/%s",
	"refs/tags/%s",
	"refs/heads/%s",
	"refs/remotes/%s",
	"refs/remotes/%s/HEAD",
}

// ResolveShortRef matches the target against the repository's ref namespace.
func ResolveShortRef(ctx context.Context, m *Manager, target string) (*Resolution, error) {
	refs, err := m.listRefs(ctx)
	if err != nil {
		return nil, err
	}

	for _, rule := range shortRefRules {
		name := fmt.Sprintf(rule, target)
		symref, ok := refs[name]
		if !ok {
			continue
		}
		if symref != "" {
			name = symref
		}
		commit, err := m.peel(ctx, name)
		if err != nil {
			return nil, err
		}
		return &Resolution{Commit: commit, RefName: name}, nil
	}

	return nil, apperrors.ErrRefNotFound
}

// ResolveRevision parses the target as a revision expression (hashes, HEAD~N, ...).
func ResolveRevision(ctx context.Context, m *Manager, target string) (*Resolution, error) {
	commit, err := m.peel(ctx, target)
	if err != nil {
		return nil, err
	}
	return &Resolution{Commit: commit}, nil
}

// ResolveRemoteGuess probes refs/remotes/<remote>/<target> for every remote.
func ResolveRemoteGuess(ctx context.Context, m *Manager, target string) (*Resolution, error) {
	remotes, err := m.Remotes(ctx)
	if err != nil {
		return nil, err
	}
	refs, err := m.listRefs(ctx)
	if err != nil {
		return nil, err
	}

	for _, remote := range remotes {
		name := "refs/remotes/" + remote + "/" + target
		if _, ok := refs[name]; !ok {
			continue
		}
		commit, err := m.peel(ctx, name)
		if err != nil {
			return nil, err
		}
		return &Resolution{Commit: commit, RefName: name}, nil
	}

	return nil, apperrors.ErrRefNotFound
}

// listRefs maps every refname to its symbolic target, or "" for direct refs.
func (m *Manager) listRefs(ctx context.Context) (map[string]string, error) {
	out, err := m.output(ctx, "for-each-ref", "--format=%(refname) %(symref)")
	if err != nil {
		return nil, fmt.Errorf("failed to list refs: %w", err)
	}

	refs := make(map[string]string)
	for _, line := range splitLines(out) {
		name, symref, _ := strings.Cut(line, " ")
		refs[name] = symref
	}
	return refs, nil
}

// peel resolves a revision to the commit it peels to.
func (m *Manager) peel(ctx context.Context, rev string) (string, error) {
	out, err := m.output(ctx, "rev-parse", "--verify", "--quiet", "--end-of-options", rev+"^{commit}")
	if err != nil {
		if exitCode(err) == 1 {
			return "", fmt.Errorf("%w: %s", apperrors.ErrRefNotFound, rev)
		}
		return "", fmt.Errorf("failed to resolve %s: %w", rev, err)
	}
	return out, nil
}
