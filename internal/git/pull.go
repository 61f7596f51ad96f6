package git

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/jayteealao/colab/internal/errors"
)

// PullOutcome classifies a pull.
type PullOutcome int

const (
	// PullFailed means the pull returned an error.
	PullFailed PullOutcome = iota
	// PullFastForwarded means the branch moved to the upstream tip.
	PullFastForwarded
	// PullUpToDate means the upstream had nothing new.
	PullUpToDate
)

func (o PullOutcome) String() string {
	switch o {
	case PullFastForwarded:
		return "fast-forwarded"
	case PullUpToDate:
		return "up-to-date"
	default:
		return "failed"
	}
}

// PullResult is the tagged outcome of Pull. Head is set for PullFastForwarded
// (the new tip) and PullUpToDate (the unchanged HEAD).
type PullResult struct {
	Outcome PullOutcome
	Head    string
	Remote  string
	Branch  string
}

// Pull fetches the current branch's upstream and fast-forwards to it.
// Divergence is never merged; it fails with ErrMergeRequired.
func (m *Manager) Pull(ctx context.Context) (PullResult, error) {
	result := PullResult{Outcome: PullFailed}

	branchRef, err := m.currentBranchRef(ctx)
	if err != nil {
		return result, err
	}
	branch := strings.TrimPrefix(branchRef, "refs/heads/")
	result.Branch = branch

	remote, mergeRef, err := m.upstream(ctx, branch)
	if err != nil {
		return result, err
	}
	result.Remote = remote

	if _, err := m.fetchRemote(ctx, remote); err != nil {
		return result, err
	}

	local, err := m.peel(ctx, branchRef)
	if err != nil {
		return result, err
	}
	trackingRef := "refs/remotes/" + remote + "/" + strings.TrimPrefix(mergeRef, "refs/heads/")
	tip, err := m.peel(ctx, trackingRef)
	if err != nil {
		return result, err
	}

	if tip == local {
		result.Outcome, result.Head = PullUpToDate, local
		return result, nil
	}
	behind, err := m.isAncestor(ctx, tip, local)
	if err != nil {
		return result, err
	}
	if behind {
		result.Outcome, result.Head = PullUpToDate, local
		return result, nil
	}

	canFastForward, err := m.isAncestor(ctx, local, tip)
	if err != nil {
		return result, err
	}
	forceMerge, err := m.noFastForward(ctx)
	if err != nil {
		return result, err
	}
	if !canFastForward || forceMerge {
		return result, fmt.Errorf("%w: %s and %s/%s", apperrors.ErrMergeRequired, branch, remote, branch)
	}

	if err := m.checkoutTree(ctx, local, tip); err != nil {
		return result, err
	}

	msg := fmt.Sprintf("pull %s %s: Fast-forward", remote, branch)
	if _, err := m.run(ctx, "update-ref", "-m", msg, branchRef, tip, local); err != nil {
		return result, fmt.Errorf("failed to advance %s: %w", branch, err)
	}

	m.logger.Info("fast-forwarded", "branch", branch, "from", ShortSHA(local), "to", ShortSHA(tip))

	result.Outcome, result.Head = PullFastForwarded, tip
	return result, nil
}

// upstream reads the remote and merge ref configured for a branch.
func (m *Manager) upstream(ctx context.Context, branch string) (remote, mergeRef string, err error) {
	remote, err = m.config(ctx, "branch."+branch+".remote")
	if err != nil {
		return "", "", err
	}
	mergeRef, err = m.config(ctx, "branch."+branch+".merge")
	if err != nil {
		return "", "", err
	}
	if remote == "" || mergeRef == "" || remote == "." {
		return "", "", fmt.Errorf("%w: %w: %s", apperrors.ErrNoUpstream, apperrors.ErrRefNotFound, branch)
	}
	return remote, mergeRef, nil
}

// config returns a config value, or "" when the key is unset.
func (m *Manager) config(ctx context.Context, key string) (string, error) {
	out, err := m.output(ctx, "config", "--get", key)
	if err != nil {
		if exitCode(err) == 1 {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config %s: %w", key, err)
	}
	return out, nil
}

// noFastForward reports whether merge.ff forces a merge commit.
func (m *Manager) noFastForward(ctx context.Context) (bool, error) {
	val, err := m.config(ctx, "merge.ff")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(val, "false"), nil
}

// isAncestor reports whether ancestor is reachable from descendant.
func (m *Manager) isAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	_, err := m.run(ctx, "merge-base", "--is-ancestor", ancestor, descendant)
	if err == nil {
		return true, nil
	}
	if exitCode(err) == 1 {
		return false, nil
	}
	return false, fmt.Errorf("failed to compare %s and %s: %w", ShortSHA(ancestor), ShortSHA(descendant), err)
}

// checkoutTree moves the index and working tree from one commit's tree to
// another's, keeping local edits that do not conflict.
func (m *Manager) checkoutTree(ctx context.Context, from, to string) error {
	if _, err := m.run(ctx, "read-tree", "-m", "-u", from, to); err != nil {
		if isConflict(stderrOf(err)) {
			return fmt.Errorf("%w: %w", apperrors.ErrCheckoutConflict, err)
		}
		return fmt.Errorf("failed to check out %s: %w", ShortSHA(to), err)
	}
	return nil
}

func isConflict(stderr string) bool {
	return strings.Contains(stderr, "not uptodate") ||
		strings.Contains(stderr, "would be overwritten") ||
		strings.Contains(stderr, "would be removed")
}
