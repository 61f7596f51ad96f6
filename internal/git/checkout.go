package git

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/jayteealao/colab/internal/errors"
)

// Checkout resolves target and moves the working tree and HEAD to it.
//
// A remote-tracking target becomes a local branch of the same short name that
// tracks the remote branch, and HEAD is attached to it. An existing local
// branch of that name is reused, fast-forwarded when it is behind; one that
// holds commits the remote branch lacks fails with ErrBranchExists. A local branch is
// attached directly. Anything else (tags, hashes, revision expressions)
// detaches HEAD at the commit. Uncommitted changes that would be overwritten
// fail with ErrCheckoutConflict and leave the checkout untouched.
func (m *Manager) Checkout(ctx context.Context, target string) (string, error) {
	res, err := m.Resolve(ctx, target)
	if err != nil {
		return "", err
	}

	head, err := m.Head(ctx)
	if err != nil {
		return "", err
	}

	var branch, existing string
	branchExists := false
	if res.IsRemote() {
		remotes, err := m.Remotes(ctx)
		if err != nil {
			return "", err
		}
		branch = res.LocalBranchName(remotes)

		existing, err = m.peel(ctx, "refs/heads/"+branch)
		switch {
		case err == nil:
			branchExists = true
			if existing != res.Commit {
				behind, err := m.isAncestor(ctx, existing, res.Commit)
				if err != nil {
					return "", err
				}
				if !behind {
					return "", fmt.Errorf("%w: local branch %s is at %s, %s is at %s",
						apperrors.ErrBranchExists, branch, ShortSHA(existing), res.RefName, ShortSHA(res.Commit))
				}
			}
		case !errors.Is(err, apperrors.ErrRefNotFound):
			return "", err
		}
	}

	if err := m.checkoutTree(ctx, head, res.Commit); err != nil {
		return "", err
	}

	msg := "checkout: moving to " + target
	switch {
	case res.IsRemote():
		switch {
		case !branchExists:
			if _, err := m.run(ctx, "branch", "--track", branch, res.RefName); err != nil {
				return "", fmt.Errorf("failed to create branch %s: %w", branch, err)
			}
		case existing != res.Commit:
			// Fast-forward the reused branch; the old value guards against a racing update.
			if _, err := m.run(ctx, "update-ref", "-m", msg, "refs/heads/"+branch, res.Commit, existing); err != nil {
				return "", fmt.Errorf("failed to fast-forward %s: %w", branch, err)
			}
		}
		err = m.attachHead(ctx, msg, "refs/heads/"+branch)
	case res.IsLocalBranch():
		err = m.attachHead(ctx, msg, res.RefName)
	default:
		_, err = m.run(ctx, "update-ref", "--no-deref", "-m", msg, "HEAD", res.Commit)
	}
	if err != nil {
		return "", fmt.Errorf("failed to move HEAD: %w", err)
	}

	m.logger.Info("checked out", "target", target, "commit", ShortSHA(res.Commit), "ref", res.RefName)
	return res.Commit, nil
}

func (m *Manager) attachHead(ctx context.Context, msg, ref string) error {
	_, err := m.run(ctx, "symbolic-ref", "-m", msg, "HEAD", ref)
	return err
}
