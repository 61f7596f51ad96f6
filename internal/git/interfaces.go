package git

import (
	"context"
	"iter"
)

// Repository defines the synchronization operations on the shared checkout.
type Repository interface {
	RepoPath() string
	IsCloned() bool
	Head(ctx context.Context) (string, error)
	CurrentBranch(ctx context.Context) (string, error)
	Remotes(ctx context.Context) ([]string, error)
	Branches(ctx context.Context, remote bool) ([]string, error)

	Resolve(ctx context.Context, target string) (*Resolution, error)
	Clone(ctx context.Context, opts CloneOptions) (*CloneResult, error)
	Fetch(ctx context.Context, opts FetchOptions) (*FetchReport, error)
	Pull(ctx context.Context) (PullResult, error)
	Checkout(ctx context.Context, target string) (string, error)

	Stage(ctx context.Context, patterns ...string) error
	DiffLines(ctx context.Context) iter.Seq2[DiffLine, error]
	Diff(ctx context.Context) ([]byte, error)
	HardReset(ctx context.Context) error
	Clean(ctx context.Context, scope string) ([]string, error)
}

// Ensure Manager implements Repository
var _ Repository = (*Manager)(nil)
