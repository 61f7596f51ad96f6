package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	apperrors "github.com/jayteealao/colab/internal/errors"
)

// FetchPolicy decides how Fetch treats a failing remote.
type FetchPolicy string

const (
	// FetchAbort stops at the first failing remote.
	FetchAbort FetchPolicy = "abort"

	// FetchContinue attempts every remote and joins the failures.
	FetchContinue FetchPolicy = "continue"
)

// ParseFetchPolicy converts a settings value to a FetchPolicy. Empty means abort.
func ParseFetchPolicy(s string) (FetchPolicy, error) {
	switch FetchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FetchAbort:
		return FetchAbort, nil
	case FetchContinue:
		return FetchContinue, nil
	default:
		return "", fmt.Errorf("unknown fetch failure policy %q (valid: abort, continue)", s)
	}
}

// FetchOptions configures Fetch.
type FetchOptions struct {
	Policy FetchPolicy
}

// FetchReport holds per-remote statistics in remote order.
type FetchReport struct {
	Remotes []RemoteStats
}

// Totals sums received objects and bytes across remotes.
func (r *FetchReport) Totals() (objects int, bytes uint64) {
	for _, s := range r.Remotes {
		objects += s.ReceivedObjects
		bytes += s.ReceivedBytes
	}
	return objects, bytes
}

// Fetch updates every remote's tracking refs using its default refspecs.
// HEAD, the index and the working tree are never touched. The report is
// returned even on failure and covers every remote attempted.
func (m *Manager) Fetch(ctx context.Context, opts FetchOptions) (*FetchReport, error) {
	remotes, err := m.Remotes(ctx)
	if err != nil {
		return nil, err
	}

	report := &FetchReport{}
	var errs []error

	for _, remote := range remotes {
		stats, err := m.fetchRemote(ctx, remote)
		report.Remotes = append(report.Remotes, stats)
		if err == nil {
			continue
		}

		m.logger.Error("fetch failed", "remote", remote, "error", err)
		if opts.Policy != FetchContinue {
			return report, err
		}
		errs = append(errs, err)
	}

	return report, errors.Join(errs...)
}

// fetchRemote fetches a single remote and records its transfer statistics.
func (m *Manager) fetchRemote(ctx context.Context, remote string) (RemoteStats, error) {
	parser := NewProgressParser(m.stderr)

	_, err := m.exec(ctx, m.repoPath, parser, "fetch", "--progress", remote)

	stats := parser.Stats()
	stats.Remote = remote
	if err != nil {
		stats.Err = fmt.Errorf("%w: %w: %s: %w", apperrors.ErrFetchFailed, apperrors.ErrTransport, remote, err)
		return stats, stats.Err
	}

	m.logger.Info("fetched remote",
		"remote", remote,
		"objects", fmt.Sprintf("%d/%d", stats.ReceivedObjects, stats.TotalObjects),
		"deltas", fmt.Sprintf("%d/%d", stats.IndexedDeltas, stats.TotalDeltas),
		"local_objects", stats.LocalObjects,
		"received", humanize.Bytes(stats.ReceivedBytes),
	)
	return stats, nil
}
