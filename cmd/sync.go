package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	apperrors "github.com/jayteealao/colab/internal/errors"
	"github.com/jayteealao/colab/internal/git"
	"github.com/jayteealao/colab/internal/notify"
	"github.com/jayteealao/colab/internal/state"
	"github.com/jayteealao/colab/internal/validate"
	"github.com/spf13/cobra"
)

var cloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Clone the shared repository",
	Long: `Clone the shared repository into <data-dir>/repo.

The URL and branch default to repo.url and repo.branch from the settings.
When repo.url is unset, the --url given here is saved to the settings.
repo.post_clone_cmd runs in the new checkout afterwards.`,
	Args: cobra.NoArgs,
	RunE: runClone,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch every remote",
	Long: `Fetch every configured remote, updating remote-tracking refs only.

With fetch_failure_policy=continue every remote is attempted and the failures
are reported together; the default stops at the first failing remote.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fast-forward the current branch to its upstream",
	Args:  cobra.NoArgs,
	RunE:  runPull,
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout <target>",
	Short: "Check out a branch, tag or commit",
	Long: `Check out a branch, tag or commit.

A remote-tracking branch with no local counterpart creates a tracking local
branch. Tags and commits leave HEAD detached.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckout,
}

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "List branches",
	Args:  cobra.NoArgs,
	RunE:  runBranches,
}

var (
	cloneURLFlag       string
	cloneBranchFlag    string
	branchesRemoteFlag bool
)

func init() {
	rootCmd.AddCommand(cloneCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(branchesCmd)

	cloneCmd.Flags().StringVar(&cloneURLFlag, "url", "", "repository URL (default is repo.url)")
	cloneCmd.Flags().StringVar(&cloneBranchFlag, "branch", "", "branch to check out (default is repo.branch)")
	branchesCmd.Flags().BoolVarP(&branchesRemoteFlag, "remote", "r", false, "list remote-tracking branches")
}

func runClone(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	url := cloneURLFlag
	if url == "" {
		url = a.settings.Repo.URL
	}
	if url == "" {
		return fmt.Errorf("no repository URL: pass --url or set repo.url")
	}
	if err := validate.RepoURL(url); err != nil {
		return err
	}
	if !validate.IsURL(url) {
		// Local paths are saved to repo.url, so they must not depend on the cwd.
		abs, err := validate.AbsPath(url)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", url, err)
		}
		url = abs
	}

	branch := cloneBranchFlag
	if branch == "" {
		branch = a.settings.Repo.Branch
	}

	fmt.Printf("Checking access to %s...\n", url)
	if err := git.CheckAuth(ctx, url); err != nil {
		return err
	}

	fmt.Printf("Cloning %s (%s)...\n", url, branch)

	var res *git.CloneResult
	err = a.withRepoLock(ctx, func() error {
		var err error
		res, err = a.repo.Clone(ctx, git.CloneOptions{
			URL:          url,
			Branch:       branch,
			PostCloneCmd: a.settings.Repo.PostCloneCmd,
			Hooks:        a.hooks,
		})
		return err
	})

	event := &state.SyncEvent{Kind: state.EventClone, Target: branch, Outcome: state.OutcomeOK}
	if res != nil {
		event.Commit = res.Head
		event.Details = map[string]any{"url": url}
	}
	if err != nil {
		event.Outcome = state.OutcomeFailed
		event.ErrorMessage = err.Error()
	}
	a.record(ctx, event)

	if res == nil {
		return err
	}

	fmt.Printf("Cloned %s at %s\n", res.Branch, git.ShortSHA(res.Head))

	if a.settings.Repo.URL == "" {
		if err := a.loader.Set("repo.url", url); err != nil {
			a.logger.Warn("failed to save repo.url", "error", err)
		} else {
			fmt.Printf("Saved repo.url to %s\n", a.loader.Path())
		}
	}

	a.notify(ctx, notify.Event{
		Type:    notify.EventRepoCloned,
		Branch:  res.Branch,
		Commit:  res.Head,
		Details: map[string]string{"url": url},
	})

	// A post-clone hook failure under the abort policy.
	return err
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	policy, err := git.ParseFetchPolicy(a.settings.FetchFailurePolicy)
	if err != nil {
		return err
	}

	var report *git.FetchReport
	err = a.withRepoLock(ctx, func() error {
		var err error
		report, err = a.repo.Fetch(ctx, git.FetchOptions{Policy: policy})
		return err
	})

	event := &state.SyncEvent{Kind: state.EventFetch, Outcome: state.OutcomeOK}
	if err != nil {
		event.Outcome = state.OutcomeFailed
		event.ErrorMessage = err.Error()
	}
	if report != nil {
		event.Details = fetchDetails(report)
		printFetchReport(report)
	}
	a.record(ctx, event)

	return err
}

func fetchDetails(report *git.FetchReport) map[string]any {
	details := make(map[string]any, len(report.Remotes))
	for _, s := range report.Remotes {
		details[s.Remote] = s
	}
	return details
}

func printFetchReport(report *git.FetchReport) {
	for _, s := range report.Remotes {
		if s.Err != nil {
			fmt.Printf("  ✗ %s: %v\n", s.Remote, s.Err)
			continue
		}
		if s.TotalObjects == 0 {
			fmt.Printf("  ✓ %s: up to date\n", s.Remote)
			continue
		}
		fmt.Printf("  ✓ %s: %d/%d objects, %s\n",
			s.Remote, s.ReceivedObjects, s.TotalObjects, humanize.IBytes(s.ReceivedBytes))
	}

	if objects, bytes := report.Totals(); len(report.Remotes) > 1 && objects > 0 {
		fmt.Printf("Received %d objects (%s) from %d remotes\n", objects, humanize.IBytes(bytes), len(report.Remotes))
	}
}

func runPull(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var res git.PullResult
	err = a.withRepoLock(ctx, func() error {
		if err := requireNoSession(ctx, a); err != nil {
			return err
		}
		var err error
		res, err = a.repo.Pull(ctx)
		return err
	})

	event := &state.SyncEvent{
		Kind:    state.EventPull,
		Target:  res.Branch,
		Commit:  res.Head,
		Outcome: state.OutcomeOK,
		Details: map[string]any{"outcome": res.Outcome.String()},
	}
	if res.Remote != "" {
		event.Details["remote"] = res.Remote
	}
	if err != nil {
		event.Outcome = state.OutcomeFailed
		event.ErrorMessage = err.Error()
	}
	if !errors.Is(err, apperrors.ErrSessionActive) && !errors.Is(err, apperrors.ErrRepoLocked) {
		a.record(ctx, event)
	}
	if err != nil {
		return err
	}

	switch res.Outcome {
	case git.PullUpToDate:
		fmt.Printf("Already up to date at %s\n", git.ShortSHA(res.Head))
	case git.PullFastForwarded:
		fmt.Printf("Fast-forwarded %s to %s\n", res.Branch, git.ShortSHA(res.Head))
		a.notify(ctx, notify.Event{
			Type:    notify.EventRepoPulled,
			Branch:  res.Branch,
			Commit:  res.Head,
			Details: map[string]string{"remote": res.Remote},
		})
	}

	return nil
}

func runCheckout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	target := args[0]

	if err := validate.Target(target); err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var commit, branch string
	err = a.withRepoLock(ctx, func() error {
		if err := requireNoSession(ctx, a); err != nil {
			return err
		}
		var err error
		if commit, err = a.repo.Checkout(ctx, target); err != nil {
			return err
		}
		branch, err = a.repo.CurrentBranch(ctx)
		if errors.Is(err, apperrors.ErrNotOnBranch) {
			err = nil
		}
		return err
	})

	if !errors.Is(err, apperrors.ErrSessionActive) && !errors.Is(err, apperrors.ErrRepoLocked) {
		event := &state.SyncEvent{Kind: state.EventCheckout, Target: target, Commit: commit, Outcome: state.OutcomeOK}
		if err != nil {
			event.Outcome = state.OutcomeFailed
			event.ErrorMessage = err.Error()
		}
		a.record(ctx, event)
	}
	if err != nil {
		return err
	}

	if branch != "" {
		fmt.Printf("Switched to %s at %s\n", branch, git.ShortSHA(commit))
	} else {
		fmt.Printf("HEAD is now detached at %s\n", git.ShortSHA(commit))
	}

	a.notify(ctx, notify.Event{
		Type:    notify.EventRepoCheckedOut,
		Branch:  branch,
		Commit:  commit,
		Details: map[string]string{"target": target},
	})

	return nil
}

func runBranches(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	branches, err := a.repo.Branches(ctx, branchesRemoteFlag)
	if err != nil {
		return err
	}

	current, err := a.repo.CurrentBranch(ctx)
	if err != nil && !errors.Is(err, apperrors.ErrNotOnBranch) {
		return err
	}

	if len(branches) == 0 {
		fmt.Println("No branches.")
		return nil
	}

	for _, b := range branches {
		marker := " "
		if !branchesRemoteFlag && b == current {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, b)
	}

	return nil
}

// requireNoSession refuses to touch the working tree while a session owns it.
func requireNoSession(ctx context.Context, a *app) error {
	sess, err := a.store.GetActiveSession(ctx)
	if errors.Is(err, apperrors.ErrNoActiveSession) {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s (%s)", apperrors.ErrSessionActive, sess.ID, sess.Status)
}
