package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	apperrors "github.com/jayteealao/colab/internal/errors"
	"github.com/jayteealao/colab/internal/git"
	"github.com/jayteealao/colab/internal/lock"
	"github.com/jayteealao/colab/internal/tui"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show repository and session status",
	Long: `Show whether the repository is cloned, where HEAD points, the active
session and which process holds the repository lock.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var statusJSONFlag bool

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusJSONFlag, "json", false, "output in JSON format")
}

type statusReport struct {
	Cloned   bool          `json:"cloned"`
	Path     string        `json:"path"`
	Head     string        `json:"head,omitempty"`
	Branch   string        `json:"branch,omitempty"`
	Remotes  []string      `json:"remotes,omitempty"`
	URLs     []string      `json:"remote_urls,omitempty"`
	Session  *sessionEntry `json:"session,omitempty"`
	Locked   bool          `json:"locked"`
	LockPID  int           `json:"lock_pid,omitempty"`
	Settings string        `json:"settings"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	report := statusReport{
		Cloned:   a.repo.IsCloned(),
		Path:     a.repo.RepoPath(),
		Settings: a.loader.Path(),
	}

	if report.Cloned {
		if report.Head, err = a.repo.Head(ctx); err != nil {
			return err
		}
		report.Branch, err = a.repo.CurrentBranch(ctx)
		if err != nil && !errors.Is(err, apperrors.ErrNotOnBranch) {
			return err
		}
		if report.Remotes, err = a.repo.Remotes(ctx); err != nil {
			return err
		}
		for _, remote := range report.Remotes {
			u, err := a.repo.RemoteURL(ctx, remote)
			if err != nil {
				return err
			}
			report.URLs = append(report.URLs, u)
		}
	}

	sess, err := a.sessions().Active(ctx)
	switch {
	case err == nil:
		entry := newSessionEntry(sess)
		report.Session = &entry
	case !errors.Is(err, apperrors.ErrNoActiveSession):
		return err
	}

	report.Locked, report.LockPID, err = a.locks.IsLocked(lock.RepoLock)
	if err != nil {
		return err
	}

	if statusJSONFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printStatus(report)
	return nil
}

func printStatus(r statusReport) {
	if !r.Cloned {
		fmt.Printf("Repository: not cloned (%s)\n", r.Path)
		fmt.Println("Run 'colab clone --url <url>' to set it up.")
	} else {
		fmt.Printf("Repository: %s\n", r.Path)
		branch := r.Branch
		if branch == "" {
			branch = "(detached)"
		}
		fmt.Printf("HEAD:       %s on %s\n", git.ShortSHA(r.Head), branch)
		for i, remote := range r.Remotes {
			label := ""
			if i == 0 {
				label = "Remotes:"
			}
			fmt.Printf("%-11s %s  %s\n", label, remote, r.URLs[i])
		}
	}
	fmt.Printf("Settings:   %s\n", r.Settings)
	fmt.Println()

	if r.Session == nil {
		fmt.Println("No active session.")
	} else {
		s := r.Session
		fmt.Println("Active Session:")
		fmt.Printf("  ID:       %s\n", s.ID)
		fmt.Printf("  Status:   %s %s\n", tui.GetStatusIcon(s.Status), s.Status)
		fmt.Printf("  Revision: %s\n", s.ShortRev)
		fmt.Printf("  Started:  %s\n", humanize.Time(s.startedAt))
		if s.PID > 0 {
			fmt.Printf("  PID:      %d\n", s.PID)
		}
	}

	if r.Locked {
		if r.LockPID > 0 {
			fmt.Printf("\nRepository lock held by PID %d\n", r.LockPID)
		} else {
			fmt.Println("\nRepository lock is held")
		}
	}
}
