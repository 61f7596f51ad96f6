package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/jayteealao/colab/internal/errors"
	"github.com/jayteealao/colab/internal/state"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up orphaned state",
	Long: `Clean up orphaned session state and leftovers of interrupted commands.

This command:
1. Marks sessions interrupted while starting as failed
2. Marks running sessions whose editor exited as stopped
3. Removes session directories not referenced by any session
4. Removes temporary directories left by interrupted clones`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

var (
	cleanupDryRunFlag bool
)

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().BoolVar(&cleanupDryRunFlag, "dry-run", false, "show what would be cleaned without making changes")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println("Starting cleanup...")
	if cleanupDryRunFlag {
		fmt.Println("(dry run mode - no changes will be made)")
	}
	fmt.Println()

	// Session start and clone hold the repository lock for their whole run, so
	// anything half-done found while holding it was interrupted.
	return a.withRepoLock(ctx, func() error {
		sessions, err := a.store.ListSessions(ctx, 0)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		// 1. Mark interrupted session starts as failed
		fmt.Println("Checking for interrupted sessions...")
		for _, s := range sessions {
			if s.Status != state.SessionStarting {
				continue
			}
			fmt.Printf("  Found interrupted session: %s\n", s.ID)
			if !cleanupDryRunFlag {
				errMsg := "interrupted while starting"
				if err := a.store.UpdateSessionStatus(ctx, s.ID, state.SessionFailed, &errMsg); err != nil {
					fmt.Fprintf(os.Stderr, "    Warning: failed to update status: %v\n", err)
				}
			}
		}
		fmt.Println()

		// 2. Refresh editor processes
		fmt.Println("Checking editor processes...")
		if !cleanupDryRunFlag {
			n, err := a.sessions().Refresh(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  Warning: failed to refresh sessions: %v\n", err)
			} else if n > 0 {
				fmt.Printf("  Marked %d session(s) stopped; run 'colab session finish'\n", n)
			}
		}
		fmt.Println()

		// 3. Remove orphaned session directories
		fmt.Println("Checking for orphaned session directories...")
		known := make(map[string]bool, len(sessions))
		for _, s := range sessions {
			known[s.ID] = true
		}
		sessionsDir := filepath.Join(a.dataDir, "sessions")
		entries, err := os.ReadDir(sessionsDir)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read sessions directory: %w", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() || known[entry.Name()] {
				continue
			}
			if _, err := a.store.GetSession(ctx, entry.Name()); !errors.Is(err, apperrors.ErrSessionNotFound) {
				continue
			}
			fmt.Printf("  Found orphaned session directory: %s\n", entry.Name())
			if !cleanupDryRunFlag {
				if err := os.RemoveAll(filepath.Join(sessionsDir, entry.Name())); err != nil {
					fmt.Fprintf(os.Stderr, "    Warning: failed to remove: %v\n", err)
				}
			}
		}
		fmt.Println()

		// 4. Remove interrupted clones
		fmt.Println("Checking for interrupted clones...")
		entries, err = os.ReadDir(a.dataDir)
		if err != nil {
			return fmt.Errorf("failed to read data directory: %w", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() || !strings.HasPrefix(entry.Name(), ".clone-") {
				continue
			}
			fmt.Printf("  Found interrupted clone: %s\n", entry.Name())
			if !cleanupDryRunFlag {
				if err := os.RemoveAll(filepath.Join(a.dataDir, entry.Name())); err != nil {
					fmt.Fprintf(os.Stderr, "    Warning: failed to remove: %v\n", err)
				}
			}
		}

		fmt.Println()
		fmt.Println("Cleanup complete.")
		return nil
	})
}
