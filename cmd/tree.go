package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/jayteealao/colab/internal/prompt"
	"github.com/jayteealao/colab/internal/state"
	"github.com/jayteealao/colab/internal/validate"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Stage the mappings and print the staged patch",
	Long: `Stage every change under the mappings path and print the staged patch.

The working tree is left as is; use 'colab reset' to discard the changes.`,
	Args: cobra.NoArgs,
	RunE: runDiff,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard local changes",
	Long: `Reset the working tree and index to HEAD, then delete untracked and newly
added files under the scope (default is session.mappings_path).

Refused while a session is active.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

var (
	diffColorFlag  string
	diffStatFlag   bool
	resetScopeFlag string
	resetYesFlag   bool
)

func init() {
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(resetCmd)

	addColorFlag(diffCmd, &diffColorFlag)
	diffCmd.Flags().BoolVar(&diffStatFlag, "stat", false, "print a summary instead of the patch")
	resetCmd.Flags().StringVar(&resetScopeFlag, "scope", "", "path to clean (default is session.mappings_path)")
	resetCmd.Flags().BoolVarP(&resetYesFlag, "yes", "y", false, "skip the confirmation prompt")
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	color, err := useColor(diffColorFlag, os.Stdout)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var patch []byte
	var stat diffStat
	err = a.withRepoLock(ctx, func() error {
		if err := a.repo.Stage(ctx, a.settings.MappingsScope()); err != nil {
			return err
		}
		for line, err := range a.repo.DiffLines(ctx) {
			if err != nil {
				return err
			}
			stat.add(line)
			patch = line.AppendTo(patch)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(patch) == 0 {
		fmt.Println("No changes.")
		return nil
	}
	if diffStatFlag {
		fmt.Println(stat)
		return nil
	}
	return writePatch(os.Stdout, patch, color)
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	scope := resetScopeFlag
	if scope == "" {
		scope = a.settings.MappingsScope()
	}
	if err := validate.PathPattern(scope); err != nil {
		return err
	}

	if !resetYesFlag {
		if !isTerminal(os.Stdin) {
			return fmt.Errorf("refusing to reset without --yes on a non-interactive terminal")
		}
		ok, err := prompter.Confirm(
			"Discard local changes?",
			fmt.Sprintf("Tracked files go back to HEAD and new files under %s are deleted.", scope),
		)
		if errors.Is(err, prompt.ErrCanceled) || (err == nil && !ok) {
			fmt.Println("Reset canceled.")
			return nil
		}
		if err != nil {
			return err
		}
	}

	var removed []string
	err = a.withRepoLock(ctx, func() error {
		if err := requireNoSession(ctx, a); err != nil {
			return err
		}
		if err := a.repo.HardReset(ctx); err != nil {
			return err
		}
		var err error
		removed, err = a.repo.Clean(ctx, scope)
		if err != nil {
			return err
		}

		head, err := a.repo.Head(ctx)
		if err != nil {
			return err
		}
		a.record(ctx, &state.SyncEvent{
			Kind:    state.EventReset,
			Target:  scope,
			Commit:  head,
			Outcome: state.OutcomeOK,
			Details: map[string]any{"removed": len(removed)},
		})
		return nil
	})
	if err != nil {
		return err
	}

	for _, p := range removed {
		fmt.Printf("  removed %s\n", p)
	}
	fmt.Printf("Reset to HEAD, %d untracked entries removed from %s\n", len(removed), scope)

	return nil
}
