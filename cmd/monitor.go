package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jayteealao/colab/internal/state"
	"github.com/jayteealao/colab/internal/tui"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Launch the TUI dashboard",
	Long: `Launch an interactive terminal dashboard of sessions and sync history.

The dashboard shows:
- Recent sessions with their status, revision and patch size
- The latest repository operations
- Real-time updates

Navigation:
  ↑/↓     Navigate sessions
  Enter   View session details
  Esc     Go back
  r       Refresh
  q       Quit`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

var monitorRefreshFlag time.Duration

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().DurationVar(&monitorRefreshFlag, "refresh", 5*time.Second, "refresh interval")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorRefreshFlag <= 0 {
		return fmt.Errorf("--refresh must be positive")
	}

	store, err := state.New(getDataDir())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()

	model := tui.NewModel(cmd.Context(), store, monitorRefreshFlag)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	return nil
}
