package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jayteealao/colab/internal/git"
	"github.com/jayteealao/colab/internal/state"
	"github.com/jayteealao/colab/internal/tui"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show repository sync history",
	Long: `Show the history of repository operations.

Displays recent clones, fetches, pulls, checkouts and resets with their
target, commit, outcome and time.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historyLimitFlag int
	historyJSONFlag  bool
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "number of events to show")
	historyCmd.Flags().BoolVar(&historyJSONFlag, "json", false, "output in JSON format")
}

type historyEntry struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Target    string         `json:"target,omitempty"`
	Commit    string         `json:"commit,omitempty"`
	Outcome   string         `json:"outcome"`
	Details   map[string]any `json:"details,omitempty"`
	Error     string         `json:"error,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	CreatedAt string         `json:"created_at"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := state.New(getDataDir())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()

	events, err := store.ListSyncEvents(ctx, historyLimitFlag)
	if err != nil {
		return fmt.Errorf("failed to list sync events: %w", err)
	}

	if historyJSONFlag {
		return outputHistoryJSON(events)
	}

	if len(events) == 0 {
		fmt.Println("No repository operations recorded.")
		return nil
	}

	return outputHistoryTable(events)
}

func outputHistoryJSON(events []*state.SyncEvent) error {
	entries := make([]historyEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, historyEntry{
			ID:        e.ID,
			Kind:      e.Kind,
			Target:    e.Target,
			Commit:    e.Commit,
			Outcome:   e.Outcome,
			Details:   e.Details,
			Error:     e.ErrorMessage,
			SessionID: e.SessionID,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func outputHistoryTable(events []*state.SyncEvent) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tKIND\tTARGET\tCOMMIT\tOUTCOME\tNOTE")
	fmt.Fprintln(w, "----\t----\t------\t------\t-------\t----")

	for _, e := range events {
		target := e.Target
		if target == "" {
			target = "-"
		}
		commit := "-"
		if e.Commit != "" {
			commit = git.ShortSHA(e.Commit)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s %s\t%s\n",
			humanize.Time(e.CreatedAt),
			e.Kind,
			target,
			commit,
			tui.GetStatusIcon(e.Outcome),
			e.Outcome,
			historyNote(e))
	}
	w.Flush()

	return nil
}

// historyNote is the short free-form column of the history table.
func historyNote(e *state.SyncEvent) string {
	if e.ErrorMessage != "" {
		return e.ErrorMessage
	}
	switch e.Kind {
	case state.EventPull:
		if o, ok := e.Details["outcome"].(string); ok {
			return o
		}
	case state.EventReset:
		if n, ok := e.Details["removed"].(float64); ok {
			return fmt.Sprintf("%d removed", int(n))
		}
	case state.EventFetch:
		var bytes float64
		for _, v := range e.Details {
			if stats, ok := v.(map[string]any); ok {
				b, _ := stats["received_bytes"].(float64)
				bytes += b
			}
		}
		if bytes > 0 {
			return humanize.IBytes(uint64(bytes)) + " received"
		}
	}
	if e.SessionID != "" {
		return "session " + e.SessionID[:min(8, len(e.SessionID))]
	}
	return ""
}
