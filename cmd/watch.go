package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jayteealao/colab/internal/git"
	"github.com/jayteealao/colab/internal/notify"
	"github.com/jayteealao/colab/internal/session"
	"github.com/jayteealao/colab/internal/state"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch sessions and notify when an editor exits",
	Long: `Watch sessions and send notifications on status changes.

Every interval the editor process of each running session is checked. A
session whose editor has exited is marked stopped and a session_stopped
notification is sent to the configured backends, so someone can run
'colab session finish'.

Examples:
  colab watch                  # Check every 30 seconds
  colab watch --interval 10s   # Check every 10 seconds`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchIntervalFlag time.Duration

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchIntervalFlag, "interval", 30*time.Second, "check interval")
}

// sessionSnapshot is the last seen state of a session.
type sessionSnapshot struct {
	Status string
	PID    int
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if watchIntervalFlag <= 0 {
		return fmt.Errorf("--interval must be positive")
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sessions := a.sessions()
	previous := make(map[string]sessionSnapshot)

	fmt.Printf("Watching sessions (interval: %s)\n", watchIntervalFlag)
	if n := a.notifier.Count(); n > 0 {
		fmt.Printf("Notifications enabled: %d backend(s)\n", n)
	} else {
		fmt.Println("No notification backends configured (see 'colab settings edit')")
	}
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ticker := time.NewTicker(watchIntervalFlag)
	defer ticker.Stop()

	// Do initial check immediately
	if err := checkSessions(ctx, a, sessions, previous); err != nil {
		a.logger.Warn("session check failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := checkSessions(ctx, a, sessions, previous); err != nil {
				a.logger.Warn("session check failed", "error", err)
			}
		}
	}
}

func checkSessions(ctx context.Context, a *app, sessions *session.Manager, previous map[string]sessionSnapshot) error {
	// List refreshes first, so exited editors show up as stopped here.
	list, err := sessions.List(ctx, 10)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	timestamp := time.Now().Format("15:04:05")

	for _, s := range list {
		prev, seen := previous[s.ID]
		current := sessionSnapshot{Status: s.Status, PID: s.PID}
		previous[s.ID] = current

		if !seen {
			// Only report sessions that are still in play.
			if s.IsActive() {
				fmt.Printf("[%s] %s: %s on %s\n", timestamp, s.ID[:min(8, len(s.ID))], s.Status, git.ShortSHA(s.Rev))
			}
			continue
		}
		if prev.Status == current.Status {
			continue
		}

		fmt.Printf("[%s] %s: %s -> %s\n", timestamp, s.ID[:min(8, len(s.ID))], prev.Status, current.Status)

		if event := detectEvent(s, prev); event != nil {
			a.notify(ctx, *event)
		}
	}

	return nil
}

// detectEvent returns the notification for a status change the session
// commands do not already report, or nil.
func detectEvent(s *state.Session, prev sessionSnapshot) *notify.Event {
	if prev.Status == state.SessionRunning && s.Status == state.SessionStopped {
		return &notify.Event{
			Type:      notify.EventSessionStopped,
			SessionID: s.ID,
			Branch:    s.Branch,
			Commit:    s.Rev,
			Status:    s.Status,
			Message:   fmt.Sprintf("editor process %d exited", prev.PID),
		}
	}
	return nil
}
