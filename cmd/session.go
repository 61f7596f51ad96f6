package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	apperrors "github.com/jayteealao/colab/internal/errors"
	"github.com/jayteealao/colab/internal/git"
	"github.com/jayteealao/colab/internal/session"
	"github.com/jayteealao/colab/internal/state"
	"github.com/jayteealao/colab/internal/tui"
	"github.com/jayteealao/colab/internal/validate"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage editing sessions",
	Long: `Manage editing sessions.

Only one session runs at a time. It owns the working tree from start until
finish; pull, checkout and reset are refused in between.`,
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a session on the current HEAD",
	Long: `Start a session on the current HEAD.

Runs session.pre_cmd, then launches the editor server with the configured jar
and mappings path. The server keeps running after this command exits.`,
	Args: cobra.NoArgs,
	RunE: runSessionStart,
}

var sessionFinishCmd = &cobra.Command{
	Use:   "finish [id]",
	Short: "Finish a session and save its patch",
	Long: `Finish a session and save its patch.

Stops the editor server if it is still running, stages the mappings path,
writes the staged changes to session.patch and resets the working tree.
Without an id the active session is finished.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessionFinish,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionList,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionPatchCmd = &cobra.Command{
	Use:   "patch <id>",
	Short: "Print a finished session's patch",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionPatch,
}

var (
	sessionPasswordFlag    string
	sessionAskPasswordFlag bool
	sessionListLimitFlag   int
	sessionListJSONFlag    bool
	sessionShowJSONFlag    bool
	sessionPatchColorFlag  string
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionFinishCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionPatchCmd)

	sessionStartCmd.Flags().StringVar(&sessionPasswordFlag, "password", "", "password clients must present")
	sessionStartCmd.Flags().BoolVar(&sessionAskPasswordFlag, "ask-password", false, "prompt for the password")
	sessionStartCmd.MarkFlagsMutuallyExclusive("password", "ask-password")

	sessionListCmd.Flags().IntVarP(&sessionListLimitFlag, "limit", "n", 20, "number of sessions to show")
	sessionListCmd.Flags().BoolVar(&sessionListJSONFlag, "json", false, "output in JSON format")

	sessionShowCmd.Flags().BoolVar(&sessionShowJSONFlag, "json", false, "output in JSON format")

	addColorFlag(sessionPatchCmd, &sessionPatchColorFlag)
}

type sessionEntry struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Rev        string  `json:"rev"`
	ShortRev   string  `json:"short_rev"`
	Branch     string  `json:"branch,omitempty"`
	JarName    string  `json:"jar_name"`
	JarSHA256  string  `json:"jar_sha256"`
	PID        int     `json:"pid,omitempty"`
	Dir        string  `json:"dir"`
	PatchPath  string  `json:"patch_path,omitempty"`
	PatchSize  int64   `json:"patch_size,omitempty"`
	StartedAt  string  `json:"started_at"`
	FinishedAt *string `json:"finished_at,omitempty"`
	Error      string  `json:"error,omitempty"`

	startedAt  time.Time
	finishedAt *time.Time
}

func newSessionEntry(s *state.Session) sessionEntry {
	entry := sessionEntry{
		ID:        s.ID,
		Status:    s.Status,
		Rev:       s.Rev,
		ShortRev:  git.ShortSHA(s.Rev),
		Branch:    s.Branch,
		JarName:   s.JarName,
		JarSHA256: s.JarSHA256,
		PID:       s.PID,
		Dir:       s.Dir,
		PatchPath: s.PatchPath,
		PatchSize: s.PatchSize,
		StartedAt: s.StartedAt.UTC().Format(time.RFC3339),
		Error:     s.ErrorMessage,
		startedAt: s.StartedAt,
	}
	if s.FinishedAt != nil {
		finishedStr := s.FinishedAt.UTC().Format(time.RFC3339)
		entry.FinishedAt = &finishedStr
		entry.finishedAt = s.FinishedAt
	}
	return entry
}

func runSessionStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	password := sessionPasswordFlag
	if sessionAskPasswordFlag {
		var err error
		if password, err = prompter.Secret("Session password"); err != nil {
			return err
		}
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println("Starting session...")

	sess, err := a.sessions().Start(ctx, session.StartOptions{Password: password})
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	branch := sess.Branch
	if branch == "" {
		branch = "(detached)"
	}
	fmt.Printf("Session %s started on %s at %s\n", sess.ID, branch, git.ShortSHA(sess.Rev))
	fmt.Printf("  Editor PID: %d\n", sess.PID)
	fmt.Printf("  Jar:        %s (%s)\n", sess.JarName, sess.JarSHA256[:min(12, len(sess.JarSHA256))])
	fmt.Printf("  Logs:       %s\n", sess.Dir)
	fmt.Println("Run 'colab session finish' when the session is over.")

	return nil
}

func runSessionFinish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sessions := a.sessions()

	var id string
	if len(args) > 0 {
		id = args[0]
		if err := validate.SessionID(id); err != nil {
			return err
		}
	} else {
		active, err := sessions.Active(ctx)
		if err != nil {
			return err
		}
		id = active.ID
	}

	fmt.Printf("Finishing session %s...\n", id)

	sess, err := sessions.Finish(ctx, id)
	if sess == nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}

	if sess.PatchSize == 0 {
		fmt.Println("Session finished with no changes.")
	} else {
		fmt.Printf("Session finished, patch saved to %s (%s)\n", sess.PatchPath, humanize.IBytes(uint64(sess.PatchSize)))
	}

	// post_cmd failed under the abort policy.
	return err
}

func runSessionList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.sessions().List(ctx, sessionListLimitFlag)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	entries := make([]sessionEntry, 0, len(list))
	for _, s := range list {
		entries = append(entries, newSessionEntry(s))
	}

	if sessionListJSONFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No sessions yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tREV\tBRANCH\tSTARTED\tDURATION\tPATCH")
	fmt.Fprintln(w, "--\t------\t---\t------\t-------\t--------\t-----")
	for _, e := range entries {
		branch := e.Branch
		if branch == "" {
			branch = "-"
		}
		duration := "-"
		if e.finishedAt != nil {
			duration = e.finishedAt.Sub(e.startedAt).Round(time.Second).String()
		}
		patch := "-"
		if e.PatchPath != "" {
			patch = humanize.IBytes(uint64(e.PatchSize))
		}
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID[:min(8, len(e.ID))],
			tui.GetStatusIcon(e.Status), e.Status,
			e.ShortRev,
			branch,
			humanize.Time(e.startedAt),
			duration,
			patch)
	}
	w.Flush()

	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := args[0]

	if err := validate.SessionID(id); err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.sessions().Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionNotFound) {
			return fmt.Errorf("session %q not found", id)
		}
		return err
	}

	entry := newSessionEntry(sess)
	if sessionShowJSONFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	}

	fmt.Printf("Session:  %s\n", entry.ID)
	fmt.Printf("Status:   %s %s\n", tui.GetStatusIcon(entry.Status), entry.Status)
	fmt.Printf("Revision: %s\n", entry.Rev)
	if entry.Branch != "" {
		fmt.Printf("Branch:   %s\n", entry.Branch)
	}
	fmt.Printf("Jar:      %s\n", entry.JarName)
	fmt.Printf("SHA-256:  %s\n", entry.JarSHA256)
	if entry.PID > 0 {
		fmt.Printf("PID:      %d\n", entry.PID)
	}
	fmt.Printf("Dir:      %s\n", entry.Dir)
	fmt.Printf("Started:  %s (%s)\n", entry.startedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(entry.startedAt))
	if entry.finishedAt != nil {
		fmt.Printf("Finished: %s (%s)\n", entry.finishedAt.Local().Format("2006-01-02 15:04:05"),
			entry.finishedAt.Sub(entry.startedAt).Round(time.Second))
	}
	if entry.PatchPath != "" {
		fmt.Printf("Patch:    %s (%s)\n", entry.PatchPath, humanize.IBytes(uint64(entry.PatchSize)))
	}
	if entry.Error != "" {
		fmt.Printf("Error:    %s\n", entry.Error)
	}

	return nil
}

func runSessionPatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := args[0]

	if err := validate.SessionID(id); err != nil {
		return err
	}

	color, err := useColor(sessionPatchColorFlag, os.Stdout)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	patch, err := a.sessions().Patch(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNoPatch) {
			return fmt.Errorf("session %s has no patch yet; finish it first", id)
		}
		return err
	}
	if len(patch) == 0 {
		fmt.Fprintln(os.Stderr, "The patch is empty.")
		return nil
	}

	return writePatch(os.Stdout, patch, color)
}
