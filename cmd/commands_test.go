package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jayteealao/colab/internal/config"
	apperrors "github.com/jayteealao/colab/internal/errors"
	"github.com/jayteealao/colab/internal/git"
	"github.com/jayteealao/colab/internal/notify"
	"github.com/jayteealao/colab/internal/state"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mappingContent = "CLASS a Foo\n\tMETHOD b bar ()V\n"

// --- Test Helpers ---

// captureOutput captures stdout and stderr during the execution of f.
func captureOutput(f func() error) (string, string, error) {
	oldStdout := os.Stdout
	oldStderr := os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	var bufOut, bufErr bytes.Buffer
	done := make(chan struct{}, 2)
	go func() { io.Copy(&bufOut, rOut); done <- struct{}{} }()
	go func() { io.Copy(&bufErr, rErr); done <- struct{}{} }()

	err := f()

	wOut.Close()
	wErr.Close()
	<-done
	<-done
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	return bufOut.String(), bufErr.String(), err
}

// resetFlags puts every flag of c and its subcommands back to its default so
// runs do not leak into each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runColab executes the root command against dataDir and returns stdout.
func runColab(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)
	rootCmd.SetArgs(append([]string{"--data-dir", dataDir}, args...))
	stdout, _, err := captureOutput(func() error {
		return rootCmd.ExecuteContext(context.Background())
	})
	return stdout, err
}

func gitRun(t *testing.T, dir string, args ...string) string {
	t.Helper()

	out, err := exec.Command("git", append([]string{"-C", dir}, args...)...).Output()
	if err != nil {
		var stderr string
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = string(exitErr.Stderr)
		}
		require.NoError(t, err, "git %s: %s", strings.Join(args, " "), stderr)
	}
	return strings.TrimSpace(string(out))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// setupTestUpstream creates an upstream repository with master and feature
// branches, and returns its path.
func setupTestUpstream(t *testing.T) string {
	t.Helper()

	t.Setenv("GIT_AUTHOR_NAME", "Test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@test.com")
	t.Setenv("GIT_COMMITTER_NAME", "Test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@test.com")
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)

	upstream := filepath.Join(t.TempDir(), "upstream")
	require.NoError(t, os.MkdirAll(upstream, 0755))
	gitRun(t, upstream, "init", "-q", "-b", "master")
	writeFile(t, upstream, "file.jar", "PK\x03\x04")
	writeFile(t, upstream, "mappings/a.mapping", mappingContent)
	gitRun(t, upstream, "add", ".")
	gitRun(t, upstream, "commit", "-q", "-m", "Initial commit")

	gitRun(t, upstream, "checkout", "-q", "-b", "feature")
	writeFile(t, upstream, "mappings/feature.mapping", "CLASS f Feature\n")
	gitRun(t, upstream, "add", ".")
	gitRun(t, upstream, "commit", "-q", "-m", "Feature")
	gitRun(t, upstream, "checkout", "-q", "master")

	return upstream
}

// --- Root Command Tests ---

func TestRootCmd(t *testing.T) {
	t.Run("root command exists and has correct use", func(t *testing.T) {
		assert.Equal(t, "colab", rootCmd.Use)
		assert.NotEmpty(t, rootCmd.Short)
		assert.NotEmpty(t, rootCmd.Long)
	})

	t.Run("root command has expected global flags", func(t *testing.T) {
		configFlag := rootCmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "config", configFlag.Name)

		dataDirFlag := rootCmd.PersistentFlags().Lookup("data-dir")
		require.NotNil(t, dataDirFlag)
		assert.Empty(t, dataDirFlag.DefValue)

		verboseFlag := rootCmd.PersistentFlags().Lookup("verbose")
		require.NotNil(t, verboseFlag)
		assert.Equal(t, "v", verboseFlag.Shorthand)
		assert.Equal(t, "count", verboseFlag.Value.Type())
	})

	t.Run("checkContext returns nil for active context", func(t *testing.T) {
		assert.NoError(t, checkContext(context.Background()))
	})

	t.Run("checkContext returns error for cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Equal(t, context.Canceled, checkContext(ctx))
	})
}

func TestGetDataDir(t *testing.T) {
	oldDataDir, oldCfgFile := dataDir, cfgFile
	defer func() { dataDir, cfgFile = oldDataDir, oldCfgFile }()

	t.Run("uses explicit data dir when set", func(t *testing.T) {
		dataDir = "/srv/colab"
		assert.Equal(t, "/srv/colab", getDataDir())
		assert.Equal(t, filepath.Join("/srv/colab", config.DefaultConfigFile), settingsPath())
	})

	t.Run("defaults to ./data", func(t *testing.T) {
		dataDir = ""
		t.Setenv("COLAB_DATA_DIR", "")
		assert.Equal(t, defaultDataDir, getDataDir())
	})

	t.Run("config flag overrides the settings path", func(t *testing.T) {
		dataDir = "/srv/colab"
		cfgFile = "/etc/colab.yaml"
		assert.Equal(t, "/etc/colab.yaml", settingsPath())
	})
}

// --- Table-Driven Tests for Command Validation ---

func TestCommandArgumentValidation(t *testing.T) {
	tests := []struct {
		name    string
		cmd     *cobra.Command
		args    []string
		wantErr bool
	}{
		{"clone with no args", cloneCmd, []string{}, false},
		{"clone with an arg", cloneCmd, []string{"url"}, true},

		{"checkout with no args", checkoutCmd, []string{}, true},
		{"checkout with one arg", checkoutCmd, []string{"master"}, false},
		{"checkout with two args", checkoutCmd, []string{"a", "b"}, true},

		{"status with an arg", statusCmd, []string{"x"}, true},
		{"history with an arg", historyCmd, []string{"x"}, true},

		{"session finish with no args", sessionFinishCmd, []string{}, false},
		{"session finish with one arg", sessionFinishCmd, []string{"id"}, false},
		{"session finish with two args", sessionFinishCmd, []string{"a", "b"}, true},

		{"session show with no args", sessionShowCmd, []string{}, true},
		{"session show with one arg", sessionShowCmd, []string{"id"}, false},
		{"session patch with no args", sessionPatchCmd, []string{}, true},

		{"settings set with one arg", settingsSetCmd, []string{"repo.url"}, true},
		{"settings set with two args", settingsSetCmd, []string{"repo.url", "x"}, false},
		{"settings get with one arg", settingsGetCmd, []string{"repo.url"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Args(tt.cmd, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// --- Command Flag Default Value Tests ---

func TestCommandFlagDefaults(t *testing.T) {
	tests := []struct {
		name        string
		cmd         *cobra.Command
		flagName    string
		expectedVal string
	}{
		{"clone url default", cloneCmd, "url", ""},
		{"clone branch default", cloneCmd, "branch", ""},
		{"branches remote default", branchesCmd, "remote", "false"},
		{"status json default", statusCmd, "json", "false"},
		{"diff color default", diffCmd, "color", "auto"},
		{"diff stat default", diffCmd, "stat", "false"},
		{"reset scope default", resetCmd, "scope", ""},
		{"reset yes default", resetCmd, "yes", "false"},
		{"session start password default", sessionStartCmd, "password", ""},
		{"session list limit default", sessionListCmd, "limit", "20"},
		{"session patch color default", sessionPatchCmd, "color", "auto"},
		{"history limit default", historyCmd, "limit", "20"},
		{"history json default", historyCmd, "json", "false"},
		{"monitor refresh default", monitorCmd, "refresh", "5s"},
		{"watch interval default", watchCmd, "interval", "30s"},
		{"cleanup dry-run default", cleanupCmd, "dry-run", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := tt.cmd.Flags().Lookup(tt.flagName)
			require.NotNil(t, flag, "flag %s should exist", tt.flagName)
			assert.Equal(t, tt.expectedVal, flag.DefValue)
		})
	}
}

func TestSubcommandRegistration(t *testing.T) {
	names := func(c *cobra.Command) map[string]bool {
		m := make(map[string]bool)
		for _, sub := range c.Commands() {
			m[sub.Name()] = true
		}
		return m
	}

	root := names(rootCmd)
	for _, expected := range []string{
		"clone", "fetch", "pull", "checkout", "branches", "status", "diff", "reset",
		"session", "settings", "history", "monitor", "watch", "cleanup",
	} {
		assert.True(t, root[expected], "root should have %s command", expected)
	}

	sessions := names(sessionCmd)
	for _, expected := range []string{"start", "finish", "list", "show", "patch"} {
		assert.True(t, sessions[expected], "session should have %s command", expected)
	}

	settings := names(settingsCmd)
	for _, expected := range []string{"show", "get", "set", "edit"} {
		assert.True(t, settings[expected], "settings should have %s command", expected)
	}
}

func TestCommandHelpText(t *testing.T) {
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		t.Run(c.CommandPath()+" has help text", func(t *testing.T) {
			assert.NotEmpty(t, c.Short, "command %s should have Short description", c.CommandPath())
		})
		for _, sub := range c.Commands() {
			if sub.Name() == "help" || sub.Name() == "completion" {
				continue
			}
			walk(sub)
		}
	}
	walk(rootCmd)
}

// --- Output Helper Tests ---

func TestUseColor(t *testing.T) {
	oldIsTerminal := isTerminal
	defer func() { isTerminal = oldIsTerminal }()

	tests := []struct {
		mode     string
		terminal bool
		want     bool
		wantErr  bool
	}{
		{colorAuto, true, true, false},
		{colorAuto, false, false, false},
		{colorAlways, false, true, false},
		{colorNever, true, false, false},
		{"", true, true, false},
		{"sometimes", true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			isTerminal = func(*os.File) bool { return tt.terminal }
			got, err := useColor(tt.mode, os.Stdout)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWritePatch(t *testing.T) {
	patch := []byte("diff --git a/m b/m\n--- a/m\n+++ b/m\n@@ -1 +1 @@\n-old\n+new\n")

	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writePatch(&buf, patch, false))
		assert.Equal(t, string(patch), buf.String())
	})

	t.Run("highlighted", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writePatch(&buf, patch, true))
		assert.Contains(t, buf.String(), "\x1b[")
		assert.Contains(t, buf.String(), "new")
	})
}

func TestDiffStat(t *testing.T) {
	var stat diffStat
	for _, line := range []git.DiffLine{
		{Origin: git.OriginFileHeader, Content: []byte("diff --git a/x b/x")},
		{Origin: git.OriginFileHeader, Content: []byte("--- a/x")},
		{Origin: git.OriginHunkHeader, Content: []byte("@@ -1 +1,2 @@")},
		{Origin: git.OriginDeletion, Content: []byte("old")},
		{Origin: git.OriginAddition, Content: []byte("new")},
		{Origin: git.OriginAddition, Content: []byte("more")},
		{Origin: git.OriginFileHeader, Content: []byte("diff --git a/y b/y")},
		{Origin: git.OriginBinary, Content: []byte("Binary files a/y and b/y differ")},
	} {
		stat.add(line)
	}

	assert.Equal(t, "2 files changed, 2 insertions(+), 1 deletions(-)", stat.String())
	assert.Equal(t, "1 file changed, 0 insertions(+), 0 deletions(-)", diffStat{files: 1}.String())
}

func TestHistoryNote(t *testing.T) {
	tests := []struct {
		name  string
		event state.SyncEvent
		want  string
	}{
		{"error wins", state.SyncEvent{Kind: state.EventPull, ErrorMessage: "merge required", Details: map[string]any{"outcome": "failed"}}, "merge required"},
		{"pull outcome", state.SyncEvent{Kind: state.EventPull, Details: map[string]any{"outcome": "fast-forwarded"}}, "fast-forwarded"},
		{"reset removed", state.SyncEvent{Kind: state.EventReset, Details: map[string]any{"removed": float64(3)}}, "3 removed"},
		{"fetch bytes", state.SyncEvent{Kind: state.EventFetch, Details: map[string]any{
			"origin":   map[string]any{"received_bytes": float64(1024)},
			"upstream": map[string]any{"received_bytes": float64(1024)},
		}}, "2.0 KiB received"},
		{"session link", state.SyncEvent{Kind: state.EventCheckout, SessionID: "0b5e2c1e-2f1d"}, "session 0b5e2c1e"},
		{"nothing", state.SyncEvent{Kind: state.EventClone}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, historyNote(&tt.event))
		})
	}
}

func TestDetectEvent(t *testing.T) {
	sess := &state.Session{
		ID:     "0b5e2c1e-2f1d-4c4b-9b5e-0f6a3c2d1e4f",
		Branch: "master",
		Rev:    "3b18e512dba79e4c8300dd08aeb37f8e728b8dad",
	}

	tests := []struct {
		name      string
		prev      string
		current   string
		wantEvent bool
	}{
		{"editor exits", state.SessionRunning, state.SessionStopped, true},
		{"finished while running", state.SessionRunning, state.SessionFinished, false},
		{"stopped then finished", state.SessionStopped, state.SessionFinished, false},
		{"start completes", state.SessionStarting, state.SessionRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := *sess
			s.Status = tt.current
			event := detectEvent(&s, sessionSnapshot{Status: tt.prev, PID: 4242})
			if !tt.wantEvent {
				assert.Nil(t, event)
				return
			}
			require.NotNil(t, event)
			assert.Equal(t, notify.EventSessionStopped, event.Type)
			assert.Equal(t, sess.ID, event.SessionID)
			assert.Equal(t, "master", event.Branch)
			assert.Contains(t, event.Message, "4242")
		})
	}
}

func TestNewSessionEntry(t *testing.T) {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(45 * time.Minute)

	entry := newSessionEntry(&state.Session{
		ID:         "0b5e2c1e-2f1d-4c4b-9b5e-0f6a3c2d1e4f",
		Status:     state.SessionFinished,
		Rev:        "3b18e512dba79e4c8300dd08aeb37f8e728b8dad",
		PatchPath:  "/data/sessions/x/session.patch",
		PatchSize:  512,
		StartedAt:  started,
		FinishedAt: &finished,
	})

	assert.Equal(t, "3b18e51", entry.ShortRev)
	assert.Equal(t, "2024-05-01T10:00:00Z", entry.StartedAt)
	require.NotNil(t, entry.FinishedAt)
	assert.Equal(t, "2024-05-01T10:45:00Z", *entry.FinishedAt)

	data, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"patch_size":512`)
	assert.NotContains(t, string(data), "startedAt")
	assert.NotContains(t, string(data), `"pid"`)
}

func TestWithKeyHint(t *testing.T) {
	err := withKeyHint(config.ValidateKey("repo.nope"))
	assert.ErrorIs(t, err, config.ErrInvalidKey)
	assert.Contains(t, err.Error(), "session.mappings_path")

	other := errors.New("disk full")
	assert.Equal(t, other, withKeyHint(other))
}

func TestFetchDetails(t *testing.T) {
	report := &git.FetchReport{Remotes: []git.RemoteStats{
		{Remote: "origin", ReceivedObjects: 3, TotalObjects: 3, ReceivedBytes: 290},
	}}

	details := fetchDetails(report)
	data, err := json.Marshal(details)
	require.NoError(t, err)
	assert.JSONEq(t, `{"origin":{"remote":"origin","received_objects":3,"total_objects":3,
		"indexed_deltas":0,"total_deltas":0,"local_objects":0,"received_bytes":290}}`, string(data))
}

// --- End-to-end Command Tests ---

func TestCLI_Settings(t *testing.T) {
	dir := t.TempDir()

	_, err := runColab(t, dir, "settings", "set", "lock_timeout", "1m")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, config.DefaultConfigFile))

	out, err := runColab(t, dir, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "lock_timeout: 1m0s")
	assert.Contains(t, out, "mappings_path: mappings/")

	out, err = runColab(t, dir, "settings", "get", "repo.branch")
	require.NoError(t, err)
	assert.Equal(t, "master\n", out)

	_, err = runColab(t, dir, "settings", "set", "repo.nope", "x")
	assert.ErrorIs(t, err, config.ErrInvalidKey)

	_, err = runColab(t, dir, "settings", "set", "hook_failure_policy", "maybe")
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	out, err = runColab(t, dir, "settings", "get", "hook_failure_policy")
	require.NoError(t, err)
	assert.Equal(t, "ignore\n", out, "a rejected value is not written")
}

func TestCLI_Workflow(t *testing.T) {
	upstream := setupTestUpstream(t)
	dir := t.TempDir()
	repoPath := filepath.Join(dir, "repo")

	oldIsTerminal := isTerminal
	isTerminal = func(*os.File) bool { return false }
	defer func() { isTerminal = oldIsTerminal }()

	out, err := runColab(t, dir, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No repository operations recorded.")

	// clone
	out, err = runColab(t, dir, "clone", "--url", upstream)
	require.NoError(t, err)
	assert.Contains(t, out, "Checking access to")
	assert.Contains(t, out, "Cloned master at")
	assert.FileExists(t, filepath.Join(repoPath, "file.jar"))

	out, err = runColab(t, dir, "settings", "get", "repo.url")
	require.NoError(t, err)
	assert.Equal(t, upstream+"\n", out, "clone saves the URL")

	_, err = runColab(t, dir, "clone")
	assert.ErrorIs(t, err, apperrors.ErrRepoExists)

	// status
	out, err = runColab(t, dir, "status", "--json")
	require.NoError(t, err)
	var report statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Cloned)
	assert.Equal(t, "master", report.Branch)
	assert.Equal(t, gitRun(t, upstream, "rev-parse", "master"), report.Head)
	assert.Equal(t, []string{"origin"}, report.Remotes)
	assert.Equal(t, []string{upstream}, report.URLs)
	assert.Nil(t, report.Session)
	assert.False(t, report.Locked)

	// branches
	out, err = runColab(t, dir, "branches", "--remote")
	require.NoError(t, err)
	assert.Contains(t, out, "origin/feature")
	assert.NotContains(t, out, "origin/HEAD")

	// checkout
	_, err = runColab(t, dir, "checkout", "bad..ref")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTarget)

	out, err = runColab(t, dir, "checkout", "feature")
	require.NoError(t, err)
	assert.Contains(t, out, "Switched to feature at")
	assert.Equal(t, "feature", gitRun(t, repoPath, "rev-parse", "--abbrev-ref", "HEAD"))

	// pull on an up-to-date branch
	out, err = runColab(t, dir, "pull")
	require.NoError(t, err)
	assert.Contains(t, out, "Already up to date")

	// diff
	out, err = runColab(t, dir, "diff")
	require.NoError(t, err)
	assert.Contains(t, out, "No changes.")

	writeFile(t, repoPath, "mappings/a.mapping", mappingContent+"\tFIELD c baz I\n")
	writeFile(t, repoPath, "mappings/new.mapping", "CLASS b Bar\n")

	out, err = runColab(t, dir, "diff", "--stat")
	require.NoError(t, err)
	assert.Contains(t, out, "2 files changed, 2 insertions(+), 0 deletions(-)")

	out, err = runColab(t, dir, "diff", "--color=never")
	require.NoError(t, err)
	assert.Contains(t, out, "+CLASS b Bar")
	assert.Contains(t, out, "+\tFIELD c baz I")

	// reset
	writeFile(t, repoPath, "mappings/untracked.txt", "scratch\n")

	_, err = runColab(t, dir, "reset")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	out, err = runColab(t, dir, "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "removed mappings/untracked.txt")
	assert.NoFileExists(t, filepath.Join(repoPath, "mappings/new.mapping"))
	assert.NoFileExists(t, filepath.Join(repoPath, "mappings/untracked.txt"))
	data, err := os.ReadFile(filepath.Join(repoPath, "mappings/a.mapping"))
	require.NoError(t, err)
	assert.Equal(t, mappingContent, string(data))

	// history
	out, err = runColab(t, dir, "history", "--json")
	require.NoError(t, err)
	var entries []historyEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))

	var kinds []string
	for _, e := range entries {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{
		state.EventReset, state.EventPull, state.EventCheckout, state.EventClone, state.EventClone,
	}, kinds)
	assert.Equal(t, float64(1), entries[0].Details["removed"])
	assert.Equal(t, "up-to-date", entries[1].Details["outcome"])
	assert.Equal(t, "feature", entries[2].Target)
	assert.Equal(t, state.OutcomeFailed, entries[3].Outcome, "second clone failed")
	assert.Equal(t, state.OutcomeOK, entries[4].Outcome)

	out, err = runColab(t, dir, "history", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 removed")
	assert.NotContains(t, out, "clone")
}

func TestCLI_SessionCommandsWithoutSessions(t *testing.T) {
	dir := t.TempDir()

	out, err := runColab(t, dir, "session", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions yet.")

	_, err = runColab(t, dir, "session", "finish")
	assert.ErrorIs(t, err, apperrors.ErrNoActiveSession)

	_, err = runColab(t, dir, "session", "show", "not-a-uuid")
	assert.Error(t, err)

	_, err = runColab(t, dir, "session", "start")
	assert.ErrorIs(t, err, apperrors.ErrNotCloned)

	out, err = runColab(t, dir, "session", "list", "--json")
	require.NoError(t, err)
	var entries []sessionEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Empty(t, entries)
}

func TestCLI_Cleanup(t *testing.T) {
	dir := t.TempDir()
	orphan := filepath.Join(dir, "sessions", "0b5e2c1e-2f1d-4c4b-9b5e-0f6a3c2d1e4f")
	clone := filepath.Join(dir, ".clone-123456")
	require.NoError(t, os.MkdirAll(orphan, 0755))
	require.NoError(t, os.MkdirAll(clone, 0755))

	out, err := runColab(t, dir, "cleanup", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Found orphaned session directory")
	assert.Contains(t, out, "Found interrupted clone: .clone-123456")
	assert.DirExists(t, orphan)
	assert.DirExists(t, clone)

	out, err = runColab(t, dir, "cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleanup complete.")
	assert.NoDirExists(t, orphan)
	assert.NoDirExists(t, clone)
}
