// Package cmd provides CLI commands for colab.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jayteealao/colab/internal/config"
	"github.com/jayteealao/colab/internal/git"
	"github.com/jayteealao/colab/internal/hook"
	"github.com/jayteealao/colab/internal/lock"
	"github.com/jayteealao/colab/internal/logging"
	"github.com/jayteealao/colab/internal/notify"
	"github.com/jayteealao/colab/internal/session"
	"github.com/jayteealao/colab/internal/state"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is the current version of colab.
// Can be overridden at build time: go build -ldflags "-X github.com/jayteealao/colab/cmd.Version=v1.0.0"
var Version = "v0.1.0"

// defaultDataDir is relative to the working directory, like the server layout
// the sessions are run from.
const defaultDataDir = "data"

var (
	cfgFile   string
	dataDir   string
	verbosity int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "colab",
	Short: "Shared mapping sessions over a synchronized git checkout",
	Long: `colab keeps a shared git checkout in sync and runs time-boxed editing
sessions against it.

A session launches the editor server on the current HEAD. Finishing it stages
the mappings directory, saves the staged changes as a patch, and resets the
checkout so the next session starts clean.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger := logging.New(logging.Config{Verbosity: getVerbosity()})
		cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nReceived signal %v, shutting down...\n", sig)
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (default is <data-dir>/colab.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default is ./data)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug)")

	// Bind flags to viper
	viper.BindPFlag("data-dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads ENV variables for the global flags.
func initConfig() {
	viper.SetEnvPrefix("COLAB")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// getDataDir returns the data directory, defaulting to ./data
func getDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if d := viper.GetString("data-dir"); d != "" {
		return d
	}
	return defaultDataDir
}

// settingsPath returns the settings file path.
func settingsPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return filepath.Join(getDataDir(), config.DefaultConfigFile)
}

func getVerbosity() int {
	if verbosity > 0 {
		return verbosity
	}
	return viper.GetInt("verbose")
}

// app bundles the components a command works with.
type app struct {
	dataDir  string
	loader   *config.Loader
	settings *config.Settings
	store    *state.Store
	locks    *lock.Manager
	repo     *git.Manager
	notifier *notify.Manager
	hooks    *hook.Runner
	logger   *slog.Logger
}

// newApp loads settings and opens the store for cmd.
func newApp(cmd *cobra.Command) (*app, error) {
	logger := logging.FromContext(cmd.Context())
	dir := getDataDir()

	loader := config.NewLoader(settingsPath())
	settings, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	policy, err := hook.ParsePolicy(settings.HookFailurePolicy)
	if err != nil {
		return nil, err
	}

	store, err := state.New(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	locks, err := lock.NewManager(dir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize lock manager: %w", err)
	}

	return &app{
		dataDir:  dir,
		loader:   loader,
		settings: settings,
		store:    store,
		locks:    locks,
		repo:     git.NewManager(filepath.Join(dir, "repo"), git.WithStderr(os.Stderr), git.WithLogger(logger)),
		notifier: notify.FromSettings(settings.Notifications),
		hooks:    hook.NewRunner(policy, os.Stderr, logger),
		logger:   logger,
	}, nil
}

// Close releases the store and notifiers.
func (a *app) Close() error {
	return errors.Join(a.notifier.Close(), a.store.Close())
}

// sessions returns a session manager sharing the app's components.
func (a *app) sessions() *session.Manager {
	return session.NewManager(a.repo, a.store, a.locks, a.settings,
		session.WithNotifier(a.notifier),
		session.WithHooks(a.hooks),
		session.WithLogger(a.logger),
	)
}

// withRepoLock runs fn holding the repository lock. The lock timeout only
// bounds acquisition.
func (a *app) withRepoLock(ctx context.Context, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, a.settings.LockTimeout)
	defer cancel()
	return a.locks.WithLock(lockCtx, lock.RepoLock, fn)
}

// record persists a sync event. History is best effort and never fails the
// operation it describes.
func (a *app) record(ctx context.Context, e *state.SyncEvent) {
	if err := a.store.RecordSyncEvent(context.WithoutCancel(ctx), e); err != nil {
		a.logger.Warn("failed to record sync event", "kind", e.Kind, "error", err)
	}
}

func (a *app) notify(ctx context.Context, event notify.Event) {
	if err := a.notifier.Notify(ctx, event); err != nil {
		a.logger.Warn("failed to send notification", "type", event.Type, "error", err)
	}
}

// checkContext returns an error if the context is cancelled.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
