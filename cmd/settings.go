package cmd

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/jayteealao/colab/internal/config"
	"github.com/jayteealao/colab/internal/prompt"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and change settings",
	Long: `Show and change settings.

Settings live in <data-dir>/colab.yaml and are created with defaults on first
use. Any key can be overridden from the environment: repo.branch is read from
COLAB_REPO_BRANCH.`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings as YAML",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting by dot-notation key, for example:

  colab settings set session.mappings_path mappings/
  colab settings set lock_timeout 1m

The file is left unchanged when the new value does not validate.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit settings in an interactive form",
	Args:  cobra.NoArgs,
	RunE:  runSettingsEdit,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsEditCmd)
}

// loadSettings loads settings without opening the store.
func loadSettings() (*config.Loader, *config.Settings, error) {
	loader := config.NewLoader(settingsPath())
	s, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return loader, s, nil
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	loader, s, err := loadSettings()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	fmt.Printf("# %s\n", loader.Path())
	_, err = os.Stdout.Write(data)
	return err
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	loader, _, err := loadSettings()
	if err != nil {
		return err
	}

	v, err := loader.Get(args[0])
	if err != nil {
		return withKeyHint(err)
	}
	fmt.Println(v)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	loader, _, err := loadSettings()
	if err != nil {
		return err
	}

	if err := loader.Set(key, value); err != nil {
		return withKeyHint(err)
	}

	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

func runSettingsEdit(cmd *cobra.Command, args []string) error {
	if !isTerminal(os.Stdin) {
		return fmt.Errorf("settings edit needs an interactive terminal; use 'colab settings set'")
	}

	loader, s, err := loadSettings()
	if err != nil {
		return err
	}

	edited, err := prompter.EditSettings(s)
	if errors.Is(err, prompt.ErrCanceled) {
		fmt.Println("No changes saved.")
		return nil
	}
	if err != nil {
		return err
	}

	if err := loader.Save(edited); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	fmt.Printf("Settings saved to %s\n", loader.Path())
	return nil
}

// withKeyHint appends the valid keys to an unknown-key error.
func withKeyHint(err error) error {
	if !errors.Is(err, config.ErrInvalidKey) {
		return err
	}
	keys := config.Keys()
	slices.Sort(keys)
	return fmt.Errorf("%w\nvalid keys:\n  %s", err, strings.Join(keys, "\n  "))
}
