// Package prompt provides interactive terminal prompts built on charmbracelet/huh.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/jayteealao/colab/internal/config"
)

// ErrCanceled is returned when the user cancels a prompt.
var ErrCanceled = errors.New("canceled by user")

// Prompter abstracts user interaction for testability.
type Prompter interface {
	// Confirm prompts for yes/no confirmation.
	Confirm(title, description string) (bool, error)

	// Secret prompts for secret input (no echo).
	Secret(title string) (string, error)

	// EditSettings shows the settings form and returns the edited copy.
	EditSettings(s *config.Settings) (*config.Settings, error)
}

// HuhPrompter implements Prompter using huh forms.
type HuhPrompter struct{}

// New creates a new HuhPrompter.
func New() *HuhPrompter {
	return &HuhPrompter{}
}

// Confirm prompts the user to confirm an action with yes/no.
func (p *HuhPrompter) Confirm(title, description string) (bool, error) {
	var confirmed bool

	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed).
		Run()
	if err != nil {
		return false, wrapAbort("confirm prompt", err)
	}

	return confirmed, nil
}

// Secret prompts for input with masked display.
func (p *HuhPrompter) Secret(title string) (string, error) {
	var value string

	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&value).
		Run()
	if err != nil {
		return "", wrapAbort("secret prompt", err)
	}

	return strings.TrimSpace(value), nil
}

// EditSettings runs the settings form over a copy of s.
func (p *HuhPrompter) EditSettings(s *config.Settings) (*config.Settings, error) {
	fields := fieldsFrom(s)
	if err := newSettingsForm(fields).Run(); err != nil {
		return nil, wrapAbort("settings form", err)
	}
	return fields.apply(s)
}

func wrapAbort(what string, err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrCanceled
	}
	return fmt.Errorf("%s: %w", what, err)
}
