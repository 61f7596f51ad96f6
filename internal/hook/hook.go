// Package hook runs the user-configured shell commands that bracket clones and sessions.
package hook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	apperrors "github.com/jayteealao/colab/internal/errors"
	"github.com/jayteealao/colab/internal/logging"
)

// Policy decides what a failed hook means for the surrounding operation.
type Policy string

const (
	// PolicyIgnore logs the failure and lets the operation continue.
	PolicyIgnore Policy = "ignore"

	// PolicyAbort turns the failure into an error for the operation.
	PolicyAbort Policy = "abort"
)

// ParsePolicy converts a settings value to a Policy. Empty means ignore.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyIgnore:
		return PolicyIgnore, nil
	case PolicyAbort:
		return PolicyAbort, nil
	default:
		return "", fmt.Errorf("unknown hook failure policy %q (valid: ignore, abort)", s)
	}
}

// Hook is a single shell command run in a working directory.
type Hook struct {
	Name    string
	Command string
	Dir     string
}

// Runner executes hooks through the shell.
type Runner struct {
	policy Policy
	stderr io.Writer
	logger *slog.Logger
}

// NewRunner creates a hook runner. Hook output goes to stderr; nil means os.Stderr.
func NewRunner(policy Policy, stderr io.Writer, logger *slog.Logger) *Runner {
	if stderr == nil {
		stderr = os.Stderr
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{policy: policy, stderr: stderr, logger: logger}
}

// Policy returns the runner's failure policy.
func (r *Runner) Policy() Policy {
	return r.policy
}

// Run executes the hook. An empty command is a no-op.
// A non-zero exit always gets logged; it is returned only under PolicyAbort.
func (r *Runner) Run(ctx context.Context, h Hook) error {
	if strings.TrimSpace(h.Command) == "" {
		return nil
	}

	r.logger.Debug("running hook", "hook", h.Name, "command", h.Command, "dir", h.Dir)

	cmd := exec.CommandContext(ctx, "sh", "-c", h.Command)
	cmd.Dir = h.Dir
	cmd.Stdout = r.stderr
	cmd.Stderr = r.stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	r.logger.Warn("hook failed", "hook", h.Name, "exit_code", exitCode, "error", err)

	if r.policy != PolicyAbort {
		return nil
	}
	return fmt.Errorf("%w: %s hook exited with code %d: %w", apperrors.ErrHookFailed, h.Name, exitCode, err)
}
