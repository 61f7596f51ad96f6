package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jayteealao/colab/internal/lock"
)

// LaunchSpec describes the editor process for one session.
type LaunchSpec struct {
	Java      string
	MainClass string
	Classpath string
	// Jar and Mappings are relative to Dir.
	Jar      string
	Mappings string
	Password string
	Args     []string
	Dir      string
	// LogDir receives stdout.log and stderr.log.
	LogDir string
}

// Command returns the argv for the editor.
func (s LaunchSpec) Command() []string {
	argv := []string{s.Java}
	if s.Classpath != "" {
		argv = append(argv, "-cp", s.Classpath)
	}
	argv = append(argv, s.MainClass, "-jar", s.Jar, "-mappings", s.Mappings)
	if s.Password != "" {
		argv = append(argv, "-password", s.Password)
	}
	return append(argv, s.Args...)
}

// Launcher starts and stops editor processes.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (pid int, err error)
	Alive(pid int) bool
	Stop(pid int) error
}

// ProcessLauncher runs the editor as a detached child process.
type ProcessLauncher struct{}

// Launch starts the editor in its own process group so it survives the
// CLI exiting. It returns once the process has started.
func (ProcessLauncher) Launch(ctx context.Context, spec LaunchSpec) (int, error) {
	argv := spec.Command()

	stdout, err := os.Create(filepath.Join(spec.LogDir, "stdout.log"))
	if err != nil {
		return 0, fmt.Errorf("failed to create stdout log: %w", err)
	}
	stderr, err := os.Create(filepath.Join(spec.LogDir, "stderr.log"))
	if err != nil {
		stdout.Close()
		return 0, fmt.Errorf("failed to create stderr log: %w", err)
	}

	// Not CommandContext: the editor must outlive ctx.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return 0, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	// Reap the child if it exits while this process is still around.
	go func() {
		_ = cmd.Wait()
		stdout.Close()
		stderr.Close()
	}()

	return cmd.Process.Pid, nil
}

// Alive reports whether pid is still running.
func (ProcessLauncher) Alive(pid int) bool {
	return lock.IsProcessRunning(pid)
}

// Stop sends SIGTERM to the editor's process group.
func (ProcessLauncher) Stop(pid int) error {
	if pid <= 0 {
		return nil
	}
	err := syscall.Kill(-pid, syscall.SIGTERM)
	if errors.Is(err, syscall.ESRCH) {
		// Not a group leader (or already gone); signal the process itself.
		err = syscall.Kill(pid, syscall.SIGTERM)
	}
	if err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("failed to stop process %d: %w", pid, err)
	}
	return nil
}

// JarInfo identifies the jar a session was started against.
type JarInfo struct {
	Name   string
	SHA256 string
}

func readJarInfo(path string) (JarInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return JarInfo{}, fmt.Errorf("failed to open jar: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return JarInfo{}, fmt.Errorf("failed to hash jar: %w", err)
	}

	return JarInfo{
		Name:   filepath.Base(path),
		SHA256: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// splitArgs splits the configured extra arguments on whitespace.
func splitArgs(s string) []string {
	return strings.Fields(s)
}
