package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"strings"
	"unicode/utf8"
)

// Origin is the kind of a diff line.
type Origin int

const (
	OriginFileHeader Origin = iota
	OriginHunkHeader
	OriginContext
	OriginAddition
	OriginDeletion
	OriginNoNewline
	OriginBinary
)

func (o Origin) String() string {
	switch o {
	case OriginFileHeader:
		return "file-header"
	case OriginHunkHeader:
		return "hunk-header"
	case OriginContext:
		return "context"
	case OriginAddition:
		return "addition"
	case OriginDeletion:
		return "deletion"
	case OriginNoNewline:
		return "no-newline"
	case OriginBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// DiffLine is one line of a unified diff. For context, addition and deletion
// lines Content excludes the one-character prefix; for everything else it is
// the whole line. The trailing newline is never included.
type DiffLine struct {
	Origin  Origin
	Content []byte
}

// AppendTo renders the line in patch format.
func (l DiffLine) AppendTo(buf []byte) []byte {
	switch l.Origin {
	case OriginContext:
		buf = append(buf, ' ')
	case OriginAddition:
		buf = append(buf, '+')
	case OriginDeletion:
		buf = append(buf, '-')
	}
	buf = append(buf, l.Content...)
	return append(buf, '\n')
}

// diffArgs pins every knob that changes patch bytes, so repository and user
// config cannot alter the output. Settings without a flag are overridden with
// -c, which takes precedence over every config file.
var diffArgs = []string{
	"-c", "core.abbrev=7",
	"-c", "core.quotePath=true",
	"-c", "diff.suppressBlankEmpty=false",
	"diff", "--cached",
	"--no-color", "--no-ext-diff", "--no-textconv", "--no-renames", "--no-relative",
	"-U3", "--inter-hunk-context=0",
	"--diff-algorithm=myers", "--indent-heuristic",
	"--abbrev=7", "-O/dev/null", "--submodule=short",
	"--src-prefix=a/", "--dst-prefix=b/",
}

// Stage adds the path patterns to the index, including new, modified and
// deleted files. No patterns stages everything. A pattern that matches
// nothing is not an error.
func (m *Manager) Stage(ctx context.Context, patterns ...string) error {
	if err := m.requireCloned(); err != nil {
		return err
	}
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	// One pattern per call: git rejects the whole command when any pathspec misses.
	for _, pattern := range patterns {
		if _, err := m.run(ctx, "add", "-A", "--", pattern); err != nil {
			if strings.Contains(stderrOf(err), "did not match any files") {
				m.logger.Debug("nothing to stage", "pattern", pattern)
				continue
			}
			return fmt.Errorf("failed to stage %s: %w", pattern, err)
		}
	}
	return nil
}

// DiffLines streams the diff between HEAD and the index as line records.
// Stopping the iteration early terminates git.
func (m *Manager) DiffLines(ctx context.Context) iter.Seq2[DiffLine, error] {
	return func(yield func(DiffLine, error) bool) {
		if err := m.requireCloned(); err != nil {
			yield(DiffLine{}, err)
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var stderr bytes.Buffer
		cmd := m.command(ctx, m.repoPath, diffArgs...)
		cmd.Stderr = io.MultiWriter(&stderr, m.stderr)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			yield(DiffLine{}, fmt.Errorf("failed to start diff: %w", err))
			return
		}
		if err := cmd.Start(); err != nil {
			yield(DiffLine{}, fmt.Errorf("failed to start diff: %w", err))
			return
		}

		reader := bufio.NewReader(stdout)
		inHeader := false
		for {
			raw, readErr := reader.ReadBytes('\n')
			if len(raw) > 0 {
				line := classifyDiffLine(bytes.TrimSuffix(raw, []byte("\n")), &inHeader)
				if !yield(line, nil) {
					cancel()
					cmd.Wait()
					return
				}
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				cancel()
				cmd.Wait()
				yield(DiffLine{}, fmt.Errorf("failed to read diff: %w", readErr))
				return
			}
		}

		if err := cmd.Wait(); err != nil {
			yield(DiffLine{}, &GitError{Args: diffArgs, Stderr: stderr.String(), ExitCode: exitCode(err), Err: err})
		}
	}
}

// classifyDiffLine assigns an origin to a raw diff line. File headers run
// from "diff " up to the first hunk header.
func classifyDiffLine(line []byte, inHeader *bool) DiffLine {
	switch {
	case bytes.HasPrefix(line, []byte("diff ")):
		*inHeader = true
		return DiffLine{Origin: OriginFileHeader, Content: line}
	case bytes.HasPrefix(line, []byte("@@")):
		*inHeader = false
		return DiffLine{Origin: OriginHunkHeader, Content: line}
	case *inHeader:
		if bytes.HasPrefix(line, []byte("Binary files ")) {
			return DiffLine{Origin: OriginBinary, Content: line}
		}
		return DiffLine{Origin: OriginFileHeader, Content: line}
	case len(line) == 0:
		return DiffLine{Origin: OriginFileHeader, Content: line}
	}

	switch line[0] {
	case ' ':
		return DiffLine{Origin: OriginContext, Content: line[1:]}
	case '+':
		return DiffLine{Origin: OriginAddition, Content: line[1:]}
	case '-':
		return DiffLine{Origin: OriginDeletion, Content: line[1:]}
	case '\\':
		return DiffLine{Origin: OriginNoNewline, Content: line}
	default:
		return DiffLine{Origin: OriginFileHeader, Content: line}
	}
}

// Diff returns the staged changes as a unified diff. Lines that are not valid
// UTF-8 are logged and left out. An empty diff is an empty, non-nil slice.
func (m *Manager) Diff(ctx context.Context) ([]byte, error) {
	patch := []byte{}
	file := ""
	lineNo := 0

	for line, err := range m.DiffLines(ctx) {
		if err != nil {
			return nil, err
		}
		lineNo++

		if line.Origin == OriginFileHeader && bytes.HasPrefix(line.Content, []byte("diff --git ")) {
			file = string(line.Content[len("diff --git "):])
		}

		if !utf8.Valid(line.Content) {
			m.logger.Warn("dropping diff line that is not valid UTF-8",
				"file", file, "line", lineNo, "origin", line.Origin.String())
			continue
		}
		patch = line.AppendTo(patch)
	}

	return patch, nil
}
