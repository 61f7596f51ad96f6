package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/jayteealao/colab/internal/git"
	"github.com/jayteealao/colab/internal/prompt"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Color modes accepted by --color.
const (
	colorAuto   = "auto"
	colorAlways = "always"
	colorNever  = "never"
)

var (
	// prompter is replaced in tests.
	prompter prompt.Prompter = prompt.New()

	isTerminal = func(f *os.File) bool {
		return term.IsTerminal(int(f.Fd()))
	}
)

// addColorFlag registers --color on cmd. A bare --color means always.
func addColorFlag(cmd *cobra.Command, p *string) {
	cmd.Flags().StringVar(p, "color", colorAuto, "highlight the patch: auto, always or never")
	cmd.Flags().Lookup("color").NoOptDefVal = colorAlways
}

// useColor resolves a --color value for out.
func useColor(mode string, out *os.File) (bool, error) {
	switch mode {
	case colorAuto, "":
		return isTerminal(out), nil
	case colorAlways:
		return true, nil
	case colorNever:
		return false, nil
	default:
		return false, fmt.Errorf("invalid --color %q (valid: auto, always, never)", mode)
	}
}

// writePatch writes patch to w, highlighted with the diff lexer when color is set.
func writePatch(w io.Writer, patch []byte, color bool) error {
	if !color {
		_, err := w.Write(patch)
		return err
	}

	lexer := lexers.Get("diff")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, string(patch))
	if err != nil {
		_, err = w.Write(patch)
		return err
	}
	return formatter.Format(w, style, iterator)
}

// diffStat counts the files and lines of a patch.
type diffStat struct {
	files     int
	additions int
	deletions int
}

func (s *diffStat) add(line git.DiffLine) {
	switch line.Origin {
	case git.OriginFileHeader:
		if bytes.HasPrefix(line.Content, []byte("diff ")) {
			s.files++
		}
	case git.OriginAddition:
		s.additions++
	case git.OriginDeletion:
		s.deletions++
	}
}

func (s diffStat) String() string {
	noun := "files"
	if s.files == 1 {
		noun = "file"
	}
	return fmt.Sprintf("%d %s changed, %d insertions(+), %d deletions(-)", s.files, noun, s.additions, s.deletions)
}
