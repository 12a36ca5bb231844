package flow

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the operator for a value the site sends out of band, such
// as the login or payment one-time code.
type Prompter interface {
	Prompt(ctx context.Context, label string) (string, error)
}

// TerminalPrompter reads codes from an interactive terminal. One-time codes
// expire quickly, so prompts block without their own deadline; the run
// context still cancels them.
type TerminalPrompter struct {
	in  io.Reader
	out io.Writer
}

// NewTerminalPrompter wires the prompter to stdin/stdout. It fails when
// stdin is not a terminal, which means the run cannot receive codes at all.
func NewTerminalPrompter() (*TerminalPrompter, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("stdin is not a terminal; one-time codes cannot be entered")
	}
	return &TerminalPrompter{in: os.Stdin, out: os.Stdout}, nil
}

// NewPrompterWithIO builds a prompter over arbitrary streams. Tests use it.
func NewPrompterWithIO(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: in, out: out}
}

// Prompt prints the label and reads one trimmed line. Reading runs in its
// own goroutine so a canceled context unblocks the caller.
func (p *TerminalPrompter) Prompt(ctx context.Context, label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		reader := bufio.NewReader(p.in)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			ch <- result{err: err}
			return
		}
		ch <- result{line: strings.TrimSpace(line)}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return "", fmt.Errorf("failed to read input: %w", res.err)
		}
		return res.line, nil
	}
}
