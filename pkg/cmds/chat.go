package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/tcnksm/go-input"
)

// Prompter asks the user for the next input. Ask returns io.EOF once the
// input is exhausted.
type Prompter interface {
	Ask(query string, opts *input.Options) (string, error)
}

// lineReader hands out at most one line per Read so that the buffered
// reader go-input creates per question never swallows the next line.
type lineReader struct {
	mu      sync.Mutex
	br      *bufio.Reader
	pending string
	eof     bool
}

func (r *lineReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == "" {
		line, err := r.br.ReadString('\n')
		if line == "" && err != nil {
			r.eof = true
			return 0, err
		}
		r.pending = line
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *lineReader) atEOF() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.eof && r.pending == ""
}

// TerminalPrompter asks questions with go-input.
type TerminalPrompter struct {
	ui *input.UI
	r  *lineReader
}

// NewPrompter returns a prompter reading r and echoing questions to w.
func NewPrompter(r io.Reader, w io.Writer) *TerminalPrompter {
	lr := &lineReader{br: bufio.NewReader(r)}
	return &TerminalPrompter{ui: &input.UI{Reader: lr, Writer: w}, r: lr}
}

func (p *TerminalPrompter) Ask(query string, opts *input.Options) (string, error) {
	answer, err := p.ui.Ask(query, opts)
	if err != nil {
		return "", err
	}
	if answer == "" && p.r.atEOF() {
		return "", io.EOF
	}
	return answer, nil
}

func isExit(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exit", "quit", "/exit", "/quit":
		return true
	}
	return false
}

// Interactive returns a Conversation reading inputs from p until the user
// types exit or quit, or the input ends. Blank lines are skipped.
func Interactive(p Prompter) Conversation {
	return func(ctx context.Context, turn Turn) error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			line, err := p.Ask(">", &input.Options{HideOrder: true})
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, input.ErrInterrupted) {
					return nil
				}
				return errors.Wrap(err, "could not read input")
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if isExit(line) {
				return nil
			}
			if err := turn(ctx, line); err != nil {
				return err
			}
		}
	}
}

// AskYesNo asks a yes/no question, defaulting to yes.
func AskYesNo(p Prompter, query string) (bool, error) {
	answer, err := p.Ask(query+" [y/n]", &input.Options{
		Default:  "y",
		Required: true,
		Loop:     true,
		ValidateFunc: func(answer string) error {
			switch answer {
			case "y", "Y", "n", "N":
				return nil
			default:
				return fmt.Errorf("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, err
	}
	return answer == "y" || answer == "Y", nil
}
