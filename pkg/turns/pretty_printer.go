package turns

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// PrettyPrinter renders turns with more detail than FormatTurn.
type PrettyPrinter struct {
	IncludeIDs        bool
	IncludeToolDetail bool
	IndentSpaces      int
	MaxTextLines      int // 0 => unlimited
}

// PrintOption configures a PrettyPrinter.
type PrintOption func(*PrettyPrinter)

// WithIDs toggles inclusion of turn IDs.
func WithIDs(include bool) PrintOption { return func(p *PrettyPrinter) { p.IncludeIDs = include } }

// WithToolDetail toggles inclusion of tool call ids and arguments.
func WithToolDetail(include bool) PrintOption {
	return func(p *PrettyPrinter) { p.IncludeToolDetail = include }
}

// WithIndent sets the number of spaces used for indentation.
func WithIndent(spaces int) PrintOption { return func(p *PrettyPrinter) { p.IndentSpaces = spaces } }

// WithMaxTextLines limits how many lines of text to print for turn contents (0 = unlimited).
func WithMaxTextLines(n int) PrintOption { return func(p *PrettyPrinter) { p.MaxTextLines = n } }

func NewPrettyPrinter(opts ...PrintOption) *PrettyPrinter {
	p := &PrettyPrinter{
		IncludeToolDetail: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FprintTurns emits a human-readable rendering of every turn, in order.
func (p *PrettyPrinter) FprintTurns(w io.Writer, ts []Turn) {
	for i, t := range ts {
		p.FprintTurn(w, i, t)
	}
}

// FprintTurn emits a human-readable rendering of a single turn.
func (p *PrettyPrinter) FprintTurn(w io.Writer, idx int, t Turn) {
	pad := strings.Repeat(" ", p.IndentSpaces)
	prefix := pad
	if p.IncludeIDs && t.ID != "" {
		prefix = fmt.Sprintf("%s[%02d] id=%s ", pad, idx, t.ID)
	}

	label := string(t.Role)
	if t.Author != "" && t.Role != RoleTool {
		label = fmt.Sprintf("%s (%s)", t.Role, t.Author)
	}
	p.fprintText(w, prefix+label+":", t.Content)

	if t.Role == RoleTool && len(t.ToolCalls) > 0 {
		call := t.ToolCalls[0]
		if p.IncludeToolDetail {
			fmt.Fprintf(w, "%s  tool_call: name=%s id=%s\n", pad, call.ToolName, call.CallID)
			if len(call.Arguments) > 0 {
				fmt.Fprintf(w, "%s  args: %s\n", pad, FormatArguments(call.Arguments))
			}
		} else {
			fmt.Fprintf(w, "%s  tool_call: %s\n", pad, call.ToolName)
		}
	}
}

func (p *PrettyPrinter) fprintText(w io.Writer, head string, text string) {
	if p.MaxTextLines > 0 {
		lines := strings.Split(text, "\n")
		if len(lines) > p.MaxTextLines {
			text = strings.Join(lines[:p.MaxTextLines], "\n") + " ..."
		}
	}
	fmt.Fprintf(w, "%s %s\n", head, text)
}

// FormatArguments renders arguments as k=v pairs sorted by key.
func FormatArguments(args map[string]string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, args[k]))
	}
	return strings.Join(parts, " ")
}
