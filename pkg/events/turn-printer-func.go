package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/turnloop/pkg/turns"
)

type PrinterOptions struct {
	// ShowDeltas writes streamed fragments as they arrive.
	ShowDeltas bool
	// ShowToolCalls prints tool turns and tool execution events.
	ShowToolCalls bool
	// Markdown renders assistant content with glamour.
	Markdown      bool
	MarkdownStyle string
}

// TurnPrinterFunc returns a watermill handler printing transcript lines:
//
//	# user: 'What are your specials?'
//	# assistant - Host: 'Today we have ...'
func TurnPrinterFunc(w io.Writer, options PrinterOptions) func(msg *message.Message) error {
	style := options.MarkdownStyle
	if style == "" {
		style = "dark"
	}
	midStream := false

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.UUID).Msg("events: could not decode event")
			return nil
		}

		switch p_ := e.(type) {
		case *EventPartialCompletion:
			if !options.ShowDeltas {
				return nil
			}
			midStream = true
			_, err = fmt.Fprint(w, p_.Delta)
			return err

		case *EventTurn:
			if midStream {
				midStream = false
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
			}
			t := p_.Turn
			if t.Role == turns.RoleTool && !options.ShowToolCalls {
				return nil
			}
			if t.Role == turns.RoleAssistant && options.Markdown {
				return printMarkdownTurn(w, t, style)
			}
			_, err = fmt.Fprintln(w, turns.FormatTurn(t))
			return err

		case *EventToolCallExecute:
			if !options.ShowToolCalls {
				return nil
			}
			return printYAML(w, "tool call", p_.ToolCall)

		case *EventToolCallExecutionResult:
			if !options.ShowToolCalls {
				return nil
			}
			return printYAML(w, "tool result", p_.ToolResult)

		case *EventError:
			_, err = fmt.Fprintf(w, "\n[error] %s\n", p_.ErrorString)
			return err

		case *EventInterrupt:
			midStream = false
			_, err = fmt.Fprintf(w, "\n[interrupted] %s\n", p_.Text)
			return err

		case *EventPartialCompletionStart, *EventFinal, *EventToolCall:
		}

		return nil
	}
}

func printMarkdownTurn(w io.Writer, t turns.Turn, style string) error {
	author := t.Author
	if author == "" {
		author = "*"
	}
	rendered, err := glamour.Render(t.Content, style)
	if err != nil {
		log.Debug().Err(err).Msg("events: markdown rendering failed, printing raw content")
		rendered = t.Content
	}
	_, err = fmt.Fprintf(w, "# %s - %s:\n%s\n", t.Role, author, strings.TrimRight(rendered, "\n"))
	return err
}

func printYAML(w io.Writer, label string, v interface{}) error {
	v_, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "## %s\n%s", label, v_)
	return err
}
