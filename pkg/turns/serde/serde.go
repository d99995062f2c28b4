package serde

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/turnloop/pkg/turns"
)

// Document is the on-disk form of a transcript.
type Document struct {
	SessionID string       `yaml:"session_id,omitempty"`
	Agent     string       `yaml:"agent,omitempty"`
	Turns     []turns.Turn `yaml:"turns"`
}

// ToYAML marshals a transcript snapshot to YAML.
func ToYAML(doc Document) ([]byte, error) {
	if doc.Turns == nil {
		doc.Turns = []turns.Turn{}
	}
	return yaml.Marshal(doc)
}

// FromYAML unmarshals a transcript document and checks that every turn has a known role.
func FromYAML(b []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(err, "could not parse transcript")
	}
	for i, t := range doc.Turns {
		if !t.Role.IsValid() {
			return nil, errors.Errorf("turn %d has unknown role %q", i, t.Role)
		}
	}
	return &doc, nil
}

// Replay rebuilds a Transcript by appending the document's turns in order.
//
// Consecutive tool turns with the same round are treated as one tool-call
// cycle, so a document with a tool result that does not match its request
// fails with turns.DanglingToolResultError.
// Replayed turns get fresh ids.
func Replay(doc *Document) (*turns.Transcript, error) {
	tr := turns.NewTranscript()
	if doc == nil {
		return tr, nil
	}
	ts := doc.Turns
	for i := 0; i < len(ts); {
		t := ts[i]
		switch t.Role {
		case turns.RoleUser:
			tr.AppendUser(t.Content)
			i++
		case turns.RoleAssistant:
			tr.AppendAssistant(t.Content, t.Author)
			i++
		case turns.RoleTool:
			j := i
			var calls []turns.ToolCallRequest
			for j < len(ts) && ts[j].Role == turns.RoleTool && ts[j].Round == t.Round {
				if len(ts[j].ToolCalls) == 0 {
					return nil, &turns.DanglingToolResultError{ToolName: ts[j].Author, Reason: "tool turn without a request"}
				}
				calls = append(calls, ts[j].ToolCalls[0])
				j++
			}
			if err := tr.OpenToolCalls(calls); err != nil {
				return nil, errors.Wrapf(err, "turn %d", i)
			}
			for k := i; k < j; k++ {
				if _, err := tr.AppendToolResult(ts[k].CallID(), ts[k].ToolName(), ts[k].Content); err != nil {
					return nil, err
				}
			}
			i = j
		default:
			return nil, errors.Errorf("turn %d has unknown role %q", i, t.Role)
		}
	}
	return tr, nil
}

// SaveTranscriptYAML writes a transcript document to a YAML file.
func SaveTranscriptYAML(path string, doc Document) error {
	data, err := ToYAML(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadTranscriptYAML reads a transcript document from a YAML file.
func LoadTranscriptYAML(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(b)
}
