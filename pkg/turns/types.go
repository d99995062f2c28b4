package turns

import (
	"github.com/google/uuid"
)

// Role identifies who produced a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func (r Role) String() string {
	return string(r)
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolCallRequest is a provider request to invoke a named tool.
// CallID is unique within the provider response that carried it.
type ToolCallRequest struct {
	CallID    string            `yaml:"call_id" json:"call_id"`
	ToolName  string            `yaml:"tool_name" json:"tool_name"`
	Arguments map[string]string `yaml:"arguments,omitempty" json:"arguments,omitempty"`
}

// Clone returns a copy of the request with its own arguments map.
func (r ToolCallRequest) Clone() ToolCallRequest {
	out := r
	if r.Arguments != nil {
		out.Arguments = make(map[string]string, len(r.Arguments))
		for k, v := range r.Arguments {
			out.Arguments[k] = v
		}
	}
	return out
}

// Turn is one entry of a Transcript: a user input, an assistant output, or a tool result.
//
// For tool turns, ToolCalls holds the single request the result answers and
// Round numbers the tool-call cycle the request belonged to. Rounds count up
// from 1 across the transcript.
type Turn struct {
	ID        string            `yaml:"id,omitempty" json:"id,omitempty"`
	Role      Role              `yaml:"role" json:"role"`
	Author    string            `yaml:"author,omitempty" json:"author,omitempty"`
	Content   string            `yaml:"content" json:"content"`
	ToolCalls []ToolCallRequest `yaml:"tool_calls,omitempty" json:"tool_calls,omitempty"`
	Round     int               `yaml:"round,omitempty" json:"round,omitempty"`
}

// Clone returns a deep copy of the Turn.
func (t Turn) Clone() Turn {
	out := t
	if len(t.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCallRequest, len(t.ToolCalls))
		for i, c := range t.ToolCalls {
			out.ToolCalls[i] = c.Clone()
		}
	}
	return out
}

// CallID returns the call id answered by a tool turn, or "" for other roles.
func (t Turn) CallID() string {
	if t.Role != RoleTool || len(t.ToolCalls) == 0 {
		return ""
	}
	return t.ToolCalls[0].CallID
}

// ToolName returns the tool name answered by a tool turn, or "" for other roles.
func (t Turn) ToolName() string {
	if t.Role != RoleTool || len(t.ToolCalls) == 0 {
		return ""
	}
	return t.ToolCalls[0].ToolName
}

// ToolRounds splits ts into runs of consecutive tool turns answering the same
// tool-call round. Each run is returned as [start, end) indexes into ts.
func ToolRounds(ts []Turn) [][2]int {
	var out [][2]int
	for i := 0; i < len(ts); {
		if ts[i].Role != RoleTool {
			i++
			continue
		}
		j := i + 1
		for j < len(ts) && ts[j].Role == RoleTool && ts[j].Round == ts[i].Round {
			j++
		}
		out = append(out, [2]int{i, j})
		i = j
	}
	return out
}

// NewUserTurn returns a Turn representing user input.
func NewUserTurn(content string) Turn {
	return Turn{
		ID:      uuid.NewString(),
		Role:    RoleUser,
		Content: content,
	}
}

// NewAssistantTurn returns a Turn representing assistant output.
func NewAssistantTurn(content string, author string) Turn {
	return Turn{
		ID:      uuid.NewString(),
		Role:    RoleAssistant,
		Author:  author,
		Content: content,
	}
}

// NewToolResultTurn returns a Turn capturing the result of a tool execution.
// The turn is authored by the tool and carries the request it answers.
func NewToolResultTurn(call ToolCallRequest, content string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      RoleTool,
		Author:    call.ToolName,
		Content:   content,
		ToolCalls: []ToolCallRequest{call.Clone()},
	}
}
