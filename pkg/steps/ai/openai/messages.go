package openai

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cast"

	"github.com/go-go-golems/turnloop/pkg/inference/engine"
	"github.com/go-go-golems/turnloop/pkg/inference/tools"
	"github.com/go-go-golems/turnloop/pkg/turns"
)

// MessagesFromRequest converts the instructions and transcript to chat
// messages. Each tool-call round is preceded by one assistant message
// carrying the calls its tool turns answer, which is the shape the chat
// completions API expects.
func MessagesFromRequest(req *engine.Request) ([]go_openai.ChatCompletionMessage, error) {
	var msgs []go_openai.ChatCompletionMessage
	if req.Instructions != "" {
		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:    go_openai.ChatMessageRoleSystem,
			Content: req.Instructions,
		})
	}

	ts := req.Turns
	for i := 0; i < len(ts); i++ {
		t := ts[i]
		switch t.Role {
		case turns.RoleUser:
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:    go_openai.ChatMessageRoleUser,
				Content: t.Content,
			})
		case turns.RoleAssistant:
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:    go_openai.ChatMessageRoleAssistant,
				Content: t.Content,
			})
		case turns.RoleTool:
			j := i + 1
			for j < len(ts) && ts[j].Role == turns.RoleTool && ts[j].Round == t.Round {
				j++
			}
			calls := make([]go_openai.ToolCall, 0, j-i)
			results := make([]go_openai.ChatCompletionMessage, 0, j-i)
			for _, tt := range ts[i:j] {
				if len(tt.ToolCalls) == 0 {
					return nil, errors.Errorf("tool turn %s carries no call", tt.ID)
				}
				call := tt.ToolCalls[0]
				args, err := encodeArguments(call.Arguments)
				if err != nil {
					return nil, err
				}
				calls = append(calls, go_openai.ToolCall{
					ID:   call.CallID,
					Type: go_openai.ToolTypeFunction,
					Function: go_openai.FunctionCall{
						Name:      call.ToolName,
						Arguments: args,
					},
				})
				results = append(results, go_openai.ChatCompletionMessage{
					Role:       go_openai.ChatMessageRoleTool,
					Content:    tt.Content,
					Name:       call.ToolName,
					ToolCallID: call.CallID,
				})
			}
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:      go_openai.ChatMessageRoleAssistant,
				ToolCalls: calls,
			})
			msgs = append(msgs, results...)
			i = j - 1
		default:
			return nil, errors.Errorf("unknown role %q", t.Role)
		}
	}
	return msgs, nil
}

// ToolsFromDefinitions converts tool definitions to function tools.
func ToolsFromDefinitions(defs []tools.Definition) []go_openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	ret := make([]go_openai.Tool, 0, len(defs))
	for _, d := range defs {
		ret = append(ret, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return ret
}

func encodeArguments(args map[string]string) (string, error) {
	if len(args) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "", errors.Wrap(err, "could not encode tool arguments")
	}
	return string(b), nil
}

// DecodeArguments turns the JSON argument object of a tool call into
// string values. Nested values are kept as their JSON text.
func DecodeArguments(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, errors.Wrapf(err, "could not decode tool arguments %q", raw)
	}
	ret := make(map[string]string, len(obj))
	for k, v := range obj {
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, errors.Wrapf(err, "could not encode argument %s", k)
			}
			ret[k] = string(b)
		case nil:
			log.Debug().Str("argument", k).Msg("openai: dropping null tool argument")
		default:
			s, err := cast.ToStringE(v)
			if err != nil {
				return nil, errors.Wrapf(err, "could not convert argument %s", k)
			}
			ret[k] = s
		}
	}
	return ret, nil
}

func toolCallsFromOpenAI(calls []go_openai.ToolCall) ([]turns.ToolCallRequest, error) {
	ret := make([]turns.ToolCallRequest, 0, len(calls))
	for _, c := range calls {
		args, err := DecodeArguments(c.Function.Arguments)
		if err != nil {
			return nil, err
		}
		ret = append(ret, turns.ToolCallRequest{
			CallID:    c.ID,
			ToolName:  c.Function.Name,
			Arguments: args,
		})
	}
	return ret, nil
}
