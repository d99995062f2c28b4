package fixtures

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/turnloop/pkg/inference/engine"
	"github.com/go-go-golems/turnloop/pkg/turns"
)

// Script drives a ScriptedProvider. The latest user input selects the first
// rule whose pattern matches it; the rule's steps are then answered one per
// completion round.
//
//	agent: Host
//	rules:
//	  - match: 'how much is (.+?)\??$'
//	    steps:
//	      - tool_calls:
//	          - tool: get_item_price
//	            arguments: {menu_item: '{{ index .Groups 1 }}'}
//	      - content: 'The {{ index .Groups 1 }} costs {{ .LastResult }}.'
type Script struct {
	Agent    string `yaml:"agent,omitempty"`
	Fallback string `yaml:"fallback,omitempty"`
	Rules    []Rule `yaml:"rules"`
}

type Rule struct {
	Match string `yaml:"match"`
	Steps []Step `yaml:"steps"`

	re *regexp.Regexp
}

// Step is one scripted response: tool calls, or final content.
type Step struct {
	ToolCalls []ScriptedCall `yaml:"tool_calls,omitempty"`
	Content   string         `yaml:"content,omitempty"`
	Author    string         `yaml:"author,omitempty"`
}

type ScriptedCall struct {
	Tool      string            `yaml:"tool"`
	Arguments map[string]string `yaml:"arguments,omitempty"`
}

// TemplateData is available to content and argument templates.
type TemplateData struct {
	Agent string
	Input string
	// Groups holds the submatches of the rule pattern; Groups[0] is the whole match.
	Groups []string
	// Results holds the tool results recorded since the user input, in order.
	Results    []string
	LastResult string
}

// ScriptedProvider is an offline Provider answering from a Script.
//
// It keeps no per-conversation state: the step to answer is derived from the
// number of tool-call cycles recorded after the latest user turn, so one
// provider can serve any number of sessions.
type ScriptedProvider struct {
	script Script
}

// ParseScript decodes and compiles a YAML script.
func ParseScript(b []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, errors.Wrap(err, "could not parse script")
	}
	for i := range s.Rules {
		re, err := regexp.Compile("(?i)" + s.Rules[i].Match)
		if err != nil {
			return nil, errors.Wrapf(err, "rule %d has an invalid pattern", i)
		}
		s.Rules[i].re = re
		if len(s.Rules[i].Steps) == 0 {
			return nil, errors.Errorf("rule %d (%q) has no steps", i, s.Rules[i].Match)
		}
	}
	return &s, nil
}

// LoadScript reads a YAML script from path.
func LoadScript(path string) (*Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read script %s", path)
	}
	return ParseScript(b)
}

func NewScriptedProvider(script *Script) *ScriptedProvider {
	return &ScriptedProvider{script: *script}
}

func (p *ScriptedProvider) Complete(ctx context.Context, req *engine.Request) (*engine.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	input, results, cycles, ok := lastExchange(req.Turns)
	if !ok {
		return nil, &engine.ProviderError{Provider: "scripted", Op: "complete", Err: errors.New("request has no user turn")}
	}

	rule, groups := p.match(input)
	data := TemplateData{Agent: p.script.Agent, Input: input, Groups: groups, Results: results}
	if len(results) > 0 {
		data.LastResult = results[len(results)-1]
	}

	if rule == nil {
		content, err := render(p.script.Fallback, data)
		if err != nil {
			return nil, err
		}
		return engine.NewFinalResponse(content, p.script.Agent), nil
	}

	step := rule.Steps[len(rule.Steps)-1]
	if cycles < len(rule.Steps) {
		step = rule.Steps[cycles]
	}
	log.Debug().Str("rule", rule.Match).Int("step", cycles).Msg("fixtures: scripted step")

	author := step.Author
	if author == "" {
		author = p.script.Agent
	}
	if len(step.ToolCalls) == 0 || cycles >= len(rule.Steps) {
		content, err := render(step.Content, data)
		if err != nil {
			return nil, err
		}
		return engine.NewFinalResponse(content, author), nil
	}

	calls := make([]turns.ToolCallRequest, 0, len(step.ToolCalls))
	for i, c := range step.ToolCalls {
		args := make(map[string]string, len(c.Arguments))
		for k, v := range c.Arguments {
			rendered, err := render(v, data)
			if err != nil {
				return nil, err
			}
			args[k] = rendered
		}
		calls = append(calls, turns.ToolCallRequest{
			CallID:    fmt.Sprintf("call_%d_%d", cycles, i),
			ToolName:  c.Tool,
			Arguments: args,
		})
	}
	resp := engine.NewToolCallsResponse(calls...)
	resp.Author = author
	return resp, nil
}

// Stream answers like Complete and splits final content into word fragments.
func (p *ScriptedProvider) Stream(ctx context.Context, req *engine.Request) (engine.Stream, error) {
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Kind == engine.ResponseToolCalls {
		return engine.NewSliceStream(engine.Chunk{Author: resp.Author, ToolCalls: resp.ToolCalls}), nil
	}
	var chunks []engine.Chunk
	for i, w := range strings.SplitAfter(resp.Content, " ") {
		c := engine.Chunk{Delta: w}
		if i == 0 {
			c.Author = resp.Author
		}
		chunks = append(chunks, c)
	}
	return engine.NewSliceStream(chunks...), nil
}

func (p *ScriptedProvider) match(input string) (*Rule, []string) {
	for i := range p.script.Rules {
		r := &p.script.Rules[i]
		if r.re == nil {
			continue
		}
		if groups := r.re.FindStringSubmatch(strings.TrimSpace(input)); groups != nil {
			return r, groups
		}
	}
	return nil, nil
}

// lastExchange returns the latest user input, the tool results recorded after
// it and the number of tool-call rounds they form.
func lastExchange(ts []turns.Turn) (string, []string, int, bool) {
	idx := -1
	for i := len(ts) - 1; i >= 0; i-- {
		if ts[i].Role == turns.RoleUser {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", nil, 0, false
	}
	after := ts[idx+1:]
	var results []string
	for _, t := range after {
		if t.Role == turns.RoleTool {
			results = append(results, t.Content)
		}
	}
	return ts[idx].Content, results, len(turns.ToolRounds(after)), true
}

func render(text string, data TemplateData) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New("step").Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return "", &engine.ProviderError{Provider: "scripted", Op: "parse template", Err: err}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", &engine.ProviderError{Provider: "scripted", Op: "render template", Err: err}
	}
	return buf.String(), nil
}

var _ engine.Provider = (*ScriptedProvider)(nil)
