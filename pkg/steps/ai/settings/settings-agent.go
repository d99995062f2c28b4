package settings

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"

	"github.com/go-go-golems/turnloop/pkg/inference/tools"
)

type AgentSettings struct {
	Name string `yaml:"name,omitempty" mapstructure:"name"`
	// Instructions is a text/template with sprig functions. It sees
	// .AgentName and .Tools (the offered tool specs).
	Instructions string `yaml:"instructions,omitempty" mapstructure:"instructions"`
}

func NewAgentSettings() *AgentSettings {
	return &AgentSettings{
		Name:         "Host",
		Instructions: "Answer questions about the menu.",
	}
}

type instructionsData struct {
	AgentName string
	Tools     []tools.Spec
}

// RenderInstructions expands the instructions template.
func (s *AgentSettings) RenderInstructions(specs []tools.Spec) (string, error) {
	tmpl, err := template.New("instructions").Funcs(sprig.TxtFuncMap()).Parse(s.Instructions)
	if err != nil {
		return "", errors.Wrap(err, "could not parse agent instructions")
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, instructionsData{AgentName: s.Name, Tools: specs}); err != nil {
		return "", errors.Wrap(err, "could not render agent instructions")
	}
	return buf.String(), nil
}
