package ai

import (
	"github.com/pkg/errors"

	"github.com/go-go-golems/turnloop/pkg/inference/engine"
	"github.com/go-go-golems/turnloop/pkg/inference/fixtures"
	"github.com/go-go-golems/turnloop/pkg/steps/ai/ollama"
	"github.com/go-go-golems/turnloop/pkg/steps/ai/openai"
	"github.com/go-go-golems/turnloop/pkg/steps/ai/settings"
)

// StandardProviderFactory builds the provider selected by chat.provider.
type StandardProviderFactory struct {
	Settings *settings.Settings
	// DefaultScript is used by the scripted provider when scripted.file is empty.
	DefaultScript []byte
}

// NewProvider returns the provider and a function releasing its resources.
func (f *StandardProviderFactory) NewProvider() (engine.Provider, func() error, error) {
	s := f.Settings.Clone()
	noop := func() error { return nil }

	switch s.Chat.Provider {
	case settings.ProviderOpenAI:
		p, err := openai.NewProvider(s)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil

	case settings.ProviderOllama:
		p, err := ollama.NewProvider(s)
		if err != nil {
			return nil, nil, err
		}
		return p, noop, nil

	case settings.ProviderScripted:
		var script *fixtures.Script
		var err error
		switch {
		case s.Scripted.File != "":
			script, err = fixtures.LoadScript(s.Scripted.File)
		case len(f.DefaultScript) > 0:
			script, err = fixtures.ParseScript(f.DefaultScript)
		default:
			err = errors.New("scripted provider needs scripted.file")
		}
		if err != nil {
			return nil, nil, err
		}
		if script.Agent == "" {
			script.Agent = s.Agent.Name
		}
		return fixtures.NewScriptedProvider(script), noop, nil
	}

	return nil, nil, errors.Errorf("unknown provider %q", s.Chat.Provider)
}
