package ai

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/turnloop/pkg/inference/engine"
	"github.com/go-go-golems/turnloop/pkg/inference/fixtures"
	"github.com/go-go-golems/turnloop/pkg/steps/ai/openai"
	"github.com/go-go-golems/turnloop/pkg/steps/ai/settings"
	"github.com/go-go-golems/turnloop/pkg/turns"
)

const testScript = `
rules:
  - match: 'hello'
    steps:
      - content: 'Hi, I am {{ .Agent }}.'
`

func TestScriptedProviderFromDefaultScript(t *testing.T) {
	s := settings.NewSettings()
	s.Chat.Provider = settings.ProviderScripted
	f := &StandardProviderFactory{Settings: s, DefaultScript: []byte(testScript)}

	p, closeFn, err := f.NewProvider()
	require.NoError(t, err)
	defer func() { _ = closeFn() }()
	require.IsType(t, &fixtures.ScriptedProvider{}, p)

	resp, err := p.Complete(context.Background(), &engine.Request{
		Turns: []turns.Turn{turns.NewUserTurn("hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi, I am Host.", resp.Content)
}

func TestScriptedProviderUsesConfiguredAgentName(t *testing.T) {
	s := settings.NewSettings()
	s.Chat.Provider = settings.ProviderScripted
	s.Agent.Name = "Waiter"
	p, _, err := (&StandardProviderFactory{Settings: s, DefaultScript: []byte(testScript)}).NewProvider()
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), &engine.Request{
		Turns: []turns.Turn{turns.NewUserTurn("hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi, I am Waiter.", resp.Content)
	assert.Equal(t, "Waiter", resp.Author)
}

func TestScriptedProviderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent: Waiter\n"+testScript), 0o644))

	s := settings.NewSettings()
	s.Chat.Provider = settings.ProviderScripted
	s.Scripted.File = path
	p, _, err := (&StandardProviderFactory{Settings: s}).NewProvider()
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), &engine.Request{
		Turns: []turns.Turn{turns.NewUserTurn("hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi, I am Waiter.", resp.Content)
}

func TestScriptedProviderWithoutScript(t *testing.T) {
	s := settings.NewSettings()
	s.Chat.Provider = settings.ProviderScripted
	_, _, err := (&StandardProviderFactory{Settings: s}).NewProvider()
	assert.Error(t, err)
}

func TestOpenAIProvider(t *testing.T) {
	p, closeFn, err := (&StandardProviderFactory{Settings: settings.NewSettings()}).NewProvider()
	require.NoError(t, err)
	assert.IsType(t, &openai.Provider{}, p)
	assert.NoError(t, closeFn())
}

func TestUnknownProvider(t *testing.T) {
	s := settings.NewSettings()
	s.Chat.Provider = "claude"
	_, _, err := (&StandardProviderFactory{Settings: s}).NewProvider()
	assert.Error(t, err)
}
