package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/turnloop/pkg/inference/engine"
	"github.com/go-go-golems/turnloop/pkg/inference/tools"
)

func TestDefaults(t *testing.T) {
	s, err := NewSettingsFromViper(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434/v1", s.Client.BaseURL)
	assert.Equal(t, "fake-key", s.Client.APIKey)
	assert.Equal(t, "llama3.1", s.Chat.Model)
	assert.Equal(t, 2000, s.Chat.MaxResponseTokens)
	assert.InDelta(t, 0.7, s.Chat.Temperature, 1e-9)
	assert.InDelta(t, 0.8, s.Chat.TopP, 1e-9)
	assert.Equal(t, "Host", s.Agent.Name)
	assert.Equal(t, engine.ModeAtomic, s.Chat.Mode())
	assert.Equal(t, 8, s.LoopConfig().MaxToolRounds)
	assert.Nil(t, s.ToolConfig().AllowedTools)
	assert.Equal(t, tools.ToolErrorAbort, s.ToolConfig().ToolErrorHandling)
}

func TestConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
client:
  timeout: 5s
chat:
  provider: scripted
  stream: true
loop:
  max_tool_rounds: 3
  allowed_tools: [get_*]
  tool_error_handling: continue
`), 0o644))

	t.Setenv("TURNLOOP_CHAT_MODEL", "qwen2.5")

	v := NewViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	s, err := NewSettingsFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, ProviderScripted, s.Chat.Provider)
	assert.Equal(t, "qwen2.5", s.Chat.Model)
	assert.Equal(t, 5*time.Second, s.Client.Timeout)
	assert.Equal(t, engine.ModeStreaming, s.Chat.Mode())
	assert.Equal(t, 3, s.LoopConfig().MaxToolRounds)
	assert.Equal(t, []string{"get_*"}, s.ToolConfig().AllowedTools)
	assert.Equal(t, tools.ToolErrorContinue, s.ToolConfig().ToolErrorHandling)
}

func TestValidate(t *testing.T) {
	s := NewSettings()
	s.Chat.Provider = "claude"
	assert.Error(t, s.Validate())

	s = NewSettings()
	s.Loop.ToolErrorHandling = "retry"
	assert.Error(t, s.Validate())

	s = NewSettings()
	s.Chat.ToolChoice = "maybe"
	assert.Error(t, s.Validate())
}

func TestCloneIsDeep(t *testing.T) {
	s := NewSettings()
	c := s.Clone()
	c.Chat.Model = "other"
	c.Loop.AllowedTools = append(c.Loop.AllowedTools, "x")
	assert.Equal(t, "llama3.1", s.Chat.Model)
	assert.Empty(t, s.Loop.AllowedTools)
}

func TestRenderInstructions(t *testing.T) {
	a := &AgentSettings{
		Name:         "Host",
		Instructions: `You are {{ .AgentName | upper }}. Tools: {{ range $i, $t := .Tools }}{{ if $i }}, {{ end }}{{ $t.Name }}{{ end }}.`,
	}
	out, err := a.RenderInstructions([]tools.Spec{{Name: "get_specials"}, {Name: "get_item_price"}})
	require.NoError(t, err)
	assert.Equal(t, "You are HOST. Tools: get_specials, get_item_price.", out)

	plain, err := NewAgentSettings().RenderInstructions(nil)
	require.NoError(t, err)
	assert.Equal(t, "Answer questions about the menu.", plain)

	_, err = (&AgentSettings{Instructions: "{{ .Nope"}).RenderInstructions(nil)
	assert.Error(t, err)
}
