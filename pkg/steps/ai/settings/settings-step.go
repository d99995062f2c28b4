package settings

import (
	"strings"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/go-go-golems/turnloop/pkg/inference/toolloop"
	"github.com/go-go-golems/turnloop/pkg/inference/tools"
)

type LoopSettings struct {
	MaxToolRounds     int      `yaml:"max_tool_rounds,omitempty" mapstructure:"max_tool_rounds"`
	AllowedTools      []string `yaml:"allowed_tools,omitempty" mapstructure:"allowed_tools"`
	ToolErrorHandling string   `yaml:"tool_error_handling,omitempty" mapstructure:"tool_error_handling"`
}

type ScriptedSettings struct {
	// File is a YAML script; empty means the built-in menu script.
	File string `yaml:"file,omitempty" mapstructure:"file"`
}

type LogSettings struct {
	Level string `yaml:"level,omitempty" mapstructure:"level"`
}

// Settings is the complete configuration of a host agent session.
type Settings struct {
	Client   *ClientSettings   `yaml:"client,omitempty" mapstructure:"client"`
	Chat     *ChatSettings     `yaml:"chat,omitempty" mapstructure:"chat"`
	Agent    *AgentSettings    `yaml:"agent,omitempty" mapstructure:"agent"`
	Loop     *LoopSettings     `yaml:"loop,omitempty" mapstructure:"loop"`
	Scripted *ScriptedSettings `yaml:"scripted,omitempty" mapstructure:"scripted"`
	Log      *LogSettings      `yaml:"log,omitempty" mapstructure:"log"`
}

// NewSettings returns the defaults: a local OpenAI-compatible server at
// localhost:11434 running llama3.1, with the Host agent.
func NewSettings() *Settings {
	return &Settings{
		Client: NewClientSettings(),
		Chat:   NewChatSettings(),
		Agent:  NewAgentSettings(),
		Loop: &LoopSettings{
			MaxToolRounds:     toolloop.DefaultMaxToolRounds,
			ToolErrorHandling: string(tools.ToolErrorAbort),
		},
		Scripted: &ScriptedSettings{},
		Log:      &LogSettings{Level: "info"},
	}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

// SetDefaults registers every default under its dotted key.
func SetDefaults(v *viper.Viper) {
	d := NewSettings()
	v.SetDefault("client.base_url", d.Client.BaseURL)
	v.SetDefault("client.api_key", d.Client.APIKey)
	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("client.organization", "")
	v.SetDefault("client.user_agent", "")
	v.SetDefault("client.cassette", "")
	v.SetDefault("client.record", false)
	v.SetDefault("client.allow_http", d.Client.AllowHTTP)
	v.SetDefault("client.allow_local_networks", d.Client.AllowLocalNetworks)
	v.SetDefault("chat.provider", string(d.Chat.Provider))
	v.SetDefault("chat.model", d.Chat.Model)
	v.SetDefault("chat.max_tokens", d.Chat.MaxResponseTokens)
	v.SetDefault("chat.temperature", d.Chat.Temperature)
	v.SetDefault("chat.top_p", d.Chat.TopP)
	v.SetDefault("chat.stop", d.Chat.Stop)
	v.SetDefault("chat.tool_choice", d.Chat.ToolChoice)
	v.SetDefault("chat.stream", d.Chat.Stream)
	v.SetDefault("agent.name", d.Agent.Name)
	v.SetDefault("agent.instructions", d.Agent.Instructions)
	v.SetDefault("loop.max_tool_rounds", d.Loop.MaxToolRounds)
	v.SetDefault("loop.tool_error_handling", d.Loop.ToolErrorHandling)
	v.SetDefault("scripted.file", "")
	v.SetDefault("log.level", d.Log.Level)
}

// NewViper returns a viper instance with defaults and TURNLOOP_* environment
// variables bound (chat.model is read from TURNLOOP_CHAT_MODEL).
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("turnloop")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// NewSettingsFromViper decodes and validates the settings held by v.
func NewSettingsFromViper(v *viper.Viper) (*Settings, error) {
	s := NewSettings()
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	// allowed_tools distinguishes unset (all tools) from an empty list
	if !v.IsSet("loop.allowed_tools") {
		s.Loop.AllowedTools = nil
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	switch s.Chat.Provider {
	case ProviderOpenAI, ProviderOllama, ProviderScripted:
	default:
		return errors.Errorf("unknown provider %q", s.Chat.Provider)
	}
	if s.Chat.Model == "" && s.Chat.Provider != ProviderScripted {
		return errors.New("chat.model must be set")
	}
	if s.Loop.MaxToolRounds < 0 {
		return errors.Errorf("loop.max_tool_rounds must be positive, got %d", s.Loop.MaxToolRounds)
	}
	if s.Client.Timeout < 0 {
		return errors.Errorf("client.timeout must be positive, got %s", s.Client.Timeout)
	}
	return s.ToolConfig().Validate()
}

func (s *Settings) ToolConfig() tools.ToolConfig {
	return tools.DefaultToolConfig().
		WithToolChoice(tools.ToolChoice(s.Chat.ToolChoice)).
		WithAllowedTools(s.Loop.AllowedTools).
		WithToolErrorHandling(tools.ToolErrorHandling(s.Loop.ToolErrorHandling))
}

func (s *Settings) LoopConfig() toolloop.LoopConfig {
	return toolloop.DefaultLoopConfig().WithMaxToolRounds(s.Loop.MaxToolRounds)
}

// Timeout returns the client timeout, or zero for none.
func (s *Settings) Timeout() time.Duration {
	return s.Client.Timeout
}
