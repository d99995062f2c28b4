package settings

import (
	"github.com/huandu/go-clone"

	"github.com/go-go-golems/turnloop/pkg/inference/engine"
)

type ProviderType string

const (
	ProviderOpenAI   ProviderType = "openai"
	ProviderOllama   ProviderType = "ollama"
	ProviderScripted ProviderType = "scripted"
)

type ChatSettings struct {
	Provider          ProviderType `yaml:"provider,omitempty" mapstructure:"provider"`
	Model             string       `yaml:"model,omitempty" mapstructure:"model"`
	MaxResponseTokens int          `yaml:"max_tokens,omitempty" mapstructure:"max_tokens"`
	Temperature       float64      `yaml:"temperature,omitempty" mapstructure:"temperature"`
	TopP              float64      `yaml:"top_p,omitempty" mapstructure:"top_p"`
	Stop              []string     `yaml:"stop,omitempty" mapstructure:"stop"`
	ToolChoice        string       `yaml:"tool_choice,omitempty" mapstructure:"tool_choice"`
	Stream            bool         `yaml:"stream,omitempty" mapstructure:"stream"`
}

func NewChatSettings() *ChatSettings {
	return &ChatSettings{
		Provider:          ProviderOpenAI,
		Model:             "llama3.1",
		MaxResponseTokens: 2000,
		Temperature:       0.7,
		TopP:              0.8,
		Stop:              []string{},
		ToolChoice:        "auto",
		Stream:            false,
	}
}

// Mode returns the completion mode selected by Stream.
func (s *ChatSettings) Mode() engine.Mode {
	if s.Stream {
		return engine.ModeStreaming
	}
	return engine.ModeAtomic
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}
