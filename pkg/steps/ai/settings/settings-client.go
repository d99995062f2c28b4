package settings

import (
	"time"

	"github.com/huandu/go-clone"
)

// ClientSettings configures the HTTP side of a provider.
type ClientSettings struct {
	BaseURL      string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	APIKey       string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Timeout      time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
	Organization string        `yaml:"organization,omitempty" mapstructure:"organization"`
	UserAgent    string        `yaml:"user_agent,omitempty" mapstructure:"user_agent"`
	// Cassette records provider HTTP traffic to, or replays it from, a file.
	Cassette string `yaml:"cassette,omitempty" mapstructure:"cassette"`
	Record   bool   `yaml:"record,omitempty" mapstructure:"record"`
	// AllowHTTP and AllowLocalNetworks relax the endpoint check for local model servers.
	AllowHTTP          bool `yaml:"allow_http,omitempty" mapstructure:"allow_http"`
	AllowLocalNetworks bool `yaml:"allow_local_networks,omitempty" mapstructure:"allow_local_networks"`
}

func NewClientSettings() *ClientSettings {
	return &ClientSettings{
		BaseURL: "http://localhost:11434/v1",
		APIKey:  "fake-key",
		Timeout: 60 * time.Second,

		AllowHTTP:          true,
		AllowLocalNetworks: true,
	}
}

func (cs *ClientSettings) Clone() *ClientSettings {
	return clone.Clone(cs).(*ClientSettings)
}
