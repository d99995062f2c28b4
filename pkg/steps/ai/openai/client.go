package openai

import (
	"net/http"

	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/turnloop/pkg/inference/fixtures"
	"github.com/go-go-golems/turnloop/pkg/security"
	"github.com/go-go-golems/turnloop/pkg/steps/ai/settings"
)

type userAgentTransport struct {
	userAgent string
	next      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(req)
}

// MakeClient builds a go-openai client from the client settings. When a
// cassette is configured, traffic goes through it and the returned stop
// function flushes the recording.
func MakeClient(cs *settings.ClientSettings) (*go_openai.Client, func() error, error) {
	if cs == nil {
		return nil, nil, errors.New("no client settings")
	}
	if cs.BaseURL == "" {
		return nil, nil, errors.New("no base URL")
	}
	err := security.ValidateOutboundURL(cs.BaseURL, security.OutboundURLOptions{
		AllowHTTP:          cs.AllowHTTP,
		AllowLocalNetworks: cs.AllowLocalNetworks,
	})
	if err != nil {
		return nil, nil, err
	}

	config := go_openai.DefaultConfig(cs.APIKey)
	config.BaseURL = cs.BaseURL
	config.OrgID = cs.Organization

	stop := func() error { return nil }
	var transport http.RoundTripper = http.DefaultTransport
	if cs.Cassette != "" {
		rec, err := fixtures.NewCassette(cs.Cassette, cs.Record, http.DefaultTransport)
		if err != nil {
			return nil, nil, err
		}
		transport = rec
		stop = rec.Stop
	}
	if cs.UserAgent != "" {
		transport = &userAgentTransport{userAgent: cs.UserAgent, next: transport}
	}
	config.HTTPClient = &http.Client{Timeout: cs.Timeout, Transport: transport}

	return go_openai.NewClientWithConfig(config), stop, nil
}
