package ollama

import (
	"context"
	"strings"

	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/turnloop/pkg/inference/engine"
	"github.com/go-go-golems/turnloop/pkg/steps/ai/settings"
	"github.com/go-go-golems/turnloop/pkg/turns"
)

const providerName = "ollama"

// Provider uses the native Ollama chat API. That API has no function
// calling, so the provider only ever returns final answers; tools are
// described to the model in the system prompt at most. The server address
// comes from OLLAMA_HOST.
type Provider struct {
	client *api.Client
	chat   *settings.ChatSettings
	author string
}

var _ engine.Provider = (*Provider)(nil)

func NewProvider(s *settings.Settings) (*Provider, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, errors.Wrap(err, "could not create ollama client")
	}
	return &Provider{client: client, chat: s.Chat.Clone(), author: s.Agent.Name}, nil
}

// Messages converts the request to ollama chat messages. Tool results are
// passed back as user-visible context since the API has no tool role.
func Messages(req *engine.Request) []api.Message {
	var ret []api.Message
	if req.Instructions != "" {
		ret = append(ret, api.Message{Role: "system", Content: req.Instructions})
	}
	for _, t := range req.Turns {
		switch t.Role {
		case turns.RoleUser:
			ret = append(ret, api.Message{Role: "user", Content: t.Content})
		case turns.RoleAssistant:
			ret = append(ret, api.Message{Role: "assistant", Content: t.Content})
		case turns.RoleTool:
			ret = append(ret, api.Message{
				Role:    "user",
				Content: "Result of " + t.ToolName() + "(" + turns.FormatArguments(t.ToolCalls[0].Arguments) + "): " + t.Content,
			})
		}
	}
	return ret
}

// Options maps the chat settings to ollama model options.
func (p *Provider) Options() map[string]interface{} {
	opts := map[string]interface{}{
		"temperature": p.chat.Temperature,
		"top_p":       p.chat.TopP,
	}
	if p.chat.MaxResponseTokens > 0 {
		opts["num_predict"] = p.chat.MaxResponseTokens
	}
	if len(p.chat.Stop) > 0 {
		opts["stop"] = p.chat.Stop
	}
	return opts
}

func (p *Provider) run(ctx context.Context, req *engine.Request, fn func(delta string) error) error {
	stream := true
	creq := &api.ChatRequest{
		Model:    p.chat.Model,
		Messages: Messages(req),
		Stream:   &stream,
		Options:  p.Options(),
	}
	if len(req.Tools) > 0 {
		log.Debug().Int("tools", len(req.Tools)).Msg("ollama: native chat API ignores tools")
	}
	err := p.client.Chat(ctx, creq, func(resp api.ChatResponse) error {
		if resp.Done {
			return nil
		}
		return fn(resp.Message.Content)
	})
	if err != nil {
		return &engine.ProviderError{Provider: providerName, Op: "chat", Err: err}
	}
	return nil
}

func (p *Provider) Complete(ctx context.Context, req *engine.Request) (*engine.Response, error) {
	var sb strings.Builder
	err := p.run(ctx, req, func(delta string) error {
		sb.WriteString(delta)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return engine.NewFinalResponse(sb.String(), p.author), nil
}

// Stream collects the streamed deltas and replays them once the server is done.
func (p *Provider) Stream(ctx context.Context, req *engine.Request) (engine.Stream, error) {
	var chunks []engine.Chunk
	err := p.run(ctx, req, func(delta string) error {
		if delta == "" {
			return nil
		}
		c := engine.Chunk{Delta: delta}
		if len(chunks) == 0 {
			c.Author = p.author
		}
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return engine.NewSliceStream(chunks...), nil
}
