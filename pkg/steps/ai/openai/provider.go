package openai

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/turnloop/pkg/inference/engine"
	"github.com/go-go-golems/turnloop/pkg/inference/tools"
	"github.com/go-go-golems/turnloop/pkg/steps/ai/settings"
	"github.com/go-go-golems/turnloop/pkg/turns"
)

const providerName = "openai"

// Provider talks to an OpenAI-compatible chat completions endpoint, such as
// OpenAI itself or a local Ollama server under /v1.
type Provider struct {
	client *go_openai.Client
	chat   *settings.ChatSettings
	author string
	stop   func() error
}

var _ engine.Provider = (*Provider)(nil)

func NewProvider(s *settings.Settings) (*Provider, error) {
	client, stop, err := MakeClient(s.Client)
	if err != nil {
		return nil, err
	}
	return &Provider{
		client: client,
		chat:   s.Chat.Clone(),
		author: s.Agent.Name,
		stop:   stop,
	}, nil
}

// Close flushes a cassette recording, if any.
func (p *Provider) Close() error {
	return p.stop()
}

// MakeCompletionRequest builds the chat completion request for req.
func (p *Provider) MakeCompletionRequest(req *engine.Request, stream bool) (*go_openai.ChatCompletionRequest, error) {
	msgs, err := MessagesFromRequest(req)
	if err != nil {
		return nil, err
	}
	ret := &go_openai.ChatCompletionRequest{
		Model:       p.chat.Model,
		Messages:    msgs,
		MaxTokens:   p.chat.MaxResponseTokens,
		Temperature: float32(p.chat.Temperature),
		TopP:        float32(p.chat.TopP),
		Stop:        p.chat.Stop,
		Stream:      stream,
		Tools:       ToolsFromDefinitions(req.Tools),
	}
	if len(ret.Tools) > 0 {
		choice := req.ToolChoice
		if choice == "" {
			choice = tools.ToolChoiceAuto
		}
		ret.ToolChoice = string(choice)
	}
	return ret, nil
}

func (p *Provider) Complete(ctx context.Context, req *engine.Request) (*engine.Response, error) {
	creq, err := p.MakeCompletionRequest(req, false)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("model", creq.Model).
		Int("messages", len(creq.Messages)).
		Int("tools", len(creq.Tools)).
		Msg("openai: sending chat completion request")

	resp, err := p.client.CreateChatCompletion(ctx, *creq)
	if err != nil {
		return nil, &engine.ProviderError{Provider: providerName, Op: "complete", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &engine.ProviderError{Provider: providerName, Op: "complete", Err: errors.New("response has no choices")}
	}
	choice := resp.Choices[0]
	log.Debug().
		Str("finish_reason", string(choice.FinishReason)).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("openai: received chat completion")

	if len(choice.Message.ToolCalls) > 0 {
		calls, err := toolCallsFromOpenAI(choice.Message.ToolCalls)
		if err != nil {
			return nil, &engine.ProviderError{Provider: providerName, Op: "decode", Err: err}
		}
		ret := engine.NewToolCallsResponse(calls...)
		ret.Author = p.author
		ret.Content = choice.Message.Content
		return ret, nil
	}
	return engine.NewFinalResponse(choice.Message.Content, p.author), nil
}

func (p *Provider) Stream(ctx context.Context, req *engine.Request) (engine.Stream, error) {
	creq, err := p.MakeCompletionRequest(req, true)
	if err != nil {
		return nil, err
	}
	s, err := p.client.CreateChatCompletionStream(ctx, *creq)
	if err != nil {
		return nil, &engine.ProviderError{Provider: providerName, Op: "stream", Err: err}
	}
	return &chatStream{stream: s, author: p.author, merger: NewToolCallMerger()}, nil
}

// chatStream forwards text deltas as they arrive and emits the merged tool
// calls as a last chunk once the server ends the stream.
type chatStream struct {
	stream   *go_openai.ChatCompletionStream
	author   string
	merger   *ToolCallMerger
	sent     int
	finished bool
}

func (s *chatStream) Recv() (engine.Chunk, error) {
	for {
		if s.finished {
			return engine.Chunk{}, io.EOF
		}
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.finished = true
			if s.merger.Len() == 0 {
				return engine.Chunk{}, io.EOF
			}
			calls, err := toolCallsFromOpenAI(s.merger.GetToolCalls())
			if err != nil {
				return engine.Chunk{}, &engine.ProviderError{Provider: providerName, Op: "decode", Err: err}
			}
			return s.chunk("", calls), nil
		}
		if err != nil {
			return engine.Chunk{}, &engine.ProviderError{Provider: providerName, Op: "stream", Err: err}
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta
		if len(delta.ToolCalls) > 0 {
			s.merger.AddToolCalls(delta.ToolCalls)
		}
		if delta.Content != "" {
			return s.chunk(delta.Content, nil), nil
		}
	}
}

func (s *chatStream) chunk(delta string, calls []turns.ToolCallRequest) engine.Chunk {
	c := engine.Chunk{Delta: delta, ToolCalls: calls}
	if s.sent == 0 {
		c.Author = s.author
	}
	s.sent++
	return c
}

func (s *chatStream) Close() error {
	s.finished = true
	return s.stream.Close()
}
