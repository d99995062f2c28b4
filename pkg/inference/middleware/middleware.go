package middleware

import (
	"context"

	"github.com/go-go-golems/turnloop/pkg/inference/engine"
)

// Middleware decorates a Provider.
// Middleware are applied in order: Chain(p, m1, m2, m3) results in m1(m2(m3(p))).
type Middleware func(engine.Provider) engine.Provider

// Chain wraps p with middlewares.
func Chain(p engine.Provider, middlewares ...Middleware) engine.Provider {
	for i := len(middlewares) - 1; i >= 0; i-- {
		p = middlewares[i](p)
	}
	return p
}

// ProviderFuncs adapts a pair of functions to the Provider interface.
// A nil function delegates to Next.
type ProviderFuncs struct {
	Next       engine.Provider
	CompleteFn func(ctx context.Context, req *engine.Request) (*engine.Response, error)
	StreamFn   func(ctx context.Context, req *engine.Request) (engine.Stream, error)
}

func (p *ProviderFuncs) Complete(ctx context.Context, req *engine.Request) (*engine.Response, error) {
	if p.CompleteFn != nil {
		return p.CompleteFn(ctx, req)
	}
	return p.Next.Complete(ctx, req)
}

func (p *ProviderFuncs) Stream(ctx context.Context, req *engine.Request) (engine.Stream, error) {
	if p.StreamFn != nil {
		return p.StreamFn(ctx, req)
	}
	return p.Next.Stream(ctx, req)
}

var _ engine.Provider = (*ProviderFuncs)(nil)

// NewSystemPromptMiddleware appends prompt to the request instructions,
// separated by a blank line. The caller's request is not modified.
func NewSystemPromptMiddleware(prompt string) Middleware {
	withPrompt := func(req *engine.Request) *engine.Request {
		if prompt == "" {
			return req
		}
		r := *req
		if r.Instructions == "" {
			r.Instructions = prompt
		} else {
			r.Instructions = r.Instructions + "\n\n" + prompt
		}
		return &r
	}
	return func(next engine.Provider) engine.Provider {
		return &ProviderFuncs{
			Next: next,
			CompleteFn: func(ctx context.Context, req *engine.Request) (*engine.Response, error) {
				return next.Complete(ctx, withPrompt(req))
			},
			StreamFn: func(ctx context.Context, req *engine.Request) (engine.Stream, error) {
				return next.Stream(ctx, withPrompt(req))
			},
		}
	}
}
