package engine

import (
	"context"
	"io"
)

// Mode selects how a completion is delivered.
type Mode string

const (
	// ModeAtomic delivers the whole completion at once.
	ModeAtomic Mode = "atomic"
	// ModeStreaming delivers the completion as an ordered sequence of fragments.
	ModeStreaming Mode = "streaming"
)

func (m Mode) IsValid() bool {
	return m == ModeAtomic || m == ModeStreaming
}

// Provider produces the next response of a conversation.
//
// Providers are stateless with respect to the transcript: the full visible
// history is sent with every request. Implementations must be safe for
// concurrent use by multiple sessions.
type Provider interface {
	// Complete returns the whole response.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Stream returns the response as chunks.
	Stream(ctx context.Context, req *Request) (Stream, error)
}

// Stream yields the chunks of a streamed response. Recv returns io.EOF after the last chunk.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}

// SliceStream replays a fixed list of chunks.
type SliceStream struct {
	chunks []Chunk
	pos    int
}

func NewSliceStream(chunks ...Chunk) *SliceStream {
	return &SliceStream{chunks: chunks}
}

func (s *SliceStream) Recv() (Chunk, error) {
	if s.pos >= len(s.chunks) {
		return Chunk{}, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *SliceStream) Close() error {
	s.pos = len(s.chunks)
	return nil
}

var _ Stream = (*SliceStream)(nil)
