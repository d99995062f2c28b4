// Package tokens counts transcript tokens with tiktoken encodings.
package tokens

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"

	"github.com/go-go-golems/turnloop/pkg/turns"
)

// DefaultEncoding is used for models tiktoken does not know, such as local models.
const DefaultEncoding = tokenizer.Cl100kBase

type Counter struct {
	codec tokenizer.Codec
}

// NewCounter returns a counter for model, falling back to DefaultEncoding.
func NewCounter(model string) (*Counter, error) {
	if model != "" {
		c, err := tokenizer.ForModel(tokenizer.Model(model))
		if err == nil {
			return &Counter{codec: c}, nil
		}
		log.Debug().Str("model", model).Msg("tokens: unknown model, using default encoding")
	}
	return NewCounterForEncoding(DefaultEncoding)
}

func NewCounterForEncoding(encoding tokenizer.Encoding) (*Counter, error) {
	c, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load encoding %s", encoding)
	}
	return &Counter{codec: c}, nil
}

func (c *Counter) Count(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return 0, errors.Wrap(err, "could not encode text")
	}
	return len(ids), nil
}

// Stats summarizes a transcript.
type Stats struct {
	Turns         int
	TurnsByRole   map[turns.Role]int
	TokensByRole  map[turns.Role]int
	TotalTokens   int
	ToolCallsByID map[string]string
}

// CountTurns tallies turns and content tokens per role.
func (c *Counter) CountTurns(ts []turns.Turn) (*Stats, error) {
	s := &Stats{
		TurnsByRole:   map[turns.Role]int{},
		TokensByRole:  map[turns.Role]int{},
		ToolCallsByID: map[string]string{},
	}
	for _, t := range ts {
		n, err := c.Count(t.Content)
		if err != nil {
			return nil, err
		}
		s.Turns++
		s.TurnsByRole[t.Role]++
		s.TokensByRole[t.Role] += n
		s.TotalTokens += n
		if id := t.CallID(); id != "" {
			s.ToolCallsByID[id] = t.ToolName()
		}
	}
	return s, nil
}
