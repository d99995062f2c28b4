package engine

import (
	"strings"

	"github.com/go-go-golems/turnloop/pkg/turns"
)

// Accumulator folds streamed chunks into the response they represent.
//
// Deltas are concatenated in arrival order. The author is taken from the first
// chunk that names one. Any tool call turns the result into a tool_calls response.
type Accumulator struct {
	content   strings.Builder
	author    string
	toolCalls []turns.ToolCallRequest
	chunks    int
}

// Add folds c into the accumulated response.
func (a *Accumulator) Add(c Chunk) {
	a.chunks++
	if a.author == "" && c.Author != "" {
		a.author = c.Author
	}
	a.content.WriteString(c.Delta)
	a.toolCalls = append(a.toolCalls, c.ToolCalls...)
}

// Content returns the text accumulated so far.
func (a *Accumulator) Content() string {
	return a.content.String()
}

// Author returns the first author seen, if any.
func (a *Accumulator) Author() string {
	return a.author
}

// Chunks returns the number of chunks added.
func (a *Accumulator) Chunks() int {
	return a.chunks
}

// Response returns the terminal response of the stream.
func (a *Accumulator) Response() *Response {
	if len(a.toolCalls) > 0 {
		return &Response{
			Kind:      ResponseToolCalls,
			Author:    a.author,
			Content:   a.content.String(),
			ToolCalls: append([]turns.ToolCallRequest(nil), a.toolCalls...),
		}
	}
	return NewFinalResponse(a.content.String(), a.author)
}
