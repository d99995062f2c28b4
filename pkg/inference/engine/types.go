package engine

import (
	"github.com/go-go-golems/turnloop/pkg/inference/tools"
	"github.com/go-go-golems/turnloop/pkg/turns"
)

// Request is everything a provider sees: the agent instructions, the full
// transcript so far and the tools it may call.
type Request struct {
	Instructions string
	Turns        []turns.Turn
	Tools        []tools.Definition
	ToolChoice   tools.ToolChoice
}

// ResponseKind tells whether a response ends the turn or asks for tools.
type ResponseKind string

const (
	ResponseFinal     ResponseKind = "final"
	ResponseToolCalls ResponseKind = "tool_calls"
)

// Response is a provider answer: either final assistant content or a set of tool calls.
type Response struct {
	Kind      ResponseKind
	Author    string
	Content   string
	ToolCalls []turns.ToolCallRequest
}

// NewFinalResponse returns a final response authored by author.
func NewFinalResponse(content string, author string) *Response {
	return &Response{Kind: ResponseFinal, Content: content, Author: author}
}

// NewToolCallsResponse returns a response requesting calls.
func NewToolCallsResponse(calls ...turns.ToolCallRequest) *Response {
	return &Response{Kind: ResponseToolCalls, ToolCalls: calls}
}

// Chunk is one fragment of a streamed response. A chunk may carry text, an
// author, tool calls, or any combination of them.
type Chunk struct {
	Author    string
	Delta     string
	ToolCalls []turns.ToolCallRequest
}
