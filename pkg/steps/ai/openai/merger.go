package openai

import (
	"sort"

	go_openai "github.com/sashabaranov/go-openai"
)

// ToolCallMerger reassembles tool calls whose name and arguments arrive
// split over several stream deltas, keyed by the delta index.
type ToolCallMerger struct {
	toolCalls map[int]go_openai.ToolCall
}

func NewToolCallMerger() *ToolCallMerger {
	return &ToolCallMerger{
		toolCalls: make(map[int]go_openai.ToolCall),
	}
}

func (tcm *ToolCallMerger) AddToolCalls(toolCalls []go_openai.ToolCall) {
	for _, call := range toolCalls {
		index := 0
		if call.Index != nil {
			index = *call.Index
		}
		if existing, found := tcm.toolCalls[index]; found {
			if existing.ID == "" {
				existing.ID = call.ID
			}
			existing.Function.Name += call.Function.Name
			existing.Function.Arguments += call.Function.Arguments
			tcm.toolCalls[index] = existing
		} else {
			tcm.toolCalls[index] = call
		}
	}
}

// GetToolCalls returns the merged calls ordered by index.
func (tcm *ToolCallMerger) GetToolCalls() []go_openai.ToolCall {
	indices := make([]int, 0, len(tcm.toolCalls))
	for i := range tcm.toolCalls {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	result := make([]go_openai.ToolCall, 0, len(indices))
	for _, i := range indices {
		result = append(result, tcm.toolCalls[i])
	}
	return result
}

func (tcm *ToolCallMerger) Len() int {
	return len(tcm.toolCalls)
}
