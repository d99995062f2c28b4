package toolloop

// DefaultMaxToolRounds bounds the number of completion requests in one turn.
const DefaultMaxToolRounds = 8

// LoopConfig configures the orchestration loop of a turn.
type LoopConfig struct {
	// MaxToolRounds is the maximum number of completion requests per turn.
	MaxToolRounds int `json:"max_tool_rounds" yaml:"max_tool_rounds"`
}

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{MaxToolRounds: DefaultMaxToolRounds}
}

func (c LoopConfig) WithMaxToolRounds(n int) LoopConfig {
	c.MaxToolRounds = n
	return c
}

func (c LoopConfig) maxRounds() int {
	if c.MaxToolRounds <= 0 {
		return DefaultMaxToolRounds
	}
	return c.MaxToolRounds
}
