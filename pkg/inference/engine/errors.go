package engine

import "fmt"

// ProviderError reports a transport or decoding failure of a provider.
// The turn loop passes it to the caller unchanged.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
