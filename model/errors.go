package model

import "fmt"

// ProviderError is the single failure kind surfaced for LLM transport, auth
// and rate-limit problems across all adapters. It carries the HTTP status and
// raw body so the caller can decide on retry policy; the core never retries.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

// Unwrap exposes the underlying transport error for errors.Is/As chains.
func (e *ProviderError) Unwrap() error { return e.Err }
