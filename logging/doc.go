// Package logging provides a small abstraction over slog so the rest of the
// runtime depends only on the minimal Logger interface while callers plug in
// any structured logger. A richer CaravelLogger adds contextual helpers
// (component, session) and domain logging for tool and model calls.
package logging
