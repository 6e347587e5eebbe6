// Package model defines the normalized LLM wire shapes shared by all
// provider adapters: one request form (system text, ordered messages, tool
// schemas) and one response form (text plus zero or more tool calls plus
// usage counters). Provider adapters in the subpackages translate these to
// and from their vendor formats; transport failures surface uniformly as
// ProviderError.
package model
