// Package agent implements the LLM-backed Capability: persona, declared
// capability list, per-turn status, and the tool-calling execution loop that
// drives a model turn to completion including delegation to other agents.
package agent
