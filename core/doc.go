// Package core defines the shared contracts of the Caravel runtime: the
// Capability interface implemented by both deterministic tools and LLM-backed
// agents, the Context value threaded through every capability invocation, the
// conversation Message model, and the service interfaces (Bus, HumanQueue,
// SessionStore) plus the concrete capability Registry.
//
// Everything an invoked capability may touch is reachable through its Context;
// capabilities never hold direct references to the runtime composition root.
package core
