package agent

import (
	"fmt"
	"slices"
	"sync"

	"github.com/caravel-ai/caravel/core"
	"github.com/caravel-ai/caravel/logging"
	"github.com/caravel-ai/caravel/model"
	"github.com/caravel-ai/caravel/tool"
)

// DefaultMaxIterations bounds the tool-call loop per turn. Exceeding it
// surfaces as a LoopLimitError, never a silent hang.
const DefaultMaxIterations = 8

// Status describes what an agent is doing right now, exposed for UIs.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusThinking    Status = "thinking"
	StatusCallingTool Status = "calling_tool"
)

// Options configures an Agent instance.
//
// Use functional options with New to override defaults.
type Options struct {
	// Description is exposed to models that may delegate to this agent.
	Description string
	// Persona is the free-text system prompt body.
	Persona string
	// Capabilities lists the names this agent may call, resolved through the
	// registry at request-build time. May include other agents' names.
	Capabilities []string
	// MaxIterations bounds tool-call rounds per turn.
	MaxIterations int
	// Logger for loop events.
	Logger logging.Logger
}

// Agent is an LLM-backed Capability. From a caller's perspective it behaves
// exactly like a tool: it accepts a message argument and returns text. Inside,
// Receive runs the full tool-calling loop against the configured model.
//
// An agent never processes two turns concurrently; turns are serialized on an
// internal mutex to preserve history ordering. Configuration (persona,
// capability list) may be edited live; edits take effect when the next model
// request is built.
type Agent struct {
	name string
	llm  model.Model

	turnMu sync.Mutex // serializes turns

	mu           sync.RWMutex // guards the mutable configuration below
	description  string
	persona      string
	capabilities []string
	status       Status
	sessionID    string

	maxIterations int
	universal     []core.Capability
	logger        logging.Logger
}

// New creates an agent with the given name backed by llm.
func New(name string, llm model.Model, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Description:   fmt.Sprintf("Delegate a task to the %s agent. Provide the full task as a message.", name),
		Persona:       fmt.Sprintf("You are %s, a helpful AI assistant.", name),
		MaxIterations: DefaultMaxIterations,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	a := &Agent{
		name:          name,
		llm:           llm,
		description:   opts.Description,
		persona:       opts.Persona,
		capabilities:  slices.Clone(opts.Capabilities),
		status:        StatusIdle,
		maxIterations: opts.MaxIterations,
		logger:        opts.Logger,
	}
	a.universal = []core.Capability{
		tool.NewThink(),
		tool.NewAskHuman(),
		a.newCreateCapability(),
		a.newAddCapability(),
		newListCapabilities(),
	}
	return a
}

// Name implements core.Capability.
func (a *Agent) Name() string { return a.name }

// Description implements core.Capability.
func (a *Agent) Description() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.description
}

// Parameters implements core.Capability. Every agent accepts a single message
// argument, which is what makes agents and tools interchangeable callees.
func (a *Agent) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "The message or task for this agent",
			},
		},
		"required": []string{"message"},
	}
}

// Status returns the agent's current activity.
func (a *Agent) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

func (a *Agent) setStatus(s Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

// Session returns the agent's current session id, empty before the first turn.
func (a *Agent) Session() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionID
}

// SetSession binds the agent to an existing session so the next human-level
// turn continues it, or to empty to force a fresh root session.
func (a *Agent) SetSession(id string) {
	a.mu.Lock()
	a.sessionID = id
	a.mu.Unlock()
}

// Persona returns the current system prompt body.
func (a *Agent) Persona() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.persona
}

// SetPersona replaces the system prompt body. The change applies when the
// next model request is built, never mid-request.
func (a *Agent) SetPersona(persona string) {
	a.mu.Lock()
	a.persona = persona
	a.mu.Unlock()
}

// Capabilities returns a snapshot of the declared capability names.
func (a *Agent) Capabilities() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.capabilities)
}

// AddCapability declares an additional capability name for this agent.
// Duplicates are ignored.
func (a *Agent) AddCapability(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if slices.Contains(a.capabilities, name) {
		return
	}
	a.capabilities = append(a.capabilities, name)
}

// RemoveCapability removes a declared capability name, reporting whether it
// was present.
func (a *Agent) RemoveCapability(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := slices.Index(a.capabilities, name)
	if i < 0 {
		return false
	}
	a.capabilities = slices.Delete(a.capabilities, i, i+1)
	return true
}

// Model returns the backing model, mainly for runtime introspection.
func (a *Agent) Model() model.Model { return a.llm }

var _ core.Capability = (*Agent)(nil)
