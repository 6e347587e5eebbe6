// Package runtime is the composition root: it loads agent definitions, builds
// the registry, and wires the shared services (bus, human queue, session
// store, logger) into the Context passed to every capability invocation.
// Capabilities reach the rest of the system only through that Context; there
// are no ambient singletons.
package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/caravel-ai/caravel/agent"
	"github.com/caravel-ai/caravel/bus"
	"github.com/caravel-ai/caravel/core"
	"github.com/caravel-ai/caravel/human"
	"github.com/caravel-ai/caravel/loader"
	"github.com/caravel-ai/caravel/logging"
	"github.com/caravel-ai/caravel/model"
	"github.com/caravel-ai/caravel/session"
	"github.com/caravel-ai/caravel/session/sqlite"
)

// Options configures a Runtime. Any service left nil gets an in-memory
// default.
type Options struct {
	Bus      core.Bus
	Humans   core.HumanQueue
	Sessions core.SessionStore
	Logger   logging.Logger
	// DefaultModel backs agents loaded from definitions that do not name a
	// model of their own.
	DefaultModel model.Model
	// MaxIterations bounds tool-call rounds for loaded agents.
	MaxIterations int
}

// Runtime owns the registry and shared services for one process.
type Runtime struct {
	registry *core.Registry
	bus      core.Bus
	humans   core.HumanQueue
	sessions core.SessionStore
	logger   logging.Logger

	defaultModel  model.Model
	maxIterations int

	cancel context.CancelFunc
	base   context.Context
}

// New builds a Runtime with in-memory defaults for anything not overridden.
func New(optFns ...func(o *Options)) *Runtime {
	opts := Options{Logger: logging.NewDefaultSlogLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Bus == nil {
		opts.Bus = bus.New(func(o *bus.Options) { o.Logger = opts.Logger })
	}
	if opts.Humans == nil {
		opts.Humans = human.New(func(o *human.Options) {
			o.Bus = opts.Bus
			o.Logger = opts.Logger
		})
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore()
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = agent.DefaultMaxIterations
	}

	base, cancel := context.WithCancel(context.Background())
	return &Runtime{
		registry:      core.NewRegistry(),
		bus:           opts.Bus,
		humans:        opts.Humans,
		sessions:      opts.Sessions,
		logger:        opts.Logger,
		defaultModel:  opts.DefaultModel,
		maxIterations: opts.MaxIterations,
		base:          base,
		cancel:        cancel,
	}
}

// NewFromConfig builds a fully wired Runtime from environment configuration:
// provider adapter, optional SQLite persistence, and agents loaded from the
// configured directory.
func NewFromConfig(cfg *Config) (*Runtime, error) {
	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.LogLevel), "", false)

	llm, err := NewModel(cfg)
	if err != nil {
		return nil, err
	}

	var sessions core.SessionStore
	if cfg.SessionDB != "" {
		store, err := sqlite.Open(cfg.SessionDB)
		if err != nil {
			return nil, err
		}
		sessions = store
	} else {
		sessions = session.NewInMemoryStore()
	}

	rt := New(func(o *Options) {
		o.Logger = logger
		o.Sessions = sessions
		o.DefaultModel = llm
		o.MaxIterations = cfg.MaxToolIterations
		o.Bus = bus.New(func(bo *bus.Options) {
			bo.Capacity = cfg.BusCapacity
			bo.Logger = logger
		})
	})

	if cfg.AgentDir != "" {
		if err := rt.LoadAgents(cfg.AgentDir); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

// Register adds a capability (tool or agent) to the runtime's registry.
func (r *Runtime) Register(c core.Capability) error {
	return r.registry.Register(c)
}

// LoadAgents parses every definition under dir and registers one agent per
// document. A definition's model field selects its own provider adapter;
// definitions without one share the runtime's default model.
func (r *Runtime) LoadAgents(dir string) error {
	defs, err := loader.LoadDir(dir)
	if err != nil {
		return err
	}
	for _, def := range defs {
		llm, err := r.modelFor(def.Model)
		if err != nil {
			return fmt.Errorf("agent %q: %w", def.Name, err)
		}
		a := agent.New(def.Name, llm, func(o *agent.Options) {
			if def.Description != "" {
				o.Description = def.Description
			}
			o.Persona = def.Persona
			o.Capabilities = def.Capabilities
			o.MaxIterations = r.maxIterations
			o.Logger = r.logger
		})
		if err := r.Register(a); err != nil {
			return err
		}
		r.logger.Info("runtime.agent.loaded", "agent", def.Name, "path", def.Path)
	}
	return nil
}

// modelFor resolves an agent definition's model spec. An empty spec selects
// the runtime default; otherwise the spec must be "provider/name", matching
// the key format used for usage accounting.
func (r *Runtime) modelFor(spec string) (model.Model, error) {
	if spec == "" {
		if r.defaultModel == nil {
			return nil, fmt.Errorf("no default model configured")
		}
		return r.defaultModel, nil
	}
	provider, name, ok := strings.Cut(spec, "/")
	if !ok {
		return nil, fmt.Errorf("invalid model spec %q: want provider/name", spec)
	}
	return NewModel(&Config{Provider: provider, Model: name})
}

// Send delivers a human-level message to the named agent and returns its
// final text answer. The exchange is published on the bus in both directions.
// Which session the turn lands in is the agent's decision: its bound session
// if any, otherwise a fresh root.
func (r *Runtime) Send(ctx context.Context, agentName, message string) (string, error) {
	target, err := r.registry.Get(agentName)
	if err != nil {
		return "", err
	}
	if ctx == nil {
		ctx = r.base
	}

	r.bus.Publish(core.CallerHuman, agentName, map[string]any{
		"type":    "message",
		"content": message,
	}, "")

	cctx := core.NewContext(ctx, core.CallerHuman, "", r.registry, r.bus, r.humans, r.sessions, r.logger)
	result, err := target.Receive(cctx, map[string]any{"message": message})
	if err != nil {
		return "", err
	}

	text, _ := result.(string)
	r.bus.Publish(agentName, core.CallerHuman, map[string]any{
		"type":    "message",
		"content": text,
	}, "")
	return text, nil
}

// NewThread starts a fresh conversation thread for the named agent. If the
// agent already has a session, the new one is recorded as its continuation;
// otherwise a root is created. The agent is bound to the new session and its
// id is returned.
func (r *Runtime) NewThread(agentName, name string) (string, error) {
	c, err := r.registry.Get(agentName)
	if err != nil {
		return "", err
	}
	a, ok := c.(*agent.Agent)
	if !ok {
		return "", fmt.Errorf("capability %q is not an agent", agentName)
	}

	typ := core.ThreadRoot
	parentID, parentAgent := "", ""
	if prev := a.Session(); prev != "" {
		typ = core.ThreadContinuation
		parentID, parentAgent = prev, agentName
	}
	id, err := r.sessions.Create(agentName, parentID, parentAgent, typ, name)
	if err != nil {
		return "", err
	}
	a.SetSession(id)
	return id, nil
}

// Respond resolves a pending human request, unblocking the agent waiting on
// it. Safe to call from the transport thread.
func (r *Runtime) Respond(requestID, value string) bool {
	return r.humans.Respond(requestID, value)
}

// Registry exposes the capability catalog.
func (r *Runtime) Registry() *core.Registry { return r.registry }

// Bus exposes the message bus for subscription and diagnostics.
func (r *Runtime) Bus() core.Bus { return r.bus }

// Humans exposes the human queue for UI polling.
func (r *Runtime) Humans() core.HumanQueue { return r.humans }

// Sessions exposes the session store.
func (r *Runtime) Sessions() core.SessionStore { return r.sessions }

// Logger exposes the runtime logger.
func (r *Runtime) Logger() logging.Logger { return r.logger }

// Shutdown interrupts every blocked human wait and cancels the runtime's base
// context. In-flight turns observe the cancellation at their next blocking
// point.
func (r *Runtime) Shutdown() error {
	err := r.humans.Close()
	r.cancel()
	r.logger.Info("runtime.shutdown")
	return err
}
