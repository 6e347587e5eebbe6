// Package caravel provides a high-level façade over the runtime and service
// abstractions (registry, bus, human queue, session store, logging) enabling
// rapid construction of delegating multi-agent systems. Most applications
// interact with this package by:
//  1. Creating a Caravel via New() (optionally overriding default in-memory services)
//  2. Registering tools and agents, or loading agent definitions from a directory
//  3. Sending human-level messages with Send and resolving ask_human requests
//     with Respond
//
// The façade delegates orchestration to runtime.Runtime while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply the SQLite session
// store and a structured logger.
package caravel

import (
	"context"

	"github.com/caravel-ai/caravel/core"
	"github.com/caravel-ai/caravel/logging"
	"github.com/caravel-ai/caravel/model"
	"github.com/caravel-ai/caravel/runtime"
)

// Options configures a Caravel instance.
type Options struct {
	// Stores and services (default to in-memory implementations if not provided)
	Bus      core.Bus
	Humans   core.HumanQueue
	Sessions core.SessionStore

	// DefaultModel backs agents that do not carry their own model.
	DefaultModel model.Model

	// MaxToolIterations bounds tool-call rounds per agent turn.
	MaxToolIterations int

	// Logger (defaults to slog if nil)
	Logger logging.Logger
}

// Caravel is the high-level façade aggregating the underlying runtime and
// services.
type Caravel struct {
	rt *runtime.Runtime
}

// New creates a Caravel instance with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Caravel {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	rt := runtime.New(func(o *runtime.Options) {
		o.Bus = opts.Bus
		o.Humans = opts.Humans
		o.Sessions = opts.Sessions
		o.Logger = opts.Logger
		o.DefaultModel = opts.DefaultModel
		o.MaxIterations = opts.MaxToolIterations
	})
	return &Caravel{rt: rt}
}

// NewFromEnv builds a Caravel entirely from environment configuration.
func NewFromEnv() (*Caravel, error) {
	cfg, err := runtime.LoadConfig()
	if err != nil {
		return nil, err
	}
	rt, err := runtime.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Caravel{rt: rt}, nil
}

// Register adds a tool or agent to the registry.
func (c *Caravel) Register(cap core.Capability) error { return c.rt.Register(cap) }

// LoadAgents registers one agent per definition document under dir.
func (c *Caravel) LoadAgents(dir string) error { return c.rt.LoadAgents(dir) }

// Send delivers a human-level message to the named agent and returns its
// final answer.
func (c *Caravel) Send(ctx context.Context, agent, message string) (string, error) {
	return c.rt.Send(ctx, agent, message)
}

// NewThread starts a fresh conversation thread for the named agent.
func (c *Caravel) NewThread(agent, name string) (string, error) {
	return c.rt.NewThread(agent, name)
}

// Respond resolves a pending human request by id.
func (c *Caravel) Respond(requestID, value string) bool { return c.rt.Respond(requestID, value) }

// Runtime exposes the underlying runtime for advanced wiring.
func (c *Caravel) Runtime() *runtime.Runtime { return c.rt }

// Bus exposes the message bus.
func (c *Caravel) Bus() core.Bus { return c.rt.Bus() }

// Humans exposes the human queue.
func (c *Caravel) Humans() core.HumanQueue { return c.rt.Humans() }

// Sessions exposes the session store.
func (c *Caravel) Sessions() core.SessionStore { return c.rt.Sessions() }

// Shutdown interrupts blocked human waits and releases runtime resources.
func (c *Caravel) Shutdown() error { return c.rt.Shutdown() }
