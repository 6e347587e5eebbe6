package core

import (
	"context"

	"github.com/caravel-ai/caravel/logging"
)

// CallerHuman is the caller name used for top-level messages entering the
// system from outside (UI, transport). Any other caller name identifies a
// capability, which makes delegation detectable by the receiving agent.
const CallerHuman = "human"

// Capability is the uniform callable contract shared by deterministic tools
// and LLM-backed agents. From a model's perspective an agent and a tool are
// indistinguishable entries in the same capability list, which is what makes
// unrestricted delegation possible.
//
// Implementations must be safe for concurrent Receive calls, or serialize
// internally the way Agent does.
type Capability interface {
	// Name returns the unique identifier used for registry resolution and
	// model-facing tool declarations (snake_case recommended for tools).
	Name() string

	// Description is exposed to models so they can decide when to call.
	Description() string

	// Parameters returns a JSON-Schema-like map describing accepted arguments.
	Parameters() map[string]any

	// Receive processes one invocation. Errors are reported to the calling
	// loop, which converts them into tool-result text rather than aborting.
	Receive(ctx *Context, args map[string]any) (any, error)
}

// Context carries the per-invocation execution scope passed into every
// capability call: the ambient cancellation context, the identity of the
// calling capability, the current session, and handles to the shared
// services. It is the only channel through which a capability reaches the
// rest of the system.
type Context struct {
	Context   context.Context
	Caller    string // name of the invoking capability, or CallerHuman
	SessionID string
	Registry  *Registry
	Bus       Bus
	Humans    HumanQueue
	Sessions  SessionStore
	Logger    logging.Logger
}

// NewContext constructs a Context guaranteeing a usable cancellation context
// and a non-nil logger.
func NewContext(
	ctx context.Context,
	caller, sessionID string,
	registry *Registry,
	bus Bus,
	humans HumanQueue,
	sessions SessionStore,
	logger logging.Logger,
) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Context{
		Context:   ctx,
		Caller:    caller,
		SessionID: sessionID,
		Registry:  registry,
		Bus:       bus,
		Humans:    humans,
		Sessions:  sessions,
		Logger:    logger,
	}
}

// Child derives a context for a nested invocation, replacing caller identity
// and session while sharing all service handles.
func (c *Context) Child(caller, sessionID string) *Context {
	child := *c
	child.Caller = caller
	child.SessionID = sessionID
	return &child
}

// Done mirrors context.Context's Done.
func (c *Context) Done() <-chan struct{} { return c.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (c *Context) Err() error { return c.Context.Err() }

// LogDebug logs a debug message via the context logger.
func (c *Context) LogDebug(msg string, args ...any) { c.Logger.Debug(msg, args...) }

// LogInfo logs an info message via the context logger.
func (c *Context) LogInfo(msg string, args ...any) { c.Logger.Info(msg, args...) }

// LogWarn logs a warning message via the context logger.
func (c *Context) LogWarn(msg string, args ...any) { c.Logger.Warn(msg, args...) }

// LogError logs an error message via the context logger.
func (c *Context) LogError(msg string, args ...any) { c.Logger.Error(msg, args...) }
