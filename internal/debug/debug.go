// Package debug drives the remote debug and introspection protocol against
// a backend node: compile and load, code inspection, interpreted-module
// management, breakpoints, stepping, and tracing. Every operation collapses
// transport failure to rpc.ErrNodeDown and passes remote results through
// unchanged: a remote "not found" is data, not an error.
package debug

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/beamline-dev/beamline/internal/rpc"
)

// BackendModule is the remote module exposing the debug surface. The
// function names below are the wire contract with the backend; changing
// them breaks interoperability.
const BackendModule = "beamline_dbg"

const (
	fnCompileAndLoad     = "compile_and_load"
	fnFunctionInfo       = "function_info"
	fnWhoCalls           = "who_calls"
	fnModuleInfo         = "module_info"
	fnInterpretModules   = "interpret_modules"
	fnToggleBreakpoint   = "toggle_breakpoint"
	fnStep               = "step"
	fnContinue           = "continue"
	fnTrace              = "trace"
	fnDebuggerRegistered = "debugger_registered"
)

var (
	// ErrNotInitialized is returned by init-required operations when the
	// target node has not completed its readiness handshake.
	ErrNotInitialized = errors.New("node not initialized")
	// ErrAttemptsExceeded is the bounded negative outcome of
	// WaitForDebugger: not a bug, the debugger simply never registered
	// within the allotted attempts.
	ErrAttemptsExceeded = errors.New("debugger did not register: attempts exceeded")
)

// InitQuerier answers whether a node has completed initialization.
type InitQuerier interface {
	IsInitialized(identity string) bool
}

// Breakpoint is the state of a breakpoint at (module, line).
type Breakpoint struct {
	Module string `json:"module"`
	Line   int    `json:"line"`
	Set    bool   `json:"set"`
}

// TraceSpec names the function to trace.
type TraceSpec struct {
	Module   string `json:"module"`
	Function string `json:"function"`
	Arity    int    `json:"arity"`
}

// Controller exposes the debug control operations against named nodes.
type Controller struct {
	caller rpc.Caller
	init   InitQuerier

	// PollInterval is the WaitForDebugger cadence. One second, per the
	// readiness handshake contract.
	PollInterval time.Duration
}

// NewController creates a controller over the given RPC caller. init may
// be nil for callers that manage readiness themselves; init-required
// operations then skip the initialization check.
func NewController(caller rpc.Caller, init InitQuerier) *Controller {
	return &Controller{
		caller:       caller,
		init:         init,
		PollInterval: time.Second,
	}
}

// requireInit guards the operations that need a fully initialized node.
func (c *Controller) requireInit(node string) error {
	if c.init != nil && !c.init.IsInitialized(node) {
		return fmt.Errorf("%w: %s", ErrNotInitialized, node)
	}
	return nil
}

// CompileAndLoad remote-compiles the file and, on success, loads it.
// Returns the compiler's diagnostic list verbatim. Init-required.
func (c *Controller) CompileAndLoad(node, filename string) (json.RawMessage, error) {
	if err := c.requireInit(node); err != nil {
		return nil, err
	}
	return c.caller.Call(node, BackendModule, fnCompileAndLoad, []any{filename})
}

// FunctionInfo returns structured metadata about a function. Init-required.
func (c *Controller) FunctionInfo(node, module, function string, arity int) (json.RawMessage, error) {
	if err := c.requireInit(node); err != nil {
		return nil, err
	}
	return c.caller.Call(node, BackendModule, fnFunctionInfo, []any{module, function, arity})
}

// WhoCalls returns the call sites referencing a function. Init-required.
func (c *Controller) WhoCalls(node, module, function string, arity int) (json.RawMessage, error) {
	if err := c.requireInit(node); err != nil {
		return nil, err
	}
	return c.caller.Call(node, BackendModule, fnWhoCalls, []any{module, function, arity})
}

// ModuleInfo returns structured metadata about a module at the requested
// detail level.
func (c *Controller) ModuleInfo(node, module, level string) (json.RawMessage, error) {
	return c.caller.Call(node, BackendModule, fnModuleInfo, []any{module, level})
}

// InterpretModules marks the given modules for interpreted
// (breakpoint-capable) execution and returns the subset actually
// interpreted.
func (c *Controller) InterpretModules(node string, modules []string) ([]string, error) {
	result, err := c.caller.Call(node, BackendModule, fnInterpretModules, []any{modules})
	if err != nil {
		return nil, err
	}
	var interpreted []string
	if err := json.Unmarshal(result, &interpreted); err != nil {
		return nil, fmt.Errorf("unexpected interpret_modules result %s: %w", result, err)
	}
	return interpreted, nil
}

// ToggleBreakpoint flips breakpoint state at (module, line) and returns
// the new state and location.
func (c *Controller) ToggleBreakpoint(node, module string, line int) (*Breakpoint, error) {
	result, err := c.caller.Call(node, BackendModule, fnToggleBreakpoint, []any{module, line})
	if err != nil {
		return nil, err
	}
	var bp Breakpoint
	if err := json.Unmarshal(result, &bp); err != nil {
		return nil, fmt.Errorf("unexpected toggle_breakpoint result %s: %w", result, err)
	}
	return &bp, nil
}

// Step advances execution in the remote debug session.
func (c *Controller) Step(node string) error {
	_, err := c.caller.Call(node, BackendModule, fnStep, nil)
	return err
}

// Continue resumes execution in the remote debug session.
func (c *Controller) Continue(node string) error {
	_, err := c.caller.Call(node, BackendModule, fnContinue, nil)
	return err
}

// WaitForDebugger polls once per PollInterval, up to maxAttempts times,
// for the remote debug service to register itself, and issues Continue as
// soon as it has. maxAttempts of zero fails immediately without polling.
// Exhausting the attempts returns ErrAttemptsExceeded; it never retries
// past the bound.
func (c *Controller) WaitForDebugger(node string, maxAttempts int) error {
	for attempt := maxAttempts; attempt > 0; attempt-- {
		if c.debuggerRegistered(node) {
			return c.Continue(node)
		}
		log.Printf("waiting for debugger on %s (%d attempts left)", node, attempt)
		time.Sleep(c.PollInterval)
	}
	return ErrAttemptsExceeded
}

// debuggerRegistered probes for the remote debug service. Transport
// failure counts as "not registered yet": before registration the two are
// indistinguishable, which is the reason this gate exists.
func (c *Controller) debuggerRegistered(node string) bool {
	result, err := c.caller.Call(node, BackendModule, fnDebuggerRegistered, nil)
	if err != nil {
		return false
	}
	var registered bool
	if err := json.Unmarshal(result, &registered); err != nil {
		return false
	}
	return registered
}
