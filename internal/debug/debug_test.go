package debug

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/beamline-dev/beamline/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCall records one remote call.
type fakeCall struct {
	Node     string
	Module   string
	Function string
	Args     []any
}

// fakeCaller is an in-memory rpc.Caller with per-function canned results.
type fakeCaller struct {
	mu      sync.Mutex
	calls   []fakeCall
	results map[string]json.RawMessage
	errs    map[string]error
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{
		results: make(map[string]json.RawMessage),
		errs:    make(map[string]error),
	}
}

func (f *fakeCaller) Call(node, module, function string, args []any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{Node: node, Module: module, Function: function, Args: args})
	f.mu.Unlock()

	if err, ok := f.errs[function]; ok {
		return nil, err
	}
	if result, ok := f.results[function]; ok {
		return result, nil
	}
	return json.RawMessage("null"), nil
}

func (f *fakeCaller) recorded() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeCall(nil), f.calls...)
}

func (f *fakeCaller) callsTo(function string) []fakeCall {
	var out []fakeCall
	for _, c := range f.recorded() {
		if c.Function == function {
			out = append(out, c)
		}
	}
	return out
}

// allReady reports every node as initialized.
type allReady struct{}

func (allReady) IsInitialized(string) bool { return true }

// noneReady reports no node as initialized.
type noneReady struct{}

func (noneReady) IsInitialized(string) bool { return false }

func TestCompileAndLoadPassesDiagnosticsThrough(t *testing.T) {
	caller := newFakeCaller()
	caller.results[fnCompileAndLoad] = json.RawMessage(`[{"line":12,"severity":"warning","message":"unused variable"}]`)
	c := NewController(caller, allReady{})

	result, err := c.CompileAndLoad("acme", "/src/acme/src/acme_srv.erl")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"line":12,"severity":"warning","message":"unused variable"}]`, string(result))

	calls := caller.callsTo(fnCompileAndLoad)
	require.Len(t, calls, 1)
	assert.Equal(t, "acme", calls[0].Node)
	assert.Equal(t, BackendModule, calls[0].Module)
	assert.Equal(t, []any{"/src/acme/src/acme_srv.erl"}, calls[0].Args)
}

func TestInitRequiredOperations(t *testing.T) {
	caller := newFakeCaller()
	c := NewController(caller, noneReady{})

	_, err := c.CompileAndLoad("acme", "f.erl")
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = c.FunctionInfo("acme", "m", "f", 2)
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = c.WhoCalls("acme", "m", "f", 2)
	assert.ErrorIs(t, err, ErrNotInitialized)

	// Nothing must have reached the wire.
	assert.Empty(t, caller.recorded())

	// Operations not marked init-required work against any node.
	_, err = c.ModuleInfo("acme", "m", "basic")
	assert.NoError(t, err)
	assert.NoError(t, c.Step("acme"))
}

func TestTransportFailureIsUniform(t *testing.T) {
	caller := newFakeCaller()
	for _, fn := range []string{
		fnCompileAndLoad, fnFunctionInfo, fnWhoCalls, fnModuleInfo,
		fnInterpretModules, fnToggleBreakpoint, fnStep, fnContinue,
	} {
		caller.errs[fn] = rpc.ErrNodeDown
	}
	c := NewController(caller, allReady{})

	_, err := c.CompileAndLoad("acme", "f.erl")
	assert.ErrorIs(t, err, rpc.ErrNodeDown)
	_, err = c.FunctionInfo("acme", "m", "f", 0)
	assert.ErrorIs(t, err, rpc.ErrNodeDown)
	_, err = c.WhoCalls("acme", "m", "f", 0)
	assert.ErrorIs(t, err, rpc.ErrNodeDown)
	_, err = c.ModuleInfo("acme", "m", "basic")
	assert.ErrorIs(t, err, rpc.ErrNodeDown)
	_, err = c.InterpretModules("acme", []string{"m"})
	assert.ErrorIs(t, err, rpc.ErrNodeDown)
	_, err = c.ToggleBreakpoint("acme", "m", 10)
	assert.ErrorIs(t, err, rpc.ErrNodeDown)
	assert.ErrorIs(t, c.Step("acme"), rpc.ErrNodeDown)
	assert.ErrorIs(t, c.Continue("acme"), rpc.ErrNodeDown)
}

func TestInterpretModulesReturnsSubset(t *testing.T) {
	caller := newFakeCaller()
	caller.results[fnInterpretModules] = json.RawMessage(`["acme_srv"]`)
	c := NewController(caller, nil)

	interpreted, err := c.InterpretModules("acme", []string{"acme_srv", "acme_sup"})
	require.NoError(t, err)
	assert.Equal(t, []string{"acme_srv"}, interpreted)

	calls := caller.callsTo(fnInterpretModules)
	require.Len(t, calls, 1)
	assert.Equal(t, []any{[]string{"acme_srv", "acme_sup"}}, calls[0].Args)
}

func TestToggleBreakpoint(t *testing.T) {
	caller := newFakeCaller()
	caller.results[fnToggleBreakpoint] = json.RawMessage(`{"module":"acme_srv","line":42,"set":true}`)
	c := NewController(caller, nil)

	bp, err := c.ToggleBreakpoint("acme", "acme_srv", 42)
	require.NoError(t, err)
	assert.Equal(t, &Breakpoint{Module: "acme_srv", Line: 42, Set: true}, bp)
}

func TestWhoCallsNegativeResultIsData(t *testing.T) {
	caller := newFakeCaller()
	caller.results[fnWhoCalls] = json.RawMessage(`[]`)
	c := NewController(caller, allReady{})

	result, err := c.WhoCalls("acme", "m", "f", 1)
	require.NoError(t, err, "an empty call-site list is data, not an error")
	assert.Equal(t, "[]", string(result))
}

func TestWaitForDebuggerZeroAttempts(t *testing.T) {
	caller := newFakeCaller()
	c := NewController(caller, nil)

	err := c.WaitForDebugger("acme", 0)
	assert.ErrorIs(t, err, ErrAttemptsExceeded)
	assert.Empty(t, caller.recorded(), "zero attempts must not poll at all")
}

func TestWaitForDebuggerExhaustsAttempts(t *testing.T) {
	caller := newFakeCaller()
	caller.errs[fnDebuggerRegistered] = rpc.ErrNodeDown
	c := NewController(caller, nil)
	c.PollInterval = time.Millisecond

	err := c.WaitForDebugger("acme", 3)
	assert.ErrorIs(t, err, ErrAttemptsExceeded)
	assert.Len(t, caller.callsTo(fnDebuggerRegistered), 3, "never retries past maxAttempts")
	assert.Empty(t, caller.callsTo(fnContinue))
}

func TestWaitForDebuggerIssuesContinueOnSuccess(t *testing.T) {
	caller := newFakeCaller()
	caller.results[fnDebuggerRegistered] = json.RawMessage(`true`)
	c := NewController(caller, nil)
	c.PollInterval = time.Millisecond

	require.NoError(t, c.WaitForDebugger("acme", 5))
	assert.Len(t, caller.callsTo(fnDebuggerRegistered), 1)
	assert.Len(t, caller.callsTo(fnContinue), 1, "success immediately issues continue")
}

func TestWaitForDebuggerTransportFailureKeepsPolling(t *testing.T) {
	// Before registration, transport failure and "no debug service" are
	// indistinguishable; both just mean "not yet".
	var mu sync.Mutex
	attempts := 0
	caller := &pollingCaller{fn: func() (json.RawMessage, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return nil, rpc.ErrNodeDown
		}
		return json.RawMessage(`true`), nil
	}}
	c := NewController(caller, nil)
	c.PollInterval = time.Millisecond

	require.NoError(t, c.WaitForDebugger("acme", 10))
}

// pollingCaller routes debugger_registered probes to fn and accepts
// everything else.
type pollingCaller struct {
	fn func() (json.RawMessage, error)
}

func (p *pollingCaller) Call(node, module, function string, args []any) (json.RawMessage, error) {
	if function == fnDebuggerRegistered {
		return p.fn()
	}
	return json.RawMessage("null"), nil
}

func TestWaitForDebuggerFailureIsNotNodeDown(t *testing.T) {
	caller := newFakeCaller()
	caller.errs[fnDebuggerRegistered] = rpc.ErrNodeDown
	c := NewController(caller, nil)
	c.PollInterval = time.Millisecond

	err := c.WaitForDebugger("acme", 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, rpc.ErrNodeDown,
		"attempts exceeded is an expected outcome, not a transport failure")
}
