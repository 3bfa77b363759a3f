package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/beamline-dev/beamline/internal/debug"
	"github.com/beamline-dev/beamline/internal/node"
	"github.com/beamline-dev/beamline/internal/project"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CompileInput defines input for the compile tool.
type CompileInput struct {
	File    string `json:"file" jsonschema:"Source file to compile and load on its project's node"`
	Project string `json:"project,omitempty" jsonschema:"Project name (resolved from file if empty)"`
}

// CompileOutput defines output for compile.
type CompileOutput struct {
	Node        string          `json:"node"`
	Diagnostics json.RawMessage `json:"diagnostics"`
}

// FunctionQueryInput defines input for function_info and who_calls.
type FunctionQueryInput struct {
	Project  string `json:"project,omitempty" jsonschema:"Project name"`
	File     string `json:"file,omitempty" jsonschema:"A file path; the owning project is resolved from it"`
	Module   string `json:"module" jsonschema:"Module name"`
	Function string `json:"function" jsonschema:"Function name"`
	Arity    int    `json:"arity" jsonschema:"Function arity"`
}

// QueryOutput carries a remote query result verbatim.
type QueryOutput struct {
	Node   string          `json:"node"`
	Result json.RawMessage `json:"result"`
}

// ModuleInfoInput defines input for the module_info tool.
type ModuleInfoInput struct {
	Project string `json:"project,omitempty" jsonschema:"Project name"`
	File    string `json:"file,omitempty" jsonschema:"A file path; the owning project is resolved from it"`
	Module  string `json:"module" jsonschema:"Module name"`
	Level   string `json:"level,omitempty" jsonschema:"Detail level: basic (default) or detailed"`
}

// InterpretInput defines input for the interpret tool.
type InterpretInput struct {
	Project string   `json:"project,omitempty" jsonschema:"Project name"`
	File    string   `json:"file,omitempty" jsonschema:"A file path; the owning project is resolved from it"`
	Modules []string `json:"modules" jsonschema:"Modules to mark for interpreted execution"`
}

// InterpretOutput defines output for interpret.
type InterpretOutput struct {
	Node        string   `json:"node"`
	Interpreted []string `json:"interpreted"`
}

// BreakpointInput defines input for the breakpoint tool.
type BreakpointInput struct {
	Project string `json:"project,omitempty" jsonschema:"Project name"`
	File    string `json:"file,omitempty" jsonschema:"A file path; the owning project is resolved from it"`
	Module  string `json:"module" jsonschema:"Module name"`
	Line    int    `json:"line" jsonschema:"Line number"`
}

// BreakpointOutput defines output for breakpoint.
type BreakpointOutput struct {
	Node   string `json:"node"`
	Module string `json:"module"`
	Line   int    `json:"line"`
	Set    bool   `json:"set"`
}

// StepInput defines input for the step and continue tools.
type StepInput struct {
	Project string `json:"project,omitempty" jsonschema:"Project name"`
	File    string `json:"file,omitempty" jsonschema:"A file path; the owning project is resolved from it"`
}

// StepOutput defines output for step and continue.
type StepOutput struct {
	Node    string `json:"node"`
	Success bool   `json:"success"`
}

// TraceInput defines input for the trace tool.
type TraceInput struct {
	Project  string         `json:"project,omitempty" jsonschema:"Project name"`
	File     string         `json:"file,omitempty" jsonschema:"A file path; the owning project is resolved from it"`
	Module   string         `json:"module" jsonschema:"Module to trace"`
	Function string         `json:"function" jsonschema:"Function to trace"`
	Arity    int            `json:"arity" jsonschema:"Function arity"`
	Options  map[string]any `json:"options,omitempty" jsonschema:"Trace options passed to the node"`
}

// WaitDebuggerInput defines input for the wait_debugger tool.
type WaitDebuggerInput struct {
	Project     string `json:"project,omitempty" jsonschema:"Project name"`
	File        string `json:"file,omitempty" jsonschema:"A file path; the owning project is resolved from it"`
	MaxAttempts int    `json:"max_attempts" jsonschema:"Polling attempts, one per second; zero fails immediately"`
}

// RegisterDebugTools adds remote debug control MCP tools to the server.
func RegisterDebugTools(server *mcp.Server, reg *project.Registry, ctl *debug.Controller) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "compile",
		Description: `Compile a source file on its project's node and load it on success.
Returns the compiler diagnostics either way.
Example: compile {file: "/src/acme/src/acme_srv.erl"}`,
	}, makeCompileHandler(reg, ctl))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "function_info",
		Description: "Look up metadata for module:function/arity on the project's node.",
	}, makeFunctionQueryHandler(reg, ctl.FunctionInfo))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "who_calls",
		Description: "List the call sites of module:function/arity. An empty list means no callers were found.",
	}, makeFunctionQueryHandler(reg, ctl.WhoCalls))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "module_info",
		Description: "Look up module metadata at the requested detail level.",
	}, makeModuleInfoHandler(reg, ctl))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "interpret",
		Description: "Mark modules for interpreted (breakpoint-capable) execution. Returns the modules actually interpreted.",
	}, makeInterpretHandler(reg, ctl))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "breakpoint",
		Description: "Toggle a breakpoint at module:line and return the resulting state.",
	}, makeBreakpointHandler(reg, ctl))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "step",
		Description: "Advance execution in the node's debug session.",
	}, makeStepHandler(reg, ctl.Step))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "continue",
		Description: "Resume execution in the node's debug session.",
	}, makeStepHandler(reg, ctl.Continue))

	mcp.AddTool(server, &mcp.Tool{
		Name: "trace",
		Description: `Trace calls to module:function/arity on the project's node.
Blocks until the trace session ends; the result reports what the tracer matched.`,
	}, makeTraceHandler(reg, ctl))

	mcp.AddTool(server, &mcp.Tool{
		Name: "wait_debugger",
		Description: `Wait for a debugger to register on the project's node, polling once
per second up to max_attempts, then resume execution.`,
	}, makeWaitDebuggerHandler(reg, ctl))
}

func makeCompileHandler(reg *project.Registry, ctl *debug.Controller) func(context.Context, *mcp.CallToolRequest, CompileInput) (*mcp.CallToolResult, CompileOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CompileInput) (*mcp.CallToolResult, CompileOutput, error) {
		if input.File == "" {
			return errorResult("file required"), CompileOutput{}, nil
		}
		p, result := resolveProject(reg, input.Project, input.File)
		if result != nil {
			return result, CompileOutput{}, nil
		}

		identity := node.Identity(p)
		diags, err := ctl.CompileAndLoad(identity, input.File)
		if err != nil {
			return errorResult(fmt.Sprintf("compile on %s failed: %v", identity, err)), CompileOutput{}, nil
		}
		return nil, CompileOutput{Node: identity, Diagnostics: diags}, nil
	}
}

func makeFunctionQueryHandler(reg *project.Registry, query func(node, module, function string, arity int) (json.RawMessage, error)) func(context.Context, *mcp.CallToolRequest, FunctionQueryInput) (*mcp.CallToolResult, QueryOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input FunctionQueryInput) (*mcp.CallToolResult, QueryOutput, error) {
		if input.Module == "" || input.Function == "" {
			return errorResult("module and function required"), QueryOutput{}, nil
		}
		p, result := resolveProject(reg, input.Project, input.File)
		if result != nil {
			return result, QueryOutput{}, nil
		}

		identity := node.Identity(p)
		raw, err := query(identity, input.Module, input.Function, input.Arity)
		if err != nil {
			return errorResult(fmt.Sprintf("query on %s failed: %v", identity, err)), QueryOutput{}, nil
		}
		return nil, QueryOutput{Node: identity, Result: raw}, nil
	}
}

func makeModuleInfoHandler(reg *project.Registry, ctl *debug.Controller) func(context.Context, *mcp.CallToolRequest, ModuleInfoInput) (*mcp.CallToolResult, QueryOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ModuleInfoInput) (*mcp.CallToolResult, QueryOutput, error) {
		if input.Module == "" {
			return errorResult("module required"), QueryOutput{}, nil
		}
		p, result := resolveProject(reg, input.Project, input.File)
		if result != nil {
			return result, QueryOutput{}, nil
		}

		level := input.Level
		if level == "" {
			level = "basic"
		}

		identity := node.Identity(p)
		raw, err := ctl.ModuleInfo(identity, input.Module, level)
		if err != nil {
			return errorResult(fmt.Sprintf("module_info on %s failed: %v", identity, err)), QueryOutput{}, nil
		}
		return nil, QueryOutput{Node: identity, Result: raw}, nil
	}
}

func makeInterpretHandler(reg *project.Registry, ctl *debug.Controller) func(context.Context, *mcp.CallToolRequest, InterpretInput) (*mcp.CallToolResult, InterpretOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input InterpretInput) (*mcp.CallToolResult, InterpretOutput, error) {
		if len(input.Modules) == 0 {
			return errorResult("modules required"), InterpretOutput{}, nil
		}
		p, result := resolveProject(reg, input.Project, input.File)
		if result != nil {
			return result, InterpretOutput{}, nil
		}

		identity := node.Identity(p)
		interpreted, err := ctl.InterpretModules(identity, input.Modules)
		if err != nil {
			return errorResult(fmt.Sprintf("interpret on %s failed: %v", identity, err)), InterpretOutput{}, nil
		}
		return nil, InterpretOutput{Node: identity, Interpreted: interpreted}, nil
	}
}

func makeBreakpointHandler(reg *project.Registry, ctl *debug.Controller) func(context.Context, *mcp.CallToolRequest, BreakpointInput) (*mcp.CallToolResult, BreakpointOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input BreakpointInput) (*mcp.CallToolResult, BreakpointOutput, error) {
		if input.Module == "" || input.Line <= 0 {
			return errorResult("module and a positive line required"), BreakpointOutput{}, nil
		}
		p, result := resolveProject(reg, input.Project, input.File)
		if result != nil {
			return result, BreakpointOutput{}, nil
		}

		identity := node.Identity(p)
		bp, err := ctl.ToggleBreakpoint(identity, input.Module, input.Line)
		if err != nil {
			return errorResult(fmt.Sprintf("breakpoint on %s failed: %v", identity, err)), BreakpointOutput{}, nil
		}
		return nil, BreakpointOutput{Node: identity, Module: bp.Module, Line: bp.Line, Set: bp.Set}, nil
	}
}

func makeStepHandler(reg *project.Registry, op func(node string) error) func(context.Context, *mcp.CallToolRequest, StepInput) (*mcp.CallToolResult, StepOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StepInput) (*mcp.CallToolResult, StepOutput, error) {
		p, result := resolveProject(reg, input.Project, input.File)
		if result != nil {
			return result, StepOutput{}, nil
		}

		identity := node.Identity(p)
		if err := op(identity); err != nil {
			return errorResult(fmt.Sprintf("debug session on %s: %v", identity, err)), StepOutput{}, nil
		}
		return nil, StepOutput{Node: identity, Success: true}, nil
	}
}

func makeTraceHandler(reg *project.Registry, ctl *debug.Controller) func(context.Context, *mcp.CallToolRequest, TraceInput) (*mcp.CallToolResult, QueryOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input TraceInput) (*mcp.CallToolResult, QueryOutput, error) {
		if input.Module == "" || input.Function == "" {
			return errorResult("module and function required"), QueryOutput{}, nil
		}
		p, result := resolveProject(reg, input.Project, input.File)
		if result != nil {
			return result, QueryOutput{}, nil
		}

		identity := node.Identity(p)
		spec := debug.TraceSpec{Module: input.Module, Function: input.Function, Arity: input.Arity}
		raw, err := ctl.TraceFunction(identity, spec, input.Options)
		if err != nil {
			return errorResult(fmt.Sprintf("trace on %s failed: %v", identity, err)), QueryOutput{}, nil
		}
		return nil, QueryOutput{Node: identity, Result: raw}, nil
	}
}

func makeWaitDebuggerHandler(reg *project.Registry, ctl *debug.Controller) func(context.Context, *mcp.CallToolRequest, WaitDebuggerInput) (*mcp.CallToolResult, StepOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input WaitDebuggerInput) (*mcp.CallToolResult, StepOutput, error) {
		p, result := resolveProject(reg, input.Project, input.File)
		if result != nil {
			return result, StepOutput{}, nil
		}

		identity := node.Identity(p)
		if err := ctl.WaitForDebugger(identity, input.MaxAttempts); err != nil {
			return errorResult(fmt.Sprintf("wait_debugger on %s: %v", identity, err)), StepOutput{}, nil
		}
		return nil, StepOutput{Node: identity, Success: true}, nil
	}
}
