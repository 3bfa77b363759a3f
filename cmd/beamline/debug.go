package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/beamline-dev/beamline/internal/debug"
	"github.com/beamline-dev/beamline/internal/node"
	"github.com/beamline-dev/beamline/internal/project"

	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Remote debug control for a project's node",
	Long: `Operate the debug surface of a running node: remote compile, code
inspection, interpreted modules, breakpoints, stepping, and tracing.

Every subcommand takes a project name or a file path inside a registered
project root as its first argument.`,
}

func init() {
	debugCmd.AddCommand(
		debugCompileCmd,
		debugFunctionInfoCmd,
		debugWhoCallsCmd,
		debugModuleInfoCmd,
		debugInterpretCmd,
		debugBreakCmd,
		debugStepCmd,
		debugContinueCmd,
		debugTraceCmd,
		debugWaitCmd,
	)

	debugModuleInfoCmd.Flags().String("level", "basic", "Detail level: basic or detailed")
	debugWaitCmd.Flags().Int("attempts", 120, "Polling attempts, one per second")
}

// debugTarget resolves the project and builds the stack for a debug
// subcommand. Exits with a message when the argument matches no project.
func debugTarget(cmd *cobra.Command, arg string) (*stack, *project.Project, string) {
	s, err := newStack(cmd)
	if err != nil {
		log.Fatalf("Failed to load project registry: %v", err)
	}

	p := resolveTarget(s.registry, arg)
	if p == nil {
		fmt.Fprintf(os.Stderr, "Error: no registered project matches %q\n", arg)
		os.Exit(1)
	}
	return s, p, node.Identity(p)
}

// printJSON pretty-prints a remote result.
func printJSON(raw json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(buf.String())
}

// parseMFA splits "module:function/arity".
func parseMFA(s string) (string, string, int, error) {
	modRest := strings.SplitN(s, ":", 2)
	if len(modRest) != 2 {
		return "", "", 0, fmt.Errorf("expected module:function/arity, got %q", s)
	}
	fnArity := strings.SplitN(modRest[1], "/", 2)
	if len(fnArity) != 2 {
		return "", "", 0, fmt.Errorf("expected module:function/arity, got %q", s)
	}
	arity, err := strconv.Atoi(fnArity[1])
	if err != nil || arity < 0 {
		return "", "", 0, fmt.Errorf("bad arity in %q", s)
	}
	return modRest[0], fnArity[0], arity, nil
}

var debugCompileCmd = &cobra.Command{
	Use:   "compile <file>",
	Short: "Compile a source file on its project's node and load it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, p, identity := debugTarget(cmd, args[0])
		defer s.Close()

		if err := awaitInitialized(s.manager, p, initWait); err != nil {
			log.Fatalf("Compile on %s failed: %v", identity, err)
		}
		diags, err := s.debug.CompileAndLoad(identity, args[0])
		if err != nil {
			log.Fatalf("Compile on %s failed: %v", identity, err)
		}
		printJSON(diags)
	},
}

var debugFunctionInfoCmd = &cobra.Command{
	Use:   "function-info <project-or-file> <module:function/arity>",
	Short: "Look up function metadata",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s, p, identity := debugTarget(cmd, args[0])
		defer s.Close()

		mod, fn, arity, err := parseMFA(args[1])
		if err != nil {
			log.Fatal(err)
		}
		if err := awaitInitialized(s.manager, p, initWait); err != nil {
			log.Fatalf("function_info on %s failed: %v", identity, err)
		}
		raw, err := s.debug.FunctionInfo(identity, mod, fn, arity)
		if err != nil {
			log.Fatalf("function_info on %s failed: %v", identity, err)
		}
		printJSON(raw)
	},
}

var debugWhoCallsCmd = &cobra.Command{
	Use:   "who-calls <project-or-file> <module:function/arity>",
	Short: "List the call sites of a function",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s, p, identity := debugTarget(cmd, args[0])
		defer s.Close()

		mod, fn, arity, err := parseMFA(args[1])
		if err != nil {
			log.Fatal(err)
		}
		if err := awaitInitialized(s.manager, p, initWait); err != nil {
			log.Fatalf("who_calls on %s failed: %v", identity, err)
		}
		raw, err := s.debug.WhoCalls(identity, mod, fn, arity)
		if err != nil {
			log.Fatalf("who_calls on %s failed: %v", identity, err)
		}
		printJSON(raw)
	},
}

var debugModuleInfoCmd = &cobra.Command{
	Use:   "module-info <project-or-file> <module>",
	Short: "Look up module metadata",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s, _, identity := debugTarget(cmd, args[0])
		defer s.Close()

		level, _ := cmd.Flags().GetString("level")
		raw, err := s.debug.ModuleInfo(identity, args[1], level)
		if err != nil {
			log.Fatalf("module_info on %s failed: %v", identity, err)
		}
		printJSON(raw)
	},
}

var debugInterpretCmd = &cobra.Command{
	Use:   "interpret <project-or-file> <module>...",
	Short: "Mark modules for interpreted execution",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s, _, identity := debugTarget(cmd, args[0])
		defer s.Close()

		interpreted, err := s.debug.InterpretModules(identity, args[1:])
		if err != nil {
			log.Fatalf("interpret on %s failed: %v", identity, err)
		}
		fmt.Printf("Interpreted on %s: %s\n", identity, strings.Join(interpreted, ", "))
	},
}

var debugBreakCmd = &cobra.Command{
	Use:   "break <project-or-file> <module> <line>",
	Short: "Toggle a breakpoint",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		s, _, identity := debugTarget(cmd, args[0])
		defer s.Close()

		line, err := strconv.Atoi(args[2])
		if err != nil || line <= 0 {
			log.Fatalf("bad line number %q", args[2])
		}
		bp, err := s.debug.ToggleBreakpoint(identity, args[1], line)
		if err != nil {
			log.Fatalf("breakpoint on %s failed: %v", identity, err)
		}
		state := "cleared"
		if bp.Set {
			state = "set"
		}
		fmt.Printf("Breakpoint %s at %s:%d\n", state, bp.Module, bp.Line)
	},
}

var debugStepCmd = &cobra.Command{
	Use:   "step <project-or-file>",
	Short: "Advance execution in the debug session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, _, identity := debugTarget(cmd, args[0])
		defer s.Close()

		if err := s.debug.Step(identity); err != nil {
			log.Fatalf("step on %s failed: %v", identity, err)
		}
	},
}

var debugContinueCmd = &cobra.Command{
	Use:   "continue <project-or-file>",
	Short: "Resume execution in the debug session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, _, identity := debugTarget(cmd, args[0])
		defer s.Close()

		if err := s.debug.Continue(identity); err != nil {
			log.Fatalf("continue on %s failed: %v", identity, err)
		}
	},
}

var debugTraceCmd = &cobra.Command{
	Use:   "trace <project-or-file> <module:function/arity>",
	Short: "Trace calls to a function",
	Long: `Trace calls to a function on the project's node. Blocks until the
remote trace session ends; interrupt with CTRL+C.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s, _, identity := debugTarget(cmd, args[0])
		defer s.Close()

		mod, fn, arity, err := parseMFA(args[1])
		if err != nil {
			log.Fatal(err)
		}
		spec := debug.TraceSpec{Module: mod, Function: fn, Arity: arity}
		raw, err := s.debug.TraceFunction(identity, spec, nil)
		if err != nil {
			log.Fatalf("trace on %s failed: %v", identity, err)
		}
		printJSON(raw)
	},
}

var debugWaitCmd = &cobra.Command{
	Use:   "wait <project-or-file>",
	Short: "Wait for a debugger to register, then resume execution",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, _, identity := debugTarget(cmd, args[0])
		defer s.Close()

		attempts, _ := cmd.Flags().GetInt("attempts")
		if err := s.debug.WaitForDebugger(identity, attempts); err != nil {
			log.Fatalf("wait on %s: %v", identity, err)
		}
		fmt.Printf("Debugger registered on %s, execution resumed\n", identity)
	},
}
