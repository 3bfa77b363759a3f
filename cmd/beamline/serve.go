package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/beamline-dev/beamline/internal/tools"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as MCP server",
	Long: `Run as an MCP (Model Context Protocol) server over stdio.

This is the primary mode for integration with AI coding assistants: the
node and debug tools operate on the projects in the registry.`,
	Run: runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancel()

	log.SetOutput(os.Stderr)

	s, err := newStack(cmd)
	if err != nil {
		log.Fatalf("Failed to load project registry: %v", err)
	}
	defer s.Close()

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    appName,
			Version: appVersion,
		},
		&mcp.ServerOptions{
			HasTools: true,
			Instructions: `Node lifecycle and debug control server for BEAM projects.

Projects are registered in projects.kdl; file paths resolve to the first
registered project containing them.

Available tools:
- node_up: Start a project's node, or reuse it if already running
- projects: List registered projects with node state
- compile: Compile a source file on its node and load it
- function_info / who_calls / module_info: Remote code inspection
- interpret: Mark modules for interpreted (breakpoint-capable) execution
- breakpoint / step / continue: Debug session control
- trace: Trace a function, blocking until the trace session ends
- wait_debugger: Wait for a debugger to register, then resume`,
		},
	)

	tools.RegisterNodeTools(server, s.registry, s.manager)
	tools.RegisterDebugTools(server, s.registry, s.debug)

	go func() {
		<-ctx.Done()
		log.Println("Shutdown signal received...")
	}()

	log.Printf("Starting %s v%s", appName, appVersion)

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		if ctx.Err() == nil {
			log.Fatalf("Server error: %v", err)
		}
	}

	log.Println("Server shutdown complete")
}
