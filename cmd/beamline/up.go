package main

import (
	"fmt"
	"log"
	"os"

	"github.com/beamline-dev/beamline/internal/node"
	"github.com/beamline-dev/beamline/internal/project"

	"github.com/spf13/cobra"
)

var upCmd = &cobra.Command{
	Use:   "up [project-or-file]",
	Short: "Start a project's node",
	Long: `Start the node for a project, or reuse it if one with the same
identity is already running. The argument is a project name from the
registry, or any file path inside a registered project root; without an
argument the current directory is used.

With --attach, the terminal is connected to the node's console until
detached with CTRL+D. Attach requires the node to have been launched by
this command; externally started nodes have no console here.

Examples:
  beamline up acme
  beamline up src/acme_srv.erl
  beamline up acme --attach`,
	Args: cobra.MaximumNArgs(1),
	Run:  runUp,
}

var upAttach bool

func init() {
	upCmd.Flags().BoolVar(&upAttach, "attach", false, "Attach the terminal to the node console")
}

func runUp(cmd *cobra.Command, args []string) {
	s, err := newStack(cmd)
	if err != nil {
		log.Fatalf("Failed to load project registry: %v", err)
	}
	defer s.Close()

	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	p := resolveTarget(s.registry, target)
	if p == nil {
		fmt.Fprintf(os.Stderr, "Error: no registered project matches %q\n", target)
		os.Exit(1)
	}

	identity := node.Identity(p)
	console, err := s.manager.EnsureStarted(p)
	if err != nil {
		log.Fatalf("Failed to start node %s: %v", identity, err)
	}

	if console == nil {
		fmt.Printf("Node %s is already running (started externally)\n", identity)
		return
	}
	fmt.Printf("Node %s running, pid %d\n", identity, console.PID())

	if !upAttach {
		return
	}
	if err := attachConsole(console); err != nil {
		log.Fatalf("Console attach failed: %v", err)
	}
}

// resolveTarget interprets the argument as a project name first, then as a
// file path inside a registered project root.
func resolveTarget(reg *project.Registry, arg string) *project.Project {
	if p := reg.Get(arg); p != nil {
		return p
	}
	return reg.FindForFile(arg)
}
