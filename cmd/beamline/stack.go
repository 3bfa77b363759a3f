package main

import (
	"github.com/beamline-dev/beamline/internal/debug"
	"github.com/beamline-dev/beamline/internal/discovery"
	"github.com/beamline-dev/beamline/internal/node"
	"github.com/beamline-dev/beamline/internal/project"
	"github.com/beamline-dev/beamline/internal/rpc"

	"github.com/spf13/cobra"
)

// stack wires the discovery, registrar, node manager, RPC gateway, and
// debug controller together for one command invocation.
type stack struct {
	registry  *project.Registry
	registrar *discovery.Registrar
	manager   *node.Manager
	gateway   *rpc.Gateway
	debug     *debug.Controller
}

// newStack builds the full stack against the local node registry, loading
// the project registry from the --config flag or the default location.
func newStack(cmd *cobra.Command) (*stack, error) {
	registry, err := loadRegistry(cmd)
	if err != nil {
		return nil, err
	}

	epmd := discovery.NewEPMD()
	gateway := rpc.NewGateway(epmd)
	registrar := discovery.NewRegistrar(epmd, gateway.IsReachable)
	manager := node.NewManager(epmd, registrar)

	return &stack{
		registry:  registry,
		registrar: registrar,
		manager:   manager,
		gateway:   gateway,
		debug:     debug.NewController(gateway, manager),
	}, nil
}

// Close releases the stack's console channels and readiness pollers. Node
// processes keep running.
func (s *stack) Close() {
	s.manager.Close()
	s.registrar.Close()
}

func loadRegistry(cmd *cobra.Command) (*project.Registry, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return project.LoadRegistryFile(path)
	}
	return project.LoadRegistry()
}
