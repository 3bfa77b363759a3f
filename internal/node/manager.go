// Package node manages the lifecycle of backend runtime nodes: computing a
// node's identity and launch command from its project record, starting the
// node's process exactly once, and tracking whether it is started and
// initialized.
package node

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/beamline-dev/beamline/internal/discovery"
	"github.com/beamline-dev/beamline/internal/project"
)

var (
	// ErrAlreadyStarted is returned when a start is requested for a node
	// identity that is already discoverable. Startup never silently
	// no-ops: a duplicate start is a caller error.
	ErrAlreadyStarted = errors.New("node already started")
	// ErrRuntimeNotFound is returned when the runtime executable cannot
	// be located on the search path. Fatal, never retried.
	ErrRuntimeNotFound = errors.New("runtime executable not found")
	// ErrBadWorkDir is returned when a project root does not exist or is
	// not a directory. Fatal, never retried.
	ErrBadWorkDir = errors.New("project root is not a directory")
	// ErrBlankStartCommand is returned when a configured start-command
	// contains no tokens. Fatal, never retried.
	ErrBlankStartCommand = errors.New("start command is blank")
)

// DefaultRuntime is the runtime executable used when a project has no
// explicit start command.
const DefaultRuntime = "erl"

// Registrar tracks asynchronous node readiness (see discovery.Registrar).
type Registrar interface {
	RegisterWhenReady(identity string)
	IsInitialized(identity string) bool
}

// Manager owns node startup and the console channels of the nodes it has
// launched. Launch is fire-and-forget: initialization is confirmed
// asynchronously by the registrar, and a dead backend is never restarted
// automatically.
type Manager struct {
	disc discovery.Discovery
	reg  Registrar

	// Runtime is the runtime executable name. Defaults to DefaultRuntime.
	Runtime string

	mu       sync.Mutex
	consoles map[string]*Console
}

// NewManager creates a node manager over the given discovery service and
// registrar.
func NewManager(disc discovery.Discovery, reg Registrar) *Manager {
	return &Manager{
		disc:     disc,
		reg:      reg,
		Runtime:  DefaultRuntime,
		consoles: make(map[string]*Console),
	}
}

// Identity returns the node identity for a project: the configured
// node-sname, which defaults to the project name at construction.
func Identity(p *project.Project) string {
	return p.NodeName
}

// LaunchCommand computes the executable and arguments used to launch the
// project's node. An explicit start-command is tokenized on whitespace and
// used verbatim; otherwise the command is synthesized as
//
//	erl -sname <identity> -pa <code paths...>
//
// with the runtime located via the executable search path.
func (m *Manager) LaunchCommand(p *project.Project) (string, []string, error) {
	if p.StartCommand != "" {
		fields := strings.Fields(p.StartCommand)
		if len(fields) == 0 {
			return "", nil, fmt.Errorf("%w: project %s", ErrBlankStartCommand, p.Name)
		}
		return fields[0], fields[1:], nil
	}

	exe, err := exec.LookPath(m.Runtime)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %q", ErrRuntimeNotFound, m.Runtime)
	}

	args := []string{"-sname", Identity(p), "-pa"}
	args = append(args, p.CodePaths()...)
	return exe, args, nil
}

// EnsureStarted is the idempotent entry point: it launches the project's
// node unless one with the same identity is already discoverable, then
// unconditionally requests readiness tracking, since a node that is started may
// not yet be initialized. The returned console is nil when the node was
// found already running and was not launched by this manager.
func (m *Manager) EnsureStarted(p *project.Project) (*Console, error) {
	identity := Identity(p)

	var console *Console
	if m.disc.IsDiscoverable(identity) {
		console = m.Console(identity)
	} else {
		c, err := m.start(p, identity)
		if err != nil {
			return nil, err
		}
		console = c
	}

	m.reg.RegisterWhenReady(identity)
	return console, nil
}

// start launches the node process attached to a fresh console channel.
// It re-checks discoverability under the lock so a node appearing between
// EnsureStarted's check and here fails loudly instead of double-launching.
func (m *Manager) start(p *project.Project, identity string) (*Console, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disc.IsDiscoverable(identity) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyStarted, identity)
	}

	exe, args, err := m.LaunchCommand(p)
	if err != nil {
		return nil, err
	}

	dir, err := filepath.Abs(p.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadWorkDir, p.Root, err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrBadWorkDir, dir)
	}

	console, err := newConsole(identity, exe, args, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to start node %s: %w", identity, err)
	}

	if old := m.consoles[identity]; old != nil {
		old.Close()
	}
	m.consoles[identity] = console
	return console, nil
}

// IsStarted reports whether a node with the identity is discoverable.
func (m *Manager) IsStarted(identity string) bool {
	return m.disc.IsDiscoverable(identity)
}

// IsInitialized reports whether the node has completed its readiness
// handshake.
func (m *Manager) IsInitialized(identity string) bool {
	return m.reg.IsInitialized(identity)
}

// Console returns the console channel of a node launched by this manager,
// or nil for nodes started elsewhere.
func (m *Manager) Console(identity string) *Console {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consoles[identity]
}

// Close releases all console channels. The node processes themselves are
// left running.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.consoles {
		c.Close()
	}
	m.consoles = make(map[string]*Console)
}
