package node

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/beamline-dev/beamline/internal/project"
)

// fakeDiscovery is an in-memory discovery service.
type fakeDiscovery struct {
	mu    sync.Mutex
	nodes map[string]bool
}

func newFakeDiscovery() *fakeDiscovery {
	return &fakeDiscovery{nodes: make(map[string]bool)}
}

func (f *fakeDiscovery) set(identity string, up bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[identity] = up
}

func (f *fakeDiscovery) IsDiscoverable(identity string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nodes[identity]
}

func (f *fakeDiscovery) Resolve(identity string) (string, error) {
	return "", errors.New("not resolvable in tests")
}

// fakeRegistrar records readiness-tracking requests.
type fakeRegistrar struct {
	mu         sync.Mutex
	registered []string
	ready      map[string]bool
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{ready: make(map[string]bool)}
}

func (f *fakeRegistrar) RegisterWhenReady(identity string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, identity)
}

func (f *fakeRegistrar) IsInitialized(identity string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready[identity]
}

func (f *fakeRegistrar) registrations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.registered...)
}

func mustProject(t *testing.T, opts project.Options) *project.Project {
	t.Helper()
	p, err := project.New(opts)
	if err != nil {
		t.Fatalf("project.New failed: %v", err)
	}
	return p
}

// fakeRuntime writes a tiny shell script to act as the node runtime.
func fakeRuntime(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "erl")
	script := "#!/bin/sh\nsleep 5\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing fake runtime: %v", err)
	}
	return path
}

func TestIdentity(t *testing.T) {
	withSname := mustProject(t, project.Options{Name: "acme", Root: "/src/acme", NodeName: "acme_dev"})
	if Identity(withSname) != "acme_dev" {
		t.Errorf("identity = %q", Identity(withSname))
	}

	defaulted := mustProject(t, project.Options{Name: "acme", Root: "/src/acme"})
	if Identity(defaulted) != "acme" {
		t.Errorf("identity = %q", Identity(defaulted))
	}
}

func TestLaunchCommandExplicit(t *testing.T) {
	m := NewManager(newFakeDiscovery(), newFakeRegistrar())
	p := mustProject(t, project.Options{
		Name:         "acme",
		Root:         "/src/acme",
		StartCommand: "bin/start.sh -i",
	})

	exe, args, err := m.LaunchCommand(p)
	if err != nil {
		t.Fatalf("LaunchCommand failed: %v", err)
	}
	if exe != "bin/start.sh" {
		t.Errorf("exe = %q", exe)
	}
	if len(args) != 1 || args[0] != "-i" {
		t.Errorf("args = %v", args)
	}
}

func TestLaunchCommandExplicitCollapsesWhitespace(t *testing.T) {
	m := NewManager(newFakeDiscovery(), newFakeRegistrar())
	p := mustProject(t, project.Options{
		Name:         "acme",
		Root:         "/src/acme",
		StartCommand: "  bin/start.sh   -i  --verbose ",
	})

	exe, args, err := m.LaunchCommand(p)
	if err != nil {
		t.Fatalf("LaunchCommand failed: %v", err)
	}
	if exe != "bin/start.sh" || len(args) != 2 || args[0] != "-i" || args[1] != "--verbose" {
		t.Errorf("got %q %v", exe, args)
	}
}

func TestLaunchCommandSynthesized(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "lib", "dep"), 0o755); err != nil {
		t.Fatal(err)
	}

	m := NewManager(newFakeDiscovery(), newFakeRegistrar())
	m.Runtime = fakeRuntime(t)
	p := mustProject(t, project.Options{Name: "acme", Root: root, NodeName: "acme_dev"})

	exe, args, err := m.LaunchCommand(p)
	if err != nil {
		t.Fatalf("LaunchCommand failed: %v", err)
	}
	if exe != m.Runtime {
		t.Errorf("exe = %q, want %q", exe, m.Runtime)
	}

	want := []string{
		"-sname", "acme_dev", "-pa",
		filepath.Join(root, "ebin"),
		filepath.Join(root, "test"),
		filepath.Join(root, "lib", "dep", "ebin"),
		filepath.Join(root, "lib", "dep", "test"),
	}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestLaunchCommandBlankStartCommand(t *testing.T) {
	m := NewManager(newFakeDiscovery(), newFakeRegistrar())
	p := mustProject(t, project.Options{
		Name:         "acme",
		Root:         "/src/acme",
		StartCommand: "   ",
	})

	_, _, err := m.LaunchCommand(p)
	if !errors.Is(err, ErrBlankStartCommand) {
		t.Errorf("expected ErrBlankStartCommand, got %v", err)
	}
}

func TestLaunchCommandRuntimeMissing(t *testing.T) {
	m := NewManager(newFakeDiscovery(), newFakeRegistrar())
	m.Runtime = "no-such-runtime-binary"
	p := mustProject(t, project.Options{Name: "acme", Root: "/src/acme"})

	_, _, err := m.LaunchCommand(p)
	if !errors.Is(err, ErrRuntimeNotFound) {
		t.Errorf("expected ErrRuntimeNotFound, got %v", err)
	}
}

func TestEnsureStartedLaunchesOnce(t *testing.T) {
	disc := newFakeDiscovery()
	reg := newFakeRegistrar()
	m := NewManager(disc, reg)
	m.Runtime = fakeRuntime(t)
	defer m.Close()

	p := mustProject(t, project.Options{Name: "acme", Root: t.TempDir()})

	console, err := m.EnsureStarted(p)
	if err != nil {
		t.Fatalf("EnsureStarted failed: %v", err)
	}
	if console == nil {
		t.Fatal("expected a console for a freshly launched node")
	}
	if console.PID() == 0 {
		t.Error("expected a live node process")
	}

	// The node is now discoverable; a second EnsureStarted must not
	// launch again, but must still request registration.
	disc.set("acme", true)
	again, err := m.EnsureStarted(p)
	if err != nil {
		t.Fatalf("second EnsureStarted failed: %v", err)
	}
	if again != console {
		t.Error("expected the existing console, not a relaunch")
	}

	regs := reg.registrations()
	if len(regs) != 2 {
		t.Errorf("registration requested %d times, want 2 (unconditional)", len(regs))
	}

	if m.Console("acme") != console {
		t.Error("Console lookup mismatch")
	}
}

func TestEnsureStartedAlreadyRunningExternally(t *testing.T) {
	disc := newFakeDiscovery()
	disc.set("acme", true)
	reg := newFakeRegistrar()
	m := NewManager(disc, reg)

	p := mustProject(t, project.Options{Name: "acme", Root: "/does/not/exist"})

	// Already discoverable: no launch, so the bad root never matters.
	console, err := m.EnsureStarted(p)
	if err != nil {
		t.Fatalf("EnsureStarted failed: %v", err)
	}
	if console != nil {
		t.Error("expected nil console for an externally started node")
	}
	if regs := reg.registrations(); len(regs) != 1 || regs[0] != "acme" {
		t.Errorf("registrations = %v", regs)
	}
}

func TestStartFailsLoudlyOnRace(t *testing.T) {
	disc := newFakeDiscovery()
	m := NewManager(disc, newFakeRegistrar())
	p := mustProject(t, project.Options{Name: "acme", Root: t.TempDir()})

	// A node appears between EnsureStarted's check and the launch.
	disc.set("acme", true)
	_, err := m.start(p, "acme")
	if !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestEnsureStartedBadWorkDir(t *testing.T) {
	m := NewManager(newFakeDiscovery(), newFakeRegistrar())
	m.Runtime = fakeRuntime(t)

	p := mustProject(t, project.Options{Name: "acme", Root: "/no/such/root"})
	_, err := m.EnsureStarted(p)
	if !errors.Is(err, ErrBadWorkDir) {
		t.Errorf("expected ErrBadWorkDir, got %v", err)
	}
}

func TestConsoleReadWrite(t *testing.T) {
	disc := newFakeDiscovery()
	m := NewManager(disc, newFakeRegistrar())

	path := filepath.Join(t.TempDir(), "erl")
	script := "#!/bin/sh\necho ready\nsleep 5\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	m.Runtime = path
	defer m.Close()

	p := mustProject(t, project.Options{Name: "echoer", Root: t.TempDir()})
	console, err := m.EnsureStarted(p)
	if err != nil {
		t.Fatalf("EnsureStarted failed: %v", err)
	}

	buf := make([]byte, 64)
	done := make(chan string, 1)
	go func() {
		n, _ := console.Read(buf)
		done <- string(buf[:n])
	}()

	select {
	case out := <-done:
		if len(out) == 0 {
			t.Error("expected console output")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no console output")
	}
}
