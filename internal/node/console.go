//go:build !windows

package node

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// Console is the interaction channel to a launched node: a pty attached to
// the node process, owned by the Manager for the life of the controlling
// process. Callers read the node's console output from it and write input
// to it.
type Console struct {
	// Name is a human-meaningful handle for the channel.
	Name string

	cmd  *exec.Cmd
	ptmx *os.File
}

// newConsole starts the node process in the given working directory,
// attached to a fresh pty.
func newConsole(identity, exe string, args []string, dir string) (*Console, error) {
	cmd := exec.Command(exe, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to start pty: %w", err)
	}

	return &Console{
		Name: fmt.Sprintf("*%s console*", identity),
		cmd:  cmd,
		ptmx: ptmx,
	}, nil
}

// Read reads node console output.
func (c *Console) Read(p []byte) (int, error) {
	return c.ptmx.Read(p)
}

// Write writes input to the node console.
func (c *Console) Write(p []byte) (int, error) {
	return c.ptmx.Write(p)
}

// Resize adjusts the console's terminal size.
func (c *Console) Resize(rows, cols uint16) error {
	return pty.Setsize(c.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

// PID returns the node process ID.
func (c *Console) PID() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Close releases the channel. The node process is left running; reaping is
// the backend's own concern.
func (c *Console) Close() error {
	return c.ptmx.Close()
}
