//go:build windows

package node

import (
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Console is the interaction channel to a launched node. Windows has no
// pty here; the channel is backed by pipes.
type Console struct {
	// Name is a human-meaningful handle for the channel.
	Name string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

// newConsole starts the node process in the given working directory with
// piped stdio.
func newConsole(identity, exe string, args []string, dir string) (*Console, error) {
	cmd := exec.Command(exe, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start node process: %w", err)
	}

	return &Console{
		Name:   fmt.Sprintf("*%s console*", identity),
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
	}, nil
}

// Read reads node console output.
func (c *Console) Read(p []byte) (int, error) {
	return c.stdout.Read(p)
}

// Write writes input to the node console.
func (c *Console) Write(p []byte) (int, error) {
	return c.stdin.Write(p)
}

// Resize is a no-op without a pty.
func (c *Console) Resize(rows, cols uint16) error {
	return nil
}

// PID returns the node process ID.
func (c *Console) PID() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Close releases the channel. The node process is left running.
func (c *Console) Close() error {
	c.stdin.Close()
	return c.stdout.Close()
}
