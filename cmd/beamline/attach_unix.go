//go:build unix

package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/beamline-dev/beamline/internal/node"

	"golang.org/x/term"
)

// attachConsole connects the terminal to the node console until the
// console closes or CTRL+D is typed.
func attachConsole(console *node.Console) error {
	fd := int(os.Stdin.Fd())

	if w, h, err := term.GetSize(fd); err == nil {
		console.Resize(uint16(h), uint16(w))
	}

	// Handle terminal size changes
	sizeCh := make(chan os.Signal, 1)
	signal.Notify(sizeCh, syscall.SIGWINCH)
	defer signal.Stop(sizeCh)

	// Set stdin in raw mode
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to set raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	fmt.Printf("Attached to %s (CTRL+D to detach)\r\n", console.Name)

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(os.Stdout, console)
		done <- struct{}{}
	}()
	go func() {
		forwardInput(console, os.Stdin)
		done <- struct{}{}
	}()

	detached := make(chan struct{})
	go watchResize(sizeCh, detached, func() {
		if w, h, err := term.GetSize(fd); err == nil {
			console.Resize(uint16(h), uint16(w))
		}
	})

	<-done
	close(detached)
	fmt.Printf("\r\nDetached from %s\r\n", console.Name)
	return nil
}

// watchResize applies resize on every size-change signal until done
// closes. signal.Stop never closes the channel, so the loop needs its own
// exit path.
func watchResize(sizeCh <-chan os.Signal, done <-chan struct{}, resize func()) {
	for {
		select {
		case <-done:
			return
		case <-sizeCh:
			resize()
		}
	}
}

// forwardInput copies terminal input to the console, detaching on CTRL+D.
// In raw mode EOT arrives as a byte, not as EOF.
func forwardInput(console *node.Console, in io.Reader) {
	const eot = 0x04
	buf := make([]byte, 1024)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			for i := 0; i < n; i++ {
				if buf[i] == eot {
					if i > 0 {
						console.Write(buf[:i])
					}
					return
				}
			}
			if _, err := console.Write(buf[:n]); err != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
