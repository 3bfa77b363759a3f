//go:build windows

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/beamline-dev/beamline/internal/node"
)

// attachConsole connects the terminal to the node console. Without a pty
// there is no raw mode or resize handling; input is line-buffered and
// CTRL+Z followed by Enter detaches.
func attachConsole(console *node.Console) error {
	fmt.Printf("Attached to %s (CTRL+Z then Enter to detach)\n", console.Name)

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(os.Stdout, console)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(console, os.Stdin)
		done <- struct{}{}
	}()

	<-done
	fmt.Printf("\nDetached from %s\n", console.Name)
	return nil
}
