package main

import (
	"fmt"
	"time"

	"github.com/beamline-dev/beamline/internal/node"
	"github.com/beamline-dev/beamline/internal/project"
)

// initWait bounds how long a one-shot debug command waits for the target
// node's readiness handshake before giving up.
const initWait = 30 * time.Second

// nodeReadier is the slice of the node manager the readiness bootstrap
// needs.
type nodeReadier interface {
	EnsureStarted(p *project.Project) (*node.Console, error)
	IsInitialized(identity string) bool
}

// awaitInitialized brings the project's node up (or finds it running),
// requests readiness tracking, and waits for the handshake to complete.
// One-shot commands need this because each invocation starts with a fresh
// registrar that has observed nothing yet.
func awaitInitialized(mgr nodeReadier, p *project.Project, timeout time.Duration) error {
	if _, err := mgr.EnsureStarted(p); err != nil {
		return err
	}

	identity := node.Identity(p)
	deadline := time.Now().Add(timeout)
	for !mgr.IsInitialized(identity) {
		if time.Now().After(deadline) {
			return fmt.Errorf("node %s did not initialize within %s", identity, timeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}
