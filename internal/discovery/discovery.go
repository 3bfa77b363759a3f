// Package discovery resolves node identities to network addresses and
// tracks node readiness. Discoverability comes from the host's node
// registry (EPMD); initialization is confirmed separately, because a node
// that has registered its name may not yet have started its services.
package discovery

import (
	"log"
	"sync"
	"time"
)

// Discovery answers whether a node identity is registered on the local
// host and where to reach it.
type Discovery interface {
	// IsDiscoverable reports whether a node with the given identity is
	// currently registered.
	IsDiscoverable(identity string) bool
	// Resolve returns the host:port address for the named node.
	Resolve(identity string) (string, error)
}

// ReadyProbe confirms higher-level readiness of a node beyond name
// registration, typically by pinging its RPC service.
type ReadyProbe func(identity string) bool

// Registrar tracks which node identities have completed initialization.
// Registration is asynchronous: RegisterWhenReady returns immediately and
// a poller marks the identity initialized once it is both discoverable and
// answering its readiness probe.
type Registrar struct {
	disc  Discovery
	probe ReadyProbe

	// PollInterval is the cadence of readiness polling.
	PollInterval time.Duration

	mu      sync.Mutex
	ready   map[string]bool
	pending map[string]chan struct{}
	closed  chan struct{}
	once    sync.Once
}

// NewRegistrar creates a registrar polling the given discovery service and
// readiness probe.
func NewRegistrar(disc Discovery, probe ReadyProbe) *Registrar {
	return &Registrar{
		disc:         disc,
		probe:        probe,
		PollInterval: time.Second,
		ready:        make(map[string]bool),
		pending:      make(map[string]chan struct{}),
		closed:       make(chan struct{}),
	}
}

// RegisterWhenReady begins readiness tracking for the identity. It is safe
// to call repeatedly: an identity already initialized or already being
// tracked is not tracked twice.
func (r *Registrar) RegisterWhenReady(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ready[identity] {
		return
	}
	if _, tracking := r.pending[identity]; tracking {
		return
	}

	done := make(chan struct{})
	r.pending[identity] = done
	go r.poll(identity, done)
}

// poll waits for the identity to become discoverable and ready, then marks
// it initialized.
func (r *Registrar) poll(identity string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	for {
		if r.disc.IsDiscoverable(identity) && (r.probe == nil || r.probe(identity)) {
			r.mu.Lock()
			r.ready[identity] = true
			delete(r.pending, identity)
			r.mu.Unlock()
			log.Printf("node %s initialized", identity)
			return
		}

		select {
		case <-ticker.C:
		case <-r.closed:
			r.mu.Lock()
			delete(r.pending, identity)
			r.mu.Unlock()
			return
		}
	}
}

// IsInitialized reports whether the identity has completed its readiness
// handshake since this registrar was created.
func (r *Registrar) IsInitialized(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready[identity]
}

// Close stops all readiness pollers.
func (r *Registrar) Close() {
	r.once.Do(func() { close(r.closed) })
}
