package debug

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
)

// traceSink is the locally spawned listener a remote trace session streams
// its events to. The sink and the trace RPC are independent: the sink
// accumulates events while the RPC return value only reports whether
// tracing was accepted.
type traceSink struct {
	ln   net.Listener
	done chan struct{}
	once sync.Once

	mu     sync.Mutex
	events int
	reason error
}

// startTraceSink spawns a sink on an ephemeral local port.
func startTraceSink() (*traceSink, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start trace sink: %w", err)
	}

	s := &traceSink{
		ln:   ln,
		done: make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Addr is the sink reference injected into the trace options.
func (s *traceSink) Addr() string {
	return s.ln.Addr().String()
}

// Done is closed when the sink's owning task has terminated, by any cause.
func (s *traceSink) Done() <-chan struct{} {
	return s.done
}

// Events returns the number of trace events received.
func (s *traceSink) Events() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

// Reason returns why the sink terminated, nil for a clean end of stream.
func (s *traceSink) Reason() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Close tears the sink down early.
func (s *traceSink) Close() {
	s.ln.Close()
	s.finish(nil)
}

// run accepts the tracer's single connection and consumes events until the
// stream ends.
func (s *traceSink) run() {
	conn, err := s.ln.Accept()
	if err != nil {
		s.finish(err)
		return
	}
	defer conn.Close()
	defer s.ln.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		s.mu.Lock()
		s.events++
		s.mu.Unlock()
	}
	s.finish(scanner.Err())
}

func (s *traceSink) finish(reason error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()
		close(s.done)
	})
}

// TraceFunction starts a remote trace of spec with the given options plus
// an injected reference to a locally spawned trace sink, then blocks until
// the sink terminates. There is deliberately no timeout here, so a sink
// that never terminates blocks its caller. The trace start result is
// returned as the remote reported it; the sink's termination reason goes
// to the diagnostic log, not the return value.
func (c *Controller) TraceFunction(node string, spec TraceSpec, opts map[string]any) (json.RawMessage, error) {
	sink, err := startTraceSink()
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(opts)+1)
	for k, v := range opts {
		merged[k] = v
	}
	merged["sink"] = sink.Addr()

	result, err := c.caller.Call(node, BackendModule, fnTrace, []any{spec, merged})
	if err != nil {
		sink.Close()
		return nil, err
	}

	<-sink.Done()
	if reason := sink.Reason(); reason != nil {
		log.Printf("trace sink for %s terminated after %d events: %v", node, sink.Events(), reason)
	} else {
		log.Printf("trace sink for %s terminated after %d events", node, sink.Events())
	}

	return result, nil
}
