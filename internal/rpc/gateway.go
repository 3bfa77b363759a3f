// Package rpc performs remote calls against named backend nodes and
// normalizes every transport-level failure into a single error kind.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/beamline-dev/beamline/internal/discovery"
	"github.com/beamline-dev/beamline/internal/protocol"
)

// ErrNodeDown is the uniform error for any failure to reach or execute on
// a remote node: unresolvable identity, dial failure, protocol error,
// malformed call, remote crash. Callers must be able to distinguish this
// from a successful call returning a negative result, which is passed
// through as data.
var ErrNodeDown = errors.New("node unreachable or not found")

// Caller performs remote calls of Module:Function(Args) against a node.
type Caller interface {
	Call(node, module, function string, args []any) (json.RawMessage, error)
}

// Gateway is the RPC gateway. It resolves node identities through the
// discovery service and speaks the wire protocol over TCP.
//
// Calls are blocking round trips with no implicit deadline beyond what
// the transport enforces; callers requiring one must layer it on.
type Gateway struct {
	disc discovery.Discovery

	// DialTimeout bounds connection establishment only.
	DialTimeout time.Duration
}

// NewGateway creates a gateway over the given discovery service.
func NewGateway(disc discovery.Discovery) *Gateway {
	return &Gateway{
		disc:        disc,
		DialTimeout: 5 * time.Second,
	}
}

// Call performs Module:Function(Args) on the named node. The remote result
// is returned verbatim; any transport failure collapses to ErrNodeDown
// with the cause attached for the diagnostic log.
func (g *Gateway) Call(node, module, function string, args []any) (json.RawMessage, error) {
	conn, err := g.connect(node)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if args == nil {
		args = []any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding args for %s:%s: %v", ErrNodeDown, module, function, err)
	}

	writer := protocol.NewWriter(conn)
	if err := writer.WriteCommand(protocol.VerbCall, []string{module, function}, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeDown, err)
	}

	resp, err := protocol.NewParser(conn).ParseResponse()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeDown, err)
	}

	switch resp.Type {
	case protocol.ResponseJSON:
		return resp.Data, nil
	case protocol.ResponseOK:
		if resp.Message == "" {
			return json.RawMessage("null"), nil
		}
		data, _ := json.Marshal(resp.Message)
		return data, nil
	case protocol.ResponseErr:
		// Remote refusal to execute the call is transport-class, not a
		// negative application result.
		return nil, fmt.Errorf("%w: [%s] %s", ErrNodeDown, resp.Code, resp.Message)
	default:
		return nil, fmt.Errorf("%w: unexpected response type %s", ErrNodeDown, resp.Type)
	}
}

// IsReachable is a lightweight reachability probe, independent of Call.
func (g *Gateway) IsReachable(node string) bool {
	conn, err := g.connect(node)
	if err != nil {
		return false
	}
	defer conn.Close()

	if err := protocol.NewWriter(conn).WriteCommand(protocol.VerbPing, nil, nil); err != nil {
		return false
	}
	resp, err := protocol.NewParser(conn).ParseResponse()
	return err == nil && resp.Type == protocol.ResponsePong
}

// connect resolves the node and dials its RPC service.
func (g *Gateway) connect(node string) (net.Conn, error) {
	addr, err := g.disc.Resolve(node)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeDown, err)
	}
	conn, err := net.DialTimeout("tcp", addr, g.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeDown, err)
	}
	return conn, nil
}
