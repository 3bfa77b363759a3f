// Package protocol defines the text-based wire protocol spoken between the
// controller and a backend node's RPC service.
package protocol

import "fmt"

// Protocol constants for resilient parsing.
const (
	// CommandTerminator marks the end of a command or response.
	CommandTerminator = ";;"

	// DataMarker separates arguments from the payload length.
	DataMarker = "--"
)

// Command verbs.
const (
	// VerbCall performs a remote call: CALL <module> <function> with the
	// JSON-encoded argument list as payload.
	VerbCall = "CALL"
	// VerbPing is the reachability probe.
	VerbPing = "PING"
)

// Command represents a command sent to a node.
//
// Format: VERB [ARGS...] [-- LENGTH\nBASE64DATA];;
// The payload is base64 encoded so JSON and binary content survive the
// text framing.
type Command struct {
	Verb string   // CALL or PING
	Args []string // Positional arguments (module, function for CALL)
	Data []byte   // Optional payload (JSON argument list)
}

// ResponseType indicates the type of response.
type ResponseType string

const (
	ResponseOK   ResponseType = "OK"
	ResponseErr  ResponseType = "ERR"
	ResponseJSON ResponseType = "JSON"
	ResponsePong ResponseType = "PONG"
)

// Response represents a response from a node.
type Response struct {
	Type    ResponseType
	Message string // For OK/ERR responses
	Code    string // Error code for ERR responses
	Data    []byte // JSON payload for JSON responses
}

// ErrorCode represents remote error codes.
type ErrorCode string

const (
	ErrCodeBadCall  ErrorCode = "bad_call"
	ErrCodeNoModule ErrorCode = "no_module"
	ErrCodeInternal ErrorCode = "internal"
)

// ErrUnknownVerb indicates an unknown command verb.
type ErrUnknownVerb struct {
	Verb string
}

func (e *ErrUnknownVerb) Error() string {
	return fmt.Sprintf("unknown verb %q", e.Verb)
}
