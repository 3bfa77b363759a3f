package discovery

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// EPMD request/response codes (distribution protocol, ERTS).
const (
	epmdPortPlease2Req = 122 // 'z'
	epmdPort2Resp      = 119 // 'w'
	epmdNamesReq       = 110 // 'n'
)

// DefaultEPMDAddr is the standard EPMD listen address on the local host.
const DefaultEPMDAddr = "127.0.0.1:4369"

// ErrNodeNotRegistered is returned when EPMD has no entry for an identity.
var ErrNodeNotRegistered = errors.New("node not registered with epmd")

// EPMD is a client for the Erlang Port Mapper Daemon, implementing the
// Discovery interface over the NAMES and PORT_PLEASE2 requests.
type EPMD struct {
	// Addr is the epmd address, host:port.
	Addr string
	// DialTimeout bounds each epmd round trip.
	DialTimeout time.Duration
}

// NewEPMD creates an EPMD client for the local host.
func NewEPMD() *EPMD {
	return &EPMD{
		Addr:        DefaultEPMDAddr,
		DialTimeout: 2 * time.Second,
	}
}

// IsDiscoverable reports whether the identity appears in epmd's name table.
func (e *EPMD) IsDiscoverable(identity string) bool {
	names, err := e.Names()
	if err != nil {
		return false
	}
	_, ok := names[identity]
	return ok
}

// Resolve returns the host:port address of the named node's listen socket.
func (e *EPMD) Resolve(identity string) (string, error) {
	port, err := e.PortOf(identity)
	if err != nil {
		return "", err
	}
	host, _, err := net.SplitHostPort(e.Addr)
	if err != nil {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// Names queries epmd for all registered node names and their ports.
func (e *EPMD) Names() (map[string]int, error) {
	conn, err := e.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := writeRequest(conn, []byte{epmdNamesReq}); err != nil {
		return nil, err
	}

	// Response: 4-byte epmd port, then one text line per name.
	var epmdPort uint32
	if err := binary.Read(conn, binary.BigEndian, &epmdPort); err != nil {
		return nil, err
	}

	names := make(map[string]int)
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		name, port, ok := parseNameLine(scanner.Text())
		if ok {
			names[name] = port
		}
	}
	return names, scanner.Err()
}

// PortOf asks epmd for the distribution port of a single node.
func (e *EPMD) PortOf(identity string) (int, error) {
	conn, err := e.dial()
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	req := append([]byte{epmdPortPlease2Req}, identity...)
	if err := writeRequest(conn, req); err != nil {
		return 0, err
	}

	// PORT2_RESP: tag, result, then port:16 when result == 0.
	header := make([]byte, 2)
	if _, err := io.ReadFull(conn, header); err != nil {
		return 0, err
	}
	if header[0] != epmdPort2Resp {
		return 0, fmt.Errorf("unexpected epmd response tag %d", header[0])
	}
	if header[1] != 0 {
		return 0, ErrNodeNotRegistered
	}

	var port uint16
	if err := binary.Read(conn, binary.BigEndian, &port); err != nil {
		return 0, err
	}
	return int(port), nil
}

func (e *EPMD) dial() (net.Conn, error) {
	return net.DialTimeout("tcp", e.Addr, e.DialTimeout)
}

// writeRequest frames an epmd request with its 2-byte length prefix.
func writeRequest(w io.Writer, req []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint16(len(req))); err != nil {
		return err
	}
	_, err := w.Write(req)
	return err
}

// parseNameLine parses one line of a NAMES response:
//
//	name <identity> at port <port>
func parseNameLine(line string) (string, int, bool) {
	fields := strings.Fields(line)
	if len(fields) != 5 || fields[0] != "name" || fields[2] != "at" || fields[3] != "port" {
		return "", 0, false
	}
	port, err := strconv.Atoi(fields[4])
	if err != nil {
		return "", 0, false
	}
	return fields[1], port, true
}
