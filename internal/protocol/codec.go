package protocol

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parser reads protocol commands and responses from a stream.
type Parser struct {
	reader *bufio.Reader
}

// NewParser creates a new protocol parser.
func NewParser(r io.Reader) *Parser {
	return &Parser{reader: bufio.NewReader(r)}
}

// ParseCommand reads and parses one command, consuming its terminator.
func (p *Parser) ParseCommand() (*Command, error) {
	content, err := p.readUntilTerminator()
	if err != nil {
		return nil, err
	}

	cmdPart, dataPart, err := splitData(strings.TrimSpace(content))
	if err != nil {
		return nil, err
	}

	parts := strings.Fields(cmdPart)
	if len(parts) == 0 {
		return nil, errors.New("empty command")
	}

	verb := strings.ToUpper(parts[0])
	switch verb {
	case VerbCall, VerbPing:
	default:
		return nil, &ErrUnknownVerb{Verb: verb}
	}

	cmd := &Command{Verb: verb, Args: parts[1:]}
	if dataPart != "" {
		data, err := decodePayload(dataPart)
		if err != nil {
			return nil, fmt.Errorf("failed to parse data: %w", err)
		}
		cmd.Data = data
	}
	return cmd, nil
}

// ParseResponse reads and parses one response, consuming its terminator.
func (p *Parser) ParseResponse() (*Response, error) {
	content, err := p.readUntilTerminator()
	if err != nil {
		return nil, err
	}

	respPart, dataPart, err := splitData(strings.TrimSpace(content))
	if err != nil {
		return nil, err
	}
	if respPart == "" {
		return nil, errors.New("empty response")
	}

	parts := strings.SplitN(respPart, " ", 3)
	resp := &Response{Type: ResponseType(strings.ToUpper(parts[0]))}

	switch resp.Type {
	case ResponseOK:
		if len(parts) > 1 {
			resp.Message = strings.Join(parts[1:], " ")
		}

	case ResponseErr:
		if len(parts) >= 2 {
			resp.Code = parts[1]
		}
		if len(parts) >= 3 {
			resp.Message = parts[2]
		}

	case ResponsePong:
		// No additional data.

	case ResponseJSON:
		if dataPart == "" {
			return nil, errors.New("JSON response requires data")
		}
		data, err := decodePayload(dataPart)
		if err != nil {
			return nil, fmt.Errorf("failed to parse JSON data: %w", err)
		}
		resp.Data = data

	default:
		return nil, fmt.Errorf("unknown response type: %s", parts[0])
	}

	return resp, nil
}

// readUntilTerminator reads until ";;", consuming the terminator and
// returning the content before it.
func (p *Parser) readUntilTerminator() (string, error) {
	var buf bytes.Buffer
	term := []byte(CommandTerminator)

	for {
		b, err := p.reader.ReadByte()
		if err != nil {
			if err == io.EOF && buf.Len() > 0 {
				return "", fmt.Errorf("unexpected EOF, missing terminator %q", CommandTerminator)
			}
			return "", err
		}
		buf.WriteByte(b)

		if buf.Len() >= len(term) && bytes.HasSuffix(buf.Bytes(), term) {
			return string(buf.Bytes()[:buf.Len()-len(term)]), nil
		}
	}
}

// splitData separates a message into its text part and payload part.
func splitData(content string) (string, string, error) {
	if idx := strings.Index(content, " "+DataMarker+" "); idx != -1 {
		return content[:idx], content[idx+len(" "+DataMarker+" "):], nil
	}
	if strings.HasSuffix(content, " "+DataMarker) {
		return "", "", errors.New("data marker present but no data length")
	}
	return content, "", nil
}

// decodePayload parses a "LENGTH\nBASE64DATA" payload.
func decodePayload(dataPart string) ([]byte, error) {
	newlineIdx := strings.Index(dataPart, "\n")
	if newlineIdx == -1 {
		return nil, errors.New("data length without data content")
	}

	lengthStr := strings.TrimSpace(dataPart[:newlineIdx])
	length, err := strconv.Atoi(lengthStr)
	if err != nil {
		return nil, fmt.Errorf("invalid data length %q: %w", lengthStr, err)
	}

	encoded := dataPart[newlineIdx+1:]
	if len(encoded) != length {
		return nil, fmt.Errorf("data length mismatch: expected %d, got %d", length, len(encoded))
	}

	return base64.StdEncoding.DecodeString(encoded)
}

// FormatCommand formats a command for transmission.
func FormatCommand(cmd *Command) []byte {
	var buf bytes.Buffer

	buf.WriteString(cmd.Verb)
	for _, arg := range cmd.Args {
		buf.WriteByte(' ')
		buf.WriteString(arg)
	}
	writePayload(&buf, cmd.Data)
	buf.WriteString(CommandTerminator)
	return buf.Bytes()
}

// FormatOK formats an OK response.
func FormatOK(message string) []byte {
	if message == "" {
		return []byte("OK" + CommandTerminator)
	}
	return []byte("OK " + message + CommandTerminator)
}

// FormatErr formats an error response.
func FormatErr(code ErrorCode, message string) []byte {
	return []byte(fmt.Sprintf("ERR %s %s%s", code, message, CommandTerminator))
}

// FormatPong formats a PONG response.
func FormatPong() []byte {
	return []byte("PONG" + CommandTerminator)
}

// FormatJSON formats a JSON response carrying the given payload.
func FormatJSON(data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("JSON")
	writePayload(&buf, data)
	buf.WriteString(CommandTerminator)
	return buf.Bytes()
}

// writePayload appends " -- LENGTH\nBASE64DATA" when data is non-empty.
func writePayload(buf *bytes.Buffer, data []byte) {
	if len(data) == 0 {
		return
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	buf.WriteByte(' ')
	buf.WriteString(DataMarker)
	buf.WriteByte(' ')
	buf.WriteString(strconv.Itoa(len(encoded)))
	buf.WriteByte('\n')
	buf.WriteString(encoded)
}

// Writer provides methods for writing protocol messages.
type Writer struct {
	w io.Writer
}

// NewWriter creates a new protocol writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteCommand writes a command.
func (w *Writer) WriteCommand(verb string, args []string, data []byte) error {
	_, err := w.w.Write(FormatCommand(&Command{Verb: verb, Args: args, Data: data}))
	return err
}

// WriteOK writes an OK response.
func (w *Writer) WriteOK(message string) error {
	_, err := w.w.Write(FormatOK(message))
	return err
}

// WriteErr writes an error response.
func (w *Writer) WriteErr(code ErrorCode, message string) error {
	_, err := w.w.Write(FormatErr(code, message))
	return err
}

// WritePong writes a PONG response.
func (w *Writer) WritePong() error {
	_, err := w.w.Write(FormatPong())
	return err
}

// WriteJSON writes a JSON response.
func (w *Writer) WriteJSON(data []byte) error {
	_, err := w.w.Write(FormatJSON(data))
	return err
}
