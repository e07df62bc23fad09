package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// maxLineBytes bounds a single message.
const maxLineBytes = 1 << 20

// Encoder writes protocol messages to an io.Writer. It is safe for
// concurrent use.
type Encoder struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewEncoder creates a new protocol encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w: bufio.NewWriter(w),
	}
}

// Encode writes a message to the output stream.
func (e *Encoder) Encode(msgType MessageType, data interface{}) error {
	if err := msgType.Validate(); err != nil {
		return fmt.Errorf("invalid message type: %w", err)
	}

	var dataBytes []byte
	var err error
	if data != nil {
		dataBytes, err = json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal data: %w", err)
		}
	}

	msgBytes, err := json.Marshal(Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      dataBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.w.Write(msgBytes); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// EncodeReady sends a READY message.
func (e *Encoder) EncodeReady(ready *ReadyMessage) error {
	return e.Encode(MessageTypeReady, ready)
}

// EncodeCall sends a CALL message.
func (e *Encoder) EncodeCall(call *CallMessage) error {
	if err := call.Validate(); err != nil {
		return fmt.Errorf("invalid call: %w", err)
	}
	return e.Encode(MessageTypeCall, call)
}

// EncodeResult sends a RESULT message.
func (e *Encoder) EncodeResult(result *ResultMessage) error {
	return e.Encode(MessageTypeResult, result)
}

// EncodeError sends an ERROR message.
func (e *Encoder) EncodeError(err *ErrorMessage) error {
	return e.Encode(MessageTypeError, err)
}

// EncodeExit sends an EXIT message.
func (e *Encoder) EncodeExit(exit *ExitMessage) error {
	return e.Encode(MessageTypeExit, exit)
}

// StreamError is returned by Decode when the underlying stream failed and
// no further messages can be read.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return "scan error: " + e.Err.Error()
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Decoder reads protocol messages from an io.Reader.
type Decoder struct {
	r *bufio.Scanner
}

// NewDecoder creates a new protocol decoder.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Decoder{
		r: scanner,
	}
}

// Decode reads the next message from the input stream. It returns io.EOF
// when the stream ends cleanly.
func (d *Decoder) Decode() (*Message, error) {
	if !d.r.Scan() {
		if err := d.r.Err(); err != nil {
			return nil, &StreamError{Err: err}
		}
		return nil, io.EOF
	}

	line := d.r.Bytes()
	if len(line) == 0 {
		return nil, fmt.Errorf("empty line")
	}

	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	if err := msg.Type.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	return &msg, nil
}

// DecodeInto unmarshals the data of msg after checking its type.
func DecodeInto(msg *Message, want MessageType, target interface{}) error {
	if msg.Type != want {
		return fmt.Errorf("expected %s message, got %s", want, msg.Type)
	}
	if err := json.Unmarshal(msg.Data, target); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", want, err)
	}
	return nil
}

// ParseCall decodes and validates a CALL message.
func ParseCall(msg *Message) (*CallMessage, error) {
	var call CallMessage
	if err := DecodeInto(msg, MessageTypeCall, &call); err != nil {
		return nil, err
	}
	if err := call.Validate(); err != nil {
		return nil, fmt.Errorf("invalid call: %w", err)
	}
	return &call, nil
}

// ParseParams parses call parameters into a specific type. Unknown fields
// are rejected.
func ParseParams(params json.RawMessage, target interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("failed to parse params: %w", err)
	}
	return nil
}
