// Package protocol defines the JSON-over-stdio protocol spoken by
// phone-runner. Each message is one JSON object per line.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType represents the type of message in the protocol.
type MessageType string

const (
	// MessageTypeReady is sent once by the runner before it reads calls
	MessageTypeReady MessageType = "READY"
	// MessageTypeCall asks the runner to perform one operation
	MessageTypeCall MessageType = "CALL"
	// MessageTypeResult carries the envelope for a call
	MessageTypeResult MessageType = "RESULT"
	// MessageTypeError reports a protocol fault, not an operation failure
	MessageTypeError MessageType = "ERROR"
	// MessageTypeExit is sent before the runner terminates
	MessageTypeExit MessageType = "EXIT"
)

// Protocol error codes.
const (
	ErrCodeBadMessage       = "BAD_MESSAGE"
	ErrCodeUnknownOperation = "UNKNOWN_OPERATION"
	ErrCodeBadParams        = "BAD_PARAMS"
)

// Message is the base message structure for all protocol messages.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ReadyMessage announces the session and what it can do.
type ReadyMessage struct {
	SessionID  string   `json:"session_id"`
	Version    string   `json:"version"`
	ABIVersion uint32   `json:"abi_version"`
	Engine     string   `json:"engine"`
	Operations []string `json:"operations"`
	PID        int      `json:"pid"`
}

// CallMessage requests one operation.
type CallMessage struct {
	ID        string          `json:"id"`
	Operation string          `json:"operation"`
	Params    json.RawMessage `json:"params"`
}

// ResultMessage answers a call. Result is the envelope, either
// {"data": value} or {"error": {"class", "code", "message"}}.
type ResultMessage struct {
	CallID   string          `json:"call_id"`
	Result   json.RawMessage `json:"result"`
	Duration float64         `json:"duration"` // seconds
}

// ErrorMessage reports a message the runner could not act on.
type ErrorMessage struct {
	CallID  string `json:"call_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExitMessage is sent before the runner terminates.
type ExitMessage struct {
	Reason     string `json:"reason"`
	ExitCode   int    `json:"exit_code"`
	CallsTotal int    `json:"calls_total"`
}

// Operation parameter structures. Text arguments are pointers so that an
// explicit null reaches the operation as a missing argument.

// NumberParams is used by classify, region_info and is_valid.
type NumberParams struct {
	Number *string `json:"number"`
	Region *string `json:"region"`
}

// FormatParams is used by format. Format is a symbolic name such as "E164".
type FormatParams struct {
	Number *string `json:"number"`
	Region *string `json:"region"`
	Format string  `json:"format"`
}

// CallingCodeParams is used by region_for_calling_code.
type CallingCodeParams struct {
	CallingCode uint16 `json:"calling_code"`
}

// Validate checks if the message type is valid.
func (mt MessageType) Validate() error {
	switch mt {
	case MessageTypeReady, MessageTypeCall, MessageTypeResult,
		MessageTypeError, MessageTypeExit:
		return nil
	default:
		return fmt.Errorf("invalid message type: %s", mt)
	}
}

// Validate checks if the call message is valid.
func (c *CallMessage) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("call ID is required")
	}
	if c.Operation == "" {
		return fmt.Errorf("operation is required")
	}
	if len(c.Params) == 0 {
		return fmt.Errorf("call params are required")
	}
	return nil
}
