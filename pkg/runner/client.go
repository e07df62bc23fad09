package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/phonebridge/pkg/boundary"
	"github.com/openfroyo/phonebridge/pkg/engine"
	"github.com/openfroyo/phonebridge/pkg/protocol"
)

// ProtocolError is an ERROR message received in answer to a call.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("runner error %s: %s", e.Code, e.Message)
}

// Client talks to a runner over a pair of streams, typically the stdout and
// stdin of a phone-runner process. Calls are serialized.
type Client struct {
	mu      sync.Mutex
	encoder *protocol.Encoder
	decoder *protocol.Decoder
	stdin   io.WriteCloser
	ready   *protocol.ReadyMessage
	closed  bool
}

// NewClient creates a client that reads runner output from stdout and
// writes calls to stdin.
func NewClient(stdout io.Reader, stdin io.WriteCloser) *Client {
	return &Client{
		encoder: protocol.NewEncoder(stdin),
		decoder: protocol.NewDecoder(stdout),
		stdin:   stdin,
	}
}

// Start waits for the runner's READY message.
func (c *Client) Start(ctx context.Context, timeout time.Duration) (*protocol.ReadyMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	readyCh := make(chan *protocol.ReadyMessage, 1)
	errCh := make(chan error, 1)

	go func() {
		msg, err := c.decoder.Decode()
		if err != nil {
			errCh <- err
			return
		}
		var ready protocol.ReadyMessage
		if err := protocol.DecodeInto(msg, protocol.MessageTypeReady, &ready); err != nil {
			errCh <- err
			return
		}
		readyCh <- &ready
	}()

	select {
	case <-readyCtx.Done():
		return nil, fmt.Errorf("timeout waiting for READY message")
	case err := <-errCh:
		return nil, fmt.Errorf("failed to receive READY: %w", err)
	case ready := <-readyCh:
		c.ready = ready
		return ready, nil
	}
}

// Ready returns the READY message received by Start.
func (c *Client) Ready() *protocol.ReadyMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Call sends one operation and returns the raw envelope from its RESULT.
// An ERROR answer is returned as *ProtocolError.
func (c *Client) Call(ctx context.Context, operation string, params interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	call := &protocol.CallMessage{ID: uuid.NewString(), Operation: operation, Params: raw}
	if err := c.encoder.EncodeCall(call); err != nil {
		return nil, fmt.Errorf("failed to send call: %w", err)
	}

	for {
		msg, err := c.decoder.Decode()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		switch msg.Type {
		case protocol.MessageTypeResult:
			var res protocol.ResultMessage
			if err := protocol.DecodeInto(msg, protocol.MessageTypeResult, &res); err != nil {
				return nil, err
			}
			if res.CallID != call.ID {
				return nil, fmt.Errorf("call ID mismatch: expected %s, got %s", call.ID, res.CallID)
			}
			return res.Result, nil

		case protocol.MessageTypeError:
			var errMsg protocol.ErrorMessage
			if err := protocol.DecodeInto(msg, protocol.MessageTypeError, &errMsg); err != nil {
				return nil, err
			}
			if errMsg.CallID != "" && errMsg.CallID != call.ID {
				return nil, fmt.Errorf("call ID mismatch: expected %s, got %s", call.ID, errMsg.CallID)
			}
			return nil, &ProtocolError{Code: errMsg.Code, Message: errMsg.Message}

		case protocol.MessageTypeExit:
			return nil, fmt.Errorf("runner exited unexpectedly")

		default:
			return nil, fmt.Errorf("unexpected message type: %s", msg.Type)
		}
	}
}

func call[T any](ctx context.Context, c *Client, operation string, params interface{}) (boundary.Result[T], error) {
	raw, err := c.Call(ctx, operation, params)
	if err != nil {
		return boundary.Result[T]{}, err
	}
	var res boundary.Result[T]
	if err := json.Unmarshal(raw, &res); err != nil {
		return boundary.Result[T]{}, fmt.Errorf("failed to decode result: %w", err)
	}
	return res, nil
}

// Format calls format.
func (c *Client) Format(ctx context.Context, number, region string, format engine.NumberFormat) (boundary.Result[string], error) {
	return call[string](ctx, c, boundary.OpFormat, protocol.FormatParams{Number: &number, Region: &region, Format: format.String()})
}

// Classify calls classify.
func (c *Client) Classify(ctx context.Context, number, region string) (boundary.Result[engine.NumberType], error) {
	return call[engine.NumberType](ctx, c, boundary.OpClassify, protocol.NumberParams{Number: &number, Region: &region})
}

// RegionForCallingCode calls region_for_calling_code.
func (c *Client) RegionForCallingCode(ctx context.Context, code uint16) (boundary.Result[string], error) {
	return call[string](ctx, c, boundary.OpRegionForCallingCode, protocol.CallingCodeParams{CallingCode: code})
}

// RegionInfo calls region_info.
func (c *Client) RegionInfo(ctx context.Context, number, region string) (boundary.Result[boundary.RegionInfo], error) {
	return call[boundary.RegionInfo](ctx, c, boundary.OpRegionInfo, protocol.NumberParams{Number: &number, Region: &region})
}

// IsValid calls is_valid.
func (c *Client) IsValid(ctx context.Context, number, region string) (boundary.Result[bool], error) {
	return call[bool](ctx, c, boundary.OpIsValid, protocol.NumberParams{Number: &number, Region: &region})
}

// Close closes the runner's stdin, which ends its session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.stdin.Close(); err != nil {
		return fmt.Errorf("failed to close stdin: %w", err)
	}
	return nil
}
