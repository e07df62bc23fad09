// Package runner serves the operation surface over the line protocol in
// pkg/protocol, for hosts that can neither link the C library nor embed a
// wasm guest.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/phonebridge/pkg/boundary"
	"github.com/openfroyo/phonebridge/pkg/engine"
	"github.com/openfroyo/phonebridge/pkg/protocol"
	"github.com/openfroyo/phonebridge/pkg/telemetry"
)

// ABI labels calls arriving through the runner.
const ABI = "runner"

// Exit reasons reported in EXIT.
const (
	ReasonStdinClosed   = "stdin_closed"
	ReasonExitRequested = "exit_requested"
	ReasonCanceled      = "canceled"
	ReasonError         = "error"
)

// Runner answers CALL messages one at a time.
type Runner struct {
	surface   *boundary.Surface
	logger    *telemetry.Logger
	version   string
	sessionID string
	calls     int
}

// New creates a runner over surface. version is reported in READY.
func New(surface *boundary.Surface, version string) (*Runner, error) {
	if surface == nil {
		return nil, fmt.Errorf("runner: surface is required")
	}

	logger := telemetry.NopLogger()
	if tel := surface.Telemetry(); tel != nil && tel.Logger != nil {
		logger = tel.Logger
	}
	sessionID := uuid.NewString()

	return &Runner{
		surface:   surface,
		logger:    logger.NewComponentLogger("runner").WithField("session_id", sessionID),
		version:   version,
		sessionID: sessionID,
	}, nil
}

// SessionID returns the identifier announced in READY.
func (r *Runner) SessionID() string {
	return r.sessionID
}

// Serve sends READY, answers calls read from in until it ends, an EXIT
// arrives or ctx is done, then sends EXIT. The returned error is non-nil only
// when the stream itself failed.
func (r *Runner) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	enc := protocol.NewEncoder(out)
	dec := protocol.NewDecoder(in)

	if err := enc.EncodeReady(&protocol.ReadyMessage{
		SessionID:  r.sessionID,
		Version:    r.version,
		ABIVersion: engine.ABIVersion,
		Engine:     r.surface.Engine().Name(),
		Operations: boundary.Operations(),
		PID:        os.Getpid(),
	}); err != nil {
		return fmt.Errorf("failed to send ready: %w", err)
	}
	r.logger.Debug("runner ready")

	type decoded struct {
		msg *protocol.Message
		err error
	}
	msgs := make(chan decoded)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(msgs)
		for {
			msg, err := dec.Decode()
			select {
			case msgs <- decoded{msg, err}:
			case <-done:
				return
			}
			if errors.Is(err, io.EOF) || isStreamError(err) {
				return
			}
		}
	}()

	reason, exitCode, streamErr := ReasonStdinClosed, 0, error(nil)

loop:
	for {
		select {
		case <-ctx.Done():
			reason = ReasonCanceled
			break loop
		case d, ok := <-msgs:
			if !ok || errors.Is(d.err, io.EOF) {
				break loop
			}
			if d.err != nil {
				if isStreamError(d.err) {
					reason, exitCode, streamErr = ReasonError, 1, d.err
					break loop
				}
				r.logger.WithError(d.err).Warn("bad message")
				if err := enc.EncodeError(&protocol.ErrorMessage{Code: protocol.ErrCodeBadMessage, Message: d.err.Error()}); err != nil {
					return err
				}
				continue
			}
			if d.msg.Type == protocol.MessageTypeExit {
				reason = ReasonExitRequested
				break loop
			}
			if err := r.handle(ctx, enc, d.msg); err != nil {
				return err
			}
		}
	}

	r.logger.WithFields(map[string]interface{}{"reason": reason, "calls": r.calls}).Debug("runner exiting")
	if err := enc.EncodeExit(&protocol.ExitMessage{Reason: reason, ExitCode: exitCode, CallsTotal: r.calls}); err != nil && streamErr == nil {
		streamErr = err
	}
	return streamErr
}

// isStreamError reports decode errors after which no further lines can be
// read, as opposed to a single malformed line.
func isStreamError(err error) bool {
	var se *protocol.StreamError
	return errors.As(err, &se)
}

// handle answers one message with RESULT or ERROR.
func (r *Runner) handle(ctx context.Context, enc *protocol.Encoder, msg *protocol.Message) error {
	call, err := protocol.ParseCall(msg)
	if err != nil {
		return enc.EncodeError(&protocol.ErrorMessage{Code: protocol.ErrCodeBadMessage, Message: err.Error()})
	}
	r.calls++

	start := time.Now()
	result, perr := r.dispatch(ctx, call)
	if perr != nil {
		perr.CallID = call.ID
		r.logger.WithField("call_id", call.ID).Warnf("%s: %s", perr.Code, perr.Message)
		return enc.EncodeError(perr)
	}

	return enc.EncodeResult(&protocol.ResultMessage{
		CallID:   call.ID,
		Result:   result,
		Duration: time.Since(start).Seconds(),
	})
}

func (r *Runner) dispatch(ctx context.Context, call *protocol.CallMessage) (json.RawMessage, *protocol.ErrorMessage) {
	switch call.Operation {
	case boundary.OpFormat:
		var p protocol.FormatParams
		if err := protocol.ParseParams(call.Params, &p); err != nil {
			return nil, badParams(err)
		}
		number, region, err := r.texts(ctx, call.Operation, p.Number, p.Region)
		if err != nil {
			return envelope(boundary.Fail[string](err))
		}
		format, err := engine.ParseNumberFormat(p.Format)
		if err != nil {
			return envelope(boundary.Fail[string](r.surface.Reject(ctx, call.Operation, err)))
		}
		return envelope(r.surface.Format(ctx, number, region, format))

	case boundary.OpClassify:
		number, region, perr, refused := r.numberParams(ctx, call)
		switch {
		case perr != nil:
			return nil, perr
		case refused != nil:
			return envelope(boundary.Fail[engine.NumberType](refused))
		}
		return envelope(r.surface.Classify(ctx, number, region))

	case boundary.OpRegionInfo:
		number, region, perr, refused := r.numberParams(ctx, call)
		switch {
		case perr != nil:
			return nil, perr
		case refused != nil:
			return envelope(boundary.Fail[boundary.RegionInfo](refused))
		}
		return envelope(r.surface.RegionInfo(ctx, number, region))

	case boundary.OpIsValid:
		number, region, perr, refused := r.numberParams(ctx, call)
		switch {
		case perr != nil:
			return nil, perr
		case refused != nil:
			return envelope(boundary.Fail[bool](refused))
		}
		return envelope(r.surface.IsValid(ctx, number, region))

	case boundary.OpRegionForCallingCode:
		var p protocol.CallingCodeParams
		if err := protocol.ParseParams(call.Params, &p); err != nil {
			return nil, badParams(err)
		}
		return envelope(r.surface.RegionForCallingCode(ctx, p.CallingCode))

	default:
		return nil, &protocol.ErrorMessage{
			Code:    protocol.ErrCodeUnknownOperation,
			Message: fmt.Sprintf("unknown operation %q", call.Operation),
		}
	}
}

// numberParams decodes NumberParams. perr reports undecodable params;
// refused reports a missing argument, which still gets a RESULT.
func (r *Runner) numberParams(ctx context.Context, call *protocol.CallMessage) (string, string, *protocol.ErrorMessage, error) {
	var p protocol.NumberParams
	if err := protocol.ParseParams(call.Params, &p); err != nil {
		return "", "", badParams(err), nil
	}
	number, region, err := r.texts(ctx, call.Operation, p.Number, p.Region)
	return number, region, nil, err
}

// texts rejects missing text arguments the way the native bridges reject
// NULL pointers.
func (r *Runner) texts(ctx context.Context, op string, number, region *string) (string, string, error) {
	if number == nil {
		return "", "", r.surface.Reject(ctx, op, boundary.NullInput(boundary.ArgNumber))
	}
	if region == nil {
		return "", "", r.surface.Reject(ctx, op, boundary.NullInput(boundary.ArgRegion))
	}
	return *number, *region, nil
}

func envelope[T any](res boundary.Result[T]) (json.RawMessage, *protocol.ErrorMessage) {
	b, err := json.Marshal(res)
	if err != nil {
		return nil, &protocol.ErrorMessage{Code: protocol.ErrCodeBadMessage, Message: err.Error()}
	}
	return b, nil
}

func badParams(err error) *protocol.ErrorMessage {
	return &protocol.ErrorMessage{Code: protocol.ErrCodeBadParams, Message: err.Error()}
}
