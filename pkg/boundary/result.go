package boundary

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openfroyo/phonebridge/pkg/engine"
)

// internalMessage is the only text a caller sees for an engine fault.
const internalMessage = "phone number engine failed"

// Result is the outcome of one boundary operation: either a value or an
// error, never both.
type Result[T any] struct {
	value T
	err   *engine.Error
	msg   string
}

// Ok wraps a successful value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Fail wraps an error. Errors that are not classified become internal
// failures with a generic message, and a nil error is treated the same way.
func Fail[T any](err error) Result[T] {
	e := classify(err)
	return Result[T]{err: e, msg: e.Error()}
}

func classify(err error) *engine.Error {
	var e *engine.Error
	if errors.As(err, &e) && e != nil {
		return e
	}
	return engine.NewInternalError(internalMessage, err)
}

// FromMessage rebuilds a failure from the flat message a native caller
// received. The class is recovered from the "[class] " prefix; text without
// one is treated as internal.
func FromMessage[T any](msg string) Result[T] {
	class := engine.ErrorClassInternal
	if strings.HasPrefix(msg, "[") {
		if end := strings.Index(msg, "] "); end > 1 {
			class = engine.ErrorClass(msg[1:end])
		}
	}
	return fromWire[T](class, "", msg)
}

func fromWire[T any](class engine.ErrorClass, code, msg string) Result[T] {
	return Result[T]{
		err: &engine.Error{
			Class:   class,
			Code:    code,
			Message: strings.TrimPrefix(msg, "["+string(class)+"] "),
		},
		msg: msg,
	}
}

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// Value returns the value and whether there was one. On failure it returns
// the zero value.
func (r Result[T]) Value() (T, bool) {
	if r.err != nil {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Err returns the failure as an error, or nil on success.
func (r Result[T]) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// Failure returns the classified failure, or nil on success.
func (r Result[T]) Failure() *engine.Error {
	return r.err
}

// Message returns the caller-visible error text, or "" on success.
func (r Result[T]) Message() string {
	return r.msg
}

// Unwrap returns the value and error in Go's usual two-value form.
func (r Result[T]) Unwrap() (T, error) {
	v, _ := r.Value()
	return v, r.Err()
}

// String renders the result for logs and test failures.
func (r Result[T]) String() string {
	if r.err != nil {
		return "Fail(" + r.msg + ")"
	}
	return fmt.Sprintf("Ok(%v)", r.value)
}

type wireError struct {
	Class   engine.ErrorClass `json:"class"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
}

type wireResult struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *wireError      `json:"error,omitempty"`
}

// MarshalJSON encodes the result as {"data": value} or
// {"error": {"class", "code", "message"}}.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.err != nil {
		return json.Marshal(wireResult{Error: &wireError{
			Class:   r.err.Class,
			Code:    r.err.Code,
			Message: r.msg,
		}})
	}
	data, err := json.Marshal(r.value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireResult{Data: data})
}

// UnmarshalJSON decodes the form written by MarshalJSON. Exactly one of data
// and error must be present.
func (r *Result[T]) UnmarshalJSON(b []byte) error {
	var w wireResult
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	switch {
	case w.Error != nil && len(w.Data) > 0:
		return fmt.Errorf("result carries both data and error")
	case w.Error != nil:
		*r = fromWire[T](w.Error.Class, w.Error.Code, w.Error.Message)
		return nil
	case len(w.Data) > 0:
		var v T
		if err := json.Unmarshal(w.Data, &v); err != nil {
			return err
		}
		*r = Ok(v)
		return nil
	default:
		return fmt.Errorf("result carries neither data nor error")
	}
}
