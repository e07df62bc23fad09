package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	cause := errors.New("the phone number supplied is not a number")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "unparseable keeps cause",
			err:  NewUnparseableError("failed to parse phone number", cause),
			want: "[unparseable] failed to parse phone number: the phone number supplied is not a number",
		},
		{
			name: "operation is rendered",
			err:  NewUnknownRegionError("unknown region code", nil).WithOperation("format"),
			want: "[unknown_region] unknown region code (operation=format)",
		},
		{
			name: "internal hides cause",
			err:  NewInternalError("phone number engine failed", errors.New("index out of range")),
			want: "[internal] phone number engine failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorClassHelpers(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", NewUnknownRegionError("no region", nil))

	if !IsUnknownRegion(wrapped) {
		t.Error("expected wrapped error to be classified as unknown region")
	}
	if IsUnparseable(wrapped) {
		t.Error("unknown region must not be reported as unparseable")
	}
	if got := ClassOf(wrapped); got != ErrorClassUnknownRegion {
		t.Errorf("ClassOf() = %s", got)
	}
	if got := ClassOf(errors.New("plain")); got != ErrorClassInternal {
		t.Errorf("ClassOf(plain) = %s, want internal", got)
	}
	if !IsEncoding(NewEncodingError("bad text", nil)) {
		t.Error("expected encoding class")
	}
	if !IsInternal(NewInternalError("boom", nil)) {
		t.Error("expected internal class")
	}
}

func TestErrorIsComparesClassAndCode(t *testing.T) {
	err := NewUnparseableError("failed", nil)
	if !errors.Is(err, &Error{Class: ErrorClassUnparseable, Code: ErrCodeParseFailed}) {
		t.Error("expected errors.Is to match on class and code")
	}
	if errors.Is(err, &Error{Class: ErrorClassUnparseable, Code: ErrCodeInvalidUTF8}) {
		t.Error("different code must not match")
	}
	if !errors.Is(err.WithDetail("field", "phone_number"), &Error{Class: ErrorClassUnparseable, Code: ErrCodeParseFailed}) {
		t.Error("details must not affect matching")
	}
}
