package boundary

import (
	"unicode/utf8"

	"github.com/openfroyo/phonebridge/pkg/engine"
)

// Argument names used in encoding failures.
const (
	ArgNumber = "number"
	ArgRegion = "region"
)

// NullInput reports a required text argument that arrived as a NULL pointer.
func NullInput(arg string) *engine.Error {
	return engine.NewEncodingError(arg+" is null", nil).
		WithCode(engine.ErrCodeNullInput).
		WithDetail("argument", arg)
}

// CheckText verifies that a text argument is well-formed UTF-8.
func CheckText(arg, text string) error {
	if utf8.ValidString(text) {
		return nil
	}
	return engine.NewEncodingError(arg+" is not valid UTF-8", nil).
		WithDetail("argument", arg)
}

// checkPair validates the (number, region) pair shared by most operations.
func checkPair(number, region string) error {
	if err := CheckText(ArgNumber, number); err != nil {
		return err
	}
	return CheckText(ArgRegion, region)
}
