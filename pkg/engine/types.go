package engine

import (
	"fmt"
)

// ABIVersion identifies the ordinal tables below. It changes whenever an ordinal
// is added; existing ordinals are never renumbered or reused.
const ABIVersion uint32 = 1

// NumberFormat selects how a parsed number is rendered.
// Values are wire ordinals and are assigned explicitly.
type NumberFormat uint32

const (
	// FormatE164 renders "+" followed by the calling code and national number,
	// with no spaces or decorations.
	FormatE164 NumberFormat = 0

	// FormatInternational renders the calling code followed by the
	// region-dependent grouping.
	FormatInternational NumberFormat = 1

	// FormatNational renders the region-dependent grouping without the calling code.
	FormatNational NumberFormat = 2

	// FormatRFC3966 renders a "tel:" URI as described in RFC 3966.
	FormatRFC3966 NumberFormat = 3
)

var numberFormatNames = map[NumberFormat]string{
	FormatE164:          "E164",
	FormatInternational: "International",
	FormatNational:      "National",
	FormatRFC3966:       "Rfc3966",
}

// NumberFormats lists every format in ordinal order.
func NumberFormats() []NumberFormat {
	return []NumberFormat{FormatE164, FormatInternational, FormatNational, FormatRFC3966}
}

// Valid reports whether f is one of the declared formats.
func (f NumberFormat) Valid() bool {
	_, ok := numberFormatNames[f]
	return ok
}

// Ordinal returns the stable wire ordinal of f.
func (f NumberFormat) Ordinal() uint32 {
	return uint32(f)
}

// String returns the symbolic name of f.
func (f NumberFormat) String() string {
	if name, ok := numberFormatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("NumberFormat(%d)", uint32(f))
}

// MarshalText encodes f by its symbolic name.
func (f NumberFormat) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid number format ordinal %d", uint32(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText decodes a symbolic format name.
func (f *NumberFormat) UnmarshalText(text []byte) error {
	parsed, err := ParseNumberFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// NumberFormatFromOrdinal converts a wire ordinal into a NumberFormat.
func NumberFormatFromOrdinal(ordinal uint32) (NumberFormat, error) {
	f := NumberFormat(ordinal)
	if !f.Valid() {
		return 0, NewInvalidArgumentError("unknown number format ordinal", nil).
			WithCode(ErrCodeInvalidFormat).
			WithDetail("ordinal", ordinal)
	}
	return f, nil
}

// ParseNumberFormat converts a symbolic name into a NumberFormat.
func ParseNumberFormat(name string) (NumberFormat, error) {
	for f, n := range numberFormatNames {
		if n == name {
			return f, nil
		}
	}
	return 0, NewInvalidArgumentError(fmt.Sprintf("unknown number format %q", name), nil).
		WithCode(ErrCodeInvalidFormat)
}

// NumberType is the category a number falls into under its region's metadata.
// Values are wire ordinals and are assigned explicitly.
type NumberType uint32

const (
	TypeFixedLine NumberType = 0
	TypeMobile    NumberType = 1

	// TypeFixedLineOrMobile is reported where fixed-line and mobile numbers
	// share a numbering range (e.g. the US).
	TypeFixedLineOrMobile NumberType = 2

	// TypeTollFree covers freephone lines.
	TypeTollFree    NumberType = 3
	TypePremiumRate NumberType = 4

	// TypeSharedCost numbers split the call cost between caller and recipient.
	TypeSharedCost NumberType = 5

	// TypePersonalNumber is tied to a person and may route to a fixed or mobile line.
	TypePersonalNumber NumberType = 6

	// TypeVoIP includes telephony service over IP.
	TypeVoIP  NumberType = 7
	TypePager NumberType = 8

	// TypeUAN covers universal access ("company") numbers.
	TypeUAN             NumberType = 9
	TypeEmergency       NumberType = 10
	TypeVoicemail       NumberType = 11
	TypeShortCode       NumberType = 12
	TypeStandardRate    NumberType = 13
	TypeCarrier         NumberType = 14
	TypeNoInternational NumberType = 15

	// TypeUnknown is reported when no pattern for the region matches.
	// It is a successful classification, not a failure.
	TypeUnknown NumberType = 16
)

var numberTypeNames = map[NumberType]string{
	TypeFixedLine:         "FixedLine",
	TypeMobile:            "Mobile",
	TypeFixedLineOrMobile: "FixedLineOrMobile",
	TypeTollFree:          "TollFree",
	TypePremiumRate:       "PremiumRate",
	TypeSharedCost:        "SharedCost",
	TypePersonalNumber:    "PersonalNumber",
	TypeVoIP:              "Voip",
	TypePager:             "Pager",
	TypeUAN:               "Uan",
	TypeEmergency:         "Emergency",
	TypeVoicemail:         "Voicemail",
	TypeShortCode:         "ShortCode",
	TypeStandardRate:      "StandardRate",
	TypeCarrier:           "Carrier",
	TypeNoInternational:   "NoInternational",
	TypeUnknown:           "Unknown",
}

// NumberTypes lists every number type in ordinal order.
func NumberTypes() []NumberType {
	types := make([]NumberType, 0, len(numberTypeNames))
	for t := TypeFixedLine; t <= TypeUnknown; t++ {
		types = append(types, t)
	}
	return types
}

// Valid reports whether t is one of the declared number types.
func (t NumberType) Valid() bool {
	_, ok := numberTypeNames[t]
	return ok
}

// Ordinal returns the stable wire ordinal of t.
func (t NumberType) Ordinal() uint32 {
	return uint32(t)
}

// String returns the symbolic name of t.
func (t NumberType) String() string {
	if name, ok := numberTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("NumberType(%d)", uint32(t))
}

// MarshalText encodes t by its symbolic name.
func (t NumberType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid number type ordinal %d", uint32(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a symbolic number type name.
func (t *NumberType) UnmarshalText(text []byte) error {
	parsed, err := ParseNumberType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// NumberTypeFromOrdinal converts a wire ordinal into a NumberType.
func NumberTypeFromOrdinal(ordinal uint32) (NumberType, error) {
	t := NumberType(ordinal)
	if !t.Valid() {
		return TypeUnknown, NewInvalidArgumentError("unknown number type ordinal", nil).
			WithDetail("ordinal", ordinal)
	}
	return t, nil
}

// ParseNumberType converts a symbolic name into a NumberType.
func ParseNumberType(name string) (NumberType, error) {
	for t, n := range numberTypeNames {
		if n == name {
			return t, nil
		}
	}
	return TypeUnknown, NewInvalidArgumentError(fmt.Sprintf("unknown number type %q", name), nil)
}

// ParsedNumber is the engine's view of a successfully parsed number.
// The native value belongs to the engine that produced it and must only be
// handed back to that engine.
type ParsedNumber struct {
	// CallingCode is the international dialing prefix, e.g. 1 or 44.
	CallingCode uint16

	// NationalNumber holds the significant digits with the calling code removed.
	NationalNumber uint64

	native any
}

// NewParsedNumber wraps an engine-native parse result.
func NewParsedNumber(callingCode uint16, nationalNumber uint64, native any) *ParsedNumber {
	return &ParsedNumber{
		CallingCode:    callingCode,
		NationalNumber: nationalNumber,
		native:         native,
	}
}

// Native returns the engine-specific value captured at parse time.
func (p *ParsedNumber) Native() any {
	return p.native
}
