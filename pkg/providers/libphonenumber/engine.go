// Package libphonenumber adapts github.com/nyaruka/phonenumbers to the
// engine.Engine contract.
//
// The library compiles its regional metadata into the binary and builds its
// lookup tables on first use. Warmup forces that work once per process so that
// every later call only reads shared state.
package libphonenumber

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nyaruka/phonenumbers"
	"github.com/openfroyo/phonebridge/pkg/engine"
)

// Name is the engine name reported in logs and metrics.
const Name = "libphonenumber"

// unknownRegion is the library's placeholder for "no region".
const unknownRegion = "ZZ"

var warmupOnce sync.Once

// Engine implements engine.Engine on top of nyaruka/phonenumbers.
type Engine struct{}

var _ engine.Engine = (*Engine)(nil)

// New creates the engine after making sure metadata is loaded and that every
// region in warmupRegions is known to it.
func New(warmupRegions ...string) (*Engine, error) {
	Warmup()

	for _, region := range warmupRegions {
		if phonenumbers.GetCountryCodeForRegion(normalizeRegion(region)) == 0 {
			return nil, fmt.Errorf("warmup region %q is not known to %s", region, Name)
		}
	}

	return &Engine{}, nil
}

// Warmup loads the process-wide metadata. It is idempotent and safe to call
// from multiple goroutines.
func Warmup() {
	warmupOnce.Do(func() {
		if num, err := phonenumbers.Parse("+14155552671", ""); err == nil {
			_ = phonenumbers.GetNumberType(num)
			_ = phonenumbers.Format(num, phonenumbers.INTERNATIONAL)
		}
	})
}

// Name implements engine.Engine.
func (e *Engine) Name() string {
	return Name
}

// Parse implements engine.Engine.
func (e *Engine) Parse(text, region string) (*engine.ParsedNumber, error) {
	region = normalizeRegion(region)

	// An empty region only admits numbers with a leading "+"; any other
	// region must have metadata even when the text carries its own code.
	if region != "" && phonenumbers.GetCountryCodeForRegion(region) == 0 {
		return nil, engine.NewUnknownRegionError("region code has no metadata", nil).
			WithDetail("region", region)
	}

	num, err := phonenumbers.Parse(text, region)
	if err != nil {
		return nil, classifyParseError(text, region, err)
	}

	code := num.GetCountryCode()
	if code <= 0 || code > 0xFFFF {
		return nil, engine.NewUnparseableError("calling code out of range", nil).
			WithDetail("calling_code", code)
	}

	return engine.NewParsedNumber(uint16(code), num.GetNationalNumber(), num), nil
}

// Render implements engine.Engine.
func (e *Engine) Render(number *engine.ParsedNumber, format engine.NumberFormat) string {
	return phonenumbers.Format(native(number), toLibFormat(format))
}

// Classify implements engine.Engine.
func (e *Engine) Classify(number *engine.ParsedNumber) engine.NumberType {
	return fromLibType(phonenumbers.GetNumberType(native(number)))
}

// IsValidNumber implements engine.Engine.
func (e *Engine) IsValidNumber(number *engine.ParsedNumber) bool {
	return phonenumbers.IsValidNumber(native(number))
}

// RegionByCallingCode implements engine.Engine.
func (e *Engine) RegionByCallingCode(code uint16) (string, error) {
	region := phonenumbers.GetRegionCodeForCountryCode(int(code))
	if region == "" || region == unknownRegion {
		return "", engine.NewUnknownRegionError("calling code is not assigned to a region", nil).
			WithCode(engine.ErrCodeCallingCodeNotFound).
			WithDetail("calling_code", code)
	}
	return region, nil
}

// RegionForNumber implements engine.Engine. Numbers that match no region's
// patterns are labelled with the main region of their calling code.
func (e *Engine) RegionForNumber(number *engine.ParsedNumber) string {
	region := phonenumbers.GetRegionCodeForNumber(native(number))
	if region != "" && region != unknownRegion {
		return region
	}
	return phonenumbers.GetRegionCodeForCountryCode(int(number.CallingCode))
}

// native unwraps a ParsedNumber produced by this engine. Anything else is a
// programming error and panics; the boundary recovers it as an internal fault.
func native(number *engine.ParsedNumber) *phonenumbers.PhoneNumber {
	if number == nil {
		panic("libphonenumber: nil parsed number")
	}
	num, ok := number.Native().(*phonenumbers.PhoneNumber)
	if !ok || num == nil {
		panic(fmt.Sprintf("libphonenumber: foreign parsed number %T", number.Native()))
	}
	return num
}

// normalizeRegion upper-cases ASCII region codes; the library's tables are
// keyed by upper-case ISO codes.
func normalizeRegion(region string) string {
	return strings.ToUpper(strings.TrimSpace(region))
}

func classifyParseError(text, region string, err error) error {
	if errors.Is(err, phonenumbers.ErrInvalidCountryCode) {
		// Without a leading "+" and without a region there is no calling code
		// to read the number under.
		if region == "" && !strings.HasPrefix(strings.TrimSpace(text), "+") {
			return engine.NewUnknownRegionError("region code has no metadata", err).
				WithDetail("region", region)
		}
	}
	return engine.NewUnparseableError("failed to parse phone number", err)
}

func toLibFormat(format engine.NumberFormat) phonenumbers.PhoneNumberFormat {
	switch format {
	case engine.FormatE164:
		return phonenumbers.E164
	case engine.FormatInternational:
		return phonenumbers.INTERNATIONAL
	case engine.FormatNational:
		return phonenumbers.NATIONAL
	case engine.FormatRFC3966:
		return phonenumbers.RFC3966
	default:
		panic(fmt.Sprintf("libphonenumber: unsupported format %s", format))
	}
}

var libTypes = map[phonenumbers.PhoneNumberType]engine.NumberType{
	phonenumbers.FIXED_LINE:           engine.TypeFixedLine,
	phonenumbers.MOBILE:               engine.TypeMobile,
	phonenumbers.FIXED_LINE_OR_MOBILE: engine.TypeFixedLineOrMobile,
	phonenumbers.TOLL_FREE:            engine.TypeTollFree,
	phonenumbers.PREMIUM_RATE:         engine.TypePremiumRate,
	phonenumbers.SHARED_COST:          engine.TypeSharedCost,
	phonenumbers.VOIP:                 engine.TypeVoIP,
	phonenumbers.PERSONAL_NUMBER:      engine.TypePersonalNumber,
	phonenumbers.PAGER:                engine.TypePager,
	phonenumbers.UAN:                  engine.TypeUAN,
	phonenumbers.VOICEMAIL:            engine.TypeVoicemail,
	phonenumbers.UNKNOWN:              engine.TypeUnknown,
}

func fromLibType(t phonenumbers.PhoneNumberType) engine.NumberType {
	if mapped, ok := libTypes[t]; ok {
		return mapped
	}
	return engine.TypeUnknown
}
