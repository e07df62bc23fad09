package boundary

import (
	"context"
	"errors"

	"github.com/openfroyo/phonebridge/pkg/engine"
	"github.com/openfroyo/phonebridge/pkg/telemetry"
)

// Operation names, shared by logs, metrics, spans and the stdio protocol.
const (
	OpFormat               = "format"
	OpClassify             = "classify"
	OpRegionForCallingCode = "region_for_calling_code"
	OpRegionInfo           = "region_info"
	OpIsValid              = "is_valid"
)

// Operations lists every operation the surface exposes.
func Operations() []string {
	return []string{OpFormat, OpClassify, OpRegionForCallingCode, OpRegionInfo, OpIsValid}
}

// ABIGo labels calls made directly from Go.
const ABIGo = "go"

// Surface exposes the phone-number operations over an engine. It is safe for
// concurrent use and holds no per-call state.
type Surface struct {
	engine engine.Engine
	tel    *telemetry.Telemetry
	abi    string
}

// Option configures a Surface.
type Option func(*Surface)

// WithTelemetry attaches logging, tracing and metrics.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(s *Surface) {
		s.tel = tel
	}
}

// WithABI names the native boundary the surface serves, e.g. "c" or "wasm".
func WithABI(abi string) Option {
	return func(s *Surface) {
		s.abi = abi
	}
}

// NewSurface creates a surface over e.
func NewSurface(e engine.Engine, opts ...Option) (*Surface, error) {
	if e == nil {
		return nil, errors.New("boundary: engine is required")
	}
	s := &Surface{engine: e, abi: ABIGo}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Engine returns the engine the surface delegates to.
func (s *Surface) Engine() engine.Engine {
	return s.engine
}

// Telemetry returns the attached telemetry, which may be nil.
func (s *Surface) Telemetry() *telemetry.Telemetry {
	return s.tel
}

// Format renders number, read under region, in the given format.
func (s *Surface) Format(ctx context.Context, number, region string, format engine.NumberFormat) Result[string] {
	return invoke(ctx, s, OpFormat, func(context.Context) (string, error) {
		if err := checkPair(number, region); err != nil {
			return "", err
		}
		if _, err := engine.NumberFormatFromOrdinal(format.Ordinal()); err != nil {
			return "", err
		}
		parsed, err := s.engine.Parse(number, region)
		if err != nil {
			return "", err
		}
		return s.engine.Render(parsed, format), nil
	})
}

// Classify returns the number's type. Text the engine cannot read as a
// number is Unknown rather than a failure.
func (s *Surface) Classify(ctx context.Context, number, region string) Result[engine.NumberType] {
	return invoke(ctx, s, OpClassify, func(context.Context) (engine.NumberType, error) {
		if err := checkPair(number, region); err != nil {
			return engine.TypeUnknown, err
		}
		parsed, err := s.engine.Parse(number, region)
		if engine.IsUnparseable(err) {
			return engine.TypeUnknown, nil
		}
		if err != nil {
			return engine.TypeUnknown, err
		}
		return s.engine.Classify(parsed), nil
	})
}

// RegionForCallingCode returns the main region for an international calling
// code. Unassigned codes fail.
func (s *Surface) RegionForCallingCode(ctx context.Context, code uint16) Result[string] {
	return invoke(ctx, s, OpRegionForCallingCode, func(context.Context) (string, error) {
		return s.engine.RegionByCallingCode(code)
	})
}

// RegionInfo parses number and describes it.
func (s *Surface) RegionInfo(ctx context.Context, number, region string) Result[RegionInfo] {
	return invoke(ctx, s, OpRegionInfo, func(context.Context) (RegionInfo, error) {
		if err := checkPair(number, region); err != nil {
			return RegionInfo{}, err
		}
		parsed, err := s.engine.Parse(number, region)
		if err != nil {
			return RegionInfo{}, err
		}
		info := RegionInfo{
			RegionCode:       parsed.CallingCode,
			PhoneNumberValue: parsed.NationalNumber,
			CountryCode:      s.engine.RegionForNumber(parsed),
			FormattedNumber:  s.engine.Render(parsed, engine.FormatInternational),
		}
		if err := info.Validate(); err != nil {
			return RegionInfo{}, err
		}
		return info, nil
	})
}

// IsValid reports whether number is a valid number under region. Text the
// engine rejects is reported as false. Encoding faults and unknown regions
// fail.
func (s *Surface) IsValid(ctx context.Context, number, region string) Result[bool] {
	return invoke(ctx, s, OpIsValid, func(context.Context) (bool, error) {
		if err := checkPair(number, region); err != nil {
			return false, err
		}
		parsed, err := s.engine.Parse(number, region)
		if engine.IsUnparseable(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return s.engine.IsValidNumber(parsed), nil
	})
}

// Reject records a call that a native bridge refused before it reached the
// surface, such as a NULL argument, and returns the classified error.
func (s *Surface) Reject(ctx context.Context, operation string, err error) error {
	e := classify(err).WithOperation(operation)
	ic := s.tel.StartOperation(ctx, s.abi, operation)
	ic.End(e)
	return e
}

// invoke runs fn under telemetry and turns errors and panics into a Result.
func invoke[T any](ctx context.Context, s *Surface, operation string, fn func(context.Context) (T, error)) (res Result[T]) {
	ic := s.tel.StartOperation(ctx, s.abi, operation)

	defer func() {
		if r := recover(); r != nil {
			ic.Panicked(r)
			res = Fail[T](engine.NewInternalError(internalMessage, nil).
				WithCode(engine.ErrCodeEnginePanic).
				WithOperation(operation))
		}
		ic.End(res.Err())
	}()

	value, err := fn(ic.Ctx)
	if err != nil {
		return Fail[T](classify(err).WithOperation(operation))
	}
	return Ok(value)
}
