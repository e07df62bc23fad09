package cabi

import (
	"strings"
	"sync"
	"testing"
	"unsafe"

	"github.com/openfroyo/phonebridge/pkg/boundary"
	"github.com/openfroyo/phonebridge/pkg/engine"
	"github.com/openfroyo/phonebridge/pkg/providers/libphonenumber"
	"github.com/openfroyo/phonebridge/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBridge(t *testing.T, tel *telemetry.Telemetry) *Bridge {
	t.Helper()
	e, err := libphonenumber.New("US", "MY")
	require.NoError(t, err)
	s, err := boundary.NewSurface(e, boundary.WithTelemetry(tel), boundary.WithABI(ABI))
	require.NoError(t, err)
	return NewBridge(s)
}

// cstr builds a C argument that is freed when the test ends.
func cstr(t *testing.T, s string) unsafe.Pointer {
	t.Helper()
	p := NewCString(s)
	t.Cleanup(func() { FreeCString(p) })
	return p
}

func TestFormatEnvelope(t *testing.T) {
	b := newBridge(t, nil)
	baseline := Outstanding()

	p := b.Format(cstr(t, "14155552671"), cstr(t, "US"), uint32(engine.FormatE164))
	require.NotNil(t, p)
	assert.Equal(t, baseline+2, Outstanding(), "envelope and data string")

	r, err := ReadStringResult(p)
	require.NoError(t, err)
	v, ok := r.Value()
	require.True(t, ok, r.String())
	assert.Equal(t, "+14155552671", v)

	b.Release(p)
	assert.Equal(t, baseline, Outstanding())
}

func TestFailureEnvelopes(t *testing.T) {
	b := newBridge(t, nil)
	baseline := Outstanding()

	tests := []struct {
		name  string
		call  func() unsafe.Pointer
		read  func(unsafe.Pointer) (engine.ErrorClass, string, error)
		class engine.ErrorClass
	}{
		{
			name:  "unparseable format",
			call:  func() unsafe.Pointer { return b.Format(cstr(t, "abc"), cstr(t, "US"), uint32(engine.FormatE164)) },
			read:  readString,
			class: engine.ErrorClassUnparseable,
		},
		{
			name:  "format ordinal out of range",
			call:  func() unsafe.Pointer { return b.Format(cstr(t, "4155552671"), cstr(t, "US"), 9) },
			read:  readString,
			class: engine.ErrorClassInvalidArgument,
		},
		{
			name:  "null number",
			call:  func() unsafe.Pointer { return b.Format(nil, cstr(t, "US"), uint32(engine.FormatE164)) },
			read:  readString,
			class: engine.ErrorClassEncoding,
		},
		{
			name:  "null region",
			call:  func() unsafe.Pointer { return b.NumberType(cstr(t, "4155552671"), nil) },
			read:  readNumberType,
			class: engine.ErrorClassEncoding,
		},
		{
			name:  "invalid utf-8",
			call:  func() unsafe.Pointer { return b.IsValid(cstr(t, "415\xff555"), cstr(t, "US")) },
			read:  readBool,
			class: engine.ErrorClassEncoding,
		},
		{
			name:  "unknown region in is valid",
			call:  func() unsafe.Pointer { return b.IsValid(cstr(t, "4155552671"), cstr(t, "XX")) },
			read:  readBool,
			class: engine.ErrorClassUnknownRegion,
		},
		{
			name:  "unassigned calling code",
			call:  func() unsafe.Pointer { return b.RegionForCallingCode(0) },
			read:  readString,
			class: engine.ErrorClassUnknownRegion,
		},
		{
			name:  "region info of text",
			call:  func() unsafe.Pointer { return b.RegionInfo(cstr(t, "abc"), cstr(t, "US")) },
			read:  readRegionInfo,
			class: engine.ErrorClassUnparseable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.call()
			require.NotNil(t, p)
			class, msg, err := tt.read(p)
			require.NoError(t, err)
			assert.Equal(t, tt.class, class)
			assert.True(t, strings.HasPrefix(msg, "["+string(tt.class)+"] "), msg)
			b.Release(p)
		})
	}

	assert.Equal(t, baseline, Outstanding())
}

func readString(p unsafe.Pointer) (engine.ErrorClass, string, error) {
	r, err := ReadStringResult(p)
	if err != nil || r.IsOk() {
		return "", "", err
	}
	return r.Failure().Class, r.Message(), nil
}

func readNumberType(p unsafe.Pointer) (engine.ErrorClass, string, error) {
	r, err := ReadNumberTypeResult(p)
	if err != nil || r.IsOk() {
		return "", "", err
	}
	return r.Failure().Class, r.Message(), nil
}

func readBool(p unsafe.Pointer) (engine.ErrorClass, string, error) {
	r, err := ReadBoolResult(p)
	if err != nil || r.IsOk() {
		return "", "", err
	}
	return r.Failure().Class, r.Message(), nil
}

func readRegionInfo(p unsafe.Pointer) (engine.ErrorClass, string, error) {
	r, err := ReadRegionInfoResult(p)
	if err != nil || r.IsOk() {
		return "", "", err
	}
	return r.Failure().Class, r.Message(), nil
}

func TestScalarEnvelopes(t *testing.T) {
	b := newBridge(t, nil)
	baseline := Outstanding()

	typ := b.NumberType(cstr(t, "0129602189"), cstr(t, "MY"))
	tr, err := ReadNumberTypeResult(typ)
	require.NoError(t, err)
	v, ok := tr.Value()
	require.True(t, ok)
	assert.Equal(t, engine.TypeMobile, v)
	b.Release(typ)

	unknown := b.NumberType(cstr(t, "not a number"), cstr(t, "US"))
	ur, err := ReadNumberTypeResult(unknown)
	require.NoError(t, err)
	v, ok = ur.Value()
	require.True(t, ok)
	assert.Equal(t, engine.TypeUnknown, v)
	b.Release(unknown)

	invalid := b.IsValid(cstr(t, "123"), cstr(t, "US"))
	br, err := ReadBoolResult(invalid)
	require.NoError(t, err)
	valid, ok := br.Value()
	require.True(t, ok, "a well-formed invalid number is success/false")
	assert.False(t, valid)
	b.Release(invalid)

	assert.Equal(t, baseline, Outstanding())
}

func TestRegionInfoEnvelope(t *testing.T) {
	b := newBridge(t, nil)
	baseline := Outstanding()

	p := b.RegionInfo(cstr(t, "0129602189"), cstr(t, "MY"))
	require.NotNil(t, p)
	assert.Equal(t, baseline+4, Outstanding(), "envelope, record and two strings")

	r, err := ReadRegionInfoResult(p)
	require.NoError(t, err)
	info, ok := r.Value()
	require.True(t, ok, r.String())
	assert.Equal(t, uint16(60), info.RegionCode)
	assert.Equal(t, uint64(129602189), info.PhoneNumberValue)
	assert.Equal(t, "MY", info.CountryCode)
	assert.True(t, strings.HasPrefix(info.FormattedNumber, "+60"))

	b.Release(p)
	assert.Equal(t, baseline, Outstanding())
}

func TestReleaseNil(t *testing.T) {
	b := newBridge(t, nil)
	baseline := Outstanding()
	assert.NotPanics(t, func() { b.Release(nil) })
	assert.Equal(t, baseline, Outstanding())
}

func TestBridgeWithoutSurface(t *testing.T) {
	b := NewBridge(nil)
	baseline := Outstanding()

	p := b.RegionForCallingCode(1)
	r, err := ReadStringResult(p)
	require.NoError(t, err)
	require.False(t, r.IsOk())
	assert.Equal(t, engine.ErrorClassInternal, r.Failure().Class)
	b.Release(p)

	q := b.Format(cstr(t, "4155552671"), cstr(t, "US"), 0)
	qr, err := ReadStringResult(q)
	require.NoError(t, err)
	assert.False(t, qr.IsOk())
	b.Release(q)

	assert.Equal(t, baseline, Outstanding())
}

func TestLiveAllocationMetric(t *testing.T) {
	tel := telemetry.Nop()
	metrics, err := telemetry.NewMetrics(telemetry.DefaultConfig().Metrics)
	require.NoError(t, err)
	tel.Metrics = metrics

	b := newBridge(t, tel)

	p := b.Format(cstr(t, "4155552671"), cstr(t, "US"), uint32(engine.FormatNational))
	q := b.IsValid(cstr(t, "4155552671"), cstr(t, "US"))
	assert.Equal(t, 2.0, liveAllocations(t, metrics))

	b.Release(p)
	b.Release(q)
	assert.Equal(t, 0.0, liveAllocations(t, metrics))
}

func liveAllocations(t *testing.T, m *telemetry.Metrics) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "phonebridge_live_allocations" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "abi" && label.GetValue() == ABI {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	return 0
}

func TestConcurrentCallsLeakNothing(t *testing.T) {
	b := newBridge(t, nil)
	baseline := Outstanding()

	number := cstr(t, "4155552671")
	region := cstr(t, "US")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Release(b.Format(number, region, uint32(engine.FormatInternational)))
				b.Release(b.RegionInfo(number, region))
				b.Release(b.IsValid(number, region))
				b.Release(b.RegionForCallingCode(1))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, baseline, Outstanding())
}
