package wasmhost

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/phonebridge/pkg/boundary"
	"github.com/openfroyo/phonebridge/pkg/config"
	"github.com/openfroyo/phonebridge/pkg/engine"
	"github.com/openfroyo/phonebridge/pkg/providers/libphonenumber"
	"github.com/openfroyo/phonebridge/pkg/telemetry"
)

// allocatorGuest exports memory (2 pages), a bump malloc aligned to 8 bytes
// starting at 1024, and a no-op free.
const allocatorGuest = "0061736d01000000" +
	"010a0260017f017f60017f00" + // types: (i32)->i32, (i32)->()
	"03030200010503010002" + // functions, memory
	"0607017f014180080b" + // global $top = 1024
	"071a03066d656d6f72790200066d616c6c6f630000046672656500010a" + // exports
	"1c021701017f23002101230020006a41076a417871240020010b02000b" // code

// importingGuest adds an import of drphone.region_for_calling_code and an
// export lookup(code) that returns its result pointer.
const importingGuest = "0061736d01000000" +
	"010a0260017f017f60017f00" +
	"02230107647270686f6e6517726567696f6e5f666f725f63616c6c696e675f636f64650000" +
	"03040300010005030100020607017f014180080b" +
	"072304066d656d6f72790200066d616c6c6f63000104667265650002066c6f6f6b75700003" +
	"0a23031701017f23002101230020006a41076a417871240020010b02000b0600200010000b"

func wasmBytes(t *testing.T, h string) []byte {
	t.Helper()
	b, err := hex.DecodeString(h)
	require.NoError(t, err)
	return b
}

func newHost(t *testing.T, tel *telemetry.Telemetry, cfg config.WASMConfig) *Host {
	t.Helper()
	ctx := context.Background()

	e, err := libphonenumber.New("US", "GB")
	require.NoError(t, err)
	s, err := boundary.NewSurface(e, boundary.WithTelemetry(tel), boundary.WithABI(ABI))
	require.NoError(t, err)

	h, err := New(ctx, s, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close(ctx) })
	return h
}

func newGuest(t *testing.T, h *Host) *Guest {
	t.Helper()
	g, err := h.Instantiate(context.Background(), "", wasmBytes(t, allocatorGuest))
	require.NoError(t, err)
	return g
}

type text struct{ ptr, n uint32 }

func write(t *testing.T, g *Guest, s string) text {
	t.Helper()
	ptr, n, err := g.WriteText(context.Background(), s)
	require.NoError(t, err)
	return text{ptr, n}
}

func TestFormatEnvelope(t *testing.T) {
	ctx := context.Background()
	h := newHost(t, nil, config.Default().WASM)
	g := newGuest(t, h)

	num, reg := write(t, g, "4155552671"), write(t, g, "US")
	p := g.Format(ctx, num.ptr, num.n, reg.ptr, reg.n, engine.FormatInternational.Ordinal())
	require.NotZero(t, p)
	assert.Equal(t, int64(2), h.Outstanding(), "envelope and data string")

	r, err := g.ReadStringResult(p)
	require.NoError(t, err)
	v, ok := r.Value()
	require.True(t, ok, r.String())
	assert.Equal(t, "+1 415-555-2671", v)

	g.Release(ctx, p)
	assert.Zero(t, h.Outstanding())
}

func TestFailureEnvelopes(t *testing.T) {
	ctx := context.Background()
	h := newHost(t, nil, config.WASMConfig{MaxInputBytes: 16})
	g := newGuest(t, h)

	us := write(t, g, "US")
	valid := write(t, g, "4155552671")
	garbage := write(t, g, "abc")
	long := write(t, g, "+1 415 555 2671 ext 1234")
	badUTF8 := write(t, g, "\xff\xfe")

	tests := []struct {
		name  string
		call  func() uint32
		class engine.ErrorClass
		code  string
	}{
		{
			name:  "unparseable",
			call:  func() uint32 { return g.Format(ctx, garbage.ptr, garbage.n, us.ptr, us.n, 0) },
			class: engine.ErrorClassUnparseable,
		},
		{
			name:  "format ordinal out of range",
			call:  func() uint32 { return g.Format(ctx, valid.ptr, valid.n, us.ptr, us.n, 7) },
			class: engine.ErrorClassInvalidArgument,
		},
		{
			name:  "null number",
			call:  func() uint32 { return g.Format(ctx, 0, 0, us.ptr, us.n, 0) },
			class: engine.ErrorClassEncoding,
			code:  engine.ErrCodeNullInput,
		},
		{
			name:  "null region",
			call:  func() uint32 { return g.Format(ctx, valid.ptr, valid.n, 0, 0, 0) },
			class: engine.ErrorClassEncoding,
			code:  engine.ErrCodeNullInput,
		},
		{
			name:  "invalid utf-8",
			call:  func() uint32 { return g.Format(ctx, badUTF8.ptr, badUTF8.n, us.ptr, us.n, 0) },
			class: engine.ErrorClassEncoding,
		},
		{
			name:  "input over the cap",
			call:  func() uint32 { return g.Format(ctx, long.ptr, long.n, us.ptr, us.n, 0) },
			class: engine.ErrorClassInvalidArgument,
			code:  engine.ErrCodeInputTooLarge,
		},
		{
			name:  "outside guest memory",
			call:  func() uint32 { return g.Format(ctx, g.Module().Memory().Size()-4, 8, us.ptr, us.n, 0) },
			class: engine.ErrorClassInvalidArgument,
			code:  engine.ErrCodeOutOfBounds,
		},
		{
			name:  "unknown calling code",
			call:  func() uint32 { return g.RegionForCallingCode(ctx, 999) },
			class: engine.ErrorClassUnknownRegion,
		},
		{
			name:  "calling code out of range",
			call:  func() uint32 { return g.RegionForCallingCode(ctx, 70000) },
			class: engine.ErrorClassInvalidArgument,
			code:  engine.ErrCodeOutOfBounds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.call()
			require.NotZero(t, p)
			defer g.Release(ctx, p)

			r, err := g.ReadStringResult(p)
			require.NoError(t, err)
			require.False(t, r.IsOk())
			assert.Equal(t, tt.class, r.Failure().Class)
			assert.Contains(t, r.Message(), "["+string(tt.class)+"] ")
		})
	}
	assert.Zero(t, h.Outstanding())
}

func TestFailureCodesReachTelemetry(t *testing.T) {
	ctx := context.Background()
	h := newHost(t, nil, config.WASMConfig{MaxInputBytes: 16})
	g := newGuest(t, h)

	us := write(t, g, "US")
	long := write(t, g, "+1 415 555 2671 ext 1234")

	_, _, err := h.texts(ctx, g.g, boundary.OpFormat, long.ptr, long.n, us.ptr, us.n)
	var e *engine.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, engine.ErrCodeInputTooLarge, e.Code)
	assert.Equal(t, boundary.OpFormat, e.Operation)

	_, _, err = h.texts(ctx, g.g, boundary.OpIsValid, us.ptr, us.n, 0, 0)
	require.ErrorAs(t, err, &e)
	assert.Equal(t, engine.ErrCodeNullInput, e.Code)
}

func TestScalarEnvelopes(t *testing.T) {
	ctx := context.Background()
	h := newHost(t, nil, config.Default().WASM)
	g := newGuest(t, h)

	us := write(t, g, "US")
	mobile := write(t, g, "+447400123456")
	garbage := write(t, g, "abc")

	p := g.NumberType(ctx, mobile.ptr, mobile.n, us.ptr, us.n)
	nt, err := g.ReadNumberTypeResult(p)
	require.NoError(t, err)
	v, ok := nt.Value()
	require.True(t, ok, nt.String())
	assert.Equal(t, engine.TypeMobile, v)
	g.Release(ctx, p)

	p = g.NumberType(ctx, garbage.ptr, garbage.n, us.ptr, us.n)
	nt, err = g.ReadNumberTypeResult(p)
	require.NoError(t, err)
	v, ok = nt.Value()
	require.True(t, ok, "unreadable text classifies as unknown")
	assert.Equal(t, engine.TypeUnknown, v)
	g.Release(ctx, p)

	p = g.IsValid(ctx, mobile.ptr, mobile.n, us.ptr, us.n)
	b, err := g.ReadBoolResult(p)
	require.NoError(t, err)
	assert.Equal(t, "Ok(true)", b.String())
	g.Release(ctx, p)

	p = g.IsValid(ctx, garbage.ptr, garbage.n, us.ptr, us.n)
	b, err = g.ReadBoolResult(p)
	require.NoError(t, err)
	assert.Equal(t, "Ok(false)", b.String())
	g.Release(ctx, p)

	qq := write(t, g, "QQ")
	p = g.IsValid(ctx, mobile.ptr, mobile.n, qq.ptr, qq.n)
	b, err = g.ReadBoolResult(p)
	require.NoError(t, err)
	require.False(t, b.IsOk())
	assert.Equal(t, engine.ErrorClassUnknownRegion, b.Failure().Class)
	g.Release(ctx, p)

	assert.Zero(t, h.Outstanding())
}

func TestRegionInfoEnvelope(t *testing.T) {
	ctx := context.Background()
	h := newHost(t, nil, config.Default().WASM)
	g := newGuest(t, h)

	num, reg := write(t, g, "020 7946 0018"), write(t, g, "GB")
	p := g.RegionInfo(ctx, num.ptr, num.n, reg.ptr, reg.n)
	require.NotZero(t, p)
	assert.Equal(t, int64(4), h.Outstanding(), "result, record and two strings")

	r, err := g.ReadRegionInfoResult(p)
	require.NoError(t, err)
	info, ok := r.Value()
	require.True(t, ok, r.String())
	assert.Equal(t, uint16(44), info.RegionCode)
	assert.Equal(t, uint64(2079460018), info.PhoneNumberValue)
	assert.Equal(t, "GB", info.CountryCode)
	assert.Equal(t, "+44 20 7946 0018", info.FormattedNumber)

	g.Release(ctx, p)
	assert.Zero(t, h.Outstanding())
}

func TestReleaseIgnoresForeignPointers(t *testing.T) {
	ctx := context.Background()
	h := newHost(t, nil, config.Default().WASM)
	g := newGuest(t, h)

	foreign := write(t, g, "not a block at all")
	g.Release(ctx, 0)
	g.Release(ctx, 4)
	g.Release(ctx, foreign.ptr)
	assert.Zero(t, h.Outstanding())

	_, err := g.ReadStringResult(foreign.ptr)
	assert.Error(t, err)
	_, err = g.ReadStringResult(0)
	assert.Error(t, err)
}

func TestAllocationFailureReturnsNull(t *testing.T) {
	ctx := context.Background()
	h := newHost(t, nil, config.Default().WASM)
	g := newGuest(t, h)

	num, reg := write(t, g, "4155552671"), write(t, g, "US")

	// move the bump pointer past the end of memory
	_, err := g.g.malloc.Call(ctx, uint64(g.Module().Memory().Size()))
	require.NoError(t, err)

	assert.Zero(t, g.Format(ctx, num.ptr, num.n, reg.ptr, reg.n, 0))
	assert.Zero(t, h.Outstanding())
}

func TestImportedFromGuest(t *testing.T) {
	ctx := context.Background()
	h := newHost(t, nil, config.Default().WASM)

	g, err := h.Instantiate(ctx, "importer", wasmBytes(t, importingGuest))
	require.NoError(t, err)

	results, err := g.Module().ExportedFunction("lookup").Call(ctx, 44)
	require.NoError(t, err)
	require.Len(t, results, 1)

	p := uint32(results[0])
	r, err := g.ReadStringResult(p)
	require.NoError(t, err)
	v, ok := r.Value()
	require.True(t, ok, r.String())
	assert.Equal(t, "GB", v)

	g.Release(ctx, p)
	assert.Zero(t, h.Outstanding())
}

func TestInstantiateRequiresAllocator(t *testing.T) {
	h := newHost(t, nil, config.Default().WASM)

	// an empty module exports nothing
	_, err := h.Instantiate(context.Background(), "", wasmBytes(t, "0061736d01000000"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory")
}

// allocatorWithoutMemory exports malloc and free but no memory.
const allocatorWithoutMemory = "0061736d01000000010a0260017f017f60017f00030302000107110206" +
	"6d616c6c6f63000004667265650001" +
	"0a0902040041000b02000b"

func TestInstantiateRequiresMemory(t *testing.T) {
	h := newHost(t, nil, config.Default().WASM)

	_, err := h.Instantiate(context.Background(), "", wasmBytes(t, allocatorWithoutMemory))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not export memory")
	assert.Zero(t, h.Outstanding())
}

func TestMemoryLimit(t *testing.T) {
	h := newHost(t, nil, config.WASMConfig{MaxInputBytes: 64, MemoryLimitPages: 1})

	_, err := h.Instantiate(context.Background(), "", wasmBytes(t, allocatorGuest))
	assert.Error(t, err, "guest asks for two pages")
}

func TestNewRequiresSurface(t *testing.T) {
	_, err := New(context.Background(), nil, config.Default().WASM)
	assert.Error(t, err)
}

func TestAllocationMetrics(t *testing.T) {
	ctx := context.Background()
	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
	require.NoError(t, err)

	h := newHost(t, tel, config.Default().WASM)
	g := newGuest(t, h)

	p := g.RegionForCallingCode(ctx, 1)
	require.NotZero(t, p)
	assert.Equal(t, 1.0, liveAllocations(t, tel.Metrics))

	g.Release(ctx, p)
	assert.Equal(t, 0.0, liveAllocations(t, tel.Metrics))
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

func TestConcurrentGuestsLeakNothing(t *testing.T) {
	ctx := context.Background()
	h := newHost(t, nil, config.Default().WASM)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		g := newGuest(t, h)
		num, reg := write(t, g, "4155552671"), write(t, g, "US")

		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				p := g.Format(ctx, num.ptr, num.n, reg.ptr, reg.n, engine.FormatE164.Ordinal())
				r, err := g.ReadStringResult(p)
				if err != nil {
					errs <- err
					return
				}
				if v, _ := r.Value(); v != "+14155552671" {
					errs <- fmt.Errorf("got %s", r)
					return
				}
				g.Release(ctx, p)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Zero(t, h.Outstanding())
}
