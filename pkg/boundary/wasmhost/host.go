// Package wasmhost exposes the operation surface to WebAssembly guests as
// the host module "drphone".
//
// Guests pass text as (pointer, length) pairs in their own linear memory and
// receive result envelopes allocated with their exported malloc. Every block
// handed out is preceded by an 8-byte header {u32 magic, u32 kind} so that
// release can walk a graph from its root. Layouts are little-endian:
//
//	string               NUL-terminated UTF-8
//	string result        {u32 data@0, u32 error@4}
//	number type result   {u32 data@0, u32 error@4}
//	bool result          {u8 data@0, u32 error@4}
//	region info          {u16 region_code@0, u64 value@8, u32 country@16, u32 formatted@20}
//	region info result   {u32 data@0, u32 error@4}
//
// Host imports:
//
//	format(num_ptr, num_len, region_ptr, region_len, format i32) -> i32
//	number_type(num_ptr, num_len, region_ptr, region_len i32) -> i32
//	region_for_calling_code(code i32) -> i32
//	region_info(num_ptr, num_len, region_ptr, region_len i32) -> i32
//	is_valid(num_ptr, num_len, region_ptr, region_len i32) -> i32
//	release(ptr i32)
package wasmhost

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/openfroyo/phonebridge/pkg/boundary"
	"github.com/openfroyo/phonebridge/pkg/config"
	"github.com/openfroyo/phonebridge/pkg/engine"
	"github.com/openfroyo/phonebridge/pkg/telemetry"
)

const (
	// ModuleName is the import module guests link against.
	ModuleName = "drphone"

	// ABI labels calls arriving from wasm guests.
	ABI = "wasm"
)

// Host owns a wazero runtime with the drphone module instantiated. A Host is
// safe for concurrent use; each Guest it instantiates is not.
type Host struct {
	runtime  wazero.Runtime
	surface  *boundary.Surface
	metrics  *telemetry.Metrics
	logger   *telemetry.Logger
	maxInput uint32

	outstanding atomic.Int64
	guests      atomic.Uint64
}

// New creates a runtime limited by cfg and registers the drphone module.
func New(ctx context.Context, surface *boundary.Surface, cfg config.WASMConfig) (*Host, error) {
	if surface == nil {
		return nil, fmt.Errorf("wasmhost: surface is required")
	}
	if cfg.MaxInputBytes == 0 {
		cfg.MaxInputBytes = config.Default().WASM.MaxInputBytes
	}

	runtimeConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		runtimeConfig = runtimeConfig.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	h := &Host{
		runtime:  runtime,
		surface:  surface,
		logger:   telemetry.NopLogger(),
		maxInput: cfg.MaxInputBytes,
	}
	if tel := surface.Telemetry(); tel != nil {
		h.metrics = tel.Metrics
		if tel.Logger != nil {
			h.logger = tel.Logger.NewComponentLogger("wasmhost")
		}
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	builder := runtime.NewHostModuleBuilder(ModuleName).
		NewFunctionBuilder().WithFunc(h.format).Export("format").
		NewFunctionBuilder().WithFunc(h.numberType).Export("number_type").
		NewFunctionBuilder().WithFunc(h.regionForCallingCode).Export("region_for_calling_code").
		NewFunctionBuilder().WithFunc(h.regionInfo).Export("region_info").
		NewFunctionBuilder().WithFunc(h.isValid).Export("is_valid").
		NewFunctionBuilder().WithFunc(h.release).Export("release")

	if _, err := builder.Instantiate(ctx); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate host module: %w", err)
	}

	return h, nil
}

// Instantiate compiles and instantiates a guest. The guest must export
// memory, malloc and free. An empty name is replaced by a generated one.
func (h *Host) Instantiate(ctx context.Context, name string, binary []byte) (*Guest, error) {
	if name == "" {
		name = fmt.Sprintf("guest-%d", h.guests.Add(1))
	}

	compiled, err := h.runtime.CompileModule(ctx, binary)
	if err != nil {
		return nil, fmt.Errorf("failed to compile guest %s: %w", name, err)
	}

	mod, err := h.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate guest %s: %w", name, err)
	}

	g, err := bind(mod)
	if err != nil {
		mod.Close(ctx)
		return nil, fmt.Errorf("guest %s: %w", name, err)
	}

	h.logger.WithField("guest", name).Debug("guest instantiated")
	return &Guest{host: h, g: g}, nil
}

// Outstanding returns the number of blocks handed to guests and not yet
// released.
func (h *Host) Outstanding() int64 {
	return h.outstanding.Load()
}

// Close closes the runtime and every guest instantiated in it.
func (h *Host) Close(ctx context.Context) error {
	if err := h.runtime.Close(ctx); err != nil {
		return fmt.Errorf("failed to close WASM runtime: %w", err)
	}
	return nil
}

func (h *Host) format(ctx context.Context, mod api.Module, numPtr, numLen, regPtr, regLen, format uint32) uint32 {
	g, ok := h.guest(mod)
	if !ok {
		return 0
	}
	n, r, err := h.texts(ctx, g, boundary.OpFormat, numPtr, numLen, regPtr, regLen)
	if err != nil {
		return h.stringResult(ctx, g, boundary.Fail[string](err))
	}
	return h.stringResult(ctx, g, h.surface.Format(ctx, n, r, engine.NumberFormat(format)))
}

func (h *Host) numberType(ctx context.Context, mod api.Module, numPtr, numLen, regPtr, regLen uint32) uint32 {
	g, ok := h.guest(mod)
	if !ok {
		return 0
	}
	n, r, err := h.texts(ctx, g, boundary.OpClassify, numPtr, numLen, regPtr, regLen)
	if err != nil {
		return h.numberTypeResult(ctx, g, boundary.Fail[engine.NumberType](err))
	}
	return h.numberTypeResult(ctx, g, h.surface.Classify(ctx, n, r))
}

func (h *Host) regionForCallingCode(ctx context.Context, mod api.Module, code uint32) uint32 {
	g, ok := h.guest(mod)
	if !ok {
		return 0
	}
	if code > 0xFFFF {
		err := h.surface.Reject(ctx, boundary.OpRegionForCallingCode,
			engine.NewInvalidArgumentError(fmt.Sprintf("calling code %d out of range", code), nil).
				WithCode(engine.ErrCodeOutOfBounds))
		return h.stringResult(ctx, g, boundary.Fail[string](err))
	}
	return h.stringResult(ctx, g, h.surface.RegionForCallingCode(ctx, uint16(code)))
}

func (h *Host) regionInfo(ctx context.Context, mod api.Module, numPtr, numLen, regPtr, regLen uint32) uint32 {
	g, ok := h.guest(mod)
	if !ok {
		return 0
	}
	n, r, err := h.texts(ctx, g, boundary.OpRegionInfo, numPtr, numLen, regPtr, regLen)
	if err != nil {
		return h.regionInfoResult(ctx, g, boundary.Fail[boundary.RegionInfo](err))
	}
	return h.regionInfoResult(ctx, g, h.surface.RegionInfo(ctx, n, r))
}

func (h *Host) isValid(ctx context.Context, mod api.Module, numPtr, numLen, regPtr, regLen uint32) uint32 {
	g, ok := h.guest(mod)
	if !ok {
		return 0
	}
	n, r, err := h.texts(ctx, g, boundary.OpIsValid, numPtr, numLen, regPtr, regLen)
	if err != nil {
		return h.boolResult(ctx, g, boundary.Fail[bool](err))
	}
	return h.boolResult(ctx, g, h.surface.IsValid(ctx, n, r))
}

func (h *Host) release(ctx context.Context, mod api.Module, ptr uint32) {
	g, ok := h.guest(mod)
	if !ok {
		return
	}
	if isResultKind(h.releaseBlock(ctx, g, ptr)) {
		h.metrics.RecordRelease(ABI)
	}
}

// guest binds the calling module. A module without the allocator exports
// cannot receive results, so its calls return NULL.
func (h *Host) guest(mod api.Module) (*guest, bool) {
	g, err := bind(mod)
	if err != nil {
		h.logger.WithError(err).WithField("guest", mod.Name()).Error("guest cannot receive results")
		return nil, false
	}
	return g, true
}

// texts reads the (number, region) pair, refusing NULL, oversized and
// out-of-bounds arguments.
func (h *Host) texts(ctx context.Context, g *guest, op string, numPtr, numLen, regPtr, regLen uint32) (string, string, error) {
	number, err := h.text(g, boundary.ArgNumber, numPtr, numLen)
	if err != nil {
		return "", "", h.surface.Reject(ctx, op, err)
	}
	region, err := h.text(g, boundary.ArgRegion, regPtr, regLen)
	if err != nil {
		return "", "", h.surface.Reject(ctx, op, err)
	}
	return number, region, nil
}

func (h *Host) text(g *guest, arg string, ptr, length uint32) (string, error) {
	if ptr == 0 {
		return "", boundary.NullInput(arg)
	}
	if length > h.maxInput {
		return "", engine.NewInvalidArgumentError(fmt.Sprintf("%s exceeds %d bytes", arg, h.maxInput), nil).
			WithCode(engine.ErrCodeInputTooLarge).
			WithDetail("argument", arg)
	}
	b, ok := g.mem.Read(ptr, length)
	if !ok {
		return "", engine.NewInvalidArgumentError(arg+" is outside guest memory", nil).
			WithCode(engine.ErrCodeOutOfBounds).
			WithDetail("argument", arg)
	}
	// copy out of guest memory before the guest can reuse it
	return string(b), nil
}
