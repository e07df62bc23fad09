package wasmhost

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/openfroyo/phonebridge/pkg/boundary"
	"github.com/openfroyo/phonebridge/pkg/engine"
)

const (
	blockMagic uint32 = 0x44524248
	headerSize uint32 = 8

	resultSize     uint32 = 8
	regionInfoSize uint32 = 24
	errorOffset    uint32 = 4
)

// Block kinds. The values match the C allocator's.
const (
	kindString uint32 = iota + 1
	kindStringResult
	kindNumberTypeResult
	kindBoolResult
	kindRegionInfo
	kindRegionInfoResult
)

func isResultKind(kind uint32) bool {
	switch kind {
	case kindStringResult, kindNumberTypeResult, kindBoolResult, kindRegionInfoResult:
		return true
	}
	return false
}

var (
	errGuestAlloc = errors.New("guest malloc returned NULL")
	errWrite      = errors.New("write outside guest memory")
)

// guest is the calling module with its allocator exports resolved.
type guest struct {
	mod    api.Module
	mem    api.Memory
	malloc api.Function
	free   api.Function
}

func bind(mod api.Module) (*guest, error) {
	g := &guest{
		mod:    mod,
		mem:    mod.ExportedMemory("memory"),
		malloc: mod.ExportedFunction("malloc"),
		free:   mod.ExportedFunction("free"),
	}
	switch {
	case g.mem == nil:
		return nil, fmt.Errorf("module does not export memory")
	case g.malloc == nil:
		return nil, fmt.Errorf("module does not export malloc function")
	case g.free == nil:
		return nil, fmt.Errorf("module does not export free function")
	}
	return g, nil
}

// alloc reserves a zeroed block of size bytes behind a header and returns
// the pointer past the header.
func (h *Host) alloc(ctx context.Context, g *guest, kind, size uint32) (uint32, error) {
	results, err := g.malloc.Call(ctx, uint64(headerSize+size))
	if err != nil {
		return 0, fmt.Errorf("malloc failed: %w", err)
	}
	if len(results) == 0 || uint32(results[0]) == 0 {
		return 0, errGuestAlloc
	}

	base := uint32(results[0])
	if !g.mem.WriteUint32Le(base, blockMagic) ||
		!g.mem.WriteUint32Le(base+4, kind) ||
		!g.mem.Write(base+headerSize, make([]byte, size)) {
		_, _ = g.free.Call(ctx, uint64(base))
		return 0, errWrite
	}

	h.outstanding.Add(1)
	return base + headerSize, nil
}

func (h *Host) newString(ctx context.Context, g *guest, s string) (uint32, error) {
	p, err := h.alloc(ctx, g, kindString, uint32(len(s))+1)
	if err != nil {
		return 0, err
	}
	if !g.mem.WriteString(p, s) {
		h.releaseBlock(ctx, g, p)
		return 0, errWrite
	}
	return p, nil
}

// releaseBlock frees p and everything it owns, returning p's kind. Zero and
// blocks without a recognised header are ignored.
func (h *Host) releaseBlock(ctx context.Context, g *guest, p uint32) uint32 {
	if p < headerSize {
		return 0
	}
	if magic, ok := g.mem.ReadUint32Le(p - headerSize); !ok || magic != blockMagic {
		return 0
	}
	kind, _ := g.mem.ReadUint32Le(p - 4)

	child := func(offset uint32) {
		if c, ok := g.mem.ReadUint32Le(p + offset); ok {
			h.releaseBlock(ctx, g, c)
		}
	}
	switch kind {
	case kindStringResult, kindRegionInfoResult:
		child(0)
		child(errorOffset)
	case kindNumberTypeResult, kindBoolResult:
		child(errorOffset)
	case kindRegionInfo:
		child(16)
		child(20)
	}

	g.mem.WriteUint32Le(p-headerSize, 0)
	if _, err := g.free.Call(ctx, uint64(p-headerSize)); err != nil {
		h.logger.WithError(err).Warn("guest free failed")
	}
	h.outstanding.Add(-1)
	return kind
}

// fail releases a partially built envelope and logs why it could not be
// completed. The guest receives NULL.
func (h *Host) fail(ctx context.Context, g *guest, p uint32, err error) uint32 {
	h.releaseBlock(ctx, g, p)
	h.logger.WithError(err).WithField("guest", g.mod.Name()).Error("failed to allocate result in guest memory")
	return 0
}

func (h *Host) handOut(p uint32) uint32 {
	h.metrics.RecordAllocation(ABI)
	return p
}

// envelope allocates a result block and, for a failed result, its error
// string. Success data is left for the caller to fill.
func (h *Host) envelope(ctx context.Context, g *guest, kind uint32, failed bool, msg string) (uint32, error) {
	p, err := h.alloc(ctx, g, kind, resultSize)
	if err != nil {
		return 0, err
	}
	if failed {
		s, err := h.newString(ctx, g, msg)
		if err != nil {
			h.releaseBlock(ctx, g, p)
			return 0, err
		}
		g.mem.WriteUint32Le(p+errorOffset, s)
	}
	return p, nil
}

func (h *Host) stringResult(ctx context.Context, g *guest, res boundary.Result[string]) uint32 {
	p, err := h.envelope(ctx, g, kindStringResult, !res.IsOk(), res.Message())
	if err != nil {
		return h.fail(ctx, g, 0, err)
	}
	if v, ok := res.Value(); ok {
		s, err := h.newString(ctx, g, v)
		if err != nil {
			return h.fail(ctx, g, p, err)
		}
		g.mem.WriteUint32Le(p, s)
	}
	return h.handOut(p)
}

func (h *Host) numberTypeResult(ctx context.Context, g *guest, res boundary.Result[engine.NumberType]) uint32 {
	p, err := h.envelope(ctx, g, kindNumberTypeResult, !res.IsOk(), res.Message())
	if err != nil {
		return h.fail(ctx, g, 0, err)
	}
	if v, ok := res.Value(); ok {
		g.mem.WriteUint32Le(p, v.Ordinal())
	}
	return h.handOut(p)
}

func (h *Host) boolResult(ctx context.Context, g *guest, res boundary.Result[bool]) uint32 {
	p, err := h.envelope(ctx, g, kindBoolResult, !res.IsOk(), res.Message())
	if err != nil {
		return h.fail(ctx, g, 0, err)
	}
	if v, ok := res.Value(); ok && v {
		g.mem.WriteByte(p, 1)
	}
	return h.handOut(p)
}

func (h *Host) regionInfoResult(ctx context.Context, g *guest, res boundary.Result[boundary.RegionInfo]) uint32 {
	p, err := h.envelope(ctx, g, kindRegionInfoResult, !res.IsOk(), res.Message())
	if err != nil {
		return h.fail(ctx, g, 0, err)
	}
	info, ok := res.Value()
	if !ok {
		return h.handOut(p)
	}

	// attach the record first so a later failure releases it with the result
	rec, err := h.alloc(ctx, g, kindRegionInfo, regionInfoSize)
	if err != nil {
		return h.fail(ctx, g, p, err)
	}
	g.mem.WriteUint32Le(p, rec)
	g.mem.WriteUint16Le(rec, info.RegionCode)
	g.mem.WriteUint64Le(rec+8, info.PhoneNumberValue)

	country, err := h.newString(ctx, g, info.CountryCode)
	if err != nil {
		return h.fail(ctx, g, p, err)
	}
	g.mem.WriteUint32Le(rec+16, country)

	formatted, err := h.newString(ctx, g, info.FormattedNumber)
	if err != nil {
		return h.fail(ctx, g, p, err)
	}
	g.mem.WriteUint32Le(rec+20, formatted)

	return h.handOut(p)
}
