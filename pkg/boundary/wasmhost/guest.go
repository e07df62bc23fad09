package wasmhost

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/openfroyo/phonebridge/pkg/boundary"
	"github.com/openfroyo/phonebridge/pkg/engine"
)

var (
	errNil        = errors.New("wasmhost: envelope is NULL")
	errBothSet    = errors.New("wasmhost: envelope has both data and error set")
	errNeitherSet = errors.New("wasmhost: envelope has neither data nor error set")
)

// Guest is an instantiated guest module. Its methods drive the drphone
// imports from the host side exactly as an import call from the guest
// would, and decode envelopes left in guest memory. A Guest must not be used
// from more than one goroutine at a time.
type Guest struct {
	host *Host
	g    *guest
}

// Module returns the underlying wazero module.
func (g *Guest) Module() api.Module {
	return g.g.mod
}

// Close closes the guest module.
func (g *Guest) Close(ctx context.Context) error {
	return g.g.mod.Close(ctx)
}

// WriteText copies s into a fresh guest allocation and returns its pointer
// and length. The block is freed with FreeText.
func (g *Guest) WriteText(ctx context.Context, s string) (uint32, uint32, error) {
	results, err := g.g.malloc.Call(ctx, uint64(len(s)))
	if err != nil {
		return 0, 0, fmt.Errorf("malloc failed: %w", err)
	}
	if len(results) == 0 || uint32(results[0]) == 0 {
		return 0, 0, errGuestAlloc
	}
	ptr := uint32(results[0])
	if !g.g.mem.WriteString(ptr, s) {
		return 0, 0, errWrite
	}
	return ptr, uint32(len(s)), nil
}

// FreeText frees a block returned by WriteText.
func (g *Guest) FreeText(ctx context.Context, ptr uint32) error {
	_, err := g.g.free.Call(ctx, uint64(ptr))
	return err
}

// Format calls the format import.
func (g *Guest) Format(ctx context.Context, numPtr, numLen, regPtr, regLen, format uint32) uint32 {
	return g.host.format(ctx, g.g.mod, numPtr, numLen, regPtr, regLen, format)
}

// NumberType calls the number_type import.
func (g *Guest) NumberType(ctx context.Context, numPtr, numLen, regPtr, regLen uint32) uint32 {
	return g.host.numberType(ctx, g.g.mod, numPtr, numLen, regPtr, regLen)
}

// RegionForCallingCode calls the region_for_calling_code import.
func (g *Guest) RegionForCallingCode(ctx context.Context, code uint32) uint32 {
	return g.host.regionForCallingCode(ctx, g.g.mod, code)
}

// RegionInfo calls the region_info import.
func (g *Guest) RegionInfo(ctx context.Context, numPtr, numLen, regPtr, regLen uint32) uint32 {
	return g.host.regionInfo(ctx, g.g.mod, numPtr, numLen, regPtr, regLen)
}

// IsValid calls the is_valid import.
func (g *Guest) IsValid(ctx context.Context, numPtr, numLen, regPtr, regLen uint32) uint32 {
	return g.host.isValid(ctx, g.g.mod, numPtr, numLen, regPtr, regLen)
}

// Release calls the release import.
func (g *Guest) Release(ctx context.Context, ptr uint32) {
	g.host.release(ctx, g.g.mod, ptr)
}

// slots reads the two envelope words of a result block of the given kind.
func (g *Guest) slots(p, kind uint32) (uint32, uint32, error) {
	if p == 0 {
		return 0, 0, errNil
	}
	if p < headerSize {
		return 0, 0, fmt.Errorf("wasmhost: pointer %#x has no header", p)
	}
	magic, ok1 := g.g.mem.ReadUint32Le(p - headerSize)
	got, ok2 := g.g.mem.ReadUint32Le(p - 4)
	if !ok1 || !ok2 || magic != blockMagic || got != kind {
		return 0, 0, fmt.Errorf("wasmhost: pointer %#x is not a kind %d block", p, kind)
	}
	data, _ := g.g.mem.ReadUint32Le(p)
	msg, _ := g.g.mem.ReadUint32Le(p + errorOffset)
	return data, msg, nil
}

// readString reads the NUL-terminated string at p.
func (g *Guest) readString(p uint32) (string, error) {
	size := g.g.mem.Size()
	if p == 0 || p >= size {
		return "", fmt.Errorf("wasmhost: string pointer %#x outside guest memory", p)
	}
	b, _ := g.g.mem.Read(p, size-p)
	end := bytes.IndexByte(b, 0)
	if end < 0 {
		return "", fmt.Errorf("wasmhost: string at %#x is not terminated", p)
	}
	return string(b[:end]), nil
}

func readFailure[T any](g *Guest, msg uint32) (boundary.Result[T], error) {
	text, err := g.readString(msg)
	if err != nil {
		return boundary.Result[T]{}, err
	}
	return boundary.FromMessage[T](text), nil
}

// ReadStringResult decodes a string result without releasing it.
func (g *Guest) ReadStringResult(p uint32) (boundary.Result[string], error) {
	data, msg, err := g.slots(p, kindStringResult)
	switch {
	case err != nil:
		return boundary.Result[string]{}, err
	case data != 0 && msg != 0:
		return boundary.Result[string]{}, errBothSet
	case data != 0:
		s, err := g.readString(data)
		if err != nil {
			return boundary.Result[string]{}, err
		}
		return boundary.Ok(s), nil
	case msg != 0:
		return readFailure[string](g, msg)
	default:
		return boundary.Result[string]{}, errNeitherSet
	}
}

// ReadNumberTypeResult decodes a number type result without releasing it.
func (g *Guest) ReadNumberTypeResult(p uint32) (boundary.Result[engine.NumberType], error) {
	data, msg, err := g.slots(p, kindNumberTypeResult)
	if err != nil {
		return boundary.Result[engine.NumberType]{}, err
	}
	if msg != 0 {
		if data != 0 {
			return boundary.Result[engine.NumberType]{}, errBothSet
		}
		return readFailure[engine.NumberType](g, msg)
	}
	t, err := engine.NumberTypeFromOrdinal(data)
	if err != nil {
		return boundary.Result[engine.NumberType]{}, err
	}
	return boundary.Ok(t), nil
}

// ReadBoolResult decodes a bool result without releasing it.
func (g *Guest) ReadBoolResult(p uint32) (boundary.Result[bool], error) {
	_, msg, err := g.slots(p, kindBoolResult)
	if err != nil {
		return boundary.Result[bool]{}, err
	}
	flag, _ := g.g.mem.ReadByte(p)
	if msg != 0 {
		if flag != 0 {
			return boundary.Result[bool]{}, errBothSet
		}
		return readFailure[bool](g, msg)
	}
	return boundary.Ok(flag != 0), nil
}

// ReadRegionInfoResult decodes a region info result without releasing it.
func (g *Guest) ReadRegionInfoResult(p uint32) (boundary.Result[boundary.RegionInfo], error) {
	data, msg, err := g.slots(p, kindRegionInfoResult)
	switch {
	case err != nil:
		return boundary.Result[boundary.RegionInfo]{}, err
	case data != 0 && msg != 0:
		return boundary.Result[boundary.RegionInfo]{}, errBothSet
	case msg != 0:
		return readFailure[boundary.RegionInfo](g, msg)
	case data == 0:
		return boundary.Result[boundary.RegionInfo]{}, errNeitherSet
	}

	mem := g.g.mem
	code, _ := mem.ReadUint16Le(data)
	value, _ := mem.ReadUint64Le(data + 8)
	countryPtr, _ := mem.ReadUint32Le(data + 16)
	formattedPtr, _ := mem.ReadUint32Le(data + 20)

	country, err := g.readString(countryPtr)
	if err != nil {
		return boundary.Result[boundary.RegionInfo]{}, err
	}
	formatted, err := g.readString(formattedPtr)
	if err != nil {
		return boundary.Result[boundary.RegionInfo]{}, err
	}
	return boundary.Ok(boundary.RegionInfo{
		RegionCode:       code,
		PhoneNumberValue: value,
		CountryCode:      country,
		FormattedNumber:  formatted,
	}), nil
}
