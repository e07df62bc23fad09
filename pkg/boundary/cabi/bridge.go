// Package cabi flattens boundary results into the C envelopes declared in
// include/drphone_types.h.
//
// Every block handed to a caller comes from the C allocator and carries a
// hidden header naming its kind, so Release can walk any envelope graph from
// its root. Pointers cross package lines as unsafe.Pointer because cgo types
// are distinct per package.
package cabi

/*
#cgo CFLAGS: -I${SRCDIR} -I${SRCDIR}/../../../include
#include "cabi.h"
*/
import "C"

import (
	"context"
	"unsafe"

	"github.com/openfroyo/phonebridge/pkg/boundary"
	"github.com/openfroyo/phonebridge/pkg/engine"
	"github.com/openfroyo/phonebridge/pkg/telemetry"
)

// ABI labels calls arriving through the C library.
const ABI = "c"

// Bridge adapts a Surface to C calling conventions. A Bridge without a
// surface answers every call with an internal failure envelope.
type Bridge struct {
	surface *boundary.Surface
	metrics *telemetry.Metrics
}

// NewBridge creates a bridge over surface, which may be nil.
func NewBridge(surface *boundary.Surface) *Bridge {
	b := &Bridge{surface: surface}
	if surface != nil && surface.Telemetry() != nil {
		b.metrics = surface.Telemetry().Metrics
	}
	return b
}

func (b *Bridge) available() error {
	if b == nil || b.surface == nil {
		return engine.NewInternalError("phone number engine unavailable", nil)
	}
	return nil
}

// texts converts the (number, region) pair, rejecting NULL pointers.
func (b *Bridge) texts(ctx context.Context, op string, number, region unsafe.Pointer) (string, string, error) {
	if err := b.available(); err != nil {
		return "", "", err
	}
	if number == nil {
		return "", "", b.surface.Reject(ctx, op, boundary.NullInput(boundary.ArgNumber))
	}
	if region == nil {
		return "", "", b.surface.Reject(ctx, op, boundary.NullInput(boundary.ArgRegion))
	}
	return C.GoString((*C.char)(number)), C.GoString((*C.char)(region)), nil
}

// Format implements dr_format.
func (b *Bridge) Format(number, region unsafe.Pointer, format uint32) unsafe.Pointer {
	ctx := context.Background()
	n, r, err := b.texts(ctx, boundary.OpFormat, number, region)
	if err != nil {
		return b.handOut(newStringResult(boundary.Fail[string](err)))
	}
	return b.handOut(newStringResult(b.surface.Format(ctx, n, r, engine.NumberFormat(format))))
}

// NumberType implements dr_get_number_type.
func (b *Bridge) NumberType(number, region unsafe.Pointer) unsafe.Pointer {
	ctx := context.Background()
	n, r, err := b.texts(ctx, boundary.OpClassify, number, region)
	if err != nil {
		return b.handOut(newNumberTypeResult(boundary.Fail[engine.NumberType](err)))
	}
	return b.handOut(newNumberTypeResult(b.surface.Classify(ctx, n, r)))
}

// RegionForCallingCode implements dr_region_for_calling_code.
func (b *Bridge) RegionForCallingCode(code uint16) unsafe.Pointer {
	if err := b.available(); err != nil {
		return b.handOut(newStringResult(boundary.Fail[string](err)))
	}
	return b.handOut(newStringResult(b.surface.RegionForCallingCode(context.Background(), code)))
}

// RegionInfo implements dr_get_region_info.
func (b *Bridge) RegionInfo(number, region unsafe.Pointer) unsafe.Pointer {
	ctx := context.Background()
	n, r, err := b.texts(ctx, boundary.OpRegionInfo, number, region)
	if err != nil {
		return b.handOut(newRegionInfoResult(boundary.Fail[boundary.RegionInfo](err)))
	}
	return b.handOut(newRegionInfoResult(b.surface.RegionInfo(ctx, n, r)))
}

// IsValid implements dr_is_valid_number.
func (b *Bridge) IsValid(number, region unsafe.Pointer) unsafe.Pointer {
	ctx := context.Background()
	n, r, err := b.texts(ctx, boundary.OpIsValid, number, region)
	if err != nil {
		return b.handOut(newBoolResult(boundary.Fail[bool](err)))
	}
	return b.handOut(newBoolResult(b.surface.IsValid(ctx, n, r)))
}

// Release implements dr_release. NULL and blocks without a recognised header
// are ignored.
func (b *Bridge) Release(p unsafe.Pointer) {
	if isResultKind(release(p)) && b != nil {
		b.metrics.RecordRelease(ABI)
	}
}

func (b *Bridge) handOut(p unsafe.Pointer) unsafe.Pointer {
	if p != nil && b != nil {
		b.metrics.RecordAllocation(ABI)
	}
	return p
}
