package cabi

/*
#cgo CFLAGS: -I${SRCDIR} -I${SRCDIR}/../../../include
#include "cabi.h"
*/
import "C"

import (
	"sync/atomic"
	"unsafe"
)

// Block kinds, mirrored from cabi.h.
const (
	kindString           = uint32(C.DR_KIND_STRING)
	kindStringResult     = uint32(C.DR_KIND_STRING_RESULT)
	kindNumberTypeResult = uint32(C.DR_KIND_NUMBER_TYPE_RESULT)
	kindBoolResult       = uint32(C.DR_KIND_BOOL_RESULT)
	kindRegionInfo       = uint32(C.DR_KIND_REGION_INFO)
	kindRegionInfoResult = uint32(C.DR_KIND_REGION_INFO_RESULT)
)

var outstanding atomic.Int64

// Outstanding returns the number of blocks handed out and not yet released.
func Outstanding() int64 {
	return outstanding.Load()
}

func alloc(kind uint32, size uintptr) unsafe.Pointer {
	p := C.dr_alloc(C.uint32_t(kind), C.size_t(size))
	if p == nil {
		return nil
	}
	outstanding.Add(1)
	return p
}

// newString copies s into a NUL-terminated block.
func newString(s string) *C.char {
	p := alloc(kindString, uintptr(len(s))+1)
	if p == nil {
		return nil
	}
	// calloc zeroed the terminator
	copy(unsafe.Slice((*byte)(p), len(s)), s)
	return (*C.char)(p)
}

// release frees p and everything it owns. It returns the kind of p, or 0 if p
// was nil or not allocated here.
func release(p unsafe.Pointer) uint32 {
	if p == nil {
		return 0
	}

	kind := uint32(C.dr_alloc_kind(p))
	switch kind {
	case kindString:
	case kindStringResult:
		r := (*C.dr_string_result)(p)
		release(unsafe.Pointer(r.data))
		release(unsafe.Pointer(r.error))
	case kindNumberTypeResult:
		r := (*C.dr_number_type_result)(p)
		release(unsafe.Pointer(r.error))
	case kindBoolResult:
		r := (*C.dr_bool_result)(p)
		release(unsafe.Pointer(r.error))
	case kindRegionInfo:
		r := (*C.dr_region_info)(p)
		release(unsafe.Pointer(r.country_code))
		release(unsafe.Pointer(r.formatted_number))
	case kindRegionInfoResult:
		r := (*C.dr_region_info_result)(p)
		release(unsafe.Pointer(r.data))
		release(unsafe.Pointer(r.error))
	default:
		return 0
	}

	C.dr_free(p)
	outstanding.Add(-1)
	return kind
}

func isResultKind(kind uint32) bool {
	switch kind {
	case kindStringResult, kindNumberTypeResult, kindBoolResult, kindRegionInfoResult:
		return true
	}
	return false
}

// NewCString copies s into C memory. Hosts written in Go and tests use it to
// build arguments; free the result with FreeCString.
func NewCString(s string) unsafe.Pointer {
	return unsafe.Pointer(C.CString(s))
}

// FreeCString frees memory returned by NewCString.
func FreeCString(p unsafe.Pointer) {
	C.free(p)
}
