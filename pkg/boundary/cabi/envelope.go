package cabi

/*
#cgo CFLAGS: -I${SRCDIR} -I${SRCDIR}/../../../include
#include "cabi.h"
*/
import "C"

import (
	"errors"
	"unsafe"

	"github.com/openfroyo/phonebridge/pkg/boundary"
	"github.com/openfroyo/phonebridge/pkg/engine"
)

// Each builder returns a fully populated envelope or NULL. A partially built
// graph is released before returning NULL.

func newStringResult(r boundary.Result[string]) unsafe.Pointer {
	p := alloc(kindStringResult, uintptr(C.sizeof_dr_string_result))
	if p == nil {
		return nil
	}
	res := (*C.dr_string_result)(p)
	if v, ok := r.Value(); ok {
		res.data = newString(v)
		if res.data == nil {
			release(p)
			return nil
		}
		return p
	}
	if !setError(p, &res.error, r.Message()) {
		return nil
	}
	return p
}

func newNumberTypeResult(r boundary.Result[engine.NumberType]) unsafe.Pointer {
	p := alloc(kindNumberTypeResult, uintptr(C.sizeof_dr_number_type_result))
	if p == nil {
		return nil
	}
	res := (*C.dr_number_type_result)(p)
	if v, ok := r.Value(); ok {
		res.data = C.dr_number_type(v.Ordinal())
		return p
	}
	if !setError(p, &res.error, r.Message()) {
		return nil
	}
	return p
}

func newBoolResult(r boundary.Result[bool]) unsafe.Pointer {
	p := alloc(kindBoolResult, uintptr(C.sizeof_dr_bool_result))
	if p == nil {
		return nil
	}
	res := (*C.dr_bool_result)(p)
	if v, ok := r.Value(); ok {
		res.data = C.bool(v)
		return p
	}
	if !setError(p, &res.error, r.Message()) {
		return nil
	}
	return p
}

func newRegionInfoResult(r boundary.Result[boundary.RegionInfo]) unsafe.Pointer {
	p := alloc(kindRegionInfoResult, uintptr(C.sizeof_dr_region_info_result))
	if p == nil {
		return nil
	}
	res := (*C.dr_region_info_result)(p)

	v, ok := r.Value()
	if !ok {
		if !setError(p, &res.error, r.Message()) {
			return nil
		}
		return p
	}

	info := alloc(kindRegionInfo, uintptr(C.sizeof_dr_region_info))
	if info == nil {
		release(p)
		return nil
	}
	// attach first so releasing p reclaims whatever was built
	res.data = (*C.dr_region_info)(info)
	res.data.region_code = C.uint16_t(v.RegionCode)
	res.data.phone_number_value = C.uint64_t(v.PhoneNumberValue)
	res.data.country_code = newString(v.CountryCode)
	res.data.formatted_number = newString(v.FormattedNumber)
	if res.data.country_code == nil || res.data.formatted_number == nil {
		release(p)
		return nil
	}
	return p
}

func setError(owner unsafe.Pointer, field **C.char, msg string) bool {
	*field = newString(msg)
	if *field == nil {
		release(owner)
		return false
	}
	return true
}

var (
	errBothSet    = errors.New("cabi: envelope has both data and error set")
	errNeitherSet = errors.New("cabi: envelope has neither data nor error set")
	errNil        = errors.New("cabi: envelope is NULL")
)

// ReadStringResult converts a dr_string_result back into a Result without
// releasing it. It fails when the envelope breaks exclusivity.
func ReadStringResult(p unsafe.Pointer) (boundary.Result[string], error) {
	if p == nil {
		return boundary.Result[string]{}, errNil
	}
	res := (*C.dr_string_result)(p)
	switch {
	case res.data != nil && res.error != nil:
		return boundary.Result[string]{}, errBothSet
	case res.data != nil:
		return boundary.Ok(C.GoString(res.data)), nil
	case res.error != nil:
		return boundary.FromMessage[string](C.GoString(res.error)), nil
	default:
		return boundary.Result[string]{}, errNeitherSet
	}
}

// ReadNumberTypeResult converts a dr_number_type_result back into a Result.
func ReadNumberTypeResult(p unsafe.Pointer) (boundary.Result[engine.NumberType], error) {
	if p == nil {
		return boundary.Result[engine.NumberType]{}, errNil
	}
	res := (*C.dr_number_type_result)(p)
	if res.error != nil {
		if res.data != 0 {
			return boundary.Result[engine.NumberType]{}, errBothSet
		}
		return boundary.FromMessage[engine.NumberType](C.GoString(res.error)), nil
	}
	t, err := engine.NumberTypeFromOrdinal(uint32(res.data))
	if err != nil {
		return boundary.Result[engine.NumberType]{}, err
	}
	return boundary.Ok(t), nil
}

// ReadBoolResult converts a dr_bool_result back into a Result.
func ReadBoolResult(p unsafe.Pointer) (boundary.Result[bool], error) {
	if p == nil {
		return boundary.Result[bool]{}, errNil
	}
	res := (*C.dr_bool_result)(p)
	if res.error != nil {
		if bool(res.data) {
			return boundary.Result[bool]{}, errBothSet
		}
		return boundary.FromMessage[bool](C.GoString(res.error)), nil
	}
	return boundary.Ok(bool(res.data)), nil
}

// ReadRegionInfoResult converts a dr_region_info_result back into a Result.
func ReadRegionInfoResult(p unsafe.Pointer) (boundary.Result[boundary.RegionInfo], error) {
	if p == nil {
		return boundary.Result[boundary.RegionInfo]{}, errNil
	}
	res := (*C.dr_region_info_result)(p)
	switch {
	case res.data != nil && res.error != nil:
		return boundary.Result[boundary.RegionInfo]{}, errBothSet
	case res.data != nil:
		return boundary.Ok(boundary.RegionInfo{
			RegionCode:       uint16(res.data.region_code),
			PhoneNumberValue: uint64(res.data.phone_number_value),
			CountryCode:      C.GoString(res.data.country_code),
			FormattedNumber:  C.GoString(res.data.formatted_number),
		}), nil
	case res.error != nil:
		return boundary.FromMessage[boundary.RegionInfo](C.GoString(res.error)), nil
	default:
		return boundary.Result[boundary.RegionInfo]{}, errNeitherSet
	}
}
