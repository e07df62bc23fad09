// Command libdrphone builds the phonebridge C shared library.
//
//	go build -buildmode=c-shared -o libdrphone.so ./cmd/libdrphone
//
// The exported symbols match include/drphone.h. Configuration is read once,
// on the first call, from DRPHONE_CONFIG and DRPHONE_LOG_LEVEL.
package main

/*
#cgo CFLAGS: -I${SRCDIR}/../../include
#include "drphone_types.h"
*/
import "C"

import (
	"unsafe"
)

//export dr_format
func dr_format(number, region *C.char, format C.dr_number_format) *C.dr_string_result {
	p := bridge().Format(unsafe.Pointer(number), unsafe.Pointer(region), uint32(format))
	return (*C.dr_string_result)(p)
}

//export dr_get_number_type
func dr_get_number_type(number, region *C.char) *C.dr_number_type_result {
	p := bridge().NumberType(unsafe.Pointer(number), unsafe.Pointer(region))
	return (*C.dr_number_type_result)(p)
}

//export dr_region_for_calling_code
func dr_region_for_calling_code(code C.uint16_t) *C.dr_string_result {
	return (*C.dr_string_result)(bridge().RegionForCallingCode(uint16(code)))
}

//export dr_get_region_info
func dr_get_region_info(number, region *C.char) *C.dr_region_info_result {
	p := bridge().RegionInfo(unsafe.Pointer(number), unsafe.Pointer(region))
	return (*C.dr_region_info_result)(p)
}

//export dr_is_valid_number
func dr_is_valid_number(number, region *C.char) *C.dr_bool_result {
	p := bridge().IsValid(unsafe.Pointer(number), unsafe.Pointer(region))
	return (*C.dr_bool_result)(p)
}

//export dr_release
func dr_release(value unsafe.Pointer) {
	bridge().Release(value)
}

//export dr_abi_version
func dr_abi_version() C.uint32_t {
	return C.uint32_t(C.DR_ABI_VERSION)
}

func main() {}
