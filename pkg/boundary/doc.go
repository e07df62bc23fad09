// Package boundary is the contract between the phone-number engine and the
// hosts that call it through a native boundary.
//
// Every operation returns a Result, a tagged union holding exactly one of a
// value or a classified error. Native bridges (package cabi for C callers,
// package wasmhost for WebAssembly guests, package runner for JSON over stdio)
// flatten a Result into a two-field {data, error} shape at the last moment and
// hand ownership of any allocation to the caller.
//
// The Surface never retains inputs, never caches results and recovers any
// engine panic into an internal failure, so a fault inside the engine cannot
// unwind into a foreign caller.
//
// Region codes are passed to the engine untouched. Whether "us" is accepted
// is the engine's decision.
package boundary
