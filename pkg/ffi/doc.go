// Package ffi exposes documents to callers that cannot hold Go values.
//
// Bridge is the single boundary core used by every transport. Its methods
// follow the conventions a C or WASM caller expects:
//
//   - no method returns a Go error; failures return a sentinel (a zero
//     Handle, false, nil) and store the error in a process-wide slot read
//     with LastError;
//   - handle-taking methods borrow the document for the duration of the
//     call and write the handle back through the *Handle argument before
//     returning, on success and failure alike;
//   - successful calls never clear the error slot.
//
// The transports that flatten Payload values into foreign memory live in
// ffi/wasmhost, ffi/starlarkdata and cmd/libhostdata.
package ffi
