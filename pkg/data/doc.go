// Package data implements the in-memory document model used by OpenFroyo
// providers to read structured configuration and facts.
//
// A Document is a tree of Values loaded from a JSON, YAML or CUE file. Every
// node has exactly one Kind; nodes are addressed with RFC 6901 JSON Pointers:
//
//	doc, err := data.NewLoader(nil).Open(ctx, "host.json")
//	if err != nil {
//	    return err
//	}
//	kind, err := doc.TypeOf(data.At("/array/0"))
//
// Documents are handed to code outside the Go runtime through a Registry,
// which issues generation-checked Handles and enforces that a Document has a
// single owner at a time. See package ffi for the boundary itself.
//
// # Numbers
//
// Integer literals are classified by sign: a non-negative integer that fits
// in 64 bits is a Uint, a negative one is an Int. Literals with a fraction or
// exponent, and integers that overflow, are Floats. Value extraction never
// coerces between the three.
//
// # Errors
//
// All failures are *Error values carrying an ErrorClass (load, lookup,
// mismatch, encoding, handle). Use the Is* predicates or errors.As to
// inspect them.
package data
