package ffi

import "github.com/openfroyo/hostdata/pkg/data"

// TypeTag is the wire discriminator of a value. It is the document Kind
// itself, so the two cannot drift apart.
type TypeTag = data.Kind

// Type tags in wire order.
const (
	TagNull   = data.KindNull
	TagBool   = data.KindBool
	TagInt    = data.KindInt
	TagUint   = data.KindUint
	TagFloat  = data.KindFloat
	TagString = data.KindString
	TagArray  = data.KindArray
	TagObject = data.KindObject
)

// TagSentinel is the integer transports return instead of a tag on failure.
const TagSentinel = -1

// Handle is re-exported for transports.
type Handle = data.Handle

// NullHandle is the failure sentinel for handles.
const NullHandle = data.NullHandle
