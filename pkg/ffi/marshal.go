package ffi

import (
	"github.com/openfroyo/hostdata/pkg/data"
)

// Payload is a boundary-safe view of one extracted value. Only the field
// matching Tag is meaningful.
type Payload struct {
	Tag TypeTag

	Bool  bool
	Int   int64
	Uint  uint64
	Float float64

	// Text is an independent copy of a String value.
	Text string

	// Items holds one new root handle per element of an Array. Each refers
	// to a deep copy and must be freed by the caller.
	Items []Handle

	// Object is the handle of an extracted Object: a new handle for a
	// pointer extraction, the caller's own handle otherwise.
	Object Handle
}

// marshal validates the node at p against tag and builds its payload.
// New documents for Array items and Object extractions are inserted into reg.
func marshal(reg *data.Registry, doc *data.Document, self Handle, tag TypeTag, p data.Pointer) (*Payload, error) {
	if !tag.Valid() {
		return nil, data.NewEncodingError("unknown type tag", nil).WithPointer(p.String())
	}

	// Object without a pointer re-exposes the caller's handle, so the root
	// is checked in place instead of copied.
	if tag == TagObject && !p.IsSet() {
		if got := doc.Root().Kind(); got != data.KindObject {
			return nil, data.NewMismatchError(data.KindObject, got)
		}
		return &Payload{Tag: TagObject, Object: self}, nil
	}

	node, err := doc.Expect(tag, p)
	if err != nil {
		return nil, err
	}

	out := &Payload{Tag: tag}
	switch v := node.(type) {
	case data.Null:
	case data.Bool:
		out.Bool = bool(v)
	case data.Int:
		out.Int = int64(v)
	case data.Uint:
		out.Uint = uint64(v)
	case data.Float:
		out.Float = float64(v)
	case data.String:
		out.Text = string(v)
	case data.Array:
		out.Items = make([]Handle, len(v))
		for i, child := range v {
			out.Items[i] = reg.Insert(doc.Derive(child))
		}
	case data.Object:
		out.Object = reg.Insert(doc.Derive(v))
	}
	return out, nil
}
