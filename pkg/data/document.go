package data

import (
	"github.com/google/uuid"
)

// Document is a loaded value tree. It is not safe for concurrent use; the
// Registry guarantees a single owner at a time.
type Document struct {
	id     uuid.UUID
	source string
	format Format
	root   Value
}

// NewDocument wraps root in a Document with a fresh identity.
func NewDocument(root Value, source string, format Format) *Document {
	if root == nil {
		root = Null{}
	}
	return &Document{
		id:     uuid.New(),
		source: source,
		format: format,
		root:   root,
	}
}

// ID returns the document's unique identity.
func (d *Document) ID() uuid.UUID { return d.id }

// Source returns the path the document was loaded from, or the source of
// its parent for derived documents.
func (d *Document) Source() string { return d.source }

// Format returns the encoding the document was decoded from.
func (d *Document) Format() Format { return d.format }

// Root returns the root node.
func (d *Document) Root() Value { return d.root }

// Lookup resolves p against the document.
func (d *Document) Lookup(p Pointer) (Value, error) {
	return Resolve(d.root, p)
}

// TypeOf returns the kind of the node at p.
func (d *Document) TypeOf(p Pointer) (Kind, error) {
	node, err := d.Lookup(p)
	if err != nil {
		return 0, err
	}
	return node.Kind(), nil
}

// Keys returns the sorted keys of the object at p. A node that resolves
// but is not an object yields no keys and no error.
func (d *Document) Keys(p Pointer) ([]string, error) {
	node, err := d.Lookup(p)
	if err != nil {
		return nil, err
	}
	obj, ok := node.(Object)
	if !ok {
		return nil, nil
	}
	return obj.Keys(), nil
}

// Expect resolves p and checks that the node has the wanted kind.
func (d *Document) Expect(want Kind, p Pointer) (Value, error) {
	node, err := d.Lookup(p)
	if err != nil {
		return nil, err
	}
	if got := node.Kind(); got != want {
		return nil, NewMismatchError(want, got).WithPointer(p.String())
	}
	return node, nil
}

// Derive returns a new document holding a deep copy of v. The copy shares
// nothing with d.
func (d *Document) Derive(v Value) *Document {
	return NewDocument(Clone(v), d.source, d.format)
}
