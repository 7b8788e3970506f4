package data

import "fmt"

// Kind discriminates the shape of a Value.
//
// The numeric values are part of the foreign boundary contract and must not
// be reordered.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindArray
	KindObject
)

var kindNames = [...]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindInt:    "int",
	KindUint:   "uint",
	KindFloat:  "float",
	KindString: "string",
	KindArray:  "array",
	KindObject: "object",
}

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	if k.Valid() {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the eight defined kinds.
func (k Kind) Valid() bool {
	return k <= KindObject
}

// Kinds returns every defined kind in tag order.
func Kinds() []Kind {
	return []Kind{KindNull, KindBool, KindInt, KindUint, KindFloat, KindString, KindArray, KindObject}
}

// ParseKind converts a kind name such as "uint" into a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown value kind %q", name)
}
