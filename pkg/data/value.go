package data

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Value is a node of a document tree. The set of implementations is closed:
// Null, Bool, Int, Uint, Float, String, Array and Object.
type Value interface {
	// Kind returns the discriminator for the node's stored shape.
	Kind() Kind

	value()
}

// Null is the JSON null value.
type Null struct{}

// Bool is a boolean node.
type Bool bool

// Int is a signed 64-bit integer node.
type Int int64

// Uint is an unsigned 64-bit integer node.
type Uint uint64

// Float is a 64-bit floating point node.
type Float float64

// String is a UTF-8 text node.
type String string

// Array is an ordered sequence of nodes.
type Array []Value

// Object maps unique keys to nodes.
type Object map[string]Value

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Int) Kind() Kind    { return KindInt }
func (Uint) Kind() Kind   { return KindUint }
func (Float) Kind() Kind  { return KindFloat }
func (String) Kind() Kind { return KindString }
func (Array) Kind() Kind  { return KindArray }
func (Object) Kind() Kind { return KindObject }

func (Null) value()   {}
func (Bool) value()   {}
func (Int) value()    {}
func (Uint) value()   {}
func (Float) value()  {}
func (String) value() {}
func (Array) value()  {}
func (Object) value() {}

// Keys returns the object's keys in lexicographic byte order.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of v. Scalars are returned as-is.
func Clone(v Value) Value {
	switch n := v.(type) {
	case Array:
		out := make(Array, len(n))
		for i, child := range n {
			out[i] = Clone(child)
		}
		return out
	case Object:
		out := make(Object, len(n))
		for k, child := range n {
			out[k] = Clone(child)
		}
		return out
	case nil:
		return Null{}
	default:
		return v
	}
}

// Equal reports whether a and b have the same shape and contents.
func Equal(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Array:
		y := b.(Array)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Object:
		y := b.(Object)
		if len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	case Float:
		y := b.(Float)
		return x == y || (math.IsNaN(float64(x)) && math.IsNaN(float64(y)))
	default:
		return a == b
	}
}

// FromNative converts the output of a generic decoder (encoding/json with
// UseNumber, yaml.v3, or hand-built maps) into a Value tree.
func FromNative(x interface{}) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case json.Number:
		return classifyNumber(string(v))
	case int:
		return fromSigned(int64(v)), nil
	case int8:
		return fromSigned(int64(v)), nil
	case int16:
		return fromSigned(int64(v)), nil
	case int32:
		return fromSigned(int64(v)), nil
	case int64:
		return fromSigned(v), nil
	case uint:
		return Uint(v), nil
	case uint8:
		return Uint(v), nil
	case uint16:
		return Uint(v), nil
	case uint32:
		return Uint(v), nil
	case uint64:
		return Uint(v), nil
	case float32:
		return Float(v), nil
	case float64:
		return Float(v), nil
	case time.Time:
		return String(v.Format(time.RFC3339Nano)), nil
	case []byte:
		return String(base64.StdEncoding.EncodeToString(v)), nil
	case []interface{}:
		arr := make(Array, len(v))
		for i, item := range v {
			child, err := FromNative(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			arr[i] = child
		}
		return arr, nil
	case map[string]interface{}:
		obj := make(Object, len(v))
		for k, item := range v {
			child, err := FromNative(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			obj[k] = child
		}
		return obj, nil
	case map[interface{}]interface{}:
		obj := make(Object, len(v))
		for k, item := range v {
			key := fmt.Sprint(k)
			if _, dup := obj[key]; dup {
				return nil, fmt.Errorf("duplicate key %q after conversion to text", key)
			}
			child, err := FromNative(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			obj[key] = child
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", x)
	}
}

func fromSigned(v int64) Value {
	if v >= 0 {
		return Uint(uint64(v))
	}
	return Int(v)
}

// classifyNumber applies the sign-based integer rule to a numeric literal.
func classifyNumber(lit string) (Value, error) {
	if !strings.ContainsAny(lit, ".eE") {
		if strings.HasPrefix(lit, "-") {
			if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
				return Int(i), nil
			}
		} else if u, err := strconv.ParseUint(lit, 10, 64); err == nil {
			return Uint(u), nil
		}
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", lit, err)
	}
	return Float(f), nil
}
