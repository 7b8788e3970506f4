package data

import (
	"strconv"
	"strings"
)

// Pointer is an optional RFC 6901 JSON Pointer.
//
// The zero value is the absent pointer, which addresses the whole document.
// At("") is present but empty; it also addresses the root, but some
// operations (object extraction) treat an explicit pointer differently from
// an absent one.
type Pointer struct {
	raw string
	set bool
}

// Whole is the absent pointer.
var Whole = Pointer{}

// At returns a present pointer with the given text.
func At(raw string) Pointer {
	return Pointer{raw: raw, set: true}
}

// IsSet reports whether the pointer was supplied.
func (p Pointer) IsSet() bool {
	return p.set
}

// String returns the pointer text, or "" when absent.
func (p Pointer) String() string {
	return p.raw
}

// Child returns the pointer extended by one reference token.
func (p Pointer) Child(token string) Pointer {
	return At(p.raw + "/" + EscapeToken(token))
}

// Index returns the pointer extended by an array index.
func (p Pointer) Index(i int) Pointer {
	return At(p.raw + "/" + strconv.Itoa(i))
}

// Tokens splits the pointer into unescaped reference tokens. The root
// pointer has no tokens.
func (p Pointer) Tokens() ([]string, error) {
	if p.raw == "" {
		return nil, nil
	}
	if p.raw[0] != '/' {
		return nil, NewNotFoundError(p.raw)
	}
	parts := strings.Split(p.raw[1:], "/")
	for i, part := range parts {
		tok, ok := unescapeToken(part)
		if !ok {
			return nil, NewNotFoundError(p.raw)
		}
		parts[i] = tok
	}
	return parts, nil
}

// EscapeToken encodes a key for use as a reference token.
func EscapeToken(token string) string {
	if !strings.ContainsAny(token, "~/") {
		return token
	}
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

// unescapeToken decodes ~1 then ~0, rejecting any other use of '~'.
func unescapeToken(token string) (string, bool) {
	if !strings.Contains(token, "~") {
		return token, true
	}
	var b strings.Builder
	b.Grow(len(token))
	for i := 0; i < len(token); i++ {
		c := token[i]
		if c != '~' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(token) {
			return "", false
		}
		switch token[i+1] {
		case '0':
			b.WriteByte('~')
		case '1':
			b.WriteByte('/')
		default:
			return "", false
		}
		i++
	}
	return b.String(), true
}

// Resolve walks root along p. It never panics; anything that does not lead
// to a node is a lookup error naming the pointer.
func Resolve(root Value, p Pointer) (Value, error) {
	tokens, err := p.Tokens()
	if err != nil {
		return nil, err
	}
	node := root
	for _, tok := range tokens {
		switch n := node.(type) {
		case Object:
			child, ok := n[tok]
			if !ok {
				return nil, NewNotFoundError(p.raw)
			}
			node = child
		case Array:
			idx, ok := parseIndex(tok)
			if !ok || idx >= uint64(len(n)) {
				return nil, NewNotFoundError(p.raw)
			}
			node = n[idx]
		default:
			return nil, NewNotFoundError(p.raw)
		}
	}
	return node, nil
}

// parseIndex accepts "0" or a digit string without a leading zero.
func parseIndex(tok string) (uint64, bool) {
	if tok == "" || (len(tok) > 1 && tok[0] == '0') {
		return 0, false
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return 0, false
		}
	}
	idx, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return 0, false
	}
	return idx, true
}
