package data

import (
	"testing"
)

func TestDocument_Keys(t *testing.T) {
	doc := NewDocument(testTree(), "test", FormatJSON)

	keys, err := doc.Keys(At("/obj"))
	if err != nil {
		t.Fatalf("Keys(/obj) error: %v", err)
	}
	if len(keys) != 1 || keys[0] != "a" {
		t.Errorf("Keys(/obj) = %v, want [a]", keys)
	}

	keys, err = doc.Keys(At("/array"))
	if err != nil {
		t.Errorf("Keys on array should not fail: %v", err)
	}
	if keys != nil {
		t.Errorf("Keys on array = %v, want nil", keys)
	}

	if _, err := doc.Keys(At("/missing")); !IsLookup(err) {
		t.Errorf("Keys(/missing) expected lookup error, got %v", err)
	}

	empty := NewDocument(Object{}, "test", FormatJSON)
	keys, err = empty.Keys(Whole)
	if err != nil || keys == nil || len(keys) != 0 {
		t.Errorf("Keys on empty object = %v, %v; want empty non-nil", keys, err)
	}
}

func TestDocument_Expect(t *testing.T) {
	doc := NewDocument(testTree(), "test", FormatJSON)

	tests := []struct {
		name    string
		kind    Kind
		pointer string
		wantErr func(error) bool
	}{
		{name: "uint matches", kind: KindUint, pointer: "/u64"},
		{name: "int matches", kind: KindInt, pointer: "/i64"},
		{name: "uint on negative", kind: KindUint, pointer: "/i64", wantErr: IsMismatch},
		{name: "int on positive", kind: KindInt, pointer: "/u64", wantErr: IsMismatch},
		{name: "float on integer", kind: KindFloat, pointer: "/u64", wantErr: IsMismatch},
		{name: "null on string", kind: KindNull, pointer: "/string", wantErr: IsMismatch},
		{name: "missing", kind: KindString, pointer: "/nope", wantErr: IsLookup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := doc.Expect(tt.kind, At(tt.pointer))
			if tt.wantErr != nil {
				if !tt.wantErr(err) {
					t.Errorf("Expect(%s, %s) error = %v", tt.kind, tt.pointer, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expect(%s, %s) error: %v", tt.kind, tt.pointer, err)
			}
			if got.Kind() != tt.kind {
				t.Errorf("kind = %s, want %s", got.Kind(), tt.kind)
			}
		})
	}
}

func TestDocument_MismatchMessage(t *testing.T) {
	doc := NewDocument(testTree(), "test", FormatJSON)
	_, err := doc.Expect(KindUint, At("/i64"))
	if err == nil {
		t.Fatal("expected error")
	}
	if got, want := err.Error(), "expected uint, found int"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestDocument_Derive(t *testing.T) {
	doc := NewDocument(testTree(), "src.json", FormatJSON)
	obj, err := doc.Expect(KindObject, At("/obj"))
	if err != nil {
		t.Fatalf("Expect error: %v", err)
	}

	sub := doc.Derive(obj)
	if sub.ID() == doc.ID() {
		t.Error("derived document should have a fresh id")
	}
	if sub.Source() != "src.json" {
		t.Errorf("Source() = %q", sub.Source())
	}

	sub.Root().(Object)["a"] = String("changed")
	v, _ := doc.Lookup(At("/obj/a"))
	if v != String("b") {
		t.Errorf("parent modified through derived document: %v", v)
	}
}
