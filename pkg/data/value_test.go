package data

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFromNative_Numbers(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  Value
	}{
		{name: "json non-negative", input: json.Number("10"), want: Uint(10)},
		{name: "json zero", input: json.Number("0"), want: Uint(0)},
		{name: "json negative", input: json.Number("-5"), want: Int(-5)},
		{name: "json fraction", input: json.Number("1.2"), want: Float(1.2)},
		{name: "json exponent", input: json.Number("1e3"), want: Float(1000)},
		{name: "json max uint", input: json.Number("18446744073709551615"), want: Uint(math.MaxUint64)},
		{name: "json uint overflow", input: json.Number("18446744073709551616"), want: Float(18446744073709551616)},
		{name: "json min int", input: json.Number("-9223372036854775808"), want: Int(math.MinInt64)},
		{name: "native int positive", input: 7, want: Uint(7)},
		{name: "native int negative", input: -7, want: Int(-7)},
		{name: "native uint64", input: uint64(9), want: Uint(9)},
		{name: "native float", input: 2.5, want: Float(2.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromNative(tt.input)
			if err != nil {
				t.Fatalf("FromNative(%v) error: %v", tt.input, err)
			}
			if !Equal(got, tt.want) {
				t.Errorf("FromNative(%v) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFromNative_Unsupported(t *testing.T) {
	if _, err := FromNative(struct{}{}); err == nil {
		t.Error("expected error for unsupported type")
	}
	if _, err := FromNative([]interface{}{1, make(chan int)}); err == nil {
		t.Error("expected error for nested unsupported type")
	}
}

func TestObjectKeys_Sorted(t *testing.T) {
	obj := Object{"b": Null{}, "a": Null{}, "B": Null{}}
	got := obj.Keys()
	want := []string{"B", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", got, want)
		}
	}
}

func TestClone_Independent(t *testing.T) {
	orig := Object{"list": Array{Uint(1), Object{"x": String("y")}}}
	cp := Clone(orig).(Object)

	cp["list"].(Array)[1].(Object)["x"] = String("changed")
	cp["new"] = Bool(true)

	if _, ok := orig["new"]; ok {
		t.Error("adding to clone modified original")
	}
	inner := orig["list"].(Array)[1].(Object)
	if inner["x"] != String("y") {
		t.Errorf("original modified through clone: %v", inner["x"])
	}
}

func TestKindNames(t *testing.T) {
	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		if err != nil {
			t.Fatalf("ParseKind(%q) error: %v", k.String(), err)
		}
		if parsed != k {
			t.Errorf("ParseKind(%q) = %v, want %v", k.String(), parsed, k)
		}
	}
	if Kind(8).Valid() {
		t.Error("Kind(8) should be invalid")
	}
	if _, err := ParseKind("number"); err == nil {
		t.Error("expected error for unknown kind name")
	}
}
