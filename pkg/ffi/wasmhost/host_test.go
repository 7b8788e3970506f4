package wasmhost

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openfroyo/hostdata/pkg/data"
	"github.com/openfroyo/hostdata/pkg/ffi"
)

// testGuestWasm is a minimal guest: one page of memory, a bump allocator
// exported as malloc starting at offset 1024, and a no-op free.
var testGuestWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type section: (i32) -> i32, (i32) -> ()
	0x01, 0x0a, 0x02, 0x60, 0x01, 0x7f, 0x01, 0x7f, 0x60, 0x01, 0x7f, 0x00,
	// function section
	0x03, 0x03, 0x02, 0x00, 0x01,
	// memory section: min 1 page
	0x05, 0x03, 0x01, 0x00, 0x01,
	// global section: mutable i32 heap pointer = 1024
	0x06, 0x07, 0x01, 0x7f, 0x01, 0x41, 0x80, 0x08, 0x0b,
	// export section: memory, malloc, free
	0x07, 0x1a, 0x03,
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00,
	0x06, 0x6d, 0x61, 0x6c, 0x6c, 0x6f, 0x63, 0x00, 0x00,
	0x04, 0x66, 0x72, 0x65, 0x65, 0x00, 0x01,
	// code section
	0x0a, 0x14, 0x02,
	0x0f, 0x01, 0x01, 0x7f, 0x23, 0x00, 0x22, 0x01, 0x20, 0x00, 0x6a, 0x24, 0x00, 0x20, 0x01, 0x0b,
	0x02, 0x00, 0x0b,
}

const sampleJSON = `{"bool":true,"i64":-5,"u64":10,"f64":1.2,"string":"abc","array":[123,"def"],"obj":{"a":"b"},"empty":{}}`

type testEnv struct {
	t      *testing.T
	ctx    context.Context
	bridge *ffi.Bridge
	host   *HostModule
	guest  *Guest
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	bridge := ffi.NewBridge(nil)

	rt, err := NewRuntime(ctx, bridge, nil)
	if err != nil {
		t.Fatalf("NewRuntime error: %v", err)
	}
	t.Cleanup(func() { rt.Close(ctx) })

	guest, err := rt.Instantiate(ctx, "guest", testGuestWasm)
	if err != nil {
		t.Fatalf("Instantiate error: %v", err)
	}

	return &testEnv{t: t, ctx: ctx, bridge: bridge, host: rt.Host(), guest: guest}
}

// str copies s into guest memory and returns its address and length.
func (e *testEnv) str(s string) (uint32, uint32) {
	e.t.Helper()
	if s == "" {
		return 0, 0
	}
	ptr, err := e.guest.allocate(e.ctx, uint32(len(s)))
	if err != nil {
		e.t.Fatalf("allocate error: %v", err)
	}
	if !e.guest.memory.Write(ptr, []byte(s)) {
		e.t.Fatalf("write failed")
	}
	return ptr, uint32(len(s))
}

// ptr is like str but keeps an empty pointer present.
func (e *testEnv) ptr(s string) (uint32, uint32) {
	e.t.Helper()
	if s != "" {
		return e.str(s)
	}
	addr, err := e.guest.allocate(e.ctx, 1)
	if err != nil {
		e.t.Fatalf("allocate error: %v", err)
	}
	return addr, 0
}

func (e *testEnv) slot(h uint64) uint32 {
	e.t.Helper()
	addr, err := e.guest.allocate(e.ctx, cellSize)
	if err != nil {
		e.t.Fatalf("allocate error: %v", err)
	}
	e.guest.memory.WriteUint64Le(addr, h)
	return addr
}

func (e *testEnv) u32(addr uint32) uint32 {
	e.t.Helper()
	v, ok := e.guest.memory.ReadUint32Le(addr)
	if !ok {
		e.t.Fatalf("read u32 at %#x failed", addr)
	}
	return v
}

func (e *testEnv) u64(addr uint32) uint64 {
	e.t.Helper()
	v, ok := e.guest.memory.ReadUint64Le(addr)
	if !ok {
		e.t.Fatalf("read u64 at %#x failed", addr)
	}
	return v
}

func (e *testEnv) cstring(addr uint32) string {
	e.t.Helper()
	var b strings.Builder
	for {
		c, ok := e.guest.memory.ReadByte(addr)
		if !ok {
			e.t.Fatalf("read byte at %#x failed", addr)
		}
		if c == 0 {
			return b.String()
		}
		b.WriteByte(c)
		addr++
	}
}

func (e *testEnv) open(content string) uint64 {
	e.t.Helper()
	path := filepath.Join(e.t.TempDir(), "doc.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		e.t.Fatalf("write error: %v", err)
	}
	pp, pl := e.str(path)
	h := e.host.dataOpen(e.ctx, e.guest.module, pp, pl)
	if h == 0 {
		e.t.Fatalf("data_open failed: %v", ffi.LastError())
	}
	return h
}

func TestHost_GetValueType(t *testing.T) {
	env := newTestEnv(t)
	h := env.open(sampleJSON)
	slot := env.slot(h)

	tests := []struct {
		pointer string
		want    int32
	}{
		{pointer: "/bool", want: int32(ffi.TagBool)},
		{pointer: "/i64", want: int32(ffi.TagInt)},
		{pointer: "/u64", want: int32(ffi.TagUint)},
		{pointer: "/f64", want: int32(ffi.TagFloat)},
		{pointer: "/string", want: int32(ffi.TagString)},
		{pointer: "/array", want: int32(ffi.TagArray)},
		{pointer: "/obj", want: int32(ffi.TagObject)},
		{pointer: "/missing", want: ffi.TagSentinel},
	}

	for _, tt := range tests {
		t.Run(tt.pointer, func(t *testing.T) {
			pp, pl := env.str(tt.pointer)
			got := env.host.getValueType(env.ctx, env.guest.module, slot, pp, pl)
			if got != tt.want {
				t.Errorf("get_value_type(%s) = %d, want %d", tt.pointer, got, tt.want)
			}
			if env.u64(slot) != h {
				t.Errorf("handle slot not restored")
			}
		})
	}

	if got := env.host.getValueType(env.ctx, env.guest.module, slot, 0, 0); got != int32(ffi.TagObject) {
		t.Errorf("get_value_type(absent) = %d, want object", got)
	}
}

func TestHost_LastError(t *testing.T) {
	env := newTestEnv(t)
	h := env.open(sampleJSON)
	slot := env.slot(h)

	pp, pl := env.str("/nope")
	if got := env.host.getValueType(env.ctx, env.guest.module, slot, pp, pl); got != ffi.TagSentinel {
		t.Fatalf("expected sentinel, got %d", got)
	}

	addr := env.host.lastError(env.ctx, env.guest.module)
	if addr == 0 {
		t.Fatal("last_error returned null")
	}
	if got := env.cstring(addr); got != "could not find /nope in data" {
		t.Errorf("last_error = %q", got)
	}
}

func TestHost_GetValueKeys(t *testing.T) {
	env := newTestEnv(t)
	h := env.open(sampleJSON)
	slot := env.slot(h)

	header := env.host.getValueKeys(env.ctx, env.guest.module, slot, 0, 0)
	if header == 0 {
		t.Fatalf("get_value_keys returned null: %v", ffi.LastError())
	}
	items, n := env.u32(header), env.u32(header+4)

	want := []string{"array", "bool", "empty", "f64", "i64", "obj", "string", "u64"}
	if int(n) != len(want) {
		t.Fatalf("key count = %d, want %d", n, len(want))
	}
	for i, w := range want {
		if got := env.cstring(env.u32(items + uint32(4*i))); got != w {
			t.Errorf("key %d = %q, want %q", i, got, w)
		}
	}

	pp, pl := env.str("/string")
	if got := env.host.getValueKeys(env.ctx, env.guest.module, slot, pp, pl); got != 0 {
		t.Errorf("keys of string = %#x, want 0", got)
	}

	pp, pl = env.str("/empty")
	header = env.host.getValueKeys(env.ctx, env.guest.module, slot, pp, pl)
	if header == 0 {
		t.Fatal("keys of empty object should be a zero-length array")
	}
	if env.u32(header+4) != 0 {
		t.Errorf("empty object key count = %d", env.u32(header+4))
	}
}

func TestHost_GetValue(t *testing.T) {
	env := newTestEnv(t)
	h := env.open(sampleJSON)
	slot := env.slot(h)

	get := func(tag ffi.TypeTag, pointer string) uint32 {
		pp, pl := env.str(pointer)
		return env.host.getValue(env.ctx, env.guest.module, slot, uint32(tag), pp, pl)
	}

	if addr := get(ffi.TagBool, "/bool"); addr == 0 || env.u64(addr) != 1 {
		t.Errorf("bool payload wrong (addr %#x)", addr)
	}
	if addr := get(ffi.TagInt, "/i64"); addr == 0 || int64(env.u64(addr)) != -5 {
		t.Errorf("int payload wrong (addr %#x)", addr)
	}
	if addr := get(ffi.TagUint, "/u64"); addr == 0 || env.u64(addr) != 10 {
		t.Errorf("uint payload wrong (addr %#x)", addr)
	}
	if addr := get(ffi.TagFloat, "/f64"); addr == 0 || math.Float64frombits(env.u64(addr)) != 1.2 {
		t.Errorf("float payload wrong (addr %#x)", addr)
	}
	if addr := get(ffi.TagString, "/string"); addr == 0 || env.cstring(addr) != "abc" {
		t.Errorf("string payload wrong (addr %#x)", addr)
	}
	if addr := get(ffi.TagUint, "/i64"); addr != 0 {
		t.Errorf("uint on negative returned %#x", addr)
	}
	if ffi.LastErrorMessage() != "expected uint, found int" {
		t.Errorf("last error = %q", ffi.LastErrorMessage())
	}

	header := get(ffi.TagArray, "/array")
	if header == 0 {
		t.Fatalf("array payload null: %v", ffi.LastError())
	}
	items, n := env.u32(header), env.u32(header+4)
	if n != 2 {
		t.Fatalf("array length = %d, want 2", n)
	}
	itemSlot := env.slot(env.u64(items + cellSize))
	addr := env.host.getValue(env.ctx, env.guest.module, itemSlot, uint32(ffi.TagString), 0, 0)
	if addr == 0 || env.cstring(addr) != "def" {
		t.Errorf("array item payload wrong (addr %#x)", addr)
	}

	objAddr := get(ffi.TagObject, "/obj")
	if objAddr == 0 {
		t.Fatalf("object payload null: %v", ffi.LastError())
	}
	sub := env.u64(objAddr)
	if sub == h {
		t.Error("object with pointer should be a new handle")
	}

	self := env.host.getValue(env.ctx, env.guest.module, slot, uint32(ffi.TagObject), 0, 0)
	if self == 0 || env.u64(self) != h {
		t.Errorf("object without pointer should return own handle")
	}

	if env.u64(slot) != h {
		t.Error("handle slot changed")
	}
}

func TestHost_EmptyPointerIsPresent(t *testing.T) {
	env := newTestEnv(t)
	h := env.open(sampleJSON)
	slot := env.slot(h)

	pp, pl := env.ptr("")
	addr := env.host.getValue(env.ctx, env.guest.module, slot, uint32(ffi.TagObject), pp, pl)
	if addr == 0 {
		t.Fatalf("get_value failed: %v", ffi.LastError())
	}
	if env.u64(addr) == h {
		t.Error("explicit empty pointer should copy the root")
	}
}

func TestHost_FreeValue(t *testing.T) {
	env := newTestEnv(t)
	h := env.open(sampleJSON)

	if status := env.host.freeValue(env.ctx, h); status != 0 {
		t.Fatalf("free_value = %d", status)
	}
	if status := env.host.freeValue(env.ctx, h); status != 1 {
		t.Errorf("second free_value = %d, want 1", status)
	}
	if !data.IsHandle(ffi.LastError()) {
		t.Errorf("expected handle error, got %v", ffi.LastError())
	}
	if env.bridge.Len() != 0 {
		t.Errorf("live handles = %d", env.bridge.Len())
	}
}

func TestHost_OutOfRangeMemory(t *testing.T) {
	env := newTestEnv(t)
	h := env.open(sampleJSON)
	slot := env.slot(h)

	if got := env.host.getValueType(env.ctx, env.guest.module, slot, 0xfffffff0, 64); got != ffi.TagSentinel {
		t.Errorf("out of range pointer returned %d", got)
	}
	if !data.IsEncoding(ffi.LastError()) {
		t.Errorf("expected encoding error, got %v", ffi.LastError())
	}
	if got := env.host.getValueType(env.ctx, env.guest.module, 0, 0, 0); got != ffi.TagSentinel {
		t.Errorf("null slot returned %d", got)
	}
}

func TestRuntime_RequiresAllocator(t *testing.T) {
	ctx := context.Background()
	rt, err := NewRuntime(ctx, ffi.NewBridge(nil), nil)
	if err != nil {
		t.Fatalf("NewRuntime error: %v", err)
	}
	defer rt.Close(ctx)

	empty := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if _, err := rt.Instantiate(ctx, "empty", empty); err == nil {
		t.Fatal("expected error for guest without memory")
	}
}
