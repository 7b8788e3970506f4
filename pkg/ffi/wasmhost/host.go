// Package wasmhost exposes the data bridge to WASM guests as the
// "hostdata" host module.
//
// Guests must export memory, malloc(i32) i32 and free(i32). Every block the
// host returns is allocated with the guest's malloc and belongs to the
// guest, which releases it with its own free. Addresses are u32 offsets into
// guest memory, handles are i64, and a handle argument is passed as the
// address of an 8-byte cell that the host rewrites before returning.
//
//	data_open(path_ptr, path_len u32) i64                       // 0 on failure
//	get_value_type(slot, ptr_ptr, ptr_len u32) i32                // -1 on failure
//	get_value_keys(slot, ptr_ptr, ptr_len u32) u32                // 0 if empty
//	get_value(slot, tag, ptr_ptr, ptr_len u32) u32                // 0 on failure
//	free_value(handle i64) u32                                    // 0 on success
//	last_error() u32                                              // 0 if none
//
// A ptr_ptr of 0 means no pointer was supplied. Key lists and arrays are
// returned as an 8-byte header {items u32, len u32}; key items are
// addresses of NUL-terminated strings, array items are i64 handles.
// Strings are NUL-terminated. Every other payload is an 8-byte cell.
package wasmhost

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/openfroyo/hostdata/pkg/data"
	"github.com/openfroyo/hostdata/pkg/ffi"
	"github.com/openfroyo/hostdata/pkg/telemetry"
)

// ModuleName is the import module name guests link against.
const ModuleName = "hostdata"

// HostModule implements the host functions over a Bridge.
type HostModule struct {
	bridge *ffi.Bridge
	logger *telemetry.Logger
}

// NewHostModule binds host functions to bridge.
func NewHostModule(bridge *ffi.Bridge, logger *telemetry.Logger) *HostModule {
	return &HostModule{
		bridge: bridge,
		logger: logger.OrNop().NewComponentLogger("wasmhost"),
	}
}

func (h *HostModule) register(builder wazero.HostModuleBuilder) {
	builder.NewFunctionBuilder().WithFunc(h.dataOpen).Export("data_open")
	builder.NewFunctionBuilder().WithFunc(h.getValueType).Export("get_value_type")
	builder.NewFunctionBuilder().WithFunc(h.getValueKeys).Export("get_value_keys")
	builder.NewFunctionBuilder().WithFunc(h.getValue).Export("get_value")
	builder.NewFunctionBuilder().WithFunc(h.freeValue).Export("free_value")
	builder.NewFunctionBuilder().WithFunc(h.lastError).Export("last_error")
}

// guest resolves the calling module. A module without the allocator
// exports cannot receive results.
func (h *HostModule) guest(mod api.Module) (*Guest, bool) {
	g, err := newGuest(mod)
	if err != nil {
		h.fail("resolve guest", err)
		return nil, false
	}
	return g, true
}

func (h *HostModule) fail(op string, err error) {
	ffi.RecordError(err)
	h.logger.WithError(err).WithField("operation", op).Debug("Host function failed")
}

// withSlot reads the handle cell at slot, runs fn with it and writes the
// handle back.
func (h *HostModule) withSlot(g *Guest, slot uint32, fn func(handle *data.Handle)) bool {
	handle, err := g.readHandle(slot)
	if err != nil {
		h.fail("read handle", err)
		return false
	}
	fn(&handle)
	g.writeHandle(slot, handle)
	return true
}

func (h *HostModule) dataOpen(ctx context.Context, mod api.Module, pathPtr, pathLen uint32) uint64 {
	g, ok := h.guest(mod)
	if !ok {
		return 0
	}
	path, err := g.readText("path", pathPtr, pathLen)
	if err != nil {
		h.fail(ffi.OpOpen, err)
		return 0
	}
	return uint64(h.bridge.Open(ctx, path))
}

func (h *HostModule) getValueType(ctx context.Context, mod api.Module, slot, ptrPtr, ptrLen uint32) int32 {
	g, ok := h.guest(mod)
	if !ok {
		return ffi.TagSentinel
	}
	p, err := g.readPointer(ptrPtr, ptrLen)
	if err != nil {
		h.fail(ffi.OpGetValueType, err)
		return ffi.TagSentinel
	}

	result := int32(ffi.TagSentinel)
	h.withSlot(g, slot, func(handle *data.Handle) {
		if tag, ok := h.bridge.GetValueType(handle, p); ok {
			result = int32(tag)
		}
	})
	return result
}

func (h *HostModule) getValueKeys(ctx context.Context, mod api.Module, slot, ptrPtr, ptrLen uint32) uint32 {
	g, ok := h.guest(mod)
	if !ok {
		return 0
	}
	p, err := g.readPointer(ptrPtr, ptrLen)
	if err != nil {
		h.fail(ffi.OpGetValueKeys, err)
		return 0
	}

	var keys []string
	h.withSlot(g, slot, func(handle *data.Handle) {
		keys = h.bridge.GetValueKeys(handle, p)
	})
	if keys == nil {
		return 0
	}

	for _, k := range keys {
		if err := ffi.CheckCText(k); err != nil {
			h.fail(ffi.OpGetValueKeys, err)
			return 0
		}
	}
	addr, err := g.writeStringArray(ctx, keys)
	if err != nil {
		h.fail(ffi.OpGetValueKeys, err)
		return 0
	}
	return addr
}

func (h *HostModule) getValue(ctx context.Context, mod api.Module, slot, tag, ptrPtr, ptrLen uint32) uint32 {
	g, ok := h.guest(mod)
	if !ok {
		return 0
	}
	p, err := g.readPointer(ptrPtr, ptrLen)
	if err != nil {
		h.fail(ffi.OpGetValue, err)
		return 0
	}
	if tag > math.MaxUint8 {
		h.fail(ffi.OpGetValue, data.NewEncodingError("unknown type tag", nil))
		return 0
	}

	var (
		payload *ffi.Payload
		own     data.Handle
	)
	h.withSlot(g, slot, func(handle *data.Handle) {
		payload, _ = h.bridge.GetValue(handle, ffi.TypeTag(tag), p)
		own = *handle
	})
	if payload == nil {
		return 0
	}

	addr, err := h.writePayload(ctx, g, payload)
	if err != nil {
		h.release(payload, own)
		h.fail(ffi.OpGetValue, err)
		return 0
	}
	return addr
}

// writePayload flattens an extracted value into guest memory.
func (h *HostModule) writePayload(ctx context.Context, g *Guest, payload *ffi.Payload) (uint32, error) {
	switch payload.Tag {
	case ffi.TagNull:
		return g.writeCell(ctx, 0)
	case ffi.TagBool:
		var v uint64
		if payload.Bool {
			v = 1
		}
		return g.writeCell(ctx, v)
	case ffi.TagInt:
		return g.writeCell(ctx, uint64(payload.Int))
	case ffi.TagUint:
		return g.writeCell(ctx, payload.Uint)
	case ffi.TagFloat:
		return g.writeCell(ctx, math.Float64bits(payload.Float))
	case ffi.TagString:
		if err := ffi.CheckCText(payload.Text); err != nil {
			return 0, err
		}
		return g.writeCString(ctx, payload.Text)
	case ffi.TagArray:
		return g.writeHandleArray(ctx, payload.Items)
	default:
		return g.writeCell(ctx, uint64(payload.Object))
	}
}

// release frees handles created for a payload that never reached the
// guest. own is the caller's handle, which is never freed.
func (h *HostModule) release(payload *ffi.Payload, own data.Handle) {
	for _, item := range payload.Items {
		h.bridge.FreeValue(item)
	}
	if payload.Tag == ffi.TagObject && payload.Object != own {
		h.bridge.FreeValue(payload.Object)
	}
}

func (h *HostModule) freeValue(ctx context.Context, handle uint64) uint32 {
	return uint32(h.bridge.FreeValue(data.Handle(handle)))
}

func (h *HostModule) lastError(ctx context.Context, mod api.Module) uint32 {
	msg := ffi.LastErrorMessage()
	if msg == "" {
		return 0
	}
	g, ok := h.guest(mod)
	if !ok {
		return 0
	}
	addr, err := g.writeCString(ctx, sanitize(msg))
	if err != nil {
		h.logger.WithError(err).Debug("Could not deliver last error to guest")
		return 0
	}
	return addr
}

// sanitize replaces NUL bytes so a message always fits in C text.
func sanitize(msg string) string {
	out := []byte(msg)
	for i, c := range out {
		if c == 0 {
			out[i] = '?'
		}
	}
	return string(out)
}
