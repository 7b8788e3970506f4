// Package starlarkdata exposes the data bridge to Starlark scripts as the
// predeclared "data" module.
//
//	h = data.open("config.json")
//	if data.type(h, "/port") == data.UINT:
//	    port = data.get(h, data.UINT, "/port")
//	data.free(h)
//
// Handles are ints. Every function returns None where the bridge reports a
// sentinel, and data.last_error() returns the message of the most recent
// failure. A Null value extracted with data.get is also None; scripts tell
// the two apart with data.type.
package starlarkdata

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/openfroyo/hostdata/pkg/data"
	"github.com/openfroyo/hostdata/pkg/ffi"
	"github.com/openfroyo/hostdata/pkg/telemetry"
)

// Boundary is the name recorded on spans and metrics for script calls.
const Boundary = "starlark"

const contextLocal = "hostdata.context"

// SetContext attaches ctx to thread so module calls inherit its telemetry.
func SetContext(thread *starlark.Thread, ctx context.Context) {
	thread.SetLocal(contextLocal, ctx)
}

func threadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local(contextLocal).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// NewModule builds the data module over bridge.
func NewModule(bridge *ffi.Bridge) *starlarkstruct.Module {
	m := &module{bridge: bridge}

	members := starlark.StringDict{
		"open":       starlark.NewBuiltin("data.open", m.open),
		"type":       starlark.NewBuiltin("data.type", m.typeOf),
		"keys":       starlark.NewBuiltin("data.keys", m.keys),
		"get":        starlark.NewBuiltin("data.get", m.get),
		"free":       starlark.NewBuiltin("data.free", m.free),
		"last_error": starlark.NewBuiltin("data.last_error", m.lastError),
	}
	for _, k := range data.Kinds() {
		members[kindConstant(k)] = starlark.MakeInt(int(k))
	}

	return &starlarkstruct.Module{Name: "data", Members: members}
}

// kindConstant is the upper-case member name for k, e.g. UINT.
func kindConstant(k data.Kind) string {
	name := []byte(k.String())
	for i, c := range name {
		if c >= 'a' && c <= 'z' {
			name[i] = c - 'a' + 'A'
		}
	}
	return string(name)
}

type module struct {
	bridge *ffi.Bridge
}

// call records one boundary operation. Sentinel results are reported as
// errors to telemetry only; the script still receives None.
func (m *module) call(thread *starlark.Thread, op string, fn func() bool) {
	_ = telemetry.RecordBoundaryOperation(threadContext(thread), Boundary, op, func() error {
		if fn() {
			return nil
		}
		return ffi.LastError()
	})
}

func (m *module) open(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &path); err != nil {
		return nil, err
	}

	var h ffi.Handle
	m.call(thread, ffi.OpOpen, func() bool {
		h = m.bridge.Open(threadContext(thread), path)
		return h != ffi.NullHandle
	})
	if h == ffi.NullHandle {
		return starlark.None, nil
	}
	return starlark.MakeUint64(uint64(h)), nil
}

func (m *module) typeOf(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		hv starlark.Int
		pv starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "handle", &hv, "pointer?", &pv); err != nil {
		return nil, err
	}
	h, p, err := unpackTarget(b, hv, pv)
	if err != nil {
		return nil, err
	}

	var (
		tag ffi.TypeTag
		ok  bool
	)
	m.call(thread, ffi.OpGetValueType, func() bool {
		tag, ok = m.bridge.GetValueType(&h, p)
		return ok
	})
	if !ok {
		return starlark.None, nil
	}
	return starlark.MakeInt(int(tag)), nil
}

func (m *module) keys(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		hv starlark.Int
		pv starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "handle", &hv, "pointer?", &pv); err != nil {
		return nil, err
	}
	h, p, err := unpackTarget(b, hv, pv)
	if err != nil {
		return nil, err
	}

	var keys []string
	m.call(thread, ffi.OpGetValueKeys, func() bool {
		keys = m.bridge.GetValueKeys(&h, p)
		return keys != nil
	})
	if keys == nil {
		return starlark.None, nil
	}

	list := make([]starlark.Value, len(keys))
	for i, k := range keys {
		list[i] = starlark.String(k)
	}
	return starlark.NewList(list), nil
}

func (m *module) get(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		hv  starlark.Int
		tag int
		pv  starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "handle", &hv, "type", &tag, "pointer?", &pv); err != nil {
		return nil, err
	}
	h, p, err := unpackTarget(b, hv, pv)
	if err != nil {
		return nil, err
	}
	if tag < 0 || tag > 255 {
		return nil, fmt.Errorf("%s: type tag %d out of range", b.Name(), tag)
	}

	var payload *ffi.Payload
	m.call(thread, ffi.OpGetValue, func() bool {
		var ok bool
		payload, ok = m.bridge.GetValue(&h, ffi.TypeTag(tag), p)
		return ok
	})
	if payload == nil {
		return starlark.None, nil
	}
	return payloadValue(payload), nil
}

func (m *module) free(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var hv starlark.Int
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "handle", &hv); err != nil {
		return nil, err
	}
	h, err := unpackHandle(b, hv)
	if err != nil {
		return nil, err
	}

	var status uint8
	m.call(thread, ffi.OpFreeValue, func() bool {
		status = m.bridge.FreeValue(h)
		return status == 0
	})
	return starlark.MakeInt(int(status)), nil
}

func (m *module) lastError(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	msg := ffi.LastErrorMessage()
	if msg == "" {
		return starlark.None, nil
	}
	return starlark.String(msg), nil
}

func unpackHandle(b *starlark.Builtin, v starlark.Int) (ffi.Handle, error) {
	u, ok := v.Uint64()
	if !ok {
		return ffi.NullHandle, fmt.Errorf("%s: handle %s out of range", b.Name(), v)
	}
	return ffi.Handle(u), nil
}

// unpackTarget decodes a handle and an optional pointer argument. None is
// the absent pointer; "" addresses the root explicitly.
func unpackTarget(b *starlark.Builtin, hv starlark.Int, pv starlark.Value) (ffi.Handle, data.Pointer, error) {
	h, err := unpackHandle(b, hv)
	if err != nil {
		return ffi.NullHandle, data.Whole, err
	}
	switch p := pv.(type) {
	case starlark.NoneType:
		return h, data.Whole, nil
	case starlark.String:
		return h, data.At(string(p)), nil
	default:
		return ffi.NullHandle, data.Whole, fmt.Errorf("%s: pointer must be a string or None, got %s", b.Name(), pv.Type())
	}
}

func payloadValue(p *ffi.Payload) starlark.Value {
	switch p.Tag {
	case ffi.TagNull:
		return starlark.None
	case ffi.TagBool:
		return starlark.Bool(p.Bool)
	case ffi.TagInt:
		return starlark.MakeInt64(p.Int)
	case ffi.TagUint:
		return starlark.MakeUint64(p.Uint)
	case ffi.TagFloat:
		return starlark.Float(p.Float)
	case ffi.TagString:
		return starlark.String(p.Text)
	case ffi.TagArray:
		items := make([]starlark.Value, len(p.Items))
		for i, h := range p.Items {
			items[i] = starlark.MakeUint64(uint64(h))
		}
		return starlark.NewList(items)
	default:
		return starlark.MakeUint64(uint64(p.Object))
	}
}
