// exports.go provides the C API for libhostdata.
// Build with: go build -buildmode=c-shared -o libhostdata.so .
//
// Every block returned to C is allocated with malloc and must be released
// with the matching data_free_* function. A NULL pointer argument means no
// pointer was supplied, which is different from the empty pointer "".
package main

/*
#include <stdlib.h>
#include <stdint.h>
#include <string.h>

typedef uint64_t HostdataHandle;

// Key lists hold char* items, arrays hold HostdataHandle items.
typedef struct {
    void *ptr;
    size_t length;
} FfiArray;
*/
import "C"

import (
	"context"
	"os"
	"unsafe"

	"github.com/openfroyo/hostdata/pkg/data"
	"github.com/openfroyo/hostdata/pkg/ffi"
	"github.com/openfroyo/hostdata/pkg/telemetry"
)

// bridge serves every caller in the process.
var bridge = ffi.NewBridge(&ffi.BridgeConfig{Logger: libraryLogger()})

// libraryLogger logs to stderr only when HOSTDATA_LOG_LEVEL is set.
func libraryLogger() *telemetry.Logger {
	level, ok := os.LookupEnv("HOSTDATA_LOG_LEVEL")
	if !ok {
		return telemetry.NopLogger()
	}
	cfg := telemetry.DefaultConfig().Logging
	cfg.Level = level
	logger, err := telemetry.NewLogger(cfg)
	if err != nil {
		return telemetry.NopLogger()
	}
	return logger.NewComponentLogger("libhostdata")
}

func main() {}

// =============================================================================
// Argument helpers
// =============================================================================

func goPointer(p *C.char) data.Pointer {
	if p == nil {
		return data.Whole
	}
	return data.At(C.GoString(p))
}

// withSlot runs fn on a Go copy of the caller's handle cell and writes the
// result back. A NULL cell is passed through as nil so the bridge reports it.
func withSlot(cell *C.HostdataHandle, fn func(h *ffi.Handle)) {
	if cell == nil {
		fn(nil)
		return
	}
	h := ffi.Handle(*cell)
	fn(&h)
	*cell = C.HostdataHandle(h)
}

// =============================================================================
// Boundary operations
// =============================================================================

//export data_open
func data_open(path *C.char) C.HostdataHandle {
	if path == nil {
		ffi.RecordError(data.NewEncodingError("path is NULL", nil))
		return 0
	}
	return C.HostdataHandle(bridge.Open(context.Background(), C.GoString(path)))
}

//export get_value_type
func get_value_type(cell *C.HostdataHandle, pointer *C.char) C.int {
	result := C.int(ffi.TagSentinel)
	withSlot(cell, func(h *ffi.Handle) {
		if tag, ok := bridge.GetValueType(h, goPointer(pointer)); ok {
			result = C.int(tag)
		}
	})
	return result
}

//export get_value_keys
func get_value_keys(cell *C.HostdataHandle, pointer *C.char) *C.FfiArray {
	var keys []string
	withSlot(cell, func(h *ffi.Handle) {
		keys = bridge.GetValueKeys(h, goPointer(pointer))
	})
	if keys == nil {
		return nil
	}
	for _, k := range keys {
		if err := ffi.CheckCText(k); err != nil {
			ffi.RecordError(err)
			return nil
		}
	}

	arr := newArray(len(keys), unsafe.Sizeof((*C.char)(nil)))
	if len(keys) > 0 {
		items := unsafe.Slice((**C.char)(arr.ptr), len(keys))
		for i, k := range keys {
			items[i] = C.CString(k)
		}
	}
	return arr
}

//export get_value
func get_value(cell *C.HostdataHandle, tag C.int, pointer *C.char) unsafe.Pointer {
	if tag < 0 || tag > 255 {
		ffi.RecordError(data.NewEncodingError("unknown type tag", nil))
		return nil
	}

	var payload *ffi.Payload
	withSlot(cell, func(h *ffi.Handle) {
		payload, _ = bridge.GetValue(h, ffi.TypeTag(tag), goPointer(pointer))
	})
	if payload == nil {
		return nil
	}

	switch payload.Tag {
	case ffi.TagNull:
		return C.calloc(1, 8)
	case ffi.TagBool:
		out := C.malloc(1)
		*(*C.uint8_t)(out) = 0
		if payload.Bool {
			*(*C.uint8_t)(out) = 1
		}
		return out
	case ffi.TagInt:
		out := C.malloc(8)
		*(*C.int64_t)(out) = C.int64_t(payload.Int)
		return out
	case ffi.TagUint:
		out := C.malloc(8)
		*(*C.uint64_t)(out) = C.uint64_t(payload.Uint)
		return out
	case ffi.TagFloat:
		out := C.malloc(8)
		*(*C.double)(out) = C.double(payload.Float)
		return out
	case ffi.TagString:
		if err := ffi.CheckCText(payload.Text); err != nil {
			ffi.RecordError(err)
			return nil
		}
		return unsafe.Pointer(C.CString(payload.Text))
	case ffi.TagArray:
		arr := newArray(len(payload.Items), unsafe.Sizeof(C.HostdataHandle(0)))
		if len(payload.Items) > 0 {
			items := unsafe.Slice((*C.HostdataHandle)(arr.ptr), len(payload.Items))
			for i, h := range payload.Items {
				items[i] = C.HostdataHandle(h)
			}
		}
		return unsafe.Pointer(arr)
	default:
		out := C.malloc(8)
		*(*C.HostdataHandle)(out) = C.HostdataHandle(payload.Object)
		return out
	}
}

//export free_value
func free_value(h C.HostdataHandle) C.uint8_t {
	return C.uint8_t(bridge.FreeValue(ffi.Handle(h)))
}

//export data_last_error
func data_last_error() *C.char {
	msg := ffi.LastErrorMessage()
	if msg == "" {
		return nil
	}
	return C.CString(msg)
}

// =============================================================================
// Memory release
// =============================================================================

//export data_free_string
func data_free_string(s *C.char) {
	C.free(unsafe.Pointer(s))
}

//export data_free_cell
func data_free_cell(p unsafe.Pointer) {
	C.free(p)
}

//export data_free_array
func data_free_array(arr *C.FfiArray) {
	if arr == nil {
		return
	}
	C.free(arr.ptr)
	C.free(unsafe.Pointer(arr))
}

//export data_free_keys
func data_free_keys(arr *C.FfiArray) {
	if arr == nil {
		return
	}
	if arr.length > 0 {
		for _, s := range unsafe.Slice((**C.char)(arr.ptr), int(arr.length)) {
			C.free(unsafe.Pointer(s))
		}
	}
	data_free_array(arr)
}

// newArray allocates an FfiArray header and room for n items of size bytes.
// An empty array has a NULL ptr.
func newArray(n int, size uintptr) *C.FfiArray {
	arr := (*C.FfiArray)(C.malloc(C.size_t(unsafe.Sizeof(C.FfiArray{}))))
	arr.ptr = nil
	arr.length = C.size_t(n)
	if n > 0 {
		arr.ptr = C.malloc(C.size_t(uintptr(n) * size))
	}
	return arr
}
