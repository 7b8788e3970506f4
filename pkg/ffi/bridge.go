package ffi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/openfroyo/hostdata/pkg/data"
	"github.com/openfroyo/hostdata/pkg/telemetry"
)

// Operation names used in logs and metrics.
const (
	OpOpen         = "open"
	OpGetValueType = "get_value_type"
	OpGetValueKeys = "get_value_keys"
	OpGetValue     = "get_value"
	OpFreeValue    = "free_value"
)

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	// Loader opens documents. Defaults to data.NewLoader(nil).
	Loader *data.Loader

	// Registry holds live documents. Defaults to a new registry.
	Registry *data.Registry

	// Logger receives debug output for failed calls. Nil discards it.
	Logger *telemetry.Logger

	// Metrics is optional.
	Metrics *telemetry.Metrics
}

// Bridge implements the boundary operations over a Registry.
type Bridge struct {
	loader   *data.Loader
	registry *data.Registry
	logger   *telemetry.Logger
	metrics  *telemetry.Metrics
}

// NewBridge creates a bridge. A nil config uses defaults throughout.
func NewBridge(cfg *BridgeConfig) *Bridge {
	if cfg == nil {
		cfg = &BridgeConfig{}
	}
	b := &Bridge{
		loader:   cfg.Loader,
		registry: cfg.Registry,
		logger:   cfg.Logger.OrNop().NewComponentLogger("ffi"),
		metrics:  cfg.Metrics,
	}
	if b.loader == nil {
		b.loader = data.NewLoader(nil)
	}
	if b.registry == nil {
		b.registry = data.NewRegistry()
	}
	return b
}

// Registry returns the registry backing the bridge.
func (b *Bridge) Registry() *data.Registry {
	return b.registry
}

// Len returns the number of live handles.
func (b *Bridge) Len() int {
	return b.registry.Len()
}

// Open loads the document at path and returns a new handle, or NullHandle
// on failure.
func (b *Bridge) Open(ctx context.Context, path string) (h Handle) {
	start := time.Now()
	defer b.guard(OpOpen, start, func() bool { return h != NullHandle })

	if err := CheckText(path); err != nil {
		b.fail(OpOpen, NullHandle, data.Whole, err)
		return NullHandle
	}

	doc, err := b.loader.Open(ctx, path)
	if err != nil {
		b.metrics.RecordDocumentOpened(string(data.FormatForPath(path)), "error", time.Since(start))
		b.fail(OpOpen, NullHandle, data.Whole, err)
		return NullHandle
	}

	h = b.registry.Insert(doc)
	b.metrics.RecordDocumentOpened(string(doc.Format()), "ok", time.Since(start))
	b.metrics.SetLiveHandles(b.registry.Len())
	b.logger.WithDocument(doc.ID().String(), path).WithHandle(uint64(h)).Debug("Document opened")
	return h
}

// GetValueType reports the type tag of the node at p. The bool is false on
// failure.
func (b *Bridge) GetValueType(h *Handle, p data.Pointer) (tag TypeTag, ok bool) {
	start := time.Now()
	defer b.guard(OpGetValueType, start, func() bool { return ok })

	err := b.borrow(h, p, func(doc *data.Document) error {
		kind, err := doc.TypeOf(p)
		if err != nil {
			return err
		}
		tag = kind
		return nil
	})
	if err != nil {
		b.fail(OpGetValueType, handleOf(h), p, err)
		return 0, false
	}
	return tag, true
}

// GetValueKeys returns the sorted keys of the object at p. It returns nil
// without recording an error when the node is not an object, and nil with
// an error when p does not resolve.
func (b *Bridge) GetValueKeys(h *Handle, p data.Pointer) (keys []string) {
	start := time.Now()
	succeeded := false
	defer b.guard(OpGetValueKeys, start, func() bool { return succeeded })

	err := b.borrow(h, p, func(doc *data.Document) error {
		var err error
		keys, err = doc.Keys(p)
		return err
	})
	if err != nil {
		b.fail(OpGetValueKeys, handleOf(h), p, err)
		return nil
	}
	succeeded = true
	return keys
}

// GetValue extracts the node at p as tag. The bool is false on failure,
// in which case no handles have been created.
func (b *Bridge) GetValue(h *Handle, tag TypeTag, p data.Pointer) (out *Payload, ok bool) {
	start := time.Now()
	defer b.guard(OpGetValue, start, func() bool { return ok })

	err := b.borrow(h, p, func(doc *data.Document) error {
		var err error
		out, err = marshal(b.registry, doc, *h, tag, p)
		return err
	})
	if err != nil {
		b.fail(OpGetValue, handleOf(h), p, err)
		return nil, false
	}
	if tag == TagArray || (tag == TagObject && p.IsSet()) {
		b.metrics.SetLiveHandles(b.registry.Len())
	}
	return out, true
}

// FreeValue destroys the document behind h. It returns 0 on success and 1
// if h is not a live handle. Handles previously returned for array items or
// object extractions are independent and stay valid.
func (b *Bridge) FreeValue(h Handle) (status uint8) {
	start := time.Now()
	status = 1
	defer b.guard(OpFreeValue, start, func() bool { return status == 0 })

	if _, err := b.registry.Remove(h); err != nil {
		b.fail(OpFreeValue, h, data.Whole, err)
		return 1
	}
	b.metrics.SetLiveHandles(b.registry.Len())
	return 0
}

// borrow validates the call arguments, leases the document behind *h for
// the duration of fn, and writes the handle back to *h afterwards.
func (b *Bridge) borrow(h *Handle, p data.Pointer, fn func(doc *data.Document) error) error {
	if h == nil {
		return data.NewHandleError(data.ErrCodeInvalidHandle, "null handle slot")
	}
	if err := CheckText(p.String()); err != nil {
		return err
	}

	doc, err := b.registry.Acquire(*h)
	if err != nil {
		return err
	}
	defer func() {
		*h = b.registry.Release(*h, doc)
	}()

	return fn(doc)
}

func (b *Bridge) fail(op string, h Handle, p data.Pointer, err error) {
	setLastError(err)

	class, code := "internal", ""
	var de *data.Error
	if errors.As(err, &de) {
		class, code = string(de.Class), de.Code
	}
	b.metrics.RecordError(class, code)

	logger := b.logger.WithError(err).WithField("operation", op)
	if h != NullHandle {
		logger = logger.WithHandle(uint64(h))
	}
	if p.IsSet() {
		logger = logger.WithPointer(p.String())
	}
	logger.Debug("Boundary call failed")
}

func handleOf(h *Handle) Handle {
	if h == nil {
		return NullHandle
	}
	return *h
}

// guard records the call outcome and stops a panic from crossing the
// boundary. A recovered panic is stored in the error slot.
func (b *Bridge) guard(op string, start time.Time, succeeded func() bool) {
	if r := recover(); r != nil {
		err := fmt.Errorf("%s: internal error: %v", op, r)
		setLastError(err)
		b.metrics.RecordError("internal", "")
		b.metrics.RecordOperation(op, "panic", time.Since(start))
		b.logger.WithError(err).WithField("operation", op).Error("Recovered panic in boundary call")
		return
	}
	outcome := "ok"
	if !succeeded() {
		outcome = "error"
	}
	b.metrics.RecordOperation(op, outcome, time.Since(start))
}

// CheckText reports text that is not valid UTF-8 as an encoding error.
func CheckText(s string) error {
	if !utf8.ValidString(s) {
		return data.NewEncodingError("argument is not valid UTF-8", nil)
	}
	return nil
}

// CheckCText additionally rejects strings that cannot be carried as
// NUL-terminated C text.
func CheckCText(s string) error {
	if err := CheckText(s); err != nil {
		return err
	}
	if strings.IndexByte(s, 0) >= 0 {
		return data.NewEncodingError("text contains a NUL byte", nil)
	}
	return nil
}
