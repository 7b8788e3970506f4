package data

import (
	"fmt"
	"sync"
)

// Handle is an opaque reference to a Document held by a Registry.
//
// The low 32 bits store the slot index plus one and the high 32 bits the
// slot generation, so the zero Handle is never valid and a handle to a
// freed slot is detected even after the slot is reused.
type Handle uint64

// NullHandle is the failure sentinel for operations returning a Handle.
const NullHandle Handle = 0

func makeHandle(index, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index+1))
}

func (h Handle) index() (uint32, bool) {
	low := uint32(h)
	if low == 0 {
		return 0, false
	}
	return low - 1, true
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

// String formats the handle for logs.
func (h Handle) String() string {
	return fmt.Sprintf("%#x", uint64(h))
}

type slot struct {
	doc    *Document
	gen    uint32
	live   bool
	leased bool
}

// Registry is an arena of Documents addressed by Handle.
//
// Acquire hands out a document exclusively; until Release is called any
// other Acquire or Remove of the same handle fails with HANDLE_BUSY. The
// mutex protects the slot table only, never document contents.
type Registry struct {
	mu    sync.Mutex
	slots []slot
	free  []uint32
	live  int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Insert stores doc and returns a new handle for it.
func (r *Registry) Insert(doc *Document) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, slot{})
	}

	s := &r.slots[idx]
	s.doc = doc
	s.live = true
	s.leased = false
	r.live++
	return makeHandle(idx, s.gen)
}

// lookup returns the live slot for h. Callers must hold r.mu.
func (r *Registry) lookup(h Handle) (*slot, error) {
	idx, ok := h.index()
	if !ok {
		return nil, NewHandleError(ErrCodeInvalidHandle, "null handle")
	}
	if int(idx) >= len(r.slots) {
		return nil, NewHandleError(ErrCodeInvalidHandle, fmt.Sprintf("unknown handle %s", h))
	}
	s := &r.slots[idx]
	if !s.live || s.gen != h.generation() {
		return nil, NewHandleError(ErrCodeInvalidHandle, fmt.Sprintf("stale handle %s", h))
	}
	return s, nil
}

// Acquire takes exclusive ownership of the document behind h. It must be
// paired with Release.
func (r *Registry) Acquire(h Handle) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookup(h)
	if err != nil {
		return nil, err
	}
	if s.leased {
		return nil, NewHandleError(ErrCodeHandleBusy, fmt.Sprintf("handle %s is in use", h))
	}
	s.leased = true
	return s.doc, nil
}

// Release returns ownership of an acquired document and yields the handle
// the caller must keep using. The handle is unchanged by a lease.
func (r *Registry) Release(h Handle, doc *Document) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookup(h)
	if err != nil || !s.leased {
		return h
	}
	if doc != nil {
		s.doc = doc
	}
	s.leased = false
	return h
}

// Remove destroys the document behind h. The handle and every copy of it
// become stale.
func (r *Registry) Remove(h Handle) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookup(h)
	if err != nil {
		return nil, err
	}
	if s.leased {
		return nil, NewHandleError(ErrCodeHandleBusy, fmt.Sprintf("handle %s is in use", h))
	}

	doc := s.doc
	idx, _ := h.index()
	s.doc = nil
	s.live = false
	s.gen++
	r.free = append(r.free, idx)
	r.live--
	return doc, nil
}

// Len returns the number of live documents.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}
