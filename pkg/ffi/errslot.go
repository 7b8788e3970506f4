package ffi

import (
	"sync/atomic"
)

type slotEntry struct {
	err error
}

// lastError is shared by every Bridge in the process. Concurrent failures
// race; the last write wins.
var lastError atomic.Pointer[slotEntry]

func setLastError(err error) {
	lastError.Store(&slotEntry{err: err})
}

// LastError returns the most recent boundary failure, or nil if no call has
// failed yet. The error is a *data.Error for failures raised by this
// package.
func LastError() error {
	if e := lastError.Load(); e != nil {
		return e.err
	}
	return nil
}

// LastErrorMessage returns the text of LastError, or "" if there is none.
func LastErrorMessage() string {
	if err := LastError(); err != nil {
		return err.Error()
	}
	return ""
}

// RecordError stores err in the error slot. Transports use it for failures
// that happen before a call reaches the Bridge, such as unreadable guest
// memory.
func RecordError(err error) {
	if err != nil {
		setLastError(err)
	}
}
