package ffi

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/openfroyo/hostdata/pkg/data"
)

func TestLastError_LastWriteWins(t *testing.T) {
	setLastError(fmt.Errorf("first"))
	setLastError(fmt.Errorf("second"))
	if got := LastErrorMessage(); got != "second" {
		t.Errorf("LastErrorMessage() = %q, want second", got)
	}
}

func TestLastError_ConcurrentWriters(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			setLastError(data.NewNotFoundError(fmt.Sprintf("/w%d", i)))
		}(i)
	}
	wg.Wait()

	// One complete message survives, never a mix of two.
	msg := LastErrorMessage()
	if !strings.HasPrefix(msg, "could not find /w") || !strings.HasSuffix(msg, " in data") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestCheckCText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "plain", input: "/a/b"},
		{name: "unicode", input: "/ключ"},
		{name: "nul byte", input: "a\x00b", wantErr: true},
		{name: "invalid utf-8", input: "\xc3\x28", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCText(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckCText(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !data.IsEncoding(err) {
				t.Errorf("expected encoding error, got %v", err)
			}
		})
	}
}
