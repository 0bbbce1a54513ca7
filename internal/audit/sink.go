// Package audit holds the per-run append-only trail. Components write
// free-text sections; the sink decides where they land.
package audit

import (
	"fmt"
	"strings"
	"sync"
)

// Sink receives audit text. Implementations must be safe for concurrent use.
// Write failures are the sink's concern, never the caller's.
type Sink interface {
	Append(text string)
}

// Printf formats and appends a section to sink.
func Printf(sink Sink, format string, args ...interface{}) {
	if sink == nil {
		return
	}
	sink.Append(fmt.Sprintf(format, args...))
}

type discard struct{}

func (discard) Append(string) {}

// Discard drops everything.
var Discard Sink = discard{}

// Buffer keeps the trail in memory.
type Buffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *Buffer) Append(text string) {
	b.mu.Lock()
	b.sb.WriteString(text)
	b.mu.Unlock()
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}
