// Package logsink keeps the recent human-readable status lines shown to
// operators by the control surface.
package logsink

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DefaultCapacity is the number of lines retained when no capacity is given.
const DefaultCapacity = 50

// Buffer is a bounded FIFO of status lines. When a new line would exceed the
// capacity the oldest line is dropped. It is safe for concurrent use.
type Buffer struct {
	mu       sync.RWMutex
	lines    []string
	capacity int
	logger   *zap.Logger
}

// New returns a Buffer holding at most capacity lines. Every appended line is
// mirrored to logger at info level.
func New(capacity int, logger *zap.Logger) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Buffer{
		lines:    make([]string, 0, capacity),
		capacity: capacity,
		logger:   logger,
	}
}

// Append adds a line, evicting the oldest when full.
func (b *Buffer) Append(line string) {
	b.logger.Info(line)

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) >= b.capacity {
		copy(b.lines, b.lines[1:])
		b.lines = b.lines[:len(b.lines)-1]
	}
	b.lines = append(b.lines, line)
}

// Printf formats and appends a line.
func (b *Buffer) Printf(format string, args ...any) {
	b.Append(fmt.Sprintf(format, args...))
}

// Lines returns a copy of the buffered lines, oldest first.
func (b *Buffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Len reports the number of buffered lines.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}
