package logsink

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBufferKeepsLastFifty(t *testing.T) {
	t.Parallel()

	b := New(DefaultCapacity, zap.NewNop())
	for i := 0; i < 60; i++ {
		b.Printf("line %d", i)
	}

	lines := b.Lines()
	require.Len(t, lines, 50)
	require.Equal(t, "line 10", lines[0])
	require.Equal(t, "line 59", lines[49])
	for i, line := range lines {
		require.Equal(t, fmt.Sprintf("line %d", i+10), line)
	}
}

func TestBufferBelowCapacity(t *testing.T) {
	t.Parallel()

	b := New(0, nil)
	b.Append("a")
	b.Append("b")
	require.Equal(t, []string{"a", "b"}, b.Lines())
	require.Equal(t, 2, b.Len())
}

func TestBufferLinesReturnsCopy(t *testing.T) {
	t.Parallel()

	b := New(3, nil)
	b.Append("a")
	lines := b.Lines()
	lines[0] = "mutated"
	require.Equal(t, "a", b.Lines()[0])
}

func TestBufferMirrorsToLogger(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	b := New(2, zap.New(core))
	b.Append("Processing: US1")
	require.Equal(t, 1, logs.FilterMessage("Processing: US1").Len())
}

func TestBufferConcurrentAppendStaysBounded(t *testing.T) {
	t.Parallel()

	b := New(5, nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				b.Printf("%d-%d", n, j)
				assert.LessOrEqual(t, b.Len(), 5)
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 5, b.Len())
}
