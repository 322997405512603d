package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hnjm/SQLiteServer/internal/wire"
)

func TestHandleAllocatorNeverCollides(t *testing.T) {
	alloc := wire.NewHandleAllocator()
	seen := make(map[wire.Handle]bool)
	for i := 0; i < 10000; i++ {
		h := alloc.Next()
		assert.False(t, h.IsZero())
		assert.False(t, seen[h], "handle collision at iteration %d", i)
		seen[h] = true
	}
}

func TestHandleAllocatorsFromDifferentSessionsRarelyCollide(t *testing.T) {
	a := wire.NewHandleAllocator()
	b := wire.NewHandleAllocator()
	assert.NotEqual(t, a.Next(), b.Next())
}
