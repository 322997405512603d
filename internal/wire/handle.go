package wire

import (
	"encoding/hex"
	"sync/atomic"

	"github.com/google/uuid"
)

// Handle is the opaque 128-bit identifier the leader assigns to a
// statement or reader, carried on the wire as u128 (spec §3, §6).
type Handle [16]byte

// Zero is the nil handle, never returned by an allocator.
var Zero Handle

func (h Handle) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the nil handle.
func (h Handle) IsZero() bool { return h == Zero }

// HandleAllocator hands out strictly monotonic, collision-free
// handles for the lifetime of one leader process (spec §4.3, §9: wide
// enough for a future cryptographic scheme, but allocated here by a
// monotonic counter seeded with a random per-process session nonce so
// handles never collide across leader restarts on the same host).
type HandleAllocator struct {
	session [8]byte
	counter atomic.Uint64
}

// NewHandleAllocator creates an allocator with a fresh random session
// nonce.
func NewHandleAllocator() *HandleAllocator {
	a := &HandleAllocator{}
	nonce := uuid.New()
	copy(a.session[:], nonce[:8])
	return a
}

// Next returns the next handle. It is safe for concurrent use.
func (a *HandleAllocator) Next() Handle {
	n := a.counter.Add(1)
	var h Handle
	copy(h[:8], a.session[:])
	h[8] = byte(n >> 56)
	h[9] = byte(n >> 48)
	h[10] = byte(n >> 40)
	h[11] = byte(n >> 32)
	h[12] = byte(n >> 24)
	h[13] = byte(n >> 16)
	h[14] = byte(n >> 8)
	h[15] = byte(n)
	return h
}
