// Package regio provides ordered 32-bit access to memory-mapped interrupt
// controller registers.
package regio

import "math/bits"

// Accessor reads and writes 32-bit registers at byte offsets from a
// controller's base address. Implementations guarantee that a Write32 is
// visible to the device before any subsequent Read32 of a dependent
// register, and that a Read32 observes all prior writes. Offsets must be
// 4-byte aligned; access outside the mapped window is a programming error
// and terminates the process.
type Accessor interface {
	Read32(off uint64) uint32
	Write32(off uint64, v uint32)
}

// BigEndian wraps an accessor for controllers configured with big-endian
// register layout, byte-swapping values in both directions.
func BigEndian(a Accessor) Accessor {
	return byteSwapped{a}
}

type byteSwapped struct {
	inner Accessor
}

func (b byteSwapped) Read32(off uint64) uint32 {
	return bits.ReverseBytes32(b.inner.Read32(off))
}

func (b byteSwapped) Write32(off uint64, v uint32) {
	b.inner.Write32(off, bits.ReverseBytes32(v))
}

// Buffer is a plain in-memory register window. It carries no device
// semantics and is used by tests that only need a place for values to land.
type Buffer struct {
	words []uint32
}

// NewBuffer returns a Buffer covering size bytes.
func NewBuffer(size uint64) *Buffer {
	return &Buffer{words: make([]uint32, (size+3)/4)}
}

// Read32 implements Accessor.
func (b *Buffer) Read32(off uint64) uint32 {
	return b.words[off/4]
}

// Write32 implements Accessor.
func (b *Buffer) Write32(off uint64, v uint32) {
	b.words[off/4] = v
}

var (
	_ Accessor = (*Buffer)(nil)
	_ Accessor = byteSwapped{}
)
