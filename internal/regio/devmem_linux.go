//go:build linux

package regio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMem is an Accessor over a physical MMIO window mapped from /dev/mem.
// Reads and writes go through sync/atomic, which gives the single-word
// ordering the register protocol requires.
type DevMem struct {
	f   *os.File
	mem []byte
}

// MapDevMem maps size bytes of physical address space starting at base.
// base and size must be page-aligned.
func MapDevMem(base, size uint64) (*DevMem, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("regio: open /dev/mem: %w", err)
	}

	mem, err := unix.Mmap(int(f.Fd()), int64(base), int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("regio: mmap 0x%x+0x%x: %w", base, size, err)
	}

	return &DevMem{f: f, mem: mem}, nil
}

// Read32 implements Accessor.
func (d *DevMem) Read32(off uint64) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&d.mem[off])))
}

// Write32 implements Accessor.
func (d *DevMem) Write32(off uint64, v uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&d.mem[off])), v)
}

// Close unmaps the window.
func (d *DevMem) Close() error {
	if err := unix.Munmap(d.mem); err != nil {
		d.f.Close()
		return fmt.Errorf("regio: munmap: %w", err)
	}
	return d.f.Close()
}

var _ Accessor = (*DevMem)(nil)
