//go:build !linux

package regio

import (
	"errors"
	"fmt"
)

// DevMem is only available on Linux, where /dev/mem exposes physical
// address space.
type DevMem struct{}

var errNoDevMem = errors.New("regio: /dev/mem mapping requires linux")

// MapDevMem always fails on this platform.
func MapDevMem(base, size uint64) (*DevMem, error) {
	return nil, fmt.Errorf("regio: map 0x%x+0x%x: %w", base, size, errNoDevMem)
}

// Read32 implements Accessor.
func (d *DevMem) Read32(off uint64) uint32 { return 0 }

// Write32 implements Accessor.
func (d *DevMem) Write32(off uint64, v uint32) {}

// Close is a no-op.
func (d *DevMem) Close() error { return nil }

var _ Accessor = (*DevMem)(nil)
