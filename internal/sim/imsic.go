package sim

import (
	"sync"

	"github.com/tinyrange/aia/internal/regio"
)

// IMSIC interrupt-file layout, one page per hart.
const (
	imsicFileStride = 0x1000

	imsicEIDelivery  = 0x70
	imsicEIThreshold = 0x74
	imsicEIPBase     = 0x80
	imsicEIEBase     = 0xC0
)

type imsicFile struct {
	delivery  uint32
	threshold uint32
	eip       [2]uint32
	eie       [2]uint32
}

// IMSIC models the per-hart interrupt files of an incoming MSI controller.
// An MSI lands by setting a bit in the destination file's pending words;
// the model latches state and carries no delivery side effects.
type IMSIC struct {
	mu       sync.Mutex
	numHarts uint32
	files    []imsicFile
}

// NewIMSIC builds a controller model with one interrupt file per hart.
func NewIMSIC(numHarts uint32) *IMSIC {
	return &IMSIC{
		numHarts: numHarts,
		files:    make([]imsicFile, numHarts),
	}
}

// Read32 implements regio.Accessor.
func (m *IMSIC) Read32(off uint64) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	hart := uint32(off / imsicFileStride)
	if hart >= m.numHarts {
		return 0
	}
	f := &m.files[hart]

	switch reg := off % imsicFileStride; reg {
	case imsicEIDelivery:
		return f.delivery
	case imsicEIThreshold:
		return f.threshold
	case imsicEIPBase, imsicEIPBase + 4:
		return f.eip[(reg-imsicEIPBase)/4]
	case imsicEIEBase, imsicEIEBase + 4:
		return f.eie[(reg-imsicEIEBase)/4]
	}
	return 0
}

// Write32 implements regio.Accessor.
func (m *IMSIC) Write32(off uint64, v uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hart := uint32(off / imsicFileStride)
	if hart >= m.numHarts {
		return
	}
	f := &m.files[hart]

	switch reg := off % imsicFileStride; reg {
	case imsicEIDelivery:
		f.delivery = v
	case imsicEIThreshold:
		f.threshold = v
	case imsicEIPBase, imsicEIPBase + 4:
		f.eip[(reg-imsicEIPBase)/4] = v
	case imsicEIEBase, imsicEIEBase + 4:
		f.eie[(reg-imsicEIEBase)/4] = v
	}
}

// InjectMSI latches an EID in a hart's interrupt file the way an inbound
// memory write from the fabric would.
func (m *IMSIC) InjectMSI(hart, eid uint32) {
	if hart >= m.numHarts || eid > 63 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[hart].eip[eid/32] |= 1 << (eid % 32)
}

var _ regio.Accessor = (*IMSIC)(nil)
