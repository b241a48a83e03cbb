// Package imsic drives an incoming message-signaled interrupt controller.
// Each hart owns one interrupt file: a 4 KiB register window holding
// enable and pending bitmaps for up to 64 external-interrupt ids (EIDs), a
// delivery-mode register and a threshold filter. The enable and pending
// shadows are authoritative for reads; several hardware implementations
// expose these windows write-only from the hart that doesn't own them.
package imsic

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tinyrange/aia/internal/intc"
	"github.com/tinyrange/aia/internal/regio"
)

// Per-hart interrupt file layout. Window stride is one page.
const (
	FileStride = 0x1000

	regEIDelivery  = 0x70
	regEIThreshold = 0x74
	regEIPBase     = 0x80 // two words, EIDs 0-31 and 32-63
	regEIEBase     = 0xC0
)

// MaxEID is the largest external-interrupt id an interrupt file latches.
const MaxEID = 63

// DeliveryMode selects how a hart's interrupt file signals the hart.
type DeliveryMode uint32

const (
	DeliveryOff     DeliveryMode = 0
	DeliveryMSI     DeliveryMode = 1
	DeliveryID      DeliveryMode = 2
	DeliveryVirtual DeliveryMode = 3
)

func (m DeliveryMode) valid() bool { return m <= DeliveryVirtual }

// String implements fmt.Stringer.
func (m DeliveryMode) String() string {
	switch m {
	case DeliveryOff:
		return "off"
	case DeliveryMSI:
		return "msi"
	case DeliveryID:
		return "id"
	case DeliveryVirtual:
		return "virtual"
	}
	return fmt.Sprintf("DeliveryMode(%d)", uint32(m))
}

// EIDELIVERY packing: hart index, guest index and mode in one register.
const (
	deliveryHartShl  = 16
	deliveryGuestShl = 8
	deliveryModeMask = 0x3
)

// Config describes the interrupt-file windows of one message controller.
type Config struct {
	// Regs covers NumHarts consecutive interrupt files, FileStride bytes
	// apart. Wrap with regio.BigEndian for big-endian configurations.
	Regs regio.Accessor

	NumHarts uint32

	// GuestID is packed into delivery-configuration writes. This model
	// carries a single guest field; guest-index routing beyond it is out
	// of scope.
	GuestID uint32

	// MaxThreshold bounds SetThreshold. Zero means MaxEID.
	MaxThreshold uint32
}

type hartFile struct {
	enable    [2]uint32
	pending   [2]uint32
	mode      DeliveryMode
	threshold uint32
}

// Stats holds the controller-wide dispatch counters.
type Stats struct {
	TotalDispatched   uint64
	ThresholdRejected uint64
}

// Controller owns the per-hart enable/pending shadows of one message
// controller. The mutex covers the shadows and counters; register writes
// happen outside it.
type Controller struct {
	regs         regio.Accessor
	numHarts     uint32
	guestID      uint32
	maxThreshold uint32

	mu       sync.Mutex
	harts    []hartFile
	handlers [MaxEID + 1]intc.Handler
	stats    Stats
	ready    bool
}

// New brings up a message controller: every interrupt file starts with all
// EIDs masked, nothing pending, threshold zero and delivery off until the
// platform selects a mode.
func New(cfg Config) (*Controller, error) {
	if cfg.Regs == nil {
		return nil, fmt.Errorf("imsic: nil register accessor: %w", intc.ErrInvalidArgument)
	}
	if cfg.NumHarts == 0 {
		return nil, fmt.Errorf("imsic: hart count 0: %w", intc.ErrInvalidArgument)
	}

	c := &Controller{
		regs:         cfg.Regs,
		numHarts:     cfg.NumHarts,
		guestID:      cfg.GuestID,
		maxThreshold: cfg.MaxThreshold,
		harts:        make([]hartFile, cfg.NumHarts),
	}
	if c.maxThreshold == 0 {
		c.maxThreshold = MaxEID
	}

	for hart := uint32(0); hart < c.numHarts; hart++ {
		c.regs.Write32(fileOff(hart, regEIEBase), 0)
		c.regs.Write32(fileOff(hart, regEIEBase+4), 0)
		c.regs.Write32(fileOff(hart, regEIThreshold), 0)
	}

	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()

	slog.Info("imsic: controller up", "harts", c.numHarts)
	return c, nil
}

// Ready reports whether bring-up completed.
func (c *Controller) Ready() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// NumHarts returns the number of interrupt files.
func (c *Controller) NumHarts() uint32 { return c.numHarts }

// GuestID returns the guest index packed into delivery configuration.
func (c *Controller) GuestID() uint32 { return c.guestID }

func fileOff(hart uint32, reg uint64) uint64 {
	return uint64(hart)*FileStride + reg
}

func (c *Controller) check(hart, eid uint32) error {
	if hart >= c.numHarts {
		return fmt.Errorf("imsic: hart %d out of range [0,%d): %w", hart, c.numHarts, intc.ErrInvalidArgument)
	}
	if eid > MaxEID {
		return fmt.Errorf("imsic: EID %d > %d: %w", eid, MaxEID, intc.ErrInvalidArgument)
	}
	return nil
}

// Enable unmasks an EID on a hart's interrupt file.
func (c *Controller) Enable(hart, eid uint32) error {
	return c.setEnable(hart, eid, true)
}

// Disable masks an EID on a hart's interrupt file.
func (c *Controller) Disable(hart, eid uint32) error {
	return c.setEnable(hart, eid, false)
}

func (c *Controller) setEnable(hart, eid uint32, on bool) error {
	if err := c.check(hart, eid); err != nil {
		return err
	}
	w, bit := eid/32, uint32(1)<<(eid%32)

	c.mu.Lock()
	if on {
		c.harts[hart].enable[w] |= bit
	} else {
		c.harts[hart].enable[w] &^= bit
	}
	v := c.harts[hart].enable[w]
	c.mu.Unlock()

	c.regs.Write32(fileOff(hart, regEIEBase+uint64(w)*4), v)
	return nil
}

// IsEnabled reports the last software-intended enable state of an EID.
// The shadow is served instead of the hardware bit to avoid cross-window
// reads; the hardware mirrors it.
func (c *Controller) IsEnabled(hart, eid uint32) (bool, error) {
	if err := c.check(hart, eid); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.harts[hart].enable[eid/32]&(1<<(eid%32)) != 0, nil
}

// SetPending latches an EID pending on a hart's interrupt file. This is
// the landing point of a forwarded MSI.
func (c *Controller) SetPending(hart, eid uint32) error {
	return c.setPending(hart, eid, true)
}

// ClearPending drops a latched EID.
func (c *Controller) ClearPending(hart, eid uint32) error {
	return c.setPending(hart, eid, false)
}

func (c *Controller) setPending(hart, eid uint32, on bool) error {
	if err := c.check(hart, eid); err != nil {
		return err
	}
	w, bit := eid/32, uint32(1)<<(eid%32)

	// Pending words are read-modify-written against the live register, not
	// rebuilt from the shadow: an inbound MSI latches a bit in hardware
	// without passing through this driver, and a stale shadow word would
	// erase it.
	off := fileOff(hart, regEIPBase+uint64(w)*4)
	v := c.regs.Read32(off)
	if on {
		v |= bit
	} else {
		v &^= bit
	}
	c.regs.Write32(off, v)

	c.mu.Lock()
	c.harts[hart].pending[w] = v
	c.mu.Unlock()
	return nil
}

// IsPending reports the shadow pending state of an EID.
func (c *Controller) IsPending(hart, eid uint32) (bool, error) {
	if err := c.check(hart, eid); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.harts[hart].pending[eid/32]&(1<<(eid%32)) != 0, nil
}

// SetDeliveryMode selects how a hart's interrupt file signals the hart and
// issues the packed delivery-configuration write.
func (c *Controller) SetDeliveryMode(hart uint32, mode DeliveryMode) error {
	if hart >= c.numHarts {
		return fmt.Errorf("imsic: hart %d out of range [0,%d): %w", hart, c.numHarts, intc.ErrInvalidArgument)
	}
	if !mode.valid() {
		return fmt.Errorf("imsic: delivery mode %d: %w", uint32(mode), intc.ErrInvalidArgument)
	}

	c.regs.Write32(fileOff(hart, regEIDelivery),
		hart<<deliveryHartShl|c.guestID<<deliveryGuestShl|uint32(mode)&deliveryModeMask)

	c.mu.Lock()
	c.harts[hart].mode = mode
	c.mu.Unlock()
	return nil
}

// DeliveryMode returns the shadow delivery mode of a hart.
func (c *Controller) DeliveryMode(hart uint32) (DeliveryMode, error) {
	if hart >= c.numHarts {
		return DeliveryOff, fmt.Errorf("imsic: hart %d out of range [0,%d): %w", hart, c.numHarts, intc.ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.harts[hart].mode, nil
}

// SetThreshold programs the EID filter of a hart. Pending EIDs below the
// threshold are withheld, not dropped.
func (c *Controller) SetThreshold(hart, value uint32) error {
	if hart >= c.numHarts {
		return fmt.Errorf("imsic: hart %d out of range [0,%d): %w", hart, c.numHarts, intc.ErrInvalidArgument)
	}
	if value > c.maxThreshold {
		return fmt.Errorf("imsic: threshold %d > %d: %w", value, c.maxThreshold, intc.ErrInvalidArgument)
	}

	c.regs.Write32(fileOff(hart, regEIThreshold), value)

	c.mu.Lock()
	c.harts[hart].threshold = value
	c.mu.Unlock()
	return nil
}

// Threshold returns the shadow threshold of a hart.
func (c *Controller) Threshold(hart uint32) (uint32, error) {
	if hart >= c.numHarts {
		return 0, fmt.Errorf("imsic: hart %d out of range [0,%d): %w", hart, c.numHarts, intc.ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.harts[hart].threshold, nil
}

// RegisterHandler installs the handler invoked when eid is dispatched.
// Handlers are registered once at bring-up.
func (c *Controller) RegisterHandler(eid uint32, h intc.Handler) error {
	if eid > MaxEID {
		return fmt.Errorf("imsic: EID %d > %d: %w", eid, MaxEID, intc.ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eid] = h
	return nil
}

// DispatchPending delivers every pending and enabled EID of a hart in
// ascending order. EIDs below the hart's threshold are counted as rejected
// and stay latched: a later threshold relaxation must still deliver them.
func (c *Controller) DispatchPending(hart uint32) (int, error) {
	if hart >= c.numHarts {
		return 0, fmt.Errorf("imsic: hart %d out of range [0,%d): %w", hart, c.numHarts, intc.ErrInvalidArgument)
	}

	// Fold hardware-latched MSIs into the shadow before snapshotting.
	hw, err := c.HardwarePending(hart)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	f := &c.harts[hart]
	f.pending[0] |= hw[0]
	f.pending[1] |= hw[1]
	deliverable := [2]uint32{
		f.pending[0] & f.enable[0],
		f.pending[1] & f.enable[1],
	}
	threshold := f.threshold
	c.mu.Unlock()

	handled := 0
	for eid := uint32(0); eid <= MaxEID; eid++ {
		if deliverable[eid/32]&(1<<(eid%32)) == 0 {
			continue
		}
		if eid < threshold {
			c.mu.Lock()
			c.stats.ThresholdRejected++
			c.mu.Unlock()
			continue
		}

		c.mu.Lock()
		h := c.handlers[eid]
		c.mu.Unlock()
		if h != nil {
			h.HandleInterrupt(eid)
		} else {
			slog.Warn("imsic: no handler registered", "hart", hart, "eid", eid)
		}

		if err := c.ClearPending(hart, eid); err != nil {
			return handled, err
		}
		c.mu.Lock()
		c.stats.TotalDispatched++
		c.mu.Unlock()
		handled++
	}
	return handled, nil
}

// HardwarePending reads a hart's pending words back from the interrupt
// file. The shared dispatch routine uses this, not the shadow: a hardware
// MSI write lands in the register file first.
func (c *Controller) HardwarePending(hart uint32) ([2]uint32, error) {
	if hart >= c.numHarts {
		return [2]uint32{}, fmt.Errorf("imsic: hart %d out of range [0,%d): %w", hart, c.numHarts, intc.ErrInvalidArgument)
	}
	return [2]uint32{
		c.regs.Read32(fileOff(hart, regEIPBase)),
		c.regs.Read32(fileOff(hart, regEIPBase+4)),
	}, nil
}

// Handler returns the handler registered for eid, if any.
func (c *Controller) Handler(eid uint32) intc.Handler {
	if eid > MaxEID {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers[eid]
}

// GlobalStats returns the controller-wide dispatch counters.
func (c *Controller) GlobalStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// ResetStats zeroes the dispatch counters together.
func (c *Controller) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = Stats{}
}
