// Package aplic drives an Advanced Platform-Level Interrupt Controller
// domain. The controller multiplexes wired interrupt sources across harts
// and delivers them either through the per-hart claim/complete protocol
// (Direct mode) or by forwarding them as message-signaled interrupts to an
// incoming-message controller (MSI mode). The delivery mode is fixed at
// bring-up; it is never re-arbitrated while the controller lives.
package aplic

import (
	"fmt"
	"log/slog"
	"math/bits"
	"sync"

	"github.com/tinyrange/aia/internal/intc"
	"github.com/tinyrange/aia/internal/regio"
)

// TriggerType selects how a source samples its input line. The values are
// the hardware SOURCECFG source-mode encodings.
type TriggerType uint32

const (
	TriggerEdgeRising  TriggerType = 0x4
	TriggerEdgeFalling TriggerType = 0x5
	TriggerLevelHigh   TriggerType = 0x6
	TriggerLevelLow    TriggerType = 0x7
)

func (t TriggerType) valid() bool {
	switch t {
	case TriggerEdgeRising, TriggerEdgeFalling, TriggerLevelHigh, TriggerLevelLow:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (t TriggerType) String() string {
	switch t {
	case TriggerEdgeRising:
		return "edge-rising"
	case TriggerEdgeFalling:
		return "edge-falling"
	case TriggerLevelHigh:
		return "level-high"
	case TriggerLevelLow:
		return "level-low"
	}
	return fmt.Sprintf("TriggerType(%d)", uint32(t))
}

// Mode is the domain-wide delivery mode.
type Mode int

const (
	ModeDirect Mode = iota
	ModeMSI
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m == ModeMSI {
		return "msi"
	}
	return "direct"
}

const (
	// MaxSources bounds the source id space of a single domain.
	MaxSources = 1024

	// MaxPriority is the largest programmable source priority.
	MaxPriority = 255

	// DefaultPriority is assigned to every source at bring-up.
	DefaultPriority = 7

	// MaxEID is the largest external-interrupt id the attached message
	// controller can latch.
	MaxEID = 63

	// MaxGuestIndex bounds the guest-index field of a TARGET register.
	MaxGuestIndex = 63
)

// MSISink receives forwarded message-signaled interrupts. The message
// controller driver implements it.
type MSISink interface {
	SetPending(hart, eid uint32) error
}

// MSIRouting describes the MSI address computation programmed into
// MSICFGADDR/MSICFGADDRH.
type MSIRouting struct {
	BasePPN         uint32
	HartIndexBits   uint32
	GuestIndexBits  uint32
	GroupIndexBits  uint32
	GroupIndexShift uint32
}

// MSIConfig enables MSI mode. Presence of a ready message controller is the
// bring-up mode-selection input; there is no runtime re-detection.
type MSIConfig struct {
	Sink    MSISink
	Routing MSIRouting
}

// Config describes one physical APLIC domain.
type Config struct {
	Regs regio.Accessor

	// NumSources is the size of the source id space; valid ids are
	// 1..NumSources-1, id 0 is reserved.
	NumSources uint32

	NumHarts uint32

	// MSIBaseEID offsets source ids into the message controller's EID
	// space when sources are delegated.
	MSIBaseEID uint32

	// MSI selects MSI mode when non-nil.
	MSI *MSIConfig
}

type source struct {
	trigger     TriggerType
	priority    uint8
	affinity    uint64
	enabled     bool
	delegated   bool
	targetEID   uint32
	targetHart  uint32
	targetGuest uint32
	count       uint64
	lastHart    uint32
}

// SourceStats is a consistent snapshot of one source's configuration and
// delivery counters.
type SourceStats struct {
	Count    uint64
	LastHart uint32
	Affinity uint64
	Trigger  TriggerType
	Priority uint8
	Enabled  bool
}

// Stats holds the domain-wide delivery counters.
type Stats struct {
	TotalInterrupts uint64
	MSISent         uint64
	DirectHandled   uint64
}

// Controller owns the source descriptor table and per-hart claim state of
// one APLIC domain. The mutex covers the in-memory tables only; register
// access is ordered by the accessor and by the claim protocol's
// single-owner guarantee, never by the lock.
type Controller struct {
	regs       regio.Accessor
	numSources uint32
	numHarts   uint32
	msiBaseEID uint32
	mode       Mode
	sink       MSISink

	mu         sync.Mutex
	sources    []source
	thresholds []uint32
	delivery   []bool
	stats      Stats
	ready      bool
}

// New brings up an APLIC domain. All sources, per-hart thresholds and MSI
// routing registers are programmed before the domain-wide enable: an
// interrupt arriving against a half-configured table would be misrouted,
// so DOMAINCFG is always the last write.
func New(cfg Config) (*Controller, error) {
	if cfg.Regs == nil {
		return nil, fmt.Errorf("aplic: nil register accessor: %w", intc.ErrInvalidArgument)
	}
	if cfg.NumSources < 2 || cfg.NumSources > MaxSources {
		return nil, fmt.Errorf("aplic: source count %d: %w", cfg.NumSources, intc.ErrInvalidArgument)
	}
	if cfg.NumHarts == 0 || cfg.NumHarts > 64 {
		return nil, fmt.Errorf("aplic: hart count %d: %w", cfg.NumHarts, intc.ErrInvalidArgument)
	}

	c := &Controller{
		regs:       cfg.Regs,
		numSources: cfg.NumSources,
		numHarts:   cfg.NumHarts,
		msiBaseEID: cfg.MSIBaseEID,
		mode:       ModeDirect,
		sources:    make([]source, cfg.NumSources),
		thresholds: make([]uint32, cfg.NumHarts),
		delivery:   make([]bool, cfg.NumHarts),
	}
	if cfg.MSI != nil {
		c.mode = ModeMSI
		c.sink = cfg.MSI.Sink
	}

	allHarts := allHartsMask(cfg.NumHarts)
	for id := uint32(1); id < cfg.NumSources; id++ {
		c.sources[id] = source{
			trigger:  TriggerLevelHigh,
			priority: DefaultPriority,
			affinity: allHarts,
		}
	}

	c.initHardware()

	if cfg.MSI != nil {
		c.programMSIRouting(cfg.MSI.Routing)
	} else {
		c.configureDirect()
	}

	if err := c.enableDomain(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()

	slog.Info("aplic: domain up", "mode", c.mode, "sources", c.numSources, "harts", c.numHarts)
	return c, nil
}

// initHardware masks every source and resets source configuration to a
// known state before mode selection.
func (c *Controller) initHardware() {
	for w := uint32(0); w < c.numSources; w += 32 {
		c.regs.Write32(wordOff(regClrIEBase, w), 0xFFFFFFFF)
		c.regs.Write32(wordOff(regClrIPBase, w), 0xFFFFFFFF)
	}
	for id := uint32(1); id < c.numSources; id++ {
		c.regs.Write32(sourceCfgOff(id), DefaultPriority<<sourceCfgPrioShl|smInactive)
		c.regs.Write32(targetOff(id), DefaultPriority<<targetPrioShl|targetIE)
	}
	c.regs.Write32(regDomainCfg, 0)
}

func (c *Controller) configureDirect() {
	for hart := uint32(0); hart < c.numHarts; hart++ {
		c.regs.Write32(idcOff(hart, idcIDelivery), 1)
		c.regs.Write32(idcOff(hart, idcIThreshold), 0)
		c.delivery[hart] = true
	}
}

func (c *Controller) programMSIRouting(r MSIRouting) {
	c.regs.Write32(regMSICfgAddr, r.BasePPN)
	c.regs.Write32(regMSICfgAddrH,
		(r.HartIndexBits&msiCfgWMask)<<msiCfgLHXWShl|
			(r.GroupIndexBits&msiCfgWMask)<<msiCfgHHXWShl|
			(r.GuestIndexBits&msiCfgWMask)<<msiCfgLHXSShl|
			(r.GroupIndexShift&msiCfgWMask)<<msiCfgHHXSShl)
}

// enableDomain is the final bring-up write. IE and DM are verified by
// read-back: a domain that refuses them cannot deliver anything, so this
// is the one place a register mismatch is fatal rather than a warning.
func (c *Controller) enableDomain() error {
	v := uint32(domainCfgIE)
	if c.mode == ModeMSI {
		v |= domainCfgDM
	}
	c.regs.Write32(regDomainCfg, v)

	rb := c.regs.Read32(regDomainCfg)
	if rb&domainCfgIE == 0 {
		return fmt.Errorf("aplic: domaincfg interrupt enable did not stick (read 0x%08x)", rb)
	}
	if (rb&domainCfgDM != 0) != (c.mode == ModeMSI) {
		return fmt.Errorf("aplic: domaincfg delivery mode did not stick (read 0x%08x, want %s)", rb, c.mode)
	}
	if rb&domainCfgIDMask != domainCfgIDValue {
		slog.Warn("aplic: unexpected domaincfg id byte", "read", fmt.Sprintf("0x%08x", rb))
	}
	return nil
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

// Mode returns the delivery mode fixed at bring-up.
func (c *Controller) Mode() Mode { return c.mode }

// NumSources returns the size of the source id space.
func (c *Controller) NumSources() uint32 { return c.numSources }

// NumHarts returns the number of harts this domain can target.
func (c *Controller) NumHarts() uint32 { return c.numHarts }

func (c *Controller) checkSource(id uint32) error {
	if id == 0 || id >= c.numSources {
		return fmt.Errorf("aplic: source %d out of range [1,%d): %w", id, c.numSources, intc.ErrInvalidArgument)
	}
	return nil
}

func (c *Controller) checkHart(hart uint32) error {
	if hart >= c.numHarts {
		return fmt.Errorf("aplic: hart %d out of range [0,%d): %w", hart, c.numHarts, intc.ErrInvalidArgument)
	}
	return nil
}

// SetTriggerType programs the source-mode bits of a source and records the
// type in the descriptor.
func (c *Controller) SetTriggerType(id uint32, t TriggerType) error {
	if err := c.checkSource(id); err != nil {
		return err
	}
	if !t.valid() {
		return fmt.Errorf("aplic: trigger type %d: %w", uint32(t), intc.ErrInvalidArgument)
	}

	off := sourceCfgOff(id)
	v := c.regs.Read32(off)
	v = v&^uint32(sourceCfgSMMask) | uint32(t)
	c.regs.Write32(off, v)

	c.mu.Lock()
	c.sources[id].trigger = t
	c.mu.Unlock()
	return nil
}

// TriggerType reads the source-mode bits back from hardware. An inactive
// source reports 0, not its configured-but-unapplied type.
func (c *Controller) TriggerType(id uint32) (TriggerType, error) {
	if err := c.checkSource(id); err != nil {
		return 0, err
	}
	return TriggerType(c.regs.Read32(sourceCfgOff(id)) & sourceCfgSMMask), nil
}

// SetPriority programs the source priority. Out-of-range values are
// rejected, not clamped.
func (c *Controller) SetPriority(id, priority uint32) error {
	if err := c.checkSource(id); err != nil {
		return err
	}
	if priority > MaxPriority {
		return fmt.Errorf("aplic: priority %d > %d: %w", priority, MaxPriority, intc.ErrInvalidArgument)
	}

	off := sourceCfgOff(id)
	v := c.regs.Read32(off)
	v = v&^uint32(sourceCfgPrioMask) | priority<<sourceCfgPrioShl
	c.regs.Write32(off, v)

	c.mu.Lock()
	c.sources[id].priority = uint8(priority)
	c.mu.Unlock()
	return nil
}

// SetAffinity restricts a source to the harts set in mask. The delivery
// target is the lowest set hart. Setting affinity on an inactive source
// activates it with its configured trigger type; a source must be active
// to be claimable.
func (c *Controller) SetAffinity(id uint32, mask uint64) error {
	if err := c.checkSource(id); err != nil {
		return err
	}
	if mask == 0 {
		return fmt.Errorf("aplic: empty affinity mask for source %d: %w", id, intc.ErrInvalidArgument)
	}
	target := uint32(bits.TrailingZeros64(mask))
	if err := c.checkHart(target); err != nil {
		return err
	}

	c.mu.Lock()
	c.sources[id].affinity = mask
	trigger := c.sources[id].trigger
	c.mu.Unlock()

	off := sourceCfgOff(id)
	v := c.regs.Read32(off)
	if v&sourceCfgSMMask == smInactive {
		c.regs.Write32(off, v&^uint32(sourceCfgSMMask)|uint32(trigger))
	}

	if c.mode == ModeDirect {
		t := c.regs.Read32(targetOff(id))
		c.regs.Write32(targetOff(id), t&^uint32(targetHartMask)|target)
	}
	return nil
}

// SetHartThreshold programs the claim threshold for a hart. Sources with
// priority less than or equal to the threshold are not delivered to it.
func (c *Controller) SetHartThreshold(hart, threshold uint32) error {
	if err := c.checkHart(hart); err != nil {
		return err
	}
	if threshold > MaxPriority {
		return fmt.Errorf("aplic: threshold %d > %d: %w", threshold, MaxPriority, intc.ErrInvalidArgument)
	}

	c.regs.Write32(idcOff(hart, idcIThreshold), threshold)

	c.mu.Lock()
	c.thresholds[hart] = threshold
	c.mu.Unlock()
	return nil
}

// HartThreshold returns the shadow copy of a hart's claim threshold.
func (c *Controller) HartThreshold(hart uint32) (uint32, error) {
	if err := c.checkHart(hart); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thresholds[hart], nil
}

// SetHartDelivery turns interrupt delivery to a hart on or off (Direct
// mode IDC control).
func (c *Controller) SetHartDelivery(hart uint32, enabled bool) error {
	if err := c.checkHart(hart); err != nil {
		return err
	}
	v := uint32(0)
	if enabled {
		v = 1
	}
	c.regs.Write32(idcOff(hart, idcIDelivery), v)

	c.mu.Lock()
	c.delivery[hart] = enabled
	c.mu.Unlock()
	return nil
}

// Enable unmasks a source. In Direct mode this sets the source's bit in the
// SETIE bitmask; in MSI mode the same offset is the write-only SETIENUM
// pulse register, so only the shadow state remembers the intent.
func (c *Controller) Enable(id uint32) error {
	if err := c.checkSource(id); err != nil {
		return err
	}

	if c.mode == ModeMSI {
		c.regs.Write32(regSetIEBase, id)
	} else {
		off := wordOff(regSetIEBase, id)
		c.regs.Write32(off, c.regs.Read32(off)|bitMask(id))
	}

	c.mu.Lock()
	c.sources[id].enabled = true
	c.mu.Unlock()
	return nil
}

// Disable masks a source.
func (c *Controller) Disable(id uint32) error {
	if err := c.checkSource(id); err != nil {
		return err
	}

	if c.mode == ModeMSI {
		c.regs.Write32(regClrIEBase, id)
	} else {
		c.regs.Write32(wordOff(regClrIEBase, id), bitMask(id))
	}

	c.mu.Lock()
	c.sources[id].enabled = false
	c.mu.Unlock()
	return nil
}

// IsEnabled reports whether a source is unmasked. In Direct mode the
// hardware bit is authoritative. In MSI mode the enable registers are
// write-only, so this returns the last software-intended state, not a
// confirmed hardware state.
func (c *Controller) IsEnabled(id uint32) (bool, error) {
	if err := c.checkSource(id); err != nil {
		return false, err
	}
	if c.mode == ModeMSI {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.sources[id].enabled, nil
	}
	return c.regs.Read32(wordOff(regSetIEBase, id))&bitMask(id) != 0, nil
}

// SetPending latches a source pending. A disabled source stops here with
// statistics untouched. An enabled source is either left latched for claim
// (Direct) or forwarded to the message controller (MSI).
func (c *Controller) SetPending(id uint32) error {
	if err := c.checkSource(id); err != nil {
		return err
	}

	off := wordOff(regSetIPBase, id)
	c.regs.Write32(off, c.regs.Read32(off)|bitMask(id))

	enabled, err := c.IsEnabled(id)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}

	if c.mode == ModeMSI {
		hart, guest, eid := c.msiTarget(id)
		if eid > MaxEID {
			slog.Warn("aplic: source maps outside EID space, not forwarded", "source", id, "eid", eid)
			return nil
		}
		if c.sink != nil {
			if err := c.sink.SetPending(hart, eid); err != nil {
				slog.Warn("aplic: msi forward failed", "source", id, "hart", hart, "eid", eid, "err", err)
				return err
			}
		}
		// The interrupt lives in the message controller now; a wired latch
		// left behind would report pending forever with nothing to claim it.
		c.regs.Write32(wordOff(regClrIPBase, id), bitMask(id))
		c.mu.Lock()
		c.stats.MSISent++
		c.mu.Unlock()
		slog.Debug("aplic: msi forwarded", "source", id, "hart", hart, "guest", guest, "eid", eid)
		return nil
	}

	c.mu.Lock()
	c.stats.DirectHandled++
	c.mu.Unlock()
	return nil
}

// msiTarget resolves the delivery target of a source. Delegated sources
// use their programmed TARGET configuration; anything else falls back to
// the lowest hart in the affinity mask and the base EID mapping.
func (c *Controller) msiTarget(id uint32) (hart, guest, eid uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	src := &c.sources[id]
	if src.delegated {
		return src.targetHart, src.targetGuest, src.targetEID
	}
	return uint32(bits.TrailingZeros64(src.affinity)), 0, c.msiBaseEID + id
}

// IsPending reads the hardware pending bit of a source.
func (c *Controller) IsPending(id uint32) (bool, error) {
	if err := c.checkSource(id); err != nil {
		return false, err
	}
	return c.regs.Read32(wordOff(regSetIPBase, id))&bitMask(id) != 0, nil
}

// ClearPending drops a latched interrupt without delivering it.
func (c *Controller) ClearPending(id uint32) error {
	if err := c.checkSource(id); err != nil {
		return err
	}
	c.regs.Write32(wordOff(regClrIPBase, id), bitMask(id))
	return nil
}

// Claim reads the per-hart CLAIMI register, atomically taking ownership of
// the highest-priority pending and enabled source above the hart's
// threshold. Ties resolve to the lowest id; the resolution is done by
// hardware. A zero id means nothing qualifies.
func (c *Controller) Claim(hart uint32) (id uint32, priority uint8, err error) {
	if err := c.checkHart(hart); err != nil {
		return 0, 0, err
	}
	v := c.regs.Read32(idcOff(hart, idcClaimI))
	return (v >> topiIDShl) & topiIDMask, uint8(v & topiPrioMask), nil
}

// TopID is the non-destructive variant of Claim: it reports the source
// that the next claim would return without taking ownership of it.
func (c *Controller) TopID(hart uint32) (uint32, error) {
	if err := c.checkHart(hart); err != nil {
		return 0, err
	}
	return (c.regs.Read32(idcOff(hart, idcTopI)) >> topiIDShl) & topiIDMask, nil
}

// Complete acknowledges a claimed source on a hart, clearing its
// in-service state.
func (c *Controller) Complete(hart, id uint32) error {
	if err := c.checkHart(hart); err != nil {
		return err
	}
	if err := c.checkSource(id); err != nil {
		return err
	}
	c.regs.Write32(idcOff(hart, idcClaimI), id)
	return nil
}

// ForceInterrupt asserts a spurious interrupt on a hart through the IFORCE
// register, useful for probing the dispatch path.
func (c *Controller) ForceInterrupt(hart uint32) error {
	if err := c.checkHart(hart); err != nil {
		return err
	}
	c.regs.Write32(idcOff(hart, idcIForce), 1)
	return nil
}

// ConfigureSourceMSI delegates a source to the message controller,
// addressing it to (targetHart, targetGuest) with EID MSIBaseEID+id. Only
// valid in MSI mode.
func (c *Controller) ConfigureSourceMSI(id, targetHart, targetGuest uint32) error {
	if c.mode != ModeMSI {
		return fmt.Errorf("aplic: source delegation requires MSI mode: %w", intc.ErrNotSupported)
	}
	if err := c.checkSource(id); err != nil {
		return err
	}
	if err := c.checkHart(targetHart); err != nil {
		return err
	}
	if targetGuest > MaxGuestIndex {
		return fmt.Errorf("aplic: guest index %d > %d: %w", targetGuest, MaxGuestIndex, intc.ErrInvalidArgument)
	}
	eid := c.msiBaseEID + id
	if eid > MaxEID {
		return fmt.Errorf("aplic: source %d maps to EID %d > %d: %w", id, eid, MaxEID, intc.ErrInvalidArgument)
	}

	c.mu.Lock()
	priority := uint32(c.sources[id].priority)
	c.mu.Unlock()

	c.regs.Write32(sourceCfgOff(id), eid<<sourceCfgChildShl|sourceCfgDelegate|smInactive)
	c.regs.Write32(targetOff(id),
		targetHart&targetHartMask|
			(targetGuest&targetGuestMask)<<targetGuestShl|
			(priority&targetPrioMask)<<targetPrioShl|
			targetIE)

	c.mu.Lock()
	src := &c.sources[id]
	src.delegated = true
	src.targetEID = eid
	src.targetHart = targetHart
	src.targetGuest = targetGuest
	c.mu.Unlock()
	return nil
}

// SendMSI injects a message-signaled interrupt directly, bypassing the
// source table. eid addresses the message controller's EID space.
func (c *Controller) SendMSI(targetHart, targetGuest, eid uint32) error {
	if c.mode != ModeMSI {
		return fmt.Errorf("aplic: msi injection requires MSI mode: %w", intc.ErrNotSupported)
	}
	if err := c.checkHart(targetHart); err != nil {
		return err
	}
	if targetGuest > MaxGuestIndex {
		return fmt.Errorf("aplic: guest index %d > %d: %w", targetGuest, MaxGuestIndex, intc.ErrInvalidArgument)
	}
	if eid > MaxEID {
		return fmt.Errorf("aplic: EID %d > %d: %w", eid, MaxEID, intc.ErrInvalidArgument)
	}

	if c.sink != nil {
		if err := c.sink.SetPending(targetHart, eid); err != nil {
			return fmt.Errorf("aplic: msi injection: %w", err)
		}
	}

	c.mu.Lock()
	c.stats.MSISent++
	c.mu.Unlock()
	return nil
}

// RecordHandled credits a delivered interrupt to a source and hart. The
// dispatch routine calls it after the handler returns.
func (c *Controller) RecordHandled(id, hart uint32) {
	if id == 0 || id >= c.numSources || hart >= c.numHarts {
		return
	}
	c.mu.Lock()
	c.sources[id].count++
	c.sources[id].lastHart = hart
	c.stats.TotalInterrupts++
	c.mu.Unlock()
}

// Stats returns a snapshot of one source's configuration and counters.
func (c *Controller) Stats(id uint32) (SourceStats, error) {
	if err := c.checkSource(id); err != nil {
		return SourceStats{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	src := &c.sources[id]
	return SourceStats{
		Count:    src.count,
		LastHart: src.lastHart,
		Affinity: src.affinity,
		Trigger:  src.trigger,
		Priority: src.priority,
		Enabled:  src.enabled,
	}, nil
}

// GlobalStats returns the domain-wide counters.
func (c *Controller) GlobalStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// ResetStats zeroes every per-source counter and the global totals
// together.
func (c *Controller) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.sources {
		c.sources[i].count = 0
		c.sources[i].lastHart = 0
	}
	c.stats = Stats{}
	slog.Info("aplic: statistics reset")
}

// LoadByHart sums, per hart, the delivery counts of the sources last
// handled on it. The unification layer uses it for load-balanced target
// selection.
func (c *Controller) LoadByHart() []uint64 {
	loads := make([]uint64, c.numHarts)
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := uint32(1); id < c.numSources; id++ {
		src := &c.sources[id]
		if src.count > 0 && src.lastHart < c.numHarts {
			loads[src.lastHart] += src.count
		}
	}
	return loads
}

func allHartsMask(n uint32) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<n - 1
}
