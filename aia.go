// Package aia unifies a platform interrupt controller (wired sources,
// claim/complete) and a per-hart message controller (MSI files) behind one
// API. The complex probes both at construction, fixes the delivery mode
// once, and routes every operation to whichever backend can serve it.
package aia

import (
	"fmt"
	"log/slog"
	"math/bits"
	"sync"

	"github.com/tinyrange/aia/internal/aplic"
	"github.com/tinyrange/aia/internal/imsic"
	"github.com/tinyrange/aia/internal/intc"
)

// Sentinel errors, re-exported for callers of the unified API. Match with
// errors.Is.
var (
	ErrInvalidArgument = intc.ErrInvalidArgument
	ErrNotSupported    = intc.ErrNotSupported
	ErrNoDevice        = intc.ErrNoDevice
	ErrBusy            = intc.ErrBusy
)

// Handler is the per-interrupt callback invoked by the dispatch routine.
type Handler = intc.Handler

// HandlerFunc adapts a plain function to a Handler.
type HandlerFunc = intc.HandlerFunc

// Caps describes what the complex discovered at construction. The flags
// never change afterwards.
type Caps struct {
	// HasPlatform is set when a wired-source controller is attached.
	HasPlatform bool

	// HasMessage is set when a message controller is attached.
	HasMessage bool

	// MSIEnabled is set when interrupts are delivered as messages rather
	// than claimed directly. MSI is preferred whenever the message
	// controller is present and the platform controller was brought up
	// in MSI mode.
	MSIEnabled bool
}

// Options selects the backends of a complex.
type Options struct {
	Platform *aplic.Controller
	Message  *imsic.Controller

	// LocalHart is the interrupt file used when a message-controller
	// operation is routed without an explicit hart. Defaults to hart 0.
	LocalHart uint32
}

// Stats aggregates the complex's own counters: successful routed
// operations split by the backend that served them, and routed-operation
// failures. The backends keep their own delivery counters.
type Stats struct {
	TotalInterrupts  uint64
	MSIInterrupts    uint64
	DirectInterrupts uint64
	Errors           uint64
}

// Complex is the unified interrupt controller. All methods are safe for
// concurrent use.
type Complex struct {
	platform  *aplic.Controller
	message   *imsic.Controller
	caps      Caps
	localHart uint32
	numHarts  uint32

	mu       sync.Mutex
	handlers map[uint32]intc.Handler
	hartLoad []uint64
	stats    Stats
	debug    bool
}

// New probes the configured backends and brings up the complex. At least
// one backend must be present and ready; a present-but-unready backend is
// reported as ErrBusy so the caller can retry bring-up ordering.
func New(opts Options) (*Complex, error) {
	if opts.Platform == nil && opts.Message == nil {
		return nil, fmt.Errorf("aia: no interrupt controller attached: %w", intc.ErrNoDevice)
	}
	if opts.Platform != nil && !opts.Platform.Ready() {
		return nil, fmt.Errorf("aia: platform controller not ready: %w", intc.ErrBusy)
	}
	if opts.Message != nil && !opts.Message.Ready() {
		return nil, fmt.Errorf("aia: message controller not ready: %w", intc.ErrBusy)
	}

	c := &Complex{
		platform:  opts.Platform,
		message:   opts.Message,
		localHart: opts.LocalHart,
		handlers:  make(map[uint32]intc.Handler),
	}

	c.caps.HasPlatform = opts.Platform != nil
	c.caps.HasMessage = opts.Message != nil
	if c.caps.HasMessage {
		c.caps.MSIEnabled = !c.caps.HasPlatform || opts.Platform.Mode() == aplic.ModeMSI
	}
	if c.caps.HasPlatform && c.caps.HasMessage && opts.Platform.Mode() == aplic.ModeDirect {
		// The platform controller's mode is fixed at its own bring-up;
		// the complex cannot re-arbitrate it here.
		slog.Warn("aia: message controller present but platform controller is in direct mode")
	}

	switch {
	case c.caps.HasPlatform:
		c.numHarts = opts.Platform.NumHarts()
	default:
		c.numHarts = opts.Message.NumHarts()
	}
	if c.caps.HasMessage && opts.Message.NumHarts() < c.numHarts {
		c.numHarts = opts.Message.NumHarts()
	}
	if c.localHart >= c.numHarts {
		return nil, fmt.Errorf("aia: local hart %d out of range [0,%d): %w", c.localHart, c.numHarts, intc.ErrInvalidArgument)
	}
	c.hartLoad = make([]uint64, c.numHarts)

	slog.Info("aia: complex up",
		"platform", c.caps.HasPlatform,
		"message", c.caps.HasMessage,
		"msi", c.caps.MSIEnabled,
		"harts", c.numHarts)
	return c, nil
}

// Caps returns the capability flags fixed at construction.
func (c *Complex) Caps() Caps { return c.caps }

// NumHarts returns the number of harts the complex can target.
func (c *Complex) NumHarts() uint32 { return c.numHarts }

// SetDebug toggles per-interrupt debug logging in the dispatch path.
func (c *Complex) SetDebug(on bool) {
	c.mu.Lock()
	c.debug = on
	c.mu.Unlock()
}

func (c *Complex) debugging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.debug
}

// Backend arbitration for the unified operations: the message controller
// serves when MSI delivery is enabled, then the platform controller, then
// the message controller as a last resort.
func (c *Complex) routeMessageFirst() bool {
	return c.caps.MSIEnabled && c.message.Ready()
}

func (c *Complex) routePlatform() bool {
	return c.caps.HasPlatform && c.platform.Ready()
}

func (c *Complex) routeMessageFallback() bool {
	return c.caps.HasMessage && c.message.Ready()
}

// fail counts a routed-operation failure and passes the error through.
func (c *Complex) fail(err error) error {
	if err != nil {
		c.mu.Lock()
		c.stats.Errors++
		c.mu.Unlock()
	}
	return err
}

// routed finalizes a unified operation: a failure bumps the error counter,
// a success counts toward the aggregate statistics split by the serving
// backend.
func (c *Complex) routed(msi bool, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.stats.Errors++
		return err
	}
	c.stats.TotalInterrupts++
	if msi {
		c.stats.MSIInterrupts++
	} else {
		c.stats.DirectInterrupts++
	}
	return nil
}

// Enable unmasks interrupt id: an EID on the local hart's interrupt file
// when messages serve delivery, otherwise a wired source.
func (c *Complex) Enable(id uint32) error {
	switch {
	case c.routeMessageFirst():
		return c.routed(true, c.message.Enable(c.localHart, id))
	case c.routePlatform():
		return c.routed(false, c.platform.Enable(id))
	case c.routeMessageFallback():
		return c.routed(true, c.message.Enable(c.localHart, id))
	}
	return c.fail(fmt.Errorf("aia: enable: %w", intc.ErrNotSupported))
}

// Disable masks interrupt id.
func (c *Complex) Disable(id uint32) error {
	switch {
	case c.routeMessageFirst():
		return c.routed(true, c.message.Disable(c.localHart, id))
	case c.routePlatform():
		return c.routed(false, c.platform.Disable(id))
	case c.routeMessageFallback():
		return c.routed(true, c.message.Disable(c.localHart, id))
	}
	return c.fail(fmt.Errorf("aia: disable: %w", intc.ErrNotSupported))
}

// IsEnabled reports whether interrupt id is unmasked.
func (c *Complex) IsEnabled(id uint32) (bool, error) {
	switch {
	case c.routeMessageFirst():
		v, err := c.message.IsEnabled(c.localHart, id)
		return v, c.routed(true, err)
	case c.routePlatform():
		v, err := c.platform.IsEnabled(id)
		return v, c.routed(false, err)
	case c.routeMessageFallback():
		v, err := c.message.IsEnabled(c.localHart, id)
		return v, c.routed(true, err)
	}
	return false, c.fail(fmt.Errorf("aia: is-enabled: %w", intc.ErrNotSupported))
}

// SetPriority programs the priority of a wired source. Priority lives in
// the platform controller's routing tables; message files have none.
func (c *Complex) SetPriority(id, priority uint32) error {
	if !c.routePlatform() {
		return c.fail(fmt.Errorf("aia: set-priority: %w", intc.ErrNotSupported))
	}
	return c.routed(false, c.platform.SetPriority(id, priority))
}

// Priority reports the software-intended priority of interrupt id. Without
// a platform controller every EID shares the fixed default.
func (c *Complex) Priority(id uint32) (uint32, error) {
	if !c.routePlatform() {
		if !c.routeMessageFallback() {
			return 0, c.fail(fmt.Errorf("aia: priority: %w", intc.ErrNotSupported))
		}
		if id > imsic.MaxEID {
			return 0, c.routed(true, fmt.Errorf("aia: EID %d > %d: %w", id, imsic.MaxEID, intc.ErrInvalidArgument))
		}
		return aplic.DefaultPriority, c.routed(true, nil)
	}
	st, err := c.platform.Stats(id)
	if err != nil {
		return 0, c.routed(false, err)
	}
	return uint32(st.Priority), c.routed(false, nil)
}

// SetTriggerType programs the sampling mode of a wired source.
func (c *Complex) SetTriggerType(id uint32, t aplic.TriggerType) error {
	if !c.routePlatform() {
		return c.fail(fmt.Errorf("aia: set-trigger: %w", intc.ErrNotSupported))
	}
	return c.fail(c.platform.SetTriggerType(id, t))
}

// SetAffinity restricts a wired source to the harts set in mask.
func (c *Complex) SetAffinity(id uint32, mask uint64) error {
	if !c.routePlatform() {
		return c.fail(fmt.Errorf("aia: set-affinity: %w", intc.ErrNotSupported))
	}
	return c.fail(c.platform.SetAffinity(id, mask))
}

// IsPending reports whether interrupt id is latched.
func (c *Complex) IsPending(id uint32) (bool, error) {
	switch {
	case c.routeMessageFirst():
		v, err := c.message.IsPending(c.localHart, id)
		return v, c.routed(true, err)
	case c.routePlatform():
		v, err := c.platform.IsPending(id)
		return v, c.routed(false, err)
	case c.routeMessageFallback():
		v, err := c.message.IsPending(c.localHart, id)
		return v, c.routed(true, err)
	}
	return false, c.fail(fmt.Errorf("aia: is-pending: %w", intc.ErrNotSupported))
}

// ClearPending drops a latched interrupt without delivering it.
func (c *Complex) ClearPending(id uint32) error {
	switch {
	case c.routeMessageFirst():
		return c.routed(true, c.message.ClearPending(c.localHart, id))
	case c.routePlatform():
		return c.routed(false, c.platform.ClearPending(id))
	case c.routeMessageFallback():
		return c.routed(true, c.message.ClearPending(c.localHart, id))
	}
	return c.fail(fmt.Errorf("aia: clear-pending: %w", intc.ErrNotSupported))
}

// SetPending latches interrupt id through the serving backend. Wired-source
// injection that must follow affinity and delegation goes through the
// platform controller directly; this unified path addresses the interrupt
// as the local hart perceives it.
func (c *Complex) SetPending(id uint32) error {
	switch {
	case c.routeMessageFirst():
		return c.fail(c.message.SetPending(c.localHart, id))
	case c.routePlatform():
		return c.fail(c.platform.SetPending(id))
	case c.routeMessageFallback():
		return c.fail(c.message.SetPending(c.localHart, id))
	}
	return c.fail(fmt.Errorf("aia: set-pending: %w", intc.ErrNotSupported))
}

// RegisterHandler installs the callback invoked when wired source id is
// dispatched through the claim path.
func (c *Complex) RegisterHandler(id uint32, h Handler) error {
	if c.caps.HasPlatform {
		if id == 0 || id >= c.platform.NumSources() {
			return c.fail(fmt.Errorf("aia: source %d out of range: %w", id, intc.ErrInvalidArgument))
		}
	}
	c.mu.Lock()
	c.handlers[id] = h
	c.mu.Unlock()
	return nil
}

// RegisterEIDHandler installs the callback invoked when an EID is
// dispatched through the message path.
func (c *Complex) RegisterEIDHandler(eid uint32, h Handler) error {
	if !c.caps.HasMessage {
		return c.fail(fmt.Errorf("aia: eid handler: %w", intc.ErrNotSupported))
	}
	return c.fail(c.message.RegisterHandler(eid, h))
}

func (c *Complex) handler(id uint32) Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers[id]
}

// SelectTargetHart picks the least-loaded hart among those set in mask,
// measured by delivered-interrupt counts. Ties resolve to the lowest hart
// id. A zero mask considers every hart.
func (c *Complex) SelectTargetHart(mask uint64) uint32 {
	if mask == 0 {
		mask = ^uint64(0)
	}

	loads := make([]uint64, c.numHarts)
	if c.caps.HasPlatform {
		for hart, n := range c.platform.LoadByHart() {
			if hart < len(loads) {
				loads[hart] += n
			}
		}
	}
	c.mu.Lock()
	for hart, n := range c.hartLoad {
		loads[hart] += n
	}
	c.mu.Unlock()

	best := uint32(bits.TrailingZeros64(mask))
	if best >= c.numHarts {
		return 0
	}
	for hart := best + 1; hart < c.numHarts; hart++ {
		if mask&(1<<hart) == 0 {
			continue
		}
		if loads[hart] < loads[best] {
			best = hart
		}
	}
	return best
}

// Stats returns the complex's aggregate counters.
func (c *Complex) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// ResetStats zeroes the complex's counters and both backends' counters
// together.
func (c *Complex) ResetStats() {
	c.mu.Lock()
	c.stats = Stats{}
	for i := range c.hartLoad {
		c.hartLoad[i] = 0
	}
	c.mu.Unlock()

	if c.caps.HasPlatform {
		c.platform.ResetStats()
	}
	if c.caps.HasMessage {
		c.message.ResetStats()
	}
}
