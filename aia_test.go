package aia_test

import (
	"errors"
	"testing"

	"github.com/tinyrange/aia"
	"github.com/tinyrange/aia/internal/aplic"
	"github.com/tinyrange/aia/internal/imsic"
	"github.com/tinyrange/aia/internal/sim"
)

func newPlatform(t *testing.T, sources, harts uint32, msi *imsic.Controller) *aplic.Controller {
	t.Helper()
	cfg := aplic.Config{
		Regs:       sim.NewAPLIC(sources, harts),
		NumSources: sources,
		NumHarts:   harts,
		MSIBaseEID: 1,
	}
	if msi != nil {
		cfg.MSI = &aplic.MSIConfig{Sink: msi}
	}
	c, err := aplic.New(cfg)
	if err != nil {
		t.Fatalf("aplic.New: %v", err)
	}
	return c
}

func newMessage(t *testing.T, harts uint32) *imsic.Controller {
	t.Helper()
	c, err := imsic.New(imsic.Config{Regs: sim.NewIMSIC(harts), NumHarts: harts})
	if err != nil {
		t.Fatalf("imsic.New: %v", err)
	}
	return c
}

func TestNewRequiresABackend(t *testing.T) {
	if _, err := aia.New(aia.Options{}); !errors.Is(err, aia.ErrNoDevice) {
		t.Fatalf("no backends: got %v", err)
	}
}

func TestNewRejectsOutOfRangeLocalHart(t *testing.T) {
	msg := newMessage(t, 2)
	if _, err := aia.New(aia.Options{Message: msg, LocalHart: 2}); !errors.Is(err, aia.ErrInvalidArgument) {
		t.Fatalf("local hart 2: got %v", err)
	}
}

func TestCapsDirect(t *testing.T) {
	cx, err := aia.New(aia.Options{Platform: newPlatform(t, 16, 2, nil)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	caps := cx.Caps()
	if !caps.HasPlatform || caps.HasMessage || caps.MSIEnabled {
		t.Fatalf("caps = %+v", caps)
	}
	if cx.NumHarts() != 2 {
		t.Fatalf("harts = %d", cx.NumHarts())
	}
}

func TestCapsMSIPreferred(t *testing.T) {
	msg := newMessage(t, 2)
	cx, err := aia.New(aia.Options{Platform: newPlatform(t, 16, 2, msg), Message: msg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	caps := cx.Caps()
	if !caps.HasPlatform || !caps.HasMessage || !caps.MSIEnabled {
		t.Fatalf("caps = %+v", caps)
	}
}

func TestCapsMessageOnly(t *testing.T) {
	cx, err := aia.New(aia.Options{Message: newMessage(t, 1)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	caps := cx.Caps()
	if caps.HasPlatform || !caps.HasMessage || !caps.MSIEnabled {
		t.Fatalf("caps = %+v", caps)
	}
}

func TestDispatchDirect(t *testing.T) {
	plat := newPlatform(t, 16, 2, nil)
	cx, err := aia.New(aia.Options{Platform: plat})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var got []uint32
	if err := cx.RegisterHandler(5, aia.HandlerFunc(func(id uint32) {
		got = append(got, id)
	})); err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	if err := cx.SetAffinity(5, 1); err != nil {
		t.Fatalf("SetAffinity: %v", err)
	}
	if err := cx.Enable(5); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := cx.SetPending(5); err != nil {
		t.Fatalf("SetPending: %v", err)
	}

	n, err := cx.Dispatch(0)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if n != 1 || len(got) != 1 || got[0] != 5 {
		t.Fatalf("dispatched %d, handlers saw %v", n, got)
	}

	// One routed operation (Enable) served by the platform backend.
	st := cx.Stats()
	if st.TotalInterrupts != 1 || st.DirectInterrupts != 1 || st.MSIInterrupts != 0 {
		t.Fatalf("stats = %+v", st)
	}
	if got := plat.GlobalStats().TotalInterrupts; got != 1 {
		t.Fatalf("platform delivered = %d, want 1", got)
	}

	// Nothing pending: dispatch is a silent no-op.
	n, err = cx.Dispatch(0)
	if err != nil {
		t.Fatalf("Dispatch idle: %v", err)
	}
	if n != 0 {
		t.Fatalf("idle dispatch handled %d", n)
	}
}

func TestDispatchMSI(t *testing.T) {
	msg := newMessage(t, 2)
	plat := newPlatform(t, 16, 2, msg)
	cx, err := aia.New(aia.Options{Platform: plat, Message: msg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var got []uint32
	// Source 3 maps to EID 4 (base EID 1).
	if err := cx.RegisterEIDHandler(4, aia.HandlerFunc(func(eid uint32) {
		got = append(got, eid)
	})); err != nil {
		t.Fatalf("RegisterEIDHandler: %v", err)
	}
	if err := msg.Enable(1, 4); err != nil {
		t.Fatalf("imsic Enable: %v", err)
	}

	// Wired-source injection goes through the platform controller so the
	// forward follows the source's affinity and EID mapping.
	if err := cx.SetAffinity(3, 1<<1); err != nil {
		t.Fatalf("SetAffinity: %v", err)
	}
	if err := plat.Enable(3); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := plat.SetPending(3); err != nil {
		t.Fatalf("SetPending: %v", err)
	}

	if got := plat.GlobalStats().MSISent; got != 1 {
		t.Fatalf("MSISent = %d, want 1", got)
	}

	// The message landed on hart 1; dispatching hart 0 finds nothing.
	n, err := cx.Dispatch(0)
	if err != nil {
		t.Fatalf("Dispatch(0): %v", err)
	}
	if n != 0 {
		t.Fatalf("hart 0 handled %d", n)
	}

	n, err = cx.Dispatch(1)
	if err != nil {
		t.Fatalf("Dispatch(1): %v", err)
	}
	if n != 1 || len(got) != 1 || got[0] != 4 {
		t.Fatalf("dispatched %d, handlers saw %v", n, got)
	}
}

func TestDispatchRetainsMaskedMessages(t *testing.T) {
	msg := newMessage(t, 1)
	cx, err := aia.New(aia.Options{Message: msg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var got []uint32
	if err := cx.RegisterEIDHandler(5, aia.HandlerFunc(func(eid uint32) {
		got = append(got, eid)
	})); err != nil {
		t.Fatalf("RegisterEIDHandler: %v", err)
	}

	// The EID arrives while still masked.
	if err := msg.SetPending(0, 5); err != nil {
		t.Fatalf("SetPending: %v", err)
	}
	n, err := cx.Dispatch(0)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if n != 0 || len(got) != 0 {
		t.Fatalf("dispatched %d masked, handlers saw %v", n, got)
	}
	pending, err := msg.IsPending(0, 5)
	if err != nil || !pending {
		t.Fatalf("masked EID dropped: pending = %v, %v", pending, err)
	}

	// Unmasking delivers the retained EID.
	if err := cx.Enable(5); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	n, err = cx.Dispatch(0)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if n != 1 || len(got) != 1 || got[0] != 5 {
		t.Fatalf("dispatched %d, handlers saw %v", n, got)
	}
}

func TestUnifiedRoutingMSIEnabled(t *testing.T) {
	msg := newMessage(t, 2)
	plat := newPlatform(t, 16, 2, msg)
	cx, err := aia.New(aia.Options{Platform: plat, Message: msg, LocalHart: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// With MSI delivery enabled the unified operations address the local
	// hart's interrupt file, not the wired-source table.
	if err := cx.Enable(5); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	enabled, err := msg.IsEnabled(1, 5)
	if err != nil || !enabled {
		t.Fatalf("message file enable = %v, %v", enabled, err)
	}
	enabled, err = plat.IsEnabled(5)
	if err != nil || enabled {
		t.Fatalf("wired source enabled by unified op: %v, %v", enabled, err)
	}

	st := cx.Stats()
	if st.TotalInterrupts != 1 || st.MSIInterrupts != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestUnifiedRoutingMessageOnly(t *testing.T) {
	cx, err := aia.New(aia.Options{Message: newMessage(t, 1)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var got []uint32
	if err := cx.RegisterEIDHandler(5, aia.HandlerFunc(func(eid uint32) {
		got = append(got, eid)
	})); err != nil {
		t.Fatalf("RegisterEIDHandler: %v", err)
	}

	if err := cx.Enable(5); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	enabled, err := cx.IsEnabled(5)
	if err != nil || !enabled {
		t.Fatalf("IsEnabled = %v, %v", enabled, err)
	}
	if err := cx.SetPending(5); err != nil {
		t.Fatalf("SetPending: %v", err)
	}

	n, err := cx.Dispatch(0)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if n != 1 || len(got) != 1 || got[0] != 5 {
		t.Fatalf("dispatched %d, handlers saw %v", n, got)
	}

	// No priority field on a message file: the getter reports the fixed
	// default and the setter is unsupported.
	p, err := cx.Priority(5)
	if err != nil || p != aplic.DefaultPriority {
		t.Fatalf("Priority = %d, %v", p, err)
	}
	if err := cx.SetPriority(5, 3); !errors.Is(err, aia.ErrNotSupported) {
		t.Fatalf("SetPriority: got %v", err)
	}

	// Enable, IsEnabled and Priority were served by the message backend;
	// the failed SetPriority landed in the error counter.
	st := cx.Stats()
	if st.TotalInterrupts != 3 || st.MSIInterrupts != 3 || st.Errors != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestSelectTargetHart(t *testing.T) {
	plat := newPlatform(t, 16, 4, nil)
	cx, err := aia.New(aia.Options{Platform: plat})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Fresh complex: everything is tied at zero, lowest hart wins.
	if got := cx.SelectTargetHart(0); got != 0 {
		t.Fatalf("idle target = %d, want 0", got)
	}

	for i := 0; i < 5; i++ {
		plat.RecordHandled(1, 0)
	}
	plat.RecordHandled(2, 1)
	plat.RecordHandled(3, 2)

	if got := cx.SelectTargetHart(0); got != 3 {
		t.Fatalf("target = %d, want idle hart 3", got)
	}
	if got := cx.SelectTargetHart(0b0011); got != 1 {
		t.Fatalf("masked target = %d, want 1", got)
	}
	if got := cx.SelectTargetHart(0b0110); got != 1 {
		t.Fatalf("tie target = %d, want lowest hart 1", got)
	}
}

func TestRootAPIAssemblesComplex(t *testing.T) {
	// Everything a consumer needs is reachable from the root package.
	msg, err := aia.NewMessage(aia.MessageConfig{Regs: sim.NewIMSIC(2), NumHarts: 2})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	plat, err := aia.NewPlatform(aia.PlatformConfig{
		Regs:       sim.NewAPLIC(16, 2),
		NumSources: 16,
		NumHarts:   2,
		MSIBaseEID: 1,
		MSI:        &aia.MSIConfig{Sink: msg},
	})
	if err != nil {
		t.Fatalf("NewPlatform: %v", err)
	}
	if plat.Mode() != aia.ModeMSI {
		t.Fatalf("mode = %v, want msi", plat.Mode())
	}

	cx, err := aia.New(aia.Options{Platform: plat, Message: msg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !cx.Caps().MSIEnabled {
		t.Fatalf("caps = %+v", cx.Caps())
	}
	if err := cx.SetTriggerType(3, aia.TriggerEdgeRising); err != nil {
		t.Fatalf("SetTriggerType: %v", err)
	}

	b, err := aia.ParseBoard([]byte("harts: 2\nplatform:\n  sources: 16\n"))
	if err != nil {
		t.Fatalf("ParseBoard: %v", err)
	}
	if b.Harts != 2 || b.Platform == nil || b.Platform.Sources != 16 {
		t.Fatalf("board = %+v", b)
	}
}

func TestResetStats(t *testing.T) {
	msg := newMessage(t, 1)
	plat := newPlatform(t, 16, 1, msg)
	cx, err := aia.New(aia.Options{Platform: plat, Message: msg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := cx.RegisterEIDHandler(3, aia.HandlerFunc(func(uint32) {})); err != nil {
		t.Fatalf("RegisterEIDHandler: %v", err)
	}
	if err := cx.Enable(3); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := cx.SetPending(3); err != nil {
		t.Fatalf("SetPending: %v", err)
	}
	if n, err := cx.Dispatch(0); err != nil || n != 1 {
		t.Fatalf("Dispatch = %d, %v", n, err)
	}

	cx.ResetStats()
	if st := cx.Stats(); st != (aia.Stats{}) {
		t.Fatalf("stats after reset = %+v", st)
	}
	if st := plat.GlobalStats(); st != (aplic.Stats{}) {
		t.Fatalf("platform stats after reset = %+v", st)
	}
	if st := msg.GlobalStats(); st != (imsic.Stats{}) {
		t.Fatalf("message stats after reset = %+v", st)
	}
}
