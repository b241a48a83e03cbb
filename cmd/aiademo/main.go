// aiademo brings up an interrupt-controller complex against in-process
// device models (or /dev/mem windows from a board file) and runs a short
// delivery scenario through both the direct and the MSI paths.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/tinyrange/aia"
	"github.com/tinyrange/aia/internal/aplic"
	"github.com/tinyrange/aia/internal/board"
	"github.com/tinyrange/aia/internal/imsic"
	"github.com/tinyrange/aia/internal/regio"
	"github.com/tinyrange/aia/internal/sim"
)

func buildAccessors(b *board.Board, devmem bool) (plat, msg regio.Accessor, err error) {
	if devmem {
		if b.Platform != nil {
			m, err := regio.MapDevMem(b.Platform.Base, 0x8000)
			if err != nil {
				return nil, nil, err
			}
			plat = m
		}
		if b.Message != nil {
			m, err := regio.MapDevMem(b.Message.Base, uint64(b.Harts)*imsic.FileStride)
			if err != nil {
				return nil, nil, err
			}
			msg = m
			if b.Message.BigEndian {
				msg = regio.BigEndian(msg)
			}
		}
		return plat, msg, nil
	}

	if b.Platform != nil {
		plat = sim.NewAPLIC(b.Platform.Sources, b.Harts)
	}
	if b.Message != nil {
		// The in-process models are host-endian; big_endian only applies
		// to real windows.
		msg = sim.NewIMSIC(b.Harts)
	}
	return plat, msg, nil
}

func run() error {
	config := flag.String("config", "", "board description YAML (default: built-in two-hart board)")
	mode := flag.String("mode", "direct", "delivery mode when no config is given: direct or msi")
	harts := flag.Uint("harts", 2, "hart count when no config is given")
	sources := flag.Uint("sources", 16, "wired source count when no config is given")
	devmem := flag.Bool("devmem", false, "map real register windows from /dev/mem instead of using models")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	var b *board.Board
	if *config != "" {
		var err error
		b, err = board.Load(*config)
		if err != nil {
			return err
		}
	} else {
		b = &board.Board{
			Harts: uint32(*harts),
			Platform: &board.Platform{
				Sources:    uint32(*sources),
				MSIBaseEID: 1,
			},
		}
		if *mode == "msi" {
			b.Message = &board.Message{}
		} else if *mode != "direct" {
			return fmt.Errorf("unknown mode %q", *mode)
		}
		if err := b.Validate(); err != nil {
			return err
		}
	}

	platRegs, msgRegs, err := buildAccessors(b, *devmem)
	if err != nil {
		return err
	}

	var msg *imsic.Controller
	if msgRegs != nil {
		msg, err = imsic.New(imsic.Config{
			Regs:         msgRegs,
			NumHarts:     b.Harts,
			GuestID:      b.Message.GuestID,
			MaxThreshold: b.Message.MaxThreshold,
		})
		if err != nil {
			return err
		}
	}

	var plat *aplic.Controller
	if platRegs != nil {
		cfg := aplic.Config{
			Regs:       platRegs,
			NumSources: b.Platform.Sources,
			NumHarts:   b.Harts,
			MSIBaseEID: b.Platform.MSIBaseEID,
		}
		if msg != nil {
			cfg.MSI = &aplic.MSIConfig{Sink: msg}
		}
		plat, err = aplic.New(cfg)
		if err != nil {
			return err
		}
	}

	cx, err := aia.New(aia.Options{
		Platform:  plat,
		Message:   msg,
		LocalHart: b.LocalHart,
	})
	if err != nil {
		return err
	}
	cx.SetDebug(*verbose)

	caps := cx.Caps()
	slog.Info("complex ready", "platform", caps.HasPlatform, "message", caps.HasMessage, "msi", caps.MSIEnabled)

	// Wire a couple of sources and push interrupts through them.
	handler := aia.HandlerFunc(func(id uint32) {
		slog.Info("handled interrupt", "id", id)
	})

	eidOf := func(id uint32) uint32 {
		if b.Platform != nil {
			return b.Platform.MSIBaseEID + id
		}
		return id
	}

	ids := []uint32{3, 5}
	for _, id := range ids {
		if caps.HasPlatform {
			if err := cx.RegisterHandler(id, handler); err != nil {
				return err
			}
			if err := cx.SetPriority(id, 10); err != nil {
				return err
			}
			target := cx.SelectTargetHart(0)
			if err := cx.SetAffinity(id, 1<<target); err != nil {
				return err
			}
		}
		if caps.HasMessage {
			eid := eidOf(id)
			if err := cx.RegisterEIDHandler(eid, handler); err != nil {
				return err
			}
			for hart := uint32(0); hart < b.Harts; hart++ {
				if err := msg.Enable(hart, eid); err != nil {
					return err
				}
			}
		}
		if caps.HasPlatform {
			// Wired-source injection follows affinity and delegation.
			if err := plat.Enable(id); err != nil {
				return err
			}
			if err := plat.SetPending(id); err != nil {
				return err
			}
		} else {
			if err := cx.Enable(id); err != nil {
				return err
			}
			if err := cx.SetPending(id); err != nil {
				return err
			}
		}
	}

	total := 0
	for hart := uint32(0); hart < b.Harts; hart++ {
		n, err := cx.Dispatch(hart)
		if err != nil {
			return err
		}
		total += n
	}

	stats := cx.Stats()
	slog.Info("dispatch complete",
		"handled", total,
		"total", stats.TotalInterrupts,
		"msi", stats.MSIInterrupts,
		"direct", stats.DirectInterrupts,
		"errors", stats.Errors)
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aiademo: %v\n", err)
		os.Exit(1)
	}
}
