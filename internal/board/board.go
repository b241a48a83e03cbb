// Package board loads the interrupt-complex description of a target board
// from YAML: which controllers exist, where their register windows live
// and how many harts they serve.
package board

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tinyrange/aia/internal/aplic"
	"github.com/tinyrange/aia/internal/intc"
)

// Platform describes the wired-source controller domain.
type Platform struct {
	Base       uint64 `yaml:"base"`
	Sources    uint32 `yaml:"sources"`
	MSIBaseEID uint32 `yaml:"msi_base_eid"`
}

// Message describes the message controller's interrupt-file window.
type Message struct {
	Base         uint64 `yaml:"base"`
	BigEndian    bool   `yaml:"big_endian"`
	GuestID      uint32 `yaml:"guest_id"`
	MaxThreshold uint32 `yaml:"max_threshold"`
}

// Board is the top-level description. At least one controller section must
// be present.
type Board struct {
	Harts     uint32    `yaml:"harts"`
	LocalHart uint32    `yaml:"local_hart"`
	Platform  *Platform `yaml:"platform"`
	Message   *Message  `yaml:"message"`
}

// Load reads and validates a board description from a file.
func Load(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("board: read %s: %w", path, err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("board: %s: %w", path, err)
	}
	return b, nil
}

// Parse decodes and validates a board description.
func Parse(data []byte) (*Board, error) {
	var b Board
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("board: parse: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks the description for internal consistency.
func (b *Board) Validate() error {
	if b.Harts == 0 || b.Harts > 64 {
		return fmt.Errorf("board: hart count %d: %w", b.Harts, intc.ErrInvalidArgument)
	}
	if b.LocalHart >= b.Harts {
		return fmt.Errorf("board: local hart %d out of range [0,%d): %w", b.LocalHart, b.Harts, intc.ErrInvalidArgument)
	}
	if b.Platform == nil && b.Message == nil {
		return fmt.Errorf("board: no controller sections: %w", intc.ErrNoDevice)
	}
	if b.Platform != nil {
		if b.Platform.Sources < 2 || b.Platform.Sources > aplic.MaxSources {
			return fmt.Errorf("board: platform source count %d: %w", b.Platform.Sources, intc.ErrInvalidArgument)
		}
	}
	if b.Message != nil {
		if b.Message.MaxThreshold > aplic.MaxEID {
			return fmt.Errorf("board: message max threshold %d > %d: %w", b.Message.MaxThreshold, aplic.MaxEID, intc.ErrInvalidArgument)
		}
		if b.Message.GuestID > aplic.MaxGuestIndex {
			return fmt.Errorf("board: guest id %d > %d: %w", b.Message.GuestID, aplic.MaxGuestIndex, intc.ErrInvalidArgument)
		}
	}
	return nil
}
