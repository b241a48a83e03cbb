package board_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tinyrange/aia/internal/board"
	"github.com/tinyrange/aia/internal/intc"
)

const fullBoard = `
harts: 4
local_hart: 1
platform:
  base: 0xc000000
  sources: 96
  msi_base_eid: 1
message:
  base: 0x24000000
  big_endian: true
  guest_id: 2
  max_threshold: 63
`

func TestParseFullBoard(t *testing.T) {
	b, err := board.Parse([]byte(fullBoard))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if b.Harts != 4 || b.LocalHart != 1 {
		t.Fatalf("harts = %d, local = %d", b.Harts, b.LocalHart)
	}
	if b.Platform == nil || b.Platform.Base != 0xc000000 || b.Platform.Sources != 96 || b.Platform.MSIBaseEID != 1 {
		t.Fatalf("platform = %+v", b.Platform)
	}
	if b.Message == nil || b.Message.Base != 0x24000000 || !b.Message.BigEndian || b.Message.GuestID != 2 {
		t.Fatalf("message = %+v", b.Message)
	}
}

func TestParseRejectsBadBoards(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want error
	}{
		{"no controllers", "harts: 2\n", intc.ErrNoDevice},
		{"zero harts", "harts: 0\nmessage: {base: 0x1000}\n", intc.ErrInvalidArgument},
		{"too many harts", "harts: 65\nmessage: {base: 0x1000}\n", intc.ErrInvalidArgument},
		{"local hart out of range", "harts: 2\nlocal_hart: 2\nmessage: {base: 0x1000}\n", intc.ErrInvalidArgument},
		{"platform sources too small", "harts: 1\nplatform: {base: 0x1000, sources: 1}\n", intc.ErrInvalidArgument},
		{"platform sources too large", "harts: 1\nplatform: {base: 0x1000, sources: 2000}\n", intc.ErrInvalidArgument},
		{"threshold too large", "harts: 1\nmessage: {base: 0x1000, max_threshold: 64}\n", intc.ErrInvalidArgument},
		{"guest too large", "harts: 1\nmessage: {base: 0x1000, guest_id: 64}\n", intc.ErrInvalidArgument},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := board.Parse([]byte(tc.yaml)); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	if _, err := board.Parse([]byte("harts: [not a count\n")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	if err := os.WriteFile(path, []byte(fullBoard), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	b, err := board.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Harts != 4 {
		t.Fatalf("harts = %d", b.Harts)
	}

	if _, err := board.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
