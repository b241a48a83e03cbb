package aia

import (
	"github.com/tinyrange/aia/internal/aplic"
	"github.com/tinyrange/aia/internal/board"
	"github.com/tinyrange/aia/internal/imsic"
	"github.com/tinyrange/aia/internal/regio"
)

// Backend types re-exported so a complex can be assembled without reaching
// into internal packages.

// PlatformController drives a wired-source interrupt controller domain.
type PlatformController = aplic.Controller

// PlatformConfig describes one platform controller domain.
type PlatformConfig = aplic.Config

// MSIConfig selects MSI mode for a platform controller and names the sink
// that receives forwarded messages.
type MSIConfig = aplic.MSIConfig

// MSIRouting describes the MSI address computation programmed at bring-up.
type MSIRouting = aplic.MSIRouting

// TriggerType selects how a wired source is sampled.
type TriggerType = aplic.TriggerType

// Mode reports a platform controller's fixed delivery mode.
type Mode = aplic.Mode

// PlatformStats holds a platform controller's global counters.
type PlatformStats = aplic.Stats

// SourceStats holds the per-source counters of a platform controller.
type SourceStats = aplic.SourceStats

// MessageController drives the per-hart interrupt files.
type MessageController = imsic.Controller

// MessageConfig describes the interrupt-file windows of a message
// controller.
type MessageConfig = imsic.Config

// DeliveryMode selects how a hart's interrupt file signals the hart.
type DeliveryMode = imsic.DeliveryMode

// MessageStats holds a message controller's dispatch counters.
type MessageStats = imsic.Stats

// Board is a static platform description loaded from YAML.
type Board = board.Board

// BoardPlatform is the platform-controller section of a Board.
type BoardPlatform = board.Platform

// BoardMessage is the message-controller section of a Board.
type BoardMessage = board.Message

// RegisterAccessor is the 32-bit ordered register window both controllers
// are driven through.
type RegisterAccessor = regio.Accessor

// RegisterWindow is a register window mapped from physical memory.
type RegisterWindow = regio.DevMem

const (
	TriggerEdgeRising  = aplic.TriggerEdgeRising
	TriggerEdgeFalling = aplic.TriggerEdgeFalling
	TriggerLevelHigh   = aplic.TriggerLevelHigh
	TriggerLevelLow    = aplic.TriggerLevelLow

	ModeDirect = aplic.ModeDirect
	ModeMSI    = aplic.ModeMSI

	DeliveryOff     = imsic.DeliveryOff
	DeliveryMSI     = imsic.DeliveryMSI
	DeliveryID      = imsic.DeliveryID
	DeliveryVirtual = imsic.DeliveryVirtual

	// DefaultPriority is assigned to every wired source at bring-up.
	DefaultPriority = aplic.DefaultPriority

	// MaxEID is the largest external-interrupt id an interrupt file
	// latches.
	MaxEID = imsic.MaxEID

	// FileStride is the size of one per-hart interrupt file window.
	FileStride = imsic.FileStride
)

// NewPlatform brings up a platform controller domain.
func NewPlatform(cfg PlatformConfig) (*PlatformController, error) {
	return aplic.New(cfg)
}

// NewMessage brings up a message controller.
func NewMessage(cfg MessageConfig) (*MessageController, error) {
	return imsic.New(cfg)
}

// LoadBoard reads and validates a YAML board description.
func LoadBoard(path string) (*Board, error) {
	return board.Load(path)
}

// ParseBoard parses and validates an in-memory board description.
func ParseBoard(data []byte) (*Board, error) {
	return board.Parse(data)
}

// BigEndian wraps an accessor whose register window is big-endian.
func BigEndian(a RegisterAccessor) RegisterAccessor {
	return regio.BigEndian(a)
}

// MapRegisters maps a physical register window from /dev/mem. Linux only;
// Close the returned window when done.
func MapRegisters(base, size uint64) (*RegisterWindow, error) {
	return regio.MapDevMem(base, size)
}
