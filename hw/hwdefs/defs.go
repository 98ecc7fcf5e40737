// Package hwdefs holds the constants and error kinds shared by the hardware
// packages.
package hwdefs

import "errors"

// Pentagon 128 timings.
const (
	CPUClock   = 3_500_000 // Hz
	AYClock    = 1_750_000 // Hz
	LineT      = 224       // T-states per scanline
	FrameLines = 320
	FrameT     = LineT * FrameLines // 71680 T-states per frame
)

const (
	PageSize = 0x4000 // 16KB
	NumRAM   = 8
)

// TrapOpcode is the byte injected in the trap overlay page ("ld b,b", a no-op
// in normal code). Fetching it from the overlay asks the memory whether a ROM
// switch must take place.
const TrapOpcode = 0x40

const (
	SoftReset = true
	HardReset = false
)

// Error kinds returned by load/save entry points. Callers test them with
// errors.Is.
var (
	ErrIO          = errors.New("i/o error")
	ErrFormat      = errors.New("format error")
	ErrMediaAbsent = errors.New("no media")
)
