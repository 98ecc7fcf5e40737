package hw

import (
	"strings"

	"speccy/emu/log"
	"speccy/hw/hwio"
)

// Key is a position in the 8x5 keyboard matrix: half-row in bits 3-5, bit
// in bits 0-2.
type Key uint8

func (k Key) row() uint8 { return uint8(k) >> 3 & 7 }
func (k Key) bit() uint8 { return 1 << (k & 7) }

func (k Key) String() string {
	if int(k.row()) < len(keyRows) && int(k&7) < 5 {
		return keyRows[k.row()][k&7]
	}
	return "?"
}

// Half-rows, selected by a low address line A8-A15. Keys are listed from
// bit 0.
var keyRows = [8][5]string{
	{"CAPS", "Z", "X", "C", "V"},
	{"A", "S", "D", "F", "G"},
	{"Q", "W", "E", "R", "T"},
	{"1", "2", "3", "4", "5"},
	{"0", "9", "8", "7", "6"},
	{"P", "O", "I", "U", "Y"},
	{"ENTER", "L", "K", "J", "H"},
	{"SPACE", "SYM", "M", "N", "B"},
}

// ParseKey returns the key with the given name (case insensitive).
func ParseKey(name string) (Key, bool) {
	name = strings.ToUpper(name)
	for row, keys := range keyRows {
		for bit, n := range keys {
			if n == name {
				return Key(row<<3 | bit), true
			}
		}
	}
	return 0, false
}

// Keyboard is the key matrix latch read on port xxFE bits 0-4. Rows are
// active low.
type Keyboard struct {
	rows [8]uint8
}

// NewKeyboard returns a keyboard with all keys released.
func NewKeyboard() *Keyboard {
	kb := &Keyboard{}
	kb.Reset()
	return kb
}

// Reset releases all keys.
func (kb *Keyboard) Reset() {
	for i := range kb.rows {
		kb.rows[i] = 0x1F
	}
}

// Set presses or releases k.
func (kb *Keyboard) Set(k Key, down bool) {
	if down {
		kb.rows[k.row()] &^= k.bit()
	} else {
		kb.rows[k.row()] |= k.bit()
	}
	log.ModEmu.DebugZ("key").Stringer("key", k).Bool("down", down).End()
}

// Pressed reports whether k is down.
func (kb *Keyboard) Pressed(k Key) bool {
	return kb.rows[k.row()]&k.bit() == 0
}

// Read returns the state of the half-rows selected by the high byte of the
// port address: a key pulls its bit low if any of its rows is selected.
func (kb *Keyboard) Read(port uint16) uint8 {
	val := uint8(0x1F)
	for row := range kb.rows {
		if port&(0x100<<row) == 0 {
			val &= kb.rows[row]
		}
	}
	return val
}

// Ports returns the keyboard port, xxFE reads.
func (kb *Keyboard) Ports() []*hwio.Port {
	return []*hwio.Port{{
		Name: "keyboard", Mask: 0x0001, Value: 0x0000,
		ReadCb: func(port uint16, val uint8, _ int64) uint8 {
			return val&0xE0 | val&kb.Read(port)
		},
	}}
}
