package hwio

import (
	"fmt"
)

// Reg8 is an 8-bit hardware register. Bits set in RoMask are preserved on
// write (reserved or read-only bits). WriteCb, if set, is called after the
// value has been stored.
type Reg8 struct {
	Name   string
	Value  uint8
	RoMask uint8

	ReadCb  func(val uint8) uint8
	WriteCb func(old uint8, val uint8)
}

func (reg Reg8) String() string {
	s := fmt.Sprintf("%s{%02x", reg.Name, reg.Value)
	if reg.ReadCb != nil {
		s += ",r!"
	}
	if reg.WriteCb != nil {
		s += ",w!"
	}
	return s + "}"
}

func (reg *Reg8) Write8(val uint8) {
	old := reg.Value
	reg.Value = (reg.Value & reg.RoMask) | (val &^ reg.RoMask)
	if reg.WriteCb != nil {
		reg.WriteCb(old, reg.Value)
	}
}

func (reg *Reg8) Read8() uint8 {
	if reg.ReadCb != nil {
		return reg.ReadCb(reg.Value)
	}
	return reg.Value
}

// Peek8 reads the register without triggering the read callback.
func (reg *Reg8) Peek8() uint8 {
	return reg.Value
}
