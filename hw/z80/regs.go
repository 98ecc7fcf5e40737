package z80

import "fmt"

// Reg16 is a register pair. The 8-bit halves are accessed through Hi/Lo.
type Reg16 uint16

func (r Reg16) Hi() uint8 { return uint8(r >> 8) }
func (r Reg16) Lo() uint8 { return uint8(r) }

func (r *Reg16) SetHi(v uint8) { *r = Reg16(v)<<8 | *r&0x00FF }
func (r *Reg16) SetLo(v uint8) { *r = *r&0xFF00 | Reg16(v) }

// Flag bits of F.
const (
	FlagC  uint8 = 0x01
	FlagN  uint8 = 0x02
	FlagPV uint8 = 0x04
	Flag3  uint8 = 0x08
	FlagH  uint8 = 0x10
	Flag5  uint8 = 0x20
	FlagZ  uint8 = 0x40
	FlagS  uint8 = 0x80
)

// Regs is the programmer visible state of the CPU, plus MemPtr (the internal
// address latch also known as WZ) which leaks into some undocumented flags.
type Regs struct {
	AF, BC, DE, HL             Reg16
	AltAF, AltBC, AltDE, AltHL Reg16
	IX, IY                     Reg16
	SP, PC                     uint16
	MemPtr                     uint16

	I  uint8
	R  uint8 // refresh counter, only the low 7 bits count
	R7 uint8 // bit 7 of R, as last written by LD R,A
	IM uint8

	IFF1, IFF2 bool
	Halted     bool
}

// RefreshR returns the value of R as seen by LD A,R.
func (r *Regs) RefreshR() uint8 {
	return r.R&0x7F | r.R7&0x80
}

// SetRefreshR sets R as LD R,A does.
func (r *Regs) SetRefreshR(v uint8) {
	r.R = v
	r.R7 = v & 0x80
}

func (r *Regs) String() string {
	return fmt.Sprintf("AF=%04X BC=%04X DE=%04X HL=%04X IX=%04X IY=%04X SP=%04X PC=%04X I=%02X R=%02X IM%d IFF=%t/%t %s",
		uint16(r.AF), uint16(r.BC), uint16(r.DE), uint16(r.HL),
		uint16(r.IX), uint16(r.IY), r.SP, r.PC, r.I, r.RefreshR(), r.IM, r.IFF1, r.IFF2, flagString(r.AF.Lo()))
}

func flagString(f uint8) string {
	const names = "SZ5H3PNC"
	buf := []byte("--------")
	for i := range 8 {
		if f&(0x80>>i) != 0 {
			buf[i] = names[i]
		}
	}
	return string(buf)
}
