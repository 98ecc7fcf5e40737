package z80

import (
	"speccy/emu/log"
	"speccy/hw/hwdefs"
)

// Memory is the address space seen by the CPU. Fetch8 is used for opcode
// fetches and may resolve to a different page than Read8.
type Memory interface {
	Read8(addr uint16) uint8
	Write8(addr uint16, val uint8, clk int64)
	Fetch8(addr uint16) uint8
}

// IO is the port bus.
type IO interface {
	In(port uint16, clk int64) uint8
	Out(port uint16, val uint8, clk int64)
}

// Trapper is optionally implemented by Memory to switch ROM banks on opcode
// fetch. Trap is called when the fetched opcode is hwdefs.TrapOpcode and, while
// a trap is active, whenever PC leaves the ROM area. It reports whether the
// trap is (still) active; the CPU re-fetches the opcode after a positive call.
type Trapper interface {
	Trap(pc uint16) bool
}

// CPU is a Z80 interpreter. T is the frame cycle counter, shared with the
// devices through the clk argument of every memory and port access.
type CPU struct {
	Regs
	T int64

	mem  Memory
	io   IO
	trap Trapper

	inTrap   bool
	eiShadow bool
	tracer   *tracer

	// current index prefix: hl points at HL, IX or IY.
	idx uint8
	hl  *Reg16
}

// New returns a CPU bound to the given memory and port bus.
func New(mem Memory, io IO) *CPU {
	cpu := &CPU{mem: mem, io: io}
	cpu.trap, _ = mem.(Trapper)
	cpu.hl = &cpu.HL
	cpu.Reset()
	return cpu
}

// Reset puts the CPU in its power-on state. T is not touched.
func (c *CPU) Reset() {
	c.Regs = Regs{
		AF: 0xFFFF,
		SP: 0xFFFF,
	}
	c.inTrap = false
	c.eiShadow = false
	log.ModCPU.DebugZ("reset").End()
}

// InTrap reports whether the memory trap (DOS ROM) is active.
func (c *CPU) InTrap() bool { return c.inTrap }

// SetInTrap forces the trap state, used when the ROM bank is switched from
// outside the CPU (reset to DOS, snapshot load).
func (c *CPU) SetInTrap(v bool) { c.inTrap = v }

// Step executes one instruction, including all its prefixes.
func (c *CPU) Step() {
	if c.inTrap && c.PC >= 0x4000 && c.trap != nil {
		c.inTrap = c.trap.Trap(c.PC)
	}
	if c.tracer != nil {
		c.tracer.write(c)
	}
	c.eiShadow = false
	c.idx = 0
	c.hl = &c.HL
	c.exec(c.fetchOp())
}

// RunFrame steps until T reaches budget, then services the maskable
// interrupt if enabled.
func (c *CPU) RunFrame(budget int64) {
	for c.T < budget {
		c.Step()
	}
	for c.eiShadow {
		c.Step()
	}
	c.Interrupt()
}

// Interrupt accepts a maskable interrupt if IFF1 is set.
func (c *CPU) Interrupt() {
	if !c.IFF1 {
		return
	}
	c.leaveHalt()
	c.IFF1, c.IFF2 = false, false
	c.incR()
	c.push(c.PC)
	if c.IM == 2 {
		addr := uint16(c.I)<<8 | 0xFF
		c.PC = c.read16(addr)
		c.T += 19
	} else {
		c.PC = 0x38
		c.T += 13
	}
	c.MemPtr = c.PC
}

// NMI enters the non-maskable interrupt handler unconditionally.
func (c *CPU) NMI() {
	c.leaveHalt()
	c.IFF1 = false
	c.incR()
	c.push(c.PC)
	c.PC = 0x66
	c.MemPtr = c.PC
	c.T += 11
	log.ModCPU.DebugZ("nmi").Hex8("i", c.I).End()
}

func (c *CPU) leaveHalt() {
	if c.Halted {
		c.Halted = false
		c.PC++
	}
}

func (c *CPU) incR() {
	c.R = c.R&0x80 | (c.R+1)&0x7F
}

// fetchOp performs an M1 cycle: opcode fetch, PC and R increment.
func (c *CPU) fetchOp() uint8 {
	op := c.mem.Fetch8(c.PC)
	if op == hwdefs.TrapOpcode && c.trap != nil && c.trap.Trap(c.PC) {
		if !c.inTrap {
			log.ModCPU.DebugZ("enter rom trap").Hex16("pc", c.PC).End()
		}
		c.inTrap = true
		op = c.mem.Fetch8(c.PC)
	}
	c.PC++
	c.incR()
	return op
}

func (c *CPU) fetch8() uint8 {
	v := c.mem.Read8(c.PC)
	c.PC++
	return v
}

func (c *CPU) fetch16() uint16 {
	lo := c.fetch8()
	hi := c.fetch8()
	return uint16(hi)<<8 | uint16(lo)
}

func (c *CPU) read8(addr uint16) uint8 { return c.mem.Read8(addr) }

func (c *CPU) write8(addr uint16, v uint8) { c.mem.Write8(addr, v, c.T) }

func (c *CPU) read16(addr uint16) uint16 {
	return uint16(c.read8(addr)) | uint16(c.read8(addr+1))<<8
}

func (c *CPU) write16(addr uint16, v uint16) {
	c.write8(addr, uint8(v))
	c.write8(addr+1, uint8(v>>8))
}

func (c *CPU) push(v uint16) {
	c.SP--
	c.write8(c.SP, uint8(v>>8))
	c.SP--
	c.write8(c.SP, uint8(v))
}

func (c *CPU) pop() uint16 {
	v := c.read16(c.SP)
	c.SP += 2
	return v
}

func (c *CPU) in(port uint16, offset int64) uint8 {
	return c.io.In(port, c.T+offset)
}

func (c *CPU) out(port uint16, v uint8, offset int64) {
	c.io.Out(port, v, c.T+offset)
}

func (c *CPU) a() uint8          { return c.AF.Hi() }
func (c *CPU) f() uint8          { return c.AF.Lo() }
func (c *CPU) setA(v uint8)      { c.AF.SetHi(v) }
func (c *CPU) setF(v uint8)      { c.AF.SetLo(v) }
func (c *CPU) carry() uint8      { return c.AF.Lo() & FlagC }
func (c *CPU) flag(f uint8) bool { return c.AF.Lo()&f != 0 }

// reg8 reads register r of the opcode encoding (0=B .. 7=A). 4 and 5 are
// H and L, or the halves of the active index register.
func (c *CPU) reg8(r uint8) uint8 {
	return c.reg8of(r, c.hl)
}

func (c *CPU) reg8of(r uint8, hl *Reg16) uint8 {
	switch r {
	case 0:
		return c.BC.Hi()
	case 1:
		return c.BC.Lo()
	case 2:
		return c.DE.Hi()
	case 3:
		return c.DE.Lo()
	case 4:
		return hl.Hi()
	case 5:
		return hl.Lo()
	case 7:
		return c.AF.Hi()
	}
	panic("z80: reg8 called with (HL) operand")
}

func (c *CPU) setReg8(r, v uint8) {
	c.setReg8of(r, v, c.hl)
}

func (c *CPU) setReg8of(r, v uint8, hl *Reg16) {
	switch r {
	case 0:
		c.BC.SetHi(v)
	case 1:
		c.BC.SetLo(v)
	case 2:
		c.DE.SetHi(v)
	case 3:
		c.DE.SetLo(v)
	case 4:
		hl.SetHi(v)
	case 5:
		hl.SetLo(v)
	case 7:
		c.AF.SetHi(v)
	default:
		panic("z80: setReg8 called with (HL) operand")
	}
}

// rp reads register pair p of the rp table (BC, DE, HL/IX/IY, SP).
func (c *CPU) rp(p uint8) uint16 {
	switch p {
	case 0:
		return uint16(c.BC)
	case 1:
		return uint16(c.DE)
	case 2:
		return uint16(*c.hl)
	}
	return c.SP
}

func (c *CPU) setRP(p uint8, v uint16) {
	switch p {
	case 0:
		c.BC = Reg16(v)
	case 1:
		c.DE = Reg16(v)
	case 2:
		*c.hl = Reg16(v)
	default:
		c.SP = v
	}
}

// rp2 is the PUSH/POP variant of rp with AF in place of SP.
func (c *CPU) rp2(p uint8) uint16 {
	if p == 3 {
		return uint16(c.AF)
	}
	return c.rp(p)
}

func (c *CPU) setRP2(p uint8, v uint16) {
	if p == 3 {
		c.AF = Reg16(v)
		return
	}
	c.setRP(p, v)
}

// cond evaluates condition y: NZ, Z, NC, C, PO, PE, P, M.
func (c *CPU) cond(y uint8) bool {
	var set bool
	switch y >> 1 {
	case 0:
		set = c.flag(FlagZ)
	case 1:
		set = c.flag(FlagC)
	case 2:
		set = c.flag(FlagPV)
	case 3:
		set = c.flag(FlagS)
	}
	return set == (y&1 == 1)
}

// memAddr computes the address of the (HL) operand, (IX+d) or (IY+d) under
// an index prefix, in which case the displacement is fetched and 8 T are
// charged.
func (c *CPU) memAddr() uint16 {
	if c.idx == 0 {
		return uint16(c.HL)
	}
	d := int8(c.fetch8())
	addr := uint16(*c.hl) + uint16(d)
	c.MemPtr = addr
	c.T += 8
	return addr
}
