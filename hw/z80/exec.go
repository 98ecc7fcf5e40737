package z80

func (c *CPU) exec(op uint8) {
	d := &baseOps[op]
	y, z := d.y, d.z
	cycles := int64(d.cycles)

	switch d.kind {
	case opNop:
	case opExAF:
		c.AF, c.AltAF = c.AltAF, c.AF
	case opDjnz:
		off := int8(c.fetch8())
		b := c.BC.Hi() - 1
		c.BC.SetHi(b)
		if b != 0 {
			c.PC += uint16(off)
			c.MemPtr = c.PC
			cycles += int64(d.extra)
		}
	case opJr:
		off := int8(c.fetch8())
		c.PC += uint16(off)
		c.MemPtr = c.PC
	case opJrCC:
		off := int8(c.fetch8())
		if c.cond(y - 4) {
			c.PC += uint16(off)
			c.MemPtr = c.PC
			cycles += int64(d.extra)
		}
	case opLdRPnn:
		c.setRP(y>>1, c.fetch16())
	case opAddHLrp:
		hl := uint16(*c.hl)
		*c.hl = Reg16(c.add16(hl, c.rp(y>>1)))
	case opLdIndA:
		addr := uint16(c.BC)
		if y>>1 == 1 {
			addr = uint16(c.DE)
		}
		c.write8(addr, c.a())
		c.MemPtr = uint16(c.a())<<8 | (addr+1)&0xFF
	case opLdAInd:
		addr := uint16(c.BC)
		if y>>1 == 1 {
			addr = uint16(c.DE)
		}
		c.setA(c.read8(addr))
		c.MemPtr = addr + 1
	case opLdNNhl:
		addr := c.fetch16()
		c.write16(addr, uint16(*c.hl))
		c.MemPtr = addr + 1
	case opLdHLnn:
		addr := c.fetch16()
		*c.hl = Reg16(c.read16(addr))
		c.MemPtr = addr + 1
	case opLdNNa:
		addr := c.fetch16()
		c.write8(addr, c.a())
		c.MemPtr = uint16(c.a())<<8 | (addr+1)&0xFF
	case opLdAnn:
		addr := c.fetch16()
		c.setA(c.read8(addr))
		c.MemPtr = addr + 1
	case opIncRP:
		c.setRP(y>>1, c.rp(y>>1)+1)
	case opDecRP:
		c.setRP(y>>1, c.rp(y>>1)-1)
	case opIncR:
		if y == 6 {
			addr := c.memAddr()
			c.write8(addr, c.inc8(c.read8(addr)))
		} else {
			c.setReg8(y, c.inc8(c.reg8(y)))
		}
	case opDecR:
		if y == 6 {
			addr := c.memAddr()
			c.write8(addr, c.dec8(c.read8(addr)))
		} else {
			c.setReg8(y, c.dec8(c.reg8(y)))
		}
	case opLdRn:
		if y == 6 {
			addr := c.memAddr()
			if c.idx != 0 {
				// displacement and immediate overlap: 19 T instead of 23.
				c.T -= 3
			}
			c.write8(addr, c.fetch8())
		} else {
			c.setReg8(y, c.fetch8())
		}
	case opRotA:
		c.rotA(y)
	case opDaa:
		i := uint16(c.a()) | uint16(c.f()&FlagC)<<8 | uint16(c.f()&FlagH)<<5 | uint16(c.f()&FlagN)<<9
		c.AF = Reg16(daaTable[i])
	case opCpl:
		a := c.a() ^ 0xFF
		c.setA(a)
		c.setF(c.f()&(FlagS|FlagZ|FlagPV|FlagC) | a&(Flag5|Flag3) | FlagH | FlagN)
	case opScf:
		c.setF(c.f()&(FlagS|FlagZ|FlagPV) | c.a()&(Flag5|Flag3) | FlagC)
	case opCcf:
		f := c.f()
		nf := f&(FlagS|FlagZ|FlagPV) | c.a()&(Flag5|Flag3) | (f&FlagC)<<4 | ^f&FlagC
		c.setF(nf)
	case opHalt:
		c.Halted = true
		c.PC--
	case opLdRR:
		switch {
		case y == 6:
			// LD (HL),r: r is never an index half.
			addr := c.memAddr()
			c.write8(addr, c.reg8of(z, &c.HL))
		case z == 6:
			addr := c.memAddr()
			c.setReg8of(y, c.read8(addr), &c.HL)
		default:
			c.setReg8(y, c.reg8(z))
		}
	case opAluR:
		var v uint8
		if z == 6 {
			v = c.read8(c.memAddr())
		} else {
			v = c.reg8(z)
		}
		c.alu(y, v)
	case opAluN:
		c.alu(y, c.fetch8())
	case opRetCC:
		if c.cond(y) {
			c.PC = c.pop()
			c.MemPtr = c.PC
			cycles += int64(d.extra)
		}
	case opPop:
		c.setRP2(y>>1, c.pop())
	case opRet:
		c.PC = c.pop()
		c.MemPtr = c.PC
	case opExx:
		c.BC, c.AltBC = c.AltBC, c.BC
		c.DE, c.AltDE = c.AltDE, c.DE
		c.HL, c.AltHL = c.AltHL, c.HL
	case opJpHL:
		c.PC = uint16(*c.hl)
	case opLdSPHL:
		c.SP = uint16(*c.hl)
	case opJpCC:
		addr := c.fetch16()
		c.MemPtr = addr
		if c.cond(y) {
			c.PC = addr
		}
	case opJp:
		addr := c.fetch16()
		c.MemPtr = addr
		c.PC = addr
	case opOutNA:
		n := c.fetch8()
		a := c.a()
		c.out(uint16(a)<<8|uint16(n), a, 7)
		c.MemPtr = uint16(a)<<8 | uint16(n+1)
	case opInAN:
		n := c.fetch8()
		port := uint16(c.a())<<8 | uint16(n)
		c.setA(c.in(port, 7))
		c.MemPtr = port + 1
	case opExSPHL:
		v := c.read16(c.SP)
		c.write16(c.SP, uint16(*c.hl))
		*c.hl = Reg16(v)
		c.MemPtr = v
	case opExDEHL:
		c.DE, c.HL = c.HL, c.DE
	case opDi:
		c.IFF1, c.IFF2 = false, false
	case opEi:
		c.IFF1, c.IFF2 = true, true
		c.eiShadow = true
	case opCallCC:
		addr := c.fetch16()
		c.MemPtr = addr
		if c.cond(y) {
			c.push(c.PC)
			c.PC = addr
			cycles += int64(d.extra)
		}
	case opPush:
		c.push(c.rp2(y >> 1))
	case opCall:
		addr := c.fetch16()
		c.MemPtr = addr
		c.push(c.PC)
		c.PC = addr
	case opRst:
		c.push(c.PC)
		c.PC = uint16(y) * 8
		c.MemPtr = c.PC
	case opPrefixCB:
		if c.idx != 0 {
			c.execIndexCB()
		} else {
			c.execCB(c.fetchOp())
		}
	case opPrefixDD, opPrefixFD:
		c.T += 4
		if d.kind == opPrefixDD {
			c.idx, c.hl = 1, &c.IX
		} else {
			c.idx, c.hl = 2, &c.IY
		}
		c.exec(c.fetchOp())
	case opPrefixED:
		// ED cancels any index prefix.
		c.idx, c.hl = 0, &c.HL
		c.execED(c.fetchOp())
	}

	c.T += cycles
}

func (c *CPU) execCB(op uint8) {
	d := &cbOps[op]
	y, z := d.y, d.z

	if z == 6 {
		addr := uint16(c.HL)
		v := c.read8(addr)
		if d.kind == opBit {
			c.bit(y, v, uint8(c.MemPtr>>8))
		} else {
			c.write8(addr, c.cbOp(d.kind, y, v))
		}
	} else {
		v := c.reg8of(z, &c.HL)
		if d.kind == opBit {
			c.bit(y, v, v)
		} else {
			c.setReg8of(z, c.cbOp(d.kind, y, v), &c.HL)
		}
	}
	c.T += int64(d.cycles)
}

// execIndexCB runs DD CB d op / FD CB d op. The operand is always (IX+d);
// for register encodings the result is also copied to that register.
func (c *CPU) execIndexCB() {
	disp := int8(c.fetch8())
	d := &cbOps[c.fetch8()]

	addr := uint16(*c.hl) + uint16(disp)
	c.MemPtr = addr
	v := c.read8(addr)
	if d.kind == opBit {
		c.bit(d.y, v, uint8(addr>>8))
		c.T += 16
		return
	}
	r := c.cbOp(d.kind, d.y, v)
	c.write8(addr, r)
	if d.z != 6 {
		c.setReg8of(d.z, r, &c.HL)
	}
	c.T += 19
}

func (c *CPU) cbOp(kind opKind, y, v uint8) uint8 {
	switch kind {
	case opRot:
		return c.rot(y, v)
	case opRes:
		return v &^ (1 << y)
	case opSet:
		return v | 1<<y
	}
	panic("z80: unexpected CB operation")
}

func (c *CPU) execED(op uint8) {
	d := &edOps[op]
	y, z := d.y, d.z
	cycles := int64(d.cycles)

	switch d.kind {
	case opNopED:
	case opInRC:
		port := uint16(c.BC)
		v := c.in(port, 8)
		if y != 6 {
			c.setReg8(y, v)
		}
		c.setF(c.carry() | sz53p[v])
		c.MemPtr = port + 1
	case opOutCR:
		port := uint16(c.BC)
		var v uint8
		if y != 6 {
			v = c.reg8(y)
		}
		c.out(port, v, 8)
		c.MemPtr = port + 1
	case opSbcHL:
		c.HL = Reg16(c.sbc16(uint16(c.HL), c.rp(y>>1)))
	case opAdcHL:
		c.HL = Reg16(c.adc16(uint16(c.HL), c.rp(y>>1)))
	case opLdNNrp:
		addr := c.fetch16()
		c.write16(addr, c.rp(y>>1))
		c.MemPtr = addr + 1
	case opLdRPnnInd:
		addr := c.fetch16()
		c.setRP(y>>1, c.read16(addr))
		c.MemPtr = addr + 1
	case opNeg:
		a := c.a()
		c.setA(-a)
		c.setF(subFlags[uint32(a)])
	case opRetn:
		c.IFF1 = c.IFF2
		c.PC = c.pop()
		c.MemPtr = c.PC
	case opIm:
		c.IM = imModes[y]
	case opLdIA:
		c.I = c.a()
	case opLdRA:
		c.SetRefreshR(c.a())
	case opLdAI:
		c.ldAIR(c.I)
	case opLdAR:
		c.ldAIR(c.RefreshR())
	case opRrd:
		addr := uint16(c.HL)
		v, a := c.read8(addr), c.a()
		c.write8(addr, a<<4|v>>4)
		a = a&0xF0 | v&0x0F
		c.setA(a)
		c.setF(c.carry() | sz53p[a])
		c.MemPtr = addr + 1
	case opRld:
		addr := uint16(c.HL)
		v, a := c.read8(addr), c.a()
		c.write8(addr, v<<4|a&0x0F)
		a = a&0xF0 | v>>4
		c.setA(a)
		c.setF(c.carry() | sz53p[a])
		c.MemPtr = addr + 1
	case opBlock:
		if c.block(y, z) {
			c.PC -= 2
			c.MemPtr = c.PC + 1
			cycles += int64(d.extra)
		}
	}

	c.T += cycles
}

func (c *CPU) ldAIR(v uint8) {
	c.setA(v)
	f := c.carry() | sz53[v]
	if c.IFF2 {
		f |= FlagPV
	}
	c.setF(f)
}

// block executes one iteration of LDI/CPI/INI/OUTI and their decrementing
// and repeating forms. It reports whether the instruction must repeat.
func (c *CPU) block(y, z uint8) bool {
	inc := uint16(1)
	if y&1 == 1 {
		inc = 0xFFFF
	}
	repeat := y >= 6

	switch z {
	case 0: // LDI
		v := c.read8(uint16(c.HL))
		c.write8(uint16(c.DE), v)
		c.HL += Reg16(inc)
		c.DE += Reg16(inc)
		c.BC--
		n := v + c.a()
		f := c.f()&(FlagS|FlagZ|FlagC) | n&Flag3 | n<<4&Flag5
		if c.BC != 0 {
			f |= FlagPV
		}
		c.setF(f)
		return repeat && c.BC != 0

	case 1: // CPI
		a := c.a()
		v := c.read8(uint16(c.HL))
		r := a - v
		hf := (a ^ v ^ r) & FlagH
		c.HL += Reg16(inc)
		c.BC--
		c.MemPtr += inc
		n := r
		if hf != 0 {
			n--
		}
		f := c.carry() | FlagN | sz53[r]&(FlagS|FlagZ) | hf | n&Flag3 | n<<4&Flag5
		if c.BC != 0 {
			f |= FlagPV
		}
		c.setF(f)
		return repeat && c.BC != 0 && r != 0

	case 2: // INI
		v := c.in(uint16(c.BC), 9)
		c.MemPtr = uint16(c.BC) + inc
		c.write8(uint16(c.HL), v)
		b := c.BC.Hi() - 1
		c.BC.SetHi(b)
		c.HL += Reg16(inc)
		k := uint16(v) + uint16(c.BC.Lo()+uint8(inc))
		c.ioBlockFlags(v, b, k)
		return repeat && b != 0

	default: // OUTI
		v := c.read8(uint16(c.HL))
		b := c.BC.Hi() - 1
		c.BC.SetHi(b)
		c.MemPtr = uint16(c.BC) + inc
		c.out(uint16(c.BC), v, 12)
		c.HL += Reg16(inc)
		k := uint16(v) + uint16(c.HL.Lo())
		c.ioBlockFlags(v, b, k)
		return repeat && b != 0
	}
}

func (c *CPU) ioBlockFlags(v, b uint8, k uint16) {
	f := sz53[b]
	if v&0x80 != 0 {
		f |= FlagN
	}
	if k > 0xFF {
		f |= FlagH | FlagC
	}
	f |= sz53p[uint8(k)&7^b] & FlagPV
	c.setF(f)
}

func (c *CPU) alu(op, v uint8) {
	a := c.a()
	switch op {
	case 0: // ADD
		i := uint32(a)<<8 | uint32(v)
		c.setA(a + v)
		c.setF(addFlags[i])
	case 1: // ADC
		cf := c.carry()
		i := uint32(cf)<<16 | uint32(a)<<8 | uint32(v)
		c.setA(a + v + cf)
		c.setF(addFlags[i])
	case 2: // SUB
		i := uint32(a)<<8 | uint32(v)
		c.setA(a - v)
		c.setF(subFlags[i])
	case 3: // SBC
		cf := c.carry()
		i := uint32(cf)<<16 | uint32(a)<<8 | uint32(v)
		c.setA(a - v - cf)
		c.setF(subFlags[i])
	case 4: // AND
		a &= v
		c.setA(a)
		c.setF(sz53p[a] | FlagH)
	case 5: // XOR
		a ^= v
		c.setA(a)
		c.setF(sz53p[a])
	case 6: // OR
		a |= v
		c.setA(a)
		c.setF(sz53p[a])
	case 7: // CP
		c.setF(cpFlags[uint16(a)<<8|uint16(v)])
	}
}

func (c *CPU) inc8(v uint8) uint8 {
	v++
	c.setF(c.carry() | incFlags[v])
	return v
}

func (c *CPU) dec8(v uint8) uint8 {
	v--
	c.setF(c.carry() | decFlags[v])
	return v
}

// rotA implements RLCA, RRCA, RLA and RRA which, unlike their CB
// counterparts, keep S, Z and P/V.
func (c *CPU) rotA(y uint8) {
	a, f := c.a(), c.f()
	var cf uint8
	switch y {
	case 0:
		cf = a >> 7
		a = a<<1 | cf
	case 1:
		cf = a & 1
		a = a>>1 | cf<<7
	case 2:
		cf = a >> 7
		a = a<<1 | f&FlagC
	case 3:
		cf = a & 1
		a = a>>1 | (f&FlagC)<<7
	}
	c.setA(a)
	c.setF(f&(FlagS|FlagZ|FlagPV) | a&(Flag5|Flag3) | cf)
}

// rot implements the CB rotate/shift group: RLC RRC RL RR SLA SRA SLL SRL.
func (c *CPU) rot(y, v uint8) uint8 {
	var r, cf uint8
	switch y {
	case 0:
		cf = v >> 7
		r = v<<1 | cf
	case 1:
		cf = v & 1
		r = v>>1 | cf<<7
	case 2:
		cf = v >> 7
		r = v<<1 | c.carry()
	case 3:
		cf = v & 1
		r = v>>1 | c.carry()<<7
	case 4:
		cf = v >> 7
		r = v << 1
	case 5:
		cf = v & 1
		r = v>>1 | v&0x80
	case 6:
		cf = v >> 7
		r = v<<1 | 1
	case 7:
		cf = v & 1
		r = v >> 1
	}
	c.setF(sz53p[r] | cf)
	return r
}

// bit sets flags for BIT y,v. Bits 5 and 3 come from xy, which depends on
// the addressing mode.
func (c *CPU) bit(y, v, xy uint8) {
	r := v & (1 << y)
	f := c.carry() | FlagH | xy&(Flag5|Flag3) | r&FlagS
	if r == 0 {
		f |= FlagZ | FlagPV
	}
	c.setF(f)
}

func (c *CPU) add16(a, b uint16) uint16 {
	r := uint32(a) + uint32(b)
	c.MemPtr = a + 1
	f := c.f()&(FlagS|FlagZ|FlagPV) | uint8(r>>8)&(Flag5|Flag3) | uint8(r>>16)&FlagC |
		uint8((uint32(a)^uint32(b)^r)>>8)&FlagH
	c.setF(f)
	return uint16(r)
}

func (c *CPU) adc16(a, b uint16) uint16 {
	r := uint32(a) + uint32(b) + uint32(c.carry())
	c.MemPtr = a + 1
	f := uint8(r>>16)&FlagC | uint8(r>>8)&(FlagS|Flag5|Flag3) | uint8((uint32(a)^uint32(b)^r)>>8)&FlagH
	if uint16(r) == 0 {
		f |= FlagZ
	}
	if (a^^b)&(a^uint16(r))&0x8000 != 0 {
		f |= FlagPV
	}
	c.setF(f)
	return uint16(r)
}

func (c *CPU) sbc16(a, b uint16) uint16 {
	r := uint32(a) - uint32(b) - uint32(c.carry())
	c.MemPtr = a + 1
	f := FlagN | uint8(r>>16)&FlagC | uint8(r>>8)&(FlagS|Flag5|Flag3) | uint8((uint32(a)^uint32(b)^r)>>8)&FlagH
	if uint16(r) == 0 {
		f |= FlagZ
	}
	if (a^b)&(a^uint16(r))&0x8000 != 0 {
		f |= FlagPV
	}
	c.setF(f)
	return uint16(r)
}
