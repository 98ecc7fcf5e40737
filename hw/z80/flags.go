package z80

// Flag lookup tables. The 8-bit arithmetic tables are indexed by
// carry<<16 | a<<8 | operand and give the complete F value after the
// operation, undocumented bits 3 and 5 included.
var (
	sz53     [256]uint8 // S, Z, 5, 3 of a result
	sz53p    [256]uint8 // same plus parity
	addFlags [1 << 17]uint8
	subFlags [1 << 17]uint8
	cpFlags  [1 << 16]uint8 // bits 5 and 3 come from the operand
	incFlags [256]uint8     // indexed by result, C not included
	decFlags [256]uint8     // indexed by result, C not included

	// daaTable is indexed by a | C<<8 | H<<9 | N<<10 and holds A<<8 | F.
	daaTable [0x800]uint16
)

func init() {
	for i := range 256 {
		v := uint8(i)
		sz53[i] = v & (FlagS | Flag5 | Flag3)
		if v == 0 {
			sz53[i] |= FlagZ
		}
		p := v ^ v>>4
		p ^= p >> 2
		p ^= p >> 1
		sz53p[i] = sz53[i]
		if p&1 == 0 {
			sz53p[i] |= FlagPV
		}

		incFlags[i] = sz53[i]
		if v&0x0F == 0 {
			incFlags[i] |= FlagH
		}
		if v == 0x80 {
			incFlags[i] |= FlagPV
		}

		decFlags[i] = sz53[i] | FlagN
		if v&0x0F == 0x0F {
			decFlags[i] |= FlagH
		}
		if v == 0x7F {
			decFlags[i] |= FlagPV
		}
	}

	for carry := range 2 {
		for a := range 256 {
			for b := range 256 {
				idx := carry<<16 | a<<8 | b

				r := a + b + carry
				f := sz53[uint8(r)] | uint8(r>>8)&FlagC | uint8(a^b^r)&FlagH
				if (a^^b)&(a^r)&0x80 != 0 {
					f |= FlagPV
				}
				addFlags[idx] = f

				r = a - b - carry
				f = sz53[uint8(r)] | FlagN | uint8(a^b^r)&FlagH
				if r < 0 {
					f |= FlagC
				}
				if (a^b)&(a^r)&0x80 != 0 {
					f |= FlagPV
				}
				subFlags[idx] = f
				if carry == 0 {
					cpFlags[a<<8|b] = f&^(Flag5|Flag3) | uint8(b)&(Flag5|Flag3)
				}
			}
		}
	}

	for i := range 0x800 {
		a := uint8(i)
		c := i&0x100 != 0
		h := i&0x200 != 0
		n := i&0x400 != 0

		var diff uint8
		carry := c
		if h || a&0x0F > 9 {
			diff = 0x06
		}
		if c || a > 0x99 {
			diff |= 0x60
			carry = true
		}
		var res uint8
		var hf bool
		if n {
			res = a - diff
			hf = h && a&0x0F < 6
		} else {
			res = a + diff
			hf = a&0x0F > 9
		}
		f := sz53p[res]
		if carry {
			f |= FlagC
		}
		if hf {
			f |= FlagH
		}
		if n {
			f |= FlagN
		}
		daaTable[i] = uint16(res)<<8 | uint16(f)
	}
}

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
