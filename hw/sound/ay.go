package sound

import (
	"fmt"

	"speccy/emu/log"
	"speccy/hw/hwio"
)

// AY register numbers.
const (
	RegToneA    = 0 // 0-1
	RegToneB    = 2 // 2-3
	RegToneC    = 4 // 4-5
	RegNoise    = 6
	RegMixer    = 7
	RegVolA     = 8
	RegVolB     = 9
	RegVolC     = 10
	RegEnvLo    = 11
	RegEnvHi    = 12
	RegEnvShape = 13
	RegPortA    = 14
	RegPortB    = 15
	NumRegs     = 16
)

// Bits kept at zero on write: the chip only implements these widths.
var regReserved = [NumRegs]uint8{
	0x00, 0xF0, 0x00, 0xF0, 0x00, 0xF0, 0xE0, 0x00,
	0xE0, 0xE0, 0xE0, 0x00, 0x00, 0xF0, 0x00, 0x00,
}

type toneGen struct {
	count, limit int
	out          bool
}

// AY is an AY-3-8910 register file and its tone, noise and envelope
// generators. Generators advance one step per Tick, at AY clock / 8.
type AY struct {
	Regs [NumRegs]hwio.Reg8
	Sel  uint8

	tone  [3]toneGen
	noise struct {
		count, limit int
		lfsr         uint32
		out          bool
	}
	env struct {
		count, limit int
		step         int
		shape        uint8
	}
}

func newAY() *AY {
	ay := &AY{}
	for i := range ay.Regs {
		ay.Regs[i] = hwio.Reg8{
			Name:    fmt.Sprintf("R%d", i),
			RoMask:  regReserved[i],
			WriteCb: ay.regWritten(i),
		}
	}
	ay.Reset()
	return ay
}

// Reset clears the registers and the generators.
func (ay *AY) Reset() {
	for i := range ay.Regs {
		ay.Regs[i].Value = 0
	}
	ay.Regs[RegMixer].Value = 0xFF
	ay.Sel = 0
	for i := range ay.tone {
		ay.tone[i] = toneGen{limit: 1}
	}
	ay.noise.count, ay.noise.limit, ay.noise.lfsr, ay.noise.out = 0, 2, 1, false
	ay.env.count, ay.env.limit, ay.env.step, ay.env.shape = 0, 2, 0, 0
}

func (ay *AY) regWritten(n int) func(old, val uint8) {
	return func(old, val uint8) {
		switch n {
		case RegToneA, RegToneA + 1, RegToneB, RegToneB + 1, RegToneC, RegToneC + 1:
			ch := n / 2
			ay.tone[ch].limit = max(1, ay.tonePeriod(ch))
		case RegNoise:
			ay.noise.limit = 2 * max(1, int(val))
		case RegEnvLo, RegEnvHi:
			ay.env.limit = 2 * max(1, ay.envPeriod())
		case RegEnvShape:
			ay.env.shape = val
			ay.env.step = 0
			ay.env.count = 0
		}
	}
}

func (ay *AY) tonePeriod(ch int) int {
	return int(ay.Regs[2*ch+1].Value)<<8 | int(ay.Regs[2*ch].Value)
}

func (ay *AY) envPeriod() int {
	return int(ay.Regs[RegEnvHi].Value)<<8 | int(ay.Regs[RegEnvLo].Value)
}

// Write writes the selected register. Writes to registers above 15 are
// ignored.
func (ay *AY) Write(val uint8) {
	if ay.Sel >= NumRegs {
		return
	}
	ay.Regs[ay.Sel].Write8(val)
	log.ModSound.DebugZ("ay write").Hex8("reg", ay.Sel).Hex8("val", ay.Regs[ay.Sel].Value).End()
}

// Read reads the selected register.
func (ay *AY) Read() uint8 {
	if ay.Sel >= NumRegs {
		return 0xFF
	}
	return ay.Regs[ay.Sel].Read8()
}

// Registers returns a copy of the register file.
func (ay *AY) Registers() [NumRegs]uint8 {
	var r [NumRegs]uint8
	for i := range ay.Regs {
		r[i] = ay.Regs[i].Value
	}
	return r
}

// SetRegisters loads a full register file, as restoring a snapshot.
func (ay *AY) SetRegisters(r [NumRegs]uint8) {
	sel := ay.Sel
	for i := range r {
		// the shape register restarts the envelope, only write it when
		// it changes
		if i == RegEnvShape && ay.Regs[i].Value == r[i]&^regReserved[i] {
			continue
		}
		ay.Sel = uint8(i)
		ay.Write(r[i])
	}
	ay.Sel = sel
}

// Tick advances all generators by one step.
func (ay *AY) Tick() {
	for i := range ay.tone {
		t := &ay.tone[i]
		if t.count++; t.count >= t.limit {
			t.count = 0
			t.out = !t.out
		}
	}

	if ay.noise.count++; ay.noise.count >= ay.noise.limit {
		ay.noise.count = 0
		// 17-bit LFSR, taps 0 and 3
		bit := (ay.noise.lfsr ^ ay.noise.lfsr>>3) & 1
		ay.noise.lfsr = ay.noise.lfsr>>1 | bit<<16
		ay.noise.out = ay.noise.lfsr&1 != 0
	}

	if ay.env.count++; ay.env.count >= ay.env.limit {
		ay.env.count = 0
		if ay.env.step++; ay.env.step == 32 {
			if envRepeats[ay.env.shape&0x0F] {
				ay.env.step = 0
			} else {
				ay.env.step = 31
			}
		}
	}
}

// Level returns the 4-bit output level of channel ch at the current step.
func (ay *AY) Level(ch int) int {
	mixer := ay.Regs[RegMixer].Value
	toneOff := mixer&(1<<ch) != 0
	noiseOff := mixer&(8<<ch) != 0
	if !(toneOff || ay.tone[ch].out) || !(noiseOff || ay.noise.out) {
		return 0
	}
	vol := ay.Regs[RegVolA+ch].Value
	if vol&0x10 != 0 {
		return int(envShapes[ay.env.shape&0x0F][ay.env.step])
	}
	return int(vol & 0x0F)
}
