// Package ula implements the video timing and paging controller.
package ula

import (
	"encoding/binary"
	"image"
	"image/color"

	"speccy/emu/log"
	"speccy/hw/hwdefs"
	"speccy/hw/hwio"
	"speccy/hw/mem"
)

// 7FFD bits.
const (
	p7ffdRAM    = 0x07
	p7ffdScreen = 0x08
	p7ffdROM    = 0x10
	p7ffdLock   = 0x20
)

// pixtab[flash][attr][bitmap] holds the palette indices of the 8 pixels of a
// cell, first pixel in the low byte.
var pixtab [2][256][256]uint64

func init() {
	for flash := range 2 {
		for attr := range 256 {
			bright := uint8(attr>>3) & 0x08
			ink := uint8(attr)&0x07 | bright
			paper := uint8(attr>>3)&0x07 | bright
			if flash == 1 && attr&0x80 != 0 {
				ink, paper = paper, ink
			}
			for bm := range 256 {
				var v uint64
				for px := range 8 {
					c := paper
					if bm&(0x80>>px) != 0 {
						c = ink
					}
					v |= uint64(c) << (8 * px)
				}
				pixtab[flash][attr][bm] = v
			}
		}
	}
}

// Palette holds the 16 colors, indices 8-15 are the bright variants.
var Palette = color.Palette{
	color.RGBA{0x00, 0x00, 0x00, 0xFF},
	color.RGBA{0x00, 0x00, 0xCD, 0xFF},
	color.RGBA{0xCD, 0x00, 0x00, 0xFF},
	color.RGBA{0xCD, 0x00, 0xCD, 0xFF},
	color.RGBA{0x00, 0xCD, 0x00, 0xFF},
	color.RGBA{0x00, 0xCD, 0xCD, 0xFF},
	color.RGBA{0xCD, 0xCD, 0x00, 0xFF},
	color.RGBA{0xCD, 0xCD, 0xCD, 0xFF},
	color.RGBA{0x00, 0x00, 0x00, 0xFF},
	color.RGBA{0x00, 0x00, 0xFF, 0xFF},
	color.RGBA{0xFF, 0x00, 0x00, 0xFF},
	color.RGBA{0xFF, 0x00, 0xFF, 0xFF},
	color.RGBA{0x00, 0xFF, 0x00, 0xFF},
	color.RGBA{0x00, 0xFF, 0xFF, 0xFF},
	color.RGBA{0xFF, 0xFF, 0x00, 0xFF},
	color.RGBA{0xFF, 0xFF, 0xFF, 0xFF},
}

// ULA renders the frame as the beam moves and owns the border and 7FFD
// paging latches. It embeds the address space it pages.
type ULA struct {
	*mem.Memory

	fb       []uint8 // Width*Height palette indices
	timeline []segment
	seg      int
	pos      int64

	Border uint8
	P7FFD  hwio.Reg8

	frames int
	flash  int // 0 or 1
}

// New returns an ULA drawing into a new frame buffer.
func New(m *mem.Memory) *ULA {
	u := &ULA{
		Memory:   m,
		fb:       make([]uint8, Width*Height),
		timeline: buildTimeline(),
	}
	u.P7FFD = hwio.Reg8{Name: "7FFD", WriteCb: u.page}
	m.OnVideoWrite(u.SyncTo)
	return u
}

// FrameBuffer returns the palette indices of the last drawn frame.
func (u *ULA) FrameBuffer() []uint8 { return u.fb }

// Reset unlocks paging and selects RAM 0, screen 5 and the given ROM.
func (u *ULA) Reset(rom mem.ROMKind) {
	u.P7FFD.Value = 0
	u.SelectRAMBank(0)
	u.SetScreenBank(5)
	u.SetROMBank(rom)
	if rom == mem.ROMSOS {
		u.P7FFD.Value = p7ffdROM
	}
	u.Border = 7
	u.seg, u.pos = 0, 0
}

// SyncTo draws the frame up to cycle clk.
func (u *ULA) SyncTo(clk int64) {
	for u.seg < len(u.timeline) {
		s := &u.timeline[u.seg]
		if clk <= s.start {
			break
		}
		from := max(u.pos, s.start)
		to := min(clk, s.end)
		if from < to {
			if s.paper {
				u.drawPaper(s, from, to)
			} else {
				u.drawBorder(s, from, to)
			}
		}
		u.pos = to
		if to < s.end {
			break
		}
		u.seg++
	}
	u.pos = max(u.pos, clk)
}

func (u *ULA) drawBorder(s *segment, from, to int64) {
	off := s.y*Width + s.x + int(from-s.start)*2
	n := int(to-from) * 2
	row := u.fb[off : off+n]
	for i := range row {
		row[i] = u.Border
	}
}

// drawPaper draws the cells starting in [from, to).
func (u *ULA) drawPaper(s *segment, from, to int64) {
	first := int(from-s.start+3) / 4
	last := int(to-s.start+3) / 4
	scr := u.Screen()
	off := s.y*Width + s.x
	for c := first; c < last; c++ {
		bm := scr[bitmapAddr(s.line, c)]
		attr := scr[attrAddr(s.line, c)]
		binary.LittleEndian.PutUint64(u.fb[off+8*c:], pixtab[u.flash][attr][bm])
	}
}

// FrameEnd completes the frame and rewinds the beam.
func (u *ULA) FrameEnd(frameT int64) {
	u.SyncTo(frameT)
	u.seg, u.pos = 0, 0
	u.frames++
	if u.frames%16 == 0 {
		u.flash ^= 1
	}
}

// FloatingBus returns what the ULA leaves on the data bus at clk: the
// attribute under the beam while inside the paper area, else 0xFF.
func (u *ULA) FloatingBus(clk int64) uint8 {
	line := int(clk / hwdefs.LineT)
	t := int(clk % hwdefs.LineT)
	if line < PaperLine || line >= PaperLine+PaperLines || t < PaperT || t >= PaperT+4*PaperCells {
		return 0xFF
	}
	return u.Screen()[attrAddr(line-PaperLine, (t-PaperT)/4)]
}

// WriteBorder sets the border color after drawing up to clk.
func (u *ULA) WriteBorder(val uint8, clk int64) {
	u.SyncTo(clk)
	u.Border = val & 0x07
}

// Write7FFD writes the paging latch. Writes are ignored once bit 5 is set,
// until the next reset.
func (u *ULA) Write7FFD(val uint8, clk int64) {
	if u.P7FFD.Value&p7ffdLock != 0 {
		return
	}
	u.SyncTo(clk)
	u.P7FFD.Write8(val)
}

func (u *ULA) page(old, val uint8) {
	u.SelectRAMBank(val & p7ffdRAM)
	if val&p7ffdScreen != 0 {
		u.SetScreenBank(7)
	} else {
		u.SetScreenBank(5)
	}
	rom := mem.ROM128
	if val&p7ffdROM != 0 {
		rom = mem.ROMSOS
	}
	if u.ROMBank() == mem.ROMDOS {
		u.SetReturnROM(rom)
	} else {
		u.SetROMBank(rom)
	}
	if old != val {
		log.ModULA.DebugZ("7FFD").Hex8("val", val).Uint("ram", uint64(val&p7ffdRAM)).End()
	}
}

// Ports returns the ULA ports: border (xxFE even ports), paging (7FFD) and
// the floating bus (xxFF).
func (u *ULA) Ports() []*hwio.Port {
	return []*hwio.Port{
		{
			Name: "border", Mask: 0x0001, Value: 0x0000,
			WriteCb: func(_ uint16, val uint8, clk int64) { u.WriteBorder(val, clk) },
		},
		{
			Name: "7FFD", Mask: 0x8002, Value: 0x0000,
			WriteCb: func(_ uint16, val uint8, clk int64) { u.Write7FFD(val, clk) },
		},
		{
			Name: "floating", Mask: 0x00FF, Value: 0x00FF,
			Enabled: func() bool { return u.ROMBank() != mem.ROMDOS },
			ReadCb:  func(_ uint16, val uint8, clk int64) uint8 { return val & u.FloatingBus(clk) },
		},
	}
}

// Screenshot returns a copy of the frame buffer.
func (u *ULA) Screenshot() *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, Width, Height), Palette)
	copy(img.Pix, u.fb)
	return img
}
