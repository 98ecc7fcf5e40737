// Package mem implements the banked address space of a Pentagon 128: four
// 16KB slots over an arena of ROM, RAM, trap overlay and null pages.
package mem

import (
	"fmt"
	"os"

	"speccy/emu/log"
	"speccy/hw/hwdefs"
)

// ROMKind identifies one of the ROM images.
type ROMKind uint8

const (
	ROM128 ROMKind = iota // 128K editor/BASIC
	ROMSOS                // 48K BASIC
	ROMDOS                // TR-DOS
	ROMSys                // service ROM
	numROMs
)

func (k ROMKind) String() string {
	switch k {
	case ROM128:
		return "128"
	case ROMSOS:
		return "sos"
	case ROMDOS:
		return "dos"
	case ROMSys:
		return "sys"
	}
	return fmt.Sprintf("ROMKind(%d)", uint8(k))
}

// PageID indexes the page arena.
type PageID uint8

const (
	PageROM0 PageID = iota // first ROM page, ROMKind order
	PageTrap        = PageROM0 + PageID(numROMs)
	PageNull        = PageTrap + 1
	PageRAM0        = PageNull + 1
	numPages        = PageRAM0 + hwdefs.NumRAM
)

// Fixed pages of slots 1 and 2.
const (
	Slot1Bank = 5
	Slot2Bank = 2
)

// Bytes of a video page holding the bitmap and attributes.
const ScreenSize = 0x1B00

// Memory is the CPU address space. Each slot has a read, a write and an
// exec page. ROM slots write into the null page. While the 48K ROM is
// paged, opcode fetches in slot 0 come from the trap overlay, a copy of the
// 48K ROM where the 0x3D00-0x3DFF row holds hwdefs.TrapOpcode.
type Memory struct {
	pages [numPages][hwdefs.PageSize]uint8

	read  [4]PageID
	write [4]PageID
	exec  [4]PageID

	rom       ROMKind
	basic     ROMKind // ROM restored when leaving the DOS ROM
	ram       uint8
	screen    PageID
	romLoaded [numROMs]bool

	videoWrite func(clk int64)
}

// New returns a memory with RAM 0 in slot 3, the 128K ROM in slot 0 and
// RAM 5 displayed. ROM pages are empty until loaded.
func New() *Memory {
	m := &Memory{}
	m.read[1], m.write[1], m.exec[1] = PageRAM0+Slot1Bank, PageRAM0+Slot1Bank, PageRAM0+Slot1Bank
	m.read[2], m.write[2], m.exec[2] = PageRAM0+Slot2Bank, PageRAM0+Slot2Bank, PageRAM0+Slot2Bank
	m.write[0] = PageNull
	m.screen = PageRAM0 + 5
	m.SelectRAMBank(0)
	m.SetROMBank(ROM128)
	return m
}

// LoadROM reads a ROM image from disk. The image must be exactly one page
// long; on error the current ROM contents are kept.
func (m *Memory) LoadROM(kind ROMKind, path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("rom %s: %w: %w", kind, hwdefs.ErrIO, err)
	}
	if err := m.SetROM(kind, buf); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// SetROM installs a ROM image.
func (m *Memory) SetROM(kind ROMKind, data []byte) error {
	if kind >= numROMs {
		return fmt.Errorf("unknown rom kind %d", kind)
	}
	if len(data) != hwdefs.PageSize {
		return fmt.Errorf("rom %s: %w: size %d, want %d", kind, hwdefs.ErrIO, len(data), hwdefs.PageSize)
	}
	copy(m.pages[PageROM0+PageID(kind)][:], data)
	m.romLoaded[kind] = true

	if kind == ROMSOS {
		trap := &m.pages[PageTrap]
		copy(trap[:], data)
		for i := 0x3D00; i < 0x3E00; i++ {
			trap[i] = hwdefs.TrapOpcode
		}
	}
	// refresh exec mapping of slot 0
	m.SetROMBank(m.rom)
	log.ModMem.InfoZ("rom loaded").Stringer("kind", kind).End()
	return nil
}

// ROMLoaded reports whether a ROM image of that kind was installed.
func (m *Memory) ROMLoaded(kind ROMKind) bool { return m.romLoaded[kind] }

// SetROMBank pages a ROM into slot 0.
func (m *Memory) SetROMBank(kind ROMKind) {
	m.rom = kind
	if kind != ROMDOS {
		m.basic = kind
	}
	page := PageROM0 + PageID(kind)
	m.read[0] = page
	m.exec[0] = page
	if kind == ROMSOS && m.romLoaded[ROMDOS] {
		m.exec[0] = PageTrap
	}
}

// ROMBank returns the ROM in slot 0.
func (m *Memory) ROMBank() ROMKind { return m.rom }

// SelectRAMBank pages RAM bank n (0-7) into slot 3.
func (m *Memory) SelectRAMBank(n uint8) {
	n &= hwdefs.NumRAM - 1
	m.ram = n
	page := PageRAM0 + PageID(n)
	m.read[3], m.write[3], m.exec[3] = page, page, page
}

// RAMBank returns the bank in slot 3.
func (m *Memory) RAMBank() uint8 { return m.ram }

// SetScreenBank selects the displayed RAM bank (5 or 7).
func (m *Memory) SetScreenBank(n uint8) {
	m.screen = PageRAM0 + PageID(n&(hwdefs.NumRAM-1))
}

// Screen returns the displayed video page.
func (m *Memory) Screen() *[hwdefs.PageSize]uint8 {
	return &m.pages[m.screen]
}

// RAMPage returns RAM bank n.
func (m *Memory) RAMPage(n uint8) *[hwdefs.PageSize]uint8 {
	return &m.pages[PageRAM0+PageID(n&(hwdefs.NumRAM-1))]
}

// OnVideoWrite registers a function called before any write landing in the
// bitmap or attributes of the displayed page, with the cycle of the write.
func (m *Memory) OnVideoWrite(fn func(clk int64)) {
	m.videoWrite = fn
}

func (m *Memory) Read8(addr uint16) uint8 {
	return m.pages[m.read[addr>>14]][addr&(hwdefs.PageSize-1)]
}

func (m *Memory) Fetch8(addr uint16) uint8 {
	return m.pages[m.exec[addr>>14]][addr&(hwdefs.PageSize-1)]
}

func (m *Memory) Write8(addr uint16, val uint8, clk int64) {
	page := m.write[addr>>14]
	off := addr & (hwdefs.PageSize - 1)
	if page == m.screen && off < ScreenSize && m.videoWrite != nil {
		m.videoWrite(clk)
	}
	m.pages[page][off] = val
}

// Trap implements the Beta Disk ROM switch. Entering 0x3Dxx with the 48K ROM
// paged selects the DOS ROM; reaching RAM with the DOS ROM paged restores the
// previous ROM. It reports whether the DOS ROM is active.
func (m *Memory) Trap(pc uint16) bool {
	if pc < 0x4000 {
		if m.rom == ROMSOS && pc>>8 == 0x3D && m.romLoaded[ROMDOS] {
			log.ModMem.DebugZ("dos rom on").Hex16("pc", pc).End()
			m.SetROMBank(ROMDOS)
			return true
		}
		return m.rom == ROMDOS
	}
	if m.rom == ROMDOS {
		log.ModMem.DebugZ("dos rom off").Hex16("pc", pc).End()
		m.SetROMBank(m.basic)
	}
	return false
}

// ReturnROM is the ROM restored when leaving the DOS ROM.
func (m *Memory) ReturnROM() ROMKind { return m.basic }

// SetReturnROM changes the ROM restored when leaving the DOS ROM, for
// paging writes happening while DOS is active.
func (m *Memory) SetReturnROM(kind ROMKind) {
	if kind != ROMDOS {
		m.basic = kind
	}
}

// ClearRAM zeroes all RAM banks.
func (m *Memory) ClearRAM() {
	for i := range hwdefs.NumRAM {
		clear(m.pages[PageRAM0+PageID(i)][:])
	}
}
