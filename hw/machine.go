// Package hw assembles the Pentagon 128 machine from its devices.
package hw

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"speccy/emu/log"
	"speccy/hw/fdc"
	"speccy/hw/hwdefs"
	"speccy/hw/hwio"
	"speccy/hw/mem"
	"speccy/hw/snapshot"
	"speccy/hw/sound"
	"speccy/hw/tape"
	"speccy/hw/ula"
	"speccy/hw/z80"
)

// ROMPaths locates the ROM images. Empty paths leave the bank empty.
type ROMPaths struct {
	ROM128 string
	ROM48  string
	DOS    string
	Sys    string
}

// Config is the machine configuration.
type Config struct {
	ROMs         ROMPaths
	Sound        sound.Config
	BootToDOS    bool // reset into the TR-DOS ROM
	TapeAutoPlay bool // start the tape when it is loaded
}

// Machine is a Pentagon 128 with a Beta Disk interface.
type Machine struct {
	cfg Config

	Mem   *mem.Memory
	ULA   *ula.ULA
	CPU   *z80.CPU
	FDC   *fdc.WD1793
	Sound *sound.Synth
	Tape  *tape.Deck
	Keys  *Keyboard
	Bus   *hwio.PortBus

	Frames int64
}

// New builds a machine and loads the ROMs named in cfg.
func New(cfg Config) (*Machine, error) {
	m := &Machine{cfg: cfg, Mem: mem.New()}
	for _, r := range []struct {
		kind mem.ROMKind
		path string
	}{
		{mem.ROM128, cfg.ROMs.ROM128},
		{mem.ROMSOS, cfg.ROMs.ROM48},
		{mem.ROMDOS, cfg.ROMs.DOS},
		{mem.ROMSys, cfg.ROMs.Sys},
	} {
		if r.path == "" {
			log.ModEmu.WarnZ("no rom image").Stringer("kind", r.kind).End()
			continue
		}
		if err := m.Mem.LoadROM(r.kind, r.path); err != nil {
			return nil, err
		}
	}
	m.wire()
	m.Reset(hwdefs.HardReset)
	return m, nil
}

func (m *Machine) wire() {
	m.ULA = ula.New(m.Mem)
	m.FDC = fdc.New()
	m.Sound = sound.New(m.cfg.Sound)
	m.Tape = tape.New()
	m.Tape.OnEdge = m.Sound.SetTapeIn
	m.Keys = NewKeyboard()

	m.Bus = hwio.NewPortBus("io")
	dos := func() bool { return m.Mem.ROMBank() == mem.ROMDOS }
	for _, ports := range [][]*hwio.Port{
		m.FDC.Ports(dos),
		m.ULA.Ports(),
		m.Sound.Ports(),
		m.Tape.Ports(),
		m.Keys.Ports(),
	} {
		for _, p := range ports {
			m.Bus.Map(p)
		}
	}
	m.CPU = z80.New(m.ULA, m.Bus)
}

// bootROM returns the ROM paged at reset.
func (m *Machine) bootROM() mem.ROMKind {
	if m.Mem.ROMLoaded(mem.ROM128) {
		return mem.ROM128
	}
	return mem.ROMSOS
}

// Reset resets the machine. A hard reset also clears the RAM and
// reinitializes every device; inserted media are kept.
func (m *Machine) Reset(soft bool) {
	if !soft {
		m.Mem.ClearRAM()
		m.FDC.Reset()
		m.Tape.Rewind()
		m.Keys.Reset()
	}
	m.Sound.Reset()
	m.CPU.Reset()
	m.CPU.T = 0

	if m.cfg.BootToDOS && m.Mem.ROMLoaded(mem.ROMDOS) {
		m.ULA.Reset(mem.ROMSOS)
		m.Mem.SetROMBank(mem.ROMDOS)
		m.CPU.SetInTrap(true)
	} else {
		m.ULA.Reset(m.bootROM())
	}
	log.ModEmu.InfoZ("reset").
		Bool("soft", soft).
		Stringer("rom", m.Mem.ROMBank()).
		End()
}

// StepFrame runs one frame: the CPU runs for FrameT cycles and takes the
// frame interrupt, then every device completes the frame. The cycles the
// CPU ran past the frame end carry into the next one.
func (m *Machine) StepFrame() {
	m.CPU.RunFrame(hwdefs.FrameT)

	m.ULA.FrameEnd(hwdefs.FrameT)
	m.FDC.FrameEnd(hwdefs.FrameT)
	// tape edges feed the sound input: the deck ends its frame first
	m.Tape.FrameEnd(hwdefs.FrameT)
	m.Sound.FrameEnd(hwdefs.FrameT)

	m.CPU.T -= hwdefs.FrameT
	m.Frames++
}

// Screenshot returns the last frame.
func (m *Machine) Screenshot() *image.Paletted { return m.ULA.Screenshot() }

// Snapshot captures the machine state.
func (m *Machine) Snapshot() *snapshot.State {
	s := snapshot.NewState(snapshot.Model128K)
	s.Regs = m.CPU.Regs
	s.Regs.Halted = false
	s.P7FFD = m.ULA.P7FFD.Value
	s.Border = m.ULA.Border
	s.AYSel = m.Sound.Sel
	s.AY = m.Sound.Registers()
	for n := range hwdefs.NumRAM {
		copy(s.RAM[n], m.Mem.RAMPage(uint8(n))[:])
	}
	return s
}

// LoadState restores a snapshot. RAM pages absent from s are cleared.
func (m *Machine) LoadState(s *snapshot.State) {
	m.Mem.ClearRAM()
	for n, page := range s.RAM {
		if page != nil {
			copy(m.Mem.RAMPage(uint8(n))[:], page)
		}
	}
	m.ULA.Reset(mem.ROM128)
	m.ULA.Write7FFD(s.P7FFD, 0)
	m.ULA.Border = s.Border & 7
	m.CPU.Regs = s.Regs
	m.CPU.SetInTrap(false)
	m.Sound.Reset()
	m.Sound.SetRegisters(s.AY)
	m.Sound.Sel = s.AYSel
	log.ModEmu.InfoZ("snapshot loaded").
		Stringer("model", s.Model).
		Hex16("pc", s.Regs.PC).
		Hex8("7ffd", s.P7FFD).
		End()
}

func mediaExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// LoadMedia loads a disk image into drive A, a tape or a snapshot, chosen
// by extension. On error the current media are kept.
func (m *Machine) LoadMedia(path string) error {
	switch mediaExt(path) {
	case ".trd", ".scl":
		return m.FDC.LoadImage(0, path)
	case ".tap", ".wav", ".mp3":
		t, err := tape.LoadFile(path)
		if err != nil {
			return err
		}
		m.Tape.Insert(t)
		if m.cfg.TapeAutoPlay {
			m.Tape.Play()
		}
		return nil
	case ".z80":
		s, err := snapshot.LoadFile(path)
		if err != nil {
			return err
		}
		m.LoadState(s)
		return nil
	}
	return fmt.Errorf("%s: %w: unknown media type", path, hwdefs.ErrFormat)
}

// SaveMedia saves the disk in drive A, the tape or a snapshot, chosen by
// extension.
func (m *Machine) SaveMedia(path string) error {
	switch mediaExt(path) {
	case ".trd", ".scl":
		return m.FDC.SaveImage(0, path)
	case ".tap":
		t := m.Tape.Tape()
		if t == nil || t.IsPCM() {
			return fmt.Errorf("%s: %w: no tape data", path, hwdefs.ErrMediaAbsent)
		}
		return writeFile(path, t.TAP())
	case ".z80":
		return snapshot.SaveFile(m.Snapshot(), path)
	}
	return fmt.Errorf("%s: %w: unknown media type", path, hwdefs.ErrFormat)
}

func writeFile(path string, buf []byte) error {
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("%w: %w", hwdefs.ErrIO, err)
	}
	return nil
}
