package mem

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"speccy/hw/hwdefs"
)

func romImage(fill uint8) []byte {
	return bytes.Repeat([]byte{fill}, hwdefs.PageSize)
}

func TestBankIsolation(t *testing.T) {
	m := New()

	// Tag every bank through slot 3.
	for n := range uint8(hwdefs.NumRAM) {
		m.SelectRAMBank(n)
		m.Write8(0xC000, 0xA0+n, 0)
		m.Write8(0xFFFF, 0xB0+n, 0)
	}

	for n := range uint8(hwdefs.NumRAM) {
		m.SelectRAMBank(n)
		if got := m.Read8(0xC000); got != 0xA0+n {
			t.Errorf("bank %d: [C000] = %02x, want %02x", n, got, 0xA0+n)
		}
		if got := m.Read8(0xFFFF); got != 0xB0+n {
			t.Errorf("bank %d: [FFFF] = %02x, want %02x", n, got, 0xB0+n)
		}
	}

	// Slots 1 and 2 alias the fixed banks 5 and 2.
	if got := m.Read8(0x4000); got != 0xA0+Slot1Bank {
		t.Errorf("[4000] = %02x, want bank %d content", got, Slot1Bank)
	}
	if got := m.Read8(0x8000); got != 0xA0+Slot2Bank {
		t.Errorf("[8000] = %02x, want bank %d content", got, Slot2Bank)
	}
	if got := m.RAMPage(3)[0]; got != 0xA3 {
		t.Errorf("RAMPage(3)[0] = %02x, want a3", got)
	}
}

func TestROMWritesDiscarded(t *testing.T) {
	m := New()
	if err := m.SetROM(ROM128, romImage(0x11)); err != nil {
		t.Fatal(err)
	}
	m.Write8(0x0000, 0x99, 0)
	m.Write8(0x3FFF, 0x99, 0)
	if got := m.Read8(0x0000); got != 0x11 {
		t.Errorf("[0000] = %02x after write to ROM", got)
	}
	if got := m.Read8(0x3FFF); got != 0x11 {
		t.Errorf("[3FFF] = %02x after write to ROM", got)
	}
}

func TestLoadROMSize(t *testing.T) {
	m := New()
	if err := m.SetROM(ROMSOS, romImage(0x22)); err != nil {
		t.Fatal(err)
	}
	m.SetROMBank(ROMSOS)

	dir := t.TempDir()
	short := filepath.Join(dir, "short.rom")
	if err := os.WriteFile(short, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}

	err := m.LoadROM(ROMSOS, short)
	if !errors.Is(err, hwdefs.ErrIO) {
		t.Fatalf("LoadROM(short) = %v, want ErrIO", err)
	}
	if got := m.Read8(0x1234); got != 0x22 {
		t.Errorf("ROM corrupted by a failed load: %02x", got)
	}

	err = m.LoadROM(ROMSOS, filepath.Join(dir, "missing.rom"))
	if !errors.Is(err, hwdefs.ErrIO) {
		t.Fatalf("LoadROM(missing) = %v, want ErrIO", err)
	}

	good := filepath.Join(dir, "good.rom")
	if err := os.WriteFile(good, romImage(0x33), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.LoadROM(ROMSOS, good); err != nil {
		t.Fatal(err)
	}
	if got := m.Read8(0x1234); got != 0x33 {
		t.Errorf("[1234] = %02x, want 33", got)
	}
}

func TestTrap(t *testing.T) {
	m := New()
	m.SetROM(ROMSOS, romImage(0x00))
	m.SetROM(ROMDOS, romImage(0xD0))
	m.SetROM(ROM128, romImage(0x12))

	m.SetROMBank(ROM128)
	if got := m.Fetch8(0x3D00); got != 0x12 {
		t.Errorf("128 rom fetch at 3D00 = %02x, want no overlay", got)
	}
	if m.Trap(0x3D00) {
		t.Errorf("trap taken with the 128K ROM paged")
	}

	m.SetROMBank(ROMSOS)
	if got := m.Fetch8(0x3D13); got != hwdefs.TrapOpcode {
		t.Errorf("sos fetch at 3D13 = %02x, want trap opcode", got)
	}
	if got := m.Read8(0x3D13); got != 0x00 {
		t.Errorf("sos read at 3D13 = %02x, want rom content", got)
	}
	if got := m.Fetch8(0x3C00); got != 0x00 {
		t.Errorf("sos fetch at 3C00 = %02x, want rom content", got)
	}

	if !m.Trap(0x3D13) {
		t.Fatalf("trap not taken at 3D13")
	}
	if m.ROMBank() != ROMDOS || m.Fetch8(0x3D13) != 0xD0 {
		t.Fatalf("DOS ROM not paged after trap")
	}
	if !m.Trap(0x0100) {
		t.Errorf("DOS ROM left while executing ROM code")
	}
	if m.Trap(0x5CC2) {
		t.Errorf("DOS ROM still active in RAM")
	}
	if m.ROMBank() != ROMSOS {
		t.Errorf("ROM after leaving DOS = %s, want sos", m.ROMBank())
	}
}

func TestTrapWithoutDOS(t *testing.T) {
	m := New()
	m.SetROM(ROMSOS, romImage(0x00))
	m.SetROMBank(ROMSOS)
	if got := m.Fetch8(0x3D00); got != 0x00 {
		t.Errorf("overlay active without a DOS ROM: %02x", got)
	}
}

func TestVideoWriteHook(t *testing.T) {
	m := New()
	var calls []int64
	m.OnVideoWrite(func(clk int64) { calls = append(calls, clk) })

	m.Write8(0x4000, 1, 10) // bitmap of bank 5
	m.Write8(0x5AFF, 1, 20) // last attribute
	m.Write8(0x5B00, 1, 30) // past the screen
	m.Write8(0x8000, 1, 40) // bank 2
	m.SelectRAMBank(7)
	m.Write8(0xC000, 1, 50) // bank 7, not displayed
	m.SetScreenBank(7)
	m.Write8(0xC001, 1, 60)

	want := []int64{10, 20, 60}
	if len(calls) != len(want) {
		t.Fatalf("hook calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("hook calls = %v, want %v", calls, want)
		}
	}
	if m.Screen()[1] != 1 {
		t.Errorf("screen page is not bank 7")
	}
}
