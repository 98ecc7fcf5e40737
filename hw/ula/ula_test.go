package ula

import (
	"testing"

	"speccy/hw/hwdefs"
	"speccy/hw/mem"
)

func newULA(t *testing.T) *ULA {
	t.Helper()
	m := mem.New()
	u := New(m)
	u.Reset(mem.ROM128)
	return u
}

func TestScreenAddresses(t *testing.T) {
	tests := []struct {
		y, c int
		want int
	}{
		{0, 0, 0x0000},
		{1, 0, 0x0100},
		{7, 0, 0x0700},
		{8, 0, 0x0020},
		{63, 31, 0x07FF},
		{64, 0, 0x0800},
		{191, 31, 0x17FF},
	}
	for _, tt := range tests {
		if got := bitmapAddr(tt.y, tt.c); got != tt.want {
			t.Errorf("bitmapAddr(%d,%d) = %04x, want %04x", tt.y, tt.c, got, tt.want)
		}
	}
	if got := attrAddr(191, 31); got != 0x1AFF {
		t.Errorf("attrAddr(191,31) = %04x, want 1aff", got)
	}
	if got := attrAddr(9, 2); got != 0x1822 {
		t.Errorf("attrAddr(9,2) = %04x, want 1822", got)
	}
}

func TestTimelineGeometry(t *testing.T) {
	tl := buildTimeline()
	if got, want := len(tl), (Height-PaperLines)+3*PaperLines; got != want {
		t.Fatalf("segments = %d, want %d", got, want)
	}
	for _, s := range tl {
		if s.paper && (s.x != 2*BorderT || s.end-s.start != 4*PaperCells) {
			t.Fatalf("bad paper segment %+v", s)
		}
	}
	if Width != 320 || Height != 240 {
		t.Fatalf("frame buffer %dx%d, want 320x240", Width, Height)
	}
}

func TestBorderChangeMidLine(t *testing.T) {
	u := newULA(t)

	// border 7 until line 60, T 100, then 2
	line := 60
	u.WriteBorder(2, int64(line*hwdefs.LineT+100))
	u.FrameEnd(hwdefs.FrameT)

	y := line - FirstLine
	x := 2 * (100 - (PaperT - BorderT))
	fb := u.FrameBuffer()
	if got := fb[y*Width+x-1]; got != 7 {
		t.Errorf("pixel before the change = %d, want 7", got)
	}
	if got := fb[y*Width+x]; got != 2 {
		t.Errorf("pixel at the change = %d, want 2", got)
	}
	if got := fb[(y-1)*Width+Width-1]; got != 7 {
		t.Errorf("previous line = %d, want 7", got)
	}
	if got := fb[(Height-1)*Width]; got != 2 {
		t.Errorf("last line = %d, want 2", got)
	}
}

func TestPaper(t *testing.T) {
	u := newULA(t)
	scr := u.Screen()

	// line 0: cell 0 all ink, bright blue ink on red paper
	scr[bitmapAddr(0, 0)] = 0xF0
	scr[attrAddr(0, 0)] = 0x40 | 2<<3 | 1
	// line 9 cell 3: flashing, ink white paper black
	scr[bitmapAddr(9, 3)] = 0x80
	scr[attrAddr(9, 3)] = 0x80 | 7

	u.FrameEnd(hwdefs.FrameT)
	fb := u.FrameBuffer()

	row := BorderLines * Width
	px := fb[row+2*BorderT : row+2*BorderT+8]
	want := []uint8{9, 9, 9, 9, 10, 10, 10, 10}
	for i := range want {
		if px[i] != want[i] {
			t.Fatalf("cell 0 = %v, want %v", px, want)
		}
	}

	row = (BorderLines + 9) * Width
	cell := fb[row+2*BorderT+24 : row+2*BorderT+32]
	if cell[0] != 7 || cell[1] != 0 {
		t.Fatalf("flash cell before flip = %v", cell)
	}

	// the phase flips every 16 frames, the next frame shows it
	for range 16 {
		u.FrameEnd(hwdefs.FrameT)
	}
	if cell[0] != 0 || cell[1] != 7 {
		t.Fatalf("flash cell after the flip = %v", cell)
	}
}

func TestVideoWriteSyncsBeam(t *testing.T) {
	u := newULA(t)
	scr := u.Screen()
	scr[attrAddr(0, 0)] = 0x38 // white paper

	// Draw the first paper line, then change it: the change must only show
	// up on the next frame.
	clk := int64((PaperLine+1)*hwdefs.LineT + 0)
	u.Write8(0x4000+uint16(attrAddr(0, 0)), 0x10, clk) // red paper
	u.FrameEnd(hwdefs.FrameT)

	fb := u.FrameBuffer()
	off := BorderLines*Width + 2*BorderT
	if got := fb[off]; got != 7 {
		t.Errorf("pixel = %d, want 7 (old attribute)", got)
	}
	// line 1 of the same attribute row was drawn after the write
	if got := fb[off+Width]; got != 2 {
		t.Errorf("pixel = %d, want 2 (new attribute)", got)
	}
}

func Test7FFD(t *testing.T) {
	u := newULA(t)

	u.Write7FFD(0x03|p7ffdScreen|p7ffdROM, 0)
	if got := u.RAMBank(); got != 3 {
		t.Errorf("ram bank = %d, want 3", got)
	}
	if got := u.ROMBank(); got != mem.ROMSOS {
		t.Errorf("rom = %s, want sos", got)
	}
	u.RAMPage(7)[0] = 0x77
	if got := u.Screen()[0]; got != 0x77 {
		t.Errorf("screen is not bank 7")
	}

	u.Write7FFD(0x01|p7ffdLock, 0)
	if got := u.RAMBank(); got != 1 {
		t.Errorf("ram bank = %d, want 1", got)
	}
	u.Write7FFD(0x06, 0)
	if got := u.RAMBank(); got != 1 {
		t.Errorf("write accepted while locked: bank %d", got)
	}

	u.Reset(mem.ROM128)
	u.Write7FFD(0x06, 0)
	if got := u.RAMBank(); got != 6 {
		t.Errorf("lock survived reset: bank %d", got)
	}
}

func TestFloatingBus(t *testing.T) {
	u := newULA(t)
	u.Screen()[attrAddr(8, 5)] = 0x5A

	clk := int64((PaperLine+8)*hwdefs.LineT + PaperT + 4*5 + 1)
	if got := u.FloatingBus(clk); got != 0x5A {
		t.Errorf("floating bus in paper = %02x, want 5a", got)
	}
	if got := u.FloatingBus(int64(10 * hwdefs.LineT)); got != 0xFF {
		t.Errorf("floating bus in border = %02x, want ff", got)
	}
	if got := u.FloatingBus(int64(PaperLine*hwdefs.LineT + PaperT - 1)); got != 0xFF {
		t.Errorf("floating bus before paper = %02x, want ff", got)
	}
}

func TestScreenshot(t *testing.T) {
	u := newULA(t)
	u.FrameEnd(hwdefs.FrameT)
	img := u.Screenshot()
	if img.Bounds().Dx() != Width || img.Bounds().Dy() != Height {
		t.Fatalf("screenshot bounds %v", img.Bounds())
	}
	if img.ColorIndexAt(0, 0) != 7 {
		t.Errorf("border pixel = %d, want 7", img.ColorIndexAt(0, 0))
	}
}
