package sound

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/google/go-cmp/cmp"

	"speccy/hw/hwdefs"
	"speccy/hw/hwio"
)

func exactConfig() Config {
	cfg := DefaultConfig()
	cfg.FilterCutoff = 0
	return cfg
}

func writeReg(s *Synth, reg, val uint8, clk int64) {
	s.SelectRegister(reg, clk)
	s.WriteRegister(val, clk)
}

func TestSilence(t *testing.T) {
	s := New(exactConfig())

	// Tones and noise running at full volume, then volumes to zero with
	// every generator enabled: the output must be exactly silent.
	writeReg(s, RegToneA, 0x20, 0)
	writeReg(s, RegToneB, 0x33, 0)
	writeReg(s, RegToneC, 0x47, 0)
	writeReg(s, RegNoise, 0x05, 0)
	writeReg(s, RegMixer, 0x00, 0)
	writeReg(s, RegVolA, 0x0F, 0)
	writeReg(s, RegVolB, 0x0F, 0)
	writeReg(s, RegVolC, 0x0F, 0)
	s.FrameEnd(hwdefs.FrameT)
	if len(s.TakeSamples()) == 0 {
		t.Fatalf("no samples produced")
	}

	writeReg(s, RegVolA, 0, 0)
	writeReg(s, RegVolB, 0, 0)
	writeReg(s, RegVolC, 0, 0)
	for range 5 {
		s.FrameEnd(hwdefs.FrameT)
	}
	for i, v := range s.TakeSamples() {
		if v != 0 {
			t.Fatalf("sample %d = %d, want silence", i, v)
		}
	}

	// all generators disabled
	writeReg(s, RegMixer, 0x3F, 0)
	s.FrameEnd(hwdefs.FrameT)
	for i, v := range s.TakeSamples() {
		if v != 0 {
			t.Fatalf("sample %d = %d, want silence", i, v)
		}
	}
}

func TestSampleCount(t *testing.T) {
	s := New(DefaultConfig())
	for range 50 {
		s.FrameEnd(hwdefs.FrameT)
	}
	// 50 frames of 71680 T at 3.5MHz
	want := int(50 * hwdefs.FrameT * 44100 / hwdefs.CPUClock)
	if got := len(s.TakeSamples()) / 2; got != want {
		t.Errorf("frames = %d, want %d", got, want)
	}
}

func TestRegisterMasks(t *testing.T) {
	s := New(DefaultConfig())
	for reg := range uint8(NumRegs) {
		writeReg(s, reg, 0xFF, 0)
	}
	want := [NumRegs]uint8{
		0xFF, 0x0F, 0xFF, 0x0F, 0xFF, 0x0F, 0x1F, 0xFF,
		0x1F, 0x1F, 0x1F, 0xFF, 0xFF, 0x0F, 0xFF, 0xFF,
	}
	if diff := cmp.Diff(want, s.Registers()); diff != "" {
		t.Errorf("registers (-want +got):\n%s", diff)
	}

	s.SelectRegister(16, 0)
	s.WriteRegister(0x12, 0)
	if got := s.AY.Read(); got != 0xFF {
		t.Errorf("read of register 16 = %02x", got)
	}
}

func TestEnvelope(t *testing.T) {
	for _, tt := range []struct {
		shape uint8
		want  []int // levels after 0, 16, 32, 48 steps
	}{
		{0x00, []int{15, 0, 0, 0}},
		{0x04, []int{0, 0, 0, 0}},
		{0x08, []int{15, 15, 15, 15}},
		{0x0A, []int{15, 0, 15, 0}},
		{0x0B, []int{15, 15, 15, 15}},
		{0x0C, []int{0, 0, 0, 0}},
		{0x0D, []int{0, 15, 15, 15}},
		{0x0E, []int{0, 15, 0, 15}},
	} {
		ay := newAY()
		ay.Sel = RegVolA
		ay.Write(0x10)
		ay.Sel = RegMixer
		ay.Write(0x3F)
		ay.Sel = RegEnvShape
		ay.Write(tt.shape)

		// period 0 counts as 1: one step every 2 ticks
		var got []int
		for i := range 4 {
			got = append(got, ay.Level(0))
			if i < 3 {
				for range 16 * 2 {
					ay.Tick()
				}
			}
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("shape %x (-want +got):\n%s", tt.shape, diff)
		}
	}
}

func TestEnvelopeFreeze(t *testing.T) {
	ay := newAY()
	ay.Sel = RegEnvShape
	ay.Write(0x0D) // attack, hold
	for range 1000 {
		ay.Tick()
	}
	if ay.env.step != 31 {
		t.Errorf("step = %d, want frozen at 31", ay.env.step)
	}

	// rewriting the shape restarts it
	ay.Write(0x0D)
	if ay.env.step != 0 {
		t.Errorf("step = %d after restart", ay.env.step)
	}
}

func TestToneFrequency(t *testing.T) {
	ay := newAY()
	ay.Sel = RegToneA
	ay.Write(10)
	ay.Sel = RegVolA
	ay.Write(0x0F)
	ay.Sel = RegMixer
	ay.Write(0x3E) // tone A only

	edges := 0
	last := ay.Level(0)
	for range 200 {
		ay.Tick()
		if l := ay.Level(0); l != last {
			edges++
			last = l
		}
	}
	if edges != 20 {
		t.Errorf("edges = %d, want 20", edges)
	}
}

func TestNoiseLFSR(t *testing.T) {
	ay := newAY()
	seen := map[uint32]bool{}
	for range 2 * 1000 {
		ay.Tick()
		seen[ay.noise.lfsr] = true
		if ay.noise.lfsr == 0 || ay.noise.lfsr >= 1<<17 {
			t.Fatalf("lfsr out of range: %x", ay.noise.lfsr)
		}
	}
	if len(seen) < 900 {
		t.Errorf("lfsr produced %d states in 1000 shifts", len(seen))
	}
}

func TestBeeper(t *testing.T) {
	s := New(exactConfig())
	half := int64(hwdefs.FrameT / 2)
	s.SetBeeper(0x10, half)
	s.FrameEnd(hwdefs.FrameT)
	smp := s.TakeSamples()

	first, last := smp[0], smp[len(smp)-1]
	if first != 0 {
		t.Errorf("first sample %d, want 0", first)
	}
	want := toInt16(float64(DefaultConfig().BeeperVolume) / 100)
	if last != want {
		t.Errorf("last sample %d, want %d", last, want)
	}
	// the edge is at the middle of the frame
	n := len(smp) / 2
	if smp[2*(n/2)-4] != 0 || smp[2*(n/2)+4] != want {
		t.Errorf("beeper edge not at mid-frame")
	}
}

func TestLowPass(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FilterCutoff = 1000
	s := New(cfg)
	s.SetBeeper(0x10, 0)
	s.Update(2000)
	smp := s.TakeSamples()
	if len(smp) < 4 {
		t.Fatalf("too few samples")
	}
	// the step response rises monotonically
	if !(smp[0] > 0 && smp[0] < smp[2] && smp[2] < smp[len(smp)-2]) {
		t.Errorf("no smoothing: %v", smp)
	}
}

func TestPanning(t *testing.T) {
	s := New(exactConfig())
	writeReg(s, RegMixer, 0x3F, 0)
	writeReg(s, RegVolA, 0x0F, 0)
	s.Update(1000)
	smp := s.TakeSamples()
	l, r := smp[len(smp)-2], smp[len(smp)-1]
	if l <= r || r == 0 {
		t.Errorf("channel A in ABC mode: left %d right %d", l, r)
	}
	if !(mixerModeOK("acb") && mixerModeOK("mono") && !mixerModeOK("xyz")) {
		t.Errorf("ParseMixerMode")
	}
}

func mixerModeOK(s string) bool {
	_, ok := ParseMixerMode(s)
	return ok
}

func TestPorts(t *testing.T) {
	s := New(DefaultConfig())
	bus := hwio.NewPortBus("test")
	for _, p := range s.Ports() {
		bus.Map(p)
	}
	bus.Out(0xFFFD, RegVolB, 0)
	bus.Out(0xBFFD, 0x0C, 0)
	if got := bus.In(0xFFFD, 0); got != 0x0C {
		t.Errorf("register read %02x", got)
	}
	if s.Regs[RegVolB].Value != 0x0C {
		t.Errorf("register not written")
	}
	bus.Out(0x00FE, 0x18, 10)
	if !s.beeper || !s.mic {
		t.Errorf("beeper/mic not set")
	}
	// 7FFD must not reach the AY
	bus.Out(0x7FFD, 0x55, 0)
	if s.Regs[RegVolB].Value != 0x0C {
		t.Errorf("7FFD write reached the AY")
	}
}

func TestSetRegisters(t *testing.T) {
	s := New(DefaultConfig())
	regs := [NumRegs]uint8{0x12, 0x03, 0, 0, 0, 0, 0x1F, 0x38, 0x10, 0x0F, 0, 0x34, 0x12, 0x0A}
	s.SetRegisters(regs)
	if diff := cmp.Diff(regs, s.Registers()); diff != "" {
		t.Errorf("registers (-want +got):\n%s", diff)
	}
	if s.tone[0].limit != 0x312 || s.env.limit != 2*0x1234 || s.noise.limit != 2*0x1F {
		t.Errorf("derived limits not updated")
	}
}

func TestRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	r, err := NewRecorder(path, 22050)
	if err != nil {
		t.Fatal(err)
	}
	in := []int16{0, 0, 1000, -1000, 32767, -32768, 5, 6}
	if err := r.Write(in[:4]); err != nil {
		t.Fatal(err)
	}
	if err := r.Write(in[4:]); err != nil {
		t.Fatal(err)
	}
	if r.Frames() != 4 {
		t.Errorf("frames = %d", r.Frames())
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatalf("invalid wav")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if dec.SampleRate != 22050 || dec.NumChans != 2 {
		t.Errorf("format %d Hz %d ch", dec.SampleRate, dec.NumChans)
	}
	var got []int16
	for _, v := range buf.Data {
		got = append(got, int16(v))
	}
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("samples (-want +got):\n%s", diff)
	}
}
