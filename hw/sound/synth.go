// Package sound implements the AY-3-8910 sound generator and the beeper and
// tape audio mixer.
package sound

import (
	"math"

	"speccy/emu/log"
	"speccy/hw/hwdefs"
	"speccy/hw/hwio"
)

// Config holds the audio parameters. Volumes are percentages.
type Config struct {
	SampleRate   int
	CPUClock     int
	AYClock      int
	Mixer        MixerMode
	AYVolume     int
	BeeperVolume int
	TapeVolume   int
	FilterCutoff float64 // Hz, 0 disables the low-pass filter
}

// DefaultConfig returns a 44.1kHz ABC configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:   44100,
		CPUClock:     hwdefs.CPUClock,
		AYClock:      hwdefs.AYClock,
		Mixer:        MixABC,
		AYVolume:     70,
		BeeperVolume: 50,
		TapeVolume:   15,
		FilterCutoff: 12000,
	}
}

// Synth produces interleaved stereo samples from the AY and the 1-bit
// sources (beeper, tape in, tape out).
type Synth struct {
	*AY
	cfg Config

	gains  [3][2]float64
	alpha  float64
	lp     [2]float64
	ticks  int64 // tick accumulator, in units of 1/SampleRate
	tickHz int64

	base    int64 // absolute T of the current frame start
	sampled int64 // absolute index of the next sample

	beeper, mic, tapeIn bool

	buf []int16
}

// New returns a synthesizer for cfg.
func New(cfg Config) *Synth {
	s := &Synth{AY: newAY(), cfg: cfg}
	s.tickHz = int64(cfg.AYClock / 8)
	pan := panning(cfg.Mixer)
	var norm float64
	for side := range 2 {
		var sum float64
		for ch := range 3 {
			sum += float64(pan[ch][side])
		}
		norm = max(norm, sum)
	}
	for ch := range 3 {
		for side := range 2 {
			s.gains[ch][side] = float64(pan[ch][side]) / norm
		}
	}
	s.alpha = 1
	if cfg.FilterCutoff > 0 {
		s.alpha = 1 - math.Exp(-2*math.Pi*cfg.FilterCutoff/float64(cfg.SampleRate))
	}
	log.ModSound.InfoZ("synth").
		Int("rate", cfg.SampleRate).
		Stringer("mixer", cfg.Mixer).
		Int("ay_vol", cfg.AYVolume).
		End()
	return s
}

// Config returns the configuration the synth was built with.
func (s *Synth) Config() Config { return s.cfg }

// Reset silences the AY and the 1-bit sources.
func (s *Synth) Reset() {
	s.AY.Reset()
	s.beeper, s.mic, s.tapeIn = false, false, false
	s.lp = [2]float64{}
}

// Update generates the samples up to clk.
func (s *Synth) Update(clk int64) {
	target := (s.base + clk) * int64(s.cfg.SampleRate) / int64(s.cfg.CPUClock)
	for s.sampled < target {
		s.sample()
		s.sampled++
	}
}

// FrameEnd generates the rest of the frame and moves the time base.
func (s *Synth) FrameEnd(frameT int64) {
	s.Update(frameT)
	s.base += frameT
}

func (s *Synth) sample() {
	// average the channel levels over the ticks of this sample
	var acc [3]int
	n := 0
	for s.ticks += s.tickHz; s.ticks >= int64(s.cfg.SampleRate); s.ticks -= int64(s.cfg.SampleRate) {
		s.AY.Tick()
		for ch := range 3 {
			acc[ch] += volumes[s.AY.Level(ch)]
		}
		n++
	}
	if n == 0 {
		for ch := range 3 {
			acc[ch] = volumes[s.AY.Level(ch)]
		}
		n = 1
	}

	var mix [2]float64
	for ch := range 3 {
		lvl := float64(acc[ch]) / float64(n) / 10000
		mix[0] += lvl * s.gains[ch][0]
		mix[1] += lvl * s.gains[ch][1]
	}
	ay := float64(s.cfg.AYVolume) / 100
	one := b2f(s.beeper)*float64(s.cfg.BeeperVolume)/100 +
		(b2f(s.tapeIn)+b2f(s.mic))*float64(s.cfg.TapeVolume)/100

	for side := range 2 {
		v := mix[side]*ay + one
		s.lp[side] += s.alpha * (v - s.lp[side])
		s.buf = append(s.buf, toInt16(s.lp[side]))
	}
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func toInt16(v float64) int16 {
	return int16(math.Round(min(max(v, -1), 1) * math.MaxInt16))
}

// TakeSamples returns the samples generated since the last call.
func (s *Synth) TakeSamples() []int16 {
	out := s.buf
	s.buf = make([]int16, 0, cap(out))
	return out
}

// SelectRegister latches the AY register number.
func (s *Synth) SelectRegister(val uint8, clk int64) {
	s.Sel = val
}

// WriteRegister writes the selected AY register at clk.
func (s *Synth) WriteRegister(val uint8, clk int64) {
	s.Update(clk)
	s.AY.Write(val)
}

// SetBeeper sets the beeper (bit 4) and tape out (bit 3) levels from a
// port xxFE write.
func (s *Synth) SetBeeper(val uint8, clk int64) {
	beeper, mic := val&0x10 != 0, val&0x08 != 0
	if beeper == s.beeper && mic == s.mic {
		return
	}
	s.Update(clk)
	s.beeper, s.mic = beeper, mic
}

// SetTapeIn sets the tape input level.
func (s *Synth) SetTapeIn(level bool, clk int64) {
	if level == s.tapeIn {
		return
	}
	s.Update(clk)
	s.tapeIn = level
}

// Ports returns the AY ports (xxFD decoding on A15, A14 and A1) and the
// beeper port.
func (s *Synth) Ports() []*hwio.Port {
	return []*hwio.Port{
		{
			Name: "ay-select", Mask: 0xC002, Value: 0xC000,
			ReadCb: func(_ uint16, _ uint8, clk int64) uint8 {
				s.Update(clk)
				return s.AY.Read()
			},
			WriteCb: func(_ uint16, val uint8, clk int64) { s.SelectRegister(val, clk) },
		},
		{
			Name: "ay-data", Mask: 0xC002, Value: 0x8000,
			WriteCb: func(_ uint16, val uint8, clk int64) { s.WriteRegister(val, clk) },
		},
		{
			Name: "beeper", Mask: 0x0001, Value: 0x0000,
			WriteCb: func(_ uint16, val uint8, clk int64) { s.SetBeeper(val, clk) },
		},
	}
}
