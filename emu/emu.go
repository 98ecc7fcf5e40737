package emu

import (
	"fmt"
	"image/png"
	"io"
	"os"
	"sync/atomic"

	"github.com/go-faster/jx"

	"speccy/emu/log"
	"speccy/hw"
	"speccy/hw/hwdefs"
	"speccy/hw/snapshot"
	"speccy/hw/sound"
	"speccy/hw/z80"
)

// Emulator drives a machine without a window: it runs frames, optionally
// records the sound and saves the results.
type Emulator struct {
	Machine *hw.Machine

	audio bool
	rec   *sound.Recorder

	// Stop may be called from another goroutine.
	quit atomic.Bool
}

// New builds the machine described by cfg. Relative ROM paths are resolved
// against romDir.
func New(cfg Config, romDir string) (*Emulator, error) {
	hwcfg, err := cfg.Machine(romDir)
	if err != nil {
		return nil, err
	}
	m, err := hw.New(hwcfg)
	if err != nil {
		return nil, fmt.Errorf("power up failed: %w", err)
	}
	if cfg.Audio.DisableAudio {
		log.ModEmu.WarnZ("Audio disabled").End()
	}
	return &Emulator{Machine: m, audio: !cfg.Audio.DisableAudio}, nil
}

// Load inserts each media file in turn.
func (e *Emulator) Load(paths ...string) error {
	for _, path := range paths {
		if err := e.Machine.LoadMedia(path); err != nil {
			return err
		}
		log.ModEmu.InfoZ("media loaded").String("path", path).End()
	}
	return nil
}

// RecordAudio writes the sound of the following frames to a WAV file.
func (e *Emulator) RecordAudio(path string) error {
	if !e.audio {
		return fmt.Errorf("cannot record %s: audio disabled", path)
	}
	rec, err := sound.NewRecorder(path, e.Machine.Sound.Config().SampleRate)
	if err != nil {
		return err
	}
	e.rec = rec
	return nil
}

// RunOneFrame emulates a frame and flushes its samples.
func (e *Emulator) RunOneFrame() error {
	e.Machine.StepFrame()
	samples := e.Machine.Sound.TakeSamples()
	if e.rec != nil {
		return e.rec.Write(samples)
	}
	return nil
}

// Run emulates up to frames frames, or until Stop is called when frames is
// 0. It returns the number of frames emulated.
func (e *Emulator) Run(frames int) (int, error) {
	n := 0
	for frames == 0 || n < frames {
		if e.quit.Load() {
			break
		}
		if err := e.RunOneFrame(); err != nil {
			return n, err
		}
		n++
	}
	log.ModEmu.InfoZ("Emulation loop exited").Int("frames", n).End()
	return n, nil
}

func (e *Emulator) Stop() { e.quit.Store(true) }

// Reset performs a soft or hard reset.
func (e *Emulator) Reset(soft bool) {
	if soft {
		log.ModEmu.InfoZ("Performing soft reset").End()
	} else {
		log.ModEmu.InfoZ("Performing hard reset").End()
	}
	e.Machine.Reset(soft)
}

// SaveScreenshot writes the last frame as a PNG file.
func (e *Emulator) SaveScreenshot(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", hwdefs.ErrIO, err)
	}
	if err := png.Encode(f, e.Machine.Screenshot()); err != nil {
		f.Close()
		return fmt.Errorf("%w: %w", hwdefs.ErrIO, err)
	}
	return f.Close()
}

// Close finishes the audio recording, if any.
func (e *Emulator) Close() error {
	if e.rec == nil {
		return nil
	}
	err := e.rec.Close()
	e.rec = nil
	return err
}

// WriteRegs writes the CPU registers and the paging state of s as an
// indented JSON object.
func WriteRegs(w io.Writer, s *snapshot.State) error {
	var e jx.Encoder
	e.SetIdent(2)
	r := &s.Regs
	e.Obj(func(e *jx.Encoder) {
		e.Field("model", func(e *jx.Encoder) { e.Str(s.Model.String()) })
		for _, reg := range []struct {
			name string
			val  z80.Reg16
		}{
			{"af", r.AF}, {"bc", r.BC}, {"de", r.DE}, {"hl", r.HL},
			{"af'", r.AltAF}, {"bc'", r.AltBC}, {"de'", r.AltDE}, {"hl'", r.AltHL},
			{"ix", r.IX}, {"iy", r.IY},
			{"sp", z80.Reg16(r.SP)}, {"pc", z80.Reg16(r.PC)},
		} {
			e.Field(reg.name, func(e *jx.Encoder) { e.Int(int(reg.val)) })
		}
		e.Field("i", func(e *jx.Encoder) { e.Int(int(r.I)) })
		e.Field("r", func(e *jx.Encoder) { e.Int(int(r.RefreshR())) })
		e.Field("im", func(e *jx.Encoder) { e.Int(int(r.IM)) })
		e.Field("iff1", func(e *jx.Encoder) { e.Bool(r.IFF1) })
		e.Field("iff2", func(e *jx.Encoder) { e.Bool(r.IFF2) })
		e.Field("border", func(e *jx.Encoder) { e.Int(int(s.Border)) })
		if s.Model == snapshot.Model128K {
			e.Field("7ffd", func(e *jx.Encoder) { e.Int(int(s.P7FFD)) })
		}
		e.Field("ay", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, v := range s.AY {
					e.Int(int(v))
				}
			})
		})
	})
	_, err := w.Write(append(e.Bytes(), '\n'))
	return err
}
