package tape

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"speccy/hw/hwdefs"
)

// Zero crossing hysteresis, as a fraction of full scale.
const hysteresis = 0.05

// LoadWAV decodes a WAV recording, keeping the first channel.
func LoadWAV(buf []byte) (*Tape, error) {
	dec := wav.NewDecoder(bytes.NewReader(buf))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav file", hwdefs.ErrFormat)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: wav: %w", hwdefs.ErrFormat, err)
	}
	nch := max(1, int(dec.NumChans))
	mono := make([]float32, 0, len(pcm.Data)/nch)
	for i := 0; i < len(pcm.Data); i += nch {
		mono = append(mono, float32(pcm.Data[i]))
	}
	return pcmTape(mono, int(dec.SampleRate))
}

// LoadMP3 decodes an MP3 recording, keeping the left channel.
func LoadMP3(buf []byte) (*Tape, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: mp3: %w", hwdefs.ErrFormat, err)
	}

	// 16-bit little endian stereo
	var mono []float32
	chunk := make([]byte, 4096)
	for {
		n, err := dec.Read(chunk)
		for i := 0; i+1 < n; i += 4 {
			v := int16(uint16(chunk[i]) | uint16(chunk[i+1])<<8)
			mono = append(mono, float32(v)/32768)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: mp3: %w", hwdefs.ErrFormat, err)
		}
	}
	return pcmTape(mono, dec.SampleRate())
}

// pcmTape converts samples to the widths of the pulses between zero
// crossings.
func pcmTape(samples []float32, rate int) (*Tape, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: bad sample rate %d", hwdefs.ErrFormat, rate)
	}

	// normalize to the peak
	var peak float32
	for _, s := range samples {
		peak = max(peak, s, -s)
	}
	if peak == 0 {
		return nil, fmt.Errorf("%w: silent recording", hwdefs.ErrFormat)
	}
	thr := float32(hysteresis) * peak

	t := &Tape{pulses: []int64{}}
	high := samples[0] > 0
	last := 0
	for i, s := range samples {
		if (high && s < -thr) || (!high && s > thr) {
			high = !high
			width := int64(i-last) * hwdefs.CPUClock / int64(rate)
			t.pulses = append(t.pulses, max(width, 1))
			last = i
		}
	}
	return t, nil
}
