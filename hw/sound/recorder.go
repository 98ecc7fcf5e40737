package sound

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"speccy/emu/log"
	"speccy/hw/hwdefs"
)

// Recorder writes stereo 16-bit samples to a WAV file.
type Recorder struct {
	f     *os.File
	enc   *wav.Encoder
	buf   audio.IntBuffer
	count int
}

// NewRecorder creates path and prepares a WAV stream at the given rate.
func NewRecorder(path string, rate int) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hwdefs.ErrIO, err)
	}
	r := &Recorder{
		f:   f,
		enc: wav.NewEncoder(f, rate, 16, 2, 1),
		buf: audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 2, SampleRate: rate},
			SourceBitDepth: 16,
		},
	}
	log.ModSound.InfoZ("recording").String("path", path).Int("rate", rate).End()
	return r, nil
}

// Write appends interleaved stereo samples.
func (r *Recorder) Write(samples []int16) error {
	r.buf.Data = r.buf.Data[:0]
	for _, s := range samples {
		r.buf.Data = append(r.buf.Data, int(s))
	}
	if err := r.enc.Write(&r.buf); err != nil {
		return fmt.Errorf("%w: %w", hwdefs.ErrIO, err)
	}
	r.count += len(samples) / 2
	return nil
}

// Frames returns the number of stereo frames written.
func (r *Recorder) Frames() int { return r.count }

// Close finalizes the WAV header and closes the file.
func (r *Recorder) Close() error {
	err := r.enc.Close()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: %w", hwdefs.ErrIO, err)
	}
	log.ModSound.InfoZ("recording closed").Int("frames", r.count).End()
	return nil
}
