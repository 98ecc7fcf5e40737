// Package tape implements the cassette deck: TAP images played as standard
// ROM loader pulse trains, and recorded PCM tapes.
package tape

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"speccy/emu/log"
	"speccy/hw/hwdefs"
)

// Tape is a loaded cassette. TAP images hold data blocks, PCM recordings
// hold raw pulse widths (T-states).
type Tape struct {
	Name   string
	blocks [][]byte
	pulses []int64
}

// IsPCM reports whether the tape is a recording rather than data blocks.
func (t *Tape) IsPCM() bool { return t.pulses != nil }

// NumBlocks returns the number of data blocks.
func (t *Tape) NumBlocks() int { return len(t.blocks) }

// LoadTAP decodes a TAP image: a sequence of 16-bit little endian lengths,
// each followed by that many bytes.
func LoadTAP(buf []byte) (*Tape, error) {
	t := &Tape{}
	for off := 0; off < len(buf); {
		if len(buf)-off < 2 {
			return nil, fmt.Errorf("%w: tap: truncated block length at %d", hwdefs.ErrFormat, off)
		}
		n := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		if len(buf)-off < n {
			return nil, fmt.Errorf("%w: tap: block %d truncated (%d/%d bytes)", hwdefs.ErrFormat, len(t.blocks), len(buf)-off, n)
		}
		t.blocks = append(t.blocks, buf[off:off+n])
		off += n
	}
	return t, nil
}

// TAP encodes the blocks back to a TAP image.
func (t *Tape) TAP() []byte {
	var out []byte
	for _, b := range t.blocks {
		out = binary.LittleEndian.AppendUint16(out, uint16(len(b)))
		out = append(out, b...)
	}
	return out
}

// Header is the decoded content of a 19-byte header block.
type Header struct {
	Type   uint8 // 0 program, 1 number array, 2 char array, 3 code
	Name   string
	Length uint16
	Param1 uint16 // autostart line or load address
	Param2 uint16
}

// Block describes one TAP block.
type Block struct {
	Index      int
	Flag       uint8
	Length     int
	ChecksumOK bool
	Header     *Header
}

var headerTypes = [...]string{"Program", "Number array", "Character array", "Bytes"}

func (b Block) String() string {
	s := fmt.Sprintf("%3d: flag %02x, %5d bytes", b.Index, b.Flag, b.Length)
	if h := b.Header; h != nil {
		typ := fmt.Sprintf("type %d", h.Type)
		if int(h.Type) < len(headerTypes) {
			typ = headerTypes[h.Type]
		}
		s += fmt.Sprintf(", %s: %q len %d param %d", typ, h.Name, h.Length, h.Param1)
	}
	if !b.ChecksumOK {
		s += " (bad checksum)"
	}
	return s
}

// Blocks lists the data blocks, decoding the standard headers.
func (t *Tape) Blocks() []Block {
	var out []Block
	for i, data := range t.blocks {
		b := Block{Index: i, Length: len(data)}
		if len(data) > 0 {
			b.Flag = data[0]
			var sum uint8
			for _, v := range data {
				sum ^= v
			}
			b.ChecksumOK = sum == 0
		}
		if len(data) == 19 && data[0] == 0x00 {
			b.Header = &Header{
				Type:   data[1],
				Name:   strings.TrimRight(string(data[2:12]), " "),
				Length: binary.LittleEndian.Uint16(data[12:]),
				Param1: binary.LittleEndian.Uint16(data[14:]),
				Param2: binary.LittleEndian.Uint16(data[16:]),
			}
		}
		out = append(out, b)
	}
	return out
}

// LoadFile reads a .tap, .wav or .mp3 tape.
func LoadFile(path string) (*Tape, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hwdefs.ErrIO, err)
	}

	var t *Tape
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".tap":
		t, err = LoadTAP(buf)
	case ".wav":
		t, err = LoadWAV(buf)
	case ".mp3":
		t, err = LoadMP3(buf)
	default:
		err = fmt.Errorf("%w: unknown tape extension %q", hwdefs.ErrFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.Name = filepath.Base(path)
	log.ModTape.InfoZ("tape loaded").
		String("name", t.Name).
		Int("blocks", len(t.blocks)).
		Int("pulses", len(t.pulses)).
		End()
	return t, nil
}
