package snapshot

import (
	"encoding/binary"
	"fmt"
	"os"

	"speccy/emu/log"
	"speccy/hw/hwdefs"
	"speccy/hw/z80"
)

const (
	headerLen = 30
	extraV2   = 23
	extraV3   = 54
	extraV3p  = 55 // v3 with the +3 1FFD byte

	ram48K = 3 * hwdefs.PageSize

	uncompressed = 0xFFFF
)

// v1 compressed memory ends with this marker.
var v1End = []byte{0x00, 0xED, 0xED, 0x00}

// Options selects the layout written by EncodeWith.
type Options struct {
	Version  int  // 1, 2 or 3
	Compress bool // RLE compress memory
}

// Encode returns a version 3 snapshot of s with one uncompressed block per
// RAM page.
func Encode(s *State) []byte {
	return encode(s, 3, false)
}

// EncodeWith encodes s with the given options. Version 1 files only hold 48K
// machines and a non-zero PC.
func EncodeWith(s *State, opts Options) ([]byte, error) {
	switch opts.Version {
	case 1:
		if s.Model != Model48K {
			return nil, fmt.Errorf("%w: version 1 snapshots cannot hold a %v machine", hwdefs.ErrFormat, s.Model)
		}
		if s.Regs.PC == 0 {
			return nil, fmt.Errorf("%w: version 1 snapshots cannot hold PC=0", hwdefs.ErrFormat)
		}
	case 2, 3:
	default:
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", hwdefs.ErrFormat, opts.Version)
	}
	return encode(s, opts.Version, opts.Compress), nil
}

func put16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func get16(b []byte) uint16    { return binary.LittleEndian.Uint16(b) }

func pair(hi, lo uint8) z80.Reg16 { return z80.Reg16(hi)<<8 | z80.Reg16(lo) }
func word(b []byte) z80.Reg16     { return z80.Reg16(get16(b)) }

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func encodeHeader(s *State) []byte {
	h := make([]byte, headerLen)
	r := &s.Regs
	h[0], h[1] = r.AF.Hi(), r.AF.Lo()
	put16(h[2:], uint16(r.BC))
	put16(h[4:], uint16(r.HL))
	put16(h[6:], r.PC)
	put16(h[8:], r.SP)
	h[10] = r.I
	rr := r.RefreshR()
	h[11] = rr & 0x7F
	h[12] = rr>>7 | (s.Border&7)<<1
	put16(h[13:], uint16(r.DE))
	put16(h[15:], uint16(r.AltBC))
	put16(h[17:], uint16(r.AltDE))
	put16(h[19:], uint16(r.AltHL))
	h[21], h[22] = r.AltAF.Hi(), r.AltAF.Lo()
	put16(h[23:], uint16(r.IY))
	put16(h[25:], uint16(r.IX))
	h[27] = b2u8(r.IFF1)
	h[28] = b2u8(r.IFF2)
	h[29] = r.IM & 3
	return h
}

func (s *State) page(n int) []byte {
	if s.RAM[n] == nil {
		return make([]byte, hwdefs.PageSize)
	}
	return s.RAM[n]
}

func encode(s *State, version int, compress bool) []byte {
	out := encodeHeader(s)

	if version == 1 {
		var mem []byte
		for _, n := range Model48K.pages() {
			mem = append(mem, s.page(n)...)
		}
		if compress {
			out[12] |= 0x20
			mem = append(rleEncode(mem), v1End...)
		}
		return append(out, mem...)
	}

	extra := extraV3
	if version == 2 {
		extra = extraV2
	}
	out[6], out[7] = 0, 0
	ext := make([]byte, 2+extra)
	put16(ext, uint16(extra))
	put16(ext[2:], s.Regs.PC)
	if s.Model == Model128K {
		ext[4] = 3
		if version == 3 {
			ext[4] = 4
		}
		ext[5] = s.P7FFD
	}
	ext[7] = 0x04 // AY in use
	ext[8] = s.AYSel
	copy(ext[9:], s.AY[:])
	out = append(out, ext...)

	for _, n := range s.Model.pages() {
		data := s.page(n)
		length := uint16(uncompressed)
		if compress {
			if c := rleEncode(data); len(c) < hwdefs.PageSize {
				data, length = c, uint16(len(c))
			}
		}
		var blk [3]byte
		put16(blk[:], length)
		blk[2] = s.Model.filePage(n)
		out = append(out, blk[:]...)
		out = append(out, data...)
	}
	return out
}

// hardwareModel maps the hardware mode byte of a v2/v3 header.
func hardwareModel(version int, mode uint8) (Model, bool) {
	if version == 2 {
		switch mode {
		case 0, 1:
			return Model48K, true
		case 3, 4:
			return Model128K, true
		}
		return 0, false
	}
	switch mode {
	case 0, 1, 3:
		return Model48K, true
	case 4, 5, 6, 7, 8, 9, 12, 13:
		return Model128K, true
	}
	return 0, false
}

func truncated(what string) error {
	return fmt.Errorf("%w: snapshot truncated in %s", hwdefs.ErrFormat, what)
}

// Decode parses a version 1, 2 or 3 snapshot. On error no State is returned.
func Decode(buf []byte) (*State, error) {
	if len(buf) < headerLen {
		return nil, truncated("header")
	}

	h := buf[:headerLen]
	flags := h[12]
	if flags == 0xFF {
		flags = 1
	}

	version := 1
	extra := 0
	if get16(h[6:]) == 0 {
		if len(buf) < headerLen+2 {
			return nil, truncated("extended header")
		}
		extra = int(get16(buf[headerLen:]))
		switch extra {
		case extraV2:
			version = 2
		case extraV3, extraV3p:
			version = 3
		default:
			return nil, fmt.Errorf("%w: unknown extended header length %d", hwdefs.ErrFormat, extra)
		}
		if len(buf) < headerLen+2+extra {
			return nil, truncated("extended header")
		}
	}

	model := Model48K
	var ext []byte
	if version > 1 {
		ext = buf[headerLen : headerLen+2+extra]
		var ok bool
		if model, ok = hardwareModel(version, ext[4]); !ok {
			return nil, fmt.Errorf("%w: unsupported hardware mode %d (v%d)", hwdefs.ErrFormat, ext[4], version)
		}
	}

	s := NewState(model)
	r := &s.Regs
	r.AF = pair(h[0], h[1])
	r.BC = word(h[2:])
	r.HL = word(h[4:])
	r.PC = get16(h[6:])
	r.SP = get16(h[8:])
	r.I = h[10]
	r.SetRefreshR(h[11]&0x7F | flags<<7)
	s.Border = flags >> 1 & 7
	r.DE = word(h[13:])
	r.AltBC = word(h[15:])
	r.AltDE = word(h[17:])
	r.AltHL = word(h[19:])
	r.AltAF = pair(h[21], h[22])
	r.IY = word(h[23:])
	r.IX = word(h[25:])
	r.IFF1 = h[27] != 0
	r.IFF2 = h[28] != 0
	r.IM = h[29] & 3

	if version == 1 {
		if err := s.decodeV1(buf[headerLen:], flags&0x20 != 0); err != nil {
			return nil, err
		}
		log.ModSnap.DebugZ("decoded").Int("version", 1).Stringer("model", model).End()
		return s, nil
	}

	r.PC = get16(ext[2:])
	if model == Model128K {
		s.P7FFD = ext[5]
	}
	s.AYSel = ext[8]
	copy(s.AY[:], ext[9:25])

	if err := s.decodePages(buf[headerLen+2+extra:]); err != nil {
		return nil, err
	}
	log.ModSnap.DebugZ("decoded").
		Int("version", version).
		Stringer("model", model).
		Hex8("7ffd", s.P7FFD).
		End()
	return s, nil
}

func (s *State) decodeV1(mem []byte, compressed bool) error {
	if compressed {
		var err error
		if mem, err = rleDecode(mem, ram48K); err != nil {
			return err
		}
	}
	if len(mem) < ram48K {
		return truncated("memory")
	}
	for i, n := range Model48K.pages() {
		copy(s.RAM[n], mem[i*hwdefs.PageSize:])
	}
	return nil
}

func (s *State) decodePages(buf []byte) error {
	var seen [hwdefs.NumRAM]bool
	for len(buf) > 0 {
		if len(buf) < 3 {
			return truncated("block header")
		}
		length, page := get16(buf), buf[2]
		buf = buf[3:]

		n := s.Model.ramIndex(page)
		if n < 0 {
			return fmt.Errorf("%w: page %d invalid for a %v snapshot", hwdefs.ErrFormat, page, s.Model)
		}
		if seen[n] {
			return fmt.Errorf("%w: page %d stored twice", hwdefs.ErrFormat, page)
		}
		seen[n] = true

		if length == uncompressed {
			if len(buf) < hwdefs.PageSize {
				return truncated(fmt.Sprintf("page %d", page))
			}
			copy(s.RAM[n], buf[:hwdefs.PageSize])
			buf = buf[hwdefs.PageSize:]
			continue
		}
		if len(buf) < int(length) {
			return truncated(fmt.Sprintf("page %d", page))
		}
		data, err := rleDecode(buf[:length], hwdefs.PageSize)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		copy(s.RAM[n], data)
		buf = buf[length:]
	}
	return nil
}

// LoadFile reads and decodes a snapshot file.
func LoadFile(path string) (*State, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hwdefs.ErrIO, err)
	}
	s, err := Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// SaveFile writes s to path as a compressed version 3 snapshot.
func SaveFile(s *State, path string) error {
	buf, err := EncodeWith(s, Options{Version: 3, Compress: true})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("%w: %w", hwdefs.ErrIO, err)
	}
	log.ModSnap.InfoZ("saved").String("path", path).Int("size", len(buf)).End()
	return nil
}
