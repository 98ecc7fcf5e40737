package fdc

import "speccy/emu/log"

// MFM address marks.
const (
	markSync    = 0xA1
	markID      = 0xFE
	markData    = 0xFB
	markDeleted = 0xF8
	gapByte     = 0x4E

	// written by the host during a write track, produces A1 and presets
	// the CRC
	wtSync = 0xF5
)

// crc16 computes the CRC-CCITT (poly 0x1021) used by the WD1793, starting
// from the given value.
func crc16(crc uint16, data ...byte) uint16 {
	for _, b := range data {
		crc ^= uint16(b) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// idField returns the 6 bytes transferred by a read address command.
func idField(track, side, sector int) []byte {
	id := []byte{uint8(track), uint8(side), uint8(sector), 1}
	crc := crc16(0xFFFF, markSync, markSync, markSync, markID)
	crc = crc16(crc, id...)
	return append(id, uint8(crc>>8), uint8(crc))
}

// rawTrack renders a formatted track as seen by a read track command.
func rawTrack(d *Disk, track, side int) []byte {
	out := make([]byte, 0, trackBytes)
	for sec := 1; sec <= Sectors; sec++ {
		out = appendRepeat(out, 0x00, 12)
		out = append(out, markSync, markSync, markSync, markID)
		id := idField(track, side, sec)
		out = append(out, id...)
		out = appendRepeat(out, gapByte, 22)

		out = appendRepeat(out, 0x00, 12)
		out = append(out, markSync, markSync, markSync, markData)
		data := d.Sector(track, side, sec)
		out = append(out, data...)
		crc := crc16(0xFFFF, markSync, markSync, markSync, markData)
		crc = crc16(crc, data...)
		out = append(out, uint8(crc>>8), uint8(crc))
		out = appendRepeat(out, gapByte, 54)
	}
	for len(out) < trackBytes {
		out = append(out, gapByte)
	}
	return out[:trackBytes]
}

func appendRepeat(b []byte, v byte, n int) []byte {
	for range n {
		b = append(b, v)
	}
	return b
}

// formatTrack decodes the byte stream of a write track command and stores
// the data fields of the sectors it describes on the current track.
func (f *WD1793) formatTrack(stream []byte) {
	d := f.drive()
	sector := 0
	sectors := 0
	for i := 0; i < len(stream); i++ {
		switch stream[i] {
		case markID:
			if i < 1 || stream[i-1] != wtSync || i+4 >= len(stream) {
				continue
			}
			sector = 0
			if stream[i+4] == 1 {
				sector = int(stream[i+3])
			}
			i += 4
		case markData, markDeleted:
			if i < 1 || stream[i-1] != wtSync || sector == 0 {
				continue
			}
			dst := d.disk.Sector(d.track, f.side, sector)
			if dst == nil || i+SectorSize >= len(stream) {
				continue
			}
			copy(dst, stream[i+1:i+1+SectorSize])
			i += SectorSize
			sector = 0
			sectors++
		}
	}
	log.ModFDC.DebugZ("track formatted").Int("track", d.track).Int("side", f.side).Int("sectors", sectors).End()
}
