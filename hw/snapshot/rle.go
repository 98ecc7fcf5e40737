package snapshot

import (
	"fmt"

	"speccy/hw/hwdefs"
)

// Runs are encoded as ED ED count value. Runs of 5 or more bytes are
// compressed, and so are runs of 2 or more EDs. A single ED is always
// followed by a literal byte, so that it cannot merge with a following run.
const (
	rleMarker = 0xED
	rleMinRun = 5
	rleMaxRun = 255
)

func rleEncode(src []byte) []byte {
	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); {
		v := src[i]
		n := 1
		for i+n < len(src) && src[i+n] == v && n < rleMaxRun {
			n++
		}
		switch {
		case n >= rleMinRun || (v == rleMarker && n >= 2):
			out = append(out, rleMarker, rleMarker, byte(n), v)
			i += n
		case v == rleMarker:
			out = append(out, v)
			i++
			if i < len(src) {
				out = append(out, src[i])
				i++
			}
		default:
			out = append(out, v)
			i++
		}
	}
	return out
}

// rleDecode expands src until size bytes have been produced. Input left
// after that is ignored.
func rleDecode(src []byte, size int) ([]byte, error) {
	out := make([]byte, 0, size)
	i := 0
	for len(out) < size {
		if i >= len(src) {
			return nil, fmt.Errorf("%w: compressed data truncated (%d/%d bytes)", hwdefs.ErrFormat, len(out), size)
		}
		if src[i] != rleMarker || i+1 >= len(src) || src[i+1] != rleMarker {
			out = append(out, src[i])
			i++
			continue
		}
		if i+3 >= len(src) {
			return nil, fmt.Errorf("%w: truncated run at %d", hwdefs.ErrFormat, i)
		}
		n, v := int(src[i+2]), src[i+3]
		if len(out)+n > size {
			return nil, fmt.Errorf("%w: run overflows block at %d", hwdefs.ErrFormat, i)
		}
		for range n {
			out = append(out, v)
		}
		i += 4
	}
	return out, nil
}
