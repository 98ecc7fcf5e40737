package z80

import (
	"io"
	"strconv"
)

// tracer writes one line per executed instruction: the PC, the 4 bytes at
// PC (a Z80 instruction is never longer), the register pairs and T.
type tracer struct {
	w   io.Writer
	buf []byte
}

// SetTraceOutput enables the execution trace. A nil w disables it.
func (c *CPU) SetTraceOutput(w io.Writer) {
	if w == nil {
		c.tracer = nil
		return
	}
	c.tracer = &tracer{w: w, buf: make([]byte, 0, 96)}
}

func hexEncode(dst []byte, v byte) []byte {
	const hextable = "0123456789ABCDEF"
	return append(dst, hextable[v>>4], hextable[v&0x0f])
}

func hex16(dst []byte, v uint16) []byte {
	return hexEncode(hexEncode(dst, byte(v>>8)), byte(v))
}

func (t *tracer) write(c *CPU) {
	buf := hex16(t.buf[:0], c.PC)
	buf = append(buf, ' ', ' ')
	for i := range uint16(4) {
		buf = hexEncode(buf, c.mem.Read8(c.PC+i))
		buf = append(buf, ' ')
	}
	for _, r := range [...]struct {
		name string
		val  uint16
	}{
		{"AF", uint16(c.AF)}, {"BC", uint16(c.BC)}, {"DE", uint16(c.DE)}, {"HL", uint16(c.HL)},
		{"IX", uint16(c.IX)}, {"IY", uint16(c.IY)}, {"SP", c.SP},
	} {
		buf = append(buf, ' ')
		buf = append(buf, r.name...)
		buf = append(buf, ':')
		buf = hex16(buf, r.val)
	}
	buf = append(buf, " T:"...)
	buf = strconv.AppendInt(buf, c.T, 10)
	buf = append(buf, '\n')
	t.buf = buf
	t.w.Write(buf)
}
