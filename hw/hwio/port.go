package hwio

import (
	"speccy/emu/log"
)

// log accesses to ports no device answers (floating bus reads are common on
// the Spectrum, so this is very verbose).
const logUnmapped = false

// Port is one partially decoded I/O port of a device. An access matches when
// (port & Mask) == Value and Enabled (if set) returns true. Aliasing produced
// by the partial decode is intended: real hardware only looks at a few
// address lines.
type Port struct {
	Name    string
	Mask    uint16
	Value   uint16
	Enabled func() bool

	// ReadCb receives the value driven on the data bus so far and returns the
	// new one, so that several devices can contribute bits to a single read.
	ReadCb  func(port uint16, val uint8, clk int64) uint8
	WriteCb func(port uint16, val uint8, clk int64)
}

func (p *Port) Match(port uint16) bool {
	return port&p.Mask == p.Value && (p.Enabled == nil || p.Enabled())
}

// PortBus broadcasts I/O accesses to all mapped ports, in mapping order.
type PortBus struct {
	Name  string
	ports []*Port
}

func NewPortBus(name string) *PortBus {
	return &PortBus{Name: name}
}

// Map adds p at the lowest priority.
func (b *PortBus) Map(p *Port) {
	log.ModHwIo.DebugZ("mapping port").
		String("bus", b.Name).
		String("name", p.Name).
		Hex16("mask", p.Mask).
		Hex16("value", p.Value).
		End()
	b.ports = append(b.ports, p)
}

// In performs a port read at cycle clk. The data bus floats high (0xFF) unless
// a device drives it.
func (b *PortBus) In(port uint16, clk int64) uint8 {
	val := uint8(0xFF)
	matched := false
	for _, p := range b.ports {
		if p.ReadCb != nil && p.Match(port) {
			val = p.ReadCb(port, val, clk)
			matched = true
		}
	}
	if logUnmapped && !matched {
		log.ModHwIo.DebugZ("unmapped In").
			String("bus", b.Name).
			Hex16("port", port).
			End()
	}
	return val
}

// Out performs a port write at cycle clk.
func (b *PortBus) Out(port uint16, val uint8, clk int64) {
	matched := false
	for _, p := range b.ports {
		if p.WriteCb != nil && p.Match(port) {
			p.WriteCb(port, val, clk)
			matched = true
		}
	}
	if logUnmapped && !matched {
		log.ModHwIo.DebugZ("unmapped Out").
			String("bus", b.Name).
			Hex16("port", port).
			Hex8("val", val).
			End()
	}
}
