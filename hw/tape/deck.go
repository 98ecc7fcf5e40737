package tape

import (
	"speccy/emu/log"
	"speccy/hw/hwdefs"
	"speccy/hw/hwio"
)

// Standard ROM loader timings, in T-states.
const (
	PilotT      = 2168
	PilotHeader = 8063 // pulses for flag < 0x80
	PilotData   = 3223
	Sync1T      = 667
	Sync2T      = 735
	Bit0T       = 855
	Bit1T       = 1710
	PauseT      = hwdefs.CPUClock // 1s between blocks
	leadT       = hwdefs.CPUClock / 1000
)

// State is the position of the deck in the pulse sequence of a block.
type State uint8

const (
	StateStop State = iota
	StateSilence
	StatePilot
	StateSync1
	StateSync2
	StateData
	StatePulses // playing a PCM recording
)

var stateNames = [...]string{"stop", "silence", "pilot", "sync1", "sync2", "data", "pulses"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Deck plays a Tape and drives the EAR input (port xxFE bit 6). Timing is
// catch-up based, like every other device: Update(clk) replays all the edges
// up to clk.
type Deck struct {
	tape  *Tape
	state State
	level bool

	block int   // current block
	pos   int   // byte in block, or pulse index for PCM tapes
	mask  uint8 // current bit in byte
	half  int   // half of the current bit (each bit is 2 pulses)
	count int   // pilot pulses left
	next  int64 // absolute T of the next event
	now   int64 // absolute T of the last update
	base  int64 // absolute T of the frame start

	// OnEdge is called on every level change, with the frame-relative clock.
	OnEdge func(level bool, clk int64)
}

// New returns an empty, stopped deck.
func New() *Deck {
	return &Deck{}
}

// Insert loads t, rewound and stopped.
func (d *Deck) Insert(t *Tape) {
	d.tape = t
	d.Rewind()
}

// Eject removes the tape.
func (d *Deck) Eject() {
	d.Stop()
	d.tape = nil
}

// Tape returns the inserted tape, or nil.
func (d *Deck) Tape() *Tape { return d.tape }

// State returns the current playback state.
func (d *Deck) State() State { return d.state }

// Level returns the EAR level.
func (d *Deck) Level() bool { return d.level }

// Block returns the index of the current block.
func (d *Deck) Block() int { return d.block }

// Play starts (or resumes, from the beginning of the current block) playback.
func (d *Deck) Play() {
	if d.tape == nil {
		log.ModTape.WarnZ("play without tape").End()
		return
	}
	if d.state != StateStop {
		return
	}
	if d.tape.IsPCM() {
		if d.pos < len(d.tape.pulses) {
			d.setState(StatePulses)
			d.next = d.now + d.tape.pulses[d.pos]
		}
		return
	}
	d.setState(StateSilence)
	d.next = d.now + leadT
}

// Stop pauses playback.
func (d *Deck) Stop() {
	d.setState(StateStop)
}

// Rewind stops and moves back to the start of the tape.
func (d *Deck) Rewind() {
	d.Stop()
	d.block, d.pos = 0, 0
}

func (d *Deck) setState(s State) {
	if s == d.state {
		return
	}
	log.ModTape.DebugZ("state").
		Stringer("from", d.state).
		Stringer("to", s).
		Int("block", d.block).
		Clock("t", d.now).
		End()
	d.state = s
}

// Update plays the tape up to clk.
func (d *Deck) Update(clk int64) {
	now := d.base + clk
	for d.state != StateStop && d.next <= now {
		d.event(d.next)
	}
	d.now = max(d.now, now)
}

// FrameEnd plays up to the end of the frame and moves the time base.
func (d *Deck) FrameEnd(frameT int64) {
	d.Update(frameT)
	d.base += frameT
}

func (d *Deck) toggle(t int64) {
	d.level = !d.level
	if d.OnEdge != nil {
		d.OnEdge(d.level, t-d.base)
	}
}

func (d *Deck) bitT() int64 {
	if d.tape.blocks[d.block][d.pos]&d.mask != 0 {
		return Bit1T
	}
	return Bit0T
}

// event processes the end of the current pulse (or pause) at time t.
func (d *Deck) event(t int64) {
	d.now = t
	switch d.state {
	case StatePulses:
		d.toggle(t)
		d.pos++
		if d.pos >= len(d.tape.pulses) {
			d.setState(StateStop)
			return
		}
		d.next = t + d.tape.pulses[d.pos]

	case StateSilence:
		for d.block < len(d.tape.blocks) && len(d.tape.blocks[d.block]) == 0 {
			d.block++
		}
		if d.block >= len(d.tape.blocks) {
			d.setState(StateStop)
			return
		}
		d.count = PilotData
		if d.tape.blocks[d.block][0] < 0x80 {
			d.count = PilotHeader
		}
		d.setState(StatePilot)
		d.next = t + PilotT

	case StatePilot:
		d.toggle(t)
		if d.count--; d.count > 0 {
			d.next = t + PilotT
			return
		}
		d.setState(StateSync1)
		d.next = t + Sync1T

	case StateSync1:
		d.toggle(t)
		d.setState(StateSync2)
		d.next = t + Sync2T

	case StateSync2:
		d.toggle(t)
		d.pos, d.mask, d.half = 0, 0x80, 0
		d.setState(StateData)
		d.next = t + d.bitT()

	case StateData:
		d.toggle(t)
		if d.half++; d.half == 2 {
			d.half = 0
			if d.mask >>= 1; d.mask == 0 {
				d.mask = 0x80
				if d.pos++; d.pos == len(d.tape.blocks[d.block]) {
					log.ModTape.DebugZ("block done").Int("block", d.block).End()
					d.block++
					d.pos = 0
					d.setState(StateSilence)
					d.next = t + PauseT
					return
				}
			}
		}
		d.next = t + d.bitT()
	}
}

// Ports returns the EAR input on port xxFE bit 6.
func (d *Deck) Ports() []*hwio.Port {
	return []*hwio.Port{{
		Name: "ear", Mask: 0x0001, Value: 0x0000,
		ReadCb: func(_ uint16, val uint8, clk int64) uint8 {
			d.Update(clk)
			if !d.level {
				val &^= 0x40
			}
			return val
		},
	}}
}
