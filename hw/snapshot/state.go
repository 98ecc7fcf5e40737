// Package snapshot encodes and decodes machine state as .z80 snapshots.
package snapshot

import (
	"speccy/hw/hwdefs"
	"speccy/hw/z80"
)

// Model is the hardware variant a snapshot was taken on.
type Model uint8

const (
	Model48K Model = iota
	Model128K
)

func (m Model) String() string {
	if m == Model128K {
		return "128K"
	}
	return "48K"
}

// P7FFD48K is the paging latch of a 128K machine running as a 48K one: RAM0
// at 0xC000, 48 BASIC ROM, paging locked.
const P7FFD48K = 0x30

// State is the machine state held by a snapshot.
type State struct {
	Model Model
	Regs  z80.Regs

	P7FFD  uint8 // paging latch, P7FFD48K for 48K snapshots
	Border uint8

	AYSel uint8
	AY    [16]uint8

	// RAM pages, nil when the model does not have them (48K: only 0, 2 and
	// 5 are present).
	RAM [hwdefs.NumRAM][]byte
}

// NewState returns a zeroed state with the RAM pages of model allocated.
func NewState(model Model) *State {
	s := &State{Model: model}
	for _, n := range model.pages() {
		s.RAM[n] = make([]byte, hwdefs.PageSize)
	}
	if model == Model48K {
		s.P7FFD = P7FFD48K
	}
	return s
}

func (m Model) pages() []int {
	if m == Model128K {
		return []int{0, 1, 2, 3, 4, 5, 6, 7}
	}
	return []int{5, 2, 0}
}

// File page numbers of the RAM pages. 48K files number the pages by their
// address (8: 0x4000, 4: 0x8000, 5: 0xC000).
var (
	pageOf48K  = map[int]uint8{5: 8, 2: 4, 0: 5}
	pageOf128K = map[int]uint8{0: 3, 1: 4, 2: 5, 3: 6, 4: 7, 5: 8, 6: 9, 7: 10}
)

// ramIndex returns the RAM page stored under file page p, or -1 if p is
// not valid for the model.
func (m Model) ramIndex(p uint8) int {
	table := pageOf48K
	if m == Model128K {
		table = pageOf128K
	}
	for n, fp := range table {
		if fp == p {
			return n
		}
	}
	return -1
}

func (m Model) filePage(n int) uint8 {
	if m == Model128K {
		return pageOf128K[n]
	}
	return pageOf48K[n]
}
