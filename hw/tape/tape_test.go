package tape

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/go-cmp/cmp"

	"speccy/hw/hwdefs"
	"speccy/hw/hwio"
)

func tapImage(blocks ...[]byte) []byte {
	var out []byte
	for _, b := range blocks {
		out = binary.LittleEndian.AppendUint16(out, uint16(len(b)))
		out = append(out, b...)
	}
	return out
}

func mustTAP(t *testing.T, blocks ...[]byte) *Tape {
	t.Helper()
	tp, err := LoadTAP(tapImage(blocks...))
	if err != nil {
		t.Fatal(err)
	}
	return tp
}

type edge struct {
	level bool
	t     int64
}

// run plays the deck in small steps until it stops, recording the state
// sequence and the edges.
func run(t *testing.T, d *Deck) ([]State, []edge) {
	t.Helper()
	var edges []edge
	d.OnEdge = func(level bool, clk int64) { edges = append(edges, edge{level, clk}) }
	states := []State{d.State()}
	d.Play()
	for clk := int64(0); d.State() != StateStop; clk += 100 {
		if clk > 60*hwdefs.CPUClock {
			t.Fatalf("deck never stopped (state %v)", d.State())
		}
		d.Update(clk)
		if s := d.State(); s != states[len(states)-1] {
			states = append(states, s)
		}
	}
	return states, edges
}

func TestBlockSequence(t *testing.T) {
	d := New()
	d.Insert(mustTAP(t, []byte{0x00}))
	states, edges := run(t, d)

	want := []State{StateStop, StateSilence, StatePilot, StateSync1, StateSync2, StateData, StateSilence, StateStop}
	if diff := cmp.Diff(want, states); diff != "" {
		t.Errorf("states (-want +got):\n%s", diff)
	}

	// one edge per pulse boundary
	if got, want := len(edges), PilotHeader+2+16; got != want {
		t.Fatalf("edges = %d, want %d", got, want)
	}
	for i := 1; i < len(edges); i++ {
		if edges[i].level == edges[i-1].level {
			t.Fatalf("edge %d does not toggle the latch", i)
		}
	}
	if got, want := edges[0].t, int64(leadT+PilotT); got != want {
		t.Errorf("first edge at %d, want %d", got, want)
	}
	end := int64(leadT + PilotHeader*PilotT + Sync1T + Sync2T + 16*Bit0T)
	if got := edges[len(edges)-1].t; got != end {
		t.Errorf("last edge at %d, want %d", got, end)
	}
}

func TestBitWidths(t *testing.T) {
	d := New()
	d.Insert(mustTAP(t, []byte{0xC0}))
	_, edges := run(t, d)
	if len(edges) != PilotData+2+16 {
		t.Fatalf("edges = %d", len(edges))
	}

	var got []int64
	data := edges[PilotData+1:]
	for i := 1; i < len(data); i++ {
		got = append(got, data[i].t-data[i-1].t)
	}
	var want []int64
	for range 4 {
		want = append(want, Bit1T)
	}
	for range 12 {
		want = append(want, Bit0T)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pulse widths (-want +got):\n%s", diff)
	}
	sync := edges[PilotData].t - edges[PilotData-1].t
	if sync != Sync1T {
		t.Errorf("sync1 = %d", sync)
	}
}

func TestMultipleBlocks(t *testing.T) {
	d := New()
	d.Insert(mustTAP(t, []byte{0x00}, []byte{}, []byte{0xFF, 0x01}))
	_, edges := run(t, d)
	want := PilotHeader + 2 + 16 + PilotData + 2 + 32
	if len(edges) != want {
		t.Errorf("edges = %d, want %d", len(edges), want)
	}
	if d.Block() != 3 {
		t.Errorf("block = %d after the end", d.Block())
	}
}

func TestStopRewind(t *testing.T) {
	d := New()
	d.Play()
	if d.State() != StateStop {
		t.Errorf("playing without a tape")
	}

	d.Insert(mustTAP(t, []byte{0x00}, []byte{0xFF}))
	d.Play()
	d.Update(leadT + 10*PilotT + 1)
	if d.State() != StatePilot {
		t.Fatalf("state = %v", d.State())
	}
	d.Stop()
	lvl := d.Level()
	d.Update(leadT + 100*PilotT)
	if d.Level() != lvl {
		t.Errorf("stopped deck produced edges")
	}

	d.Rewind()
	if d.Block() != 0 || d.State() != StateStop {
		t.Errorf("rewind: block %d state %v", d.Block(), d.State())
	}
}

func TestEarPort(t *testing.T) {
	d := New()
	bus := hwio.NewPortBus("test")
	for _, p := range d.Ports() {
		bus.Map(p)
	}
	if got := bus.In(0x7FFE, 0); got != 0xBF {
		t.Errorf("EAR low: %02x", got)
	}

	d.Insert(mustTAP(t, []byte{0x00}))
	d.Play()
	if got := bus.In(0xFEFE, leadT+PilotT); got != 0xFF {
		t.Errorf("EAR high after first edge: %02x", got)
	}
	if got := bus.In(0x00FF, leadT+PilotT); got != 0xFF {
		t.Errorf("odd port read: %02x", got)
	}
}

func TestLoadTAPErrors(t *testing.T) {
	for name, buf := range map[string][]byte{
		"length":  {0x05},
		"block":   {0x05, 0x00, 1, 2, 3},
		"trailer": append(tapImage([]byte{1, 2}), 0x10),
	} {
		if _, err := LoadTAP(buf); !errors.Is(err, hwdefs.ErrFormat) {
			t.Errorf("%s: err = %v", name, err)
		}
	}

	tp, err := LoadTAP(nil)
	if err != nil || tp.NumBlocks() != 0 {
		t.Errorf("empty tape: %v", err)
	}
}

func TestBlocks(t *testing.T) {
	hdr := make([]byte, 19)
	hdr[1] = 3
	copy(hdr[2:12], "screen    ")
	binary.LittleEndian.PutUint16(hdr[12:], 6912)
	binary.LittleEndian.PutUint16(hdr[14:], 16384)
	binary.LittleEndian.PutUint16(hdr[16:], 32768)
	for _, v := range hdr[:18] {
		hdr[18] ^= v
	}
	tp := mustTAP(t, hdr, []byte{0xFF, 0x12, 0x34})

	want := []Block{
		{Index: 0, Flag: 0, Length: 19, ChecksumOK: true, Header: &Header{
			Type: 3, Name: "screen", Length: 6912, Param1: 16384, Param2: 32768,
		}},
		{Index: 1, Flag: 0xFF, Length: 3, ChecksumOK: false},
	}
	if diff := cmp.Diff(want, tp.Blocks()); diff != "" {
		t.Errorf("blocks (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(tapImage(hdr, []byte{0xFF, 0x12, 0x34}), tp.TAP()); diff != "" {
		t.Errorf("TAP (-want +got):\n%s", diff)
	}
}

func square(n, period, amp int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = amp
		if (i/period)%2 == 1 {
			out[i] = -amp
		}
	}
	return out
}

func TestPCM(t *testing.T) {
	// 35kHz: 100 T per sample
	path := filepath.Join(t.TempDir(), "tape.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, 35000, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 35000},
		Data:           square(80, 10, 12000),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	tp, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !tp.IsPCM() || tp.Name != "tape.wav" {
		t.Fatalf("not a PCM tape: %+v", tp)
	}
	want := []int64{1000, 1000, 1000, 1000, 1000, 1000, 1000}
	if diff := cmp.Diff(want, tp.pulses); diff != "" {
		t.Errorf("pulses (-want +got):\n%s", diff)
	}

	d := New()
	d.Insert(tp)
	states, edges := run(t, d)
	if diff := cmp.Diff([]State{StateStop, StatePulses, StateStop}, states); diff != "" {
		t.Errorf("states (-want +got):\n%s", diff)
	}
	if len(edges) != len(want) || edges[len(edges)-1].t != 7000 {
		t.Errorf("edges: %v", edges)
	}
}

func TestPCMErrors(t *testing.T) {
	if _, err := pcmTape(make([]float32, 100), 44100); !errors.Is(err, hwdefs.ErrFormat) {
		t.Errorf("silent: err = %v", err)
	}
	if _, err := LoadWAV([]byte("RIFF garbage")); !errors.Is(err, hwdefs.ErrFormat) {
		t.Errorf("garbage wav: err = %v", err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFile(filepath.Join(dir, "missing.tap")); !errors.Is(err, hwdefs.ErrIO) {
		t.Errorf("missing: err = %v", err)
	}
	path := filepath.Join(dir, "tape.tzx")
	if err := os.WriteFile(path, []byte("ZXTape!"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); !errors.Is(err, hwdefs.ErrFormat) {
		t.Errorf("unknown extension: err = %v", err)
	}
}
