package z80

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-faster/jx"

	"speccy/tests"
)

type sstState struct {
	regs map[string]int
	ram  [][2]int
}

type sstPort struct {
	port uint16
	val  uint8
	dir  string
}

type sstTest struct {
	name    string
	initial sstState
	final   sstState
	ncycles int
	ports   []sstPort
}

func decodeSSTState(d *jx.Decoder) (sstState, error) {
	st := sstState{regs: map[string]int{}}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "ram" {
			v, err := d.Int()
			st.regs[key] = v
			return err
		}
		return d.Arr(func(d *jx.Decoder) error {
			var pair [2]int
			i := 0
			err := d.Arr(func(d *jx.Decoder) error {
				v, err := d.Int()
				if i < 2 {
					pair[i] = v
				}
				i++
				return err
			})
			st.ram = append(st.ram, pair)
			return err
		})
	})
	return st, err
}

func decodeSSTFile(buf []byte) ([]sstTest, error) {
	var all []sstTest
	err := jx.DecodeBytes(buf).Arr(func(d *jx.Decoder) error {
		var tt sstTest
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "name":
				tt.name, err = d.Str()
			case "initial":
				tt.initial, err = decodeSSTState(d)
			case "final":
				tt.final, err = decodeSSTState(d)
			case "cycles":
				err = d.Arr(func(d *jx.Decoder) error {
					tt.ncycles++
					return d.Skip()
				})
			case "ports":
				err = d.Arr(func(d *jx.Decoder) error {
					var p sstPort
					i := 0
					err := d.Arr(func(d *jx.Decoder) error {
						defer func() { i++ }()
						switch i {
						case 0:
							v, err := d.Int()
							p.port = uint16(v)
							return err
						case 1:
							v, err := d.Int()
							p.val = uint8(v)
							return err
						}
						s, err := d.Str()
						p.dir = s
						return err
					})
					tt.ports = append(tt.ports, p)
					return err
				})
			default:
				err = d.Skip()
			}
			return err
		})
		all = append(all, tt)
		return err
	})
	return all, err
}

// sstIO replays the port reads of a test.
type sstIO struct {
	ports []sstPort
}

func (io *sstIO) In(port uint16, clk int64) uint8 {
	for i, p := range io.ports {
		if p.dir == "r" && p.port == port {
			io.ports = append(io.ports[:i], io.ports[i+1:]...)
			return p.val
		}
	}
	return 0xFF
}

func (io *sstIO) Out(port uint16, val uint8, clk int64) {}

func (st *sstState) apply(cpu *CPU, mem *flatMem) {
	r := st.regs
	cpu.PC = uint16(r["pc"])
	cpu.SP = uint16(r["sp"])
	cpu.AF = Reg16(r["a"]<<8 | r["f"])
	cpu.BC = Reg16(r["b"]<<8 | r["c"])
	cpu.DE = Reg16(r["d"]<<8 | r["e"])
	cpu.HL = Reg16(r["h"]<<8 | r["l"])
	cpu.AltAF = Reg16(r["af_"])
	cpu.AltBC = Reg16(r["bc_"])
	cpu.AltDE = Reg16(r["de_"])
	cpu.AltHL = Reg16(r["hl_"])
	cpu.IX = Reg16(r["ix"])
	cpu.IY = Reg16(r["iy"])
	cpu.I = uint8(r["i"])
	cpu.SetRefreshR(uint8(r["r"]))
	cpu.MemPtr = uint16(r["wz"])
	cpu.IM = uint8(r["im"])
	cpu.IFF1 = r["iff1"] != 0
	cpu.IFF2 = r["iff2"] != 0
	for _, kv := range st.ram {
		mem[kv[0]] = uint8(kv[1])
	}
}

// ignoredFlags lists, per test file, the F bits whose upstream values depend
// on internal state not modelled here (Q register, repeat-time X/Y leakage).
var ignoredFlags = map[string]uint8{
	"37":    Flag5 | Flag3,
	"3f":    Flag5 | Flag3,
	"ed b0": Flag5 | Flag3,
	"ed b1": Flag5 | Flag3,
	"ed b8": Flag5 | Flag3,
	"ed b9": Flag5 | Flag3,
	"ed b2": Flag5 | Flag3 | FlagH | FlagPV,
	"ed b3": Flag5 | Flag3 | FlagH | FlagPV,
	"ed ba": Flag5 | Flag3 | FlagH | FlagPV,
	"ed bb": Flag5 | Flag3 | FlagH | FlagPV,
}

func TestSingleStep(t *testing.T) {
	if os.Getenv("SPECCY_SST") == "" {
		t.Skip("set SPECCY_SST=1 to run the SingleStepTests suite")
	}

	dir := tests.SingleStepTestsPath(t)
	for _, name := range tests.SingleStepTestNames() {
		if name == "76" {
			// HALT: PC handling differs, covered by TestHaltAndIM1.
			continue
		}
		path := filepath.Join(dir, name+".json")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			testSingleStepFile(t, name, path)
		})
	}
}

func testSingleStepFile(t *testing.T, name, path string) {
	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	all, err := decodeSSTFile(buf)
	if err != nil {
		t.Fatalf("decoding %s: %s", path, err)
	}

	fmask := ^ignoredFlags[name]
	for _, tt := range all {
		mem := new(flatMem)
		io := &sstIO{ports: tt.ports}
		cpu := New(mem, io)
		tt.initial.apply(cpu, mem)
		cpu.Step()

		want := New(new(flatMem), io)
		finalMem := new(flatMem)
		tt.final.apply(want, finalMem)

		errs := ""
		check := func(reg string, got, want int) {
			if got != want {
				errs += fmt.Sprintf(" %s=%04x(want %04x)", reg, got, want)
			}
		}
		check("AF", int(cpu.AF)&(0xFF00|int(fmask)), int(want.AF)&(0xFF00|int(fmask)))
		check("BC", int(cpu.BC), int(want.BC))
		check("DE", int(cpu.DE), int(want.DE))
		check("HL", int(cpu.HL), int(want.HL))
		check("IX", int(cpu.IX), int(want.IX))
		check("IY", int(cpu.IY), int(want.IY))
		check("SP", int(cpu.SP), int(want.SP))
		check("PC", int(cpu.PC), int(want.PC))
		check("WZ", int(cpu.MemPtr), int(want.MemPtr))
		check("R", int(cpu.RefreshR()), int(want.RefreshR()))
		check("I", int(cpu.I), int(want.I))
		check("AF'", int(cpu.AltAF), int(want.AltAF))
		check("T", int(cpu.T), tt.ncycles)
		for _, kv := range tt.final.ram {
			check(fmt.Sprintf("[%04x]", kv[0]), int(mem[kv[0]]), kv[1])
		}
		if errs != "" {
			t.Fatalf("%s:%s", tt.name, errs)
		}
	}
}
