package z80

import (
	"bytes"
	"strings"
	"testing"
)

func TestTraceFormat(t *testing.T) {
	want := []string{
		`0000  3E 32 06 01  AF:FFFF BC:0000 DE:0000 HL:0000 IX:0000 IY:0000 SP:FFFF T:0`,
		`0002  06 01 00 00  AF:32FF BC:0000 DE:0000 HL:0000 IX:0000 IY:0000 SP:FFFF T:7`,
	}

	cpu, _, _ := loadCPUWith(t, `0000: 3e 32 06 01`)
	var out bytes.Buffer
	cpu.SetTraceOutput(&out)
	cpu.Step()
	cpu.Step()

	wantstr := strings.Join(want, "\n") + "\n"
	if out.String() != wantstr {
		t.Fatalf("trace differs\ngot:\n%s\nwant:\n%s\n", out.String(), wantstr)
	}

	out.Reset()
	cpu.SetTraceOutput(nil)
	cpu.Step()
	if out.Len() != 0 {
		t.Errorf("trace written after being disabled")
	}
}

func BenchmarkTrace(b *testing.B) {
	cpu, _, _ := loadCPUWith(b, `0000: 00`)
	var out bytes.Buffer
	cpu.SetTraceOutput(&out)
	for range b.N {
		cpu.PC = 0
		cpu.Step()
		out.Reset()
	}
}
