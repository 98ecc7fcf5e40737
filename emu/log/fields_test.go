package log

import (
	"bytes"
	"errors"
	"testing"

	"speccy/hw/hwdefs"
)

type bank int

func (b bank) String() string { return "bank" + string(rune('0'+b)) }

func TestZFieldValue(t *testing.T) {
	tests := []struct {
		name string
		f    ZField
		want string
	}{
		{"bool", ZField{Type: FieldTypeBool, Boolean: true}, "true"},
		{"string", ZField{Type: FieldTypeString, Text: "trdos"}, "trdos"},
		{"negative int", ZField{Type: FieldTypeInt, Integer: ^uint64(0)}, "-1"},
		{"uint", ZField{Type: FieldTypeUint, Integer: 7}, "7"},
		{"register", ZField{Type: FieldTypeHex8, Integer: 0x1F}, "1F"},
		{"port", ZField{Type: FieldTypeHex16, Integer: 0x7FFD}, "7FFD"},
		{"clock", ZField{Type: FieldTypeClock, Integer: 3*hwdefs.FrameT + 1234}, "3:1234"},
		{"id field", ZField{Type: FieldTypeBytes, Bytes: []byte{4, 0, 1, 1}}, "04 00 01 01"},
		{"long run", ZField{Type: FieldTypeBytes, Bytes: bytes.Repeat([]byte{0xE5}, 20)},
			"E5 E5 E5 E5 E5 E5 E5 E5 E5 E5 E5 E5 E5 E5 E5 E5 +4"},
		{"error", ZField{Type: FieldTypeError, Err: errors.New("no disk")}, "no disk"},
		{"nil error", ZField{Type: FieldTypeError}, "<nil>"},
		{"stringer", ZField{Type: FieldTypeStringer, Stringer: bank(5)}, "bank5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Value(); got != tt.want {
				t.Errorf("Value() = %q, want %q", got, tt.want)
			}
		})
	}
}
