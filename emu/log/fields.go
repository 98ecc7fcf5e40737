package log

import (
	"fmt"
	"strconv"
	"strings"

	"speccy/hw/hwdefs"
)

type FieldType uint8

const (
	FieldTypeUnknown FieldType = iota
	FieldTypeBool
	FieldTypeString
	FieldTypeInt
	FieldTypeUint
	FieldTypeHex8  // data byte or 8-bit register
	FieldTypeHex16 // address, port or register pair
	FieldTypeClock // absolute T-state
	FieldTypeBytes // short byte run: opcode, ID field
	FieldTypeError
	FieldTypeStringer
)

// maxBytes caps the bytes shown by a FieldTypeBytes field.
const maxBytes = 16

// ZField is a typed log field. Integer holds every numeric type.
type ZField struct {
	Type FieldType
	Key  string

	Integer  uint64
	Text     string
	Bytes    []byte
	Err      error
	Stringer fmt.Stringer
	Boolean  bool
}

// Value formats the field for output. Clocks are shown as frame:T.
func (f *ZField) Value() string {
	switch f.Type {
	case FieldTypeBool:
		return strconv.FormatBool(f.Boolean)
	case FieldTypeString:
		return f.Text
	case FieldTypeInt:
		return strconv.FormatInt(int64(f.Integer), 10)
	case FieldTypeUint:
		return strconv.FormatUint(f.Integer, 10)
	case FieldTypeHex8:
		return fmt.Sprintf("%02X", uint8(f.Integer))
	case FieldTypeHex16:
		return fmt.Sprintf("%04X", uint16(f.Integer))
	case FieldTypeClock:
		t := int64(f.Integer)
		return fmt.Sprintf("%d:%d", t/hwdefs.FrameT, t%hwdefs.FrameT)
	case FieldTypeBytes:
		b := f.Bytes
		more := len(b) > maxBytes
		if more {
			b = b[:maxBytes]
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "% X", b)
		if more {
			fmt.Fprintf(&sb, " +%d", len(f.Bytes)-maxBytes)
		}
		return sb.String()
	case FieldTypeError:
		if f.Err == nil {
			return "<nil>"
		}
		return f.Err.Error()
	case FieldTypeStringer:
		return f.Stringer.String()
	}
	return ""
}
