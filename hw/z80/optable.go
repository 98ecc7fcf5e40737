package z80

type opKind uint8

const (
	opNop opKind = iota
	opExAF
	opDjnz
	opJr
	opJrCC
	opLdRPnn
	opAddHLrp
	opLdIndA // LD (BC),A / LD (DE),A
	opLdAInd // LD A,(BC) / LD A,(DE)
	opLdNNhl
	opLdHLnn
	opLdNNa
	opLdAnn
	opIncRP
	opDecRP
	opIncR
	opDecR
	opLdRn
	opRotA
	opDaa
	opCpl
	opScf
	opCcf
	opHalt
	opLdRR
	opAluR
	opAluN
	opRetCC
	opPop
	opRet
	opExx
	opJpHL
	opLdSPHL
	opJpCC
	opJp
	opOutNA
	opInAN
	opExSPHL
	opExDEHL
	opDi
	opEi
	opCallCC
	opPush
	opCall
	opRst
	opPrefixCB
	opPrefixDD
	opPrefixED
	opPrefixFD

	// CB page
	opRot
	opBit
	opRes
	opSet

	// ED page
	opInRC
	opOutCR
	opSbcHL
	opAdcHL
	opLdNNrp
	opLdRPnnInd
	opNeg
	opRetn
	opIm
	opLdIA
	opLdRA
	opLdAI
	opLdAR
	opRrd
	opRld
	opBlock
	opNopED
)

// opDesc describes one opcode of a page. y and z are the operand fields of
// the opcode (register, pair, condition or bit index depending on kind).
type opDesc struct {
	kind   opKind
	y, z   uint8
	cycles uint8 // T-states when a condition fails or a block op terminates
	extra  uint8 // added when a condition holds or a block op repeats
}

var (
	baseOps [256]opDesc
	cbOps   [256]opDesc
	edOps   [256]opDesc
)

// Interrupt mode selected by IM y.
var imModes = [8]uint8{0, 0, 1, 2, 0, 0, 1, 2}

func init() {
	for i := range 256 {
		op := uint8(i)
		baseOps[i] = decodeBase(op)
		cbOps[i] = decodeCB(op)
		edOps[i] = decodeED(op)
	}
}

func decodeBase(op uint8) opDesc {
	x, y, z := op>>6, op>>3&7, op&7
	p, q := y>>1, y&1

	d := opDesc{y: y, z: z}
	switch x {
	case 0:
		switch z {
		case 0:
			switch y {
			case 0:
				d.kind, d.cycles = opNop, 4
			case 1:
				d.kind, d.cycles = opExAF, 4
			case 2:
				d.kind, d.cycles, d.extra = opDjnz, 8, 5
			case 3:
				d.kind, d.cycles = opJr, 12
			default:
				d.kind, d.cycles, d.extra = opJrCC, 7, 5
			}
		case 1:
			if q == 0 {
				d.kind, d.cycles = opLdRPnn, 10
			} else {
				d.kind, d.cycles = opAddHLrp, 11
			}
		case 2:
			switch {
			case p < 2 && q == 0:
				d.kind, d.cycles = opLdIndA, 7
			case p < 2:
				d.kind, d.cycles = opLdAInd, 7
			case p == 2 && q == 0:
				d.kind, d.cycles = opLdNNhl, 16
			case p == 2:
				d.kind, d.cycles = opLdHLnn, 16
			case q == 0:
				d.kind, d.cycles = opLdNNa, 13
			default:
				d.kind, d.cycles = opLdAnn, 13
			}
		case 3:
			if q == 0 {
				d.kind, d.cycles = opIncRP, 6
			} else {
				d.kind, d.cycles = opDecRP, 6
			}
		case 4, 5:
			d.kind, d.cycles = opIncR, 4
			if z == 5 {
				d.kind = opDecR
			}
			if y == 6 {
				d.cycles = 11
			}
		case 6:
			d.kind, d.cycles = opLdRn, 7
			if y == 6 {
				d.cycles = 10
			}
		case 7:
			switch y {
			case 4:
				d.kind = opDaa
			case 5:
				d.kind = opCpl
			case 6:
				d.kind = opScf
			case 7:
				d.kind = opCcf
			default:
				d.kind = opRotA
			}
			d.cycles = 4
		}
	case 1:
		d.kind, d.cycles = opLdRR, 4
		if y == 6 && z == 6 {
			d.kind = opHalt
		} else if y == 6 || z == 6 {
			d.cycles = 7
		}
	case 2:
		d.kind, d.cycles = opAluR, 4
		if z == 6 {
			d.cycles = 7
		}
	case 3:
		switch z {
		case 0:
			d.kind, d.cycles, d.extra = opRetCC, 5, 6
		case 1:
			switch {
			case q == 0:
				d.kind, d.cycles = opPop, 10
			case p == 0:
				d.kind, d.cycles = opRet, 10
			case p == 1:
				d.kind, d.cycles = opExx, 4
			case p == 2:
				d.kind, d.cycles = opJpHL, 4
			default:
				d.kind, d.cycles = opLdSPHL, 6
			}
		case 2:
			d.kind, d.cycles = opJpCC, 10
		case 3:
			switch y {
			case 0:
				d.kind, d.cycles = opJp, 10
			case 1:
				d.kind = opPrefixCB
			case 2:
				d.kind, d.cycles = opOutNA, 11
			case 3:
				d.kind, d.cycles = opInAN, 11
			case 4:
				d.kind, d.cycles = opExSPHL, 19
			case 5:
				d.kind, d.cycles = opExDEHL, 4
			case 6:
				d.kind, d.cycles = opDi, 4
			case 7:
				d.kind, d.cycles = opEi, 4
			}
		case 4:
			d.kind, d.cycles, d.extra = opCallCC, 10, 7
		case 5:
			switch {
			case q == 0:
				d.kind, d.cycles = opPush, 11
			case p == 0:
				d.kind, d.cycles = opCall, 17
			case p == 1:
				d.kind = opPrefixDD
			case p == 2:
				d.kind = opPrefixED
			default:
				d.kind = opPrefixFD
			}
		case 6:
			d.kind, d.cycles = opAluN, 7
		case 7:
			d.kind, d.cycles = opRst, 11
		}
	}
	return d
}

// CB page cycles include both opcode fetches.
func decodeCB(op uint8) opDesc {
	x, y, z := op>>6, op>>3&7, op&7
	d := opDesc{y: y, z: z, cycles: 8}
	switch x {
	case 0:
		d.kind = opRot
	case 1:
		d.kind = opBit
	case 2:
		d.kind = opRes
	case 3:
		d.kind = opSet
	}
	if z == 6 {
		d.cycles = 15
		if x == 1 {
			d.cycles = 12
		}
	}
	return d
}

// ED page cycles include both opcode fetches. Holes execute as an 8 T NOP.
func decodeED(op uint8) opDesc {
	x, y, z := op>>6, op>>3&7, op&7
	q := y & 1

	d := opDesc{kind: opNopED, y: y, z: z, cycles: 8}
	switch x {
	case 1:
		switch z {
		case 0:
			d.kind, d.cycles = opInRC, 12
		case 1:
			d.kind, d.cycles = opOutCR, 12
		case 2:
			d.kind, d.cycles = opSbcHL, 15
			if q == 1 {
				d.kind = opAdcHL
			}
		case 3:
			d.kind, d.cycles = opLdNNrp, 20
			if q == 1 {
				d.kind = opLdRPnnInd
			}
		case 4:
			d.kind = opNeg
		case 5:
			d.kind, d.cycles = opRetn, 14
		case 6:
			d.kind = opIm
		case 7:
			switch y {
			case 0:
				d.kind, d.cycles = opLdIA, 9
			case 1:
				d.kind, d.cycles = opLdRA, 9
			case 2:
				d.kind, d.cycles = opLdAI, 9
			case 3:
				d.kind, d.cycles = opLdAR, 9
			case 4:
				d.kind, d.cycles = opRrd, 18
			case 5:
				d.kind, d.cycles = opRld, 18
			}
		}
	case 2:
		if z <= 3 && y >= 4 {
			d.kind, d.cycles = opBlock, 16
			if y >= 6 {
				d.extra = 5
			}
		}
	}
	return d
}
