package sound

// volumes maps a 4-bit AY level to an output amplitude (x10000).
var volumes = [16]int{
	0, 100, 145, 211, 307, 455, 645, 1074,
	1266, 2050, 2922, 3728, 4925, 6353, 8056, 10000,
}

// envShapes holds the 32 levels of each envelope shape: the first 16 are
// the first ramp, the last 16 what follows it. Shapes that do not repeat
// stay on their last step.
var envShapes [16][32]uint8

// envRepeats reports whether a shape loops over its 32 steps.
var envRepeats [16]bool

func init() {
	down := func(i int) uint8 { return uint8(15 - i) }
	up := func(i int) uint8 { return uint8(i) }
	zero := func(int) uint8 { return 0 }
	top := func(int) uint8 { return 15 }

	shape := func(first, second func(int) uint8) (s [32]uint8) {
		for i := range 16 {
			s[i] = first(i)
			s[16+i] = second(i)
		}
		return s
	}

	for sh := range 16 {
		switch {
		case sh < 4, sh == 9: // \___
			envShapes[sh] = shape(down, zero)
		case sh < 8, sh == 15: // /___
			envShapes[sh] = shape(up, zero)
		case sh == 8: // \\\\
			envShapes[sh] = shape(down, down)
		case sh == 10: // \/\/
			envShapes[sh] = shape(down, up)
		case sh == 11: // \¯¯¯
			envShapes[sh] = shape(down, top)
		case sh == 12: // ////
			envShapes[sh] = shape(up, up)
		case sh == 13: // /¯¯¯
			envShapes[sh] = shape(up, top)
		case sh == 14: // /\/\
			envShapes[sh] = shape(up, down)
		}
		envRepeats[sh] = sh == 8 || sh == 10 || sh == 12 || sh == 14
	}
}

// MixerMode selects the stereo placement of the three AY channels.
type MixerMode uint8

const (
	MixABC MixerMode = iota
	MixACB
	MixMono
)

func (m MixerMode) String() string {
	switch m {
	case MixACB:
		return "acb"
	case MixMono:
		return "mono"
	}
	return "abc"
}

// ParseMixerMode parses "abc", "acb" or "mono".
func ParseMixerMode(s string) (MixerMode, bool) {
	switch s {
	case "abc", "ABC", "":
		return MixABC, true
	case "acb", "ACB":
		return MixACB, true
	case "mono":
		return MixMono, true
	}
	return MixABC, false
}

// panning returns the left/right weights (percent) of channels A, B, C.
func panning(m MixerMode) [3][2]int {
	switch m {
	case MixACB:
		return [3][2]int{{100, 15}, {15, 100}, {70, 70}}
	case MixMono:
		return [3][2]int{{100, 100}, {100, 100}, {100, 100}}
	}
	return [3][2]int{{100, 15}, {70, 70}, {15, 100}}
}
