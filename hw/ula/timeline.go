package ula

import "speccy/hw/hwdefs"

// Pentagon raster geometry, in T-states and scanlines from the start of the
// frame (the interrupt).
const (
	PaperLine   = 80  // first line of paper
	PaperT      = 68  // T of the first paper cell on a line
	PaperLines  = 192 // lines of paper
	PaperCells  = 32  // 8-pixel cells per paper line
	BorderLines = 24  // visible border lines above and below paper
	BorderT     = 16  // visible border T-states left and right of paper

	FirstLine = PaperLine - BorderLines
	LastLine  = PaperLine + PaperLines + BorderLines // exclusive

	// Frame buffer size in pixels, 2 pixels per T-state.
	Width  = 2 * (BorderT + 4*PaperCells + BorderT)
	Height = LastLine - FirstLine
)

type segment struct {
	start, end int64 // frame T-states
	paper      bool
	x, y       int // frame buffer position of start
	line       int // paper line, for paper segments
}

// buildTimeline lists the visible parts of a frame in raster order.
func buildTimeline() []segment {
	var tl []segment
	for line := FirstLine; line < LastLine; line++ {
		base := int64(line * hwdefs.LineT)
		y := line - FirstLine
		left := int64(PaperT - BorderT)
		right := int64(PaperT + 4*PaperCells + BorderT)

		if line < PaperLine || line >= PaperLine+PaperLines {
			tl = append(tl, segment{start: base + left, end: base + right, y: y})
			continue
		}
		paperEnd := int64(PaperT + 4*PaperCells)
		tl = append(tl,
			segment{start: base + left, end: base + PaperT, y: y},
			segment{start: base + PaperT, end: base + paperEnd, paper: true, x: 2 * BorderT, y: y, line: line - PaperLine},
			segment{start: base + paperEnd, end: base + right, x: 2 * (BorderT + 4*PaperCells), y: y},
		)
	}

	// the timeline must be ordered and inside the frame
	var last int64
	for _, s := range tl {
		if s.start < last || s.end <= s.start || s.end > hwdefs.FrameT {
			panic("ula: malformed timeline")
		}
		last = s.end
	}
	return tl
}

// bitmapAddr returns the offset in the video page of the bitmap byte of
// paper line y (0-191), cell c (0-31).
func bitmapAddr(y, c int) int {
	return (y&0xC0)<<5 | (y&0x07)<<8 | (y&0x38)<<2 | c
}

// attrAddr returns the offset in the video page of the attribute of paper
// line y, cell c.
func attrAddr(y, c int) int {
	return 0x1800 + (y>>3)*PaperCells + c
}
