// Package fdc implements the Beta Disk interface: a WD1793 floppy controller
// with up to four drives and the TR-DOS disk image formats.
package fdc

import (
	"fmt"

	"speccy/emu/log"
	"speccy/hw/hwdefs"
	"speccy/hw/hwio"
)

// Status register bits. Some bits have a different meaning after Type I
// commands and after Type II/III commands.
const (
	StBusy         = 0x01
	StIndex        = 0x02 // type I
	StDRQ          = 0x02 // type II/III
	StTrack0       = 0x04 // type I
	StLostData     = 0x04 // type II/III
	StCRCError     = 0x08
	StSeekError    = 0x10 // type I
	StRNF          = 0x10 // type II/III
	StHeadLoaded   = 0x20 // type I
	StWriteProtect = 0x40
	StNotReady     = 0x80
)

// System register bits (port xxFF).
const (
	SysDrive     = 0x03
	SysNoReset   = 0x04
	SysHeadLoad  = 0x08
	SysSide0     = 0x10 // 1 selects side 0
	SysDensity   = 0x40
	SysDRQ       = 0x40 // read
	SysINTRQ     = 0x80 // read
	NumDrives    = 4
	sysReadFixed = 0x3F
)

// Timings, in T-states.
const (
	msT       = hwdefs.CPUClock / 1000
	settleT   = 15 * msT
	loadT     = 15 * msT // head engage
	byteT     = 112
	rotationT = 700000 // 300 rpm
	sectorT   = rotationT / Sectors
	indexT    = 4 * msT
	rnfRevs   = 5
	idleRevs  = 15 // revolutions before an idle head unloads

	// raw bytes per track at 250 kbit/s MFM
	trackBytes = rotationT / byteT
)

var stepRates = [4]int64{6 * msT, 12 * msT, 20 * msT, 30 * msT}

type phase uint8

const (
	phIdle phase = iota
	phStep
	phVerify
	phSearch
	phRead  // data from the disk to the host
	phWrite // data from the host to the disk
)

type operation uint8

const (
	opNone operation = iota
	opReadSector
	opWriteSector
	opReadAddress
	opReadTrack
	opWriteTrack
)

type drive struct {
	disk  *Disk
	track int // head position
}

// WD1793 is the floppy controller. All its methods take the current frame
// cycle and catch up before acting.
type WD1793 struct {
	Track  hwio.Reg8
	Sector hwio.Reg8
	System hwio.Reg8
	Data   uint8
	Cmd    uint8

	status  uint8
	cmdType int
	drq     bool
	intrq   bool

	drives [NumDrives]drive
	drv    int
	side   int

	base  int64 // absolute T of the current frame start
	phase phase
	next  int64 // absolute T of the next event
	op    operation

	// type I
	dir         int
	pending     int
	stepRate    int64
	updateTrack bool
	restore     bool
	verify      bool

	hld      bool
	hldUntil int64 // absolute T the idle head unloads at

	// type II/III
	multi bool
	found bool
	buf   []byte
	pos   int
}

// New returns a controller with empty drives.
func New() *WD1793 {
	f := &WD1793{dir: 1}
	f.Track = hwio.Reg8{Name: "TRACK"}
	f.Sector = hwio.Reg8{Name: "SECTOR"}
	f.System = hwio.Reg8{Name: "SYSTEM", Value: SysNoReset | SysSide0, WriteCb: f.writeSystem}
	f.Reset()
	return f
}

// Reset aborts any command and clears the status.
func (f *WD1793) Reset() {
	f.phase = phIdle
	f.op = opNone
	f.status = 0
	f.cmdType = 1
	f.drq, f.intrq = false, false
	f.hld = false
	f.Sector.Value = 1
	f.buf = nil
}

// InsertDisk puts d in drive n, replacing any disk.
func (f *WD1793) InsertDisk(n int, d *Disk) {
	f.drives[n&3].disk = d
}

// EjectDisk removes and returns the disk of drive n.
func (f *WD1793) EjectDisk(n int) *Disk {
	d := f.drives[n&3].disk
	f.drives[n&3].disk = nil
	return d
}

// Disk returns the disk in drive n, or nil.
func (f *WD1793) Disk(n int) *Disk { return f.drives[n&3].disk }

// HeadTrack returns the head position of drive n.
func (f *WD1793) HeadTrack(n int) int { return f.drives[n&3].track }

// LoadImage loads a disk image file into drive n. On failure the drive keeps
// its previous disk.
func (f *WD1793) LoadImage(n int, path string) error {
	d, err := LoadDiskFile(path)
	if err != nil {
		log.ModFDC.WarnZ("disk load failed").Int("drive", n).Error("err", err).End()
		return err
	}
	f.InsertDisk(n, d)
	return nil
}

// SaveImage writes the disk of drive n to path.
func (f *WD1793) SaveImage(n int, path string) error {
	d := f.drives[n&3].disk
	if d == nil {
		return fmt.Errorf("drive %c: %w", 'A'+n&3, hwdefs.ErrMediaAbsent)
	}
	return SaveDiskFile(d, path)
}

func (f *WD1793) drive() *drive { return &f.drives[f.drv] }

// Busy reports whether a command is in progress.
func (f *WD1793) Busy() bool { return f.status&StBusy != 0 }

// Update runs the controller up to clk.
func (f *WD1793) Update(clk int64) {
	now := f.base + clk
	for f.phase != phIdle && now >= f.next {
		f.event()
	}
}

// FrameEnd moves the time base to the next frame.
func (f *WD1793) FrameEnd(frameT int64) {
	f.Update(frameT)
	f.base += frameT
}

func (f *WD1793) event() {
	t := f.next
	switch f.phase {
	case phStep:
		d := f.drive()
		d.track = clamp(d.track+f.dir, 0, Tracks-1)
		if f.updateTrack {
			f.Track.Value = uint8(clamp(int(f.Track.Value)+f.dir, 0, Tracks-1))
		}
		f.pending--
		if f.pending > 0 {
			f.next += f.stepRate
			return
		}
		f.endSteps(t)

	case phVerify:
		d := f.drive()
		if d.disk == nil || int(f.Track.Value) != d.track {
			f.status |= StSeekError
		}
		f.finish(t)

	case phSearch:
		if !f.found {
			f.status |= StRNF
			f.finish(t)
			return
		}
		f.pos = 0
		f.drq = false
		if f.op == opWriteSector || f.op == opWriteTrack {
			f.phase = phWrite
		} else {
			f.phase = phRead
		}

	case phRead:
		if f.drq {
			f.lostData(t)
			return
		}
		f.Data = f.buf[f.pos]
		f.drq = true
		f.next = t + byteT

	case phWrite:
		if f.drq {
			f.lostData(t)
			return
		}
		f.drq = true
		f.next = t + byteT
	}
}

func (f *WD1793) lostData(t int64) {
	log.ModFDC.DebugZ("lost data").Hex8("cmd", f.Cmd).Int("pos", f.pos).End()
	f.status |= StLostData
	f.finish(t)
}

func (f *WD1793) finish(t int64) {
	f.hldUntil = t + idleRevs*rotationT
	f.status &^= StBusy
	f.phase = phIdle
	f.op = opNone
	f.drq = false
	f.intrq = true
	f.buf = nil
	log.ModFDC.DebugZ("command end").Hex8("cmd", f.Cmd).Hex8("status", f.status).End()
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func (f *WD1793) command(cmd uint8, now int64) {
	if cmd&0xF0 == 0xD0 {
		f.forceInterrupt(cmd, now)
		return
	}
	if f.Busy() {
		log.ModFDC.DebugZ("command ignored while busy").Hex8("cmd", cmd).End()
		return
	}
	log.ModFDC.DebugZ("command").
		Hex8("cmd", cmd).
		Int("drive", f.drv).
		Hex8("track", f.Track.Value).
		Hex8("sector", f.Sector.Value).
		Clock("t", now).
		End()

	f.Cmd = cmd
	f.intrq = false
	f.drq = false
	switch {
	case cmd&0x80 == 0:
		f.typeI(cmd, now)
	case cmd&0xC0 == 0x80:
		f.typeII(cmd, now)
	default:
		f.typeIII(cmd, now)
	}
}

func (f *WD1793) typeI(cmd uint8, now int64) {
	f.cmdType = 1
	f.status = StBusy
	f.verify = cmd&0x04 != 0
	f.stepRate = stepRates[cmd&0x03]
	f.restore = false
	f.hld = cmd&0x08 != 0 || f.verify
	d := f.drive()

	switch cmd >> 4 {
	case 0x0: // restore
		f.restore = true
		f.updateTrack = false
		f.dir = -1
		f.pending = d.track
	case 0x1: // seek
		target := min(int(f.Data), Tracks-1)
		cur := int(f.Track.Value)
		f.updateTrack = true
		f.dir = 1
		if target < cur {
			f.dir = -1
		}
		f.pending = abs(target - cur)
	default:
		switch cmd >> 5 {
		case 2:
			f.dir = 1
		case 3:
			f.dir = -1
		}
		f.updateTrack = cmd&0x10 != 0
		f.pending = 1
	}

	if f.pending > 0 {
		f.phase = phStep
		f.next = now + f.stepRate
		return
	}
	f.endSteps(now)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (f *WD1793) endSteps(t int64) {
	if f.restore {
		f.Track.Value = 0
	}
	if f.verify {
		f.phase = phVerify
		f.next = t + settleT
		return
	}
	f.finish(t)
}

// loadHead engages the head for a Type II/III command and returns the delay
// before the controller looks at the disk. The E flag adds the settle time.
func (f *WD1793) loadHead(cmd uint8, now int64) int64 {
	var delay int64
	if !f.hld || now >= f.hldUntil {
		log.ModFDC.DebugZ("head load").Int("drive", f.drv).End()
		delay = loadT
	}
	f.hld = true
	if cmd&0x04 != 0 {
		delay += settleT
	}
	return delay
}

// ready checks the media of the selected drive for a Type II/III command.
func (f *WD1793) ready(write bool) bool {
	d := f.drive()
	switch {
	case d.disk == nil:
		f.status = StNotReady
	case write && d.disk.WriteProtect:
		f.status = StWriteProtect
	default:
		return true
	}
	f.intrq = true
	return false
}

func (f *WD1793) typeII(cmd uint8, now int64) {
	f.cmdType = 2
	write := cmd&0x20 != 0
	if !f.ready(write) {
		return
	}
	f.status = StBusy
	f.multi = cmd&0x10 != 0
	f.op = opReadSector
	if write {
		f.op = opWriteSector
	}
	f.searchSector(now + f.loadHead(cmd, now))
}

// searchSector waits for the requested sector to pass under the head, or
// for the RNF timeout.
func (f *WD1793) searchSector(t int64) {
	d := f.drive()
	sec := int(f.Sector.Value)
	cmp := f.Cmd&0x02 == 0 || int(f.Cmd>>3)&1 == f.side
	f.phase = phSearch
	f.found = cmp && int(f.Track.Value) == d.track && sec >= 1 && sec <= Sectors
	if !f.found {
		f.next = t + rnfRevs*rotationT
		return
	}
	f.buf = d.disk.Sector(d.track, f.side, sec)
	target := int64(sec-1) * sectorT
	f.next = t + (target-t%rotationT+rotationT)%rotationT
}

func (f *WD1793) typeIII(cmd uint8, now int64) {
	f.cmdType = 3
	write := cmd&0xF0 == 0xF0
	if !f.ready(write) {
		return
	}
	f.status = StBusy
	now += f.loadHead(cmd, now)
	d := f.drive()
	f.phase = phSearch
	f.found = true

	switch cmd & 0xF0 {
	case 0xC0:
		f.op = opReadAddress
		// next ID field under the head
		cur := now % rotationT
		sec := (cur/sectorT + 1) % Sectors
		f.next = now + (sec*sectorT-cur+rotationT)%rotationT
		f.buf = idField(d.track, f.side, int(sec)+1)
	case 0xE0:
		f.op = opReadTrack
		f.next = now + (rotationT-now%rotationT)%rotationT
		f.buf = rawTrack(d.disk, d.track, f.side)
	case 0xF0:
		f.op = opWriteTrack
		f.next = now + (rotationT-now%rotationT)%rotationT
		f.buf = make([]byte, trackBytes)
	}
}

func (f *WD1793) forceInterrupt(cmd uint8, now int64) {
	log.ModFDC.DebugZ("force interrupt").Hex8("cmd", cmd).Bool("busy", f.Busy()).End()
	if !f.Busy() {
		f.status = 0
		f.cmdType = 1
	} else {
		f.hldUntil = now + idleRevs*rotationT
	}
	f.status &^= StBusy
	f.phase = phIdle
	f.op = opNone
	f.drq = false
	f.buf = nil
	f.intrq = cmd&0x08 != 0
}

// transferDone handles the end of the buffer of a Type II/III command.
func (f *WD1793) transferDone(now int64) {
	switch f.op {
	case opWriteSector:
		f.drive().disk.Modified = true
	case opWriteTrack:
		f.formatTrack(f.buf)
		f.drive().disk.Modified = true
	case opReadAddress:
		log.ModFDC.DebugZ("id field").Bytes("id", f.buf).End()
		// the track address of the ID field
		f.Sector.Value = f.buf[0]
	}
	if (f.op == opReadSector || f.op == opWriteSector) && f.multi {
		f.Sector.Value++
		if int(f.Sector.Value) > Sectors {
			f.status |= StRNF
			f.finish(now)
			return
		}
		f.searchSector(now)
		return
	}
	f.finish(now)
}

// ReadStatus reads the status register and acknowledges the interrupt.
func (f *WD1793) ReadStatus(clk int64) uint8 {
	f.Update(clk)
	f.intrq = false
	return f.statusAt(f.base + clk)
}

func (f *WD1793) statusAt(now int64) uint8 {
	d := f.drive()
	s := f.status
	if f.cmdType == 1 {
		s &= StBusy | StCRCError | StSeekError
		if d.disk == nil {
			s |= StNotReady
		} else {
			if d.disk.WriteProtect {
				s |= StWriteProtect
			}
			if now%rotationT < indexT {
				s |= StIndex
			}
		}
		if d.track == 0 {
			s |= StTrack0
		}
		if f.System.Value&SysHeadLoad != 0 {
			s |= StHeadLoaded
		}
		return s
	}
	if f.drq {
		s |= StDRQ
	}
	if d.disk == nil {
		s |= StNotReady
	}
	return s
}

// WriteCommand issues a command.
func (f *WD1793) WriteCommand(val uint8, clk int64) {
	f.Update(clk)
	f.command(val, f.base+clk)
}

// ReadData reads the data register, acknowledging a pending read DRQ.
func (f *WD1793) ReadData(clk int64) uint8 {
	f.Update(clk)
	if f.phase == phRead && f.drq {
		f.drq = false
		f.pos++
		if f.pos == len(f.buf) {
			f.transferDone(f.base + clk)
		}
	}
	return f.Data
}

// WriteData writes the data register, feeding a pending write DRQ.
func (f *WD1793) WriteData(val uint8, clk int64) {
	f.Update(clk)
	f.Data = val
	if f.phase == phWrite && f.drq {
		f.drq = false
		f.buf[f.pos] = val
		f.pos++
		if f.pos == len(f.buf) {
			f.transferDone(f.base + clk)
		}
	}
}

// WriteTrack and WriteSector set the registers when idle.
func (f *WD1793) WriteTrack(val uint8, clk int64) {
	f.Update(clk)
	if !f.Busy() {
		f.Track.Write8(val)
	}
}

func (f *WD1793) WriteSector(val uint8, clk int64) {
	f.Update(clk)
	if !f.Busy() {
		f.Sector.Write8(val)
	}
}

// ReadSystem returns the DRQ and INTRQ lines.
func (f *WD1793) ReadSystem(clk int64) uint8 {
	f.Update(clk)
	v := uint8(sysReadFixed)
	if f.drq {
		v |= SysDRQ
	}
	if f.intrq {
		v |= SysINTRQ
	}
	return v
}

// WriteSystem writes the Beta Disk system register.
func (f *WD1793) WriteSystem(val uint8, clk int64) {
	f.Update(clk)
	f.System.Write8(val)
}

func (f *WD1793) writeSystem(old, val uint8) {
	f.drv = int(val & SysDrive)
	f.side = 1
	if val&SysSide0 != 0 {
		f.side = 0
	}
	if val&SysNoReset == 0 {
		if old&SysNoReset != 0 {
			log.ModFDC.DebugZ("controller reset").End()
		}
		f.Reset()
	}
}

// Ports returns the controller ports. They only answer while active returns
// true (the DOS ROM is paged).
func (f *WD1793) Ports(active func() bool) []*hwio.Port {
	return []*hwio.Port{
		{
			Name: "wd1793", Mask: 0x009F, Value: 0x001F, Enabled: active,
			ReadCb: func(port uint16, _ uint8, clk int64) uint8 {
				switch (port >> 5) & 3 {
				case 0:
					return f.ReadStatus(clk)
				case 1:
					f.Update(clk)
					return f.Track.Read8()
				case 2:
					f.Update(clk)
					return f.Sector.Read8()
				}
				return f.ReadData(clk)
			},
			WriteCb: func(port uint16, val uint8, clk int64) {
				switch (port >> 5) & 3 {
				case 0:
					f.WriteCommand(val, clk)
				case 1:
					f.WriteTrack(val, clk)
				case 2:
					f.WriteSector(val, clk)
				default:
					f.WriteData(val, clk)
				}
			},
		},
		{
			Name: "betasys", Mask: 0x009F, Value: 0x009F, Enabled: active,
			ReadCb: func(_ uint16, val uint8, clk int64) uint8 {
				return val & f.ReadSystem(clk)
			},
			WriteCb: func(_ uint16, val uint8, clk int64) { f.WriteSystem(val, clk) },
		},
	}
}
