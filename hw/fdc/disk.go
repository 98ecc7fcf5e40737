package fdc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"speccy/emu/log"
	"speccy/hw/hwdefs"
)

// Disk geometry of a TR-DOS disk.
const (
	Tracks     = 80
	Sides      = 2
	Sectors    = 16
	SectorSize = 256

	TrackSize = Sectors * SectorSize
	TRDSize   = Tracks * Sides * TrackSize // 655360

	// logical sectors available to files: all tracks but the first one
	dataSectors = (Tracks*Sides - 1) * Sectors
)

// System sector (sector 9 of track 0) fields.
const (
	sysSector       = 8 // 0-based
	sysFirstSector  = 0xE1
	sysFirstTrack   = 0xE2
	sysDiskType     = 0xE3
	sysFileCount    = 0xE4
	sysFreeSectors  = 0xE5 // 2 bytes LE
	sysTRDOSID      = 0xE7
	sysDeletedFiles = 0xF4
	sysLabel        = 0xF5 // 8 bytes

	diskType80DS = 0x16
	trdosID      = 0x10
)

const (
	maxFiles   = 128
	entrySize  = 16
	sclEntry   = 14
	sclMagic   = "SINCLAIR"
	deletedTag = 0x01
)

// Disk is a double-sided 80 track disk in TRD layout: logical track
// track*2+side, 16 sectors of 256 bytes each.
type Disk struct {
	data         []byte
	WriteProtect bool
	Modified     bool
}

// NewDisk returns a formatted empty disk with the given label.
func NewDisk(label string) *Disk {
	d := &Disk{data: make([]byte, TRDSize)}
	d.format(label)
	return d
}

func (d *Disk) format(label string) {
	sys := d.sector(0, sysSector)
	sys[sysFirstSector] = 0
	sys[sysFirstTrack] = 1
	sys[sysDiskType] = diskType80DS
	sys[sysFileCount] = 0
	binary.LittleEndian.PutUint16(sys[sysFreeSectors:], dataSectors)
	sys[sysTRDOSID] = trdosID
	sys[sysDeletedFiles] = 0
	copy(sys[sysLabel:sysLabel+8], padName(label))
}

func padName(s string) []byte {
	b := bytes.Repeat([]byte{' '}, 8)
	copy(b, s)
	return b
}

// sector returns logical sector sec (0-based) of logical track lt.
func (d *Disk) sector(lt, sec int) []byte {
	off := (lt*Sectors + sec) * SectorSize
	return d.data[off : off+SectorSize]
}

// Sector returns the bytes of sector (1-16) on the given physical track
// and side, or nil if out of range.
func (d *Disk) Sector(track, side, sector int) []byte {
	if track < 0 || track >= Tracks || side < 0 || side >= Sides || sector < 1 || sector > Sectors {
		return nil
	}
	return d.sector(track*Sides+side, sector-1)
}

// LoadTRD decodes a raw TRD image. The image must hold the full disk.
func LoadTRD(buf []byte) (*Disk, error) {
	if len(buf) != TRDSize {
		return nil, fmt.Errorf("%w: trd size %d, want %d", hwdefs.ErrFormat, len(buf), TRDSize)
	}
	d := &Disk{data: make([]byte, TRDSize)}
	copy(d.data, buf)
	return d, nil
}

// LoadSCL expands an SCL archive into a TRD layout, building the catalog
// and the system sector.
func LoadSCL(buf []byte) (*Disk, error) {
	if len(buf) < len(sclMagic)+1 || string(buf[:len(sclMagic)]) != sclMagic {
		return nil, fmt.Errorf("%w: bad scl signature", hwdefs.ErrFormat)
	}
	nfiles := int(buf[len(sclMagic)])
	if nfiles > maxFiles {
		return nil, fmt.Errorf("%w: scl has %d files", hwdefs.ErrFormat, nfiles)
	}
	hdr := len(sclMagic) + 1
	if len(buf) < hdr+nfiles*sclEntry {
		return nil, fmt.Errorf("%w: scl catalog truncated", hwdefs.ErrFormat)
	}

	d := NewDisk("")
	payload := hdr + nfiles*sclEntry
	next := Sectors // first free logical sector, track 1 sector 0
	for i := range nfiles {
		e := buf[hdr+i*sclEntry : hdr+(i+1)*sclEntry]
		nsec := int(e[13])
		if next+nsec > Tracks*Sides*Sectors {
			return nil, fmt.Errorf("%w: scl content exceeds disk capacity", hwdefs.ErrFormat)
		}
		size := nsec * SectorSize
		if len(buf) < payload+size {
			return nil, fmt.Errorf("%w: scl file %d truncated", hwdefs.ErrFormat, i)
		}
		copy(d.data[next*SectorSize:], buf[payload:payload+size])
		payload += size

		ent := d.data[i*entrySize : (i+1)*entrySize]
		copy(ent, e[:13])
		ent[13] = e[13]
		ent[14] = uint8(next % Sectors)
		ent[15] = uint8(next / Sectors)
		next += nsec
	}

	sys := d.sector(0, sysSector)
	sys[sysFirstSector] = uint8(next % Sectors)
	sys[sysFirstTrack] = uint8(next / Sectors)
	sys[sysFileCount] = uint8(nfiles)
	binary.LittleEndian.PutUint16(sys[sysFreeSectors:], uint16(Tracks*Sides*Sectors-next))
	return d, nil
}

// TRD returns a copy of the raw image.
func (d *Disk) TRD() []byte {
	return bytes.Clone(d.data)
}

// SCL packs the live files of the catalog into an SCL archive.
func (d *Disk) SCL() []byte {
	files := d.Catalog()
	var live []File
	for _, f := range files {
		if !f.Deleted {
			live = append(live, f)
		}
	}

	out := []byte(sclMagic)
	out = append(out, uint8(len(live)))
	for _, f := range live {
		out = append(out, f.entry[:sclEntry]...)
	}
	for _, f := range live {
		start := (int(f.Track)*Sectors + int(f.Sector)) * SectorSize
		end := min(start+int(f.Sectors)*SectorSize, TRDSize)
		out = append(out, d.data[start:end]...)
	}
	var sum uint32
	for _, b := range out {
		sum += uint32(b)
	}
	return binary.LittleEndian.AppendUint32(out, sum)
}

// File is a catalog entry.
type File struct {
	Name    string
	Ext     byte
	Start   uint16 // load address (CODE), program length (BASIC)
	Length  uint16
	Sectors uint8
	Sector  uint8 // first sector, 0-based
	Track   uint8 // first logical track
	Deleted bool

	entry [entrySize]byte
}

func (f File) String() string {
	name := f.Name
	if f.Deleted {
		name = "~" + name[1:]
	}
	return fmt.Sprintf("%-8s %c %5d %5d %3d", name, f.Ext, f.Start, f.Length, f.Sectors)
}

// Catalog returns the directory entries, up to the end marker.
func (d *Disk) Catalog() []File {
	var files []File
	for i := range maxFiles {
		e := d.data[i*entrySize : (i+1)*entrySize]
		if e[0] == 0 {
			break
		}
		f := File{
			Name:    strings.TrimRight(string(e[:8]), " "),
			Ext:     e[8],
			Start:   binary.LittleEndian.Uint16(e[9:]),
			Length:  binary.LittleEndian.Uint16(e[11:]),
			Sectors: e[13],
			Sector:  e[14],
			Track:   e[15],
			Deleted: e[0] == deletedTag,
		}
		copy(f.entry[:], e)
		files = append(files, f)
	}
	return files
}

// Info holds the system sector fields.
type Info struct {
	Label        string
	DiskType     uint8
	Files        int
	Deleted      int
	FreeSectors  int
	FirstSector  int
	FirstTrack   int
	TRDOSVersion uint8
}

// Info decodes the system sector.
func (d *Disk) Info() Info {
	sys := d.sector(0, sysSector)
	return Info{
		Label:        strings.TrimRight(string(sys[sysLabel:sysLabel+8]), " \x00"),
		DiskType:     sys[sysDiskType],
		Files:        int(sys[sysFileCount]),
		Deleted:      int(sys[sysDeletedFiles]),
		FreeSectors:  int(binary.LittleEndian.Uint16(sys[sysFreeSectors:])),
		FirstSector:  int(sys[sysFirstSector]),
		FirstTrack:   int(sys[sysFirstTrack]),
		TRDOSVersion: sys[sysTRDOSID],
	}
}

// LoadDiskFile reads a .trd or .scl image.
func LoadDiskFile(path string) (*Disk, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hwdefs.ErrIO, err)
	}
	var d *Disk
	switch strings.ToLower(filepath.Ext(path)) {
	case ".scl":
		d, err = LoadSCL(buf)
	case ".trd":
		d, err = LoadTRD(buf)
	default:
		err = fmt.Errorf("%w: unknown disk image extension", hwdefs.ErrFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.ModFDC.InfoZ("disk loaded").String("path", path).Int("files", d.Info().Files).End()
	return d, nil
}

// SaveDiskFile writes the disk as TRD or SCL depending on the extension.
func SaveDiskFile(d *Disk, path string) error {
	var buf []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".scl":
		buf = d.SCL()
	case ".trd":
		buf = d.TRD()
	default:
		return fmt.Errorf("%s: %w: unknown disk image extension", path, hwdefs.ErrFormat)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("%w: %w", hwdefs.ErrIO, err)
	}
	d.Modified = false
	return nil
}
