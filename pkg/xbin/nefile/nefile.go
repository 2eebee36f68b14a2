// Package nefile implements the 16-bit New Executable parser of spec.md
// §4.E: the NE header, the sector-shifted segment table, and the resident/
// non-resident name tables. The flat resource table itself is parsed by
// pkg/xbin/rsrc (spec.md §4.I), which holds a *File to read segment_count
// unrelated fields from; nefile only locates the table's offset here to
// avoid nefile depending on rsrc.
//
// Grounded on original_source/include/libexe/ne_file.hpp's accessor set
// and ne_segment_parser.cpp's sector-offset/alignment-shift arithmetic and
// 1-based segment indexing; field offsets within the 64-byte NE header
// follow the standard documented NE layout (the same one spec.md §3
// summarizes), since no ne_file.cpp body with concrete byte offsets
// survived distillation alongside the header.
package nefile

import (
	"errors"
	"fmt"

	"github.com/provide-io/xbin/pkg/xbin/bytesource"
)

// ErrInvalidHeader is returned when the buffer lacks a valid "NE" signature
// at e_lfanew, or the NE header itself is truncated.
var ErrInvalidHeader = errors.New("nefile: invalid NE header")

// TargetOS mirrors ne_target_os: the byte at NE header offset 0x36.
type TargetOS uint8

const (
	TargetUnknown TargetOS = iota
	TargetOS2
	TargetWindows
	TargetEuropeanMSDOS4
	TargetWindows386
	TargetBOSS
)

func targetOSFromByte(b byte) TargetOS {
	switch b {
	case 1:
		return TargetOS2
	case 2:
		return TargetWindows
	case 3:
		return TargetEuropeanMSDOS4
	case 4:
		return TargetWindows386
	case 5:
		return TargetBOSS
	default:
		return TargetUnknown
	}
}

// Flag bits within the NE header's Flags field (offset 0x0C), the subset
// this package exposes directly.
const (
	FlagSingleData   uint16 = 0x0001
	FlagMultipleData uint16 = 0x0002
	FlagLibrary      uint16 = 0x8000
	// FlagSelfLoad marks a module carrying its own segment-loading code
	// (early Windows display/printer drivers); IsSelfLoading reports it.
	FlagSelfLoad uint16 = 0x0800
)

// SegmentFlags mirrors ne_segment_flags: bit 0 discriminates code (0) vs
// data (1).
type SegmentFlags uint16

const (
	SegData     SegmentFlags = 0x0001
	SegMoveable SegmentFlags = 0x0010
	SegPreload  SegmentFlags = 0x0040
	SegRelocInfo SegmentFlags = 0x0100
	SegDiscard  SegmentFlags = 0x1000
)

func (f SegmentFlags) IsData() bool { return f&SegData != 0 }
func (f SegmentFlags) IsCode() bool { return !f.IsData() }

// Header is the subset of the 64-byte NE header this package exposes,
// named after ne_file.hpp's accessor methods.
type Header struct {
	LinkerVersion  uint8
	LinkerRevision uint8
	Flags          uint16
	AutoDataSegIdx uint16
	HeapSize       uint16
	StackSize      uint16
	EntryIP        uint16
	EntryCS        uint16
	InitialSP      uint16
	InitialSS      uint16
	SegmentCount   uint16
	ModuleCount    uint16

	SegmentTableOffset       uint16 // relative to NE header start
	ResourceTableOffset      uint16 // relative to NE header start
	ResidentNameTableOffset  uint16 // relative to NE header start
	ModuleRefTableOffset     uint16 // relative to NE header start
	ImportNameTableOffset    uint16 // relative to NE header start
	NonResidentNameTableOffset uint32 // absolute file offset
	NonResidentNameTableSize uint16

	AlignmentShift uint16
	ResourceEntryCount uint16
	TargetOS       TargetOS
	OS2Flags       uint8
}

// Segment is one entry of the NE segment table, enriched with resolved
// file offset/size and the raw data slice, mirroring ne_segment_parser's
// output shape.
type Segment struct {
	Index       int // 1-based, per ne_segment_parser::find_segment_by_index
	SectorOffset uint16
	FileOffset  uint32
	FileSize    uint32
	Flags       SegmentFlags
	MinAlloc    uint32
	Data        []byte
}

// File is a parsed NE module.
type File struct {
	src      *bytesource.Source
	neOffset int64
	Header   Header
	Segments []Segment
}

func u16(b []byte, off int) uint16 {
	return uint16(b[off]) | uint16(b[off+1])<<8
}

// Parse validates an MZ stub pointing to an "NE" signature at e_lfanew and
// parses the header and segment table.
func Parse(src *bytesource.Source) (*File, error) {
	if src.Len() < 0x40 {
		return nil, fmt.Errorf("%w: file too small for an MZ stub", ErrInvalidHeader)
	}
	lfanew, err := src.U32LE(0x3C)
	if err != nil || lfanew == 0 {
		return nil, fmt.Errorf("%w: missing or zero e_lfanew", ErrInvalidHeader)
	}
	sig, err := src.Slice(int64(lfanew), 2)
	if err != nil || sig[0] != 'N' || sig[1] != 'E' {
		return nil, fmt.Errorf("%w: no NE signature at e_lfanew", ErrInvalidHeader)
	}

	neOffset := int64(lfanew)
	hdr, err := src.Slice(neOffset, 0x40)
	if err != nil {
		return nil, fmt.Errorf("%w: NE header truncated: %v", ErrInvalidHeader, err)
	}

	h := Header{
		LinkerVersion:              hdr[0x02],
		LinkerRevision:             hdr[0x03],
		Flags:                      u16(hdr, 0x0C),
		AutoDataSegIdx:             u16(hdr, 0x0E),
		HeapSize:                   u16(hdr, 0x10),
		StackSize:                  u16(hdr, 0x12),
		EntryIP:                    u16(hdr, 0x14),
		EntryCS:                    u16(hdr, 0x16),
		InitialSP:                  u16(hdr, 0x18),
		InitialSS:                  u16(hdr, 0x1A),
		SegmentCount:               u16(hdr, 0x1C),
		ModuleCount:                u16(hdr, 0x1E),
		NonResidentNameTableSize:   u16(hdr, 0x20),
		SegmentTableOffset:         u16(hdr, 0x22),
		ResourceTableOffset:        u16(hdr, 0x24),
		ResidentNameTableOffset:    u16(hdr, 0x26),
		ModuleRefTableOffset:       u16(hdr, 0x28),
		ImportNameTableOffset:      u16(hdr, 0x2A),
		NonResidentNameTableOffset: uint32(u16(hdr, 0x2C)) | uint32(u16(hdr, 0x2E))<<16,
		AlignmentShift:             u16(hdr, 0x32),
		ResourceEntryCount:         u16(hdr, 0x34),
		TargetOS:                   targetOSFromByte(hdr[0x36]),
		OS2Flags:                   hdr[0x37],
	}
	if h.AlignmentShift > 15 {
		return nil, fmt.Errorf("%w: alignment shift %d out of range", ErrInvalidHeader, h.AlignmentShift)
	}
	if h.AlignmentShift == 0 {
		h.AlignmentShift = 9 // the conventional 512-byte default when unset
	}

	f := &File{src: src, neOffset: neOffset, Header: h}
	f.Segments = f.parseSegments()
	return f, nil
}

func (f *File) parseSegments() []Segment {
	segs := make([]Segment, 0, f.Header.SegmentCount)
	tableStart := f.neOffset + int64(f.Header.SegmentTableOffset)
	for i := uint16(0); i < f.Header.SegmentCount; i++ {
		entryOff := tableStart + int64(i)*8
		entry, err := f.src.Slice(entryOff, 8)
		if err != nil {
			break
		}
		sectorOffset := u16(entry, 0)
		length := u16(entry, 2)
		flags := SegmentFlags(u16(entry, 4))
		minAlloc := u16(entry, 6)

		fileSize := calculateSegmentSize(length)
		var fileOffset uint32
		var data []byte
		if sectorOffset > 0 {
			fileOffset = calculateFileOffset(sectorOffset, f.Header.AlignmentShift)
			if b, err := f.src.Slice(int64(fileOffset), int64(fileSize)); err == nil {
				data = b
			}
		}

		segs = append(segs, Segment{
			Index:        int(i) + 1,
			SectorOffset: sectorOffset,
			FileOffset:   fileOffset,
			FileSize:     fileSize,
			Flags:        flags,
			MinAlloc:     calculateMinAlloc(minAlloc),
			Data:         data,
		})
	}
	return segs
}

// calculateFileOffset implements ne_segment_parser::calculate_file_offset:
// file_offset = sector_offset << alignment_shift.
func calculateFileOffset(sectorOffset, alignmentShift uint16) uint32 {
	return uint32(sectorOffset) << alignmentShift
}

// calculateSegmentSize implements ne_segment_parser::calculate_segment_size:
// a zero length field means 65536 bytes.
func calculateSegmentSize(length uint16) uint32 {
	if length == 0 {
		return 65536
	}
	return uint32(length)
}

func calculateMinAlloc(minAlloc uint16) uint32 {
	if minAlloc == 0 {
		return 65536
	}
	return uint32(minAlloc)
}

// GetSegment returns the 1-based indexed segment (NE's entry-point CS field
// and module-reference fixups both index this way), or false if out of
// range.
func (f *File) GetSegment(index int) (Segment, bool) {
	if index < 1 || index > len(f.Segments) {
		return Segment{}, false
	}
	return f.Segments[index-1], true
}

// CodeSegment returns the first segment classified as code, mirroring
// ne_segment_parser::find_first_code_segment.
func (f *File) CodeSegment() (Segment, bool) {
	for _, s := range f.Segments {
		if s.Flags.IsCode() {
			return s, true
		}
	}
	return Segment{}, false
}

// CodeSection satisfies the same code_section() shape the other format
// parsers expose: the entry-point segment's raw data.
func (f *File) CodeSection() []byte {
	if seg, ok := f.GetSegment(int(f.Header.EntryCS)); ok {
		return seg.Data
	}
	return nil
}

// NameEntry is one (name, ordinal) pair from a resident- or non-resident-
// name table: a length-prefixed (not NUL-terminated) string followed by a
// u16 ordinal, per spec.md §3's NE naming convention.
type NameEntry struct {
	Name    string
	Ordinal uint16
}

func parseNameTable(src *bytesource.Source, start int64) []NameEntry {
	var entries []NameEntry
	pos := start
	for {
		length, err := src.U8(pos)
		if err != nil {
			break
		}
		if length == 0 {
			break
		}
		nameBytes, err := src.Slice(pos+1, int64(length))
		if err != nil {
			break
		}
		ordinal, err := src.U16LE(pos + 1 + int64(length))
		if err != nil {
			break
		}
		entries = append(entries, NameEntry{Name: string(nameBytes), Ordinal: ordinal})
		pos += 1 + int64(length) + 2
	}
	return entries
}

// ResidentNames reads the resident-name table: the module name (ordinal 0)
// followed by every exported entry point name resolvable without loading
// the non-resident table from disk.
func (f *File) ResidentNames() []NameEntry {
	return parseNameTable(f.src, f.neOffset+int64(f.Header.ResidentNameTableOffset))
}

// NonResidentNames reads the non-resident-name table at its absolute file
// offset (unlike every other NE table offset, this one is not relative to
// the NE header start): typically the module description string plus any
// export names a loader only needs during import resolution, supplementing
// spec.md §4.E (which only names the resident table explicitly).
func (f *File) NonResidentNames() []NameEntry {
	if f.Header.NonResidentNameTableOffset == 0 {
		return nil
	}
	return parseNameTable(f.src, int64(f.Header.NonResidentNameTableOffset))
}

// IsSelfLoading reports whether the module carries its own segment-loading
// code (the FlagSelfLoad bit), supplementing spec.md §4.E: early Windows
// display and printer drivers manage their own segment relocation and must
// be special-cased by a loader, a detail worth surfacing since the flags
// field is already parsed for other purposes.
func (f *File) IsSelfLoading() bool {
	return f.Header.Flags&FlagSelfLoad != 0
}

// ResourceTableFileOffset returns the absolute file offset of the NE flat
// resource table, or false when the module carries none. pkg/xbin/rsrc
// reads the table itself to avoid an import cycle.
func (f *File) ResourceTableFileOffset() (int64, bool) {
	if f.Header.ResourceTableOffset == 0 {
		return 0, false
	}
	return f.neOffset + int64(f.Header.ResourceTableOffset), true
}

// Source returns the underlying byte source, for callers (e.g. pkg/xbin/rsrc)
// that need to read additional tables this package doesn't expose directly.
func (f *File) Source() *bytesource.Source { return f.src }
