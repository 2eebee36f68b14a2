// Package lefile implements the 32-bit Linear Executable (LE/LX) parser
// of spec.md §4.G: the LE header, object table, object-page table, fixup
// page/record tables, and the imported-module name table.
//
// Grounded directly on
// original_source/docs/specs/le_exe_headers.h's IMAGE_LE_HEADER,
// LE_OBJECT_TABLE_ENTRY, and LE_OBJECT_PAGE_TABLE_ENTRY struct layouts
// (a decompiler-derived header with concrete byte offsets, unlike the
// NE/PE headers which had no such survivor), and on
// original_source/unittests/formats/test_le_fixup.cpp's
// create_le_with_fixups fixture, which fixes the fixup record's exact
// byte layout (source_type, target_flags, 2-byte source offset, and the
// INTERNAL/IMPORT_ORDINAL target encodings) beyond what spec.md's prose
// alone specifies.
package lefile

import (
	"errors"
	"fmt"

	"github.com/provide-io/xbin/pkg/xbin/bytesource"
)

// ErrInvalidHeader is returned when the buffer lacks a valid LE/LX
// signature chain or a structural invariant is violated.
var ErrInvalidHeader = errors.New("lefile: invalid LE/LX header")

const headerSize = 196

// ObjectFlags mirrors LE_OBJECT_FLAGS.
type ObjectFlags uint32

const (
	ObjFlagReadable                ObjectFlags = 1
	ObjFlagWritable                ObjectFlags = 2
	ObjFlagExecutable              ObjectFlags = 4
	ObjFlagResource                ObjectFlags = 8
	ObjFlagDiscardable             ObjectFlags = 16
	ObjFlagShared                  ObjectFlags = 32
	ObjFlagContainsPreloadPages     ObjectFlags = 64
	ObjFlagContainsInvalidPages     ObjectFlags = 128
	ObjFlagResident                ObjectFlags = 512
	ObjFlagResidentAndContiguous   ObjectFlags = 768
	ObjFlagResidentAndLongLockable ObjectFlags = 1024
	ObjFlagContainsZeroFillPages   ObjectFlags = 256
	Obj1616AliasRequired           ObjectFlags = 4096
	ObjBigDefaultBitSetting        ObjectFlags = 8192
	ObjConformingForCode           ObjectFlags = 16384
	ObjIOPrivilegeLevel            ObjectFlags = 32768
)

func (f ObjectFlags) IsReadable() bool   { return f&ObjFlagReadable != 0 }
func (f ObjectFlags) IsWritable() bool   { return f&ObjFlagWritable != 0 }
func (f ObjectFlags) IsExecutable() bool { return f&ObjFlagExecutable != 0 }

// Header is the 196-byte LE/LX header, following IMAGE_LE_HEADER.
type Header struct {
	Signature                 [2]byte
	ByteOrder                 byte
	WordOrder                 byte
	ExecutableFormatLevel     uint32
	CPUType                   uint16
	TargetOperatingSystem     uint16
	ModuleVersion             uint32
	ModuleTypeFlags           uint32
	NumberOfMemoryPages       uint32
	InitialObjectCSNumber     uint32
	InitialEIP                uint32
	InitialSSObjectNumber     uint32
	InitialESP                uint32
	MemoryPageSize            uint32
	BytesOnLastPage           uint32
	FixupSectionSize          uint32
	FixupSectionChecksum      uint32
	LoaderSectionSize         uint32
	LoaderSectionChecksum     uint32
	ObjectTableOffset         uint32
	ObjectTableEntries        uint32
	ObjectPageMapOffset       uint32
	ObjectIterateDataMapOffset uint32
	ResourceTableOffset       uint32
	ResourceTableEntries      uint32
	ResidentNamesTableOffset  uint32
	EntryTableOffset          uint32
	ModuleDirectivesTableOffset uint32
	ModuleDirectivesTableEntries uint32
	FixupPageTableOffset      uint32
	FixupRecordTableOffset    uint32
	ImportedModulesNameTableOffset uint32
	ImportedModulesCount      uint32
	ImportedProcedureNameTableOffset uint32
	PerPageChecksumTableOffset uint32
	DataPagesOffsetFromTopOfFile uint32
	PreloadPagesCount         uint32
	NonResidentNamesTableOffsetFromTopOfFile uint32
	NonResidentNamesTableLength uint32
	NonResidentNamesTableChecksum uint32
	AutomaticDataObject       uint32
	DebugInformationOffset    uint32
	DebugInformationLength    uint32
	PreloadInstancePagesNumber uint32
	DemandInstancePagesNumber uint32
	HeapSize                  uint32
	StackSize                 uint32
}

// ObjectEntry is one 24-byte LE_OBJECT_TABLE_ENTRY.
type ObjectEntry struct {
	Index            int // 1-based
	VirtualSize      uint32
	BaseRelocAddress uint32
	Flags            ObjectFlags
	PageTableIndex   uint32
	PageTableEntries uint32
}

// PageEntry is one 4-byte object-page table entry: a 24-bit big-endian
// page data offset (in MemoryPageSize units from DataPagesOffsetFromTopOfFile)
// plus an 8-bit flag byte.
type PageEntry struct {
	PageDataOffset uint32
	Flags          byte
}

// FixupTargetType names the low nibble of a fixup record's target_flags
// byte, per test_le_fixup.cpp's le_fixup_target_type.
type FixupTargetType byte

const (
	FixupTargetInternal      FixupTargetType = 0
	FixupTargetImportOrdinal FixupTargetType = 1
	FixupTargetImportName    FixupTargetType = 2
	FixupTargetEntryTable    FixupTargetType = 3
)

// FixupRecord is one decoded fixup entry, addressed to a specific page.
type FixupRecord struct {
	PageIndex     int
	SourceType    byte
	SourceOffset  uint16   // valid when SourceOffsets is nil
	SourceOffsets []uint16 // the "advanced" multi-offset case, source_type bit 5 set
	TargetType    FixupTargetType

	// Populated for FixupTargetInternal / FixupTargetEntryTable.
	TargetObject uint16
	TargetOffset uint32

	// Populated for FixupTargetImportOrdinal / FixupTargetImportName.
	ModuleOrdinal  uint16
	ImportOrdinal  uint16
	ImportNameOffset uint16
}

// File is a parsed LE/LX image.
type File struct {
	src      *bytesource.Source
	leOffset int64

	Header  Header
	Objects []ObjectEntry
	Pages   []PageEntry
	Fixups  []FixupRecord

	ImportedModules []string
}

func u16(b []byte, off int) uint16 { return uint16(b[off]) | uint16(b[off+1])<<8 }
func u32(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

// Parse validates the MZ stub's e_lfanew -> "LE"/"LX" signature chain
// and parses the header, object table, object-page table, fixup tables,
// and imported-module name table. All offsets inside the header are
// relative to the LE header's own start except DataPagesOffsetFromTopOfFile,
// which is an absolute file offset (spec.md §4.G).
func Parse(src *bytesource.Source) (*File, error) {
	if src.Len() < 0x40 {
		return nil, fmt.Errorf("%w: file too small for an MZ stub", ErrInvalidHeader)
	}
	lfanew, err := src.U32LE(0x3C)
	if err != nil || lfanew == 0 {
		return nil, fmt.Errorf("%w: missing or zero e_lfanew", ErrInvalidHeader)
	}
	sig, err := src.Slice(int64(lfanew), 2)
	if err != nil || !(sig[0] == 'L' && (sig[1] == 'E' || sig[1] == 'X')) {
		return nil, fmt.Errorf("%w: no LE/LX signature at e_lfanew", ErrInvalidHeader)
	}
	leOffset := int64(lfanew)

	raw, err := src.Slice(leOffset, headerSize)
	if err != nil {
		return nil, fmt.Errorf("%w: header truncated: %v", ErrInvalidHeader, err)
	}

	h := Header{
		ByteOrder:             raw[2],
		WordOrder:             raw[3],
		ExecutableFormatLevel: u32(raw, 4),
		CPUType:               u16(raw, 8),
		TargetOperatingSystem: u16(raw, 10),
		ModuleVersion:         u32(raw, 12),
		ModuleTypeFlags:       u32(raw, 16),
		NumberOfMemoryPages:   u32(raw, 20),
		InitialObjectCSNumber: u32(raw, 24),
		InitialEIP:            u32(raw, 28),
		InitialSSObjectNumber: u32(raw, 32),
		InitialESP:            u32(raw, 36),
		MemoryPageSize:        u32(raw, 40),
		BytesOnLastPage:       u32(raw, 44),
		FixupSectionSize:      u32(raw, 48),
		FixupSectionChecksum:  u32(raw, 52),
		LoaderSectionSize:     u32(raw, 56),
		LoaderSectionChecksum: u32(raw, 60),
		ObjectTableOffset:     u32(raw, 64),
		ObjectTableEntries:    u32(raw, 68),
		ObjectPageMapOffset:   u32(raw, 72),
		ObjectIterateDataMapOffset: u32(raw, 76),
		ResourceTableOffset:   u32(raw, 80),
		ResourceTableEntries:  u32(raw, 84),
		ResidentNamesTableOffset: u32(raw, 88),
		EntryTableOffset:      u32(raw, 92),
		ModuleDirectivesTableOffset: u32(raw, 96),
		ModuleDirectivesTableEntries: u32(raw, 100),
		FixupPageTableOffset:  u32(raw, 104),
		FixupRecordTableOffset: u32(raw, 108),
		ImportedModulesNameTableOffset: u32(raw, 112),
		ImportedModulesCount:  u32(raw, 116),
		ImportedProcedureNameTableOffset: u32(raw, 120),
		PerPageChecksumTableOffset: u32(raw, 124),
		DataPagesOffsetFromTopOfFile: u32(raw, 128),
		PreloadPagesCount:    u32(raw, 132),
		NonResidentNamesTableOffsetFromTopOfFile: u32(raw, 136),
		NonResidentNamesTableLength: u32(raw, 140),
		NonResidentNamesTableChecksum: u32(raw, 144),
		AutomaticDataObject:  u32(raw, 148),
		DebugInformationOffset: u32(raw, 152),
		DebugInformationLength: u32(raw, 156),
		PreloadInstancePagesNumber: u32(raw, 160),
		DemandInstancePagesNumber: u32(raw, 164),
		HeapSize:             u32(raw, 168),
		StackSize:            u32(raw, 172),
	}
	copy(h.Signature[:], sig)

	f := &File{src: src, leOffset: leOffset, Header: h}

	if err := f.parseObjects(); err != nil {
		return nil, err
	}
	if err := f.parsePages(); err != nil {
		return nil, err
	}
	if err := f.parseFixups(); err != nil {
		return nil, err
	}
	f.parseImportedModules()

	return f, nil
}

func (f *File) parseObjects() error {
	h := f.Header
	if h.ObjectTableOffset == 0 || h.ObjectTableEntries == 0 {
		return nil
	}
	base := f.leOffset + int64(h.ObjectTableOffset)
	for i := uint32(0); i < h.ObjectTableEntries; i++ {
		raw, err := f.src.Slice(base+int64(i)*24, 24)
		if err != nil {
			return fmt.Errorf("%w: object table entry %d truncated: %v", ErrInvalidHeader, i, err)
		}
		f.Objects = append(f.Objects, ObjectEntry{
			Index:            int(i) + 1,
			VirtualSize:      u32(raw, 0),
			BaseRelocAddress: u32(raw, 4),
			Flags:            ObjectFlags(u32(raw, 8)),
			PageTableIndex:   u32(raw, 12),
			PageTableEntries: u32(raw, 16),
		})
	}
	return nil
}

// totalPageCount sums every object's page table entry count, the page
// count the object-page table must cover per spec.md §4.G.
func (f *File) totalPageCount() uint32 {
	var total uint32
	for _, o := range f.Objects {
		total += o.PageTableEntries
	}
	return total
}

func (f *File) parsePages() error {
	if f.Header.ObjectPageMapOffset == 0 {
		return nil
	}
	count := f.totalPageCount()
	base := f.leOffset + int64(f.Header.ObjectPageMapOffset)
	for i := uint32(0); i < count; i++ {
		raw, err := f.src.Slice(base+int64(i)*4, 4)
		if err != nil {
			return fmt.Errorf("%w: object page table entry %d truncated: %v", ErrInvalidHeader, i, err)
		}
		pageOffset := uint32(raw[0])<<16 | uint32(raw[1])<<8 | uint32(raw[2])
		f.Pages = append(f.Pages, PageEntry{PageDataOffset: pageOffset, Flags: raw[3]})
	}
	return nil
}

// GetObject returns the 1-based object table entry at index.
func (f *File) GetObject(index int) (ObjectEntry, bool) {
	if index < 1 || index > len(f.Objects) {
		return ObjectEntry{}, false
	}
	return f.Objects[index-1], true
}

// PageFileOffset resolves a 1-based page number to its absolute file
// offset, using DataPagesOffsetFromTopOfFile and MemoryPageSize.
func (f *File) PageFileOffset(pageNumber int) (int64, bool) {
	if pageNumber < 1 || pageNumber > len(f.Pages) {
		return 0, false
	}
	entry := f.Pages[pageNumber-1]
	return int64(f.Header.DataPagesOffsetFromTopOfFile) + int64(entry.PageDataOffset)*int64(f.Header.MemoryPageSize), true
}

func (f *File) parseFixups() error {
	h := f.Header
	if h.FixupPageTableOffset == 0 {
		return nil
	}
	pageCount := f.totalPageCount()
	if pageCount == 0 {
		return nil
	}
	fptBase := f.leOffset + int64(h.FixupPageTableOffset)
	frtBase := f.leOffset + int64(h.FixupRecordTableOffset)

	offsets := make([]uint32, 0, pageCount+1)
	for i := uint32(0); i <= pageCount; i++ {
		raw, err := f.src.Slice(fptBase+int64(i)*4, 4)
		if err != nil {
			return fmt.Errorf("%w: fixup page table entry %d truncated: %v", ErrInvalidHeader, i, err)
		}
		offsets = append(offsets, u32(raw, 0))
	}

	for page := uint32(0); page < pageCount; page++ {
		start := frtBase + int64(offsets[page])
		end := frtBase + int64(offsets[page+1])
		pos := start
		for pos < end {
			rec, consumed, err := f.parseFixupRecord(pos, int(page)+1)
			if err != nil {
				return err
			}
			f.Fixups = append(f.Fixups, rec)
			pos += consumed
		}
	}
	return nil
}

// parseFixupRecord decodes one fixup entry at pos, per spec.md §4.G and
// test_le_fixup.cpp's concrete byte layout.
func (f *File) parseFixupRecord(pos int64, pageIndex int) (FixupRecord, int64, error) {
	hdr, err := f.src.Slice(pos, 2)
	if err != nil {
		return FixupRecord{}, 0, fmt.Errorf("%w: fixup record header truncated at page %d: %v", ErrInvalidHeader, pageIndex, err)
	}
	sourceType := hdr[0]
	targetFlags := hdr[1]
	rec := FixupRecord{
		PageIndex:  pageIndex,
		SourceType: sourceType,
		TargetType: FixupTargetType(targetFlags & 0x0F),
	}
	cursor := pos + 2

	if sourceType&0x20 != 0 {
		countByte, err := f.src.Slice(cursor, 1)
		if err != nil {
			return FixupRecord{}, 0, fmt.Errorf("%w: fixup source-list count truncated: %v", ErrInvalidHeader, err)
		}
		n := int(countByte[0])
		cursor++
		offs, err := f.src.Slice(cursor, int64(n)*2)
		if err != nil {
			return FixupRecord{}, 0, fmt.Errorf("%w: fixup source list truncated: %v", ErrInvalidHeader, err)
		}
		for i := 0; i < n; i++ {
			rec.SourceOffsets = append(rec.SourceOffsets, u16(offs, i*2))
		}
		cursor += int64(n) * 2
	} else {
		srcOff, err := f.src.Slice(cursor, 2)
		if err != nil {
			return FixupRecord{}, 0, fmt.Errorf("%w: fixup source offset truncated: %v", ErrInvalidHeader, err)
		}
		rec.SourceOffset = u16(srcOff, 0)
		cursor += 2
	}

	narrow := targetFlags&0x80 != 0 // bit 7: spec.md's "32-bit target offset" / narrow-ordinal toggle

	switch rec.TargetType {
	case FixupTargetInternal, FixupTargetEntryTable:
		objByte, err := f.src.Slice(cursor, 1)
		if err != nil {
			return FixupRecord{}, 0, fmt.Errorf("%w: fixup target object truncated: %v", ErrInvalidHeader, err)
		}
		rec.TargetObject = uint16(objByte[0])
		cursor++
		if narrow {
			offBytes, err := f.src.Slice(cursor, 4)
			if err != nil {
				return FixupRecord{}, 0, fmt.Errorf("%w: fixup 32-bit target offset truncated: %v", ErrInvalidHeader, err)
			}
			rec.TargetOffset = u32(offBytes, 0)
			cursor += 4
		} else {
			offBytes, err := f.src.Slice(cursor, 2)
			if err != nil {
				return FixupRecord{}, 0, fmt.Errorf("%w: fixup 16-bit target offset truncated: %v", ErrInvalidHeader, err)
			}
			rec.TargetOffset = uint32(u16(offBytes, 0))
			cursor += 2
		}

	case FixupTargetImportOrdinal:
		if narrow {
			b, err := f.src.Slice(cursor, 2)
			if err != nil {
				return FixupRecord{}, 0, fmt.Errorf("%w: fixup 8-bit ordinals truncated: %v", ErrInvalidHeader, err)
			}
			rec.ModuleOrdinal = uint16(b[0])
			rec.ImportOrdinal = uint16(b[1])
			cursor += 2
		} else {
			b, err := f.src.Slice(cursor, 4)
			if err != nil {
				return FixupRecord{}, 0, fmt.Errorf("%w: fixup 16-bit ordinals truncated: %v", ErrInvalidHeader, err)
			}
			rec.ModuleOrdinal = u16(b, 0)
			rec.ImportOrdinal = u16(b, 2)
			cursor += 4
		}

	case FixupTargetImportName:
		b, err := f.src.Slice(cursor, 3)
		if err != nil {
			return FixupRecord{}, 0, fmt.Errorf("%w: fixup import-name reference truncated: %v", ErrInvalidHeader, err)
		}
		rec.ModuleOrdinal = uint16(b[0])
		rec.ImportNameOffset = u16(b, 1)
		cursor += 3

	default:
		return FixupRecord{}, 0, fmt.Errorf("%w: unrecognized fixup target type %d", ErrInvalidHeader, rec.TargetType)
	}

	return rec, cursor - pos, nil
}

// GetPageFixups returns every fixup addressed to the given 1-based page
// number.
func (f *File) GetPageFixups(pageNumber int) []FixupRecord {
	var out []FixupRecord
	for _, fx := range f.Fixups {
		if fx.PageIndex == pageNumber {
			out = append(out, fx)
		}
	}
	return out
}

// parseImportedModules reads the length-prefixed ASCII import-module
// name table.
func (f *File) parseImportedModules() {
	h := f.Header
	if h.ImportedModulesNameTableOffset == 0 || h.ImportedModulesCount == 0 {
		return
	}
	pos := f.leOffset + int64(h.ImportedModulesNameTableOffset)
	for i := uint32(0); i < h.ImportedModulesCount; i++ {
		lenByte, err := f.src.Slice(pos, 1)
		if err != nil {
			return
		}
		n := int64(lenByte[0])
		name, err := f.src.Slice(pos+1, n)
		if err != nil {
			return
		}
		f.ImportedModules = append(f.ImportedModules, string(name))
		pos += 1 + n
	}
}

// Source returns the underlying byte source.
func (f *File) Source() *bytesource.Source { return f.src }
