// Package pefile implements the 32/64-bit Portable Executable parser of
// spec.md §4.F: the COFF header, the 32- and 64-bit optional headers, the
// section table, and the sixteen data directory (RVA, size) pairs. Per-
// directory decoders live in sibling files in this package (spec.md §4.H).
//
// Grounded on original_source/include/libexe/pe_file.hpp for the header
// accessor set, the sixteen-entry data-directory array shape, and the
// fifteen lazy-parsed directory struct names, and on
// pe_section_parser.cpp for the section-table offset formula
// (pe_offset + 4 + 20 + size_of_optional_header), the name/characteristics
// classification rules, and the alignment-bits decode table.
package pefile

import (
	"errors"
	"fmt"

	"github.com/provide-io/xbin/pkg/xbin/bytesource"
	"github.com/provide-io/xbin/pkg/xbin/rva"
)

// ErrInvalidHeader is returned when the buffer lacks a valid PE signature
// chain, or a structural invariant spec.md §3 names is violated.
var ErrInvalidHeader = errors.New("pefile: invalid PE header")

// Machine mirrors pe_machine_type.
type Machine uint16

const (
	MachineUnknown   Machine = 0x0000
	MachineI386      Machine = 0x014C
	MachineAMD64     Machine = 0x8664
	MachineARM       Machine = 0x01C0
	MachineARM64     Machine = 0xAA64
	MachineARMNT     Machine = 0x01C4
	MachineIA64      Machine = 0x0200
	MachineEBC       Machine = 0x0EBC
	MachineRISCV32   Machine = 0x5032
	MachineRISCV64   Machine = 0x5064
)

// Characteristics mirrors pe_file_characteristics, the COFF header's
// Characteristics field.
type Characteristics uint16

const (
	CharRelocsStripped    Characteristics = 0x0001
	CharExecutableImage   Characteristics = 0x0002
	CharLineNumsStripped  Characteristics = 0x0004
	CharLocalSymsStripped Characteristics = 0x0008
	CharLargeAddressAware Characteristics = 0x0020
	CharDebugStripped     Characteristics = 0x0200
	CharSystem            Characteristics = 0x1000
	CharDLL               Characteristics = 0x2000
)

// Subsystem mirrors pe_subsystem.
type Subsystem uint16

const (
	SubsystemUnknown    Subsystem = 0
	SubsystemNative     Subsystem = 1
	SubsystemWindowsGUI Subsystem = 2
	SubsystemWindowsCUI Subsystem = 3
	SubsystemEFIApp     Subsystem = 10
)

// DLLCharacteristics mirrors pe_dll_characteristics.
type DLLCharacteristics uint16

const (
	DLLCharHighEntropyVA DLLCharacteristics = 0x0020
	DLLCharDynamicBase   DLLCharacteristics = 0x0040
	DLLCharNXCompat      DLLCharacteristics = 0x0100
	DLLCharNoSEH         DLLCharacteristics = 0x0400
	DLLCharGuardCF       DLLCharacteristics = 0x4000
)

// DirectoryIndex names spec.md §3's sixteen data directory slots, in
// their fixed array order.
type DirectoryIndex int

const (
	DirExport DirectoryIndex = iota
	DirImport
	DirResource
	DirException
	DirSecurity
	DirBaseReloc
	DirDebug
	DirArchitecture
	DirGlobalPtr
	DirTLS
	DirLoadConfig
	DirBoundImport
	DirIAT
	DirDelayImport
	DirClrRuntime
	DirReserved

	directoryCount = 16
)

// DataDirectory is one (RVA, size) pair.
type DataDirectory struct {
	RVA  uint32
	Size uint32
}

// CoffHeader is the 20-byte COFF file header immediately after the PE
// signature.
type CoffHeader struct {
	Machine              Machine
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      Characteristics
}

// OptionalHeader is the subset of the 32/64-bit optional header this
// package surfaces directly; everything else a caller needs comes from
// DataDirectories.
type OptionalHeader struct {
	Is64Bit            bool
	Magic              uint16
	AddressOfEntryPoint uint32
	ImageBase          uint64
	SectionAlignment   uint32
	FileAlignment      uint32
	SizeOfImage        uint32
	SizeOfHeaders      uint32
	Subsystem          Subsystem
	DLLCharacteristics DLLCharacteristics
	CheckSum           uint32
}

// Section is one 40-byte section header entry, enriched with its
// classified alignment and raw data slice.
type Section struct {
	Name            string
	VirtualAddress  uint32
	VirtualSize     uint32
	RawDataOffset   uint32
	RawDataSize     uint32
	Characteristics uint32
	Alignment       uint32
	Data            []byte
}

// File is a parsed PE image.
type File struct {
	src    *bytesource.Source
	peOffset int64

	Coff            CoffHeader
	Optional        OptionalHeader
	DataDirectories [directoryCount]DataDirectory
	Sections        []Section

	resolver *rva.Resolver
}

func u16(b []byte, off int) uint16 { return uint16(b[off]) | uint16(b[off+1])<<8 }
func u32(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}
func u64(b []byte, off int) uint64 {
	return uint64(u32(b, off)) | uint64(u32(b, off+4))<<32
}

// Parse validates the MZ stub's e_lfanew → "PE\0\0" signature chain and
// parses the COFF header, the optional header (32 or 64-bit, selected by
// its magic per spec.md §3), the data directories, and the section table.
func Parse(src *bytesource.Source) (*File, error) {
	if src.Len() < 0x40 {
		return nil, fmt.Errorf("%w: file too small for an MZ stub", ErrInvalidHeader)
	}
	lfanew, err := src.U32LE(0x3C)
	if err != nil || lfanew == 0 {
		return nil, fmt.Errorf("%w: missing or zero e_lfanew", ErrInvalidHeader)
	}
	sig, err := src.Slice(int64(lfanew), 4)
	if err != nil || sig[0] != 'P' || sig[1] != 'E' || sig[2] != 0 || sig[3] != 0 {
		return nil, fmt.Errorf("%w: no PE\\0\\0 signature at e_lfanew", ErrInvalidHeader)
	}
	peOffset := int64(lfanew)

	coffBytes, err := src.Slice(peOffset+4, 20)
	if err != nil {
		return nil, fmt.Errorf("%w: COFF header truncated: %v", ErrInvalidHeader, err)
	}
	coff := CoffHeader{
		Machine:              Machine(u16(coffBytes, 0)),
		NumberOfSections:     u16(coffBytes, 2),
		TimeDateStamp:        u32(coffBytes, 4),
		PointerToSymbolTable: u32(coffBytes, 8),
		NumberOfSymbols:      u32(coffBytes, 12),
		SizeOfOptionalHeader: u16(coffBytes, 16),
		Characteristics:      Characteristics(u16(coffBytes, 18)),
	}

	optHeaderOffset := peOffset + 4 + 20
	magic, err := src.U16LE(optHeaderOffset)
	if err != nil {
		return nil, fmt.Errorf("%w: optional header truncated", ErrInvalidHeader)
	}

	var opt OptionalHeader
	var ddirOffset int64
	switch magic {
	case 0x10B: // PE32
		opt.Is64Bit = false
		hdr, err := src.Slice(optHeaderOffset, 96)
		if err != nil {
			return nil, fmt.Errorf("%w: PE32 optional header truncated: %v", ErrInvalidHeader, err)
		}
		opt.Magic = magic
		opt.AddressOfEntryPoint = u32(hdr, 16)
		opt.ImageBase = uint64(u32(hdr, 28))
		opt.SectionAlignment = u32(hdr, 32)
		opt.FileAlignment = u32(hdr, 36)
		opt.SizeOfImage = u32(hdr, 56)
		opt.SizeOfHeaders = u32(hdr, 60)
		opt.CheckSum = u32(hdr, 64)
		opt.Subsystem = Subsystem(u16(hdr, 68))
		opt.DLLCharacteristics = DLLCharacteristics(u16(hdr, 70))
		ddirOffset = optHeaderOffset + 96

	case 0x20B: // PE32+
		opt.Is64Bit = true
		hdr, err := src.Slice(optHeaderOffset, 112)
		if err != nil {
			return nil, fmt.Errorf("%w: PE32+ optional header truncated: %v", ErrInvalidHeader, err)
		}
		opt.Magic = magic
		opt.AddressOfEntryPoint = u32(hdr, 16)
		opt.ImageBase = u64(hdr, 24)
		opt.SectionAlignment = u32(hdr, 32)
		opt.FileAlignment = u32(hdr, 36)
		opt.SizeOfImage = u32(hdr, 56)
		opt.SizeOfHeaders = u32(hdr, 60)
		opt.CheckSum = u32(hdr, 64)
		opt.Subsystem = Subsystem(u16(hdr, 68))
		opt.DLLCharacteristics = DLLCharacteristics(u16(hdr, 70))
		ddirOffset = optHeaderOffset + 112

	default:
		return nil, fmt.Errorf("%w: unrecognized optional header magic %#04x", ErrInvalidHeader, magic)
	}

	if opt.SectionAlignment != 0 && opt.SectionAlignment < opt.FileAlignment {
		return nil, fmt.Errorf("%w: section_alignment (%d) < file_alignment (%d)", ErrInvalidHeader, opt.SectionAlignment, opt.FileAlignment)
	}

	f := &File{src: src, peOffset: peOffset, Coff: coff, Optional: opt}

	for i := 0; i < directoryCount; i++ {
		rvaVal, err1 := src.U32LE(ddirOffset + int64(i)*8)
		size, err2 := src.U32LE(ddirOffset + int64(i)*8 + 4)
		if err1 != nil || err2 != nil {
			break
		}
		f.DataDirectories[i] = DataDirectory{RVA: rvaVal, Size: size}
	}

	f.Sections = f.parseSections()
	f.resolver = rva.NewResolver(f.sectionsForResolver())
	return f, nil
}

func (f *File) parseSections() []Section {
	sectionTableOffset := f.peOffset + 4 + 20 + int64(f.Coff.SizeOfOptionalHeader)
	sections := make([]Section, 0, f.Coff.NumberOfSections)
	for i := uint16(0); i < f.Coff.NumberOfSections; i++ {
		entryOff := sectionTableOffset + int64(i)*40
		entry, err := f.src.Slice(entryOff, 40)
		if err != nil {
			break
		}
		name := sectionName(entry[0:8])
		characteristics := u32(entry, 36)
		s := Section{
			Name:            name,
			VirtualSize:     u32(entry, 8),
			VirtualAddress:  u32(entry, 12),
			RawDataSize:     u32(entry, 16),
			RawDataOffset:   u32(entry, 20),
			Characteristics: characteristics,
			Alignment:       extractAlignment(characteristics),
		}
		if s.RawDataOffset > 0 && s.RawDataSize > 0 {
			if b, err := f.src.Slice(int64(s.RawDataOffset), int64(s.RawDataSize)); err == nil {
				s.Data = b
			}
		}
		sections = append(sections, s)
	}
	return sections
}

// sectionName decodes an 8-byte, not-necessarily-NUL-terminated section
// name, stopping at the first NUL or non-printable byte, per
// pe_section_parser::get_section_name.
func sectionName(raw []byte) string {
	n := 0
	for n < len(raw) && raw[n] != 0 && raw[n] >= 32 && raw[n] < 127 {
		n++
	}
	return string(raw[:n])
}

// extractAlignment decodes the ALIGN_* bits (20-23) of a section's
// Characteristics field into a byte count, per
// pe_section_parser::extract_alignment.
func extractAlignment(characteristics uint32) uint32 {
	switch characteristics & 0x00F00000 {
	case 0x00100000:
		return 1
	case 0x00200000:
		return 2
	case 0x00300000:
		return 4
	case 0x00400000:
		return 8
	case 0x00500000:
		return 16
	case 0x00600000:
		return 32
	case 0x00700000:
		return 64
	case 0x00800000:
		return 128
	case 0x00900000:
		return 256
	case 0x00A00000:
		return 512
	case 0x00B00000:
		return 1024
	case 0x00C00000:
		return 2048
	case 0x00D00000:
		return 4096
	case 0x00E00000:
		return 8192
	default:
		return 0
	}
}

func (f *File) sectionsForResolver() []rva.Section {
	out := make([]rva.Section, len(f.Sections))
	for i, s := range f.Sections {
		out[i] = rva.Section{
			Name:            s.Name,
			VirtualAddress:  s.VirtualAddress,
			VirtualSize:     s.VirtualSize,
			RawOffset:       s.RawDataOffset,
			RawSize:         s.RawDataSize,
			Characteristics: s.Characteristics,
			FileAlignment:   f.Optional.FileAlignment,
		}
	}
	return out
}

// Resolver returns the RVA/VA resolver built over this file's section
// table, per spec.md §4.B.
func (f *File) Resolver() *rva.Resolver { return f.resolver }

// FindSection returns the section named name, or false if none matches.
func (f *File) FindSection(name string) (Section, bool) {
	for _, s := range f.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// CodeSection returns the ".text" section's data, falling back to the
// first section whose characteristics mark it as containing code
// (CNT_CODE, bit 0x20).
func (f *File) CodeSection() []byte {
	if s, ok := f.FindSection(".text"); ok {
		return s.Data
	}
	for _, s := range f.Sections {
		if s.Characteristics&0x00000020 != 0 {
			return s.Data
		}
	}
	return nil
}

// DataDirectory returns the (RVA, size) pair at the given index.
func (f *File) DataDirectory(idx DirectoryIndex) DataDirectory {
	if idx < 0 || int(idx) >= directoryCount {
		return DataDirectory{}
	}
	return f.DataDirectories[idx]
}

// HasDataDirectory reports whether the directory at idx carries a nonzero
// RVA (the same "present" test every per-directory decoder uses before
// attempting to parse).
func (f *File) HasDataDirectory(idx DirectoryIndex) bool {
	return f.DataDirectory(idx).RVA != 0
}

// Slice resolves rva through the section table and reads length bytes
// starting there, the shared entry point every directory decoder in this
// package uses.
func (f *File) Slice(rvaVal uint32, length int64) ([]byte, error) {
	off, ok := f.resolver.RVAToOffset(rvaVal)
	if !ok {
		return nil, fmt.Errorf("pefile: rva %#x not backed by any section", rvaVal)
	}
	return f.src.Slice(int64(off), length)
}

// Source returns the underlying byte source.
func (f *File) Source() *bytesource.Source { return f.src }

// U16At resolves rva and reads a little-endian uint16.
func (f *File) U16At(rvaVal uint32) (uint16, error) {
	off, ok := f.resolver.RVAToOffset(rvaVal)
	if !ok {
		return 0, fmt.Errorf("pefile: rva %#x not backed by any section", rvaVal)
	}
	return f.src.U16LE(int64(off))
}

// U32At resolves rva and reads a little-endian uint32.
func (f *File) U32At(rvaVal uint32) (uint32, error) {
	off, ok := f.resolver.RVAToOffset(rvaVal)
	if !ok {
		return 0, fmt.Errorf("pefile: rva %#x not backed by any section", rvaVal)
	}
	return f.src.U32LE(int64(off))
}

// U64At resolves rva and reads a little-endian uint64.
func (f *File) U64At(rvaVal uint32) (uint64, error) {
	off, ok := f.resolver.RVAToOffset(rvaVal)
	if !ok {
		return 0, fmt.Errorf("pefile: rva %#x not backed by any section", rvaVal)
	}
	return f.src.U64LE(int64(off))
}

// CStrAt resolves rva and reads a NUL-terminated string there, never
// reading past the source's end.
func (f *File) CStrAt(rvaVal uint32) (string, error) {
	off, ok := f.resolver.RVAToOffset(rvaVal)
	if !ok {
		return "", fmt.Errorf("pefile: rva %#x not backed by any section", rvaVal)
	}
	b, _, err := f.src.CStr(int64(off), -1)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VAToRVA converts an absolute virtual address to an RVA using this file's
// image base, per spec.md §4.B.
func (f *File) VAToRVA(va uint64) (uint32, bool) {
	return rva.VAToRVA(va, f.Optional.ImageBase)
}

// ImageBase returns the optional header's image base.
func (f *File) ImageBase() uint64 { return f.Optional.ImageBase }
