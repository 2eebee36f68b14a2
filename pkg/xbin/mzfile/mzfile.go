// Package mzfile implements the MZ parser of spec.md §4.D: validates the
// DOS header, exposes the code section, and drives packer detection
// (pattern matching each decompressor's Detect predicate, and Shannon
// entropy as a fallback signal) over it.
package mzfile

import (
	"errors"
	"fmt"

	"github.com/provide-io/xbin/pkg/xbin/bytesource"
	"github.com/provide-io/xbin/pkg/xbin/decompress"
	"github.com/provide-io/xbin/pkg/xbin/entropy"
)

// ErrInvalidHeader is returned when the buffer does not carry a valid MZ
// signature or a structurally impossible header field (e.g. e_cparhdr < 2,
// per spec.md §3's invariant).
var ErrInvalidHeader = errors.New("mzfile: invalid MZ header")

// Header is spec.md §3's sixteen 16-bit MZ fields plus e_lfanew.
type Header struct {
	Magic            [2]byte
	LastPageBytes    uint16 // e_cblp
	Pages            uint16 // e_cp
	RelocItems       uint16 // e_crlc
	HeaderParagraphs uint16 // e_cparhdr
	MinExtraParas    uint16 // e_minalloc
	MaxExtraParas    uint16 // e_maxalloc
	InitialSS        uint16
	InitialSP        uint16
	Checksum         uint16
	InitialIP        uint16
	InitialCS        uint16
	RelocTableOffset uint16 // e_lfarlc
	OverlayNumber    uint16 // e_ovno
	ELfaNew          uint32
}

// File is a parsed MZ image: the validated header plus the owning byte
// source it borrows slices from.
type File struct {
	src    *bytesource.Source
	Header Header
}

// Parse validates src's MZ header and returns a File.
//
// Invariants checked per spec.md §3: e_magic in {"MZ","ZM"}, e_cparhdr >= 2.
func Parse(src *bytesource.Source) (*File, error) {
	if src.Len() < 0x40 {
		return nil, fmt.Errorf("%w: file too small for an MZ header", ErrInvalidHeader)
	}
	b0, _ := src.U8(0)
	b1, _ := src.U8(1)
	if !((b0 == 'M' && b1 == 'Z') || (b0 == 'Z' && b1 == 'M')) {
		return nil, fmt.Errorf("%w: missing MZ/ZM magic", ErrInvalidHeader)
	}

	h := Header{Magic: [2]byte{b0, b1}}
	h.LastPageBytes, _ = src.U16LE(0x02)
	h.Pages, _ = src.U16LE(0x04)
	h.RelocItems, _ = src.U16LE(0x06)
	h.HeaderParagraphs, _ = src.U16LE(0x08)
	h.MinExtraParas, _ = src.U16LE(0x0A)
	h.MaxExtraParas, _ = src.U16LE(0x0C)
	h.InitialSS, _ = src.U16LE(0x0E)
	h.InitialSP, _ = src.U16LE(0x10)
	h.Checksum, _ = src.U16LE(0x12)
	h.InitialIP, _ = src.U16LE(0x14)
	h.InitialCS, _ = src.U16LE(0x16)
	h.RelocTableOffset, _ = src.U16LE(0x18)
	h.OverlayNumber, _ = src.U16LE(0x1C)
	lfanew, _ := src.U32LE(0x3C)
	h.ELfaNew = lfanew

	if h.HeaderParagraphs < 2 {
		return nil, fmt.Errorf("%w: e_cparhdr=%d, want >= 2", ErrInvalidHeader, h.HeaderParagraphs)
	}
	if int64(h.HeaderParagraphs)*16 > int64(src.Len()) {
		return nil, fmt.Errorf("%w: header paragraph count extends past end of file", ErrInvalidHeader)
	}

	return &File{src: src, Header: h}, nil
}

// CodeSection returns source[e_cparhdr*16..], spec.md §4.D's code_section().
func (f *File) CodeSection() []byte {
	start := int64(f.Header.HeaderParagraphs) * 16
	b, err := f.src.Slice(start, int64(f.src.Len())-start)
	if err != nil {
		return nil
	}
	return b
}

// Relocations reads the classic MZ relocation table (e_crlc entries of a
// (offset, segment) u16 pair each, at e_lfarlc), the table an unpacked MZ
// image carries directly rather than reconstructing via a decompressor.
func (f *File) Relocations() []decompress.Relocation {
	relocs := make([]decompress.Relocation, 0, f.Header.RelocItems)
	base := int64(f.Header.RelocTableOffset)
	for i := uint16(0); i < f.Header.RelocItems; i++ {
		off := base + int64(i)*4
		offset, err1 := f.src.U16LE(off)
		segment, err2 := f.src.U16LE(off + 2)
		if err1 != nil || err2 != nil {
			break
		}
		relocs = append(relocs, decompress.Relocation{Segment: segment, Offset: offset})
	}
	return relocs
}

// DetectPacker runs every registered decompress.Decompressor's Detect
// predicate against the whole file buffer, returning the first match.
// Callers enable the packer suite by blank-importing
// pkg/xbin/decompress/all (or individual packer subpackages).
func (f *File) DetectPacker() (decompress.Decompressor, any, bool) {
	return decompress.Detect(f.src.Bytes())
}

// IsLikelyPacked implements spec.md §4.D: "high-entropy code section
// (>= 7.0 bits) or any packer signature matched".
func (f *File) IsLikelyPacked() bool {
	if _, _, ok := f.DetectPacker(); ok {
		return true
	}
	code := f.CodeSection()
	if len(code) == 0 {
		return false
	}
	sample := code
	const sampleSize = 4096
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	return entropy.Shannon(sample) >= entropy.High
}

// Decompress runs buf through the first matching registered decompressor
// and returns its reconstructed result, spec.md §6's
// `decompress(mz_file) -> Result<DecompressionResult, DecompressError>`
// entry point.
func (f *File) Decompress() (*decompress.Result, error) {
	d, params, ok := f.DetectPacker()
	if !ok {
		return nil, fmt.Errorf("mzfile: no registered decompressor recognizes this file")
	}
	return d.Decompress(f.src.Bytes(), params)
}
