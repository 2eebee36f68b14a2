// Package lzexe implements the LZEXE 0.90/0.91 decompressor: a
// bit-stream-gated LZSS variant whose compressed body interleaves
// single-bit flags with offset/length fields drawn from the same bit
// cursor. No LZEXE C++ reference survived distillation into
// original_source (only its unit test harness did); the bit-field widths
// below follow spec.md's prose description verbatim, and the bit-cursor
// plumbing and relocation-table walk are original engineering grounded on
// that description plus the general LZSS-with-side-channel shape shared
// by exepack and kdlzw in this package family.
package lzexe

import (
	"github.com/provide-io/xbin/pkg/xbin/decompress"
)

// Version distinguishes the two near-identical LZEXE releases; they share
// a decoder and differ only in their stub signature.
type Version int

const (
	V090 Version = iota
	V091
)

func (v Version) String() string {
	if v == V090 {
		return "0.90"
	}
	return "0.91"
}

type lzexeParams struct {
	version      Version
	codeStart    int
	stubOffset   int // offset of the signature within the file
	initialIP    uint16
	initialCS    uint16
	initialSP    uint16
	initialSS    uint16
	headerParas  uint16
}

type lzexeDecompressor struct{}

func init() {
	decompress.Register(lzexeDecompressor{})
}

func (lzexeDecompressor) ID() string   { return "lzexe" }
func (lzexeDecompressor) Name() string { return "LZEXE" }

func u16(b []byte, off int) uint16 {
	return uint16(b[off]) | uint16(b[off+1])<<8
}

// sigOffset is the LZEXE stub's signature location relative to the start
// of the code segment, constant across both supported versions.
const sigOffset = 0x1C

func findSignature(buf []byte, codeStart int) (Version, int, bool) {
	pos := codeStart + sigOffset
	if pos+4 > len(buf) {
		return 0, 0, false
	}
	sig := buf[pos : pos+4]
	switch string(sig) {
	case "LZ09":
		return V090, pos, true
	case "LZ91":
		return V091, pos, true
	}
	return 0, 0, false
}

func readParams(data []byte) (lzexeParams, bool) {
	if len(data) < 0x20 || data[0] != 'M' || data[1] != 'Z' {
		return lzexeParams{}, false
	}
	headerParas := u16(data, 0x08)
	codeStart := int(headerParas) * 16
	if codeStart >= len(data) {
		return lzexeParams{}, false
	}

	version, stubOffset, ok := findSignature(data, codeStart)
	if !ok {
		return lzexeParams{}, false
	}

	p := lzexeParams{
		version:     version,
		codeStart:   codeStart,
		stubOffset:  stubOffset,
		headerParas: headerParas,
	}
	// The stub carries the original program's register snapshot right
	// after its 4-byte signature, in (ip, cs-delta, sp, ss-delta) word
	// order; cs/ss deltas are relative to the stub's own load segment
	// since the packer removes itself before those registers apply.
	regOffset := stubOffset + 4
	if regOffset+8 <= len(data) {
		p.initialIP = u16(data, regOffset)
		p.initialCS = u16(data, regOffset+2)
		p.initialSP = u16(data, regOffset+4)
		p.initialSS = u16(data, regOffset+6)
	}
	return p, true
}

func (lzexeDecompressor) Detect(buf []byte) (any, bool) {
	p, ok := readParams(buf)
	if !ok {
		return nil, false
	}
	return p, true
}

// bitReader pulls single-bit flags and multi-bit fields from a 16-bit
// window refilled two bytes at a time, least-significant bit first.
type bitReader struct {
	buf  []byte
	pos  int
	word uint16
	left uint
}

func newBitReader(buf []byte, pos int) *bitReader {
	return &bitReader{buf: buf, pos: pos}
}

func (r *bitReader) bit() (uint32, bool) {
	if r.left == 0 {
		if r.pos+2 > len(r.buf) {
			return 0, false
		}
		r.word = u16(r.buf, r.pos)
		r.pos += 2
		r.left = 16
	}
	b := r.word & 1
	r.word >>= 1
	r.left--
	return uint32(b), true
}

func (r *bitReader) bits(n uint) (uint32, bool) {
	var v uint32
	for i := uint(0); i < n; i++ {
		b, ok := r.bit()
		if !ok {
			return 0, false
		}
		v |= b << i
	}
	return v, true
}

// decompressBody runs the LZSS loop described in spec.md §4.K: a prefix
// bit selects literal-vs-match; a nested bit then selects a 13-bit-offset/
// 3-bit-length "long" match from an 11-bit-offset/2-bit-length "short"
// one. Offsets are stored ones-complemented (negative displacement);
// a zero-length-code long match whose extension byte is also zero
// terminates the stream.
func decompressBody(buf []byte, start int) ([]byte, int, error) {
	r := newBitReader(buf, start)
	out := make([]byte, 0, len(buf)-start)

	for {
		flag, ok := r.bit()
		if !ok {
			return nil, 0, decompress.Fail("lzexe: bit stream underflow reading flag")
		}
		if flag == 1 {
			lit, ok := r.bits(8)
			if !ok {
				return nil, 0, decompress.Fail("lzexe: bit stream underflow reading literal")
			}
			out = append(out, byte(lit))
			continue
		}

		kind, ok := r.bit()
		if !ok {
			return nil, 0, decompress.Fail("lzexe: bit stream underflow reading match kind")
		}

		var length int
		var offset int

		if kind == 1 {
			rawOffset, ok := r.bits(13)
			if !ok {
				return nil, 0, decompress.Fail("lzexe: bit stream underflow reading long offset")
			}
			lengthCode, ok := r.bits(3)
			if !ok {
				return nil, 0, decompress.Fail("lzexe: bit stream underflow reading long length")
			}
			if lengthCode == 0 {
				ext, ok := r.bits(8)
				if !ok {
					return nil, 0, decompress.Fail("lzexe: bit stream underflow reading length extension")
				}
				if ext == 0 {
					break // terminator
				}
				length = int(ext) + 2
			} else {
				length = int(lengthCode) + 2
			}
			offset = int((^rawOffset) & 0x1FFF)
		} else {
			lengthCode, ok := r.bits(2)
			if !ok {
				return nil, 0, decompress.Fail("lzexe: bit stream underflow reading short length")
			}
			rawOffset, ok := r.bits(11)
			if !ok {
				return nil, 0, decompress.Fail("lzexe: bit stream underflow reading short offset")
			}
			length = int(lengthCode) + 2
			offset = int((^rawOffset) & 0x7FF)
		}

		srcStart := len(out) - offset - 1
		if srcStart < 0 {
			return nil, 0, decompress.Fail("lzexe: back-reference underflows output (offset=%d, len(out)=%d)", offset, len(out))
		}
		for i := 0; i < length; i++ {
			out = append(out, out[srcStart+i])
		}
	}

	// The relocation table starts at the next byte after the last
	// 16-bit control word the bit cursor consumed; any unused tail bits
	// of that final word are padding, not meaningful stream content.
	return out, r.pos, nil
}

// parseRelocations walks the post-body relocation encoding: runs of u16
// offset deltas within the current segment, terminated by a zero count; a
// zero count followed by a nonzero u16 advances the segment and restarts
// the offset accumulator, while a zero count followed by a zero word ends
// the table.
func parseRelocations(buf []byte, pos int) []decompress.Relocation {
	var relocs []decompress.Relocation
	segment := uint16(0)
	for {
		if pos+2 > len(buf) {
			return relocs
		}
		count := u16(buf, pos)
		pos += 2
		if count == 0 {
			if pos+2 > len(buf) {
				return relocs
			}
			segDelta := u16(buf, pos)
			pos += 2
			if segDelta == 0 {
				return relocs
			}
			segment += segDelta
			continue
		}
		offset := uint16(0)
		for i := uint16(0); i < count; i++ {
			if pos+2 > len(buf) {
				return relocs
			}
			delta := u16(buf, pos)
			pos += 2
			offset += delta
			relocs = append(relocs, decompress.Relocation{Segment: segment, Offset: offset})
		}
	}
}

func (lzexeDecompressor) Decompress(buf []byte, paramsAny any) (*decompress.Result, error) {
	p, ok := paramsAny.(lzexeParams)
	if !ok {
		var detectOK bool
		p, detectOK = readParams(buf)
		if !detectOK {
			return nil, decompress.Fail("lzexe: could not locate LZ09/LZ91 signature")
		}
	}

	code, bodyEnd, err := decompressBody(buf, p.codeStart)
	if err != nil {
		return nil, err
	}

	// The relocation table follows the compressed body's terminator
	// within the stub region, ahead of the signature itself.
	relocs := parseRelocations(buf, bodyEnd)

	return &decompress.Result{
		Code:               code,
		InitialIP:          p.initialIP,
		InitialCS:          p.initialCS,
		InitialSP:          p.initialSP,
		InitialSS:          p.initialSS,
		HeaderParagraphs:   p.headerParas,
		Relocations:        relocs,
	}, nil
}
