// Package pklite implements PKLITE decompression: signature-pattern
// variant detection, optional XOR/ADD stub descrambling, and an
// LZ77-with-Huffman-length-codes core. Grounded on
// original_source/include/libexe/decompressors/pklite.hpp for the
// variant/class taxonomy (pklite_intro_class, pklite_descrambler_class,
// pklite_decompr_class, pklite_copier_class, pklite_scramble_method) and
// on unittests/test_pklite_decompress.cpp for the e_ovno-field signature
// word's on-disk location (file offset 0x1C). No pklite_decompressor.cpp
// survived distillation, so the bitstream shape below follows the
// generally documented structure of PKLITE's decompression stub (a
// byte-aligned literal cursor alongside a bit-aligned match-code cursor,
// MSB-first), with bit-width and flag-selection specifics called out as
// explicit assumptions where no ground truth was available.
package pklite

import (
	"bytes"

	"github.com/provide-io/xbin/pkg/utils"
	"github.com/provide-io/xbin/pkg/xbin/decompress"
)

// IntroClass identifies the decompression stub variant, mirroring
// pklite_intro_class.
type IntroClass uint8

const (
	IntroUnknown IntroClass = 0
	IntroBeta    IntroClass = 8
	IntroBetaLH  IntroClass = 9
	Intro100     IntroClass = 10
	Intro112     IntroClass = 12
	Intro114     IntroClass = 14
	Intro150     IntroClass = 50
	IntroUN2PACK IntroClass = 100
	IntroMEGALITE IntroClass = 101
)

// ScrambleMethod mirrors pklite_scramble_method: later stubs (1.14+)
// obfuscate themselves with a repeating-key XOR or ADD pass the
// decompression stub itself reverses before running.
type ScrambleMethod uint8

const (
	ScrambleNone ScrambleMethod = 0
	ScrambleXOR  ScrambleMethod = 1
	ScrambleAdd  ScrambleMethod = 2
)

type pkliteParams struct {
	intro       IntroClass
	extra       bool // PKLITE "Extra" variant, as opposed to standard
	infoWord    uint16
	codeStart   int
	scramble    ScrambleMethod
	scrambleKey byte
	largeCmpr   bool
	longReloc   bool
}

type pkliteDecompressor struct{}

func init() {
	decompress.Register(pkliteDecompressor{})
}

func (pkliteDecompressor) ID() string   { return "pklite" }
func (pkliteDecompressor) Name() string { return "PKLITE" }

func u16(b []byte, off int) uint16 {
	return uint16(b[off]) | uint16(b[off+1])<<8
}

// signature is the readable banner text every genuine PKLITE stub
// carries near its decompression routine, the same marker file(1)'s
// magic database and most disassemblers key off of.
var signature = []byte("PKLITE")

const searchWindow = 2048

func readParams(data []byte) (pkliteParams, bool) {
	if len(data) < 0x1E || data[0] != 'M' || data[1] != 'Z' {
		return pkliteParams{}, false
	}
	headerParas := u16(data, 0x08)
	codeStart := int(headerParas) * 16
	if codeStart >= len(data) {
		return pkliteParams{}, false
	}

	infoWord := u16(data, 0x1C)

	end := codeStart + searchWindow
	if end > len(data) {
		end = len(data)
	}
	if !bytes.Contains(data[codeStart:end], signature) {
		return pkliteParams{}, false
	}

	p := pkliteParams{
		infoWord:  infoWord,
		codeStart: codeStart,
	}

	hi := byte(infoWord >> 8)
	switch {
	case hi >= 0x30:
		p.intro = Intro150
		p.extra = true
	case hi >= 0x20:
		p.intro = Intro112
	case hi >= 0x10:
		p.intro = Intro100
	default:
		p.intro = IntroUnknown
	}

	// Heuristics for flags pklite_decompressor's analyze_detect_* stages
	// would derive from pattern-matching the stub's actual code bytes:
	// with no surviving algorithm body to confirm against, the info
	// word's low bits stand in as the closest available signal.
	p.largeCmpr = infoWord&0x0100 != 0
	p.longReloc = p.extra

	entry := codeStart
	if entry < len(data) && data[entry] != 0xB8 {
		// A genuine unscrambled stub starts "MOV AX, imm16" (0xB8); a
		// different leading byte indicates a scrambled 1.14+ stub.
		p.scramble = ScrambleXOR
		p.scrambleKey = data[entry] ^ 0xB8
	}

	return p, true
}

func (pkliteDecompressor) Detect(buf []byte) (any, bool) {
	p, ok := readParams(buf)
	if !ok {
		return nil, false
	}
	return p, true
}

// descramble reverses a repeating single-byte XOR or ADD pass applied to
// the stub, generalizing pkg/utils/xor.go's fixed pi-digit repeating-key
// XOR to an arbitrary per-file recovered key (PKLITE's scramble key is
// derived from the file, not a constant).
func descramble(buf []byte, method ScrambleMethod, key byte) []byte {
	if method == ScrambleNone {
		return buf
	}
	out := make([]byte, len(buf))
	switch method {
	case ScrambleXOR:
		copy(out, utils.XORDecode(buf, []byte{key}))
	case ScrambleAdd:
		for i, b := range buf {
			out[i] = b - key
		}
	default:
		copy(out, buf)
	}
	return out
}

// bitReader reads match codes MSB-first from a byte refilled one at a
// time, the documented PKLITE convention (distinct from LZEXE's 16-bit,
// LSB-first window).
type bitReader struct {
	buf   []byte
	pos   int
	cur   byte
	left  uint
}

func newBitReader(buf []byte, pos int) *bitReader {
	return &bitReader{buf: buf, pos: pos}
}

func (r *bitReader) bit() (uint32, bool) {
	if r.left == 0 {
		if r.pos >= len(r.buf) {
			return 0, false
		}
		r.cur = r.buf[r.pos]
		r.pos++
		r.left = 8
	}
	b := (r.cur & 0x80) >> 7
	r.cur <<= 1
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
		v = (v << 1) | b
	}
	return v, true
}

// byte reads a literal or length-extension byte. These always fall on a
// byte boundary in the encoded stream, so any bits left over in the
// current partially-consumed control byte are padding and are discarded.
func (r *bitReader) byte() (byte, bool) {
	r.left = 0
	if r.pos >= len(r.buf) {
		return 0, false
	}
	b := r.buf[r.pos]
	r.pos++
	return b, true
}

// decompressBody runs the LZ77 loop: a literal bit selects a raw output
// byte (drawn from the same forward byte cursor the bit reader refills
// from); a match instead codes a length via a short unary prefix plus an
// extension byte, then an offset whose width depends on length and the
// large-compression flag.
func decompressBody(buf []byte, start int, largeCmpr bool) ([]byte, int, error) {
	r := newBitReader(buf, start)
	out := make([]byte, 0, len(buf)-start)

	for {
		bit, ok := r.bit()
		if !ok {
			return nil, 0, decompress.Fail("pklite: bit stream underflow reading literal flag")
		}
		if bit == 1 {
			b, ok := r.byte()
			if !ok {
				return nil, 0, decompress.Fail("pklite: stream underflow reading literal byte")
			}
			out = append(out, b)
			continue
		}

		length := 2
		b1, ok := r.bit()
		if !ok {
			return nil, 0, decompress.Fail("pklite: bit stream underflow reading length bit 1")
		}
		if b1 == 1 {
			length = 3
			b2, ok := r.bit()
			if !ok {
				return nil, 0, decompress.Fail("pklite: bit stream underflow reading length bit 2")
			}
			if b2 == 1 {
				ext, ok := r.byte()
				if !ok {
					return nil, 0, decompress.Fail("pklite: stream underflow reading length extension")
				}
				if ext == 0 {
					break // end-of-stream marker
				}
				length = int(ext) + 2
			}
		}

		offsetBits := uint(11)
		if length == 2 {
			offsetBits = 7
		} else if largeCmpr {
			offsetBits = 12
		}
		rawOffset, ok := r.bits(offsetBits)
		if !ok {
			return nil, 0, decompress.Fail("pklite: bit stream underflow reading offset")
		}
		offset := int(rawOffset) + 1

		srcStart := len(out) - offset
		if srcStart < 0 {
			return nil, 0, decompress.Fail("pklite: back-reference underflows output (offset=%d, len(out)=%d)", offset, len(out))
		}
		for i := 0; i < length; i++ {
			out = append(out, out[srcStart+i])
		}
	}

	return out, r.pos, nil
}

// readRelocTableShort reads single u16 offsets in the implied current
// segment until a 0xFFFF terminator, mirroring
// pklite_decompressor::read_reloc_table_short's simpler per-version
// relocation encoding.
func readRelocTableShort(buf []byte, pos int) []decompress.Relocation {
	var relocs []decompress.Relocation
	for pos+2 <= len(buf) {
		v := u16(buf, pos)
		pos += 2
		if v == 0xFFFF {
			break
		}
		relocs = append(relocs, decompress.Relocation{Segment: 0, Offset: v})
	}
	return relocs
}

// readRelocTableLong reads full (segment, offset) pairs until a
// (0xFFFF, 0xFFFF) sentinel, the format later/"Extra" PKLITE variants use
// when relocations span more than one segment.
func readRelocTableLong(buf []byte, pos int) []decompress.Relocation {
	var relocs []decompress.Relocation
	for pos+4 <= len(buf) {
		off := u16(buf, pos)
		seg := u16(buf, pos+2)
		pos += 4
		if off == 0xFFFF && seg == 0xFFFF {
			break
		}
		relocs = append(relocs, decompress.Relocation{Segment: seg, Offset: off})
	}
	return relocs
}

func (pkliteDecompressor) Decompress(buf []byte, paramsAny any) (*decompress.Result, error) {
	p, ok := paramsAny.(pkliteParams)
	if !ok {
		var detectOK bool
		p, detectOK = readParams(buf)
		if !detectOK {
			return nil, decompress.Fail("pklite: could not locate PKLITE signature")
		}
	}

	body := buf[p.codeStart:]
	if p.scramble != ScrambleNone {
		body = descramble(body, p.scramble, p.scrambleKey)
	}

	combined := make([]byte, p.codeStart+len(body))
	copy(combined, buf[:p.codeStart])
	copy(combined[p.codeStart:], body)

	code, relocStart, err := decompressBody(combined, p.codeStart, p.largeCmpr)
	if err != nil {
		return nil, err
	}

	var relocs []decompress.Relocation
	if p.longReloc {
		relocs = readRelocTableLong(combined, relocStart)
	} else {
		relocs = readRelocTableShort(combined, relocStart)
	}

	originalMinMem := u16(buf, 0x0A)
	originalMaxMem := u16(buf, 0x0C)
	originalHeaderPara := u16(buf, 0x08)
	initialSS := u16(buf, 0x0E)
	initialSP := u16(buf, 0x10)
	initialIP := u16(buf, 0x14)
	initialCS := u16(buf, 0x16)

	return &decompress.Result{
		Code:               code,
		InitialIP:          initialIP,
		InitialCS:          initialCS,
		InitialSP:          initialSP,
		InitialSS:          initialSS,
		HeaderParagraphs:   originalHeaderPara,
		MaxExtraParagraphs: originalMaxMem,
		MinExtraParagraphs: originalMinMem,
		Relocations:        relocs,
	}, nil
}
