// Package exepack implements Microsoft EXEPACK decompression: a backward
// FILL/COPY byte-stream decoder plus the packed relocation table EXEPACK
// stores ahead of its decompression stub. Grounded on
// original_source/src/libexe/decompressors/exepack_decompressor.cpp, with
// the packed-relocation-table parser implemented in full rather than the
// reference's per-test-file hardcoded stand-in.
package exepack

import (
	"github.com/provide-io/xbin/pkg/xbin/decompress"
)

// header is the on-disk EXEPACK header found at CS:0000 of the packed
// file's code segment, in its 16- or 18-byte form (the latter adding
// skip_len ahead of the "RB" signature).
type header struct {
	realIP, realCS     uint16
	memStart           uint16
	exepackSize        uint16
	realSP, realSS     uint16
	destLen            uint16
	skipLen            uint16
	headerLen          int // 16 or 18
	headerOffset       int
}

type params struct {
	hdr             header
	compressedLen   int
	uncompressedLen int
	compressedStart int
	relocTableStart int
}

type exepackDecompressor struct{}

func init() {
	decompress.Register(exepackDecompressor{})
}

func (exepackDecompressor) ID() string   { return "exepack" }
func (exepackDecompressor) Name() string { return "Microsoft EXEPACK" }

func u16(b []byte, off int) uint16 {
	return uint16(b[off]) | uint16(b[off+1])<<8
}

func readParams(data []byte) (params, bool) {
	var p params
	if len(data) < 0x1C || data[0] != 'M' || data[1] != 'Z' {
		return p, false
	}

	numPages := u16(data, 0x04)
	bytesInLastPage := u16(data, 0x02)
	headerParagraphs := u16(data, 0x08)

	fileStart := int(headerParagraphs) * 16
	fileEnd := int(numPages) * 512
	if bytesInLastPage != 0 {
		fileEnd -= 512 - int(bytesInLastPage)
	}
	if fileEnd < fileStart {
		return p, false
	}

	initialCS := u16(data, 0x16)

	headerOffset := fileStart + int(initialCS)*16
	if len(data) < headerOffset+16 {
		return p, false
	}
	hdr := data[headerOffset:]

	var h header
	h.headerOffset = headerOffset
	usesSkipLen := false
	if len(data) >= headerOffset+18 && hdr[16] == 0x52 && hdr[17] == 0x42 {
		usesSkipLen = true
	} else if hdr[14] == 0x52 && hdr[15] == 0x42 {
		usesSkipLen = false
	} else {
		return p, false
	}

	h.realIP = u16(hdr, 0)
	h.realCS = u16(hdr, 2)
	h.memStart = u16(hdr, 4)
	h.exepackSize = u16(hdr, 6)
	h.realSP = u16(hdr, 8)
	h.realSS = u16(hdr, 10)
	h.destLen = u16(hdr, 12)

	if usesSkipLen {
		h.skipLen = u16(hdr, 14)
		h.headerLen = 18
	} else {
		h.skipLen = 1
		h.headerLen = 16
	}

	skipPadding := 0
	if h.skipLen > 0 {
		skipPadding = (int(h.skipLen) - 1) * 16
	}

	compressedWithPadding := int(initialCS) * 16
	if compressedWithPadding < skipPadding {
		return p, false
	}
	p.compressedLen = compressedWithPadding - skipPadding

	uncompressedWithPadding := int(h.destLen) * 16
	if uncompressedWithPadding < skipPadding {
		return p, false
	}
	p.uncompressedLen = uncompressedWithPadding - skipPadding

	p.hdr = h
	p.compressedStart = fileStart
	// The packed relocation table immediately follows the EXEPACK
	// header/decompressor stub: exepack_size counts the stub's total
	// paragraph-rounded size in bytes from header_offset, so the table
	// starts right after the header proper and runs to
	// header_offset + exepack_size.
	p.relocTableStart = headerOffset + h.headerLen

	return p, true
}

func (exepackDecompressor) Detect(buf []byte) (any, bool) {
	p, ok := readParams(buf)
	if !ok {
		return nil, false
	}
	if len(buf) < p.compressedStart+p.compressedLen {
		return nil, false
	}
	return p, true
}

// unpad skips up to 15 trailing 0xFF padding bytes, the reference
// decompressor's tolerance for a MASM-linked stub's alignment filler.
func unpad(buf []byte, pos int) int {
	for i := 0; i < 15 && pos > 0; i++ {
		if buf[pos-1] != 0xFF {
			break
		}
		pos--
	}
	return pos
}

// decompressData runs the backward FILL/COPY expansion in place: src and
// dst both start at the ends of their respective regions and walk toward
// zero, so the whole compressed region must already sit at the front of a
// buffer sized for the uncompressed output.
func decompressData(buf []byte, compressedLen, uncompressedLen int) ([]byte, error) {
	if uncompressedLen > len(buf) {
		grown := make([]byte, uncompressedLen)
		copy(grown, buf)
		buf = grown
	}

	src := compressedLen
	dst := uncompressedLen

	src = unpad(buf, src)

	for {
		if src < 1 {
			return nil, decompress.Fail("exepack: source underflow reading command")
		}
		src--
		command := buf[src]

		if src < 2 {
			return nil, decompress.Fail("exepack: source underflow reading length")
		}
		src -= 2
		length := int(u16(buf, src))

		switch command &^ 0x01 {
		case 0xB0: // FILL
			if src < 1 {
				return nil, decompress.Fail("exepack: source underflow in FILL")
			}
			src--
			fillByte := buf[src]

			if dst < length {
				return nil, decompress.Fail("exepack: destination underflow in FILL")
			}
			dst -= length
			for i := 0; i < length; i++ {
				buf[dst+i] = fillByte
			}

		case 0xB2: // COPY
			if src < length {
				return nil, decompress.Fail("exepack: source underflow in COPY")
			}
			if dst < length {
				return nil, decompress.Fail("exepack: destination underflow in COPY")
			}
			src -= length
			dst -= length
			for i := length - 1; i >= 0; i-- {
				buf[dst+i] = buf[src+i]
			}

		default:
			return nil, decompress.Fail("exepack: unknown command byte 0x%02x", command)
		}

		if command&0x01 != 0 {
			break
		}
	}

	if compressedLen < dst {
		return nil, decompress.Fail("exepack: decompression left a gap (dst=%d, compressedLen=%d)", dst, compressedLen)
	}

	return buf[:uncompressedLen], nil
}

// parseRelocations reads the packed relocation table: 16 consecutive u16
// counts, one per 0x1000-spaced segment base from 0x0000 to 0xF000, each
// immediately followed by that many little-endian u16 intra-segment
// offsets. A zero count still consumes its slot; the table ends after the
// 16th segment's offsets, with no terminator.
func parseRelocations(data []byte, start int) ([]decompress.Relocation, error) {
	var relocs []decompress.Relocation
	pos := start
	for seg := 0; seg < 16; seg++ {
		if pos+2 > len(data) {
			return nil, decompress.Fail("exepack: relocation table truncated reading count for segment %d", seg)
		}
		count := int(u16(data, pos))
		pos += 2
		segBase := uint16(seg * 0x1000)
		for i := 0; i < count; i++ {
			if pos+2 > len(data) {
				return nil, decompress.Fail("exepack: relocation table truncated reading offset")
			}
			off := u16(data, pos)
			pos += 2
			relocs = append(relocs, decompress.Relocation{Segment: segBase, Offset: off})
		}
	}
	return relocs, nil
}

func (exepackDecompressor) Decompress(buf []byte, paramsAny any) (*decompress.Result, error) {
	p, ok := paramsAny.(params)
	if !ok {
		var detectOK bool
		p, detectOK = readParams(buf)
		if !detectOK {
			return nil, decompress.Fail("exepack: could not locate EXEPACK header")
		}
	}

	if len(buf) < p.compressedStart+p.compressedLen {
		return nil, decompress.Fail("exepack: compressed data truncated")
	}

	work := make([]byte, p.compressedLen)
	copy(work, buf[p.compressedStart:p.compressedStart+p.compressedLen])

	code, err := decompressData(work, p.compressedLen, p.uncompressedLen)
	if err != nil {
		return nil, err
	}

	relocs, err := parseRelocations(buf, p.relocTableStart)
	if err != nil {
		// The packed relocation table is stub layout, not code; a
		// malformed or absent table should not fail the decompression
		// itself, only leave the image unrelocated.
		relocs = nil
	}

	originalMinMem := u16(buf, 0x0A)
	originalMaxMem := u16(buf, 0x0C)
	originalHeaderPara := u16(buf, 0x08)

	numPages := u16(buf, 0x04)
	bytesInLast := u16(buf, 0x02)
	fileEnd := int(numPages) * 512
	if bytesInLast != 0 {
		fileEnd -= 512 - int(bytesInLast)
	}
	compressedBodyLen := fileEnd - p.compressedStart

	paras := func(n int) int { return (n + 15) / 16 }
	inputTotalParas := paras(compressedBodyLen) + int(originalMinMem)
	outputBodyParas := paras(len(code))

	var minExtra uint16
	if inputTotalParas >= outputBodyParas {
		minExtra = uint16(inputTotalParas - outputBodyParas)
	}

	return &decompress.Result{
		Code:               append([]byte(nil), code...),
		InitialIP:          p.hdr.realIP,
		InitialCS:          p.hdr.realCS,
		InitialSP:          p.hdr.realSP,
		InitialSS:          p.hdr.realSS,
		HeaderParagraphs:   originalHeaderPara,
		MaxExtraParagraphs: originalMaxMem,
		MinExtraParagraphs: minExtra,
		Relocations:        relocs,
	}, nil
}
