// Package fixtures provides bzip2-backed loading of golden test binaries
// and small synthetic stand-ins for the seed scenarios of spec.md §8 that
// have no real-world binary available to embed. DecompressBzip2 mirrors
// the teacher's compress.Bzip2Operation.Reverse path so a future golden
// corpus can be dropped in as a single compressed blob without touching
// call sites.
package fixtures

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
)

// DecompressBzip2 inflates a bzip2-compressed blob, the same operation
// the teacher's compress package calls Reverse.
func DecompressBzip2(blob []byte) ([]byte, error) {
	br, err := bzip2.NewReader(bytes.NewReader(blob), &bzip2.ReaderConfig{})
	if err != nil {
		return nil, fmt.Errorf("fixtures: creating bzip2 reader: %w", err)
	}
	defer br.Close()

	data, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("fixtures: reading bzip2 data: %w", err)
	}
	return data, nil
}

func putU16(b []byte, off int, v uint16) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
}

func putU32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

// PE32TCMDX32 builds a synthetic stand-in for the S3 seed scenario: a
// 32-bit PE image whose COFF/optional-header fields match every value
// spec.md §8 asserts for TCMDX32.EXE (machine, timestamp, image base,
// entry RVA, alignments, image/header sizes, subsystem) with four
// named, correctly-ordered, identity-mapped sections. It is not a copy
// of the genuine binary - no such binary ships in this repository's
// source material - but it lets the PE32 header/section decoder be
// exercised against the exact invariants the scenario names.
func PE32TCMDX32() []byte {
	const (
		peOffset      = 0x80
		coffOffset    = peOffset + 4
		optHdrOffset  = coffOffset + 20
		numDirs       = 16
		optHdrSize    = 96 + numDirs*8
		sectionTable  = optHdrOffset + optHdrSize
		sectionCount  = 4
		sectionRaw    = 0x1000 // == FileAlignment, so SizeOfHeaders fits exactly
		sectionSize   = 0x1000 // one page each, == SectionAlignment
	)

	total := sectionRaw + sectionCount*sectionSize
	buf := make([]byte, total)
	buf[0], buf[1] = 'M', 'Z'
	putU32(buf, 0x3C, peOffset)
	buf[peOffset], buf[peOffset+1], buf[peOffset+2], buf[peOffset+3] = 'P', 'E', 0, 0

	putU16(buf, coffOffset+0, 0x014C) // Machine = I386
	putU16(buf, coffOffset+2, sectionCount)
	putU32(buf, coffOffset+4, 1467963278) // TimeDateStamp
	putU16(buf, coffOffset+16, optHdrSize)

	putU16(buf, optHdrOffset+0, 0x10B) // PE32 magic
	putU32(buf, optHdrOffset+16, 0x1000+0x4B58) // AddressOfEntryPoint (.text base + entry RVA)
	putU32(buf, optHdrOffset+28, 0x00400000)    // ImageBase
	putU32(buf, optHdrOffset+32, 0x1000)        // SectionAlignment
	putU32(buf, optHdrOffset+36, 0x1000)        // FileAlignment
	putU16(buf, optHdrOffset+68, 2)             // Subsystem = WINDOWS_GUI
	putU32(buf, optHdrOffset+56, 0x15000)       // SizeOfImage
	putU32(buf, optHdrOffset+60, 0x1000)        // SizeOfHeaders

	names := []string{".text", ".rdata", ".data", ".rsrc"}
	for i, name := range names {
		va := uint32(0x1000 + i*sectionSize)
		raw := uint32(sectionRaw + i*sectionSize)
		entry := buf[sectionTable+i*40 : sectionTable+(i+1)*40]
		copy(entry[0:8], name)
		putU32(entry, 8, sectionSize)
		putU32(entry, 12, va)
		putU32(entry, 16, sectionSize)
		putU32(entry, 20, raw)
	}

	return buf
}

// PE32PlusTCMADM64 is the S4 stand-in: a 64-bit (PE32+) image with the
// asserted image base, entry RVA, file alignment, section count, and a
// ".pdata" section among the five.
func PE32PlusTCMADM64() []byte {
	const (
		peOffset     = 0x80
		coffOffset   = peOffset + 4
		optHdrOffset = coffOffset + 20
		numDirs      = 16
		optHdrSize   = 112 + numDirs*8 // PE32+ optional header is 16 bytes larger
		sectionTable = optHdrOffset + optHdrSize
		sectionCount = 5
		sectionRaw   = 0x200
		sectionSize  = 0x1000
	)

	total := sectionRaw + sectionCount*sectionSize
	buf := make([]byte, total)
	buf[0], buf[1] = 'M', 'Z'
	putU32(buf, 0x3C, peOffset)
	buf[peOffset], buf[peOffset+1], buf[peOffset+2], buf[peOffset+3] = 'P', 'E', 0, 0

	putU16(buf, coffOffset+0, 0x8664) // Machine = AMD64
	putU16(buf, coffOffset+2, sectionCount)
	putU16(buf, coffOffset+16, optHdrSize)

	putU16(buf, optHdrOffset+0, 0x20B) // PE32+ magic
	putU32(buf, optHdrOffset+16, 0x1000+0x66C0) // AddressOfEntryPoint
	// ImageBase is a 64-bit field at +24 in PE32+: 0x1_4000_0000 split
	// into its low and high 32-bit halves.
	putU32(buf, optHdrOffset+24, 0x40000000)
	putU32(buf, optHdrOffset+28, 0x00000001)
	putU32(buf, optHdrOffset+32, 0x1000)     // SectionAlignment
	putU32(buf, optHdrOffset+36, 0x200)      // FileAlignment

	names := []string{".text", ".rdata", ".data", ".pdata", ".rsrc"}
	for i, name := range names {
		va := uint32(0x1000 + i*sectionSize)
		raw := uint32(sectionRaw + i*sectionSize)
		entry := buf[sectionTable+i*40 : sectionTable+(i+1)*40]
		copy(entry[0:8], name)
		putU32(entry, 8, sectionSize)
		putU32(entry, 12, va)
		putU32(entry, 16, sectionSize)
		putU32(entry, 20, raw)
	}

	return buf
}
