package mzfile

import (
	"testing"

	"github.com/provide-io/xbin/pkg/xbin/bytesource"
)

func putU16(b []byte, off int, v uint16) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
}

func minimalMZ(codeLen int) []byte {
	const headerParas = 4
	buf := make([]byte, int(headerParas)*16+codeLen)
	buf[0], buf[1] = 'M', 'Z'
	putU16(buf, 0x08, headerParas)
	putU16(buf, 0x0A, 0x10) // min extra paragraphs
	putU16(buf, 0x0C, 0xFFFF)
	putU16(buf, 0x14, 0x0000) // initial ip
	putU16(buf, 0x16, 0x0000) // initial cs
	return buf
}

func TestParseValidHeader(t *testing.T) {
	buf := minimalMZ(32)
	src := bytesource.New(buf)
	f, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Header.HeaderParagraphs != 4 {
		t.Fatalf("HeaderParagraphs = %d, want 4", f.Header.HeaderParagraphs)
	}
	if len(f.CodeSection()) != 32 {
		t.Fatalf("len(CodeSection()) = %d, want 32", len(f.CodeSection()))
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	buf := minimalMZ(16)
	buf[0], buf[1] = 'X', 'X'
	src := bytesource.New(buf)
	if _, err := Parse(src); err == nil {
		t.Fatalf("expected Parse to reject a non-MZ buffer")
	}
}

func TestParseRejectsShortHeaderParagraphs(t *testing.T) {
	buf := minimalMZ(16)
	putU16(buf, 0x08, 1) // e_cparhdr < 2
	src := bytesource.New(buf)
	if _, err := Parse(src); err == nil {
		t.Fatalf("expected Parse to reject e_cparhdr < 2")
	}
}

func TestIsLikelyPackedHighEntropy(t *testing.T) {
	buf := minimalMZ(4096)
	// Fill the code section with a pseudo-random byte pattern so its
	// Shannon entropy crosses the 7.0 bits/byte threshold.
	code := buf[64:]
	x := uint32(0x12345678)
	for i := range code {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		code[i] = byte(x)
	}
	src := bytesource.New(buf)
	f, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !f.IsLikelyPacked() {
		t.Fatalf("expected high-entropy code section to be flagged as likely packed")
	}
}

func TestIsLikelyPackedLowEntropy(t *testing.T) {
	buf := minimalMZ(256) // zero-filled code section
	src := bytesource.New(buf)
	f, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.IsLikelyPacked() {
		t.Fatalf("expected all-zero code section not to be flagged as likely packed")
	}
}
