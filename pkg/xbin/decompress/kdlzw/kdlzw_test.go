package kdlzw

import (
	"bytes"
	"testing"
)

// bitWriter packs variable-width LSB-first codes the way the decoder
// expects to read them back (3-byte little-endian window shifted right).
type bitWriter struct {
	bitBuf   uint32
	bitCount uint
	out      []byte
}

func (w *bitWriter) put(code uint16, width uint) {
	w.bitBuf |= uint32(code) << w.bitCount
	w.bitCount += width
	for w.bitCount >= 8 {
		w.out = append(w.out, byte(w.bitBuf))
		w.bitBuf >>= 8
		w.bitCount -= 8
	}
}

func (w *bitWriter) finish() []byte {
	if w.bitCount > 0 {
		w.out = append(w.out, byte(w.bitBuf))
	}
	return w.out
}

func putU16(b []byte, off int, v uint16) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
}

// buildFixture constructs a synthetic Knowledge Dynamics file: an outer MZ
// stub, an inner MZ header describing the code stream's bounds, and a
// literal-only LZW stream (every code below the dictionary-growth
// threshold is emitted verbatim, so no back-reference logic is exercised).
func buildFixture(literals []byte) []byte {
	const outerExtraStart = 512
	const innerHeaderParas = 2
	const innerNumPages = 2

	total := outerExtraStart + innerNumPages*512
	buf := make([]byte, total)
	buf[0], buf[1] = 'M', 'Z'
	putU16(buf, 0x02, 0)
	putU16(buf, 0x04, outerExtraStart/512)

	inner := buf[outerExtraStart:]
	inner[0], inner[1] = 'M', 'Z'
	putU16(inner, 0x02, 0)
	putU16(inner, 0x04, innerNumPages)
	putU16(inner, 0x08, innerHeaderParas)
	putU16(inner, 0x14, 0x0010) // initial IP
	putU16(inner, 0x16, 0x0000) // initial CS
	putU16(inner, 0x10, 0x0100) // initial SP
	putU16(inner, 0x0E, 0x0000) // initial SS
	putU16(inner, 0x0C, 0xFFFF) // max mem para

	w := &bitWriter{}
	for _, b := range literals {
		w.put(uint16(b), 9)
	}
	w.put(endCode, 9)
	code := w.finish()

	codeOffset := outerExtraStart + innerHeaderParas*16
	buf = append(buf, make([]byte, bufferSize)...)
	copy(buf[codeOffset:], code)
	return buf
}

func TestDetectAndDecompressLiterals(t *testing.T) {
	literals := []byte("HELLO")
	buf := buildFixture(literals)

	d := kdDecompressor{}
	p, ok := d.Detect(buf)
	if !ok {
		t.Fatalf("Detect failed on synthetic fixture")
	}

	result, err := d.Decompress(buf, p)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(result.Code, literals) {
		t.Fatalf("Code = %q, want %q", result.Code, literals)
	}
	if result.InitialIP != 0x0010 {
		t.Fatalf("InitialIP = %#x, want 0x10", result.InitialIP)
	}
}

func TestDetectRejectsNonMZ(t *testing.T) {
	d := kdDecompressor{}
	if _, ok := d.Detect([]byte{0, 0, 0, 0}); ok {
		t.Fatalf("expected Detect to reject non-MZ buffer")
	}
}

func TestDetectRejectsTruncated(t *testing.T) {
	d := kdDecompressor{}
	buf := buildFixture([]byte("X"))
	if _, ok := d.Detect(buf[:len(buf)-bufferSize]); ok {
		t.Fatalf("expected Detect to reject truncated buffer")
	}
}
