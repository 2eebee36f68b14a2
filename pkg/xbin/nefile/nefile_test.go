package nefile

import (
	"testing"

	"github.com/provide-io/xbin/pkg/xbin/bytesource"
)

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

// buildFixture assembles a minimal but structurally complete NE module: an
// MZ stub, a 64-byte NE header, a one-entry segment table, and resident /
// non-resident name tables.
func buildFixture() []byte {
	const neOffset = 0x40
	const segmentTableOffset = 0x40 // relative to NE header
	const residentOffset = 0x50
	const alignmentShift = 4

	buf := make([]byte, 0x200)
	buf[0], buf[1] = 'M', 'Z'
	putU32(buf, 0x3C, neOffset)

	hdr := buf[neOffset : neOffset+0x40]
	hdr[0], hdr[1] = 'N', 'E'
	hdr[0x0C] = 0x00 // flags lo
	hdr[0x0D] = 0x00
	putU16(hdr, 0x14, 0x0010) // entry ip
	putU16(hdr, 0x16, 0x0001) // entry cs (segment 1)
	putU16(hdr, 0x1C, 1)      // segment count
	putU16(hdr, 0x22, segmentTableOffset)
	putU16(hdr, 0x26, residentOffset)
	putU16(hdr, 0x32, alignmentShift)

	// Segment table: one code segment at sector offset 0x08 (-> file
	// offset 0x08<<4 = 0x80), length 0x20, flags=0 (code).
	segTable := buf[neOffset+segmentTableOffset:]
	putU16(segTable, 0, 0x08)
	putU16(segTable, 2, 0x20)
	putU16(segTable, 4, 0x0000)
	putU16(segTable, 6, 0x0020)

	// Resident name table: module name "TESTMOD" ordinal 0, then a
	// zero-length terminator.
	rn := buf[neOffset+residentOffset:]
	name := []byte("TESTMOD")
	rn[0] = byte(len(name))
	copy(rn[1:], name)
	putU16(rn, 1+len(name), 0)
	rn[1+len(name)+2] = 0 // terminator

	return buf
}

func TestParseHeaderAndSegments(t *testing.T) {
	buf := buildFixture()
	f, err := Parse(bytesource.New(buf))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Header.SegmentCount != 1 {
		t.Fatalf("SegmentCount = %d, want 1", f.Header.SegmentCount)
	}
	if len(f.Segments) != 1 {
		t.Fatalf("len(Segments) = %d, want 1", len(f.Segments))
	}
	seg := f.Segments[0]
	if seg.FileOffset != 0x80 {
		t.Fatalf("FileOffset = %#x, want 0x80", seg.FileOffset)
	}
	if seg.FileSize != 0x20 {
		t.Fatalf("FileSize = %#x, want 0x20", seg.FileSize)
	}
	if !seg.Flags.IsCode() {
		t.Fatalf("expected segment to classify as code")
	}
}

func TestGetSegmentOneBased(t *testing.T) {
	buf := buildFixture()
	f, err := Parse(bytesource.New(buf))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := f.GetSegment(0); ok {
		t.Fatalf("expected index 0 to be invalid (1-based indexing)")
	}
	if _, ok := f.GetSegment(1); !ok {
		t.Fatalf("expected index 1 to resolve")
	}
}

func TestResidentNames(t *testing.T) {
	buf := buildFixture()
	f, err := Parse(bytesource.New(buf))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	names := f.ResidentNames()
	if len(names) != 1 || names[0].Name != "TESTMOD" {
		t.Fatalf("ResidentNames() = %+v, want [{TESTMOD 0}]", names)
	}
}

func TestParseRejectsMissingNESignature(t *testing.T) {
	buf := make([]byte, 256)
	buf[0], buf[1] = 'M', 'Z'
	putU32(buf, 0x3C, 0x80)
	buf[0x80], buf[0x81] = 'P', 'E'
	if _, err := Parse(bytesource.New(buf)); err == nil {
		t.Fatalf("expected Parse to reject a non-NE signature at e_lfanew")
	}
}

func TestIsSelfLoading(t *testing.T) {
	buf := buildFixture()
	hdr := buf[0x40 : 0x40+0x40]
	putU16(hdr, 0x0C, FlagSelfLoad)
	f, err := Parse(bytesource.New(buf))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !f.IsSelfLoading() {
		t.Fatalf("expected IsSelfLoading to report true when FlagSelfLoad is set")
	}
}
