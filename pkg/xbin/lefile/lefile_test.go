package lefile

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

// buildFixture assembles a minimal but structurally complete LE module:
// an MZ stub, the 196-byte LE header, a one-entry object table, a
// matching object-page table (two pages), a two-page fixup page table
// with one INTERNAL fixup on page 1 and one IMPORT_ORDINAL fixup on
// page 2, and a one-entry imported-module name table.
func buildFixture() []byte {
	const (
		leOffset      = 0x40
		objTableOff   = 0xC4 // relative to leOffset
		pageMapOff    = objTableOff + 24
		fixupPageOff  = pageMapOff + 4*2
		fixupRecOff   = fixupPageOff + 4*3 // page_count+1 = 3 entries
		importNameOff = fixupRecOff + 64
	)

	buf := make([]byte, 0x400)
	buf[0], buf[1] = 'M', 'Z'
	putU32(buf, 0x3C, leOffset)

	hdr := buf[leOffset : leOffset+headerSize]
	hdr[0], hdr[1] = 'L', 'E'
	putU32(hdr, 40, 0x1000)  // MemoryPageSize
	putU32(hdr, 64, objTableOff)
	putU32(hdr, 68, 1) // ObjectTableEntries
	putU32(hdr, 72, pageMapOff)
	putU32(hdr, 104, fixupPageOff)
	putU32(hdr, 108, fixupRecOff)
	putU32(hdr, 112, importNameOff)
	putU32(hdr, 116, 1) // ImportedModulesCount
	putU32(hdr, 128, 0x200) // DataPagesOffsetFromTopOfFile (absolute)

	// Object table: one object, 2 pages, readable+executable.
	obj := buf[leOffset+objTableOff:]
	putU32(obj, 0, 0x2000)    // VirtualSize
	putU32(obj, 4, 0x10000)   // BaseRelocAddress
	putU32(obj, 8, uint32(ObjFlagReadable|ObjFlagExecutable))
	putU32(obj, 12, 1) // PageTableIndex
	putU32(obj, 16, 2) // PageTableEntries

	// Object-page table: 2 entries, 4 bytes each (3-byte BE page offset + flags).
	pages := buf[leOffset+pageMapOff:]
	pages[0], pages[1], pages[2], pages[3] = 0x00, 0x00, 0x00, 0x00 // page 1 -> offset 0
	pages[4], pages[5], pages[6], pages[7] = 0x00, 0x00, 0x01, 0x00 // page 2 -> offset 1

	// Fixup page table: 3 entries (page_count+1), record offsets 0, 7, 13
	// (the INTERNAL record is 7 bytes, the IMPORT_ORDINAL one 6).
	fpt := buf[leOffset+fixupPageOff:]
	putU32(fpt, 0, 0)
	putU32(fpt, 4, 7)
	putU32(fpt, 8, 13)

	// Fixup record for page 1: INTERNAL target, narrow (16-bit) offset.
	frt := buf[leOffset+fixupRecOff:]
	frt[0] = 0x07                 // source_type: OFFSET_32, no source list
	frt[1] = byte(FixupTargetInternal) // target_flags: narrow (bit7 clear)
	putU16(frt, 2, 0x0100)         // source_offset
	frt[4] = 1                     // target_object
	putU16(frt, 5, 0x0050)         // target_offset (16-bit)

	// Fixup record for page 2: IMPORT_ORDINAL target, narrow (8-bit ordinals).
	frt2 := buf[leOffset+fixupRecOff+7:]
	frt2[0] = 0x07
	frt2[1] = byte(FixupTargetImportOrdinal) | 0x80 // bit7 set: 8-bit ordinals
	putU16(frt2, 2, 0x0200)
	frt2[4] = 1 // module_ordinal
	frt2[5] = 5 // import_ordinal

	// Imported module name table: one length-prefixed ASCII name.
	imp := buf[leOffset+importNameOff:]
	name := []byte("KERNEL32")
	imp[0] = byte(len(name))
	copy(imp[1:], name)

	return buf
}

func TestParseHeaderAndObjects(t *testing.T) {
	buf := buildFixture()
	f, err := Parse(bytesource.New(buf))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Header.Signature != [2]byte{'L', 'E'} {
		t.Fatalf("Signature = %q, want LE", f.Header.Signature)
	}
	if len(f.Objects) != 1 {
		t.Fatalf("len(Objects) = %d, want 1", len(f.Objects))
	}
	obj := f.Objects[0]
	if !obj.Flags.IsReadable() || !obj.Flags.IsExecutable() || obj.Flags.IsWritable() {
		t.Fatalf("Flags = %#x, want readable+executable, not writable", obj.Flags)
	}
	if obj.PageTableEntries != 2 {
		t.Fatalf("PageTableEntries = %d, want 2", obj.PageTableEntries)
	}
}

func TestParseObjectPageTable(t *testing.T) {
	f, err := Parse(bytesource.New(buildFixture()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Pages) != 2 {
		t.Fatalf("len(Pages) = %d, want 2", len(f.Pages))
	}
	off, ok := f.PageFileOffset(2)
	if !ok {
		t.Fatalf("PageFileOffset(2) not ok")
	}
	want := int64(0x200) + int64(1)*int64(0x1000)
	if off != want {
		t.Fatalf("PageFileOffset(2) = %#x, want %#x", off, want)
	}
}

func TestParseFixupsInternalTarget(t *testing.T) {
	f, err := Parse(bytesource.New(buildFixture()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	page1 := f.GetPageFixups(1)
	if len(page1) != 1 {
		t.Fatalf("len(page1 fixups) = %d, want 1", len(page1))
	}
	fx := page1[0]
	if fx.TargetType != FixupTargetInternal {
		t.Fatalf("TargetType = %v, want Internal", fx.TargetType)
	}
	if fx.SourceOffset != 0x0100 {
		t.Fatalf("SourceOffset = %#x, want 0x0100", fx.SourceOffset)
	}
	if fx.TargetObject != 1 {
		t.Fatalf("TargetObject = %d, want 1", fx.TargetObject)
	}
	if fx.TargetOffset != 0x0050 {
		t.Fatalf("TargetOffset = %#x, want 0x0050", fx.TargetOffset)
	}
}

func TestParseFixupsImportOrdinalNarrow(t *testing.T) {
	f, err := Parse(bytesource.New(buildFixture()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	page2 := f.GetPageFixups(2)
	if len(page2) != 1 {
		t.Fatalf("len(page2 fixups) = %d, want 1", len(page2))
	}
	fx := page2[0]
	if fx.TargetType != FixupTargetImportOrdinal {
		t.Fatalf("TargetType = %v, want ImportOrdinal", fx.TargetType)
	}
	if fx.ModuleOrdinal != 1 {
		t.Fatalf("ModuleOrdinal = %d, want 1", fx.ModuleOrdinal)
	}
	if fx.ImportOrdinal != 5 {
		t.Fatalf("ImportOrdinal = %d, want 5", fx.ImportOrdinal)
	}
}

func TestParseImportedModules(t *testing.T) {
	f, err := Parse(bytesource.New(buildFixture()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.ImportedModules) != 1 || f.ImportedModules[0] != "KERNEL32" {
		t.Fatalf("ImportedModules = %v, want [KERNEL32]", f.ImportedModules)
	}
}

func TestParseRejectsMissingLESignature(t *testing.T) {
	buf := make([]byte, 256)
	buf[0], buf[1] = 'M', 'Z'
	putU32(buf, 0x3C, 0x40)
	buf[0x40], buf[0x41] = 'N', 'E'
	if _, err := Parse(bytesource.New(buf)); err == nil {
		t.Fatalf("expected Parse to reject a non-LE/LX signature at e_lfanew")
	}
}
