package rsrc

import (
	"testing"

	"github.com/provide-io/xbin/pkg/xbin/bytesource"
	"github.com/provide-io/xbin/pkg/xbin/pefile"
)

func putU32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

// peResourceFixture builds a minimal 32-bit PE image with one ".text"
// section (identity-mapped VA<->raw delta, see pefile_test.go's
// pe32Fixture) carrying a three-level resource directory: type ICON(3)
// -> id 100 -> language 0 -> a 16-byte leaf.
func peResourceFixture() []byte {
	const (
		peOffset      = 0x80
		coffOffset    = peOffset + 4
		optHdrOffset  = coffOffset + 20
		numDirs       = 16
		optHdrSize    = 96 + numDirs*8
		sectionOffset = optHdrOffset + optHdrSize
		sectionVA     = 0x1000
		sectionRaw    = 0x200
		sectionSize   = 0x400
		baseRVA       = sectionVA + 0x200
		dataRVA       = sectionVA + 0x280
	)

	buf := make([]byte, sectionRaw+sectionSize)
	buf[0], buf[1] = 'M', 'Z'
	putU32(buf, 0x3C, peOffset)
	buf[peOffset], buf[peOffset+1], buf[peOffset+2], buf[peOffset+3] = 'P', 'E', 0, 0

	putU16(buf, coffOffset+0, 0x014C)
	putU16(buf, coffOffset+2, 1)
	putU16(buf, coffOffset+16, optHdrSize)

	putU16(buf, optHdrOffset+0, 0x10B)
	putU32(buf, optHdrOffset+16, sectionVA+0x10)
	putU32(buf, optHdrOffset+28, 0x00400000)
	putU32(buf, optHdrOffset+32, 0x1000)
	putU32(buf, optHdrOffset+36, 0x200)
	putU32(buf, optHdrOffset+56, sectionVA+sectionSize)
	putU32(buf, optHdrOffset+60, sectionRaw)

	ddirOffset := optHdrOffset + 96
	putU32(buf, ddirOffset+int(pefile.DirResource)*8, baseRVA)
	putU32(buf, ddirOffset+int(pefile.DirResource)*8+4, 0x100)

	entry := buf[sectionOffset : sectionOffset+40]
	copy(entry[0:8], []byte(".text\x00\x00\x00"))
	putU32(entry, 8, sectionSize)
	putU32(entry, 12, sectionVA)
	putU32(entry, 16, sectionSize)
	putU32(entry, 20, sectionRaw)

	toFile := func(rva uint32) int { return sectionRaw + int(rva-sectionVA) }

	// Level 0: type directory, one id entry (ICON=3) -> subdirectory at
	// baseRVA+0x20.
	lvl0 := buf[toFile(baseRVA):]
	putU16(lvl0, 14, 1) // NumberOfIdEntries
	putU32(lvl0, 16, 3) // type id, no high bit
	putU32(lvl0, 20, 0x20|0x80000000)

	// Level 1: id directory at baseRVA+0x20, one id entry (100) ->
	// subdirectory at baseRVA+0x40.
	lvl1 := buf[toFile(baseRVA+0x20):]
	putU16(lvl1, 14, 1)
	putU32(lvl1, 16, 100)
	putU32(lvl1, 20, 0x40|0x80000000)

	// Level 2: language directory at baseRVA+0x40, one id entry (lang 0)
	// -> leaf data entry at baseRVA+0x60 (no high bit: not a subdirectory).
	lvl2 := buf[toFile(baseRVA+0x40):]
	putU16(lvl2, 14, 1)
	putU32(lvl2, 16, 0)
	putU32(lvl2, 20, 0x60)

	// IMAGE_RESOURCE_DATA_ENTRY at baseRVA+0x60.
	dataEntry := buf[toFile(baseRVA+0x60):]
	putU32(dataEntry, 0, dataRVA)
	putU32(dataEntry, 4, 16)
	putU32(dataEntry, 8, 0)

	// The leaf's actual bytes.
	copy(buf[toFile(dataRVA):], []byte("ICONDATA12345678"))

	return buf
}

func TestFromPEResourceTree(t *testing.T) {
	buf := peResourceFixture()
	f, err := pefile.Parse(bytesource.New(buf))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tree, err := FromPE(f, nil)
	if err != nil {
		t.Fatalf("FromPE: %v", err)
	}

	leaf, ok := tree.Find(NumericType(TypeIcon), NumericEntry(100), nil)
	if !ok {
		t.Fatalf("expected ICON/100/lang0 leaf to be present")
	}
	if leaf.Size != 16 {
		t.Errorf("Size = %d, want 16", leaf.Size)
	}

	data, err := f.Slice(leaf.DataRVA, int64(leaf.Size))
	if err != nil {
		t.Fatalf("Slice leaf data: %v", err)
	}
	if string(data) != "ICONDATA12345678" {
		t.Errorf("leaf data = %q, want %q", data, "ICONDATA12345678")
	}

	types := tree.Types()
	if len(types) != 1 || types[0].ID != TypeIcon {
		t.Errorf("Types() = %v, want [ICON]", types)
	}
}

func TestFromPENoResourceDirectory(t *testing.T) {
	buf := peResourceFixture()
	// Zero out the resource data directory entry so FromPE sees no
	// resource directory at all.
	const (
		peOffset     = 0x80
		coffOffset   = peOffset + 4
		optHdrOffset = coffOffset + 20
	)
	ddirOffset := optHdrOffset + 96
	putU32(buf, ddirOffset+int(pefile.DirResource)*8, 0)
	putU32(buf, ddirOffset+int(pefile.DirResource)*8+4, 0)

	f, err := pefile.Parse(bytesource.New(buf))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tree, err := FromPE(f, nil)
	if err != nil {
		t.Fatalf("FromPE: %v", err)
	}
	if len(tree.AllResources()) != 0 {
		t.Errorf("expected empty tree when no resource directory present")
	}
}
