package rsrc

import (
	"testing"

	"github.com/provide-io/xbin/pkg/xbin/bytesource"
	"github.com/provide-io/xbin/pkg/xbin/diag"
)

func putU16(b []byte, off int, v uint16) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
}

// fakeNESource satisfies neSource without depending on package nefile.
type fakeNESource struct {
	base int64
	src  *bytesource.Source
}

func (f fakeNESource) ResourceTableFileOffset() (int64, bool) { return f.base, true }
func (f fakeNESource) Source() *bytesource.Source             { return f.src }

// buildNEResourceFixture assembles a flat NE resource table: alignment
// shift 4, one numeric type (ICON=3) with one numeric-id entry (id 100)
// at sector offset 0x10 (-> data offset 0x100), length 0x40.
func buildNEResourceFixture() []byte {
	buf := make([]byte, 0x40)
	putU16(buf, 0, 4) // alignment shift

	pos := 2
	putU16(buf, pos, 0x8003) // type id 3 (ICON), numeric
	putU16(buf, pos+2, 1)    // count
	pos += 8                 // + 4 reserved

	putU16(buf, pos, 0x0010)   // sector offset
	putU16(buf, pos+2, 0x0040) // length in bytes
	putU16(buf, pos+4, 0)      // flags
	putU16(buf, pos+6, 0x8064) // id 100, numeric
	putU16(buf, pos+8, 0)      // handle
	putU16(buf, pos+10, 0)     // usage
	pos += 12

	putU16(buf, pos, 0) // terminator type id

	return buf
}

func TestFromNEResourceTable(t *testing.T) {
	data := buildNEResourceFixture()
	fake := fakeNESource{base: 0, src: bytesource.New(data)}

	tree, err := FromNE(fake, nil)
	if err != nil {
		t.Fatalf("FromNE: %v", err)
	}

	leaf, ok := tree.Find(NumericType(TypeIcon), NumericEntry(100), nil)
	if !ok {
		t.Fatalf("expected ICON/100 resource to be present")
	}
	if leaf.DataRVA != 0x100 {
		t.Errorf("DataRVA = %#x, want %#x", leaf.DataRVA, 0x100)
	}
	if leaf.Size != 0x40 {
		t.Errorf("Size = %#x, want %#x", leaf.Size, 0x40)
	}

	langs := tree.LanguagesFor(NumericType(TypeIcon), NumericEntry(100))
	if len(langs) != 1 || langs[0] != 0 {
		t.Errorf("languages = %v, want [0]", langs)
	}
}

func TestFromNENoResourceTable(t *testing.T) {
	tree, err := FromNE(fakeNESource{base: 0, src: bytesource.New(nil)}, &diag.Collector{})
	if err != nil {
		t.Fatalf("FromNE: %v", err)
	}
	if len(tree.AllResources()) != 0 {
		t.Errorf("expected empty tree for zero-length source")
	}
}
