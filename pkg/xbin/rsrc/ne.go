package rsrc

import (
	"github.com/provide-io/xbin/pkg/xbin/bytesource"
	"github.com/provide-io/xbin/pkg/xbin/diag"
)

const maxNEResourceTypes = 1000
const maxNEResourcesPerType = 10000

// neSource is the subset of nefile.File this adapter needs, kept narrow to
// avoid an import cycle (nefile already avoids depending on this package).
type neSource interface {
	ResourceTableFileOffset() (int64, bool)
	Source() *bytesource.Source
}

// FromNE adapts an NE module's flat, language-neutral resource table into
// the unified tree, per spec.md §4.I: "alignment shift at start; then
// type blocks each with count resources... all entries have language 0."
func FromNE(f neSource, diags *diag.Collector) (*Tree, error) {
	tree := NewTree()
	base, ok := f.ResourceTableFileOffset()
	if !ok {
		return tree, nil
	}
	src := f.Source()

	alignShift, err := src.U16LE(base)
	if err != nil {
		diags.Addf(diag.Anomaly, diag.NeResource, "NERSRC_TABLE_TRUNCATED", base, 0, "resource table alignment shift truncated: %v", err)
		return tree, nil
	}

	pos := base + 2
	for typeCount := 0; typeCount < maxNEResourceTypes; typeCount++ {
		typeID, err := src.U16LE(pos)
		if err != nil {
			diags.Addf(diag.Anomaly, diag.NeResource, "NERSRC_TYPEINFO_TRUNCATED", pos, 0, "TYPEINFO truncated: %v", err)
			break
		}
		if typeID == 0 {
			break // terminator
		}
		count, err := src.U16LE(pos + 2)
		if err != nil {
			break
		}
		pos += 8 // typeID(2) + count(2) + reserved(4)

		typ := neTypeFromWord(src, base, typeID)

		for i := uint16(0); i < count && i < maxNEResourcesPerType; i++ {
			nameInfo, err := src.Slice(int64(pos), 12)
			if err != nil {
				diags.Addf(diag.Anomaly, diag.NeResource, "NERSRC_NAMEINFO_TRUNCATED", int64(pos), 0, "NAMEINFO truncated: %v", err)
				break
			}
			sectorOffset := u16(nameInfo, 0)
			lengthInBytes := u16(nameInfo, 2)
			idWord := u16(nameInfo, 6)

			size := uint32(lengthInBytes)
			if size == 0 {
				size = 65536
			}
			dataOffset := uint32(sectorOffset) << alignShift

			entry := neEntryFromWord(src, base, idWord)
			tree.Add(typ, entry, 0, Leaf{DataRVA: dataOffset, Size: size})

			pos += 12
		}
	}
	return tree, nil
}

// neTypeFromWord resolves a TYPEINFO type word: high bit set means a
// numeric type (low 15 bits); otherwise it is an offset, relative to the
// resource table's own start, to a length-prefixed name string.
func neTypeFromWord(src *bytesource.Source, base int64, word uint16) Type {
	if word&0x8000 != 0 {
		return NumericType(uint32(word &^ 0x8000))
	}
	name, ok := neReadNameAt(src, base+int64(word))
	if !ok {
		return Type{}
	}
	return NamedType(name)
}

func neEntryFromWord(src *bytesource.Source, base int64, word uint16) Entry {
	if word&0x8000 != 0 {
		return NumericEntry(uint32(word &^ 0x8000))
	}
	name, ok := neReadNameAt(src, base+int64(word))
	if !ok {
		return Entry{}
	}
	return NamedEntry(name)
}

// neReadNameAt reads a length-prefixed (not NUL-terminated) ASCII name,
// the same convention used for NE module and export names.
func neReadNameAt(src *bytesource.Source, offset int64) (string, bool) {
	length, err := src.U8(offset)
	if err != nil {
		return "", false
	}
	b, err := src.Slice(offset+1, int64(length))
	if err != nil {
		return "", false
	}
	return string(b), true
}
