package rsrc

import (
	"unicode/utf16"

	"github.com/provide-io/xbin/pkg/xbin/diag"
	"github.com/provide-io/xbin/pkg/xbin/pefile"
)

// maxResourceEntriesPerLevel bounds a single IMAGE_RESOURCE_DIRECTORY's
// named+id entry count, guarding against a directory claiming an
// unreasonable entry count over truncated or adversarial input.
const maxResourceEntriesPerLevel = 65535

// maxResourceDepth is the number of levels spec.md §4.I's PE walk visits:
// type, id-or-name, language.
const maxResourceDepth = 3

// FromPE walks a PE image's resource directory (DirResource) through its
// three levels - type, id-or-name, language - per spec.md §4.I, and
// returns the unified tree. An absent resource directory yields an empty,
// non-nil tree rather than an error.
func FromPE(f *pefile.File, diags *diag.Collector) (*Tree, error) {
	tree := NewTree()
	dd := f.DataDirectory(pefile.DirResource)
	if dd.RVA == 0 || dd.Size == 0 {
		return tree, nil
	}

	walkPEDirectory(f, tree, dd.RVA, dd.RVA, 0, Type{}, Entry{}, diags)
	return tree, nil
}

// walkPEDirectory decodes one IMAGE_RESOURCE_DIRECTORY at directoryRVA
// (an absolute RVA) and recurses into its entries. baseRVA is
// DirResource.RVA, since every child offset is relative to it, not to
// directoryRVA.
func walkPEDirectory(f *pefile.File, tree *Tree, baseRVA, directoryRVA uint32, depth int, typ Type, entry Entry, diags *diag.Collector) {
	hdr, err := f.Slice(directoryRVA, 16)
	if err != nil {
		diags.Addf(diag.Anomaly, diag.Resource, "RSRC_DIRECTORY_TRUNCATED", 0, directoryRVA,
			"resource directory header truncated at depth %d: %v", depth, err)
		return
	}
	numNamed := int(u16(hdr, 12))
	numID := int(u16(hdr, 14))
	total := numNamed + numID
	if total > maxResourceEntriesPerLevel {
		diags.Addf(diag.Anomaly, diag.Resource, "RSRC_ENTRY_COUNT_CLAMPED", 0, directoryRVA,
			"resource directory at depth %d claims %d entries, clamped to %d", depth, total, maxResourceEntriesPerLevel)
		total = maxResourceEntriesPerLevel
	}

	entriesRVA := directoryRVA + 16
	for i := 0; i < total; i++ {
		entryBytes, err := f.Slice(entriesRVA+uint32(i)*8, 8)
		if err != nil {
			diags.Addf(diag.Anomaly, diag.Resource, "RSRC_ENTRY_TRUNCATED", 0, entriesRVA, "entry %d truncated at depth %d: %v", i, depth, err)
			break
		}
		nameOrID := u32(entryBytes, 0)
		offsetToData := u32(entryBytes, 4)

		var key interface{}
		if nameOrID&0x80000000 != 0 {
			nameRVA := baseRVA + (nameOrID &^ 0x80000000)
			name, err := readPEResourceString(f, nameRVA)
			if err != nil {
				diags.Addf(diag.Anomaly, diag.Resource, "RSRC_NAME_TRUNCATED", 0, nameRVA, "resource name string truncated at depth %d: %v", depth, err)
				continue
			}
			key = name
		} else {
			key = nameOrID
		}

		isSubdirectory := offsetToData&0x80000000 != 0
		childOffset := offsetToData &^ 0x80000000
		childRVA := baseRVA + childOffset

		switch depth {
		case 0:
			nextType := keyToType(key)
			if isSubdirectory {
				walkPEDirectory(f, tree, baseRVA, childRVA, depth+1, nextType, Entry{}, diags)
			}
		case 1:
			nextEntry := keyToEntry(key)
			if isSubdirectory {
				walkPEDirectory(f, tree, baseRVA, childRVA, depth+1, typ, nextEntry, diags)
			}
		case 2:
			lang := uint16(0)
			if v, ok := key.(uint32); ok {
				lang = uint16(v)
			}
			if !isSubdirectory {
				leaf, err := readPEResourceDataEntry(f, childRVA)
				if err != nil {
					diags.Addf(diag.Anomaly, diag.Resource, "RSRC_DATA_ENTRY_TRUNCATED", 0, childRVA,
						"resource data entry truncated: %v", err)
					continue
				}
				tree.Add(typ, entry, lang, leaf)
			}
		}
	}
}

func keyToType(key interface{}) Type {
	switch v := key.(type) {
	case string:
		return NamedType(v)
	case uint32:
		return NumericType(v)
	default:
		return Type{}
	}
}

func keyToEntry(key interface{}) Entry {
	switch v := key.(type) {
	case string:
		return NamedEntry(v)
	case uint32:
		return NumericEntry(v)
	default:
		return Entry{}
	}
}

// readPEResourceString reads a resource directory string: u16 length,
// then length x u16 LE (UTF-16, not null-terminated), per spec.md §4.I.
func readPEResourceString(f *pefile.File, rvaVal uint32) (string, error) {
	lengthWord, err := f.U16At(rvaVal)
	if err != nil {
		return "", err
	}
	raw, err := f.Slice(rvaVal+2, int64(lengthWord)*2)
	if err != nil {
		return "", err
	}
	u16s := make([]uint16, lengthWord)
	for i := range u16s {
		u16s[i] = uint16(raw[i*2]) | uint16(raw[i*2+1])<<8
	}
	return string(utf16.Decode(u16s)), nil
}

// readPEResourceDataEntry reads a 16-byte IMAGE_RESOURCE_DATA_ENTRY:
// (data RVA, size, codepage, reserved).
func readPEResourceDataEntry(f *pefile.File, rvaVal uint32) (Leaf, error) {
	raw, err := f.Slice(rvaVal, 16)
	if err != nil {
		return Leaf{}, err
	}
	return Leaf{
		DataRVA:  u32(raw, 0),
		Size:     u32(raw, 4),
		Codepage: u32(raw, 8),
	}, nil
}

func u16(b []byte, off int) uint16 { return uint16(b[off]) | uint16(b[off+1])<<8 }
func u32(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}
