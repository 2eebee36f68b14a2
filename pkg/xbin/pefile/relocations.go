// Base relocation directory decoder, spec.md §4.H: "walk blocks until
// size consumed; each block is (page_rva, block_size, entries) where
// entry count = (block_size - 8) / 2. A type of ABSOLUTE is padding
// (size 0); size in bytes per other types: HIGH/LOW=2,
// HIGHLOW/HIGHADJ/value-5/value-7/value-8/value-9=4, DIR64=8."
//
// Reloc type sizing for values 5/7/8/9 is machine-specific per spec.md §9
// ("PE relocation types 5/7/8/9 are machine-specific; size follows the
// COFF Machine field, not the value alone") - relocSize below branches on
// f.Coff.Machine for those codes. No surviving original_source file
// documents IMAGE_BASE_RELOCATION; the block/entry shapes are the
// standard documented layout.
package pefile

import "github.com/provide-io/xbin/pkg/xbin/diag"

// RelocType names the low 4 bits of a base relocation entry.
type RelocType uint8

const (
	RelocAbsolute RelocType = 0
	RelocHigh     RelocType = 1
	RelocLow      RelocType = 2
	RelocHighLow  RelocType = 3
	RelocHighAdj  RelocType = 4
	RelocDir64    RelocType = 10
)

// Relocation is one entry within a base relocation block.
type Relocation struct {
	PageRVA uint32
	Offset  uint16
	Type    RelocType
}

// BaseRelocDirectory holds every relocation entry across every block.
type BaseRelocDirectory struct {
	Relocations []Relocation
}

// relocSize returns the byte width a relocation of the given type patches,
// per spec.md §4.H and §9's machine-specific note for types 5/7/8/9.
func relocSize(t RelocType, machine Machine) int {
	switch t {
	case RelocAbsolute:
		return 0
	case RelocHigh, RelocLow:
		return 2
	case RelocHighLow, RelocHighAdj:
		return 4
	case RelocDir64:
		return 8
	case 5, 7, 8, 9:
		switch machine {
		case MachineAMD64, MachineIA64, MachineARM64:
			return 8
		default:
			return 4
		}
	default:
		return 4
	}
}

// DecodeBaseRelocations decodes the BaseReloc data directory.
func (f *File) DecodeBaseRelocations(diags *diag.Collector) (*BaseRelocDirectory, error) {
	dd := f.DataDirectory(DirBaseReloc)
	dir := &BaseRelocDirectory{}
	if dd.RVA == 0 || dd.Size == 0 {
		return dir, nil
	}

	off, ok := f.resolver.RVAToOffset(dd.RVA)
	if !ok {
		diags.Addf(diag.Error, diag.Relocation, "RELOC_DIRECTORY_UNRESOLVED", 0, dd.RVA,
			"base relocation directory RVA not backed by any section")
		return dir, nil
	}
	base := int64(off)
	var consumed uint32
	for consumed < dd.Size {
		blockHdr, err := f.src.Slice(base+int64(consumed), 8)
		if err != nil {
			diags.Addf(diag.Anomaly, diag.Relocation, "RELOC_BLOCK_TRUNCATED", base+int64(consumed), 0,
				"relocation block header truncated: %v", err)
			break
		}
		pageRVA := u32(blockHdr, 0)
		blockSize := u32(blockHdr, 4)
		if blockSize < 8 {
			diags.Addf(diag.Error, diag.Relocation, "RELOC_BLOCK_SIZE_INVALID", base+int64(consumed), pageRVA,
				"relocation block size %d smaller than the 8-byte header", blockSize)
			break
		}
		entryCount := (blockSize - 8) / 2
		entries, err := f.src.Slice(base+int64(consumed)+8, int64(entryCount)*2)
		if err != nil {
			diags.Addf(diag.Anomaly, diag.Relocation, "RELOC_ENTRIES_TRUNCATED", base+int64(consumed)+8, pageRVA,
				"relocation entries truncated: %v", err)
			break
		}
		for i := uint32(0); i < entryCount; i++ {
			v := u16(entries, int(i)*2)
			t := RelocType(v >> 12)
			offset := v & 0x0FFF
			if t == RelocAbsolute {
				continue
			}
			if pageRVA+uint32(offset) < pageRVA {
				diags.Addf(diag.Anomaly, diag.Relocation, "RELOC_VIRTUAL_CODE", base+int64(consumed), pageRVA,
					"relocation offset overflowed its page")
			}
			dir.Relocations = append(dir.Relocations, Relocation{PageRVA: pageRVA, Offset: offset, Type: t})
		}
		consumed += blockSize
	}
	return dir, nil
}
