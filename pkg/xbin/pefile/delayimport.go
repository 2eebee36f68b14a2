// Delay-import directory decoder, spec.md §4.H: "descriptors are 32
// bytes; attributes bit 0 = RVAs; if the DLL-name address looks like a VA
// (>= image_base and < image_base + 2 GiB) heuristically treat the
// descriptor as VA-based regardless of attributes (observed in
// practice)." This VA heuristic is the §9 oddity: "some PE delay-import
// descriptors set attributes=0 yet store VAs; the heuristic here is
// pragmatic, a stricter implementation surfaces a diagnostic" - which is
// exactly what this decoder does when the heuristic overrides attributes.
//
// No surviving original_source file documents
// IMAGE_DELAYLOAD_DESCRIPTOR; the 32-byte layout is the standard
// documented shape.
package pefile

import "github.com/provide-io/xbin/pkg/xbin/diag"

const maxDelayImportDLLs = 1000

// DelayImportedDLL is one delay-load descriptor's worth of imported
// functions.
type DelayImportedDLL struct {
	Name             string
	Attributes       uint32
	DLLNameAddr      uint32
	ModuleHandleAddr uint32
	IATAddr          uint32
	INTAddr          uint32
	Functions        []ImportedFunction
}

// DelayImportDirectory is the fully decoded delay-import table.
type DelayImportDirectory struct {
	DLLs []DelayImportedDLL
}

// DecodeDelayImports decodes the DelayImport data directory.
func (f *File) DecodeDelayImports(diags *diag.Collector) (*DelayImportDirectory, error) {
	dd := f.DataDirectory(DirDelayImport)
	dir := &DelayImportDirectory{}
	if dd.RVA == 0 || dd.Size == 0 {
		return dir, nil
	}

	is64 := f.Optional.Is64Bit
	thunkSize := int64(4)
	ordinalFlag := uint64(1) << 31
	if is64 {
		thunkSize = 8
		ordinalFlag = uint64(1) << 63
	}
	imageBase := f.Optional.ImageBase

	descRVA := dd.RVA
	for i := 0; i < maxDelayImportDLLs; i++ {
		raw, err := f.Slice(descRVA, 32)
		if err != nil {
			break
		}
		attributes := u32(raw, 0)
		dllNameAddr := u32(raw, 4)
		moduleHandleAddr := u32(raw, 8)
		iatAddr := u32(raw, 12)
		intAddr := u32(raw, 16)

		if attributes == 0 && dllNameAddr == 0 && moduleHandleAddr == 0 &&
			iatAddr == 0 && intAddr == 0 {
			break
		}

		rvaBased := attributes&1 != 0
		looksLikeVA := uint64(dllNameAddr) >= imageBase && uint64(dllNameAddr) < imageBase+(1<<31)
		if looksLikeVA {
			diags.Addf(diag.Anomaly, diag.DelayImport, "DLI_VA_HEURISTIC_APPLIED", 0, dllNameAddr,
				"delay-import descriptor %d (attributes=%#x) has a DLL name address that looks like a VA; treating the descriptor as VA-based", i, attributes)
			rvaBased = false
		}

		nameRVA := dllNameAddr
		thunkRVA := intAddr
		if !rvaBased {
			if rr, ok := f.VAToRVA(uint64(dllNameAddr)); ok {
				nameRVA = rr
			}
			if rr, ok := f.VAToRVA(uint64(intAddr)); ok {
				thunkRVA = rr
			} else if rr, ok := f.VAToRVA(uint64(iatAddr)); ok {
				thunkRVA = rr
			}
		} else if thunkRVA == 0 {
			thunkRVA = iatAddr
		}

		name, _ := f.CStrAt(nameRVA)
		dll := DelayImportedDLL{
			Name:             name,
			Attributes:       attributes,
			DLLNameAddr:      dllNameAddr,
			ModuleHandleAddr: moduleHandleAddr,
			IATAddr:          iatAddr,
			INTAddr:          intAddr,
			Functions:        f.walkThunks(thunkRVA, thunkSize, ordinalFlag, is64, diags),
		}
		dir.DLLs = append(dir.DLLs, dll)
		descRVA += 32
	}
	return dir, nil
}
