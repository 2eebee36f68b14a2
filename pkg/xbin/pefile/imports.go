// Import directory decoder, spec.md §4.H: "For each descriptor, walk the
// ILT (preferred) or IAT to enumerate functions; high bit of thunk =
// import-by-ordinal (low 16 bits) else RVA to (u16 hint, C-string name)."
//
// Grounded on original_source/include/libexe/pe_file.hpp's forward
// declaration of import_directory; no surviving .cpp parses it, so the
// 20-byte descriptor layout and the ILT/IAT walk below follow the
// standard documented IMAGE_IMPORT_DESCRIPTOR / IMAGE_THUNK_DATA shapes
// spec.md §6 cites ("per Microsoft PE/COFF spec").
package pefile

import (
	"github.com/provide-io/xbin/pkg/xbin/diag"
)

const (
	maxImportDLLs          = 1000
	maxImportFunctionsPerDLL = 10000
)

// ImportedFunction is one entry walked off an ILT or IAT, identified
// either by name (with an import hint) or by ordinal.
type ImportedFunction struct {
	ByOrdinal bool
	Ordinal   uint16
	Hint      uint16
	Name      string
	ThunkRVA  uint32
}

// ImportedDLL is one descriptor's worth of imported functions.
type ImportedDLL struct {
	Name               string
	OriginalFirstThunk uint32
	FirstThunk         uint32
	TimeDateStamp      uint32
	ForwarderChain     uint32
	Functions          []ImportedFunction
}

// ImportDirectory is the fully decoded import table.
type ImportDirectory struct {
	DLLs []ImportedDLL
}

// DecodeImports decodes the Import data directory. An absent directory
// returns an empty, non-nil ImportDirectory and a nil error, per spec.md
// §4.H's "empty directory produces an empty value, never an error."
func (f *File) DecodeImports(diags *diag.Collector) (*ImportDirectory, error) {
	dd := f.DataDirectory(DirImport)
	dir := &ImportDirectory{}
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

	descRVA := dd.RVA
	for i := 0; i < maxImportDLLs; i++ {
		descBytes, err := f.Slice(descRVA, 20)
		if err != nil {
			diags.Addf(diag.Anomaly, diag.Import, "IMP_DESCRIPTOR_TRUNCATED", 0, descRVA,
				"import descriptor %d truncated: %v", i, err)
			break
		}
		originalFirstThunk := u32(descBytes, 0)
		timeDateStamp := u32(descBytes, 4)
		forwarderChain := u32(descBytes, 8)
		nameRVA := u32(descBytes, 12)
		firstThunk := u32(descBytes, 16)

		if originalFirstThunk == 0 && timeDateStamp == 0 && forwarderChain == 0 &&
			nameRVA == 0 && firstThunk == 0 {
			break
		}

		name, err := f.CStrAt(nameRVA)
		if err != nil {
			diags.Addf(diag.Warning, diag.Import, "IMP_NAME_UNRESOLVED", 0, nameRVA,
				"import descriptor %d: DLL name RVA unresolved: %v", i, err)
		}

		dll := ImportedDLL{
			Name:               name,
			OriginalFirstThunk: originalFirstThunk,
			FirstThunk:         firstThunk,
			TimeDateStamp:      timeDateStamp,
			ForwarderChain:     forwarderChain,
		}

		thunkRVA := originalFirstThunk
		if thunkRVA == 0 {
			thunkRVA = firstThunk
		}
		dll.Functions = f.walkThunks(thunkRVA, thunkSize, ordinalFlag, is64, diags)

		dir.DLLs = append(dir.DLLs, dll)
		descRVA += 20
	}
	if len(dir.DLLs) >= maxImportDLLs {
		diags.Addf(diag.Anomaly, diag.Import, "IMP_DLL_CAP_REACHED", 0, dd.RVA,
			"import directory truncated at %d DLLs", maxImportDLLs)
	}
	return dir, nil
}

// walkThunks reads successive thunk entries at rvaVal until a null thunk
// or the per-DLL function cap, decoding each as an ordinal or a
// (hint, name) pair per spec.md §4.H.
func (f *File) walkThunks(rvaVal uint32, thunkSize int64, ordinalFlag uint64, is64 bool, diags *diag.Collector) []ImportedFunction {
	if rvaVal == 0 {
		return nil
	}
	var functions []ImportedFunction
	for i := 0; i < maxImportFunctionsPerDLL; i++ {
		raw, err := f.Slice(rvaVal, thunkSize)
		if err != nil {
			diags.Addf(diag.Anomaly, diag.Import, "IMP_THUNK_TRUNCATED", 0, rvaVal,
				"thunk table truncated: %v", err)
			break
		}
		var value uint64
		if is64 {
			value = u64(raw, 0)
		} else {
			value = uint64(u32(raw, 0))
		}
		if value == 0 {
			break
		}

		var fn ImportedFunction
		fn.ThunkRVA = rvaVal
		if value&ordinalFlag != 0 {
			fn.ByOrdinal = true
			fn.Ordinal = uint16(value & 0xFFFF)
		} else {
			hintNameRVA := uint32(value)
			hint, err := f.U16At(hintNameRVA)
			if err == nil {
				fn.Hint = hint
			}
			if name, err := f.CStrAt(hintNameRVA + 2); err == nil {
				fn.Name = name
			} else {
				diags.Addf(diag.Warning, diag.Import, "IMP_FUNCTION_NAME_UNRESOLVED", 0, hintNameRVA,
					"import-by-name RVA unresolved: %v", err)
			}
		}
		functions = append(functions, fn)
		rvaVal += uint32(thunkSize)
	}
	return functions
}
