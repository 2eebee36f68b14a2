// Export directory decoder, spec.md §4.H: "EAT[i]'s RVA inside
// [export.rva, export.rva+export.size) marks a forwarder; read the
// forwarder string at that RVA. Named exports require parallel traversal
// of name-pointer + ordinal tables; the ordinal table is indices into the
// EAT, offset by ordinal_base."
//
// Grounded on pe_file.hpp's export_directory forward declaration; the
// 40-byte IMAGE_EXPORT_DIRECTORY header layout below is the standard
// documented shape, since no surviving .cpp carries concrete offsets.
package pefile

import "github.com/provide-io/xbin/pkg/xbin/diag"

const maxExportEntries = 100000

// ExportedFunction is one entry address table slot, optionally reachable
// by name.
type ExportedFunction struct {
	Ordinal     uint16 // unbiased ordinal, i.e. index into the EAT (add OrdinalBase for the exported ordinal)
	RVA         uint32
	IsForwarder bool
	Forwarder   string
	Names       []string
}

// ExportDirectory is the fully decoded export table.
type ExportDirectory struct {
	Name           string
	TimeDateStamp  uint32
	MajorVersion   uint16
	MinorVersion   uint16
	OrdinalBase    uint32
	Functions      []ExportedFunction
}

// DecodeExports decodes the Export data directory.
func (f *File) DecodeExports(diags *diag.Collector) (*ExportDirectory, error) {
	dd := f.DataDirectory(DirExport)
	dir := &ExportDirectory{}
	if dd.RVA == 0 || dd.Size == 0 {
		return dir, nil
	}

	hdr, err := f.Slice(dd.RVA, 40)
	if err != nil {
		diags.Addf(diag.Error, diag.Export, "EXP_HEADER_TRUNCATED", 0, dd.RVA,
			"export directory header truncated: %v", err)
		return dir, nil
	}

	dir.TimeDateStamp = u32(hdr, 4)
	dir.MajorVersion = u16(hdr, 8)
	dir.MinorVersion = u16(hdr, 10)
	nameRVA := u32(hdr, 12)
	dir.OrdinalBase = u32(hdr, 16)
	numFunctions := u32(hdr, 20)
	numNames := u32(hdr, 24)
	eatRVA := u32(hdr, 28)
	nptRVA := u32(hdr, 32)
	otRVA := u32(hdr, 36)

	if nameRVA != 0 {
		if name, err := f.CStrAt(nameRVA); err == nil {
			dir.Name = name
		}
	}

	if numFunctions > maxExportEntries {
		diags.Addf(diag.Anomaly, diag.Export, "EXP_FUNCTION_CAP_REACHED", 0, eatRVA,
			"export address table claims %d entries, capping at %d", numFunctions, maxExportEntries)
		numFunctions = maxExportEntries
	}

	functions := make([]ExportedFunction, 0, numFunctions)
	for i := uint32(0); i < numFunctions; i++ {
		rvaVal, err := f.U32At(eatRVA + i*4)
		if err != nil {
			diags.Addf(diag.Anomaly, diag.Export, "EXP_EAT_TRUNCATED", 0, eatRVA,
				"export address table truncated at entry %d: %v", i, err)
			break
		}
		fn := ExportedFunction{Ordinal: uint16(i), RVA: rvaVal}
		if rvaVal >= dd.RVA && rvaVal < dd.RVA+dd.Size {
			fn.IsForwarder = true
			if s, err := f.CStrAt(rvaVal); err == nil {
				fn.Forwarder = s
			}
		}
		functions = append(functions, fn)
	}
	dir.Functions = functions

	if numNames > maxExportEntries {
		numNames = maxExportEntries
	}
	for i := uint32(0); i < numNames; i++ {
		nameEntryRVA, err := f.U32At(nptRVA + i*4)
		if err != nil {
			break
		}
		ordIndex, err := f.U16At(otRVA + i*2)
		if err != nil {
			diags.Addf(diag.Anomaly, diag.Export, "EXP_ORDINAL_TABLE_TRUNCATED", 0, otRVA,
				"ordinal table truncated at name %d", i)
			break
		}
		name, err := f.CStrAt(nameEntryRVA)
		if err != nil {
			diags.Addf(diag.Warning, diag.Export, "EXP_NAME_UNRESOLVED", 0, nameEntryRVA,
				"exported name RVA unresolved: %v", err)
			continue
		}
		if int(ordIndex) < len(dir.Functions) {
			dir.Functions[ordIndex].Names = append(dir.Functions[ordIndex].Names, name)
		} else {
			diags.Addf(diag.Anomaly, diag.Export, "EXP_ORDINAL_OUT_OF_RANGE", 0, otRVA,
				"name %q maps to ordinal index %d beyond %d-entry EAT", name, ordIndex, len(dir.Functions))
		}
	}

	return dir, nil
}
