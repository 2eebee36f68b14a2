// Bound-import directory decoder, spec.md §4.H: "8-byte descriptors
// terminated by TimeDateStamp = 0; optional per-descriptor array of
// 8-byte forwarder refs (count in descriptor). Module-name offsets are
// relative to the start of the bound-import directory, not an RVA."
//
// No surviving original_source file documents IMAGE_BOUND_IMPORT_DESCRIPTOR;
// the 8-byte descriptor and 8-byte forwarder-ref record are the standard
// documented shapes.
package pefile

import "github.com/provide-io/xbin/pkg/xbin/diag"

const maxBoundImportDLLs = 1000

// BoundForwarderRef is one IMAGE_BOUND_FORWARDER_REF record.
type BoundForwarderRef struct {
	TimeDateStamp uint32
	ModuleName    string
}

// BoundImportedDLL is one bound-import descriptor.
type BoundImportedDLL struct {
	ModuleName     string
	TimeDateStamp  uint32
	ForwarderRefs  []BoundForwarderRef
}

// BoundImportDirectory is the fully decoded bound-import table.
type BoundImportDirectory struct {
	DLLs []BoundImportedDLL
}

// DecodeBoundImports decodes the BoundImport data directory. The
// directory's RVA is resolved to a file offset through the section table
// once; every module-name offset inside the directory is then taken
// relative to that directory start, not resolved as an RVA.
func (f *File) DecodeBoundImports(diags *diag.Collector) (*BoundImportDirectory, error) {
	dd := f.DataDirectory(DirBoundImport)
	dir := &BoundImportDirectory{}
	if dd.RVA == 0 || dd.Size == 0 {
		return dir, nil
	}

	off, ok := f.resolver.RVAToOffset(dd.RVA)
	if !ok {
		diags.Addf(diag.Error, diag.BoundImport, "BIMP_DIRECTORY_UNRESOLVED", 0, dd.RVA,
			"bound import directory RVA not backed by any section")
		return dir, nil
	}
	base := int64(off)

	var pos int64
	for i := 0; i < maxBoundImportDLLs; i++ {
		raw, err := f.src.Slice(base+pos, 8)
		if err != nil {
			break
		}
		timeDateStamp := u32(raw, 0)
		if timeDateStamp == 0 {
			break
		}
		moduleNameOffset := u16(raw, 4)
		numForwarders := u16(raw, 6)

		name, _, _ := f.src.CStr(base+int64(moduleNameOffset), -1)
		dll := BoundImportedDLL{ModuleName: string(name), TimeDateStamp: timeDateStamp}
		pos += 8

		for j := uint16(0); j < numForwarders; j++ {
			fref, err := f.src.Slice(base+pos, 8)
			if err != nil {
				diags.Addf(diag.Anomaly, diag.BoundImport, "BIMP_FORWARDER_TRUNCATED", base+pos, 0,
					"bound import forwarder ref truncated: %v", err)
				break
			}
			fwdTimeDateStamp := u32(fref, 0)
			fwdNameOffset := u16(fref, 4)
			fwdName, _, _ := f.src.CStr(base+int64(fwdNameOffset), -1)
			dll.ForwarderRefs = append(dll.ForwarderRefs, BoundForwarderRef{
				TimeDateStamp: fwdTimeDateStamp,
				ModuleName:    string(fwdName),
			})
			pos += 8
		}

		dir.DLLs = append(dir.DLLs, dll)
	}
	return dir, nil
}
