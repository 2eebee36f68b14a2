// Exception directory decoder, spec.md §4.H: "(x64) array of 12-byte
// RUNTIME_FUNCTION {begin_rva, end_rva, unwind_info_rva}; invalid iff
// end_rva <= begin_rva."
//
// No surviving original_source file documents IMAGE_RUNTIME_FUNCTION_ENTRY;
// the 12-byte record is the standard documented x64 shape. 32-bit and ARM
// images carry architecture-specific exception table formats spec.md
// scopes to x64 only.
package pefile

import "github.com/provide-io/xbin/pkg/xbin/diag"

const maxExceptionEntries = 100000

// RuntimeFunction is one IMAGE_RUNTIME_FUNCTION_ENTRY record.
type RuntimeFunction struct {
	BeginRVA      uint32
	EndRVA        uint32
	UnwindInfoRVA uint32
}

// ExceptionDirectory is the decoded x64 exception table.
type ExceptionDirectory struct {
	Functions []RuntimeFunction
}

// DecodeExceptions decodes the Exception data directory. Non-x64 images
// carry an architecture-specific exception table this package does not
// model; the directory is still walked as 12-byte records since that is
// the only shape spec.md §4.H names.
func (f *File) DecodeExceptions(diags *diag.Collector) (*ExceptionDirectory, error) {
	dd := f.DataDirectory(DirException)
	dir := &ExceptionDirectory{}
	if dd.RVA == 0 || dd.Size == 0 {
		return dir, nil
	}

	count := dd.Size / 12
	if count > maxExceptionEntries {
		diags.Addf(diag.Anomaly, diag.Exception, "EXC_ENTRY_CAP_REACHED", 0, dd.RVA,
			"exception directory claims %d entries, capping at %d", count, maxExceptionEntries)
		count = maxExceptionEntries
	}

	for i := uint32(0); i < count; i++ {
		raw, err := f.Slice(dd.RVA+i*12, 12)
		if err != nil {
			diags.Addf(diag.Anomaly, diag.Exception, "EXC_ENTRY_TRUNCATED", 0, dd.RVA+i*12,
				"runtime function entry %d truncated: %v", i, err)
			break
		}
		rf := RuntimeFunction{
			BeginRVA:      u32(raw, 0),
			EndRVA:        u32(raw, 4),
			UnwindInfoRVA: u32(raw, 8),
		}
		if rf.EndRVA <= rf.BeginRVA {
			diags.Addf(diag.Anomaly, diag.Exception, "EXC_INVALID_RANGE", 0, rf.BeginRVA,
				"runtime function %d has end_rva <= begin_rva", i)
			continue
		}
		dir.Functions = append(dir.Functions, rf)
	}
	return dir, nil
}
