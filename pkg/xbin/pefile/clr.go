// CLR runtime header decoder ("ClrRuntime" / COR20), spec.md §4.H:
// "fixed 72-byte COR20 header; flags bit 0 = IL-only, bit 1 =
// 32-bit-required, bit 3 = strong-name-signed, bit 4 =
// native-entry-point, bit 17 = 32-bit-preferred."
//
// No surviving original_source file documents IMAGE_COR20_HEADER; the
// 72-byte layout is the standard documented .NET metadata shape.
package pefile

import "github.com/provide-io/xbin/pkg/xbin/diag"

// CorFlags mirrors COMIMAGE_FLAGS_*.
type CorFlags uint32

const (
	CorFlagILOnly          CorFlags = 1 << 0
	CorFlag32BitRequired   CorFlags = 1 << 1
	CorFlagStrongNameSigned CorFlags = 1 << 3
	CorFlagNativeEntryPoint CorFlags = 1 << 4
	CorFlag32BitPreferred  CorFlags = 1 << 17
)

func (f CorFlags) ILOnly() bool          { return f&CorFlagILOnly != 0 }
func (f CorFlags) Requires32Bit() bool   { return f&CorFlag32BitRequired != 0 }
func (f CorFlags) StrongNameSigned() bool { return f&CorFlagStrongNameSigned != 0 }
func (f CorFlags) NativeEntryPoint() bool { return f&CorFlagNativeEntryPoint != 0 }
func (f CorFlags) Prefers32Bit() bool    { return f&CorFlag32BitPreferred != 0 }

// ClrRuntimeDirectory is the decoded IMAGE_COR20_HEADER.
type ClrRuntimeDirectory struct {
	MajorRuntimeVersion uint16
	MinorRuntimeVersion uint16
	MetaData            DataDirectory
	Flags               CorFlags
	EntryPointToken      uint32
	Resources            DataDirectory
	StrongNameSignature  DataDirectory
	CodeManagerTable     DataDirectory
	VTableFixups         DataDirectory
	ExportAddressTableJumps DataDirectory
	ManagedNativeHeader  DataDirectory
}

// DecodeClrRuntime decodes the ClrRuntime data directory.
func (f *File) DecodeClrRuntime(diags *diag.Collector) (*ClrRuntimeDirectory, error) {
	dd := f.DataDirectory(DirClrRuntime)
	dir := &ClrRuntimeDirectory{}
	if dd.RVA == 0 || dd.Size == 0 {
		return dir, nil
	}

	raw, err := f.Slice(dd.RVA, 72)
	if err != nil {
		diags.Addf(diag.Error, diag.Clr, "CLR_HEADER_TRUNCATED", 0, dd.RVA,
			"COR20 header truncated: %v", err)
		return dir, nil
	}

	readDD := func(off int) DataDirectory {
		return DataDirectory{RVA: u32(raw, off), Size: u32(raw, off+4)}
	}

	dir.MajorRuntimeVersion = u16(raw, 4)
	dir.MinorRuntimeVersion = u16(raw, 6)
	dir.MetaData = readDD(8)
	dir.Flags = CorFlags(u32(raw, 16))
	dir.EntryPointToken = u32(raw, 20)
	dir.Resources = readDD(24)
	dir.StrongNameSignature = readDD(32)
	dir.CodeManagerTable = readDD(40)
	dir.VTableFixups = readDD(48)
	dir.ExportAddressTableJumps = readDD(56)
	dir.ManagedNativeHeader = readDD(64)
	return dir, nil
}
