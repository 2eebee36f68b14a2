// Load configuration directory decoder, spec.md §4.H: "first u32 is the
// structure size; every field read beyond offset size is defaulted to
// zero. This is the version-discovery mechanism."
//
// No surviving original_source file documents IMAGE_LOAD_CONFIG_DIRECTORY;
// the field subset below (the fields stable since the original NT4 shape)
// is the standard documented layout, widened for PE32+ the same way the
// optional header is.
package pefile

import "github.com/provide-io/xbin/pkg/xbin/diag"

// LoadConfigDirectory is the subset of IMAGE_LOAD_CONFIG_DIRECTORY this
// package surfaces. Fields introduced by Windows versions newer than the
// reported Size are left at zero, per spec.md §4.H.
type LoadConfigDirectory struct {
	Size                          uint32
	TimeDateStamp                 uint32
	MajorVersion                  uint16
	MinorVersion                  uint16
	GlobalFlagsClear              uint32
	GlobalFlagsSet                uint32
	CriticalSectionDefaultTimeout uint32
	SecurityCookie                uint64
	SEHandlerTable                uint64
	SEHandlerCount                uint64
}

// DecodeLoadConfig decodes the LoadConfig data directory.
func (f *File) DecodeLoadConfig(diags *diag.Collector) (*LoadConfigDirectory, error) {
	dd := f.DataDirectory(DirLoadConfig)
	dir := &LoadConfigDirectory{}
	if dd.RVA == 0 || dd.Size == 0 {
		return dir, nil
	}

	sizeField, err := f.U32At(dd.RVA)
	if err != nil {
		diags.Addf(diag.Error, diag.LoadConfig, "LCFG_SIZE_UNREADABLE", 0, dd.RVA,
			"load config directory size field unreadable: %v", err)
		return dir, nil
	}
	dir.Size = sizeField

	field := func(offset uint32, width int64) ([]byte, bool) {
		if offset+uint32(width) > sizeField {
			return nil, false
		}
		b, err := f.Slice(dd.RVA+offset, width)
		return b, err == nil
	}

	if b, ok := field(4, 4); ok {
		dir.TimeDateStamp = u32(b, 0)
	}
	if b, ok := field(8, 2); ok {
		dir.MajorVersion = u16(b, 0)
	}
	if b, ok := field(10, 2); ok {
		dir.MinorVersion = u16(b, 0)
	}
	if b, ok := field(12, 4); ok {
		dir.GlobalFlagsClear = u32(b, 0)
	}
	if b, ok := field(16, 4); ok {
		dir.GlobalFlagsSet = u32(b, 0)
	}
	if b, ok := field(20, 4); ok {
		dir.CriticalSectionDefaultTimeout = u32(b, 0)
	}

	if f.Optional.Is64Bit {
		if b, ok := field(0x58, 8); ok {
			dir.SecurityCookie = u64(b, 0)
		}
		if b, ok := field(0x60, 8); ok {
			dir.SEHandlerTable = u64(b, 0)
		}
		if b, ok := field(0x68, 8); ok {
			dir.SEHandlerCount = u64(b, 0)
		}
	} else {
		if b, ok := field(0x3C, 4); ok {
			dir.SecurityCookie = uint64(u32(b, 0))
		}
		if b, ok := field(0x40, 4); ok {
			dir.SEHandlerTable = uint64(u32(b, 0))
		}
		if b, ok := field(0x44, 4); ok {
			dir.SEHandlerCount = uint64(u32(b, 0))
		}
	}
	return dir, nil
}
