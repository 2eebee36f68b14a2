// TLS directory decoder, spec.md §4.H: "read VA-addressed fields, convert
// VA->offset via §4.B and image_base. Walk the callbacks array until a
// null pointer or 1000-callback cap."
//
// No surviving original_source file documents IMAGE_TLS_DIRECTORY; the
// field layout below (four VAs + zero-fill size + characteristics,
// 32-bit fields widened to 64-bit VAs under PE32+) is the standard
// documented shape.
package pefile

import "github.com/provide-io/xbin/pkg/xbin/diag"

const maxTLSCallbacks = 1000

// TLSDirectory is the decoded Thread Local Storage directory.
type TLSDirectory struct {
	RawDataStart    uint64
	RawDataEnd      uint64
	IndexAddress    uint64
	CallbacksVA     uint64
	SizeOfZeroFill  uint32
	Characteristics uint32
	Callbacks       []uint64
}

// DecodeTLS decodes the TLS data directory.
func (f *File) DecodeTLS(diags *diag.Collector) (*TLSDirectory, error) {
	dd := f.DataDirectory(DirTLS)
	dir := &TLSDirectory{}
	if dd.RVA == 0 || dd.Size == 0 {
		return dir, nil
	}

	width := int64(24) // 4 VAs(4B) + u32 + u32, PE32
	if f.Optional.Is64Bit {
		width = 40 // 4 VAs(8B) + u32 + u32, PE32+
	}
	raw, err := f.Slice(dd.RVA, width)
	if err != nil {
		diags.Addf(diag.Error, diag.Tls, "TLS_DIRECTORY_TRUNCATED", 0, dd.RVA,
			"TLS directory truncated: %v", err)
		return dir, nil
	}

	if f.Optional.Is64Bit {
		dir.RawDataStart = u64(raw, 0)
		dir.RawDataEnd = u64(raw, 8)
		dir.IndexAddress = u64(raw, 16)
		dir.CallbacksVA = u64(raw, 24)
		dir.SizeOfZeroFill = u32(raw, 32)
		dir.Characteristics = u32(raw, 36)
	} else {
		dir.RawDataStart = uint64(u32(raw, 0))
		dir.RawDataEnd = uint64(u32(raw, 4))
		dir.IndexAddress = uint64(u32(raw, 8))
		dir.CallbacksVA = uint64(u32(raw, 12))
		dir.SizeOfZeroFill = u32(raw, 16)
		dir.Characteristics = u32(raw, 20)
	}

	if dir.CallbacksVA == 0 {
		return dir, nil
	}
	callbacksRVA, ok := f.VAToRVA(dir.CallbacksVA)
	if !ok {
		diags.Addf(diag.Warning, diag.Tls, "TLS_CALLBACKS_VA_UNRESOLVED", 0, 0,
			"TLS callback array VA %#x not resolvable against image base %#x", dir.CallbacksVA, f.Optional.ImageBase)
		return dir, nil
	}

	entrySize := uint32(4)
	if f.Optional.Is64Bit {
		entrySize = 8
	}
	for i := 0; i < maxTLSCallbacks; i++ {
		entryRVA := callbacksRVA + uint32(i)*entrySize
		var va uint64
		var err error
		if f.Optional.Is64Bit {
			va, err = f.U64At(entryRVA)
		} else {
			var v uint32
			v, err = f.U32At(entryRVA)
			va = uint64(v)
		}
		if err != nil || va == 0 {
			break
		}
		dir.Callbacks = append(dir.Callbacks, va)
	}
	return dir, nil
}
