// Debug directory decoder, spec.md §4.H: "size / 28 entries. For each
// type == CODEVIEW (2), read the 4-byte CodeView signature: 'RSDS' ->
// PDB 7.0 (16-byte GUID + u32 age + C-string path), 'NB10' -> PDB 2.0
// (skip 4 + u32 timestamp + u32 age + C-string path)."
//
// No surviving original_source file documents IMAGE_DEBUG_DIRECTORY; the
// 28-byte entry layout is the standard documented shape.
package pefile

import (
	"errors"

	"github.com/provide-io/xbin/pkg/xbin/diag"
)

var errUnrecognizedCodeView = errors.New("pefile: unrecognized CodeView signature")

const maxDebugEntries = 100

// DebugType mirrors IMAGE_DEBUG_TYPE_*.
type DebugType uint32

const (
	DebugTypeUnknown  DebugType = 0
	DebugTypeCOFF     DebugType = 1
	DebugTypeCodeView DebugType = 2
	DebugTypeFPO      DebugType = 3
	DebugTypeMisc     DebugType = 4
)

// PDBInfo is the CodeView record extracted from a CODEVIEW debug entry,
// when recognised.
type PDBInfo struct {
	Signature string // "RSDS" or "NB10"
	GUID      [16]byte
	Age       uint32
	Timestamp uint32
	Path      string
}

// DebugEntry is one IMAGE_DEBUG_DIRECTORY record.
type DebugEntry struct {
	Characteristics  uint32
	TimeDateStamp    uint32
	MajorVersion     uint16
	MinorVersion     uint16
	Type             DebugType
	SizeOfData       uint32
	AddressOfRawData uint32
	PointerToRawData uint32
	PDB              *PDBInfo
}

// DebugDirectory is every decoded debug directory entry.
type DebugDirectory struct {
	Entries []DebugEntry
}

// DecodeDebug decodes the Debug data directory.
func (f *File) DecodeDebug(diags *diag.Collector) (*DebugDirectory, error) {
	dd := f.DataDirectory(DirDebug)
	dir := &DebugDirectory{}
	if dd.RVA == 0 || dd.Size == 0 {
		return dir, nil
	}

	count := dd.Size / 28
	if count > maxDebugEntries {
		diags.Addf(diag.Anomaly, diag.Debug, "DBG_ENTRY_CAP_REACHED", 0, dd.RVA,
			"debug directory claims %d entries, capping at %d", count, maxDebugEntries)
		count = maxDebugEntries
	}

	for i := uint32(0); i < count; i++ {
		raw, err := f.Slice(dd.RVA+i*28, 28)
		if err != nil {
			diags.Addf(diag.Anomaly, diag.Debug, "DBG_ENTRY_TRUNCATED", 0, dd.RVA+i*28,
				"debug entry %d truncated: %v", i, err)
			break
		}
		e := DebugEntry{
			Characteristics:  u32(raw, 0),
			TimeDateStamp:    u32(raw, 4),
			MajorVersion:     u16(raw, 8),
			MinorVersion:     u16(raw, 10),
			Type:             DebugType(u32(raw, 12)),
			SizeOfData:       u32(raw, 16),
			AddressOfRawData: u32(raw, 20),
			PointerToRawData: u32(raw, 24),
		}
		if e.Type == DebugTypeCodeView && e.AddressOfRawData != 0 {
			if pdb, err := f.decodeCodeView(e.AddressOfRawData, e.SizeOfData); err == nil {
				e.PDB = pdb
			} else {
				diags.Addf(diag.Anomaly, diag.Debug, "DBG_CODEVIEW_UNRECOGNIZED", 0, e.AddressOfRawData,
					"CodeView record unrecognized: %v", err)
			}
		}
		dir.Entries = append(dir.Entries, e)
	}
	return dir, nil
}

func (f *File) decodeCodeView(rvaVal, size uint32) (*PDBInfo, error) {
	sig, err := f.Slice(rvaVal, 4)
	if err != nil {
		return nil, err
	}
	switch string(sig) {
	case "RSDS":
		body, err := f.Slice(rvaVal+4, 20)
		if err != nil {
			return nil, err
		}
		info := &PDBInfo{Signature: "RSDS", Age: u32(body, 16)}
		copy(info.GUID[:], body[0:16])
		if path, err := f.CStrAt(rvaVal + 24); err == nil {
			info.Path = path
		}
		return info, nil
	case "NB10":
		body, err := f.Slice(rvaVal+8, 8)
		if err != nil {
			return nil, err
		}
		info := &PDBInfo{
			Signature: "NB10",
			Timestamp: u32(body, 0),
			Age:       u32(body, 4),
		}
		if path, err := f.CStrAt(rvaVal + 16); err == nil {
			info.Path = path
		}
		return info, nil
	default:
		return nil, errUnrecognizedCodeView
	}
}
