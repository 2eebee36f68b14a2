package decode

import "github.com/provide-io/xbin/pkg/xbin/bytesource"

// GroupEntry is one GRPICONDIR/GRPCURSORDIR entry, per spec.md §4.J: "6-byte
// header (reserved, type, count) + count x 14-byte entries (w, h, colors,
// reserved, planes, bpp, size_in_bytes, resource_id)."
type GroupEntry struct {
	Width         int // 0 in the wire format means 256
	Height        int
	ColorCount    uint8
	Planes        uint16
	BitCount      uint16
	BytesInRes    uint32
	ResourceID    uint16
}

// IconGroup is a decoded GRPICONDIR/GRPCURSORDIR resource: the RT_ICON or
// RT_CURSOR image an RT_GROUP_ICON/RT_GROUP_CURSOR entry lists, each
// referencing an RT_ICON/RT_CURSOR leaf by ResourceID.
type IconGroup struct {
	Type    uint16 // 1 = icon, 2 = cursor
	Entries []GroupEntry
}

// DecodeIconGroup parses a GRPICONDIR (RT_GROUP_ICON) resource.
func DecodeIconGroup(data []byte) (IconGroup, bool) {
	return decodeGroup(data)
}

// DecodeCursorGroup parses a GRPCURSORDIR (RT_GROUP_CURSOR) resource. The
// wire layout is identical to GRPICONDIR; only the Type field and the
// meaning of ColorCount/Planes/BitCount (hotspot coordinates for cursors)
// differ, which this package leaves to the caller to interpret.
func DecodeCursorGroup(data []byte) (IconGroup, bool) {
	return decodeGroup(data)
}

func decodeGroup(data []byte) (IconGroup, bool) {
	src := bytesource.New(data)
	typ, err := src.U16LE(2)
	if err != nil {
		return IconGroup{}, false
	}
	count, err := src.U16LE(4)
	if err != nil {
		return IconGroup{}, false
	}
	g := IconGroup{Type: typ}
	for i := uint16(0); i < count; i++ {
		base := int64(6) + int64(i)*14
		entry, err := src.Slice(base, 14)
		if err != nil {
			break
		}
		width := int(entry[0])
		if width == 0 {
			width = 256
		}
		height := int(entry[1])
		if height == 0 {
			height = 256
		}
		g.Entries = append(g.Entries, GroupEntry{
			Width:      width,
			Height:     height,
			ColorCount: entry[2],
			Planes:     u16le(entry, 4),
			BitCount:   u16le(entry, 6),
			BytesInRes: u32le(entry, 8),
			ResourceID: u16le(entry, 12),
		})
	}
	return g, true
}

func u16le(b []byte, off int) uint16 { return uint16(b[off]) | uint16(b[off+1])<<8 }
func u32le(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}
