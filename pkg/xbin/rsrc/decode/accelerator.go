package decode

import "github.com/provide-io/xbin/pkg/xbin/bytesource"

// Accelerator flag bits, per spec.md §4.J.
const (
	AccelVirtKey  uint16 = 0x01
	AccelNoInvert uint16 = 0x02
	AccelShift    uint16 = 0x04
	AccelControl  uint16 = 0x08
	AccelAlt      uint16 = 0x10
	accelLast     uint16 = 0x80
)

// AcceleratorEntry is one 8-byte ACCEL entry.
type AcceleratorEntry struct {
	Flags uint16
	Key   uint16
	CmdID uint16
}

// DecodeAcceleratorTable parses an RT_ACCELERATOR leaf's bytes: 8-byte
// entries (u16 flags, u16 key, u16 cmd_id, u16 padding), terminated by an
// entry whose flags carry the 0x80 "last entry" bit.
func DecodeAcceleratorTable(data []byte) ([]AcceleratorEntry, bool) {
	src := bytesource.New(data)
	var entries []AcceleratorEntry
	pos := int64(0)
	for {
		raw, err := src.Slice(pos, 8)
		if err != nil {
			if len(entries) > 0 {
				return entries, true // a truncated trailing entry is tolerated
			}
			return nil, false
		}
		flags := u16le(raw, 0)
		entries = append(entries, AcceleratorEntry{
			Flags: flags,
			Key:   u16le(raw, 2),
			CmdID: u16le(raw, 4),
		})
		pos += 8
		if flags&accelLast != 0 {
			break
		}
	}
	return entries, true
}
