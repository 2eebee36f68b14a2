package decode

import (
	"unicode/utf16"

	"github.com/provide-io/xbin/pkg/xbin/bytesource"
)

// MessageEntry is one decoded message, keyed by its id from the owning
// block's id range.
type MessageEntry struct {
	ID     uint32
	Text   string
	IsWide bool // true if the source bytes were UTF-16LE, false if ANSI
}

// DecodeMessageTable parses an RT_MESSAGETABLE leaf's bytes: a u32 block
// count, that many 12-byte block descriptors (low id, high id, offset to
// the first entry), then for each block a dense run of entries (u16
// length including this header, u16 flags, then length-4 bytes of text).
// flags bit 0 set means the text is UTF-16LE, otherwise it is ANSI.
func DecodeMessageTable(data []byte) ([]MessageEntry, bool) {
	src := bytesource.New(data)
	blockCount, err := src.U32LE(0)
	if err != nil {
		return nil, false
	}

	var entries []MessageEntry
	for i := uint32(0); i < blockCount; i++ {
		descOffset := int64(4 + i*12)
		lowID, err := src.U32LE(descOffset)
		if err != nil {
			return nil, false
		}
		highID, err := src.U32LE(descOffset + 4)
		if err != nil {
			return nil, false
		}
		entryOffset, err := src.U32LE(descOffset + 8)
		if err != nil {
			return nil, false
		}
		if highID < lowID {
			return nil, false
		}

		pos := int64(entryOffset)
		for id := lowID; id <= highID; id++ {
			length, err := src.U16LE(pos)
			if err != nil {
				return nil, false
			}
			if length < 4 {
				return nil, false
			}
			flags, err := src.U16LE(pos + 2)
			if err != nil {
				return nil, false
			}
			textLen := int64(length) - 4
			raw, err := src.Slice(pos+4, textLen)
			if err != nil {
				return nil, false
			}

			isWide := flags&0x1 != 0
			var text string
			if isWide {
				units := make([]uint16, 0, len(raw)/2)
				for j := 0; j+2 <= len(raw); j += 2 {
					units = append(units, u16le(raw, j))
				}
				for len(units) > 0 && units[len(units)-1] == 0 {
					units = units[:len(units)-1]
				}
				text = string(utf16.Decode(units))
			} else {
				end := len(raw)
				for end > 0 && raw[end-1] == 0 {
					end--
				}
				text = string(raw[:end])
			}

			entries = append(entries, MessageEntry{ID: id, Text: text, IsWide: isWide})
			pos += int64(length)

			if id == highID {
				break
			}
		}
	}
	return entries, true
}
