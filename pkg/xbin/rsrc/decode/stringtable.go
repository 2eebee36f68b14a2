package decode

import "github.com/provide-io/xbin/pkg/xbin/bytesource"

// StringTableEntriesPerBlock is fixed at 16 per spec.md §4.J: "exactly 16
// entries per block; block id k holds strings with global ids
// 16(k-1) .. 16k-1."
const StringTableEntriesPerBlock = 16

// StringTableBlock is one decoded RT_STRING resource (one "block" in
// Windows resource terminology). GlobalID(i) gives the string id a given
// slot corresponds to once the block's own id k is known.
type StringTableBlock struct {
	Strings [StringTableEntriesPerBlock]string // "" for an empty (length-zero) slot
	Present [StringTableEntriesPerBlock]bool
}

// GlobalID returns the global string id slot i (0-based within the block)
// maps to, given the block's own numeric resource id blockID.
func GlobalID(blockID uint32, slot int) uint32 {
	return uint32(StringTableEntriesPerBlock)*(blockID-1) + uint32(slot)
}

// DecodeStringTable parses an RT_STRING leaf's bytes: 16 consecutive
// (u16 length, length x u16 LE) entries, a zero-length entry marking an
// empty slot.
func DecodeStringTable(data []byte) (StringTableBlock, bool) {
	src := bytesource.New(data)
	var block StringTableBlock
	pos := int64(0)
	for i := 0; i < StringTableEntriesPerBlock; i++ {
		length, err := src.U16LE(pos)
		if err != nil {
			return StringTableBlock{}, false
		}
		pos += 2
		if length == 0 {
			continue
		}
		s, err := src.UTF16LESized(pos, int64(length))
		if err != nil {
			return StringTableBlock{}, false
		}
		block.Strings[i] = s
		block.Present[i] = true
		pos += int64(length) * 2
	}
	return block, true
}
