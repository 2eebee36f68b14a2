package decode

import "testing"

// buildMessageTableFixture builds one block covering ids 1-2: entry 1 is
// ANSI "Hello", entry 2 is UTF-16LE "World".
func buildMessageTableFixture() []byte {
	ansiText := "Hello\x00"
	ansiLen := uint16(4 + len(ansiText))

	wideText := versionUTF16Value("World")
	wideLen := uint16(4 + len(wideText))

	entriesSize := int(ansiLen) + int(wideLen)
	buf := make([]byte, 4+12+entriesSize)

	putU32(buf, 0, 1) // block count

	entryOffset := uint32(4 + 12)
	putU32(buf, 4, 1)           // low id
	putU32(buf, 8, 2)           // high id
	putU32(buf, 12, entryOffset)

	pos := int(entryOffset)
	putU16(buf, pos, ansiLen)
	putU16(buf, pos+2, 0) // flags: ANSI
	copy(buf[pos+4:], ansiText)
	pos += int(ansiLen)

	putU16(buf, pos, wideLen)
	putU16(buf, pos+2, 1) // flags: UTF-16
	copy(buf[pos+4:], wideText)
	pos += int(wideLen)

	return buf
}

func TestDecodeMessageTable(t *testing.T) {
	buf := buildMessageTableFixture()
	entries, ok := DecodeMessageTable(buf)
	if !ok {
		t.Fatalf("DecodeMessageTable failed")
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].ID != 1 || entries[0].IsWide || entries[0].Text != "Hello" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].ID != 2 || !entries[1].IsWide || entries[1].Text != "World" {
		t.Errorf("entry 1 = %+v", entries[1])
	}
}
