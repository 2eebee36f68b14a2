package decode

import "testing"

func TestDecodeStringTable(t *testing.T) {
	buf := make([]byte, 256)
	pos := 0
	for i := 0; i < StringTableEntriesPerBlock; i++ {
		switch i {
		case 3:
			s := "hello"
			putU16(buf, pos, uint16(len(s)))
			pos += 2
			pos = putUTF16Units(buf, pos, s)
		default:
			putU16(buf, pos, 0)
			pos += 2
		}
	}

	block, ok := DecodeStringTable(buf[:pos])
	if !ok {
		t.Fatalf("DecodeStringTable failed")
	}
	for i := 0; i < StringTableEntriesPerBlock; i++ {
		if i == 3 {
			if !block.Present[3] || block.Strings[3] != "hello" {
				t.Errorf("slot 3 = present=%v %q, want hello", block.Present[3], block.Strings[3])
			}
			continue
		}
		if block.Present[i] {
			t.Errorf("slot %d unexpectedly present", i)
		}
	}
}

func TestGlobalID(t *testing.T) {
	if got := GlobalID(1, 0); got != 0 {
		t.Errorf("GlobalID(1,0) = %d, want 0", got)
	}
	if got := GlobalID(2, 3); got != 19 {
		t.Errorf("GlobalID(2,3) = %d, want 19", got)
	}
}

// putUTF16Units writes the UTF-16LE code units of s (no length prefix,
// no terminator) and returns the position after them.
func putUTF16Units(buf []byte, off int, s string) int {
	pos := off
	for _, r := range s {
		putU16(buf, pos, uint16(r))
		pos += 2
	}
	return pos
}
