package decode

import "testing"

func TestDecodeVersionInfo(t *testing.T) {
	buf := buildVersionInfoFixture()
	info, ok := DecodeVersionInfo(buf)
	if !ok {
		t.Fatalf("DecodeVersionInfo failed")
	}
	if info.Fixed == nil {
		t.Fatalf("Fixed is nil")
	}
	if info.Fixed.Signature != 0xFEEF04BD {
		t.Errorf("Fixed.Signature = %#x, want 0xFEEF04BD", info.Fixed.Signature)
	}
	if info.Fixed.FileVersionMS != 1 {
		t.Errorf("Fixed.FileVersionMS = %d, want 1", info.Fixed.FileVersionMS)
	}

	strs, ok := info.Strings["040904B0"]
	if !ok {
		t.Fatalf("expected string table 040904B0 to be present, got %v", info.Strings)
	}
	if strs["ProductName"] != "xbin" {
		t.Errorf("ProductName = %q, want xbin", strs["ProductName"])
	}

	if len(info.Translations) != 1 {
		t.Fatalf("len(Translations) = %d, want 1", len(info.Translations))
	}
	if info.Translations[0].Language != 0x0409 || info.Translations[0].Codepage != 0x04B0 {
		t.Errorf("Translation = %+v, want {0x0409 0x04B0}", info.Translations[0])
	}
}

// buildVersionBlock assembles one generic VS_VERSION_INFO-style block:
// (u16 total_len, u16 value_len, u16 type, NUL-terminated UTF-16 key,
// DWORD-pad, value bytes, DWORD-pad, children bytes).
func buildVersionBlock(key string, typ uint16, value []byte, children []byte) []byte {
	keyLen := 0
	for _, r := range key {
		_ = r
		keyLen += 2
	}
	keyLen += 2 // NUL terminator

	valuePos := dwordAlign(6 + keyLen)
	childPos := dwordAlign(valuePos + len(value))
	total := childPos + len(children)

	buf := make([]byte, total)
	putU16(buf, 0, uint16(total))
	putU16(buf, 2, uint16(len(value)))
	putU16(buf, 4, typ)

	pos := 6
	for _, r := range key {
		putU16(buf, pos, uint16(r))
		pos += 2
	}
	putU16(buf, pos, 0)

	copy(buf[valuePos:], value)
	copy(buf[childPos:], children)
	return buf
}

func buildFixedFileInfoBytes() []byte {
	buf := make([]byte, 52)
	putU32(buf, 0, 0xFEEF04BD) // signature
	putU32(buf, 8, 1)          // FileVersionMS
	putU32(buf, 12, 0)         // FileVersionLS
	return buf
}

func buildVersionInfoFixture() []byte {
	productName := buildVersionBlock("ProductName", 1, versionUTF16Value("xbin"), nil)
	stringTable := buildVersionBlock("040904B0", 1, nil, productName)
	stringFileInfo := buildVersionBlock("StringFileInfo", 1, nil, stringTable)

	translation := buildVersionBlock("Translation", 0, []byte{0x09, 0x04, 0xB0, 0x04}, nil)
	varFileInfo := buildVersionBlock("VarFileInfo", 1, nil, translation)

	children := append(append([]byte{}, stringFileInfo...), varFileInfo...)
	root := buildVersionBlock("VS_VERSION_INFO", 0, buildFixedFileInfoBytes(), children)
	return root
}

// versionUTF16Value encodes s as NUL-terminated UTF-16LE bytes, the shape
// a String block's Value holds.
func versionUTF16Value(s string) []byte {
	buf := make([]byte, 2*(len(s)+1))
	pos := 0
	for _, r := range s {
		putU16(buf, pos, uint16(r))
		pos += 2
	}
	putU16(buf, pos, 0)
	return buf
}
