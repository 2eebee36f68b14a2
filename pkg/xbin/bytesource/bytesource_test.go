package bytesource

import (
	"errors"
	"testing"
)

func TestReaders(t *testing.T) {
	buf := []byte{0x4D, 0x5A, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	s := New(buf)

	if s.Len() != len(buf) {
		t.Fatalf("Len() = %d, want %d", s.Len(), len(buf))
	}

	b, err := s.U8(0)
	if err != nil || b != 0x4D {
		t.Fatalf("U8(0) = %v, %v, want 0x4D, nil", b, err)
	}

	u16, err := s.U16LE(2)
	if err != nil || u16 != 0x0201 {
		t.Fatalf("U16LE(2) = 0x%x, %v, want 0x0201, nil", u16, err)
	}

	u32, err := s.U32LE(2)
	if err != nil || u32 != 0x04030201 {
		t.Fatalf("U32LE(2) = 0x%x, %v, want 0x04030201, nil", u32, err)
	}

	u64, err := s.U64LE(2)
	if err != nil || u64 != 0x0807060504030201 {
		t.Fatalf("U64LE(2) = 0x%x, %v, want 0x0807060504030201, nil", u64, err)
	}
}

func TestOutOfBounds(t *testing.T) {
	s := New([]byte{1, 2, 3})

	if _, err := s.U32LE(1); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("U32LE(1) err = %v, want ErrOutOfBounds", err)
	}
	if _, err := s.U8(3); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("U8(3) err = %v, want ErrOutOfBounds", err)
	}
	if _, err := s.Slice(0, 4); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("Slice(0,4) err = %v, want ErrOutOfBounds", err)
	}
	if _, err := s.Slice(-1, 1); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("Slice(-1,1) err = %v, want ErrOutOfBounds", err)
	}
}

func TestCStrStopsAtNulAndMaxLen(t *testing.T) {
	s := New([]byte("hello\x00world"))

	value, consumed, err := s.CStr(0, 64)
	if err != nil {
		t.Fatalf("CStr: %v", err)
	}
	if string(value) != "hello" || consumed != 6 {
		t.Fatalf("CStr = %q, %d, want %q, 6", value, consumed, "hello")
	}

	value, consumed, err = s.CStr(0, 3)
	if err != nil {
		t.Fatalf("CStr maxLen: %v", err)
	}
	if string(value) != "hel" || consumed != 3 {
		t.Fatalf("CStr maxLen = %q, %d, want %q, 3", value, consumed, "hel")
	}
}

func TestUTF16LESized(t *testing.T) {
	// "AB" in UTF-16LE
	s := New([]byte{0x41, 0x00, 0x42, 0x00, 0x00, 0x00})
	str, err := s.UTF16LESized(0, 2)
	if err != nil {
		t.Fatalf("UTF16LESized: %v", err)
	}
	if str != "AB" {
		t.Fatalf("UTF16LESized = %q, want AB", str)
	}
}

func TestUTF16LEUntilNUL(t *testing.T) {
	s := New([]byte{0x41, 0x00, 0x42, 0x00, 0x00, 0x00, 0xFF})
	str, consumed, err := s.UTF16LEUntilNUL(0)
	if err != nil {
		t.Fatalf("UTF16LEUntilNUL: %v", err)
	}
	if str != "AB" || consumed != 6 {
		t.Fatalf("UTF16LEUntilNUL = %q, %d, want AB, 6", str, consumed)
	}
}

func TestU24BE(t *testing.T) {
	s := New([]byte{0x00, 0x01, 0x02, 0x03})
	v, err := s.U24BE(1)
	if err != nil || v != 0x010203 {
		t.Fatalf("U24BE = 0x%x, %v, want 0x010203, nil", v, err)
	}
}
