package sniff

import (
	"testing"

	"github.com/provide-io/xbin/pkg/xbin/bytesource"
)

func mzStub(lfanew uint32, rest []byte) []byte {
	buf := make([]byte, 0x40)
	buf[0] = 'M'
	buf[1] = 'Z'
	buf[0x3C] = byte(lfanew)
	buf[0x3D] = byte(lfanew >> 8)
	buf[0x3E] = byte(lfanew >> 16)
	buf[0x3F] = byte(lfanew >> 24)
	buf = append(buf, rest...)
	return buf
}

func TestClassifyTooSmall(t *testing.T) {
	if _, err := Classify(bytesource.New([]byte{0x4D})); err != ErrTooSmall {
		t.Fatalf("expected ErrTooSmall, got %v", err)
	}
}

func TestClassifyMzDosZeroLfanew(t *testing.T) {
	buf := mzStub(0, nil)
	f, err := Classify(bytesource.New(buf))
	if err != nil || f != MzDos {
		t.Fatalf("Classify = %v, %v, want MzDos, nil", f, err)
	}
}

func TestClassifyNE(t *testing.T) {
	buf := mzStub(0x40, []byte{'N', 'E', 0, 0})
	f, err := Classify(bytesource.New(buf))
	if err != nil || f != NeWin16 {
		t.Fatalf("Classify = %v, %v, want NeWin16, nil", f, err)
	}
}

func TestClassifyPE32(t *testing.T) {
	rest := make([]byte, 0x20)
	rest[0], rest[1], rest[2], rest[3] = 'P', 'E', 0, 0
	rest[0x18] = 0x0B
	rest[0x19] = 0x01
	buf := mzStub(0x40, rest)
	f, err := Classify(bytesource.New(buf))
	if err != nil || f != Pe32 {
		t.Fatalf("Classify = %v, %v, want Pe32, nil", f, err)
	}
}

func TestClassifyPE32Plus(t *testing.T) {
	rest := make([]byte, 0x20)
	rest[0], rest[1], rest[2], rest[3] = 'P', 'E', 0, 0
	rest[0x18] = 0x0B
	rest[0x19] = 0x02
	buf := mzStub(0x40, rest)
	f, err := Classify(bytesource.New(buf))
	if err != nil || f != Pe32Plus {
		t.Fatalf("Classify = %v, %v, want Pe32Plus, nil", f, err)
	}
}

func TestClassifyLEVariants(t *testing.T) {
	cases := []struct {
		targetOS byte
		want     Format
	}{
		{0x01, LxOs2Bound},
		{0x02, LeVxd},
		{0x03, LeDos32Bound},
		{0x09, LeDos32Bound},
	}
	for _, c := range cases {
		rest := make([]byte, 0x10)
		rest[0], rest[1] = 'L', 'E'
		rest[0x0A] = c.targetOS
		buf := mzStub(0x40, rest)
		f, err := Classify(bytesource.New(buf))
		if err != nil || f != c.want {
			t.Fatalf("targetOS=0x%x: Classify = %v, %v, want %v, nil", c.targetOS, f, err, c.want)
		}
	}
}

func TestClassifyRawLXNoStub(t *testing.T) {
	buf := []byte{'L', 'X', 0, 0}
	f, err := Classify(bytesource.New(buf))
	if err != nil || f != LxOs2Raw {
		t.Fatalf("Classify = %v, %v, want LxOs2Raw, nil", f, err)
	}
}

func TestClassifyRawLENoStub(t *testing.T) {
	buf := []byte{'L', 'E', 0, 0}
	f, err := Classify(bytesource.New(buf))
	if err != nil || f != LeDos32Raw {
		t.Fatalf("Classify = %v, %v, want LeDos32Raw, nil", f, err)
	}
}
