package rva

import "testing"

func testSections() []Section {
	return []Section{
		{Name: ".text", VirtualAddress: 0x1000, VirtualSize: 0x500, RawOffset: 0x400, RawSize: 0x600, FileAlignment: 0x200},
		{Name: ".data", VirtualAddress: 0x2000, VirtualSize: 0x100, RawOffset: 0xA00, RawSize: 0x200, FileAlignment: 0x200},
	}
}

func TestRVAToOffsetProperty(t *testing.T) {
	r := NewResolver(testSections())

	for _, s := range testSections() {
		off, ok := r.RVAToOffset(s.VirtualAddress)
		if !ok {
			t.Fatalf("section %s start RVA not resolved", s.Name)
		}
		if off != uint64(s.EffectiveRawOffset()) {
			t.Fatalf("section %s start offset = 0x%x, want 0x%x", s.Name, off, s.EffectiveRawOffset())
		}

		endOff, ok := r.RVAToOffset(s.VirtualAddress + s.VirtualSize - 1)
		if !ok {
			t.Fatalf("section %s end RVA not resolved", s.Name)
		}
		lo := uint64(s.EffectiveRawOffset())
		hi := lo + uint64(s.RawSize)
		if endOff < lo || endOff >= hi {
			t.Fatalf("section %s end offset 0x%x not within [0x%x,0x%x)", s.Name, endOff, lo, hi)
		}
	}
}

func TestRVAToOffsetBeyondRawSize(t *testing.T) {
	// A section whose virtual_size (0x2000) exceeds its raw_size (0x100):
	// RVAs inside the raw data resolve, RVAs past raw_size do not even
	// though virtual_size covers them.
	sections := []Section{
		{Name: ".bss", VirtualAddress: 0x1000, VirtualSize: 0x2000, RawOffset: 0x400, RawSize: 0x100, FileAlignment: 0x200},
	}
	r := NewResolver(sections)

	if _, ok := r.RVAToOffset(0x1000 + 0x80); !ok {
		t.Fatalf("expected RVA within raw_size to resolve")
	} else {
		// but an RVA beyond raw_size must fail even though virtual_size covers it
	}
	if _, ok := r.RVAToOffset(0x1000 + 0x500); ok {
		t.Fatalf("RVA past raw_size must not resolve to an offset")
	}
}

func TestSectionOfRVANotFound(t *testing.T) {
	r := NewResolver(testSections())
	if _, ok := r.SectionOfRVA(0x9999); ok {
		t.Fatalf("expected no section for unmapped RVA")
	}
}

func TestVAToRVA(t *testing.T) {
	const base = 0x00400000
	rva, ok := VAToRVA(base+0x1234, base)
	if !ok || rva != 0x1234 {
		t.Fatalf("VAToRVA = 0x%x, %v, want 0x1234, true", rva, ok)
	}

	if _, ok := VAToRVA(base-1, base); ok {
		t.Fatalf("VA below image base must not resolve")
	}

	if _, ok := VAToRVA(base+(1<<32), base); ok {
		t.Fatalf("VA >= 4GiB above image base must not resolve")
	}
}

func TestEffectiveRawOffsetLowAlignmentRounding(t *testing.T) {
	s := Section{RawOffset: 0x450, FileAlignment: 0x200}
	if got := s.EffectiveRawOffset(); got != 0x400 {
		t.Fatalf("EffectiveRawOffset = 0x%x, want 0x400", got)
	}

	s2 := Section{RawOffset: 0x450, FileAlignment: 0x1000}
	if got := s2.EffectiveRawOffset(); got != 0x450 {
		t.Fatalf("EffectiveRawOffset with high alignment = 0x%x, want 0x450 (verbatim)", got)
	}
}
