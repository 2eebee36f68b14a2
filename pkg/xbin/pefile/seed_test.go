package pefile

import (
	"testing"

	"github.com/provide-io/xbin/internal/fixtures"
	"github.com/provide-io/xbin/pkg/xbin/bytesource"
)

// TestSeedPE32HeaderInvariants exercises the S3 seed scenario's asserted
// invariants (spec.md §8) against a synthetic stand-in for TCMDX32.EXE:
// no genuine copy of that binary ships in this repository's source
// material, so fixtures.PE32TCMDX32 reconstructs only the header/section
// shape the scenario names.
func TestSeedPE32HeaderInvariants(t *testing.T) {
	f, err := Parse(bytesource.New(fixtures.PE32TCMDX32()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Coff.Machine != MachineI386 {
		t.Errorf("Machine = %v, want I386", f.Coff.Machine)
	}
	if f.Coff.NumberOfSections != 4 {
		t.Errorf("NumberOfSections = %d, want 4", f.Coff.NumberOfSections)
	}
	if f.Coff.TimeDateStamp != 1467963278 {
		t.Errorf("TimeDateStamp = %d, want 1467963278", f.Coff.TimeDateStamp)
	}
	if f.Optional.ImageBase != 0x00400000 {
		t.Errorf("ImageBase = %#x, want 0x00400000", f.Optional.ImageBase)
	}
	if f.Optional.AddressOfEntryPoint != 0x1000+0x4B58 {
		t.Errorf("AddressOfEntryPoint = %#x", f.Optional.AddressOfEntryPoint)
	}
	if f.Optional.SectionAlignment != 0x1000 || f.Optional.FileAlignment != 0x1000 {
		t.Errorf("alignments = %#x/%#x, want 0x1000/0x1000", f.Optional.SectionAlignment, f.Optional.FileAlignment)
	}
	if f.Optional.SizeOfImage != 0x15000 {
		t.Errorf("SizeOfImage = %#x, want 0x15000", f.Optional.SizeOfImage)
	}
	if f.Optional.SizeOfHeaders != 0x1000 {
		t.Errorf("SizeOfHeaders = %#x, want 0x1000", f.Optional.SizeOfHeaders)
	}
	if f.Optional.Subsystem != SubsystemWindowsGUI {
		t.Errorf("Subsystem = %v, want WINDOWS_GUI", f.Optional.Subsystem)
	}

	wantNames := []string{".text", ".rdata", ".data", ".rsrc"}
	if len(f.Sections) != len(wantNames) {
		t.Fatalf("len(Sections) = %d, want %d", len(f.Sections), len(wantNames))
	}
	for i, name := range wantNames {
		if f.Sections[i].Name != name {
			t.Errorf("Sections[%d].Name = %q, want %q", i, f.Sections[i].Name, name)
		}
	}
}

// TestSeedPE32PlusHeaderInvariants is the S4 seed scenario's analogue for
// the 64-bit case: a synthetic stand-in for TCMADM64.EXE.
func TestSeedPE32PlusHeaderInvariants(t *testing.T) {
	f, err := Parse(bytesource.New(fixtures.PE32PlusTCMADM64()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !f.Optional.Is64Bit {
		t.Errorf("Is64Bit = false, want true")
	}
	if f.Optional.ImageBase != 0x140000000 {
		t.Errorf("ImageBase = %#x, want 0x140000000", f.Optional.ImageBase)
	}
	if f.Optional.AddressOfEntryPoint != 0x1000+0x66C0 {
		t.Errorf("AddressOfEntryPoint = %#x", f.Optional.AddressOfEntryPoint)
	}
	if f.Coff.NumberOfSections != 5 {
		t.Errorf("NumberOfSections = %d, want 5", f.Coff.NumberOfSections)
	}
	if f.Optional.FileAlignment != 0x200 {
		t.Errorf("FileAlignment = %#x, want 0x200", f.Optional.FileAlignment)
	}

	found := false
	for _, s := range f.Sections {
		if s.Name == ".pdata" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected a .pdata section")
	}
}
