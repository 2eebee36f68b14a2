// Package rva implements the RVA/VA resolver of spec.md §4.B: the single
// place that knows how to map a relative virtual address to a file offset
// (and the low-file-alignment floor-rounding quirk that implies), given a
// section table. No directory decoder in pkg/xbin/pefile reimplements this
// lookup - each holds a *Resolver value built once from the section list.
package rva

// Section is the minimal section shape the resolver needs. pefile converts
// its own section table into this shape (sectionsForResolver in
// pefile.go).
type Section struct {
	Name             string
	VirtualAddress   uint32
	VirtualSize      uint32
	RawOffset        uint32
	RawSize          uint32
	Characteristics  uint32
	FileAlignment    uint32
}

// EffectiveRawOffset applies spec.md §4.B's low-file-alignment rounding
// rule: when FileAlignment <= 0x200, the file offset actually used by the
// loader is RawOffset floored to a FileAlignment boundary, not RawOffset
// itself.
func (s Section) EffectiveRawOffset() uint32 {
	if s.FileAlignment != 0 && s.FileAlignment <= 0x200 {
		return (s.RawOffset / s.FileAlignment) * s.FileAlignment
	}
	return s.RawOffset
}

// Resolver maps RVAs and VAs over a fixed section table.
type Resolver struct {
	sections []Section
}

// NewResolver builds a Resolver over the given sections. The slice is
// retained, not copied; callers must not mutate it afterward.
func NewResolver(sections []Section) *Resolver {
	return &Resolver{sections: sections}
}

// SectionOfRVA returns the first section whose virtual range contains rva,
// or false if none does.
func (r *Resolver) SectionOfRVA(rva uint32) (Section, bool) {
	for _, s := range r.sections {
		if rva >= s.VirtualAddress && uint64(rva) < uint64(s.VirtualAddress)+uint64(s.VirtualSize) {
			return s, true
		}
	}
	return Section{}, false
}

// RVAToOffset converts rva to a file offset, or false if rva is not backed
// by any section's raw data.
func (r *Resolver) RVAToOffset(rva uint32) (uint64, bool) {
	s, ok := r.SectionOfRVA(rva)
	if !ok {
		return 0, false
	}
	delta := uint64(rva) - uint64(s.VirtualAddress)
	eff := uint64(s.EffectiveRawOffset())
	if delta >= uint64(s.RawSize) {
		return 0, false
	}
	return eff + delta, true
}

// VAToRVA converts a virtual address to an RVA given the image base,
// returning false when va is below imageBase or 4 GiB or more above it
// (spec.md §4.B).
func VAToRVA(va uint64, imageBase uint64) (uint32, bool) {
	if va < imageBase {
		return 0, false
	}
	delta := va - imageBase
	if delta >= 1<<32 {
		return 0, false
	}
	return uint32(delta), true
}
