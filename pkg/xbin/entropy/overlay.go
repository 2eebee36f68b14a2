package entropy

// SectionExtent is the minimal shape overlay detection needs from a
// section/segment: where its raw data ends on disk.
type SectionExtent struct {
	RawOffset uint64
	RawSize   uint64
}

// Overlay reports the bytes in file beyond the last section's raw data
// (spec.md §4.L: "end-of-image = max(section.raw_offset_aligned +
// section.raw_size) across all sections"), along with its Shannon
// entropy. ok is false when there is no overlay (end-of-image >= file
// length).
type Overlay struct {
	Offset  int64
	Size    int64
	Entropy float64
}

// DetectOverlay computes the overlay region of file given its sections.
func DetectOverlay(file []byte, sections []SectionExtent) (Overlay, bool) {
	var endOfImage uint64
	for _, s := range sections {
		end := s.RawOffset + s.RawSize
		if end > endOfImage {
			endOfImage = end
		}
	}
	if endOfImage >= uint64(len(file)) {
		return Overlay{}, false
	}
	data := file[endOfImage:]
	return Overlay{
		Offset:  int64(endOfImage),
		Size:    int64(len(data)),
		Entropy: Shannon(data),
	}, true
}
