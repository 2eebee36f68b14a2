// Package decode implements the per-resource-type decoders of spec.md
// §4.J: icon/cursor groups, icon images, bitmaps, menus, dialogs, string
// tables, accelerator tables, version info, message tables, and Windows
// 2.x/3.x fonts. Every decoder takes a raw resource byte slice and
// returns (value, false) on parse failure rather than erroring, per
// spec.md §4.J: "decoders never throw to callers."
//
// No original_source file documents any of these formats - pe_file.hpp
// and the rest of the retrieval pack never go past the raw (data_rva,
// size, codepage) leaf - so every byte layout here is grounded on
// spec.md §4.J's prose (itself summarizing the standard documented
// Windows resource formats) plus, where noted per-decoder,
// other_examples/2583885a_saferwall-pe__version.go.go for the version-
// resource walk.
package decode

import "github.com/provide-io/xbin/pkg/xbin/bytesource"

// dwordAlign rounds n up to the next multiple of 4, the alignment every
// variable-length resource segment in this package uses between fields.
func dwordAlign(n int) int {
	return (n + 3) &^ 3
}
