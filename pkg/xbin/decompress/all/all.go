// Package all registers every decompressor subpackage with
// pkg/xbin/decompress's shared registry via blank import side effects,
// mirroring the teacher's operations-package wiring pattern. Importing
// this package (instead of the individual packer subpackages) is the
// usual way to enable decompress.Detect across the full packer suite.
package all

import (
	_ "github.com/provide-io/xbin/pkg/xbin/decompress/diet"
	_ "github.com/provide-io/xbin/pkg/xbin/decompress/exepack"
	_ "github.com/provide-io/xbin/pkg/xbin/decompress/kdlzw"
	_ "github.com/provide-io/xbin/pkg/xbin/decompress/lzexe"
	_ "github.com/provide-io/xbin/pkg/xbin/decompress/pklite"
)
