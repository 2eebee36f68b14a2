// Package xbin is the top-level entry point: Open/OpenBytes classify a
// file or buffer and parse it into an ExecutableFile, the sum type of
// spec.md §3 with one variant per supported layout (MZ, NE, PE/PE+,
// LE/LX). Per-format accessors and the shared resource-tree and
// decompression operations are surfaced from there.
package xbin

import (
	"fmt"

	"github.com/provide-io/xbin/pkg/xbin/bytesource"
	"github.com/provide-io/xbin/pkg/xbin/decompress"
	"github.com/provide-io/xbin/pkg/xbin/diag"
	"github.com/provide-io/xbin/pkg/xbin/lefile"
	"github.com/provide-io/xbin/pkg/xbin/mzfile"
	"github.com/provide-io/xbin/pkg/xbin/nefile"
	"github.com/provide-io/xbin/pkg/xbin/pefile"
	"github.com/provide-io/xbin/pkg/xbin/rsrc"
	"github.com/provide-io/xbin/pkg/xbin/sniff"
)

// Format is re-exported from sniff so callers depend on one package for
// the whole open/classify/inspect flow.
type Format = sniff.Format

const (
	Unknown      = sniff.Unknown
	MzDos        = sniff.MzDos
	NeWin16      = sniff.NeWin16
	Pe32         = sniff.Pe32
	Pe32Plus     = sniff.Pe32Plus
	LeDos32Bound = sniff.LeDos32Bound
	LeDos32Raw   = sniff.LeDos32Raw
	LeVxd        = sniff.LeVxd
	LxOs2Bound   = sniff.LxOs2Bound
	LxOs2Raw     = sniff.LxOs2Raw
)

// ExecutableFile is the parsed-file sum type: exactly one of MZ/NE/PE/LE
// is populated, selected by Format. Decompressors are registered by
// blank-importing pkg/xbin/decompress/all (or individual packer
// subpackages) before calling Decompress.
type ExecutableFile struct {
	format Format
	src    *bytesource.Source

	mz *mzfile.File
	ne *nefile.File
	pe *pefile.File
	le *lefile.File
}

// Open reads path read-only and parses it, per spec.md §6: "the library
// opens files read-only; it never writes, renames, or locks them."
func Open(path string) (*ExecutableFile, error) {
	src, err := bytesource.Open(path)
	if err != nil {
		return nil, err
	}
	return openSource(src)
}

// OpenBytes parses an in-memory buffer, the other half of spec.md §6's
// "a file path or an in-memory byte buffer" input.
func OpenBytes(buf []byte) (*ExecutableFile, error) {
	return openSource(bytesource.New(buf))
}

func openSource(src *bytesource.Source) (*ExecutableFile, error) {
	format, err := sniff.Classify(src)
	if err != nil {
		return nil, fmt.Errorf("xbin: %w", err)
	}

	ef := &ExecutableFile{format: format, src: src}
	switch format {
	case sniff.MzDos:
		f, err := mzfile.Parse(src)
		if err != nil {
			return nil, err
		}
		ef.mz = f
	case sniff.NeWin16:
		f, err := nefile.Parse(src)
		if err != nil {
			return nil, err
		}
		ef.ne = f
	case sniff.Pe32, sniff.Pe32Plus:
		f, err := pefile.Parse(src)
		if err != nil {
			return nil, err
		}
		ef.pe = f
	case sniff.LeDos32Bound, sniff.LeDos32Raw, sniff.LeVxd, sniff.LxOs2Bound, sniff.LxOs2Raw:
		f, err := lefile.Parse(src)
		if err != nil {
			return nil, err
		}
		ef.le = f
	default:
		return nil, fmt.Errorf("xbin: unrecognized executable format")
	}
	return ef, nil
}

// Format reports which ExecutableFile variant is populated.
func (e *ExecutableFile) Format() Format { return e.format }

// Source returns the underlying byte source, for callers that need raw
// access beyond the per-format accessors.
func (e *ExecutableFile) Source() *bytesource.Source { return e.src }

// MZ returns the parsed MZ model, when Format() == MzDos.
func (e *ExecutableFile) MZ() (*mzfile.File, bool) { return e.mz, e.mz != nil }

// NE returns the parsed NE model, when Format() == NeWin16.
func (e *ExecutableFile) NE() (*nefile.File, bool) { return e.ne, e.ne != nil }

// PE returns the parsed PE/PE+ model, when Format() is Pe32 or Pe32Plus.
func (e *ExecutableFile) PE() (*pefile.File, bool) { return e.pe, e.pe != nil }

// LE returns the parsed LE/LX model, when Format() is one of the
// LE/LX-family variants.
func (e *ExecutableFile) LE() (*lefile.File, bool) { return e.le, e.le != nil }

// Resources returns the unified resource tree for PE and NE files (§4.I);
// other formats carry no resources and yield an empty, non-nil tree.
func (e *ExecutableFile) Resources(diags *diag.Collector) (*rsrc.Tree, error) {
	switch {
	case e.pe != nil:
		return rsrc.FromPE(e.pe, diags)
	case e.ne != nil:
		return rsrc.FromNE(e.ne, diags)
	default:
		return rsrc.NewTree(), nil
	}
}

// Decompress runs the MZ file's code section through the first matching
// registered DOS packer decompressor, spec.md §6's
// `decompress(mz_file) -> Result<DecompressionResult, DecompressError>`.
// It is only valid when Format() == MzDos.
func (e *ExecutableFile) Decompress() (*decompress.Result, error) {
	if e.mz == nil {
		return nil, fmt.Errorf("xbin: Decompress is only valid for MzDos-format files")
	}
	return e.mz.Decompress()
}

// IsLikelyPacked reports whether the MZ file looks packed, by signature
// match or high code-section entropy (spec.md §4.D). It is only valid
// when Format() == MzDos.
func (e *ExecutableFile) IsLikelyPacked() bool {
	if e.mz == nil {
		return false
	}
	return e.mz.IsLikelyPacked()
}
