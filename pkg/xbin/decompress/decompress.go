// Package decompress defines the shared result type and pluggable
// detector/decoder interface for spec.md §4.K's four DOS packer
// decompressors. The registry is grounded on the teacher's
// operations.Register/Registry pattern (pkg/psp/operations/operation.go),
// repurposed from bidirectional compression "operations" to one-way
// decompression "decompressors": spec.md has no compression (write) path,
// only decompression of already-packed legacy binaries.
package decompress

import (
	"errors"
	"fmt"
)

// ErrDecompressionFailure is the sentinel for spec.md §7's
// DecompressionFailure kind: the decompressor hit a structural error
// (buffer underflow, unknown command, an impossible length) and refuses to
// emit partial garbage.
var ErrDecompressionFailure = errors.New("decompress: decompression failure")

// Fail wraps a formatted reason as an ErrDecompressionFailure.
func Fail(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecompressionFailure, fmt.Sprintf(format, args...))
}

// Relocation is one (segment, offset) pair destined for the rebuilt MZ
// relocation table.
type Relocation struct {
	Segment uint16
	Offset  uint16
}

// Result is spec.md §3's decompression result: decompressed code plus the
// reconstructed MZ header fields and relocation list a caller composes the
// final MZ file from.
type Result struct {
	Code []byte

	InitialCS uint16
	InitialIP uint16
	InitialSS uint16
	InitialSP uint16

	MinExtraParagraphs uint16
	MaxExtraParagraphs uint16
	HeaderParagraphs   uint16
	Checksum           uint16

	Relocations []Relocation
}

// BuildMZ composes a 28-byte MZ header, the relocation table, and the
// decompressed code into a runnable MZ image, for the round-trip property
// of spec.md §8 ("build_mz(r) decompressed again... reproduces r").
func (r *Result) BuildMZ() []byte {
	relocOff := uint16(0x1C)
	relocBytes := len(r.Relocations) * 4
	headerParas := r.HeaderParagraphs
	if headerParas == 0 {
		headerParas = uint16((int(relocOff) + relocBytes + 15) / 16)
	}
	headerLen := int(headerParas) * 16

	totalLen := headerLen + len(r.Code)
	pages := (totalLen + 511) / 512
	lastPageBytes := totalLen % 512

	buf := make([]byte, headerLen)
	buf[0], buf[1] = 'M', 'Z'
	putU16(buf, 0x02, uint16(lastPageBytes))
	putU16(buf, 0x04, uint16(pages))
	putU16(buf, 0x06, uint16(len(r.Relocations)))
	putU16(buf, 0x08, headerParas)
	putU16(buf, 0x0A, r.MinExtraParagraphs)
	putU16(buf, 0x0C, r.MaxExtraParagraphs)
	putU16(buf, 0x0E, r.InitialSS)
	putU16(buf, 0x10, r.InitialSP)
	putU16(buf, 0x12, r.Checksum)
	putU16(buf, 0x14, r.InitialIP)
	putU16(buf, 0x16, r.InitialCS)
	putU16(buf, 0x18, relocOff)

	for i, rel := range r.Relocations {
		o := int(relocOff) + i*4
		if o+4 > len(buf) {
			break
		}
		putU16(buf, o, rel.Offset)
		putU16(buf, o+2, rel.Segment)
	}

	out := make([]byte, 0, len(buf)+len(r.Code))
	out = append(out, buf...)
	out = append(out, r.Code...)
	return out
}

func putU16(buf []byte, off int, v uint16) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
}

// Decompressor is one packer family's detector + decoder pair.
type Decompressor interface {
	// ID is a short stable identifier, e.g. "lzexe091".
	ID() string
	// Name is the human-readable packer/variant name.
	Name() string
	// Detect inspects buf (a whole MZ file, code section included) and
	// reports whether this decompressor recognizes it, along with any
	// variant-specific parameters it recovered during detection.
	Detect(buf []byte) (params any, ok bool)
	// Decompress decompresses buf using the parameters Detect returned.
	Decompress(buf []byte, params any) (*Result, error)
}

// Registry lists every Decompressor a side-effect import has registered.
var Registry []Decompressor

// Register adds d to the Registry. Subpackages (pklite, lzexe, exepack,
// kdlzw, diet) call this from an init() func, mirroring the teacher's
// operations.Register pattern.
func Register(d Decompressor) {
	Registry = append(Registry, d)
}

// Detect tries every registered Decompressor against buf in registration
// order and returns the first match.
func Detect(buf []byte) (Decompressor, any, bool) {
	for _, d := range Registry {
		if params, ok := d.Detect(buf); ok {
			return d, params, true
		}
	}
	return nil, nil, false
}
