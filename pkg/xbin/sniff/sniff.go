// Package sniff implements the format classifier of spec.md §4.C:
// identify a buffer's executable format by signature chain, never by
// filename or extension.
package sniff

import (
	"errors"

	"github.com/provide-io/xbin/pkg/xbin/bytesource"
)

// Format is the sum type of spec.md §3: one variant per supported layout.
type Format int

const (
	Unknown Format = iota
	MzDos
	NeWin16
	Pe32
	Pe32Plus
	LeDos32Bound
	LeDos32Raw
	LeVxd
	LxOs2Bound
	LxOs2Raw
)

func (f Format) String() string {
	switch f {
	case MzDos:
		return "MzDos"
	case NeWin16:
		return "NeWin16"
	case Pe32:
		return "Pe32"
	case Pe32Plus:
		return "Pe32Plus"
	case LeDos32Bound:
		return "LeDos32Bound"
	case LeDos32Raw:
		return "LeDos32Raw"
	case LeVxd:
		return "LeVxd"
	case LxOs2Bound:
		return "LxOs2Bound"
	case LxOs2Raw:
		return "LxOs2Raw"
	default:
		return "Unknown"
	}
}

// ErrTooSmall is returned when the buffer is too short to carry even a
// two-byte magic.
var ErrTooSmall = errors.New("sniff: buffer too small")

// Classify implements spec.md §4.C's rule chain.
func Classify(src *bytesource.Source) (Format, error) {
	if src.Len() < 2 {
		return Unknown, ErrTooSmall
	}

	b0, _ := src.U8(0)
	b1, _ := src.U8(1)

	if (b0 == 'M' && b1 == 'Z') || (b0 == 'Z' && b1 == 'M') {
		return classifyMZChain(src)
	}

	// Raw LE/LX headers without an MZ stub.
	if b0 == 'L' && b1 == 'E' {
		return LeDos32Raw, nil
	}
	if b0 == 'L' && b1 == 'X' {
		return LxOs2Raw, nil
	}

	return Unknown, nil
}

func classifyMZChain(src *bytesource.Source) (Format, error) {
	if src.Len() < 0x40 {
		return MzDos, nil
	}
	lfanew, err := src.U32LE(0x3C)
	if err != nil {
		return MzDos, nil
	}
	if lfanew == 0 || int64(lfanew) >= int64(src.Len()) {
		return MzDos, nil
	}

	sig, err := src.Slice(int64(lfanew), 2)
	if err != nil {
		return MzDos, nil
	}

	switch {
	case sig[0] == 'N' && sig[1] == 'E':
		return NeWin16, nil

	case string(sig) == "PE":
		sig4, err := src.Slice(int64(lfanew), 4)
		if err != nil || sig4[2] != 0 || sig4[3] != 0 {
			return MzDos, nil
		}
		magic, err := src.U16LE(int64(lfanew) + 0x18)
		if err != nil {
			return Unknown, nil
		}
		switch magic {
		case 0x10B:
			return Pe32, nil
		case 0x20B:
			return Pe32Plus, nil
		default:
			return Unknown, nil
		}

	case sig[0] == 'L' && sig[1] == 'E':
		targetOS, err := src.U8(int64(lfanew) + 0x0A)
		if err != nil {
			return LeDos32Bound, nil
		}
		switch targetOS {
		case 0x01:
			return LxOs2Bound, nil
		case 0x02:
			return LeVxd, nil
		case 0x03:
			return LeDos32Bound, nil
		default:
			return LeDos32Bound, nil
		}

	case sig[0] == 'L' && sig[1] == 'X':
		return LxOs2Bound, nil

	default:
		return MzDos, nil
	}
}
