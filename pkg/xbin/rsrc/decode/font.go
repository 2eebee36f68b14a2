package decode

import "github.com/provide-io/xbin/pkg/xbin/bytesource"

// Font type bit, per spec.md §4.J: bit 0 of dfType set means a vector
// (stroke) font, clear means raster (bitmap).
const fontTypeVector uint16 = 0x0001

// FontHeader mirrors the Windows 2.x/3.x FNT resource header fields this
// package interprets. Fields beyond dfReserved (version-0x300 color and
// spacing extensions) are not decoded.
type FontHeader struct {
	Version          uint16
	Size             uint32
	Copyright        string
	Type             uint16
	Points           uint16
	VertRes          uint16
	HorizRes         uint16
	Ascent           uint16
	InternalLeading  uint16
	ExternalLeading  uint16
	Italic           uint8
	Underline        uint8
	StrikeOut        uint8
	Weight           uint16
	CharSet          uint8
	PixWidth         uint16
	PixHeight        uint16
	PitchAndFamily   uint8
	AvgWidth         uint16
	MaxWidth         uint16
	FirstChar        uint8
	LastChar         uint8
	DefaultChar      uint8
	BreakChar        uint8
	WidthBytes       uint16
	FaceOffset       uint32
	BitsPointer      uint32
	BitsOffset       uint32
}

// CharEntry is one glyph's table entry. For a raster font, Offset is a
// byte offset (from the start of the resource) to a column-major bitmap;
// for a vector font it is an offset into the stroke data.
type CharEntry struct {
	Width  uint16
	Offset uint32
}

// Font is a decoded Windows bitmap/vector font resource.
type Font struct {
	Header   FontHeader
	IsVector bool
	Chars    []CharEntry
}

// DecodeFont parses an RT_FONT leaf's bytes.
func DecodeFont(data []byte) (Font, bool) {
	src := bytesource.New(data)

	version, err := src.U16LE(0)
	if err != nil || (version != 0x0200 && version != 0x0300) {
		return Font{}, false
	}
	size, err := src.U32LE(2)
	if err != nil {
		return Font{}, false
	}
	copyrightRaw, err := src.Slice(6, 60)
	if err != nil {
		return Font{}, false
	}
	typ, err := src.U16LE(66)
	if err != nil {
		return Font{}, false
	}
	points, err := src.U16LE(68)
	if err != nil {
		return Font{}, false
	}
	vertRes, err := src.U16LE(70)
	if err != nil {
		return Font{}, false
	}
	horizRes, err := src.U16LE(72)
	if err != nil {
		return Font{}, false
	}
	ascent, err := src.U16LE(74)
	if err != nil {
		return Font{}, false
	}
	internalLeading, err := src.U16LE(76)
	if err != nil {
		return Font{}, false
	}
	externalLeading, err := src.U16LE(78)
	if err != nil {
		return Font{}, false
	}
	italic, err := src.U8(80)
	if err != nil {
		return Font{}, false
	}
	underline, err := src.U8(81)
	if err != nil {
		return Font{}, false
	}
	strikeOut, err := src.U8(82)
	if err != nil {
		return Font{}, false
	}
	weight, err := src.U16LE(83)
	if err != nil {
		return Font{}, false
	}
	charSet, err := src.U8(85)
	if err != nil {
		return Font{}, false
	}
	pixWidth, err := src.U16LE(86)
	if err != nil {
		return Font{}, false
	}
	pixHeight, err := src.U16LE(88)
	if err != nil {
		return Font{}, false
	}
	pitchAndFamily, err := src.U8(90)
	if err != nil {
		return Font{}, false
	}
	avgWidth, err := src.U16LE(91)
	if err != nil {
		return Font{}, false
	}
	maxWidth, err := src.U16LE(93)
	if err != nil {
		return Font{}, false
	}
	firstChar, err := src.U8(95)
	if err != nil {
		return Font{}, false
	}
	lastChar, err := src.U8(96)
	if err != nil {
		return Font{}, false
	}
	defaultChar, err := src.U8(97)
	if err != nil {
		return Font{}, false
	}
	breakChar, err := src.U8(98)
	if err != nil {
		return Font{}, false
	}
	widthBytes, err := src.U16LE(99)
	if err != nil {
		return Font{}, false
	}
	faceOffset, err := src.U32LE(105)
	if err != nil {
		return Font{}, false
	}
	bitsPointer, err := src.U32LE(109)
	if err != nil {
		return Font{}, false
	}
	bitsOffset, err := src.U32LE(113)
	if err != nil {
		return Font{}, false
	}

	header := FontHeader{
		Version: version, Size: size, Copyright: string(copyrightRaw),
		Type: typ, Points: points, VertRes: vertRes, HorizRes: horizRes,
		Ascent: ascent, InternalLeading: internalLeading, ExternalLeading: externalLeading,
		Italic: italic, Underline: underline, StrikeOut: strikeOut, Weight: weight,
		CharSet: charSet, PixWidth: pixWidth, PixHeight: pixHeight,
		PitchAndFamily: pitchAndFamily, AvgWidth: avgWidth, MaxWidth: maxWidth,
		FirstChar: firstChar, LastChar: lastChar, DefaultChar: defaultChar, BreakChar: breakChar,
		WidthBytes: widthBytes, FaceOffset: faceOffset, BitsPointer: bitsPointer, BitsOffset: bitsOffset,
	}

	// The char table starts at byte 118 for both header versions this
	// package parses (the 0x300 spacing/color extensions that would push
	// it further are not decoded). It holds one (width, offset) entry per
	// glyph from FirstChar to LastChar inclusive, plus a trailing sentinel
	// entry for the "absolute space" glyph.
	entryCount := int(lastChar) - int(firstChar) + 2
	if entryCount < 1 {
		return Font{}, false
	}
	isVector := typ&fontTypeVector != 0

	// Both raster and vector char-table entries are a (width, offset)
	// u16 pair; only how Offset is interpreted downstream differs.
	const entrySize = int64(4)

	chars := make([]CharEntry, 0, entryCount)
	pos := int64(118)
	for i := 0; i < entryCount; i++ {
		width, err := src.U16LE(pos)
		if err != nil {
			break
		}
		offset, err := src.U16LE(pos + 2)
		if err != nil {
			break
		}
		chars = append(chars, CharEntry{Width: width, Offset: uint32(offset)})
		pos += entrySize
	}

	return Font{Header: header, IsVector: isVector, Chars: chars}, true
}
