package decode

import "github.com/provide-io/xbin/pkg/xbin/bytesource"

// BitmapInfoHeader mirrors BITMAPINFOHEADER, the 40-byte DIB header every
// RT_ICON, RT_CURSOR, and RT_BITMAP resource opens with.
type BitmapInfoHeader struct {
	Size            uint32
	Width           int32
	Height          int32
	Planes          uint16
	BitCount        uint16
	Compression     uint32
	SizeImage       uint32
	XPelsPerMeter   int32
	YPelsPerMeter   int32
	ColorsUsed      uint32
	ColorsImportant uint32
}

// RGBQuad is one BITMAPINFOHEADER palette entry (4 bytes: B, G, R, reserved).
type RGBQuad struct {
	Blue, Green, Red, Reserved byte
}

// IconImage is a decoded RT_ICON/RT_CURSOR resource: a BITMAPINFOHEADER
// whose Height field covers both the XOR (color) and AND (mask) bitmaps
// stacked together, per spec.md §4.J: "Effective height is
// header.height / 2."
type IconImage struct {
	Header    BitmapInfoHeader
	Palette   []RGBQuad
	XORMask   []byte
	ANDMask   []byte
	Width     int
	Height    int // effective height, header.Height / 2
	XORStride int
	ANDStride int
}

// DecodeIconImage parses an RT_ICON or RT_CURSOR leaf's bytes.
func DecodeIconImage(data []byte) (IconImage, bool) {
	src := bytesource.New(data)
	hdrBytes, err := src.Slice(0, 40)
	if err != nil {
		return IconImage{}, false
	}
	h := BitmapInfoHeader{
		Size:            u32le(hdrBytes, 0),
		Width:           int32(u32le(hdrBytes, 4)),
		Height:          int32(u32le(hdrBytes, 8)),
		Planes:          u16le(hdrBytes, 12),
		BitCount:        u16le(hdrBytes, 14),
		Compression:     u32le(hdrBytes, 16),
		SizeImage:       u32le(hdrBytes, 20),
		XPelsPerMeter:   int32(u32le(hdrBytes, 24)),
		YPelsPerMeter:   int32(u32le(hdrBytes, 28)),
		ColorsUsed:      u32le(hdrBytes, 32),
		ColorsImportant: u32le(hdrBytes, 36),
	}
	if h.Width <= 0 || h.Height <= 0 {
		return IconImage{}, false
	}

	width := int(h.Width)
	effectiveHeight := int(h.Height) / 2
	if effectiveHeight <= 0 {
		return IconImage{}, false
	}

	paletteCount := int(h.ColorsUsed)
	if paletteCount == 0 && h.BitCount <= 8 {
		paletteCount = 1 << h.BitCount
	}

	pos := int64(40)
	var palette []RGBQuad
	if paletteCount > 0 {
		raw, err := src.Slice(pos, int64(paletteCount)*4)
		if err != nil {
			return IconImage{}, false
		}
		palette = make([]RGBQuad, paletteCount)
		for i := 0; i < paletteCount; i++ {
			palette[i] = RGBQuad{Blue: raw[i*4], Green: raw[i*4+1], Red: raw[i*4+2], Reserved: raw[i*4+3]}
		}
		pos += int64(paletteCount) * 4
	}

	xorStride := ((width*int(h.BitCount) + 31) / 32) * 4
	andStride := ((width + 31) / 32) * 4

	xorMask, err := src.Slice(pos, int64(xorStride)*int64(effectiveHeight))
	if err != nil {
		return IconImage{}, false
	}
	pos += int64(xorStride) * int64(effectiveHeight)

	andMask, err := src.Slice(pos, int64(andStride)*int64(effectiveHeight))
	if err != nil {
		return IconImage{}, false
	}

	return IconImage{
		Header:    h,
		Palette:   palette,
		XORMask:   xorMask,
		ANDMask:   andMask,
		Width:     width,
		Height:    effectiveHeight,
		XORStride: xorStride,
		ANDStride: andStride,
	}, true
}
