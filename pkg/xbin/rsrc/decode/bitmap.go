package decode

import "github.com/provide-io/xbin/pkg/xbin/bytesource"

// Compression mirrors the DIB BI_* compression constants spec.md §4.J
// names as valid for RT_BITMAP: "compression ∈ {RGB, RLE8, RLE4, BITFIELDS}."
type Compression uint32

const (
	CompressionRGB       Compression = 0
	CompressionRLE8      Compression = 1
	CompressionRLE4      Compression = 2
	CompressionBitfields Compression = 3
)

// RGBTriple is one BITMAPCOREHEADER (OS/2 1.x) palette entry: 3 bytes, no
// reserved byte, unlike BITMAPINFOHEADER's RGBQuad.
type RGBTriple struct {
	Blue, Green, Red byte
}

// Bitmap is a decoded RT_BITMAP resource: either a BITMAPINFOHEADER (40
// bytes) or a BITMAPCOREHEADER (12 bytes, OS/2 1.x) followed by a palette
// and pixel data.
type Bitmap struct {
	IsCore      bool
	Width       int
	Height      int
	Planes      uint16
	BitCount    uint16
	Compression Compression
	Palette     []RGBQuad   // populated when !IsCore
	CorePalette []RGBTriple // populated when IsCore
	Pixels      []byte
}

// DecodeBitmap parses an RT_BITMAP leaf's bytes.
func DecodeBitmap(data []byte) (Bitmap, bool) {
	src := bytesource.New(data)
	size, err := src.U32LE(0)
	if err != nil {
		return Bitmap{}, false
	}

	switch {
	case size == 12:
		return decodeCoreBitmap(src, data)
	case size >= 40:
		return decodeInfoBitmap(src, data, size)
	default:
		return Bitmap{}, false
	}
}

func decodeCoreBitmap(src *bytesource.Source, data []byte) (Bitmap, bool) {
	hdr, err := src.Slice(0, 12)
	if err != nil {
		return Bitmap{}, false
	}
	width := int(u16le(hdr, 4))
	height := int(u16le(hdr, 6))
	planes := u16le(hdr, 8)
	bitCount := u16le(hdr, 10)

	paletteCount := 0
	if bitCount <= 8 {
		paletteCount = 1 << bitCount
	}
	pos := int64(12)
	var palette []RGBTriple
	if paletteCount > 0 {
		raw, err := src.Slice(pos, int64(paletteCount)*3)
		if err != nil {
			return Bitmap{}, false
		}
		palette = make([]RGBTriple, paletteCount)
		for i := 0; i < paletteCount; i++ {
			palette[i] = RGBTriple{Blue: raw[i*3], Green: raw[i*3+1], Red: raw[i*3+2]}
		}
		pos += int64(paletteCount) * 3
	}

	pixels := data[minInt(int(pos), len(data)):]
	return Bitmap{
		IsCore:      true,
		Width:       width,
		Height:      height,
		Planes:      planes,
		BitCount:    bitCount,
		Compression: CompressionRGB,
		CorePalette: palette,
		Pixels:      pixels,
	}, true
}

func decodeInfoBitmap(src *bytesource.Source, data []byte, headerSize uint32) (Bitmap, bool) {
	hdr, err := src.Slice(0, 40)
	if err != nil {
		return Bitmap{}, false
	}
	width := int(int32(u32le(hdr, 4)))
	height := int(int32(u32le(hdr, 8)))
	if height < 0 {
		height = -height // top-down DIB; orientation is the caller's concern
	}
	planes := u16le(hdr, 12)
	bitCount := u16le(hdr, 14)
	compression := Compression(u32le(hdr, 16))
	colorsUsed := u32le(hdr, 32)

	paletteCount := int(colorsUsed)
	if paletteCount == 0 && bitCount <= 8 {
		paletteCount = 1 << bitCount
	}

	pos := int64(headerSize)
	var palette []RGBQuad
	if paletteCount > 0 && compression != CompressionBitfields {
		raw, err := src.Slice(pos, int64(paletteCount)*4)
		if err != nil {
			return Bitmap{}, false
		}
		palette = make([]RGBQuad, paletteCount)
		for i := 0; i < paletteCount; i++ {
			palette[i] = RGBQuad{Blue: raw[i*4], Green: raw[i*4+1], Red: raw[i*4+2], Reserved: raw[i*4+3]}
		}
		pos += int64(paletteCount) * 4
	} else if compression == CompressionBitfields {
		pos += 12 // three DWORD color masks
	}

	pixels := data[minInt(int(pos), len(data)):]
	return Bitmap{
		Width:       width,
		Height:      height,
		Planes:      planes,
		BitCount:    bitCount,
		Compression: compression,
		Palette:     palette,
		Pixels:      pixels,
	}, true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
