package decode

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"

	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"
)

// toImage renders a decoded IconImage into a standard library image.Image,
// honoring the AND mask as alpha (a masked-out pixel is fully transparent).
//
// The XOR (color) plane is a standard uncompressed DIB once split from its
// AND mask, so it is re-wrapped as a minimal standalone BMP file and
// decoded through the ecosystem bmp package rather than re-deriving
// RGB/paletted pixel unpacking by hand; only the AND-mask bit test (an
// icon-specific concept bmp.Decode knows nothing about) and the 32bpp
// fallback below stay hand-rolled.
func (img IconImage) toImage() image.Image {
	base, err := bmp.Decode(bytes.NewReader(img.xorBMPBytes()))
	if err != nil {
		return img.toImageManual()
	}

	bounds := base.Bounds()
	rgba := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		// bmp.Decode already flips to top-down row order; the AND mask is
		// still addressed in on-disk (bottom-up) order, so mirror y back.
		srcRow := bounds.Max.Y - 1 - y
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := base.At(x, y).RGBA()
			c := color.NRGBA{R: byte(r >> 8), G: byte(g >> 8), B: byte(b >> 8), A: byte(a >> 8)}
			if img.maskBit(srcRow, x) {
				c.A = 0
			}
			rgba.SetNRGBA(x, y, c)
		}
	}
	return rgba
}

// xorBMPBytes wraps the XOR plane alone (BitmapInfoHeader.Height replaced
// with the halved, effective height) in a 14-byte BITMAPFILEHEADER so it
// reads as an ordinary standalone .bmp file.
func (img IconImage) xorBMPBytes() []byte {
	infoHdr := img.Header
	infoHdr.Height = int32(img.Height)

	ihBytes := encodeBitmapInfoHeader(infoHdr)
	paletteBytes := encodeRGBQuadPalette(img.Palette)
	offBits := uint32(14 + len(ihBytes) + len(paletteBytes))

	var buf bytes.Buffer
	buf.WriteByte('B')
	buf.WriteByte('M')
	binary.Write(&buf, binary.LittleEndian, offBits+uint32(len(img.XORMask)))
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, offBits)
	buf.Write(ihBytes)
	buf.Write(paletteBytes)
	buf.Write(img.XORMask)
	return buf.Bytes()
}

// toImageManual is the bit-exact hand decoder kept as a fallback for bit
// depths (namely 32bpp-with-alpha) bmp.Decode does not accept from a plain
// BITMAPINFOHEADER stream.
func (img IconImage) toImageManual() image.Image {
	rgba := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		// DIB rows are stored bottom-up.
		srcRow := img.Height - 1 - y
		for x := 0; x < img.Width; x++ {
			c := img.pixelAt(srcRow, x)
			masked := img.maskBit(srcRow, x)
			if masked {
				c.A = 0
			}
			rgba.SetNRGBA(x, y, c)
		}
	}
	return rgba
}

func (img IconImage) pixelAt(row, col int) color.NRGBA {
	switch img.Header.BitCount {
	case 32:
		off := row*img.XORStride + col*4
		if off+4 > len(img.XORMask) {
			return color.NRGBA{}
		}
		b, g, r, a := img.XORMask[off], img.XORMask[off+1], img.XORMask[off+2], img.XORMask[off+3]
		return color.NRGBA{R: r, G: g, B: b, A: a}
	case 24:
		off := row*img.XORStride + col*3
		if off+3 > len(img.XORMask) {
			return color.NRGBA{}
		}
		b, g, r := img.XORMask[off], img.XORMask[off+1], img.XORMask[off+2]
		return color.NRGBA{R: r, G: g, B: b, A: 255}
	case 8:
		off := row*img.XORStride + col
		if off >= len(img.XORMask) {
			return color.NRGBA{}
		}
		idx := int(img.XORMask[off])
		if idx >= len(img.Palette) {
			return color.NRGBA{}
		}
		p := img.Palette[idx]
		return color.NRGBA{R: p.Red, G: p.Green, B: p.Blue, A: 255}
	case 4:
		byteOff := row*img.XORStride + col/2
		if byteOff >= len(img.XORMask) {
			return color.NRGBA{}
		}
		b := img.XORMask[byteOff]
		var idx int
		if col%2 == 0 {
			idx = int(b >> 4)
		} else {
			idx = int(b & 0x0F)
		}
		if idx >= len(img.Palette) {
			return color.NRGBA{}
		}
		p := img.Palette[idx]
		return color.NRGBA{R: p.Red, G: p.Green, B: p.Blue, A: 255}
	case 1:
		byteOff := row*img.XORStride + col/8
		if byteOff >= len(img.XORMask) {
			return color.NRGBA{}
		}
		bit := 7 - uint(col%8)
		idx := int((img.XORMask[byteOff] >> bit) & 0x1)
		if idx >= len(img.Palette) {
			return color.NRGBA{}
		}
		p := img.Palette[idx]
		return color.NRGBA{R: p.Red, G: p.Green, B: p.Blue, A: 255}
	default:
		return color.NRGBA{}
	}
}

func (img IconImage) maskBit(row, col int) bool {
	byteOff := row*img.ANDStride + col/8
	if byteOff >= len(img.ANDMask) {
		return false
	}
	bit := 7 - uint(col%8)
	return (img.ANDMask[byteOff]>>bit)&0x1 != 0
}

// NormalizeIconSet resizes every image in a decoded icon group to each of
// the requested square dimensions, producing a complete size ladder (the
// Windows icon-cache convention of always shipping 16/32/48/256 variants)
// from whatever subset of sizes the source module actually embedded.
// Resizing uses Lanczos3, matching the quality nfnt/resize documents for
// downscaling photographic or anti-aliased glyph art.
func NormalizeIconSet(images []IconImage, sizes []int) []image.Image {
	if len(images) == 0 {
		return nil
	}

	// Prefer the largest available source image as the resampling base.
	largest := images[0]
	for _, img := range images[1:] {
		if img.Width > largest.Width {
			largest = img
		}
	}
	base := largest.toImage()

	out := make([]image.Image, 0, len(sizes))
	for _, size := range sizes {
		if size == largest.Width {
			out = append(out, base)
			continue
		}
		out = append(out, resize.Resize(uint(size), uint(size), base, resize.Lanczos3))
	}
	return out
}
