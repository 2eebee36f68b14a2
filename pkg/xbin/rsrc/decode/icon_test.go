package decode

import "testing"

// buildIconImageFixture builds an 8x4, 8bpp icon image: 40-byte
// BITMAPINFOHEADER (height doubled to 8 to cover XOR+AND), 256-entry
// palette (only the first two entries populated meaningfully), an XOR
// bitmap, and an AND mask.
func buildIconImageFixture() []byte {
	const width, effHeight, bpp = 8, 4, 8
	xorStride := ((width*bpp + 31) / 32) * 4 // 8
	andStride := ((width + 31) / 32) * 4     // 4
	paletteCount := 1 << bpp

	total := 40 + paletteCount*4 + xorStride*effHeight + andStride*effHeight
	buf := make([]byte, total)

	putU32(buf, 0, 40)               // header size
	putU32(buf, 4, width)             // width
	putU32(buf, 8, uint32(effHeight*2)) // height (doubled)
	putU16(buf, 12, 1)                // planes
	putU16(buf, 14, bpp)               // bit count
	putU32(buf, 16, 0)                 // compression
	putU32(buf, 32, 0)                 // colors used -> defaults to 1<<bpp

	pos := 40
	// Palette entry 0: black; entry 1: white.
	buf[pos+4+0], buf[pos+4+1], buf[pos+4+2] = 0xFF, 0xFF, 0xFF // entry 1 = white (B,G,R)
	pos += paletteCount * 4

	// XOR bitmap: every pixel in image row 0 indexes palette entry 1
	// (white). DIB rows are stored bottom-up, so the last stored row is the
	// image's top row.
	topRow := pos + xorStride*(effHeight-1)
	for i := 0; i < xorStride; i++ {
		buf[topRow+i] = 1
	}
	pos += xorStride * effHeight

	// AND mask: all zero (fully opaque).
	_ = pos

	return buf
}

func TestDecodeIconImage(t *testing.T) {
	buf := buildIconImageFixture()
	img, ok := DecodeIconImage(buf)
	if !ok {
		t.Fatalf("DecodeIconImage failed")
	}
	if img.Width != 8 {
		t.Errorf("Width = %d, want 8", img.Width)
	}
	if img.Height != 4 {
		t.Errorf("Height = %d, want 4 (effective, header.Height/2)", img.Height)
	}
	if len(img.Palette) != 256 {
		t.Errorf("len(Palette) = %d, want 256", len(img.Palette))
	}
	if img.Palette[1].Red != 0xFF || img.Palette[1].Green != 0xFF || img.Palette[1].Blue != 0xFF {
		t.Errorf("Palette[1] = %+v, want white", img.Palette[1])
	}
	if img.XORStride != 8 {
		t.Errorf("XORStride = %d, want 8", img.XORStride)
	}
	if img.ANDStride != 4 {
		t.Errorf("ANDStride = %d, want 4", img.ANDStride)
	}
	if len(img.XORMask) != img.XORStride*img.Height {
		t.Errorf("len(XORMask) = %d, want %d", len(img.XORMask), img.XORStride*img.Height)
	}
	if len(img.ANDMask) != img.ANDStride*img.Height {
		t.Errorf("len(ANDMask) = %d, want %d", len(img.ANDMask), img.ANDStride*img.Height)
	}
}

func TestDecodeIconImageRejectsZeroDimensions(t *testing.T) {
	buf := make([]byte, 40)
	putU32(buf, 0, 40)
	if _, ok := DecodeIconImage(buf); ok {
		t.Errorf("expected decode to fail for zero width/height")
	}
}
