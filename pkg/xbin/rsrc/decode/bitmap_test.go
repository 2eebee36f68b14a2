package decode

import "testing"

func TestDecodeBitmapInfoHeaderRGB(t *testing.T) {
	const width, height, bpp = 4, 2, 8
	paletteCount := 1 << bpp
	pixelBytes := width * height // 1 byte per pixel at 8bpp, no row padding needed here
	buf := make([]byte, 40+paletteCount*4+pixelBytes)

	putU32(buf, 0, 40)
	putU32(buf, 4, width)
	putU32(buf, 8, height)
	putU16(buf, 12, 1)
	putU16(buf, 14, bpp)
	putU32(buf, 16, uint32(CompressionRGB))
	putU32(buf, 32, 0) // colorsUsed=0 -> defaults to 256

	// Mark palette entry 5 distinctly so we can check it round-trips.
	pOff := 40 + 5*4
	buf[pOff], buf[pOff+1], buf[pOff+2] = 10, 20, 30

	bmp, ok := DecodeBitmap(buf)
	if !ok {
		t.Fatalf("DecodeBitmap failed")
	}
	if bmp.IsCore {
		t.Errorf("IsCore = true, want false")
	}
	if bmp.Width != width || bmp.Height != height {
		t.Errorf("dims = %dx%d, want %dx%d", bmp.Width, bmp.Height, width, height)
	}
	if len(bmp.Palette) != paletteCount {
		t.Fatalf("len(Palette) = %d, want %d", len(bmp.Palette), paletteCount)
	}
	if bmp.Palette[5].Blue != 10 || bmp.Palette[5].Green != 20 || bmp.Palette[5].Red != 30 {
		t.Errorf("Palette[5] = %+v, want {10 20 30 0}", bmp.Palette[5])
	}
	if len(bmp.Pixels) != pixelBytes {
		t.Errorf("len(Pixels) = %d, want %d", len(bmp.Pixels), pixelBytes)
	}
}

func TestDecodeBitmapCoreHeader(t *testing.T) {
	const width, height, bpp = 2, 2, 24
	buf := make([]byte, 12+width*height*3)
	putU32(buf, 0, 12)
	putU16(buf, 4, width)
	putU16(buf, 6, height)
	putU16(buf, 8, 1)
	putU16(buf, 10, bpp)

	bmp, ok := DecodeBitmap(buf)
	if !ok {
		t.Fatalf("DecodeBitmap failed")
	}
	if !bmp.IsCore {
		t.Errorf("IsCore = false, want true")
	}
	if bmp.Width != width || bmp.Height != height {
		t.Errorf("dims = %dx%d, want %dx%d", bmp.Width, bmp.Height, width, height)
	}
	if len(bmp.CorePalette) != 0 {
		t.Errorf("len(CorePalette) = %d, want 0 (24bpp has no palette)", len(bmp.CorePalette))
	}
}

func TestDecodeBitmapBitfields(t *testing.T) {
	buf := make([]byte, 40+12+16) // header + 3 DWORD masks + pixel data
	putU32(buf, 0, 40)
	putU32(buf, 4, 4)
	putU32(buf, 8, 2)
	putU16(buf, 12, 1)
	putU16(buf, 14, 16)
	putU32(buf, 16, uint32(CompressionBitfields))

	bmp, ok := DecodeBitmap(buf)
	if !ok {
		t.Fatalf("DecodeBitmap failed")
	}
	if len(bmp.Palette) != 0 {
		t.Errorf("len(Palette) = %d, want 0 for BITFIELDS", len(bmp.Palette))
	}
	if len(bmp.Pixels) != 16 {
		t.Errorf("len(Pixels) = %d, want 16 (masks skipped)", len(bmp.Pixels))
	}
}
