package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ExportICO assembles a standalone .ico file from one or more decoded
// icon images sharing a common group, per spec.md §4.J's documented
// ICONDIR/ICONDIRENTRY layout: a 6-byte ICONDIR, one 16-byte
// ICONDIRENTRY per image, then each image's BITMAPINFOHEADER-prefixed
// DIB (XOR bitmap followed by AND mask) back to back.
//
// This is a narrow, bit-exact container format with no ecosystem parser
// in the retrieval pack tuned to reassembling already-decoded resource
// data into a standalone .ico (see DESIGN.md for why tc-hib/winres,
// the one pack library that touches PE/icon resources, doesn't fit),
// so it is built directly against stdlib encoding/binary.
func ExportICO(images []IconImage) ([]byte, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("xbin/decode: no icon images to export")
	}

	var buf bytes.Buffer

	// ICONDIR: reserved u16=0, type u16=1 (icon), count u16.
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(len(images)))

	type payload struct {
		bitmapInfoHeader []byte
		palette          []byte
		xor              []byte
		and              []byte
	}
	payloads := make([]payload, len(images))

	headerSize := int64(6 + 16*len(images))
	offset := headerSize

	for i, img := range images {
		p := payload{
			bitmapInfoHeader: encodeBitmapInfoHeader(img.Header),
			palette:          encodeRGBQuadPalette(img.Palette),
			xor:              img.XORMask,
			and:              img.ANDMask,
		}
		payloads[i] = p

		dataSize := int64(len(p.bitmapInfoHeader) + len(p.palette) + len(p.xor) + len(p.and))

		width := img.Width
		height := img.Height
		if width > 255 {
			width = 0
		}
		if height > 255 {
			height = 0
		}
		colorCount := 0
		if img.Header.BitCount <= 8 {
			colorCount = 1 << img.Header.BitCount
			if colorCount > 255 {
				colorCount = 0
			}
		}

		// ICONDIRENTRY: width u8, height u8, colorCount u8, reserved u8,
		// planes u16, bitCount u16, bytesInRes u32, imageOffset u32.
		binary.Write(&buf, binary.LittleEndian, uint8(width))
		binary.Write(&buf, binary.LittleEndian, uint8(height))
		binary.Write(&buf, binary.LittleEndian, uint8(colorCount))
		binary.Write(&buf, binary.LittleEndian, uint8(0))
		binary.Write(&buf, binary.LittleEndian, img.Header.Planes)
		binary.Write(&buf, binary.LittleEndian, img.Header.BitCount)
		binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
		binary.Write(&buf, binary.LittleEndian, uint32(offset))

		offset += dataSize
	}

	for _, p := range payloads {
		buf.Write(p.bitmapInfoHeader)
		buf.Write(p.palette)
		buf.Write(p.xor)
		buf.Write(p.and)
	}

	return buf.Bytes(), nil
}

// encodeBitmapInfoHeader re-serializes a BitmapInfoHeader as 40
// bitmap-info-header bytes. h.Height already carries the on-disk,
// XOR+AND-combined height (IconImage.Height holds the halved, effective
// value instead), so it is written back unchanged.
func encodeBitmapInfoHeader(h BitmapInfoHeader) []byte {
	buf := make([]byte, 40)
	binary.LittleEndian.PutUint32(buf[0:], 40)
	binary.LittleEndian.PutUint32(buf[4:], uint32(h.Width))
	binary.LittleEndian.PutUint32(buf[8:], uint32(h.Height))
	binary.LittleEndian.PutUint16(buf[12:], h.Planes)
	binary.LittleEndian.PutUint16(buf[14:], h.BitCount)
	binary.LittleEndian.PutUint32(buf[16:], uint32(h.Compression))
	binary.LittleEndian.PutUint32(buf[20:], h.SizeImage)
	binary.LittleEndian.PutUint32(buf[24:], uint32(int32(h.XPelsPerMeter)))
	binary.LittleEndian.PutUint32(buf[28:], uint32(int32(h.YPelsPerMeter)))
	binary.LittleEndian.PutUint32(buf[32:], h.ColorsUsed)
	binary.LittleEndian.PutUint32(buf[36:], h.ColorsImportant)
	return buf
}

func encodeRGBQuadPalette(palette []RGBQuad) []byte {
	buf := make([]byte, 4*len(palette))
	for i, c := range palette {
		buf[4*i+0] = c.Blue
		buf[4*i+1] = c.Green
		buf[4*i+2] = c.Red
		buf[4*i+3] = c.Reserved
	}
	return buf
}
