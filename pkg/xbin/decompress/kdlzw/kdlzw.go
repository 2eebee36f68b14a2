// Package kdlzw implements the Knowledge Dynamics packer's LZW
// decompressor: a 9-to-12-bit variable-width LZW stream appended after a
// second, inner MZ header that itself follows the outer MZ stub. Grounded
// on original_source/src/libexe/knowledge_dynamics_decompressor.cpp.
package kdlzw

import (
	"github.com/provide-io/xbin/pkg/xbin/decompress"
)

const (
	bufferSize = 1024
	bufferEdge = bufferSize - 3
	resetCode  = 0x0100
	endCode    = 0x0101
)

var keyMask = [4]uint32{0x01FF, 0x03FF, 0x07FF, 0x0FFF}

// params is what Detect recovers from the inner MZ header: enough to
// locate the code stream and seed the rebuilt outer MZ header.
type params struct {
	codeOffset  int
	expectedLen int

	initialIP, initialCS   uint16
	initialSP, initialSS   uint16
	maxMemPara, minMemPara uint16
}

type kdDecompressor struct{}

func init() {
	decompress.Register(kdDecompressor{})
}

func (kdDecompressor) ID() string   { return "kdlzw" }
func (kdDecompressor) Name() string { return "Knowledge Dynamics LZW" }

func u16(b []byte, off int) uint16 {
	return uint16(b[off]) | uint16(b[off+1])<<8
}

// readParams locates the inner MZ header (appended after the outer file's
// page-rounded extent) and derives the code stream's start and expected
// length from it, mirroring read_parameters in the reference decompressor.
func readParams(data []byte) (params, bool) {
	var p params
	if len(data) < 0x06 {
		return p, false
	}
	numPages := u16(data, 0x04)
	bytesInLastPage := u16(data, 0x02)

	extraDataStart := int(numPages) * 512
	if bytesInLastPage != 0 {
		extraDataStart -= 512 - int(bytesInLastPage)
	}
	if extraDataStart < 0 || len(data) < extraDataStart+0x25 {
		return p, false
	}

	inner := data[extraDataStart:]
	innerHeaderSizePara := u16(inner, 0x08)
	innerNumPages := u16(inner, 0x04)
	innerBytesInLast := u16(inner, 0x02)

	exeDataStart2 := int(innerHeaderSizePara) * 16
	extraDataStart2 := int(innerNumPages) * 512
	if innerBytesInLast != 0 {
		extraDataStart2 -= 512 - int(innerBytesInLast)
	}

	p.expectedLen = extraDataStart2 - exeDataStart2
	p.codeOffset = extraDataStart + exeDataStart2
	if p.expectedLen <= 0 || p.codeOffset < 0 {
		return p, false
	}

	p.initialIP = u16(inner, 0x14)
	p.initialCS = u16(inner, 0x16)
	p.initialSP = u16(inner, 0x10)
	p.initialSS = u16(inner, 0x0E)
	p.maxMemPara = u16(inner, 0x0C)
	p.minMemPara = uint16((p.expectedLen + 0x20) / 64)

	return p, true
}

func (kdDecompressor) Detect(buf []byte) (any, bool) {
	if len(buf) < 2 || buf[0] != 'M' || buf[1] != 'Z' {
		return nil, false
	}
	p, ok := readParams(buf)
	if !ok {
		return nil, false
	}
	if p.codeOffset+bufferSize > len(buf) {
		return nil, false
	}
	return p, true
}

func (kdDecompressor) Decompress(buf []byte, paramsAny any) (*decompress.Result, error) {
	p, ok := paramsAny.(params)
	if !ok {
		var detectOK bool
		p, detectOK = readParams(buf)
		if !detectOK {
			return nil, decompress.Fail("kdlzw: could not locate inner MZ header")
		}
	}
	if p.codeOffset+bufferSize > len(buf) {
		return nil, decompress.Fail("kdlzw: compressed data truncated")
	}

	var buffer [bufferSize]byte
	copy(buffer[:], buf[p.codeOffset:p.codeOffset+bufferSize])

	filePos := p.codeOffset + bufferSize
	bitPos := 0
	resetHack := false
	step := uint(9)

	const dictCap = 768 * 16
	var dictKey [dictCap]uint16
	var dictVal [dictCap]uint8
	dictIndex := uint16(0x0102)
	dictRange := uint16(0x0200)

	var queue [0xFF]byte
	queued := 0

	var lastIndex uint16
	var lastChar uint8

	code := make([]byte, 0, p.expectedLen+64)

	for {
		if resetHack {
			step = 9
			dictRange = 0x0200
			dictIndex = 0x0102
		}

		bytePos := bitPos / 8
		bitOffset := bitPos % 8
		bitPos += int(step)

		if bytePos >= bufferEdge {
			bytesExtra := bufferSize - bytePos
			bytesLeft := bufferSize - bytesExtra

			copy(buffer[:bytesExtra], buffer[bytesLeft:])

			remaining := len(buf) - filePos
			bytesToRead := bytesLeft
			if remaining < bytesToRead {
				bytesToRead = remaining
			}
			if bytesToRead > 0 {
				copy(buffer[bytesExtra:bytesExtra+bytesToRead], buf[filePos:filePos+bytesToRead])
				filePos += bytesToRead
			}

			bitPos = bitOffset + int(step)
			bytePos = 0
			if resetHack {
				bitOffset = bytesExtra
			}
		}

		if bytePos+2 >= bufferSize {
			return nil, decompress.Fail("kdlzw: buffer index out of range")
		}
		bigIndex := uint32(buffer[bytePos+2])<<16 | uint32(buffer[bytePos+1])<<8 | uint32(buffer[bytePos])
		bigIndex >>= uint(bitOffset)
		nextIndex := uint16(bigIndex)

		if step-9 >= 4 {
			return nil, decompress.Fail("kdlzw: invalid step value %d", step)
		}
		nextIndex &= uint16(keyMask[step-9])

		if resetHack {
			lastIndex = nextIndex
			lastChar = uint8(nextIndex & 0xFF)
			code = append(code, lastChar)
			resetHack = false
			continue
		}

		if nextIndex == endCode {
			break
		}
		if nextIndex == resetCode {
			resetHack = true
			continue
		}

		keepIndex := nextIndex

		if nextIndex >= dictIndex {
			nextIndex = lastIndex
			if queued >= len(queue) {
				return nil, decompress.Fail("kdlzw: queue overflow")
			}
			queue[queued] = lastChar
			queued++
		}

		for nextIndex > 0x00FF {
			if queued >= len(queue) {
				return nil, decompress.Fail("kdlzw: queue overflow")
			}
			if int(nextIndex) >= len(dictVal) {
				return nil, decompress.Fail("kdlzw: dictionary index out of range")
			}
			queue[queued] = dictVal[nextIndex]
			queued++
			nextIndex = dictKey[nextIndex]
		}

		lastChar = uint8(nextIndex & 0xFF)
		if queued >= len(queue) {
			return nil, decompress.Fail("kdlzw: queue overflow")
		}
		queue[queued] = lastChar
		queued++

		for queued > 0 {
			queued--
			code = append(code, queue[queued])
		}

		if int(dictIndex) >= len(dictVal) {
			return nil, decompress.Fail("kdlzw: dictionary full")
		}
		dictKey[dictIndex] = lastIndex
		dictVal[dictIndex] = lastChar
		dictIndex++

		lastIndex = keepIndex

		if dictIndex >= dictRange && step < 12 {
			step++
			dictRange *= 2
		}
	}

	return &decompress.Result{
		Code:               code,
		InitialIP:          p.initialIP,
		InitialCS:          p.initialCS,
		InitialSP:          p.initialSP,
		InitialSS:          p.initialSS,
		MinExtraParagraphs: p.minMemPara,
		MaxExtraParagraphs: p.maxMemPara,
	}, nil
}
