// Version info decoder, grounded on
// other_examples/2583885a_saferwall-pe__version.go.go's VS_FIXEDFILEINFO
// field layout and StringFileInfo/StringTable/String walk, generalized
// into spec.md §4.J's single recursive block shape: "(u16 total_len,
// u16 value_len, u16 type, null-terminated UTF-16 key, DWORD-pad,
// value_len bytes of value, children until total_len consumed)."
package decode

import (
	"unicode/utf16"

	"github.com/provide-io/xbin/pkg/xbin/bytesource"
)

const fixedFileInfoSignature uint32 = 0xFEEF04BD

// VersionBlock is one node of the generic VS_VERSION_INFO tree: every
// node (VS_VERSION_INFO itself, StringFileInfo, a language/codepage
// table, an individual String, VarFileInfo, Translation) shares this
// shape.
type VersionBlock struct {
	Key      string
	Type     uint16
	Value    []byte
	Children []VersionBlock
}

// FixedFileInfo mirrors VS_FIXEDFILEINFO, the 52-byte binary value
// attached to the VS_VERSION_INFO root block.
type FixedFileInfo struct {
	Signature        uint32
	StrucVersion     uint32
	FileVersionMS    uint32
	FileVersionLS    uint32
	ProductVersionMS uint32
	ProductVersionLS uint32
	FileFlagsMask    uint32
	FileFlags        uint32
	FileOS           uint32
	FileType         uint32
	FileSubtype      uint32
	FileDateMS       uint32
	FileDateLS       uint32
}

// Translation is one (language id, codepage) pair from a VarFileInfo
// "Translation" block.
type Translation struct {
	Language uint16
	Codepage uint16
}

// VersionInfo is the decoded, structurally-interpreted RT_VERSION
// resource.
type VersionInfo struct {
	Root         VersionBlock
	Fixed        *FixedFileInfo
	Strings      map[string]map[string]string // langCodepageKey -> (name -> value)
	Translations []Translation
}

// DecodeVersionInfo parses an RT_VERSION leaf's bytes.
func DecodeVersionInfo(data []byte) (VersionInfo, bool) {
	src := bytesource.New(data)
	root, _, ok := decodeVersionBlock(src, 0, int64(len(data)))
	if !ok || root.Key != "VS_VERSION_INFO" {
		return VersionInfo{}, false
	}

	info := VersionInfo{Root: root, Strings: make(map[string]map[string]string)}
	if len(root.Value) >= 52 {
		fixed := parseFixedFileInfo(root.Value)
		if fixed.Signature == fixedFileInfoSignature {
			info.Fixed = &fixed
		}
	}

	for _, child := range root.Children {
		switch child.Key {
		case "StringFileInfo":
			for _, table := range child.Children {
				strs := make(map[string]string)
				for _, s := range table.Children {
					strs[s.Key] = decodeUTF16Value(s.Value)
				}
				info.Strings[table.Key] = strs
			}
		case "VarFileInfo":
			for _, v := range child.Children {
				if v.Key != "Translation" {
					continue
				}
				for i := 0; i+4 <= len(v.Value); i += 4 {
					info.Translations = append(info.Translations, Translation{
						Language: u16le(v.Value, i),
						Codepage: u16le(v.Value, i+2),
					})
				}
			}
		}
	}
	return info, true
}

// decodeVersionBlock decodes one generic block starting at pos, bounded
// by limit (the end of the enclosing block, or the resource's end at the
// top level).
func decodeVersionBlock(src *bytesource.Source, pos, limit int64) (VersionBlock, int64, bool) {
	start := pos
	totalLen, err := src.U16LE(pos)
	if err != nil {
		return VersionBlock{}, pos, false
	}
	valueLen, err := src.U16LE(pos + 2)
	if err != nil {
		return VersionBlock{}, pos, false
	}
	typ, err := src.U16LE(pos + 4)
	if err != nil {
		return VersionBlock{}, pos, false
	}
	key, consumed, err := src.UTF16LEUntilNUL(pos + 6)
	if err != nil {
		return VersionBlock{}, pos, false
	}

	blockEnd := start + int64(totalLen)
	if blockEnd > limit {
		blockEnd = limit
	}

	valueStart := int64(dwordAlign(int(pos + 6 + consumed)))
	var value []byte
	if valueLen > 0 {
		value, err = src.Slice(valueStart, int64(valueLen))
		if err != nil {
			return VersionBlock{}, pos, false
		}
	}

	block := VersionBlock{Key: key, Type: typ, Value: value}

	childPos := int64(dwordAlign(int(valueStart + int64(valueLen))))
	for childPos+6 <= blockEnd {
		child, next, ok := decodeVersionBlock(src, childPos, blockEnd)
		if !ok {
			break
		}
		block.Children = append(block.Children, child)
		childPos = int64(dwordAlign(int(next)))
	}

	if totalLen == 0 {
		return block, blockEnd, false
	}
	return block, blockEnd, true
}

func parseFixedFileInfo(b []byte) FixedFileInfo {
	return FixedFileInfo{
		Signature:        u32le(b, 0),
		StrucVersion:     u32le(b, 4),
		FileVersionMS:    u32le(b, 8),
		FileVersionLS:    u32le(b, 12),
		ProductVersionMS: u32le(b, 16),
		ProductVersionLS: u32le(b, 20),
		FileFlagsMask:    u32le(b, 24),
		FileFlags:        u32le(b, 28),
		FileOS:           u32le(b, 32),
		FileType:         u32le(b, 36),
		FileSubtype:      u32le(b, 40),
		FileDateMS:       u32le(b, 44),
		FileDateLS:       u32le(b, 48),
	}
}

func decodeUTF16Value(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+2 <= len(b); i += 2 {
		u := u16le(b, i)
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}
