package decode

import "github.com/provide-io/xbin/pkg/xbin/bytesource"

// DialogStyle bits this package interprets directly; the rest are opaque
// to callers, per spec.md §4.J.
const DialogStyleSetFont uint32 = 0x00000040 // DS_SETFONT

// predefined dialog control classes, the ordinal range a control's class
// field selects between when it is not a literal class name.
const (
	ClassButton     uint16 = 0x80
	ClassEdit       uint16 = 0x81
	ClassStatic     uint16 = 0x82
	ClassListBox    uint16 = 0x83
	ClassScrollBar  uint16 = 0x84
	ClassComboBox   uint16 = 0x85
)

// NameOrOrdinal is spec.md §4.J's "name-or-ord16" encoding: a u16 0x0000
// means absent, 0xFFFF means the following u16 is a numeric ordinal,
// anything else begins a null-terminated UTF-16 string.
type NameOrOrdinal struct {
	Present    bool
	IsOrdinal  bool
	Ordinal    uint16
	Name       string
}

// DialogControl is one control entry following a DIALOG template's header.
type DialogControl struct {
	X, Y, Width, Height int16
	ID                  uint16
	Style               uint32
	ExtendedStyle       uint32
	Class               NameOrOrdinal
	Text                NameOrOrdinal
	ExtraData           []byte
}

// Dialog is a decoded RT_DIALOG resource.
type Dialog struct {
	Style         uint32
	ExtendedStyle uint32
	X, Y, Width, Height int16
	Menu          NameOrOrdinal
	Class         NameOrOrdinal
	Caption       string
	HasFont       bool
	FontPointSize uint16
	FontFaceName  string
	Controls      []DialogControl
}

// DecodeDialog parses an RT_DIALOG leaf's bytes. Dialog resource strings
// are always UTF-16LE, regardless of host format.
func DecodeDialog(data []byte) (Dialog, bool) {
	src := bytesource.New(data)
	style, err := src.U32LE(0)
	if err != nil {
		return Dialog{}, false
	}
	exStyle, err := src.U32LE(4)
	if err != nil {
		return Dialog{}, false
	}
	numControls, err := src.U16LE(8)
	if err != nil {
		return Dialog{}, false
	}
	x, err := src.U16LE(10)
	if err != nil {
		return Dialog{}, false
	}
	y, err := src.U16LE(12)
	if err != nil {
		return Dialog{}, false
	}
	w, err := src.U16LE(14)
	if err != nil {
		return Dialog{}, false
	}
	h, err := src.U16LE(16)
	if err != nil {
		return Dialog{}, false
	}

	pos := int64(18)
	d := Dialog{
		Style: style, ExtendedStyle: exStyle,
		X: int16(x), Y: int16(y), Width: int16(w), Height: int16(h),
	}

	var ok bool
	d.Menu, pos, ok = decodeNameOrOrdinal(src, pos)
	if !ok {
		return Dialog{}, false
	}
	d.Class, pos, ok = decodeNameOrOrdinal(src, pos)
	if !ok {
		return Dialog{}, false
	}
	caption, consumed, err := src.UTF16LEUntilNUL(pos)
	if err != nil {
		return Dialog{}, false
	}
	d.Caption = caption
	pos += consumed

	if style&DialogStyleSetFont != 0 {
		pointSize, err := src.U16LE(pos)
		if err != nil {
			return Dialog{}, false
		}
		pos += 2
		faceName, consumed, err := src.UTF16LEUntilNUL(pos)
		if err != nil {
			return Dialog{}, false
		}
		pos += consumed
		d.HasFont = true
		d.FontPointSize = pointSize
		d.FontFaceName = faceName
	}

	for i := uint16(0); i < numControls; i++ {
		pos = int64(dwordAlign(int(pos)))
		ctrl, next, ok := decodeDialogControl(src, pos)
		if !ok {
			break
		}
		d.Controls = append(d.Controls, ctrl)
		pos = next
	}

	return d, true
}

func decodeDialogControl(src *bytesource.Source, pos int64) (DialogControl, int64, bool) {
	style, err := src.U32LE(pos)
	if err != nil {
		return DialogControl{}, pos, false
	}
	exStyle, err := src.U32LE(pos + 4)
	if err != nil {
		return DialogControl{}, pos, false
	}
	x, err := src.U16LE(pos + 8)
	if err != nil {
		return DialogControl{}, pos, false
	}
	y, err := src.U16LE(pos + 10)
	if err != nil {
		return DialogControl{}, pos, false
	}
	w, err := src.U16LE(pos + 12)
	if err != nil {
		return DialogControl{}, pos, false
	}
	h, err := src.U16LE(pos + 14)
	if err != nil {
		return DialogControl{}, pos, false
	}
	id, err := src.U16LE(pos + 16)
	if err != nil {
		return DialogControl{}, pos, false
	}
	pos += 18

	class, pos, ok := decodeNameOrOrdinal(src, pos)
	if !ok {
		return DialogControl{}, pos, false
	}
	text, pos, ok := decodeNameOrOrdinal(src, pos)
	if !ok {
		return DialogControl{}, pos, false
	}

	extraLen, err := src.U16LE(pos)
	if err != nil {
		return DialogControl{}, pos, false
	}
	pos += 2
	var extra []byte
	if extraLen > 0 {
		extra, err = src.Slice(pos, int64(extraLen))
		if err != nil {
			return DialogControl{}, pos, false
		}
		pos += int64(extraLen)
	}

	return DialogControl{
		X: int16(x), Y: int16(y), Width: int16(w), Height: int16(h),
		ID: id, Style: style, ExtendedStyle: exStyle,
		Class: class, Text: text, ExtraData: extra,
	}, pos, true
}

// decodeNameOrOrdinal reads one name-or-ord16 field starting at pos.
func decodeNameOrOrdinal(src *bytesource.Source, pos int64) (NameOrOrdinal, int64, bool) {
	tag, err := src.U16LE(pos)
	if err != nil {
		return NameOrOrdinal{}, pos, false
	}
	switch tag {
	case 0x0000:
		return NameOrOrdinal{Present: false}, pos + 2, true
	case 0xFFFF:
		ord, err := src.U16LE(pos + 2)
		if err != nil {
			return NameOrOrdinal{}, pos, false
		}
		return NameOrOrdinal{Present: true, IsOrdinal: true, Ordinal: ord}, pos + 4, true
	default:
		name, consumed, err := src.UTF16LEUntilNUL(pos)
		if err != nil {
			return NameOrOrdinal{}, pos, false
		}
		return NameOrOrdinal{Present: true, Name: name}, pos + consumed, true
	}
}
