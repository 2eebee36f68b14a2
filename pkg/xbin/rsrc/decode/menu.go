package decode

import "github.com/provide-io/xbin/pkg/xbin/bytesource"

// Menu item flag bits, per spec.md §4.J.
const (
	MenuFlagPopup uint16 = 0x10
	MenuFlagEnd   uint16 = 0x80
)

// MenuItem is one recursively-nested menu entry. A separator is
// Flags==0 && ID==0 && Text=="". A popup carries no ID and owns Children.
type MenuItem struct {
	Flags    uint16
	ID       uint16
	IsPopup  bool
	Text     string
	Children []MenuItem
}

// Menu is a decoded RT_MENU resource.
type Menu struct {
	Version    uint16
	HeaderSize uint16
	Items      []MenuItem
}

// DecodeMenu parses an RT_MENU leaf's bytes. wide selects the item text
// encoding: UTF-16LE for PE resources, ANSI (single-byte, NUL-terminated)
// for NE resources, per spec.md §4.J.
func DecodeMenu(data []byte, wide bool) (Menu, bool) {
	src := bytesource.New(data)
	version, err := src.U16LE(0)
	if err != nil {
		return Menu{}, false
	}
	headerSize, err := src.U16LE(2)
	if err != nil {
		return Menu{}, false
	}

	pos := int64(4) + int64(headerSize)
	items, _, ok := decodeMenuItems(src, pos, wide)
	if !ok {
		return Menu{}, false
	}
	return Menu{Version: version, HeaderSize: headerSize, Items: items}, true
}

// decodeMenuItems reads sibling items starting at pos until one carries
// MenuFlagEnd, returning the items and the cursor position just past them.
func decodeMenuItems(src *bytesource.Source, pos int64, wide bool) ([]MenuItem, int64, bool) {
	var items []MenuItem
	for {
		flags, err := src.U16LE(pos)
		if err != nil {
			return nil, pos, false
		}
		pos += 2

		isPopup := flags&MenuFlagPopup != 0
		var id uint16
		if !isPopup {
			id, err = src.U16LE(pos)
			if err != nil {
				return nil, pos, false
			}
			pos += 2
		}

		text, consumed, ok := decodeMenuString(src, pos, wide)
		if !ok {
			return nil, pos, false
		}
		pos += consumed

		item := MenuItem{Flags: flags, ID: id, IsPopup: isPopup, Text: text}
		if isPopup {
			children, next, ok := decodeMenuItems(src, pos, wide)
			if !ok {
				return nil, pos, false
			}
			item.Children = children
			pos = next
		}
		items = append(items, item)

		if flags&MenuFlagEnd != 0 {
			return items, pos, true
		}
	}
}

func decodeMenuString(src *bytesource.Source, pos int64, wide bool) (string, int64, bool) {
	if wide {
		text, consumed, err := src.UTF16LEUntilNUL(pos)
		if err != nil {
			return "", 0, false
		}
		return text, consumed, true
	}
	raw, consumed, err := src.CStr(pos, -1)
	if err != nil {
		return "", 0, false
	}
	return string(raw), consumed, true
}
