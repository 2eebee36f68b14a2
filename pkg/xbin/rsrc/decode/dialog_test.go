package decode

import "testing"

// buildDialogFixture builds a DIALOG template: header (no font, menu and
// class absent), caption "Hi", and one BUTTON control with literal text
// "OK".
func buildDialogFixture() []byte {
	buf := make([]byte, 256)
	putU32(buf, 0, 0)              // style (no DS_SETFONT)
	putU32(buf, 4, 0)               // extended style
	putU16(buf, 8, 1)               // numControls
	putU16(buf, 10, 10)             // x
	putU16(buf, 12, 10)             // y
	putU16(buf, 14, 100)            // w
	putU16(buf, 16, 80)             // h
	pos := 18

	putU16(buf, pos, 0x0000) // menu: absent
	pos += 2
	putU16(buf, pos, 0x0000) // class: absent
	pos += 2
	pos = putUTF16LE(buf, pos, "Hi") // caption

	// DWORD-align before the control.
	pos = dwordAlign(pos)

	putU32(buf, pos, 0) // control style
	pos += 4
	putU32(buf, pos, 0) // control extended style
	pos += 4
	putU16(buf, pos, 5) // x
	pos += 2
	putU16(buf, pos, 5) // y
	pos += 2
	putU16(buf, pos, 40) // w
	pos += 2
	putU16(buf, pos, 14) // h
	pos += 2
	putU16(buf, pos, 1) // control id
	pos += 2

	putU16(buf, pos, 0xFFFF) // class: ordinal tag
	pos += 2
	putU16(buf, pos, uint16(ClassButton))
	pos += 2

	pos = putUTF16LE(buf, pos, "OK") // text

	putU16(buf, pos, 0) // extra data length
	pos += 2

	return buf[:pos]
}

func TestDecodeDialog(t *testing.T) {
	buf := buildDialogFixture()
	d, ok := DecodeDialog(buf)
	if !ok {
		t.Fatalf("DecodeDialog failed")
	}
	if d.Caption != "Hi" {
		t.Errorf("Caption = %q, want Hi", d.Caption)
	}
	if d.HasFont {
		t.Errorf("HasFont = true, want false")
	}
	if d.Menu.Present || d.Class.Present {
		t.Errorf("Menu/Class should both be absent: %+v %+v", d.Menu, d.Class)
	}
	if len(d.Controls) != 1 {
		t.Fatalf("len(Controls) = %d, want 1", len(d.Controls))
	}
	ctrl := d.Controls[0]
	if ctrl.ID != 1 {
		t.Errorf("control ID = %d, want 1", ctrl.ID)
	}
	if !ctrl.Class.IsOrdinal || ctrl.Class.Ordinal != ClassButton {
		t.Errorf("control Class = %+v, want ordinal ClassButton", ctrl.Class)
	}
	if ctrl.Text.Name != "OK" {
		t.Errorf("control Text = %+v, want Name=OK", ctrl.Text)
	}
}

func TestDecodeDialogWithFont(t *testing.T) {
	buf := make([]byte, 128)
	putU32(buf, 0, DialogStyleSetFont)
	putU32(buf, 4, 0)
	putU16(buf, 8, 0) // numControls
	putU16(buf, 10, 0)
	putU16(buf, 12, 0)
	putU16(buf, 14, 0)
	putU16(buf, 16, 0)
	pos := 18
	putU16(buf, pos, 0) // menu absent
	pos += 2
	putU16(buf, pos, 0) // class absent
	pos += 2
	pos = putUTF16LE(buf, pos, "") // empty caption

	putU16(buf, pos, 8) // point size
	pos += 2
	pos = putUTF16LE(buf, pos, "MS Sans Serif")

	d, ok := DecodeDialog(buf[:pos])
	if !ok {
		t.Fatalf("DecodeDialog failed")
	}
	if !d.HasFont || d.FontPointSize != 8 || d.FontFaceName != "MS Sans Serif" {
		t.Errorf("font = HasFont=%v size=%d face=%q", d.HasFont, d.FontPointSize, d.FontFaceName)
	}
}
