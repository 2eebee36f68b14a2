package entropy

import "testing"

func TestShannonUniformIsEight(t *testing.T) {
	data := make([]byte, 256*4)
	for i := range data {
		data[i] = byte(i % 256)
	}
	h := Shannon(data)
	if h < 7.99 || h > 8.0 {
		t.Fatalf("Shannon(uniform) = %f, want ~8.0", h)
	}
}

func TestShannonConstantIsZero(t *testing.T) {
	data := make([]byte, 1024)
	if h := Shannon(data); h != 0 {
		t.Fatalf("Shannon(constant) = %f, want 0", h)
	}
}

func TestShannonEmpty(t *testing.T) {
	if h := Shannon(nil); h != 0 {
		t.Fatalf("Shannon(nil) = %f, want 0", h)
	}
}

func TestChiSquaredUniformIsLow(t *testing.T) {
	data := make([]byte, 256*100)
	for i := range data {
		data[i] = byte(i % 256)
	}
	if chi2 := ChiSquared(data); chi2 > 1.0 {
		t.Fatalf("ChiSquared(uniform) = %f, want close to 0", chi2)
	}
}

func TestChiSquaredConstantIsHigh(t *testing.T) {
	data := make([]byte, 1024)
	if chi2 := ChiSquared(data); chi2 < 1000 {
		t.Fatalf("ChiSquared(constant) = %f, want large", chi2)
	}
}

func TestDetectOverlay(t *testing.T) {
	file := make([]byte, 100)
	sections := []SectionExtent{{RawOffset: 0, RawSize: 40}, {RawOffset: 40, RawSize: 30}}
	ov, ok := DetectOverlay(file, sections)
	if !ok {
		t.Fatalf("expected overlay")
	}
	if ov.Offset != 70 || ov.Size != 30 {
		t.Fatalf("overlay = %+v, want offset=70 size=30", ov)
	}
}

func TestDetectOverlayNone(t *testing.T) {
	file := make([]byte, 40)
	sections := []SectionExtent{{RawOffset: 0, RawSize: 40}}
	if _, ok := DetectOverlay(file, sections); ok {
		t.Fatalf("expected no overlay when sections cover the whole file")
	}
}
