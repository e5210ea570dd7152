package pixel

import (
	"bytes"
	"testing"
)

func TestFormat_BytesPerPixel(t *testing.T) {
	tests := []struct {
		f    Format
		want int
	}{
		{RGB565BE, 2},
		{RGB565LE, 2},
		{RGB888, 3},
		{CbYCrY, 3},
		{Invalid, 0},
		{Format(42), 0},
	}
	for _, tt := range tests {
		if got := tt.f.BytesPerPixel(); got != tt.want {
			t.Errorf("Format(%d).BytesPerPixel() = %d, want %d", tt.f, got, tt.want)
		}
	}
}

func TestPutRGB_RGB565Endianness(t *testing.T) {
	be := make([]byte, 2)
	le := make([]byte, 2)
	PutRGB(be, RGB565BE, 0xff, 0x00, 0x00)
	PutRGB(le, RGB565LE, 0xff, 0x00, 0x00)

	if !bytes.Equal(be, []byte{0xf8, 0x00}) {
		t.Errorf("RGB565BE red = %x, want f800", be)
	}
	if !bytes.Equal(le, []byte{0x00, 0xf8}) {
		t.Errorf("RGB565LE red = %x, want 00f8", le)
	}
}

func TestYCbCrAt_RoundTripThroughRGB565(t *testing.T) {
	buf := make([]byte, 2)
	for _, f := range []Format{RGB565BE, RGB565LE} {
		PutRGB(buf, f, 0xff, 0xff, 0xff)
		y, cb, cr := YCbCrAt(buf, f)
		if y != 255 || cb != 128 || cr != 128 {
			t.Errorf("%d: white = (%d,%d,%d), want (255,128,128)", f, y, cb, cr)
		}
	}
}

func TestPutGray_CbYCrY(t *testing.T) {
	buf := make([]byte, 3)
	PutGray(buf, CbYCrY, 77)
	if !bytes.Equal(buf, []byte{128, 77, 128}) {
		t.Errorf("PutGray(CbYCrY) = %v, want [128 77 128]", buf)
	}
}

func TestRotate(t *testing.T) {
	// 3x2 image, one byte per pixel:
	//   1 2 3
	//   4 5 6
	src := []byte{1, 2, 3, 4, 5, 6}

	tests := []struct {
		r    Rotation
		want []byte
	}{
		{Rotate0, []byte{1, 2, 3, 4, 5, 6}},
		{Rotate90, []byte{4, 1, 5, 2, 6, 3}},
		{Rotate180, []byte{6, 5, 4, 3, 2, 1}},
		{Rotate270, []byte{3, 6, 2, 5, 1, 4}},
	}
	for _, tt := range tests {
		got := Rotate(src, 3, 2, 1, tt.r)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("Rotate(%d) = %v, want %v", tt.r, got, tt.want)
		}
	}
}

func TestRotatedSize(t *testing.T) {
	if w, h := RotatedSize(320, 240, Rotate90); w != 240 || h != 320 {
		t.Errorf("RotatedSize(90) = %dx%d, want 240x320", w, h)
	}
	if w, h := RotatedSize(320, 240, Rotate180); w != 320 || h != 240 {
		t.Errorf("RotatedSize(180) = %dx%d, want 320x240", w, h)
	}
}
