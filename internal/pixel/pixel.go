// Package pixel packs and unpacks the raw pixel layouts produced by the
// decoder and consumed by the encoder.
package pixel

import "image/color"

// Format identifies a raw pixel layout.
// Values mirror tinyjpeg.PixelFormat.
type Format uint8

const (
	Invalid Format = iota
	RGB565BE
	RGB565LE
	RGB888
	CbYCrY
)

// BytesPerPixel returns the number of bytes a single pixel occupies, or 0
// for an unknown format.
func (f Format) BytesPerPixel() int {
	switch f {
	case RGB565BE, RGB565LE:
		return 2
	case RGB888, CbYCrY:
		return 3
	default:
		return 0
	}
}

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	return f.BytesPerPixel() != 0
}

// PutYCbCr stores one pixel given as Y'CbCr at dst[0:bpp].
func PutYCbCr(dst []byte, f Format, y, cb, cr uint8) {
	if f == CbYCrY {
		dst[0], dst[1], dst[2] = cb, y, cr
		return
	}
	r, g, b := color.YCbCrToRGB(y, cb, cr)
	PutRGB(dst, f, r, g, b)
}

// PutRGB stores one pixel given as RGB at dst[0:bpp].
func PutRGB(dst []byte, f Format, r, g, b uint8) {
	switch f {
	case RGB565BE:
		v := rgb565(r, g, b)
		dst[0], dst[1] = uint8(v>>8), uint8(v)
	case RGB565LE:
		v := rgb565(r, g, b)
		dst[0], dst[1] = uint8(v), uint8(v>>8)
	case RGB888:
		dst[0], dst[1], dst[2] = r, g, b
	case CbYCrY:
		y, cb, cr := color.RGBToYCbCr(r, g, b)
		dst[0], dst[1], dst[2] = cb, y, cr
	}
}

// PutGray stores one luminance-only pixel at dst[0:bpp].
func PutGray(dst []byte, f Format, y uint8) {
	if f == CbYCrY {
		dst[0], dst[1], dst[2] = 128, y, 128
		return
	}
	PutRGB(dst, f, y, y, y)
}

// YCbCrAt reads the pixel at src[0:bpp] and returns it as Y'CbCr.
func YCbCrAt(src []byte, f Format) (y, cb, cr uint8) {
	switch f {
	case CbYCrY:
		return src[1], src[0], src[2]
	case RGB888:
		return color.RGBToYCbCr(src[0], src[1], src[2])
	case RGB565BE:
		r, g, b := expand565(uint16(src[0])<<8 | uint16(src[1]))
		return color.RGBToYCbCr(r, g, b)
	case RGB565LE:
		r, g, b := expand565(uint16(src[1])<<8 | uint16(src[0]))
		return color.RGBToYCbCr(r, g, b)
	}
	return 0, 128, 128
}

func rgb565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// expand565 widens a 5-6-5 value to 8 bits per channel by replicating the
// high bits into the low bits.
func expand565(v uint16) (r, g, b uint8) {
	r5 := uint8(v >> 11 & 0x1f)
	g6 := uint8(v >> 5 & 0x3f)
	b5 := uint8(v & 0x1f)
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}
