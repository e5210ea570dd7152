package tinyjpeg

import (
	"fmt"

	"github.com/tinyjpeg/tinyjpeg/internal/jpeg"
	"github.com/tinyjpeg/tinyjpeg/internal/pixel"
)

// PixelFormat is the layout of raw pixels produced by a Decoder or consumed
// by an Encoder. Pixels are stored row by row with no padding.
type PixelFormat uint8

const (
	// RGB565BE packs each pixel as rrrrrggg gggbbbbb, high byte first.
	RGB565BE PixelFormat = PixelFormat(pixel.RGB565BE)
	// RGB565LE is RGB565BE with the two bytes swapped.
	RGB565LE PixelFormat = PixelFormat(pixel.RGB565LE)
	// RGB888 stores R, G and B in one byte each.
	RGB888 PixelFormat = PixelFormat(pixel.RGB888)
	// CbYCrY stores Cb, Y and Cr in one byte each. Chroma is not
	// subsampled.
	CbYCrY PixelFormat = PixelFormat(pixel.CbYCrY)
)

var formatNames = map[PixelFormat]string{
	RGB565BE: "RGB565_BE",
	RGB565LE: "RGB565_LE",
	RGB888:   "RGB888",
	CbYCrY:   "CbYCrY",
}

// ParsePixelFormat returns the format with the given name, as printed by
// String. Unknown names fail with ErrUnsupportedFormat.
func ParsePixelFormat(name string) (PixelFormat, error) {
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

func (f PixelFormat) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("PixelFormat(%d)", uint8(f))
}

// BytesPerPixel returns 2 for the RGB565 formats, 3 for RGB888 and CbYCrY
// and 0 for anything else.
func (f PixelFormat) BytesPerPixel() int { return pixel.Format(f).BytesPerPixel() }

// Valid reports whether f is a known format.
func (f PixelFormat) Valid() bool { return pixel.Format(f).Valid() }

// Rotation is a clockwise rotation applied to decoded images.
type Rotation uint8

const (
	Rotate0   Rotation = Rotation(pixel.Rotate0)
	Rotate90  Rotation = Rotation(pixel.Rotate90)
	Rotate180 Rotation = Rotation(pixel.Rotate180)
	Rotate270 Rotation = Rotation(pixel.Rotate270)
)

// RotationFromDegrees converts 0, 90, 180 or 270 to a Rotation.
func RotationFromDegrees(deg int) (Rotation, error) {
	switch deg {
	case 0:
		return Rotate0, nil
	case 90:
		return Rotate90, nil
	case 180:
		return Rotate180, nil
	case 270:
		return Rotate270, nil
	}
	return 0, fmt.Errorf("%w: rotation of %d degrees", ErrInvalidConfig, deg)
}

// Degrees returns the rotation angle in degrees.
func (r Rotation) Degrees() int { return 90 * int(r) }

func (r Rotation) String() string {
	if !r.valid() {
		return fmt.Sprintf("Rotation(%d)", uint8(r))
	}
	return fmt.Sprintf("%d°", r.Degrees())
}

func (r Rotation) valid() bool { return r <= Rotate270 }

// Subsampling is the chroma subsampling an Encoder writes.
type Subsampling uint8

const (
	// Subsample420 halves chroma resolution in both directions.
	Subsample420 Subsampling = Subsampling(jpeg.Subsample420)
	// Subsample422 halves chroma resolution horizontally.
	Subsample422 Subsampling = Subsampling(jpeg.Subsample422)
	// Subsample444 keeps full chroma resolution.
	Subsample444 Subsampling = Subsampling(jpeg.Subsample444)
	// SubsampleGray drops chroma and writes a single-component image.
	SubsampleGray Subsampling = Subsampling(jpeg.SubsampleGray)
)

func (s Subsampling) String() string { return jpeg.Subsampling(s).String() }

func (s Subsampling) valid() bool { return s <= SubsampleGray }
