package pixel

// Rotation is a clockwise rotation in quarter turns.
type Rotation uint8

const (
	Rotate0 Rotation = iota
	Rotate90
	Rotate180
	Rotate270
)

// RotatedSize returns the dimensions of a width x height image after r.
func RotatedSize(width, height int, r Rotation) (int, int) {
	if r == Rotate90 || r == Rotate270 {
		return height, width
	}
	return width, height
}

// Rotate returns a new buffer holding src rotated clockwise by r. For
// Rotate0 src is returned unchanged.
func Rotate(src []byte, width, height, bpp int, r Rotation) []byte {
	if r == Rotate0 {
		return src
	}
	dstWidth, _ := RotatedSize(width, height, r)
	dst := make([]byte, len(src))
	for sy := 0; sy < height; sy++ {
		for sx := 0; sx < width; sx++ {
			var dx, dy int
			switch r {
			case Rotate90:
				dx, dy = height-1-sy, sx
			case Rotate180:
				dx, dy = width-1-sx, height-1-sy
			case Rotate270:
				dx, dy = sy, width-1-sx
			}
			so := (sy*width + sx) * bpp
			do := (dy*dstWidth + dx) * bpp
			copy(dst[do:do+bpp], src[so:so+bpp])
		}
	}
	return dst
}
