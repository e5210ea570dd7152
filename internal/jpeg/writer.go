package jpeg

import (
	"bytes"
	"errors"
	"fmt"
	"math/bits"

	"github.com/tinyjpeg/tinyjpeg/internal/pixel"
)

// Subsampling selects the chroma sampling written by Encode.
type Subsampling uint8

const (
	Subsample420 Subsampling = iota
	Subsample422
	Subsample444
	SubsampleGray
)

// String returns the J:a:b notation, or "gray".
func (s Subsampling) String() string {
	switch s {
	case Subsample420:
		return "4:2:0"
	case Subsample422:
		return "4:2:2"
	case Subsample444:
		return "4:4:4"
	case SubsampleGray:
		return "gray"
	default:
		return fmt.Sprintf("Subsampling(%d)", uint8(s))
	}
}

// factors returns the luma sampling factors and the component count.
func (s Subsampling) factors() (h, v, n int) {
	switch s {
	case Subsample420:
		return 2, 2, 3
	case Subsample422:
		return 2, 1, 3
	case SubsampleGray:
		return 1, 1, 1
	default:
		return 1, 1, 3
	}
}

// MaxDimension is the largest width or height a frame header can carry.
const MaxDimension = 65535

// EncodeOptions describes the pixels passed to Encode and how to compress
// them.
type EncodeOptions struct {
	Width, Height int
	Format        pixel.Format
	// Quality is in [0, 100]; 0 is treated as 1.
	Quality     int
	Subsampling Subsampling
	// RestartInterval, if non-zero, is the number of MCUs between RSTn
	// markers.
	RestartInterval int
}

var errBadOptions = errors.New("jpeg: invalid encode options")

// Encode compresses pix, laid out row by row in o.Format, as a baseline
// JFIF stream. The output depends only on pix and o.
func Encode(pix []byte, o EncodeOptions) ([]byte, error) {
	if o.Width <= 0 || o.Height <= 0 || o.Width > MaxDimension || o.Height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", errBadOptions, o.Width, o.Height)
	}
	bpp := o.Format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("%w: pixel format %d", errBadOptions, o.Format)
	}
	if o.Subsampling > SubsampleGray {
		return nil, fmt.Errorf("%w: %v", errBadOptions, o.Subsampling)
	}
	if o.RestartInterval < 0 || o.RestartInterval > 0xffff {
		return nil, fmt.Errorf("%w: restart interval %d", errBadOptions, o.RestartInterval)
	}
	if want := o.Width * o.Height * bpp; len(pix) != want {
		return nil, fmt.Errorf("%w: %d pixel bytes, want %d", errBadOptions, len(pix), want)
	}

	e := &encoder{w: bytes.NewBuffer(make([]byte, 0, len(pix)/4+1024))}
	e.setQuality(o.Quality)
	e.split(pix, o)

	hmax, vmax, n := o.Subsampling.factors()
	e.writeHeader(o, hmax, vmax, n)
	e.writeScan(o, hmax, vmax, n)
	e.writeMarker(eoi)
	return e.w.Bytes(), nil
}

// encoder accumulates the compressed stream. Writes to a bytes.Buffer
// cannot fail.
type encoder struct {
	w *bytes.Buffer

	bits, nBits uint32
	quant       [nQuantIndex][blockSize]byte

	// planes hold full-resolution Y, Cb and Cr samples.
	planes [3][]uint8
	width  int
	height int
}

// huffmanLUT maps a value to its code length (high 8 bits) and code (low
// 24 bits).
type huffmanLUT []uint32

func (h *huffmanLUT) init(s huffmanSpec) {
	maxValue := 0
	for _, v := range s.value {
		maxValue = max(maxValue, int(v))
	}
	*h = make([]uint32, maxValue+1)
	code, k := uint32(0), 0
	for i := 0; i < len(s.count); i++ {
		nBits := uint32(i+1) << 24
		for j := uint8(0); j < s.count[i]; j++ {
			(*h)[s.value[k]] = nBits | code
			code++
			k++
		}
		code <<= 1
	}
}

var encodeLUT [nHuffIndex]huffmanLUT

func init() {
	for i, s := range annexK {
		encodeLUT[i].init(s)
	}
}

func (e *encoder) setQuality(quality int) {
	quality = min(max(quality, 1), 100)
	var scale int
	if quality < 50 {
		scale = 5000 / quality
	} else {
		scale = 200 - quality*2
	}
	for i := range e.quant {
		for j := range e.quant[i] {
			x := (int(unscaledQuant[i][j])*scale + 50) / 100
			e.quant[i][j] = uint8(min(max(x, 1), 255))
		}
	}
}

// split converts pix into Y'CbCr planes.
func (e *encoder) split(pix []byte, o EncodeOptions) {
	n := o.Width * o.Height
	e.width, e.height = o.Width, o.Height
	for i := range e.planes {
		e.planes[i] = make([]uint8, n)
	}
	bpp := o.Format.BytesPerPixel()
	for i := 0; i < n; i++ {
		e.planes[0][i], e.planes[1][i], e.planes[2][i] = pixel.YCbCrAt(pix[i*bpp:], o.Format)
	}
}

func (e *encoder) writeMarker(m byte) {
	e.w.WriteByte(0xff)
	e.w.WriteByte(m)
}

func (e *encoder) writeSegment(m byte, payload ...[]byte) {
	n := 2
	for _, p := range payload {
		n += len(p)
	}
	e.writeMarker(m)
	e.w.WriteByte(byte(n >> 8))
	e.w.WriteByte(byte(n))
	for _, p := range payload {
		e.w.Write(p)
	}
}

var jfif = []byte{'J', 'F', 'I', 'F', 0, 1, 1, 0, 0, 1, 0, 1, 0, 0}

func (e *encoder) writeHeader(o EncodeOptions, hmax, vmax, n int) {
	e.writeMarker(soi)
	e.writeSegment(app0, jfif)

	nq := nQuantIndex
	if n == 1 {
		nq = 1
	}
	var qt []byte
	for i := 0; i < int(nq); i++ {
		qt = append(qt, byte(i))
		qt = append(qt, e.quant[i][:]...)
	}
	e.writeSegment(dqt, qt)

	sof := []byte{8, byte(o.Height >> 8), byte(o.Height), byte(o.Width >> 8), byte(o.Width), byte(n)}
	for i := 0; i < n; i++ {
		sampling, q := byte(0x11), byte(0)
		if i == 0 {
			sampling = byte(hmax<<4 | vmax)
		} else {
			q = 1
		}
		sof = append(sof, byte(i+1), sampling, q)
	}
	e.writeSegment(sof0, sof)

	if ri := o.RestartInterval; ri > 0 {
		e.writeSegment(dri, []byte{byte(ri >> 8), byte(ri)})
	}

	nh := nHuffIndex
	if n == 1 {
		nh = 2
	}
	var ht []byte
	for i := 0; i < int(nh); i++ {
		class, id := byte(i%2), byte(i/2)
		ht = append(ht, class<<4|id)
		ht = append(ht, annexK[i].count[:]...)
		ht = append(ht, annexK[i].value...)
	}
	e.writeSegment(dht, ht)

	scan := []byte{byte(n)}
	for i := 0; i < n; i++ {
		tables := byte(0x00)
		if i > 0 {
			tables = 0x11
		}
		scan = append(scan, byte(i+1), tables)
	}
	scan = append(scan, 0x00, 0x3f, 0x00)
	e.writeSegment(sos, scan)
}

func (e *encoder) writeScan(o EncodeOptions, hmax, vmax, n int) {
	mcusX := (o.Width + 8*hmax - 1) / (8 * hmax)
	mcusY := (o.Height + 8*vmax - 1) / (8 * vmax)
	var (
		b    block
		prev [3]int32
		mcu  int
	)
	for my := 0; my < mcusY; my++ {
		for mx := 0; mx < mcusX; mx++ {
			if ri := o.RestartInterval; ri > 0 && mcu > 0 && mcu%ri == 0 {
				e.flush()
				e.writeMarker(byte(rst0 + (mcu/ri-1)&7))
				prev = [3]int32{}
			}
			mcu++
			for ci := 0; ci < n; ci++ {
				ch, cv, q := 1, 1, quantChrominance
				if ci == 0 {
					ch, cv, q = hmax, vmax, quantLuminance
				}
				for v := 0; v < cv; v++ {
					for u := 0; u < ch; u++ {
						e.fillBlock(&b, ci, (mx*ch+u)*8, (my*cv+v)*8, hmax/ch, vmax/cv)
						prev[ci] = e.writeBlock(&b, q, prev[ci])
					}
				}
			}
		}
	}
	e.flush()
}

// flush pads the pending bits to a byte boundary with 1s.
func (e *encoder) flush() {
	e.emit(0x7f, 7)
	e.bits, e.nBits = 0, 0
}

// fillBlock loads the 8x8 block of component ci whose top-left sample is at
// (x0, y0) in that component's coordinates. Each sample averages the sx*sy
// image pixels it covers. Pixels beyond the image edge replicate the edge.
func (e *encoder) fillBlock(b *block, ci, x0, y0, sx, sy int) {
	plane := e.planes[ci]
	area := int32(sx * sy)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			var sum int32
			for j := 0; j < sy; j++ {
				py := min((y0+y)*sy+j, e.height-1)
				for i := 0; i < sx; i++ {
					px := min((x0+x)*sx+i, e.width-1)
					sum += int32(plane[py*e.width+px])
				}
			}
			b[y*8+x] = (sum + area/2) / area
		}
	}
}

// div returns a/b rounded to the nearest integer, instead of rounded to zero.
func div(a, b int32) int32 {
	if a >= 0 {
		return (a + (b >> 1)) / b
	}
	return -((-a + (b >> 1)) / b)
}

// writeBlock transforms, quantizes and emits b, returning its quantized DC.
func (e *encoder) writeBlock(b *block, q quantIndex, prevDC int32) int32 {
	fdct(b)
	// fdct output is scaled by 8.
	dc := div(b[0], 8*int32(e.quant[q][0]))
	e.emitHuffRLE(huffIndex(2*q), 0, dc-prevDC)

	h := huffIndex(2*q + 1)
	run := int32(0)
	for zig := 1; zig < blockSize; zig++ {
		ac := div(b[unzig[zig]], 8*int32(e.quant[q][zig]))
		if ac == 0 {
			run++
			continue
		}
		for run > 15 {
			e.emitHuff(h, 0xf0)
			run -= 16
		}
		e.emitHuffRLE(h, run, ac)
		run = 0
	}
	if run > 0 {
		e.emitHuff(h, 0x00)
	}
	return dc
}

// emit writes the low nBits of bits, stuffing a 0x00 after every 0xFF.
func (e *encoder) emit(bits, nBits uint32) {
	nBits += e.nBits
	bits <<= 32 - nBits
	bits |= e.bits
	for nBits >= 8 {
		c := uint8(bits >> 24)
		e.w.WriteByte(c)
		if c == 0xff {
			e.w.WriteByte(0x00)
		}
		bits <<= 8
		nBits -= 8
	}
	e.bits, e.nBits = bits, nBits
}

func (e *encoder) emitHuff(h huffIndex, value int32) {
	x := encodeLUT[h][value]
	e.emit(x&(1<<24-1), x>>24)
}

// emitHuffRLE emits a run length and the magnitude category of value,
// followed by value's low bits.
func (e *encoder) emitHuffRLE(h huffIndex, run, value int32) {
	a, v := value, value
	if a < 0 {
		a, v = -value, value-1
	}
	nBits := uint32(bits.Len32(uint32(a)))
	e.emitHuff(h, run<<4|int32(nBits))
	if nBits > 0 {
		e.emit(uint32(v)&(1<<nBits-1), nBits)
	}
}
