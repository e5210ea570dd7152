package jpeg

import (
	"fmt"
	"io"

	"github.com/tinyjpeg/tinyjpeg/internal/pixel"
)

// Scanner decodes the entropy-coded data of a single interleaved scan one
// MCU row at a time. Each MCU row is reconstructed into per-component
// planes that are independent of the rows before and after it, so any
// prefix of rows can be converted to pixels without decoding the rest.
type Scanner struct {
	h  *Header
	br bitReader

	row     int // next MCU row to decode
	mcu     int // MCUs decoded so far
	nextRST int
	pred    [maxComponents]int32

	planes  [maxComponents][]byte
	strides [maxComponents]int
}

// NewScanner returns a Scanner positioned at the first MCU row of the scan
// described by h. data must be the same bytes h was parsed from.
func NewScanner(h *Header, data []byte) *Scanner {
	s := &Scanner{h: h}
	s.br.reset(data, h.dataStart)
	for i, c := range h.Components {
		s.strides[i] = h.MCUsX * c.H * 8
		s.planes[i] = make([]byte, s.strides[i]*c.V*8)
	}
	return s
}

// Header returns the header the scanner was created with.
func (s *Scanner) Header() *Header { return s.h }

// Done reports whether every MCU row has been decoded.
func (s *Scanner) Done() bool { return s.row >= s.h.MCUsY }

// Row returns the index of the most recently decoded MCU row, or -1.
func (s *Scanner) Row() int { return s.row - 1 }

// Next decodes the next MCU row. It returns io.EOF once every row has been
// decoded.
func (s *Scanner) Next() error {
	if s.Done() {
		return io.EOF
	}
	h := s.h
	var b block
	for mx := 0; mx < h.MCUsX; mx++ {
		if h.RestartInterval > 0 && s.mcu > 0 && s.mcu%h.RestartInterval == 0 {
			if err := s.br.restart(s.nextRST); err != nil {
				return err
			}
			s.nextRST = (s.nextRST + 1) & 7
			s.pred = [maxComponents]int32{}
		}
		for ci := range h.Components {
			c := &h.Components[ci]
			for v := 0; v < c.V; v++ {
				for u := 0; u < c.H; u++ {
					if err := s.decodeBlock(&b, ci); err != nil {
						return fmt.Errorf("MCU row %d: %w", s.row, err)
					}
					idct(&b)
					s.store(&b, ci, (mx*c.H+u)*8, v*8)
				}
			}
		}
		s.mcu++
	}
	s.row++
	return nil
}

func (s *Scanner) decodeBlock(b *block, ci int) error {
	h := s.h
	c := &h.Components[ci]
	q := h.quant[c.Quant]
	*b = block{}

	t, err := h.dc[c.DC].decode(&s.br)
	if err != nil {
		return err
	}
	if t > 11 {
		return fmt.Errorf("%w: DC magnitude category %d", ErrSyntax, t)
	}
	diff, err := s.br.receiveExtend(int(t))
	if err != nil {
		return err
	}
	s.pred[ci] += diff
	b[0] = s.pred[ci] * int32(q[0])

	ac := h.ac[c.AC]
	for zig := 1; zig < blockSize; {
		rs, err := ac.decode(&s.br)
		if err != nil {
			return err
		}
		run, size := int(rs>>4), int(rs&0x0f)
		if size == 0 {
			if run != 0x0f {
				break // EOB
			}
			zig += 16
			continue
		}
		zig += run
		if zig >= blockSize {
			return fmt.Errorf("%w: coefficient run past end of block", ErrSyntax)
		}
		v, err := s.br.receiveExtend(size)
		if err != nil {
			return err
		}
		b[unzig[zig]] = v * int32(q[zig])
		zig++
	}
	return nil
}

func (s *Scanner) store(b *block, ci, x0, y0 int) {
	stride := s.strides[ci]
	plane := s.planes[ci]
	for y := 0; y < 8; y++ {
		row := plane[(y0+y)*stride+x0 : (y0+y)*stride+x0+8]
		for x := 0; x < 8; x++ {
			row[x] = clamp(b[y*8+x] + 128)
		}
	}
}

func clamp(v int32) uint8 {
	if uint32(v) < 256 {
		return uint8(v)
	}
	if v < 0 {
		return 0
	}
	return 255
}

// RowBytes returns the number of bytes Pixels writes for MCU row i.
func (s *Scanner) RowBytes(i int, f pixel.Format) int {
	return s.h.Width * s.h.RowsIn(i) * f.BytesPerPixel()
}

// Pixels converts the most recently decoded MCU row into f and writes it
// to dst, which must hold at least RowBytes(Row(), f) bytes. Only rows
// inside the image are written. It returns the number of bytes written.
func (s *Scanner) Pixels(dst []byte, f pixel.Format) int {
	h := s.h
	i := s.Row()
	if i < 0 {
		return 0
	}
	bpp := f.BytesPerPixel()
	rows := h.RowsIn(i)
	n := 0

	if len(h.Components) == 1 {
		plane, stride := s.planes[0], s.strides[0]
		for y := 0; y < rows; y++ {
			src := plane[y*stride : y*stride+h.Width]
			for _, v := range src {
				pixel.PutGray(dst[n:n+bpp], f, v)
				n += bpp
			}
		}
		return n
	}

	c0, c1, c2 := &h.Components[0], &h.Components[1], &h.Components[2]
	for y := 0; y < rows; y++ {
		p0 := s.planes[0][y*c0.V/h.VMax*s.strides[0]:]
		p1 := s.planes[1][y*c1.V/h.VMax*s.strides[1]:]
		p2 := s.planes[2][y*c2.V/h.VMax*s.strides[2]:]
		for x := 0; x < h.Width; x++ {
			a := p0[x*c0.H/h.HMax]
			b := p1[x*c1.H/h.HMax]
			c := p2[x*c2.H/h.HMax]
			if h.RGB {
				pixel.PutRGB(dst[n:n+bpp], f, a, b, c)
			} else {
				pixel.PutYCbCr(dst[n:n+bpp], f, a, b, c)
			}
			n += bpp
		}
	}
	return n
}
