package jpeg

import "fmt"

// bitReader reads MSB-first bits from entropy-coded data, removing byte
// stuffing. It never reads past a marker: once one is reached, or the data
// runs out, it appends zero padding bits so that lookahead keeps working,
// and consuming any of that padding is reported as truncation.
type bitReader struct {
	data []byte
	pos  int

	acc   uint64
	n     int // valid bits in acc, padding included
	pad   int // padding bits at the bottom of acc
	ended bool
}

func (r *bitReader) reset(data []byte, pos int) {
	*r = bitReader{data: data, pos: pos}
}

// fill tops acc up to at least 57 bits.
func (r *bitReader) fill() {
	for r.n <= 56 {
		b, ok := r.nextByte()
		if !ok {
			r.pad += 8
		}
		r.acc |= uint64(b) << (56 - r.n)
		r.n += 8
	}
}

func (r *bitReader) nextByte() (byte, bool) {
	if r.ended || r.pos >= len(r.data) {
		r.ended = true
		return 0, false
	}
	b := r.data[r.pos]
	if b != 0xff {
		r.pos++
		return b, true
	}
	if r.pos+1 >= len(r.data) {
		r.ended = true
		return 0, false
	}
	if r.data[r.pos+1] == 0x00 {
		r.pos += 2
		return 0xff, true
	}
	// A marker. pos stays on its 0xFF.
	r.ended = true
	return 0, false
}

// peek returns the next n bits without consuming them. fill must have been
// called first.
func (r *bitReader) peek(n int) uint32 {
	return uint32(r.acc >> (64 - n))
}

func (r *bitReader) skip(n int) error {
	r.acc <<= n
	r.n -= n
	if r.n < r.pad {
		return fmt.Errorf("%w: entropy-coded data ends early", ErrTruncated)
	}
	return nil
}

func (r *bitReader) readBits(n int) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	r.fill()
	v := r.peek(n)
	return v, r.skip(n)
}

// receiveExtend reads an n-bit magnitude and sign-extends it (section F.2.2.1).
func (r *bitReader) receiveExtend(n int) (int32, error) {
	if n == 0 {
		return 0, nil
	}
	if n > 16 {
		return 0, fmt.Errorf("%w: coefficient size %d", ErrSyntax, n)
	}
	v, err := r.readBits(n)
	if err != nil {
		return 0, err
	}
	x := int32(v)
	if x < 1<<(n-1) {
		x += -1<<n + 1
	}
	return x, nil
}

// restart discards buffered bits and consumes the expected RSTn marker,
// skipping any fill bytes before it.
func (r *bitReader) restart(expected int) error {
	// Buffered whole bytes were never past a marker, so the marker is at pos.
	pos := r.pos
	for pos < len(r.data) && r.data[pos] == 0xff && pos+1 < len(r.data) && r.data[pos+1] == 0xff {
		pos++
	}
	if pos+1 >= len(r.data) {
		return fmt.Errorf("%w: missing restart marker", ErrTruncated)
	}
	if r.data[pos] != 0xff || r.data[pos+1] != byte(rst0+expected) {
		return fmt.Errorf("%w: expected RST%d marker", ErrSyntax, expected)
	}
	r.reset(r.data, pos+2)
	return nil
}
