package jpeg

import "fmt"

const lutBits = 8

// huffman is a decoding table for one canonical Huffman code.
type huffman struct {
	// lut maps the next lutBits bits of the stream to a value (high byte)
	// and code length + 1 (low byte). Zero means the code is longer than
	// lutBits and the slow path must be used.
	lut [1 << lutBits]uint16
	// maxCode[n] is the largest code of length n+1, or -1 if none.
	maxCode [16]int32
	// valPtr[n] is the index in vals of the first code of length n+1.
	valPtr [16]int32
	// minCode[n] is the smallest code of length n+1.
	minCode [16]int32
	vals    []byte
}

// newHuffman builds a decoding table, validating that the code lengths do
// not oversubscribe the code space.
func newHuffman(s huffmanSpec) (*huffman, error) {
	n := 0
	for _, c := range s.count {
		n += int(c)
	}
	if n == 0 || n > 256 || len(s.value) < n {
		return nil, fmt.Errorf("%w: bad Huffman table size %d", ErrSyntax, n)
	}

	h := &huffman{vals: append([]byte(nil), s.value[:n]...)}
	code, k := int32(0), int32(0)
	for i := 0; i < 16; i++ {
		length := i + 1
		cnt := int32(s.count[i])
		if code+cnt > 1<<length {
			return nil, fmt.Errorf("%w: oversubscribed Huffman table", ErrSyntax)
		}
		if cnt == 0 {
			h.maxCode[i] = -1
		} else {
			h.minCode[i] = code
			h.valPtr[i] = k
			h.maxCode[i] = code + cnt - 1
			if length <= lutBits {
				for j := int32(0); j < cnt; j++ {
					c := code + j
					v := uint16(h.vals[k+j])<<8 | uint16(length+1)
					base := c << (lutBits - length)
					for f := int32(0); f < 1<<(lutBits-length); f++ {
						h.lut[base|f] = v
					}
				}
			}
		}
		code += cnt
		k += cnt
		code <<= 1
	}
	return h, nil
}

// decode reads one Huffman-coded value from r.
func (h *huffman) decode(r *bitReader) (byte, error) {
	r.fill()
	if v := h.lut[r.peek(lutBits)]; v != 0 {
		if err := r.skip(int(v&0xff) - 1); err != nil {
			return 0, err
		}
		return byte(v >> 8), nil
	}

	code := int32(r.peek(16))
	for i := lutBits; i < 16; i++ {
		c := code >> (15 - i)
		if c <= h.maxCode[i] {
			if err := r.skip(i + 1); err != nil {
				return 0, err
			}
			return h.vals[h.valPtr[i]+c-h.minCode[i]], nil
		}
	}
	return 0, fmt.Errorf("%w: bad Huffman code", ErrSyntax)
}
