// Package jpeg implements a baseline JPEG decoder that can stop after any
// MCU row, and a baseline JPEG encoder.
package jpeg

import (
	"errors"
	"fmt"
)

var (
	// ErrNotJPEG indicates the data does not start with an SOI marker.
	ErrNotJPEG = errors.New("jpeg: missing SOI marker")

	// ErrSyntax indicates a malformed segment or entropy-coded stream.
	ErrSyntax = errors.New("jpeg: malformed data")

	// ErrTruncated indicates the data ends before the image is complete.
	ErrTruncated = errors.New("jpeg: unexpected end of data")

	// ErrUnsupported indicates a valid stream using a feature this codec
	// does not implement.
	ErrUnsupported = errors.New("jpeg: unsupported feature")
)

const maxComponents = 3

// Component describes one colour component of a frame.
type Component struct {
	ID    byte
	H, V  int // sampling factors
	Quant int // quantization table selector
	DC    int // DC Huffman table selector
	AC    int // AC Huffman table selector
}

// Header is the parsed content of every segment up to the first scan. It is
// not modified after ParseHeader returns.
type Header struct {
	Width, Height int
	Components    []Component
	// RGB is set when the components hold R, G, B rather than Y'CbCr.
	RGB bool

	HMax, VMax      int
	MCUsX, MCUsY    int
	RestartInterval int

	quant [4]*[blockSize]uint16
	dc    [4]*huffman
	ac    [4]*huffman

	// dataStart is the offset of the first entropy-coded byte.
	dataStart int
}

// MCUWidth returns the width in pixels of one MCU.
func (h *Header) MCUWidth() int { return 8 * h.HMax }

// MCUHeight returns the height in pixels of one MCU, which is also the
// height of one decoded block row.
func (h *Header) MCUHeight() int { return 8 * h.VMax }

// MCURows returns the number of MCU rows in the scan.
func (h *Header) MCURows() int { return h.MCUsY }

// RowsIn returns how many image rows MCU row i covers.
func (h *Header) RowsIn(i int) int {
	return min(h.MCUHeight(), h.Height-i*h.MCUHeight())
}

// Subsampling returns the chroma subsampling as a J:a:b string, or "gray".
func (h *Header) Subsampling() string {
	if len(h.Components) == 1 {
		return "gray"
	}
	c := h.Components[1]
	switch {
	case h.HMax == c.H && h.VMax == c.V:
		return "4:4:4"
	case h.HMax == 2*c.H && h.VMax == c.V:
		return "4:2:2"
	case h.HMax == 2*c.H && h.VMax == 2*c.V:
		return "4:2:0"
	case h.HMax == c.H && h.VMax == 2*c.V:
		return "4:4:0"
	case h.HMax == 4*c.H && h.VMax == c.V:
		return "4:1:1"
	default:
		return fmt.Sprintf("%dx%d", h.HMax/c.H, h.VMax/c.V)
	}
}

// headerParser walks marker segments. Methods return errors wrapping the
// package sentinels.
type headerParser struct {
	data []byte
	pos  int
	h    *Header

	sawSOF    bool
	adobe     bool
	adobeXfrm byte
}

// ParseHeader parses data up to and including the first SOS segment.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < 2 || data[0] != 0xff || data[1] != soi {
		return nil, ErrNotJPEG
	}
	p := &headerParser{data: data, pos: 2, h: &Header{}}
	if err := p.loadDefaultTables(); err != nil {
		return nil, err
	}

	for {
		marker, err := p.nextMarker()
		if err != nil {
			return nil, err
		}
		switch {
		case marker == sof0 || marker == sof1:
			err = p.parseSOF()
		case marker == sof2:
			return nil, fmt.Errorf("%w: progressive JPEG", ErrUnsupported)
		case marker >= 0xc3 && marker <= 0xcf && marker != dht && marker != 0xc8 && marker != dac:
			return nil, fmt.Errorf("%w: SOF%d frame", ErrUnsupported, marker-sof0)
		case marker == dac:
			return nil, fmt.Errorf("%w: arithmetic coding", ErrUnsupported)
		case marker == dht:
			err = p.parseDHT()
		case marker == dqt:
			err = p.parseDQT()
		case marker == dri:
			err = p.parseDRI()
		case marker == app14:
			err = p.parseAPP14()
		case marker == sos:
			if err := p.parseSOS(); err != nil {
				return nil, err
			}
			return p.h, nil
		case marker == eoi:
			return nil, fmt.Errorf("%w: EOI before first scan", ErrSyntax)
		case marker >= rst0 && marker <= rst7:
			return nil, fmt.Errorf("%w: RST marker outside scan", ErrSyntax)
		default:
			// APPn, COM, DNL and anything else with a length field.
			err = p.skipSegment()
		}
		if err != nil {
			return nil, err
		}
	}
}

func (p *headerParser) loadDefaultTables() error {
	for i, s := range annexK {
		t, err := newHuffman(s)
		if err != nil {
			return err
		}
		id := i / 2
		if i%2 == 0 {
			p.h.dc[id] = t
		} else {
			p.h.ac[id] = t
		}
	}
	return nil
}

// nextMarker finds the next marker, skipping fill bytes.
func (p *headerParser) nextMarker() (byte, error) {
	if p.pos >= len(p.data) {
		return 0, fmt.Errorf("%w: no scan found", ErrTruncated)
	}
	if p.data[p.pos] != 0xff {
		return 0, fmt.Errorf("%w: 0xFF expected at offset %d", ErrSyntax, p.pos)
	}
	for p.pos < len(p.data) && p.data[p.pos] == 0xff {
		p.pos++
	}
	if p.pos >= len(p.data) {
		return 0, fmt.Errorf("%w: no scan found", ErrTruncated)
	}
	m := p.data[p.pos]
	p.pos++
	if m == 0 {
		return 0, fmt.Errorf("%w: invalid marker 0", ErrSyntax)
	}
	return m, nil
}

// segment returns the payload of the segment at pos and advances past it.
func (p *headerParser) segment() ([]byte, error) {
	if p.pos+2 > len(p.data) {
		return nil, fmt.Errorf("%w: segment length", ErrTruncated)
	}
	n := int(p.data[p.pos])<<8 | int(p.data[p.pos+1])
	if n < 2 {
		return nil, fmt.Errorf("%w: segment length %d", ErrSyntax, n)
	}
	if p.pos+n > len(p.data) {
		return nil, fmt.Errorf("%w: segment of %d bytes", ErrTruncated, n)
	}
	seg := p.data[p.pos+2 : p.pos+n]
	p.pos += n
	return seg, nil
}

func (p *headerParser) skipSegment() error {
	_, err := p.segment()
	return err
}

func (p *headerParser) parseSOF() error {
	if p.sawSOF {
		return fmt.Errorf("%w: multiple SOF segments", ErrSyntax)
	}
	p.sawSOF = true
	seg, err := p.segment()
	if err != nil {
		return err
	}
	if len(seg) < 6 {
		return fmt.Errorf("%w: SOF too short", ErrSyntax)
	}
	if seg[0] != 8 {
		return fmt.Errorf("%w: %d-bit precision", ErrUnsupported, seg[0])
	}
	h := p.h
	h.Height = int(seg[1])<<8 | int(seg[2])
	h.Width = int(seg[3])<<8 | int(seg[4])
	if h.Width == 0 {
		return fmt.Errorf("%w: zero width", ErrSyntax)
	}
	if h.Height == 0 {
		// Height deferred to a DNL segment.
		return fmt.Errorf("%w: image height not declared in frame header", ErrSyntax)
	}

	n := int(seg[5])
	switch n {
	case 1, 3:
	case 4:
		return fmt.Errorf("%w: CMYK images", ErrUnsupported)
	default:
		return fmt.Errorf("%w: %d components", ErrSyntax, n)
	}
	if len(seg) != 6+3*n {
		return fmt.Errorf("%w: SOF length", ErrSyntax)
	}

	h.Components = make([]Component, n)
	for i := range h.Components {
		c := &h.Components[i]
		b := seg[6+3*i:]
		c.ID = b[0]
		c.H, c.V = int(b[1]>>4), int(b[1]&0x0f)
		c.Quant = int(b[2])
		if c.H < 1 || c.H > 4 || c.V < 1 || c.V > 4 {
			return fmt.Errorf("%w: sampling factor %dx%d", ErrSyntax, c.H, c.V)
		}
		if c.Quant > 3 {
			return fmt.Errorf("%w: quantization selector %d", ErrSyntax, c.Quant)
		}
		for j := 0; j < i; j++ {
			if h.Components[j].ID == c.ID {
				return fmt.Errorf("%w: repeated component id %d", ErrSyntax, c.ID)
			}
		}
	}

	if n == 1 {
		// A single component scan is never interleaved: its MCU is one block.
		h.Components[0].H, h.Components[0].V = 1, 1
	}
	for _, c := range h.Components {
		h.HMax = max(h.HMax, c.H)
		h.VMax = max(h.VMax, c.V)
	}
	for _, c := range h.Components {
		if h.HMax%c.H != 0 || h.VMax%c.V != 0 {
			return fmt.Errorf("%w: fractional sampling %dx%d of %dx%d", ErrUnsupported, c.H, c.V, h.HMax, h.VMax)
		}
	}
	blocks := 0
	for _, c := range h.Components {
		blocks += c.H * c.V
	}
	if blocks > 10 {
		return fmt.Errorf("%w: %d blocks per MCU", ErrSyntax, blocks)
	}

	h.MCUsX = (h.Width + h.MCUWidth() - 1) / h.MCUWidth()
	h.MCUsY = (h.Height + h.MCUHeight() - 1) / h.MCUHeight()

	if n == 3 {
		ids := [3]byte{h.Components[0].ID, h.Components[1].ID, h.Components[2].ID}
		h.RGB = ids == [3]byte{'R', 'G', 'B'}
	}
	return nil
}

func (p *headerParser) parseDHT() error {
	seg, err := p.segment()
	if err != nil {
		return err
	}
	for len(seg) > 0 {
		if len(seg) < 17 {
			return fmt.Errorf("%w: DHT too short", ErrSyntax)
		}
		class, id := seg[0]>>4, seg[0]&0x0f
		if class > 1 || id > 3 {
			return fmt.Errorf("%w: Huffman table class %d id %d", ErrSyntax, class, id)
		}
		var s huffmanSpec
		copy(s.count[:], seg[1:17])
		n := 0
		for _, c := range s.count {
			n += int(c)
		}
		if len(seg) < 17+n {
			return fmt.Errorf("%w: DHT values", ErrSyntax)
		}
		s.value = seg[17 : 17+n]
		t, err := newHuffman(s)
		if err != nil {
			return err
		}
		if class == 0 {
			p.h.dc[id] = t
		} else {
			p.h.ac[id] = t
		}
		seg = seg[17+n:]
	}
	return nil
}

func (p *headerParser) parseDQT() error {
	seg, err := p.segment()
	if err != nil {
		return err
	}
	for len(seg) > 0 {
		pq, id := seg[0]>>4, seg[0]&0x0f
		if id > 3 || pq > 1 {
			return fmt.Errorf("%w: quantization table %d precision %d", ErrSyntax, id, pq)
		}
		size := blockSize
		if pq == 1 {
			size *= 2
		}
		if len(seg) < 1+size {
			return fmt.Errorf("%w: DQT too short", ErrSyntax)
		}
		t := new([blockSize]uint16)
		for zig := 0; zig < blockSize; zig++ {
			if pq == 0 {
				t[zig] = uint16(seg[1+zig])
			} else {
				t[zig] = uint16(seg[1+2*zig])<<8 | uint16(seg[2+2*zig])
			}
		}
		p.h.quant[id] = t
		seg = seg[1+size:]
	}
	return nil
}

func (p *headerParser) parseDRI() error {
	seg, err := p.segment()
	if err != nil {
		return err
	}
	if len(seg) != 2 {
		return fmt.Errorf("%w: DRI length", ErrSyntax)
	}
	p.h.RestartInterval = int(seg[0])<<8 | int(seg[1])
	return nil
}

func (p *headerParser) parseAPP14() error {
	seg, err := p.segment()
	if err != nil {
		return err
	}
	if len(seg) >= 12 && string(seg[:5]) == "Adobe" {
		p.adobe = true
		p.adobeXfrm = seg[11]
	}
	return nil
}

func (p *headerParser) parseSOS() error {
	h := p.h
	if !p.sawSOF {
		return fmt.Errorf("%w: SOS before SOF", ErrSyntax)
	}
	seg, err := p.segment()
	if err != nil {
		return err
	}
	if len(seg) < 1 {
		return fmt.Errorf("%w: SOS too short", ErrSyntax)
	}
	n := int(seg[0])
	if len(seg) != 4+2*n {
		return fmt.Errorf("%w: SOS length", ErrSyntax)
	}
	if n != len(h.Components) {
		return fmt.Errorf("%w: non-interleaved scan of %d/%d components", ErrUnsupported, n, len(h.Components))
	}
	for i := 0; i < n; i++ {
		id, tables := seg[1+2*i], seg[2+2*i]
		c := &h.Components[i]
		if c.ID != id {
			return fmt.Errorf("%w: scan component order", ErrUnsupported)
		}
		c.DC, c.AC = int(tables>>4), int(tables&0x0f)
		if c.DC > 3 || c.AC > 3 {
			return fmt.Errorf("%w: Huffman selector", ErrSyntax)
		}
		if h.dc[c.DC] == nil || h.ac[c.AC] == nil {
			return fmt.Errorf("%w: undefined Huffman table", ErrSyntax)
		}
		if h.quant[c.Quant] == nil {
			return fmt.Errorf("%w: undefined quantization table %d", ErrSyntax, c.Quant)
		}
	}
	ss, se, ahal := seg[1+2*n], seg[2+2*n], seg[3+2*n]
	if ss != 0 || se != 63 || ahal != 0 {
		return fmt.Errorf("%w: spectral selection in sequential scan", ErrSyntax)
	}

	if p.adobe && len(h.Components) == 3 {
		h.RGB = p.adobeXfrm == 0
	}

	// Every block costs at least one bit, so a frame whose declared size
	// cannot fit in the remaining bytes is rejected before anything is
	// allocated for it.
	perMCU := 0
	for _, c := range h.Components {
		perMCU += c.H * c.V
	}
	if blocks, avail := int64(h.MCUsX)*int64(h.MCUsY)*int64(perMCU), int64(len(p.data)-p.pos)*8; avail < blocks {
		return fmt.Errorf("%w: %d bytes of scan data for %d blocks", ErrTruncated, len(p.data)-p.pos, blocks)
	}
	h.dataStart = p.pos
	return nil
}
