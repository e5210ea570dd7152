package tinyjpeg

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/tinyjpeg/tinyjpeg/internal/headercache"
	"github.com/tinyjpeg/tinyjpeg/internal/jpeg"
	"github.com/tinyjpeg/tinyjpeg/internal/pixel"
	"github.com/tinyjpeg/tinyjpeg/internal/stats"
)

// DecoderConfig is the fixed configuration of a Decoder.
type DecoderConfig struct {
	// Format is the layout of the returned pixels.
	Format PixelFormat
	// Rotation is applied to whole-image output. It must be Rotate0 in
	// block mode.
	Rotation Rotation
	// Block makes each Decode call return the next horizontal strip of
	// the image instead of the whole image.
	Block bool
}

// ImageInfo describes a bitstream as a particular Decoder would decode it.
type ImageInfo struct {
	// Width and Height are the dimensions stored in the bitstream.
	Width, Height int
	// OutputWidth and OutputHeight are the dimensions after rotation.
	OutputWidth, OutputHeight int
	Components                int
	Subsampling               string
	RestartInterval           int
	// Blocks is what BlockCount returns for the bitstream.
	Blocks int
	// BlockHeight is the number of image rows in every block but the last.
	BlockHeight int
	// OutputLen is the length of a whole-image Decode result.
	OutputLen int
}

// Decoder decodes JPEG bitstreams into raw pixels.
//
// In block mode a Decoder keeps a cursor over the image's MCU rows: each
// Decode call returns the next row of blocks, and the concatenation of all
// of them equals the whole-image output byte for byte. Passing a different
// bitstream starts a new sequence. Rewriting the current buffer in place
// with a new image of the same length is not detected; call Reset first. Once every block has been returned,
// Decode fails with ErrSequenceExhausted until BlockCount or Reset rewinds
// the cursor.
//
// A Decoder is not safe for concurrent use. Use one per goroutine.
type Decoder struct {
	cfg    DecoderConfig
	stats  stats.Collector
	logger *zap.Logger
	cache  *headercache.Cache

	// The block cursor and the bitstream it reads. curID is the hash of
	// curData, computed only when a different buffer of the same length
	// has to be compared against it.
	cur       *jpeg.Scanner
	curData   []byte
	curID     headercache.Key
	curHashed bool
}

// NewDecoder creates a Decoder. It fails with ErrUnsupportedFormat for an
// unknown format and ErrInvalidConfig for an unknown rotation or for block
// mode combined with a rotation.
func NewDecoder(cfg DecoderConfig, opts ...Option) (*Decoder, error) {
	return newDecoder(cfg, buildOptions(defaultOptions(), opts))
}

func newDecoder(cfg DecoderConfig, o options) (*Decoder, error) {
	if !cfg.Format.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, cfg.Format)
	}
	if !cfg.Rotation.valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, cfg.Rotation)
	}
	if cfg.Block && cfg.Rotation != Rotate0 {
		return nil, fmt.Errorf("%w: block decoding with rotation %v", ErrInvalidConfig, cfg.Rotation)
	}

	d := &Decoder{
		cfg:    cfg,
		stats:  o.stats,
		logger: o.logger,
	}
	if o.headerCacheSize > 0 {
		cache, err := headercache.New(o.headerCacheSize, o.stats)
		if err != nil {
			return nil, fmt.Errorf("creating header cache: %w", err)
		}
		d.cache = cache
	}

	d.logger.Debug("decoder initialized",
		zap.Stringer("format", cfg.Format),
		zap.Stringer("rotation", cfg.Rotation),
		zap.Bool("block", cfg.Block),
		zap.Int("headerCacheSize", o.headerCacheSize),
	)
	return d, nil
}

// Config returns the configuration the Decoder was created with.
func (d *Decoder) Config() DecoderConfig { return d.cfg }

// Decode decodes data. In whole-image mode it returns
// OutputWidth*OutputHeight*BytesPerPixel bytes. In block mode it returns
// the next block: Width*rows*BytesPerPixel bytes, where rows is the block
// height except for the last block, which holds only the remaining rows.
//
// Corrupt or truncated input fails with ErrInvalidBitstream and never
// yields partial output.
func (d *Decoder) Decode(data []byte) ([]byte, error) {
	start := time.Now()

	var (
		out    []byte
		blocks int
		err    error
	)
	if d.cfg.Block {
		out, err = d.decodeBlock(data)
		blocks = 1
	} else {
		out, blocks, err = d.decodeImage(data)
	}
	if err != nil {
		d.stats.IncCounter(stats.MetricDecodeErrors, 1)
		if !errors.Is(err, ErrSequenceExhausted) {
			d.logger.Debug("decode failed", zap.Int("len", len(data)), zap.Error(err))
		}
		return nil, &DecodeError{Op: "decode", Err: err}
	}

	d.stats.IncCounter(stats.MetricDecodes, 1)
	d.stats.IncCounter(stats.MetricBlocksDecoded, int64(blocks))
	d.stats.ObserveHistogram(stats.MetricDecodeSeconds, time.Since(start).Seconds())
	return out, nil
}

func (d *Decoder) decodeImage(data []byte) ([]byte, int, error) {
	h, err := d.header(data)
	if err != nil {
		return nil, 0, err
	}

	// The output grows one MCU row at a time, so a stream that declares
	// a huge frame but ends early fails before the full buffer exists.
	f := pixel.Format(d.cfg.Format)
	s := jpeg.NewScanner(h, data)
	var out []byte
	for !s.Done() {
		if err := s.Next(); err != nil {
			return nil, 0, bitstreamError(err)
		}
		n, rb := len(out), s.RowBytes(s.Row(), f)
		out = slices.Grow(out, rb)[:n+rb]
		s.Pixels(out[n:], f)
	}

	if d.cfg.Rotation != Rotate0 {
		out = pixel.Rotate(out, h.Width, h.Height, f.BytesPerPixel(), pixel.Rotation(d.cfg.Rotation))
	}

	d.logger.Debug("decoded image",
		zap.Int("width", h.Width),
		zap.Int("height", h.Height),
		zap.String("subsampling", h.Subsampling()),
		zap.Int("blocks", h.MCURows()),
	)
	return out, h.MCURows(), nil
}

func (d *Decoder) decodeBlock(data []byte) ([]byte, error) {
	if !d.sameStream(data) {
		h, err := d.header(data)
		if err != nil {
			return nil, err
		}
		d.startCursor(h, data)
	}
	if d.cur.Done() {
		return nil, ErrSequenceExhausted
	}

	if err := d.cur.Next(); err != nil {
		// The scanner state is unusable after an error.
		d.Reset()
		return nil, bitstreamError(err)
	}
	f := pixel.Format(d.cfg.Format)
	out := make([]byte, d.cur.RowBytes(d.cur.Row(), f))
	d.cur.Pixels(out, f)
	return out, nil
}

// BlockCount returns the number of Decode calls needed to decode data: the
// number of blocks in block mode, 1 otherwise. In block mode it also rewinds
// the cursor if data differs from the current bitstream or if every block
// has already been returned.
func (d *Decoder) BlockCount(data []byte) (int, error) {
	h, err := d.header(data)
	if err != nil {
		return 0, &DecodeError{Op: "block count", Err: err}
	}
	if !d.cfg.Block {
		return 1, nil
	}
	if !d.sameStream(data) || d.cur.Done() {
		d.startCursor(h, data)
	}
	return h.MCURows(), nil
}

// Info parses the headers of data without decoding any pixels. It does not
// move the block cursor.
func (d *Decoder) Info(data []byte) (ImageInfo, error) {
	h, err := d.header(data)
	if err != nil {
		return ImageInfo{}, &DecodeError{Op: "info", Err: err}
	}

	info := ImageInfo{
		Width:           h.Width,
		Height:          h.Height,
		Components:      len(h.Components),
		Subsampling:     h.Subsampling(),
		RestartInterval: h.RestartInterval,
		Blocks:          1,
		BlockHeight:     h.Height,
		OutputLen:       h.Width * h.Height * d.cfg.Format.BytesPerPixel(),
	}
	info.OutputWidth, info.OutputHeight = pixel.RotatedSize(h.Width, h.Height, pixel.Rotation(d.cfg.Rotation))
	if d.cfg.Block {
		info.Blocks = h.MCURows()
		info.BlockHeight = min(h.MCUHeight(), h.Height)
	}
	return info, nil
}

// Reset rewinds the block cursor so that the next Decode call starts a new
// sequence.
func (d *Decoder) Reset() {
	d.cur, d.curData = nil, nil
}

func (d *Decoder) startCursor(h *jpeg.Header, data []byte) {
	d.cur, d.curData, d.curHashed = jpeg.NewScanner(h, data), data, false
}

// sameStream reports whether data is the bitstream the cursor is reading.
// The same buffer is recognised without reading it; a different buffer of
// the same length is compared by hash.
func (d *Decoder) sameStream(data []byte) bool {
	switch {
	case d.cur == nil || len(data) != len(d.curData):
		return false
	case len(data) == 0 || &data[0] == &d.curData[0]:
		return true
	}
	if !d.curHashed {
		d.curID, d.curHashed = headercache.KeyOf(d.curData), true
	}
	return headercache.KeyOf(data) == d.curID
}

// header returns the parsed header of data, from the cache when enabled.
func (d *Decoder) header(data []byte) (*jpeg.Header, error) {
	var id headercache.Key
	if d.cache != nil {
		id = headercache.KeyOf(data)
		if h, ok := d.cache.Get(id); ok {
			return h, nil
		}
	}

	h, err := jpeg.ParseHeader(data)
	if err != nil {
		return nil, bitstreamError(err)
	}
	if d.cache != nil {
		d.cache.Add(id, h)
	}
	return h, nil
}
