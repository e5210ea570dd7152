package tinyjpeg

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tinyjpeg/tinyjpeg/internal/jpeg"
	"github.com/tinyjpeg/tinyjpeg/internal/pixel"
	"github.com/tinyjpeg/tinyjpeg/internal/stats"
)

// MaxDimension is the largest width or height a JPEG frame can declare.
const MaxDimension = jpeg.MaxDimension

// EncoderConfig is the fixed configuration of an Encoder.
type EncoderConfig struct {
	// Format is the layout of the pixels passed to Encode.
	Format PixelFormat
	// Quality ranges from 0 (smallest output) to 100 (best fidelity).
	Quality int
	// Width and Height of every image passed to Encode.
	Width, Height int
	// Subsampling defaults to Subsample420.
	Subsampling Subsampling
	// RestartInterval, if positive, inserts a restart marker every that
	// many MCUs.
	RestartInterval int
}

// Encoder compresses raw pixels of a fixed size and format into baseline
// JPEG. Output depends only on the configuration and the pixels.
//
// An Encoder is not safe for concurrent use. Use one per goroutine.
type Encoder struct {
	cfg    EncoderConfig
	opts   jpeg.EncodeOptions
	stats  stats.Collector
	logger *zap.Logger
}

// NewEncoder creates an Encoder. It fails with ErrUnsupportedFormat for an
// unknown format and ErrInvalidConfig for a quality outside [0, 100],
// dimensions outside [1, MaxDimension], an unknown subsampling or a
// negative restart interval.
func NewEncoder(cfg EncoderConfig, opts ...Option) (*Encoder, error) {
	return newEncoder(cfg, buildOptions(defaultOptions(), opts))
}

func newEncoder(cfg EncoderConfig, o options) (*Encoder, error) {
	switch {
	case !cfg.Format.Valid():
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, cfg.Format)
	case cfg.Quality < 0 || cfg.Quality > 100:
		return nil, fmt.Errorf("%w: quality %d", ErrInvalidConfig, cfg.Quality)
	case cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxDimension || cfg.Height > MaxDimension:
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidConfig, cfg.Width, cfg.Height)
	case !cfg.Subsampling.valid():
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, cfg.Subsampling)
	case cfg.RestartInterval < 0 || cfg.RestartInterval > 0xffff:
		return nil, fmt.Errorf("%w: restart interval %d", ErrInvalidConfig, cfg.RestartInterval)
	}

	e := &Encoder{
		cfg: cfg,
		opts: jpeg.EncodeOptions{
			Width:           cfg.Width,
			Height:          cfg.Height,
			Format:          pixel.Format(cfg.Format),
			Quality:         cfg.Quality,
			Subsampling:     jpeg.Subsampling(cfg.Subsampling),
			RestartInterval: cfg.RestartInterval,
		},
		stats:  o.stats,
		logger: o.logger,
	}

	e.logger.Debug("encoder initialized",
		zap.Stringer("format", cfg.Format),
		zap.Int("quality", cfg.Quality),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Stringer("subsampling", cfg.Subsampling),
	)
	return e, nil
}

// Config returns the configuration the Encoder was created with.
func (e *Encoder) Config() EncoderConfig { return e.cfg }

// ExpectedLen returns the pixel buffer length Encode accepts.
func (e *Encoder) ExpectedLen() int {
	return e.cfg.Width * e.cfg.Height * e.cfg.Format.BytesPerPixel()
}

// Encode compresses pix. A buffer whose length is not ExpectedLen fails with
// ErrSizeMismatch and produces no output.
func (e *Encoder) Encode(pix []byte) ([]byte, error) {
	if want := e.ExpectedLen(); len(pix) != want {
		e.stats.IncCounter(stats.MetricEncodeErrors, 1)
		return nil, &EncodeError{
			Op:  "encode",
			Err: fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(pix), want),
		}
	}

	start := time.Now()
	out, err := jpeg.Encode(pix, e.opts)
	if err != nil {
		e.stats.IncCounter(stats.MetricEncodeErrors, 1)
		return nil, &EncodeError{Op: "encode", Err: err}
	}

	e.stats.IncCounter(stats.MetricEncodes, 1)
	e.stats.ObserveHistogram(stats.MetricEncodeSeconds, time.Since(start).Seconds())
	e.stats.ObserveHistogram(stats.MetricEncodedBytes, float64(len(out)))
	e.logger.Debug("encoded image",
		zap.Int("width", e.cfg.Width),
		zap.Int("height", e.cfg.Height),
		zap.Int("bytes", len(out)),
	)
	return out, nil
}
