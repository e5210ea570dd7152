// Package tinyjpeg decodes baseline JPEG images into raw pixel buffers and
// encodes raw pixel buffers as baseline JPEG.
//
// A Decoder can return a whole image or, in block mode, one horizontal
// strip per call so that callers with little memory never hold the full
// frame:
//
//	dec, err := tinyjpeg.NewDecoder(tinyjpeg.DecoderConfig{
//	    Format: tinyjpeg.RGB565BE,
//	    Block:  true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	n, err := dec.BlockCount(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for i := 0; i < n; i++ {
//	    strip, err := dec.Decode(data)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    draw(strip)
//	}
package tinyjpeg

import (
	"go.uber.org/zap"
)

// Codec binds shared configuration, such as the logger and stats
// collector, and creates Decoders and Encoders that use it. Handles created
// by one Codec share no mutable state.
//
// A Codec is safe for concurrent use by multiple goroutines. The handles it
// returns are not.
type Codec struct {
	opts options
}

// New creates a new Codec with the given options.
func New(opts ...Option) *Codec {
	c := &Codec{opts: buildOptions(defaultOptions(), opts)}
	c.opts.logger.Debug("codec initialized",
		zap.Int("headerCacheSize", c.opts.headerCacheSize),
	)
	return c
}

// NewDecoder creates a Decoder with the Codec's options, overridden by opts.
func (c *Codec) NewDecoder(cfg DecoderConfig, opts ...Option) (*Decoder, error) {
	return newDecoder(cfg, buildOptions(c.opts, opts))
}

// NewEncoder creates an Encoder with the Codec's options, overridden by opts.
func (c *Codec) NewEncoder(cfg EncoderConfig, opts ...Option) (*Encoder, error) {
	return newEncoder(cfg, buildOptions(c.opts, opts))
}
