package tinyjpeg

import (
	"go.uber.org/zap"

	"github.com/tinyjpeg/tinyjpeg/internal/stats"
)

// Option configures a Codec, Decoder or Encoder.
type Option interface {
	apply(*options)
}

type options struct {
	stats           stats.Collector
	logger          *zap.Logger
	headerCacheSize int
}

func defaultOptions() options {
	return options{
		stats:  stats.NewNoop(),
		logger: zap.NewNop(),
	}
}

type optionFunc func(*options)

var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		if c != nil {
			o.stats = c
		}
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		if l != nil {
			o.logger = l
		}
	})
}

// WithHeaderCache keeps the parsed headers of up to n recently decoded
// streams in each Decoder, so that repeated calls on the same bitstream
// skip header parsing. n <= 0 disables the cache, which is the default.
func WithHeaderCache(n int) Option {
	return optionFunc(func(o *options) {
		o.headerCacheSize = n
	})
}

func buildOptions(base options, opts []Option) options {
	for _, opt := range opts {
		opt.apply(&base)
	}
	return base
}
