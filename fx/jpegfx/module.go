// Package jpegfx provides an fx module for a tinyjpeg Codec.
package jpegfx

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tinyjpeg/tinyjpeg"
	"github.com/tinyjpeg/tinyjpeg/internal/stats"
	"github.com/tinyjpeg/tinyjpeg/internal/stats/logger"
	promstats "github.com/tinyjpeg/tinyjpeg/internal/stats/prometheus"
)

// Config holds optional Codec configuration.
type Config struct {
	// HeaderCacheSize is the number of parsed headers each Decoder keeps.
	// Zero disables the cache.
	HeaderCacheSize int
}

// Module provides a *tinyjpeg.Codec.
// Requires a *zap.Logger. If a prometheus.Registerer is provided, metrics
// are exported through it; otherwise they are logged at debug level.
var Module = fx.Module("tinyjpeg",
	fx.Provide(
		newStatsCollector,
		newCodec,
	),
)

// StatsParams holds dependencies for creating the stats collector.
type StatsParams struct {
	fx.In

	Logger     *zap.Logger
	Registerer prometheus.Registerer `optional:"true"`
}

func newStatsCollector(p StatsParams) stats.Collector {
	if p.Registerer != nil {
		return promstats.New(p.Registerer)
	}
	return logger.New(p.Logger.Named("tinyjpeg"))
}

// Params holds dependencies for creating the codec.
type Params struct {
	fx.In

	Config    Config `optional:"true"`
	Logger    *zap.Logger
	Collector stats.Collector
}

// Result holds the provided codec.
type Result struct {
	fx.Out

	Codec *tinyjpeg.Codec
}

func newCodec(p Params) Result {
	codec := tinyjpeg.New(
		tinyjpeg.WithStats(p.Collector),
		tinyjpeg.WithLogger(p.Logger.Named("tinyjpeg")),
		tinyjpeg.WithHeaderCache(p.Config.HeaderCacheSize),
	)
	return Result{Codec: codec}
}
