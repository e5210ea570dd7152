// Package logger provides a stats collector that writes every observation
// to a zap logger at debug level.
package logger

import (
	"go.uber.org/zap"

	"github.com/tinyjpeg/tinyjpeg/internal/stats"
)

// Collector implements stats.Collector on top of zap.
type Collector struct {
	logger *zap.Logger
}

var _ stats.Collector = (*Collector)(nil)

// New returns a collector logging to l under the "stats" name.
// A nil l discards everything.
func New(l *zap.Logger) *Collector {
	if l == nil {
		l = zap.NewNop()
	}
	return &Collector{logger: l.Named("stats")}
}

func (c *Collector) IncCounter(name string, delta int64) {
	if ce := c.logger.Check(zap.DebugLevel, "counter"); ce != nil {
		ce.Write(zap.String("metric", name), zap.Int64("delta", delta))
	}
}

func (c *Collector) SetGauge(name string, value int64) {
	if ce := c.logger.Check(zap.DebugLevel, "gauge"); ce != nil {
		ce.Write(zap.String("metric", name), zap.Int64("value", value))
	}
}

func (c *Collector) ObserveHistogram(name string, value float64) {
	if ce := c.logger.Check(zap.DebugLevel, "histogram"); ce != nil {
		ce.Write(zap.String("metric", name), zap.Float64("value", value))
	}
}
