// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the library.
const (
	// Decoder metrics.
	MetricDecodes       = "tinyjpeg_decodes_total"
	MetricDecodeErrors  = "tinyjpeg_decode_errors_total"
	MetricBlocksDecoded = "tinyjpeg_blocks_decoded_total"
	MetricDecodeSeconds = "tinyjpeg_decode_seconds"

	// Encoder metrics.
	MetricEncodes       = "tinyjpeg_encodes_total"
	MetricEncodeErrors  = "tinyjpeg_encode_errors_total"
	MetricEncodeSeconds = "tinyjpeg_encode_seconds"
	MetricEncodedBytes  = "tinyjpeg_encoded_bytes"

	// Header cache metrics.
	MetricHeaderCacheHits   = "tinyjpeg_header_cache_hits_total"
	MetricHeaderCacheMisses = "tinyjpeg_header_cache_misses_total"
	MetricHeaderCacheSize   = "tinyjpeg_header_cache_size"
)

// Help returns a description of a known metric, or the name itself.
func Help(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

var help = map[string]string{
	MetricDecodes:           "Decode calls that returned pixels.",
	MetricDecodeErrors:      "Decode calls that failed.",
	MetricBlocksDecoded:     "MCU rows decoded across all decode calls.",
	MetricDecodeSeconds:     "Time spent in a single decode call.",
	MetricEncodes:           "Encode calls that returned a bitstream.",
	MetricEncodeErrors:      "Encode calls that failed.",
	MetricEncodeSeconds:     "Time spent in a single encode call.",
	MetricEncodedBytes:      "Size of each encoded bitstream.",
	MetricHeaderCacheHits:   "Parsed headers served from a decoder's cache.",
	MetricHeaderCacheMisses: "Headers parsed because they were not cached.",
	MetricHeaderCacheSize:   "Headers currently held by the most recently updated cache.",
}

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
