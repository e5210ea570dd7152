package tinyjpeg

import (
	"sync"
	"testing"

	"github.com/tinyjpeg/tinyjpeg/internal/pixel"
	"github.com/tinyjpeg/tinyjpeg/internal/stats"
)

var allFormats = []PixelFormat{RGB565BE, RGB565LE, RGB888, CbYCrY}

// testPixels returns a w x h image in f: a colour gradient with a little
// deterministic texture.
func testPixels(w, h int, f PixelFormat) []byte {
	bpp := f.BytesPerPixel()
	pix := make([]byte, w*h*bpp)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := uint8(x*247/max(w-1, 1)) + uint8(x*y)&7
			g := uint8(y * 255 / max(h-1, 1))
			b := uint8((x + y) * 255 / max(w+h-2, 1))
			i := (y*w + x) * bpp
			pixel.PutRGB(pix[i:i+bpp], pixel.Format(f), r, g, b)
		}
	}
	return pix
}

// testJPEG encodes a w x h test image.
func testJPEG(t testing.TB, w, h int, sub Subsampling) []byte {
	t.Helper()
	enc, err := NewEncoder(EncoderConfig{Format: RGB888, Quality: 80, Width: w, Height: h, Subsampling: sub})
	if err != nil {
		t.Fatalf("NewEncoder() error = %v", err)
	}
	data, err := enc.Encode(testPixels(w, h, RGB888))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return data
}

// recorder is a stats.Collector that keeps counter totals.
type recorder struct {
	mu       sync.Mutex
	counters map[string]int64
	observed map[string]int
}

var _ stats.Collector = (*recorder)(nil)

func newRecorder() *recorder {
	return &recorder{counters: make(map[string]int64), observed: make(map[string]int)}
}

func (r *recorder) IncCounter(name string, delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += delta
}

func (r *recorder) SetGauge(string, int64) {}

func (r *recorder) ObserveHistogram(name string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed[name]++
}

func (r *recorder) counter(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}
