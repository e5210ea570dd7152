package tinyjpeg

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tinyjpeg/tinyjpeg/internal/fidelity"
	"github.com/tinyjpeg/tinyjpeg/internal/pixel"
	"github.com/tinyjpeg/tinyjpeg/internal/stats"
)

func TestNewDecoder_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  DecoderConfig
		want error
	}{
		{"zero format", DecoderConfig{}, ErrUnsupportedFormat},
		{"unknown format", DecoderConfig{Format: PixelFormat(99)}, ErrUnsupportedFormat},
		{"unknown rotation", DecoderConfig{Format: RGB888, Rotation: Rotation(4)}, ErrInvalidConfig},
		{"block with rotation", DecoderConfig{Format: RGB888, Rotation: Rotate90, Block: true}, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewDecoder() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecoder_Decode_OutputSize(t *testing.T) {
	const w, h = 53, 37
	data := testJPEG(t, w, h, Subsample420)

	for _, f := range allFormats {
		t.Run(f.String(), func(t *testing.T) {
			dec, err := NewDecoder(DecoderConfig{Format: f})
			if err != nil {
				t.Fatalf("NewDecoder() error = %v", err)
			}
			out, err := dec.Decode(data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if want := w * h * f.BytesPerPixel(); len(out) != want {
				t.Errorf("len(Decode()) = %d, want %d", len(out), want)
			}
		})
	}
}

func TestDecoder_RoundTrip(t *testing.T) {
	const w, h = 48, 32

	for _, f := range allFormats {
		for _, sub := range []Subsampling{Subsample420, Subsample422, Subsample444} {
			t.Run(f.String()+"/"+sub.String(), func(t *testing.T) {
				src := testPixels(w, h, f)
				enc, err := NewEncoder(EncoderConfig{Format: f, Quality: 95, Width: w, Height: h, Subsampling: sub})
				if err != nil {
					t.Fatalf("NewEncoder() error = %v", err)
				}
				data, err := enc.Encode(src)
				if err != nil {
					t.Fatalf("Encode() error = %v", err)
				}

				dec, err := NewDecoder(DecoderConfig{Format: f})
				if err != nil {
					t.Fatalf("NewDecoder() error = %v", err)
				}
				out, err := dec.Decode(data)
				if err != nil {
					t.Fatalf("Decode() error = %v", err)
				}
				if len(out) != len(src) {
					t.Fatalf("len(Decode()) = %d, want %d", len(out), len(src))
				}
				if f == RGB888 || f == CbYCrY {
					if p := fidelity.PSNR(out, src); p < 30 {
						t.Errorf("PSNR = %.2f dB, want >= 30", p)
					}
				}
			})
		}
	}
}

func TestDecoder_DecodeEncodeDecode(t *testing.T) {
	const w, h = 45, 29
	data := testJPEG(t, w, h, Subsample420)

	for _, f := range allFormats {
		t.Run(f.String(), func(t *testing.T) {
			dec, err := NewDecoder(DecoderConfig{Format: f})
			if err != nil {
				t.Fatalf("NewDecoder() error = %v", err)
			}
			first, err := dec.Decode(data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			enc, err := NewEncoder(EncoderConfig{Format: f, Quality: 90, Width: w, Height: h})
			if err != nil {
				t.Fatalf("NewEncoder() error = %v", err)
			}
			again, err := enc.Encode(first)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			info, err := dec.Info(again)
			if err != nil {
				t.Fatalf("Info() error = %v", err)
			}
			if info.Width != w || info.Height != h {
				t.Errorf("re-encoded size = %dx%d, want %dx%d", info.Width, info.Height, w, h)
			}
			second, err := dec.Decode(again)
			if err != nil {
				t.Fatalf("Decode() re-encoded error = %v", err)
			}
			if len(second) != len(first) {
				t.Fatalf("len(Decode()) = %d, want %d", len(second), len(first))
			}
			if f == RGB888 || f == CbYCrY {
				if p := fidelity.PSNR(second, first); p < 30 {
					t.Errorf("PSNR = %.2f dB, want >= 30", p)
				}
			}
		})
	}
}

func TestDecoder_MalformedHeaders(t *testing.T) {
	valid := testJPEG(t, 16, 16, Subsample420)
	sof := bytes.Index(valid, []byte{0xff, 0xc0})
	if sof < 0 {
		t.Fatal("no SOF0 marker in encoded stream")
	}

	// DC table 0 with three 1-bit codes.
	badDHT := []byte{0xff, 0xc4, 0x00, 0x16, 0x00, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3}
	oversubscribed := append(append([]byte{0xff, 0xd8}, badDHT...), valid[2:]...)

	huge := append([]byte(nil), valid...)
	copy(huge[sof+5:], []byte{0xff, 0xff, 0xff, 0xff})

	tests := []struct {
		name string
		data []byte
	}{
		{"oversubscribed DHT", oversubscribed},
		{"65535x65535 frame", huge},
		{"65535x65535 frame with short scan", huge[:len(huge)-20]},
	}
	for _, tt := range tests {
		for _, block := range []bool{false, true} {
			dec, err := NewDecoder(DecoderConfig{Format: RGB888, Block: block})
			if err != nil {
				t.Fatalf("NewDecoder() error = %v", err)
			}
			out, err := dec.Decode(tt.data)
			if !errors.Is(err, ErrInvalidBitstream) {
				t.Errorf("%s (block=%v): Decode() error = %v, want ErrInvalidBitstream", tt.name, block, err)
			}
			if out != nil {
				t.Errorf("%s (block=%v): Decode() returned %d bytes with error", tt.name, block, len(out))
			}
			if _, err := dec.BlockCount(tt.data); !errors.Is(err, ErrInvalidBitstream) {
				t.Errorf("%s (block=%v): BlockCount() error = %v, want ErrInvalidBitstream", tt.name, block, err)
			}
		}
	}
}

func TestDecoder_CopiedStreamContinuesSequence(t *testing.T) {
	data := testJPEG(t, 16, 48, Subsample420)
	dec, err := NewDecoder(DecoderConfig{Format: RGB888, Block: true})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	n, err := dec.BlockCount(data)
	if err != nil {
		t.Fatalf("BlockCount() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("BlockCount() = %d, want 3", n)
	}

	// Each call gets a fresh copy of the same bytes.
	for i := 0; i < n; i++ {
		if _, err := dec.Decode(append([]byte(nil), data...)); err != nil {
			t.Fatalf("Decode() block %d error = %v", i, err)
		}
	}
	if _, err := dec.Decode(append([]byte(nil), data...)); !errors.Is(err, ErrSequenceExhausted) {
		t.Errorf("Decode() past end error = %v, want ErrSequenceExhausted", err)
	}
}

func TestDecoder_BlockCount_Stable(t *testing.T) {
	data := testJPEG(t, 64, 50, Subsample420)
	dec, err := NewDecoder(DecoderConfig{Format: RGB565LE, Block: true})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}

	first, err := dec.BlockCount(data)
	if err != nil {
		t.Fatalf("BlockCount() error = %v", err)
	}
	if first != 4 {
		t.Errorf("BlockCount() = %d, want 4", first)
	}
	for i := 0; i < 3; i++ {
		n, err := dec.BlockCount(data)
		if err != nil {
			t.Fatalf("BlockCount() error = %v", err)
		}
		if n != first {
			t.Errorf("BlockCount() call %d = %d, want %d", i+2, n, first)
		}
	}
}

func TestDecoder_BlockCount_WholeImage(t *testing.T) {
	data := testJPEG(t, 64, 50, Subsample420)
	dec, err := NewDecoder(DecoderConfig{Format: RGB888})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	n, err := dec.BlockCount(data)
	if err != nil {
		t.Fatalf("BlockCount() error = %v", err)
	}
	if n != 1 {
		t.Errorf("BlockCount() = %d, want 1", n)
	}
}

func TestDecoder_BlocksConcatenateToWholeImage(t *testing.T) {
	const w, h = 61, 45

	for _, sub := range []Subsampling{Subsample420, Subsample422, Subsample444, SubsampleGray} {
		data := testJPEG(t, w, h, sub)
		for _, f := range allFormats {
			t.Run(sub.String()+"/"+f.String(), func(t *testing.T) {
				whole, err := NewDecoder(DecoderConfig{Format: f})
				if err != nil {
					t.Fatalf("NewDecoder() error = %v", err)
				}
				want, err := whole.Decode(data)
				if err != nil {
					t.Fatalf("Decode() error = %v", err)
				}

				dec, err := NewDecoder(DecoderConfig{Format: f, Block: true})
				if err != nil {
					t.Fatalf("NewDecoder() error = %v", err)
				}
				n, err := dec.BlockCount(data)
				if err != nil {
					t.Fatalf("BlockCount() error = %v", err)
				}
				var got []byte
				for i := 0; i < n; i++ {
					block, err := dec.Decode(data)
					if err != nil {
						t.Fatalf("Decode() block %d error = %v", i, err)
					}
					if len(block)%(w*f.BytesPerPixel()) != 0 {
						t.Errorf("block %d has %d bytes, not whole rows", i, len(block))
					}
					got = append(got, block...)
				}
				if !bytes.Equal(got, want) {
					t.Errorf("concatenated blocks (%d bytes) differ from whole image (%d bytes)", len(got), len(want))
				}
			})
		}
	}
}

func TestDecoder_SequenceExhausted(t *testing.T) {
	data := testJPEG(t, 16, 20, Subsample420)
	dec, err := NewDecoder(DecoderConfig{Format: RGB888, Block: true})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	n, err := dec.BlockCount(data)
	if err != nil {
		t.Fatalf("BlockCount() error = %v", err)
	}
	first := make([][]byte, n)
	for i := range first {
		if first[i], err = dec.Decode(data); err != nil {
			t.Fatalf("Decode() block %d error = %v", i, err)
		}
	}

	out, err := dec.Decode(data)
	if !errors.Is(err, ErrSequenceExhausted) {
		t.Fatalf("Decode() past end error = %v, want ErrSequenceExhausted", err)
	}
	if out != nil {
		t.Errorf("Decode() past end returned %d bytes", len(out))
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.Op != "decode" {
		t.Errorf("error = %#v, want *DecodeError with Op decode", err)
	}

	// BlockCount rewinds an exhausted sequence.
	if _, err := dec.BlockCount(data); err != nil {
		t.Fatalf("BlockCount() error = %v", err)
	}
	for i := 0; i < n; i++ {
		block, err := dec.Decode(data)
		if err != nil {
			t.Fatalf("Decode() after rewind block %d error = %v", i, err)
		}
		if !bytes.Equal(block, first[i]) {
			t.Errorf("block %d differs after rewind", i)
		}
	}
}

func TestDecoder_Reset(t *testing.T) {
	data := testJPEG(t, 16, 40, Subsample420)
	dec, err := NewDecoder(DecoderConfig{Format: RGB888, Block: true})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	a, err := dec.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, err := dec.Decode(data); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	dec.Reset()
	b, err := dec.Decode(data)
	if err != nil {
		t.Fatalf("Decode() after Reset error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("first block after Reset differs from first block")
	}
}

func TestDecoder_NewStreamRestartsSequence(t *testing.T) {
	a := testJPEG(t, 16, 48, Subsample420)
	b := testJPEG(t, 32, 16, Subsample420)
	dec, err := NewDecoder(DecoderConfig{Format: RGB888, Block: true})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	if _, err := dec.Decode(a); err != nil {
		t.Fatalf("Decode(a) error = %v", err)
	}

	// b has a single block of 32x16 pixels.
	block, err := dec.Decode(b)
	if err != nil {
		t.Fatalf("Decode(b) error = %v", err)
	}
	if len(block) != 32*16*3 {
		t.Errorf("len(Decode(b)) = %d, want %d", len(block), 32*16*3)
	}
	if _, err := dec.Decode(b); !errors.Is(err, ErrSequenceExhausted) {
		t.Errorf("second Decode(b) error = %v, want ErrSequenceExhausted", err)
	}

	// Returning to a starts it over.
	if _, err := dec.Decode(a); err != nil {
		t.Errorf("Decode(a) again error = %v", err)
	}
}

func TestDecoder_InvalidBitstream(t *testing.T) {
	valid := testJPEG(t, 64, 64, Subsample420)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not a jpeg")},
		{"soi only", []byte{0xff, 0xd8}},
		{"header only", valid[:200]},
		{"truncated scan", valid[:len(valid)*2/3]},
	}
	for _, tt := range tests {
		for _, block := range []bool{false, true} {
			dec, err := NewDecoder(DecoderConfig{Format: RGB565BE, Block: block})
			if err != nil {
				t.Fatalf("NewDecoder() error = %v", err)
			}
			var out []byte
			for err == nil {
				// In block mode keep decoding until the truncation is hit.
				out, err = dec.Decode(tt.data)
				if !block {
					break
				}
			}
			if !errors.Is(err, ErrInvalidBitstream) {
				t.Errorf("%s (block=%v): Decode() error = %v, want ErrInvalidBitstream", tt.name, block, err)
			}
			if out != nil {
				t.Errorf("%s (block=%v): Decode() returned %d bytes with error", tt.name, block, len(out))
			}
		}
	}
}

func TestDecoder_UnsupportedStandard(t *testing.T) {
	progressive := []byte{0xff, 0xd8, 0xff, 0xc2, 0x00, 0x11}
	dec, err := NewDecoder(DecoderConfig{Format: RGB888})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	if _, err := dec.Decode(progressive); !errors.Is(err, ErrUnsupportedStandard) {
		t.Errorf("Decode() error = %v, want ErrUnsupportedStandard", err)
	}
	if _, err := dec.BlockCount(progressive); !errors.Is(err, ErrUnsupportedStandard) {
		t.Errorf("BlockCount() error = %v, want ErrUnsupportedStandard", err)
	}
}

func TestDecoder_Rotation(t *testing.T) {
	const w, h = 40, 24
	data := testJPEG(t, w, h, Subsample444)

	base, err := NewDecoder(DecoderConfig{Format: RGB888})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	upright, err := base.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	for _, r := range []Rotation{Rotate90, Rotate180, Rotate270} {
		t.Run(r.String(), func(t *testing.T) {
			dec, err := NewDecoder(DecoderConfig{Format: RGB888, Rotation: r})
			if err != nil {
				t.Fatalf("NewDecoder() error = %v", err)
			}
			got, err := dec.Decode(data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			want := pixel.Rotate(upright, w, h, 3, pixel.Rotation(r))
			if !bytes.Equal(got, want) {
				t.Error("rotated output differs from rotating the upright image")
			}

			info, err := dec.Info(data)
			if err != nil {
				t.Fatalf("Info() error = %v", err)
			}
			wantW, wantH := w, h
			if r != Rotate180 {
				wantW, wantH = h, w
			}
			if info.OutputWidth != wantW || info.OutputHeight != wantH {
				t.Errorf("output size = %dx%d, want %dx%d", info.OutputWidth, info.OutputHeight, wantW, wantH)
			}
		})
	}

	// The top-left pixel ends up top-right after a quarter turn.
	dec, err := NewDecoder(DecoderConfig{Format: RGB888, Rotation: Rotate90})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	got, err := dec.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(got[(h-1)*3:h*3], upright[:3]) {
		t.Errorf("Rotate90 top-right = %v, want %v", got[(h-1)*3:h*3], upright[:3])
	}
}

func TestDecoder_Info(t *testing.T) {
	data := testJPEG(t, 61, 45, Subsample420)
	dec, err := NewDecoder(DecoderConfig{Format: RGB565BE, Block: true})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	info, err := dec.Info(data)
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	want := ImageInfo{
		Width:        61,
		Height:       45,
		OutputWidth:  61,
		OutputHeight: 45,
		Components:   3,
		Subsampling:  "4:2:0",
		Blocks:       3,
		BlockHeight:  16,
		OutputLen:    61 * 45 * 2,
	}
	if info != want {
		t.Errorf("Info() = %+v, want %+v", info, want)
	}

	if _, err := dec.Info([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidBitstream) {
		t.Errorf("Info(garbage) error = %v, want ErrInvalidBitstream", err)
	}
}

func TestDecoder_Grayscale(t *testing.T) {
	data := testJPEG(t, 24, 16, SubsampleGray)
	dec, err := NewDecoder(DecoderConfig{Format: RGB888})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	out, err := dec.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	for i := 0; i < len(out); i += 3 {
		if out[i] != out[i+1] || out[i] != out[i+2] {
			t.Fatalf("pixel %d = %v, want grey", i/3, out[i:i+3])
		}
	}
}

func TestDecoder_HeaderCache(t *testing.T) {
	data := testJPEG(t, 32, 32, Subsample420)
	rec := newRecorder()
	dec, err := NewDecoder(DecoderConfig{Format: RGB888}, WithStats(rec), WithHeaderCache(4))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := dec.Decode(data); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
	}
	if got := rec.counter(stats.MetricHeaderCacheMisses); got != 1 {
		t.Errorf("cache misses = %d, want 1", got)
	}
	if got := rec.counter(stats.MetricHeaderCacheHits); got != 2 {
		t.Errorf("cache hits = %d, want 2", got)
	}
	if got := rec.counter(stats.MetricDecodes); got != 3 {
		t.Errorf("decodes = %d, want 3", got)
	}
	if got := rec.counter(stats.MetricBlocksDecoded); got != 6 {
		t.Errorf("blocks decoded = %d, want 6", got)
	}
}

func TestDecoder_ErrorMetrics(t *testing.T) {
	rec := newRecorder()
	dec, err := NewDecoder(DecoderConfig{Format: RGB888}, WithStats(rec))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	if _, err := dec.Decode([]byte("nope")); err == nil {
		t.Fatal("Decode() error = nil, want error")
	}
	if got := rec.counter(stats.MetricDecodeErrors); got != 1 {
		t.Errorf("decode errors = %d, want 1", got)
	}
	if got := rec.counter(stats.MetricDecodes); got != 0 {
		t.Errorf("decodes = %d, want 0", got)
	}
}

func BenchmarkDecoder_Decode(b *testing.B) {
	data := testJPEG(b, 320, 240, Subsample420)
	dec, err := NewDecoder(DecoderConfig{Format: RGB565BE})
	if err != nil {
		b.Fatalf("NewDecoder() error = %v", err)
	}
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := dec.Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecoder_DecodeBlocks(b *testing.B) {
	data := testJPEG(b, 320, 240, Subsample420)
	dec, err := NewDecoder(DecoderConfig{Format: RGB565BE, Block: true})
	if err != nil {
		b.Fatalf("NewDecoder() error = %v", err)
	}
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n, err := dec.BlockCount(data)
		if err != nil {
			b.Fatal(err)
		}
		for j := 0; j < n; j++ {
			if _, err := dec.Decode(data); err != nil {
				b.Fatal(err)
			}
		}
	}
}
