// Package fidelity measures how closely a decoded image matches a reference.
//
// It is a test oracle: the codec's tests and benchmarks use it to bound
// the loss of encode/decode round trips. Library code does not import it.
package fidelity

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Report summarizes the per-sample error between two buffers.
type Report struct {
	MSE     float64 // Mean squared error.
	PSNR    float64 // Peak signal-to-noise ratio in dB; +Inf for identical input.
	MeanAbs float64 // Mean absolute error.
	MaxAbs  float64 // Largest absolute error.
	StdDev  float64 // Standard deviation of the signed error.
}

// Compare returns the error statistics of got against want, sample by
// sample. Extra samples in the longer buffer are ignored.
func Compare(got, want []byte) *Report {
	n := min(len(got), len(want))
	if n == 0 {
		return &Report{PSNR: math.Inf(1)}
	}

	diff := make([]float64, n)
	sq := make([]float64, n)
	abs := make([]float64, n)
	var maxAbs float64
	for i := 0; i < n; i++ {
		d := float64(got[i]) - float64(want[i])
		diff[i] = d
		sq[i] = d * d
		abs[i] = math.Abs(d)
		maxAbs = math.Max(maxAbs, abs[i])
	}

	mse := stat.Mean(sq, nil)
	var std float64
	if n > 1 {
		std = stat.StdDev(diff, nil)
	}
	return &Report{
		MSE:     mse,
		PSNR:    psnr(mse),
		MeanAbs: stat.Mean(abs, nil),
		MaxAbs:  maxAbs,
		StdDev:  std,
	}
}

// PSNR returns the peak signal-to-noise ratio of got against want in dB.
func PSNR(got, want []byte) float64 {
	return Compare(got, want).PSNR
}

func psnr(mse float64) float64 {
	if mse == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(255*255/mse)
}
