package tinyjpeg

import (
	"errors"
	"fmt"

	"github.com/tinyjpeg/tinyjpeg/internal/jpeg"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrInvalidBitstream indicates the input is not a well-formed JPEG
	// stream, or ends before the image is complete.
	ErrInvalidBitstream = errors.New("tinyjpeg: invalid bitstream")

	// ErrUnsupportedFormat indicates an unknown pixel format.
	ErrUnsupportedFormat = errors.New("tinyjpeg: unsupported pixel format")

	// ErrSizeMismatch indicates a pixel buffer whose length does not match
	// the encoder's dimensions and format.
	ErrSizeMismatch = errors.New("tinyjpeg: pixel buffer size mismatch")

	// ErrSequenceExhausted indicates that every block of the current
	// image has already been returned.
	ErrSequenceExhausted = errors.New("tinyjpeg: block sequence exhausted")

	// ErrUnsupportedStandard indicates a valid JPEG stream that uses a
	// coding process this package does not implement, such as progressive
	// or arithmetic coding.
	ErrUnsupportedStandard = errors.New("tinyjpeg: unsupported JPEG process")

	// ErrInvalidConfig indicates an invalid decoder or encoder parameter.
	ErrInvalidConfig = errors.New("tinyjpeg: invalid configuration")
)

// DecodeError is returned by Decoder methods.
type DecodeError struct {
	Op  string // "decode", "block count" or "info"
	Err error
}

func (e *DecodeError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError is returned by Encoder.Encode.
type EncodeError struct {
	Op  string
	Err error
}

func (e *EncodeError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *EncodeError) Unwrap() error { return e.Err }

// bitstreamError maps an error from the codec to the public taxonomy while
// keeping the original in the chain.
func bitstreamError(err error) error {
	switch {
	case errors.Is(err, jpeg.ErrUnsupported):
		return fmt.Errorf("%w: %w", ErrUnsupportedStandard, err)
	case errors.Is(err, jpeg.ErrNotJPEG), errors.Is(err, jpeg.ErrSyntax), errors.Is(err, jpeg.ErrTruncated):
		return fmt.Errorf("%w: %w", ErrInvalidBitstream, err)
	default:
		return err
	}
}
