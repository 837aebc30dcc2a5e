// Package motion implements a frame-differencing motion detector.
//
// Frames are reduced to luminance, compared against the previous frame with a
// sensitivity dependent threshold, and the changed pixels are clustered around
// their centroid to produce a bounding box. The package performs no I/O and no
// rendering; results are delivered as Event values.
package motion

import "errors"

var (
	// ErrEmptyFrame is returned for frames with no pixels.
	ErrEmptyFrame = errors.New("motion: empty frame")
	// ErrFrameSize is returned when a frame's pixel buffer does not match
	// its dimensions.
	ErrFrameSize = errors.New("motion: pixel buffer does not match frame size")
	// ErrDimensionMismatch is returned when two buffers being compared differ
	// in size.
	ErrDimensionMismatch = errors.New("motion: dimension mismatch")
)

// Frame is one RGBA raster, 4 bytes per pixel, rows packed without padding.
type Frame struct {
	Width, Height int
	Pix           []byte
}

// Validate reports whether f can be processed.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 || len(f.Pix) == 0 {
		return ErrEmptyFrame
	}
	// compare by division first so Width*Height*4 cannot overflow
	if f.Width > len(f.Pix)/4/f.Height || len(f.Pix) != f.Width*f.Height*4 {
		return ErrFrameSize
	}
	return nil
}
