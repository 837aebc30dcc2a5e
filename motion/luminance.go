package motion

// Rec. 601 luma weights.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// LumaBuffer holds one luminance value per pixel.
type LumaBuffer struct {
	Width, Height int
	Values        []float32
}

// SameSize reports whether l and o have identical dimensions.
func (l LumaBuffer) SameSize(o LumaBuffer) bool {
	return l.Width == o.Width && l.Height == o.Height && len(l.Values) == len(o.Values)
}

// Luminance converts an RGBA frame to luminance, ignoring alpha. It panics if
// the frame is malformed; callers are expected to Validate first.
func Luminance(f Frame) LumaBuffer {
	if err := f.Validate(); err != nil {
		panic(err)
	}

	vals := make([]float32, f.Width*f.Height)
	for i := range vals {
		p := f.Pix[i*4 : i*4+3 : i*4+3]
		vals[i] = lumaR*float32(p[0]) + lumaG*float32(p[1]) + lumaB*float32(p[2])
	}

	return LumaBuffer{Width: f.Width, Height: f.Height, Values: vals}
}
