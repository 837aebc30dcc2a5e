package motion

// Mask flags the pixels that changed between two frames. Only sampled pixels
// can be set.
type Mask struct {
	Width, Height int
	Flags         []bool
}

// At reports whether the pixel at (x, y) is flagged.
func (m Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Flags[y*m.Width+x]
}

// Points returns the flagged coordinates in row-major order.
func (m Mask) Points() []Point {
	var pts []Point
	for y := 0; y < m.Height; y++ {
		row := m.Flags[y*m.Width : (y+1)*m.Width]
		for x, set := range row {
			if set {
				pts = append(pts, Point{X: x, Y: y})
			}
		}
	}
	return pts
}

// Diff compares cur against prev, inspecting every PixelStep(sensitivity)-th
// pixel, and returns the motion mask together with the number of flagged
// pixels.
func Diff(cur, prev LumaBuffer, sensitivity int) (Mask, int, error) {
	if !cur.SameSize(prev) {
		return Mask{}, 0, ErrDimensionMismatch
	}

	step := PixelStep(sensitivity)
	thresh := Threshold(sensitivity)

	mask := Mask{
		Width:  cur.Width,
		Height: cur.Height,
		Flags:  make([]bool, len(cur.Values)),
	}

	count := 0
	for i := 0; i < len(cur.Values); i += step {
		d := cur.Values[i] - prev.Values[i]
		if d < 0 {
			d = -d
		}
		if d > thresh {
			mask.Flags[i] = true
			count++
		}
	}

	return mask, count, nil
}
