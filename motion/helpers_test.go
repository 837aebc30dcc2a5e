package motion

import "image"

// solidFrame returns a w x h frame filled with grey level v.
func solidFrame(w, h int, v byte) Frame {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = v, v, v, 0xff
	}
	return Frame{Width: w, Height: h, Pix: pix}
}

// withSquare returns a copy of f with r painted white.
func withSquare(f Frame, r image.Rectangle) Frame {
	pix := append([]byte(nil), f.Pix...)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i := (y*f.Width + x) * 4
			pix[i], pix[i+1], pix[i+2] = 0xff, 0xff, 0xff
		}
	}
	return Frame{Width: f.Width, Height: f.Height, Pix: pix}
}

func maskWith(w, h int, pts ...Point) Mask {
	m := Mask{Width: w, Height: h, Flags: make([]bool, w*h)}
	for _, p := range pts {
		m.Flags[p.Y*w+p.X] = true
	}
	return m
}

func block(r image.Rectangle) []Point {
	var pts []Point
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			pts = append(pts, Point{X: x, Y: y})
		}
	}
	return pts
}
