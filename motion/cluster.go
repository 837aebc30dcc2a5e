package motion

import (
	"fmt"
	"image"
	"math"
	"sort"
)

const (
	minClusterPoints = 5
	minKeptPoints    = 10
)

// Point is an integer pixel coordinate.
type Point struct {
	X, Y int
}

// BoundingBox is an axis aligned box with inclusive bounds.
type BoundingBox struct {
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
}

// Valid reports whether the box has a non-zero extent on both axes.
func (b BoundingBox) Valid() bool {
	return b.MaxX > b.MinX && b.MaxY > b.MinY
}

// Contains reports whether p lies inside b.
func (b BoundingBox) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Rect returns b as a half-open image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.MinX, b.MinY, b.MaxX+1, b.MaxY+1)
}

// Pad grows the box by padding pixels on each side, rounding up.
func (b BoundingBox) Pad(padding float64) image.Rectangle {
	p := int(math.Ceil(padding))
	return b.Rect().Inset(-p)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// Significant reports whether count changed pixels pass the noise gate for
// the given sensitivity.
func Significant(count, sensitivity int) bool {
	return float64(count) > MinMotionPixels(sensitivity)
}

// Cluster reduces a motion mask to the bounding box of the points nearest
// its centroid. Outliers are trimmed according to KeepFraction. It returns
// false when the motion is insignificant, too sparse, or the resulting box is
// degenerate.
func Cluster(m Mask, count, sensitivity int) (BoundingBox, bool) {
	if !Significant(count, sensitivity) {
		return BoundingBox{}, false
	}

	pts := m.Points()
	if len(pts) <= minClusterPoints {
		return BoundingBox{}, false
	}

	cx, cy := centroid(pts)
	rankByDistance(pts, cx, cy)

	keep := int(math.Floor(float64(len(pts)) * KeepFraction(sensitivity)))
	kept := pts[:keep]
	if len(kept) <= minKeptPoints {
		return BoundingBox{}, false
	}

	box := bounds(kept)
	if !box.Valid() {
		return BoundingBox{}, false
	}
	return box, true
}

func centroid(pts []Point) (float64, float64) {
	var sx, sy float64
	for _, p := range pts {
		sx += float64(p.X)
		sy += float64(p.Y)
	}
	n := float64(len(pts))
	return sx / n, sy / n
}

// rankByDistance sorts pts by squared distance to (cx, cy), nearest first.
// Equal distances keep their original order.
func rankByDistance(pts []Point, cx, cy float64) {
	dist := func(p Point) float64 {
		dx, dy := float64(p.X)-cx, float64(p.Y)-cy
		return dx*dx + dy*dy
	}
	sort.SliceStable(pts, func(i, j int) bool {
		return dist(pts[i]) < dist(pts[j])
	})
}

func bounds(pts []Point) BoundingBox {
	b := BoundingBox{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		b.MinX = min(b.MinX, p.X)
		b.MinY = min(b.MinY, p.Y)
		b.MaxX = max(b.MaxX, p.X)
		b.MaxY = max(b.MaxY, p.Y)
	}
	return b
}
