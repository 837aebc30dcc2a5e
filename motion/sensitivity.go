package motion

import "math"

// Sensitivity bounds. Values outside the range are clamped, never rejected.
const (
	MinSensitivity     = 10
	MaxSensitivity     = 100
	DefaultSensitivity = 30
)

// ClampSensitivity limits s to [MinSensitivity, MaxSensitivity].
func ClampSensitivity(s int) int {
	switch {
	case s < MinSensitivity:
		return MinSensitivity
	case s > MaxSensitivity:
		return MaxSensitivity
	default:
		return s
	}
}

// PixelStep is the sampling stride over linear pixel indices.
func PixelStep(s int) int {
	if ClampSensitivity(s) > 70 {
		return 2
	}
	return 4
}

// Threshold is the luminance delta a pixel must exceed to count as changed.
func Threshold(s int) float32 {
	return float32(max(10, 100-ClampSensitivity(s)))
}

// MinMotionPixels is the changed-pixel count a frame must exceed before its
// motion is considered significant.
func MinMotionPixels(s int) float64 {
	return 80 - float64(ClampSensitivity(s))/2
}

// KeepFraction is the share of points, nearest the centroid first, that is
// used to compute the bounding box.
func KeepFraction(s int) float64 {
	return 0.3 + float64(ClampSensitivity(s))/200
}

// Padding is the margin a renderer should draw around a bounding box.
func Padding(s int) float64 {
	return math.Max(2, 10-float64(ClampSensitivity(s))/15)
}
