package motion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampSensitivity(t *testing.T) {
	for in, want := range map[int]int{-5: 10, 0: 10, 9: 10, 10: 10, 55: 55, 100: 100, 101: 100, 1000: 100} {
		assert.Equal(t, want, ClampSensitivity(in), "ClampSensitivity(%d)", in)
	}
}

func TestDerivedParameters(t *testing.T) {
	tests := []struct {
		s         int
		step      int
		threshold float32
		minPixels float64
		keep      float64
		padding   float64
	}{
		{s: 10, step: 4, threshold: 90, minPixels: 75, keep: 0.35, padding: 10 - 10.0/15},
		{s: 30, step: 4, threshold: 70, minPixels: 65, keep: 0.45, padding: 8},
		{s: 50, step: 4, threshold: 50, minPixels: 55, keep: 0.55, padding: 10 - 50.0/15},
		{s: 70, step: 4, threshold: 30, minPixels: 45, keep: 0.65, padding: 10 - 70.0/15},
		{s: 71, step: 2, threshold: 29, minPixels: 44.5, keep: 0.655, padding: 10 - 71.0/15},
		{s: 95, step: 2, threshold: 10, minPixels: 32.5, keep: 0.775, padding: 10 - 95.0/15},
		{s: 100, step: 2, threshold: 10, minPixels: 30, keep: 0.8, padding: 10 - 100.0/15},
		// out of range values are clamped first
		{s: 1, step: 4, threshold: 90, minPixels: 75, keep: 0.35, padding: 10 - 10.0/15},
		{s: 300, step: 2, threshold: 10, minPixels: 30, keep: 0.8, padding: 10 - 100.0/15},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.step, PixelStep(tt.s), "PixelStep(%d)", tt.s)
		assert.Equal(t, tt.threshold, Threshold(tt.s), "Threshold(%d)", tt.s)
		assert.InDelta(t, tt.minPixels, MinMotionPixels(tt.s), 1e-9, "MinMotionPixels(%d)", tt.s)
		assert.InDelta(t, tt.keep, KeepFraction(tt.s), 1e-9, "KeepFraction(%d)", tt.s)
		assert.InDelta(t, tt.padding, Padding(tt.s), 1e-9, "Padding(%d)", tt.s)
	}
}

func TestPaddingFloor(t *testing.T) {
	// 10 - s/15 never drops below 2 in range, but the floor still applies
	for s := MinSensitivity; s <= MaxSensitivity; s++ {
		assert.GreaterOrEqual(t, Padding(s), 2.0)
	}
}
