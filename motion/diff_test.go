package motion

import (
	"image"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func luma(w, h int, vals ...float32) LumaBuffer {
	return LumaBuffer{Width: w, Height: h, Values: vals}
}

func TestDiffSamplesEveryStepPixel(t *testing.T) {
	prev := luma(8, 1, 0, 0, 0, 0, 0, 0, 0, 0)
	cur := luma(8, 1, 100, 100, 100, 100, 100, 100, 100, 100)

	// sensitivity 50: step 4, threshold 50
	m, n, err := Diff(cur, prev, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	want := []bool{true, false, false, false, true, false, false, false}
	if diff := cmp.Diff(want, m.Flags); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}

	// sensitivity 80: step 2, threshold 20
	m, n, err = Diff(cur, prev, 80)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []Point{{0, 0}, {2, 0}, {4, 0}, {6, 0}}, m.Points())
}

func TestDiffThresholdIsStrict(t *testing.T) {
	prev := luma(1, 1, 100)
	m, n, err := Diff(luma(1, 1, 150), prev, 50)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, m.At(0, 0))

	m, n, err = Diff(luma(1, 1, 49), prev, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, m.At(0, 0))
}

func TestDiffDimensionMismatch(t *testing.T) {
	_, _, err := Diff(luma(2, 1, 0, 0), luma(1, 2, 0, 0), 50)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestDiffDeterministic(t *testing.T) {
	a := Luminance(solidFrame(20, 20, 0))
	b := Luminance(withSquare(solidFrame(20, 20, 0), image.Rect(3, 3, 15, 12)))

	m1, n1, err := Diff(b, a, 60)
	require.NoError(t, err)
	m2, n2, err := Diff(b, a, 60)
	require.NoError(t, err)
	assert.Equal(t, n1, n2)
	assert.Equal(t, m1, m2)
}

func TestDiffCountMonotonicInSensitivity(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for trial := 0; trial < 5; trial++ {
		const w, h = 37, 23
		a, b := make([]float32, w*h), make([]float32, w*h)
		for i := range a {
			a[i] = float32(rnd.Intn(256))
			b[i] = float32(rnd.Intn(256))
		}
		prev, cur := luma(w, h, a...), luma(w, h, b...)

		last := -1
		for s := MinSensitivity; s <= MaxSensitivity; s++ {
			_, n, err := Diff(cur, prev, s)
			require.NoError(t, err)
			require.GreaterOrEqual(t, n, last, "sensitivity %d", s)
			last = n
		}
	}
}

func TestMaskAtOutOfRange(t *testing.T) {
	m := maskWith(2, 2, Point{1, 1})
	assert.True(t, m.At(1, 1))
	assert.False(t, m.At(-1, 0))
	assert.False(t, m.At(2, 0))
	assert.False(t, m.At(0, 5))
}
