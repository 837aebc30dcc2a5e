package motion

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func active(opts ...Option) *Detector {
	return New(append([]Option{WithTracking(true)}, opts...)...)
}

func TestScenarioIdenticalBlackFrames(t *testing.T) {
	d := active()
	f := solidFrame(4, 4, 0)

	_, ok := d.ProcessFrame(f, at(0))
	assert.False(t, ok, "baseline frame")
	_, ok = d.ProcessFrame(f, at(200))
	assert.False(t, ok, "identical frame")
	assert.Empty(t, d.History())
}

func TestScenarioWhiteSquare(t *testing.T) {
	d := active(WithSensitivity(50))
	black := solidFrame(100, 100, 0)
	square := image.Rect(40, 40, 60, 60)

	_, ok := d.ProcessFrame(black, at(0))
	require.False(t, ok)

	ev, ok := d.ProcessFrame(withSquare(black, square), at(200))
	require.True(t, ok)
	assert.Greater(t, ev.PixelCount, 55)
	assert.Equal(t, 50, ev.Sensitivity)
	assert.Equal(t, at(200), ev.Timestamp)
	require.NotNil(t, ev.Box)
	assert.True(t, ev.Box.Valid())
	assert.True(t, ev.Box.Rect().In(square), "box %v not within %v", ev.Box, square)

	h := d.History()
	require.Len(t, h, 1)
	assert.Equal(t, Measurement{Timestamp: at(200), PixelCount: ev.PixelCount}, h[0])
}

func TestScenarioSensitivityExtremes(t *testing.T) {
	prev := solidFrame(64, 48, 40)
	cur := withSquare(prev, image.Rect(10, 10, 30, 40))
	// a faint change only the sensitive setting can see
	for i := 0; i < len(cur.Pix)/2; i += 4 {
		if cur.Pix[i] == 40 {
			cur.Pix[i], cur.Pix[i+1], cur.Pix[i+2] = 60, 60, 60
		}
	}

	counts := map[int]int{}
	for _, s := range []int{10, 100} {
		d := active(WithSensitivity(s))
		_, ok := d.ProcessFrame(prev, at(0))
		require.False(t, ok)
		ev, ok := d.ProcessFrame(cur, at(100))
		require.True(t, ok, "sensitivity %d", s)
		counts[s] = ev.PixelCount
	}
	assert.Equal(t, 4, PixelStep(10))
	assert.Equal(t, 2, PixelStep(100))
	assert.Equal(t, float32(90), Threshold(10))
	assert.Equal(t, float32(10), Threshold(100))
	assert.GreaterOrEqual(t, counts[100], counts[10])
}

func TestFirstFrameAfterResetIsBaseline(t *testing.T) {
	d := active(WithSensitivity(100))
	black, white := solidFrame(10, 10, 0), solidFrame(10, 10, 255)

	d.ProcessFrame(black, at(0))
	_, ok := d.ProcessFrame(white, at(100))
	require.True(t, ok)

	for i, f := range []Frame{black, white, black} {
		d.Reset()
		assert.Empty(t, d.History())
		_, ok := d.ProcessFrame(f, at(200+i))
		assert.False(t, ok, "frame %d after reset", i)
	}
}

func TestThrottle(t *testing.T) {
	d := active(WithSensitivity(100))
	black, white := solidFrame(10, 10, 0), solidFrame(10, 10, 255)

	_, ok := d.ProcessFrame(black, at(0))
	require.False(t, ok)
	for _, ms := range []int{1, 50, 99} {
		_, ok := d.ProcessFrame(white, at(ms))
		assert.False(t, ok, "frame at %dms", ms)
	}
	assert.Empty(t, d.History())

	// throttled frames never replaced the baseline
	_, ok = d.ProcessFrame(white, at(100))
	assert.True(t, ok)
}

func TestThrottleCustomInterval(t *testing.T) {
	d := active(WithSensitivity(100), WithMinInterval(time.Second))
	black, white := solidFrame(10, 10, 0), solidFrame(10, 10, 255)

	d.ProcessFrame(black, at(0))
	_, ok := d.ProcessFrame(white, at(500))
	assert.False(t, ok)
	_, ok = d.ProcessFrame(white, at(1000))
	assert.True(t, ok)
}

func TestHistoryBound(t *testing.T) {
	d := active(WithSensitivity(50))
	frames := []Frame{solidFrame(20, 20, 0), solidFrame(20, 20, 255)}

	d.ProcessFrame(frames[0], at(0))
	for n := 1; n <= 60; n++ {
		_, ok := d.ProcessFrame(frames[n%2], at(n*100))
		require.True(t, ok)

		h := d.History()
		require.Len(t, h, min(n, DefaultHistorySize))
		assert.Equal(t, at(n*100), h[len(h)-1].Timestamp)
	}

	h := d.History()
	assert.Equal(t, at(1100), h[0].Timestamp)
	for i := 1; i < len(h); i++ {
		assert.True(t, h[i].Timestamp.After(h[i-1].Timestamp))
	}
}

func TestHistorySize(t *testing.T) {
	d := active(WithSensitivity(100), WithHistorySize(3))
	frames := []Frame{solidFrame(10, 10, 0), solidFrame(10, 10, 255)}
	for n := 0; n < 10; n++ {
		d.ProcessFrame(frames[n%2], at(n*100))
	}
	assert.Len(t, d.History(), 3)
}

func TestInsignificantMotionNotRecorded(t *testing.T) {
	d := active(WithSensitivity(50))
	black := solidFrame(20, 20, 0)

	d.ProcessFrame(black, at(0))
	// 4x4 square, 4 sampled pixels, well under the gate of 55
	_, ok := d.ProcessFrame(withSquare(black, image.Rect(0, 0, 4, 4)), at(100))
	assert.False(t, ok)
	assert.Empty(t, d.History())
}

func TestEventWithoutBox(t *testing.T) {
	d := active(WithSensitivity(100))
	black := solidFrame(40, 10, 0)

	d.ProcessFrame(black, at(0))
	// a single changed row is significant but yields a degenerate box
	ev, ok := d.ProcessFrame(withSquare(black, image.Rect(0, 5, 40, 6)), at(100))
	// 20 sampled pixels, under the gate of 30
	assert.False(t, ok)

	tall := solidFrame(80, 10, 0)
	d.Reset()
	d.ProcessFrame(tall, at(200))
	ev, ok = d.ProcessFrame(withSquare(tall, image.Rect(0, 5, 80, 6)), at(300))
	require.True(t, ok)
	assert.Equal(t, 40, ev.PixelCount)
	assert.Nil(t, ev.Box)
	assert.Len(t, d.History(), 1)
}

func TestDimensionChangeResetsBaseline(t *testing.T) {
	d := active(WithSensitivity(100))

	d.ProcessFrame(solidFrame(4, 4, 0), at(0))
	_, ok := d.ProcessFrame(solidFrame(8, 8, 255), at(100))
	assert.False(t, ok, "resolution change seeds a new baseline")

	ev, ok := d.ProcessFrame(solidFrame(8, 8, 0), at(200))
	require.True(t, ok)
	assert.Equal(t, 32, ev.PixelCount)
	require.NotNil(t, ev.Box)
	assert.True(t, ev.Box.Valid())
}

func TestMalformedFramesAreNoops(t *testing.T) {
	d := active(WithSensitivity(100))
	black, white := solidFrame(10, 10, 0), solidFrame(10, 10, 255)

	d.ProcessFrame(black, at(0))
	for _, f := range []Frame{
		{},
		{Width: 10, Height: 10},
		{Width: 10, Height: 10, Pix: make([]byte, 7)},
		{Width: 1<<62 + 1, Height: 1, Pix: make([]byte, 4)},
	} {
		assert.NotPanics(t, func() {
			_, ok := d.ProcessFrame(f, at(100))
			assert.False(t, ok)
		})
	}
	// malformed frames do not consume the throttle slot
	_, ok := d.ProcessFrame(white, at(100))
	assert.True(t, ok)
}

func TestIdleDetectorIgnoresFrames(t *testing.T) {
	var got []Event
	d := New(WithSensitivity(100), WithSink(SinkFunc(func(e Event) { got = append(got, e) })))
	assert.False(t, d.Tracking())

	black, white := solidFrame(10, 10, 0), solidFrame(10, 10, 255)
	for i, f := range []Frame{black, white, black} {
		_, ok := d.ProcessFrame(f, at(i*100))
		assert.False(t, ok)
	}
	assert.Empty(t, got)
	assert.Empty(t, d.History())

	d.SetTracking(true)
	assert.True(t, d.Tracking())
	_, ok := d.ProcessFrame(white, at(300))
	assert.False(t, ok, "first frame after enabling is a baseline")
	_, ok = d.ProcessFrame(black, at(400))
	assert.True(t, ok)
	assert.Len(t, got, 1)
}

func TestEnablingResetsState(t *testing.T) {
	d := active(WithSensitivity(100))
	black, white := solidFrame(10, 10, 0), solidFrame(10, 10, 255)
	d.ProcessFrame(black, at(0))
	d.ProcessFrame(white, at(100))
	require.Len(t, d.History(), 1)

	d.SetTracking(true) // already active, no reset
	assert.Len(t, d.History(), 1)

	d.SetTracking(false)
	d.SetTracking(true)
	assert.Empty(t, d.History())
	_, ok := d.ProcessFrame(black, at(200))
	assert.False(t, ok)
}

func TestConcurrentEnableResetsOnce(t *testing.T) {
	d := New(WithSensitivity(100))
	black, white := solidFrame(10, 10, 0), solidFrame(10, 10, 255)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			d.SetTracking(true)
		}()
	}

	// the first enable wins; the baseline and history taken after it
	// must survive the enables that lose
	d.SetTracking(true)
	d.ProcessFrame(black, at(0))
	_, ok := d.ProcessFrame(white, at(100))
	require.True(t, ok)

	close(start)
	wg.Wait()

	assert.True(t, d.Tracking())
	assert.Len(t, d.History(), 1)
	_, ok = d.ProcessFrame(black, at(200))
	assert.True(t, ok, "baseline kept")
}

func TestDisableDuringCycle(t *testing.T) {
	var d *Detector
	var emitted int
	d = active(
		WithSensitivity(100),
		WithSink(SinkFunc(func(Event) { emitted++ })),
		WithMaskHook(func(LumaBuffer, Mask, int) { d.SetTracking(false) }),
	)

	d.ProcessFrame(solidFrame(10, 10, 0), at(0))
	_, ok := d.ProcessFrame(solidFrame(10, 10, 255), at(100))
	assert.False(t, ok)
	assert.Zero(t, emitted)
	assert.False(t, d.Tracking())
}

func TestSinksReceiveEvents(t *testing.T) {
	var a, b []Event
	d := active(
		WithSensitivity(100),
		WithSink(SinkFunc(func(e Event) { a = append(a, e) })),
		WithSink(SinkFunc(func(e Event) { b = append(b, e) })),
	)

	d.ProcessFrame(solidFrame(10, 10, 0), at(0))
	ev, ok := d.ProcessFrame(solidFrame(10, 10, 255), at(100))
	require.True(t, ok)
	assert.Equal(t, []Event{ev}, a)
	assert.Equal(t, []Event{ev}, b)
}

func TestMaskHookSeesEveryComparison(t *testing.T) {
	var counts []int
	d := active(
		WithSensitivity(100),
		WithMaskHook(func(l LumaBuffer, m Mask, n int) {
			assert.Equal(t, l.Width, m.Width)
			assert.Equal(t, l.Height, m.Height)
			counts = append(counts, n)
		}),
	)

	black := solidFrame(10, 10, 0)
	d.ProcessFrame(black, at(0))
	d.ProcessFrame(black, at(100))
	d.ProcessFrame(solidFrame(10, 10, 255), at(200))
	assert.Equal(t, []int{0, 50}, counts)
}

func TestSetSensitivityClamps(t *testing.T) {
	d := New()
	assert.Equal(t, DefaultSensitivity, d.Sensitivity())
	d.SetSensitivity(3)
	assert.Equal(t, MinSensitivity, d.Sensitivity())
	d.SetSensitivity(250)
	assert.Equal(t, MaxSensitivity, d.Sensitivity())
	assert.Equal(t, MaxSensitivity, New(WithSensitivity(1e6)).Sensitivity())
}

func TestSensitivityChangeAppliesNextCycle(t *testing.T) {
	d := active(WithSensitivity(10))
	prev := solidFrame(20, 20, 0)
	cur := solidFrame(20, 20, 50) // delta 50: invisible at 10, visible at 100

	d.ProcessFrame(prev, at(0))
	_, ok := d.ProcessFrame(cur, at(100))
	assert.False(t, ok)

	d.SetSensitivity(100)
	ev, ok := d.ProcessFrame(prev, at(200))
	require.True(t, ok)
	assert.Equal(t, 100, ev.Sensitivity)
	assert.Equal(t, 200, ev.PixelCount)
}
