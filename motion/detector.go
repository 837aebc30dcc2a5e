package motion

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultMinInterval is the minimum time between two processed frames.
	DefaultMinInterval = 100 * time.Millisecond
	// DefaultHistorySize is the number of measurements kept by History.
	DefaultHistorySize = 50
)

// MaskHook observes the intermediate results of a detection cycle. It runs
// with the detector locked: it must not call ProcessFrame, Reset or
// SetTracking(true), and must copy anything it keeps.
type MaskHook func(luma LumaBuffer, mask Mask, count int)

// Option configures a Detector.
type Option func(*Detector)

// WithSensitivity sets the initial sensitivity.
func WithSensitivity(s int) Option {
	return func(d *Detector) {
		d.sensitivity.Store(int32(ClampSensitivity(s)))
	}
}

// WithMinInterval overrides DefaultMinInterval.
func WithMinInterval(iv time.Duration) Option {
	return func(d *Detector) {
		d.minInterval = iv
	}
}

// WithHistorySize overrides DefaultHistorySize.
func WithHistorySize(n int) Option {
	return func(d *Detector) {
		d.history = newRing[Measurement](n)
	}
}

// WithSink adds a sink that receives every emitted event.
func WithSink(s Sink) Option {
	return func(d *Detector) {
		d.sinks = append(d.sinks, s)
	}
}

// WithMaskHook installs h, see MaskHook.
func WithMaskHook(h MaskHook) Option {
	return func(d *Detector) {
		d.maskHook = h
	}
}

// WithTracking sets the initial tracking state. Detectors start idle.
func WithTracking(on bool) Option {
	return func(d *Detector) {
		d.tracking.Store(on)
	}
}

// Detector runs the motion pipeline over a serial stream of frames. It owns
// the previous frame's luminance and a bounded history of measurements.
//
// ProcessFrame calls are serialized. All other methods may be called
// concurrently from any goroutine.
type Detector struct {
	tracking    atomic.Bool
	sensitivity atomic.Int32
	minInterval time.Duration
	sinks       []Sink
	maskHook    MaskHook

	mu      sync.Mutex
	prev    *LumaBuffer
	lastRun time.Time
	ran     bool

	hmu     sync.RWMutex
	history *ring[Measurement]
}

// New returns an idle detector.
func New(opts ...Option) *Detector {
	d := &Detector{
		minInterval: DefaultMinInterval,
		history:     newRing[Measurement](DefaultHistorySize),
	}
	d.sensitivity.Store(DefaultSensitivity)
	for _, o := range opts {
		o(d)
	}
	return d
}

// Reset discards the baseline frame, the throttle state and the history. The
// next processed frame becomes the new baseline.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
}

// reset is Reset with mu held.
func (d *Detector) reset() {
	d.prev = nil
	d.ran = false
	d.lastRun = time.Time{}

	d.hmu.Lock()
	d.history.Clear()
	d.hmu.Unlock()
}

// SetSensitivity updates the sensitivity, clamping it to the valid range.
// It takes effect on the next cycle.
func (d *Detector) SetSensitivity(s int) {
	d.sensitivity.Store(int32(ClampSensitivity(s)))
}

// Sensitivity returns the current sensitivity.
func (d *Detector) Sensitivity() int {
	return int(d.sensitivity.Load())
}

// SetTracking enables or disables detection. Enabling an idle detector
// resets it. Disabling takes effect immediately, including for a cycle that
// is already running.
func (d *Detector) SetTracking(on bool) {
	if !on {
		d.tracking.Store(false)
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tracking.CompareAndSwap(false, true) {
		d.reset()
	}
}

// Tracking reports whether the detector is active.
func (d *Detector) Tracking() bool {
	return d.tracking.Load()
}

// History returns the recorded measurements, oldest first.
func (d *Detector) History() []Measurement {
	d.hmu.RLock()
	defer d.hmu.RUnlock()
	return d.history.Slice()
}

// ProcessFrame runs one detection cycle on f captured at now. It returns
// false for frames that are throttled, malformed, used as a baseline, or
// that show no significant motion, and whenever the detector is idle.
// Emitted events are passed to every sink before being returned.
func (d *Detector) ProcessFrame(f Frame, now time.Time) (Event, bool) {
	if !d.tracking.Load() {
		return Event{}, false
	}
	if f.Validate() != nil {
		return Event{}, false
	}

	d.mu.Lock()
	ev, ok := d.process(f, now)
	d.mu.Unlock()

	if !ok || !d.tracking.Load() {
		return Event{}, false
	}
	for _, s := range d.sinks {
		s.HandleMotion(ev)
	}
	return ev, true
}

func (d *Detector) process(f Frame, now time.Time) (Event, bool) {
	if d.ran && now.Sub(d.lastRun) < d.minInterval {
		return Event{}, false
	}
	d.ran, d.lastRun = true, now

	cur := Luminance(f)
	prev := d.prev
	d.prev = &cur
	if prev == nil {
		return Event{}, false
	}

	s := d.Sensitivity()
	mask, count, err := Diff(cur, *prev, s)
	if err != nil {
		// resolution changed, cur is the new baseline
		return Event{}, false
	}
	if d.maskHook != nil {
		d.maskHook(cur, mask, count)
	}

	if !Significant(count, s) {
		return Event{}, false
	}

	d.hmu.Lock()
	d.history.Push(Measurement{Timestamp: now, PixelCount: count})
	d.hmu.Unlock()

	ev := Event{Timestamp: now, PixelCount: count, Sensitivity: s}
	if box, ok := Cluster(mask, count, s); ok {
		ev.Box = &box
	}
	return ev, true
}
