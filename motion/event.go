package motion

import (
	"fmt"
	"time"
)

// Event describes significant motion found in one frame. Box is nil when the
// changed pixels could not be clustered into a valid region.
type Event struct {
	Timestamp   time.Time    `json:"timestamp"`
	PixelCount  int          `json:"pixels"`
	Box         *BoundingBox `json:"box,omitempty"`
	Sensitivity int          `json:"sensitivity"`
}

func (e Event) String() string {
	box := "none"
	if e.Box != nil {
		box = e.Box.String()
	}
	return fmt.Sprintf("motion at %s: %d px, box %s, sensitivity %d",
		e.Timestamp.Format("15:04:05.000"), e.PixelCount, box, e.Sensitivity)
}

// Measurement is one entry of the detector history.
type Measurement struct {
	Timestamp  time.Time `json:"timestamp"`
	PixelCount int       `json:"pixels"`
}

// A Sink receives events from a Detector. HandleMotion is called
// synchronously from the detection loop and must not block.
type Sink interface {
	HandleMotion(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// HandleMotion calls f(e).
func (f SinkFunc) HandleMotion(e Event) {
	f(e)
}
