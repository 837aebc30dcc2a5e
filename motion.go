package main

import (
	"context"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tcolgate/motiontrack/motion"
)

// detectmotion feeds raw camera frames through det until fi is closed or
// ctx is done. Frames arrive serially and are processed in order; the
// detector throttles them itself.
func detectmotion(ctx context.Context, fi <-chan []byte, decode func([]byte) (image.Image, error), prep *framePrep, det *motion.Detector, log logrus.FieldLogger) {
	var dropped int
	for {
		var bframe []byte
		var ok bool
		select {
		case <-ctx.Done():
			return
		case bframe, ok = <-fi:
			if !ok {
				return
			}
		}

		now := time.Now()
		if !det.Tracking() {
			continue
		}

		img, err := decode(bframe)
		if err != nil {
			dropped++
			log.WithError(err).WithField("dropped", dropped).Debug("undecodable frame")
			continue
		}

		det.ProcessFrame(prep.Frame(img), now)
	}
}
