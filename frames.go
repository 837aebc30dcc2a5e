package main

import (
	"image"
	"time"

	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcolgate/motiontrack/motion"
)

// framePrep turns decoded camera images into detector frames.
type framePrep struct {
	width int
	g     *gift.GIFT
}

func newFramePrep(width int, blur float64) *framePrep {
	p := &framePrep{width: width}
	if blur > 0 {
		p.g = gift.New(gift.GaussianBlur(float32(blur)))
	}
	return p
}

func (p *framePrep) Frame(img image.Image) motion.Frame {
	var n *image.NRGBA
	if p.width > 0 && img.Bounds().Dx() > p.width {
		n = imaging.Resize(img, p.width, 0, imaging.Box)
	} else {
		n = imaging.Clone(img)
	}

	if p.g != nil {
		dst := image.NewNRGBA(p.g.Bounds(n.Bounds()))
		p.g.Draw(dst, n)
		n = dst
	}

	return motion.Frame{
		Width:  n.Rect.Dx(),
		Height: n.Rect.Dy(),
		Pix:    n.Pix,
	}
}

// replay feeds image files to det as if captured fps apart, returning the
// number of events produced.
func replay(det *motion.Detector, prep *framePrep, files []string, fps float64, log logrus.FieldLogger) (int, error) {
	if fps <= 0 {
		return 0, errors.Errorf("invalid frame rate %v", fps)
	}
	step := time.Duration(float64(time.Second) / fps)
	start := time.Now()

	events := 0
	for i, fn := range files {
		img, err := imaging.Open(fn)
		if err != nil {
			return events, errors.Wrapf(err, "frame %d", i)
		}
		f := prep.Frame(img)
		log.WithFields(logrus.Fields{"file": fn, "width": f.Width, "height": f.Height}).Debug("frame")
		if _, ok := det.ProcessFrame(f, start.Add(time.Duration(i)*step)); ok {
			events++
		}
	}
	return events, nil
}
