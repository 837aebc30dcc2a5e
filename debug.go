package main

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/http"
	"os"
	"sync"

	"github.com/disintegration/gift"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/harrydb/go/img/grayscale"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/tcolgate/motiontrack/motion"
)

// blobs smaller than this are not reported
const minBlob = 4

var boxColor = color.NRGBA{R: 255, A: 230}

// debugView keeps a copy of the most recent comparison so it can be served
// as images and JSON. It observes the detector through a mask hook and
// receives events as a sink.
type debugView struct {
	sync.RWMutex
	log  logrus.FieldLogger
	proc *process.Process

	compared int
	count    int
	luma     *image.Gray
	mask     *image.Gray
	last     *record

	dilate *gift.GIFT
}

func newDebugView(log logrus.FieldLogger) *debugView {
	v := &debugView{
		log: log,
		// sampled mask pixels are up to 4 apart, join them into blobs
		dilate: gift.New(gift.Maximum(5, false)),
	}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.WithError(err).Debug("process stats unavailable")
	} else {
		v.proc = p
	}
	return v
}

// observe is a motion.MaskHook.
func (v *debugView) observe(l motion.LumaBuffer, m motion.Mask, count int) {
	v.Lock()
	defer v.Unlock()

	r := image.Rect(0, 0, l.Width, l.Height)
	if v.luma == nil || v.luma.Rect != r {
		v.luma = image.NewGray(r)
		v.mask = image.NewGray(r)
	}
	for i, y := range l.Values {
		v.luma.Pix[i] = uint8(y)
	}
	for i, set := range m.Flags {
		if set {
			v.mask.Pix[i] = 255
		} else {
			v.mask.Pix[i] = 0
		}
	}
	v.count = count
	v.compared++
}

func (v *debugView) send(r record) {
	v.Lock()
	v.last = &r
	v.Unlock()
}

// blobs returns the dilated mask and its connected components larger than
// minBlob. Callers hold the read lock.
func (v *debugView) blobs() (*image.Gray, []grayscale.CoCo) {
	if v.mask == nil {
		return nil, nil
	}
	dst := image.NewGray(v.dilate.Bounds(v.mask.Bounds()))
	v.dilate.Draw(dst, v.mask)

	cocos := grayscale.CoCos(dst, 255, grayscale.NEIGHBOR8)
	filtered := cocos[:0]
	for i := range cocos {
		if len(cocos[i]) > minBlob {
			filtered = append(filtered, cocos[i])
		}
	}
	return dst, filtered
}

// renderMask draws each blob in its own colour and outlines the last
// event's box with renderer padding.
func (v *debugView) renderMask() *image.NRGBA {
	v.RLock()
	defer v.RUnlock()

	dil, cocos := v.blobs()
	if dil == nil {
		return nil
	}
	out := image.NewNRGBA(dil.Bounds())
	draw.Draw(out, out.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	pal := colorful.FastWarmPalette(len(cocos))
	for i := range cocos {
		for _, p := range cocos[i] {
			out.Set(p.X, p.Y, pal[i])
		}
	}

	if v.last != nil && v.last.Box != nil {
		outline(out, v.last.Box.Pad(motion.Padding(v.last.Sensitivity)), boxColor)
	}
	return out
}

func outline(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetNRGBA(x, r.Min.Y, c)
		img.SetNRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetNRGBA(r.Min.X, y, c)
		img.SetNRGBA(r.Max.X-1, y, c)
	}
}

type status struct {
	Tracking     bool    `json:"tracking"`
	Sensitivity  int     `json:"sensitivity"`
	Compared     int     `json:"frames_compared"`
	LastPixels   int     `json:"last_pixels"`
	Blobs        int     `json:"blobs"`
	History      int     `json:"history"`
	PixelsMean   float64 `json:"pixels_mean"`
	PixelsStdDev float64 `json:"pixels_stddev"`
	CPUPercent   float64 `json:"cpu_percent"`
	LastEvent    *record `json:"last_event,omitempty"`
}

func (v *debugView) status(det *motion.Detector) status {
	h := det.History()
	st := status{
		Tracking:    det.Tracking(),
		Sensitivity: det.Sensitivity(),
		History:     len(h),
	}

	if len(h) > 0 {
		xs := make([]float64, len(h))
		for i := range h {
			xs[i] = float64(h[i].PixelCount)
		}
		if len(xs) > 1 {
			st.PixelsMean, st.PixelsStdDev = stat.MeanStdDev(xs, nil)
		} else {
			st.PixelsMean = xs[0]
		}
	}

	if v.proc != nil {
		if pct, err := v.proc.CPUPercent(); err == nil {
			st.CPUPercent = pct
		}
	}

	v.RLock()
	defer v.RUnlock()
	st.Compared = v.compared
	st.LastPixels = v.count
	_, cocos := v.blobs()
	st.Blobs = len(cocos)
	st.LastEvent = v.last
	return st
}

func historyChart(h []motion.Measurement) *charts.Line {
	xs := make([]string, len(h))
	ys := make([]opts.LineData, len(h))
	for i, m := range h {
		xs[i] = m.Timestamp.Format("15:04:05.000")
		ys[i] = opts.LineData{Value: m.PixelCount}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "motiontrack"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Motion history",
			Subtitle: fmt.Sprintf("last %d significant frames", len(h)),
		}),
	)
	line.SetXAxis(xs).AddSeries("pixels", ys)
	return line
}

// handler serves the debug pages below a stripped prefix.
func (v *debugView) handler(det *motion.Detector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "luma":
			v.RLock()
			defer v.RUnlock()
			if v.luma == nil {
				http.Error(w, "no frames compared yet", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "image/png")
			png.Encode(w, v.luma)
		case "mask":
			img := v.renderMask()
			if img == nil {
				http.Error(w, "no frames compared yet", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "image/png")
			png.Encode(w, img)
		case "status":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(v.status(det))
		case "history.json":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(det.History())
		case "history":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			if err := historyChart(det.History()).Render(w); err != nil {
				v.log.WithError(err).Error("rendering history chart")
			}
		default:
			http.Error(w, "file not found", http.StatusNotFound)
		}
	})
}
