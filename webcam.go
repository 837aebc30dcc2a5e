package main

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	fmtYUYV  = 0x56595559
	fmtMJPEG = 0x47504a4d
)

var supportedFormats = map[webcam.PixelFormat]bool{
	fmtYUYV:  true,
	fmtMJPEG: true,
}

// camera is the frame source for the detector. Raw frames are fanned out
// to subscribers; slow subscribers miss frames rather than stall capture.
type camera struct {
	cam     *webcam.Webcam
	timeout uint32
	f       webcam.PixelFormat
	w, h    uint32
	log     logrus.FieldLogger

	lock sync.RWMutex
	subs map[chan []byte]struct{}
}

func openCamera(dev, fmtstr, szstr string, log logrus.FieldLogger) (*camera, error) {
	cam, err := webcam.Open(dev)
	if err != nil {
		return nil, err
	}

	formats := cam.GetSupportedFormats()
	for f, s := range formats {
		log.Debugf("available format: %s (%#x)", s, uint32(f))
	}
	format, err := chooseFormat(formats, fmtstr)
	if err != nil {
		cam.Close()
		return nil, err
	}
	size, err := chooseSize(cam.GetSupportedFrameSizes(format), szstr)
	if err != nil {
		cam.Close()
		return nil, errors.Wrap(err, formats[format])
	}

	f, w, h, err := cam.SetImageFormat(format, size.MaxWidth, size.MaxHeight)
	if err != nil {
		cam.Close()
		return nil, errors.Wrap(err, "SetImageFormat")
	}
	log.WithFields(logrus.Fields{"device": dev, "width": w, "height": h, "format": formats[f]}).Info("camera ready")

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, errors.Wrap(err, "failed to start stream")
	}

	return &camera{
		cam:     cam,
		timeout: 1,
		f:       f,
		w:       w,
		h:       h,
		log:     log,
		subs:    make(map[chan []byte]struct{}),
	}, nil
}

// chooseFormat picks the named format, or any format we can decode when
// name is empty.
func chooseFormat(formats map[webcam.PixelFormat]string, name string) (webcam.PixelFormat, error) {
	if name == "" {
		// prefer YUYV, it needs no jpeg decode per frame
		for _, f := range []webcam.PixelFormat{fmtYUYV, fmtMJPEG} {
			if _, ok := formats[f]; ok {
				return f, nil
			}
		}
		return 0, errors.New("no supported format found")
	}
	for f, s := range formats {
		if s != name {
			continue
		}
		if !supportedFormats[f] {
			return 0, errors.Errorf("format %q is not supported", name)
		}
		return f, nil
	}
	return 0, errors.Errorf("format %q not offered by device", name)
}

// chooseSize picks the largest frame size when want is empty. Otherwise want
// is either WxH or one of the device's own size strings.
func chooseSize(sizes []webcam.FrameSize, want string) (webcam.FrameSize, error) {
	if len(sizes) == 0 {
		return webcam.FrameSize{}, errors.New("no frame sizes")
	}
	sort.Slice(sizes, func(i, j int) bool {
		return sizes[i].MaxWidth*sizes[i].MaxHeight < sizes[j].MaxWidth*sizes[j].MaxHeight
	})

	if want == "" {
		return sizes[len(sizes)-1], nil
	}
	if w, h, ok := parseSize(want); ok {
		return webcam.FrameSize{MaxWidth: w, MaxHeight: h}, nil
	}
	for _, s := range sizes {
		if s.GetString() == want {
			return s, nil
		}
	}
	return webcam.FrameSize{}, errors.Errorf("no matching frame size %q", want)
}

func parseSize(s string) (w, h uint32, ok bool) {
	ws, hs, found := strings.Cut(s, "x")
	if !found {
		return 0, 0, false
	}
	x, xerr := strconv.ParseUint(ws, 10, 32)
	y, yerr := strconv.ParseUint(hs, 10, 32)
	if xerr != nil || yerr != nil || x == 0 || y == 0 {
		return 0, 0, false
	}
	return uint32(x), uint32(y), true
}

// motion jpeg frames are missing attributes for use as a
// regular jpeg. We add them back here.
func addMotionDht(frame []byte) []byte {
	var (
		dhtMarker = []byte{255, 196}
		dht       = []byte{1, 162, 0, 0, 1, 5, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 1, 0, 3, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 16, 0, 2, 1, 3, 3, 2, 4, 3, 5, 5, 4, 4, 0, 0, 1, 125, 1, 2, 3, 0, 4, 17, 5, 18, 33, 49, 65, 6, 19, 81, 97, 7, 34, 113, 20, 50, 129, 145, 161, 8, 35, 66, 177, 193, 21, 82, 209, 240, 36, 51, 98, 114, 130, 9, 10, 22, 23, 24, 25, 26, 37, 38, 39, 40, 41, 42, 52, 53, 54, 55, 56, 57, 58, 67, 68, 69, 70, 71, 72, 73, 74, 83, 84, 85, 86, 87, 88, 89, 90, 99, 100, 101, 102, 103, 104, 105, 106, 115, 116, 117, 118, 119, 120, 121, 122, 131, 132, 133, 134, 135, 136, 137, 138, 146, 147, 148, 149, 150, 151, 152, 153, 154, 162, 163, 164, 165, 166, 167, 168, 169, 170, 178, 179, 180, 181, 182, 183, 184, 185, 186, 194, 195, 196, 197, 198, 199, 200, 201, 202, 210, 211, 212, 213, 214, 215, 216, 217, 218, 225, 226, 227, 228, 229, 230, 231, 232, 233, 234, 241, 242, 243, 244, 245, 246, 247, 248, 249, 250, 17, 0, 2, 1, 2, 4, 4, 3, 4, 7, 5, 4, 4, 0, 1, 2, 119, 0, 1, 2, 3, 17, 4, 5, 33, 49, 6, 18, 65, 81, 7, 97, 113, 19, 34, 50, 129, 8, 20, 66, 145, 161, 177, 193, 9, 35, 51, 82, 240, 21, 98, 114, 209, 10, 22, 36, 52, 225, 37, 241, 23, 24, 25, 26, 38, 39, 40, 41, 42, 53, 54, 55, 56, 57, 58, 67, 68, 69, 70, 71, 72, 73, 74, 83, 84, 85, 86, 87, 88, 89, 90, 99, 100, 101, 102, 103, 104, 105, 106, 115, 116, 117, 118, 119, 120, 121, 122, 130, 131, 132, 133, 134, 135, 136, 137, 138, 146, 147, 148, 149, 150, 151, 152, 153, 154, 162, 163, 164, 165, 166, 167, 168, 169, 170, 178, 179, 180, 181, 182, 183, 184, 185, 186, 194, 195, 196, 197, 198, 199, 200, 201, 202, 210, 211, 212, 213, 214, 215, 216, 217, 218, 226, 227, 228, 229, 230, 231, 232, 233, 234, 242, 243, 244, 245, 246, 247, 248, 249, 250}
		sosMarker = []byte{255, 218}
	)
	jpegParts := bytes.SplitN(frame, sosMarker, 2)
	if len(jpegParts) != 2 {
		return frame
	}
	return append(jpegParts[0], append(dhtMarker, append(dht, append(sosMarker, jpegParts[1]...)...)...)...)
}

func frameToImage(frame []byte, w, h uint32, format webcam.PixelFormat) (image.Image, error) {
	switch format {
	case fmtYUYV:
		if len(frame) < int(w*h*2) {
			return nil, errors.New("short YUYV frame")
		}
		img := image.NewYCbCr(image.Rect(0, 0, int(w), int(h)), image.YCbCrSubsampleRatio422)
		// Y0 Cb Y1 Cr per pair of pixels
		for i := range img.Cb {
			px := frame[i*4 : i*4+4]
			img.Y[i*2], img.Cb[i], img.Y[i*2+1], img.Cr[i] = px[0], px[1], px[2], px[3]
		}
		return img, nil
	case fmtMJPEG:
		img, err := jpeg.Decode(bytes.NewReader(addMotionDht(frame)))
		return img, errors.Wrap(err, "decoding mjpeg frame")
	}
	return nil, errors.Errorf("unknown pixel format %#x", uint32(format))
}

func encodeToJPEG(frame []byte, w, h uint32, format webcam.PixelFormat) ([]byte, error) {
	switch format {
	case fmtMJPEG:
		return addMotionDht(frame), nil
	}
	img, err := frameToImage(frame, w, h, format)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, errors.Wrap(err, "encoding jpeg")
	}
	return buf.Bytes(), nil
}

// Image decodes a raw frame delivered to a subscriber.
func (mc *camera) Image(frame []byte) (image.Image, error) {
	return frameToImage(frame, mc.w, mc.h, mc.f)
}

// Run captures frames until ctx is done or the device fails.
func (mc *camera) Run(ctx context.Context) error {
	defer mc.cam.Close()

	mc.log.Info("running webcam loop")
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := mc.cam.WaitForFrame(mc.timeout)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			continue
		default:
			return errors.Wrap(err, "unhandled error from WaitForFrame")
		}

		frame, err := mc.cam.ReadFrame()
		if err != nil {
			return errors.Wrap(err, "unhandled error reading frame")
		}
		if len(frame) == 0 {
			continue
		}

		mc.lock.RLock()
		for ch := range mc.subs {
			fc := make([]byte, len(frame))
			copy(fc, frame)
			select {
			case ch <- fc:
			default:
			}
		}
		mc.lock.RUnlock()
	}
}

func (mc *camera) Subscribe() chan []byte {
	mc.lock.Lock()
	defer mc.lock.Unlock()
	ch := make(chan []byte, 1)
	mc.subs[ch] = struct{}{}
	mc.log.Debug("subscriber added")
	return ch
}

func (mc *camera) Unsubscribe(ch chan []byte) {
	mc.lock.Lock()
	defer mc.lock.Unlock()

	if _, ok := mc.subs[ch]; ok {
		delete(mc.subs, ch)
		close(ch)
	}
	mc.log.Debug("subscriber removed")
}

// ServeHTTP streams the camera as multipart MJPEG.
func (mc *camera) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	frames := mc.Subscribe()
	defer mc.Unsubscribe(frames)

	multipartWriter := multipart.NewWriter(w)
	var boundary = multipartWriter.Boundary()
	w.Header().Set("Content-Type", `multipart/x-mixed-replace;boundary=`+boundary)

	for {
		var frame []byte
		var ok bool
		select {
		case frame, ok = <-frames:
			if !ok {
				return
			}
		case <-r.Context().Done():
			return
		}

		image, err := encodeToJPEG(frame, mc.w, mc.h, mc.f)
		if err != nil {
			mc.log.WithError(err).Debug("dropping frame")
			continue
		}
		iw, err := multipartWriter.CreatePart(textproto.MIMEHeader{
			"Content-type":   []string{"image/jpeg"},
			"Content-length": []string{strconv.Itoa(len(image))},
		})
		if err != nil {
			mc.log.WithError(err).Debug("stream client gone")
			return
		}
		if _, err = iw.Write(image); err != nil {
			return
		}
	}
}

// streamProxy serves the stream of whichever camera is currently open.
type streamProxy struct {
	mu  sync.RWMutex
	cam *camera
}

func (s *streamProxy) set(c *camera) {
	s.mu.Lock()
	s.cam = c
	s.mu.Unlock()
}

func (s *streamProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	c := s.cam
	s.mu.RUnlock()
	if c == nil {
		http.Error(w, "no camera", http.StatusServiceUnavailable)
		return
	}
	c.ServeHTTP(w, r)
}
