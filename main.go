package main // import "github.com/tcolgate/motiontrack"

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	isatty "github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tcolgate/motiontrack/config"
	"github.com/tcolgate/motiontrack/motion"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

type options struct {
	configFile string
	cfg        *config.Config
	log        *logrus.Logger
}

func newRootCmd() *cobra.Command {
	o := &options{cfg: config.Default()}

	root := &cobra.Command{
		Use:           "motiontrack",
		Short:         "frame differencing motion detector",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setup(cmd.Flags())
		},
	}

	root.PersistentFlags().StringVarP(&o.configFile, "config", "c", "", "YAML or TOML config file")
	addFlags(root.PersistentFlags(), o.cfg)

	root.AddCommand(watchCommand(o))
	root.AddCommand(replayCommand(o))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	return root
}

func addFlags(fs *pflag.FlagSet, c *config.Config) {
	fs.StringVarP(&c.Device, "device", "d", c.Device, "video device to use")
	fs.StringVarP(&c.Format, "format", "f", c.Format, "video format to use, default first supported")
	fs.StringVarP(&c.Size, "size", "s", c.Size, "frame size to use, default largest one")
	fs.StringVarP(&c.Listen, "listen", "l", c.Listen, "addr to listen on")
	fs.IntVar(&c.Sensitivity, "sensitivity", c.Sensitivity, "detection sensitivity, 10-100")
	fs.IntVar(&c.MinIntervalMS, "min-interval-ms", c.MinIntervalMS, "minimum milliseconds between processed frames")
	fs.IntVar(&c.HistorySize, "history", c.HistorySize, "measurements kept for /debug/history")
	fs.BoolVar(&c.StartIdle, "idle", c.StartIdle, "start with tracking disabled")
	fs.IntVar(&c.ScaleWidth, "scale-width", c.ScaleWidth, "downscale frames wider than this, 0 disables")
	fs.Float64Var(&c.Blur, "blur", c.Blur, "gaussian blur sigma applied before detection, 0 disables")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: auto, text or json")
	fs.BoolVar(&c.Bell, "bell", c.Bell, "ring the terminal bell on motion")
}

// setup loads the config file, if any, and reapplies explicitly set flags
// on top of it.
func (o *options) setup(fs *pflag.FlagSet) error {
	if o.configFile != "" {
		fileCfg, err := config.Load(o.configFile)
		if err != nil {
			return err
		}
		overlay := pflag.NewFlagSet("overlay", pflag.ContinueOnError)
		addFlags(overlay, fileCfg)
		var ferr error
		fs.Visit(func(f *pflag.Flag) {
			if overlay.Lookup(f.Name) == nil {
				return
			}
			if err := overlay.Set(f.Name, f.Value.String()); err != nil && ferr == nil {
				ferr = errors.Wrapf(err, "flag --%s", f.Name)
			}
		})
		if ferr != nil {
			return ferr
		}
		*o.cfg = *fileCfg
	}
	o.cfg.ApplyDefaults()

	log, err := newLogger(o.cfg.LogLevel, o.cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	o.log = log
	return nil
}

func newLogger(level, format string, w io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}

	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(lvl)

	switch format {
	case "auto":
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		} else {
			log.SetFormatter(&logrus.JSONFormatter{})
		}
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
	return log, nil
}

func newDetector(c *config.Config, opts ...motion.Option) *motion.Detector {
	return motion.New(append([]motion.Option{
		motion.WithSensitivity(c.Sensitivity),
		motion.WithMinInterval(c.MinInterval()),
		motion.WithHistorySize(c.HistorySize),
		motion.WithTracking(!c.StartIdle),
	}, opts...)...)
}

// newDispatcher wires the sinks every command shares.
func newDispatcher(c *config.Config, log logrus.FieldLogger, extra ...sink) *dispatcher {
	sinks := []sink{&logSink{log: log}}
	if c.Bell {
		sinks = append(sinks, &bellSink{w: os.Stdout, gap: time.Second})
	}
	return startDispatcher(log, append(sinks, extra...)...)
}

func watchCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Detect motion on a V4L camera and serve the debug pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return watch(ctx, o.cfg, o.log)
		},
	}
}

func watch(ctx context.Context, c *config.Config, log *logrus.Logger) error {
	view := newDebugView(log)
	hub := newWSHub(log)
	disp := newDispatcher(c, log, view, hub)
	defer disp.Close()

	det := newDetector(c, motion.WithSink(disp), motion.WithMaskHook(view.observe))
	prep := newFramePrep(c.ScaleWidth, c.Blur)

	stream := &streamProxy{}
	mux := http.NewServeMux()
	mux.Handle("/", indexHandler())
	mux.Handle("/stream", stream)
	mux.Handle("/events", hub)
	mux.Handle("/debug/", http.StripPrefix("/debug/", view.handler(det)))
	mux.Handle("/tracking", trackingHandler(det, log))
	mux.Handle("/sensitivity", sensitivityHandler(det, log))

	srv := &http.Server{Addr: c.Listen, Handler: mux}
	go func() {
		log.WithField("addr", c.Listen).Info("serving debug pages")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server failed")
		}
	}()
	defer srv.Close()

	for {
		cam, err := openCamera(c.Device, c.Format, c.Size, log)
		if err != nil {
			return errors.Wrapf(err, "opening %s", c.Device)
		}
		stream.set(cam)
		// a new device means a new baseline
		det.Reset()

		frames := cam.Subscribe()
		done := make(chan struct{})
		go func() {
			defer close(done)
			detectmotion(ctx, frames, cam.Image, prep, det, log)
		}()

		err = cam.Run(ctx)
		cam.Unsubscribe(frames)
		<-done
		stream.set(nil)

		if ctx.Err() != nil {
			return nil
		}
		log.WithError(err).Warn("camera stopped, reopening")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func replayCommand(o *options) *cobra.Command {
	var fps float64
	cmd := &cobra.Command{
		Use:   "replay <image>...",
		Short: "Run the detector over still images as consecutive frames",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			disp := newDispatcher(o.cfg, o.log)
			defer disp.Close()

			det := newDetector(o.cfg, motion.WithSink(disp), motion.WithTracking(true))
			n, err := replay(det, newFramePrep(o.cfg.ScaleWidth, o.cfg.Blur), args, fps, o.log)
			if err != nil {
				return err
			}
			o.log.WithFields(logrus.Fields{"frames": len(args), "events": n}).Info("replay finished")
			return nil
		},
	}
	cmd.Flags().Float64Var(&fps, "fps", 10, "frame rate the images were captured at")
	return cmd
}
