package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/companyzero/uvcloop/internal/audio"
	"github.com/companyzero/uvcloop/internal/loopctl"
	"github.com/companyzero/uvcloop/internal/usbwatch"
	"github.com/companyzero/uvcloop/internal/version"
	"github.com/decred/slog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func runPrometheusListener(ctx context.Context, addr string, reg *prometheus.Registry,
	log slog.Logger) error {

	mux := http.NewServeMux()
	promHandler := promhttp.InstrumentMetricHandler(
		reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)
	mux.Handle("/metrics", promHandler)
	hs := http.Server{
		Addr:        addr,
		BaseContext: func(net.Listener) context.Context { return ctx },
		Handler:     mux,
	}
	log.Infof("Exposing prometheus metrics on %s", addr)
	go func() {
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		hs.Shutdown(ctx)
	}()
	err := hs.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// loopbackOptions builds the loopback options from the settings. Configured
// device names are resolved to the ids of the currently listed devices.
func loopbackOptions(cfg *settings, reg prometheus.Registerer, log slog.Logger) []audio.Option {
	opts := []audio.Option{
		audio.WithPlaybackGain(cfg.PlaybackGain),
		audio.WithMetricsRegisterer(reg),
		audio.WithSoundStateChanged(func(hasSound bool) {
			if hasSound {
				log.Debugf("Sound detected on capture device")
			} else {
				log.Debugf("Capture device went silent")
			}
		}),
	}
	if cfg.CaptureDevice == "" && cfg.PlaybackDevice == "" {
		return opts
	}

	devices, err := audio.ListAudioDevices(log)
	if err != nil {
		log.Warnf("Unable to list audio devices to resolve configured "+
			"devices: %v", err)
		return opts
	}
	if cfg.CaptureDevice != "" {
		if id, ok := findDeviceByName(devices.Capture, cfg.CaptureDevice); ok {
			opts = append(opts, audio.WithCaptureDevicePreference(id))
		} else {
			log.Warnf("Configured capture device %q not found", cfg.CaptureDevice)
		}
	}
	if cfg.PlaybackDevice != "" {
		if id, ok := findDeviceByName(devices.Playback, cfg.PlaybackDevice); ok {
			opts = append(opts, audio.WithPlaybackDevicePreference(id))
		} else {
			log.Warnf("Configured playback device %q not found", cfg.PlaybackDevice)
		}
	}
	return opts
}

func realMain() error {
	// Settings.
	cfg, err := obtainSettings()
	if err != nil {
		return err
	}

	// Log.
	logBknd, err := newLogBackend(cfg.LogFile, cfg.DebugLevel, os.Stdout)
	if err != nil {
		return err
	}
	defer logBknd.close()
	log := logBknd.logger(subsysMain)
	log.Infof("Running uvcloopd version %s", version.String())

	if cfg.ListDevices {
		devices, err := audio.ListAudioDevices(logBknd.logger(subsysAudio))
		if err != nil {
			return err
		}
		return printDevices(&devices)
	}

	// Main context.
	errMainCtxCanceled := errors.New("main context canceled")
	sigCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, mainCancel := context.WithCancelCause(context.Background())
	go func() {
		<-sigCtx.Done()
		log.Infof("Interrupt detected. Shutting down.")
		mainCancel(errMainCtxCanceled)
	}()

	// Profiler.
	if cfg.Profiler != "" {
		log.Infof("Profiler enabled on http://%v/debug/pprof",
			cfg.Profiler)
		go http.ListenAndServe(cfg.Profiler, nil)
	}

	// Metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Loopback engine.
	opts := loopbackOptions(cfg, reg, logBknd.logger(subsysAudio))
	loop, err := audio.NewLoopback(logBknd.logger(subsysLoopback), opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := loop.FreeContext(); err != nil {
			log.Warnf("Unable to free audio context: %v", err)
		}
	}()

	// USB watcher and controller.
	watcher := usbwatch.New(usbwatch.Config{
		AllowIDs:       cfg.CaptureIDs,
		DevDir:         cfg.DevDir,
		RescanInterval: cfg.RescanInterval,
		Log:            logBknd.logger(subsysUSB),
	})
	ctl := loopctl.New(loopctl.Config{
		Engine: loop,
		Log:    logBknd.logger(subsysControl),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return ctl.Run(gctx, watcher.Events()) })
	g.Go(func() error { return loop.RunStatsLoop(gctx, cfg.StatsInterval) })
	if cfg.ListenPrometheus != "" {
		g.Go(func() error {
			return runPrometheusListener(gctx, cfg.ListenPrometheus, reg, log)
		})
	}
	if cfg.Interactive {
		userCtl, err := initUserInputCtl(ctl, loop, func() {
			mainCancel(errMainCtxCanceled)
		})
		if err != nil {
			mainCancel(err)
			g.Wait()
			return err
		}
		g.Go(func() error { return userCtl.run(gctx) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) && context.Cause(ctx) == errMainCtxCanceled {
		// Ignore graceful shutdown error.
		return nil
	}
	return err
}

func main() {
	err := realMain()
	if err != nil {
		fmt.Println("Error:", err.Error())
		os.Exit(1)
	}
}
