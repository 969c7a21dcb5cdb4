package usbwatch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/decred/slog"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultDevDir is where USB device nodes live on Linux.
	DefaultDevDir = "/dev/bus/usb"

	// DefaultRescanInterval is the interval of the fallback poll.
	DefaultRescanInterval = 5 * time.Second

	// debounceDelay is how long to wait after the last filesystem event
	// before rescanning.
	debounceDelay = 250 * time.Millisecond
)

// Config is the watcher configuration.
type Config struct {
	// AllowIDs are devices that are watched regardless of their class.
	AllowIDs []DeviceID

	// DevDir is watched for changes to trigger rescans. Defaults to
	// DefaultDevDir.
	DevDir string

	// RescanInterval is the interval of the fallback poll. Zero means
	// DefaultRescanInterval. Negative disables the poll.
	RescanInterval time.Duration

	Log slog.Logger
}

type trackedDevice struct {
	info   DeviceInfo
	handle Handle
	denied bool
}

// Watcher watches the USB bus for capture devices and reports them as a
// stream of events.
type Watcher struct {
	cfg    Config
	log    slog.Logger
	events chan Event

	// Replaced in tests.
	listDevices func() ([]DeviceInfo, error)
	openDevice  func(DeviceInfo) (Handle, error)

	// Only accessed by the scanner goroutine.
	known map[string]*trackedDevice
}

// New creates a new watcher.
func New(cfg Config) *Watcher {
	if cfg.DevDir == "" {
		cfg.DevDir = DefaultDevDir
	}
	if cfg.RescanInterval == 0 {
		cfg.RescanInterval = DefaultRescanInterval
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}

	backend := &usbBackend{}
	return &Watcher{
		cfg:         cfg,
		log:         log,
		events:      make(chan Event, 16),
		listDevices: backend.list,
		openDevice:  backend.open,
		known:       make(map[string]*trackedDevice),
	}
}

// Events returns the chan where events are sent. It is closed when Run
// returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// matches returns true if the device should be watched.
func (w *Watcher) matches(d DeviceInfo) bool {
	switch d.Class {
	case ClassAudio, ClassVideo, ClassMisc:
		return true
	}
	return slices.Contains(w.cfg.AllowIDs, d.ID)
}

func (w *Watcher) emit(ctx context.Context, e Event) error {
	w.log.Debugf("Device %s", e)
	select {
	case w.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryOpen attempts to open a tracked device that has no handle yet.
func (w *Watcher) tryOpen(ctx context.Context, td *trackedDevice) error {
	h, err := w.openDevice(td.info)
	switch {
	case isPermissionErr(err):
		if td.denied {
			return nil
		}
		td.denied = true
		w.log.Warnf("Permission denied opening %s (%s)", td.info, td.info.Path)
		return w.emit(ctx, Event{Kind: PermissionDenied, Device: td.info})

	case err != nil:
		w.log.Warnf("Unable to open %s: %v", td.info, err)
		return nil
	}

	td.handle = h
	td.denied = false
	return w.emit(ctx, Event{Kind: Connected, Device: td.info, Handle: h})
}

// detach forgets a removed device.
func (w *Watcher) detach(ctx context.Context, td *trackedDevice) error {
	delete(w.known, td.info.Path)
	if td.handle != nil {
		if err := td.handle.Close(); err != nil {
			w.log.Debugf("Error closing %s: %v", td.info, err)
		}
		td.handle = nil
		if err := w.emit(ctx, Event{Kind: Disconnected, Device: td.info}); err != nil {
			return err
		}
	}
	return w.emit(ctx, Event{Kind: Detached, Device: td.info})
}

// scan lists the devices on the bus and emits events for every change since
// the last scan.
func (w *Watcher) scan(ctx context.Context) error {
	devs, err := w.listDevices()
	if err != nil {
		w.log.Warnf("Unable to list USB devices: %v", err)
		return nil
	}

	seen := make(map[string]struct{}, len(devs))
	for _, d := range devs {
		if !w.matches(d) {
			continue
		}
		seen[d.Path] = struct{}{}

		td, ok := w.known[d.Path]
		if ok && td.info.ID != d.ID {
			// A different device reused the node.
			if err := w.detach(ctx, td); err != nil {
				return err
			}
			ok = false
		}
		if !ok {
			td = &trackedDevice{info: d}
			w.known[d.Path] = td
			if err := w.emit(ctx, Event{Kind: Attached, Device: d}); err != nil {
				return err
			}
		}
		if td.handle == nil {
			if err := w.tryOpen(ctx, td); err != nil {
				return err
			}
		}
	}

	var removed []string
	for path := range w.known {
		if _, ok := seen[path]; !ok {
			removed = append(removed, path)
		}
	}
	slices.Sort(removed)
	for _, path := range removed {
		if err := w.detach(ctx, w.known[path]); err != nil {
			return err
		}
	}
	return nil
}

// closeAll closes the handles of every tracked device.
func (w *Watcher) closeAll() {
	for _, td := range w.known {
		if td.handle == nil {
			continue
		}
		if err := td.handle.Close(); err != nil {
			w.log.Debugf("Error closing %s: %v", td.info, err)
		}
		td.handle = nil
	}
}

func (w *Watcher) runScanner(ctx context.Context, rescan <-chan struct{}) error {
	var tick <-chan time.Time
	if w.cfg.RescanInterval > 0 {
		ticker := time.NewTicker(w.cfg.RescanInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if err := w.scan(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rescan:
		case <-tick:
		}
	}
}

// reloadFSWatchers watches the device dir and every bus dir inside it.
func (w *Watcher) reloadFSWatchers(watcher *fsnotify.Watcher) {
	// Errors are not critical: the fallback poll still finds devices.
	for _, p := range watcher.WatchList() {
		if err := watcher.Remove(p); err != nil {
			w.log.Debugf("Unable to remove previous watcher %s: %v", p, err)
		}
	}

	if err := watcher.Add(w.cfg.DevDir); err != nil {
		w.log.Warnf("Unable to watch %s: %v", w.cfg.DevDir, err)
		return
	}
	entries, err := os.ReadDir(w.cfg.DevDir)
	if err != nil {
		w.log.Warnf("Unable to read %s: %v", w.cfg.DevDir, err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(w.cfg.DevDir, e.Name())
		if err := watcher.Add(dir); err != nil {
			w.log.Warnf("Unable to watch %s: %v", dir, err)
		}
	}
}

func (w *Watcher) runFSWatcher(ctx context.Context, watcher *fsnotify.Watcher,
	rescan chan<- struct{}) {

	w.reloadFSWatchers(watcher)

	// chanRescan debounces events so that a single rescan is done when a
	// device creates multiple nodes in sequence.
	var chanRescan <-chan time.Time

	w.log.Debugf("Watching %s for device changes", w.cfg.DevDir)
	for {
		select {
		case <-ctx.Done():
			return

		case <-chanRescan:
			chanRescan = nil
			select {
			case rescan <- struct{}{}:
			default:
			}
			w.reloadFSWatchers(watcher)

		case event, ok := <-watcher.Events:
			if !ok {
				w.log.Warnf("watcher.Events not ok")
				return
			}
			w.log.Tracef("Watcher event: %s", event)
			chanRescan = time.After(debounceDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				w.log.Warnf("watcher.Errors not ok")
				return
			}
			w.log.Debugf("Watcher error: %v", err)
		}
	}
}

// Run watches the bus until ctx is done. Every open device handle is closed
// and the events chan is closed before it returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	defer w.closeAll()

	rescan := make(chan struct{}, 1)
	g, gctx := errgroup.WithContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warnf("Unable to start filesystem watcher: %v", err)
	} else {
		g.Go(func() error {
			w.runFSWatcher(gctx, watcher, rescan)
			return watcher.Close()
		})
	}
	g.Go(func() error { return w.runScanner(gctx, rescan) })

	return g.Wait()
}
