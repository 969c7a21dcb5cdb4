// Package loopctl drives the loopback engine from USB hot-plug events and
// user commands.
//
// Every call into the engine is made from the goroutine running
// Controller.Run.
package loopctl

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/companyzero/uvcloop/internal/audio"
	"github.com/companyzero/uvcloop/internal/usbwatch"
	"github.com/decred/slog"
)

// Engine is the loopback engine driven by the controller.
type Engine interface {
	Start() bool
	Stop()
}

// Status is the user-facing status of the loopback.
type Status int

const (
	// StatusWaiting means no capture device is attached.
	StatusWaiting Status = iota

	// StatusAttached means a capture device is attached but not yet
	// accessible.
	StatusAttached

	// StatusPermissionDenied means the attached device cannot be opened.
	StatusPermissionDenied

	// StatusRunning means audio is being looped back.
	StatusRunning

	// StatusStartFailed means the engine failed to start.
	StatusStartFailed

	// StatusStopped means the user stopped the loopback.
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting for USB device"
	case StatusAttached:
		return "USB device attached"
	case StatusPermissionDenied:
		return "USB permission denied"
	case StatusRunning:
		return "audio loopback running"
	case StatusStartFailed:
		return "audio start failed"
	case StatusStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown status %d", int(s))
	}
}

// routeReporter is implemented by engines that report the devices in use.
type routeReporter interface {
	Routes() (capture, playback *audio.Device)
}

var errControllerDone = errors.New("controller is not running")

type command int

const (
	cmdStart command = iota
	cmdStop
)

// Config is the controller configuration.
type Config struct {
	Engine Engine
	Log    slog.Logger

	// OnStatusChanged is called from the Run goroutine every time the
	// status changes.
	OnStatusChanged func(Status)
}

// Controller owns the engine lifecycle.
type Controller struct {
	cfg  Config
	log  slog.Logger
	cmds chan command
	done chan struct{}

	mtx           sync.Mutex
	status        Status
	captureRoute  *audio.Device
	playbackRoute *audio.Device

	// Only accessed by Run.
	device    *usbwatch.DeviceInfo
	connected bool
}

// New creates a new controller.
func New(cfg Config) *Controller {
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	return &Controller{
		cfg:  cfg,
		log:  log,
		cmds: make(chan command, 8),
		done: make(chan struct{}),
	}
}

// Status returns the current status.
func (c *Controller) Status() Status {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.status
}

func (c *Controller) setStatus(s Status) {
	c.mtx.Lock()
	changed := c.status != s
	c.status = s
	c.mtx.Unlock()

	if !changed {
		return
	}
	c.log.Infof("Status: %s", s)
	if c.cfg.OnStatusChanged != nil {
		c.cfg.OnStatusChanged(s)
	}
}

func (c *Controller) sendCmd(cmd command) error {
	select {
	case c.cmds <- cmd:
		return nil
	case <-c.done:
		return errControllerDone
	}
}

// RequestStart asks the controller to start the loopback on the connected
// device.
func (c *Controller) RequestStart() error {
	return c.sendCmd(cmdStart)
}

// RequestStop asks the controller to stop the loopback.
func (c *Controller) RequestStop() error {
	return c.sendCmd(cmdStop)
}

// Routes returns the devices used by the running loopback. Nil devices mean
// the system default is in use.
func (c *Controller) Routes() (capture, playback *audio.Device) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.captureRoute, c.playbackRoute
}

func (c *Controller) setRoutes(capture, playback *audio.Device) {
	c.mtx.Lock()
	c.captureRoute, c.playbackRoute = capture, playback
	c.mtx.Unlock()
}

// stop stops the engine.
func (c *Controller) stop() {
	c.cfg.Engine.Stop()
	c.setRoutes(nil, nil)
}

// start (re)starts the engine. A running session is stopped first so that
// the new device gets fresh endpoints.
func (c *Controller) start() {
	c.stop()
	if !c.cfg.Engine.Start() {
		c.log.Errorf("Unable to start audio loopback")
		c.setStatus(StatusStartFailed)
		return
	}
	if rr, ok := c.cfg.Engine.(routeReporter); ok {
		c.setRoutes(rr.Routes())
	}
	c.setStatus(StatusRunning)
}

func (c *Controller) isCurrent(dev usbwatch.DeviceInfo) bool {
	return c.device != nil && c.device.Path == dev.Path
}

func (c *Controller) handleEvent(e usbwatch.Event) {
	switch e.Kind {
	case usbwatch.Attached:
		dev := e.Device
		c.device = &dev
		c.connected = false
		c.log.Infof("USB device attached: %s", dev)
		c.setStatus(StatusAttached)

	case usbwatch.Connected:
		dev := e.Device
		c.device = &dev
		c.connected = true
		if e.Handle != nil && !e.Handle.HasAudio() {
			c.log.Warnf("USB device %s reports no audio interface", dev)
		}
		c.log.Infof("USB device connected: %s", dev)
		c.start()

	case usbwatch.PermissionDenied:
		c.log.Warnf("No permission to access USB device %s", e.Device)
		c.setStatus(StatusPermissionDenied)

	case usbwatch.Disconnected, usbwatch.Detached:
		if !c.isCurrent(e.Device) {
			return
		}
		c.stop()
		c.connected = false
		if e.Kind == usbwatch.Detached {
			c.device = nil
			c.log.Infof("USB device detached: %s", e.Device)
		}
		c.setStatus(StatusWaiting)
	}
}

func (c *Controller) handleCmd(cmd command) {
	switch cmd {
	case cmdStart:
		if !c.connected {
			c.log.Warnf("No USB capture device detected")
			return
		}
		c.start()

	case cmdStop:
		c.stop()
		c.setStatus(StatusStopped)
	}
}

// Run processes events and commands until ctx is done. The engine is stopped
// before it returns.
func (c *Controller) Run(ctx context.Context, events <-chan usbwatch.Event) error {
	defer close(c.done)
	defer c.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case e, ok := <-events:
			if !ok {
				// The watcher is gone. Keep serving commands.
				events = nil
				continue
			}
			c.handleEvent(e)

		case cmd := <-c.cmds:
			c.handleCmd(cmd)
		}
	}
}
