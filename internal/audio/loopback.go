package audio

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/companyzero/uvcloop/internal/logutil"
	"github.com/decred/slog"
	"github.com/prometheus/client_golang/prometheus"
)

// joinTimeout is how long Stop waits for the worker to exit.
const joinTimeout = 500 * time.Millisecond

// silentPeriodsBeforeSilence is the number of consecutive silent writes after
// which sound is reported as ended.
const silentPeriodsBeforeSilence = 20

// config is the loopback config.
type config struct {
	playbackGain      float64
	soundStateChanged func(bool)
	registerer        prometheus.Registerer
	captureDevID      DeviceID
	playbackDevID     DeviceID
	joinTimeout       time.Duration
}

// Option is a functional loopback option.
type Option func(c *config)

// WithPlaybackGain sets the initial gain (in dB) applied to looped back audio.
func WithPlaybackGain(gainDB float64) Option {
	return func(c *config) {
		c.playbackGain = gainDB
	}
}

// WithSoundStateChanged sets a callback that is called from the worker
// goroutine when sound starts or stops being looped back.
func WithSoundStateChanged(f func(hasSound bool)) Option {
	return func(c *config) {
		c.soundStateChanged = f
	}
}

// WithMetricsRegisterer registers the loopback metrics in reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *config) {
		c.registerer = reg
	}
}

// WithCaptureDevicePreference makes the loopback capture from the given
// device, when it is available, instead of using the routing policy.
func WithCaptureDevicePreference(id DeviceID) Option {
	return func(c *config) {
		c.captureDevID = id
	}
}

// WithPlaybackDevicePreference makes the loopback play back on the given
// device, when it is available, instead of using the routing policy.
func WithPlaybackDevicePreference(id DeviceID) Option {
	return func(c *config) {
		c.playbackDevID = id
	}
}

var (
	errCaptureNotInitialized  = errors.New("capture endpoint failed to initialize")
	errPlaybackNotInitialized = errors.New("playback endpoint failed to initialize")
)

// session is one capture endpoint, one playback endpoint and the worker
// copying data between them.
type session struct {
	id          uint64
	log         slog.Logger
	capture     captureEndpoint
	playback    playbackEndpoint
	captureDev  *Device
	playbackDev *Device
	workerDone  chan struct{}
}

// Loopback continuously copies audio captured from a USB capture device to
// the best available playback device.
//
// Start and Stop must be called from a single goroutine.
type Loopback struct {
	cfg      config
	log      slog.Logger
	audioCtx audioContext
	stats    *stats

	running atomic.Bool
	gain    atomic.Uint64 // math.Float64bits of the gain in dB

	// The following fields are only accessed by the goroutine calling
	// Start and Stop.
	sess       *session
	sessionIDs uint64
}

func newLoopback(audioCtx audioContext, log slog.Logger, opts ...Option) *Loopback {
	cfg := config{
		joinTimeout: joinTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if log == nil {
		log = slog.Disabled
	}

	l := &Loopback{
		cfg:      cfg,
		log:      log,
		audioCtx: audioCtx,
		stats:    newStats(cfg.registerer),
	}
	l.gain.Store(math.Float64bits(cfg.playbackGain))
	return l
}

// NewLoopback creates a new audio loopback using the audio backend compiled
// into the binary.
func NewLoopback(log slog.Logger, opts ...Option) (*Loopback, error) {
	audioCtx, err := newAudioContext()
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = slog.Disabled
	}
	if addDebugTrace {
		log.Infof("Initializing audio loopback with driver %s WITH DEBUG TRACE",
			audioCtx.name())
	} else {
		log.Infof("Initializing audio loopback with driver %s",
			audioCtx.name())
	}

	return newLoopback(audioCtx, log, opts...), nil
}

// FreeContext releases the audio backend. The loopback must be stopped.
func (l *Loopback) FreeContext() error {
	return l.audioCtx.free()
}

// Running returns true if a session is active.
func (l *Loopback) Running() bool {
	return l.running.Load()
}

// SetPlaybackGain sets the gain (in dB) applied to looped back audio. It may
// be called at any time and from any goroutine.
func (l *Loopback) SetPlaybackGain(gainDB float64) {
	l.gain.Store(math.Float64bits(gainDB))
	l.log.Debugf("Changing playback gain to %.2f dB", gainDB)
}

// PlaybackGain returns the current playback gain in dB.
func (l *Loopback) PlaybackGain() float64 {
	return math.Float64frombits(l.gain.Load())
}

// Routes returns the devices selected for the active session. A nil device
// means the system default route is in use. Must be called from the goroutine
// that calls Start and Stop.
func (l *Loopback) Routes() (capture, playback *Device) {
	if l.sess == nil {
		return nil, nil
	}
	return l.sess.captureDev, l.sess.playbackDev
}

// Start starts looping back audio. It returns true if the loopback is running
// after the call. Calling Start while running does nothing.
func (l *Loopback) Start() bool {
	if l.running.Load() {
		return true
	}

	minCapture := l.audioCtx.minBufferSize(DeviceTypeCapture)
	minPlayback := l.audioCtx.minBufferSize(DeviceTypePlayback)
	if minCapture <= 0 || minPlayback <= 0 {
		l.log.Errorf("Audio backend reported invalid minimum buffer "+
			"sizes (capture %d, playback %d)", minCapture, minPlayback)
		l.stats.startFailures.Inc()
		return false
	}
	bufferSize := max(minCapture, minPlayback) * 2

	l.sessionIDs++
	sess := &session{
		id:         l.sessionIDs,
		log:        logutil.PrefixLogger(l.log, fmt.Sprintf("[session %d]", l.sessionIDs)),
		workerDone: make(chan struct{}),
	}
	if err := l.openEndpoints(sess, defaultStreamConfig(bufferSize)); err != nil {
		sess.log.Errorf("Unable to open audio endpoints: %v", err)
		l.releaseEndpoints(sess)
		l.stats.startFailures.Inc()
		return false
	}

	l.route(sess)

	if err := l.audioCtx.setAudioMode(AudioModeNormal); err != nil {
		sess.log.Warnf("Unable to set audio mode: %v", err)
	}
	if err := l.audioCtx.setSpeakerphone(false); err != nil {
		sess.log.Warnf("Unable to disable speakerphone: %v", err)
	}

	l.sess = sess
	l.running.Store(true)
	l.stats.sessions.Inc()
	l.stats.running.Set(1)
	sess.log.Infof("Starting audio loopback (buffer %d bytes, capture %s, "+
		"playback %s)", bufferSize, sess.captureDev, sess.playbackDev)

	go l.runWorker(sess, sess.capture, sess.playback, bufferSize/2)
	return true
}

// openEndpoints initializes the capture and playback endpoints of the
// session. On error, the caller must release whatever was opened.
func (l *Loopback) openEndpoints(sess *session, cfg streamConfig) error {
	capture, err := l.audioCtx.initCapture(cfg)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	sess.capture = capture
	if state := capture.State(); state != EndpointInitialized {
		return fmt.Errorf("%w (state %s)", errCaptureNotInitialized, state)
	}

	playback, err := l.audioCtx.initPlayback(cfg)
	if err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	sess.playback = playback
	if state := playback.State(); state != EndpointInitialized {
		return fmt.Errorf("%w (state %s)", errPlaybackNotInitialized, state)
	}
	return nil
}

// routeDevice picks the device for one direction: the configured preference
// when available, otherwise the routing policy.
func (l *Loopback) routeDevice(sess *session, typ DeviceType, prefID DeviceID,
	policy func([]Device) *Device) *Device {

	devices, err := l.audioCtx.listDevices(typ)
	if err != nil {
		sess.log.Warnf("Unable to list %s devices: %v", typ, err)
		return nil
	}
	if prefID != "" {
		if dev := findDeviceByID(devices, prefID); dev != nil {
			return dev
		}
		sess.log.Warnf("Configured %s device %q not found; using routing policy",
			typ, prefID)
	}
	return policy(devices)
}

// route assigns the preferred devices of both endpoints. Failures are not
// fatal: endpoints keep the default route.
func (l *Loopback) route(sess *session) {
	if dev := l.routeDevice(sess, DeviceTypeCapture, l.cfg.captureDevID, selectCaptureDevice); dev != nil {
		if err := sess.capture.SetPreferredDevice(dev); err != nil {
			sess.log.Warnf("Unable to route input to %s: %v", dev, err)
		} else {
			sess.captureDev = dev
			sess.log.Infof("Audio input routed to %s", dev)
		}
	} else {
		l.stats.routingMisses.WithLabelValues(string(DeviceTypeCapture)).Inc()
		sess.log.Infof("No USB input device found, using system default input")
	}

	if dev := l.routeDevice(sess, DeviceTypePlayback, l.cfg.playbackDevID, selectPlaybackDevice); dev != nil {
		if err := sess.playback.SetPreferredDevice(dev); err != nil {
			sess.log.Warnf("Unable to route output to %s: %v", dev, err)
		} else {
			sess.playbackDev = dev
			sess.log.Infof("Audio output routed to %s", dev)
		}
	} else {
		l.stats.routingMisses.WithLabelValues(string(DeviceTypePlayback)).Inc()
		sess.log.Warnf("No preferred output device found, using system default route")
	}
}

// releaseEndpoints stops and releases both endpoints of the session. Every
// step is independent: an error in one never skips the others.
func (l *Loopback) releaseEndpoints(sess *session) {
	if sess.capture != nil {
		if err := sess.capture.Stop(); err != nil {
			sess.log.Debugf("Error stopping capture endpoint: %v", err)
		}
		if err := sess.capture.Release(); err != nil {
			sess.log.Debugf("Error releasing capture endpoint: %v", err)
		}
		sess.capture = nil
	}
	if sess.playback != nil {
		if err := sess.playback.Stop(); err != nil {
			sess.log.Debugf("Error stopping playback endpoint: %v", err)
		}
		if err := sess.playback.Release(); err != nil {
			sess.log.Debugf("Error releasing playback endpoint: %v", err)
		}
		sess.playback = nil
	}
}

// Stop stops looping back audio and releases the endpoints. It waits a
// bounded time for the worker to exit. Calling Stop when not running does
// nothing.
func (l *Loopback) Stop() {
	// Clearing the flag is the only signal given to the worker.
	l.running.Store(false)

	sess := l.sess
	if sess == nil {
		return
	}

	select {
	case <-sess.workerDone:
	case <-time.After(l.cfg.joinTimeout):
		sess.log.Debugf("Worker did not exit after %s; proceeding with teardown",
			l.cfg.joinTimeout)
	}

	l.releaseEndpoints(sess)
	l.sess = nil
	l.stats.running.Set(0)
	sess.log.Infof("Stopped audio loopback")
}

// runWorker copies data from the capture endpoint to the playback endpoint
// while the loopback is running. It never cleans up the endpoints: that is
// done exclusively by Stop.
//
// The endpoints are passed as arguments so that Stop clearing the session
// handles does not race with the loop.
func (l *Loopback) runWorker(sess *session, capture captureEndpoint,
	playback playbackEndpoint, scratchSize int) {

	defer close(sess.workerDone)

	buf := make([]byte, scratchSize)
	var samples []int16
	var hasSound bool
	var noSoundCount int

	fail := func(err error) {
		// I/O errors end the loop without being reported. The session
		// stays marked as running until Stop is called.
		l.stats.workerErrors.Inc()
		if addDebugTrace {
			sess.log.Tracef("Worker ending due to %v", err)
		}
	}

	if err := capture.Start(); err != nil {
		fail(err)
		return
	}
	if err := playback.Start(); err != nil {
		fail(err)
		return
	}

	for l.running.Load() {
		n, err := capture.Read(buf)
		if err != nil {
			fail(err)
			return
		}
		if n <= 0 {
			l.stats.emptyReads.Inc()
			continue
		}
		l.stats.reads.Inc()
		l.stats.bytesRead.Add(float64(n))
		l.stats.bytesReadAtomic.Add(uint64(n))

		// Gain and sound detection modify the samples in place, so the
		// written byte count always matches the read count.
		gain := math.Float64frombits(l.gain.Load())
		if gain != 0 || l.cfg.soundStateChanged != nil {
			samples = bytesToLES16Slice(buf[:n], samples[:0])
			applyGainDB(samples, gain)
			if gain != 0 {
				leS16SliceToBytes(samples, buf[:0])
			}
			if cb := l.cfg.soundStateChanged; cb != nil {
				sound := detectSound(samples, 500, 5)
				switch {
				case !hasSound && sound:
					hasSound = true
					noSoundCount = 0
					cb(true)
				case hasSound && sound:
					noSoundCount = 0
				case hasSound && noSoundCount < silentPeriodsBeforeSilence:
					noSoundCount++
				case hasSound:
					hasSound = false
					cb(false)
				}
			}
		}

		if _, err := playback.Write(buf[:n]); err != nil {
			fail(err)
			return
		}
		l.stats.writes.Inc()
		l.stats.bytesWritten.Add(float64(n))
		l.stats.bytesWrittenAtomic.Add(uint64(n))
		l.stats.writesAtomic.Add(1)
	}
}
