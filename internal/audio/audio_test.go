package audio

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errTestEndpoint = errors.New("test endpoint error")

// testEndpoint is a scripted capture and playback endpoint.
type testEndpoint struct {
	t   testing.TB
	typ DeviceType
	cfg streamConfig

	// reads are the sizes returned by successive Read calls. Once
	// exhausted, Read returns 0 after a short sleep, unless stuck is set.
	reads chan int

	// silentReads are like reads but return zeroed samples.
	silentReads chan int

	// writes receives a copy of every buffer passed to Write.
	writes chan []byte

	// stuck makes Read block until the test ends, ignoring Release.
	stuck    bool
	testDone chan struct{}

	// enteredRead is signalled when Read is called on a stuck endpoint.
	enteredRead chan struct{}
	readErr     error
	writeErr    error
	startErr    error

	mtx       sync.Mutex
	state     EndpointState
	preferred *Device
	released  chan struct{}
	startCnt  int
	stopCnt   int
}

func (te *testEndpoint) State() EndpointState {
	te.mtx.Lock()
	defer te.mtx.Unlock()
	return te.state
}

func (te *testEndpoint) SetPreferredDevice(dev *Device) error {
	te.mtx.Lock()
	defer te.mtx.Unlock()
	if te.state != EndpointInitialized {
		return errEndpointNotIdle
	}
	te.preferred = dev
	return nil
}

func (te *testEndpoint) preferredDevice() *Device {
	te.mtx.Lock()
	defer te.mtx.Unlock()
	return te.preferred
}

func (te *testEndpoint) Start() error {
	te.mtx.Lock()
	defer te.mtx.Unlock()
	te.startCnt++
	if te.startErr != nil {
		return te.startErr
	}
	te.state = EndpointRunning
	return nil
}

func (te *testEndpoint) Stop() error {
	te.mtx.Lock()
	defer te.mtx.Unlock()
	te.stopCnt++
	if te.state == EndpointRunning {
		te.state = EndpointStopped
	}
	return nil
}

func (te *testEndpoint) Release() error {
	te.mtx.Lock()
	defer te.mtx.Unlock()
	if te.state == EndpointReleased {
		return errEndpointReleased
	}
	te.state = EndpointReleased
	close(te.released)
	return nil
}

// counts returns the number of Start and Stop calls.
func (te *testEndpoint) counts() (start, stop int) {
	te.mtx.Lock()
	defer te.mtx.Unlock()
	return te.startCnt, te.stopCnt
}

func (te *testEndpoint) isReleased() bool {
	select {
	case <-te.released:
		return true
	default:
		return false
	}
}

func (te *testEndpoint) Read(p []byte) (int, error) {
	if te.stuck {
		select {
		case te.enteredRead <- struct{}{}:
		default:
		}
		<-te.testDone
		return 0, errEndpointReleased
	}
	if te.readErr != nil {
		return 0, te.readErr
	}
	select {
	case n := <-te.reads:
		n = min(n, len(p))
		for i := 0; i < n; i++ {
			p[i] = byte(i)
		}
		return n, nil
	case n := <-te.silentReads:
		n = min(n, len(p))
		clear(p[:n])
		return n, nil
	case <-te.released:
		return 0, errEndpointReleased
	case <-time.After(time.Millisecond):
		return 0, nil
	}
}

func (te *testEndpoint) Write(p []byte) (int, error) {
	if te.writeErr != nil {
		return 0, te.writeErr
	}
	if te.isReleased() {
		return 0, errEndpointReleased
	}
	te.writes <- append([]byte(nil), p...)
	return len(p), nil
}

// testAudioContext is used to test the loopback engine.
type testAudioContext struct {
	t testing.TB

	mtx            sync.Mutex
	minCapture     int
	minPlayback    int
	captureDevs    []Device
	playbackDevs   []Device
	listErr        error
	initCaptureErr error
	initPlayState  EndpointState
	captureInits   int
	playbackInits  int
	mode           AudioMode
	speakerphone   bool

	// newEndpoint is called to customize every created endpoint.
	newEndpoint func(te *testEndpoint)

	captures  chan *testEndpoint
	playbacks chan *testEndpoint
}

func newTestAudioContext(t testing.TB) *testAudioContext {
	return &testAudioContext{
		t:             t,
		minCapture:    periodSizeBytes * minBufferPeriods,
		minPlayback:   periodSizeBytes * minBufferPeriods,
		initPlayState: EndpointInitialized,
		speakerphone:  true,
		mode:          AudioModeInCall,
		captures:      make(chan *testEndpoint, 10),
		playbacks:     make(chan *testEndpoint, 10),
	}
}

func (tac *testAudioContext) name() string {
	return "testaudio"
}

func (tac *testAudioContext) minBufferSize(typ DeviceType) int {
	tac.mtx.Lock()
	defer tac.mtx.Unlock()
	if typ == DeviceTypeCapture {
		return tac.minCapture
	}
	return tac.minPlayback
}

func (tac *testAudioContext) listDevices(typ DeviceType) ([]Device, error) {
	tac.mtx.Lock()
	defer tac.mtx.Unlock()
	if tac.listErr != nil {
		return nil, tac.listErr
	}
	if typ == DeviceTypeCapture {
		return tac.captureDevs, nil
	}
	return tac.playbackDevs, nil
}

func (tac *testAudioContext) makeEndpoint(typ DeviceType, cfg streamConfig) *testEndpoint {
	te := &testEndpoint{
		t:           tac.t,
		typ:         typ,
		cfg:         cfg,
		reads:       make(chan int, 10),
		silentReads: make(chan int, 100),
		writes:      make(chan []byte, 100),
		state:       EndpointInitialized,
		released:    make(chan struct{}),
		testDone:    make(chan struct{}),
		enteredRead: make(chan struct{}, 1),
	}
	tac.t.Cleanup(func() { close(te.testDone) })
	if tac.newEndpoint != nil {
		tac.newEndpoint(te)
	}
	return te
}

func (tac *testAudioContext) initCapture(cfg streamConfig) (captureEndpoint, error) {
	tac.mtx.Lock()
	tac.captureInits++
	err := tac.initCaptureErr
	tac.mtx.Unlock()
	if err != nil {
		return nil, err
	}
	te := tac.makeEndpoint(DeviceTypeCapture, cfg)
	tac.captures <- te
	return te, nil
}

func (tac *testAudioContext) initPlayback(cfg streamConfig) (playbackEndpoint, error) {
	tac.mtx.Lock()
	tac.playbackInits++
	state := tac.initPlayState
	tac.mtx.Unlock()
	te := tac.makeEndpoint(DeviceTypePlayback, cfg)
	te.state = state
	tac.playbacks <- te
	return te, nil
}

func (tac *testAudioContext) setAudioMode(mode AudioMode) error {
	tac.mtx.Lock()
	tac.mode = mode
	tac.mtx.Unlock()
	return nil
}

func (tac *testAudioContext) setSpeakerphone(on bool) error {
	tac.mtx.Lock()
	tac.speakerphone = on
	tac.mtx.Unlock()
	return nil
}

func (tac *testAudioContext) free() error {
	return nil
}

// initCounts returns the number of capture and playback endpoints created.
func (tac *testAudioContext) initCounts() (capture, playback int) {
	tac.mtx.Lock()
	defer tac.mtx.Unlock()
	return tac.captureInits, tac.playbackInits
}
