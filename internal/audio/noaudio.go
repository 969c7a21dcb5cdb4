//go:build !cgo || noaudio

// This audio context is only used in cgo-less and noaudio builds.

package audio

import (
	"errors"
	"sync"

	"github.com/decred/slog"
)

var errAudioDisabledCompilation = errors.New("audio was disabled during compilation")

func init() {
	newAudioContext = newNullAudioContext
}

func ListAudioDevices(log slog.Logger) (Devices, error) {
	return Devices{}, errAudioDisabledCompilation
}

func FindDevice(typ DeviceType, id DeviceID) *Device { return nil }

type nullAudioContext struct{}

func newNullAudioContext() (audioContext, error) {
	return nullAudioContext{}, nil
}

func (_ nullAudioContext) name() string { return "nullaudio" }

func (_ nullAudioContext) minBufferSize(typ DeviceType) int {
	return periodSizeBytes * minBufferPeriods
}

func (_ nullAudioContext) listDevices(typ DeviceType) ([]Device, error) {
	return nil, nil
}

func (_ nullAudioContext) setAudioMode(mode AudioMode) error { return nil }
func (_ nullAudioContext) setSpeakerphone(on bool) error     { return nil }
func (_ nullAudioContext) free() error                       { return nil }

func (_ nullAudioContext) initCapture(cfg streamConfig) (captureEndpoint, error) {
	return newNullEndpoint(cfg), nil
}

func (_ nullAudioContext) initPlayback(cfg streamConfig) (playbackEndpoint, error) {
	return newNullEndpoint(cfg), nil
}

// nullEndpoint never produces data. Reads block until the endpoint is
// released and writes are discarded.
type nullEndpoint struct {
	pipe *pcmPipe

	mtx   sync.Mutex
	state EndpointState
}

func newNullEndpoint(cfg streamConfig) *nullEndpoint {
	return &nullEndpoint{
		pipe:  newPCMPipe(cfg.bufferSize),
		state: EndpointInitialized,
	}
}

func (ne *nullEndpoint) State() EndpointState {
	ne.mtx.Lock()
	defer ne.mtx.Unlock()
	return ne.state
}

func (ne *nullEndpoint) SetPreferredDevice(dev *Device) error { return nil }

func (ne *nullEndpoint) setState(from []EndpointState, to EndpointState) error {
	ne.mtx.Lock()
	defer ne.mtx.Unlock()
	if ne.state == EndpointReleased {
		return errEndpointReleased
	}
	for _, s := range from {
		if ne.state == s {
			ne.state = to
			return nil
		}
	}
	return nil
}

func (ne *nullEndpoint) Start() error {
	return ne.setState([]EndpointState{EndpointInitialized, EndpointStopped}, EndpointRunning)
}

func (ne *nullEndpoint) Stop() error {
	return ne.setState([]EndpointState{EndpointRunning}, EndpointStopped)
}

func (ne *nullEndpoint) Release() error {
	ne.mtx.Lock()
	defer ne.mtx.Unlock()
	if ne.state == EndpointReleased {
		return errEndpointReleased
	}
	ne.state = EndpointReleased
	ne.pipe.close()
	return nil
}

func (ne *nullEndpoint) Read(p []byte) (int, error) {
	return ne.pipe.Read(p)
}

func (ne *nullEndpoint) Write(p []byte) (int, error) {
	if ne.State() == EndpointReleased {
		return 0, errEndpointReleased
	}
	return len(p), nil
}
