package audio

import "errors"

// sampleRate must be agreed everywhere
const sampleRate = 48000

// channels must be agreed everywhere
const channels = 1

// rawFormatSampleSize is the size in bytes of one S16 sample.
const rawFormatSampleSize = 2

// periodSizeMS is the backend period size in milliseconds.
const periodSizeMS = 20

// minBufferPeriods is the number of periods backends report as the minimum
// buffer for a stream.
const minBufferPeriods = 2

// periodSizeBytes is the size of a single period of raw PCM data.
const periodSizeBytes = sampleRate / 1000 * periodSizeMS * channels * rawFormatSampleSize

var (
	errEndpointReleased = errors.New("endpoint already released")
	errEndpointNotIdle  = errors.New("endpoint is not idle")
)

// dataProc is the signature of the backend callbacks that move raw samples.
type dataProc func(outSamples, inSamples []byte, framecount uint32)

// streamConfig is the configuration used to create both endpoints of a
// loopback session.
type streamConfig struct {
	sampleRate int
	channels   int
	sampleSize int

	// bufferSize is the buffer capacity of the endpoint in bytes.
	bufferSize int
}

// defaultStreamConfig returns the fixed 48kHz mono S16 configuration with the
// given buffer size.
func defaultStreamConfig(bufferSize int) streamConfig {
	return streamConfig{
		sampleRate: sampleRate,
		channels:   channels,
		sampleSize: rawFormatSampleSize,
		bufferSize: bufferSize,
	}
}

// frameSize is the size in bytes of one frame (one sample per channel).
func (cfg streamConfig) frameSize() int {
	return cfg.channels * cfg.sampleSize
}

// endpoint is the common lifecycle of capture and playback streams.
type endpoint interface {
	State() EndpointState
	SetPreferredDevice(dev *Device) error
	Start() error
	Stop() error
	Release() error
}

// captureEndpoint is an input stream. Read blocks until data is available.
type captureEndpoint interface {
	endpoint
	Read(p []byte) (int, error)
}

// playbackEndpoint is an output stream. Write blocks until all of p has been
// queued for playback.
type playbackEndpoint interface {
	endpoint
	Write(p []byte) (int, error)
}

// audioContext is the boundary to the OS audio service.
type audioContext interface {
	name() string

	// minBufferSize returns the minimum buffer size in bytes for a stream
	// of the given type in the fixed configuration. Non-positive values
	// mean the configuration is not supported.
	minBufferSize(typ DeviceType) int

	listDevices(typ DeviceType) ([]Device, error)
	initCapture(cfg streamConfig) (captureEndpoint, error)
	initPlayback(cfg streamConfig) (playbackEndpoint, error)

	setAudioMode(mode AudioMode) error
	setSpeakerphone(on bool) error

	free() error
}

// newAudioContext is set by the backend compiled into the binary.
var newAudioContext func() (audioContext, error)
