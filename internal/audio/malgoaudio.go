//go:build cgo && !noaudio

package audio

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/decred/slog"

	"github.com/gen2brain/malgo"
)

// rawFormat needs to be agreed upon between capture and playback endpoints.
var rawFormat = malgo.FormatS16

// toMalgoDeviceId converts a device id to a malgo device id.
func (id DeviceID) toMalgoDeviceId() malgo.DeviceID {
	var res malgo.DeviceID
	if runtime.GOOS == "android" {
		i, err := strconv.ParseInt(string(id), 10, 32)
		if err == nil {
			binary.LittleEndian.PutUint32(res[:], uint32(i))
		}

	} else {
		copy(res[:], id)
	}
	return res
}

// malgoDeviceType converts a device type to a malgo device type.
func malgoDeviceType(typ DeviceType) malgo.DeviceType {
	if typ == DeviceTypePlayback {
		return malgo.Playback
	}
	return malgo.Capture
}

func init() {
	newAudioContext = newMalgoContext
}

func listMalgoDevices(typ DeviceType, malgoCtx *malgo.AllocatedContext, log slog.Logger) ([]Device, error) {
	malgoTyp := malgoDeviceType(typ)
	devices, err := malgoCtx.Devices(malgoTyp)
	if err != nil {
		return nil, err
	}

	res := make([]Device, 0, len(devices))
	setIds := make(map[DeviceID]struct{}, len(devices))
	for _, dev := range devices {
		full, err := malgoCtx.DeviceInfo(malgoTyp, dev.ID, malgo.Shared)
		if err != nil {
			log.Warnf("Unable to get audio device info: %v", err)
			continue
		}

		// Avoid duplicate device IDs.
		id := DeviceID(string(append([]byte(nil), full.ID[:]...)))
		if _, ok := setIds[id]; ok {
			continue
		}
		setIds[id] = struct{}{}

		name := full.Name()
		res = append(res, Device{
			ID:        id,
			Name:      name,
			IsDefault: full.IsDefault == 1,
			Class:     ClassifyDeviceName(name, typ),
		})
	}

	return res, nil
}

// ListAudioDevices lists available audio devices.
func ListAudioDevices(log slog.Logger) (Devices, error) {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return Devices{}, err
	}
	defer func() {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
	}()

	// Devices.
	playbackDevs, err := listMalgoDevices(DeviceTypePlayback, malgoCtx, log)
	if err != nil {
		return Devices{}, err
	}
	captureDevs, err := listMalgoDevices(DeviceTypeCapture, malgoCtx, log)
	if err != nil {
		return Devices{}, err
	}

	return Devices{
		Playback: playbackDevs,
		Capture:  captureDevs,
	}, nil
}

// FindDevice finds the device with the given ID or returns nil.
func FindDevice(typ DeviceType, id DeviceID) *Device {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil
	}
	defer func() {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
	}()

	devices, err := listMalgoDevices(typ, malgoCtx, slog.Disabled)
	if err != nil {
		return nil
	}
	return findDeviceByID(devices, id)
}

// malgoContext is an implementation of audioContext which offloads the
// work to malgo library.
type malgoContext struct {
	malgoCtx *malgo.AllocatedContext

	mtx          sync.Mutex
	mode         AudioMode
	speakerphone bool
}

// emptyDeviceID is an empty malgo device id.
var emptyDeviceID malgo.DeviceID

// newMalgoContext creates a new audioContext using malgo.
func newMalgoContext() (audioContext, error) {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}

	return &malgoContext{malgoCtx: malgoCtx}, nil
}

func (mpc *malgoContext) name() string {
	return "malgo"
}

func (mpc *malgoContext) free() error {
	if err := mpc.malgoCtx.Uninit(); err != nil {
		return err
	}
	mpc.malgoCtx.Free()
	return nil
}

// minBufferSize is part of the audioContext interface.
func (mpc *malgoContext) minBufferSize(typ DeviceType) int {
	// Sanity check.
	if malgo.SampleSizeInBytes(rawFormat) != rawFormatSampleSize {
		return 0
	}
	return periodSizeBytes * minBufferPeriods
}

// listDevices is part of the audioContext interface.
func (mpc *malgoContext) listDevices(typ DeviceType) ([]Device, error) {
	return listMalgoDevices(typ, mpc.malgoCtx, slog.Disabled)
}

// setAudioMode is part of the audioContext interface. miniaudio has no
// call-audio routing, so the mode is only recorded.
func (mpc *malgoContext) setAudioMode(mode AudioMode) error {
	mpc.mtx.Lock()
	mpc.mode = mode
	mpc.mtx.Unlock()
	return nil
}

// setSpeakerphone is part of the audioContext interface. miniaudio has no
// speakerphone routing, so the flag is only recorded.
func (mpc *malgoContext) setSpeakerphone(on bool) error {
	mpc.mtx.Lock()
	mpc.speakerphone = on
	mpc.mtx.Unlock()
	return nil
}

// initDevice initializes a malgo device of the given type in the fixed
// stream configuration.
func (mpc *malgoContext) initDevice(typ DeviceType, deviceID DeviceID, cfg streamConfig,
	cb dataProc) (*malgo.Device, error) {

	// Sanity check.
	sampleSizeInBytes := malgo.SampleSizeInBytes(rawFormat)
	if sampleSizeInBytes != cfg.sampleSize {
		return nil, fmt.Errorf("malgo raw format has wrong sample size "+
			"(got %d, want %d)", sampleSizeInBytes, cfg.sampleSize)
	}

	malgoDeviceID := deviceID.toMalgoDeviceId()
	deviceConfig := malgo.DefaultDeviceConfig(malgoDeviceType(typ))
	deviceConfig.SampleRate = uint32(cfg.sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = periodSizeMS
	deviceConfig.Alsa.NoMMap = 1
	if typ == DeviceTypePlayback {
		if malgoDeviceID != emptyDeviceID {
			deviceConfig.Playback.DeviceID = malgoDeviceID.Pointer()
		}
		deviceConfig.Playback.Format = rawFormat
		deviceConfig.Playback.Channels = uint32(cfg.channels)
	} else {
		if malgoDeviceID != emptyDeviceID {
			deviceConfig.Capture.DeviceID = malgoDeviceID.Pointer()
		}
		deviceConfig.Capture.Format = rawFormat
		deviceConfig.Capture.Channels = uint32(cfg.channels)
	}

	callbacks := malgo.DeviceCallbacks{
		Data: malgo.DataProc(cb),
	}
	return malgo.InitDevice(mpc.malgoCtx.Context, deviceConfig, callbacks)
}

// malgoEndpoint is a capture or playback endpoint backed by a malgo device.
// Data moves between the device callback and Read/Write through a pcmPipe.
type malgoEndpoint struct {
	mpc  *malgoContext
	typ  DeviceType
	cfg  streamConfig
	pipe *pcmPipe

	mtx      sync.Mutex
	device   *malgo.Device
	deviceID DeviceID
	state    EndpointState
}

func (me *malgoEndpoint) onData(outSamples, inSamples []byte, framecount uint32) {
	size := int(framecount) * me.cfg.frameSize()
	if me.typ == DeviceTypeCapture {
		me.pipe.push(inSamples[:min(size, len(inSamples))])
	} else {
		me.pipe.pull(outSamples[:min(size, len(outSamples))])
	}
}

func (mpc *malgoContext) newEndpoint(typ DeviceType, cfg streamConfig) (*malgoEndpoint, error) {
	me := &malgoEndpoint{
		mpc:  mpc,
		typ:  typ,
		cfg:  cfg,
		pipe: newPCMPipe(cfg.bufferSize),
	}
	device, err := mpc.initDevice(typ, "", cfg, me.onData)
	if err != nil {
		return nil, err
	}
	me.device = device
	me.state = EndpointInitialized
	return me, nil
}

// initCapture is part of the audioContext interface.
func (mpc *malgoContext) initCapture(cfg streamConfig) (captureEndpoint, error) {
	return mpc.newEndpoint(DeviceTypeCapture, cfg)
}

// initPlayback is part of the audioContext interface.
func (mpc *malgoContext) initPlayback(cfg streamConfig) (playbackEndpoint, error) {
	return mpc.newEndpoint(DeviceTypePlayback, cfg)
}

func (me *malgoEndpoint) State() EndpointState {
	me.mtx.Lock()
	defer me.mtx.Unlock()
	return me.state
}

// SetPreferredDevice re-initializes the underlying device on dev. Only
// possible before the endpoint is started.
func (me *malgoEndpoint) SetPreferredDevice(dev *Device) error {
	me.mtx.Lock()
	defer me.mtx.Unlock()

	if me.state != EndpointInitialized {
		return fmt.Errorf("%w (state %s)", errEndpointNotIdle, me.state)
	}
	var id DeviceID
	if dev != nil {
		id = dev.ID
	}
	if id == me.deviceID {
		return nil
	}

	device, err := me.mpc.initDevice(me.typ, id, me.cfg, me.onData)
	if err != nil {
		return err
	}
	me.device.Uninit()
	me.device = device
	me.deviceID = id
	return nil
}

func (me *malgoEndpoint) Start() error {
	me.mtx.Lock()
	defer me.mtx.Unlock()

	switch me.state {
	case EndpointRunning:
		return nil
	case EndpointInitialized, EndpointStopped:
	default:
		return fmt.Errorf("%w (state %s)", errEndpointNotIdle, me.state)
	}
	if err := me.device.Start(); err != nil {
		return err
	}
	me.state = EndpointRunning
	return nil
}

func (me *malgoEndpoint) Stop() error {
	me.mtx.Lock()
	defer me.mtx.Unlock()

	if me.state != EndpointRunning {
		return nil
	}
	me.state = EndpointStopped
	if err := me.device.Stop(); err != nil {
		return err
	}
	me.pipe.reset()
	return nil
}

func (me *malgoEndpoint) Release() error {
	me.mtx.Lock()
	defer me.mtx.Unlock()

	if me.state == EndpointReleased {
		return errEndpointReleased
	}
	me.state = EndpointReleased
	me.pipe.close()
	me.device.Uninit()
	me.device = nil
	return nil
}

func (me *malgoEndpoint) Read(p []byte) (int, error) {
	return me.pipe.Read(p)
}

func (me *malgoEndpoint) Write(p []byte) (int, error) {
	return me.pipe.Write(p)
}
