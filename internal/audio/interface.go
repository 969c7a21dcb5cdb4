package audio

import (
	"encoding/hex"
	"fmt"
	"strings"
)

type DeviceType string

const (
	DeviceTypeCapture  DeviceType = "capture"
	DeviceTypePlayback DeviceType = "playback"
)

// DeviceID is the backend-specific identity of an audio device. An empty ID
// means the system default device.
type DeviceID string

// Hex returns the id in hex. Backend ids may be binary and zero padded, so
// trailing zero bytes are dropped.
func (id DeviceID) Hex() string {
	return hex.EncodeToString([]byte(strings.TrimRight(string(id), "\x00")))
}

// DeviceClass is the kind of physical endpoint a device represents. Classes
// drive the routing policy.
type DeviceClass int

const (
	ClassUnknown DeviceClass = iota
	ClassUSBDevice
	ClassUSBHeadset
	ClassBluetoothA2DP
	ClassBluetoothSCO
	ClassBLEHeadset
	ClassBLESpeaker
	ClassBLEBroadcast
	ClassWiredHeadset
	ClassWiredHeadphones
	ClassBuiltinSpeaker
	ClassBuiltinEarpiece
)

func (c DeviceClass) String() string {
	switch c {
	case ClassUSBDevice:
		return "usb-device"
	case ClassUSBHeadset:
		return "usb-headset"
	case ClassBluetoothA2DP:
		return "bluetooth-a2dp"
	case ClassBluetoothSCO:
		return "bluetooth-sco"
	case ClassBLEHeadset:
		return "ble-headset"
	case ClassBLESpeaker:
		return "ble-speaker"
	case ClassBLEBroadcast:
		return "ble-broadcast"
	case ClassWiredHeadset:
		return "wired-headset"
	case ClassWiredHeadphones:
		return "wired-headphones"
	case ClassBuiltinSpeaker:
		return "builtin-speaker"
	case ClassBuiltinEarpiece:
		return "builtin-earpiece"
	default:
		return "unknown"
	}
}

// MarshalText is part of the encoding.TextMarshaler interface.
func (c DeviceClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Device is a physical audio endpoint as reported by the audio backend.
type Device struct {
	ID        DeviceID    `json:"id"`
	Name      string      `json:"name"`
	IsDefault bool        `json:"is_default"`
	Class     DeviceClass `json:"class"`
}

func (d *Device) String() string {
	if d == nil {
		return "<default>"
	}
	return fmt.Sprintf("%q (%s)", d.Name, d.Class)
}

type Devices struct {
	Playback []Device `json:"playback"`
	Capture  []Device `json:"capture"`
}

// EndpointState is the lifecycle state of a capture or playback endpoint.
type EndpointState int

const (
	EndpointUninitialized EndpointState = iota
	EndpointInitialized
	EndpointRunning
	EndpointStopped
	EndpointReleased
)

func (s EndpointState) String() string {
	switch s {
	case EndpointUninitialized:
		return "uninitialized"
	case EndpointInitialized:
		return "initialized"
	case EndpointRunning:
		return "running"
	case EndpointStopped:
		return "stopped"
	case EndpointReleased:
		return "released"
	default:
		return fmt.Sprintf("unknown state %d", int(s))
	}
}

// AudioMode is the host audio-routing mode requested by the loopback.
type AudioMode int

const (
	AudioModeNormal AudioMode = iota
	AudioModeInCall
	AudioModeInCommunication
)

func (m AudioMode) String() string {
	switch m {
	case AudioModeNormal:
		return "normal"
	case AudioModeInCall:
		return "in-call"
	case AudioModeInCommunication:
		return "in-communication"
	default:
		return fmt.Sprintf("unknown mode %d", int(m))
	}
}
