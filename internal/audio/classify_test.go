package audio

import (
	"testing"

	"github.com/companyzero/uvcloop/internal/assert"
)

// TestClassifyDeviceName tests classification of device names as reported by
// common audio services.
func TestClassifyDeviceName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		typ  DeviceType
		want DeviceClass
	}{
		{"Buds Pro (A2DP Sink)", DeviceTypePlayback, ClassBluetoothA2DP},
		{"WH-1000XM4 Handsfree", DeviceTypeCapture, ClassBluetoothSCO},
		{"Headset (HFP)", DeviceTypePlayback, ClassBluetoothSCO},
		{"LE Audio Broadcast", DeviceTypePlayback, ClassBLEBroadcast},
		{"LE Audio Speaker", DeviceTypePlayback, ClassBLESpeaker},
		{"LE Audio Earbuds", DeviceTypePlayback, ClassBLEHeadset},
		{"bluez_output.00_1B_66", DeviceTypePlayback, ClassBluetoothA2DP},
		{"bluez_input.00_1B_66", DeviceTypeCapture, ClassBluetoothSCO},
		{"USB Video: USB Audio (hw:2,0)", DeviceTypeCapture, ClassUSBDevice},
		{"Jabra USB Headset", DeviceTypePlayback, ClassUSBHeadset},
		{"Headphones", DeviceTypePlayback, ClassWiredHeadphones},
		{"Wired Headset", DeviceTypePlayback, ClassWiredHeadset},
		{"Earpiece", DeviceTypePlayback, ClassBuiltinEarpiece},
		{"Built-in Audio Analog Stereo", DeviceTypePlayback, ClassBuiltinSpeaker},
		{"Speakers", DeviceTypePlayback, ClassBuiltinSpeaker},
		{"HDMI 1", DeviceTypePlayback, ClassUnknown},
		{"", DeviceTypeCapture, ClassUnknown},
	}

	for _, tc := range tests {
		got := ClassifyDeviceName(tc.name, tc.typ)
		if got != tc.want {
			t.Fatalf("unexpected class for %q (%s): got %s, want %s",
				tc.name, tc.typ, got, tc.want)
		}
	}
}

func TestDeviceClassText(t *testing.T) {
	t.Parallel()

	b, err := ClassBluetoothA2DP.MarshalText()
	assert.NilErr(t, err)
	assert.DeepEqual(t, string(b), "bluetooth-a2dp")
	assert.DeepEqual(t, DeviceClass(99).String(), "unknown")
	assert.DeepEqual(t, (*Device)(nil).String(), "<default>")
}

func TestDeviceIDHex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   DeviceID
		want string
	}{
		{name: "empty", id: "", want: ""},
		{name: "binary zero padded", id: DeviceID("\x01\x00\xfe\x41\x00\x00\x00"), want: "0100fe41"},
		{name: "text id", id: "hw:2,0", want: "68773a322c30"},
		{name: "all zeros", id: DeviceID("\x00\x00"), want: ""},
	}
	for _, tc := range tests {
		assert.DeepEqual(t, tc.id.Hex(), tc.want)
	}

	// Ids differing only in non-printable bytes stay distinct.
	a, b := DeviceID("\x01\x02a"), DeviceID("\x03\x04a")
	if a.Hex() == b.Hex() {
		t.Fatalf("distinct ids printed equal: %s", a.Hex())
	}
}
