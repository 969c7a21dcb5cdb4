package audio

import "strings"

// ClassifyDeviceName guesses the class of a device from the name reported by
// the backend. Backends that do not report device types (miniaudio on
// desktop systems) rely on this.
func ClassifyDeviceName(name string, typ DeviceType) DeviceClass {
	n := strings.ToLower(name)
	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(n, s) {
				return true
			}
		}
		return false
	}

	switch {
	case has("a2dp"):
		return ClassBluetoothA2DP
	case has("hfp", "hsp", "sco", "hands-free", "handsfree"):
		return ClassBluetoothSCO
	case has("le audio", "le-audio", "lea "):
		switch {
		case has("broadcast", "auracast"):
			return ClassBLEBroadcast
		case has("speaker"):
			return ClassBLESpeaker
		default:
			return ClassBLEHeadset
		}
	case has("bluetooth", "bluez", "airpods"):
		if typ == DeviceTypeCapture {
			return ClassBluetoothSCO
		}
		return ClassBluetoothA2DP
	case has("usb"):
		if has("headset") {
			return ClassUSBHeadset
		}
		return ClassUSBDevice
	case has("headphone"):
		return ClassWiredHeadphones
	case has("headset"):
		return ClassWiredHeadset
	case has("earpiece", "receiver"):
		return ClassBuiltinEarpiece
	case has("speaker", "built-in", "builtin", "internal"):
		return ClassBuiltinSpeaker
	}
	return ClassUnknown
}
