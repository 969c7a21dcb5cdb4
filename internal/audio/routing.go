package audio

// captureRouteClasses are the classes accepted as the loopback input. Capture
// cards show up as generic USB audio devices.
var captureRouteClasses = []DeviceClass{ClassUSBDevice, ClassUSBHeadset}

// playbackRouteTiers are the output classes in priority order. Capture cards
// usually have no speaker of their own, so the best output the user has
// connected is picked: wireless first, then wired, then built-in.
var playbackRouteTiers = [][]DeviceClass{
	{
		ClassBluetoothA2DP,
		ClassBluetoothSCO,
		ClassBLEHeadset,
		ClassBLESpeaker,
		ClassBLEBroadcast,
	},
	{
		ClassWiredHeadset,
		ClassWiredHeadphones,
		ClassUSBHeadset,
	},
	{
		ClassBuiltinSpeaker,
		ClassBuiltinEarpiece,
	},
}

// firstOfClasses returns the first device in list order whose class is one of
// classes, or nil.
func firstOfClasses(devices []Device, classes []DeviceClass) *Device {
	for i := range devices {
		for _, c := range classes {
			if devices[i].Class == c {
				dev := devices[i]
				return &dev
			}
		}
	}
	return nil
}

// selectCaptureDevice returns the USB input to capture from, or nil to use
// the default input.
func selectCaptureDevice(devices []Device) *Device {
	return firstOfClasses(devices, captureRouteClasses)
}

// selectPlaybackDevice returns the output of the highest populated tier, or
// nil to use the default output.
func selectPlaybackDevice(devices []Device) *Device {
	for _, tier := range playbackRouteTiers {
		if dev := firstOfClasses(devices, tier); dev != nil {
			return dev
		}
	}
	return nil
}

// findDeviceByID returns the device with the given id, or nil.
func findDeviceByID(devices []Device, id DeviceID) *Device {
	for i := range devices {
		if devices[i].ID == id {
			dev := devices[i]
			return &dev
		}
	}
	return nil
}
