package main

import (
	"fmt"

	"github.com/companyzero/uvcloop/internal/audio"
	"github.com/companyzero/uvcloop/internal/strescape"
)

// printDevices prints info about audio devices.
func printDevices(devices *audio.Devices) error {
	pf := func(format string, args ...interface{}) {
		fmt.Println(fmt.Sprintf(format, args...))
	}

	printDevice := func(i int, dev *audio.Device) {
		defaultStr := ""
		if dev.IsDefault {
			defaultStr = "(default) "
		}
		pf("  Device %d %s%s", i, defaultStr, strescape.Content(dev.Name))
		pf("  Class: %s", dev.Class)
		pf("  ID: %s", dev.ID.Hex())
		pf("")
	}

	if len(devices.Capture) == 0 {
		pf("No audio capture devices found")
	} else {
		pf("Audio capture devices")
		pf("")
		for i := range devices.Capture {
			printDevice(i, &devices.Capture[i])
		}
	}

	if len(devices.Playback) == 0 {
		pf("No audio playback devices found")
	} else {
		pf("Audio playback devices")
		pf("")
		for i := range devices.Playback {
			printDevice(i, &devices.Playback[i])
		}
	}

	return nil
}

// findDeviceByName returns the id of the first device named name.
func findDeviceByName(devices []audio.Device, name string) (audio.DeviceID, bool) {
	for _, dev := range devices {
		if dev.Name == name {
			return dev.ID, true
		}
	}
	return "", false
}
