package usbwatch

import "fmt"

// EventKind is the kind of hot-plug event.
type EventKind int

const (
	// Attached is sent when a matching device appears on the bus.
	Attached EventKind = iota

	// Connected is sent after an attached device was successfully opened.
	Connected

	// PermissionDenied is sent when an attached device could not be
	// opened due to missing permissions.
	PermissionDenied

	// Disconnected is sent when a connected device is removed, before
	// Detached.
	Disconnected

	// Detached is sent when a device is removed from the bus.
	Detached
)

func (k EventKind) String() string {
	switch k {
	case Attached:
		return "attached"
	case Connected:
		return "connected"
	case PermissionDenied:
		return "permission denied"
	case Disconnected:
		return "disconnected"
	case Detached:
		return "detached"
	default:
		return fmt.Sprintf("unknown event %d", int(k))
	}
}

// Event is a hot-plug event.
type Event struct {
	Kind   EventKind
	Device DeviceInfo

	// Handle is the open device. Only set on Connected events. The
	// watcher owns the handle and closes it when the device goes away.
	Handle Handle
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Device, e.Kind)
}
