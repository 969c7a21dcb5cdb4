package usbwatch

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"sync"

	"github.com/companyzero/uvcloop/internal/strescape"
	usb "github.com/kevmo314/go-usb"
)

// USB base classes of devices that may carry an audio stream.
const (
	ClassPerInterface = 0x00
	ClassAudio        = 0x01
	ClassVideo        = 0x0e
	ClassMisc         = 0xef
)

var errDeviceGone = errors.New("device is no longer listed")

// DeviceID is a USB vendor and product id pair.
type DeviceID struct {
	VendorID  uint16
	ProductID uint16
}

func (id DeviceID) String() string {
	return fmt.Sprintf("%04x:%04x", id.VendorID, id.ProductID)
}

// ParseDeviceIDs parses a comma or space separated list of "vid:pid" hex
// pairs (as printed by lsusb).
func ParseDeviceIDs(s string) ([]DeviceID, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	res := make([]DeviceID, 0, len(fields))
	for _, f := range fields {
		vid, pid, ok := strings.Cut(f, ":")
		if !ok {
			return nil, fmt.Errorf("device id %q is not in vid:pid format", f)
		}
		v, err := strconv.ParseUint(vid, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid vendor id in %q: %v", f, err)
		}
		p, err := strconv.ParseUint(pid, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid product id in %q: %v", f, err)
		}
		res = append(res, DeviceID{VendorID: uint16(v), ProductID: uint16(p)})
	}
	return res, nil
}

// DeviceInfo describes a USB device found on the bus.
type DeviceInfo struct {
	// Path is the device node. It identifies the device while it stays
	// plugged in.
	Path    string
	Bus     uint8
	Address uint8
	ID      DeviceID
	Class   uint8
	Product string
}

func (d DeviceInfo) String() string {
	name := d.Product
	if name == "" {
		name = usb.ClassName(d.Class)
	}
	return fmt.Sprintf("%s [%s] at %03d/%03d", name, d.ID, d.Bus, d.Address)
}

// Handle is an open USB device.
type Handle interface {
	Close() error

	// HasAudio returns true if the device exposes an audio class
	// interface in its first configuration.
	HasAudio() bool
}

// usbHandle is a Handle backed by go-usb.
type usbHandle struct {
	*usb.DeviceHandle
	hasAudio bool
}

func (h *usbHandle) HasAudio() bool { return h.hasAudio }

// usbBackend lists and opens devices using go-usb.
type usbBackend struct {
	mtx     sync.Mutex
	devices map[string]*usb.Device
}

func (b *usbBackend) list() ([]DeviceInfo, error) {
	devs, err := usb.DeviceList()
	if err != nil {
		return nil, err
	}

	res := make([]DeviceInfo, 0, len(devs))
	byPath := make(map[string]*usb.Device, len(devs))
	for _, dev := range devs {
		byPath[dev.Path] = dev
		res = append(res, DeviceInfo{
			Path:    dev.Path,
			Bus:     dev.Bus,
			Address: dev.Address,
			ID: DeviceID{
				VendorID:  dev.Descriptor.VendorID,
				ProductID: dev.Descriptor.ProductID,
			},
			Class:   dev.Descriptor.DeviceClass,
			Product: strescape.Nick(dev.ProductFromSysfs()),
		})
	}

	b.mtx.Lock()
	b.devices = byPath
	b.mtx.Unlock()
	return res, nil
}

func (b *usbBackend) open(info DeviceInfo) (Handle, error) {
	b.mtx.Lock()
	dev := b.devices[info.Path]
	b.mtx.Unlock()
	if dev == nil {
		return nil, errDeviceGone
	}

	h, err := dev.Open()
	if err != nil {
		return nil, err
	}

	res := &usbHandle{DeviceHandle: h, hasAudio: info.Class == ClassAudio}
	if _, ifaces, _, err := h.ReadConfigDescriptor(0); err == nil {
		for _, iface := range ifaces {
			if iface.InterfaceClass == ClassAudio {
				res.hasAudio = true
				break
			}
		}
	}
	return res, nil
}

// isPermissionErr returns true if err means the device node is not
// accessible by the current user.
func isPermissionErr(err error) bool {
	return errors.Is(err, usb.ErrPermissionDenied) || errors.Is(err, fs.ErrPermission)
}
