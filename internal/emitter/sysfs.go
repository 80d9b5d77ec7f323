package emitter

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DeviceIDs reads the USB vendor/product ID of a /dev/videoN node by
// following its sysfs symlink up to the owning USB interface, the way
// the kernel exposes it under /sys/class/video4linux/<node>/device.
func DeviceIDs(devicePath string) (vendorID, productID uint16, err error) {
	node := filepath.Base(devicePath)
	sysBase := filepath.Join("/sys/class/video4linux", node, "device")

	resolved, err := filepath.EvalSymlinks(sysBase)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve sysfs device link for %s: %w", devicePath, err)
	}

	vendorID, err = readHexID(resolved, "idVendor")
	if err != nil {
		return 0, 0, err
	}
	productID, err = readHexID(resolved, "idProduct")
	if err != nil {
		return 0, 0, err
	}
	return vendorID, productID, nil
}

// readHexID walks up from dir looking for a sysfs attribute file named
// attr (idVendor/idProduct live on the USB device node, one or more
// levels above the interface node the video4linux symlink resolves to).
func readHexID(dir, attr string) (uint16, error) {
	for d := dir; d != "/" && d != "."; d = filepath.Dir(d) {
		data, err := os.ReadFile(filepath.Join(d, attr))
		if err == nil {
			v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 16, 16)
			if err != nil {
				return 0, fmt.Errorf("parse %s at %s: %w", attr, d, err)
			}
			return uint16(v), nil
		}
	}
	return 0, fmt.Errorf("%s not found above %s", attr, dir)
}

// DriverName reads the driver name a /dev/videoN node reports, used by
// Discovery to flag camera stacks (e.g. ipu6) that never present a
// usable UVC extension unit.
func DriverName(devicePath string) (string, error) {
	node := filepath.Base(devicePath)
	data, err := os.ReadFile(filepath.Join("/sys/class/video4linux", node, "name"))
	if err != nil {
		return "", fmt.Errorf("read driver name for %s: %w", devicePath, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// DiscoveredDevice is one row of the Discovery diagnostic.
type DiscoveredDevice struct {
	Path        string
	DriverName  string
	VendorID    uint16
	ProductID   uint16
	Unsupported bool // true when the driver is known not to present as plain V4L2 (e.g. ipu6)
}

// Discover enumerates /dev/video* nodes and reports their driver name
// and vendor/product IDs, flagging camera stacks known to be
// unsupported.
func Discover() ([]DiscoveredDevice, error) {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("glob /dev/video*: %w", err)
	}

	var devices []DiscoveredDevice
	for _, path := range matches {
		name, err := DriverName(path)
		if err != nil {
			continue
		}
		vendorID, productID, _ := DeviceIDs(path)

		lower := strings.ToLower(name)
		unsupported := strings.Contains(lower, "ipu6") || strings.Contains(lower, "intel_ipu")

		devices = append(devices, DiscoveredDevice{
			Path:        path,
			DriverName:  name,
			VendorID:    vendorID,
			ProductID:   productID,
			Unsupported: unsupported,
		})
	}
	return devices, nil
}
