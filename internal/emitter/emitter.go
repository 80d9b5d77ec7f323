package emitter

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// uvcCtrlQuery mirrors struct uvc_xu_control_query from
// <linux/uvcvideo.h>, used to issue UVC extension-unit SET_CUR/GET_CUR
// requests via the UVCIOC_CTRL_QUERY ioctl.
type uvcCtrlQuery struct {
	Unit     uint8
	Selector uint8
	Query    uint8
	_        uint8 // padding to align Size
	Size     uint16
	_        [2]byte // padding to align the data pointer
	Data     *byte
}

const (
	uvcSetCur = 0x01

	// UVCIOC_CTRL_QUERY = _IOWR('u', 0x21, struct uvc_xu_control_query)
	uvcIOCCtrlQuery = 0xc0107521
)

// Controller activates and deactivates a camera's IR illumination via
// its resolved vendor quirk. It is resolved once at daemon start and
// reused for the lifetime of the process.
type Controller struct {
	devicePath string
	quirk      Quirk
	resolved   bool
	logger     *logrus.Logger
}

// Resolve reads the vendor/product IDs of devicePath from sysfs and
// looks them up in the compile-time quirk table. A device with no
// matching quirk yields a Controller that no-ops on Activate/Deactivate.
func Resolve(devicePath string, logger *logrus.Logger) *Controller {
	c := &Controller{devicePath: devicePath, logger: logger}

	vendorID, productID, err := DeviceIDs(devicePath)
	if err != nil {
		logger.Warnf("emitter: could not read device IDs for %s: %v (IR emitter disabled)", devicePath, err)
		return c
	}

	quirk, ok := lookupQuirk(vendorID, productID)
	if !ok {
		logger.Infof("emitter: no quirk entry for vendor=0x%04x product=0x%04x, IR emitter disabled", vendorID, productID)
		return c
	}

	c.quirk = quirk
	c.resolved = true
	logger.Infof("emitter: resolved quirk %q for %s", quirk.Name, devicePath)
	return c
}

// Activate issues the quirk's activation payload. Failures are logged
// as warnings and never returned as hard errors: the emitter is an
// enhancement, and capture must proceed under ambient light if it
// fails.
func (c *Controller) Activate() {
	c.apply(c.quirk.Payload, "activate")
}

// Deactivate issues a zero-filled payload of the same length as the
// activation payload.
func (c *Controller) Deactivate() {
	c.apply(make([]byte, len(c.quirk.Payload)), "deactivate")
}

func (c *Controller) apply(payload []byte, verb string) {
	if !c.resolved {
		return
	}

	if err := c.setCur(payload); err != nil {
		c.logger.Warnf("emitter: %s failed for %s: %v (continuing without IR)", verb, c.devicePath, err)
		return
	}

	time.Sleep(100 * time.Millisecond)
}

// setCur opens the device file independently for read+write, issues the
// UVC extension-unit SET_CUR ioctl with the quirk's (unit, selector,
// payload) triple, and closes the fd.
func (c *Controller) setCur(payload []byte) error {
	fd, err := unix.Open(c.devicePath, unix.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s for control: %w", c.devicePath, err)
	}
	defer unix.Close(fd)

	data := make([]byte, len(payload))
	copy(data, payload)

	query := uvcCtrlQuery{
		Unit:     c.quirk.Unit,
		Selector: c.quirk.Selector,
		Query:    uvcSetCur,
		Size:     uint16(len(data)),
	}
	if len(data) > 0 {
		query.Data = &data[0]
	}

	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		uintptr(fd),
		uintptr(uvcIOCCtrlQuery),
		uintptr(unsafe.Pointer(&query)),
	)
	if errno != 0 {
		return fmt.Errorf("UVCIOC_CTRL_QUERY unit=%d selector=%d: %w", c.quirk.Unit, c.quirk.Selector, errno)
	}
	return nil
}

// Enabled reports whether a quirk was resolved for this device.
func (c *Controller) Enabled() bool { return c.resolved }

// Name returns the resolved quirk's human-readable camera name, or ""
// if none resolved.
func (c *Controller) Name() string {
	if !c.resolved {
		return ""
	}
	return c.quirk.Name
}
