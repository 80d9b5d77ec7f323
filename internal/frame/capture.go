package frame

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
)

// Camera wraps a V4L2 device, negotiating one of the three supported
// pixel formats at open time and exposing a persistent capture stream
// held open across requests — avoiding per-call device open/close
// overhead, per the teacher's internal/camera.Camera.
type Camera struct {
	devicePath string
	dev        *device.Device
	format     PixelFormat
	width      int
	height     int

	ctx    context.Context
	cancel context.CancelFunc
	raw    chan []byte
	wg     sync.WaitGroup

	mu        sync.Mutex
	running   bool
	sequence  uint32
	logger    *logrus.Logger
}

// Open opens the device at path and negotiates pixel format. Whichever
// format the driver selects is stored on the handle; any format outside
// {grey8, yuyv, y16} fails the open.
func Open(path string, logger *logrus.Logger) (*Camera, error) {
	dev, err := device.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open camera device %s: %w", path, err)
	}

	pixFmt, err := dev.GetPixFormat()
	if err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("read pixel format for %s: %w", path, err)
	}

	format, ok := fourCCToFormat(pixFmt.PixelFormat)
	if !ok {
		_ = dev.Close()
		return nil, fmt.Errorf("camera %s negotiated unsupported pixel format %v", path, pixFmt.PixelFormat)
	}

	return &Camera{
		devicePath: path,
		dev:        dev,
		format:     format,
		width:      int(pixFmt.Width),
		height:     int(pixFmt.Height),
		raw:        make(chan []byte, 4),
		logger:     logger,
	}, nil
}

// Format reports the negotiated pixel format.
func (c *Camera) Format() PixelFormat { return c.format }

// Resolution reports the negotiated frame dimensions.
func (c *Camera) Resolution() (width, height int) { return c.width, c.height }

// Start begins the persistent capture stream.
func (c *Camera) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	if err := c.dev.Start(c.ctx); err != nil {
		return fmt.Errorf("start camera stream: %w", err)
	}

	c.running = true
	c.wg.Add(1)
	go c.pump()
	return nil
}

// pump drains the driver's output channel into our buffered raw channel,
// dropping frames under backpressure rather than blocking the driver.
func (c *Camera) pump() {
	defer c.wg.Done()
	out := c.dev.GetOutput()
	for {
		select {
		case <-c.ctx.Done():
			return
		case buf, ok := <-out:
			if !ok {
				return
			}
			cp := make([]byte, len(buf))
			copy(cp, buf)
			select {
			case c.raw <- cp:
			case <-c.ctx.Done():
				return
			default:
				// consumer busy, drop the stale frame
			}
		}
	}
}

// Stop halts the capture stream and waits for the pump goroutine to exit.
func (c *Camera) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Warnf("recovered from panic stopping camera: %v", r)
		}
	}()

	c.cancel()
	c.wg.Wait()
	_ = c.dev.Stop()
	c.running = false
	return nil
}

// Close stops the stream (if running) and releases the device.
func (c *Camera) Close() error {
	_ = c.Stop()
	return c.dev.Close()
}

// DevicePath returns the underlying device node, used for emitter
// activation (which opens the same node independently) and Status.
func (c *Camera) DevicePath() string { return c.devicePath }

// CaptureFrames returns up to n non-dark, contrast-enhanced frames,
// attempting at most 3n raw reads. It also reports the number of frames
// discarded as dark.
func (c *Camera) CaptureFrames(ctx context.Context, n int) (frames []*Frame, darkSkipped int, err error) {
	if n <= 0 {
		return nil, 0, nil
	}

	budget := 3 * n
	attempts := 0

	for len(frames) < n && attempts < budget {
		attempts++

		var raw []byte
		select {
		case raw = <-c.raw:
		case <-ctx.Done():
			return frames, darkSkipped, ctx.Err()
		case <-time.After(2 * time.Second):
			return frames, darkSkipped, fmt.Errorf("camera read timed out after %d attempts", attempts)
		}

		gray := toGray8(raw, c.format, c.width, c.height)
		c.sequence++

		if isDark(gray) {
			darkSkipped++
			continue
		}

		enhanced := clahe(gray, c.width, c.height)
		frames = append(frames, &Frame{
			Data:      enhanced,
			Width:     c.width,
			Height:    c.height,
			Timestamp: time.Now(),
			Sequence:  c.sequence,
			IsDark:    false,
		})
	}

	return frames, darkSkipped, nil
}

// GetSupportedFormats is a diagnostic passthrough to the driver's format
// descriptor list.
func (c *Camera) GetSupportedFormats() ([]v4l2.FormatDescription, error) {
	return c.dev.GetFormatDescriptions()
}
