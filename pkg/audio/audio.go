// Package audio captures microphone input via miniaudio (malgo) and feeds
// raw 16-bit PCM to a recognizer. It exists so the speech sources stay
// free of device handling: a recognizer only ever sees PCM blocks.
package audio

import (
	"encoding/hex"
	"fmt"

	"github.com/gen2brain/malgo"
)

// DataCallback receives raw 16-bit little-endian signed PCM blocks from a
// running capture device. Called from the audio backend's realtime thread;
// it must not block.
type DataCallback func(pcm []byte)

// DeviceInfo identifies a capture device. ID is the hex encoding of the
// backend device identifier, stable enough to persist in configuration.
type DeviceInfo struct {
	ID   string
	Name string
}

// CaptureConfig holds the PCM parameters for a capture device.
type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

// Context wraps the miniaudio backend context. A single Context is shared
// by all capture devices; Close releases it.
type Context struct {
	ctx *malgo.AllocatedContext
}

// NewContext initializes the audio backend.
func NewContext() (*Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init context: %w", err)
	}
	return &Context{ctx: ctx}, nil
}

// Devices enumerates the available capture devices.
func (c *Context) Devices() ([]DeviceInfo, error) {
	devices, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("audio: enumerate capture devices: %w", err)
	}
	infos := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		infos = append(infos, DeviceInfo{
			ID:   hex.EncodeToString(d.ID.Pointer()[:]),
			Name: d.Name(),
		})
	}
	return infos, nil
}

// NewCapture opens a capture device delivering S16 PCM to cb. An empty
// deviceID selects the system default device. The device starts stopped;
// call [Capture.Start].
func (c *Context) NewCapture(deviceID string, cfg CaptureConfig, cb DataCallback) (*Capture, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = cfg.Channels
	deviceConfig.SampleRate = cfg.SampleRate

	if deviceID != "" {
		idBytes, err := hex.DecodeString(deviceID)
		if err != nil {
			return nil, fmt.Errorf("audio: invalid device ID %q: %w", deviceID, err)
		}
		var devID malgo.DeviceID
		copy(devID[:], idBytes)
		deviceConfig.Capture.DeviceID = devID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			cb(data)
		},
	}

	dev, err := malgo.InitDevice(c.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("audio: init capture device: %w", err)
	}
	return &Capture{device: dev}, nil
}

// Close releases the backend context. All capture devices must be closed
// first.
func (c *Context) Close() {
	_ = c.ctx.Uninit()
	c.ctx.Free()
}

// Capture is an open microphone device.
type Capture struct {
	device *malgo.Device
}

// Start begins delivering PCM blocks to the callback.
func (c *Capture) Start() error {
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("audio: start capture: %w", err)
	}
	return nil
}

// Stop pauses capture without releasing the device.
func (c *Capture) Stop() {
	_ = c.device.Stop()
}

// Close releases the device.
func (c *Capture) Close() {
	c.device.Uninit()
}
