package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// DeviceKind distinguishes capture and playback devices
type DeviceKind int

const (
	DeviceKindCapture DeviceKind = iota
	DeviceKindPlayback
)

// DeviceInfo contains information about an audio device
type DeviceInfo struct {
	ID        string     // Unique device identifier
	Name      string     // Human-readable device name
	Kind      DeviceKind // Capture or playback
	IsDefault bool       // Whether this is the default device
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	defaultMarker := ""
	if d.IsDefault {
		defaultMarker = " [DEFAULT]"
	}
	return fmt.Sprintf("%s: %s%s", d.ID, d.Name, defaultMarker)
}

// ListCaptureDevices returns all available audio capture devices
func ListCaptureDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, DeviceInfo{
			ID:        fmt.Sprintf("capture-%d", i),
			Name:      info.Name(),
			Kind:      DeviceKindCapture,
			IsDefault: info.IsDefault > 0,
		})
	}

	return devices, nil
}

// DefaultCaptureDevice returns the default capture device
func DefaultCaptureDevice() (*DeviceInfo, error) {
	devices, err := ListCaptureDevices()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}

	for i := range devices {
		if devices[i].IsDefault {
			return &devices[i], nil
		}
	}

	// No device flagged as default, use the first one
	return &devices[0], nil
}

// FindCaptureDevice looks up a capture device by name or ID
func FindCaptureDevice(nameOrID string) (*DeviceInfo, error) {
	if nameOrID == "" {
		return DefaultCaptureDevice()
	}

	devices, err := ListCaptureDevices()
	if err != nil {
		return nil, err
	}

	for i := range devices {
		if devices[i].Name == nameOrID || devices[i].ID == nameOrID {
			return &devices[i], nil
		}
	}

	return nil, fmt.Errorf("audio device %q not found", nameOrID)
}
