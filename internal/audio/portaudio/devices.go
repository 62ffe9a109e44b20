// SPDX-License-Identifier: MIT
package portaudio

import (
	"fmt"
	"strings"

	pa "github.com/gordonklaus/portaudio"

	"audioviz/internal/audio"
)

// DefaultDeviceID selects the host's default input device.
const DefaultDeviceID = -1

// Library entry points, replaceable in tests.
var (
	paLibInitialize         = pa.Initialize
	paLibTerminate          = pa.Terminate
	paLibDevicesFunc        = pa.Devices
	paLibDefaultInputDevice = pa.DefaultInputDevice
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := paLibInitialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := paLibTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// InputDevice resolves the capture device. With monitor set the first device
// that loops back an output is preferred; otherwise deviceID picks by index,
// and DefaultDeviceID picks the system default input.
func InputDevice(deviceID int, monitor bool) (*pa.DeviceInfo, error) {
	devices, err := paDevices()
	if err != nil {
		return nil, err
	}

	if monitor {
		return monitorDevice(devices)
	}

	if deviceID == DefaultDeviceID {
		device, err := paLibDefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", audio.ErrNoDevice, err)
		}
		return device, nil
	}

	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if devices[deviceID].MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %d (%s) does not support input", deviceID, devices[deviceID].Name)
	}
	return devices[deviceID], nil
}

// monitorDevice returns the first input-capable device named as a monitor,
// falling back to the first device that has both inputs and outputs.
func monitorDevice(devices []*pa.DeviceInfo) (*pa.DeviceInfo, error) {
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), "monitor") {
			return d, nil
		}
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 && d.MaxOutputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: no output monitor found", audio.ErrNoDevice)
}

// Devices returns every PortAudio device. PortAudio must be initialised.
func Devices() ([]audio.Device, error) {
	infos, err := paDevices()
	if err != nil {
		return nil, err
	}

	var defaultName string
	if d, err := paLibDefaultInputDevice(); err == nil && d != nil {
		defaultName = d.Name
	}

	devices := make([]audio.Device, len(infos))
	for i, info := range infos {
		devices[i] = audio.Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			IsDefault:         info.Name == defaultName,
		}
	}
	return devices, nil
}

// paDevices returns all available PortAudio devices, never nil.
func paDevices() ([]*pa.DeviceInfo, error) {
	devices, err := paLibDevicesFunc()
	if err != nil {
		return nil, fmt.Errorf("failed to list PortAudio devices: %w", err)
	}
	if devices == nil {
		devices = []*pa.DeviceInfo{}
	}
	return devices, nil
}
