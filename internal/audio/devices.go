// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"

	"github.com/zthompson47/time2freq/internal/config"
)

// PortAudio entry points, replaceable in tests.
var (
	paInitialize          = portaudio.Initialize
	paTerminate           = portaudio.Terminate
	paDevicesFunc         = portaudio.Devices
	paDefaultOutputDevice = portaudio.DefaultOutputDevice
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := paInitialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
func Terminate() error {
	if err := paTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// OutputDevice retrieves the output device for the given device ID. If
// deviceID is MinDeviceID (-1), it returns the system default output device.
// Every failure wraps ErrDeviceUnavailable.
func OutputDevice(deviceID, channels int) (*portaudio.DeviceInfo, error) {
	var (
		device *portaudio.DeviceInfo
		err    error
	)
	if deviceID == config.MinDeviceID {
		device, err = paDefaultOutputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: no default output: %w", ErrDeviceUnavailable, err)
		}
	} else {
		devices, err := paDevicesFunc()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
		}
		if deviceID < 0 || deviceID >= len(devices) {
			return nil, fmt.Errorf("%w: invalid device ID %d", ErrDeviceUnavailable, deviceID)
		}
		device = devices[deviceID]
	}

	if device == nil {
		return nil, fmt.Errorf("%w: device %d not found", ErrDeviceUnavailable, deviceID)
	}
	if device.MaxOutputChannels < channels {
		return nil, fmt.Errorf("%w: %q has %d output channels, need %d",
			ErrDeviceUnavailable, device.Name, device.MaxOutputChannels, channels)
	}
	return device, nil
}

// HostDevices returns all available audio devices. PortAudio must be
// initialized.
func HostDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			LowOutputLatency:  info.DefaultLowOutputLatency,
			HighOutputLatency: info.DefaultHighOutputLatency,
		}
	}
	return devices, nil
}

// ListDevices writes a description of every output-capable device to w.
// PortAudio must be initialized.
func ListDevices(w io.Writer) error {
	devices, err := HostDevices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Output Devices\n\n")
	for _, d := range devices {
		if d.MaxOutputChannels == 0 {
			continue
		}
		fmt.Fprintf(w, "[%d] %s\n", d.ID, d.Name)
		fmt.Fprintf(w, "    Output channels: %d\n", d.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n",
			d.LowOutputLatency.Seconds()*1000,
			d.HighOutputLatency.Seconds()*1000)
		fmt.Fprintln(w)
	}
	return nil
}
