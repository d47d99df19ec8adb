package termios

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"
)

var (
	ErrUSBResetNotAvailable = errors.New("usbreset utility not available")
	ErrUSBInfoNotAvailable  = errors.New("USB device information not available")
)

// reenumerateDelay is how long a reset device usually needs to come back.
var reenumerateDelay = 2 * time.Second

// ResetUSBDevice performs a USB-level reset of the adapter behind portPath.
// This can recover hardware that is in a hung state. It needs the usbreset
// utility (usbutils) and usually root.
//
// The device re-enumerates afterwards and may come back under another
// path; callers should rerun driver discovery.
func ResetUSBDevice(portPath string) error {
	info, err := GetPortInfo(portPath)
	if err != nil {
		return fmt.Errorf("failed to get port info: %w", err)
	}
	if info.BusNumber == "" || info.DeviceNumber == "" {
		return ErrUSBInfoNotAvailable
	}
	if !IsUSBResetAvailable() {
		return ErrUSBResetNotAvailable
	}

	// usbreset expects zero-padded BBB/DDD
	usbPath := fmt.Sprintf("%03s/%03s", info.BusNumber, info.DeviceNumber)
	cmd := exec.Command("usbreset", usbPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("usbreset failed: %w (output: %s)", err, string(output))
	}

	time.Sleep(reenumerateDelay)
	return nil
}

// ResetUSBDeviceBySerial resets the USB adapter with the given serial
// number, found by scanning devDir.
func ResetUSBDeviceBySerial(devDir, serialNumber string) error {
	ports, err := scanPorts(devDir)
	if err != nil {
		return err
	}
	for _, p := range ports {
		info, err := GetPortInfo(p.path)
		if err != nil {
			continue
		}
		if info.SerialNumber == serialNumber {
			return ResetUSBDevice(p.path)
		}
	}
	return fmt.Errorf("device with serial %s not found in %s", serialNumber, filepath.Clean(devDir))
}

// IsUSBResetAvailable checks if usbreset utility is available in PATH
func IsUSBResetAvailable() bool {
	_, err := exec.LookPath("usbreset")
	return err == nil
}
