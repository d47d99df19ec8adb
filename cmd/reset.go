/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/allbin/go-comm/driver/termios"
	"github.com/spf13/cobra"
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset <port|serial>",
	Short: "Reset a USB serial device",
	Long: `Perform a USB-level reset on a serial device. This can recover devices
that are hung or unresponsive without physically unplugging them.

The device will re-enumerate after reset, which may cause the port path
to change (e.g., /dev/ttyUSB0 might become /dev/ttyUSB1). Use serial
numbers to reliably identify devices after reset.

The port is acquired first, so a reset never pulls a device away from an
application that owns it through this tool.

Requirements:
- usbreset utility must be installed (from usbutils package)
- Root/sudo permissions required for USB operations

Examples:
  sudo commctl reset /dev/ttyUSB0          # Reset by port path
  sudo commctl reset --serial NC7ILXW1     # Reset by serial number`,
	Args: func(cmd *cobra.Command, args []string) error {
		serialFlag, _ := cmd.Flags().GetString("serial")
		if serialFlag == "" && len(args) != 1 {
			return errors.New("requires either a port path argument or --serial flag")
		}
		if serialFlag != "" && len(args) > 0 {
			return errors.New("cannot specify both port path and --serial flag")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !termios.IsUSBResetAvailable() {
			return fmt.Errorf("%w; install with: sudo apt-get install usbutils", termios.ErrUSBResetNotAvailable)
		}

		out := cmd.OutOrStdout()
		serialFlag, _ := cmd.Flags().GetString("serial")
		devDir, _ := cmd.Flags().GetString("dev-dir")

		var err error
		if serialFlag != "" {
			fmt.Fprintf(out, "Resetting USB device with serial: %s\n", serialFlag)
			err = termios.ResetUSBDeviceBySerial(devDir, serialFlag)
		} else {
			s, serr := newSession(cmd)
			if serr != nil {
				return serr
			}
			port, perr := s.acquire(args[0])
			if perr != nil {
				return perr
			}
			path := port.Name()
			// the device disappears during the reset, release it first
			if cerr := port.Close(); cerr != nil {
				s.log.Warn("close before reset failed", "port", path, "error", cerr)
			}
			fmt.Fprintf(out, "Resetting USB device: %s\n", path)
			err = termios.ResetUSBDevice(path)
		}

		if err != nil {
			if errors.Is(err, termios.ErrUSBInfoNotAvailable) {
				return fmt.Errorf("%w: this device does not appear to be a USB device", err)
			}
			return err
		}

		fmt.Fprintln(out, "USB device reset successfully")
		fmt.Fprintln(out, "Device will re-enumerate (port path may change)")
		fmt.Fprintln(out, "\nUse 'commctl list --table' to see updated device list")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().StringP("serial", "s", "", "Reset device by serial number")
	resetCmd.Flags().String("dev-dir", "/dev", "Directory searched for the device when resetting by serial number")
}
