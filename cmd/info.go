/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"io"
	"strings"

	comm "github.com/allbin/go-comm"
	"github.com/allbin/go-comm/driver/termios"
	"github.com/spf13/cobra"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Display detailed information about a port",
	Long: `Display detailed information about a port: its kind, driver, current
line settings, buffer sizes and read policy.

Examples:
  commctl info /dev/ttyUSB0
  commctl info --driver loopback COM1

For USB devices under /dev, this also displays vendor/product IDs, serial
numbers, bus and device numbers extracted from sysfs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPort(cmd, args[0], func(_ *session, port *comm.Port) error {
			out := cmd.OutOrStdout()
			desc := port.Descriptor()

			fmt.Fprintf(out, "Port Information: %s\n\n", desc.Name)
			fmt.Fprintf(out, "  Kind:        %s\n", desc.Kind)
			fmt.Fprintf(out, "  Driver:      %s\n", desc.Driver.Name())

			if port.Kind() == comm.KindSerial {
				sc, err := port.SerialConfig()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  Line:        %d %d%s%s\n", sc.BaudRate, sc.DataBits, sc.Parity, sc.StopBits)
				fmt.Fprintf(out, "  Flow:        %s\n", sc.FlowControl)
			}

			in, err := port.InputBufferSize()
			if err != nil {
				return err
			}
			outSize, err := port.OutputBufferSize()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  Buffers:     in=%d out=%d\n", in, outSize)

			rp, err := port.ReadPolicy()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  Read policy: %s\n", describePolicy(rp))

			if strings.HasPrefix(desc.Name, "/dev/") {
				if info, err := termios.GetPortInfo(desc.Name); err == nil {
					printUSBInfo(out, info)
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func describePolicy(rp comm.ReadPolicy) string {
	var parts []string
	if b, ok := rp.Framing(); ok {
		parts = append(parts, fmt.Sprintf("framing=0x%02X", b))
	}
	if d, ok := rp.Timeout(); ok {
		parts = append(parts, fmt.Sprintf("timeout=%v", d))
	}
	if n, ok := rp.Threshold(); ok {
		parts = append(parts, fmt.Sprintf("threshold=%d", n))
	}
	if rp.Polling() {
		parts = append(parts, "polling")
	}
	if len(parts) == 0 {
		return "blocking"
	}
	return strings.Join(parts, " ")
}

func printUSBInfo(out io.Writer, info *termios.PortInfo) {
	fmt.Fprintf(out, "  Description: %s\n", info.Description)

	if info.VendorID == "" && info.ProductID == "" {
		return
	}
	fmt.Fprintln(out, "\nUSB Device Information:")
	if info.VendorID != "" {
		fmt.Fprintf(out, "  Vendor ID:    %s\n", info.VendorID)
	}
	if info.ProductID != "" {
		fmt.Fprintf(out, "  Product ID:   %s\n", info.ProductID)
	}
	if info.SerialNumber != "" {
		fmt.Fprintf(out, "  Serial:       %s\n", info.SerialNumber)
	}
	if info.BusNumber != "" {
		fmt.Fprintf(out, "  Bus:          %s\n", info.BusNumber)
	}
	if info.DeviceNumber != "" {
		fmt.Fprintf(out, "  Device:       %s\n", info.DeviceNumber)
	}
}
