/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strings"

	comm "github.com/allbin/go-comm"
	"github.com/spf13/cobra"
)

var lineFlagNames = []string{"baud", "data-bits", "parity", "stop-bits", "flow-control"}

// addLineFlags registers the serial line settings shared by I/O commands.
// Only flags given on the command line are applied; the rest keep the
// port's current settings.
func addLineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntP("baud", "b", 9600, "Baud rate")
	f.Int("data-bits", 8, "Data bits: 5, 6, 7, 8")
	f.StringP("parity", "p", "none", "Parity: none, odd, even, mark, space")
	f.String("stop-bits", "1", "Stop bits: 1, 1.5, 2")
	f.StringP("flow-control", "f", "none",
		"Flow control: none, rtscts, xonxoff or a comma-separated list of rtscts-in, rtscts-out, xonxoff-in, xonxoff-out")
}

func applyLineFlags(cmd *cobra.Command, port *comm.Port) error {
	f := cmd.Flags()
	changed := false
	for _, name := range lineFlagNames {
		changed = changed || f.Changed(name)
	}
	if !changed {
		return nil
	}
	if port.Kind() != comm.KindSerial {
		return fmt.Errorf("%s is a %s port; line settings only apply to serial ports", port.Name(), port.Kind())
	}

	cur, err := port.SerialConfig()
	if err != nil {
		return err
	}
	baud, dataBits, stopBits, parity := cur.BaudRate, cur.DataBits, cur.StopBits, cur.Parity
	if f.Changed("baud") {
		baud, _ = f.GetInt("baud")
	}
	if f.Changed("data-bits") {
		dataBits, _ = f.GetInt("data-bits")
	}
	if f.Changed("parity") {
		s, _ := f.GetString("parity")
		if parity, err = parseParity(s); err != nil {
			return err
		}
	}
	if f.Changed("stop-bits") {
		s, _ := f.GetString("stop-bits")
		if stopBits, err = parseStopBits(s); err != nil {
			return err
		}
	}
	if err := port.SetSerialPortParams(baud, dataBits, stopBits, parity); err != nil {
		return err
	}

	if f.Changed("flow-control") {
		s, _ := f.GetString("flow-control")
		fc, err := parseFlowControl(s)
		if err != nil {
			return err
		}
		if err := port.SetFlowControlMode(fc); err != nil {
			return err
		}
	}
	return nil
}

func parseParity(s string) (comm.Parity, error) {
	switch strings.ToLower(s) {
	case "none", "n":
		return comm.ParityNone, nil
	case "odd", "o":
		return comm.ParityOdd, nil
	case "even", "e":
		return comm.ParityEven, nil
	case "mark", "m":
		return comm.ParityMark, nil
	case "space", "s":
		return comm.ParitySpace, nil
	default:
		return 0, fmt.Errorf("invalid parity: %s (valid: none, odd, even, mark, space)", s)
	}
}

func parseStopBits(s string) (comm.StopBits, error) {
	switch s {
	case "1":
		return comm.StopBits1, nil
	case "1.5":
		return comm.StopBits1Half, nil
	case "2":
		return comm.StopBits2, nil
	default:
		return 0, fmt.Errorf("invalid stop bits: %s (valid: 1, 1.5, 2)", s)
	}
}

func parseFlowControl(s string) (comm.FlowControl, error) {
	var fc comm.FlowControl
	for _, part := range strings.Split(strings.ToLower(s), ",") {
		switch strings.TrimSpace(part) {
		case "none", "":
		case "rtscts":
			fc |= comm.FlowControlRTSCTSIn | comm.FlowControlRTSCTSOut
		case "xonxoff":
			fc |= comm.FlowControlXonXoffIn | comm.FlowControlXonXoffOut
		case "rtscts-in":
			fc |= comm.FlowControlRTSCTSIn
		case "rtscts-out":
			fc |= comm.FlowControlRTSCTSOut
		case "xonxoff-in":
			fc |= comm.FlowControlXonXoffIn
		case "xonxoff-out":
			fc |= comm.FlowControlXonXoffOut
		default:
			return 0, fmt.Errorf("invalid flow control: %s", part)
		}
	}
	return fc, nil
}
