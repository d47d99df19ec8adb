/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	comm "github.com/allbin/go-comm"
	"github.com/spf13/cobra"
)

// signalsCmd represents the signals command
var signalsCmd = &cobra.Command{
	Use:   "signals <port>",
	Short: "Display current modem signal states",
	Long: `Display the current state of all modem control signals.

Shows the state of CTS, DSR, RI, CD, RTS, and DTR signals for the specified
serial port.

Examples:
  commctl signals /dev/ttyUSB0
  commctl signals --driver loopback COM1

Signal meanings:
  CTS - Clear To Send (input)
  DSR - Data Set Ready (input)
  RI  - Ring Indicator (input)
  CD  - Carrier Detect (input)
  RTS - Request To Send (output)
  DTR - Data Terminal Ready (output)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPort(cmd, args[0], func(_ *session, port *comm.Port) error {
			signals, err := port.Lines()
			if err != nil {
				return fmt.Errorf("reading modem signals: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Modem Signals for %s:\n\n", port.Name())
			fmt.Fprintf(out, "  CTS (Clear To Send):       %s\n", formatSignalState(signals.CTS))
			fmt.Fprintf(out, "  DSR (Data Set Ready):      %s\n", formatSignalState(signals.DSR))
			fmt.Fprintf(out, "  RI  (Ring Indicator):      %s\n", formatSignalState(signals.RI))
			fmt.Fprintf(out, "  CD  (Carrier Detect):      %s\n", formatSignalState(signals.CD))
			fmt.Fprintf(out, "  RTS (Request To Send):     %s\n", formatSignalState(signals.RTS))
			fmt.Fprintf(out, "  DTR (Data Terminal Ready): %s\n", formatSignalState(signals.DTR))
			return nil
		})
	},
}

func formatSignalState(state bool) string {
	if state {
		return "HIGH"
	}
	return "LOW"
}

func init() {
	rootCmd.AddCommand(signalsCmd)
}
