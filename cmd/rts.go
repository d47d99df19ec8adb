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

// rtsCmd represents the rts command
var rtsCmd = &cobra.Command{
	Use:   "rts <port> <state>",
	Short: "Control RTS (Request To Send) signal",
	Long: `Manually set the RTS (Request To Send) signal state.

The RTS signal can be used for software flow control or custom signaling.

Examples:
  commctl rts /dev/ttyUSB0 high
  commctl rts /dev/ttyUSB0 low
  commctl rts /dev/ttyUSB0 on
  commctl rts /dev/ttyUSB0 off

Valid states: high, low, on, off, true, false, 1, 0`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := parseSignalState(args[1])
		if err != nil {
			return err
		}

		return withPort(cmd, args[0], func(_ *session, port *comm.Port) error {
			if err := port.SetRTS(state); err != nil {
				return fmt.Errorf("setting RTS: %w", err)
			}

			// Verify the state was set
			current, err := port.IsRTS()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not verify RTS state: %v\n", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "RTS set to %s on %s\n", formatSignalState(current), port.Name())
			return nil
		})
	},
}

func parseSignalState(state string) (bool, error) {
	switch strings.ToLower(state) {
	case "high", "on", "true", "1":
		return true, nil
	case "low", "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid state: %s (valid: high, low, on, off, true, false, 1, 0)", state)
	}
}

func init() {
	rootCmd.AddCommand(rtsCmd)
}
