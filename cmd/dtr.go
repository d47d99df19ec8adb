/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	comm "github.com/allbin/go-comm"
	"github.com/spf13/cobra"
)

// dtrCmd represents the dtr command
var dtrCmd = &cobra.Command{
	Use:   "dtr <port> <state>",
	Short: "Control DTR (Data Terminal Ready) signal",
	Long: `Manually set the DTR (Data Terminal Ready) signal state.

The DTR signal indicates that the terminal is ready for communication.

Examples:
  commctl dtr /dev/ttyUSB0 high
  commctl dtr /dev/ttyUSB0 low
  commctl dtr /dev/ttyUSB0 on
  commctl dtr /dev/ttyUSB0 off

Valid states: high, low, on, off, true, false, 1, 0`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := parseSignalState(args[1])
		if err != nil {
			return err
		}

		return withPort(cmd, args[0], func(_ *session, port *comm.Port) error {
			if err := port.SetDTR(state); err != nil {
				return fmt.Errorf("setting DTR: %w", err)
			}

			// Verify the state was set
			current, err := port.IsDTR()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not verify DTR state: %v\n", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "DTR set to %s on %s\n", formatSignalState(current), port.Name())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(dtrCmd)
}
