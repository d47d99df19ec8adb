/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"time"

	comm "github.com/allbin/go-comm"
	"github.com/spf13/cobra"
)

// breakCmd represents the break command
var breakCmd = &cobra.Command{
	Use:   "break <port>",
	Short: "Send a break condition on a serial port",
	Long: `Hold the transmit line in the break (spacing) condition for a while.

Drivers without break support accept the request and do nothing.

Examples:
  commctl break /dev/ttyUSB0
  commctl break /dev/ttyUSB0 --duration 500ms`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		duration, _ := cmd.Flags().GetDuration("duration")
		if duration <= 0 {
			return fmt.Errorf("invalid duration: %v", duration)
		}

		return withPort(cmd, args[0], func(_ *session, port *comm.Port) error {
			if err := port.SendBreak(duration); err != nil {
				return fmt.Errorf("sending break: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %v break on %s\n", duration, port.Name())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(breakCmd)

	breakCmd.Flags().Duration("duration", 250*time.Millisecond, "How long to hold the break condition")
}
