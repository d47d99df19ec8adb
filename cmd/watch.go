/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	comm "github.com/allbin/go-comm"
	"github.com/allbin/go-comm/internal/tui/models"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <port>",
	Short: "Watch line levels and port events in a live view",
	Long: `Open a terminal UI showing the modem line levels of a port and a live
table of its events: data arriving, CTS/DSR/RI/CD changes and line errors.

Keys:
  d / r     toggle DTR / RTS
  b         send a break
  p, space  pause the event table
  c         clear the event table
  ←/→       page through older events
  ?         full help
  q         quit

Example usage:
  commctl watch /dev/ttyUSB0
  commctl watch /dev/ttyUSB0 --baud 115200
  commctl watch --driver loopback COM1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPort(cmd, args[0], func(s *session, port *comm.Port) error {
			if err := applyLineFlags(cmd, port); err != nil {
				return err
			}

			m := models.NewWatch(port)
			p := tea.NewProgram(m, tea.WithAltScreen())

			if err := port.AddEventListener(m.Listener(p.Send)); err != nil {
				return err
			}
			defer port.RemoveEventListener()
			if err := m.EnableEvents(); err != nil {
				return err
			}

			sub, err := s.mgr.AddOwnershipListener(port.Name(), m.OwnershipListener(p.Send))
			if err != nil {
				return err
			}
			defer s.mgr.RemoveOwnershipListener(port.Name(), sub)

			_, err = p.Run()
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	addLineFlags(watchCmd)
}
