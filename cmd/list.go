/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	comm "github.com/allbin/go-comm"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available communication ports",
	Long: `List every port the selected driver registered, in registration order.

With the termios driver this covers:
- USB serial adapters (ttyUSB*)
- USB CDC/ACM devices (ttyACM*)
- Standard serial ports (ttyS*)
- ARM/Raspberry Pi ports (ttyAMA*)
- Parallel ports (lp*, parport*)

Virtual terminals and pseudo-terminals are excluded from the listing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}

		filterType, _ := cmd.Flags().GetString("filter")
		tableFormat, _ := cmd.Flags().GetBool("table")
		showOwner, _ := cmd.Flags().GetBool("owner")

		ports, err := filterPorts(s.mgr.ListPorts(), filterType)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(ports) == 0 {
			if filterType != "" {
				fmt.Fprintf(out, "No ports found matching filter: %s\n", filterType)
			} else {
				fmt.Fprintln(out, "No ports found")
			}
			return nil
		}

		if tableFormat {
			renderTable(out, s, ports, showOwner)
		} else {
			renderSimple(out, ports)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("filter", "f", "", "Filter by port type: serial, parallel, usb, standard, arm, all")
	listCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
	listCmd.Flags().Bool("owner", false, "Show the owning application in table format")
}

// filterPorts filters the port list based on the specified filter type
func filterPorts(ports []comm.PortDescriptor, filterType string) ([]comm.PortDescriptor, error) {
	filterType = strings.ToLower(filterType)
	if filterType == "" || filterType == "all" {
		return ports, nil
	}

	var match func(d comm.PortDescriptor, name string) bool
	switch filterType {
	case "serial":
		match = func(d comm.PortDescriptor, _ string) bool { return d.Kind == comm.KindSerial }
	case "parallel":
		match = func(d comm.PortDescriptor, _ string) bool { return d.Kind == comm.KindParallel }
	case "usb":
		match = func(_ comm.PortDescriptor, name string) bool {
			return strings.HasPrefix(name, "ttyusb") || strings.HasPrefix(name, "ttyacm")
		}
	case "standard":
		match = func(_ comm.PortDescriptor, name string) bool { return strings.HasPrefix(name, "ttys") }
	case "arm":
		match = func(_ comm.PortDescriptor, name string) bool { return strings.HasPrefix(name, "ttyama") }
	default:
		return nil, fmt.Errorf("invalid filter: %s (valid: serial, parallel, usb, standard, arm, all)", filterType)
	}

	var filtered []comm.PortDescriptor
	for _, d := range ports {
		if match(d, strings.ToLower(filepath.Base(d.Name))) {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

// renderTable renders the port list in a styled static table format
func renderTable(w io.Writer, s *session, ports []comm.PortDescriptor, showOwner bool) {
	fmt.Fprintf(w, "Found %d port(s):\n\n", len(ports))

	portWidth := 20
	kindWidth := 10
	typeWidth := 20
	driverWidth := 10

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("240")).
		PaddingBottom(1)

	cellStyle := lipgloss.NewStyle().
		PaddingRight(2)

	header := fmt.Sprintf("%-*s %-*s %-*s %-*s",
		portWidth, "Port",
		kindWidth, "Kind",
		typeWidth, "Type",
		driverWidth, "Driver")
	if showOwner {
		header += " Owner"
	}
	fmt.Fprintln(w, headerStyle.Render(header))

	for _, d := range ports {
		row := fmt.Sprintf("%-*s %-*s %-*s %-*s",
			portWidth, d.Name,
			kindWidth, d.Kind,
			typeWidth, getPortType(d),
			driverWidth, d.Driver.Name())
		if showOwner {
			owner, owned, err := s.mgr.CurrentOwner(d.Name)
			switch {
			case err != nil:
				row += " ?"
			case owned:
				row += " " + owner
			default:
				row += " -"
			}
		}
		fmt.Fprintln(w, cellStyle.Render(row))
	}
}

// renderSimple renders the port list in simple text format
func renderSimple(w io.Writer, ports []comm.PortDescriptor) {
	for _, d := range ports {
		fmt.Fprintln(w, d.Name)
	}
}

// getPortType returns a more specific type classification for the port
func getPortType(d comm.PortDescriptor) string {
	if d.Kind == comm.KindParallel {
		return "Parallel Port"
	}
	name := strings.ToLower(filepath.Base(d.Name))
	switch {
	case strings.HasPrefix(name, "ttyusb"):
		return "USB Serial"
	case strings.HasPrefix(name, "ttyacm"):
		return "USB CDC/ACM"
	case strings.HasPrefix(name, "ttyama"):
		return "ARM Serial"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial"
	case strings.HasPrefix(name, "ttysac"):
		return "Samsung Serial"
	case strings.HasPrefix(name, "ttyths"):
		return "Tegra Serial"
	case strings.HasPrefix(name, "ttyo"):
		return "OMAP Serial"
	case strings.HasPrefix(name, "ttys"):
		return "Standard Serial"
	default:
		return "Serial Port"
	}
}
