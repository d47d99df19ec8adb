/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	comm "github.com/allbin/go-comm"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [data] <port>",
	Short: "Send data to a port",
	Long: `Send data to a serial or parallel port with configurable options.

Data can be provided as:
- Command line argument: send "Hello World" /dev/ttyUSB0
- From stdin (pipe): echo "test data" | commctl send /dev/ttyUSB0
- Interactive mode: commctl send /dev/ttyUSB0 (prompts for input)

After writing, send waits until the driver reports an empty output buffer
or --timeout passes.

Example usage:
  commctl send "Hello World" /dev/ttyUSB0
  commctl send "AT+GMR" /dev/ttyUSB0 --newline --baud 115200
  commctl send 48656c6c6f /dev/ttyUSB0 --hex
  echo "test" | commctl send /dev/ttyUSB0`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data string
		var portName string

		// Parse arguments: either "send data port" or "send port"
		if len(args) == 1 {
			portName = args[0]
			stat, err := os.Stdin.Stat()
			if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
				data = promptForData(cmd.OutOrStdout())
			} else {
				stdinData, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading from stdin: %w", err)
				}
				data = strings.TrimRight(string(stdinData), "\r\n")
			}
		} else {
			data = args[0]
			portName = args[1]
		}

		addNewline, _ := cmd.Flags().GetBool("newline")
		hexMode, _ := cmd.Flags().GetBool("hex")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if hexMode {
			processed, err := parseHexString(data)
			if err != nil {
				return fmt.Errorf("invalid hex data: %w", err)
			}
			data = processed
		}
		if addNewline && !hexMode {
			data += "\n"
		}

		return withPort(cmd, portName, func(_ *session, port *comm.Port) error {
			if err := applyLineFlags(cmd, port); err != nil {
				return err
			}
			return sendData(cmd.OutOrStdout(), port, []byte(data), timeout)
		})
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	addLineFlags(sendCmd)
	sendCmd.Flags().BoolP("newline", "n", false, "Add newline character to the end of data")
	sendCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '48656c6c6f' for 'Hello')")
	sendCmd.Flags().DurationP("timeout", "t", 5*time.Second, "How long to wait for the output buffer to drain")
}

func promptForData(w io.Writer) string {
	promptStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99"))

	fmt.Fprint(w, promptStyle.Render("Enter data to send: "))

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

func parseHexString(hexStr string) (string, error) {
	// Remove common hex prefixes and whitespace
	hexStr = strings.ReplaceAll(hexStr, " ", "")
	hexStr = strings.ReplaceAll(hexStr, "0x", "")
	hexStr = strings.ReplaceAll(hexStr, "0X", "")

	if len(hexStr)%2 != 0 {
		return "", fmt.Errorf("hex string must have even length")
	}

	var result strings.Builder
	for i := 0; i < len(hexStr); i += 2 {
		hexByte := hexStr[i : i+2]
		var b byte
		if _, err := fmt.Sscanf(hexByte, "%x", &b); err != nil {
			return "", fmt.Errorf("invalid hex byte '%s': %v", hexByte, err)
		}
		result.WriteByte(b)
	}

	return result.String(), nil
}

func sendData(w io.Writer, port *comm.Port, data []byte, timeout time.Duration) error {
	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		Bold(true)

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("40")).
		Bold(true)

	warnStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Bold(true)

	drained := make(chan struct{}, 1)
	err := port.AddEventListener(comm.EventListenerFunc(func(ev comm.LineEvent) {
		if ev.Kind == comm.EventOutputBufferEmpty {
			select {
			case drained <- struct{}{}:
			default:
			}
		}
	}))
	if err != nil {
		return err
	}
	defer port.RemoveEventListener()
	if err := port.NotifyOnOutputEmpty(true); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s Sending %d bytes to %s...\n", infoStyle.Render("📤"), len(data), port.Name())

	n, err := port.Write(data)
	if err != nil {
		return fmt.Errorf("failed to send data after %d bytes: %w", n, err)
	}

	select {
	case <-drained:
		fmt.Fprintf(w, "%s Successfully sent %d bytes\n", successStyle.Render("✓"), n)
	case <-time.After(timeout):
		fmt.Fprintf(w, "%s Wrote %d bytes; output not drained within %v\n", warnStyle.Render("!"), n, timeout)
	}

	fmt.Fprintf(w, "%s Data: %s\n", infoStyle.Render("📋"), preview(data, 50))
	return nil
}

// preview returns at most limit bytes of data with non-printable characters
// replaced for display.
func preview(data []byte, limit int) string {
	s := string(data)
	suffix := ""
	if len(s) > limit {
		s, suffix = s[:limit], "..."
	}
	return strings.Map(func(r rune) rune {
		if r < 32 || r > 126 {
			return '·'
		}
		return r
	}, s) + suffix
}
