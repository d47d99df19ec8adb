/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	comm "github.com/allbin/go-comm"
	"github.com/spf13/cobra"
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read <port>",
	Short: "Read data from a port using receive framing, timeout and threshold",
	Long: `Read data from a port. How long each read blocks is decided by three
independent settings:

  --framing    return as soon as this byte arrives (e.g. '\n' or 0x0D)
  --timeout    return whatever arrived once this much time passed
  --threshold  return once at least this many bytes are buffered

A zero --timeout or --threshold switches to polling: the read re-checks the
buffer every --poll-interval. Without any of them a read waits for the first
byte.

With --request the data is written first, which suits command/response
devices. With --follow reads repeat until interrupted (Ctrl+C), and
--output appends everything to a file.

Example usage:
  commctl read /dev/ttyUSB0 --framing '\n'
  commctl read /dev/ttyUSB0 --request 'AT\r' --framing '\r' --timeout 2s
  commctl read /dev/ttyUSB0 --threshold 16 --hex
  commctl read /dev/ttyUSB0 --follow --output capture.log --console`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		request, _ := cmd.Flags().GetString("request")
		hexMode, _ := cmd.Flags().GetBool("hex")
		follow, _ := cmd.Flags().GetBool("follow")
		outputPath, _ := cmd.Flags().GetString("output")
		showConsole, _ := cmd.Flags().GetBool("console")

		if count < 1 {
			return fmt.Errorf("invalid count: %d", count)
		}
		if request != "" {
			unquoted, err := unescape(request)
			if err != nil {
				return fmt.Errorf("invalid request: %w", err)
			}
			request = unquoted
		}

		var sink io.Writer = cmd.OutOrStdout()
		if outputPath != "" {
			file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open output file: %w", err)
			}
			defer file.Close()
			sink = file
			if showConsole {
				sink = io.MultiWriter(file, cmd.OutOrStdout())
			}
		}

		return withPort(cmd, args[0], func(s *session, port *comm.Port) error {
			if err := applyLineFlags(cmd, port); err != nil {
				return err
			}
			if err := applyReadFlags(cmd, port); err != nil {
				return err
			}
			if request != "" {
				if _, err := port.Write([]byte(request)); err != nil {
					return fmt.Errorf("writing request: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			buf := make([]byte, count)
			total := 0
			for {
				n, err := port.ReadContext(ctx, buf)
				if n > 0 {
					total += n
					if werr := emit(sink, buf[:n], hexMode); werr != nil {
						return werr
					}
				}
				switch {
				case err == nil:
				case errors.Is(err, comm.ErrReadTimeout):
					if !follow && total == 0 {
						return fmt.Errorf("no data received from %s: %w", port.Name(), err)
					}
				case ctx.Err() != nil:
					s.log.Debug("read interrupted", "port", port.Name(), "bytes", total)
					return nil
				default:
					return fmt.Errorf("read error: %w", err)
				}
				if !follow {
					return nil
				}
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(readCmd)

	addLineFlags(readCmd)
	readCmd.Flags().IntP("count", "c", 256, "Maximum bytes returned by one read")
	readCmd.Flags().String("framing", "", "Framing byte: a single character, an escape like '\\n' or hex like 0x0A")
	readCmd.Flags().DurationP("timeout", "t", time.Second, "Receive timeout (negative disables it)")
	readCmd.Flags().Int("threshold", -1, "Receive threshold in bytes (negative disables it)")
	readCmd.Flags().StringP("request", "r", "", "Data to write before reading; escapes like \\r\\n are honored")
	readCmd.Flags().BoolP("hex", "x", false, "Print received data as hex")
	readCmd.Flags().Bool("follow", false, "Keep reading until interrupted")
	readCmd.Flags().StringP("output", "o", "", "Append received data to this file")
	readCmd.Flags().Bool("console", false, "Also print data to the console when --output is set")
}

// applyReadFlags turns the framing, timeout and threshold flags into the
// port's read policy.
func applyReadFlags(cmd *cobra.Command, port *comm.Port) error {
	framing, _ := cmd.Flags().GetString("framing")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	threshold, _ := cmd.Flags().GetInt("threshold")

	if framing != "" {
		b, err := parseFramingByte(framing)
		if err != nil {
			return err
		}
		if err := port.EnableReceiveFraming(b); err != nil {
			return err
		}
	}
	if timeout >= 0 {
		if err := port.EnableReceiveTimeout(timeout); err != nil {
			return err
		}
	}
	if threshold >= 0 {
		if err := port.EnableReceiveThreshold(threshold); err != nil {
			return err
		}
	}
	return nil
}

func parseFramingByte(s string) (byte, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid framing byte %q: %w", s, err)
		}
		return byte(v), nil
	}
	unquoted, err := unescape(s)
	if err != nil {
		return 0, fmt.Errorf("invalid framing byte %q: %w", s, err)
	}
	if len(unquoted) != 1 {
		return 0, fmt.Errorf("invalid framing byte %q: want exactly one byte", s)
	}
	return unquoted[0], nil
}

// unescape interprets Go string escapes such as \r, \n and \x1b.
func unescape(s string) (string, error) {
	return strconv.Unquote(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`)
}

func emit(w io.Writer, data []byte, hexMode bool) error {
	if hexMode {
		_, err := fmt.Fprintf(w, "% X\n", data)
		return err
	}
	_, err := w.Write(data)
	return err
}
