/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	comm "github.com/allbin/go-comm"
	"github.com/spf13/cobra"
)

var (
	monitorEvents   []string
	monitorDuration time.Duration
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <port>",
	Short: "Monitor line and data events",
	Long: `Print port events as they happen. Press Ctrl+C to stop.

Examples:
  commctl monitor /dev/ttyUSB0
  commctl monitor /dev/ttyUSB0 --events cts,dsr
  commctl monitor /dev/ttyUSB0 --events cd,errors --duration 30s

Available events: cts, dsr, ri, cd, data, output, oe, pe, fe, bi,
lines (cts,dsr,ri,cd), errors (oe,pe,fe,bi), all.
Parallel ports support data and output only.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, err := parseEventKinds(monitorEvents)
		if err != nil {
			return err
		}

		return withPort(cmd, args[0], func(_ *session, port *comm.Port) error {
			out := cmd.OutOrStdout()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if monitorDuration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, monitorDuration)
				defer cancel()
			}

			var mu sync.Mutex
			if err := port.AddEventListener(comm.EventListenerFunc(func(ev comm.LineEvent) {
				mu.Lock()
				defer mu.Unlock()
				printEvent(out, ev)
				if ev.Kind == comm.EventDataAvailable {
					drainInput(out, port)
				}
			})); err != nil {
				return err
			}
			defer port.RemoveEventListener()

			for _, kind := range kinds {
				if port.Kind() == comm.KindParallel && kind != comm.EventDataAvailable && kind != comm.EventOutputBufferEmpty {
					continue
				}
				if err := enableEvent(port, kind, true); err != nil {
					return fmt.Errorf("enabling %s: %w", kind, err)
				}
			}

			if port.Kind() == comm.KindSerial {
				signals, err := port.Lines()
				if err != nil {
					return fmt.Errorf("reading initial signals: %w", err)
				}
				mu.Lock()
				printSignalState(out, "Initial", signals)
				mu.Unlock()
			}

			mu.Lock()
			fmt.Fprintf(out, "Monitoring %s (events: %s)\n", port.Name(), strings.Join(monitorEvents, ", "))
			mu.Unlock()

			<-ctx.Done()
			return nil
		})
	},
}

var eventNames = map[string][]comm.EventKind{
	"cts":    {comm.EventCTS},
	"dsr":    {comm.EventDSR},
	"ri":     {comm.EventRI},
	"cd":     {comm.EventCD},
	"dcd":    {comm.EventCD},
	"data":   {comm.EventDataAvailable},
	"output": {comm.EventOutputBufferEmpty},
	"oe":     {comm.EventOverrunError},
	"pe":     {comm.EventParityError},
	"fe":     {comm.EventFramingError},
	"bi":     {comm.EventBreakInterrupt},
	"lines":  {comm.EventCTS, comm.EventDSR, comm.EventRI, comm.EventCD},
	"errors": {comm.EventOverrunError, comm.EventParityError, comm.EventFramingError, comm.EventBreakInterrupt},
}

func parseEventKinds(names []string) ([]comm.EventKind, error) {
	if len(names) == 0 {
		names = []string{"lines"}
	}

	seen := make(map[comm.EventKind]bool)
	var kinds []comm.EventKind
	add := func(ks ...comm.EventKind) {
		for _, k := range ks {
			if !seen[k] {
				seen[k] = true
				kinds = append(kinds, k)
			}
		}
	}
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "all" {
			add(eventNames["data"]...)
			add(eventNames["output"]...)
			add(eventNames["lines"]...)
			add(eventNames["errors"]...)
			continue
		}
		ks, ok := eventNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown event: %s (valid: cts, dsr, ri, cd, data, output, oe, pe, fe, bi, lines, errors, all)", name)
		}
		add(ks...)
	}
	return kinds, nil
}

// enableEvent maps an event kind onto the port's notify toggle.
func enableEvent(port *comm.Port, kind comm.EventKind, enable bool) error {
	switch kind {
	case comm.EventDataAvailable:
		return port.NotifyOnDataAvailable(enable)
	case comm.EventOutputBufferEmpty:
		return port.NotifyOnOutputEmpty(enable)
	case comm.EventCTS:
		return port.NotifyOnCTS(enable)
	case comm.EventDSR:
		return port.NotifyOnDSR(enable)
	case comm.EventRI:
		return port.NotifyOnRingIndicator(enable)
	case comm.EventCD:
		return port.NotifyOnCarrierDetect(enable)
	case comm.EventOverrunError:
		return port.NotifyOnOverrunError(enable)
	case comm.EventParityError:
		return port.NotifyOnParityError(enable)
	case comm.EventFramingError:
		return port.NotifyOnFramingError(enable)
	case comm.EventBreakInterrupt:
		return port.NotifyOnBreakInterrupt(enable)
	default:
		return fmt.Errorf("unknown event kind %v", kind)
	}
}

func printSignalState(w io.Writer, prefix string, signals comm.LineState) {
	timestamp := time.Now().Format("15:04:05")
	fmt.Fprintf(w, "[%s] %s state:\n", timestamp, prefix)
	fmt.Fprintf(w, "  CTS: %s\n", formatSignalState(signals.CTS))
	fmt.Fprintf(w, "  DSR: %s\n", formatSignalState(signals.DSR))
	fmt.Fprintf(w, "  RI:  %s\n", formatSignalState(signals.RI))
	fmt.Fprintf(w, "  CD:  %s\n", formatSignalState(signals.CD))
	fmt.Fprintln(w)
}

func printEvent(w io.Writer, ev comm.LineEvent) {
	timestamp := ev.Time.Format("15:04:05.000")
	switch ev.Kind {
	case comm.EventCTS, comm.EventDSR, comm.EventRI, comm.EventCD:
		fmt.Fprintf(w, "[%s] %s: %s -> %s\n", timestamp, ev.Kind,
			formatSignalState(ev.OldValue), formatSignalState(ev.NewValue))
	default:
		fmt.Fprintf(w, "[%s] %s\n", timestamp, ev.Kind)
	}
}

// drainInput consumes buffered input so the next burst raises a new
// DATA_AVAILABLE event.
func drainInput(w io.Writer, port *comm.Port) {
	avail, err := port.InputAvailable()
	if err != nil || avail == 0 {
		return
	}
	buf := make([]byte, avail)
	n, err := port.Read(buf)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "  %d bytes: %s\n", n, preview(buf[:n], 50))
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().StringSliceVarP(&monitorEvents, "events", "e", []string{"lines"},
		"Events to monitor (comma-separated)")
	monitorCmd.Flags().DurationVar(&monitorDuration, "duration", 0,
		"Stop after this long (0 = until interrupted)")
}
