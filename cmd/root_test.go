package cmd

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	comm "github.com/allbin/go-comm"
	"github.com/allbin/go-comm/driver/loopback"
	"github.com/allbin/go-comm/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for the listener goroutines that print
// while a command runs.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// useLoopback points every command at one shared loopback driver.
func useLoopback(t *testing.T) *loopback.Driver {
	t.Helper()
	drv := loopback.New(loopback.Serial("COM1"), loopback.Serial("COM2"), loopback.Parallel("LPT1"))
	orig := driverFactory
	driverFactory = func(string, logger.Logger) (comm.Driver, error) { return drv, nil }
	t.Cleanup(func() { driverFactory = orig })
	return drv
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			def := strings.Trim(f.DefValue, "[]")
			var vals []string
			if def != "" {
				vals = strings.Split(def, ",")
			}
			_ = sv.Replace(vals)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// run executes commctl with args and returns everything it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runTo(t, &syncBuffer{}, args...)
}

func runTo(t *testing.T, out *syncBuffer, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append(args, "--poll-interval", "1ms", "--log-level", "error"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestNewDriver(t *testing.T) {
	log := logger.Nop()

	for _, name := range []string{"termios", "native", "loopback", "LOOPBACK"} {
		drv, err := newDriver(name, log)
		require.NoError(t, err, name)
		assert.Equal(t, strings.ToLower(name), drv.Name())
	}

	_, err := newDriver("bogus", log)
	assert.ErrorContains(t, err, `unknown driver "bogus"`)
}

func TestResolveAcceptsBareDeviceNames(t *testing.T) {
	drv := loopback.New(loopback.Serial("/dev/ttyUSB0"))
	mgr, err := comm.NewManager(comm.WithDrivers(drv))
	require.NoError(t, err)
	s := &session{mgr: mgr, log: logger.Nop(), app: "test", timeout: time.Second}

	desc, err := s.resolve("ttyUSB0")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", desc.Name)

	_, err = s.resolve("ttyUSB9")
	assert.ErrorIs(t, err, comm.ErrNoSuchPort)
}

func TestAcquireReportsOwner(t *testing.T) {
	drv := loopback.New(loopback.Serial("COM1"))
	mgr, err := comm.NewManager(comm.WithDrivers(drv))
	require.NoError(t, err)

	held, err := mgr.Acquire("COM1", "modem-daemon", time.Second)
	require.NoError(t, err)
	defer held.Close()

	s := &session{mgr: mgr, log: logger.Nop(), app: "commctl", timeout: 20 * time.Millisecond}
	_, err = s.acquire("COM1")
	assert.ErrorContains(t, err, `COM1 is owned by "modem-daemon"`)
}

func TestUnknownPort(t *testing.T) {
	useLoopback(t)

	_, err := run(t, "signals", "NOPE")
	assert.ErrorIs(t, err, comm.ErrNoSuchPort)
}
