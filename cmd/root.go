/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	comm "github.com/allbin/go-comm"
	"github.com/allbin/go-comm/driver/loopback"
	"github.com/allbin/go-comm/driver/native"
	"github.com/allbin/go-comm/driver/termios"
	"github.com/allbin/go-comm/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "commctl",
	Short: "Inspect and drive serial and parallel ports",
	Long: `commctl discovers communication ports, hands them out through the port
ownership arbiter and exposes line control, event monitoring and raw I/O.

Ports are provided by a driver:
  termios   Linux devices under /dev (default)
  native    portable driver built on go.bug.st/serial
  loopback  in-memory ports, useful for trying things out

Settings can come from flags, COMMCTL_* environment variables or
$HOME/.commctl.yaml.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.commctl.yaml)")
	pf.StringP("driver", "d", "termios", "Port driver: termios, native, loopback")
	pf.String("app-name", "commctl", "Application name used when acquiring ports")
	pf.Duration("acquire-timeout", 2*time.Second, "How long to wait for a port owned by someone else")
	pf.Duration("poll-interval", 10*time.Millisecond, "Device poll interval")
	pf.String("log-level", "warn", "Log level: debug, info, warn, error")
	pf.String("log-format", "console", "Log format: console, json")

	cobra.CheckErr(viper.BindPFlags(pf))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".commctl")
	}

	viper.SetEnvPrefix("COMMCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loopbackPort is one entry of the loopback.ports config list.
type loopbackPort struct {
	Name string `mapstructure:"name"`
	Kind string `mapstructure:"kind"`
}

var defaultLoopbackPorts = []loopbackPort{
	{Name: "COM1", Kind: "serial"},
	{Name: "COM2", Kind: "serial"},
	{Name: "LPT1", Kind: "parallel"},
}

// driverFactory builds the driver named by the driver setting. Tests swap it
// to share one loopback driver between commands.
var driverFactory = newDriver

func newDriver(name string, log logger.Logger) (comm.Driver, error) {
	switch strings.ToLower(name) {
	case "termios", "":
		return termios.New(termios.WithLogger(log)), nil
	case "native":
		return native.New(), nil
	case "loopback":
		var ports []loopbackPort
		if err := viper.UnmarshalKey("loopback.ports", &ports); err != nil {
			return nil, fmt.Errorf("invalid loopback.ports: %w", err)
		}
		if len(ports) == 0 {
			ports = defaultLoopbackPorts
		}
		specs := make([]loopback.PortSpec, 0, len(ports))
		for _, lp := range ports {
			kind, err := comm.ParsePortKind(strings.ToLower(lp.Kind))
			if err != nil {
				return nil, fmt.Errorf("loopback port %s: %w", lp.Name, err)
			}
			specs = append(specs, loopback.PortSpec{Name: lp.Name, Kind: kind})
		}
		return loopback.New(specs...), nil
	default:
		return nil, fmt.Errorf("unknown driver %q (valid: termios, native, loopback)", name)
	}
}

func newLogger(w io.Writer) (logger.Logger, error) {
	level, err := logger.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, err
	}
	format := logger.Format(strings.ToLower(viper.GetString("log-format")))
	switch format {
	case logger.FormatConsole, logger.FormatJSON:
	default:
		return nil, fmt.Errorf("unknown log format %q (valid: console, json)", format)
	}
	return logger.New(w, format, level), nil
}

// session is the manager and settings shared by every command invocation.
type session struct {
	mgr     *comm.Manager
	log     logger.Logger
	app     string
	timeout time.Duration
}

func newSession(cmd *cobra.Command) (*session, error) {
	log, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	drv, err := driverFactory(viper.GetString("driver"), log)
	if err != nil {
		return nil, err
	}
	mgr, err := comm.NewManager(
		comm.WithLogger(log),
		comm.WithPollInterval(viper.GetDuration("poll-interval")),
		comm.WithDrivers(drv),
	)
	if err != nil {
		return nil, err
	}
	return &session{
		mgr:     mgr,
		log:     log,
		app:     viper.GetString("app-name"),
		timeout: viper.GetDuration("acquire-timeout"),
	}, nil
}

// resolve accepts both registered names and bare device names, so
// "ttyUSB0" finds "/dev/ttyUSB0".
func (s *session) resolve(name string) (comm.PortDescriptor, error) {
	desc, err := s.mgr.Lookup(name)
	if err == nil || filepath.IsAbs(name) {
		return desc, err
	}
	if alt, altErr := s.mgr.Lookup(filepath.Join("/dev", name)); altErr == nil {
		return alt, nil
	}
	return desc, err
}

func (s *session) acquire(name string) (*comm.Port, error) {
	desc, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	port, err := s.mgr.Acquire(desc.Name, s.app, s.timeout)
	if err != nil {
		var inUse *comm.PortInUseError
		if errors.As(err, &inUse) {
			return nil, fmt.Errorf("%s is owned by %q and was not released within %v", inUse.Port, inUse.Owner, s.timeout)
		}
		return nil, fmt.Errorf("failed to acquire %s: %w", desc.Name, err)
	}
	s.log.Debug("port acquired", "port", port.Name(), "owner", port.Owner())
	return port, nil
}

// withPort acquires name, runs fn and releases the port again.
func withPort(cmd *cobra.Command, name string, fn func(s *session, port *comm.Port) error) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	port, err := s.acquire(name)
	if err != nil {
		return err
	}
	defer port.Close()
	return fn(s, port)
}
