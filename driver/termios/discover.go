package termios

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	comm "github.com/allbin/go-comm"
)

// ErrDeviceNotFound is returned for paths that are not character devices.
var ErrDeviceNotFound = errors.New("device not found")

var (
	serialPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^ttyUSB\d+$`), // USB serial adapters
		regexp.MustCompile(`^ttyACM\d+$`), // USB CDC/ACM devices
		regexp.MustCompile(`^ttyS\d+$`),   // Standard serial ports
		regexp.MustCompile(`^ttyAMA\d+$`), // ARM/Raspberry Pi serial
		regexp.MustCompile(`^ttymxc\d+$`), // i.MX serial ports
		regexp.MustCompile(`^ttyO\d+$`),   // OMAP serial ports
		regexp.MustCompile(`^ttySAC\d+$`), // Samsung serial ports
		regexp.MustCompile(`^ttyTHS\d+$`), // Tegra serial ports
	}

	parallelPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^lp\d+$`),
		regexp.MustCompile(`^parport\d+$`),
	}

	excludePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^tty\d+$`),  // Virtual terminals (tty1, tty2, etc.)
		regexp.MustCompile(`^console$`), // Console
		regexp.MustCompile(`^ptmx$`),    // Pseudo-terminal multiplexer
		regexp.MustCompile(`^pty.*$`),   // Pseudo-terminals
	}
)

func matchAny(patterns []*regexp.Regexp, name string) bool {
	for _, p := range patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// classify returns the kind of port a device name denotes.
func classify(name string) (comm.PortKind, bool) {
	switch {
	case matchAny(excludePatterns, name):
		return 0, false
	case matchAny(serialPatterns, name):
		return comm.KindSerial, true
	case matchAny(parallelPatterns, name):
		return comm.KindParallel, true
	default:
		return 0, false
	}
}

type foundPort struct {
	path string
	kind comm.PortKind
}

// scanPorts lists the character devices in dir that look like ports,
// sorted by path.
func scanPorts(dir string) ([]foundPort, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var ports []foundPort
	for _, entry := range entries {
		kind, ok := classify(entry.Name())
		if !ok {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if isCharacterDevice(path) {
			ports = append(ports, foundPort{path: path, kind: kind})
		}
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].path < ports[j].path })
	return ports, nil
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// PortInfo describes a device node and, for USB adapters, the USB device
// behind it.
type PortInfo struct {
	Name         string
	Path         string
	Kind         comm.PortKind
	Description  string
	VendorID     string
	ProductID    string
	SerialNumber string
	BusNumber    string
	DeviceNumber string
}

// sysClassTTY is where the kernel exposes tty devices.
var sysClassTTY = "/sys/class/tty"

// GetPortInfo returns detailed information about a specific port
func GetPortInfo(portPath string) (*PortInfo, error) {
	if !isCharacterDevice(portPath) {
		return nil, ErrDeviceNotFound
	}

	name := filepath.Base(portPath)
	kind, ok := classify(name)
	if !ok {
		kind = comm.KindSerial
	}
	info := &PortInfo{
		Name:        name,
		Path:        portPath,
		Kind:        kind,
		Description: getPortDescription(name),
	}

	if strings.HasPrefix(name, "ttyUSB") || strings.HasPrefix(name, "ttyACM") {
		enrichUSBInfo(info, filepath.Join(sysClassTTY, name, "device"))
	}
	return info, nil
}

// getPortDescription provides human-readable descriptions for different port types
func getPortDescription(name string) string {
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		return "USB CDC/ACM Device"
	case strings.HasPrefix(name, "ttyAMA"):
		return "ARM Serial Port"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial Port"
	case strings.HasPrefix(name, "ttySAC"):
		return "Samsung Serial Port"
	case strings.HasPrefix(name, "ttyTHS"):
		return "Tegra Serial Port"
	case strings.HasPrefix(name, "ttyO"):
		return "OMAP Serial Port"
	case strings.HasPrefix(name, "ttyS"):
		return "Standard Serial Port"
	case strings.HasPrefix(name, "lp"), strings.HasPrefix(name, "parport"):
		return "Parallel Port"
	default:
		return "Serial Port"
	}
}

// enrichUSBInfo walks up from the tty's sysfs device directory to the USB
// device node carrying idVendor and fills in what it finds there.
func enrichUSBInfo(info *PortInfo, devicePath string) {
	dir, err := filepath.EvalSymlinks(devicePath)
	if err != nil {
		return
	}
	for i := 0; i < 4 && dir != "/" && dir != "."; i++ {
		if vid := readSysfs(dir, "idVendor"); vid != "" {
			info.VendorID = vid
			info.ProductID = readSysfs(dir, "idProduct")
			info.SerialNumber = readSysfs(dir, "serial")
			info.BusNumber = readSysfs(dir, "busnum")
			info.DeviceNumber = readSysfs(dir, "devnum")
			return
		}
		dir = filepath.Dir(dir)
	}
}

func readSysfs(dir, attr string) string {
	b, err := os.ReadFile(filepath.Join(dir, attr))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
