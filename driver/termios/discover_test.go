package termios

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	comm "github.com/allbin/go-comm"
)

func TestScanPorts(t *testing.T) {
	ports, err := scanPorts("/dev")
	if err != nil {
		t.Fatalf("scanPorts failed: %v", err)
	}

	for _, p := range ports {
		if !strings.HasPrefix(p.path, "/dev/") {
			t.Errorf("Port path doesn't start with /dev/: %s", p.path)
		}
		if !isCharacterDevice(p.path) {
			t.Errorf("Port is not a character device: %s", p.path)
		}
	}

	for i := 1; i < len(ports); i++ {
		if ports[i-1].path > ports[i].path {
			t.Errorf("Ports are not sorted: %s > %s", ports[i-1].path, ports[i].path)
		}
	}
}

func TestScanPortsSkipsRegularFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"ttyUSB0", "ttyS1", "lp0"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	ports, err := scanPorts(dir)
	if err != nil {
		t.Fatalf("scanPorts failed: %v", err)
	}
	if len(ports) != 0 {
		t.Errorf("expected no ports from regular files, got %v", ports)
	}
}

func TestScanPortsMissingDir(t *testing.T) {
	if _, err := scanPorts(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		kind comm.PortKind
		ok   bool
	}{
		{"ttyUSB0", comm.KindSerial, true},
		{"ttyACM12", comm.KindSerial, true},
		{"ttyS0", comm.KindSerial, true},
		{"ttyAMA0", comm.KindSerial, true},
		{"ttymxc3", comm.KindSerial, true},
		{"ttyO1", comm.KindSerial, true},
		{"ttySAC2", comm.KindSerial, true},
		{"ttyTHS1", comm.KindSerial, true},
		{"lp0", comm.KindParallel, true},
		{"parport1", comm.KindParallel, true},
		{"tty1", 0, false},
		{"console", 0, false},
		{"ptmx", 0, false},
		{"ptyp0", 0, false},
		{"ttyUSB", 0, false},
		{"null", 0, false},
	}

	for _, test := range tests {
		kind, ok := classify(test.name)
		if ok != test.ok || kind != test.kind {
			t.Errorf("classify(%s) = %v, %v, expected %v, %v", test.name, kind, ok, test.kind, test.ok)
		}
	}
}

func TestIsCharacterDevice(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"/dev/null", true},
		{"/dev/zero", true},
		{"/tmp", false},
		{"/nonexistent", false},
	}

	for _, test := range tests {
		result := isCharacterDevice(test.path)
		if result != test.expected {
			t.Errorf("isCharacterDevice(%s) = %v, expected %v", test.path, result, test.expected)
		}
	}
}

func TestGetPortDescription(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"ttyUSB0", "USB Serial Port"},
		{"ttyACM0", "USB CDC/ACM Device"},
		{"ttyS0", "Standard Serial Port"},
		{"ttyAMA0", "ARM Serial Port"},
		{"ttymxc0", "i.MX Serial Port"},
		{"ttyO0", "OMAP Serial Port"},
		{"ttySAC0", "Samsung Serial Port"},
		{"ttyTHS0", "Tegra Serial Port"},
		{"lp0", "Parallel Port"},
		{"unknown", "Serial Port"},
	}

	for _, test := range tests {
		result := getPortDescription(test.name)
		if result != test.expected {
			t.Errorf("getPortDescription(%s) = %s, expected %s", test.name, result, test.expected)
		}
	}
}

func TestGetPortInfo(t *testing.T) {
	info, err := GetPortInfo("/dev/null")
	if err != nil {
		t.Fatalf("GetPortInfo(/dev/null) failed: %v", err)
	}
	if info.Name != "null" || info.Path != "/dev/null" {
		t.Errorf("unexpected info: %+v", info)
	}

	_, err = GetPortInfo("/dev/does-not-exist")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
}

func TestEnrichUSBInfo(t *testing.T) {
	root := t.TempDir()
	usbDev := filepath.Join(root, "devices", "usb1", "1-1")
	iface := filepath.Join(usbDev, "1-1:1.0", "ttyUSB0")
	if err := os.MkdirAll(iface, 0o755); err != nil {
		t.Fatal(err)
	}
	attrs := map[string]string{
		"idVendor":  "0403\n",
		"idProduct": "6001\n",
		"serial":    "NC7ILXW1\n",
		"busnum":    "1\n",
		"devnum":    "7\n",
	}
	for name, value := range attrs {
		if err := os.WriteFile(filepath.Join(usbDev, name), []byte(value), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	link := filepath.Join(root, "device")
	if err := os.Symlink(iface, link); err != nil {
		t.Fatal(err)
	}

	info := &PortInfo{Name: "ttyUSB0"}
	enrichUSBInfo(info, link)

	if info.VendorID != "0403" || info.ProductID != "6001" {
		t.Errorf("VID/PID = %s/%s, expected 0403/6001", info.VendorID, info.ProductID)
	}
	if info.SerialNumber != "NC7ILXW1" {
		t.Errorf("SerialNumber = %s, expected NC7ILXW1", info.SerialNumber)
	}
	if info.BusNumber != "1" || info.DeviceNumber != "7" {
		t.Errorf("bus/dev = %s/%s, expected 1/7", info.BusNumber, info.DeviceNumber)
	}
}

func TestEnrichUSBInfoNotUSB(t *testing.T) {
	info := &PortInfo{Name: "ttyS0"}
	enrichUSBInfo(info, filepath.Join(t.TempDir(), "missing"))
	if info.VendorID != "" || info.BusNumber != "" {
		t.Errorf("expected empty USB info, got %+v", info)
	}
}

func TestResetUSBDeviceRequiresUSBInfo(t *testing.T) {
	err := ResetUSBDevice("/dev/null")
	if !errors.Is(err, ErrUSBInfoNotAvailable) {
		t.Errorf("expected ErrUSBInfoNotAvailable, got %v", err)
	}
}

func TestDriverInitialize(t *testing.T) {
	d := New(WithDevDir(t.TempDir()))
	r := comm.NewRegistry()
	if err := d.Initialize(r); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d ports", r.Len())
	}

	bad := New(WithDevDir(filepath.Join(t.TempDir(), "missing")))
	if err := bad.Initialize(r); err == nil {
		t.Error("expected error for missing device directory")
	}
}
