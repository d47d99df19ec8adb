package comm_test

import (
	"errors"
	"testing"
	"time"

	comm "github.com/allbin/go-comm"
	"github.com/allbin/go-comm/driver/loopback"
	"github.com/allbin/go-comm/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// brokenDriver registers one port and fails wherever it is told to.
type brokenDriver struct {
	initErr error
	openErr error
}

func (d *brokenDriver) Name() string { return "broken" }

func (d *brokenDriver) Initialize(r *comm.Registry) error {
	if d.initErr != nil {
		return d.initErr
	}
	return r.Register("BROKEN", comm.KindSerial, d)
}

func (d *brokenDriver) Open(comm.PortDescriptor) (comm.DeviceHandle, error) {
	return nil, d.openErr
}

func TestNewManagerRejectsBadOptions(t *testing.T) {
	_, err := comm.NewManager(comm.WithPollInterval(0))
	assert.ErrorIs(t, err, comm.ErrInvalidConfig)

	_, err = comm.NewManager(comm.WithLogger(nil))
	assert.ErrorIs(t, err, comm.ErrInvalidConfig)
}

func TestNewManagerListsPortsInOrder(t *testing.T) {
	m, _ := newTestManager(t, loopback.Serial("COM1"), loopback.Serial("COM2"), loopback.Parallel("LPT1"))

	ports := m.ListPorts()
	require.Len(t, ports, 3)
	assert.Equal(t, "COM1", ports[0].Name)
	assert.Equal(t, "COM2", ports[1].Name)
	assert.Equal(t, "LPT1", ports[2].Name)
	assert.Equal(t, comm.KindParallel, ports[2].Kind)

	desc, err := m.Lookup("COM2")
	require.NoError(t, err)
	assert.Equal(t, comm.KindSerial, desc.Kind)
}

func TestNewManagerSkipsFailingDriver(t *testing.T) {
	log := logger.NewMockLogger()
	log.On("Warn", "driver initialization failed", mock.Anything).Return().Once()
	log.On("Debug", mock.Anything, mock.Anything).Return()

	broken := &brokenDriver{initErr: errors.New("no permission")}
	m, err := comm.NewManager(
		comm.WithLogger(log),
		comm.WithDrivers(broken, loopback.New(loopback.Serial("COM1"))),
	)
	require.NoError(t, err)

	assert.Len(t, m.ListPorts(), 1)
	log.AssertExpectations(t)
}

func TestAcquireOpenFailureLeavesPortUnowned(t *testing.T) {
	openErr := errors.New("device busy")
	m, err := comm.NewManager(comm.WithDrivers(&brokenDriver{openErr: openErr}))
	require.NoError(t, err)

	_, err = m.Acquire("BROKEN", "app", time.Second)
	assert.ErrorIs(t, err, openErr)

	owned, err := m.IsCurrentlyOwned("BROKEN")
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestRegistryAddsPortsAfterStartup(t *testing.T) {
	m, drv := newTestManager(t)
	require.NoError(t, m.Registry().Register("COM5", comm.KindSerial, drv))

	p, err := m.Acquire("COM5", "late", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "COM5", p.Name())
	require.NoError(t, p.Close())
}

func TestAcquireUsesConfiguredSerialDefaults(t *testing.T) {
	drv := loopback.New(loopback.Serial("COM1"))
	sc := comm.SerialConfig{BaudRate: 115200, DataBits: 8, StopBits: comm.StopBits1, Parity: comm.ParityNone}
	m, err := comm.NewManager(comm.WithDrivers(drv), comm.WithDefaultSerialConfig(sc))
	require.NoError(t, err)

	p, err := m.Acquire("COM1", "app", time.Second)
	require.NoError(t, err)
	defer p.Close()

	got, err := p.SerialConfig()
	require.NoError(t, err)
	assert.Equal(t, sc, got)

	h, _ := drv.Handle("COM1")
	assert.Equal(t, sc, h.Config())
}
