package comm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allbin/go-comm/logger"
)

// Manager is the entry point for applications: it owns the port registry
// and the ownership arbiter.
type Manager struct {
	cfg      Config
	registry *Registry
	arbiter  *Arbiter
	log      logger.Logger
}

// NewManager applies opts and initializes every configured driver. A
// driver failing to initialize is logged and skipped.
func NewManager(opts ...Option) (*Manager, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	m := &Manager{
		cfg:      cfg,
		registry: NewRegistry(),
		log:      cfg.Logger,
	}
	m.arbiter = newArbiter(m.registry, m.openPort, cfg.Logger)

	for _, d := range cfg.Drivers {
		if err := d.Initialize(m.registry); err != nil {
			m.log.Warn("driver initialization failed", "driver", d.Name(), "error", err)
			continue
		}
	}
	m.log.Debug("manager ready", "ports", m.registry.Len(), "drivers", len(cfg.Drivers))
	return m, nil
}

// Registry exposes the registry so additional ports can be registered.
func (m *Manager) Registry() *Registry { return m.registry }

// ListPorts returns every known port in registration order.
func (m *Manager) ListPorts() []PortDescriptor {
	return m.registry.List()
}

func (m *Manager) Lookup(name string) (PortDescriptor, error) {
	return m.registry.Lookup(name)
}

// Acquire opens the named port for app, waiting up to timeout for the
// current owner to give it up. A timeout <= 0 does not wait.
func (m *Manager) Acquire(name, app string, timeout time.Duration) (*Port, error) {
	ctx, cancel := context.WithTimeout(context.Background(), max(timeout, 0))
	defer cancel()
	return m.arbiter.AcquireContext(ctx, name, app)
}

// AcquireContext is Acquire bounded by ctx instead of a timeout.
func (m *Manager) AcquireContext(ctx context.Context, name, app string) (*Port, error) {
	return m.arbiter.AcquireContext(ctx, name, app)
}

func (m *Manager) AddOwnershipListener(name string, l OwnershipListener) (Subscription, error) {
	return m.arbiter.AddOwnershipListener(name, l)
}

func (m *Manager) RemoveOwnershipListener(name string, sub Subscription) {
	m.arbiter.RemoveOwnershipListener(name, sub)
}

func (m *Manager) CurrentOwner(name string) (string, bool, error) {
	return m.arbiter.CurrentOwner(name)
}

func (m *Manager) IsCurrentlyOwned(name string) (bool, error) {
	return m.arbiter.IsCurrentlyOwned(name)
}

func (m *Manager) openPort(desc PortDescriptor, owner string) (*Port, error) {
	if desc.Driver == nil {
		return nil, fmt.Errorf("%w: no driver for %s", ErrInvalidConfig, desc.Name)
	}
	h, err := desc.Driver.Open(desc)
	if err != nil {
		return nil, err
	}
	if desc.Kind == KindSerial {
		if err := h.Configure(m.cfg.SerialConfig); err != nil {
			return nil, errors.Join(fmt.Errorf("configure %s: %w", desc.Name, err), h.Close())
		}
	}
	return newPort(desc, owner, h, m.cfg, func(p *Port) {
		m.arbiter.release(desc.Name, p)
	}), nil
}
