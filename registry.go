package comm

import (
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
)

// PortDescriptor identifies a registered port
type PortDescriptor struct {
	Name   string
	Kind   PortKind
	Driver Driver

	seq uint64
}

func (d PortDescriptor) String() string {
	return d.Name
}

// Registry maps port names to descriptors. It is populated by driver
// initialization and read by every lookup afterwards. Safe for concurrent use.
type Registry struct {
	ports *xsync.MapOf[string, PortDescriptor]
	seq   atomic.Uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ports: xsync.NewMapOf[string, PortDescriptor](),
	}
}

// Register inserts or overwrites the descriptor for name. An overwritten
// entry keeps its position in List.
func (r *Registry) Register(name string, kind PortKind, driver Driver) error {
	if name == "" {
		return ErrInvalidPortName
	}
	r.ports.Compute(name, func(old PortDescriptor, loaded bool) (PortDescriptor, bool) {
		seq := old.seq
		if !loaded {
			seq = r.seq.Inc()
		}
		return PortDescriptor{Name: name, Kind: kind, Driver: driver, seq: seq}, false
	})
	return nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (PortDescriptor, error) {
	desc, ok := r.ports.Load(name)
	if !ok {
		return PortDescriptor{}, fmt.Errorf("%w: %s", ErrNoSuchPort, name)
	}
	return desc, nil
}

// List returns every registered port in first-registration order.
func (r *Registry) List() []PortDescriptor {
	out := make([]PortDescriptor, 0, r.ports.Size())
	r.ports.Range(func(_ string, desc PortDescriptor) bool {
		out = append(out, desc)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Len returns the number of registered ports.
func (r *Registry) Len() int {
	return r.ports.Size()
}
