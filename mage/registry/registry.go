// Package registry keeps the live connections of a process, keyed by the
// connection id written into their frames.
package registry

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/TheusHen/mage/mage/mux"
	"github.com/TheusHen/mage/mage/protocol"
)

var (
	ErrNotFound = errors.New("registry: connection not found")
	ErrInUse    = errors.New("registry: connection id in use")
	ErrFull     = errors.New("registry: no free connection id")
)

// Registry is a mutex-guarded table of connections. Ids are handed out
// round robin over the whole 3-byte range so a released id is not reused
// right away.
type Registry struct {
	mu    sync.RWMutex
	next  protocol.ConnectionID
	conns map[protocol.ConnectionID]*mux.Connection // nil while reserved
}

func New() *Registry {
	return &Registry{conns: map[protocol.ConnectionID]*mux.Connection{}}
}

// Reserve picks a free id and holds it until Bind or Release.
func (r *Registry) Reserve() (protocol.ConnectionID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.conns) > int(protocol.MaxConnectionID) {
		return 0, ErrFull
	}
	for {
		id := r.next
		r.next = (r.next + 1) & protocol.MaxConnectionID
		if _, taken := r.conns[id]; !taken {
			r.conns[id] = nil
			return id, nil
		}
	}
}

// Bind attaches c to an id obtained from Reserve.
func (r *Registry) Bind(id protocol.ConnectionID, c *mux.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.conns[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "bind %v", id)
	}
	if cur != nil {
		return errors.Wrapf(ErrInUse, "bind %v", id)
	}
	r.conns[id] = c
	return nil
}

// Register adds c under its own id, for connections whose id was chosen
// elsewhere.
func (r *Registry) Register(c *mux.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.conns[c.ID()]; taken {
		return errors.Wrapf(ErrInUse, "register %v", c.ID())
	}
	r.conns[c.ID()] = c
	return nil
}

// Get returns the connection bound to id.
func (r *Registry) Get(id protocol.ConnectionID) (*mux.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.conns[id]
	if c == nil {
		return nil, errors.Wrapf(ErrNotFound, "%v", id)
	}
	return c, nil
}

// Release frees id. It does not close the connection.
func (r *Registry) Release(id protocol.ConnectionID) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}

// IDs lists the bound ids in ascending order.
func (r *Registry) IDs() []protocol.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.ConnectionID, 0, len(r.conns))
	for id, c := range r.conns {
		if c != nil {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll closes and removes every bound connection. It returns the
// first close error.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	conns := r.conns
	r.conns = map[protocol.ConnectionID]*mux.Connection{}
	r.mu.Unlock()

	var first error
	for _, c := range conns {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
