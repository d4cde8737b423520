package registry

import (
	"bedrock/internal/ports"
	"bedrock/internal/types"
	"errors"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Registry maps client ids to live clients of one kind. Reads are lock-free
// with respect to each other; construction never happens under the lock.
type Registry[C ports.Client] struct {
	kind    string
	mu      sync.RWMutex
	clients map[string]C
	closed  bool
}

func New[C ports.Client](kind string) *Registry[C] {
	return &Registry[C]{kind: kind, clients: make(map[string]C)}
}

func (r *Registry[C]) Kind() string { return r.kind }

// Put publishes c under c.ID(). A client already registered under that id is
// closed after the swap. On a closed registry c is left untouched and
// types.ErrRegistryClosed is returned.
func (r *Registry[C]) Put(c C) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return types.ErrRegistryClosed
	}
	old, replaced := r.clients[c.ID()]
	r.clients[c.ID()] = c
	r.mu.Unlock()

	if replaced {
		log.WithFields(log.Fields{"kind": r.kind, "id": c.ID()}).Info("replaced registered client")
		if err := old.Close(); err != nil {
			log.WithError(err).WithField("id", c.ID()).Warn("failed to close replaced client")
		}
	}
	return nil
}

func (r *Registry[C]) Get(id string) (C, error) {
	r.mu.RLock()
	c, ok := r.clients[id]
	r.mu.RUnlock()
	if !ok {
		var zero C
		return zero, &types.UnknownClientError{Kind: r.kind, ID: id}
	}
	return c, nil
}

func (r *Registry[C]) Default() (C, error) {
	return r.Get(types.DefaultClientID)
}

func (r *Registry[C]) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[id]
	return ok
}

// IDs returns the registered ids, sorted.
func (r *Registry[C]) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Clients returns a snapshot of the registered clients ordered by id.
func (r *Registry[C]) Clients() []C {
	r.mu.RLock()
	out := make([]C, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Remove unregisters id and closes its client.
func (r *Registry[C]) Remove(id string) error {
	r.mu.Lock()
	c, ok := r.clients[id]
	delete(r.clients, id)
	r.mu.Unlock()
	if !ok {
		return &types.UnknownClientError{Kind: r.kind, ID: id}
	}
	return c.Close()
}

func (r *Registry[C]) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Close closes every client exactly once and rejects later registrations.
func (r *Registry[C]) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	clients := r.clients
	r.clients = make(map[string]C)
	r.mu.Unlock()

	var errs []error
	for id, c := range clients {
		if err := c.Close(); err != nil {
			log.WithError(err).WithFields(log.Fields{"kind": r.kind, "id": id}).Warn("failed to close client")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
