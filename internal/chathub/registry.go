package chathub

import (
	"errors"
	"sync"

	"tickethub/backend/internal/models"

	"github.com/google/uuid"
)

var (
	errUnknownConnection = errors.New("unknown connection")
	// ErrActorMismatch is returned when an authenticated connection tries
	// to re-authenticate as a different actor.
	ErrActorMismatch = errors.New("connection already bound to a different actor")
)

// connection is the per-transport-session state record. It replaces the
// per-handler mutable flags of a callback style with one explicit record
// mutated only through registry transitions.
type connection struct {
	id            string
	authenticated bool
	actor         models.Actor
	joined        map[string]struct{}
}

// ConnectionInfo is the read-only snapshot handed to callers.
type ConnectionInfo struct {
	ID            string
	Authenticated bool
	Actor         models.Actor
	Joined        []string
}

// Registry is the single source of truth for live connections, their
// authentication state and their room memberships. The gateway never caches
// actor identity anywhere else.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*connection)}
}

// Register creates a record for a freshly accepted transport session and
// returns its connection ID.
func (r *Registry) Register() string {
	id := uuid.New().String()
	r.mu.Lock()
	r.conns[id] = &connection{id: id, joined: make(map[string]struct{})}
	r.mu.Unlock()
	return id
}

// Authenticate binds an actor to a connection. The transition happens at
// most once; re-authentication with the same actor ID is an idempotent
// success so reconnecting clients may safely retry.
func (r *Registry) Authenticate(id string, actor models.Actor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return errUnknownConnection
	}
	if c.authenticated {
		if c.actor.ID == actor.ID {
			return nil
		}
		return ErrActorMismatch
	}
	c.authenticated = true
	c.actor = actor
	return nil
}

// Lookup returns a snapshot of the connection state.
func (r *Registry) Lookup(id string) (ConnectionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	if !ok {
		return ConnectionInfo{}, false
	}
	return c.snapshot(), true
}

// MarkJoined records room membership; false means it was already joined.
func (r *Registry) MarkJoined(id, ticketID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return false
	}
	if _, joined := c.joined[ticketID]; joined {
		return false
	}
	c.joined[ticketID] = struct{}{}
	return true
}

// MarkLeft clears room membership; false means it was not a member.
func (r *Registry) MarkLeft(id, ticketID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return false
	}
	if _, joined := c.joined[ticketID]; !joined {
		return false
	}
	delete(c.joined, ticketID)
	return true
}

// Unregister removes the connection and returns the rooms it was still in,
// so the caller can run the leave path for each of them.
func (r *Registry) Unregister(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return nil
	}
	delete(r.conns, id)

	rooms := make([]string, 0, len(c.joined))
	for ticketID := range c.joined {
		rooms = append(rooms, ticketID)
	}
	return rooms
}

// Count returns the number of live connections. Used for logging.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (c *connection) snapshot() ConnectionInfo {
	joined := make([]string, 0, len(c.joined))
	for t := range c.joined {
		joined = append(joined, t)
	}
	return ConnectionInfo{
		ID:            c.id,
		Authenticated: c.authenticated,
		Actor:         c.actor,
		Joined:        joined,
	}
}
