package chathub

import (
	"log"
	"sync"
	"time"

	"tickethub/backend/internal/models"
)

type member struct {
	actor  models.Actor
	client Client
}

type typingEntry struct {
	name string
	seen time.Time
}

// room holds the live state of one ticket's chat channel. mu serializes
// membership and typing mutation; sendMu serializes persist-then-broadcast
// pairs so fan-out order matches persistence order within the room.
type room struct {
	mu     sync.Mutex
	sendMu sync.Mutex

	members map[string]member       // connID -> member
	typing  map[string]typingEntry  // actorID -> entry
}

// RoomManager maps ticket IDs to the set of currently joined connections.
// All room membership mutation in the process goes through it; operations
// on different tickets never block each other.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*room

	// Clock can be replaced in tests; nil means time.Now.
	clock func() time.Time
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[string]*room), clock: time.Now}
}

// SetClock injects a deterministic clock for tests.
func (m *RoomManager) SetClock(clock func() time.Time) {
	if clock != nil {
		m.clock = clock
	}
}

// roomFor returns the room, creating it lazily when create is set.
func (m *RoomManager) roomFor(ticketID string, create bool) *room {
	m.mu.RLock()
	r := m.rooms[ticketID]
	m.mu.RUnlock()
	if r != nil || !create {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r = m.rooms[ticketID]; r == nil {
		r = &room{
			members: make(map[string]member),
			typing:  make(map[string]typingEntry),
		}
		m.rooms[ticketID] = r
	}
	return r
}

// dropIfEmpty removes the room once nothing references it. An empty room is
// garbage, never persisted.
func (m *RoomManager) dropIfEmpty(ticketID string, r *room) {
	r.mu.Lock()
	empty := len(r.members) == 0 && len(r.typing) == 0
	r.mu.Unlock()
	if !empty {
		return
	}

	m.mu.Lock()
	if cur := m.rooms[ticketID]; cur == r {
		cur.mu.Lock()
		if len(cur.members) == 0 && len(cur.typing) == 0 {
			delete(m.rooms, ticketID)
		}
		cur.mu.Unlock()
	}
	m.mu.Unlock()
}

// Join adds a connection with its actor snapshot. Reports false when the
// connection is already a member (idempotent join).
func (m *RoomManager) Join(ticketID, connID string, actor models.Actor, c Client) bool {
	r := m.roomFor(ticketID, true)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[connID]; exists {
		return false
	}
	r.members[connID] = member{actor: actor, client: c}
	return true
}

// Leave removes a connection. Returns whether it was a member and whether
// the room is now empty.
func (m *RoomManager) Leave(ticketID, connID string) (wasMember, emptied bool) {
	r := m.roomFor(ticketID, false)
	if r == nil {
		return false, false
	}

	r.mu.Lock()
	if _, ok := r.members[connID]; ok {
		delete(r.members, connID)
		wasMember = true
	}
	emptied = len(r.members) == 0
	r.mu.Unlock()

	if emptied {
		m.dropIfEmpty(ticketID, r)
	}
	return wasMember, emptied
}

// IsMember reports whether the connection currently belongs to the room.
func (m *RoomManager) IsMember(ticketID, connID string) bool {
	r := m.roomFor(ticketID, false)
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[connID]
	return ok
}

// MembersOf returns the actor snapshots of every current member.
func (m *RoomManager) MembersOf(ticketID string) []models.Actor {
	r := m.roomFor(ticketID, false)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Actor, 0, len(r.members))
	for _, mem := range r.members {
		out = append(out, mem.actor)
	}
	return out
}

// Broadcast fans an event out to every room member except the excluded
// connections. A member whose Send fails is dropped from the room instead of
// failing the broadcast: routing failure is treated as a natural leave.
func (m *RoomManager) Broadcast(ticketID string, f Frame, exclude ...string) {
	r := m.roomFor(ticketID, false)
	if r == nil {
		return
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	var stale []string
	r.mu.Lock()
	for connID, mem := range r.members {
		if _, excluded := skip[connID]; excluded {
			continue
		}
		if !mem.client.Send(f) {
			stale = append(stale, connID)
		}
	}
	for _, connID := range stale {
		log.Printf("Dropping stale connection %s from ticket %s", connID, ticketID)
		delete(r.members, connID)
	}
	emptied := len(r.members) == 0
	r.mu.Unlock()

	if emptied {
		m.dropIfEmpty(ticketID, r)
	}
}

// Serialize runs fn under the room's send lock. send_message uses it to keep
// its persist-then-broadcast pair atomic relative to concurrent senders on
// the same ticket; different tickets proceed in parallel.
func (m *RoomManager) Serialize(ticketID string, fn func()) {
	r := m.roomFor(ticketID, true)
	r.sendMu.Lock()
	fn()
	r.sendMu.Unlock()
	m.dropIfEmpty(ticketID, r)
}

// SetTyping adds or refreshes the actor's typing entry. Reports true when
// the actor was not already marked as typing.
func (m *RoomManager) SetTyping(ticketID string, actor models.Actor) bool {
	r := m.roomFor(ticketID, false)
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	_, already := r.typing[actor.ID]
	r.typing[actor.ID] = typingEntry{name: actor.DisplayName, seen: m.clock()}
	return !already
}

// ClearTyping removes the actor's typing entry; false if it was absent.
func (m *RoomManager) ClearTyping(ticketID, actorID string) bool {
	r := m.roomFor(ticketID, false)
	if r == nil {
		return false
	}
	r.mu.Lock()
	_, present := r.typing[actorID]
	delete(r.typing, actorID)
	r.mu.Unlock()

	m.dropIfEmpty(ticketID, r)
	return present
}

// RunTypingSweeper force-expires typing entries older than ttl and emits
// user_stopped_typing for each, covering clients that crash or disconnect
// without sending typing_stop. Blocks until stop is closed.
func (m *RoomManager) RunTypingSweeper(ttl, every time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.sweepTypingOnce(ttl)
		}
	}
}

func (m *RoomManager) sweepTypingOnce(ttl time.Duration) {
	now := m.clock()

	m.mu.RLock()
	ids := make([]string, 0, len(m.rooms))
	for ticketID := range m.rooms {
		ids = append(ids, ticketID)
	}
	m.mu.RUnlock()

	for _, ticketID := range ids {
		r := m.roomFor(ticketID, false)
		if r == nil {
			continue
		}

		var expired []PresencePayload
		r.mu.Lock()
		for actorID, entry := range r.typing {
			if now.Sub(entry.seen) >= ttl {
				delete(r.typing, actorID)
				expired = append(expired, PresencePayload{
					TicketID: ticketID,
					UserID:   actorID,
					UserName: entry.name,
				})
			}
		}
		r.mu.Unlock()

		for _, p := range expired {
			m.Broadcast(ticketID, NewFrame(EvUserStoppedTyping, p))
		}
		if len(expired) > 0 {
			m.dropIfEmpty(ticketID, r)
		}
	}
}
