package chathub_test

import (
	"sync"
	"testing"
	"time"

	"tickethub/backend/internal/chathub"
	"tickethub/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func actorFor(id string) models.Actor {
	return models.Actor{ID: "user_" + id, DisplayName: "User " + id, Role: models.RoleClient}
}

func TestRoomManager_JoinLeave(t *testing.T) {
	rm := chathub.NewRoomManager()
	a := &fakeClient{id: "conn_a"}

	assert.True(t, rm.Join("T1", a.id, actorFor("a"), a))
	assert.False(t, rm.Join("T1", a.id, actorFor("a"), a), "duplicate join should report existing membership")
	assert.True(t, rm.IsMember("T1", a.id))

	members := rm.MembersOf("T1")
	assert.Len(t, members, 1)
	assert.Equal(t, "user_a", members[0].ID)

	wasMember, emptied := rm.Leave("T1", a.id)
	assert.True(t, wasMember)
	assert.True(t, emptied)
	assert.False(t, rm.IsMember("T1", a.id))
	assert.Empty(t, rm.MembersOf("T1"))

	wasMember, _ = rm.Leave("T1", a.id)
	assert.False(t, wasMember)
}

func TestRoomManager_BroadcastExcludesSender(t *testing.T) {
	rm := chathub.NewRoomManager()
	a := &fakeClient{id: "conn_a"}
	b := &fakeClient{id: "conn_b"}
	rm.Join("T1", a.id, actorFor("a"), a)
	rm.Join("T1", b.id, actorFor("b"), b)

	rm.Broadcast("T1", chathub.NewFrame(chathub.EvUserTyping, chathub.PresencePayload{TicketID: "T1"}), a.id)

	assert.Empty(t, a.received(chathub.EvUserTyping))
	assert.Len(t, b.received(chathub.EvUserTyping), 1)
}

func TestRoomManager_BroadcastIsRoomScoped(t *testing.T) {
	rm := chathub.NewRoomManager()
	a := &fakeClient{id: "conn_a"}
	b := &fakeClient{id: "conn_b"}
	rm.Join("T1", a.id, actorFor("a"), a)
	rm.Join("T2", b.id, actorFor("b"), b)

	rm.Broadcast("T1", chathub.NewFrame(chathub.EvNewMessage, nil))

	assert.Len(t, a.received(chathub.EvNewMessage), 1)
	assert.Empty(t, b.received(chathub.EvNewMessage))
}

func TestRoomManager_BroadcastSelfHealsDeadMembers(t *testing.T) {
	rm := chathub.NewRoomManager()
	a := &fakeClient{id: "conn_a"}
	b := &fakeClient{id: "conn_b"}
	rm.Join("T1", a.id, actorFor("a"), a)
	rm.Join("T1", b.id, actorFor("b"), b)

	b.kill()
	rm.Broadcast("T1", chathub.NewFrame(chathub.EvNewMessage, nil))

	// The dead member was dropped, the broadcast still reached the rest.
	assert.Len(t, a.received(chathub.EvNewMessage), 1)
	assert.False(t, rm.IsMember("T1", b.id))
	assert.True(t, rm.IsMember("T1", a.id))
}

func TestRoomManager_ConcurrentJoinLeave(t *testing.T) {
	rm := chathub.NewRoomManager()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := &fakeClient{id: string(rune('A' + n%26))}
			rm.Join("T1", c.id, actorFor(c.id), c)
			rm.Broadcast("T1", chathub.NewFrame(chathub.EvUserTyping, nil))
			rm.Leave("T1", c.id)
		}(i)
	}
	wg.Wait()

	assert.Empty(t, rm.MembersOf("T1"))
}

func TestRoomManager_SerializeOrdersSends(t *testing.T) {
	rm := chathub.NewRoomManager()
	var order []int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rm.Serialize("T1", func() {
				mu.Lock()
				order = append(order, n)
				mu.Unlock()
			})
		}(i)
	}
	wg.Wait()

	// All sections ran, each fully before the next.
	assert.Len(t, order, 20)
}

func TestRoomManager_TypingSetAndClear(t *testing.T) {
	rm := chathub.NewRoomManager()
	a := &fakeClient{id: "conn_a"}
	rm.Join("T1", a.id, actorFor("a"), a)

	assert.True(t, rm.SetTyping("T1", actorFor("a")), "first signal should be new")
	assert.False(t, rm.SetTyping("T1", actorFor("a")), "refresh should not be new")

	assert.True(t, rm.ClearTyping("T1", "user_a"))
	assert.False(t, rm.ClearTyping("T1", "user_a"))
}

func TestRoomManager_TypingSweeperExpiresEntries(t *testing.T) {
	rm := chathub.NewRoomManager()
	a := &fakeClient{id: "conn_a"}
	b := &fakeClient{id: "conn_b"}
	rm.Join("T1", a.id, actorFor("a"), a)
	rm.Join("T1", b.id, actorFor("b"), b)

	rm.SetTyping("T1", actorFor("a"))

	stop := make(chan struct{})
	defer close(stop)
	go rm.RunTypingSweeper(50*time.Millisecond, 10*time.Millisecond, stop)

	// The TTL elapses without a typing_stop; members are notified anyway.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(b.received(chathub.EvUserStoppedTyping)) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopped := b.received(chathub.EvUserStoppedTyping)
	assert.Len(t, stopped, 1, "expired typing entry should emit user_stopped_typing")
	assert.False(t, rm.ClearTyping("T1", "user_a"), "entry should be gone after expiry")
}

func TestRoomManager_TypingRefreshDefersExpiry(t *testing.T) {
	now := time.Now()
	var mu sync.Mutex
	current := now

	rm := chathub.NewRoomManager()
	rm.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	})

	a := &fakeClient{id: "conn_a"}
	rm.Join("T1", a.id, actorFor("a"), a)
	rm.SetTyping("T1", actorFor("a"))

	// Advance just under the TTL and refresh; the entry must survive a sweep.
	mu.Lock()
	current = now.Add(4 * time.Second)
	mu.Unlock()
	rm.SetTyping("T1", actorFor("a"))

	mu.Lock()
	current = now.Add(8 * time.Second)
	mu.Unlock()

	stop := make(chan struct{})
	go rm.RunTypingSweeper(5*time.Second, time.Millisecond, stop)
	time.Sleep(30 * time.Millisecond)
	close(stop)

	assert.Empty(t, a.received(chathub.EvUserStoppedTyping),
		"entry refreshed at t+4s must not expire at t+8s with a 5s TTL")
}
