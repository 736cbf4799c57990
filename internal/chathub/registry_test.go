package chathub_test

import (
	"testing"

	"tickethub/backend/internal/chathub"
	"tickethub/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := chathub.NewRegistry()

	id := r.Register()
	assert.NotEmpty(t, id)

	info, ok := r.Lookup(id)
	assert.True(t, ok)
	assert.False(t, info.Authenticated)
	assert.Empty(t, info.Joined)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistry_AuthenticateOnce(t *testing.T) {
	r := chathub.NewRegistry()
	id := r.Register()

	actor := models.Actor{ID: "user-1", DisplayName: "Alice", Role: models.RoleClient}
	assert.NoError(t, r.Authenticate(id, actor))

	info, _ := r.Lookup(id)
	assert.True(t, info.Authenticated)
	assert.Equal(t, actor, info.Actor)

	// Re-authentication with the same actor is an idempotent success.
	assert.NoError(t, r.Authenticate(id, actor))

	// Switching to a different actor is refused.
	err := r.Authenticate(id, models.Actor{ID: "user-2", Role: models.RoleClient})
	assert.ErrorIs(t, err, chathub.ErrActorMismatch)

	info, _ = r.Lookup(id)
	assert.Equal(t, "user-1", info.Actor.ID)
}

func TestRegistry_JoinedRooms(t *testing.T) {
	r := chathub.NewRegistry()
	id := r.Register()

	assert.True(t, r.MarkJoined(id, "T1"))
	assert.False(t, r.MarkJoined(id, "T1"), "second join should report already joined")
	assert.True(t, r.MarkJoined(id, "T2"))

	info, _ := r.Lookup(id)
	assert.ElementsMatch(t, []string{"T1", "T2"}, info.Joined)

	assert.True(t, r.MarkLeft(id, "T1"))
	assert.False(t, r.MarkLeft(id, "T1"))
}

func TestRegistry_UnregisterReturnsRooms(t *testing.T) {
	r := chathub.NewRegistry()
	id := r.Register()
	r.MarkJoined(id, "T1")
	r.MarkJoined(id, "T2")

	rooms := r.Unregister(id)
	assert.ElementsMatch(t, []string{"T1", "T2"}, rooms)

	_, ok := r.Lookup(id)
	assert.False(t, ok)
	assert.Nil(t, r.Unregister(id))
	assert.Equal(t, 0, r.Count())
}
