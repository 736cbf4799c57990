package chathub_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"tickethub/backend/internal/chathub"
	"tickethub/backend/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockVerifier is a testify double for the chathub.TokenVerifier interface.
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(token string) (models.Actor, error) {
	args := m.Called(token)
	return args.Get(0).(models.Actor), args.Error(1)
}

// MockMessageStore is a comprehensive mock implementation of the
// chathub.MessageStore interface.
type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) AppendMessage(ctx context.Context, msg *models.TicketMessage) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockMessageStore) ListTicketMessages(ctx context.Context, ticketID string, limit int) ([]models.TicketMessage, error) {
	args := m.Called(ticketID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TicketMessage), args.Error(1)
}

func (m *MockMessageStore) CanAccessTicket(ctx context.Context, actorID, role, ticketID string) (bool, error) {
	args := m.Called(actorID, role, ticketID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageStore) IsUserBanned(ctx context.Context, userID string) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageStore) AddActiveRoom(ctx context.Context, ticketID string) error {
	args := m.Called(ticketID)
	return args.Error(0)
}

func (m *MockMessageStore) RemoveActiveRoom(ctx context.Context, ticketID string) error {
	args := m.Called(ticketID)
	return args.Error(0)
}

func (m *MockMessageStore) PublishMessageNotice(ctx context.Context, notice models.MessageNotice) error {
	args := m.Called(notice)
	return args.Error(0)
}

// MockBlobStore records stored attachments without touching disk.
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Store(data []byte, name, mimeType string) (string, error) {
	args := m.Called(data, name, mimeType)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) Delete(ref string) error {
	args := m.Called(ref)
	return args.Error(0)
}

func (m *MockBlobStore) URLOf(ref string) string {
	return "http://files.test/" + ref
}

// fakeClient is a test double for the chathub.Client interface. Frames are
// collected synchronously; flipping dead simulates a broken transport, and
// failNext makes a single Send report a saturated queue.
type fakeClient struct {
	mu       sync.Mutex
	id       string
	frames   []chathub.Frame
	dead     bool
	failNext bool
	closed   bool
}

func (c *fakeClient) ConnID() string { return c.id }

func (c *fakeClient) Send(f chathub.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return false
	}
	if c.failNext {
		c.failNext = false
		return false
	}
	c.frames = append(c.frames, f)
	return true
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClient) kill() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dead = true
}

// dropNextSend makes exactly one Send fail, as when a live connection's
// outbound queue is momentarily full.
func (c *fakeClient) dropNextSend() {
	c.mu.Lock()
	c.failNext = true
	c.mu.Unlock()
}

// received returns all collected frames for the given event name.
func (c *fakeClient) received(event string) []chathub.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []chathub.Frame
	for _, f := range c.frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

// eventLog returns the ordered event names the client has seen.
func (c *fakeClient) eventLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.frames))
	for i, f := range c.frames {
		out[i] = f.Event
	}
	return out
}

func (c *fakeClient) drain() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

// decodeLast unmarshals the newest frame of the given event into dst.
func decodeLast(t *testing.T, c *fakeClient, event string, dst interface{}) {
	t.Helper()
	frames := c.received(event)
	require.NotEmpty(t, frames, "expected at least one %s frame", event)
	require.NoError(t, json.Unmarshal(frames[len(frames)-1].Data, dst))
}

// rawFrame builds an inbound frame the way a websocket client would.
func rawFrame(t *testing.T, event string, payload interface{}) chathub.Frame {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return chathub.Frame{Event: event, Data: data}
}
