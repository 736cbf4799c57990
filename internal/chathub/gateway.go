package chathub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"strings"
	"time"

	"tickethub/backend/internal/config"
	"tickethub/backend/internal/models"
)

// TokenVerifier is the identity collaborator: opaque credential in,
// verified actor out. Consulted only during the authenticate handshake.
type TokenVerifier interface {
	Verify(token string) (models.Actor, error)
}

// MessageStore is the durable, ordered message record plus the ticket
// ownership check and the presence-side Redis state.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *models.TicketMessage) error
	ListTicketMessages(ctx context.Context, ticketID string, limit int) ([]models.TicketMessage, error)
	CanAccessTicket(ctx context.Context, actorID, role, ticketID string) (bool, error)
	IsUserBanned(ctx context.Context, userID string) (bool, error)
	AddActiveRoom(ctx context.Context, ticketID string) error
	RemoveActiveRoom(ctx context.Context, ticketID string) error
	PublishMessageNotice(ctx context.Context, notice models.MessageNotice) error
}

// BlobStore receives decoded attachment bytes and returns references.
// Delete reclaims a blob whose message never made it into the store.
type BlobStore interface {
	Store(data []byte, name, mimeType string) (string, error)
	Delete(ref string) error
	URLOf(ref string) string
}

// Config bundles the gateway's tunables. Zero values fall back to the
// deployment defaults in the config package.
type Config struct {
	MaxAttachmentBytes int64
	HistoryLimit       int
	DependencyTimeout  time.Duration
	Clock              func() time.Time
}

func (c *Config) norm() {
	if c.MaxAttachmentBytes <= 0 {
		c.MaxAttachmentBytes = config.MaxAttachmentBytes
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = config.HistoryPageLimit
	}
	if c.DependencyTimeout <= 0 {
		c.DependencyTimeout = config.DependencyTimeout
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Gateway owns the per-connection protocol lifecycle: unauthenticated →
// authenticated → joined rooms. Every inbound frame is validated and routed
// here; every user-facing error goes only to the originating connection.
// Nothing on this path is fatal to the process.
type Gateway struct {
	Registry *Registry
	Rooms    *RoomManager

	verifier TokenVerifier
	store    MessageStore
	blobs    BlobStore
	conf     Config
}

func NewGateway(verifier TokenVerifier, store MessageStore, blobs BlobStore, conf Config) *Gateway {
	conf.norm()
	rooms := NewRoomManager()
	rooms.SetClock(conf.Clock)
	return &Gateway{
		Registry: NewRegistry(),
		Rooms:    rooms,
		verifier: verifier,
		store:    store,
		blobs:    blobs,
		conf:     conf,
	}
}

// Connect registers a fresh transport session and returns its connection ID.
func (g *Gateway) Connect() string {
	id := g.Registry.Register()
	log.Printf("Connection %s attached (%d live)", id, g.Registry.Count())
	return id
}

// Disconnect runs the transport-level teardown: leave every joined room,
// force-expire the actor's typing entries there, drop the registry record.
func (g *Gateway) Disconnect(c Client) {
	connID := c.ConnID()
	info, ok := g.Registry.Lookup(connID)
	rooms := g.Registry.Unregister(connID)
	if !ok {
		return
	}

	for _, ticketID := range rooms {
		g.leaveRoom(connID, ticketID, info.Actor)
	}
	log.Printf("Connection %s detached (%d live)", connID, g.Registry.Count())
}

// HandleFrame dispatches one inbound event. Unknown events are logged and
// dropped; a malformed payload is a validation failure reported to the
// sender only.
func (g *Gateway) HandleFrame(c Client, f Frame) {
	switch f.Event {
	case EvAuthenticate:
		g.handleAuthenticate(c, f.Data)
	case EvJoinTicket:
		g.handleJoinTicket(c, f.Data)
	case EvLeaveTicket:
		g.handleLeaveTicket(c, f.Data)
	case EvGetMessages:
		g.handleGetMessages(c, f.Data)
	case EvSendMessage:
		g.handleSendMessage(c, f.Data)
	case EvTypingStart:
		g.handleTyping(c, f.Data, true)
	case EvTypingStop:
		g.handleTyping(c, f.Data, false)
	case EvGetOnlineUsers:
		g.handleGetOnlineUsers(c, f.Data)
	default:
		log.Printf("Ignoring unknown event %q from connection %s", f.Event, c.ConnID())
	}
}

func (g *Gateway) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), g.conf.DependencyTimeout)
}

func (g *Gateway) handleAuthenticate(c Client, data json.RawMessage) {
	var p AuthenticatePayload
	if err := json.Unmarshal(data, &p); err != nil || p.Token == "" {
		c.Send(NewFrame(EvAuthError, ErrorPayload{Message: "credential missing"}))
		return
	}

	actor, err := g.verifier.Verify(p.Token)
	if err != nil {
		// Connection stays usable: the client may retry with a fresh token.
		c.Send(NewFrame(EvAuthError, ErrorPayload{Message: "invalid or expired token"}))
		return
	}

	ctx, cancel := g.opCtx()
	banned, err := g.store.IsUserBanned(ctx, actor.ID)
	cancel()
	if err != nil {
		log.Printf("ERROR: Ban check failed for %s: %v", actor.ID, err)
		c.Send(NewFrame(EvAuthError, ErrorPayload{Message: "authentication temporarily unavailable"}))
		return
	}
	if banned {
		c.Send(NewFrame(EvAuthError, ErrorPayload{Message: "account suspended"}))
		return
	}

	if err := g.Registry.Authenticate(c.ConnID(), actor); err != nil {
		c.Send(NewFrame(EvAuthError, ErrorPayload{Message: err.Error()}))
		return
	}
	c.Send(NewFrame(EvAuthenticated, AuthenticatedPayload{User: actor}))
}

func (g *Gateway) handleJoinTicket(c Client, data json.RawMessage) {
	p, ok := decodeTicketPayload(c, data, EvJoinTicketError)
	if !ok {
		return
	}

	info, ok := g.Registry.Lookup(c.ConnID())
	if !ok || !info.Authenticated {
		c.Send(NewFrame(EvJoinTicketError, ErrorPayload{Message: "not authenticated"}))
		return
	}

	// Ownership is delegated: join only your own ticket unless admin.
	ctx, cancel := g.opCtx()
	allowed, err := g.store.CanAccessTicket(ctx, info.Actor.ID, info.Actor.Role, p.TicketID)
	cancel()
	if err != nil {
		log.Printf("ERROR: Access check failed for ticket %s: %v", p.TicketID, err)
		c.Send(NewFrame(EvJoinTicketError, ErrorPayload{Message: "unable to verify ticket access"}))
		return
	}
	if !allowed {
		c.Send(NewFrame(EvJoinTicketError, ErrorPayload{Message: "not allowed to access this ticket"}))
		return
	}

	if !g.Registry.MarkJoined(c.ConnID(), p.TicketID) {
		// Already a member: idempotent success, no duplicate broadcast.
		// Re-attach the room entry too, in case a failed send evicted it
		// while the registry still listed the ticket.
		g.Rooms.Join(p.TicketID, c.ConnID(), info.Actor, c)
		c.Send(NewFrame(EvJoinedTicket, TicketAckPayload{TicketID: p.TicketID}))
		return
	}
	g.Rooms.Join(p.TicketID, c.ConnID(), info.Actor, c)

	ctx, cancel = g.opCtx()
	if err := g.store.AddActiveRoom(ctx, p.TicketID); err != nil {
		log.Printf("WARNING: Failed to mark ticket %s active: %v", p.TicketID, err)
	}
	cancel()

	c.Send(NewFrame(EvJoinedTicket, TicketAckPayload{TicketID: p.TicketID}))
	g.Rooms.Broadcast(p.TicketID, NewFrame(EvUserJoinedTicket, PresencePayload{
		TicketID: p.TicketID,
		UserID:   info.Actor.ID,
		UserName: info.Actor.DisplayName,
	}), c.ConnID())
}

func (g *Gateway) handleLeaveTicket(c Client, data json.RawMessage) {
	var p TicketPayload
	if err := json.Unmarshal(data, &p); err != nil || p.TicketID == "" {
		return
	}

	info, ok := g.Registry.Lookup(c.ConnID())
	if !ok {
		return
	}
	if g.Registry.MarkLeft(c.ConnID(), p.TicketID) {
		g.leaveRoom(c.ConnID(), p.TicketID, info.Actor)
	}
	c.Send(NewFrame(EvLeftTicket, TicketAckPayload{TicketID: p.TicketID}))
}

// leaveRoom runs the shared leave path for leave_ticket and disconnect.
func (g *Gateway) leaveRoom(connID, ticketID string, actor models.Actor) {
	if g.Rooms.ClearTyping(ticketID, actor.ID) {
		g.Rooms.Broadcast(ticketID, NewFrame(EvUserStoppedTyping, PresencePayload{
			TicketID: ticketID,
			UserID:   actor.ID,
			UserName: actor.DisplayName,
		}), connID)
	}

	wasMember, emptied := g.Rooms.Leave(ticketID, connID)
	if !wasMember {
		return
	}
	g.Rooms.Broadcast(ticketID, NewFrame(EvUserLeftTicket, PresencePayload{
		TicketID: ticketID,
		UserID:   actor.ID,
		UserName: actor.DisplayName,
	}))

	if emptied {
		ctx, cancel := g.opCtx()
		if err := g.store.RemoveActiveRoom(ctx, ticketID); err != nil {
			log.Printf("WARNING: Failed to clear active mark for ticket %s: %v", ticketID, err)
		}
		cancel()
	}
}

func (g *Gateway) handleGetMessages(c Client, data json.RawMessage) {
	p, ok := decodeTicketPayload(c, data, EvMessagesError)
	if !ok {
		return
	}

	// Join-before-read: history is only served to current room members.
	if !g.Rooms.IsMember(p.TicketID, c.ConnID()) {
		c.Send(NewFrame(EvMessagesError, ErrorPayload{Message: "not a member of this ticket room"}))
		return
	}

	ctx, cancel := g.opCtx()
	messages, err := g.store.ListTicketMessages(ctx, p.TicketID, g.conf.HistoryLimit)
	cancel()
	if err != nil {
		c.Send(NewFrame(EvMessagesError, ErrorPayload{Message: "failed to load messages"}))
		return
	}
	for i := range messages {
		g.resolveAttachmentURLs(&messages[i])
	}
	if messages == nil {
		messages = []models.TicketMessage{}
	}

	// If the connection died mid-read, Send fails and the result is dropped.
	c.Send(NewFrame(EvMessagesLoaded, MessagesLoadedPayload{TicketID: p.TicketID, Messages: messages}))
}

func (g *Gateway) handleSendMessage(c Client, data json.RawMessage) {
	var p SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.TicketID == "" {
		c.Send(NewFrame(EvSendMessageError, ErrorPayload{Message: "malformed message payload"}))
		return
	}

	info, ok := g.Registry.Lookup(c.ConnID())
	if !ok || !info.Authenticated {
		c.Send(NewFrame(EvSendMessageError, ErrorPayload{Message: "not authenticated"}))
		return
	}
	if !g.Rooms.IsMember(p.TicketID, c.ConnID()) {
		c.Send(NewFrame(EvSendMessageError, ErrorPayload{Message: "not a member of this ticket room"}))
		return
	}

	body := strings.TrimSpace(p.Message)
	if body == "" && len(p.Attachments) == 0 {
		c.Send(NewFrame(EvSendMessageError, ErrorPayload{Message: "empty message"}))
		return
	}

	attachments, errMsg := g.storeAttachments(p.Attachments)
	if errMsg != "" {
		c.Send(NewFrame(EvSendMessageError, ErrorPayload{Message: errMsg}))
		return
	}

	msg := &models.TicketMessage{
		TicketID:    p.TicketID,
		SenderID:    info.Actor.ID,
		SenderRole:  info.Actor.Role,
		Body:        body,
		Attachments: attachments,
	}

	// The room's send lock keeps persist-then-broadcast pairs from
	// interleaving between concurrent senders on the same ticket, so
	// fan-out order always matches persistence order. CreatedAt is read
	// under the same lock: timestamps must be monotone in persistence
	// order or the (createdAt, id) sort served to late joiners would
	// disagree with what live members saw.
	g.Rooms.Serialize(p.TicketID, func() {
		msg.CreatedAt = g.conf.Clock()

		ctx, cancel := g.opCtx()
		err := g.store.AppendMessage(ctx, msg)
		cancel()
		if err != nil {
			// Store failure aborts this operation only; nothing was broadcast.
			g.discardAttachments(msg.Attachments)
			c.Send(NewFrame(EvSendMessageError, ErrorPayload{Message: "failed to store message"}))
			return
		}

		out := *msg
		g.resolveAttachmentURLs(&out)
		// The sender receives the echo too and reconciles on it.
		g.Rooms.Broadcast(p.TicketID, NewFrame(EvNewMessage, NewMessagePayload{TicketID: p.TicketID, Data: out}))

		ctx, cancel = g.opCtx()
		if err := g.store.PublishMessageNotice(ctx, models.MessageNotice{
			TicketID:   p.TicketID,
			SenderName: info.Actor.DisplayName,
			SenderRole: info.Actor.Role,
			Preview:    preview(body),
			SentAt:     msg.CreatedAt,
		}); err != nil {
			log.Printf("WARNING: Failed to publish notice for ticket %s: %v", p.TicketID, err)
		}
		cancel()
	})
}

// storeAttachments decodes and persists uploads, returning the metadata
// records or a user-facing validation/dependency error message.
func (g *Gateway) storeAttachments(uploads []AttachmentUpload) ([]models.Attachment, string) {
	if len(uploads) == 0 {
		return nil, ""
	}

	attachments := make([]models.Attachment, 0, len(uploads))
	for _, up := range uploads {
		data, err := base64.StdEncoding.DecodeString(up.Data)
		if err != nil {
			g.discardAttachments(attachments)
			return nil, "invalid attachment encoding"
		}
		if int64(len(data)) > g.conf.MaxAttachmentBytes {
			g.discardAttachments(attachments)
			return nil, "attachment too large"
		}
		if len(data) == 0 {
			g.discardAttachments(attachments)
			return nil, "empty attachment"
		}

		ref, err := g.blobs.Store(data, up.Name, up.Type)
		if err != nil {
			log.Printf("ERROR: Blob store failed for %q: %v", up.Name, err)
			g.discardAttachments(attachments)
			return nil, "failed to store attachment"
		}
		attachments = append(attachments, models.Attachment{
			Name:       up.Name,
			MimeType:   up.Type,
			SizeBytes:  int64(len(data)),
			StorageRef: ref,
		})
	}
	return attachments, ""
}

// discardAttachments best-effort removes blobs belonging to a message that
// will never be persisted, so failed sends do not leak disk.
func (g *Gateway) discardAttachments(attachments []models.Attachment) {
	for _, a := range attachments {
		if err := g.blobs.Delete(a.StorageRef); err != nil {
			log.Printf("WARNING: Failed to remove orphaned blob %s: %v", a.StorageRef, err)
		}
	}
}

func (g *Gateway) resolveAttachmentURLs(msg *models.TicketMessage) {
	for i := range msg.Attachments {
		msg.Attachments[i].URL = g.blobs.URLOf(msg.Attachments[i].StorageRef)
	}
}

func (g *Gateway) handleTyping(c Client, data json.RawMessage, start bool) {
	var p TicketPayload
	if err := json.Unmarshal(data, &p); err != nil || p.TicketID == "" {
		return
	}

	// Typing is best-effort: non-members are silently ignored, not errored.
	info, ok := g.Registry.Lookup(c.ConnID())
	if !ok || !info.Authenticated || !g.Rooms.IsMember(p.TicketID, c.ConnID()) {
		return
	}

	presence := PresencePayload{
		TicketID: p.TicketID,
		UserID:   info.Actor.ID,
		UserName: info.Actor.DisplayName,
	}
	if start {
		g.Rooms.SetTyping(p.TicketID, info.Actor)
		g.Rooms.Broadcast(p.TicketID, NewFrame(EvUserTyping, presence), c.ConnID())
		return
	}
	if g.Rooms.ClearTyping(p.TicketID, info.Actor.ID) {
		g.Rooms.Broadcast(p.TicketID, NewFrame(EvUserStoppedTyping, presence), c.ConnID())
	}
}

func (g *Gateway) handleGetOnlineUsers(c Client, data json.RawMessage) {
	var p TicketPayload
	if err := json.Unmarshal(data, &p); err != nil || p.TicketID == "" {
		return
	}

	// Presence is only visible from inside the room; outsiders get an
	// empty list rather than an error.
	users := []models.Actor{}
	if g.Rooms.IsMember(p.TicketID, c.ConnID()) {
		users = g.Rooms.MembersOf(p.TicketID)
	}
	c.Send(NewFrame(EvOnlineUsers, OnlineUsersPayload{TicketID: p.TicketID, Users: users}))
}

// decodeTicketPayload parses a {ticketId} payload and reports malformed
// input on the given error event.
func decodeTicketPayload(c Client, data json.RawMessage, errEvent string) (TicketPayload, bool) {
	var p TicketPayload
	if err := json.Unmarshal(data, &p); err != nil || p.TicketID == "" {
		c.Send(NewFrame(errEvent, ErrorPayload{Message: "ticketId missing"}))
		return TicketPayload{}, false
	}
	return p, true
}

// preview truncates a message body for the ops notification feed.
func preview(body string) string {
	const max = 120
	if len(body) <= max {
		return body
	}
	return body[:max] + "…"
}
