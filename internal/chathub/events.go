package chathub

import (
	"encoding/json"
	"log"

	"tickethub/backend/internal/models"
)

// Inbound event names (client → server).
const (
	EvAuthenticate   = "authenticate"
	EvJoinTicket     = "join_ticket"
	EvLeaveTicket    = "leave_ticket"
	EvGetMessages    = "get_messages"
	EvSendMessage    = "send_message"
	EvTypingStart    = "typing_start"
	EvTypingStop     = "typing_stop"
	EvGetOnlineUsers = "get_online_users"
)

// Outbound event names (server → client).
const (
	EvAuthenticated     = "authenticated"
	EvAuthError         = "authentication_error"
	EvJoinedTicket      = "joined_ticket"
	EvJoinTicketError   = "join_ticket_error"
	EvUserJoinedTicket  = "user_joined_ticket"
	EvLeftTicket        = "left_ticket"
	EvUserLeftTicket    = "user_left_ticket"
	EvMessagesLoaded    = "messages_loaded"
	EvMessagesError     = "messages_error"
	EvNewMessage        = "new_message"
	EvSendMessageError  = "send_message_error"
	EvUserTyping        = "user_typing"
	EvUserStoppedTyping = "user_stopped_typing"
	EvOnlineUsers       = "online_users"
)

// Frame is the wire envelope: {"event": "...", "data": {...}}.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals payload into a Frame. Payload types here are all
// marshalable; an error means a programming bug, so it is logged and an
// empty data frame returned rather than propagated.
func NewFrame(event string, payload interface{}) Frame {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: Failed to encode %s payload: %v", event, err)
		return Frame{Event: event}
	}
	return Frame{Event: event, Data: data}
}

// --- inbound payloads ---

type AuthenticatePayload struct {
	Token string `json:"token"`
}

// TicketPayload covers every inbound event addressed to a single ticket.
type TicketPayload struct {
	TicketID string `json:"ticketId"`
}

type SendMessagePayload struct {
	TicketID    string             `json:"ticketId"`
	Message     string             `json:"message"`
	Attachments []AttachmentUpload `json:"attachments,omitempty"`
}

// AttachmentUpload carries one base64-encoded file in a send_message event.
type AttachmentUpload struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// --- outbound payloads ---

type AuthenticatedPayload struct {
	User models.Actor `json:"user"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type TicketAckPayload struct {
	TicketID string `json:"ticketId"`
}

// PresencePayload announces one actor's join/leave/typing on a ticket.
type PresencePayload struct {
	TicketID string `json:"ticketId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type MessagesLoadedPayload struct {
	TicketID string                 `json:"ticketId"`
	Messages []models.TicketMessage `json:"messages"`
}

type NewMessagePayload struct {
	TicketID string               `json:"ticketId"`
	Data     models.TicketMessage `json:"data"`
}

type OnlineUsersPayload struct {
	TicketID string         `json:"ticketId"`
	Users    []models.Actor `json:"users"`
}
