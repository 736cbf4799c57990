package config

import "time"

const (
	// Attachments
	MaxAttachmentBytes = 10 << 20 // per attachment, after base64 decoding
	MaxFrameBytes      = 64 << 20 // websocket read limit; must fit base64-encoded attachments

	// Typing presence
	TypingTTL        = 5 * time.Second
	TypingSweepEvery = time.Second

	// History
	HistoryPageLimit = 200

	// Dependencies (Postgres, Redis, blob store)
	DependencyTimeout = 5 * time.Second

	// Tokens
	ClientTokenTTL = 72 * time.Hour
	AdminTokenTTL  = 12 * time.Hour

	// Per-connection outbound queue
	SendQueueSize = 256
)

// NotifyChannel is the Redis Pub/Sub channel the gateway publishes
// new-message notices to and the ops notifier subscribes on.
const NotifyChannel = "tickethub:notify"

// ActiveRoomsKey is the Redis set holding ticket IDs with at least one
// live room member.
const ActiveRoomsKey = "active_ticket_rooms"
