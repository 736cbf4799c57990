package models

import "time"

// TicketMessage is the durable record of one chat message in a ticket
// thread. Records are append-only: this core never edits or deletes them.
// Messages of a ticket are totally ordered by (CreatedAt, ID); the
// auto-increment ID breaks ties between writes in the same instant.
type TicketMessage struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// TicketID is the ticket this message belongs to.
	TicketID string `gorm:"type:text;not null;index:idx_ticket_msg" json:"ticketId"`
	// SenderID is the actor who sent the message.
	SenderID string `gorm:"type:text;not null;index:idx_ticket_msg" json:"senderId"`
	// SenderRole is the sender's role snapshot at send time.
	SenderRole string `gorm:"type:text;not null" json:"senderRole"`
	// Body is the message text. May be empty when attachments are present,
	// never empty together with them.
	Body string `gorm:"type:text" json:"body"`

	Attachments []Attachment `gorm:"foreignKey:MessageID" json:"attachments"`

	// CreatedAt is assigned by the server, never trusted from the client.
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// Attachment stores metadata for one file attached to a ticket message.
// The bytes themselves live in the blob store under StorageRef.
type Attachment struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	MessageID uint   `gorm:"not null;index" json:"-"`
	Name      string `gorm:"type:text;not null" json:"name"`
	MimeType  string `gorm:"type:text" json:"mimeType"`
	SizeBytes int64  `gorm:"not null" json:"sizeBytes"`
	// StorageRef is the blob store reference; URL is resolved per delivery.
	StorageRef string `gorm:"type:text;not null" json:"-"`
	URL        string `gorm:"-" json:"url,omitempty"`
}

// MessageNotice is the payload published to Redis for the ops notifier
// whenever a new message lands on a ticket. Not persisted.
type MessageNotice struct {
	TicketID   string    `json:"ticket_id"`
	SenderName string    `json:"sender_name"`
	SenderRole string    `json:"sender_role"`
	Preview    string    `json:"preview"`
	SentAt     time.Time `json:"sent_at"`
}
