package models

import (
	"time"

	"github.com/lib/pq"
)

// Ticket statuses used by this core. The full workflow (assignment,
// priorities, SLA) belongs to the dashboard and is out of scope here.
const (
	TicketStatusOpen   = "open"
	TicketStatusClosed = "closed"
)

// Ticket represents a single support case. The gateway only reads it to
// answer the ownership question; mutation happens through the admin CLI
// and the dashboard.
type Ticket struct {
	// TicketID is the unique identifier for the ticket (UUID).
	TicketID string `gorm:"primaryKey"`
	// OwnerID is the ID of the client the ticket belongs to.
	OwnerID string `gorm:"type:text;not null;index"`
	// Subject is the short human-readable summary.
	Subject string `gorm:"type:text;not null"`
	// Status is one of the TicketStatus* constants.
	Status string `gorm:"type:text;not null;default:open;index"`
	// Tags are free-form labels set by the triage dashboard.
	Tags pq.StringArray `gorm:"type:text[]"`

	CreatedAt time.Time
	ClosedAt  *time.Time
}

// IsOpen reports whether the ticket still accepts chat traffic.
func (t *Ticket) IsOpen() bool { return t.Status == TicketStatusOpen }
