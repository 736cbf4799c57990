package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles an actor can hold on a connection.
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// User представляє обліковий запис у системі підтримки.
type User struct {
	ID          string `gorm:"primaryKey" json:"id"`
	DisplayName string `gorm:"type:text;not null" json:"name"`
	Role        string `gorm:"type:text;not null;default:client;index" json:"role"`

	// IsBlocked mirrors the Redis ban flag for permanent bans; temporary
	// bans live only in Redis with a TTL.
	IsBlocked bool `json:"-"`
}

// BeforeCreate — це хук GORM, який викликається перед створенням запису.
// Він генерує новий UUID для користувача, якщо ID ще не встановлено.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = RoleClient
	}
	return
}

// Actor is the verified identity attached to a connection after a
// successful authenticate handshake. Immutable once set.
type Actor struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Role        string `json:"role"`
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
