package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"tickethub/backend/internal/config"
	"tickethub/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrTicketNotFound is returned by ticket lookups for unknown IDs.
var ErrTicketNotFound = errors.New("ticket not found")

type Storage interface {
	SaveUser(user *models.User) error
	GetUserByID(id string) (*models.User, error)

	SaveTicket(ticket *models.Ticket) error
	GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error)
	CloseTicket(ticketID string) error
	CanAccessTicket(ctx context.Context, actorID, role, ticketID string) (bool, error)

	AppendMessage(ctx context.Context, msg *models.TicketMessage) error
	ListTicketMessages(ctx context.Context, ticketID string, limit int) ([]models.TicketMessage, error)

	IsUserBanned(ctx context.Context, userID string) (bool, error)
	BanUser(userID string, duration time.Duration) error
	UnbanUser(userID string) error

	AddActiveRoom(ctx context.Context, ticketID string) error
	RemoveActiveRoom(ctx context.Context, ticketID string) error
	ActiveRoomIDs(ctx context.Context) ([]string, error)

	PublishMessageNotice(ctx context.Context, notice models.MessageNotice) error
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{DB: db, Redis: rdb}
}

// SaveUser зберігає користувача в PostgreSQL
func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

func (s *Service) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.DB.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveTicket зберігає тікет в PostgreSQL
func (s *Service) SaveTicket(ticket *models.Ticket) error {
	return s.DB.Save(ticket).Error
}

func (s *Service) GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.DB.WithContext(ctx).Where("ticket_id = ?", ticketID).First(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get ticket %s: %v", ticketID, err)
		return nil, err
	}
	return &ticket, nil
}

// CloseTicket закриває тікет, встановлюючи status = closed та closed_at = NOW()
func (s *Service) CloseTicket(ticketID string) error {
	return s.DB.Model(&models.Ticket{}).
		Where("ticket_id = ?", ticketID).
		Updates(map[string]interface{}{
			"status":    models.TicketStatusClosed,
			"closed_at": gorm.Expr("NOW()"),
		}).Error
}

// CanAccessTicket answers the ownership question for room joins: admins may
// access any existing ticket, clients only the tickets they own. An unknown
// ticket is an access denial, not an error.
func (s *Service) CanAccessTicket(ctx context.Context, actorID, role, ticketID string) (bool, error) {
	ticket, err := s.GetTicketByID(ctx, ticketID)
	if errors.Is(err, ErrTicketNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if role == models.RoleAdmin {
		return true, nil
	}
	return ticket.OwnerID == actorID, nil
}

// AppendMessage зберігає повідомлення в PostgreSQL разом із вкладеннями.
// The caller has already assigned CreatedAt; the auto-increment ID becomes
// the tie-break of the (CreatedAt, ID) total order.
func (s *Service) AppendMessage(ctx context.Context, msg *models.TicketMessage) error {
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message for ticket %s: %v", msg.TicketID, err)
		return err
	}
	return nil
}

// ListTicketMessages отримує історію повідомлень для тікета.
// Returns the most recent `limit` messages in chronological order; anything
// past the page stays reachable through the dashboard, not this gateway.
func (s *Service) ListTicketMessages(ctx context.Context, ticketID string, limit int) ([]models.TicketMessage, error) {
	var page []models.TicketMessage
	q := s.DB.WithContext(ctx).
		Preload("Attachments").
		Where("ticket_id = ?", ticketID).
		Order("created_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&page).Error; err != nil {
		log.Printf("ERROR: Failed to get chat history for ticket %s: %v", ticketID, err)
		return nil, err
	}

	// Newest-first from the query; reverse into oldest-to-newest.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

// IsUserBanned перевіряє статус бану в Redis
func (s *Service) IsUserBanned(ctx context.Context, userID string) (bool, error) {
	key := "ban:" + userID
	status, err := s.Redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status != "", nil
}

// BanUser sets the Redis ban flag; duration <= 0 means no expiry.
func (s *Service) BanUser(userID string, duration time.Duration) error {
	return s.Redis.Set(context.Background(), "ban:"+userID, "banned", duration).Err()
}

func (s *Service) UnbanUser(userID string) error {
	return s.Redis.Del(context.Background(), "ban:"+userID).Err()
}

// AddActiveRoom додає тікет до набору активних кімнат у Redis
func (s *Service) AddActiveRoom(ctx context.Context, ticketID string) error {
	return s.Redis.SAdd(ctx, config.ActiveRoomsKey, ticketID).Err()
}

// RemoveActiveRoom видаляє тікет з набору активних кімнат у Redis
func (s *Service) RemoveActiveRoom(ctx context.Context, ticketID string) error {
	return s.Redis.SRem(ctx, config.ActiveRoomsKey, ticketID).Err()
}

// ActiveRoomIDs повертає всі тікети, які зараз мають живі кімнати
func (s *Service) ActiveRoomIDs(ctx context.Context) ([]string, error) {
	return s.Redis.SMembers(ctx, config.ActiveRoomsKey).Result()
}

// PublishMessageNotice публікує сповіщення в Redis Pub/Sub
func (s *Service) PublishMessageNotice(ctx context.Context, notice models.MessageNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, config.NotifyChannel, payload).Err()
}
