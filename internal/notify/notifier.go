// Package notify forwards new-message notices to the support staff's
// Telegram channel. It consumes the Redis Pub/Sub feed the gateway
// publishes on, so a notifier outage never touches the chat path.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"tickethub/backend/internal/config"
	"tickethub/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
)

// Notifier is responsible for receiving message notices and posting
// digests to the configured staff chat.
type Notifier struct {
	BotAPI *tgbotapi.BotAPI
	Redis  *redis.Client
	chatID int64
}

// NewNotifier creates a new Notifier instance.
func NewNotifier(token string, staffChatID int64, rdb *redis.Client) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("✅ Authorized on account %s", bot.Self.UserName)

	return &Notifier{BotAPI: bot, Redis: rdb, chatID: staffChatID}, nil
}

// Run підписується на канал сповіщень Redis та пересилає дайджести.
// Blocks until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	pubsub := n.Redis.Subscribe(ctx, config.NotifyChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var notice models.MessageNotice
			if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
				log.Printf("Error unmarshalling Redis notice: %v", err)
				continue
			}
			n.post(notice)
		}
	}
}

func (n *Notifier) post(notice models.MessageNotice) {
	text := fmt.Sprintf("🎫 Ticket %s — %s (%s):\n%s",
		notice.TicketID, notice.SenderName, notice.SenderRole, notice.Preview)

	if _, err := n.BotAPI.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		log.Printf("Error sending Telegram notification: %v", err)
	}
}
