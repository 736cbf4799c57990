package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"tickethub/backend/internal/api/handler"
	"tickethub/backend/internal/auth"
	"tickethub/backend/internal/blob"
	"tickethub/backend/internal/chathub"
	"tickethub/backend/internal/config"
	"tickethub/backend/internal/models"
	"tickethub/backend/internal/notify"
	"tickethub/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies() (*gorm.DB, *redis.Client) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		envOr("DB_HOST", "localhost"),
		envOr("DB_USER", "user"),
		envOr("DB_PASSWORD", "password"),
		envOr("DB_NAME", "tickethubdb"),
		envOr("DB_PORT", "5432"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	// Міграції (Створення таблиць)
	err = db.AutoMigrate(
		&models.User{},
		&models.Ticket{},
		&models.TicketMessage{},
		&models.Attachment{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting TicketHub Gateway...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET не встановлено!")
	}

	// 1. Ініціалізація залежностей
	db, rdb := setupDependencies()
	s := storage.NewStorageService(db, rdb)
	verifier := auth.NewVerifier(jwtSecret)

	blobs, err := blob.NewDiskStore(
		envOr("BLOB_DIR", "./data/attachments"),
		envOr("BLOB_BASE_URL", "http://localhost:8080/files"),
	)
	if err != nil {
		log.Fatalf("Failed to init blob store: %v", err)
	}

	// 2. Ініціалізація Gateway
	gw := chathub.NewGateway(verifier, s, blobs, chathub.Config{})

	sweeperStop := make(chan struct{})
	defer close(sweeperStop)
	go gw.Rooms.RunTypingSweeper(config.TypingTTL, config.TypingSweepEvery, sweeperStop)

	// 3. Опціональний Telegram-сповіщувач для операторів
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		staffChatID, err := strconv.ParseInt(os.Getenv("TELEGRAM_STAFF_CHAT_ID"), 10, 64)
		if err != nil {
			log.Fatalf("TELEGRAM_STAFF_CHAT_ID невірний: %v", err)
		}
		notifier, err := notify.NewNotifier(token, staffChatID, rdb)
		if err != nil {
			log.Fatalf("Не вдалося запустити Telegram-сповіщувач: %v", err)
		}
		go notifier.Run(context.Background())
	}

	// 4. Налаштування Gin та роутингу
	r := gin.Default()
	h := handler.NewHandler(gw, verifier, s)

	r.GET("/health", h.Health)
	r.POST("/token", h.IssueClientToken) // Отримання JWT для клієнта
	r.GET("/ws", h.ServeWebSocket)       // WebSocket Upgrade
	r.Static("/files", envOr("BLOB_DIR", "./data/attachments"))

	server := &http.Server{
		Addr:           envOr("LISTEN_ADDR", ":8080"),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
