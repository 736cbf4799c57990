package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"tickethub/backend/internal/auth"
	"tickethub/backend/internal/config"
	"tickethub/backend/internal/models"
	"tickethub/backend/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	storageSvc := storage.NewStorageService(db, rdb)

	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "token":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin token <admin_user_id> <display_name>")
			os.Exit(1)
		}
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			log.Fatal("JWT_SECRET is not set")
		}
		token, err := issueAdminToken(storageSvc, secret, os.Args[2], os.Args[3])
		if err != nil {
			log.Fatalf("Error issuing admin token: %v", err)
		}
		fmt.Println(token)
	case "ban":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin ban <user_id> [duration_in_hours]")
			os.Exit(1)
		}
		userID := os.Args[2]
		var hours int
		if len(os.Args) > 3 {
			hours, err = strconv.Atoi(os.Args[3])
			if err != nil {
				fmt.Println("Invalid duration. Please provide an integer.")
				os.Exit(1)
			}
		}
		if err := banUser(storageSvc, userID, hours); err != nil {
			log.Fatalf("Error banning user: %v", err)
		}
		fmt.Printf("User %s has been banned.\n", userID)
	case "unban":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin unban <user_id>")
			os.Exit(1)
		}
		if err := unbanUser(storageSvc, os.Args[2]); err != nil {
			log.Fatalf("Error unbanning user: %v", err)
		}
		fmt.Printf("User %s has been unbanned.\n", os.Args[2])
	case "close-ticket":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin close-ticket <ticket_id>")
			os.Exit(1)
		}
		if err := storageSvc.CloseTicket(os.Args[2]); err != nil {
			log.Fatalf("Error closing ticket: %v", err)
		}
		fmt.Printf("Ticket %s has been closed.\n", os.Args[2])
	case "active-rooms":
		ids, err := storageSvc.ActiveRoomIDs(context.Background())
		if err != nil {
			log.Fatalf("Error listing active rooms: %v", err)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	default:
		usage()
	}
}

func usage() {
	fmt.Println("Usage: admin <token|ban|unban|close-ticket|active-rooms> [args]")
	os.Exit(1)
}

// issueAdminToken upserts the admin user and signs a short-lived token.
func issueAdminToken(s storage.Storage, secret, userID, name string) (string, error) {
	user := &models.User{ID: userID, DisplayName: name, Role: models.RoleAdmin}
	if err := s.SaveUser(user); err != nil {
		return "", err
	}
	verifier := auth.NewVerifier(secret)
	return verifier.IssueToken(models.Actor{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	}, config.AdminTokenTTL)
}

func banUser(s storage.Storage, userID string, hours int) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	var duration time.Duration
	if hours > 0 {
		duration = time.Duration(hours) * time.Hour
	} else {
		user.IsBlocked = true
		if err := s.SaveUser(user); err != nil {
			return err
		}
	}
	return s.BanUser(userID, duration)
}

func unbanUser(s storage.Storage, userID string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	user.IsBlocked = false
	if err := s.SaveUser(user); err != nil {
		return err
	}
	return s.UnbanUser(userID)
}
