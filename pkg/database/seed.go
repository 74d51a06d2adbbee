package database

import (
	"fmt"
	"log"
	"time"

	"courier/internal/domain/message"
	"courier/internal/domain/notification"
	"courier/internal/domain/user"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedConfig holds configuration for seeding the database
type SeedConfig struct {
	AdminEmail      string
	AdminPassword   string
	CreateTestUsers bool
	TestUserCount   int
}

// DefaultSeedConfig returns default seed configuration
func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		AdminEmail:      "admin@courier.local",
		AdminPassword:   "Admin@123!",
		CreateTestUsers: true,
		TestUserCount:   5,
	}
}

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	AdminUser     *user.User
	TestUsers     []*user.User
	Messages      []*message.Message
	Notifications int
}

// Seed runs the complete database seeding
func Seed(cfg *SeedConfig) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}

	result := &SeedResult{}

	log.Println("Starting database seeding...")

	adminUser, err := seedUser(cfg.AdminEmail, cfg.AdminPassword, "System", "Admin")
	if err != nil {
		return nil, fmt.Errorf("failed to seed admin user: %w", err)
	}
	result.AdminUser = adminUser

	if cfg.CreateTestUsers {
		testUsers, err := seedTestUsers(cfg.TestUserCount)
		if err != nil {
			return nil, fmt.Errorf("failed to seed test users: %w", err)
		}
		result.TestUsers = testUsers

		if len(testUsers) >= 2 {
			msgs, notifs, err := seedMessages(testUsers)
			if err != nil {
				return nil, fmt.Errorf("failed to seed messages: %w", err)
			}
			result.Messages = msgs
			result.Notifications = notifs
		}
	}

	log.Println("Database seeding completed successfully!")
	return result, nil
}

// SeedMinimal runs minimal seeding (admin user only)
func SeedMinimal(cfg *SeedConfig) (*user.User, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}
	return seedUser(cfg.AdminEmail, cfg.AdminPassword, "System", "Admin")
}

func seedUser(email, password, firstName, lastName string) (*user.User, error) {
	var existing user.User
	if err := DB.Where("email = ?", email).First(&existing).Error; err == nil {
		log.Printf("User %s already exists, skipping", email)
		return &existing, nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &user.User{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: string(hashedPassword),
		Status:       user.StatusActive,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := DB.Create(u).Error; err != nil {
		return nil, err
	}

	log.Printf("User seeded: %s (%s)", email, u.ID)
	return u, nil
}

// seedTestUsers creates test users for development
func seedTestUsers(count int) ([]*user.User, error) {
	testUserData := []struct {
		email     string
		firstName string
		lastName  string
	}{
		{"alice@test.com", "Alice", "Johnson"},
		{"bob@test.com", "Bob", "Smith"},
		{"charlie@test.com", "Charlie", "Brown"},
		{"diana@test.com", "Diana", "Prince"},
		{"edward@test.com", "Edward", "Chen"},
		{"fiona@test.com", "Fiona", "Green"},
		{"george@test.com", "George", "Miller"},
		{"hannah@test.com", "Hannah", "White"},
	}

	users := make([]*user.User, 0, count)
	for i := 0; i < count && i < len(testUserData); i++ {
		data := testUserData[i]
		u, err := seedUser(data.email, "Test@123!", data.firstName, data.lastName)
		if err != nil {
			return nil, fmt.Errorf("failed to create test user %s: %w", data.email, err)
		}
		users = append(users, u)
	}

	return users, nil
}

// seedMessages creates sample conversations between consecutive test
// users, with a notification per delivered message and an edit history
// entry on the first message.
func seedMessages(users []*user.User) ([]*message.Message, int, error) {
	sampleContents := []string{
		"Hello, how are you?",
		"Doing well, thanks for asking",
		"Did you see the update?",
		"Yes, looks great",
		"Let me know if you need anything",
		"Will do, talk soon",
	}

	messages := make([]*message.Message, 0)
	notifications := 0

	err := DB.Transaction(func(tx *gorm.DB) error {
		for i, content := range sampleContents {
			sender := users[i%len(users)]
			receiver := users[(i+1)%len(users)]

			msg := &message.Message{
				ID:         uuid.New(),
				SenderID:   sender.ID,
				ReceiverID: receiver.ID,
				Content:    content,
				Version:    1,
				CreatedAt:  time.Now().Add(time.Duration(i) * time.Minute),
				UpdatedAt:  time.Now().Add(time.Duration(i) * time.Minute),
			}
			if i > 0 {
				msg.ParentMessageID = uuid.NullUUID{UUID: messages[i-1].ID, Valid: true}
			}
			if err := tx.Create(msg).Error; err != nil {
				return err
			}
			messages = append(messages, msg)

			notif := &notification.Notification{
				ID:        uuid.New(),
				UserID:    receiver.ID,
				MessageID: msg.ID,
				CreatedAt: msg.CreatedAt,
			}
			if err := tx.Create(notif).Error; err != nil {
				return err
			}
			notifications++
		}

		// Give the first message an edit so history has something in it.
		first := messages[0]
		history := &message.MessageHistory{
			ID:         uuid.New(),
			MessageID:  first.ID,
			OldContent: first.Content,
			EditedAt:   time.Now(),
		}
		if err := tx.Create(history).Error; err != nil {
			return err
		}
		return tx.Model(&message.Message{}).
			Where("id = ?", first.ID).
			Updates(map[string]interface{}{
				"content": "Hello there, how are you?",
				"edited":  true,
				"version": first.Version + 1,
			}).Error
	})
	if err != nil {
		return nil, 0, err
	}

	log.Printf("Seeded %d messages, %d notifications", len(messages), notifications)
	return messages, notifications, nil
}

// TruncateAllTables clears every table the service owns (USE WITH CAUTION)
func TruncateAllTables() error {
	tables := []string{"notifications", "message_histories", "messages", "users"}
	for _, table := range tables {
		if !TableExists(table) {
			continue
		}
		if err := DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}

// ClearAndReseed clears all data and runs seed again (USE WITH CAUTION)
func ClearAndReseed(cfg *SeedConfig) (*SeedResult, error) {
	log.Println("Clearing all data...")
	if err := TruncateAllTables(); err != nil {
		return nil, fmt.Errorf("failed to truncate tables: %w", err)
	}

	log.Println("Running seed...")
	return Seed(cfg)
}

// SeedDevelopment is a convenience function for development environment
func SeedDevelopment() (*SeedResult, error) {
	cfg := DefaultSeedConfig()
	cfg.CreateTestUsers = true
	cfg.TestUserCount = 8
	return Seed(cfg)
}

// SeedProduction is a convenience function for production environment (admin only)
func SeedProduction(adminEmail, adminPassword string) (*user.User, error) {
	cfg := &SeedConfig{
		AdminEmail:      adminEmail,
		AdminPassword:   adminPassword,
		CreateTestUsers: false,
	}
	return SeedMinimal(cfg)
}
