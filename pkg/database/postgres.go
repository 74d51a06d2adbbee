package database

import (
	"fmt"
	"log"
	"time"

	"courier/config"
	"courier/internal/domain/message"
	"courier/internal/domain/notification"
	"courier/internal/domain/user"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Connect(cfg *config.Config) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	logMode := logger.Warn
	if cfg.AppMode == "debug" {
		logMode = logger.Info
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logMode),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatalf("Failed to get generic database object: %v", err)
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database connection established")
}

// Migrate applies the schema for every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&user.User{},
		&message.Message{},
		&message.MessageHistory{},
		&notification.Notification{},
	)
}

func Ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func Close() {
	sqlDB, err := DB.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}
}

func TableExists(name string) bool {
	return DB.Migrator().HasTable(name)
}

func GetTableCount(name string) (int64, error) {
	var count int64
	err := DB.Table(name).Count(&count).Error
	return count, err
}
