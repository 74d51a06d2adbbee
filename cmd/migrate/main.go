package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"courier/config"
	"courier/pkg/database"
)

const usage = `
Courier - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Run migrations
  status      Show database connection status
  seed        Seed the database with the admin user
  seed-dev    Seed with development/test data
  truncate    Truncate all tables (DANGEROUS)

Flags:
  -admin-email string  Admin email for seeding (default "admin@courier.local")
  -admin-pass string   Admin password for seeding (default "Admin@123!")

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go seed
  go run cmd/migrate/main.go seed-dev
`

func main() {
	adminEmail := flag.String("admin-email", "admin@courier.local", "Admin email for seeding")
	adminPass := flag.String("admin-pass", "Admin@123!", "Admin password for seeding")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	database.Connect(cfg)
	defer database.Close()

	switch command {
	case "up":
		runMigrationsUp()
	case "status":
		showStatus()
	case "seed":
		runSeedProduction(*adminEmail, *adminPass)
	case "seed-dev":
		runSeedDevelopment()
	case "truncate":
		runTruncate()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp() {
	log.Println("Running migrations...")

	if err := database.Migrate(database.DB); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations completed successfully!")
}

func showStatus() {
	log.Println("Checking database status...")

	if err := database.Ping(); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	tables := []string{"users", "messages", "message_histories", "notifications"}
	for _, table := range tables {
		if database.TableExists(table) {
			count, _ := database.GetTableCount(table)
			log.Printf("Table %-20s exists (%d rows)", table, count)
		} else {
			log.Printf("Table %-20s does not exist", table)
		}
	}
}

func runSeedProduction(adminEmail, adminPass string) {
	log.Println("Seeding database (production mode)...")

	u, err := database.SeedProduction(adminEmail, adminPass)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Admin user created/verified: %s (ID: %s)", adminEmail, u.ID)
}

func runSeedDevelopment() {
	log.Println("Seeding database (development mode)...")

	result, err := database.SeedDevelopment()
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Seed summary:")
	log.Printf("   - Admin user: %s", result.AdminUser.Email)
	log.Printf("   - Test users: %d", len(result.TestUsers))
	log.Printf("   - Messages: %d", len(result.Messages))
	log.Printf("   - Notifications: %d", result.Notifications)
}

func runTruncate() {
	log.Println("WARNING: This will TRUNCATE all tables!")

	if err := database.TruncateAllTables(); err != nil {
		log.Fatalf("Truncate failed: %v", err)
	}

	log.Println("All tables truncated!")
}
