package main

// Run database migrations:
//   go run ./cmd/migrate            # up
//   go run ./cmd/migrate status
//   go run ./cmd/migrate down

import (
	"context"
	"flag"
	"log"
	"os"

	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/storage/db"
)

func main() {
	flag.Parse()
	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL is required")
		os.Exit(1)
	}
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultOptions(db.RoleMigrate))
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.Migrate(ctx, sqlDB, command, flag.Args()[min(1, flag.NArg()):]...); err != nil {
		log.Printf("migrate %s: %v", command, err)
		os.Exit(1)
	}
}
