package main

import (
	"context"
	"log"
	"time"

	"attendro/internal/config"
	"attendro/internal/store"
)

// Applies the Postgres schema. Safe to run repeatedly.
func main() {
	cfg := config.Load()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Println("schema applied")
}
