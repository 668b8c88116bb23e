package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"attendro/internal/availability"
	"attendro/internal/config"
	"attendro/internal/leave"
	"attendro/internal/queue"
	"attendro/internal/roster"
	"attendro/internal/store"
	"attendro/internal/substitution"
	"attendro/internal/timetable"
)

// Worker consumes leave-approval messages and runs automatic substitution
// resolution. The API also resolves synchronously on approval; the engine's
// covered-slot filter makes the second run a no-op, and the stale-leave check
// covers approvals withdrawn before the message is picked up.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendro:events")
	}

	slots := timetable.NewRepository(db.Client)
	pool := roster.NewRepository(db.Client)
	leaves := leave.NewRepository(db.Client)
	assignments := substitution.NewRepository(db.Client)
	resolver := availability.NewResolver(slots, leaves, assignments, cfg.MiddayBoundary)
	engine := substitution.NewEngine(slots, pool, assignments, leaves, resolver, cfg.MiddayBoundary)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for leave approvals...")
	for msg := range messages {
		if msg.Type != leave.ApprovedMessageType {
			continue
		}
		var payload leave.ApprovedPayload
		if err := json.Unmarshal(msg.Body, &payload); err != nil {
			log.Printf("bad message body: %v", err)
			continue
		}

		summary, err := engine.ResolveLeave(ctx, payload.LeaveID)
		if errors.Is(err, substitution.ErrStaleLeave) {
			log.Printf("leave %s no longer approved, skipping", payload.LeaveID)
			continue
		}
		if err != nil {
			log.Printf("resolve leave %s failed: %v", payload.LeaveID, err)
			continue
		}
		log.Printf("leave %s: assigned %d substitute(s), %d slot(s) left for manual handling",
			payload.LeaveID, len(summary.Assigned), len(summary.Uncovered))
	}

	log.Println("worker stopped")
}
