package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"classtrack/internal/attendance"
	"classtrack/internal/config"
	"classtrack/internal/queue"
	"classtrack/internal/store"
)

// Worker consumes session messages and refreshes the aggregate counts the
// list views render, keeping that work out of the bulk-mark request path.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	rosterCache := store.NewRosterCache(redisClient.Client, cfg.RosterCacheTTL)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classtrack:sessions")
	}

	repo := attendance.NewRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		switch msg.Kind {
		case queue.KindSessionMarked, queue.KindSessionCompleted:
		default:
			continue
		}

		log.Printf("refreshing counts for session %s (%s)", msg.SessionID, msg.Kind)
		if err := repo.RefreshCounts(ctx, msg.SessionID); err != nil {
			log.Printf("refresh counts for %s failed: %v", msg.SessionID, err)
			continue
		}
		if err := rosterCache.Invalidate(ctx, msg.SessionID); err != nil {
			log.Printf("cache invalidate for %s failed: %v", msg.SessionID, err)
		}
	}

	log.Println("worker stopped")
}
