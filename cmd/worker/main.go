package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/queue"
	"rollcall/internal/store"
)

// checkinEvent mirrors the payload the api publishes per recorded check-in.
type checkinEvent struct {
	Course string `json:"course"`
	Number string `json:"number"`
	Date   string `json:"date"`
}

// Worker consumes check-in events and writes an audit line per stored
// record. It shares the api's Redis queue; running it is optional.
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

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	repo := attendance.NewRepository(db.Client)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema init failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		log.Println("warning: memory queue has no publisher in this process")
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for check-in events...")
	for msg := range messages {
		if msg.Type != "checkin" {
			continue
		}

		var evt checkinEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("malformed event: %v", err)
			continue
		}

		rec, err := repo.GetRecord(ctx, evt.Course, evt.Number, evt.Date)
		if err != nil {
			log.Printf("fetch record %s/%s/%s failed: %v", evt.Course, evt.Number, evt.Date, err)
			continue
		}
		if rec == nil {
			// Teacher override may have flipped the student to Absent
			// between publish and consume.
			log.Printf("audit: %s %s %s no longer recorded", evt.Date, evt.Course, evt.Number)
			continue
		}

		log.Printf("audit: %s %s student %s (%s) recorded %s at %s",
			evt.Date, rec.Course, rec.StudentNumber, rec.StudentName, rec.Status, rec.RecordedAt.Format("15:04:05"))
	}

	log.Println("worker stopped")
}
