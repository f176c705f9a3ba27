package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/httpapi"
	"rollcall/internal/lock"
	"rollcall/internal/queue"
	"rollcall/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func run(cfg config.App) error {
	ctx := context.Background()

	var (
		db         *store.DB
		repo       attendance.Store
		redisStore *store.Redis
	)
	if cfg.StoreBackend == "memory" {
		log.Println("using in-memory store")
		repo = attendance.NewMemStore()
	} else {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		pg := attendance.NewRepository(db.Client)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		repo = pg
	}

	needsRedis := cfg.QueueBackend == "redis" || cfg.LockBackend == "redis"
	if needsRedis {
		redisStore = store.NewRedis(cfg.RedisAddr)
	}

	var locker lock.Keyed
	if cfg.LockBackend == "redis" {
		locker = lock.NewRedis(redisStore.Client, cfg.LockTTL)
	} else {
		locker = lock.NewInMemory()
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisStore.Client, queue.DefaultKey)
	}

	svc := attendance.NewService(repo, locker)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpapi.New(svc, cfg, q, db, redisStore).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}
