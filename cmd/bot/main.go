package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vcattend/internal/attendance"
	"vcattend/internal/config"
	"vcattend/internal/presence"
	"vcattend/internal/queue"
	"vcattend/internal/report"
	"vcattend/internal/service"
	"vcattend/internal/store"
	"vcattend/internal/telegram"
	"vcattend/internal/tracker"
)

func main() {
	cfg := config.Load()
	if cfg.BotToken == "" {
		log.Fatal("BOT_TOKEN is not set")
	}
	if len(cfg.AdminIDs) == 0 {
		log.Fatal("ADMIN_IDS is not set")
	}

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
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema bootstrap failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var jobs queue.Queue
	if cfg.QueueBackend == "memory" {
		jobs = queue.NewInMemory(64)
	} else {
		jobs = queue.NewRedisQueue(redisClient.Client, "vcattend:reports")
	}

	repo := attendance.NewRepository(db.Client)
	platform := presence.NewClient(cfg.PresenceURL)
	resolver := presence.NewResolver(platform, cfg.FetchLimit)
	registry := tracker.NewRegistry(repo)
	scheduler := tracker.NewScheduler(resolver, repo, cfg.PollInterval)
	reports := report.NewGenerator(repo)
	svc := service.New(repo, registry, scheduler, reports, platform, jobs)

	bot, err := telegram.NewBot(cfg, svc)
	if err != nil {
		log.Fatalf("bot init failed: %v", err)
	}

	bot.Run(ctx)
}
