package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vcattend/internal/attendance"
	"vcattend/internal/config"
	"vcattend/internal/queue"
	"vcattend/internal/report"
	"vcattend/internal/store"
)

// Worker consumes report jobs and delivers the CSV export over Telegram.
func main() {
	cfg := config.Load()
	if cfg.BotToken == "" {
		log.Fatal("BOT_TOKEN is not set")
	}
	if cfg.ReportChatID == 0 {
		log.Fatal("REPORT_CHAT_ID is not set")
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

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var jobs queue.Queue
	if cfg.QueueBackend == "memory" {
		jobs = queue.NewInMemory(64)
	} else {
		jobs = queue.NewRedisQueue(redisClient.Client, "vcattend:reports")
	}

	repo := attendance.NewRepository(db.Client)
	reports := report.NewGenerator(repo)

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("bot init failed: %v", err)
	}

	messages, err := jobs.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for report jobs...")
	for job := range messages {
		if job.Type != queue.TypeReport {
			continue
		}
		log.Printf("job %s: rendering report for session %d", job.ID, job.SessionID)

		data, filename, err := reports.RenderTable(ctx, job.SessionID)
		if err != nil {
			log.Printf("job %s: render failed: %v", job.ID, err)
			continue
		}

		doc := tgbotapi.NewDocument(cfg.ReportChatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
		doc.Caption = "📊 Session report"
		if _, err := bot.Send(doc); err != nil {
			log.Printf("job %s: delivery failed: %v", job.ID, err)
			continue
		}
		log.Printf("job %s: delivered %s", job.ID, filename)
	}

	log.Println("worker stopped")
}
