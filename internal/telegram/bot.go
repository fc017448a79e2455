package telegram

import (
	"context"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vcattend/internal/config"
)

// Bot runs the administrative Telegram interface.
type Bot struct {
	api     *tgbotapi.BotAPI
	handler *Handler
	cfg     config.App
}

// NewBot connects to the Telegram bot API and wires the handler.
func NewBot(cfg config.App, service TrackerService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:     api,
		handler: NewHandler(api, service),
		cfg:     cfg,
	}, nil
}

// Run consumes updates until the context is cancelled. Only private messages
// from configured admins are acted on; everything else is dropped.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	log.Printf("bot started as @%s", b.api.Self.UserName)

	for update := range updates {
		switch {
		case update.Message != nil:
			msg := update.Message
			if !msg.Chat.IsPrivate() || msg.From == nil || !b.cfg.IsAdmin(msg.From.ID) {
				continue
			}
			switch msg.Command() {
			case "start", "help":
				b.handler.HandleStart(msg)
			case "":
				b.handler.HandleText(msg)
			}

		case update.CallbackQuery != nil:
			q := update.CallbackQuery
			if q.From == nil || !b.cfg.IsAdmin(q.From.ID) || q.Message == nil {
				continue
			}
			b.handler.HandleCallback(q)
		}
	}

	log.Println("bot stopped")
}
