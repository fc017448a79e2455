package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vcattend/internal/attendance"
	"vcattend/internal/report"
	"vcattend/internal/tracker"
)

// MessageSender is the part of the bot API the handler talks to.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TrackerService drives the attendance engine on behalf of the admin UI.
type TrackerService interface {
	RegisterGroup(ctx context.Context, groupID int64) (string, error)
	Groups(ctx context.Context) ([]attendance.Group, error)
	GroupName(ctx context.Context, groupID int64) string
	StartTracking(ctx context.Context, groupID int64, name string) (int64, error)
	StopTracking(ctx context.Context, groupID int64) (int64, error)
	IsActive(groupID int64) bool
	ActiveSessions() map[int64]int64
	RecentSessions(ctx context.Context, limit int) ([]attendance.Session, error)
	TableReport(ctx context.Context, sessionID int64) ([]byte, string, error)
	TextReport(ctx context.Context, sessionID int64) ([]string, error)
}

// The admin flow asks for free-text input in two places; pending tracks what
// the next private message from that admin means.
type pending struct {
	awaitGroupID bool
	awaitName    bool
	groupID      int64
}

// Handler reacts to admin commands and menu callbacks.
type Handler struct {
	Bot     MessageSender
	Service TrackerService

	mu     sync.Mutex
	states map[int64]pending
}

// NewHandler builds a handler.
func NewHandler(bot MessageSender, service TrackerService) *Handler {
	return &Handler{
		Bot:     bot,
		Service: service,
		states:  make(map[int64]pending),
	}
}

// HandleStart answers /start with the main menu.
func (h *Handler) HandleStart(msg *tgbotapi.Message) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, "👋 Voice-chat attendance tracker")
	reply.ReplyMarkup = h.mainMenu(context.Background())
	sendMessage(h.Bot, reply)
}

// HandleCallback routes inline-keyboard presses.
func (h *Handler) HandleCallback(q *tgbotapi.CallbackQuery) {
	ctx := context.Background()
	data := q.Data
	adminID := q.From.ID
	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID

	if _, err := h.Bot.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		log.Printf("telegram: answering callback: %v", err)
	}

	switch {
	case data == "main_menu" || data == "refresh":
		h.clearState(adminID)
		h.edit(chatID, msgID, "Main menu:", h.mainMenu(ctx))

	case data == "manage_groups":
		h.showGroups(ctx, chatID, msgID)

	case data == "add_grp":
		h.setState(adminID, pending{awaitGroupID: true})
		sendMessage(h.Bot, tgbotapi.NewEditMessageText(chatID, msgID, "Send the group id now:"))

	case data == "start_flow":
		h.startFlow(ctx, q)

	case strings.HasPrefix(data, "sel_"):
		gid, ok := suffixID(data, "sel_")
		if !ok {
			return
		}
		h.setState(adminID, pending{awaitName: true, groupID: gid})
		sendMessage(h.Bot, tgbotapi.NewEditMessageText(chatID, msgID, "Send the session name:"))

	case strings.HasPrefix(data, "stop_"):
		gid, ok := suffixID(data, "stop_")
		if !ok {
			return
		}
		h.stopTracking(ctx, chatID, msgID, gid)

	case data == "list_sessions":
		h.showArchive(ctx, chatID, msgID)

	case strings.HasPrefix(data, "sess_"):
		sid, ok := suffixID(data, "sess_")
		if !ok {
			return
		}
		h.edit(chatID, msgID, fmt.Sprintf("📊 Report options for session %d:", sid), reportMenu(sid, "list_sessions"))

	case strings.HasPrefix(data, "rep_"):
		sid, ok := suffixID(data, "rep_")
		if !ok {
			return
		}
		h.sendTableReport(ctx, chatID, sid)

	case strings.HasPrefix(data, "txt_"):
		sid, ok := suffixID(data, "txt_")
		if !ok {
			return
		}
		h.sendTextReport(ctx, chatID, sid)
	}
}

// HandleText consumes a private message when the admin owes the bot an input.
func (h *Handler) HandleText(msg *tgbotapi.Message) {
	ctx := context.Background()
	adminID := msg.From.ID
	st, ok := h.takeState(adminID)
	if !ok {
		return
	}

	switch {
	case st.awaitGroupID:
		gid, err := strconv.ParseInt(strings.TrimSpace(msg.Text), 10, 64)
		if err != nil {
			h.setState(adminID, st)
			sendMessage(h.Bot, tgbotapi.NewMessage(msg.Chat.ID, "That is not a group id, try again:"))
			return
		}
		title, err := h.Service.RegisterGroup(ctx, gid)
		if err != nil {
			log.Printf("telegram: registering group %d: %v", gid, err)
			sendMessage(h.Bot, tgbotapi.NewMessage(msg.Chat.ID, "❌ Could not register that group."))
			return
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf("✅ Added: %s", title))
		reply.ReplyMarkup = h.mainMenu(ctx)
		sendMessage(h.Bot, reply)

	case st.awaitName:
		name := strings.TrimSpace(msg.Text)
		sessionID, err := h.Service.StartTracking(ctx, st.groupID, name)
		if err != nil {
			if errors.Is(err, tracker.ErrAlreadyActive) {
				sendMessage(h.Bot, tgbotapi.NewMessage(msg.Chat.ID, "The session is already running!"))
				return
			}
			log.Printf("telegram: starting session for group %d: %v", st.groupID, err)
			sendMessage(h.Bot, tgbotapi.NewMessage(msg.Chat.ID, "❌ Could not start tracking."))
			return
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf("✅ Started: %s (session %d)", name, sessionID))
		reply.ReplyMarkup = h.mainMenu(ctx)
		sendMessage(h.Bot, reply)
	}
}

func (h *Handler) startFlow(ctx context.Context, q *tgbotapi.CallbackQuery) {
	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID
	groups, err := h.Service.Groups(ctx)
	if err != nil {
		log.Printf("telegram: listing groups: %v", err)
		return
	}
	if len(groups) == 0 {
		h.alert(q.ID, "Add a group first")
		return
	}
	if len(groups) == 1 {
		g := groups[0]
		if h.Service.IsActive(g.ID) {
			h.alert(q.ID, "The session is already running!")
			return
		}
		h.setState(q.From.ID, pending{awaitName: true, groupID: g.ID})
		sendMessage(h.Bot, tgbotapi.NewEditMessageText(chatID, msgID,
			fmt.Sprintf("📝 Starting in: %s\nSend the session name:", g.Title)))
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, g := range groups {
		if h.Service.IsActive(g.ID) {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(g.Title, fmt.Sprintf("sel_%d", g.ID))))
	}
	rows = append(rows, backRow("main_menu"))
	h.edit(chatID, msgID, "Pick a group:", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (h *Handler) stopTracking(ctx context.Context, chatID int64, msgID int, groupID int64) {
	sessionID, err := h.Service.StopTracking(ctx, groupID)
	if err != nil {
		if errors.Is(err, tracker.ErrNotActive) {
			h.edit(chatID, msgID, "Nothing is running for that group.", h.mainMenu(ctx))
			return
		}
		log.Printf("telegram: stopping group %d: %v", groupID, err)
		return
	}
	h.edit(chatID, msgID, "🛑 Session stopped.\nPick a report format:", reportMenu(sessionID, "main_menu"))
}

func (h *Handler) showGroups(ctx context.Context, chatID int64, msgID int) {
	groups, err := h.Service.Groups(ctx)
	if err != nil {
		log.Printf("telegram: listing groups: %v", err)
		return
	}
	text := "Groups:\n"
	for _, g := range groups {
		text += fmt.Sprintf("- %s\n", g.Title)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ Add", "add_grp"),
		tgbotapi.NewInlineKeyboardButtonData("Back", "main_menu"),
	))
	h.edit(chatID, msgID, text, markup)
}

func (h *Handler) showArchive(ctx context.Context, chatID int64, msgID int) {
	sessions, err := h.Service.RecentSessions(ctx, 5)
	if err != nil {
		log.Printf("telegram: listing sessions: %v", err)
		return
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range sessions {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s.Name, fmt.Sprintf("sess_%d", s.ID))))
	}
	rows = append(rows, backRow("main_menu"))
	h.edit(chatID, msgID, "📂 Archive:", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (h *Handler) sendTableReport(ctx context.Context, chatID int64, sessionID int64) {
	data, filename, err := h.Service.TableReport(ctx, sessionID)
	if err != nil {
		if errors.Is(err, report.ErrEmptySession) {
			sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "The list is empty."))
			return
		}
		log.Printf("telegram: table report for session %d: %v", sessionID, err)
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.Caption = "📊 CSV report"
	sendMessage(h.Bot, doc)
}

func (h *Handler) sendTextReport(ctx context.Context, chatID int64, sessionID int64) {
	pages, err := h.Service.TextReport(ctx, sessionID)
	if err != nil {
		if errors.Is(err, report.ErrEmptySession) {
			sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "The list is empty."))
			return
		}
		log.Printf("telegram: text report for session %d: %v", sessionID, err)
		return
	}
	for _, page := range pages {
		msg := tgbotapi.NewMessage(chatID, page)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		sendMessage(h.Bot, msg)
	}
}

// mainMenu builds the root keyboard: a stop button per running session on
// top, then the static actions.
func (h *Handler) mainMenu(ctx context.Context) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for gid := range h.Service.ActiveSessions() {
		name := h.Service.GroupName(ctx, gid)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🛑 Stop: "+name, fmt.Sprintf("stop_%d", gid))))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🆕 New session", "start_flow")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📂 Archive", "list_sessions")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⚙️ Groups", "manage_groups")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("♻️ Refresh", "refresh")),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func reportMenu(sessionID int64, back string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📂 CSV file", fmt.Sprintf("rep_%d", sessionID))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📜 Text list", fmt.Sprintf("txt_%d", sessionID))),
		backRow(back),
	)
}

func backRow(target string) []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔙 Back", target))
}

func (h *Handler) edit(chatID int64, msgID int, text string, markup tgbotapi.InlineKeyboardMarkup) {
	sendMessage(h.Bot, tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, markup))
}

func (h *Handler) alert(callbackID, text string) {
	if _, err := h.Bot.Request(tgbotapi.NewCallbackWithAlert(callbackID, text)); err != nil {
		log.Printf("telegram: sending alert: %v", err)
	}
}

func (h *Handler) setState(adminID int64, st pending) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states[adminID] = st
}

func (h *Handler) clearState(adminID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.states, adminID)
}

func (h *Handler) takeState(adminID int64) (pending, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.states[adminID]
	if ok {
		delete(h.states, adminID)
	}
	return st, ok
}

func suffixID(data, prefix string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
