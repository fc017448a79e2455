package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"vcattend/internal/attendance"
)

// ErrEmptySession is returned when a report is requested for a session with
// no recorded attendance. Callers show it to the user; it is not a crash.
var ErrEmptySession = errors.New("session has no attendance records")

// MaxPageSize bounds one page of the text listing. Telegram rejects messages
// above 4096 characters; the original system pages at 4000 and so do we.
const MaxPageSize = 4000

// Store is the read side the generator needs.
type Store interface {
	List(ctx context.Context, sessionID int64) ([]attendance.Record, error)
	GetSession(ctx context.Context, sessionID int64) (attendance.Session, error)
}

// Generator renders attendance reports from stored records.
type Generator struct {
	store Store
}

// NewGenerator creates a generator reading from the given store.
func NewGenerator(store Store) *Generator {
	return &Generator{store: store}
}

// RenderTable exports a session as CSV, longest attendance first, and
// returns the document bytes with a suggested file name. The output starts
// with a UTF-8 BOM so spreadsheet tools detect the encoding.
func (g *Generator) RenderTable(ctx context.Context, sessionID int64) ([]byte, string, error) {
	records, err := g.store.List(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if len(records) == 0 {
		return nil, "", ErrEmptySession
	}

	var buf bytes.Buffer
	buf.WriteString("\xEF\xBB\xBF")
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Name", "ID", "Minutes", "Time"}); err != nil {
		return nil, "", err
	}
	for _, rec := range records {
		row := []string{
			rec.UserName,
			strconv.FormatInt(rec.UserID, 10),
			strconv.FormatFloat(float64(rec.DurationSeconds)/60, 'f', 2, 64),
			FormatDuration(rec.DurationSeconds),
		}
		if err := w.Write(row); err != nil {
			return nil, "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("Report_%d.csv", sessionID), nil
}

// RenderPagedText renders the session as numbered HTML lines, chunked into
// pages of at most MaxPageSize characters. Lines are appended greedily and a
// line is never split across pages: when the next line would overflow, the
// page is closed and the line opens the next one.
func (g *Generator) RenderPagedText(ctx context.Context, sessionID int64) ([]string, error) {
	records, err := g.store.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptySession
	}

	page := ""
	if sess, err := g.store.GetSession(ctx, sessionID); err == nil {
		page = fmt.Sprintf("📋 <b>Attendance: %s</b>\n\n", html.EscapeString(sess.Name))
	}

	var pages []string
	for i, rec := range records {
		line := fmt.Sprintf("%d. <a href=\"tg://user?id=%d\">%s</a> - ⏱ <b>%s</b>\n",
			i+1, rec.UserID, SanitizeName(rec.UserName), FormatDuration(rec.DurationSeconds))
		if len(page)+len(line) > MaxPageSize {
			pages = append(pages, page)
			page = ""
		}
		page += line
	}
	if page != "" {
		pages = append(pages, page)
	}
	return pages, nil
}

// SanitizeName collapses internal whitespace, substitutes a placeholder for
// blank names and escapes HTML-unsafe characters.
func SanitizeName(name string) string {
	clean := strings.Join(strings.Fields(name), " ")
	if clean == "" {
		clean = "Guest"
	}
	return html.EscapeString(clean)
}

// FormatDuration renders total seconds as zero-padded HH:MM:SS.
func FormatDuration(secs int64) string {
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
