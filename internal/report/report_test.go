package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"vcattend/internal/attendance"
)

type fakeStore struct {
	records []attendance.Record
	session attendance.Session
	err     error
}

func (f *fakeStore) List(ctx context.Context, sessionID int64) ([]attendance.Record, error) {
	return f.records, f.err
}

func (f *fakeStore) GetSession(ctx context.Context, sessionID int64) (attendance.Session, error) {
	if f.session.ID == 0 {
		return attendance.Session{}, errors.New("not found")
	}
	return f.session, nil
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		secs int64
		want string
	}{
		{0, "00:00:00"},
		{30, "00:00:30"},
		{59, "00:00:59"},
		{60, "00:01:00"},
		{3661, "01:01:01"},
		{86399, "23:59:59"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.secs); got != c.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", c.secs, got, c.want)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Ann", "Ann"},
		{"  Ann   Lee ", "Ann Lee"},
		{"", "Guest"},
		{"   ", "Guest"},
		{"<b>Ann</b>", "&lt;b&gt;Ann&lt;/b&gt;"},
	}
	for _, c := range cases {
		if got := SanitizeName(c.in); got != c.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRenderTable(t *testing.T) {
	store := &fakeStore{records: []attendance.Record{
		{UserID: 1, UserName: "Ann", DurationSeconds: 3661},
		{UserID: 2, UserName: "Bo", DurationSeconds: 59},
	}}
	g := NewGenerator(store)

	data, filename, err := g.RenderTable(context.Background(), 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filename != "Report_12.csv" {
		t.Fatalf("unexpected filename %q", filename)
	}

	body := string(data)
	if !strings.HasPrefix(body, "\xEF\xBB\xBF") {
		t.Fatal("expected a UTF-8 BOM")
	}
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(body, "\xEF\xBB\xBF")), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "Name,ID,Minutes,Time" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != "Ann,1,61.02,01:01:01" {
		t.Fatalf("unexpected first row %q", lines[1])
	}
	if lines[2] != "Bo,2,0.98,00:00:59" {
		t.Fatalf("unexpected second row %q", lines[2])
	}
}

func TestRenderTable_EmptySession(t *testing.T) {
	g := NewGenerator(&fakeStore{})

	if _, _, err := g.RenderTable(context.Background(), 1); !errors.Is(err, ErrEmptySession) {
		t.Fatalf("expected ErrEmptySession, got %v", err)
	}
}

func TestRenderPagedText_EmptySession(t *testing.T) {
	g := NewGenerator(&fakeStore{})

	if _, err := g.RenderPagedText(context.Background(), 1); !errors.Is(err, ErrEmptySession) {
		t.Fatalf("expected ErrEmptySession, got %v", err)
	}
}

func TestRenderPagedText_SinglePage(t *testing.T) {
	store := &fakeStore{
		records: []attendance.Record{
			{UserID: 1, UserName: "Ann", DurationSeconds: 30},
			{UserID: 2, UserName: "", DurationSeconds: 10},
		},
		session: attendance.Session{ID: 12, Name: "Algebra <1>"},
	}
	g := NewGenerator(store)

	pages, err := g.RenderPagedText(context.Background(), 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected one page, got %d", len(pages))
	}
	page := pages[0]
	if !strings.Contains(page, "Algebra &lt;1&gt;") {
		t.Fatalf("expected escaped session name in header, got %q", page)
	}
	if !strings.Contains(page, `1. <a href="tg://user?id=1">Ann</a>`) {
		t.Fatalf("missing first line: %q", page)
	}
	if !strings.Contains(page, "00:00:30") {
		t.Fatalf("missing formatted duration: %q", page)
	}
	if !strings.Contains(page, ">Guest</a>") {
		t.Fatalf("blank name should render as Guest: %q", page)
	}
}

func TestRenderPagedText_PaginationBound(t *testing.T) {
	var records []attendance.Record
	for i := 1; i <= 300; i++ {
		records = append(records, attendance.Record{
			UserID:          int64(i),
			UserName:        fmt.Sprintf("Participant Number %03d", i),
			DurationSeconds: int64((301 - i) * 10),
		})
	}
	store := &fakeStore{records: records, session: attendance.Session{ID: 3, Name: "Big"}}
	g := NewGenerator(store)

	pages, err := g.RenderPagedText(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) < 2 {
		t.Fatalf("expected multiple pages for 300 records, got %d", len(pages))
	}

	total := 0
	for i, page := range pages {
		if len(page) > MaxPageSize {
			t.Fatalf("page %d exceeds %d characters: %d", i, MaxPageSize, len(page))
		}
		// every page is whole lines
		if !strings.HasSuffix(page, "\n") {
			t.Fatalf("page %d does not end on a line boundary", i)
		}
		total += strings.Count(page, "tg://user?id=")
	}
	if total != len(records) {
		t.Fatalf("concatenated pages hold %d records, want %d", total, len(records))
	}

	// ranks stay in order across page boundaries
	joined := strings.Join(pages, "")
	first := strings.Index(joined, `<a href="tg://user?id=1">`)
	last := strings.Index(joined, `<a href="tg://user?id=300">`)
	if first < 0 || last < 0 || first > last {
		t.Fatal("record order broken across pages")
	}
}
