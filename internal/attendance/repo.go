package attendance

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repository persists groups, sessions and attendance records in Postgres.
// It is the sole mutator of attendance rows; the polling scheduler is the
// only caller of Accumulate.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertGroup registers a group or refreshes its title.
func (r *Repository) UpsertGroup(ctx context.Context, groupID int64, title string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO groups (group_id, title)
		VALUES ($1, $2)
		ON CONFLICT (group_id) DO UPDATE SET title = EXCLUDED.title
	`, groupID, title)
	return err
}

// ListGroups returns all registered groups ordered by title.
func (r *Repository) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT group_id, title FROM groups ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Title); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GroupTitle returns the stored title for a group, or ErrNotFound.
func (r *Repository) GroupTitle(ctx context.Context, groupID int64) (string, error) {
	var title string
	err := r.db.QueryRowContext(ctx, `SELECT title FROM groups WHERE group_id = $1`, groupID).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return title, err
}

// CreateSession inserts an active session row and returns its id.
func (r *Repository) CreateSession(ctx context.Context, groupID int64, name string, start time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (group_id, name, start_time, active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id
	`, groupID, name, start).Scan(&id)
	return id, err
}

// CloseSession marks a session inactive. The transition is terminal.
func (r *Repository) CloseSession(ctx context.Context, sessionID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET active = FALSE WHERE id = $1`, sessionID)
	return err
}

// GetSession returns a single session by id.
func (r *Repository) GetSession(ctx context.Context, sessionID int64) (Session, error) {
	var s Session
	err := r.db.QueryRowContext(ctx, `
		SELECT id, group_id, name, start_time, active FROM sessions WHERE id = $1
	`, sessionID).Scan(&s.ID, &s.GroupID, &s.Name, &s.StartTime, &s.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

// ListRecentSessions returns the newest sessions first, for the archive menu.
func (r *Repository) ListRecentSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, group_id, name, start_time, active
		FROM sessions ORDER BY id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.GroupID, &s.Name, &s.StartTime, &s.Active); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Accumulate merges one tick's observations into the session's records as a
// single transaction: first sight inserts with duration = step, every later
// sight adds step and refreshes the display name. A failing observation is
// rolled back to its savepoint and skipped so the rest of the batch still
// commits.
func (r *Repository) Accumulate(ctx context.Context, sessionID int64, obs []Observation, step int64) error {
	if len(obs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, o := range obs {
		if o.UserID == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `SAVEPOINT obs`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attendance (user_id, session_id, user_name, duration_seconds)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, session_id)
			DO UPDATE SET duration_seconds = attendance.duration_seconds + $4,
			              user_name = EXCLUDED.user_name
		`, o.UserID, sessionID, o.Name, step)
		if err != nil {
			log.Printf("accumulate: skipping user %d in session %d: %v", o.UserID, sessionID, err)
			if _, err := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT obs`); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, `RELEASE SAVEPOINT obs`); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// List returns a session's records sorted by accumulated duration, longest
// first. Reporting reads exclusively through this.
func (r *Repository) List(ctx context.Context, sessionID int64) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, session_id, user_name, duration_seconds
		FROM attendance
		WHERE session_id = $1
		ORDER BY duration_seconds DESC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.UserID, &rec.SessionID, &rec.UserName, &rec.DurationSeconds); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
