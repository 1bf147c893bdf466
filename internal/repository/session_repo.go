package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
)

type SessionSQLite struct {
	db *sql.DB
}

func NewSessionSQLite(db *sql.DB) *SessionSQLite { return &SessionSQLite{db: db} }

var _ Sessions = (*SessionSQLite)(nil)

const (
	insertSessionSQL = `
		INSERT INTO calibration_sessions
			(start_time, operator, client, order_number, ambient_temperature, relative_humidity, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	updateSessionEndSQL = `UPDATE calibration_sessions SET end_time = ? WHERE session_id = ?`
	selectSessionSQL    = `
		SELECT session_id, start_time, end_time, operator, client, order_number,
		       ambient_temperature, relative_humidity, notes
		FROM calibration_sessions WHERE session_id = ?
	`
	listSessionsSQL = `
		SELECT session_id, start_time, end_time, operator, client, order_number,
		       ambient_temperature, relative_humidity, notes
		FROM calibration_sessions ORDER BY start_time DESC LIMIT ?
	`
	deleteSessionSQL = `DELETE FROM calibration_sessions WHERE session_id = ?`
)

// Create inserts a session row stamped with the current UTC time.
func (r *SessionSQLite) Create(ctx context.Context, info models.SessionInfo) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertSessionSQL,
		time.Now().UTC(),
		info.Operator,
		info.Client,
		info.OrderNumber,
		info.AmbientC,
		info.HumidityPct,
		info.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("session last insert id: %w", err)
	}
	return id, nil
}

// UpdateEndTime stamps the session's end time with now (UTC).
func (r *SessionSQLite) UpdateEndTime(ctx context.Context, sessionID int64) error {
	_, err := r.db.ExecContext(ctx, updateSessionEndSQL, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("update session %d end time: %w", sessionID, err)
	}
	return nil
}

// Get fetches one session. Returns (nil, nil) when it does not exist.
func (r *SessionSQLite) Get(ctx context.Context, sessionID int64) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx, selectSessionSQL, sessionID)
	s, err := scanSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select session %d: %w", sessionID, err)
	}
	return s, nil
}

// List returns the most recently started sessions, newest first.
func (r *SessionSQLite) List(ctx context.Context, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, listSessionsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]models.Session, 0, limit)
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Delete removes a session; measurements and results cascade.
func (r *SessionSQLite) Delete(ctx context.Context, sessionID int64) error {
	_, err := r.db.ExecContext(ctx, deleteSessionSQL, sessionID)
	if err != nil {
		return fmt.Errorf("delete session %d: %w", sessionID, err)
	}
	return nil
}

func scanSession(scan func(dest ...any) error) (*models.Session, error) {
	var (
		s       models.Session
		endTime sql.NullTime
	)
	if err := scan(
		&s.ID,
		&s.StartTime,
		&endTime,
		&s.Operator,
		&s.Client,
		&s.OrderNumber,
		&s.AmbientC,
		&s.HumidityPct,
		&s.Notes,
	); err != nil {
		return nil, err
	}
	s.StartTime = s.StartTime.UTC()
	if endTime.Valid {
		t := endTime.Time.UTC()
		s.EndTime = &t
	}
	return &s, nil
}
