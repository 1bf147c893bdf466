package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
)

type MeasurementSQLite struct {
	db *sql.DB
}

func NewMeasurementSQLite(db *sql.DB) *MeasurementSQLite { return &MeasurementSQLite{db: db} }

var _ Measurements = (*MeasurementSQLite)(nil)

const (
	insertMeasurementSQL = `
		INSERT INTO measurements
			(session_id, timestamp, channel, channel_name, measured_temperature,
			 reference_temperature, furnace_pv, furnace_sp, raw_value,
			 absolute_error, calibration_point)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	listMeasurementsSQL = `
		SELECT timestamp, channel, channel_name, measured_temperature,
		       reference_temperature, furnace_pv, furnace_sp, raw_value,
		       absolute_error, calibration_point
		FROM measurements WHERE session_id = ? ORDER BY timestamp ASC
	`
)

// Add appends one raw sample. A zero timestamp is stamped with now (UTC).
func (r *MeasurementSQLite) Add(ctx context.Context, sessionID int64, m models.Measurement) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, insertMeasurementSQL,
		sessionID,
		ts.UTC(),
		m.ChannelIndex,
		m.Channel,
		m.MeasuredTempC,
		m.ReferenceC,
		m.FurnacePV,
		m.FurnaceSP,
		m.RawValue,
		m.AbsoluteError,
		m.PointTarget,
	)
	if err != nil {
		return fmt.Errorf("insert measurement for session %d: %w", sessionID, err)
	}
	return nil
}

// ListBySession returns a session's samples oldest first.
func (r *MeasurementSQLite) ListBySession(ctx context.Context, sessionID int64) ([]models.Measurement, error) {
	rows, err := r.db.QueryContext(ctx, listMeasurementsSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list measurements for session %d: %w", sessionID, err)
	}
	defer rows.Close()

	var out []models.Measurement
	for rows.Next() {
		var m models.Measurement
		if err := rows.Scan(
			&m.Timestamp,
			&m.ChannelIndex,
			&m.Channel,
			&m.MeasuredTempC,
			&m.ReferenceC,
			&m.FurnacePV,
			&m.FurnaceSP,
			&m.RawValue,
			&m.AbsoluteError,
			&m.PointTarget,
		); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		m.Timestamp = m.Timestamp.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}
