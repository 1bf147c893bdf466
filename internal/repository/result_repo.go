package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
)

type ResultSQLite struct {
	db *sql.DB
}

func NewResultSQLite(db *sql.DB) *ResultSQLite { return &ResultSQLite{db: db} }

var _ Results = (*ResultSQLite)(nil)

const (
	insertResultSQL = `
		INSERT INTO calibration_results
			(session_id, channel_name, point_temperature, n_measurements,
			 avg_measured_temp, avg_reference_temp, std_dev, error,
			 max_absolute_error, type_a_uncertainty, type_b_uncertainty,
			 standard_uncertainty, expanded_uncertainty, sensor_class, is_compliant)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	listResultsSQL = `
		SELECT channel_name, point_temperature, n_measurements, avg_measured_temp,
		       avg_reference_temp, std_dev, error, max_absolute_error,
		       type_a_uncertainty, type_b_uncertainty, standard_uncertainty,
		       expanded_uncertainty, sensor_class, is_compliant
		FROM calibration_results WHERE session_id = ?
		ORDER BY point_temperature ASC, channel_name ASC
	`
)

// Add stores one per-point aggregate.
func (r *ResultSQLite) Add(ctx context.Context, sessionID int64, res models.PointResult) error {
	_, err := r.db.ExecContext(ctx, insertResultSQL,
		sessionID,
		res.Channel,
		res.PointTarget,
		res.N,
		res.AvgMeasured,
		res.AvgReference,
		res.StdDev,
		res.Error,
		res.MaxAbsoluteError,
		res.TypeA,
		res.TypeB,
		res.Combined,
		res.Expanded,
		res.SensorClass,
		res.Compliant,
	)
	if err != nil {
		return fmt.Errorf("insert result for session %d channel %s: %w", sessionID, res.Channel, err)
	}
	return nil
}

// ListBySession returns a session's aggregates ordered by point then channel.
func (r *ResultSQLite) ListBySession(ctx context.Context, sessionID int64) ([]models.PointResult, error) {
	rows, err := r.db.QueryContext(ctx, listResultsSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list results for session %d: %w", sessionID, err)
	}
	defer rows.Close()

	var out []models.PointResult
	for rows.Next() {
		var res models.PointResult
		if err := rows.Scan(
			&res.Channel,
			&res.PointTarget,
			&res.N,
			&res.AvgMeasured,
			&res.AvgReference,
			&res.StdDev,
			&res.Error,
			&res.MaxAbsoluteError,
			&res.TypeA,
			&res.TypeB,
			&res.Combined,
			&res.Expanded,
			&res.SensorClass,
			&res.Compliant,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
