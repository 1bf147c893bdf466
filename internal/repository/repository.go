package repository

import (
	"context"
	"database/sql"

	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
)

// Sessions manages calibration session rows.
type Sessions interface {
	Create(ctx context.Context, info models.SessionInfo) (int64, error)
	UpdateEndTime(ctx context.Context, sessionID int64) error
	Get(ctx context.Context, sessionID int64) (*models.Session, error)
	List(ctx context.Context, limit int) ([]models.Session, error)
	Delete(ctx context.Context, sessionID int64) error
}

// Measurements is the append-only raw sample store.
type Measurements interface {
	Add(ctx context.Context, sessionID int64, m models.Measurement) error
	ListBySession(ctx context.Context, sessionID int64) ([]models.Measurement, error)
}

// Results stores the per-point aggregates.
type Results interface {
	Add(ctx context.Context, sessionID int64, r models.PointResult) error
	ListBySession(ctx context.Context, sessionID int64) ([]models.PointResult, error)
}

// Authorization manages operator accounts.
type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

type Repository struct {
	Sessions     Sessions
	Measurements Measurements
	Results      Results
	Auth         Authorization
}

func NewRepository(conn *sql.DB) *Repository {
	return &Repository{
		Sessions:     NewSessionSQLite(conn),
		Measurements: NewMeasurementSQLite(conn),
		Results:      NewResultSQLite(conn),
		Auth:         NewUserRepository(conn),
	}
}
