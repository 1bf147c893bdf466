package service

import (
	"context"

	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
	"github.com/kpszeniczka/temperature-calibration-system/internal/repository"
)

// Recorder adapts the repository layer to the engine's persistence
// collaborator.
type Recorder struct {
	sessions     repository.Sessions
	measurements repository.Measurements
	results      repository.Results
}

func NewRecorder(repos *repository.Repository) *Recorder {
	return &Recorder{
		sessions:     repos.Sessions,
		measurements: repos.Measurements,
		results:      repos.Results,
	}
}

func (r *Recorder) CreateSession(ctx context.Context, info models.SessionInfo) (int64, error) {
	return r.sessions.Create(ctx, info)
}

func (r *Recorder) AddMeasurement(ctx context.Context, sessionID int64, m models.Measurement) error {
	return r.measurements.Add(ctx, sessionID, m)
}

func (r *Recorder) AddResult(ctx context.Context, sessionID int64, res models.PointResult) error {
	return r.results.Add(ctx, sessionID, res)
}

func (r *Recorder) FinalizeSession(ctx context.Context, sessionID int64) error {
	return r.sessions.UpdateEndTime(ctx, sessionID)
}
