package service

import (
	"context"
	"errors"

	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
	"github.com/kpszeniczka/temperature-calibration-system/internal/repository"
)

// ErrSessionNotFound is returned for lookups of unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// SessionService answers queries over stored calibration runs.
type SessionService struct {
	sessions     repository.Sessions
	measurements repository.Measurements
	results      repository.Results
}

func NewSessionService(sessions repository.Sessions, measurements repository.Measurements, results repository.Results) *SessionService {
	return &SessionService{
		sessions:     sessions,
		measurements: measurements,
		results:      results,
	}
}

func (s *SessionService) List(ctx context.Context, limit int) ([]models.Session, error) {
	return s.sessions.List(ctx, limit)
}

func (s *SessionService) Get(ctx context.Context, sessionID int64) (*models.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *SessionService) Results(ctx context.Context, sessionID int64) ([]models.PointResult, error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.results.ListBySession(ctx, sessionID)
}

func (s *SessionService) Measurements(ctx context.Context, sessionID int64) ([]models.Measurement, error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.measurements.ListBySession(ctx, sessionID)
}

func (s *SessionService) Delete(ctx context.Context, sessionID int64) error {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, sessionID)
}
