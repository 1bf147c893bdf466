package service

import (
	"context"

	"github.com/kpszeniczka/temperature-calibration-system/internal/calibration"
	"github.com/kpszeniczka/temperature-calibration-system/internal/config"
	"github.com/kpszeniczka/temperature-calibration-system/internal/device"
	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
	"github.com/kpszeniczka/temperature-calibration-system/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Calibration exposes the run control surface: device links, channel and
// point setup, start/stop/pause/resume, and live telemetry.
type Calibration interface {
	ConnectDevices(furnacePort, multimeterPort string) error
	DisconnectDevices() error
	ScanPorts() ([]device.PortInfo, error)
	Configure(channels []string, sensorTypes map[string]string) error
	SetPoints(points []float64) error
	StartSession(ctx context.Context, info models.SessionInfo) (int64, error)
	Start() error
	Stop()
	Pause()
	Resume()
	SetSetpoint(value float64) error
	State() models.EngineState
	Status() models.StatusSnapshot
	PlotData() models.PlotData
	Report() models.SessionReport
	Subscribe() (<-chan models.Event, func())
}

// Sessions exposes read access to stored runs and their data.
type Sessions interface {
	List(ctx context.Context, limit int) ([]models.Session, error)
	Get(ctx context.Context, sessionID int64) (*models.Session, error)
	Results(ctx context.Context, sessionID int64) ([]models.PointResult, error)
	Measurements(ctx context.Context, sessionID int64) ([]models.Measurement, error)
	Delete(ctx context.Context, sessionID int64) error
}

type Service struct {
	Calibration
	Sessions
	Authorization
}

// NewService wires the repository layer and the calibration engine into the
// concrete services.
func NewService(repos *repository.Repository, engine *calibration.Engine, cfg config.Auth) *Service {
	engine.SetRecorder(NewRecorder(repos))
	return &Service{
		Calibration:   NewCalibrationService(engine),
		Sessions:      NewSessionService(repos.Sessions, repos.Measurements, repos.Results),
		Authorization: NewAuthService(repos.Auth, cfg.SigningKey),
	}
}
