package service

import (
	"context"

	"github.com/kpszeniczka/temperature-calibration-system/internal/calibration"
	"github.com/kpszeniczka/temperature-calibration-system/internal/device"
	"github.com/kpszeniczka/temperature-calibration-system/internal/logger"
	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
)

// CalibrationService is a thin facade over the engine. All sequencing and
// device ownership rules live in the engine itself.
type CalibrationService struct {
	engine *calibration.Engine
}

func NewCalibrationService(engine *calibration.Engine) *CalibrationService {
	return &CalibrationService{engine: engine}
}

func (s *CalibrationService) ConnectDevices(furnacePort, multimeterPort string) error {
	return s.engine.ConnectDevices(furnacePort, multimeterPort)
}

func (s *CalibrationService) DisconnectDevices() error {
	return s.engine.DisconnectDevices()
}

// ScanPorts probes the host serial ports for known instruments. Only valid
// while no run owns the devices.
func (s *CalibrationService) ScanPorts() ([]device.PortInfo, error) {
	if s.engine.State() == models.StateRunning || s.engine.State() == models.StatePaused {
		return nil, calibration.ErrAlreadyRunning
	}
	return device.ScanPorts(logger.Default())
}

func (s *CalibrationService) Configure(channels []string, sensorTypes map[string]string) error {
	return s.engine.Configure(channels, sensorTypes)
}

func (s *CalibrationService) SetPoints(points []float64) error {
	return s.engine.SetPoints(points)
}

func (s *CalibrationService) StartSession(ctx context.Context, info models.SessionInfo) (int64, error) {
	return s.engine.StartSession(ctx, info)
}

func (s *CalibrationService) Start() error { return s.engine.Start() }

func (s *CalibrationService) Stop() { s.engine.Stop() }

func (s *CalibrationService) Pause() { s.engine.Pause() }

func (s *CalibrationService) Resume() { s.engine.Resume() }

func (s *CalibrationService) SetSetpoint(value float64) error {
	return s.engine.SetFurnaceSetpoint(value)
}

func (s *CalibrationService) State() models.EngineState { return s.engine.State() }

func (s *CalibrationService) Status() models.StatusSnapshot { return s.engine.Status() }

func (s *CalibrationService) PlotData() models.PlotData { return s.engine.PlotData() }

func (s *CalibrationService) Report() models.SessionReport { return s.engine.Report() }

func (s *CalibrationService) Subscribe() (<-chan models.Event, func()) {
	return s.engine.Subscribe()
}
