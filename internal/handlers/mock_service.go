package handlers

import (
	"context"
	"net/http"

	"github.com/kpszeniczka/temperature-calibration-system/internal/device"
	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
	"github.com/kpszeniczka/temperature-calibration-system/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}

func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}

func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockCalibration struct {
	connectErr    error
	disconnectErr error
	scanPorts     []device.PortInfo
	scanErr       error
	configureErr  error
	pointsErr     error
	sessionID     int64
	sessionErr    error
	startErr      error
	setpointErr   error
	state         models.EngineState
	status        models.StatusSnapshot
	plot          models.PlotData
	report        models.SessionReport

	stopped  bool
	paused   bool
	resumed  bool
	lastInfo models.SessionInfo
	events   chan models.Event

	lastChannels []string
	lastPoints   []float64
	lastSetpoint float64
}

func (m *mockCalibration) ConnectDevices(_, _ string) error { return m.connectErr }
func (m *mockCalibration) DisconnectDevices() error { return m.disconnectErr }

func (m *mockCalibration) ScanPorts() ([]device.PortInfo, error) { return m.scanPorts, m.scanErr }

func (m *mockCalibration) Configure(channels []string, _ map[string]string) error {
	m.lastChannels = channels
	return m.configureErr
}

func (m *mockCalibration) SetPoints(points []float64) error {
	m.lastPoints = points
	return m.pointsErr
}

func (m *mockCalibration) StartSession(_ context.Context, info models.SessionInfo) (int64, error) {
	m.lastInfo = info
	return m.sessionID, m.sessionErr
}

func (m *mockCalibration) Start() error { return m.startErr }
func (m *mockCalibration) Stop()        { m.stopped = true }
func (m *mockCalibration) Pause()       { m.paused = true }
func (m *mockCalibration) Resume()      { m.resumed = true }

func (m *mockCalibration) SetSetpoint(value float64) error {
	m.lastSetpoint = value
	return m.setpointErr
}

func (m *mockCalibration) State() models.EngineState { return m.state }
func (m *mockCalibration) Status() models.StatusSnapshot { return m.status }
func (m *mockCalibration) PlotData() models.PlotData { return m.plot }
func (m *mockCalibration) Report() models.SessionReport { return m.report }

func (m *mockCalibration) Subscribe() (<-chan models.Event, func()) {
	if m.events != nil {
		return m.events, func() {}
	}
	ch := make(chan models.Event)
	return ch, func() { close(ch) }
}

type mockSessions struct {
	sessions     []models.Session
	session      *models.Session
	results      []models.PointResult
	measurements []models.Measurement
	err          error

	deletedID int64
}

func (m *mockSessions) List(context.Context, int) ([]models.Session, error) {
	return m.sessions, m.err
}

func (m *mockSessions) Get(_ context.Context, id int64) (*models.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

func (m *mockSessions) Results(context.Context, int64) ([]models.PointResult, error) {
	return m.results, m.err
}

func (m *mockSessions) Measurements(context.Context, int64) ([]models.Measurement, error) {
	return m.measurements, m.err
}

func (m *mockSessions) Delete(_ context.Context, id int64) error {
	m.deletedID = id
	return m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
