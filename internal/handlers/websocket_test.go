package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
	"github.com/kpszeniczka/temperature-calibration-system/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// --- parseInterval unit tests ---

func TestParseInterval(t *testing.T) {
	h := NewHandler(&service.Service{}, nil)

	cases := []struct {
		name string
		u    string
		want time.Duration
	}{
		{"default_when_missing", "/ws", 1 * time.Second},
		{"interval_string_valid", "/ws?interval=200ms", 200 * time.Millisecond},
		{"interval_ms_valid", "/ws?interval_ms=150", 150 * time.Millisecond},
		{"interval_too_large", "/ws?interval=20s", 1 * time.Second},
		{"interval_ms_too_large", "/ws?interval_ms=20000", 1 * time.Second},
		{"interval_invalid_string", "/ws?interval=bogus", 1 * time.Second},
		{"interval_ms_invalid", "/ws?interval_ms=NaN", 1 * time.Second},
		{"both_present_interval_wins", "/ws?interval=2s&interval_ms=150", 2 * time.Second},
		{"both_present_invalid_interval_ms_used", "/ws?interval=bogus&interval_ms=250", 250 * time.Millisecond},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.u, nil)
			c, _ := gin.CreateTestContext(w)
			c.Request = req
			got := h.parseInterval(c)
			if got != tc.want {
				t.Fatalf("got %v, want %v for %s", got, tc.want, tc.u)
			}
		})
	}
}

// --- websocket integration tests ---

func dialWS(t *testing.T, srv *httptest.Server, rawQuery string) *websocket.Conn {
	t.Helper()
	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = "/ws"
	u.RawQuery = rawQuery

	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	return conn
}

func TestWebSocket_StatusStream_InitialAndPeriodic(t *testing.T) {
	cal := &mockCalibration{
		status: models.StatusSnapshot{
			State:         models.StateRunning,
			CurrentPoint:  2,
			TotalPoints:   5,
			CurrentTarget: 150,
		},
	}
	s := &service.Service{Calibration: cal}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(s, nil)
	r.GET("/ws", h.wsConnect)

	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dialWS(t, srv, "interval_ms=20") // fast ticks for the test
	defer conn.Close()

	type envelope struct {
		Type  string          `json:"type"`
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}

	// Read initial status
	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if env.Type != "status" || len(env.Data) == 0 {
		t.Fatalf("bad envelope: %+v", env)
	}
	var st models.StatusSnapshot
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if st.State != models.StateRunning || st.CurrentPoint != 2 || st.CurrentTarget != 150 {
		t.Fatalf("unexpected status: %+v", st)
	}

	// Read a subsequent tick
	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	env = envelope{}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read second: %v", err)
	}
	if env.Type != "status" {
		t.Fatalf("expected type=status, got %+v", env)
	}
}

func TestWebSocket_ForwardsEngineEvents(t *testing.T) {
	cal := &mockCalibration{events: make(chan models.Event, 1)}
	s := &service.Service{Calibration: cal}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(s, nil)
	r.GET("/ws", h.wsConnect)

	srv := httptest.NewServer(r)
	defer srv.Close()

	// Slow ticker so the event arrives before the next status frame.
	conn := dialWS(t, srv, "interval=10s")
	defer conn.Close()

	type envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	// Skip the initial status frame.
	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if env.Type != "status" {
		t.Fatalf("expected initial status, got %+v", env)
	}

	cal.events <- models.Event{
		ID:         "ev-1",
		Type:       models.EventMeasurement,
		OccurredAt: time.Now(),
		Payload:    models.MeasurementEvent{Channel: "B0", Measured: 150.1, Reference: 150.0},
	}

	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	env = envelope{}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if env.Type != models.EventMeasurement {
		t.Fatalf("expected measurement event, got %+v", env)
	}
	var ev models.Event
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.ID != "ev-1" || ev.Type != models.EventMeasurement {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
