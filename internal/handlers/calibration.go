package handlers

import (
	"errors"
	"net/http"

	"github.com/kpszeniczka/temperature-calibration-system/internal/calibration"
	"github.com/kpszeniczka/temperature-calibration-system/internal/models"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK         = "ok"
	statusStarted    = "started"
	statusStopping   = "stopping"
	statusPaused     = "paused"
	statusResumed    = "resumed"
	statusConfigured = "configured"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// guardErrorStatus maps engine guard errors to HTTP codes: lifecycle
// conflicts are 409, everything the caller can fix in the request is 400.
func guardErrorStatus(err error) int {
	switch {
	case errors.Is(err, calibration.ErrAlreadyRunning), errors.Is(err, calibration.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, calibration.ErrNoPoints),
		errors.Is(err, calibration.ErrTooFewChannels),
		errors.Is(err, calibration.ErrNotConnected):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Respond with a status and include the current engine snapshot.
func (h *Handler) respondWithStatus(c *gin.Context, status string, extra gin.H) {
	resp := gin.H{"status": status, "engine": h.services.Status()}
	for k, v := range extra {
		resp[k] = v
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
		"state":  h.services.State(),
	})
}

// Request DTO for opening device links.
type connectRequest struct {
	FurnacePort    string `json:"furnace_port" binding:"required"`
	MultimeterPort string `json:"multimeter_port" binding:"required"`
}

func (h *Handler) scanPorts(c *gin.Context) {
	ports, err := h.services.ScanPorts()
	if err != nil {
		h.logAndJSONError(c, guardErrorStatus(err), "failed to scan serial ports", "devices_scan_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ports": ports})
}

func (h *Handler) connectDevices(c *gin.Context) {
	var input connectRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	if err := h.services.ConnectDevices(input.FurnacePort, input.MultimeterPort); err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, "failed to connect instruments", "devices_connect_failed", err,
			"furnace_port", input.FurnacePort, "multimeter_port", input.MultimeterPort)
		return
	}
	h.respondWithStatus(c, statusOK, nil)
}

func (h *Handler) disconnectDevices(c *gin.Context) {
	if err := h.services.DisconnectDevices(); err != nil {
		h.logAndJSONError(c, guardErrorStatus(err), "failed to disconnect instruments", "devices_disconnect_failed", err)
		return
	}
	h.respondWithStatus(c, statusOK, nil)
}

// Request DTO for the active channel set.
// Body example: {"channels":["B0","B1"],"sensor_types":{"B0":"PT100","B1":"TC_K"}}
type configureRequest struct {
	Channels    []string          `json:"channels" binding:"required"`
	SensorTypes map[string]string `json:"sensor_types"`
}

func (h *Handler) configureChannels(c *gin.Context) {
	var input configureRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	if err := h.services.Configure(input.Channels, input.SensorTypes); err != nil {
		h.logAndJSONError(c, guardErrorStatus(err), err.Error(), "calibration_configure_failed", err)
		return
	}
	h.respondWithStatus(c, statusConfigured, gin.H{"channels": input.Channels})
}

type pointsRequest struct {
	Points []float64 `json:"points" binding:"required"`
}

func (h *Handler) setPoints(c *gin.Context) {
	var input pointsRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	if err := h.services.SetPoints(input.Points); err != nil {
		h.logAndJSONError(c, guardErrorStatus(err), err.Error(), "calibration_points_failed", err)
		return
	}
	h.respondWithStatus(c, statusConfigured, gin.H{"points": input.Points})
}

// startRun opens a session with the operator metadata from the body and
// launches the run worker.
func (h *Handler) startRun(c *gin.Context) {
	var info models.SessionInfo
	if ok := h.bindJSONOrBadRequest(c, &info); !ok {
		return
	}

	sessionID, err := h.services.StartSession(c.Request.Context(), info)
	if err != nil {
		h.logAndJSONError(c, guardErrorStatus(err), "failed to open session", "calibration_session_failed", err)
		return
	}

	if err := h.services.Start(); err != nil {
		h.logAndJSONError(c, guardErrorStatus(err), err.Error(), "calibration_start_failed", err,
			"session_id", sessionID)
		return
	}
	h.respondWithStatus(c, statusStarted, gin.H{"session_id": sessionID})
}

func (h *Handler) stopRun(c *gin.Context) {
	h.services.Stop()
	h.respondWithStatus(c, statusStopping, nil)
}

func (h *Handler) pauseRun(c *gin.Context) {
	h.services.Pause()
	h.respondWithStatus(c, statusPaused, nil)
}

func (h *Handler) resumeRun(c *gin.Context) {
	h.services.Resume()
	h.respondWithStatus(c, statusResumed, nil)
}

// Pointer so an explicit 0.0 (ice point) still binds.
type setpointRequest struct {
	Value *float64 `json:"value" binding:"required"`
}

func (h *Handler) setSetpoint(c *gin.Context) {
	var input setpointRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	if err := h.services.SetSetpoint(*input.Value); err != nil {
		h.logAndJSONError(c, guardErrorStatus(err), "failed to write setpoint", "calibration_setpoint_failed", err,
			"value", *input.Value)
		return
	}
	h.respondWithStatus(c, statusOK, gin.H{"setpoint": *input.Value})
}

func (h *Handler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Status())
}

func (h *Handler) getPlotData(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.PlotData())
}

func (h *Handler) getReport(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Report())
}
