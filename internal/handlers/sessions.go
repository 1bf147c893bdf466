package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/kpszeniczka/temperature-calibration-system/internal/service"

	"github.com/gin-gonic/gin"
)

const defaultSessionLimit = 100

// sessionID parses the :id path parameter. Writes a 400 and returns false on
// malformed input.
func (h *Handler) sessionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) listSessions(c *gin.Context) {
	limit := defaultSessionLimit
	if s := c.Query("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}

	sessions, err := h.services.List(c.Request.Context(), limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to list sessions", "sessions_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) getSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	sess, err := h.services.Get(c.Request.Context(), id)
	if err != nil {
		h.sessionError(c, id, err, "sessions_get_failed")
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) getSessionResults(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	results, err := h.services.Results(c.Request.Context(), id)
	if err != nil {
		h.sessionError(c, id, err, "sessions_results_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "results": results})
}

func (h *Handler) getSessionMeasurements(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	measurements, err := h.services.Measurements(c.Request.Context(), id)
	if err != nil {
		h.sessionError(c, id, err, "sessions_measurements_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "measurements": measurements})
}

func (h *Handler) deleteSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	if err := h.services.Delete(c.Request.Context(), id); err != nil {
		h.sessionError(c, id, err, "sessions_delete_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "session_id": id})
}

// sessionError distinguishes unknown ids from storage failures.
func (h *Handler) sessionError(c *gin.Context, id int64, err error, logKey string) {
	if errors.Is(err, service.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found", "session_id": id})
		return
	}
	h.logAndJSONError(c, http.StatusInternalServerError, "storage failure", logKey, err, "session_id", id)
}
