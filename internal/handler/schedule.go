package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/service"
	"github.com/labstack/echo/v4"
)

type ScheduleResponse struct {
	ScriptID string     `json:"script_id"`
	Cron     *string    `json:"cron"`
	Enabled  bool       `json:"enabled"`
	NextRun  *time.Time `json:"next_run"`
	LastRun  *time.Time `json:"last_run"`
}

func (h *ScriptHandler) GetScriptSchedule(c echo.Context) error {
	sp := new(ScriptParams)
	if err := c.Bind(sp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid script ID")
	}

	script, err := h.scriptService.GetScriptByID(c.Request().Context(), sp.ScriptID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "script not found")
		}
		return newError(err, http.StatusInternalServerError, "error reading script")
	}
	return c.JSON(http.StatusOK, ScheduleResponse{
		ScriptID: script.ScriptID,
		Cron:     script.ScheduleCron,
		Enabled:  script.ScheduleEnabled,
		NextRun:  script.NextRun,
		LastRun:  script.LastRun,
	})
}

func (h *ScriptHandler) PutScriptSchedule(c echo.Context) error {
	sp := new(ScheduleParams)
	if err := c.Bind(sp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid schedule data")
	}

	script, err := h.scriptService.UpdateSchedule(
		c.Request().Context(), sp.ScriptID, sp.Cron, sp.Enabled,
	)
	if err != nil {
		var invalidSchedule *service.ErrInvalidSchedule
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return newError(err, http.StatusNotFound, "script not found")
		case errors.As(err, &invalidSchedule):
			return newError(err, http.StatusBadRequest, invalidSchedule.Error())
		default:
			return newError(err, http.StatusInternalServerError, "error updating schedule")
		}
	}
	return c.JSON(http.StatusOK, ScheduleResponse{
		ScriptID: script.ScriptID,
		Cron:     script.ScheduleCron,
		Enabled:  script.ScheduleEnabled,
		NextRun:  script.NextRun,
		LastRun:  script.LastRun,
	})
}

func (h *ScriptHandler) DeleteScriptSchedule(c echo.Context) error {
	sp := new(ScriptParams)
	if err := c.Bind(sp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid script ID")
	}

	if err := h.scriptService.RemoveSchedule(c.Request().Context(), sp.ScriptID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "script not found")
		}
		return newError(err, http.StatusInternalServerError, "error removing schedule")
	}
	return c.NoContent(http.StatusNoContent)
}
