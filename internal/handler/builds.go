package handler

import (
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/service"
	"github.com/labstack/echo/v4"
)

func SetupBuildRoutes(g *echo.Group, buildService BuildServicer) {
	h := NewBuildHandler(buildService)
	buildsGroup := g.Group("/api/builds")
	buildsGroup.GET("/:build_id", h.GetBuild)
	buildsGroup.GET("/:build_id/output", h.GetBuildOutput)
	buildsGroup.GET("/:build_id/stream", h.GetBuildStream)
	buildsGroup.DELETE("/:build_id", h.DeleteBuild)
	g.GET("/api/scripts/:script_id/builds/:build_id/output", h.GetBuildOutput)
}

type BuildHandler struct {
	buildService BuildServicer
}

func NewBuildHandler(buildService BuildServicer) *BuildHandler {
	return &BuildHandler{buildService: buildService}
}

func (h *BuildHandler) GetBuild(c echo.Context) error {
	bp := new(BuildParams)
	if err := c.Bind(bp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid build ID")
	}

	build, err := h.buildService.GetBuildByID(c.Request().Context(), bp.BuildID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "build not found")
		}
		return newError(err, http.StatusInternalServerError, "error reading build")
	}
	return c.JSON(http.StatusOK, newBuildResponse(build))
}

// DeleteBuild removes a terminal build from history. Deleting a
// pending or running build is rejected.
func (h *BuildHandler) DeleteBuild(c echo.Context) error {
	bp := new(BuildParams)
	if err := c.Bind(bp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid build ID")
	}

	if err := h.buildService.DeleteBuild(c.Request().Context(), bp.BuildID); err != nil {
		var alreadyRunning *service.ErrBuildAlreadyRunning
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return newError(err, http.StatusNotFound, "build not found")
		case errors.As(err, &alreadyRunning):
			return newError(err, http.StatusConflict, "build is still running")
		}
		return newError(err, http.StatusInternalServerError, "error deleting build")
	}
	return c.NoContent(http.StatusNoContent)
}

// GetBuildOutput serves the durable build log as plain text. For a
// running build this is a snapshot of the output captured so far.
func (h *BuildHandler) GetBuildOutput(c echo.Context) error {
	bp := new(BuildParams)
	if err := c.Bind(bp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid build ID")
	}

	build, err := h.buildService.GetBuildByID(c.Request().Context(), bp.BuildID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "build not found")
		}
		return newError(err, http.StatusInternalServerError, "error reading build")
	}
	// the script-scoped route must not serve another script's build
	if scriptID := c.Param("script_id"); scriptID != "" && scriptID != build.BuildScriptID {
		return newError(nil, http.StatusNotFound, "build not found")
	}

	output := ""
	if build.Output != nil {
		output = *build.Output
	}
	return c.String(http.StatusOK, output)
}

// GetBuildStream streams a build's output as server-sent events. Live
// chunks are relayed as they are emitted; a terminal build gets its
// durable log in one event. "[DONE]" always closes the stream.
func (h *BuildHandler) GetBuildStream(c echo.Context) error {
	bp := new(BuildParams)
	if err := c.Bind(bp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid build ID")
	}

	build, err := h.buildService.GetBuildByID(c.Request().Context(), bp.BuildID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "build not found")
		}
		return newError(err, http.StatusInternalServerError, "error reading build")
	}

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subscriberID, ch, ok := h.buildService.Subscribe(bp.BuildID)
	if !ok {
		// the build completed before we could attach; re-read so output
		// written between the first read and the subscribe is not lost
		build, err = h.buildService.GetBuildByID(c.Request().Context(), bp.BuildID)
		if err != nil {
			return newError(err, http.StatusInternalServerError, "error reading build")
		}
		if build.Output != nil && *build.Output != "" {
			writeEvent(c, *build.Output)
		}
		writeEvent(c, "[DONE]")
		return nil
	}
	defer h.buildService.Unsubscribe(bp.BuildID, subscriberID)

	for {
		select {
		case <-c.Request().Context().Done():
			// client disconnected
			return nil
		case chunk, open := <-ch:
			if !open {
				writeEvent(c, "[DONE]")
				return nil
			}
			writeEvent(c, chunk)
		}
	}
}

func writeEvent(c echo.Context, data string) {
	event := &Event{Data: []byte(data)}
	if err := event.MarshalTo(c.Response()); err != nil {
		log.Println("err marshaling event data:", err)
		return
	}
	c.Response().Flush()
}
