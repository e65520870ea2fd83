package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/service"
	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/settings"
	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/store"
	"github.com/labstack/echo/v4"
)

func SetupScriptRoutes(
	g *echo.Group,
	scriptService ScriptServicer,
	buildService BuildServicer,
) {
	h := NewScriptHandler(scriptService, buildService)
	scriptsGroup := g.Group("/api/scripts")
	scriptsGroup.GET("", h.GetScripts)
	scriptsGroup.POST("", h.PostScript)
	scriptsGroup.GET("/:script_id", h.GetScript)
	scriptsGroup.DELETE("/:script_id", h.DeleteScript)
	scriptsGroup.POST("/:script_id/run", h.PostScriptRun)
	scriptsGroup.GET("/:script_id/builds", h.GetScriptBuilds)
	scriptsGroup.POST("/:script_id/webhook/regenerate", h.PostRegenerateWebhook)
	scriptsGroup.GET("/:script_id/schedule", h.GetScriptSchedule)
	scriptsGroup.PUT("/:script_id/schedule", h.PutScriptSchedule)
	scriptsGroup.DELETE("/:script_id/schedule", h.DeleteScriptSchedule)
}

type ScriptServicer interface {
	SaveScript(ctx context.Context, name, content, description string) (*store.Script, bool, error)
	GetScriptByID(ctx context.Context, id string) (*store.Script, error)
	ListScripts(ctx context.Context) ([]*store.Script, error)
	DeleteScript(ctx context.Context, id string) error
	RegenerateWebhookToken(ctx context.Context, id string) (string, error)
	UpdateSchedule(ctx context.Context, id, cronExpression string, enabled bool) (*store.Script, error)
	RemoveSchedule(ctx context.Context, id string) error
}

type BuildServicer interface {
	Trigger(ctx context.Context, scriptID, source string, payload *string) (*store.Build, error)
	TriggerWebhook(ctx context.Context, token string, payload *string) (*store.Build, *store.Script, error)
	GetBuildByID(ctx context.Context, buildID string) (*store.Build, error)
	HasRunningBuild(ctx context.Context, scriptID string) (bool, error)
	ListScriptBuilds(ctx context.Context, scriptID string) ([]store.Build, error)
	DeleteBuild(ctx context.Context, buildID string) error
	Subscribe(buildID string) (string, <-chan string, bool)
	Unsubscribe(buildID, subscriberID string)
}

type ScriptHandler struct {
	scriptService ScriptServicer
	buildService  BuildServicer
}

func NewScriptHandler(scriptService ScriptServicer, buildService BuildServicer) *ScriptHandler {
	return &ScriptHandler{
		scriptService: scriptService,
		buildService:  buildService,
	}
}

// ScriptResponse is the script's public shape. The webhook token is
// deliberately absent; it is only revealed by creation and rotation.
type ScriptResponse struct {
	ScriptID        string     `json:"script_id"`
	Name            string     `json:"name"`
	Content         string     `json:"content"`
	Description     string     `json:"description"`
	ScheduleCron    *string    `json:"schedule_cron"`
	ScheduleEnabled bool       `json:"schedule_enabled"`
	NextRun         *time.Time `json:"next_run"`
	LastRun         *time.Time `json:"last_run"`
	CreatedOn       time.Time  `json:"created_on"`
	UpdatedOn       time.Time  `json:"updated_on"`
}

// ScriptDetailResponse is the single-script shape, annotated with
// whether a build is currently in flight.
type ScriptDetailResponse struct {
	ScriptResponse
	BuildRunning bool `json:"build_running"`
}

type ScriptCreatedResponse struct {
	ScriptResponse
	WebhookToken string `json:"webhook_token"`
	WebhookURL   string `json:"webhook_url"`
}

type WebhookTokenResponse struct {
	WebhookToken string `json:"webhook_token"`
	WebhookURL   string `json:"webhook_url"`
}

type BuildResponse struct {
	BuildID     string            `json:"build_id"`
	ScriptID    string            `json:"script_id"`
	Status      store.BuildStatus `json:"status"`
	TriggeredBy string            `json:"triggered_by"`
	ExitCode    *int64            `json:"exit_code"`
	CreatedOn   time.Time         `json:"created_on"`
	StartedOn   *time.Time        `json:"started_on"`
	EndedOn     *time.Time        `json:"ended_on"`
	StreamURL   string            `json:"stream_url"`
}

func newScriptResponse(script *store.Script) ScriptResponse {
	return ScriptResponse{
		ScriptID:        script.ScriptID,
		Name:            script.Name,
		Content:         script.Content,
		Description:     script.Description,
		ScheduleCron:    script.ScheduleCron,
		ScheduleEnabled: script.ScheduleEnabled,
		NextRun:         script.NextRun,
		LastRun:         script.LastRun,
		CreatedOn:       script.CreatedOn,
		UpdatedOn:       script.UpdatedOn,
	}
}

func newBuildResponse(build *store.Build) BuildResponse {
	return BuildResponse{
		BuildID:     build.BuildID,
		ScriptID:    build.BuildScriptID,
		Status:      build.Status,
		TriggeredBy: build.TriggeredBy,
		ExitCode:    build.ExitCode,
		CreatedOn:   build.CreatedOn,
		StartedOn:   build.StartedOn,
		EndedOn:     build.EndedOn,
		StreamURL:   fmt.Sprintf("/api/builds/%s/stream", build.BuildID),
	}
}

func webhookURL(token string) string {
	return fmt.Sprintf("%s/webhooks/%s", settings.Settings.BaseURL(), token)
}

func (h *ScriptHandler) GetScripts(c echo.Context) error {
	scripts, err := h.scriptService.ListScripts(c.Request().Context())
	if err != nil {
		return newError(err, http.StatusInternalServerError, "error listing scripts")
	}

	res := make([]ScriptResponse, 0, len(scripts))
	for _, script := range scripts {
		res = append(res, newScriptResponse(script))
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ScriptHandler) PostScript(c echo.Context) error {
	sp := new(ScriptParams)
	if err := c.Bind(sp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid script data")
	}
	if sp.Name == "" || sp.Content == "" {
		return newError(nil, http.StatusBadRequest, "script name and content are required")
	}

	script, created, err := h.scriptService.SaveScript(
		c.Request().Context(), sp.Name, sp.Content, sp.Description,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return newError(err, http.StatusConflict, "a script with this name already exists")
		}
		return newError(err, http.StatusInternalServerError, "error saving script")
	}

	if created {
		return c.JSON(http.StatusCreated, ScriptCreatedResponse{
			ScriptResponse: newScriptResponse(script),
			WebhookToken:   *script.WebhookToken,
			WebhookURL:     webhookURL(*script.WebhookToken),
		})
	}
	return c.JSON(http.StatusOK, newScriptResponse(script))
}

func (h *ScriptHandler) GetScript(c echo.Context) error {
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

	running, err := h.buildService.HasRunningBuild(c.Request().Context(), script.ScriptID)
	if err != nil {
		return newError(err, http.StatusInternalServerError, "error reading script builds")
	}
	return c.JSON(http.StatusOK, ScriptDetailResponse{
		ScriptResponse: newScriptResponse(script),
		BuildRunning:   running,
	})
}

func (h *ScriptHandler) DeleteScript(c echo.Context) error {
	sp := new(ScriptParams)
	if err := c.Bind(sp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid script ID")
	}

	if _, err := h.scriptService.GetScriptByID(c.Request().Context(), sp.ScriptID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "script not found")
		}
		return newError(err, http.StatusInternalServerError, "error reading script")
	}
	if err := h.scriptService.DeleteScript(c.Request().Context(), sp.ScriptID); err != nil {
		return newError(err, http.StatusInternalServerError, "error deleting script")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ScriptHandler) PostScriptRun(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid script ID")
	}

	build, err := h.buildService.Trigger(
		c.Request().Context(), rp.ScriptID, store.TriggerManual, nil,
	)
	if err != nil {
		var alreadyRunning *service.ErrBuildAlreadyRunning
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return newError(err, http.StatusNotFound, "script not found")
		case errors.As(err, &alreadyRunning):
			return newError(err, http.StatusConflict, alreadyRunning.Error())
		default:
			return newError(err, http.StatusInternalServerError, "error triggering build")
		}
	}
	return c.JSON(http.StatusAccepted, newBuildResponse(build))
}

func (h *ScriptHandler) GetScriptBuilds(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid script ID")
	}

	if _, err := h.scriptService.GetScriptByID(c.Request().Context(), rp.ScriptID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "script not found")
		}
		return newError(err, http.StatusInternalServerError, "error reading script")
	}

	builds, err := h.buildService.ListScriptBuilds(c.Request().Context(), rp.ScriptID)
	if err != nil {
		return newError(err, http.StatusInternalServerError, "error listing builds")
	}

	res := make([]BuildResponse, 0, len(builds))
	for i := range builds {
		res = append(res, newBuildResponse(&builds[i]))
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ScriptHandler) PostRegenerateWebhook(c echo.Context) error {
	sp := new(ScriptParams)
	if err := c.Bind(sp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid script ID")
	}

	token, err := h.scriptService.RegenerateWebhookToken(c.Request().Context(), sp.ScriptID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "script not found")
		}
		return newError(err, http.StatusInternalServerError, "error rotating webhook token")
	}
	return c.JSON(http.StatusOK, WebhookTokenResponse{
		WebhookToken: token,
		WebhookURL:   webhookURL(token),
	})
}
