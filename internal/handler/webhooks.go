package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/service"
	"github.com/labstack/echo/v4"
)

// Webhook bodies larger than this are rejected before triggering.
const maxWebhookPayloadBytes = 1 << 20

func SetupWebhookRoutes(e *echo.Echo, buildService BuildServicer) {
	h := NewWebhookHandler(buildService)
	e.POST("/webhooks/:token", h.PostWebhook)
}

type WebhookHandler struct {
	buildService BuildServicer
}

func NewWebhookHandler(buildService BuildServicer) *WebhookHandler {
	return &WebhookHandler{buildService: buildService}
}

type WebhookTriggerResponse struct {
	BuildID   string `json:"build_id"`
	ScriptID  string `json:"script_id"`
	StreamURL string `json:"stream_url"`
}

// PostWebhook triggers a build for the script owning the path token.
// The request body, if any, is handed to the script via the
// WEBHOOK_PAYLOAD environment variable.
func (h *WebhookHandler) PostWebhook(c echo.Context) error {
	wp := new(WebhookParams)
	if err := c.Bind(wp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid webhook token")
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookPayloadBytes+1))
	if err != nil {
		return newError(err, http.StatusBadRequest, "error reading webhook payload")
	}
	if len(body) > maxWebhookPayloadBytes {
		return newError(nil, http.StatusRequestEntityTooLarge, "webhook payload too large")
	}

	var payload *string
	if len(body) > 0 {
		s := string(body)
		payload = &s
	}

	build, script, err := h.buildService.TriggerWebhook(
		c.Request().Context(), wp.Token, payload,
	)
	if err != nil {
		var invalidToken *service.ErrInvalidWebhookToken
		var alreadyRunning *service.ErrBuildAlreadyRunning
		switch {
		case errors.As(err, &invalidToken):
			return newError(err, http.StatusUnauthorized, "invalid webhook token")
		case errors.As(err, &alreadyRunning):
			return newError(err, http.StatusConflict, alreadyRunning.Error())
		default:
			return newError(err, http.StatusInternalServerError, "error triggering build")
		}
	}

	return c.JSON(http.StatusAccepted, WebhookTriggerResponse{
		BuildID:   build.BuildID,
		ScriptID:  script.ScriptID,
		StreamURL: "/api/builds/" + build.BuildID + "/stream",
	})
}
