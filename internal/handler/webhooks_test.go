package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/service"
	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/store"
	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/util"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestWebhookHandler_PostWebhook(t *testing.T) {
	t.Run("success - payload is forwarded to the triggered build", func(t *testing.T) {
		// arrange
		script := generateScript()
		build := generateBuild(script.ScriptID)
		build.TriggeredBy = store.TriggerWebhook
		payload := `{"ref":"refs/heads/main"}`
		mockBuildService := new(MockBuildService)
		mockBuildService.On(
			"TriggerWebhook",
			context.Background(),
			*script.WebhookToken,
			util.AsPtr(payload),
		).Return(build, script, nil)

		e := echo.New()
		req := httptest.NewRequest(
			http.MethodPost,
			"/webhooks/"+*script.WebhookToken,
			strings.NewReader(payload),
		)
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("token")
		c.SetParamValues(*script.WebhookToken)
		h := NewWebhookHandler(mockBuildService)

		// act
		err := h.PostWebhook(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), build.BuildID)
		assert.Contains(t, rec.Body.String(), "/api/builds/"+build.BuildID+"/stream")
		mockBuildService.AssertExpectations(t)
	})
	t.Run("success - empty body triggers without a payload", func(t *testing.T) {
		// arrange
		script := generateScript()
		build := generateBuild(script.ScriptID)
		mockBuildService := new(MockBuildService)
		mockBuildService.On(
			"TriggerWebhook",
			context.Background(),
			*script.WebhookToken,
			(*string)(nil),
		).Return(build, script, nil)

		e := echo.New()
		req := httptest.NewRequest(
			http.MethodPost, "/webhooks/"+*script.WebhookToken, nil,
		)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("token")
		c.SetParamValues(*script.WebhookToken)
		h := NewWebhookHandler(mockBuildService)

		// act
		err := h.PostWebhook(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, rec.Code)
		mockBuildService.AssertExpectations(t)
	})
	t.Run("failure - unknown token", func(t *testing.T) {
		// arrange
		token := uuid.NewString()
		mockBuildService := new(MockBuildService)
		mockBuildService.On(
			"TriggerWebhook",
			context.Background(),
			token,
			(*string)(nil),
		).Return(nil, nil, service.NewErrInvalidWebhookToken())

		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/"+token, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("token")
		c.SetParamValues(token)
		h := NewWebhookHandler(mockBuildService)

		// act
		err := h.PostWebhook(c)

		// assert
		assert.Error(t, err)
		httpErr, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	})
	t.Run("failure - build already in progress", func(t *testing.T) {
		// arrange
		script := generateScript()
		mockBuildService := new(MockBuildService)
		mockBuildService.On(
			"TriggerWebhook",
			context.Background(),
			*script.WebhookToken,
			mock.Anything,
		).Return(nil, nil, service.NewErrBuildAlreadyRunning(script.ScriptID))

		e := echo.New()
		req := httptest.NewRequest(
			http.MethodPost, "/webhooks/"+*script.WebhookToken, nil,
		)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("token")
		c.SetParamValues(*script.WebhookToken)
		h := NewWebhookHandler(mockBuildService)

		// act
		err := h.PostWebhook(c)

		// assert
		assert.Error(t, err)
		httpErr, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusConflict, httpErr.Code)
	})
}
