package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/service"
	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/settings"
	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/store"
	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/util"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestMain(m *testing.M) {
	settings.Settings = &settings.AppSettings{
		Domain: "localhost",
		Port:   ":8080",
	}
	os.Exit(m.Run())
}

type MockScriptService struct {
	mock.Mock
}

func (m *MockScriptService) SaveScript(
	ctx context.Context,
	name, content, description string,
) (*store.Script, bool, error) {
	args := m.Called(ctx, name, content, description)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*store.Script), args.Bool(1), args.Error(2)
}

func (m *MockScriptService) GetScriptByID(
	ctx context.Context,
	id string,
) (*store.Script, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Script), args.Error(1)
}

func (m *MockScriptService) ListScripts(ctx context.Context) ([]*store.Script, error) {
	args := m.Called(ctx)
	var scripts []*store.Script
	if args.Get(0) != nil {
		scripts = args.Get(0).([]*store.Script)
	}
	return scripts, args.Error(1)
}

func (m *MockScriptService) DeleteScript(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockScriptService) RegenerateWebhookToken(
	ctx context.Context,
	id string,
) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockScriptService) UpdateSchedule(
	ctx context.Context,
	id, cronExpression string,
	enabled bool,
) (*store.Script, error) {
	args := m.Called(ctx, id, cronExpression, enabled)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Script), args.Error(1)
}

func (m *MockScriptService) RemoveSchedule(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockBuildService struct {
	mock.Mock
}

func (m *MockBuildService) Trigger(
	ctx context.Context,
	scriptID, source string,
	payload *string,
) (*store.Build, error) {
	args := m.Called(ctx, scriptID, source, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Build), args.Error(1)
}

func (m *MockBuildService) TriggerWebhook(
	ctx context.Context,
	token string,
	payload *string,
) (*store.Build, *store.Script, error) {
	args := m.Called(ctx, token, payload)
	if args.Get(0) == nil || args.Get(1) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*store.Build), args.Get(1).(*store.Script), args.Error(2)
}

func (m *MockBuildService) HasRunningBuild(
	ctx context.Context,
	scriptID string,
) (bool, error) {
	args := m.Called(ctx, scriptID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBuildService) DeleteBuild(ctx context.Context, buildID string) error {
	args := m.Called(ctx, buildID)
	return args.Error(0)
}

func (m *MockBuildService) GetBuildByID(
	ctx context.Context,
	buildID string,
) (*store.Build, error) {
	args := m.Called(ctx, buildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Build), args.Error(1)
}

func (m *MockBuildService) ListScriptBuilds(
	ctx context.Context,
	scriptID string,
) ([]store.Build, error) {
	args := m.Called(ctx, scriptID)
	var builds []store.Build
	if args.Get(0) != nil {
		builds = args.Get(0).([]store.Build)
	}
	return builds, args.Error(1)
}

func (m *MockBuildService) Subscribe(buildID string) (string, <-chan string, bool) {
	args := m.Called(buildID)
	var ch <-chan string
	if args.Get(1) != nil {
		ch = args.Get(1).(<-chan string)
	}
	return args.String(0), ch, args.Bool(2)
}

func (m *MockBuildService) Unsubscribe(buildID, subscriberID string) {
	m.Called(buildID, subscriberID)
}

func generateScript() *store.Script {
	now := time.Now().UTC()
	return &store.Script{
		ScriptID:     uuid.NewString(),
		Name:         "nightly-report",
		Content:      "echo report\n",
		WebhookToken: util.AsPtr(uuid.NewString()),
		CreatedOn:    now,
		UpdatedOn:    now,
	}
}

func generateBuild(scriptID string) *store.Build {
	return &store.Build{
		BuildID:       uuid.NewString(),
		BuildScriptID: scriptID,
		Status:        store.StatusPending,
		TriggeredBy:   store.TriggerManual,
		CreatedOn:     time.Now().UTC(),
	}
}

func TestScriptHandler_PostScript(t *testing.T) {
	t.Run("success - new script returns its webhook token", func(t *testing.T) {
		// arrange
		script := generateScript()
		mockScriptService := new(MockScriptService)
		mockScriptService.On(
			"SaveScript",
			context.Background(),
			script.Name,
			script.Content,
			"",
		).Return(script, true, nil)

		e := echo.New()
		body := fmt.Sprintf(
			`{"name": %q, "content": %q}`, script.Name, script.Content,
		)
		req := httptest.NewRequest(http.MethodPost, "/api/scripts", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		h := NewScriptHandler(mockScriptService, new(MockBuildService))

		// act
		err := h.PostScript(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)
		var res ScriptCreatedResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, script.ScriptID, res.ScriptID)
		assert.Equal(t, *script.WebhookToken, res.WebhookToken)
		assert.Equal(t, "http://localhost:8080/webhooks/"+res.WebhookToken, res.WebhookURL)
	})
	t.Run("success - existing script is updated without its token", func(t *testing.T) {
		// arrange
		script := generateScript()
		mockScriptService := new(MockScriptService)
		mockScriptService.On(
			"SaveScript",
			context.Background(),
			script.Name,
			script.Content,
			"v2",
		).Return(script, false, nil)

		e := echo.New()
		body := fmt.Sprintf(
			`{"name": %q, "content": %q, "description": "v2"}`,
			script.Name, script.Content,
		)
		req := httptest.NewRequest(http.MethodPost, "/api/scripts", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		h := NewScriptHandler(mockScriptService, new(MockBuildService))

		// act
		err := h.PostScript(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "webhook_token")
		assert.NotContains(t, rec.Body.String(), *script.WebhookToken)
	})
	t.Run("failure - name and content are required", func(t *testing.T) {
		// arrange
		mockScriptService := new(MockScriptService)

		e := echo.New()
		req := httptest.NewRequest(
			http.MethodPost, "/api/scripts", strings.NewReader(`{"name": "no-content"}`),
		)
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		h := NewScriptHandler(mockScriptService, new(MockBuildService))

		// act
		err := h.PostScript(c)

		// assert
		assert.Error(t, err)
		httpErr, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
		mockScriptService.AssertNotCalled(t, "SaveScript")
	})
}

func TestScriptHandler_GetScript(t *testing.T) {
	t.Run("success - script is returned without its token", func(t *testing.T) {
		// arrange
		script := generateScript()
		mockScriptService := new(MockScriptService)
		mockScriptService.On("GetScriptByID", context.Background(), script.ScriptID).
			Return(script, nil)
		mockBuildService := new(MockBuildService)
		mockBuildService.On("HasRunningBuild", context.Background(), script.ScriptID).
			Return(false, nil)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/scripts/"+script.ScriptID, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("script_id")
		c.SetParamValues(script.ScriptID)
		h := NewScriptHandler(mockScriptService, mockBuildService)

		// act
		err := h.GetScript(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		var res ScriptDetailResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, script.Name, res.Name)
		assert.False(t, res.BuildRunning)
		assert.NotContains(t, rec.Body.String(), *script.WebhookToken)
	})
	t.Run("failure - script not found", func(t *testing.T) {
		// arrange
		mockScriptService := new(MockScriptService)
		mockScriptService.On("GetScriptByID", context.Background(), "missing").
			Return(nil, sql.ErrNoRows)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/scripts/missing", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("script_id")
		c.SetParamValues("missing")
		h := NewScriptHandler(mockScriptService, new(MockBuildService))

		// act
		err := h.GetScript(c)

		// assert
		assert.Error(t, err)
		httpErr, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusNotFound, httpErr.Code)
	})
}

func TestScriptHandler_PostScriptRun(t *testing.T) {
	t.Run("success - build is accepted", func(t *testing.T) {
		// arrange
		script := generateScript()
		build := generateBuild(script.ScriptID)
		mockBuildService := new(MockBuildService)
		mockBuildService.On(
			"Trigger",
			context.Background(),
			script.ScriptID,
			store.TriggerManual,
			(*string)(nil),
		).Return(build, nil)

		e := echo.New()
		req := httptest.NewRequest(
			http.MethodPost, "/api/scripts/"+script.ScriptID+"/run", nil,
		)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("script_id")
		c.SetParamValues(script.ScriptID)
		h := NewScriptHandler(new(MockScriptService), mockBuildService)

		// act
		err := h.PostScriptRun(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, rec.Code)
		var res BuildResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, build.BuildID, res.BuildID)
		assert.Equal(t, "/api/builds/"+build.BuildID+"/stream", res.StreamURL)
	})
	t.Run("failure - build already in progress", func(t *testing.T) {
		// arrange
		script := generateScript()
		mockBuildService := new(MockBuildService)
		mockBuildService.On(
			"Trigger",
			context.Background(),
			script.ScriptID,
			store.TriggerManual,
			(*string)(nil),
		).Return(nil, service.NewErrBuildAlreadyRunning(script.ScriptID))

		e := echo.New()
		req := httptest.NewRequest(
			http.MethodPost, "/api/scripts/"+script.ScriptID+"/run", nil,
		)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("script_id")
		c.SetParamValues(script.ScriptID)
		h := NewScriptHandler(new(MockScriptService), mockBuildService)

		// act
		err := h.PostScriptRun(c)

		// assert
		assert.Error(t, err)
		httpErr, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusConflict, httpErr.Code)
	})
	t.Run("failure - script not found", func(t *testing.T) {
		// arrange
		mockBuildService := new(MockBuildService)
		mockBuildService.On(
			"Trigger",
			context.Background(),
			"missing",
			store.TriggerManual,
			(*string)(nil),
		).Return(nil, sql.ErrNoRows)

		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/api/scripts/missing/run", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("script_id")
		c.SetParamValues("missing")
		h := NewScriptHandler(new(MockScriptService), mockBuildService)

		// act
		err := h.PostScriptRun(c)

		// assert
		assert.Error(t, err)
		httpErr, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusNotFound, httpErr.Code)
	})
}

func TestScriptHandler_PostRegenerateWebhook(t *testing.T) {
	t.Run("success - fresh token and url are returned", func(t *testing.T) {
		// arrange
		script := generateScript()
		newToken := uuid.NewString()
		mockScriptService := new(MockScriptService)
		mockScriptService.On(
			"RegenerateWebhookToken",
			context.Background(),
			script.ScriptID,
		).Return(newToken, nil)

		e := echo.New()
		req := httptest.NewRequest(
			http.MethodPost, "/api/scripts/"+script.ScriptID+"/webhook/regenerate", nil,
		)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("script_id")
		c.SetParamValues(script.ScriptID)
		h := NewScriptHandler(mockScriptService, new(MockBuildService))

		// act
		err := h.PostRegenerateWebhook(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		var res WebhookTokenResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, newToken, res.WebhookToken)
		assert.Equal(t, "http://localhost:8080/webhooks/"+newToken, res.WebhookURL)
	})
}
