package handler

import (
	"net/http"

	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal"
	"github.com/labstack/echo/v4"
)

func SetupConfigRoutes(g *echo.Group) {
	g.GET("/api/config", GetConfig)
	g.PUT("/api/config", PutConfig)
}

type ConfigResponse struct {
	BuildTimeoutSeconds int64  `json:"build_timeout_seconds"`
	BuildRetentionDays  int64  `json:"build_retention_days"`
	Shell               string `json:"shell"`
}

func newConfigResponse(config *internal.Configuration) *ConfigResponse {
	return &ConfigResponse{
		BuildTimeoutSeconds: config.BuildTimeoutSeconds,
		BuildRetentionDays:  config.BuildRetentionDays,
		Shell:               config.Shell,
	}
}

func GetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, newConfigResponse(internal.Config))
}

// PutConfig replaces the execution configuration and persists it to the
// config file. Services that read their settings at boot, such as the
// executor timeout and the retention window, pick the change up on the
// next restart.
func PutConfig(c echo.Context) error {
	cp := new(ConfigParams)
	if err := c.Bind(cp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid config data")
	}
	if cp.Shell == "" {
		return newError(nil, http.StatusBadRequest, "shell is required")
	}
	if cp.BuildTimeoutSeconds < 0 || cp.BuildRetentionDays < 0 {
		return newError(nil, http.StatusBadRequest, "negative durations are not allowed")
	}

	config := &internal.Configuration{
		BuildTimeoutSeconds: cp.BuildTimeoutSeconds,
		BuildRetentionDays:  cp.BuildRetentionDays,
		Shell:               cp.Shell,
	}
	if err := internal.UpdateConfiguration(config); err != nil {
		return newError(
			err, http.StatusInternalServerError, "unable to update configuration file",
		)
	}
	return c.JSON(http.StatusOK, newConfigResponse(internal.Config))
}
