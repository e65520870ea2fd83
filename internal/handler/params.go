package handler

type ScriptParams struct {
	ScriptID    string `param:"script_id"`
	Name        string `               json:"name"`
	Content     string `               json:"content"`
	Description string `               json:"description"`
}

type RunParams struct {
	ScriptID string `param:"script_id"`
}

type BuildParams struct {
	BuildID string `param:"build_id"`
}

type ScheduleParams struct {
	ScriptID string `param:"script_id"`
	Cron     string `               json:"cron"`
	Enabled  bool   `               json:"enabled"`
}

type WebhookParams struct {
	Token string `param:"token"`
}

type ConfigParams struct {
	BuildTimeoutSeconds int64  `json:"build_timeout_seconds"`
	BuildRetentionDays  int64  `json:"build_retention_days"`
	Shell               string `json:"shell"`
}
