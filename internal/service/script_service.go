package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/store"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

type ScriptService struct {
	scriptStore store.ScriptStore
}

func NewScriptService(scriptStore store.ScriptStore) *ScriptService {
	return &ScriptService{scriptStore: scriptStore}
}

// SaveScript upserts a script by name and reports whether it was
// created. A new script is issued its webhook token at creation time;
// saving existing content leaves the token and schedule untouched.
func (s *ScriptService) SaveScript(
	ctx context.Context,
	name, content, description string,
) (*store.Script, bool, error) {
	existing, err := s.scriptStore.ReadScriptByName(ctx, name)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, false, err
		}
		token, err := NewWebhookToken()
		if err != nil {
			return nil, false, err
		}
		script, err := s.scriptStore.CreateScript(ctx, uuid.NewString(), name, content, token)
		if err != nil {
			return nil, false, err
		}
		return script, true, nil
	}

	if err := s.scriptStore.UpdateScriptContent(
		ctx, existing.ScriptID, content, description,
	); err != nil {
		return nil, false, err
	}
	script, err := s.scriptStore.ReadScriptByID(ctx, existing.ScriptID)
	if err != nil {
		return nil, false, err
	}
	return script, false, nil
}

func (s *ScriptService) GetScriptByID(ctx context.Context, id string) (*store.Script, error) {
	return s.scriptStore.ReadScriptByID(ctx, id)
}

func (s *ScriptService) ListScripts(ctx context.Context) ([]*store.Script, error) {
	scripts, err := s.scriptStore.ListScripts(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return scripts, nil
}

func (s *ScriptService) DeleteScript(ctx context.Context, id string) error {
	return s.scriptStore.DeleteScript(ctx, id)
}

// RegenerateWebhookToken atomically replaces the script's webhook
// token. The old token stops authorizing triggers the moment the new
// one is persisted; there is no grace period.
func (s *ScriptService) RegenerateWebhookToken(ctx context.Context, id string) (string, error) {
	script, err := s.scriptStore.ReadScriptByID(ctx, id)
	if err != nil {
		return "", err
	}

	token, err := NewWebhookToken()
	if err != nil {
		return "", err
	}
	if err := s.scriptStore.UpdateScriptWebhookToken(ctx, script.ScriptID, token); err != nil {
		return "", err
	}
	return token, nil
}

// UpdateSchedule validates and persists a script's cron configuration.
// Enabling recomputes next_run from the current time; disabling clears
// it. A malformed expression is rejected and nothing is persisted.
func (s *ScriptService) UpdateSchedule(
	ctx context.Context,
	id, cronExpression string,
	enabled bool,
) (*store.Script, error) {
	script, err := s.scriptStore.ReadScriptByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if enabled && cronExpression == "" {
		return nil, NewErrInvalidSchedule(cronExpression, errors.New("expression required"))
	}

	var cronPtr *string
	var nextRun *time.Time
	if cronExpression != "" {
		schedule, err := cron.ParseStandard(cronExpression)
		if err != nil {
			return nil, NewErrInvalidSchedule(cronExpression, err)
		}
		cronPtr = &cronExpression
		if enabled {
			next := schedule.Next(time.Now().UTC())
			nextRun = &next
		}
	}

	if err := s.scriptStore.UpdateScriptSchedule(
		ctx, script.ScriptID, cronPtr, enabled, nextRun,
	); err != nil {
		return nil, err
	}
	return s.scriptStore.ReadScriptByID(ctx, script.ScriptID)
}

// RemoveSchedule disables the script's schedule and clears both the
// expression and next_run.
func (s *ScriptService) RemoveSchedule(ctx context.Context, id string) error {
	script, err := s.scriptStore.ReadScriptByID(ctx, id)
	if err != nil {
		return err
	}
	return s.scriptStore.UpdateScriptSchedule(ctx, script.ScriptID, nil, false, nil)
}
