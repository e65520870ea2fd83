package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal"
	"github.com/georgysavva/scany/v2/sqlscan"
)

type ScriptSQLiteStore struct {
	rdb, rwdb *sql.DB
}

func NewScriptSQLiteStore(rdb, rwdb *sql.DB) *ScriptSQLiteStore {
	return &ScriptSQLiteStore{rdb, rwdb}
}

func (store *ScriptSQLiteStore) CreateScript(
	ctx context.Context,
	id, name, content, webhookToken string,
) (*Script, error) {
	s := &Script{
		ScriptID: id,
		Name:     name,
		Content:  content,
	}
	query := `insert into scripts (
		script_id,
		name,
		content,
		webhook_token
	)
	values ($1, $2, $3, $4)
	returning created_on, updated_on, webhook_token`
	if err := sqlscan.Get(
		ctx, store.rwdb, s, query,
		s.ScriptID,
		s.Name,
		s.Content,
		webhookToken,
	); err != nil {
		return nil, err
	}
	return s, nil
}

func (store *ScriptSQLiteStore) ReadScriptByID(ctx context.Context, id string) (*Script, error) {
	s := &Script{ScriptID: id}
	query := "select * from scripts where script_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, s, query, s.ScriptID); err != nil {
		return nil, err
	}
	return s, nil
}

func (store *ScriptSQLiteStore) ReadScriptByName(
	ctx context.Context,
	name string,
) (*Script, error) {
	s := new(Script)
	query := "select * from scripts where name = $1"
	if err := sqlscan.Get(ctx, store.rdb, s, query, name); err != nil {
		return nil, err
	}
	return s, nil
}

func (store *ScriptSQLiteStore) ReadScriptByWebhookToken(
	ctx context.Context,
	token string,
) (*Script, error) {
	s := new(Script)
	query := "select * from scripts where webhook_token = $1"
	if err := sqlscan.Get(ctx, store.rdb, s, query, token); err != nil {
		return nil, err
	}
	return s, nil
}

func (store *ScriptSQLiteStore) UpdateScriptContent(
	ctx context.Context,
	id, content, description string,
) error {
	query := `update scripts
	set content = $1,
		description = $2,
		updated_on = CURRENT_TIMESTAMP
	where script_id = $3`
	_, err := store.rwdb.ExecContext(ctx, query, content, description, id)
	return err
}

func (store *ScriptSQLiteStore) UpdateScriptWebhookToken(
	ctx context.Context,
	id, token string,
) error {
	query := `update scripts
	set webhook_token = $1,
		updated_on = CURRENT_TIMESTAMP
	where script_id = $2`
	_, err := store.rwdb.ExecContext(ctx, query, token, id)
	return err
}

func (store *ScriptSQLiteStore) UpdateScriptSchedule(
	ctx context.Context,
	id string,
	cron *string,
	enabled bool,
	nextRun *time.Time,
) error {
	query := `update scripts
	set schedule_cron = $1,
		schedule_enabled = $2,
		next_run = $3,
		updated_on = CURRENT_TIMESTAMP
	where script_id = $4`
	_, err := store.rwdb.ExecContext(ctx, query, cron, enabled, formatTimestamp(nextRun), id)
	return err
}

func (store *ScriptSQLiteStore) UpdateScriptNextRun(
	ctx context.Context,
	id string,
	nextRun *time.Time,
) error {
	query := `update scripts
	set next_run = $1
	where script_id = $2`
	_, err := store.rwdb.ExecContext(ctx, query, formatTimestamp(nextRun), id)
	return err
}

func (store *ScriptSQLiteStore) UpdateScriptLastRun(
	ctx context.Context,
	id string,
	lastRun *time.Time,
) error {
	query := `update scripts
	set last_run = $1
	where script_id = $2`
	_, err := store.rwdb.ExecContext(ctx, query, formatTimestamp(lastRun), id)
	return err
}

func (store *ScriptSQLiteStore) DeleteScript(ctx context.Context, id string) error {
	query := "delete from scripts where script_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}

func (store *ScriptSQLiteStore) ListScripts(ctx context.Context) ([]*Script, error) {
	query := "select * from scripts order by name"
	scripts := make([]*Script, 0)
	err := sqlscan.Select(ctx, store.rdb, &scripts, query)
	return scripts, err
}

func (store *ScriptSQLiteStore) ListScheduledScripts(ctx context.Context) ([]*Script, error) {
	query := `select * from scripts
	where schedule_enabled = 1 and schedule_cron is not null`
	scripts := make([]*Script, 0)
	err := sqlscan.Select(ctx, store.rdb, &scripts, query)
	return scripts, err
}

func formatTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(internal.DBTimestampLayout)
}
