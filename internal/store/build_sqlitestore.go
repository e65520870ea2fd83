package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type BuildSQLiteStore struct {
	rdb, rwdb *sql.DB
}

func NewBuildSQLiteStore(rdb, rwdb *sql.DB) *BuildSQLiteStore {
	return &BuildSQLiteStore{rdb, rwdb}
}

// CreateBuild inserts a pending build only if the script has no other
// build in a non-terminal state. The check and the insert run as one
// statement on the single writer connection, so two concurrent triggers
// for the same script cannot both succeed. When the insert is skipped
// the returned error is sql.ErrNoRows.
func (store *BuildSQLiteStore) CreateBuild(
	ctx context.Context,
	id, scriptID, triggeredBy string,
	webhookPayload *string,
) (*Build, error) {
	b := &Build{
		BuildID:        id,
		BuildScriptID:  scriptID,
		Status:         StatusPending,
		TriggeredBy:    triggeredBy,
		WebhookPayload: webhookPayload,
	}
	query := `insert into builds (
		build_id,
		build_script_id,
		status,
		triggered_by,
		webhook_payload
	)
	select $1, $2, $3, $4, $5
	where not exists (
		select 1 from builds
		where build_script_id = $2 and status in ('pending', 'running')
	)
	returning created_on`
	if err := sqlscan.Get(
		ctx, store.rwdb, b, query,
		b.BuildID,
		b.BuildScriptID,
		b.Status,
		b.TriggeredBy,
		b.WebhookPayload,
	); err != nil {
		return nil, err
	}
	return b, nil
}

func (store *BuildSQLiteStore) ReadBuildByID(ctx context.Context, id string) (*Build, error) {
	b := &Build{BuildID: id}
	query := "select * from builds where build_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, b, query, b.BuildID); err != nil {
		return nil, err
	}
	return b, nil
}

func (store *BuildSQLiteStore) UpdateBuildStartedOn(
	ctx context.Context,
	id string,
	status BuildStatus,
	startedOn *time.Time,
) error {
	query := `update builds
	set status = $1,
		started_on = $2
	where build_id = $3`
	_, err := store.rwdb.ExecContext(ctx, query, status, formatTimestamp(startedOn), id)
	return err
}

func (store *BuildSQLiteStore) UpdateBuildEndedOn(
	ctx context.Context,
	id string,
	status BuildStatus,
	exitCode *int64,
	endedOn *time.Time,
) error {
	query := `update builds
	set status = $1,
		exit_code = $2,
		ended_on = $3
	where build_id = $4`
	_, err := store.rwdb.ExecContext(ctx, query, status, exitCode, formatTimestamp(endedOn), id)
	return err
}

func (store *BuildSQLiteStore) AppendBuildOutput(ctx context.Context, id, out string) error {
	query := `update builds
	set output = coalesce(output, '') || $1
	where build_id = $2`
	_, err := store.rwdb.ExecContext(ctx, query, out, id)
	return err
}

func (store *BuildSQLiteStore) DeleteBuild(ctx context.Context, id string) error {
	query := "delete from builds where build_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}

func (store *BuildSQLiteStore) ListScriptBuilds(
	ctx context.Context,
	scriptID string,
) ([]Build, error) {
	query := `select
		build_id,
		build_script_id,
		status,
		triggered_by,
		exit_code,
		created_on,
		started_on,
		ended_on
	from builds
	where build_script_id = $1
	order by created_on desc`
	builds := make([]Build, 0)
	err := sqlscan.Select(ctx, store.rdb, &builds, query, scriptID)
	return builds, err
}

func (store *BuildSQLiteStore) CountRunningBuilds(
	ctx context.Context,
	scriptID string,
) (int64, error) {
	var count int64
	query := `select count(*) from builds
	where build_script_id = $1 and status in ('pending', 'running')`
	err := sqlscan.Get(ctx, store.rdb, &count, query, scriptID)
	return count, err
}

func (store *BuildSQLiteStore) DeleteBuildsBefore(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	query := `delete from builds
	where created_on < $1 and status in ('success', 'failure')`
	res, err := store.rwdb.ExecContext(ctx, query, formatTimestamp(&cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkInterruptedBuilds fails every non-terminal build. Called once at
// startup to reconcile builds whose executor died with the host.
func (store *BuildSQLiteStore) MarkInterruptedBuilds(
	ctx context.Context,
	endedOn *time.Time,
) (int64, error) {
	query := `update builds
	set status = $1,
		ended_on = $2,
		output = coalesce(output, '') || $3
	where status in ('pending', 'running')`
	res, err := store.rwdb.ExecContext(
		ctx, query,
		StatusFailure,
		formatTimestamp(endedOn),
		"build interrupted by server restart\n",
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
