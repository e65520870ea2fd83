package store

import (
	"context"
	"time"
)

type Script struct {
	ScriptID string `param:"script_id"`
	Name     string
	// Executable script content, run by the build executor.
	Content     string
	Description string
	// Optional grouping reference to a document collection.
	CollectionID *string
	// Opaque secret authorizing webhook triggers. Nil until issued.
	WebhookToken *string
	// Schedule in cron syntax
	ScheduleCron    *string
	ScheduleEnabled bool
	NextRun         *time.Time
	LastRun         *time.Time
	CreatedOn       time.Time
	UpdatedOn       time.Time
}

type ScriptStore interface {
	CreateScript(context.Context, string, string, string, string) (*Script, error)
	ReadScriptByID(context.Context, string) (*Script, error)
	ReadScriptByName(context.Context, string) (*Script, error)
	ReadScriptByWebhookToken(context.Context, string) (*Script, error)
	UpdateScriptContent(context.Context, string, string, string) error
	UpdateScriptWebhookToken(context.Context, string, string) error
	UpdateScriptSchedule(context.Context, string, *string, bool, *time.Time) error
	UpdateScriptNextRun(context.Context, string, *time.Time) error
	UpdateScriptLastRun(context.Context, string, *time.Time) error
	DeleteScript(context.Context, string) error
	ListScripts(context.Context) ([]*Script, error)
	ListScheduledScripts(context.Context) ([]*Script, error)
}
