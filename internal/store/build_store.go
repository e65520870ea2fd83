package store

import (
	"context"
	"time"
)

type BuildStatus string

const (
	StatusPending BuildStatus = "pending"
	StatusRunning BuildStatus = "running"
	StatusSuccess BuildStatus = "success"
	StatusFailure BuildStatus = "failure"
)

func (bs BuildStatus) Terminal() bool {
	return bs == StatusSuccess || bs == StatusFailure
}

const (
	TriggerManual  = "manual"
	TriggerWebhook = "webhook"
	// Scheduled triggers are recorded as "schedule:<script_id>".
	TriggerSchedulePrefix = "schedule:"
)

type Build struct {
	BuildID       string `param:"build_id"`
	BuildScriptID string
	Status        BuildStatus
	TriggeredBy   string
	ExitCode      *int64
	// JSON body of the webhook request that triggered the build, if any.
	WebhookPayload *string
	Output         *string
	CreatedOn      time.Time
	StartedOn      *time.Time
	EndedOn        *time.Time
}

type BuildStore interface {
	CreateBuild(context.Context, string, string, string, *string) (*Build, error)
	ReadBuildByID(context.Context, string) (*Build, error)
	UpdateBuildStartedOn(context.Context, string, BuildStatus, *time.Time) error
	UpdateBuildEndedOn(context.Context, string, BuildStatus, *int64, *time.Time) error
	AppendBuildOutput(context.Context, string, string) error
	DeleteBuild(context.Context, string) error
	ListScriptBuilds(context.Context, string) ([]Build, error)
	CountRunningBuilds(context.Context, string) (int64, error)
	DeleteBuildsBefore(context.Context, time.Time) (int64, error)
	MarkInterruptedBuilds(context.Context, *time.Time) (int64, error)
}
